package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trustvault/backend/internal/auth"
)

// AuthHandler serves signup and login.
type AuthHandler struct {
	authenticator auth.Authenticator
	tokens        *auth.JWTManager
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authenticator auth.Authenticator, tokens *auth.JWTManager) *AuthHandler {
	return &AuthHandler{authenticator: authenticator, tokens: tokens}
}

type signupRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Token    string `json:"token"`
	Role     string `json:"role"`
}

// Signup registers a new account and returns a session token.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.authenticator.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.tokens.Generate(user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, authResponse{
		UserID:   user.ID,
		Username: user.Username,
		Token:    token,
		Role:     user.Role,
	})
}

// Login authenticates an existing account and returns a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.authenticator.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.tokens.Generate(user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, authResponse{
		UserID:   user.ID,
		Username: user.Username,
		Token:    token,
		Role:     user.Role,
	})
}
