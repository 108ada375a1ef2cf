package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/trustvault/backend/internal/storage"
)

// UserHandler serves the current user's profile.
type UserHandler struct {
	store storage.Store
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(store storage.Store) *UserHandler {
	return &UserHandler{store: store}
}

type profileResponse struct {
	UserID    string          `json:"userId"`
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	Role      string          `json:"role"`
	Status    string          `json:"status"`
	Balance   decimal.Decimal `json:"balance"`
	Groups    []string        `json:"groups"`
	CreatedAt string          `json:"createdAt"`
}

// Me returns the authenticated user's profile, without the credential hash.
func (h *UserHandler) Me(c *gin.Context) {
	user, _, err := storage.GetUser(c.Request.Context(), h.store, userID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, profileResponse{
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		Status:    user.Status,
		Balance:   user.Balance,
		Groups:    user.Groups,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	})
}
