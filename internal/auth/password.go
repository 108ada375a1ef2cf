package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/trustvault/backend/internal/errs"
	"github.com/trustvault/backend/internal/models"
	"github.com/trustvault/backend/internal/storage"
)

var (
	ErrInvalidCredentials = errs.New(errs.Unauthenticated, "invalid email or password")
	ErrWeakPassword       = errs.New(errs.InvalidArgument, "password must be at least 6 characters")
	ErrBadUsername        = errs.New(errs.InvalidArgument, "username must be 3-50 characters")
	ErrEmailExists        = errs.New(errs.Conflict, "email already registered")
)

// PasswordAuthenticator implements password-based authentication using bcrypt.
type PasswordAuthenticator struct {
	store storage.Store
}

// NewPasswordAuthenticator creates a new password-based authenticator.
func NewPasswordAuthenticator(store storage.Store) *PasswordAuthenticator {
	return &PasswordAuthenticator{store: store}
}

// ValidateCredential checks if the password meets minimum requirements.
func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	if len(credential) < 6 {
		return ErrWeakPassword
	}
	return nil
}

// Register creates a new user account with a hashed password, a zero
// balance, and the member role.
func (a *PasswordAuthenticator) Register(ctx context.Context, username, email, credential string) (*models.User, error) {
	if len(username) < 3 || len(username) > 50 {
		return nil, ErrBadUsername
	}
	if err := a.ValidateCredential(credential); err != nil {
		return nil, err
	}

	// Check if email already exists
	if existing, _, err := storage.GetUserByEmail(ctx, a.store, email); err == nil && existing != nil {
		return nil, ErrEmailExists
	} else if err != nil && !errs.Is(err, errs.NotFound) {
		return nil, err
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.NewUser(username, email, string(hashedPassword))
	user.ID = uuid.New().String()

	if err := storage.PutUser(ctx, a.store, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Authenticate verifies the email and password, returning the user if valid.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, credential string) (*models.User, error) {
	user, _, err := storage.GetUserByEmail(ctx, a.store, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	// Compare password hash
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credential)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}
