package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// User roles. Only "member" is assigned today; the field exists so future
// roles do not need a schema change.
const (
	RoleMember = "member"
)

// User statuses. Users are never hard-deleted; deactivation flips Status.
const (
	UserActive = "active"
)

// User represents a registered account.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string `json:"userId"`

	// Username is the display name.
	Username string `json:"username"`

	// Email is the unique, lower-cased login address.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the password. Never serialized
	// to API responses; only the store sees it.
	PasswordHash string `json:"passwordHash,omitempty"`

	// Role is the user's role (RoleMember today).
	Role string `json:"role"`

	// Status is the account status (UserActive today).
	Status string `json:"status"`

	// Balance is the user's personal liquid balance, debited by deposits
	// into groups. Never negative.
	Balance decimal.Decimal `json:"balance"`

	// Groups is the denormalized list of group IDs the user belongs to.
	// The group roster is authoritative; this view is kept in step by the
	// membership saga and repaired by the reconciliation sweep.
	Groups []string `json:"groups"`

	// CreatedAt is when the account was registered (UTC).
	CreatedAt time.Time `json:"createdAt"`
}

// NewUser returns an active member account with a zero balance.
// The caller supplies the already-hashed credential.
func NewUser(username, email, passwordHash string) *User {
	return &User{
		Username:     username,
		Email:        strings.ToLower(email),
		PasswordHash: passwordHash,
		Role:         RoleMember,
		Status:       UserActive,
		Balance:      decimal.Zero,
		Groups:       []string{},
		CreatedAt:    time.Now().UTC(),
	}
}

// InGroup reports whether the user's membership view contains groupID.
func (u *User) InGroup(groupID string) bool {
	for _, id := range u.Groups {
		if id == groupID {
			return true
		}
	}
	return false
}
