package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Group statuses.
const (
	GroupActive = "active"
)

// Group represents a savings pool governed by majority vote.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string `json:"groupId"`

	// Name is the display name of the group.
	Name string `json:"name"`

	// CreatedBy is the owner's user ID. Immutable after creation; the
	// owner is always the first member and can never be removed while
	// the group exists.
	CreatedBy string `json:"createdBy"`

	// Members is the ordered roster of member user IDs (join order).
	// This list is the authoritative membership record.
	Members []string `json:"members"`

	// MemberCount mirrors len(Members). It is recomputed on every roster
	// mutation and reconciled by the operational sweep; treat a stored
	// value as a cache.
	MemberCount int `json:"memberCount"`

	// Balance is the group's liquid (uncommitted) cash. Never negative.
	Balance decimal.Decimal `json:"balance"`

	// InvestedAmount is cash locked in open positions. Never negative.
	InvestedAmount decimal.Decimal `json:"investedAmount"`

	// Status is the group status (GroupActive today).
	Status string `json:"status"`

	// CreatedAt is when the group was created (UTC).
	CreatedAt time.Time `json:"createdAt"`
}

// NewGroup returns an active group owned by ownerID, with the owner as the
// sole member and zero balances.
func NewGroup(ownerID, name string) *Group {
	return &Group{
		Name:           name,
		CreatedBy:      ownerID,
		Members:        []string{ownerID},
		MemberCount:    1,
		Balance:        decimal.Zero,
		InvestedAmount: decimal.Zero,
		Status:         GroupActive,
		CreatedAt:      time.Now().UTC(),
	}
}

// HasMember reports whether userID is on the roster.
func (g *Group) HasMember(userID string) bool {
	for _, id := range g.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// IsOwner reports whether userID created the group.
func (g *Group) IsOwner(userID string) bool {
	return g.CreatedBy == userID
}

// TotalAssets is the group's liquid balance plus its invested amount.
// Always derived, never stored.
func (g *Group) TotalAssets() decimal.Decimal {
	return g.Balance.Add(g.InvestedAmount)
}
