package models

import (
	"strings"
	"time"
)

// InviteStatus is the lifecycle state of an invite. pending is the only
// non-terminal state; an invite is consumed exactly once.
type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteDeclined InviteStatus = "declined"
)

// Invite is an email-addressed offer of group membership, created by a
// group owner and accepted or declined by the recipient.
type Invite struct {
	// ID is the unique identifier for the invite (UUID format).
	ID string `json:"inviteId"`

	// GroupID is the group the invite grants membership to.
	GroupID string `json:"groupId"`

	// InviterID is the user who sent the invite.
	InviterID string `json:"inviterId"`

	// InviteeEmail is the lower-cased address of the recipient. Matched
	// case-insensitively against the accepting user's email.
	InviteeEmail string `json:"inviteeEmail"`

	// Status is pending until accepted or declined.
	Status InviteStatus `json:"status"`

	// CreatedAt is when the invite was sent (UTC).
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is when the status last changed (UTC).
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewInvite returns a pending invite addressed to email.
func NewInvite(groupID, inviterID, email string) *Invite {
	now := time.Now().UTC()
	return &Invite{
		GroupID:      groupID,
		InviterID:    inviterID,
		InviteeEmail: strings.ToLower(email),
		Status:       InvitePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// AddressedTo reports whether the invite targets email, ignoring case.
func (i *Invite) AddressedTo(email string) bool {
	return i.InviteeEmail == strings.ToLower(email)
}
