// Package invite mediates consensual membership changes: a group owner
// addresses an invite to an email, and the recipient accepts or declines
// it exactly once. Acceptance feeds into the membership ledger; the invite
// only flips to accepted after the membership write succeeds, so a failed
// add leaves the invite pending and retryable.
package invite

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/trustvault/backend/internal/errs"
	"github.com/trustvault/backend/internal/ledger"
	"github.com/trustvault/backend/internal/models"
	"github.com/trustvault/backend/internal/storage"
)

// Workflow manages invite records and the handoff into the ledger.
type Workflow struct {
	store  storage.Store
	groups *ledger.Ledger
}

// New creates a Workflow.
func New(store storage.Store, groups *ledger.Ledger) *Workflow {
	return &Workflow{store: store, groups: groups}
}

// Create sends an invite for email to join groupID. Only the group owner
// may invite. The store enforces no uniqueness, so a pending invite for
// the same (group, email) pair is checked for here and rejected.
func (w *Workflow) Create(ctx context.Context, groupID, inviterID, email string) (*models.Invite, error) {
	if email == "" {
		return nil, errs.New(errs.InvalidArgument, "invitee email required")
	}
	owner, err := w.groups.IsOwner(ctx, groupID, inviterID)
	if err != nil {
		return nil, err
	}
	if !owner {
		return nil, errs.New(errs.Forbidden, "only group owners can send invites")
	}

	if existing, err := w.CheckExisting(ctx, groupID, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, errs.Newf(errs.Conflict, "a pending invite for %s already exists", existing.InviteeEmail)
	}

	inv := models.NewInvite(groupID, inviterID, email)
	inv.ID = uuid.New().String()
	if err := storage.PutInvite(ctx, w.store, inv); err != nil {
		return nil, err
	}

	slog.Info("Invite created",
		"invite_id", inv.ID, "group_id", groupID,
		"inviter_id", inviterID, "invitee_email", inv.InviteeEmail)
	return inv, nil
}

// CheckExisting returns the pending invite for (group, email), or nil.
func (w *Workflow) CheckExisting(ctx context.Context, groupID, email string) (*models.Invite, error) {
	invites, err := storage.InvitesByEmail(ctx, w.store, email)
	if err != nil {
		return nil, err
	}
	for _, inv := range invites {
		if inv.GroupID == groupID && inv.Status == models.InvitePending {
			return inv, nil
		}
	}
	return nil, nil
}

// PendingForEmail returns all pending invites addressed to email.
func (w *Workflow) PendingForEmail(ctx context.Context, email string) ([]*models.Invite, error) {
	invites, err := storage.InvitesByEmail(ctx, w.store, email)
	if err != nil {
		return nil, err
	}
	pending := invites[:0]
	for _, inv := range invites {
		if inv.Status == models.InvitePending {
			pending = append(pending, inv)
		}
	}
	return pending, nil
}

// ForGroup returns every invite for a group, any status. Owner only.
func (w *Workflow) ForGroup(ctx context.Context, groupID, requesterID string) ([]*models.Invite, error) {
	owner, err := w.groups.IsOwner(ctx, groupID, requesterID)
	if err != nil {
		return nil, err
	}
	if !owner {
		return nil, errs.New(errs.Forbidden, "only group owners can view group invites")
	}
	return storage.InvitesByGroup(ctx, w.store, groupID)
}

// Accept consumes a pending invite on behalf of the user whose email it
// addresses, adds them to the group, and marks the invite accepted. The
// status flip happens last: if the membership add fails, the invite stays
// pending so the user can retry.
func (w *Workflow) Accept(ctx context.Context, inviteID, userID, userEmail string) (string, error) {
	inv, version, err := storage.GetInvite(ctx, w.store, inviteID)
	if err != nil {
		return "", err
	}
	if !inv.AddressedTo(userEmail) {
		return "", errs.New(errs.Forbidden, "this invite is not for you")
	}
	if inv.Status != models.InvitePending {
		return "", errs.Newf(errs.InvalidState, "invite already %s", inv.Status)
	}

	if err := w.groups.AddMember(ctx, inv.GroupID, userID); err != nil {
		return "", err
	}

	inv.Status = models.InviteAccepted
	inv.UpdatedAt = time.Now().UTC()
	if err := storage.UpdateInvite(ctx, w.store, inv, version); err != nil {
		// Membership stuck; the invite stays pending and a retried accept
		// will no-op on the idempotent AddMember.
		return "", err
	}

	slog.Info("Invite accepted", "invite_id", inviteID, "group_id", inv.GroupID, "user_id", userID)
	return inv.GroupID, nil
}

// Decline marks a pending invite declined, keeping the record.
func (w *Workflow) Decline(ctx context.Context, inviteID, userEmail string) error {
	inv, version, err := storage.GetInvite(ctx, w.store, inviteID)
	if err != nil {
		return err
	}
	if !inv.AddressedTo(userEmail) {
		return errs.New(errs.Forbidden, "this invite is not for you")
	}
	if inv.Status != models.InvitePending {
		return errs.Newf(errs.InvalidState, "invite already %s", inv.Status)
	}

	inv.Status = models.InviteDeclined
	inv.UpdatedAt = time.Now().UTC()
	if err := storage.UpdateInvite(ctx, w.store, inv, version); err != nil {
		return err
	}

	slog.Info("Invite declined", "invite_id", inviteID, "group_id", inv.GroupID)
	return nil
}

// Cancel removes an invite outright. Only the original inviter or the
// group owner may cancel; unlike Decline, no record is kept.
func (w *Workflow) Cancel(ctx context.Context, inviteID, requesterID string) error {
	inv, _, err := storage.GetInvite(ctx, w.store, inviteID)
	if err != nil {
		return err
	}
	if inv.InviterID != requesterID {
		owner, err := w.groups.IsOwner(ctx, inv.GroupID, requesterID)
		if err != nil && !errs.Is(err, errs.NotFound) {
			return err
		}
		if !owner {
			return errs.New(errs.Forbidden, "only the inviter or group owner can cancel invites")
		}
	}

	if err := w.store.Delete(ctx, storage.KindInvites, inviteID); err != nil {
		return err
	}
	slog.Info("Invite cancelled", "invite_id", inviteID, "requester_id", requesterID)
	return nil
}
