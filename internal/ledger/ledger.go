// Package ledger owns group records and the membership relation between
// groups and users.
//
// A membership lives in two places: the group's roster (authoritative) and
// the user's denormalized groups view. The store offers no multi-item
// transaction, so every cross-entity mutation runs as a compensating-action
// saga: mutate the roster first with a conditional update, then the user
// view, and roll the roster back if the user-side write fails. The window
// between the two writes is a real consistency gap; when compensation
// itself fails it is logged as an operational inconsistency and repaired by
// the Reconcile sweep.
package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/trustvault/backend/internal/errs"
	"github.com/trustvault/backend/internal/models"
	"github.com/trustvault/backend/internal/storage"
)

// casAttempts bounds the optimistic-concurrency retry loop on every
// conditional update. Exhaustion surfaces as errs.Conflict.
const casAttempts = 3

// retryDelay spaces CAS retries apart.
const retryDelay = 10 * time.Millisecond

// Ledger maintains groups and their bidirectional membership records.
type Ledger struct {
	store storage.Store
}

// New creates a Ledger over the given store.
func New(store storage.Store) *Ledger {
	return &Ledger{store: store}
}

// CreateGroup creates a group owned by ownerID with the owner as sole
// member, and records the membership on the owner's user record. If the
// user-side write fails the group record is removed again.
func (l *Ledger) CreateGroup(ctx context.Context, ownerID, name string) (*models.Group, error) {
	if len(name) < 3 || len(name) > 100 {
		return nil, errs.New(errs.InvalidArgument, "group name must be 3-100 characters")
	}
	if _, _, err := storage.GetUser(ctx, l.store, ownerID); err != nil {
		return nil, err
	}

	group := models.NewGroup(ownerID, name)
	group.ID = uuid.New().String()
	if err := storage.PutGroup(ctx, l.store, group); err != nil {
		return nil, err
	}

	if err := l.addGroupToUser(ctx, ownerID, group.ID); err != nil {
		slog.Error("group creation saga failed, removing group record",
			"group_id", group.ID, "owner_id", ownerID, "error", err)
		if delErr := l.store.Delete(ctx, storage.KindGroups, group.ID); delErr != nil {
			slog.Error("group creation compensation failed, orphan group record",
				"group_id", group.ID, "error", delErr)
		}
		return nil, err
	}

	slog.Info("Group created", "group_id", group.ID, "owner_id", ownerID, "name", name)
	return group, nil
}

// GetGroup retrieves a group by ID.
func (l *Ledger) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	g, _, err := storage.GetGroup(ctx, l.store, groupID)
	return g, err
}

// UserGroups returns the groups the user belongs to, resolved through the
// user's membership view. Dangling references (group since deleted) are
// skipped.
func (l *Ledger) UserGroups(ctx context.Context, userID string) ([]*models.Group, error) {
	user, _, err := storage.GetUser(ctx, l.store, userID)
	if err != nil {
		return nil, err
	}
	groups := make([]*models.Group, 0, len(user.Groups))
	for _, id := range user.Groups {
		g, _, err := storage.GetGroup(ctx, l.store, id)
		if errs.Is(err, errs.NotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// AddMember adds userID to the group's roster and mirrors the membership
// onto the user record. Idempotent: adding an existing member succeeds
// without mutation. The roster append is a conditional update retried up
// to casAttempts times against fresh state; the user-side write failing
// triggers a compensating roster rollback.
func (l *Ledger) AddMember(ctx context.Context, groupID, userID string) error {
	if _, _, err := storage.GetUser(ctx, l.store, userID); err != nil {
		return err
	}

	appended := false
	err := l.casGroup(ctx, groupID, func(g *models.Group) error {
		if g.HasMember(userID) {
			appended = false
			return errSkipWrite
		}
		g.Members = append(g.Members, userID)
		g.MemberCount = len(g.Members)
		appended = true
		return nil
	})
	if err != nil {
		return err
	}
	if !appended {
		// Already on the roster; make sure the user view agrees.
		return l.addGroupToUser(ctx, userID, groupID)
	}

	if err := l.addGroupToUser(ctx, userID, groupID); err != nil {
		slog.Error("membership saga failed, rolling back roster append",
			"group_id", groupID, "user_id", userID, "error", err)
		compErr := l.casGroup(ctx, groupID, func(g *models.Group) error {
			if !g.HasMember(userID) {
				return errSkipWrite
			}
			g.Members = removeString(g.Members, userID)
			g.MemberCount = len(g.Members)
			return nil
		})
		if compErr != nil {
			// Roster and membership view now disagree until Reconcile runs.
			slog.Error("membership saga compensation failed, roster and user view disagree",
				"group_id", groupID, "user_id", userID, "error", compErr)
		}
		return errs.Wrap(errs.Conflict, "failed to record membership", err)
	}

	slog.Info("Member added", "group_id", groupID, "user_id", userID)
	return nil
}

// RemoveMember removes userID from the roster and from the user's
// membership view. The owner can never be removed. Removing a non-member
// fails NotFound. A user-side failure triggers a compensating re-append so
// the bidirectional invariant holds.
func (l *Ledger) RemoveMember(ctx context.Context, groupID, userID string) error {
	g, _, err := storage.GetGroup(ctx, l.store, groupID)
	if err != nil {
		return err
	}
	if g.IsOwner(userID) {
		return errs.New(errs.InvalidArgument, "cannot remove the group owner")
	}
	if !g.HasMember(userID) {
		return errs.Newf(errs.NotFound, "user %s is not a member of group %s", userID, groupID)
	}

	if err := l.casGroup(ctx, groupID, func(g *models.Group) error {
		if g.IsOwner(userID) {
			return errs.New(errs.InvalidArgument, "cannot remove the group owner")
		}
		if !g.HasMember(userID) {
			return errSkipWrite
		}
		g.Members = removeString(g.Members, userID)
		g.MemberCount = len(g.Members)
		return nil
	}); err != nil {
		return err
	}

	if err := l.removeGroupFromUser(ctx, userID, groupID); err != nil {
		slog.Error("removal saga failed, restoring roster entry",
			"group_id", groupID, "user_id", userID, "error", err)
		compErr := l.casGroup(ctx, groupID, func(g *models.Group) error {
			if g.HasMember(userID) {
				return errSkipWrite
			}
			g.Members = append(g.Members, userID)
			g.MemberCount = len(g.Members)
			return nil
		})
		if compErr != nil {
			slog.Error("removal saga compensation failed, roster and user view disagree",
				"group_id", groupID, "user_id", userID, "error", compErr)
		}
		return errs.Wrap(errs.Conflict, "failed to remove membership", err)
	}

	slog.Info("Member removed", "group_id", groupID, "user_id", userID)
	return nil
}

// DeleteGroup deletes a group. Owner only. The group reference is removed
// from every member's membership view before the group record goes away;
// per-member failures are logged and skipped so one broken user record
// cannot block the cascade.
func (l *Ledger) DeleteGroup(ctx context.Context, groupID, requesterID string) error {
	g, _, err := storage.GetGroup(ctx, l.store, groupID)
	if err != nil {
		return err
	}
	if !g.IsOwner(requesterID) {
		return errs.New(errs.Forbidden, "only the group owner can delete the group")
	}

	for _, memberID := range g.Members {
		if err := l.removeGroupFromUser(ctx, memberID, groupID); err != nil {
			slog.Error("failed to remove group from member view during delete",
				"group_id", groupID, "user_id", memberID, "error", err)
		}
	}

	if err := l.store.Delete(ctx, storage.KindGroups, groupID); err != nil {
		return err
	}
	slog.Info("Group deleted", "group_id", groupID, "requester_id", requesterID)
	return nil
}

// IsMember reports whether userID is on the group's roster.
func (l *Ledger) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	g, _, err := storage.GetGroup(ctx, l.store, groupID)
	if err != nil {
		return false, err
	}
	return g.HasMember(userID), nil
}

// IsOwner reports whether userID created the group.
func (l *Ledger) IsOwner(ctx context.Context, groupID, userID string) (bool, error) {
	g, _, err := storage.GetGroup(ctx, l.store, groupID)
	if err != nil {
		return false, err
	}
	return g.IsOwner(userID), nil
}

// Members returns the group's roster in join order.
func (l *Ledger) Members(ctx context.Context, groupID string) ([]string, error) {
	g, _, err := storage.GetGroup(ctx, l.store, groupID)
	if err != nil {
		return nil, err
	}
	return g.Members, nil
}

// errSkipWrite aborts a casGroup loop without writing; the mutation turned
// out to be a no-op against current state.
var errSkipWrite = errs.New(errs.Conflict, "skip write")

// casGroup runs read-mutate-conditional-write on a group, re-reading fresh
// state on every version conflict, bounded by casAttempts.
func (l *Ledger) casGroup(ctx context.Context, groupID string, mutate func(*models.Group) error) error {
	var lastErr error
	for attempt := 0; attempt < casAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(retryDelay)
		}
		g, version, err := storage.GetGroup(ctx, l.store, groupID)
		if err != nil {
			return err
		}
		if err := mutate(g); err != nil {
			if err == errSkipWrite {
				return nil
			}
			return err
		}
		err = storage.UpdateGroup(ctx, l.store, g, version)
		if err == nil {
			return nil
		}
		if !errs.Is(err, errs.Conflict) {
			return err
		}
		lastErr = err
	}
	return errs.Wrap(errs.Conflict, "group update lost the race after retries", lastErr)
}

// casUser is casGroup for user records.
func (l *Ledger) casUser(ctx context.Context, userID string, mutate func(*models.User) error) error {
	var lastErr error
	for attempt := 0; attempt < casAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(retryDelay)
		}
		u, version, err := storage.GetUser(ctx, l.store, userID)
		if err != nil {
			return err
		}
		if err := mutate(u); err != nil {
			if err == errSkipWrite {
				return nil
			}
			return err
		}
		err = storage.UpdateUser(ctx, l.store, u, version)
		if err == nil {
			return nil
		}
		if !errs.Is(err, errs.Conflict) {
			return err
		}
		lastErr = err
	}
	return errs.Wrap(errs.Conflict, "user update lost the race after retries", lastErr)
}

func (l *Ledger) addGroupToUser(ctx context.Context, userID, groupID string) error {
	return l.casUser(ctx, userID, func(u *models.User) error {
		if u.InGroup(groupID) {
			return errSkipWrite
		}
		u.Groups = append(u.Groups, groupID)
		return nil
	})
}

func (l *Ledger) removeGroupFromUser(ctx context.Context, userID, groupID string) error {
	return l.casUser(ctx, userID, func(u *models.User) error {
		if !u.InGroup(groupID) {
			return errSkipWrite
		}
		u.Groups = removeString(u.Groups, groupID)
		return nil
	})
}

func removeString(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
