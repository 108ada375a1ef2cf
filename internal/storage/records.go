package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/trustvault/backend/internal/errs"
	"github.com/trustvault/backend/internal/models"
)

// Typed codecs over the generic Store. Each helper returns the decoded
// entity together with the record version callers need for a
// compare-and-swap write-back.

func getJSON(ctx context.Context, s Store, kind Kind, key string, v any) (int64, error) {
	rec, err := s.Get(ctx, kind, key)
	if err != nil {
		return 0, err
	}
	if err := json.Unmarshal(rec.Data, v); err != nil {
		return 0, fmt.Errorf("failed to decode %s record %s: %w", kind, key, err)
	}
	return rec.Version, nil
}

func marshal(kind Kind, key string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s record %s: %w", kind, key, err)
	}
	return data, nil
}

// --- users ---

func userIndex(u *models.User) map[string]string {
	return map[string]string{IndexEmail: strings.ToLower(u.Email)}
}

// GetUser loads a user by ID.
func GetUser(ctx context.Context, s Store, id string) (*models.User, int64, error) {
	u := &models.User{}
	ver, err := getJSON(ctx, s, KindUsers, id, u)
	if err != nil {
		return nil, 0, err
	}
	return u, ver, nil
}

// GetUserByEmail looks a user up through the email index.
func GetUserByEmail(ctx context.Context, s Store, email string) (*models.User, int64, error) {
	recs, err := s.Query(ctx, KindUsers, IndexEmail, strings.ToLower(email))
	if err != nil {
		return nil, 0, err
	}
	if len(recs) == 0 {
		return nil, 0, errs.Newf(errs.NotFound, "user %s not found", email)
	}
	u := &models.User{}
	if err := json.Unmarshal(recs[0].Data, u); err != nil {
		return nil, 0, fmt.Errorf("failed to decode user record: %w", err)
	}
	return u, recs[0].Version, nil
}

// PutUser creates or replaces a user record.
func PutUser(ctx context.Context, s Store, u *models.User) error {
	data, err := marshal(KindUsers, u.ID, u)
	if err != nil {
		return err
	}
	return s.Put(ctx, KindUsers, u.ID, data, userIndex(u))
}

// UpdateUser writes a user back, conditional on the version read earlier.
func UpdateUser(ctx context.Context, s Store, u *models.User, version int64) error {
	data, err := marshal(KindUsers, u.ID, u)
	if err != nil {
		return err
	}
	return s.Update(ctx, KindUsers, u.ID, version, data, userIndex(u))
}

// --- groups ---

// GetGroup loads a group by ID.
func GetGroup(ctx context.Context, s Store, id string) (*models.Group, int64, error) {
	g := &models.Group{}
	ver, err := getJSON(ctx, s, KindGroups, id, g)
	if err != nil {
		return nil, 0, err
	}
	return g, ver, nil
}

// PutGroup creates or replaces a group record.
func PutGroup(ctx context.Context, s Store, g *models.Group) error {
	data, err := marshal(KindGroups, g.ID, g)
	if err != nil {
		return err
	}
	return s.Put(ctx, KindGroups, g.ID, data, nil)
}

// UpdateGroup writes a group back, conditional on the version read earlier.
func UpdateGroup(ctx context.Context, s Store, g *models.Group, version int64) error {
	data, err := marshal(KindGroups, g.ID, g)
	if err != nil {
		return err
	}
	return s.Update(ctx, KindGroups, g.ID, version, data, nil)
}

// --- transactions ---

func transactionIndex(t *models.Transaction) map[string]string {
	return map[string]string{IndexGroup: t.GroupID}
}

// GetTransaction loads a transaction by ID.
func GetTransaction(ctx context.Context, s Store, id string) (*models.Transaction, int64, error) {
	t := &models.Transaction{}
	ver, err := getJSON(ctx, s, KindTransactions, id, t)
	if err != nil {
		return nil, 0, err
	}
	return t, ver, nil
}

// PutTransaction creates or replaces a transaction record.
func PutTransaction(ctx context.Context, s Store, t *models.Transaction) error {
	data, err := marshal(KindTransactions, t.ID, t)
	if err != nil {
		return err
	}
	return s.Put(ctx, KindTransactions, t.ID, data, transactionIndex(t))
}

// UpdateTransaction writes a transaction back, conditional on version.
func UpdateTransaction(ctx context.Context, s Store, t *models.Transaction, version int64) error {
	data, err := marshal(KindTransactions, t.ID, t)
	if err != nil {
		return err
	}
	return s.Update(ctx, KindTransactions, t.ID, version, data, transactionIndex(t))
}

// TransactionsByGroup returns all transactions of a group, unordered.
func TransactionsByGroup(ctx context.Context, s Store, groupID string) ([]*models.Transaction, error) {
	recs, err := s.Query(ctx, KindTransactions, IndexGroup, groupID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Transaction, 0, len(recs))
	for _, rec := range recs {
		t := &models.Transaction{}
		if err := json.Unmarshal(rec.Data, t); err != nil {
			return nil, fmt.Errorf("failed to decode transaction record %s: %w", rec.Key, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// --- invites ---

func inviteIndex(i *models.Invite) map[string]string {
	return map[string]string{
		IndexEmail: strings.ToLower(i.InviteeEmail),
		IndexGroup: i.GroupID,
	}
}

// GetInvite loads an invite by ID.
func GetInvite(ctx context.Context, s Store, id string) (*models.Invite, int64, error) {
	i := &models.Invite{}
	ver, err := getJSON(ctx, s, KindInvites, id, i)
	if err != nil {
		return nil, 0, err
	}
	return i, ver, nil
}

// PutInvite creates or replaces an invite record.
func PutInvite(ctx context.Context, s Store, i *models.Invite) error {
	data, err := marshal(KindInvites, i.ID, i)
	if err != nil {
		return err
	}
	return s.Put(ctx, KindInvites, i.ID, data, inviteIndex(i))
}

// UpdateInvite writes an invite back, conditional on version.
func UpdateInvite(ctx context.Context, s Store, i *models.Invite, version int64) error {
	data, err := marshal(KindInvites, i.ID, i)
	if err != nil {
		return err
	}
	return s.Update(ctx, KindInvites, i.ID, version, data, inviteIndex(i))
}

// InvitesByEmail returns all invites addressed to email.
func InvitesByEmail(ctx context.Context, s Store, email string) ([]*models.Invite, error) {
	return decodeInvites(ctx, s, IndexEmail, strings.ToLower(email))
}

// InvitesByGroup returns all invites for a group.
func InvitesByGroup(ctx context.Context, s Store, groupID string) ([]*models.Invite, error) {
	return decodeInvites(ctx, s, IndexGroup, groupID)
}

func decodeInvites(ctx context.Context, s Store, index, value string) ([]*models.Invite, error) {
	recs, err := s.Query(ctx, KindInvites, index, value)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Invite, 0, len(recs))
	for _, rec := range recs {
		i := &models.Invite{}
		if err := json.Unmarshal(rec.Data, i); err != nil {
			return nil, fmt.Errorf("failed to decode invite record %s: %w", rec.Key, err)
		}
		out = append(out, i)
	}
	return out, nil
}
