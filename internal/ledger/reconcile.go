package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/trustvault/backend/internal/errs"
	"github.com/trustvault/backend/internal/models"
	"github.com/trustvault/backend/internal/storage"
)

// Drift is one group whose stored memberCount disagrees with its roster.
type Drift struct {
	GroupID string
	Stored  int
	Actual  int
}

// Reconcile sweeps every group and reports stored memberCount values that
// disagree with len(members). With apply set, each drifting count is fixed
// with a conditional update. This is the operational repair tool for the
// consistency gap the membership saga can leave behind.
func (l *Ledger) Reconcile(ctx context.Context, apply bool) ([]Drift, error) {
	recs, err := l.store.Scan(ctx, storage.KindGroups)
	if err != nil {
		return nil, err
	}

	var drifts []Drift
	for _, rec := range recs {
		g := &models.Group{}
		if err := json.Unmarshal(rec.Data, g); err != nil {
			return nil, fmt.Errorf("failed to decode group record %s: %w", rec.Key, err)
		}
		if g.MemberCount == len(g.Members) {
			continue
		}
		drifts = append(drifts, Drift{GroupID: g.ID, Stored: g.MemberCount, Actual: len(g.Members)})

		if !apply {
			continue
		}
		err := l.casGroup(ctx, g.ID, func(g *models.Group) error {
			if g.MemberCount == len(g.Members) {
				return errSkipWrite
			}
			g.MemberCount = len(g.Members)
			return nil
		})
		if errs.Is(err, errs.NotFound) {
			continue
		}
		if err != nil {
			return drifts, err
		}
		slog.Info("Reconciled member count", "group_id", g.ID, "count", len(g.Members))
	}
	return drifts, nil
}
