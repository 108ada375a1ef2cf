// Command reconcile sweeps every group and repairs memberCount values
// that drifted from the roster length. Dry run by default; pass -apply to
// write fixes.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/trustvault/backend/internal/ledger"
	"github.com/trustvault/backend/internal/storage/sqlite"
	"github.com/trustvault/backend/pkg/logging"
)

func main() {
	var (
		dbPath = flag.String("db", "./data/trustvault.db", "SQLite database file")
		apply  = flag.Bool("apply", false, "write fixes instead of reporting only")
	)
	flag.Parse()
	logging.Setup()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		slog.Error("Failed to open database", "error", err, "path", *dbPath)
		os.Exit(1)
	}
	defer store.Close()

	drifts, err := ledger.New(store).Reconcile(context.Background(), *apply)
	if err != nil {
		slog.Error("Reconcile failed", "error", err)
		os.Exit(1)
	}

	if len(drifts) == 0 {
		slog.Info("All member counts consistent")
		return
	}
	for _, d := range drifts {
		slog.Warn("Member count drift",
			"group_id", d.GroupID, "stored", d.Stored, "actual", d.Actual, "fixed", *apply)
	}
	slog.Info("Reconcile complete", "drifting_groups", len(drifts), "applied", *apply)
}
