package main

import (
	"context"
	"errors"
	"strconv"

	"journiv/internal/bootstrap"
	"journiv/internal/database"
	"journiv/internal/logging"
	"journiv/internal/metrics"
	"journiv/internal/reload"
	"journiv/internal/seed"
)

// recordStartupState exports what happened before the server started. The
// entrypoint and its migrate and seed children exit or exec away before any
// scrape, so their results arrive through the environment and the metadata
// table and are recorded here.
func recordStartupState(ctx context.Context, db *database.Database, getenv func(string) string) {
	metrics.InitializeMetrics([]string{
		bootstrap.StepDirectories,
		bootstrap.StepMigration,
		bootstrap.StepSeeding,
		bootstrap.StepHandoff,
	})

	if outcomes := bootstrap.ParseOutcomes(getenv(bootstrap.OutcomesEnvVar)); len(outcomes) > 0 {
		// Reaching this point is the handoff succeeding. The exec itself is
		// not timed.
		outcomes = append(outcomes, bootstrap.Outcome{
			Step:   bootstrap.StepHandoff,
			Status: bootstrap.StatusSucceeded,
		})
		bootstrap.RecordOutcomes(outcomes)
	}

	metrics.ReloadRestarts.Set(float64(reload.ParseRestarts(getenv(reload.RestartsEnvVar))))

	recordMigrationState(ctx, db)

	for table, key := range map[string]string{
		"mood":   seed.MetaMoodsInserted,
		"prompt": seed.MetaPromptsInserted,
	} {
		n, err := strconv.Atoi(readMetadata(ctx, db, key))
		if err != nil {
			continue
		}
		metrics.SeedRowsInserted.WithLabelValues(table).Set(float64(n))
	}
}

func recordMigrationState(ctx context.Context, db *database.Database) {
	r, err := database.NewJournalMigrationRunner(ctx, db.DB())
	if err != nil {
		logging.Debug("migration metrics: %v", err)
		return
	}
	applied, err := r.Applied(ctx)
	if err != nil {
		logging.Debug("migration metrics: %v", err)
		return
	}
	pending, err := r.Pending(ctx)
	if err != nil {
		logging.Debug("migration metrics: %v", err)
		return
	}
	metrics.SetMigrationState(len(applied), len(pending), readMetadata(ctx, db, database.MetaMigrationFailedVersion))
}

// readMetadata returns "" for keys that are unset or unreadable, including
// when the metadata table does not exist yet.
func readMetadata(ctx context.Context, db *database.Database, key string) string {
	v, err := db.GetMetadata(ctx, key)
	if err != nil {
		if !errors.Is(err, database.ErrMetadataNotFound) {
			logging.Debug("reading metadata %s: %v", key, err)
		}
		return ""
	}
	return v
}
