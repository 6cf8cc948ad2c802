package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"journiv/internal/database"
	"journiv/internal/logging"
	"journiv/internal/seed"
	"journiv/internal/startup"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert default moods and writing prompts",
	Long: `Seed inserts the default moods and writing prompts that are not already
present. It never creates tables: run "journiv migrate upgrade" first.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	startup.LogSection("SEED")

	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	res, err := seed.New(db).Seed(ctx)
	if err != nil {
		return fmt.Errorf("seeding: %w", err)
	}
	logging.Info("  Seeded %d mood(s) and %d prompt(s)", res.MoodsInserted, res.PromptsInserted)
	return nil
}
