package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"journiv/internal/database"
	"journiv/internal/logging"
	"journiv/internal/startup"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the journal database schema",
}

var migrateUpgradeCmd = &cobra.Command{
	Use:   "upgrade [revision]",
	Short: "Apply pending migrations up to revision (default head)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := database.HeadRevision
		if len(args) == 1 {
			target = args[0]
		}
		return withMigrationRunner(cmd.Context(), func(ctx context.Context, db *database.Database, r *database.MigrationRunner) error {
			startup.LogSection("MIGRATE: upgrade " + target)
			n, err := r.Upgrade(ctx, target)
			recordUpgradeResult(ctx, db, err)
			if err != nil {
				return err
			}
			current, err := r.Current(ctx)
			if err != nil {
				return err
			}
			logging.Info("  Applied %d migration(s); schema at %s", n, orNone(current))
			return nil
		})
	},
}

var migrateDowngradeReason string

var migrateDowngradeCmd = &cobra.Command{
	Use:   "downgrade <revision|base>",
	Short: "Roll back applied migrations newer than revision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrationRunner(cmd.Context(), func(ctx context.Context, _ *database.Database, r *database.MigrationRunner) error {
			startup.LogSection("MIGRATE: downgrade " + args[0])
			n, err := r.Downgrade(ctx, args[0], migrateDowngradeReason)
			if err != nil {
				return err
			}
			current, err := r.Current(ctx)
			if err != nil {
				return err
			}
			logging.Info("  Rolled back %d migration(s); schema at %s", n, orNone(current))
			return nil
		})
	},
}

var migrateCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Print the applied schema revision",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrationRunner(cmd.Context(), func(ctx context.Context, _ *database.Database, r *database.MigrationRunner) error {
			current, err := r.Current(ctx)
			if err != nil {
				return err
			}
			head := ""
			if current == r.Head() {
				head = " (head)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", orNone(current), head)
			return nil
		})
	},
}

var migrateHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List registered migrations and whether they are applied",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrationRunner(cmd.Context(), func(ctx context.Context, _ *database.Database, r *database.MigrationRunner) error {
			applied, err := r.Applied(ctx)
			if err != nil {
				return err
			}
			appliedAt := make(map[string]string, len(applied))
			for _, rec := range applied {
				appliedAt[rec.Version] = rec.AppliedAt.Format("2006-01-02 15:04:05")
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
			for _, m := range r.Migrations() {
				at, ok := appliedAt[m.Version]
				if !ok {
					at = "pending"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Version, m.Name, at)
			}
			return tw.Flush()
		})
	},
}

func init() {
	migrateDowngradeCmd.Flags().StringVar(&migrateDowngradeReason, "reason", "manual downgrade", "reason recorded with the rollback")

	migrateCmd.AddCommand(migrateUpgradeCmd)
	migrateCmd.AddCommand(migrateDowngradeCmd)
	migrateCmd.AddCommand(migrateCurrentCmd)
	migrateCmd.AddCommand(migrateHistoryCmd)
}

// withMigrationRunner opens the configured database with the journal
// migrations registered and closes it when fn returns.
func withMigrationRunner(ctx context.Context, fn func(context.Context, *database.Database, *database.MigrationRunner) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	r, err := database.NewJournalMigrationRunner(ctx, db.DB())
	if err != nil {
		return err
	}
	return fn(ctx, db, r)
}

// recordUpgradeResult leaves the failed version (or none) in metadata for the
// server, which exports it as journiv_migration_failed. It is best effort: a
// failed 1.0.0 leaves no metadata table to write to.
func recordUpgradeResult(ctx context.Context, db *database.Database, upgradeErr error) {
	failedVersion, message := "", ""
	var merr *database.MigrationError
	if errors.As(upgradeErr, &merr) {
		failedVersion, message = merr.Version, firstLine(merr.Err.Error())
	}

	if ok, err := db.TableExists(ctx, "metadata"); err != nil || !ok {
		return
	}
	if err := db.SetMetadata(ctx, database.MetaMigrationFailedVersion, failedVersion); err != nil {
		logging.Warn("  Could not record migration result: %v", err)
		return
	}
	if err := db.SetMetadata(ctx, database.MetaMigrationError, message); err != nil {
		logging.Warn("  Could not record migration result: %v", err)
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func orNone(version string) string {
	if version == "" {
		return "<base>"
	}
	return version
}
