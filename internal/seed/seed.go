package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"journiv/internal/database"
	"journiv/internal/logging"
)

// Version identifies the reference data set. Bump it when the defaults change.
const Version = "1"

// Metadata keys written after a successful run. The server reads them back
// for /health and the journiv_seed_rows_inserted metric.
const (
	MetaLastRun         = "seed.last_run"
	MetaVersion         = "seed.version"
	MetaMoodsInserted   = "seed.moods_inserted"
	MetaPromptsInserted = "seed.prompts_inserted"
)

// ErrSchemaNotReady is returned when a reference table is missing.
var ErrSchemaNotReady = errors.New("schema not ready")

// requiredTables must exist before anything is inserted.
var requiredTables = []string{"mood", "prompt", "metadata"}

// Result reports how many rows a run inserted.
type Result struct {
	MoodsInserted   int
	PromptsInserted int
}

// Seeder inserts the default reference data.
type Seeder struct {
	db      *database.Database
	moods   []Mood
	prompts []Prompt
	now     func() time.Time
}

// New creates a seeder for the default moods and prompts.
func New(db *database.Database) *Seeder {
	return &Seeder{
		db:      db,
		moods:   DefaultMoods,
		prompts: DefaultPrompts,
		now:     time.Now,
	}
}

// Seed inserts any missing default rows in a single transaction.
func (s *Seeder) Seed(ctx context.Context) (Result, error) {
	var res Result

	for _, table := range requiredTables {
		ok, err := s.db.TableExists(ctx, table)
		if err != nil {
			return res, err
		}
		if !ok {
			return res, fmt.Errorf("%w: table %s does not exist", ErrSchemaNotReady, table)
		}
	}

	now := s.now().UTC()
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, m := range s.moods {
			inserted, err := insertMood(ctx, tx, m, now)
			if err != nil {
				return err
			}
			if inserted {
				res.MoodsInserted++
			}
		}

		for _, p := range s.prompts {
			inserted, err := insertPrompt(ctx, tx, p, now)
			if err != nil {
				return err
			}
			if inserted {
				res.PromptsInserted++
			}
		}

		for _, kv := range [][2]string{
			{MetaLastRun, now.Format(time.RFC3339)},
			{MetaVersion, Version},
			{MetaMoodsInserted, strconv.Itoa(res.MoodsInserted)},
			{MetaPromptsInserted, strconv.Itoa(res.PromptsInserted)},
		} {
			if err := database.SetMetadataTx(ctx, tx, kv[0], kv[1]); err != nil {
				return fmt.Errorf("failed to record seed run: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	logging.Info("  Moods: %d inserted, %d already present", res.MoodsInserted, len(s.moods)-res.MoodsInserted)
	logging.Info("  Prompts: %d inserted, %d already present", res.PromptsInserted, len(s.prompts)-res.PromptsInserted)
	return res, nil
}

func insertMood(ctx context.Context, tx *sql.Tx, m Mood, now time.Time) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO mood (id, name, icon, category, created_at)
		SELECT ?, ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM mood WHERE name = ?)
	`, uuid.NewString(), m.Name, m.Icon, m.Category, now, m.Name)
	if err != nil {
		return false, fmt.Errorf("failed to seed mood %s: %w", m.Name, err)
	}
	ok, err := inserted(result)
	if err != nil {
		return false, fmt.Errorf("failed to seed mood %s: %w", m.Name, err)
	}
	return ok, nil
}

func insertPrompt(ctx context.Context, tx *sql.Tx, p Prompt, now time.Time) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO prompt (id, text, category, difficulty_level, estimated_time, is_active, created_at)
		SELECT ?, ?, ?, ?, ?, 1, ?
		WHERE NOT EXISTS (SELECT 1 FROM prompt WHERE text = ?)
	`, uuid.NewString(), p.Text, p.Category, p.Difficulty, p.EstimatedTime, now, p.Text)
	if err != nil {
		return false, fmt.Errorf("failed to seed prompt %q: %w", p.Text, err)
	}
	ok, err := inserted(result)
	if err != nil {
		return false, fmt.Errorf("failed to seed prompt %q: %w", p.Text, err)
	}
	return ok, nil
}

// inserted reports whether an INSERT ... WHERE NOT EXISTS added a row.
func inserted(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
