package bootstrap

import (
	"errors"
	"fmt"
)

// ErrNoHandoff is returned by Run when the sequencer was built without a handoff.
var ErrNoHandoff = errors.New("bootstrap: no handoff configured")

// FatalStartupError aborts the startup sequence. No later step runs.
type FatalStartupError struct {
	Step string
	Err  error
}

func (e *FatalStartupError) Error() string {
	return fmt.Sprintf("fatal startup error in %s step: %v", e.Step, e.Err)
}

func (e *FatalStartupError) Unwrap() error { return e.Err }

// DegradedMigration records a failed schema migration. Startup continues and
// the server falls back to creating missing tables itself.
type DegradedMigration struct {
	Err error
}

func (e *DegradedMigration) Error() string {
	return fmt.Sprintf("migration degraded: %v", e.Err)
}

func (e *DegradedMigration) Unwrap() error { return e.Err }

// DegradedSeeding records a failed seeding run. Seeding is best effort.
type DegradedSeeding struct {
	Err error
}

func (e *DegradedSeeding) Error() string {
	return fmt.Sprintf("seeding degraded: %v", e.Err)
}

func (e *DegradedSeeding) Unwrap() error { return e.Err }
