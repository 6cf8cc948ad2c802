package handlers

import (
	"time"

	"journiv/internal/database"
	"journiv/internal/metrics"
)

type Handlers struct {
	db        *database.Database
	degraded  []string
	startTime time.Time
}

// New creates the handlers. degraded lists the bootstrap steps that failed
// without aborting startup.
func New(db *database.Database, degraded []string) *Handlers {
	for _, step := range degraded {
		metrics.BootstrapDegraded.WithLabelValues(step).Set(1)
	}
	return &Handlers{
		db:        db,
		degraded:  degraded,
		startTime: time.Now(),
	}
}

// Degraded returns the bootstrap steps that failed during startup.
func (h *Handlers) Degraded() []string {
	out := make([]string, len(h.degraded))
	copy(out, h.degraded)
	return out
}
