package bootstrap

import (
	"context"
	"fmt"
	"time"

	"journiv/internal/logging"
	"journiv/internal/startup"
)

// Step names used by the journiv entrypoint.
const (
	StepDirectories = "directories"
	StepMigration   = "migration"
	StepSeeding     = "seeding"
	StepHandoff     = "handoff"
)

// Policy decides what a step failure does to the rest of the sequence.
type Policy int

const (
	// PolicyFatal aborts the sequence when the step fails.
	PolicyFatal Policy = iota
	// PolicyDegrade logs the failure and continues with the next step.
	PolicyDegrade
)

func (p Policy) String() string {
	switch p {
	case PolicyFatal:
		return "fatal"
	case PolicyDegrade:
		return "degrade"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// Status is the tagged result of a single step.
type Status int

const (
	// StatusSucceeded means the step returned no error.
	StatusSucceeded Status = iota
	// StatusFailedContinue means a degrade step failed and the sequence went on.
	StatusFailedContinue
	// StatusFailedAbort means a fatal step failed and the sequence stopped.
	StatusFailedAbort
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailedContinue:
		return "failed_continue"
	case StatusFailedAbort:
		return "failed_abort"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Step is one unit of the startup sequence.
type Step struct {
	Name   string
	Policy Policy
	Run    func(ctx context.Context) error

	// Warning prefixes the log line when a degrade step fails.
	Warning string
	// Degraded wraps the failure of a degrade step, e.g. into *DegradedMigration.
	Degraded func(error) error
	// After names an earlier step this one relies on. If that step degraded,
	// a warning is logged but this step still runs.
	After string
}

// Outcome records how a step ended.
type Outcome struct {
	Step     string
	Status   Status
	Err      error
	Duration time.Duration
}

// Handoff starts the long-running server. It receives the outcome of every
// step. A successful handoff replaces the process and never returns; a
// returned error means the server could not be started.
type Handoff func(ctx context.Context, outcomes []Outcome) error

// Sequencer runs steps in order and finishes with the handoff.
type Sequencer struct {
	steps    []Step
	handoff  Handoff
	outcomes []Outcome
}

// New creates a sequencer for the given handoff and steps.
func New(handoff Handoff, steps ...Step) *Sequencer {
	return &Sequencer{
		steps:   steps,
		handoff: handoff,
	}
}

// Run executes every step once, in order, then hands off to the server.
// It returns a *FatalStartupError when a fatal step or the handoff fails,
// or when ctx is cancelled: a stop request never turns into a server start.
// A nil return means the handed-off server exited on its own.
func (s *Sequencer) Run(ctx context.Context) error {
	for _, step := range s.steps {
		if err := ctx.Err(); err != nil {
			return s.interrupted(step.Name, err)
		}

		outcome := s.runStep(ctx, step)
		s.outcomes = append(s.outcomes, outcome)

		if outcome.Status == StatusFailedAbort {
			logging.Error("Startup aborted at %s step: %v", step.Name, outcome.Err)
			return outcome.Err
		}
	}

	if s.handoff == nil {
		return &FatalStartupError{Step: StepHandoff, Err: ErrNoHandoff}
	}

	if err := ctx.Err(); err != nil {
		return s.interrupted(StepHandoff, err)
	}

	startup.LogSection("SERVER HANDOFF")
	if degraded := s.Degraded(); len(degraded) > 0 {
		logging.Warn("  Starting server with degraded steps: %v", degraded)
	}
	if err := s.handoff(ctx, s.Outcomes()); err != nil {
		return &FatalStartupError{Step: StepHandoff, Err: err}
	}
	return nil
}

// interrupted records that the sequence stopped before step because ctx
// was cancelled.
func (s *Sequencer) interrupted(step string, err error) error {
	logging.Warn("Startup interrupted before %s step: %v", step, err)
	fatal := &FatalStartupError{Step: step, Err: err}
	s.outcomes = append(s.outcomes, Outcome{Step: step, Status: StatusFailedAbort, Err: fatal})
	return fatal
}

func (s *Sequencer) runStep(ctx context.Context, step Step) Outcome {
	startup.LogSection(fmt.Sprintf("BOOTSTRAP: %s", step.Name))

	if step.After != "" && s.degradedStep(step.After) {
		logging.Warn("  %s step failed earlier; running %s against a possibly stale schema", step.After, step.Name)
	}

	start := time.Now()
	var err error
	if step.Run == nil {
		err = fmt.Errorf("step %s has no run function", step.Name)
	} else {
		err = step.Run(ctx)
	}
	outcome := Outcome{Step: step.Name, Duration: time.Since(start)}

	switch {
	case err == nil:
		outcome.Status = StatusSucceeded
		logging.Info("  [OK] %s completed in %v", step.Name, outcome.Duration)
	case ctx.Err() != nil:
		// The step failed because of a stop request, not on its own.
		outcome.Status = StatusFailedAbort
		outcome.Err = &FatalStartupError{Step: step.Name, Err: fmt.Errorf("%w: %v", ctx.Err(), err)}
	case step.Policy == PolicyDegrade:
		outcome.Status = StatusFailedContinue
		if step.Degraded != nil {
			err = step.Degraded(err)
		}
		outcome.Err = err
		warning := step.Warning
		if warning == "" {
			warning = fmt.Sprintf("%s step failed", step.Name)
		}
		logging.Warn("  %s: %v", warning, err)
	default:
		outcome.Status = StatusFailedAbort
		outcome.Err = &FatalStartupError{Step: step.Name, Err: err}
	}

	return outcome
}

func (s *Sequencer) degradedStep(name string) bool {
	for _, o := range s.outcomes {
		if o.Step == name && o.Status == StatusFailedContinue {
			return true
		}
	}
	return false
}

// Outcomes returns the outcome of every step run so far.
func (s *Sequencer) Outcomes() []Outcome {
	out := make([]Outcome, len(s.outcomes))
	copy(out, s.outcomes)
	return out
}

// Degraded returns the names of steps that failed without aborting startup.
func (s *Sequencer) Degraded() []string {
	return degradedSteps(s.outcomes)
}
