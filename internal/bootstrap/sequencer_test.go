package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"

	"journiv/internal/logging"
)

// recorder tracks which steps ran and whether the handoff was reached.
type recorder struct {
	ran             []string
	handedOff       bool
	handoffSteps    []string
	handoffOutcomes []Outcome
	handoffErr      error
}

func (r *recorder) step(name string, policy Policy, err error) Step {
	return Step{
		Name:   name,
		Policy: policy,
		Run: func(context.Context) error {
			r.ran = append(r.ran, name)
			return err
		},
	}
}

func (r *recorder) handoff(_ context.Context, outcomes []Outcome) error {
	r.handedOff = true
	r.handoffSteps = degradedSteps(outcomes)
	r.handoffOutcomes = outcomes
	return r.handoffErr
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	t.Cleanup(func() { logging.SetOutput(os.Stdout) })
	return &buf
}

func journivSteps(r *recorder, dirErr, migrateErr, seedErr error) []Step {
	migrate := r.step(StepMigration, PolicyDegrade, migrateErr)
	migrate.Warning = "Migration failed"
	migrate.Degraded = func(err error) error { return &DegradedMigration{Err: err} }

	seed := r.step(StepSeeding, PolicyDegrade, seedErr)
	seed.Warning = "Seeding failed"
	seed.Degraded = func(err error) error { return &DegradedSeeding{Err: err} }
	seed.After = StepMigration

	return []Step{
		r.step(StepDirectories, PolicyFatal, dirErr),
		migrate,
		seed,
	}
}

func TestRunAllStepsSucceed(t *testing.T) {
	captureLogs(t)
	r := &recorder{}
	seq := New(r.handoff, journivSteps(r, nil, nil, nil)...)

	if err := seq.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	want := []string{StepDirectories, StepMigration, StepSeeding}
	if !reflect.DeepEqual(r.ran, want) {
		t.Errorf("ran %v, want %v", r.ran, want)
	}
	if !r.handedOff {
		t.Error("handoff was not reached")
	}
	if len(r.handoffSteps) != 0 {
		t.Errorf("expected no degraded steps, got %v", r.handoffSteps)
	}
	for _, o := range seq.Outcomes() {
		if o.Status != StatusSucceeded {
			t.Errorf("step %s status = %v, want succeeded", o.Step, o.Status)
		}
	}
}

func TestRunHandsOverOutcomes(t *testing.T) {
	captureLogs(t)
	r := &recorder{}
	seq := New(r.handoff, journivSteps(r, nil, errors.New("exit status 1"), nil)...)

	if err := seq.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	want := []struct {
		step   string
		status Status
	}{
		{StepDirectories, StatusSucceeded},
		{StepMigration, StatusFailedContinue},
		{StepSeeding, StatusSucceeded},
	}
	if len(r.handoffOutcomes) != len(want) {
		t.Fatalf("handoff got %d outcomes, want %d", len(r.handoffOutcomes), len(want))
	}
	for i, w := range want {
		if o := r.handoffOutcomes[i]; o.Step != w.step || o.Status != w.status {
			t.Errorf("outcome %d = %s/%v, want %s/%v", i, o.Step, o.Status, w.step, w.status)
		}
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	captureLogs(t)
	r := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(r.handoff, journivSteps(r, nil, nil, nil)...).Run(ctx)

	var fatal *FatalStartupError
	if !errors.As(err, &fatal) || fatal.Step != StepDirectories {
		t.Fatalf("Run() error = %v, want fatal error at the directories step", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("error should unwrap to context.Canceled")
	}
	if len(r.ran) != 0 || r.handedOff {
		t.Errorf("nothing should run after cancellation: ran %v, handedOff %v", r.ran, r.handedOff)
	}
}

func TestRunCancelledDuringChildSteps(t *testing.T) {
	logs := captureLogs(t)
	r := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())

	migrate := Step{
		Name:   StepMigration,
		Policy: PolicyDegrade,
		Run: func(ctx context.Context) error {
			// A stop signal arrives while the migration child is running.
			cancel()
			return helperCommand(0)(ctx)
		},
		Warning: "Migration failed",
	}
	seeding := Step{
		Name:    StepSeeding,
		Policy:  PolicyDegrade,
		Run:     helperCommand(0),
		Warning: "Seeding failed",
	}

	seq := New(r.handoff, migrate, seeding)
	err := seq.Run(ctx)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if r.handedOff {
		t.Error("a stop request must not start the server")
	}
	if len(seq.Degraded()) != 0 {
		t.Errorf("cancelled steps reported as degraded: %v", seq.Degraded())
	}
	outcomes := seq.Outcomes()
	if len(outcomes) != 1 || outcomes[0].Status != StatusFailedAbort {
		t.Errorf("outcomes = %+v, want one aborted migration", outcomes)
	}
	if strings.Contains(logs.String(), "Migration failed") {
		t.Error("a cancelled migration should not be logged as a migration failure")
	}
}

func TestRunCancelledBeforeHandoff(t *testing.T) {
	captureLogs(t)
	r := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())

	last := Step{
		Name:   StepSeeding,
		Policy: PolicyDegrade,
		Run: func(context.Context) error {
			cancel()
			return nil
		},
	}

	err := New(r.handoff, last).Run(ctx)

	var fatal *FatalStartupError
	if !errors.As(err, &fatal) || fatal.Step != StepHandoff {
		t.Fatalf("Run() error = %v, want fatal error at the handoff", err)
	}
	if r.handedOff {
		t.Error("handoff must not run after cancellation")
	}
}

func TestRunDirectoryFailureAborts(t *testing.T) {
	captureLogs(t)
	r := &recorder{}
	dirErr := errors.New("permission denied")
	seq := New(r.handoff, journivSteps(r, dirErr, nil, nil)...)

	err := seq.Run(context.Background())
	if err == nil {
		t.Fatal("expected error when directory preparation fails")
	}

	var fatal *FatalStartupError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected *FatalStartupError, got %T", err)
	}
	if fatal.Step != StepDirectories {
		t.Errorf("fatal step = %q, want %q", fatal.Step, StepDirectories)
	}
	if !errors.Is(err, dirErr) {
		t.Error("fatal error should unwrap to the cause")
	}
	if !reflect.DeepEqual(r.ran, []string{StepDirectories}) {
		t.Errorf("no later step should run, ran %v", r.ran)
	}
	if r.handedOff {
		t.Error("handoff must not be attempted after a fatal failure")
	}

	outcomes := seq.Outcomes()
	if len(outcomes) != 1 || outcomes[0].Status != StatusFailedAbort {
		t.Errorf("unexpected outcomes: %+v", outcomes)
	}
}

func TestRunMigrationFailureContinues(t *testing.T) {
	logs := captureLogs(t)
	r := &recorder{}
	seq := New(r.handoff, journivSteps(r, nil, errors.New("exit status 1"), nil)...)

	if err := seq.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	want := []string{StepDirectories, StepMigration, StepSeeding}
	if !reflect.DeepEqual(r.ran, want) {
		t.Errorf("ran %v, want %v", r.ran, want)
	}
	if !r.handedOff {
		t.Error("server start must still be attempted")
	}
	if !reflect.DeepEqual(r.handoffSteps, []string{StepMigration}) {
		t.Errorf("degraded = %v, want [migration]", r.handoffSteps)
	}
	if !strings.Contains(logs.String(), "Migration failed") {
		t.Errorf("expected warning containing \"Migration failed\", got %q", logs.String())
	}
	if !strings.Contains(logs.String(), "possibly stale schema") {
		t.Error("expected a warning that seeding runs after a failed migration")
	}

	outcome := seq.Outcomes()[1]
	if outcome.Status != StatusFailedContinue {
		t.Errorf("migration status = %v, want failed_continue", outcome.Status)
	}
	var degraded *DegradedMigration
	if !errors.As(outcome.Err, &degraded) {
		t.Errorf("expected *DegradedMigration, got %T", outcome.Err)
	}
}

func TestRunSeedingFailureContinues(t *testing.T) {
	logs := captureLogs(t)
	r := &recorder{}
	seq := New(r.handoff, journivSteps(r, nil, nil, errors.New("no such table: mood"))...)

	if err := seq.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !r.handedOff {
		t.Error("server start must still be attempted")
	}
	if !strings.Contains(logs.String(), "Seeding failed") {
		t.Errorf("expected seeding warning, got %q", logs.String())
	}

	var degraded *DegradedSeeding
	if !errors.As(seq.Outcomes()[2].Err, &degraded) {
		t.Errorf("expected *DegradedSeeding, got %T", seq.Outcomes()[2].Err)
	}
	if !reflect.DeepEqual(seq.Degraded(), []string{StepSeeding}) {
		t.Errorf("Degraded() = %v", seq.Degraded())
	}
}

func TestRunBothDegraded(t *testing.T) {
	captureLogs(t)
	r := &recorder{}
	seq := New(r.handoff, journivSteps(r, nil, errors.New("m"), errors.New("s"))...)

	if err := seq.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !reflect.DeepEqual(r.handoffSteps, []string{StepMigration, StepSeeding}) {
		t.Errorf("degraded = %v", r.handoffSteps)
	}
}

func TestRunHandoffFailureIsFatal(t *testing.T) {
	captureLogs(t)
	bindErr := errors.New("address already in use")
	r := &recorder{handoffErr: bindErr}
	seq := New(r.handoff, journivSteps(r, nil, nil, nil)...)

	err := seq.Run(context.Background())
	var fatal *FatalStartupError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected *FatalStartupError, got %v", err)
	}
	if fatal.Step != StepHandoff {
		t.Errorf("fatal step = %q, want handoff", fatal.Step)
	}
	if !errors.Is(err, bindErr) {
		t.Error("handoff error should unwrap to the cause")
	}
}

func TestRunWithoutHandoff(t *testing.T) {
	captureLogs(t)
	r := &recorder{}
	seq := New(nil, r.step("only", PolicyFatal, nil))

	err := seq.Run(context.Background())
	if !errors.Is(err, ErrNoHandoff) {
		t.Errorf("expected ErrNoHandoff, got %v", err)
	}
}

func TestRunStepWithoutRunFunc(t *testing.T) {
	captureLogs(t)
	r := &recorder{}
	seq := New(r.handoff, Step{Name: "broken", Policy: PolicyFatal})

	if err := seq.Run(context.Background()); err == nil {
		t.Error("expected error for step without run function")
	}
	if r.handedOff {
		t.Error("handoff should not run")
	}
}

func TestEachStepRunsOnce(t *testing.T) {
	captureLogs(t)
	calls := 0
	step := Step{
		Name:   StepMigration,
		Policy: PolicyDegrade,
		Run: func(context.Context) error {
			calls++
			return errors.New("transient")
		},
	}
	r := &recorder{}

	if err := New(r.handoff, step).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if calls != 1 {
		t.Errorf("step ran %d times, want exactly 1 (no retries)", calls)
	}
}

func TestStatusAndPolicyStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{StatusSucceeded.String(), "succeeded"},
		{StatusFailedContinue.String(), "failed_continue"},
		{StatusFailedAbort.String(), "failed_abort"},
		{Status(9).String(), "unknown(9)"},
		{PolicyFatal.String(), "fatal"},
		{PolicyDegrade.String(), "degrade"},
		{Policy(7).String(), "unknown(7)"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
