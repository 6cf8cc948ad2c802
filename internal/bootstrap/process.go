package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"journiv/internal/logging"
)

// DegradedEnvVar carries the comma-separated degraded step names into the
// handed-off server.
const DegradedEnvVar = "JOURNIV_BOOTSTRAP_DEGRADED"

// Command returns a step function that runs name with args as a child process
// and waits for it. Output is streamed to this process's stdout and stderr.
// A non-zero exit status or a failure to start is returned as an error.
func Command(name string, args []string, env []string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		logging.Debug("  Running %s %s", name, strings.Join(args, " "))

		cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // arguments are built by the entrypoint, not user input
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Env = MergeEnv(os.Environ(), env)

		if err := cmd.Run(); err != nil {
			return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
		}
		return nil
	}
}

// MergeEnv returns base with every KEY=value in extra applied, replacing any
// existing entry for the same key.
func MergeEnv(base, extra []string) []string {
	if len(extra) == 0 {
		return base
	}

	override := make(map[string]bool, len(extra))
	for _, kv := range extra {
		override[envKey(kv)] = true
	}

	out := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		if !override[envKey(kv)] {
			out = append(out, kv)
		}
	}
	return append(out, extra...)
}

func envKey(kv string) string {
	if i := strings.IndexByte(kv, '='); i >= 0 {
		return kv[:i]
	}
	return kv
}

// FormatDegraded renders degraded step names for DegradedEnvVar.
func FormatDegraded(steps []string) string {
	return strings.Join(steps, ",")
}

// ParseDegraded reads degraded step names from a DegradedEnvVar value.
func ParseDegraded(value string) []string {
	var steps []string
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			steps = append(steps, s)
		}
	}
	return steps
}

// ExecHandoff returns a Handoff that replaces the current process with argv.
// The step outcomes (DegradedEnvVar, OutcomesEnvVar) and env are added to
// the inherited environment.
func ExecHandoff(argv []string, env []string) Handoff {
	return func(_ context.Context, outcomes []Outcome) error {
		if len(argv) == 0 {
			return fmt.Errorf("empty server command")
		}

		path := argv[0]
		if !strings.ContainsRune(path, os.PathSeparator) {
			resolved, err := exec.LookPath(path)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", path, err)
			}
			path = resolved
		}

		extra := append([]string{
			DegradedEnvVar + "=" + FormatDegraded(degradedSteps(outcomes)),
			OutcomesEnvVar + "=" + FormatOutcomes(outcomes),
		}, env...)
		environ := MergeEnv(os.Environ(), extra)

		logging.Info("  Handing off to: %s", strings.Join(argv, " "))
		return execProcess(path, argv, environ)
	}
}
