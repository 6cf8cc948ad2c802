package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"journiv/internal/bootstrap"
	"journiv/internal/startup"
)

func runEntrypoint(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startup.PrintBanner("entrypoint")
	startup.LogConfig(cfg)

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating journiv binary: %w", err)
	}

	seq := bootstrap.New(serverHandoff(self, cfg), entrypointSteps(self, cfg)...)
	return seq.Run(ctx)
}

// serverHandoff checks the server port before replacing the process, so a
// bad APP_PORT fails the handoff after migration and seeding have run.
func serverHandoff(self string, c *startup.Config) bootstrap.Handoff {
	handoff := bootstrap.ExecHandoff(serverArgv(self, c), nil)
	return func(ctx context.Context, outcomes []bootstrap.Outcome) error {
		if err := startup.ValidatePort(c.Port); err != nil {
			return fmt.Errorf("invalid APP_PORT: %w", err)
		}
		return handoff(ctx, outcomes)
	}
}

// entrypointSteps builds directory preparation, migration and seeding.
// Migration and seeding run as child invocations of this binary so that a
// crash in either cannot take the entrypoint down with it.
func entrypointSteps(self string, c *startup.Config) []bootstrap.Step {
	return []bootstrap.Step{
		{
			Name:   bootstrap.StepDirectories,
			Policy: bootstrap.PolicyFatal,
			Run: func(context.Context) error {
				return startup.PrepareDirectories(c.RequiredDirectories())
			},
		},
		{
			Name:     bootstrap.StepMigration,
			Policy:   bootstrap.PolicyDegrade,
			Run:      bootstrap.Command(self, childArgs("migrate", "upgrade", "head"), nil),
			Warning:  "Migration failed",
			Degraded: func(err error) error { return &bootstrap.DegradedMigration{Err: err} },
		},
		{
			Name:     bootstrap.StepSeeding,
			Policy:   bootstrap.PolicyDegrade,
			Run:      bootstrap.Command(self, childArgs("seed"), nil),
			Warning:  "Seeding failed",
			Degraded: func(err error) error { return &bootstrap.DegradedSeeding{Err: err} },
			After:    bootstrap.StepMigration,
		},
	}
}

func childArgs(args ...string) []string {
	return append(inheritedFlags(), args...)
}

// serverArgv is the command line the entrypoint replaces itself with.
func serverArgv(self string, c *startup.Config) []string {
	argv := append([]string{self}, childArgs("serve", "--host", c.Host, "--port", c.Port)...)
	if c.Reload {
		argv = append(argv, "--reload")
	}
	return argv
}
