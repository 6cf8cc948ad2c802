// Package bootstrap runs journiv's startup sequence.
//
// A [Sequencer] executes a fixed list of [Step] values strictly in order,
// each exactly once. Every step carries an explicit [Policy]: a failing
// [PolicyFatal] step aborts the sequence with a [*FatalStartupError], while a
// failing [PolicyDegrade] step is logged as a warning and the sequence moves
// on. The outcome of every step is kept as a tagged [Outcome].
//
// The final action is the [Handoff], which replaces the current process with
// the long-running server. On success it never returns, so [Sequencer.Run]
// only returns when startup was aborted or the handoff failed.
//
//	seq := bootstrap.New(bootstrap.ExecHandoff(serveArgv, nil),
//	    bootstrap.Step{Name: bootstrap.StepDirectories, Policy: bootstrap.PolicyFatal, Run: prepareDirs},
//	    bootstrap.Step{Name: bootstrap.StepMigration, Policy: bootstrap.PolicyDegrade, Run: migrate},
//	)
//	if err := seq.Run(ctx); err != nil {
//	    os.Exit(1)
//	}
package bootstrap
