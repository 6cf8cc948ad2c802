package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"journiv/internal/logging"
	"journiv/internal/startup"
)

var (
	cfgFile  string
	logLevel string

	// cfg is populated by PersistentPreRunE and shared with all subcommands.
	cfg *startup.Config
)

var rootCmd = &cobra.Command{
	Use:   "journiv",
	Short: "Journiv container entrypoint and server",
	Long: `Journiv prepares the data volume, migrates the schema, seeds the
reference data and then replaces itself with the web server.

Without a subcommand it runs that startup sequence. Directory preparation
failures are fatal; migration and seeding failures are logged and startup
continues. The individual steps are available as subcommands.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runEntrypoint,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		logging.SetOutput(os.Stdout)

		var err error
		cfg, err = startup.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		// --log-level flag takes precedence over LOG_LEVEL and the config file.
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cfg.LogLevel != "" {
			logging.SetLevel(cfg.LogLevel)
		}
		return nil
	}

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(serveCmd)
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// inheritedFlags returns the persistent flags a child invocation of this
// binary must repeat.
func inheritedFlags() []string {
	var args []string
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	if cfg != nil && cfg.LogLevel != "" {
		args = append(args, "--log-level", cfg.LogLevel)
	}
	return args
}
