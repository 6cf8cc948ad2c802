package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"journiv/internal/bootstrap"
	"journiv/internal/database"
	"journiv/internal/handlers"
	"journiv/internal/logging"
	"journiv/internal/memory"
	"journiv/internal/metrics"
	"journiv/internal/middleware"
	"journiv/internal/reload"
	"journiv/internal/startup"
)

const (
	shutdownTimeout = 30 * time.Second
	logFileName     = "journiv.log"
)

var (
	serveHost   string
	servePort   string
	serveReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the journiv HTTP server",
	Long: `Serve opens the journal database and starts the HTTP server.

If the schema is not at the newest migration, missing tables are created
in their newest shape. With --reload the command supervises a child server
and restarts it whenever a file under RELOAD_DIRS changes.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "bind host (default APP_HOST or 0.0.0.0)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "bind port (default APP_PORT or 8000)")
	serveCmd.Flags().BoolVar(&serveReload, "reload", false, "restart the server when watched files change")
}

func runServe(cmd *cobra.Command, _ []string) error {
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort != "" {
		cfg.Port = servePort
	}
	if err := startup.ValidatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid APP_PORT: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveReload {
		return runReloadSupervisor(ctx, cfg)
	}
	return runServer(ctx, cfg)
}

// runReloadSupervisor runs "serve" without --reload as a child and restarts
// it on changes under the reload directories.
func runReloadSupervisor(ctx context.Context, c *startup.Config) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating journiv binary: %w", err)
	}

	startup.LogSection("RELOAD SUPERVISOR")
	args := childArgs("serve", "--host", c.Host, "--port", c.Port)

	s := reload.New(reload.Config{
		Dirs:   c.ReloadDirs,
		Ignore: ignoreDataFiles(c),
	}, func(restarts int) *exec.Cmd {
		child := exec.Command(self, args...) //nolint:gosec // arguments are built from configuration
		child.Stdout = os.Stdout
		child.Stderr = os.Stderr
		child.Env = bootstrap.MergeEnv(os.Environ(), []string{reload.RestartsEnvVar + "=" + strconv.Itoa(restarts)})
		return child
	})
	err = s.Run(ctx)
	logging.Info("Reload: supervisor stopped after %d restart(s)", s.Restarts())
	return err
}

// ignoreDataFiles keeps writes to the data volume (database, logs) from
// triggering restarts when it lives under a watched directory.
func ignoreDataFiles(c *startup.Config) func(string) bool {
	dataDir := filepath.Clean(c.DataDir)
	dbPath := filepath.Clean(c.DatabasePath)
	return func(path string) bool {
		path = filepath.Clean(path)
		if path == dataDir || strings.HasPrefix(path, dataDir+string(filepath.Separator)) {
			return true
		}
		return strings.HasPrefix(path, dbPath)
	}
}

func runServer(ctx context.Context, c *startup.Config) error {
	startTime := time.Now()
	startup.PrintBanner("server")

	if closer, err := logging.AttachFile(c.LogsDir, logFileName); err != nil {
		logging.Warn("Logging to stdout only: %v", err)
	} else {
		defer closer.Close()
	}

	memory.ConfigureFromEnv()

	disableInvalidMetricsPort(c)

	db, h, err := openServer(ctx, c, os.Getenv)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error("failed to close database: %v", err)
		}
	}()

	router := setupRouter(h)

	handler := middleware.Logger(middleware.DefaultLoggingConfig("Journiv/" + startup.Version))(router)
	handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)

	srv := &http.Server{
		Addr:              c.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if c.MetricsEnabled {
		metricsSrv = newMetricsServer(c, h)
	}

	errCh := make(chan error, 2)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: %w", err)
		}
	}()
	if metricsSrv != nil {
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	startup.LogServerStarted(startup.ServerInfo{
		Host:            c.Host,
		Port:            c.Port,
		MetricsPort:     c.MetricsPort,
		MetricsEnabled:  c.MetricsEnabled,
		Reload:          false,
		StartupDuration: time.Since(startTime),
	})

	var runErr error
	select {
	case <-ctx.Done():
		startup.LogShutdownInitiated("signal")
	case runErr = <-errCh:
		logging.Error("%v", runErr)
		startup.LogShutdownInitiated("server error")
	}

	shutdown(srv, metricsSrv)
	return runErr
}

// disableInvalidMetricsPort turns the metrics server off when METRICS_PORT
// cannot be bound. Metrics are optional; the journal server still starts.
func disableInvalidMetricsPort(c *startup.Config) {
	if !c.MetricsEnabled {
		return
	}
	if err := startup.ValidatePort(c.MetricsPort); err != nil {
		logging.Warn("Metrics server disabled, invalid METRICS_PORT: %v", err)
		c.MetricsEnabled = false
	}
}

// openServer opens the database, brings the schema up to a usable state and
// builds the handlers. getenv supplies the state handed over by the
// entrypoint and the reload supervisor.
func openServer(ctx context.Context, c *startup.Config, getenv func(string) string) (*database.Database, *handlers.Handlers, error) {
	degraded := bootstrap.ParseDegraded(getenv(bootstrap.DegradedEnvVar))
	if len(degraded) > 0 {
		logging.Warn("Started after degraded bootstrap steps: %s", strings.Join(degraded, ", "))
	}

	startup.LogSection("DATABASE")
	db, err := database.New(ctx, c.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	logging.Info("  Database: %s", db.Path())

	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	recordStartupState(ctx, db, getenv)

	info := startup.GetBuildInfo()
	metrics.SetAppInfo(info.Version, info.Commit, info.GoVersion)

	return db, handlers.New(db, degraded), nil
}

// ensureSchema creates missing tables when migrations have not reached head.
func ensureSchema(ctx context.Context, db *database.Database) error {
	r, err := database.NewJournalMigrationRunner(ctx, db.DB())
	if err != nil {
		return fmt.Errorf("reading migration state: %w", err)
	}
	current, err := r.Current(ctx)
	if err != nil {
		return fmt.Errorf("reading migration state: %w", err)
	}
	metrics.SetSchemaVersion(current)

	if current == r.Head() {
		logging.Info("  Schema at %s", current)
		return nil
	}

	logging.Warn("  Schema at %s, expected %s; creating missing tables", orNone(current), r.Head())
	return db.EnsureSchema(ctx)
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	return r
}

func newMetricsServer(c *startup.Config, h *handlers.Handlers) *http.Server {
	r := mux.NewRouter()
	r.Handle("/metrics", h.MetricsHandler()).Methods(http.MethodGet)
	r.HandleFunc("/health", h.LivenessCheck).Methods(http.MethodGet)

	return &http.Server{
		Addr:              net.JoinHostPort(c.Host, c.MetricsPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func shutdown(srv, metricsSrv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Error("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("HTTP server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}
	startup.LogShutdownComplete()
}
