package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"journiv/internal/bootstrap"
	"journiv/internal/database"
	"journiv/internal/handlers"
	"journiv/internal/startup"
)

func testConfig(t *testing.T) *startup.Config {
	t.Helper()

	dataDir := t.TempDir()
	return &startup.Config{
		Host:         startup.DefaultHost,
		Port:         startup.DefaultPort,
		Reload:       true,
		DataDir:      dataDir,
		DatabasePath: filepath.Join(dataDir, "journiv.db"),
		MediaDir:     filepath.Join(dataDir, "media"),
		LogsDir:      filepath.Join(dataDir, "logs"),
		MetricsPort:  "9090",
	}
}

// withGlobals sets the package-level flag state for one test.
func withGlobals(t *testing.T, file string, c *startup.Config) {
	t.Helper()

	oldFile, oldCfg := cfgFile, cfg
	cfgFile, cfg = file, c
	t.Cleanup(func() { cfgFile, cfg = oldFile, oldCfg })
}

func TestServerArgv(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		reload bool
		port   string
		level  string
		want   string
	}{
		{
			name:   "default port with reload",
			reload: true,
			port:   "8000",
			want:   "/app/journiv serve --host 0.0.0.0 --port 8000 --reload",
		},
		{
			name: "custom port without reload",
			port: "9001",
			want: "/app/journiv serve --host 0.0.0.0 --port 9001",
		},
		{
			name:   "config file and level are forwarded",
			file:   "/etc/journiv.yaml",
			reload: true,
			port:   "8000",
			level:  "debug",
			want:   "/app/journiv --config /etc/journiv.yaml --log-level debug serve --host 0.0.0.0 --port 8000 --reload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConfig(t)
			c.Reload = tt.reload
			c.Port = tt.port
			c.LogLevel = tt.level
			withGlobals(t, tt.file, c)

			got := strings.Join(serverArgv("/app/journiv", c), " ")
			if got != tt.want {
				t.Errorf("serverArgv() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEntrypointSteps(t *testing.T) {
	c := testConfig(t)
	withGlobals(t, "", c)

	steps := entrypointSteps("/app/journiv", c)

	want := []struct {
		name    string
		policy  bootstrap.Policy
		warning string
	}{
		{bootstrap.StepDirectories, bootstrap.PolicyFatal, ""},
		{bootstrap.StepMigration, bootstrap.PolicyDegrade, "Migration failed"},
		{bootstrap.StepSeeding, bootstrap.PolicyDegrade, "Seeding failed"},
	}
	if len(steps) != len(want) {
		t.Fatalf("got %d steps, want %d", len(steps), len(want))
	}
	for i, w := range want {
		if steps[i].Name != w.name || steps[i].Policy != w.policy || steps[i].Warning != w.warning {
			t.Errorf("step %d = {%s %v %q}, want {%s %v %q}",
				i, steps[i].Name, steps[i].Policy, steps[i].Warning, w.name, w.policy, w.warning)
		}
	}
	if steps[2].After != bootstrap.StepMigration {
		t.Errorf("seeding should note a degraded migration, After = %q", steps[2].After)
	}

	// The directory step creates media and logs.
	if err := steps[0].Run(context.Background()); err != nil {
		t.Fatalf("directory step error = %v", err)
	}
	for _, d := range c.RequiredDirectories() {
		if ok, _ := dirExists(d.Path); !ok {
			t.Errorf("%s directory %s was not created", d.Name, d.Path)
		}
	}
}

func TestIgnoreDataFiles(t *testing.T) {
	c := testConfig(t)
	ignore := ignoreDataFiles(c)

	tests := []struct {
		path string
		want bool
	}{
		{c.DatabasePath, true},
		{c.DatabasePath + "-wal", true},
		{filepath.Join(c.LogsDir, "journiv.log"), true},
		{"/app/internal/handlers/health.go", false},
	}
	for _, tt := range tests {
		if got := ignore(tt.path); got != tt.want {
			t.Errorf("ignore(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestEnsureSchemaOnEmptyDatabase(t *testing.T) {
	c := testConfig(t)
	ctx := context.Background()

	db, err := database.New(ctx, c.DatabasePath)
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	defer db.Close()

	if err := ensureSchema(ctx, db); err != nil {
		t.Fatalf("ensureSchema() error = %v", err)
	}
	for _, table := range []string{"user", "entry", "mood", "prompt"} {
		if ok, _ := db.TableExists(ctx, table); !ok {
			t.Errorf("table %s missing after ensureSchema", table)
		}
	}
}

func TestSetupRouter(t *testing.T) {
	c := testConfig(t)
	ctx := context.Background()

	db, err := database.New(ctx, c.DatabasePath)
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	defer db.Close()
	if err := ensureSchema(ctx, db); err != nil {
		t.Fatalf("ensureSchema() error = %v", err)
	}

	router := setupRouter(handlers.New(db, nil))

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/livez", http.StatusOK},
		{http.MethodHead, "/livez", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/version", http.StatusOK},
		{http.MethodPost, "/health", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, w.Code, tt.want)
		}
	}
}

func TestCommandTree(t *testing.T) {
	want := []string{"migrate", "seed", "serve"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("rootCmd.Find(%q) = %v, %v", name, cmd, err)
		}
	}

	for _, sub := range []string{"upgrade", "downgrade", "current", "history"} {
		cmd, _, err := rootCmd.Find([]string{"migrate", sub})
		if err != nil || cmd.Name() != sub {
			t.Errorf("rootCmd.Find(migrate %s) = %v, %v", sub, cmd, err)
		}
	}

	if f := serveCmd.Flags().Lookup("reload"); f == nil || f.DefValue != "false" {
		t.Error("serve should have a --reload flag defaulting to false")
	}
}

func TestMigrateAndSeedCommands(t *testing.T) {
	c := testConfig(t)
	withGlobals(t, "", nil)
	t.Setenv("DATA_DIR", c.DataDir)
	t.Setenv("DATABASE_PATH", c.DatabasePath)
	t.Setenv("LOG_LEVEL", "error")

	for _, args := range [][]string{
		{"migrate", "upgrade", "head"},
		{"seed"},
		{"seed"},
	} {
		rootCmd.SetArgs(args)
		if err := rootCmd.ExecuteContext(context.Background()); err != nil {
			t.Fatalf("journiv %s error = %v", strings.Join(args, " "), err)
		}
	}
	rootCmd.SetArgs(nil)

	ctx := context.Background()
	db, err := database.New(ctx, c.DatabasePath)
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	defer db.Close()

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != "1.2.0" {
		t.Errorf("schema version = %q, want 1.2.0", version)
	}

	moods, err := db.CountRows(ctx, "mood")
	if err != nil {
		t.Fatalf("CountRows(mood) error = %v", err)
	}
	if moods == 0 {
		t.Error("seed inserted no moods")
	}
}

func TestSeedCommandWithoutSchema(t *testing.T) {
	c := testConfig(t)
	withGlobals(t, "", nil)
	t.Setenv("DATA_DIR", c.DataDir)
	t.Setenv("DATABASE_PATH", c.DatabasePath)
	t.Setenv("LOG_LEVEL", "error")

	rootCmd.SetArgs([]string{"seed"})
	defer rootCmd.SetArgs(nil)
	rootCmd.SetErr(new(strings.Builder))
	defer rootCmd.SetErr(nil)

	if err := rootCmd.ExecuteContext(context.Background()); err == nil {
		t.Error("seed against an empty database should fail")
	}
}
