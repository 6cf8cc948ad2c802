package startup

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"journiv/internal/logging"

	"github.com/spf13/viper"
)

const (
	// DefaultPort is the server port used when APP_PORT is unset or empty.
	DefaultPort = "8000"
	// DefaultHost binds the server to all interfaces.
	DefaultHost = "0.0.0.0"
	// DefaultDataDir is the root of the data volume.
	DefaultDataDir = "/data"
)

// Config holds all application configuration
type Config struct {
	Host           string
	Port           string
	Reload         bool
	DataDir        string
	DatabasePath   string
	ReloadDirs     []string
	MetricsEnabled bool
	MetricsPort    string
	LogLevel       string

	// Derived paths
	MediaDir string
	LogsDir  string
}

// Dir is a directory that must exist before the application starts.
type Dir struct {
	Name string
	Path string
}

// RequiredDirectories returns the directories created by the entrypoint.
func (c *Config) RequiredDirectories() []Dir {
	return []Dir{
		{Name: "media", Path: c.MediaDir},
		{Name: "logs", Path: c.LogsDir},
	}
}

// Addr returns the host:port the server binds to.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// LoadConfig reads configuration from the optional YAML file at path, then
// overlays environment variables (APP_PORT, DATA_DIR, ...).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Host:           strings.TrimSpace(v.GetString("app.host")),
		Port:           strings.TrimSpace(v.GetString("app.port")),
		Reload:         v.GetBool("app.reload"),
		DataDir:        v.GetString("data.dir"),
		DatabasePath:   v.GetString("database.path"),
		ReloadDirs:     splitList(v.GetString("reload.dirs")),
		MetricsEnabled: v.GetBool("metrics.enabled"),
		MetricsPort:    strings.TrimSpace(v.GetString("metrics.port")),
		LogLevel:       v.GetString("log.level"),
	}

	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}

	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	cfg.MediaDir = filepath.Join(cfg.DataDir, "media")
	cfg.LogsDir = filepath.Join(cfg.DataDir, "logs")
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DataDir, "journiv.db")
	}

	if len(cfg.ReloadDirs) == 0 {
		if exe, err := os.Executable(); err == nil {
			cfg.ReloadDirs = []string{filepath.Dir(exe)}
		}
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.host", DefaultHost)
	v.SetDefault("app.port", DefaultPort)
	v.SetDefault("app.reload", true)
	v.SetDefault("data.dir", DefaultDataDir)
	v.SetDefault("database.path", "")
	v.SetDefault("reload.dirs", "")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", "9090")
	v.SetDefault("log.level", "info")
}

// ValidatePort checks that port is a usable TCP port number. Ports are
// validated where they are bound, not at load time, so a bad value never
// stops the directory, migration and seeding steps.
func ValidatePort(port string) error {
	n, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("%q is not a number", port)
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("%d is out of range", n)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LogConfig prints the effective configuration.
func LogConfig(cfg *Config) {
	LogSection("CONFIGURATION")
	logging.Info("  APP_HOST:          %s", cfg.Host)
	logging.Info("  APP_PORT:          %s", cfg.Port)
	logging.Info("  APP_RELOAD:        %v", cfg.Reload)
	logging.Info("  DATA_DIR:          %s", cfg.DataDir)
	logging.Info("  DATABASE_PATH:     %s", cfg.DatabasePath)
	logging.Info("  METRICS_ENABLED:   %v", cfg.MetricsEnabled)
	logging.Info("  METRICS_PORT:      %s", cfg.MetricsPort)
	logging.Info("  LOG_LEVEL:         %s", logging.GetLevel())
	logging.Debug("  RELOAD_DIRS:       %s", strings.Join(cfg.ReloadDirs, ","))
}
