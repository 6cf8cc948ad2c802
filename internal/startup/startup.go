package startup

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"journiv/internal/logging"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// PrintBanner prints the startup banner and build information.
func PrintBanner(component string) {
	banner := `
------------------------------------------------------------
       __                        _
      / /___  __  ___________  (_)   __
 __  / / __ \/ / / / ___/ __ \/ / | / /
/ /_/ / /_/ / /_/ / /  / / / / /| |/ /
\____/\____/\__,_/_/  /_/ /_/_/ |___/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Component:  %s", component)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

// LogSection prints a section header.
func LogSection(title string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("%s", title)
	logging.Info("------------------------------------------------------------")
}

// PrepareDirectories creates each directory and any missing parents.
// Existing directories are left untouched. The first failure is returned.
func PrepareDirectories(dirs []Dir) error {
	for _, d := range dirs {
		if err := ensureDirectory(d.Path, d.Name); err != nil {
			return fmt.Errorf("%s directory %s: %w", d.Name, d.Path, err)
		}
		logging.Info("  [OK] %s directory ready: %s", d.Name, d.Path)
	}
	return nil
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    Directory exists")
	return nil
}

// ServerInfo describes a started server for [LogServerStarted].
type ServerInfo struct {
	Host            string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	Reload          bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(info ServerInfo) {
	LogSection("SERVER STARTED")
	logging.Info("  Startup time:    %v", info.StartupDuration)
	logging.Info("  Application:     http://%s:%s", info.Host, info.Port)
	if info.MetricsEnabled {
		logging.Info("  Metrics:         http://%s:%s/metrics", info.Host, info.MetricsPort)
	} else {
		logging.Info("  Metrics:         DISABLED")
	}
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	LogSection(fmt.Sprintf("SHUTDOWN INITIATED (received %s)", signal))
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}
