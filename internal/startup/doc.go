// Package startup holds journiv's process-level configuration, directory
// preparation, and the sectioned lifecycle logging shared by the entrypoint
// and the server.
//
// # Configuration
//
// [LoadConfig] builds one [Config] from defaults, an optional YAML file, and
// environment variables:
//
//   - APP_HOST: Server bind host (default: 0.0.0.0)
//   - APP_PORT: Server port (default: 8000, also used when set but empty)
//   - APP_RELOAD: Restart the server when watched files change (default: true)
//   - DATA_DIR: Parent of the media and logs directories (default: /data)
//   - DATABASE_PATH: SQLite database file (default: $DATA_DIR/journiv.db)
//   - RELOAD_DIRS: Comma-separated directories watched for reload (default: executable dir)
//   - METRICS_ENABLED: Enable the Prometheus metrics server (default: true)
//   - METRICS_PORT: Metrics server port (default: 9090)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//
// The configuration is read once at startup and passed explicitly to the
// components that need it.
//
// # Directory Setup
//
// [PrepareDirectories] creates the media and logs directories, including any
// missing parents. It is idempotent and any failure is fatal to startup.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
