package memory

import (
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"journiv/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go heap.
const DefaultMemoryRatio = 0.9

// cgroupMemoryMax is the cgroup v2 limit file. A variable so tests can point
// it elsewhere.
var cgroupMemoryMax = "/sys/fs/cgroup/memory.max"

// setMemoryLimit is debug.SetMemoryLimit, replaceable in tests.
var setMemoryLimit = debug.SetMemoryLimit

// Source names where a limit came from.
const (
	SourceNone        = "none"
	SourceGoMemLimit  = "GOMEMLIMIT"
	SourceMemoryLimit = "MEMORY_LIMIT"
	SourceCgroup      = "cgroup"
)

// ConfigResult holds the result of memory configuration
type ConfigResult struct {
	Configured     bool
	Source         string
	ContainerLimit int64 // bytes, 0 if unknown
	GoMemLimit     int64 // bytes, 0 if not set
	Ratio          float64
}

// ConfigureFromEnv applies GOMEMLIMIT from the environment or cgroup.
// Call it early, before significant allocations.
func ConfigureFromEnv() ConfigResult {
	if v := os.Getenv("GOMEMLIMIT"); v != "" {
		result := ConfigResult{Source: SourceGoMemLimit}
		if limit := setMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", v)
		return result
	}

	limit, source, err := containerLimit()
	if err != nil {
		logging.Warn("Memory limit: %v", err)
		return ConfigResult{Source: SourceNone}
	}
	if limit <= 0 {
		logging.Debug("No container memory limit found, GOMEMLIMIT not configured")
		return ConfigResult{Source: SourceNone}
	}

	ratio := ratioFromEnv()
	goLimit := int64(float64(limit) * ratio)
	setMemoryLimit(goLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.0f%% of %s from %s)",
		formatBytes(goLimit), ratio*100, formatBytes(limit), source)

	return ConfigResult{
		Configured:     true,
		Source:         source,
		ContainerLimit: limit,
		GoMemLimit:     goLimit,
		Ratio:          ratio,
	}
}

// containerLimit returns the container memory limit in bytes, or 0 when the
// container is unlimited.
func containerLimit() (int64, string, error) {
	if v := strings.TrimSpace(os.Getenv("MEMORY_LIMIT")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return 0, SourceNone, fmt.Errorf("invalid MEMORY_LIMIT %q", v)
		}
		return n, SourceMemoryLimit, nil
	}

	data, err := os.ReadFile(cgroupMemoryMax)
	if err != nil {
		return 0, SourceNone, nil
	}
	v := strings.TrimSpace(string(data))
	if v == "max" || v == "" {
		return 0, SourceNone, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, SourceNone, fmt.Errorf("invalid %s value %q", cgroupMemoryMax, v)
	}
	return n, SourceCgroup, nil
}

func ratioFromEnv() float64 {
	v := os.Getenv("MEMORY_RATIO")
	if v == "" {
		return DefaultMemoryRatio
	}
	r, err := strconv.ParseFloat(v, 64)
	if err != nil || r <= 0 || r > 1 {
		logging.Warn("MEMORY_RATIO %q must be in (0, 1], using %.2f", v, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return r
}

// formatBytes formats bytes into human-readable string
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
