package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"smartlists/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go heap.
// The remainder covers SQLite page cache, goroutine stacks and cgo.
const DefaultMemoryRatio = 0.85

// ConfigResult holds the result of memory configuration
type ConfigResult struct {
	// Configured indicates whether a Go memory limit is in effect
	Configured bool

	// Source indicates where the configuration came from
	Source string // "GOMEMLIMIT", "MEMORY_LIMIT", or "none"

	// ContainerLimit is the container memory limit in bytes (0 if not set)
	ContainerLimit int64

	// GoMemLimit is the configured Go memory limit in bytes (0 if not set)
	GoMemLimit int64

	// Ratio is the memory ratio used (0 if not applicable)
	Ratio float64
}

// Configure sets the Go soft memory limit from a container limit in bytes.
// An explicit GOMEMLIMIT in the environment always wins; a zero
// containerLimit leaves the runtime untouched.
//
// Call this early in startup, before significant allocations.
func Configure(containerLimit int64, ratio float64) ConfigResult {
	return configure(containerLimit, ratio, os.Getenv("GOMEMLIMIT"), debug.SetMemoryLimit)
}

func configure(containerLimit int64, ratio float64, goMemLimitEnv string, setLimit func(int64) int64) ConfigResult {
	result := ConfigResult{Source: "none"}

	if goMemLimitEnv != "" {
		if limit := setLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.Source = "GOMEMLIMIT"
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", goMemLimitEnv)
		return result
	}

	if containerLimit <= 0 {
		logging.Debug("MEMORY_LIMIT not set, Go memory limit will not be configured")
		return result
	}

	if ratio <= 0 || ratio > 1 {
		logging.Warn("Memory ratio %.2f out of range (0.0-1.0), using default %.2f", ratio, DefaultMemoryRatio)
		ratio = DefaultMemoryRatio
	}

	goMemLimit := int64(float64(containerLimit) * ratio)
	setLimit(goMemLimit)

	result.Configured = true
	result.Source = "MEMORY_LIMIT"
	result.ContainerLimit = containerLimit
	result.GoMemLimit = goMemLimit
	result.Ratio = ratio

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		formatBytes(goMemLimit),
		ratio*100,
		formatBytes(containerLimit),
	)

	return result
}

// formatBytes formats bytes into a human-readable string
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
