package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"smartlists/internal/logging"
	"smartlists/internal/metrics"
)

// VolumeResolver maps file paths to known volume names for metric labeling.
// It uses longest-prefix matching on absolute paths.
type VolumeResolver struct {
	// mounts is sorted by path length descending for longest-prefix matching
	mounts []volumeMount
}

type volumeMount struct {
	path string // absolute path with trailing slash (e.g., "/config/lists/")
	name string // volume label (e.g., "lists")
}

// NewVolumeResolver creates a resolver from a map of volume name to path.
// Empty paths are ignored.
//
//	NewVolumeResolver(map[string]string{
//	    "lists":    "/config/lists",
//	    "export":   "/export",
//	    "database": "/database",
//	})
func NewVolumeResolver(volumes map[string]string) *VolumeResolver {
	mounts := make([]volumeMount, 0, len(volumes))
	for name, path := range volumes {
		if path == "" {
			continue
		}
		absPath, err := filepath.Abs(path)
		if err != nil {
			absPath = path
		}
		if !strings.HasSuffix(absPath, "/") {
			absPath += "/"
		}
		mounts = append(mounts, volumeMount{path: absPath, name: name})
	}

	sort.Slice(mounts, func(i, j int) bool {
		if len(mounts[i].path) != len(mounts[j].path) {
			return len(mounts[i].path) > len(mounts[j].path)
		}
		return mounts[i].name < mounts[j].name
	})

	return &VolumeResolver{mounts: mounts}
}

// Resolve returns the volume name for a path, or "unknown".
func (vr *VolumeResolver) Resolve(path string) string {
	if vr == nil {
		return "unknown"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "unknown"
	}

	for _, mount := range vr.mounts {
		if strings.HasPrefix(absPath+"/", mount.path) {
			return mount.name
		}
	}

	return "unknown"
}

// defaultResolver is the package-level resolver set at startup
var defaultResolver *VolumeResolver

// SetDefaultVolumeResolver sets the package-level volume resolver.
// Call this once at startup after loading configuration.
func SetDefaultVolumeResolver(vr *VolumeResolver) {
	defaultResolver = vr
}

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// VolumeResolver overrides the package-level resolver for this operation.
	VolumeResolver *VolumeResolver

	sleep func(time.Duration)
}

// DefaultRetryConfig returns the defaults used for mounted config volumes
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

func (c *RetryConfig) resolveVolume(path string) string {
	if c.VolumeResolver != nil {
		return c.VolumeResolver.Resolve(path)
	}
	return defaultResolver.Resolve(path)
}

func (c *RetryConfig) pause(d time.Duration) {
	if c.sleep != nil {
		c.sleep(d)
		return
	}
	time.Sleep(d)
}

// isStaleError reports whether err is a stale file handle (ESTALE)
func isStaleError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE
	}
	return false
}

// withRetry runs fn, retrying with capped exponential backoff while it fails
// with a stale file handle. Any other error is returned immediately.
func withRetry[T any](op, path string, config RetryConfig, fn func() (T, error)) (T, error) {
	volume := config.resolveVolume(path)
	backoff := config.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		v, err := fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("%s succeeded on retry %d for %s", op, attempt, path)
				metrics.FilesystemRetryOutcomes.WithLabelValues(op, "success").Inc()
			}
			return v, nil
		}

		lastErr = err
		if !isStaleError(err) {
			var zero T
			return zero, err
		}

		metrics.FilesystemStaleErrors.WithLabelValues(volume).Inc()

		if attempt < config.MaxRetries {
			metrics.FilesystemRetryAttempts.WithLabelValues(op).Inc()
			logging.Debug("%s stale file handle for %s, retrying in %v (attempt %d/%d)",
				op, path, backoff, attempt+1, config.MaxRetries)
			config.pause(backoff)

			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("%s failed after %d retries for %s: %v", op, config.MaxRetries, path, lastErr)
	metrics.FilesystemRetryOutcomes.WithLabelValues(op, "failure").Inc()
	var zero T
	return zero, lastErr
}

// StatWithRetry performs os.Stat, retrying stale file handles
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	return withRetry("stat", path, config, func() (os.FileInfo, error) {
		return os.Stat(path)
	})
}

// OpenWithRetry performs os.Open, retrying stale file handles
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	return withRetry("open", path, config, func() (*os.File, error) {
		return os.Open(path)
	})
}

// ReadFileWithRetry performs os.ReadFile, retrying stale file handles
func ReadFileWithRetry(path string, config RetryConfig) ([]byte, error) {
	return withRetry("read_file", path, config, func() ([]byte, error) {
		return os.ReadFile(path)
	})
}

// ReadDirWithRetry performs os.ReadDir, retrying stale file handles
func ReadDirWithRetry(path string, config RetryConfig) ([]os.DirEntry, error) {
	return withRetry("read_dir", path, config, func() ([]os.DirEntry, error) {
		return os.ReadDir(path)
	})
}
