package memory

import (
	"context"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"smartlists/internal/logging"
	"smartlists/internal/metrics"
)

// Config holds memory monitor configuration
type Config struct {
	// LimitBytes is the soft memory limit (0 = use the runtime limit, if any)
	LimitBytes int64

	// HighWaterMark is the fraction of the limit below which a pause is lifted (0.0-1.0)
	HighWaterMark float64

	// CriticalWaterMark is the fraction at which refreshes are held back (0.0-1.0)
	CriticalWaterMark float64

	// CheckInterval is how often to sample heap usage
	CheckInterval time.Duration
}

// DefaultConfig returns the monitor defaults
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Monitor samples heap usage against a limit and holds refreshes back while
// usage is critical. It satisfies the refresh orchestrator's Gate.
type Monitor struct {
	config    Config
	limit     int64
	readAlloc func() uint64

	stopOnce sync.Once
	stopChan chan struct{}

	mu        sync.RWMutex
	current   uint64
	isPaused  bool
	pauseChan chan struct{}
}

// NewMonitor creates a monitor. Without an explicit limit it falls back to
// the runtime's GOMEMLIMIT; with neither, Wait never blocks.
func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes

	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < math.MaxInt64 {
			limit = goMemLimit
			logging.Info("Memory monitor using GOMEMLIMIT: %s", formatBytes(limit))
		}
	}

	if limit == 0 {
		logging.Warn("Memory monitor: no memory limit configured, refresh backpressure disabled")
	}

	return &Monitor{
		config:    config,
		limit:     limit,
		readAlloc: heapAlloc,
		stopChan:  make(chan struct{}),
		pauseChan: make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Start begins sampling in the background
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}

	go m.monitorLoop()
}

// Stop ends sampling and releases any waiters. Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) monitorLoop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) check() {
	alloc := m.readAlloc()

	m.mu.Lock()
	m.current = alloc
	wasPaused := m.isPaused

	if m.limit > 0 {
		usage := float64(alloc) / float64(m.limit)
		metrics.MemoryUsageRatio.Set(usage)

		switch {
		case usage >= m.config.CriticalWaterMark && !m.isPaused:
			logging.Warn("Memory critical (%.1f%% of limit), holding refreshes", usage*100)
			m.isPaused = true
			metrics.MemoryPaused.Set(1)
			metrics.MemoryPausesTotal.Inc()
			go runtime.GC()
		case usage < m.config.HighWaterMark && m.isPaused:
			logging.Info("Memory recovered (%.1f%% of limit), resuming refreshes", usage*100)
			m.isPaused = false
			metrics.MemoryPaused.Set(0)
			close(m.pauseChan)
			m.pauseChan = make(chan struct{})
		}
	}
	paused := m.isPaused
	m.mu.Unlock()

	if paused != wasPaused {
		logging.Debug("Memory state changed: paused=%v, alloc=%s", paused, formatBytes(clampInt64(alloc)))
	}
}

// Wait blocks while memory usage is critical. It returns nil once usage
// drops below the high water mark or the monitor stops, and the context's
// error if ctx ends first.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.RLock()
	if !m.isPaused {
		m.mu.RUnlock()
		return nil
	}
	pauseChan := m.pauseChan
	m.mu.RUnlock()

	select {
	case <-pauseChan:
		return nil
	case <-m.stopChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsPaused reports whether refreshes are currently held back
func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// GetStats returns the last sampled allocation, the limit and their ratio
func (m *Monitor) GetStats() (current, limit int64, usage float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.limit > 0 {
		usage = float64(m.current) / float64(m.limit)
	}
	return clampInt64(m.current), m.limit, usage
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
