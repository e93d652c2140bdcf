package metrics

import (
	"context"
	"time"

	"smartlists/internal/logging"
)

// StatsProvider supplies the library statistics exported as gauges.
type StatsProvider interface {
	GetStats(ctx context.Context) (Stats, error)
}

// Stats holds the current library statistics.
type Stats struct {
	ItemsByKind     map[string]int
	Users           int
	ListsByKind     map[string]int
	PendingChanges  int
	OpenConnections int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := c.statsProvider.GetStats(ctx)
	if err != nil {
		logging.Warn("Failed to collect library stats: %v", err)
		return
	}
	apply(stats)
}

func apply(stats Stats) {
	LibraryItemsTotal.Reset()
	for kind, n := range stats.ItemsByKind {
		LibraryItemsTotal.WithLabelValues(kind).Set(float64(n))
	}
	MaterializedListsTotal.Reset()
	for kind, n := range stats.ListsByKind {
		MaterializedListsTotal.WithLabelValues(kind).Set(float64(n))
	}
	LibraryUsersTotal.Set(float64(stats.Users))
	PendingChangesTotal.Set(float64(stats.PendingChanges))
	DBConnectionsOpen.Set(float64(stats.OpenConnections))
}
