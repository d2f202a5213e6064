package metrics

import (
	"time"

	"media-curator/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	CatalogStats() (CatalogStats, error)
}

// ConnectionReporter is implemented by providers that can also report their
// connection pool. The collector refreshes it on every tick.
type ConnectionReporter interface {
	UpdateDBMetrics()
}

// CatalogStats holds asset counts keyed by media type, then status.
type CatalogStats map[string]map[string]int

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

	if r, ok := c.statsProvider.(ConnectionReporter); ok {
		r.UpdateDBMetrics()
	}

	stats, err := c.statsProvider.CatalogStats()
	if err != nil {
		logging.Warn("Failed to collect catalog stats: %v", err)
		return
	}

	total := 0
	for mediaType, byStatus := range stats {
		for status, count := range byStatus {
			CatalogAssetsTotal.WithLabelValues(mediaType, status).Set(float64(count))
			total += count
		}
	}

	logging.Debug("Metrics collected: %d catalog assets", total)
}
