package memory

import (
	"context"
	"math"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"media-curator/internal/logging"
	"media-curator/internal/metrics"

	"github.com/dustin/go-humanize"
)

// Config holds the watermarks of a Monitor.
type Config struct {
	// LimitBytes is the reference limit. Zero means the runtime soft limit.
	LimitBytes int64

	// HighWaterMark is the usage below which a critical state clears.
	HighWaterMark float64

	// CriticalWaterMark is the usage at which batches are held back.
	CriticalWaterMark float64

	CheckInterval time.Duration
}

// DefaultConfig returns the watermarks used by the service.
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Monitor samples heap usage and reports when it crosses the critical
// watermark. The indexer consults Critical before each batch.
type Monitor struct {
	config   Config
	limit    int64
	critical atomic.Bool
	usage    atomic.Uint64 // math.Float64bits of the last ratio
	sample   func() uint64
}

// NewMonitor creates a Monitor. Without any limit it never reports pressure.
func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes
	if limit == 0 {
		if soft := debug.SetMemoryLimit(-1); soft > 0 && soft < 1<<62 {
			limit = soft
		}
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultConfig().CheckInterval
	}

	if limit > 0 {
		logging.Info("Memory monitor limit: %s (critical at %.0f%%)",
			humanize.IBytes(uint64(limit)), config.CriticalWaterMark*100)
	} else {
		logging.Debug("Memory monitor: no memory limit configured, backpressure disabled")
	}

	return &Monitor{
		config: config,
		limit:  limit,
		sample: heapAlloc,
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Run samples memory every CheckInterval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	if m.limit == 0 {
		return
	}

	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check()
		}
	}
}

func (m *Monitor) check() {
	alloc := m.sample()
	usage := float64(alloc) / float64(m.limit)
	m.usage.Store(math.Float64bits(usage))
	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case usage >= m.config.CriticalWaterMark && !m.critical.Load():
		m.critical.Store(true)
		metrics.MemoryPressure.Set(1)
		metrics.MemoryPressureEvents.Inc()
		logging.Warn("Memory critical (%.1f%% of limit, %s allocated), holding indexing batches",
			usage*100, humanize.IBytes(alloc))
		go runtime.GC()

	case usage < m.config.HighWaterMark && m.critical.Load():
		m.critical.Store(false)
		metrics.MemoryPressure.Set(0)
		logging.Info("Memory recovered (%.1f%% of limit), releasing indexing batches", usage*100)
	}
}

// Critical reports whether usage is above the critical watermark and has not
// yet dropped below the high watermark.
func (m *Monitor) Critical() bool {
	return m.critical.Load()
}

// Usage returns the last sampled usage ratio, or 0 without a limit.
func (m *Monitor) Usage() float64 {
	return math.Float64frombits(m.usage.Load())
}

// Limit returns the reference limit in bytes.
func (m *Monitor) Limit() int64 {
	return m.limit
}
