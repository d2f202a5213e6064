package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"media-curator/internal/asset"
	"media-curator/internal/filesystem"
	"media-curator/internal/fingerprint"
	"media-curator/internal/logging"
	"media-curator/internal/metrics"
	"media-curator/internal/scanner"
	"media-curator/internal/workers"
)

const (
	// DefaultBatchSize is the number of candidates processed per batch.
	DefaultBatchSize = 5

	// DefaultBatchDelay is the pause between consecutive batches. It caps the
	// I/O pressure a session puts on the volume being indexed.
	DefaultBatchDelay = 50 * time.Millisecond

	// DefaultPausePoll is how often a paused session re-checks its token and
	// re-emits a Paused event.
	DefaultPausePoll = 500 * time.Millisecond

	// maxWorkers caps in-batch concurrency regardless of CPU count.
	maxWorkers = 16
)

// ProcessorConfig tunes the batch processor.
type ProcessorConfig struct {
	BatchSize  int
	BatchDelay time.Duration
	PausePoll  time.Duration
	Workers    int
}

// DefaultProcessorConfig returns the default batch size, delay and poll
// interval with an I/O-bound worker count.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		BatchSize:  DefaultBatchSize,
		BatchDelay: DefaultBatchDelay,
		PausePoll:  DefaultPausePoll,
		Workers:    workers.ForIO(maxWorkers),
	}
}

func (c ProcessorConfig) withDefaults() ProcessorConfig {
	if c.BatchSize < 1 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchDelay < 0 {
		c.BatchDelay = 0
	}
	if c.PausePoll <= 0 {
		c.PausePoll = DefaultPausePoll
	}
	if c.Workers < 1 {
		c.Workers = workers.ForIO(maxWorkers)
	}
	return c
}

// Target identifies the volume a session indexes. CacheDir is accepted and
// carried but nothing is written to it.
type Target struct {
	VolumeUUID string
	MountPoint string
	CacheDir   string
}

// BatchResult is the outcome of Process. Indexed counts candidates attempted,
// including dropped ones, so Records may be shorter than Indexed.
type BatchResult struct {
	Records   []asset.Record
	Indexed   int
	Total     int
	Cancelled bool
}

// MemoryPressure reports whether batches should be held back.
type MemoryPressure interface {
	Critical() bool
}

// Processor turns candidates into asset records in throttled batches.
type Processor struct {
	cfg      ProcessorConfig
	engine   *fingerprint.Engine
	retry    filesystem.RetryConfig
	pressure MemoryPressure
	now      func() time.Time
}

// NewProcessor creates a Processor. Zero fields of cfg take their defaults.
func NewProcessor(cfg ProcessorConfig, retry filesystem.RetryConfig) *Processor {
	return &Processor{
		cfg:    cfg.withDefaults(),
		engine: fingerprint.New(retry),
		retry:  retry,
		now:    time.Now,
	}
}

// SetMemoryPressure makes the processor wait before each batch while mp
// reports critical memory use.
func (p *Processor) SetMemoryPressure(mp MemoryPressure) {
	p.pressure = mp
}

// Config returns the effective configuration.
func (p *Processor) Config() ProcessorConfig {
	return p.cfg
}

// Process builds a record for every candidate, BatchSize at a time.
//
// Before each batch the token is checked: a cancelled token ends processing
// with the batches completed so far, a paused token blocks, emitting Paused
// every PausePoll until resumed or cancelled. A Progress event follows every
// batch. Batches are separated by BatchDelay; the delay is not applied after
// the last batch and is cut short by cancellation.
func (p *Processor) Process(ctx context.Context, tok *Token, candidates []scanner.Candidate, target Target, emit func(Event)) BatchResult {
	total := len(candidates)
	res := BatchResult{
		Records: make([]asset.Record, 0, total),
		Total:   total,
	}

	for start := 0; start < total; start += p.cfg.BatchSize {
		if start > 0 && !tok.sleep(ctx, p.cfg.BatchDelay) {
			res.Cancelled = true
			return res
		}
		if !p.waitWhilePaused(ctx, tok, res.Indexed, total, emit) {
			res.Cancelled = true
			return res
		}
		if !p.waitForMemory(ctx, tok) {
			res.Cancelled = true
			return res
		}

		end := min(start+p.cfg.BatchSize, total)
		batch := candidates[start:end]

		batchStart := time.Now()
		res.Records = append(res.Records, p.processBatch(batch, target)...)
		metrics.IndexerBatchDuration.Observe(time.Since(batchStart).Seconds())

		res.Indexed = end
		last := batch[len(batch)-1].Path
		logging.Debug("Indexed %d/%d (last: %s)", res.Indexed, total, last)

		emit(Progress{
			Status:      PhaseIndexing,
			Total:       total,
			Indexed:     res.Indexed,
			CurrentFile: last,
		})
	}

	return res
}

// waitWhilePaused blocks while tok is paused and reports whether processing
// may continue.
func (p *Processor) waitWhilePaused(ctx context.Context, tok *Token, indexed, total int, emit func(Event)) bool {
	for {
		if tok.Cancelled() || ctx.Err() != nil {
			return false
		}
		if !tok.Paused() {
			return true
		}
		emit(Paused{Indexed: indexed, Total: total})
		if !tok.sleep(ctx, p.cfg.PausePoll) {
			return false
		}
	}
}

// waitForMemory blocks while memory is critical, re-checking every PausePoll.
// Pause and resume commands still apply once pressure clears.
func (p *Processor) waitForMemory(ctx context.Context, tok *Token) bool {
	if p.pressure == nil || !p.pressure.Critical() {
		return true
	}

	logging.Warn("Holding indexing batches until memory pressure clears")
	for p.pressure.Critical() {
		if !tok.sleep(ctx, p.cfg.PausePoll) {
			return false
		}
	}
	logging.Info("Memory pressure cleared, continuing indexing")
	return true
}

// processBatch builds the records of one batch concurrently. Failed candidates
// are dropped; the survivors keep candidate order.
func (p *Processor) processBatch(batch []scanner.Candidate, target Target) []asset.Record {
	built := make([]*asset.Record, len(batch))

	workers.Each(len(batch), p.cfg.Workers, func(i int) {
		rec, err := p.build(batch[i], target)
		if err != nil {
			logging.Warn("Dropping %s: %v", batch[i].Path, err)
			metrics.IndexerFilesDropped.Inc()
			return
		}
		built[i] = &rec
	})

	out := make([]asset.Record, 0, len(batch))
	for _, rec := range built {
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out
}

func (p *Processor) build(c scanner.Candidate, target Target) (rec asset.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while indexing: %v", r)
		}
	}()

	info, err := filesystem.StatWithRetry(c.Path, p.retry)
	if err != nil {
		return asset.Record{}, fmt.Errorf("stat: %w", err)
	}
	if !info.Mode().IsRegular() {
		return asset.Record{}, errors.New("not a regular file")
	}

	hash := p.engine.Partial(c.Path, info.Size())
	vol := asset.Volume{UUID: target.VolumeUUID, MountPoint: target.MountPoint}
	rec = asset.New(vol, c.Path, c.Kind, info, hash, p.now())

	metrics.IndexerFilesIndexed.WithLabelValues(string(c.Kind)).Inc()
	return rec, nil
}
