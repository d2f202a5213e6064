package indexer

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"media-curator/internal/filesystem"
	"media-curator/internal/logging"
	"media-curator/internal/mediatypes"
	"media-curator/internal/metrics"
	"media-curator/internal/scanner"
)

var (
	// ErrSessionActive is reported when Start arrives while a session runs.
	ErrSessionActive = errors.New("an indexing session is already running")

	// ErrStopped is returned by Send once the controller has shut down.
	ErrStopped = errors.New("indexing controller stopped")
)

const defaultEventBuffer = 64

// Config configures a Controller.
type Config struct {
	Processor   ProcessorConfig
	Retry       filesystem.RetryConfig
	Classifier  *mediatypes.Classifier
	Exclude     []string
	EventBuffer int
	// Memory, when set, holds batches back under memory pressure.
	Memory MemoryPressure
}

// Session is a point-in-time view of the controller state.
type Session struct {
	RunID       string    `json:"runId,omitempty"`
	Phase       Phase     `json:"phase"`
	DirPath     string    `json:"dirPath,omitempty"`
	VolumeUUID  string    `json:"volumeUuid,omitempty"`
	MountPoint  string    `json:"volumeMountPoint,omitempty"`
	Total       int       `json:"total"`
	Indexed     int       `json:"indexed"`
	CurrentFile string    `json:"currentFile,omitempty"`
	ScanDigest  string    `json:"scanDigest,omitempty"`
	StartedAt   time.Time `json:"startedAt,omitzero"`
	FinishedAt  time.Time `json:"finishedAt,omitzero"`
	LastError   string    `json:"lastError,omitempty"`
}

type scanFunc func(ctx context.Context, tok scanner.Canceller, root string) ([]scanner.Candidate, error)

// Controller runs at most one indexing session at a time. Commands arrive via
// Send and are handled by the Run goroutine; the session itself runs on its
// own goroutine so that pause and cancel are served while it works. Events
// leave through the channel returned by Events, which is closed when Run
// returns.
type Controller struct {
	processor *Processor
	scan      scanFunc

	commands chan Command
	events   chan Event
	stopped  chan struct{}

	mu     sync.Mutex
	status atomic.Value // Session

	// owned by Run
	active *activeSession
}

type activeSession struct {
	id   string
	tok  *Token
	done chan struct{}
}

// New creates a Controller. It does nothing until Run is called.
func New(cfg Config) (*Controller, error) {
	sc, err := scanner.New(cfg.Classifier, cfg.Exclude, cfg.Retry)
	if err != nil {
		return nil, fmt.Errorf("creating scanner: %w", err)
	}

	buffer := cfg.EventBuffer
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}

	processor := NewProcessor(cfg.Processor, cfg.Retry)
	if cfg.Memory != nil {
		processor.SetMemoryPressure(cfg.Memory)
	}

	c := &Controller{
		processor: processor,
		scan:      sc.Scan,
		commands:  make(chan Command, 16),
		events:    make(chan Event, buffer),
		stopped:   make(chan struct{}),
	}
	c.status.Store(Session{Phase: PhaseIdle})
	return c, nil
}

// Events returns the outbound event channel. Readers must drain it until it
// is closed, or a terminal event blocks shutdown.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Status returns the latest session snapshot.
func (c *Controller) Status() Session {
	if s, ok := c.status.Load().(Session); ok {
		return s
	}
	return Session{Phase: PhaseIdle}
}

// Send enqueues a command for the Run goroutine.
func (c *Controller) Send(cmd Command) error {
	select {
	case <-c.stopped:
		return ErrStopped
	default:
	}

	select {
	case c.commands <- cmd:
		return nil
	case <-c.stopped:
		return ErrStopped
	}
}

// Run serves commands until ctx is done. It emits Ready first. On shutdown the
// active session is cancelled and awaited before the event channel is closed.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.events)
	defer close(c.stopped)

	logging.Info("Indexing controller ready (batch size %d, delay %v, workers %d)",
		c.processor.cfg.BatchSize, c.processor.cfg.BatchDelay, c.processor.cfg.Workers)
	c.emit(ctx, Ready{})

	for {
		var sessionDone chan struct{}
		if c.active != nil {
			sessionDone = c.active.done
		}

		select {
		case <-ctx.Done():
			if c.active != nil {
				logging.Info("Shutting down: cancelling indexing session %s", c.active.id)
				c.active.tok.Cancel()
				<-c.active.done
				c.active = nil
			}
			return

		case <-sessionDone:
			c.active = nil

		case cmd := <-c.commands:
			c.handle(ctx, cmd)
		}
	}
}

func (c *Controller) handle(ctx context.Context, cmd Command) {
	switch cmd := cmd.(type) {
	case Start:
		c.start(ctx, cmd)

	case Pause:
		if c.active == nil {
			logging.Debug("Ignoring pause: no indexing session")
			return
		}
		paused := false
		c.update(func(s *Session) {
			if s.Phase == PhaseIndexing {
				s.Phase = PhasePaused
				paused = true
			}
		})
		if !paused {
			logging.Debug("Ignoring pause: session %s is not indexing", c.active.id)
			return
		}
		c.active.tok.Pause()
		metrics.SetPhase(string(PhasePaused))
		logging.Info("Indexing session %s paused", c.active.id)

	case Resume:
		if c.active == nil {
			logging.Debug("Ignoring resume: no indexing session")
			return
		}
		c.active.tok.Resume()
		resumed := false
		c.update(func(s *Session) {
			if s.Phase == PhasePaused {
				s.Phase = PhaseIndexing
				resumed = true
			}
		})
		if resumed {
			metrics.SetPhase(string(PhaseIndexing))
			logging.Info("Indexing session %s resumed", c.active.id)
		}

	case Cancel:
		if c.active == nil {
			logging.Debug("Ignoring cancel: no indexing session")
			return
		}
		logging.Info("Cancelling indexing session %s", c.active.id)
		c.active.tok.Cancel()

	default:
		logging.Warn("Ignoring unknown command %T", cmd)
	}
}

func (c *Controller) start(ctx context.Context, cmd Start) {
	if c.active != nil {
		if c.Status().Phase.Active() {
			logging.Warn("Rejecting start for %s: session %s is running", cmd.DirPath, c.active.id)
			c.emit(ctx, Error{Message: ErrSessionActive.Error()})
			return
		}
		// terminal event already emitted; the goroutine is about to exit
		<-c.active.done
		c.active = nil
	}

	if err := cmd.Validate(); err != nil {
		logging.Warn("Rejecting start: %v", err)
		c.setStatus(Session{Phase: PhaseError, LastError: err.Error(), FinishedAt: time.Now()})
		metrics.SetPhase(string(PhaseError))
		c.emit(ctx, Error{Message: err.Error()})
		return
	}

	s := &activeSession{
		id:   uuid.New().String(),
		tok:  NewToken(),
		done: make(chan struct{}),
	}
	c.active = s

	c.setStatus(Session{
		RunID:      s.id,
		Phase:      PhaseScanning,
		DirPath:    cmd.DirPath,
		VolumeUUID: cmd.VolumeUUID,
		MountPoint: cmd.VolumeMountPoint,
		StartedAt:  time.Now(),
	})
	metrics.SetPhase(string(PhaseScanning))
	logging.Info("Indexing session %s started for %s (volume %s)", s.id, cmd.DirPath, cmd.VolumeUUID)

	c.emit(ctx, Progress{Status: PhaseScanning})

	go c.runSession(ctx, s, cmd)
}

func (c *Controller) runSession(ctx context.Context, s *activeSession, cmd Start) {
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Indexing session %s panicked: %v\n%s", s.id, r, debug.Stack())
			c.fail(ctx, s, fmt.Errorf("internal error: %v", r))
		}
	}()

	candidates, err := c.scan(ctx, s.tok, cmd.DirPath)
	switch {
	case errors.Is(err, scanner.ErrCancelled), s.tok.Cancelled(), ctx.Err() != nil:
		c.finish(s, PhaseCancelled, "cancelled")
		logging.Info("Indexing session %s cancelled during scan (%d candidates found)", s.id, len(candidates))
		c.emit(ctx, Cancelled{Run: c.runInfo(s)})
		return
	case err != nil:
		c.fail(ctx, s, err)
		return
	}

	total := len(candidates)
	digest := scanner.Digest(candidates)
	c.update(func(st *Session) {
		st.Phase = PhaseIndexing
		st.Total = total
		st.ScanDigest = digest
	})
	metrics.SetPhase(string(PhaseIndexing))
	metrics.IndexerCandidatesTotal.Set(float64(total))
	logging.Info("Indexing session %s scanned %d candidates (digest %s)", s.id, total, digest)

	c.emit(ctx, Progress{Status: PhaseIndexing, Total: total})

	res := c.processor.Process(ctx, s.tok, candidates, cmd.target(), func(ev Event) {
		if p, ok := ev.(Progress); ok {
			c.update(func(st *Session) {
				st.Indexed = p.Indexed
				st.CurrentFile = p.CurrentFile
			})
		}
		c.emit(ctx, ev)
	})

	if res.Cancelled {
		c.finish(s, PhaseCancelled, "cancelled")
		logging.Info("Indexing session %s cancelled after %d/%d candidates", s.id, res.Indexed, res.Total)
		c.emit(ctx, Cancelled{
			Indexed: intPtr(res.Indexed),
			Total:   intPtr(res.Total),
			Results: res.Records,
			Run:     c.runInfo(s),
		})
		return
	}

	c.finish(s, PhaseCompleted, "completed")
	logging.Info("Indexing session %s completed: %d records from %d candidates", s.id, len(res.Records), res.Total)
	c.emit(ctx, Completed{
		Total:   res.Total,
		Indexed: res.Indexed,
		Results: res.Records,
		Run:     c.runInfo(s),
	})
}

func (c *Controller) runInfo(s *activeSession) RunInfo {
	st := c.Status()
	return RunInfo{
		ID:         s.id,
		DirPath:    st.DirPath,
		VolumeUUID: st.VolumeUUID,
		MountPoint: st.MountPoint,
		ScanDigest: st.ScanDigest,
		StartedAt:  st.StartedAt,
	}
}

func (c *Controller) fail(ctx context.Context, s *activeSession, err error) {
	logging.Error("Indexing session %s failed: %v", s.id, err)
	c.update(func(st *Session) { st.LastError = err.Error() })
	c.finish(s, PhaseError, "error")
	c.emit(ctx, Error{Message: err.Error()})
}

// finish moves the session into a terminal phase and records run metrics.
func (c *Controller) finish(s *activeSession, phase Phase, outcome string) {
	now := time.Now()
	var started time.Time
	c.update(func(st *Session) {
		st.Phase = phase
		st.FinishedAt = now
		started = st.StartedAt
	})
	s.tok.Cancel()

	metrics.SetPhase(string(phase))
	metrics.IndexerSessionsTotal.WithLabelValues(outcome).Inc()
	metrics.IndexerLastRunTimestamp.Set(float64(now.Unix()))
	if !started.IsZero() {
		metrics.IndexerLastRunDuration.Set(now.Sub(started).Seconds())
	}
}

// emit delivers ev to the event channel. Once ctx is done, Ready and Progress
// events that do not fit in the buffer are dropped. Completed, Cancelled and
// Error always wait for the reader: Run closes the channel only after the
// session has emitted its outcome, so a reader that drains until close sees it.
func (c *Controller) emit(ctx context.Context, ev Event) {
	switch ev.(type) {
	case Completed, Cancelled, Error:
		c.events <- ev
		return
	}

	select {
	case c.events <- ev:
		return
	default:
	}

	select {
	case c.events <- ev:
	case <-ctx.Done():
		logging.Debug("Dropping %s event: controller shutting down", ev.Type())
	}
}

func (c *Controller) update(fn func(*Session)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.Status()
	fn(&s)
	c.status.Store(s)
}

func (c *Controller) setStatus(s Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Store(s)
}
