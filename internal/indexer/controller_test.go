package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"media-curator/internal/mediatypes"
	"media-curator/internal/scanner"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	c, err := New(Config{
		Processor: ProcessorConfig{
			BatchSize:  2,
			BatchDelay: time.Millisecond,
			PausePoll:  10 * time.Millisecond,
			Workers:    2,
		},
		Retry:      fastRetry(),
		Classifier: mediatypes.Default(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// runController starts c and consumes the Ready event.
func runController(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		for range c.Events() {
		}
		<-done
	})

	if _, ok := nextEvent(t, c.Events()).(Ready); !ok {
		t.Fatal("first event is not ready")
	}
}

func startCmd(root string) Start {
	return Start{
		DirPath:          root,
		VolumeUUID:       "vol-1",
		VolumeMountPoint: root,
		CacheDir:         filepath.Join(root, ".cache"),
	}
}

func send(t *testing.T, c *Controller, cmd Command) {
	t.Helper()
	if err := c.Send(cmd); err != nil {
		t.Fatalf("Send(%T): %v", cmd, err)
	}
}

// blockingScan returns a scan function that blocks until release is closed
// and then reports the given candidates.
func blockingScan(release <-chan struct{}, candidates []scanner.Candidate) scanFunc {
	return func(ctx context.Context, tok scanner.Canceller, _ string) ([]scanner.Candidate, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		if tok.Cancelled() {
			return nil, scanner.ErrCancelled
		}
		return candidates, nil
	}
}

func TestControllerEndToEnd(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for name, data := range map[string]string{
		"one.jpg":    "1",
		"two.jpg":    "2",
		"three.jpg":  "3",
		"clip.mp4":   "video",
		".DS_Store":  "junk",
		"report.pdf": "pdf",
	} {
		if err := os.WriteFile(filepath.Join(root, name), []byte(data), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	c := newTestController(t)
	runController(t, c)
	send(t, c, startCmd(root))

	events := untilTerminal(t, c.Events())

	first, ok := events[0].(Progress)
	if !ok || first.Status != PhaseScanning || first.Total != 0 || first.Indexed != 0 {
		t.Errorf("first event = %#v, want scanning progress", events[0])
	}
	second, ok := events[1].(Progress)
	if !ok || second.Status != PhaseIndexing || second.Total != 4 || second.Indexed != 0 {
		t.Errorf("second event = %#v, want indexing progress with total 4", events[1])
	}

	done, ok := events[len(events)-1].(Completed)
	if !ok {
		t.Fatalf("terminal event = %#v", events[len(events)-1])
	}
	if countType[Completed](events) != 1 {
		t.Error("expected exactly one completed event")
	}
	if done.Total != 4 || done.Indexed != 4 {
		t.Errorf("completed total %d indexed %d, want 4 and 4", done.Total, done.Indexed)
	}
	if len(done.Results) > 4 {
		t.Errorf("results = %d", len(done.Results))
	}
	for _, r := range done.Results {
		want := mediatypes.KindPhoto
		if strings.HasSuffix(r.FileName, ".mp4") {
			want = mediatypes.KindVideo
		}
		if r.MediaType != want {
			t.Errorf("%s mediaType = %s, want %s", r.FileName, r.MediaType, want)
		}
		if !r.NeedsThumbnail {
			t.Errorf("%s needsThumbnail = false", r.FileName)
		}
	}

	lastIndexed := 0
	for _, ev := range events {
		if p, ok := ev.(Progress); ok {
			if p.Indexed < lastIndexed {
				t.Errorf("indexed went backwards: %d after %d", p.Indexed, lastIndexed)
			}
			lastIndexed = p.Indexed
		}
	}

	st := c.Status()
	if st.Phase != PhaseCompleted || st.Total != 4 || st.Indexed != 4 || st.RunID == "" || st.ScanDigest == "" {
		t.Errorf("status = %+v", st)
	}
}

func TestControllerMissingParameter(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	c := newTestController(t)
	runController(t, c)

	cmd := startCmd(root)
	cmd.VolumeUUID = ""
	send(t, c, cmd)

	ev := nextEvent(t, c.Events())
	e, ok := ev.(Error)
	if !ok {
		t.Fatalf("event = %#v, want error", ev)
	}
	if !strings.Contains(e.Message, "volumeUuid") {
		t.Errorf("message %q does not name volumeUuid", e.Message)
	}

	select {
	case ev := <-c.Events():
		t.Errorf("unexpected event after validation error: %#v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	if st := c.Status(); st.Phase != PhaseError || st.LastError == "" {
		t.Errorf("status = %+v", st)
	}

	// a corrected start is accepted
	send(t, c, startCmd(root))
	events := untilTerminal(t, c.Events())
	if _, ok := events[len(events)-1].(Completed); !ok {
		t.Errorf("retry ended with %#v", events[len(events)-1])
	}
}

func TestControllerUnreadableRoot(t *testing.T) {
	t.Parallel()

	c := newTestController(t)
	runController(t, c)

	send(t, c, startCmd(filepath.Join(t.TempDir(), "missing")))
	events := untilTerminal(t, c.Events())

	if _, ok := events[0].(Progress); !ok {
		t.Errorf("first event = %#v, want scanning progress", events[0])
	}
	if _, ok := events[len(events)-1].(Error); !ok {
		t.Errorf("terminal event = %#v, want error", events[len(events)-1])
	}
	if st := c.Status(); st.Phase != PhaseError {
		t.Errorf("phase = %s, want error", st.Phase)
	}
}

func TestControllerRejectsStartWhileRunning(t *testing.T) {
	t.Parallel()

	c := newTestController(t)
	release := make(chan struct{})
	c.scan = blockingScan(release, nil)
	runController(t, c)

	root := t.TempDir()
	send(t, c, startCmd(root))
	if p, ok := nextEvent(t, c.Events()).(Progress); !ok || p.Status != PhaseScanning {
		t.Fatal("expected scanning progress")
	}

	send(t, c, startCmd(root))
	ev := nextEvent(t, c.Events())
	e, ok := ev.(Error)
	if !ok || e.Message != ErrSessionActive.Error() {
		t.Fatalf("event = %#v, want session-active error", ev)
	}
	if st := c.Status(); st.Phase != PhaseScanning {
		t.Errorf("running session disturbed: phase %s", st.Phase)
	}

	close(release)
	events := untilTerminal(t, c.Events())
	if _, ok := events[len(events)-1].(Completed); !ok {
		t.Errorf("terminal event = %#v, want completed", events[len(events)-1])
	}
}

func TestControllerCancelDuringScan(t *testing.T) {
	t.Parallel()

	c := newTestController(t)
	c.scan = func(ctx context.Context, tok scanner.Canceller, root string) ([]scanner.Candidate, error) {
		for !tok.Cancelled() {
			select {
			case <-ctx.Done():
				return nil, scanner.ErrCancelled
			case <-time.After(time.Millisecond):
			}
		}
		partial := []scanner.Candidate{{Path: filepath.Join(root, "a.jpg"), Kind: mediatypes.KindPhoto}}
		return partial, scanner.ErrCancelled
	}
	runController(t, c)

	send(t, c, startCmd(t.TempDir()))
	if p, ok := nextEvent(t, c.Events()).(Progress); !ok || p.Status != PhaseScanning {
		t.Fatal("expected scanning progress")
	}
	send(t, c, Cancel{})

	events := untilTerminal(t, c.Events())
	cancelled, ok := events[len(events)-1].(Cancelled)
	if !ok {
		t.Fatalf("terminal event = %#v, want cancelled", events[len(events)-1])
	}
	if cancelled.Indexed != nil || cancelled.Total != nil {
		t.Errorf("cancel during scan carried counts: %+v", cancelled)
	}
	if countType[Progress](events) != 0 {
		t.Error("indexing progress emitted after cancel during scan")
	}
	if st := c.Status(); st.Phase != PhaseCancelled {
		t.Errorf("phase = %s, want cancelled", st.Phase)
	}
}

func TestControllerPauseResumeCancel(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	candidates := makeCandidates(t, root, 10)

	c := newTestController(t)
	c.processor.cfg.BatchDelay = 20 * time.Millisecond
	c.scan = blockingScan(closedChan(), candidates)
	runController(t, c)

	// pause before any session is ignored
	send(t, c, Pause{})
	send(t, c, Resume{})
	send(t, c, Cancel{})

	send(t, c, startCmd(root))
	for {
		if p, ok := nextEvent(t, c.Events()).(Progress); ok && p.Status == PhaseIndexing && p.Indexed >= 2 {
			break
		}
	}

	send(t, c, Pause{})
	var pausedAt int
	for pausedAt == 0 {
		switch ev := nextEvent(t, c.Events()).(type) {
		case Paused:
			pausedAt = ev.Indexed
		case Completed:
			t.Fatal("session completed before pause took effect")
		}
	}
	if st := c.Status(); st.Phase != PhasePaused {
		t.Errorf("phase = %s, want paused", st.Phase)
	}

	// progress count does not advance while paused
	for i := 0; i < 2; i++ {
		switch ev := nextEvent(t, c.Events()).(type) {
		case Paused:
			if ev.Indexed != pausedAt {
				t.Errorf("indexed moved while paused: %d -> %d", pausedAt, ev.Indexed)
			}
		case Progress:
			if ev.Indexed > pausedAt {
				t.Errorf("progress while paused: %+v", ev)
			}
		}
	}

	send(t, c, Resume{})
	send(t, c, Cancel{})

	events := untilTerminal(t, c.Events())
	switch ev := events[len(events)-1].(type) {
	case Cancelled:
		if ev.Indexed == nil || *ev.Indexed < pausedAt {
			t.Errorf("cancelled indexed = %v, want >= %d", ev.Indexed, pausedAt)
		}
		if ev.Total == nil || *ev.Total != 10 {
			t.Errorf("cancelled total = %v, want 10", ev.Total)
		}
		if len(ev.Results) != *ev.Indexed {
			t.Errorf("cancelled results = %d, want %d", len(ev.Results), *ev.Indexed)
		}
	case Completed:
		// the remaining batches finished before the cancel arrived
	default:
		t.Fatalf("terminal event = %#v", ev)
	}
}

func TestControllerRecoversPanic(t *testing.T) {
	t.Parallel()

	c := newTestController(t)
	c.scan = func(context.Context, scanner.Canceller, string) ([]scanner.Candidate, error) {
		panic("disk on fire")
	}
	runController(t, c)

	send(t, c, startCmd(t.TempDir()))
	events := untilTerminal(t, c.Events())

	e, ok := events[len(events)-1].(Error)
	if !ok || !strings.Contains(e.Message, "disk on fire") {
		t.Fatalf("terminal event = %#v", events[len(events)-1])
	}

	// the controller is usable again
	c.scan = blockingScan(closedChan(), nil)
	send(t, c, startCmd(t.TempDir()))
	events = untilTerminal(t, c.Events())
	if _, ok := events[len(events)-1].(Completed); !ok {
		t.Errorf("retry ended with %#v", events[len(events)-1])
	}
}

func TestControllerShutdownDeliversCancelledWithFullBuffer(t *testing.T) {
	t.Parallel()

	c, err := New(Config{
		Processor:   ProcessorConfig{BatchSize: 2, BatchDelay: time.Millisecond, Workers: 1},
		Retry:       fastRetry(),
		Classifier:  mediatypes.Default(),
		EventBuffer: 1,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.scan = blockingScan(make(chan struct{}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	if _, ok := nextEvent(t, c.Events()).(Ready); !ok {
		t.Fatal("first event is not ready")
	}

	send(t, c, startCmd(t.TempDir()))
	deadline := time.Now().Add(5 * time.Second)
	for c.Status().Phase != PhaseScanning {
		if time.Now().After(deadline) {
			t.Fatal("session never started scanning")
		}
		time.Sleep(time.Millisecond)
	}

	// The scanning progress event fills the buffer; nobody reads while the
	// session winds down.
	cancel()
	time.Sleep(50 * time.Millisecond)

	var events []Event
	for ev := range c.Events() {
		events = append(events, ev)
	}
	<-done

	if len(events) == 0 {
		t.Fatal("no events after shutdown")
	}
	if _, ok := events[len(events)-1].(Cancelled); !ok {
		t.Errorf("last event = %#v, want cancelled", events[len(events)-1])
	}
	if n := countType[Cancelled](events); n != 1 {
		t.Errorf("got %d cancelled events, want 1", n)
	}
}

func TestControllerSendAfterStop(t *testing.T) {
	t.Parallel()

	c := newTestController(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	nextEvent(t, c.Events())
	cancel()
	<-done

	if err := c.Send(Pause{}); !errors.Is(err, ErrStopped) {
		t.Errorf("Send after stop = %v, want ErrStopped", err)
	}
	if _, ok := <-c.Events(); ok {
		t.Error("events channel not closed after Run returned")
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
