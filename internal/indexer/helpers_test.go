package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"media-curator/internal/filesystem"
	"media-curator/internal/mediatypes"
	"media-curator/internal/scanner"
)

func fastRetry() filesystem.RetryConfig {
	return filesystem.RetryConfig{
		MaxRetries:     1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}
}

// makeCandidates writes n small photos under dir and returns them as candidates.
func makeCandidates(t *testing.T, dir string, n int) []scanner.Candidate {
	t.Helper()
	out := make([]scanner.Candidate, n)
	for i := range out {
		p := filepath.Join(dir, fmt.Sprintf("img%04d.jpg", i))
		if err := os.WriteFile(p, []byte(p), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
		out[i] = scanner.Candidate{Path: p, Kind: mediatypes.KindPhoto}
	}
	return out
}

// recorder collects emitted events. It is safe for use from one goroutine
// at a time, which is how the processor calls emit.
type recorder struct {
	events chan Event
}

func newRecorder() *recorder {
	return &recorder{events: make(chan Event, 1024)}
}

func (r *recorder) emit(ev Event) { r.events <- ev }

func (r *recorder) drain() []Event {
	var out []Event
	for {
		select {
		case ev := <-r.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// nextEvent waits for the next event on ch.
func nextEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

// untilTerminal collects events up to and including the first terminal one.
func untilTerminal(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	for {
		ev := nextEvent(t, ch)
		out = append(out, ev)
		switch ev.(type) {
		case Completed, Cancelled, Error:
			return out
		}
	}
}

func countType[T Event](events []Event) int {
	n := 0
	for _, ev := range events {
		if _, ok := ev.(T); ok {
			n++
		}
	}
	return n
}
