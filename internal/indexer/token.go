package indexer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Token carries the cooperative pause and cancel signals of one session. The
// scanner checks it once per directory and the batch processor once per batch.
// Cancellation is permanent and takes priority over pause.
type Token struct {
	cancel chan struct{}
	once   sync.Once
	paused atomic.Bool
}

// NewToken returns a token that is neither paused nor cancelled.
func NewToken() *Token {
	return &Token{cancel: make(chan struct{})}
}

// Cancel requests cancellation and clears the pause flag.
func (t *Token) Cancel() {
	t.once.Do(func() { close(t.cancel) })
	t.paused.Store(false)
}

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool {
	select {
	case <-t.cancel:
		return true
	default:
		return false
	}
}

// Done is closed when the token is cancelled.
func (t *Token) Done() <-chan struct{} {
	return t.cancel
}

// Pause sets the pause flag. It has no effect on a cancelled token.
func (t *Token) Pause() {
	if !t.Cancelled() {
		t.paused.Store(true)
	}
}

// Resume clears the pause flag.
func (t *Token) Resume() {
	t.paused.Store(false)
}

// Paused reports whether the session should hold before its next batch.
func (t *Token) Paused() bool {
	return t.paused.Load() && !t.Cancelled()
}

// sleep waits for d and reports whether it ran to completion. It returns false
// early when the token is cancelled or ctx is done.
func (t *Token) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return !t.Cancelled() && ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-t.cancel:
		return false
	case <-ctx.Done():
		return false
	}
}
