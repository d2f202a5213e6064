package indexer

import (
	"context"
	"testing"
	"time"
)

func TestTokenPauseResume(t *testing.T) {
	t.Parallel()

	tok := NewToken()
	if tok.Paused() || tok.Cancelled() {
		t.Fatal("new token should be neither paused nor cancelled")
	}

	tok.Pause()
	if !tok.Paused() {
		t.Error("expected paused after Pause")
	}
	tok.Resume()
	if tok.Paused() {
		t.Error("expected not paused after Resume")
	}
}

func TestTokenCancelClearsPause(t *testing.T) {
	t.Parallel()

	tok := NewToken()
	tok.Pause()
	tok.Cancel()
	tok.Cancel()

	if !tok.Cancelled() {
		t.Error("expected cancelled")
	}
	if tok.Paused() {
		t.Error("cancel must clear pause")
	}

	tok.Pause()
	if tok.Paused() {
		t.Error("pause after cancel must have no effect")
	}

	select {
	case <-tok.Done():
	default:
		t.Error("Done should be closed after Cancel")
	}
}

func TestTokenSleepWakesOnCancel(t *testing.T) {
	t.Parallel()

	tok := NewToken()
	go func() {
		time.Sleep(10 * time.Millisecond)
		tok.Cancel()
	}()

	start := time.Now()
	if tok.sleep(context.Background(), time.Minute) {
		t.Error("sleep should report interruption")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("sleep took %v after cancel", elapsed)
	}
}

func TestTokenSleepCompletes(t *testing.T) {
	t.Parallel()

	tok := NewToken()
	if !tok.sleep(context.Background(), time.Millisecond) {
		t.Error("uninterrupted sleep should report completion")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if tok.sleep(ctx, time.Minute) {
		t.Error("sleep should stop when ctx is done")
	}
}
