package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

// recordingObserver counts observer calls per operation.
type recordingObserver struct {
	mu       sync.Mutex
	attempts map[string]int
	success  map[string]int
	failures map[string]int
	stale    map[string]int
	opErrors map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		attempts: map[string]int{},
		success:  map[string]int{},
		failures: map[string]int{},
		stale:    map[string]int{},
		opErrors: map[string]int{},
	}
}

func (o *recordingObserver) ObserveOperation(_, operation string, _ float64, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.opErrors[operation]++
	}
}

func (o *recordingObserver) ObserveRetryAttempt(op, _ string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts[op]++
}

func (o *recordingObserver) ObserveRetrySuccess(op, _ string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.success[op]++
}

func (o *recordingObserver) ObserveRetryFailure(op, _ string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures[op]++
}

func (o *recordingObserver) ObserveRetryDuration(string, string, float64) {}

func (o *recordingObserver) ObserveStaleError(op, _ string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stale[op]++
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
	if config.VolumeResolver != nil {
		t.Error("VolumeResolver should be nil by default")
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ESTALE error", syscall.ESTALE, true},
		{"wrapped ESTALE", &os.PathError{Op: "open", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT error", syscall.ENOENT, false},
		{"generic error", os.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"media":    "/media",
		"archive":  "/media/archive",
		"database": "/database",
	})

	tests := []struct {
		path string
		want string
	}{
		{"/media/photos/a.jpg", "media"},
		{"/media", "media"},
		{"/media/archive/2019/b.mov", "archive"},
		{"/database/media.db", "database"},
		{"/mediaextra/a.jpg", "unknown"},
		{"/tmp/x", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_NilResolver(t *testing.T) {
	var vr *VolumeResolver
	if got := vr.Resolve("/media/a.jpg"); got != "unknown" {
		t.Errorf("nil resolver Resolve = %q, want unknown", got)
	}
}

func TestRetryConfig_ResolveVolume(t *testing.T) {
	SetDefaultVolumeResolver(NewVolumeResolver(map[string]string{"media": "/media"}))
	defer SetDefaultVolumeResolver(nil)

	cfg := DefaultRetryConfig()
	if got := cfg.resolveVolume("/media/x"); got != "media" {
		t.Errorf("default resolver: got %q, want media", got)
	}

	cfg.VolumeResolver = NewVolumeResolver(map[string]string{"card": "/media"})
	if got := cfg.resolveVolume("/media/x"); got != "card" {
		t.Errorf("config resolver: got %q, want card", got)
	}
}

func TestStatWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.jpg")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := StatWithRetry(path, fastRetryConfig())
	if err != nil {
		t.Fatalf("StatWithRetry: %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("Size = %d, want 4", info.Size())
	}

	_, err = StatWithRetry(filepath.Join(dir, "missing"), fastRetryConfig())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestReadDirWithRetry(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		name := filepath.Join(dir, fmt.Sprintf("f%d.jpg", i))
		if err := os.WriteFile(name, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	entries, err := ReadDirWithRetry(dir, fastRetryConfig())
	if err != nil {
		t.Fatalf("ReadDirWithRetry: %v", err)
	}
	if len(entries) != 4 {
		t.Errorf("got %d entries, want 4", len(entries))
	}

	if _, err := ReadDirWithRetry(filepath.Join(dir, "missing"), fastRetryConfig()); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestRetry_RetriesStaleHandles(t *testing.T) {
	obs := newRecordingObserver()
	SetObserver(obs)
	defer SetObserver(nil)

	calls := 0
	got, err := Retry("stat", "/media/x", fastRetryConfig(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, &os.PathError{Op: "stat", Path: "/media/x", Err: syscall.ESTALE}
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if got != 7 {
		t.Errorf("result = %d, want 7", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if obs.attempts["stat"] != 2 || obs.stale["stat"] != 2 || obs.success["stat"] != 1 {
		t.Errorf("unexpected observer counts: attempts=%d stale=%d success=%d",
			obs.attempts["stat"], obs.stale["stat"], obs.success["stat"])
	}
}

func TestRetry_GivesUp(t *testing.T) {
	obs := newRecordingObserver()
	SetObserver(obs)
	defer SetObserver(nil)

	config := fastRetryConfig()
	calls := 0
	_, err := Retry("open", "/media/x", config, func() (int, error) {
		calls++
		return 0, syscall.ESTALE
	})
	if !errors.Is(err, syscall.ESTALE) {
		t.Fatalf("expected ESTALE, got %v", err)
	}
	if calls != config.MaxRetries+1 {
		t.Errorf("calls = %d, want %d", calls, config.MaxRetries+1)
	}
	if obs.failures["open"] != 1 {
		t.Errorf("failures = %d, want 1", obs.failures["open"])
	}
}

func TestRetry_NoRetryOnOtherErrors(t *testing.T) {
	calls := 0
	_, err := Retry("readdir", "/media/x", fastRetryConfig(), func() (int, error) {
		calls++
		return 0, os.ErrPermission
	})
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("expected ErrPermission, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func BenchmarkVolumeResolver_Resolve(b *testing.B) {
	vr := NewVolumeResolver(map[string]string{
		"media":    "/media",
		"cache":    "/cache",
		"database": "/database",
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		vr.Resolve("/media/photos/2024/vacation/IMG_0001.jpg")
	}
}
