// Package scanner walks a directory tree and collects the files the indexer
// should process.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"

	"media-curator/internal/filesystem"
	"media-curator/internal/logging"
	"media-curator/internal/mediatypes"
	"media-curator/internal/metrics"
)

// ErrCancelled is returned alongside the partial result when a scan observes
// cancellation.
var ErrCancelled = errors.New("scan cancelled")

// Candidate is a file classified as processable.
type Candidate struct {
	Path string
	Kind mediatypes.Kind
}

// Canceller reports whether the current session has been cancelled.
type Canceller interface {
	Cancelled() bool
}

// Scanner collects candidates below a root directory.
type Scanner struct {
	classifier *mediatypes.Classifier
	exclude    []string
	retry      filesystem.RetryConfig

	// onDirectory is called after each directory has been enumerated.
	onDirectory func(dir string, collected int)
}

// New creates a Scanner. Exclude patterns are doublestar globs matched against
// slash-separated paths relative to the scan root, e.g. "**/Proxies/**".
func New(classifier *mediatypes.Classifier, exclude []string, retry filesystem.RetryConfig) (*Scanner, error) {
	if classifier == nil {
		classifier = mediatypes.Default()
	}
	for _, pattern := range exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	return &Scanner{
		classifier: classifier,
		exclude:    exclude,
		retry:      retry,
	}, nil
}

// Scan returns every candidate reachable from root.
//
// Cancellation is checked on entry to each directory; once observed, the walk
// stops and the candidates collected so far are returned with ErrCancelled.
// Unreadable subdirectories are logged and skipped. An unreadable root is an
// error. The order of the result follows the filesystem's enumeration order,
// depth first.
func (s *Scanner) Scan(ctx context.Context, tok Canceller, root string) ([]Candidate, error) {
	start := time.Now()
	defer func() {
		metrics.ScannerDuration.Observe(time.Since(start).Seconds())
	}()

	root = filepath.Clean(root)
	w := &walk{
		Scanner: s,
		ctx:     ctx,
		tok:     tok,
		root:    root,
	}

	err := w.dir(root)
	if err != nil && !errors.Is(err, ErrCancelled) {
		return nil, err
	}

	logging.Debug("Scan of %s finished: %d candidates, %d directories in %v (cancelled: %v)",
		root, len(w.found), w.dirs, time.Since(start), err != nil)
	return w.found, err
}

// walk holds the state of a single Scan.
type walk struct {
	*Scanner
	ctx   context.Context
	tok   Canceller
	root  string
	found []Candidate
	dirs  int
}

func (w *walk) cancelled() bool {
	if w.tok != nil && w.tok.Cancelled() {
		return true
	}
	return w.ctx.Err() != nil
}

func (w *walk) dir(path string) error {
	if w.cancelled() {
		return ErrCancelled
	}

	entries, err := filesystem.ReadDirWithRetry(path, w.retry)
	if err != nil {
		if path == w.root {
			return fmt.Errorf("reading root directory %s: %w", path, err)
		}
		logging.Warn("Skipping unreadable directory %s: %v", path, err)
		metrics.ScannerSkippedTotal.WithLabelValues("unreadable").Inc()
		return nil
	}

	w.dirs++
	metrics.ScannerDirectoriesTotal.Inc()

	var subdirs []string
	for _, entry := range entries {
		name := entry.Name()
		full := filepath.Join(path, name)

		if mediatypes.IsHidden(name) {
			metrics.ScannerSkippedTotal.WithLabelValues("hidden").Inc()
			continue
		}
		if w.excluded(full) {
			metrics.ScannerSkippedTotal.WithLabelValues("excluded").Inc()
			continue
		}

		switch {
		case entry.IsDir():
			subdirs = append(subdirs, full)
		case entry.Type().IsRegular():
			kind := w.classifier.Classify(name)
			if kind == mediatypes.KindIgnore {
				metrics.ScannerSkippedTotal.WithLabelValues("ignored").Inc()
				continue
			}
			w.found = append(w.found, Candidate{Path: full, Kind: kind})
		default:
			// symlinks, sockets, devices
			metrics.ScannerSkippedTotal.WithLabelValues("ignored").Inc()
		}
	}

	if w.onDirectory != nil {
		w.onDirectory(path, len(w.found))
	}

	for _, sub := range subdirs {
		if err := w.dir(sub); err != nil {
			return err
		}
	}
	return nil
}

func (w *walk) excluded(path string) bool {
	if len(w.exclude) == 0 {
		return false
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// Digest returns an order-independent hash of the candidate paths. Two scans of
// an unchanged tree produce the same digest.
func Digest(candidates []Candidate) string {
	paths := make([]string, len(candidates))
	for i, c := range candidates {
		paths[i] = c.Path
	}
	sort.Strings(paths)

	h := xxhash.New()
	for _, p := range paths {
		_, _ = h.WriteString(p)
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
