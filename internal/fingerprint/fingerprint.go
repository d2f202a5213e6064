// Package fingerprint computes partial content fingerprints.
//
// A fingerprint covers at most the first PartialSize bytes of a file, so it is
// cheap enough to compute for every asset on slow or removable media while
// still telling apart files that share a name and size.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strconv"
	"time"

	"media-curator/internal/filesystem"
	"media-curator/internal/logging"
	"media-curator/internal/metrics"
)

// PartialSize is the number of leading bytes hashed.
const PartialSize = 64 * 1024

// Engine computes fingerprints. The zero value uses DefaultRetryConfig
// semantics with no retries.
type Engine struct {
	Retry filesystem.RetryConfig
}

// New returns an Engine that reads files through the NFS retry wrapper.
func New(retry filesystem.RetryConfig) *Engine {
	return &Engine{Retry: retry}
}

// Partial returns the hex sha256 of the first PartialSize bytes of path.
//
// If the file cannot be opened or read, the digest of the path concatenated
// with the decimal size is returned instead. The same file therefore gets a
// different fingerprint once it becomes readable.
func (e *Engine) Partial(path string, size int64) string {
	start := time.Now()
	defer func() {
		metrics.FingerprintDuration.Observe(time.Since(start).Seconds())
	}()

	sum, err := e.content(path)
	if err != nil {
		logging.Debug("Fingerprint fallback for %s: %v", path, err)
		metrics.FingerprintFallbacks.Inc()
		return Fallback(path, size)
	}
	return sum
}

// content reopens the file on every attempt; a stale handle mid-read cannot
// be resumed.
func (e *Engine) content(path string) (string, error) {
	return filesystem.Retry("read", path, e.Retry, func() (string, error) {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		return Reader(f)
	})
}

// Reader hashes the first PartialSize bytes of r, streaming.
func Reader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, io.LimitReader(r, PartialSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Fallback is the fingerprint used for unreadable files.
func Fallback(path string, size int64) string {
	sum := sha256.Sum256([]byte(path + strconv.FormatInt(size, 10)))
	return hex.EncodeToString(sum[:])
}
