package streaming

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrClientGone indicates the request context ended before a write.
	ErrClientGone = errors.New("client disconnected")

	// ErrInvalidEventName is returned for event names containing line breaks.
	ErrInvalidEventName = errors.New("invalid event name")
)

// Config configures an EventWriter.
type Config struct {
	// WriteTimeout bounds each write+flush. Zero disables deadlines.
	WriteTimeout time.Duration
}

// DefaultConfig returns the settings used by the event stream endpoint.
func DefaultConfig() Config {
	return Config{WriteTimeout: 10 * time.Second}
}

// EventWriter writes a Server-Sent Events stream. Every message is flushed as
// soon as it is written. It is not safe for concurrent use.
type EventWriter struct {
	w            http.ResponseWriter
	rc           *http.ResponseController
	ctx          context.Context
	timeout      time.Duration
	deadlines    bool
	bytesWritten int64
}

// NewEventWriter sends the event stream headers and flushes them. It fails if
// the response cannot be flushed.
func NewEventWriter(ctx context.Context, w http.ResponseWriter, cfg Config) (*EventWriter, error) {
	ew := &EventWriter{
		w:         w,
		rc:        http.NewResponseController(w),
		ctx:       ctx,
		timeout:   cfg.WriteTimeout,
		deadlines: cfg.WriteTimeout > 0,
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := ew.rc.Flush(); err != nil {
		return nil, fmt.Errorf("event stream requires flushing: %w", err)
	}
	return ew, nil
}

// Event writes one message. Multi-line data is split over several data
// fields so the client reassembles it unchanged.
func (ew *EventWriter) Event(name string, data []byte) error {
	if strings.ContainsAny(name, "\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidEventName, name)
	}

	var buf bytes.Buffer
	if name != "" {
		buf.WriteString("event: ")
		buf.WriteString(name)
		buf.WriteByte('\n')
	}
	for line := range bytes.Lines(data) {
		buf.WriteString("data: ")
		buf.Write(bytes.TrimRight(line, "\r\n"))
		buf.WriteByte('\n')
	}
	if len(data) == 0 {
		buf.WriteString("data: \n")
	}
	buf.WriteByte('\n')

	return ew.write(buf.Bytes())
}

// Comment writes a comment line. Clients ignore it; it keeps proxies from
// closing an idle stream.
func (ew *EventWriter) Comment(text string) error {
	return ew.write([]byte(": " + strings.ReplaceAll(text, "\n", " ") + "\n\n"))
}

// BytesWritten returns the number of bytes written after the headers.
func (ew *EventWriter) BytesWritten() int64 {
	return ew.bytesWritten
}

func (ew *EventWriter) write(p []byte) error {
	if ew.ctx.Err() != nil {
		return ErrClientGone
	}

	if ew.deadlines {
		if err := ew.rc.SetWriteDeadline(time.Now().Add(ew.timeout)); err != nil {
			if !errors.Is(err, http.ErrNotSupported) {
				return fmt.Errorf("setting write deadline: %w", err)
			}
			ew.deadlines = false
		}
	}

	n, err := ew.w.Write(p)
	ew.bytesWritten += int64(n)
	if err != nil {
		return fmt.Errorf("writing event stream: %w", err)
	}
	if err := ew.rc.Flush(); err != nil {
		return fmt.Errorf("flushing event stream: %w", err)
	}

	// Idle periods between events must not trip the deadline.
	if ew.deadlines {
		_ = ew.rc.SetWriteDeadline(time.Time{})
	}
	return nil
}
