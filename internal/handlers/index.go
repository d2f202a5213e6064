package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"media-curator/internal/indexer"
	"media-curator/internal/logging"
	"media-curator/internal/metrics"
	"media-curator/internal/streaming"
)

const eventStreamBuffer = 64

// StartIndexing accepts a Start command body. Missing fields are reported by
// the controller as an error event, not as an HTTP error.
func (h *Handlers) StartIndexing(w http.ResponseWriter, r *http.Request) {
	var cmd indexer.Start
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBody))
	if err := dec.Decode(&cmd); err != nil {
		writeJSONError(w, fmt.Sprintf("invalid start command: %v", err), http.StatusBadRequest)
		return
	}
	if cmd.CacheDir == "" {
		cmd.CacheDir = h.defaultCacheDir
	}
	h.send(w, cmd)
}

func (h *Handlers) PauseIndexing(w http.ResponseWriter, _ *http.Request) {
	h.send(w, indexer.Pause{})
}

func (h *Handlers) ResumeIndexing(w http.ResponseWriter, _ *http.Request) {
	h.send(w, indexer.Resume{})
}

func (h *Handlers) CancelIndexing(w http.ResponseWriter, _ *http.Request) {
	h.send(w, indexer.Cancel{})
}

// SendCommand accepts a tagged command message, e.g. {"type":"pause"}.
func (h *Handlers) SendCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCommandBody))
	if err != nil {
		writeJSONError(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	cmd, err := indexer.DecodeCommand(body)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.send(w, cmd)
}

func (h *Handlers) send(w http.ResponseWriter, cmd indexer.Command) {
	if err := h.controller.Send(cmd); err != nil {
		if errors.Is(err, indexer.ErrStopped) {
			writeJSONError(w, "indexing controller is shutting down", http.StatusServiceUnavailable)
			return
		}
		logging.Error("failed to send %T command: %v", cmd, err)
		writeJSONError(w, "failed to send command", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, "accepted")
}

// IndexStatus returns the controller's current session snapshot.
func (h *Handlers) IndexStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, h.controller.Status())
}

// IndexEvents streams controller events as Server-Sent Events. Each message
// carries the event type as the SSE event name and the tagged JSON event as
// its data.
func (h *Handlers) IndexEvents(w http.ResponseWriter, r *http.Request) {
	events, unsubscribe := h.events.Subscribe(eventStreamBuffer)
	defer unsubscribe()

	stream, err := streaming.NewEventWriter(r.Context(), w, streaming.DefaultConfig())
	if err != nil {
		logging.Warn("event stream: %v", err)
		return
	}

	metrics.EventStreamSubscribers.Inc()
	defer metrics.EventStreamSubscribers.Dec()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			if err := stream.Comment("keepalive"); err != nil {
				return
			}

		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(stream, ev); err != nil {
				logging.Debug("event stream closed after %d bytes: %v", stream.BytesWritten(), err)
				return
			}
		}
	}
}

func writeEvent(stream *streaming.EventWriter, ev indexer.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", ev.Type(), err)
	}
	return stream.Event(ev.Type(), data)
}
