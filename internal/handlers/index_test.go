package handlers

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"media-curator/internal/indexer"
)

func TestStartIndexing(t *testing.T) {
	h, ctrl, _ := newTestHandlers(t, failingCatalog{})

	body := `{"dirPath":"/mnt/photos/2024","volumeUuid":"vol-1","volumeMountPoint":"/mnt/photos","cacheDir":"/cache"}`
	req := httptest.NewRequest(http.MethodPost, "/api/index/start", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.StartIndexing(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["status"] != "accepted" {
		t.Errorf("status = %q, want accepted", resp["status"])
	}

	sent := ctrl.commands()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 command, got %d", len(sent))
	}
	start, ok := sent[0].(indexer.Start)
	if !ok {
		t.Fatalf("Expected Start command, got %T", sent[0])
	}
	want := indexer.Start{DirPath: "/mnt/photos/2024", VolumeUUID: "vol-1", VolumeMountPoint: "/mnt/photos", CacheDir: "/cache"}
	if start != want {
		t.Errorf("Start = %+v, want %+v", start, want)
	}
}

func TestStartIndexingForwardsIncompleteCommand(t *testing.T) {
	h, ctrl, _ := newTestHandlers(t, failingCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/api/index/start", strings.NewReader(`{"dirPath":"/mnt"}`))
	w := httptest.NewRecorder()
	h.StartIndexing(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", w.Code)
	}
	if len(ctrl.commands()) != 1 {
		t.Error("incomplete start should still reach the controller")
	}
}

func TestStartIndexingMalformedJSON(t *testing.T) {
	h, ctrl, _ := newTestHandlers(t, failingCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/api/index/start", strings.NewReader(`{"dirPath":`))
	w := httptest.NewRecorder()
	h.StartIndexing(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
	if len(ctrl.commands()) != 0 {
		t.Error("malformed body must not be forwarded")
	}
}

func TestControlCommands(t *testing.T) {
	tests := []struct {
		name    string
		handler func(*Handlers) http.HandlerFunc
		want    indexer.Command
	}{
		{"pause", func(h *Handlers) http.HandlerFunc { return h.PauseIndexing }, indexer.Pause{}},
		{"resume", func(h *Handlers) http.HandlerFunc { return h.ResumeIndexing }, indexer.Resume{}},
		{"cancel", func(h *Handlers) http.HandlerFunc { return h.CancelIndexing }, indexer.Cancel{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ctrl, _ := newTestHandlers(t, failingCatalog{})

			w := httptest.NewRecorder()
			tt.handler(h)(w, httptest.NewRequest(http.MethodPost, "/api/index/"+tt.name, http.NoBody))

			if w.Code != http.StatusAccepted {
				t.Fatalf("Expected 202, got %d", w.Code)
			}
			sent := ctrl.commands()
			if len(sent) != 1 || sent[0] != tt.want {
				t.Errorf("sent = %v, want [%v]", sent, tt.want)
			}
		})
	}
}

func TestSendCommand(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		want       indexer.Command
	}{
		{"pause", `{"type":"pause"}`, http.StatusAccepted, indexer.Pause{}},
		{"cancel", `{"type":"cancel"}`, http.StatusAccepted, indexer.Cancel{}},
		{
			"start",
			`{"type":"start","dirPath":"/v/a","volumeUuid":"u","volumeMountPoint":"/v","cacheDir":"/c"}`,
			http.StatusAccepted,
			indexer.Start{DirPath: "/v/a", VolumeUUID: "u", VolumeMountPoint: "/v", CacheDir: "/c"},
		},
		{"unknown type", `{"type":"rewind"}`, http.StatusBadRequest, nil},
		{"missing type", `{}`, http.StatusBadRequest, nil},
		{"not json", `pause`, http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ctrl, _ := newTestHandlers(t, failingCatalog{})

			w := httptest.NewRecorder()
			h.SendCommand(w, httptest.NewRequest(http.MethodPost, "/api/index/commands", strings.NewReader(tt.body)))

			if w.Code != tt.wantStatus {
				t.Fatalf("Expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			sent := ctrl.commands()
			if tt.want == nil {
				if len(sent) != 0 {
					t.Errorf("Expected no command, got %v", sent)
				}
				return
			}
			if len(sent) != 1 || sent[0] != tt.want {
				t.Errorf("sent = %v, want [%v]", sent, tt.want)
			}
		})
	}
}

func TestSendAfterControllerStopped(t *testing.T) {
	h, ctrl, _ := newTestHandlers(t, failingCatalog{})
	ctrl.sendErr = indexer.ErrStopped

	w := httptest.NewRecorder()
	h.CancelIndexing(w, httptest.NewRequest(http.MethodPost, "/api/index/cancel", http.NoBody))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}
}

func TestIndexStatus(t *testing.T) {
	h, ctrl, _ := newTestHandlers(t, failingCatalog{})
	ctrl.status = indexer.Session{
		RunID:       "run-1",
		Phase:       indexer.PhaseIndexing,
		DirPath:     "/mnt/photos",
		Total:       10,
		Indexed:     5,
		CurrentFile: "/mnt/photos/a.jpg",
	}

	w := httptest.NewRecorder()
	h.IndexStatus(w, httptest.NewRequest(http.MethodGet, "/api/index/status", http.NoBody))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var got indexer.Session
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if got.RunID != "run-1" || got.Phase != indexer.PhaseIndexing || got.Indexed != 5 || got.Total != 10 {
		t.Errorf("unexpected status %+v", got)
	}
}

func TestIndexEventsStream(t *testing.T) {
	h, _, hub := newTestHandlers(t, failingCatalog{})

	srv := httptest.NewServer(http.HandlerFunc(h.IndexEvents))
	defer srv.Close()

	source := make(chan indexer.Event)
	go hub.Run(source)

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	source <- indexer.Ready{}
	source <- indexer.Progress{Status: indexer.PhaseIndexing, Total: 4, Indexed: 2, CurrentFile: "/v/b.jpg"}
	source <- indexer.Completed{Total: 4, Indexed: 4}
	close(source)

	type message struct{ event, data string }
	var got []message
	var cur message
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		case line == "" && cur.event != "":
			got = append(got, cur)
			cur = message{}
		}
	}

	if len(got) != 3 {
		t.Fatalf("Expected 3 events, got %d: %+v", len(got), got)
	}
	wantTypes := []string{indexer.EventReady, indexer.EventProgress, indexer.EventCompleted}
	for i, m := range got {
		if m.event != wantTypes[i] {
			t.Errorf("event %d = %q, want %q", i, m.event, wantTypes[i])
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(m.data), &payload); err != nil {
			t.Fatalf("event %d data is not JSON: %v", i, err)
		}
		if payload["type"] != wantTypes[i] {
			t.Errorf("event %d payload type = %v", i, payload["type"])
		}
	}
	if !strings.Contains(got[1].data, `"currentFile":"/v/b.jpg"`) {
		t.Errorf("progress payload missing currentFile: %s", got[1].data)
	}
	if !strings.Contains(got[2].data, `"results":[]`) {
		t.Errorf("completed payload should carry an empty results array: %s", got[2].data)
	}
}

func TestIndexEventsHeartbeat(t *testing.T) {
	h, _, hub := newTestHandlers(t, failingCatalog{})
	h.heartbeat = 10 * time.Millisecond

	srv := httptest.NewServer(http.HandlerFunc(h.IndexEvents))
	defer srv.Close()

	source := make(chan indexer.Event)
	go hub.Run(source)
	defer close(source)

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	if !sc.Scan() {
		t.Fatalf("stream ended: %v", sc.Err())
	}
	if line := sc.Text(); line != ": keepalive" {
		t.Errorf("first line = %q, want keepalive comment", line)
	}
}

func TestStartIndexingDefaultCacheDir(t *testing.T) {
	h, ctrl, _ := newTestHandlers(t, failingCatalog{})
	h.SetDefaultCacheDir("/var/cache/curator")

	body := `{"dirPath":"/mnt/v/a","volumeUuid":"v","volumeMountPoint":"/mnt/v"}`
	w := httptest.NewRecorder()
	h.StartIndexing(w, httptest.NewRequest(http.MethodPost, "/api/index/start", strings.NewReader(body)))

	sent := ctrl.commands()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 command, got %d", len(sent))
	}
	if got := sent[0].(indexer.Start).CacheDir; got != "/var/cache/curator" {
		t.Errorf("CacheDir = %q, want the default", got)
	}
}
