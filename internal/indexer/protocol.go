package indexer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"media-curator/internal/asset"
)

// Phase is the state of the indexing state machine.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseScanning  Phase = "scanning"
	PhaseIndexing  Phase = "indexing"
	PhasePaused    Phase = "paused"
	PhaseCompleted Phase = "completed"
	PhaseCancelled Phase = "cancelled"
	PhaseError     Phase = "error"
)

// Active reports whether a session is in flight in this phase.
func (p Phase) Active() bool {
	return p == PhaseScanning || p == PhaseIndexing || p == PhasePaused
}

// Command is a message sent to the Controller. The set of commands is closed:
// Start, Pause, Resume and Cancel.
type Command interface {
	isCommand()
}

// Start begins a session. All four fields are required.
type Start struct {
	DirPath          string `json:"dirPath"`
	VolumeUUID       string `json:"volumeUuid"`
	VolumeMountPoint string `json:"volumeMountPoint"`
	CacheDir         string `json:"cacheDir"`
}

// Pause holds the running session before its next batch.
type Pause struct{}

// Resume continues a paused session.
type Resume struct{}

// Cancel stops the running session.
type Cancel struct{}

func (Start) isCommand()  {}
func (Pause) isCommand()  {}
func (Resume) isCommand() {}
func (Cancel) isCommand() {}

// Validate reports every missing field of s.
func (s Start) Validate() error {
	var missing []string
	if strings.TrimSpace(s.DirPath) == "" {
		missing = append(missing, "dirPath")
	}
	if strings.TrimSpace(s.VolumeUUID) == "" {
		missing = append(missing, "volumeUuid")
	}
	if strings.TrimSpace(s.VolumeMountPoint) == "" {
		missing = append(missing, "volumeMountPoint")
	}
	if strings.TrimSpace(s.CacheDir) == "" {
		missing = append(missing, "cacheDir")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required parameters: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (s Start) target() Target {
	return Target{VolumeUUID: s.VolumeUUID, MountPoint: s.VolumeMountPoint, CacheDir: s.CacheDir}
}

// Command type tags.
const (
	CommandStart  = "start"
	CommandPause  = "pause"
	CommandResume = "resume"
	CommandCancel = "cancel"
)

// DecodeCommand parses a tagged command message such as
// {"type":"start","dirPath":"/media",...}.
func DecodeCommand(data []byte) (Command, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decoding command: %w", err)
	}

	switch head.Type {
	case CommandStart:
		var s Start
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decoding start command: %w", err)
		}
		return s, nil
	case CommandPause:
		return Pause{}, nil
	case CommandResume:
		return Resume{}, nil
	case CommandCancel:
		return Cancel{}, nil
	case "":
		return nil, errors.New("command type is required")
	default:
		return nil, fmt.Errorf("unknown command type %q", head.Type)
	}
}

// Event is a message emitted by the Controller. The set of events is closed:
// Ready, Progress, Paused, Cancelled, Completed and Error.
type Event interface {
	isEvent()
	// Type returns the wire tag of the event.
	Type() string
}

// Event type tags.
const (
	EventReady     = "ready"
	EventProgress  = "progress"
	EventPaused    = "paused"
	EventCancelled = "cancelled"
	EventCompleted = "completed"
	EventError     = "error"
)

// Ready is emitted once when the controller starts accepting commands.
type Ready struct{}

// Progress reports the scan start, the scan result and every finished batch.
type Progress struct {
	Status      Phase  `json:"status"`
	Total       int    `json:"total"`
	Indexed     int    `json:"indexed"`
	CurrentFile string `json:"currentFile,omitempty"`
}

// Paused is re-emitted on every poll while the session is paused.
type Paused struct {
	Indexed int `json:"indexed"`
	Total   int `json:"total"`
}

// RunInfo identifies the session a terminal event belongs to. It is carried
// for in-process consumers and is not part of the wire format.
type RunInfo struct {
	ID         string
	DirPath    string
	VolumeUUID string
	MountPoint string
	ScanDigest string
	StartedAt  time.Time
}

// Cancelled ends a session stopped by Cancel. Counts are absent when the
// session was cancelled during the scan. Results holds the records of the
// batches that finished before cancellation.
type Cancelled struct {
	Indexed *int           `json:"indexed,omitempty"`
	Total   *int           `json:"total,omitempty"`
	Results []asset.Record `json:"results,omitempty"`
	Run     RunInfo        `json:"-"`
}

// Completed ends a session that processed every candidate.
type Completed struct {
	Total   int            `json:"total"`
	Indexed int            `json:"indexed"`
	Results []asset.Record `json:"results"`
	Run     RunInfo        `json:"-"`
}

// Error reports a rejected command or a failed session.
type Error struct {
	Message string `json:"error"`
}

func (Ready) isEvent()     {}
func (Progress) isEvent()  {}
func (Paused) isEvent()    {}
func (Cancelled) isEvent() {}
func (Completed) isEvent() {}
func (Error) isEvent()     {}

func (Ready) Type() string     { return EventReady }
func (Progress) Type() string  { return EventProgress }
func (Paused) Type() string    { return EventPaused }
func (Cancelled) Type() string { return EventCancelled }
func (Completed) Type() string { return EventCompleted }
func (Error) Type() string     { return EventError }

// MarshalJSON methods flatten the payload next to the "type" tag.

func (e Ready) MarshalJSON() ([]byte, error) {
	return tagged(EventReady, struct{}{})
}

func (e Progress) MarshalJSON() ([]byte, error) {
	type payload Progress
	return tagged(EventProgress, payload(e))
}

func (e Paused) MarshalJSON() ([]byte, error) {
	type payload Paused
	return tagged(EventPaused, payload(e))
}

func (e Cancelled) MarshalJSON() ([]byte, error) {
	type payload Cancelled
	return tagged(EventCancelled, payload(e))
}

func (e Completed) MarshalJSON() ([]byte, error) {
	type payload Completed
	if e.Results == nil {
		e.Results = []asset.Record{}
	}
	return tagged(EventCompleted, payload(e))
}

func (e Error) MarshalJSON() ([]byte, error) {
	type payload Error
	return tagged(EventError, payload(e))
}

func (c Start) MarshalJSON() ([]byte, error) {
	type payload Start
	return tagged(CommandStart, payload(c))
}

func (Pause) MarshalJSON() ([]byte, error)  { return tagged(CommandPause, struct{}{}) }
func (Resume) MarshalJSON() ([]byte, error) { return tagged(CommandResume, struct{}{}) }
func (Cancel) MarshalJSON() ([]byte, error) { return tagged(CommandCancel, struct{}{}) }

func tagged(tag string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	name, _ := json.Marshal(tag)
	buf.Write(name)
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func intPtr(n int) *int { return &n }
