// Package eventmodel implements the engine's typed containers
// (spec.md §3): event-data-streams, event-data, events, warnings,
// tags, tasks, and sessions. Cross-container references are integer
// identifiers (ContainerType, sequence) scoped to a session (spec.md
// §4.2, §9 "Cross-process object graphs") rather than in-process
// pointers, so containers survive serialization across the per-task
// store -> session store merge.
package eventmodel

import (
	"time"

	"github.com/google/uuid"
)

// ContainerType identifies which container kind a sequence number is
// scoped to. Sequence numbers are per-type, per-session monotonic.
type ContainerType string

const (
	ContainerEventDataStream ContainerType = "event_data_stream"
	ContainerEventData       ContainerType = "event_data"
	ContainerEvent           ContainerType = "event"
	ContainerEventTag        ContainerType = "event_tag"
	ContainerWarning         ContainerType = "extraction_warning"
)

// Ref is a cross-container reference: (type, sequence) scoped to one
// session. It is never a pointer, so it survives the per-task store ->
// session store merge (where sequence numbers are rewritten).
type Ref struct {
	Type     ContainerType `json:"type"`
	Sequence int64         `json:"sequence"`
}

// Zero reports whether this Ref was never assigned.
func (r Ref) Zero() bool { return r.Sequence == 0 && r.Type == "" }

// EventDataStream represents the raw byte stream from which events
// were extracted (spec.md §3.2). Hashes are computed once, lazily, by
// the extraction worker and cached on this container for the session.
type EventDataStream struct {
	Sequence      int64         `json:"sequence"`
	PathSpec      string        `json:"path_spec"` // comparable form; see pkg/pathspec
	FileEntryType string        `json:"file_entry_type"`
	MD5           string        `json:"md5,omitempty"`
	SHA1          string        `json:"sha1,omitempty"`
	SHA256        string        `json:"sha256,omitempty"`
	YaraMatches   []string      `json:"yara_matches,omitempty"`
}

// Ref returns this container's cross-container reference.
func (s *EventDataStream) Ref() Ref { return Ref{Type: ContainerEventDataStream, Sequence: s.Sequence} }

// EventData is an open-schema attribute container keyed by a
// free-form data_type string (spec.md §3.3), e.g.
// "windows:lnk:link" or "chrome:history:page_visited".
type EventData struct {
	Sequence     int64                  `json:"sequence"`
	DataType     string                 `json:"data_type"`
	Stream       Ref                    `json:"stream"` // back-reference to the producing EventDataStream
	ParserName   string                 `json:"parser_name"`
	Attributes   map[string]interface{} `json:"attributes"`
}

func (d *EventData) Ref() Ref { return Ref{Type: ContainerEventData, Sequence: d.Sequence} }

// Event is the minimal timestamped container (spec.md §3.4).
type Event struct {
	Sequence              int64         `json:"sequence"`
	Timestamp             DateTimeValue `json:"timestamp"`
	TimestampDescription  string        `json:"timestamp_description"`
	EventDataRef          Ref           `json:"event_data_ref"`
}

func (e *Event) Ref() Ref { return Ref{Type: ContainerEvent, Sequence: e.Sequence} }

// Common timestamp_description values (spec.md §3.4); parsers are not
// restricted to this set, it merely documents convention.
const (
	TimestampCreation        = "Creation Time"
	TimestampLastAccess      = "Last Access Time"
	TimestampLastModification = "Last Modification Time"
	TimestampChange          = "Change Time"
	TimestampProgramExecution = "Program Execution Duration"
)

// EventTag attaches an additive label set to an event (spec.md §3.5).
type EventTag struct {
	Sequence int64    `json:"sequence"`
	EventRef Ref      `json:"event_ref"`
	Labels   []string `json:"labels"`
}

func (t *EventTag) Ref() Ref { return Ref{Type: ContainerEventTag, Sequence: t.Sequence} }

// Warning is a persisted, non-fatal extraction error (spec.md §3.6).
type Warning struct {
	Sequence   int64  `json:"sequence"`
	PathSpec   string `json:"path_spec"`
	ParserName string `json:"parser_name"`
	Message    string `json:"message"`
	Code       string `json:"code"`
}

func (w *Warning) Ref() Ref { return Ref{Type: ContainerWarning, Sequence: w.Sequence} }

// NewSessionID mints a fresh session UUID (spec.md §3.8).
func NewSessionID() uuid.UUID { return uuid.New() }

// NewTaskID mints a fresh task UUID (spec.md §3.7).
func NewTaskID() uuid.UUID { return uuid.New() }

// Clock lets tests substitute a deterministic time source; production
// code uses RealClock.
type Clock interface{ Now() time.Time }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock is the default, wall-clock Clock.
var RealClock Clock = realClock{}
