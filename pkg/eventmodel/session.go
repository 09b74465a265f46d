package eventmodel

import (
	"time"

	"github.com/google/uuid"
)

// PreprocessingFacts is the frozen subset of the knowledge base (see
// internal/knowledgebase) recorded on the Session container so later
// readers (info/output stages) know what the engine knew at run time.
type PreprocessingFacts struct {
	OSFamily     string            `json:"os_family"`
	Hostname     string            `json:"hostname"`
	TimeZone     string            `json:"time_zone"`
	CodePage     string            `json:"code_page"`
	Users        []UserFact        `json:"users,omitempty"`
	EnvVariables map[string]string `json:"env_variables,omitempty"`
}

// UserFact is one entry of the knowledge base's user list.
type UserFact struct {
	Username string `json:"username"`
	SID      string `json:"sid,omitempty"`
	HomePath string `json:"home_path"`
}

// Counters tracks session-wide running totals, surfaced by the info
// CLI command and the processing status view (spec.md §4.10).
type Counters struct {
	EventsProduced      int64            `json:"events_produced"`
	WarningsProduced    int64            `json:"warnings_produced"`
	TasksCreated        int64            `json:"tasks_created"`
	TasksCompleted      int64            `json:"tasks_completed"`
	TasksAbandoned      int64            `json:"tasks_abandoned"`
	TasksMerged         int64            `json:"tasks_merged"`
	VSSDedupDropped     int64            `json:"vss_dedup_dropped"`
	EventsByDataType    map[string]int64 `json:"events_by_data_type,omitempty"`
}

// Session is the top-level scope of one extraction run (spec.md §3.8).
type Session struct {
	SessionID        uuid.UUID          `json:"session_id"`
	StartTime        time.Time          `json:"start_time"`
	CompletionTime   *time.Time         `json:"completion_time,omitempty"`
	Source           string             `json:"source"`
	CommandLine      string             `json:"command_line"`
	Preprocessing    PreprocessingFacts `json:"preprocessing_facts"`
	ParserFilter     string             `json:"parser_filter"`
	Counters         Counters           `json:"counters"`
}

// NewSession creates a fresh session scope for source.
func NewSession(source, commandLine, parserFilter string) *Session {
	return &Session{
		SessionID:    NewSessionID(),
		StartTime:    time.Now(),
		Source:       source,
		CommandLine:  commandLine,
		ParserFilter: parserFilter,
		Counters:     Counters{EventsByDataType: make(map[string]int64)},
	}
}

// Complete stamps the session's completion time.
func (s *Session) Complete() {
	now := time.Now()
	s.CompletionTime = &now
}
