package domain

import "time"

// Metadata is the opaque key/value bag carried through the pipeline unmodified
type Metadata map[string]any

// String returns the string value stored under key, or "" when absent or not a string.
func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// LogEntry is one element of a run's append-style diagnostic log
type LogEntry struct {
	At      time.Time      `json:"at"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// NewLogEntry builds a log entry stamped with the current time
func NewLogEntry(level, message string, fields map[string]any) LogEntry {
	return LogEntry{
		At:      time.Now().UTC(),
		Level:   level,
		Message: message,
		Fields:  fields,
	}
}

// Run is one attempt to process a single meeting transcript into deliverables
type Run struct {
	ID           string
	MeetingID    string
	ExternalID   string
	Status       string
	Transcript   string
	Metadata     Metadata
	Deliverables []DeliverableType
	Log          []LogEntry
	CreatedAt    time.Time
	UpdatedAt    time.Time
	FinishedAt   *time.Time
}

// NewRun holds the fields needed to create a run
type NewRun struct {
	MeetingID  string
	ExternalID string
	Transcript string
	Metadata   Metadata
}

// StatusUpdate carries the optional fields written alongside a status change
type StatusUpdate struct {
	Transcript *string
	Metadata   Metadata
}

// Output is a persisted record of one successfully generated deliverable
type Output struct {
	ID          string
	RunID       string
	Type        DeliverableType
	Title       string
	ShareURL    string
	ExternalRef string
	Extra       map[string]any
	CreatedAt   time.Time
}

// NewOutput holds the fields needed to record an output
type NewOutput struct {
	RunID       string
	Type        DeliverableType
	Title       string
	ShareURL    string
	ExternalRef string
	Extra       map[string]any
}
