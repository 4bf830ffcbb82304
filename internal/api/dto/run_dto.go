package dto

// TestRunRequest is the body of a manual trigger
type TestRunRequest struct {
	Transcript   string `json:"transcript" binding:"required"`
	MeetingTitle string `json:"meetingTitle"`
}

// WebhookResponse acknowledges an accepted meeting event
type WebhookResponse struct {
	Success bool   `json:"success"`
	RunID   string `json:"runId"`
	Message string `json:"message,omitempty"`
}

type ListRunsRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListRunsResponse struct {
	Runs       []RunDTO `json:"runs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type LogEntryDTO struct {
	At      string         `json:"at"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

type RunDTO struct {
	RunID        string         `json:"run_id"`
	MeetingID    string         `json:"meeting_id"`
	Status       string         `json:"status"`
	Metadata     map[string]any `json:"metadata"`
	Deliverables []string       `json:"deliverables"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
	FinishedAt   string         `json:"finished_at,omitempty"`
}

type OutputDTO struct {
	OutputID    string         `json:"output_id"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	ShareURL    string         `json:"share_url,omitempty"`
	ExternalRef string         `json:"external_ref,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
	CreatedAt   string         `json:"created_at"`
}

// RunDetailResponse is a run with its log and outputs
type RunDetailResponse struct {
	RunDTO
	Log     []LogEntryDTO `json:"log"`
	Outputs []OutputDTO   `json:"outputs"`
}
