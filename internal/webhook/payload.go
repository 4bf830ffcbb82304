package webhook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cuongbtq/meeting-pipeline/internal/domain"
	"github.com/xeipuuv/gojsonschema"
)

const payloadSchema = `{
  "type": "object",
  "required": ["meeting"],
  "properties": {
    "meeting": {
      "type": "object",
      "required": ["id"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "call_url": {"type": "string"},
        "started_at": {"type": "string"},
        "ended_at": {"type": "string"},
        "title": {"type": "string"}
      }
    },
    "calendar_invitees": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "email": {"type": "string"},
          "name": {"type": "string"}
        }
      }
    },
    "transcript": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["text"],
        "properties": {
          "text": {"type": "string"},
          "speaker": {"type": "string"},
          "timestamp": {"type": "number"}
        }
      }
    },
    "summary": {"type": "string"},
    "notes": {"type": "string"}
  }
}`

var payloadSchemaLoader = gojsonschema.NewStringLoader(payloadSchema)

// Meeting describes the recorded meeting
type Meeting struct {
	ID        string `json:"id"`
	CallURL   string `json:"call_url"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at"`
	Title     string `json:"title,omitempty"`
}

// Invitee is a calendar invitee of the meeting
type Invitee struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Payload is the body of a recording-ready webhook event
type Payload struct {
	Meeting          Meeting           `json:"meeting"`
	CalendarInvitees []Invitee         `json:"calendar_invitees,omitempty"`
	Transcript       []TranscriptEntry `json:"transcript,omitempty"`
	Summary          string            `json:"summary,omitempty"`
	Notes            string            `json:"notes,omitempty"`
}

// PayloadError describes why a webhook body was rejected
type PayloadError struct {
	Problems []string
}

func (e *PayloadError) Error() string {
	return "invalid webhook payload: " + strings.Join(e.Problems, "; ")
}

// ParsePayload validates body against the event schema and decodes it.
func ParsePayload(body []byte) (*Payload, error) {
	result, err := gojsonschema.Validate(payloadSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, &PayloadError{Problems: []string{fmt.Sprintf("body is not valid JSON: %v", err)}}
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, &PayloadError{Problems: problems}
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &PayloadError{Problems: []string{err.Error()}}
	}

	return &payload, nil
}

// ProspectEmail returns the first invitee email, or "" when there are none.
func (p *Payload) ProspectEmail() string {
	for _, inv := range p.CalendarInvitees {
		if inv.Email != "" {
			return inv.Email
		}
	}
	return ""
}

// RunMetadata builds the metadata bag stored on the run and carried by the job.
func (p *Payload) RunMetadata() domain.Metadata {
	invitees := make([]any, 0, len(p.CalendarInvitees))
	for _, inv := range p.CalendarInvitees {
		invitees = append(invitees, map[string]any{"email": inv.Email, "name": inv.Name})
	}

	meta := domain.Metadata{
		"meeting_title": p.Meeting.Title,
		"call_url":      p.Meeting.CallURL,
		"started_at":    p.Meeting.StartedAt,
		"ended_at":      p.Meeting.EndedAt,
		"invitees":      invitees,
	}
	if email := p.ProspectEmail(); email != "" {
		meta["prospect_email"] = email
	}
	if p.Summary != "" {
		meta["summary"] = p.Summary
	}
	if p.Notes != "" {
		meta["notes"] = p.Notes
	}

	return meta
}
