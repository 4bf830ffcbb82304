// Package queue defines the job envelope, retry policy and job records of the processing queue.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuongbtq/meeting-pipeline/internal/domain"
	"github.com/go-playground/validator/v10"
)

// ContentType is the content type of every queue message
const ContentType = "application/json"

var validate = validator.New()

// Job is the unit of work submitted to the queue
type Job struct {
	RunID      string          `json:"run_id" validate:"required,uuid"`
	MeetingID  string          `json:"meeting_id" validate:"required"`
	Transcript string          `json:"transcript" validate:"required"`
	Metadata   domain.Metadata `json:"metadata"`
}

// Validate checks the envelope carries everything a worker needs
func (j Job) Validate() error {
	if err := validate.Struct(j); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return nil
}

// ProgressFunc reports job progress as a percentage in [0, 100]
type ProgressFunc func(ctx context.Context, percent int)

// Message is the wire form of a job delivery. Attempt is 1-based and increases on every retry.
type Message struct {
	JobID       string    `json:"job_id" validate:"required,uuid"`
	Attempt     int       `json:"attempt" validate:"min=1"`
	MaxAttempts int       `json:"max_attempts" validate:"min=1"`
	BackoffMS   int64     `json:"backoff_ms" validate:"min=0"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	Job         Job       `json:"job"`
}

// Backoff returns the retry policy carried by the message
func (m *Message) Backoff() BackoffPolicy {
	return BackoffPolicy{Type: BackoffExponential, Delay: time.Duration(m.BackoffMS) * time.Millisecond}
}

// HasAttemptsLeft reports whether a failed delivery may be retried
func (m *Message) HasAttemptsLeft() bool {
	return m.Attempt < m.MaxAttempts
}

// Next returns the message for the following attempt
func (m *Message) Next() *Message {
	next := *m
	next.Attempt++
	return &next
}

// Encode serializes the message for publishing
func (m *Message) Encode() ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job message: %w", err)
	}
	return body, nil
}

// DecodeMessage parses and validates a delivery body.
// Any failure wraps domain.ErrInvalidPayload so the message is dropped rather than retried.
func DecodeMessage(body []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	if err := validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	return &msg, nil
}
