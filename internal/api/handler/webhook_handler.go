package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/meeting-pipeline/internal/api/dto"
	"github.com/cuongbtq/meeting-pipeline/internal/domain"
	"github.com/cuongbtq/meeting-pipeline/internal/queue"
	"github.com/cuongbtq/meeting-pipeline/internal/webhook"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxWebhookBody bounds the raw body read before the signature is checked
const maxWebhookBody = 10 << 20

// WebhookHandler accepts meeting events and manual triggers
type WebhookHandler struct {
	logger          *slog.Logger
	runs            RunRepository
	jobs            JobEnqueuer
	transcripts     TranscriptFetcher
	secret          string
	signatureHeader string
	queueOptions    queue.Options
	now             func() time.Time
}

// NewWebhookHandler creates a new WebhookHandler instance
func NewWebhookHandler(deps *Dependencies) *WebhookHandler {
	header := deps.SignatureHeader
	if header == "" {
		header = webhook.DefaultSignatureHeader
	}

	return &WebhookHandler{
		logger:          deps.Logger,
		runs:            deps.Runs,
		jobs:            deps.Jobs,
		transcripts:     deps.Transcripts,
		secret:          deps.WebhookSecret,
		signatureHeader: header,
		queueOptions:    deps.QueueOptions,
		now:             time.Now,
	}
}

// HandleFathom handles POST /api/v1/webhooks/fathom
// Verifies the signature over the raw body, creates the run once per meeting and enqueues it
func (h *WebhookHandler) HandleFathom(c *gin.Context) {
	if h.secret == "" {
		h.logger.Error("Webhook secret is not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook not configured"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("Failed to read webhook body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	if err := webhook.CheckSignature(body, c.GetHeader(h.signatureHeader), h.secret); err != nil {
		h.logger.Warn("Webhook signature rejected",
			slog.String("reason", err.Error()),
			slog.String("ip", c.ClientIP()),
		)
		if errors.Is(err, webhook.ErrMissingSignature) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing signature"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	payload, err := webhook.ParsePayload(body)
	if err != nil {
		h.logger.Warn("Webhook payload rejected", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	ctx := c.Request.Context()

	// redeliveries are acknowledged before any transcript work
	existing, err := h.runs.GetByMeetingID(ctx, payload.Meeting.ID)
	switch {
	case err == nil:
		h.logger.Info("Duplicate meeting event ignored",
			slog.String("meeting_id", payload.Meeting.ID),
			slog.String("run_id", existing.ID),
		)
		c.JSON(http.StatusOK, alreadyProcessed(existing))
		return
	case !errors.Is(err, domain.ErrRunNotFound):
		h.logger.Error("Failed to look up meeting",
			slog.String("meeting_id", payload.Meeting.ID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	transcript := webhook.NormalizeTranscript(payload.Transcript)
	if transcript == "" && h.transcripts != nil {
		fetched, fetchErr := h.transcripts.FetchTranscript(ctx, payload.Meeting.ID)
		if fetchErr != nil {
			h.logger.Warn("Failed to fetch transcript from provider",
				slog.String("meeting_id", payload.Meeting.ID),
				slog.String("error", fetchErr.Error()),
			)
		}
		transcript = fetched
	}

	if transcript == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No transcript available"})
		return
	}

	run, created, err := h.submit(ctx, domain.NewRun{
		MeetingID:  payload.Meeting.ID,
		Transcript: transcript,
		Metadata:   payload.RunMetadata(),
	})
	if err != nil {
		h.logger.Error("Failed to accept webhook",
			slog.String("meeting_id", payload.Meeting.ID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if !created {
		c.JSON(http.StatusOK, alreadyProcessed(run))
		return
	}

	c.JSON(http.StatusOK, dto.WebhookResponse{Success: true, RunID: run.ID})
}

// TestRun handles POST /api/v1/test/run
// Starts a run from a raw transcript without a signed event
func (h *WebhookHandler) TestRun(c *gin.Context) {
	var req dto.TestRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "transcript is required"})
		return
	}

	title := req.MeetingTitle
	if title == "" {
		title = "Test Run"
	}

	run, _, err := h.submit(c.Request.Context(), domain.NewRun{
		// the suffix keeps triggers within the same millisecond apart
		MeetingID:  fmt.Sprintf("test-%d-%s", h.now().UnixMilli(), uuid.NewString()[:8]),
		Transcript: req.Transcript,
		Metadata:   domain.Metadata{"meeting_title": title, "test": true},
	})
	if err != nil {
		h.logger.Error("Failed to start test run", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, dto.WebhookResponse{Success: true, RunID: run.ID})
}

func alreadyProcessed(run *domain.Run) dto.WebhookResponse {
	return dto.WebhookResponse{Success: true, RunID: run.ID, Message: "already processed"}
}

// submit creates the run and enqueues its job. An existing run for the meeting is returned as is
// and nothing is enqueued.
func (h *WebhookHandler) submit(ctx context.Context, in domain.NewRun) (*domain.Run, bool, error) {
	run, created, err := h.runs.CreateIfAbsent(ctx, in)
	if err != nil {
		return nil, false, err
	}

	if !created {
		h.logger.Info("Duplicate meeting event ignored",
			slog.String("meeting_id", in.MeetingID),
			slog.String("run_id", run.ID),
		)
		return run, false, nil
	}

	jobID, err := h.jobs.Enqueue(ctx, queue.Job{
		RunID:      run.ID,
		MeetingID:  run.MeetingID,
		Transcript: in.Transcript,
		Metadata:   in.Metadata,
	}, h.queueOptions)
	if err != nil {
		return nil, false, fmt.Errorf("failed to enqueue run %s: %w", run.ID, err)
	}

	h.logger.Info("Run enqueued",
		slog.String("run_id", run.ID),
		slog.String("job_id", jobID),
		slog.String("meeting_id", run.MeetingID),
	)

	return run, true, nil
}
