package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/meeting-pipeline/internal/api/dto"
	"github.com/cuongbtq/meeting-pipeline/internal/domain"
	"github.com/cuongbtq/meeting-pipeline/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RunHandler serves read access to runs and their outputs
type RunHandler struct {
	logger  *slog.Logger
	runs    RunRepository
	outputs OutputReader
}

// NewRunHandler creates a new RunHandler instance
func NewRunHandler(deps *Dependencies) *RunHandler {
	return &RunHandler{
		logger:  deps.Logger,
		runs:    deps.Runs,
		outputs: deps.Outputs,
	}
}

// GetRun handles GET /api/v1/runs/:run_id
func (h *RunHandler) GetRun(c *gin.Context) {
	runID := c.Param("run_id")

	if _, err := uuid.Parse(runID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run_id must be a valid UUID"})
		return
	}

	run, err := h.runs.GetByID(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
			return
		}
		h.logger.Error("Failed to get run", slog.String("run_id", runID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get run"})
		return
	}

	outputs, err := h.outputs.ListByRun(c.Request.Context(), runID)
	if err != nil {
		h.logger.Error("Failed to list outputs", slog.String("run_id", runID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get run"})
		return
	}

	resp := dto.RunDetailResponse{
		RunDTO:  toRunDTO(run),
		Log:     make([]dto.LogEntryDTO, 0, len(run.Log)),
		Outputs: make([]dto.OutputDTO, 0, len(outputs)),
	}
	for _, entry := range run.Log {
		resp.Log = append(resp.Log, dto.LogEntryDTO{
			At:      entry.At.Format(time.RFC3339),
			Level:   entry.Level,
			Message: entry.Message,
			Fields:  entry.Fields,
		})
	}
	for _, out := range outputs {
		resp.Outputs = append(resp.Outputs, dto.OutputDTO{
			OutputID:    out.ID,
			Type:        string(out.Type),
			Title:       out.Title,
			ShareURL:    out.ShareURL,
			ExternalRef: out.ExternalRef,
			Extra:       out.Extra,
			CreatedAt:   out.CreatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, resp)
}

// ListRuns handles GET /api/v1/runs
// Lists runs newest first with optional status filter and cursor pagination
func (h *RunHandler) ListRuns(c *gin.Context) {
	var req dto.ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	if req.Status != "" && !domain.ValidRunStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	cursor, err := DecodeRunCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
		return
	}

	runs, err := h.runs.List(c.Request.Context(), store.RunFilter{
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list runs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list runs"})
		return
	}

	hasMore := len(runs) > req.PageSize
	if hasMore {
		runs = runs[:req.PageSize]
	}

	resp := dto.ListRunsResponse{Runs: make([]dto.RunDTO, 0, len(runs))}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, toRunDTO(run))
	}

	if hasMore {
		last := runs[len(runs)-1]
		resp.NextCursor = EncodeRunCursor(&store.RunCursor{CreatedAt: last.CreatedAt, RunID: last.ID})
	}

	c.JSON(http.StatusOK, resp)
}

func toRunDTO(run *domain.Run) dto.RunDTO {
	deliverables := make([]string, 0, len(run.Deliverables))
	for _, d := range run.Deliverables {
		deliverables = append(deliverables, string(d))
	}

	out := dto.RunDTO{
		RunID:        run.ID,
		MeetingID:    run.MeetingID,
		Status:       run.Status,
		Metadata:     run.Metadata,
		Deliverables: deliverables,
		CreatedAt:    run.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    run.UpdatedAt.Format(time.RFC3339),
	}
	if run.FinishedAt != nil {
		out.FinishedAt = run.FinishedAt.Format(time.RFC3339)
	}
	return out
}
