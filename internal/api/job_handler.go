// Package api contains the HTTP handlers for the jobs API: enqueue,
// status, progress, cancellation and queue health.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lyricwatch/lyricwatch/internal/api/middleware"
	"github.com/lyricwatch/lyricwatch/internal/api/shared"
	"github.com/lyricwatch/lyricwatch/internal/domain"
	"github.com/lyricwatch/lyricwatch/internal/service"
)

// CreateJobRequest represents the request body for enqueueing a job.
type CreateJobRequest struct {
	Type     string          `json:"type"               validate:"required"`
	Priority string          `json:"priority,omitempty" validate:"omitempty,oneof=high medium low"`
	Payload  json.RawMessage `json:"payload"            validate:"required"`
}

// QueueHealthResponse is the operator view of the queue.
type QueueHealthResponse struct {
	PendingByPriority       map[string]int `json:"pending_by_priority"`
	OldestPendingAgeSeconds *float64       `json:"oldest_pending_age_seconds,omitempty"`
	ActiveJobIDs            []string       `json:"active_job_ids"`
}

// JobHandler handles job-related HTTP requests.
type JobHandler struct {
	analysisService *service.AnalysisService
	validator       *validator.Validate
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(analysisService *service.AnalysisService) *JobHandler {
	return &JobHandler{
		analysisService: analysisService,
		validator:       validator.New(),
	}
}

// CreateJob handles POST /api/jobs requests. Enqueueing never blocks on
// execution: the response is 202 Accepted with the queued job.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetOwner(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Owner identity not found")
		return
	}

	var req CreateJobRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	view, err := h.analysisService.EnqueueJob(r.Context(), service.EnqueueParams{
		Type:     req.Type,
		Priority: req.Priority,
		Owner:    owner,
		Payload:  req.Payload,
	})
	if err != nil {
		status, message := mapError(err)
		shared.RespondWithErrorAndLog(w, r, status, message, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, view)
}

// GetJob handles GET /api/jobs/{id} requests.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobIDParam(w, r)
	if !ok {
		return
	}

	view, err := h.analysisService.GetStatus(r.Context(), jobID)
	if err != nil {
		status, message := mapError(err)
		shared.RespondWithErrorAndLog(w, r, status, message, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, view)
}

// GetJobProgress handles GET /api/jobs/{id}/progress requests.
func (h *JobHandler) GetJobProgress(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobIDParam(w, r)
	if !ok {
		return
	}

	view, err := h.analysisService.GetProgress(r.Context(), jobID)
	if err != nil {
		status, message := mapError(err)
		shared.RespondWithErrorAndLog(w, r, status, message, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, view)
}

// CancelJob handles DELETE /api/jobs/{id} requests. Cancellation is
// cooperative for running jobs, so a 202 means the request was recorded,
// not that the job already stopped.
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobIDParam(w, r)
	if !ok {
		return
	}

	if err := h.analysisService.Cancel(r.Context(), jobID); err != nil {
		status, message := mapError(err)
		shared.RespondWithErrorAndLog(w, r, status, message, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, map[string]string{
		"job_id": jobID.String(),
		"state":  "cancellation_requested",
	})
}

// GetQueueHealth handles GET /api/queue/health requests.
func (h *JobHandler) GetQueueHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.analysisService.QueueHealth(r.Context())
	if err != nil {
		status, message := mapError(err)
		shared.RespondWithErrorAndLog(w, r, status, message, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, queueHealthResponse(health))
}

func (h *JobHandler) jobIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return uuid.Nil, false
	}
	return jobID, true
}

func queueHealthResponse(health *domain.QueueHealth) QueueHealthResponse {
	resp := QueueHealthResponse{
		PendingByPriority: make(map[string]int, len(health.PendingByPriority)),
		ActiveJobIDs:      make([]string, 0, len(health.ActiveJobIDs)),
	}
	for priority, count := range health.PendingByPriority {
		resp.PendingByPriority[priority.String()] = count
	}
	for _, id := range health.ActiveJobIDs {
		resp.ActiveJobIDs = append(resp.ActiveJobIDs, id.String())
	}
	if health.OldestPendingAge != nil {
		secs := health.OldestPendingAge.Seconds()
		resp.OldestPendingAgeSeconds = &secs
	}
	return resp
}
