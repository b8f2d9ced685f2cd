package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hearthfire/shelter-engine/internal/services/events"
	servicequeue "github.com/hearthfire/shelter-engine/internal/services/queue"
	"github.com/hearthfire/shelter-engine/pkg/project"
	"github.com/hearthfire/shelter-engine/pkg/queue"
	"github.com/hearthfire/shelter-engine/pkg/storage"
)

// JobsHandler enqueues pipeline jobs and reports their status
type JobsHandler struct {
	storage     storage.Storage
	jobQueue    *servicequeue.JobQueue
	broadcaster *events.Broadcaster
	logger      *slog.Logger
}

func NewJobsHandler(store storage.Storage, jobQueue *servicequeue.JobQueue, broadcaster *events.Broadcaster, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{
		storage:     store,
		jobQueue:    jobQueue,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// EnqueueJobRequest defines the request body for enqueuing a job
type EnqueueJobRequest struct {
	ProjectID uuid.UUID     `json:"project_id"`
	Type      queue.JobType `json:"type"`
	Chapter   int           `json:"chapter,omitempty"`
}

// EnqueueJobResponse is returned when a job is accepted
type EnqueueJobResponse struct {
	JobID     string    `json:"job_id"`
	ProjectID uuid.UUID `json:"project_id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
}

// ServeHTTP handles HTTP requests for job operations
// Routes:
// POST /v1/jobs       - Enqueue a story or production job
// GET /v1/jobs/{id}   - Read job status
func (h *JobsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/jobs"), "/")

	switch {
	case path == "" && r.Method == http.MethodPost:
		h.handleEnqueue(w, r)
	case path != "" && r.Method == http.MethodGet:
		h.handleStatus(w, r, path)
	default:
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. POST /v1/jobs or GET /v1/jobs/{id}")
	}
}

func (h *JobsHandler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.ProjectID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "project_id is required")
		return
	}

	switch req.Type {
	case queue.JobTypeStory:
		// No prerequisites; story jobs start a project over
	case queue.JobTypeProduction:
		if req.Chapter < 1 {
			h.writeError(w, http.StatusBadRequest, "chapter is required for production jobs")
			return
		}
	default:
		h.writeError(w, http.StatusBadRequest, "Unknown job type, expected story or production")
		return
	}

	p, err := h.storage.LoadProject(r.Context(), req.ProjectID)
	if err != nil {
		h.logger.Error("Failed to load project", "project_id", req.ProjectID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load project")
		return
	}
	if p == nil {
		h.writeError(w, http.StatusNotFound, "Project not found")
		return
	}

	job := &queue.Job{
		JobID:      uuid.New().String(),
		Type:       req.Type,
		ProjectID:  req.ProjectID,
		Chapter:    req.Chapter,
		EnqueuedAt: time.Now(),
	}

	if err := h.jobQueue.Enqueue(r.Context(), job); err != nil {
		h.logger.Error("Failed to enqueue job", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}

	status := &project.JobStatus{
		JobID:     job.JobID,
		ProjectID: job.ProjectID,
		Type:      string(job.Type),
		Status:    "queued",
		StartedAt: job.EnqueuedAt,
	}
	if err := h.storage.SaveJobStatus(r.Context(), status); err != nil {
		h.logger.Error("Failed to save job status", "error", err, "job_id", job.JobID)
	}

	if err := h.broadcaster.PublishJobQueued(r.Context(), job.ProjectID, job.JobID, string(job.Type)); err != nil {
		h.logger.Error("Failed to publish queued event", "error", err, "job_id", job.JobID)
	}

	h.logger.Info("Job enqueued",
		"job_id", job.JobID,
		"type", job.Type,
		"project_id", job.ProjectID,
		"chapter", job.Chapter)

	w.WriteHeader(http.StatusAccepted)
	h.writeJSON(w, EnqueueJobResponse{
		JobID:     job.JobID,
		ProjectID: job.ProjectID,
		Type:      string(job.Type),
		Status:    "queued",
	})
}

func (h *JobsHandler) handleStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	status, err := h.storage.LoadJobStatus(r.Context(), jobID)
	if err != nil {
		h.logger.Error("Failed to load job status", "job_id", jobID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load job status")
		return
	}
	if status == nil {
		h.writeError(w, http.StatusNotFound, "Job not found or expired")
		return
	}
	h.writeJSON(w, status)
}

func (h *JobsHandler) writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}

func (h *JobsHandler) writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}
