package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hearthfire/shelter-engine/internal/services/events"
	"github.com/hearthfire/shelter-engine/internal/services/queue"
	"github.com/hearthfire/shelter-engine/pkg/progress"
	"github.com/hearthfire/shelter-engine/pkg/project"
	pkgqueue "github.com/hearthfire/shelter-engine/pkg/queue"
	"github.com/hearthfire/shelter-engine/pkg/storage"
)

const (
	dequeueTimeout = 5 * time.Second

	// A production run generates dozens of model calls and images; the
	// lock must outlive the slowest realistic chapter.
	projectLockTTL = 30 * time.Minute
)

// Worker processes jobs from the pipeline queue
type Worker struct {
	id          string
	queue       *queue.JobQueue
	processor   *PipelineProcessor
	storage     storage.Storage
	broadcaster *events.Broadcaster
	redisClient *redis.Client
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new worker instance
func New(jobQueue *queue.JobQueue, processor *PipelineProcessor, store storage.Storage, redisClient *redis.Client, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:          workerID,
		queue:       jobQueue,
		processor:   processor,
		storage:     store,
		broadcaster: events.NewBroadcaster(redisClient, log),
		redisClient: redisClient,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins processing jobs from the queue
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id)

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			return nil
		default:
			if err := w.processNextJob(); err != nil {
				w.log.Error("Error processing job", "error", err, "worker_id", w.id)
				// Continue processing even on error
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

// processNextJob pulls the next job from the queue and processes it
func (w *Worker) processNextJob() error {
	ctx, cancel := context.WithTimeout(w.ctx, dequeueTimeout)
	defer cancel()

	job, err := w.queue.BlockingDequeue(ctx, dequeueTimeout)
	if err != nil {
		if w.ctx.Err() != nil || ctx.Err() != nil {
			// Shutdown or timeout, not a real error
			return nil
		}
		return fmt.Errorf("failed to dequeue job: %w", err)
	}
	if job == nil {
		// Queue is empty or timeout occurred - this is normal
		return nil
	}

	w.log.Info("Received job from queue",
		"worker_id", w.id,
		"job_id", job.JobID,
		"type", job.Type,
		"project_id", job.ProjectID.String(),
	)

	// Try to acquire project lock
	locked, err := w.acquireProjectLock(job.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to acquire project lock: %w", err)
	}
	if !locked {
		// Another worker is processing this project
		// Re-queue at the end and try next job
		w.log.Info("Project already locked, re-queueing job",
			"worker_id", w.id,
			"job_id", job.JobID,
			"project_id", job.ProjectID.String(),
		)
		if err := w.queue.Enqueue(w.ctx, job); err != nil {
			return fmt.Errorf("failed to re-queue job: %w", err)
		}
		return nil
	}

	defer w.releaseProjectLock(job.ProjectID)
	return w.processJob(job)
}

// acquireProjectLock attempts to acquire a lock for a project
// Returns true if lock was acquired, false if already locked
func (w *Worker) acquireProjectLock(projectID uuid.UUID) (bool, error) {
	lockKey := fmt.Sprintf("project-lock:%s", projectID.String())

	result, err := w.redisClient.SetNX(w.ctx, lockKey, w.id, projectLockTTL).Result()
	if err != nil {
		return false, err
	}
	return result, nil
}

// releaseProjectLock releases the lock for a project
func (w *Worker) releaseProjectLock(projectID uuid.UUID) {
	lockKey := fmt.Sprintf("project-lock:%s", projectID.String())

	// Only delete if we own the lock
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	if err := script.Run(w.ctx, w.redisClient, []string{lockKey}, w.id).Err(); err != nil {
		w.log.Error("Failed to release project lock", "error", err, "project_id", projectID.String())
	}
}

// processJob runs a single job through the pipeline processor
func (w *Worker) processJob(job *pkgqueue.Job) error {
	w.log.Info("Processing job",
		"worker_id", w.id,
		"job_id", job.JobID,
		"type", job.Type,
		"project_id", job.ProjectID.String(),
	)

	start := time.Now()

	w.saveStatus(job, "processing", "", "")
	if err := w.broadcaster.PublishJobProcessing(w.ctx, job.ProjectID, job.JobID, string(job.Type)); err != nil {
		w.log.Error("Failed to publish processing event", "error", err)
		// Don't fail the job just because event publishing failed
	}

	notify := w.progressFunc(job)

	var result map[string]interface{}
	var err error
	switch job.Type {
	case pkgqueue.JobTypeStory:
		result, err = w.processor.ProcessStory(w.ctx, job, notify)
	case pkgqueue.JobTypeProduction:
		result, err = w.processor.ProcessProduction(w.ctx, job, notify)
	default:
		err = fmt.Errorf("unknown job type: %s", job.Type)
	}

	if err != nil {
		w.log.Error("Job failed",
			"worker_id", w.id,
			"job_id", job.JobID,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)

		w.saveStatus(job, "failed", "", err.Error())
		if pubErr := w.broadcaster.PublishJobFailed(w.ctx, job.ProjectID, job.JobID, err.Error()); pubErr != nil {
			w.log.Error("Failed to publish failure event", "error", pubErr)
		}
		return fmt.Errorf("failed to process %s job: %w", job.Type, err)
	}

	w.log.Info("Job processed successfully",
		"worker_id", w.id,
		"job_id", job.JobID,
		"type", job.Type,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	result["duration_ms"] = time.Since(start).Milliseconds()
	w.saveStatus(job, "completed", "", "")
	if err := w.broadcaster.PublishJobCompleted(w.ctx, job.ProjectID, job.JobID, result); err != nil {
		w.log.Error("Failed to publish completion event", "error", err)
	}
	return nil
}

// progressFunc bridges pipeline progress into events and job status.
func (w *Worker) progressFunc(job *pkgqueue.Job) progress.Func {
	return func(message string, level progress.Level) {
		if err := w.broadcaster.PublishJobProgress(w.ctx, job.ProjectID, job.JobID, level, message); err != nil {
			w.log.Error("Failed to publish progress event", "error", err, "job_id", job.JobID)
		}
		w.saveStatus(job, "processing", message, "")
	}
}

func (w *Worker) saveStatus(job *pkgqueue.Job, status, message, errMsg string) {
	js := &project.JobStatus{
		JobID:     job.JobID,
		ProjectID: job.ProjectID,
		Type:      string(job.Type),
		Status:    status,
		Message:   message,
		Error:     errMsg,
		StartedAt: job.EnqueuedAt,
	}
	if err := w.storage.SaveJobStatus(w.ctx, js); err != nil {
		w.log.Error("Failed to save job status", "error", err, "job_id", job.JobID)
	}
}
