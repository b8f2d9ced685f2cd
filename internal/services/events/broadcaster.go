package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hearthfire/shelter-engine/pkg/progress"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeJobQueued     EventType = "job.queued"
	EventTypeJobProcessing EventType = "job.processing"
	EventTypeJobProgress   EventType = "job.progress"
	EventTypeJobCompleted  EventType = "job.completed"
	EventTypeJobFailed     EventType = "job.failed"
)

// Event represents a generic event structure
type Event struct {
	Type      EventType              `json:"type"`
	JobID     string                 `json:"job_id,omitempty"`
	ProjectID string                 `json:"project_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// ChannelForProject returns the pub/sub channel for a project's events
func ChannelForProject(projectID uuid.UUID) string {
	return fmt.Sprintf("project-events:%s", projectID.String())
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishJobQueued publishes a job.queued event
func (b *Broadcaster) PublishJobQueued(ctx context.Context, projectID uuid.UUID, jobID string, jobType string) error {
	event := Event{
		Type:      EventTypeJobQueued,
		JobID:     jobID,
		ProjectID: projectID.String(),
		Data: map[string]interface{}{
			"status": "queued",
			"type":   jobType,
		},
	}
	return b.publishToProject(ctx, projectID, event)
}

// PublishJobProcessing publishes a job.processing event
func (b *Broadcaster) PublishJobProcessing(ctx context.Context, projectID uuid.UUID, jobID string, jobType string) error {
	event := Event{
		Type:      EventTypeJobProcessing,
		JobID:     jobID,
		ProjectID: projectID.String(),
		Data: map[string]interface{}{
			"status": "processing",
			"type":   jobType,
		},
	}
	return b.publishToProject(ctx, projectID, event)
}

// PublishJobProgress publishes a job.progress event carrying a pipeline
// progress message
func (b *Broadcaster) PublishJobProgress(ctx context.Context, projectID uuid.UUID, jobID string, level progress.Level, message string) error {
	event := Event{
		Type:      EventTypeJobProgress,
		JobID:     jobID,
		ProjectID: projectID.String(),
		Data: map[string]interface{}{
			"level":   string(level),
			"message": message,
		},
	}
	return b.publishToProject(ctx, projectID, event)
}

// PublishJobCompleted publishes a job.completed event
func (b *Broadcaster) PublishJobCompleted(ctx context.Context, projectID uuid.UUID, jobID string, result map[string]interface{}) error {
	event := Event{
		Type:      EventTypeJobCompleted,
		JobID:     jobID,
		ProjectID: projectID.String(),
		Data: map[string]interface{}{
			"status": "completed",
			"result": result,
		},
	}
	return b.publishToProject(ctx, projectID, event)
}

// PublishJobFailed publishes a job.failed event
func (b *Broadcaster) PublishJobFailed(ctx context.Context, projectID uuid.UUID, jobID string, errorMsg string) error {
	event := Event{
		Type:      EventTypeJobFailed,
		JobID:     jobID,
		ProjectID: projectID.String(),
		Data: map[string]interface{}{
			"status": "failed",
			"error":  errorMsg,
		},
	}
	return b.publishToProject(ctx, projectID, event)
}

// ProgressFunc returns a progress callback that republishes pipeline
// progress as job.progress events. Publish failures are logged, never
// surfaced; progress must not interrupt a running job.
func (b *Broadcaster) ProgressFunc(ctx context.Context, projectID uuid.UUID, jobID string) progress.Func {
	return func(message string, level progress.Level) {
		if err := b.PublishJobProgress(ctx, projectID, jobID, level, message); err != nil {
			b.logger.Error("Failed to publish progress event", "error", err, "job_id", jobID)
		}
	}
}

// publishToProject publishes an event to the project-specific channel
func (b *Broadcaster) publishToProject(ctx context.Context, projectID uuid.UUID, event Event) error {
	channel := ChannelForProject(projectID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event", event)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"job_id", event.JobID,
	)

	return nil
}
