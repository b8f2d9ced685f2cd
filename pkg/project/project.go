package project

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks where a project is in the pipeline.
type Status string

const (
	// StatusDraft means the project exists but has no approved story yet
	StatusDraft Status = "draft"

	// StatusStoryReady means a story passed quality gates and narration exists
	StatusStoryReady Status = "story_ready"

	// StatusProducing means a production job is running for this project
	StatusProducing Status = "producing"

	// StatusComplete means at least one chapter package has been assembled
	StatusComplete Status = "complete"

	// StatusFailed means the last job for this project failed
	StatusFailed Status = "failed"
)

// Project is the unit of work in the pipeline: one episode, from story
// generation through chapter production packages.
type Project struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title,omitempty"`
	Presenter string    `json:"presenter,omitempty"`
	Status    Status    `json:"status"`

	// StoryAttempts counts quality-gate retries spent on the current story
	StoryAttempts int `json:"story_attempts,omitempty"`

	// ChaptersProduced lists chapter numbers with assembled packages
	ChaptersProduced []int `json:"chapters_produced,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a draft project.
func New(title string) *Project {
	now := time.Now()
	return &Project{
		ID:        uuid.New(),
		Title:     title,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkChapterProduced records a produced chapter, keeping the list unique.
func (p *Project) MarkChapterProduced(chapter int) {
	for _, c := range p.ChaptersProduced {
		if c == chapter {
			return
		}
	}
	p.ChaptersProduced = append(p.ChaptersProduced, chapter)
	p.Status = StatusComplete
}

// JobStatus is the worker's view of a job, kept hot in Redis so clients
// can poll without subscribing to the event stream.
type JobStatus struct {
	JobID     string    `json:"job_id"`
	ProjectID uuid.UUID `json:"project_id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"` // queued, processing, completed, failed
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
