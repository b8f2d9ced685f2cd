package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobType identifies the type of job in the queue
type JobType string

const (
	// JobTypeStory generates a story and its narration script for a project
	JobTypeStory JobType = "story"

	// JobTypeProduction builds the full production package for one chapter
	JobTypeProduction JobType = "production"
)

// Job represents a unified job in the queue
type Job struct {
	JobID     string    `json:"job_id"`
	Type      JobType   `json:"type"`
	ProjectID uuid.UUID `json:"project_id"`

	// Story-specific fields
	MaxAttempts int `json:"max_attempts,omitempty"`

	// Production-specific fields
	Chapter int `json:"chapter,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// MarshalJSON serializes the job to JSON for Redis storage
func (j *Job) MarshalJSON() ([]byte, error) {
	type Alias Job
	return json.Marshal(&struct {
		ProjectID string `json:"project_id"`
		*Alias
	}{
		ProjectID: j.ProjectID.String(),
		Alias:     (*Alias)(j),
	})
}

// UnmarshalJSON deserializes the job from JSON in Redis
func (j *Job) UnmarshalJSON(data []byte) error {
	type Alias Job
	aux := &struct {
		ProjectID string `json:"project_id"`
		*Alias
	}{
		Alias: (*Alias)(j),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	projectID, err := uuid.Parse(aux.ProjectID)
	if err != nil {
		return err
	}

	j.ProjectID = projectID
	return nil
}

// ToJSON converts the job to JSON bytes for Redis
func (j *Job) ToJSON() ([]byte, error) {
	return json.Marshal(j)
}

// FromJSON parses a job from JSON bytes
func FromJSON(data []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
