package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/hearthfire/shelter-engine/pkg/elements"
	"github.com/hearthfire/shelter-engine/pkg/project"
	"github.com/hearthfire/shelter-engine/pkg/script"
	"github.com/hearthfire/shelter-engine/pkg/story"
)

// Storage defines a unified interface for all storage operations.
// Project documents live on the filesystem; job status is Redis-backed
// so workers and API instances share it.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Project metadata (filesystem-backed)
	SaveProject(ctx context.Context, p *project.Project) error
	LoadProject(ctx context.Context, id uuid.UUID) (*project.Project, error)
	ListProjects(ctx context.Context) ([]*project.Project, error)
	DeleteProject(ctx context.Context, id uuid.UUID) error

	// Story documents (filesystem-backed)
	SaveStory(ctx context.Context, id uuid.UUID, s *story.Story) error
	LoadStory(ctx context.Context, id uuid.UUID) (*story.Story, error)

	// ListStories returns every stored story, for diversity tracking
	// across past episodes
	ListStories(ctx context.Context) ([]*story.Story, error)

	SaveNarration(ctx context.Context, id uuid.UUID, n *story.Narration) error
	LoadNarration(ctx context.Context, id uuid.UUID) (*story.Narration, error)

	SaveElements(ctx context.Context, id uuid.UUID, els []elements.Element) error
	LoadElements(ctx context.Context, id uuid.UUID) ([]elements.Element, error)

	SaveScript(ctx context.Context, id uuid.UUID, sc *script.Script) error
	LoadScript(ctx context.Context, id uuid.UUID) (*script.Script, error)

	// ProjectDir returns the directory production packages are written
	// under for a project
	ProjectDir(id uuid.UUID) string

	// Job status (Redis-backed)
	SaveJobStatus(ctx context.Context, status *project.JobStatus) error
	LoadJobStatus(ctx context.Context, jobID string) (*project.JobStatus, error)
}
