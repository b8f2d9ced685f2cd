package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/hearthfire/shelter-engine/pkg/elements"
	"github.com/hearthfire/shelter-engine/pkg/project"
	"github.com/hearthfire/shelter-engine/pkg/script"
	"github.com/hearthfire/shelter-engine/pkg/story"
)

// MockStorage is a mock implementation of Storage for testing
type MockStorage struct {
	mu         sync.RWMutex
	projects   map[uuid.UUID]*project.Project
	stories    map[uuid.UUID]*story.Story
	narrations map[uuid.UUID]*story.Narration
	elementSet map[uuid.UUID][]elements.Element
	scripts    map[uuid.UUID]*script.Script
	jobs       map[string]*project.JobStatus
	pingError  error

	// Dir is returned from ProjectDir; point it at t.TempDir() when a
	// test writes production output
	Dir string
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		projects:   make(map[uuid.UUID]*project.Project),
		stories:    make(map[uuid.UUID]*story.Story),
		narrations: make(map[uuid.UUID]*story.Narration),
		elementSet: make(map[uuid.UUID][]elements.Element),
		scripts:    make(map[uuid.UUID]*script.Script),
		jobs:       make(map[string]*project.JobStatus),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// Ping mocks storage ping
func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

// Close mocks storage close
func (m *MockStorage) Close() error {
	return nil
}

// SaveProject mocks saving project metadata
func (m *MockStorage) SaveProject(ctx context.Context, p *project.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
	return nil
}

// LoadProject mocks loading project metadata
// Returns nil if the project doesn't exist
func (m *MockStorage) LoadProject(ctx context.Context, id uuid.UUID) (*project.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.projects[id], nil
}

// ListProjects mocks listing all projects
func (m *MockStorage) ListProjects(ctx context.Context) ([]*project.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*project.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	return out, nil
}

// DeleteProject mocks deleting a project and its documents
func (m *MockStorage) DeleteProject(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return errors.New("project not found")
	}
	delete(m.projects, id)
	delete(m.stories, id)
	delete(m.narrations, id)
	delete(m.elementSet, id)
	delete(m.scripts, id)
	return nil
}

// SaveStory mocks saving a story document
func (m *MockStorage) SaveStory(ctx context.Context, id uuid.UUID, s *story.Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stories[id] = s
	return nil
}

// LoadStory mocks loading a story document
func (m *MockStorage) LoadStory(ctx context.Context, id uuid.UUID) (*story.Story, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stories[id], nil
}

// ListStories mocks listing all stored stories
func (m *MockStorage) ListStories(ctx context.Context) ([]*story.Story, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*story.Story, 0, len(m.stories))
	for _, s := range m.stories {
		out = append(out, s)
	}
	return out, nil
}

// SaveNarration mocks saving a narration document
func (m *MockStorage) SaveNarration(ctx context.Context, id uuid.UUID, n *story.Narration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.narrations[id] = n
	return nil
}

// LoadNarration mocks loading a narration document
func (m *MockStorage) LoadNarration(ctx context.Context, id uuid.UUID) (*story.Narration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.narrations[id], nil
}

// SaveElements mocks saving the element catalog
func (m *MockStorage) SaveElements(ctx context.Context, id uuid.UUID, els []elements.Element) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elementSet[id] = els
	return nil
}

// LoadElements mocks loading the element catalog
func (m *MockStorage) LoadElements(ctx context.Context, id uuid.UUID) ([]elements.Element, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.elementSet[id], nil
}

// SaveScript mocks saving a parsed script
func (m *MockStorage) SaveScript(ctx context.Context, id uuid.UUID, sc *script.Script) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[id] = sc
	return nil
}

// LoadScript mocks loading a parsed script
func (m *MockStorage) LoadScript(ctx context.Context, id uuid.UUID) (*script.Script, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scripts[id], nil
}

// ProjectDir returns the configured test directory for a project
func (m *MockStorage) ProjectDir(id uuid.UUID) string {
	return filepath.Join(m.Dir, id.String())
}

// SaveJobStatus mocks saving job status
func (m *MockStorage) SaveJobStatus(ctx context.Context, status *project.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[status.JobID] = status
	return nil
}

// LoadJobStatus mocks loading job status
// Returns nil if the job doesn't exist
func (m *MockStorage) LoadJobStatus(ctx context.Context, jobID string) (*project.JobStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[jobID], nil
}
