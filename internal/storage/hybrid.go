package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hearthfire/shelter-engine/pkg/elements"
	"github.com/hearthfire/shelter-engine/pkg/project"
	"github.com/hearthfire/shelter-engine/pkg/script"
	"github.com/hearthfire/shelter-engine/pkg/storage"
	"github.com/hearthfire/shelter-engine/pkg/story"
)

const (
	projectFile   = "project.json"
	storyFile     = "story.json"
	narrationFile = "narration.json"
	elementsFile  = "elements.json"
	scriptFile    = "script.json"

	jobStatusTTL = 24 * time.Hour
)

// HybridStorage implements the Storage interface using the filesystem for
// project documents and Redis for shared job status. Production packages
// are multi-file trees with images, so the document side stays on disk.
type HybridStorage struct {
	client  *redis.Client
	logger  *slog.Logger
	dataDir string
}

// Ensure HybridStorage implements Storage interface
var _ storage.Storage = (*HybridStorage)(nil)

// NewHybridStorage creates a new hybrid storage instance
func NewHybridStorage(redisURL string, dataDir string, logger *slog.Logger) *HybridStorage {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})

	if dataDir == "" {
		dataDir = "./projects"
	}

	return &HybridStorage{
		client:  rdb,
		logger:  logger,
		dataDir: dataDir,
	}
}

// Health and lifecycle methods

func (h *HybridStorage) Ping(ctx context.Context) error {
	if err := h.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (h *HybridStorage) Close() error {
	if err := h.client.Close(); err != nil {
		h.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	h.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (h *HybridStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := h.Ping(ctx); err != nil {
			h.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		h.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// ProjectDir returns the directory holding all of a project's files
func (h *HybridStorage) ProjectDir(id uuid.UUID) string {
	return filepath.Join(h.dataDir, id.String())
}

// Project metadata (filesystem-backed)

func (h *HybridStorage) SaveProject(ctx context.Context, p *project.Project) error {
	p.UpdatedAt = time.Now()
	return h.writeDocument(p.ID, projectFile, p)
}

// LoadProject retrieves project metadata by ID
// Returns nil if the project doesn't exist
func (h *HybridStorage) LoadProject(ctx context.Context, id uuid.UUID) (*project.Project, error) {
	var p project.Project
	found, err := h.readDocument(id, projectFile, &p)
	if err != nil || !found {
		return nil, err
	}
	return &p, nil
}

func (h *HybridStorage) ListProjects(ctx context.Context) ([]*project.Project, error) {
	ids, err := h.projectIDs()
	if err != nil {
		return nil, err
	}

	projects := make([]*project.Project, 0, len(ids))
	for _, id := range ids {
		p, err := h.LoadProject(ctx, id)
		if err != nil {
			h.logger.Warn("Skipping unreadable project", "id", id, "error", err)
			continue
		}
		if p != nil {
			projects = append(projects, p)
		}
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CreatedAt.Before(projects[j].CreatedAt)
	})
	return projects, nil
}

func (h *HybridStorage) DeleteProject(ctx context.Context, id uuid.UUID) error {
	dir := h.ProjectDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("project not found: %s", id)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

// Story documents (filesystem-backed)

func (h *HybridStorage) SaveStory(ctx context.Context, id uuid.UUID, s *story.Story) error {
	return h.writeDocument(id, storyFile, s)
}

func (h *HybridStorage) LoadStory(ctx context.Context, id uuid.UUID) (*story.Story, error) {
	var s story.Story
	found, err := h.readDocument(id, storyFile, &s)
	if err != nil || !found {
		return nil, err
	}
	return &s, nil
}

// ListStories returns every stored story, feeding diversity tracking
func (h *HybridStorage) ListStories(ctx context.Context) ([]*story.Story, error) {
	ids, err := h.projectIDs()
	if err != nil {
		return nil, err
	}

	stories := make([]*story.Story, 0, len(ids))
	for _, id := range ids {
		s, err := h.LoadStory(ctx, id)
		if err != nil {
			h.logger.Warn("Skipping unreadable story", "id", id, "error", err)
			continue
		}
		if s != nil {
			stories = append(stories, s)
		}
	}
	return stories, nil
}

func (h *HybridStorage) SaveNarration(ctx context.Context, id uuid.UUID, n *story.Narration) error {
	return h.writeDocument(id, narrationFile, n)
}

func (h *HybridStorage) LoadNarration(ctx context.Context, id uuid.UUID) (*story.Narration, error) {
	var n story.Narration
	found, err := h.readDocument(id, narrationFile, &n)
	if err != nil || !found {
		return nil, err
	}
	return &n, nil
}

func (h *HybridStorage) SaveElements(ctx context.Context, id uuid.UUID, els []elements.Element) error {
	return h.writeDocument(id, elementsFile, els)
}

func (h *HybridStorage) LoadElements(ctx context.Context, id uuid.UUID) ([]elements.Element, error) {
	var els []elements.Element
	found, err := h.readDocument(id, elementsFile, &els)
	if err != nil || !found {
		return nil, err
	}
	return els, nil
}

func (h *HybridStorage) SaveScript(ctx context.Context, id uuid.UUID, sc *script.Script) error {
	return h.writeDocument(id, scriptFile, sc)
}

func (h *HybridStorage) LoadScript(ctx context.Context, id uuid.UUID) (*script.Script, error) {
	var sc script.Script
	found, err := h.readDocument(id, scriptFile, &sc)
	if err != nil || !found {
		return nil, err
	}
	return &sc, nil
}

// Job status (Redis-backed)

func (h *HybridStorage) SaveJobStatus(ctx context.Context, status *project.JobStatus) error {
	status.UpdatedAt = time.Now()

	data, err := json.Marshal(status)
	if err != nil {
		h.logger.Error("Failed to marshal job status", "job_id", status.JobID, "error", err)
		return fmt.Errorf("failed to marshal job status: %w", err)
	}

	key := "job-status:" + status.JobID
	if err := h.client.Set(ctx, key, string(data), jobStatusTTL).Err(); err != nil {
		h.logger.Error("Failed to save job status", "job_id", status.JobID, "error", err)
		return fmt.Errorf("failed to save job status: %w", err)
	}
	return nil
}

// LoadJobStatus retrieves job status by job ID
// Returns nil if the status doesn't exist or has expired
func (h *HybridStorage) LoadJobStatus(ctx context.Context, jobID string) (*project.JobStatus, error) {
	key := "job-status:" + jobID
	data, err := h.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		h.logger.Error("Failed to load job status", "job_id", jobID, "error", err)
		return nil, fmt.Errorf("failed to load job status: %w", err)
	}

	var status project.JobStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job status: %w", err)
	}
	return &status, nil
}

// GetRedisClient returns the underlying Redis client for pub/sub and locks
func (h *HybridStorage) GetRedisClient() *redis.Client {
	return h.client
}

// Document helpers

func (h *HybridStorage) writeDocument(id uuid.UUID, name string, v interface{}) error {
	dir := h.ProjectDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// readDocument reports whether the document exists; absence is not an error.
func (h *HybridStorage) readDocument(id uuid.UUID, name string, v interface{}) (bool, error) {
	data, err := os.ReadFile(filepath.Join(h.ProjectDir(id), name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}
	return true, nil
}

func (h *HybridStorage) projectIDs() ([]uuid.UUID, error) {
	entries, err := os.ReadDir(h.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read projects directory: %w", err)
	}

	var ids []uuid.UUID
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := uuid.Parse(entry.Name())
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
