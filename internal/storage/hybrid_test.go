package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	"github.com/hearthfire/shelter-engine/pkg/project"
	"github.com/hearthfire/shelter-engine/pkg/story"
)

func setupHybridStorage(t *testing.T) (*HybridStorage, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hs := NewHybridStorage(mr.Addr(), t.TempDir(), logger)
	return hs, mr
}

func TestHybridStorage_ProjectLifecycle(t *testing.T) {
	hs, mr := setupHybridStorage(t)
	defer mr.Close()
	defer hs.Close()

	ctx := context.Background()
	p := project.New("Winter Cabin Build")

	if err := hs.SaveProject(ctx, p); err != nil {
		t.Fatalf("Failed to save project: %v", err)
	}

	loaded, err := hs.LoadProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("Failed to load project: %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected non-nil project")
	}
	if loaded.Title != "Winter Cabin Build" {
		t.Errorf("Expected title preserved, got %q", loaded.Title)
	}
	if loaded.Status != project.StatusDraft {
		t.Errorf("Expected draft status, got %s", loaded.Status)
	}

	projects, err := hs.ListProjects(ctx)
	if err != nil {
		t.Fatalf("Failed to list projects: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("Expected 1 project, got %d", len(projects))
	}

	if err := hs.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("Failed to delete project: %v", err)
	}
	loaded, err = hs.LoadProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("Load after delete errored: %v", err)
	}
	if loaded != nil {
		t.Error("Expected nil project after delete")
	}
}

func TestHybridStorage_LoadMissingProject(t *testing.T) {
	hs, mr := setupHybridStorage(t)
	defer mr.Close()
	defer hs.Close()

	loaded, err := hs.LoadProject(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Missing project should not error: %v", err)
	}
	if loaded != nil {
		t.Errorf("Expected nil for missing project, got %+v", loaded)
	}
}

func TestHybridStorage_StoryDocuments(t *testing.T) {
	hs, mr := setupHybridStorage(t)
	defer mr.Close()
	defer hs.Close()

	ctx := context.Background()
	p := project.New("Highland Shelter")
	if err := hs.SaveProject(ctx, p); err != nil {
		t.Fatalf("Failed to save project: %v", err)
	}

	s := &story.Story{
		Title:       "Storm Over The Ridge",
		EpisodeType: story.EpisodeBuild,
		Character: story.Character{
			Name: "Erik Lindqvist",
			Age:  42,
		},
		Location: story.Location{
			Name: "Northern Highlands, Scotland",
		},
	}
	if err := hs.SaveStory(ctx, p.ID, s); err != nil {
		t.Fatalf("Failed to save story: %v", err)
	}

	loaded, err := hs.LoadStory(ctx, p.ID)
	if err != nil {
		t.Fatalf("Failed to load story: %v", err)
	}
	if loaded == nil || loaded.Character.Name != "Erik Lindqvist" {
		t.Errorf("Story not preserved: %+v", loaded)
	}

	// ListStories feeds the diversity tracker
	stories, err := hs.ListStories(ctx)
	if err != nil {
		t.Fatalf("Failed to list stories: %v", err)
	}
	if len(stories) != 1 || stories[0].Title != "Storm Over The Ridge" {
		t.Errorf("Expected stored story in list, got %d entries", len(stories))
	}

	// A project without a story is skipped, not an error
	if err := hs.SaveProject(ctx, project.New("Empty Draft")); err != nil {
		t.Fatalf("Failed to save second project: %v", err)
	}
	stories, err = hs.ListStories(ctx)
	if err != nil {
		t.Fatalf("Failed to list stories: %v", err)
	}
	if len(stories) != 1 {
		t.Errorf("Draft without story should be skipped, got %d entries", len(stories))
	}
}

func TestHybridStorage_JobStatus(t *testing.T) {
	hs, mr := setupHybridStorage(t)
	defer mr.Close()
	defer hs.Close()

	ctx := context.Background()
	status := &project.JobStatus{
		JobID:     "job-42",
		ProjectID: uuid.New(),
		Type:      "production",
		Status:    "processing",
		Message:   "Analyzing chapter 1",
	}

	if err := hs.SaveJobStatus(ctx, status); err != nil {
		t.Fatalf("Failed to save job status: %v", err)
	}

	loaded, err := hs.LoadJobStatus(ctx, "job-42")
	if err != nil {
		t.Fatalf("Failed to load job status: %v", err)
	}
	if loaded == nil || loaded.Status != "processing" || loaded.ProjectID != status.ProjectID {
		t.Errorf("Job status not preserved: %+v", loaded)
	}
	if loaded.UpdatedAt.IsZero() {
		t.Error("Expected UpdatedAt to be set on save")
	}

	missing, err := hs.LoadJobStatus(ctx, "no-such-job")
	if err != nil {
		t.Fatalf("Missing status should not error: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing status, got %+v", missing)
	}
}

func TestHybridStorage_ProjectDirLayout(t *testing.T) {
	hs, mr := setupHybridStorage(t)
	defer mr.Close()
	defer hs.Close()

	ctx := context.Background()
	p := project.New("Layout Check")
	if err := hs.SaveProject(ctx, p); err != nil {
		t.Fatalf("Failed to save project: %v", err)
	}

	path := filepath.Join(hs.ProjectDir(p.ID), "project.json")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected project.json at %s: %v", path, err)
	}
}
