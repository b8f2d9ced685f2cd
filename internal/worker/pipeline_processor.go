package worker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/hearthfire/shelter-engine/internal/config"
	"github.com/hearthfire/shelter-engine/pkg/elements"
	"github.com/hearthfire/shelter-engine/pkg/genai"
	"github.com/hearthfire/shelter-engine/pkg/production"
	"github.com/hearthfire/shelter-engine/pkg/progress"
	"github.com/hearthfire/shelter-engine/pkg/project"
	"github.com/hearthfire/shelter-engine/pkg/queue"
	"github.com/hearthfire/shelter-engine/pkg/storage"
	"github.com/hearthfire/shelter-engine/pkg/story"
)

// PipelineProcessor runs the pipeline stages for queued jobs. It's used by
// the worker; the HTTP layer only ever enqueues.
type PipelineProcessor struct {
	storage storage.Storage
	text    genai.TextService
	images  genai.ImageService
	cfg     *config.Config
	logger  *slog.Logger
}

// NewPipelineProcessor creates a new pipeline processor
func NewPipelineProcessor(
	store storage.Storage,
	text genai.TextService,
	images genai.ImageService,
	cfg *config.Config,
	logger *slog.Logger,
) *PipelineProcessor {
	return &PipelineProcessor{
		storage: store,
		text:    text,
		images:  images,
		cfg:     cfg,
		logger:  logger,
	}
}

// ProcessStory generates a quality-gated story, its narration, and the
// recurring element catalog for a project.
func (p *PipelineProcessor) ProcessStory(ctx context.Context, job *queue.Job, notify progress.Func) (map[string]interface{}, error) {
	proj, err := p.storage.LoadProject(ctx, job.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if proj == nil {
		return nil, fmt.Errorf("project not found: %s", job.ProjectID)
	}

	dna, err := story.LoadDNA(p.cfg.StoryDNAPath)
	if err != nil {
		p.logger.Warn("Story DNA unavailable, generating without it", "path", p.cfg.StoryDNAPath, "error", err)
		dna = nil
	}

	generator := story.NewGenerator(p.text, dna, p.cfg.ModelName, p.logger).
		WithDiversity(story.NewDiversityTracker(p.storage))

	s, report, err := generator.Generate(ctx, story.GenerateRequest{
		Title: proj.Title,
	}, notify)
	if err != nil {
		return nil, fmt.Errorf("story generation failed: %w", err)
	}
	proj.StoryAttempts++

	narrator := story.NewNarrator(p.text, p.cfg.ModelName, p.logger)
	narration, err := narrator.Narrate(ctx, s, notify)
	if err != nil {
		return nil, fmt.Errorf("narration failed: %w", err)
	}

	analyzer := elements.NewAnalyzer(p.text, p.cfg.ModelName, p.logger)
	els, err := analyzer.Analyze(ctx, s, narrationText(narration), notify)
	if err != nil {
		p.logger.Warn("Element analysis failed, continuing without catalog", "error", err)
		els = nil
	}
	if len(els) > 0 {
		elementsDir := filepath.Join(p.storage.ProjectDir(proj.ID), "elements")
		els = elements.GenerateImages(ctx, p.images, els, elementsDir, notify)
	}

	if err := p.storage.SaveStory(ctx, proj.ID, s); err != nil {
		return nil, fmt.Errorf("failed to save story: %w", err)
	}
	if err := p.storage.SaveNarration(ctx, proj.ID, narration); err != nil {
		return nil, fmt.Errorf("failed to save narration: %w", err)
	}
	if els != nil {
		if err := p.storage.SaveElements(ctx, proj.ID, els); err != nil {
			return nil, fmt.Errorf("failed to save elements: %w", err)
		}
	}

	proj.Status = project.StatusStoryReady
	if proj.Title == "" {
		proj.Title = s.Title
	}
	if err := p.storage.SaveProject(ctx, proj); err != nil {
		return nil, fmt.Errorf("failed to save project: %w", err)
	}

	return map[string]interface{}{
		"title":          s.Title,
		"story_strength": s.StoryStrength,
		"quality_score":  report.Score,
		"passed":         report.Passed,
		"phases":         len(narration.Phases),
		"elements":       len(els),
	}, nil
}

// ProcessProduction builds the full production package for one chapter.
func (p *PipelineProcessor) ProcessProduction(ctx context.Context, job *queue.Job, notify progress.Func) (map[string]interface{}, error) {
	proj, err := p.storage.LoadProject(ctx, job.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if proj == nil {
		return nil, fmt.Errorf("project not found: %s", job.ProjectID)
	}

	s, err := p.storage.LoadStory(ctx, proj.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load story: %w", err)
	}
	if s == nil {
		return nil, fmt.Errorf("project has no story yet: %s", proj.ID)
	}

	narration, err := p.storage.LoadNarration(ctx, proj.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load narration: %w", err)
	}
	if narration == nil {
		return nil, fmt.Errorf("project has no narration yet: %s", proj.ID)
	}

	chapter := job.Chapter
	if chapter < 1 || chapter > len(narration.Phases) {
		return nil, fmt.Errorf("chapter %d out of range, narration has %d phases", chapter, len(narration.Phases))
	}

	els, err := p.storage.LoadElements(ctx, proj.ID)
	if err != nil {
		p.logger.Warn("Element catalog unavailable", "error", err)
		els = nil
	}

	proj.Status = project.StatusProducing
	if err := p.storage.SaveProject(ctx, proj); err != nil {
		return nil, fmt.Errorf("failed to save project: %w", err)
	}

	producer := production.NewProducer(p.text, p.images, p.cfg.ModelName, p.cfg.FlashModelName, p.logger)
	if proj.Presenter != "" {
		producer = producer.WithPresenter(proj.Presenter)
	}

	// Chapters are 1-based on the job; the producer counts phases from 0.
	prod, err := producer.ProduceChapter(ctx,
		s,
		narration.Phases[chapter-1].Narration,
		chapter-1,
		els,
		p.storage.ProjectDir(proj.ID),
		breakAfterChapter(narration, chapter-1),
		notify,
	)
	if err != nil {
		proj.Status = project.StatusFailed
		if saveErr := p.storage.SaveProject(ctx, proj); saveErr != nil {
			p.logger.Error("Failed to record project failure", "error", saveErr)
		}
		return nil, fmt.Errorf("chapter production failed: %w", err)
	}

	packageDir, err := production.WritePackage(prod, p.storage.ProjectDir(proj.ID), notify)
	if err != nil {
		return nil, fmt.Errorf("failed to write production package: %w", err)
	}

	proj.MarkChapterProduced(chapter)
	if err := p.storage.SaveProject(ctx, proj); err != nil {
		return nil, fmt.Errorf("failed to save project: %w", err)
	}

	return map[string]interface{}{
		"chapter":          chapter,
		"package_dir":      packageDir,
		"total_scenes":     prod.Metadata.TotalScenes,
		"generated_images": len(prod.GeneratedImages),
		"failed_images":    len(prod.FailedImages),
	}, nil
}

// narrationText flattens a narration into the continuous text element
// analysis reads. Presenter segments are spoken to camera, not narrated,
// so they stay out.
func narrationText(n *story.Narration) string {
	var b strings.Builder
	b.WriteString(n.Intro.Text)
	for _, phase := range n.Phases {
		b.WriteString("\n\n")
		b.WriteString(phase.Narration)
	}
	if n.Close.Text != "" {
		b.WriteString("\n\n")
		b.WriteString(n.Close.Text)
	}
	return b.String()
}

func breakAfterChapter(n *story.Narration, phaseIndex int) string {
	for _, br := range n.Breaks {
		if br.AfterPhase == phaseIndex {
			return br.Text
		}
	}
	return ""
}
