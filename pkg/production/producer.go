// Package production runs the per-chapter pipeline end to end: cinematic
// analysis, storyboard validation, scene state tracking, location image
// generation, and video prompt writing, assembled into one reviewable
// package per chapter.
package production

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hearthfire/shelter-engine/pkg/elements"
	"github.com/hearthfire/shelter-engine/pkg/genai"
	"github.com/hearthfire/shelter-engine/pkg/progress"
	"github.com/hearthfire/shelter-engine/pkg/scenestate"
	"github.com/hearthfire/shelter-engine/pkg/story"
	"github.com/hearthfire/shelter-engine/pkg/storyboard"
)

const secondsPerScene = 15

// defaultPresenter is the on-camera host referenced in presenter scenes.
const defaultPresenter = "Jack"

// ImagePromptRecord ties a location image plan to the scene that needs it.
type ImagePromptRecord struct {
	SceneNum int                   `json:"scene_num"`
	Plan     *scenestate.ImagePlan `json:"image_prompt"`
	Triggers []string              `json:"triggers"`
}

// Metadata summarizes a finished chapter production.
type Metadata struct {
	TotalScenes       int    `json:"total_scenes"`
	NarratedScenes    int    `json:"narrated_scenes"`
	BridgeScenes      int    `json:"bridge_scenes"`
	PresenterScenes   int    `json:"presenter_scenes"`
	ImagesGenerated   int    `json:"total_images_generated"`
	ImagesNeeded      int    `json:"total_images_needed"`
	EstimatedSeconds  int    `json:"estimated_duration_seconds"`
	EstimatedDuration string `json:"estimated_duration_formatted"`
}

// Production is the complete output for one chapter.
type Production struct {
	Chapter         int                  `json:"chapter"`
	Analysis        *storyboard.Analysis `json:"analysis"`
	Validation      *storyboard.Report   `json:"validation"`
	Storyboard      []storyboard.Scene   `json:"storyboard"`
	States          []*scenestate.State  `json:"states"`
	ImagePrompts    []ImagePromptRecord  `json:"image_prompts"`
	GeneratedImages []string             `json:"generated_images"`
	FailedImages    []string             `json:"failed_images"`
	Prompts         []*ScenePrompt       `json:"prompts"`
	Metadata        Metadata             `json:"metadata"`
}

// Producer wires the chapter pipeline together.
type Producer struct {
	analyzer  *storyboard.Analyzer
	evolver   *scenestate.Evolver
	writer    *PromptWriter
	images    genai.ImageService
	presenter string
	logger    *slog.Logger
}

func NewProducer(text genai.TextService, images genai.ImageService, model, flashModel string, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		analyzer:  storyboard.NewAnalyzer(text, model, logger),
		evolver:   scenestate.NewEvolver(text, flashModel, logger),
		writer:    NewPromptWriter(text, flashModel, logger),
		images:    images,
		presenter: defaultPresenter,
		logger:    logger,
	}
}

// WithPresenter overrides the on-camera host name.
func (p *Producer) WithPresenter(name string) *Producer {
	if name != "" {
		p.presenter = name
	}
	return p
}

// ProduceChapter runs the full pipeline for one chapter. breakText, when
// non-empty, appends presenter break scenes after the chapter's storyboard.
// Validation failures do not stop the pipeline; the report travels with the
// production for manual review.
func (p *Producer) ProduceChapter(ctx context.Context, s *story.Story, chapterNarration string, chapterIndex int, els []elements.Element, projectDir, breakText string, notify progress.Func) (*Production, error) {
	progress.Notify(notify, fmt.Sprintf("=== CHAPTER %d PRODUCTION PIPELINE ===", chapterIndex+1), progress.LevelInfo)

	// Step 1: cinematic analysis + validation.
	progress.Notify(notify, "STEP 1/4: Cinematic Analysis...", progress.LevelInfo)
	analysis := p.analyzer.Analyze(ctx, s, chapterNarration, chapterIndex, els, notify)
	if len(analysis.Storyboard) == 0 {
		return nil, fmt.Errorf("chapter %d: cinematic analysis produced empty storyboard: %s", chapterIndex+1, analysis.Error)
	}

	progress.Notify(notify, "VALIDATION: Checking storyboard quality...", progress.LevelInfo)
	validation := storyboard.Validate(analysis.Storyboard, chapterNarration, notify)
	if !validation.Valid {
		progress.Notify(notify, fmt.Sprintf("Storyboard has %d error(s), proceeding with issues logged", validation.TotalErrors), progress.LevelInfo)
	}

	// Step 2: sequential state walk + image planning.
	progress.Notify(notify, fmt.Sprintf("STEP 2/4: State Tracking (%d scenes)...", len(analysis.Storyboard)), progress.LevelInfo)
	states, imagePrompts := p.walkStates(ctx, s, analysis.Storyboard, chapterIndex, notify)

	// Step 3: location images.
	progress.Notify(notify, fmt.Sprintf("STEP 3/4: Generating %d location images...", len(imagePrompts)), progress.LevelInfo)
	generated := p.generateLocationImages(ctx, imagePrompts, projectDir, notify)

	// Step 4: video prompts.
	progress.Notify(notify, fmt.Sprintf("STEP 4/4: Generating %d video prompts...", len(analysis.Storyboard)), progress.LevelInfo)
	prompts := make([]*ScenePrompt, 0, len(analysis.Storyboard)+2)
	for i, scene := range analysis.Storyboard {
		prompts = append(prompts, p.writer.Write(ctx, scene, states[i], els, s, false, notify))
		if (i+1)%3 == 0 {
			progress.Notify(notify, fmt.Sprintf("... %d/%d prompts done", i+1, len(analysis.Storyboard)), progress.LevelBatch)
		}
	}

	if breakText != "" {
		prompts = append(prompts, p.presenterBreaks(ctx, s, analysis.Storyboard, states, els, breakText, notify)...)
	}

	var failed []string
	generatedSet := make(map[string]bool, len(generated))
	for _, g := range generated {
		generatedSet[g] = true
	}
	for _, ip := range imagePrompts {
		if !generatedSet[ip.Plan.OutputFilename] {
			failed = append(failed, ip.Plan.OutputFilename)
		}
	}

	total := len(prompts) * secondsPerScene
	meta := Metadata{
		TotalScenes:       len(prompts),
		ImagesGenerated:   len(generated),
		ImagesNeeded:      len(imagePrompts),
		EstimatedSeconds:  total,
		EstimatedDuration: fmt.Sprintf("%dm %ds", total/60, total%60),
	}
	for _, pr := range prompts {
		switch pr.Kind {
		case storyboard.KindNarrated:
			meta.NarratedScenes++
		case storyboard.KindBridge:
			meta.BridgeScenes++
		case storyboard.KindPresenter:
			meta.PresenterScenes++
		}
	}

	progress.Notify(notify, fmt.Sprintf("CHAPTER %d COMPLETE: %d scenes (%dN + %dB + %dP) = ~%s",
		chapterIndex+1, meta.TotalScenes, meta.NarratedScenes, meta.BridgeScenes, meta.PresenterScenes,
		meta.EstimatedDuration), progress.LevelSuccess)

	return &Production{
		Chapter:         chapterIndex + 1,
		Analysis:        analysis,
		Validation:      validation,
		Storyboard:      analysis.Storyboard,
		States:          states,
		ImagePrompts:    imagePrompts,
		GeneratedImages: generated,
		FailedImages:    failed,
		Prompts:         prompts,
		Metadata:        meta,
	}, nil
}

// walkStates evolves scene state sequentially and plans a location image
// wherever the diff calls for one. The first scene always gets an image.
func (p *Producer) walkStates(ctx context.Context, s *story.Story, scenes []storyboard.Scene, chapterIndex int, notify progress.Func) ([]*scenestate.State, []ImagePromptRecord) {
	firstLoc := scenes[0].LocationID
	if firstLoc == "" {
		firstLoc = "clearing"
	}
	state := scenestate.Init(s, chapterIndex, firstLoc)

	states := make([]*scenestate.State, 0, len(scenes))
	var imagePrompts []ImagePromptRecord

	for i, scene := range scenes {
		next := p.evolver.Evolve(ctx, state, scene, notify)

		var diff *scenestate.DiffResult
		if i == 0 {
			diff = &scenestate.DiffResult{NeedsNewImage: true, Triggers: []string{"first_scene_in_chapter"}}
		} else {
			diff = scenestate.EvaluateDiff(next, state)
		}

		if diff.NeedsNewImage {
			var prevForPlan *scenestate.State
			if i > 0 {
				prevForPlan = state
			}
			plan := scenestate.BuildImagePlan(next, prevForPlan, diff)
			next.LocationImage = plan.OutputFilename
			imagePrompts = append(imagePrompts, ImagePromptRecord{
				SceneNum: scene.SceneNum,
				Plan:     plan,
				Triggers: diff.Triggers,
			})
			source := "standalone"
			if plan.UseReference {
				source = "from ref"
			}
			progress.Notify(notify, fmt.Sprintf("Scene %d: NEW image -> %s (%s)", scene.SceneNum, plan.OutputFilename, source), progress.LevelBatch)
		} else {
			next.LocationImage = state.LocationImage
		}

		states = append(states, next)
		state = next
	}

	progress.Notify(notify, fmt.Sprintf("State tracking done: %d new images, %d reused",
		len(imagePrompts), len(scenes)-len(imagePrompts)), progress.LevelSuccess)
	return states, imagePrompts
}

// generateLocationImages renders the planned images into projectDir/locations.
// A failed image is recorded and skipped; its prompt stays in the package for
// manual generation.
func (p *Producer) generateLocationImages(ctx context.Context, records []ImagePromptRecord, projectDir string, notify progress.Func) []string {
	locationsDir := filepath.Join(projectDir, "locations")
	if err := os.MkdirAll(locationsDir, 0o755); err != nil {
		p.logger.Error("failed to create locations dir", "dir", locationsDir, "error", err)
		return nil
	}

	var generated []string
	for _, rec := range records {
		plan := rec.Plan
		outputPath := filepath.Join(locationsDir, plan.OutputFilename)

		var err error
		if plan.UseReference && plan.ReferenceImage != "" {
			refPath := filepath.Join(locationsDir, plan.ReferenceImage)
			if _, statErr := os.Stat(refPath); statErr == nil {
				_, err = p.images.GenerateImageWithReference(ctx, genai.ImageRequest{
					Prompt: plan.Prompt, OutputPath: outputPath, ReferencePath: refPath,
				})
			} else {
				_, err = p.images.GenerateImage(ctx, genai.ImageRequest{Prompt: plan.Prompt, OutputPath: outputPath})
			}
		} else {
			_, err = p.images.GenerateImage(ctx, genai.ImageRequest{Prompt: plan.Prompt, OutputPath: outputPath})
		}

		if err != nil {
			msg := err.Error()
			if len(msg) > 100 {
				msg = msg[:100]
			}
			progress.Notify(notify, fmt.Sprintf("%s failed: %s, prompt saved for manual generation", plan.OutputFilename, msg), progress.LevelError)
			continue
		}
		generated = append(generated, plan.OutputFilename)
		progress.Notify(notify, plan.OutputFilename, progress.LevelSuccess)
	}

	progress.Notify(notify, fmt.Sprintf("%d/%d images generated", len(generated), len(records)), progress.LevelSuccess)
	return generated
}

// presenterBreaks appends one or two presenter scenes after the chapter.
// Breaks over 30 words split into two scenes at a sentence midpoint.
func (p *Producer) presenterBreaks(ctx context.Context, s *story.Story, scenes []storyboard.Scene, states []*scenestate.State, els []elements.Element, breakText string, notify progress.Func) []*ScenePrompt {
	progress.Notify(notify, "Adding presenter break scenes...", progress.LevelInfo)

	lastState := states[len(states)-1]
	lastSceneNum := scenes[len(scenes)-1].SceneNum

	type part struct{ narration, label string }
	var parts []part
	if a, b := splitAtSentenceMidpoint(breakText); len(strings.Fields(breakText)) > 30 && b != "" {
		parts = []part{
			{narration: a, label: "Acknowledges what was done"},
			{narration: b, label: "Confronts what's coming"},
		}
	} else {
		parts = []part{{narration: breakText, label: "Presenter break"}}
	}

	prompts := make([]*ScenePrompt, 0, len(parts))
	for j, pt := range parts {
		scene := storyboard.Scene{
			SceneNum:         lastSceneNum + j + 1,
			Kind:             storyboard.KindPresenter,
			Action:           fmt.Sprintf("Presenter addresses camera: %s", pt.label),
			NarrationExcerpt: pt.narration,
			Elements:         []string{"@" + p.presenter},
			LocationID:       lastState.LocationID,
			TimeOfDay:        lastState.TimeOfDay,
			Weather:          lastState.Weather,
		}
		result := p.writer.Write(ctx, scene, lastState, els, s, true, notify)
		result.ElementsUsed = scene.Elements
		prompts = append(prompts, result)
	}

	progress.Notify(notify, fmt.Sprintf("%d presenter break scene(s) added", len(parts)), progress.LevelSuccess)
	return prompts
}

// splitAtSentenceMidpoint halves text at the sentence boundary closest to
// the middle. Ellipses are protected so they do not count as boundaries.
func splitAtSentenceMidpoint(text string) (string, string) {
	const ellipsis = "\x00"
	protected := strings.ReplaceAll(text, "...", ellipsis)

	var sentences []string
	for _, s := range strings.Split(protected, ".") {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) < 2 {
		return text, ""
	}

	mid := len(sentences) / 2
	a := strings.Join(sentences[:mid], ". ") + "."
	b := strings.Join(sentences[mid:], ". ")
	return strings.ReplaceAll(a, ellipsis, "..."), strings.ReplaceAll(b, ellipsis, "...")
}
