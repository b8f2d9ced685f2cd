// Package elements manages the recurring visual subjects of an episode:
// characters, animals, vehicles, and notable objects that need a consistent
// reference image across every generated scene.
package elements

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hearthfire/shelter-engine/pkg/genai"
	"github.com/hearthfire/shelter-engine/pkg/progress"
	"github.com/hearthfire/shelter-engine/pkg/story"
)

// Element is one recurring visual subject. Prompts reference it as @Label.
type Element struct {
	ID          string `json:"element_id"`
	Label       string `json:"label"`
	Kind        string `json:"kind"` // character, animal, vehicle, object
	Description string `json:"description"`
	ImagePrompt string `json:"image_prompt,omitempty"`
	ImageFile   string `json:"image_file,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Ref returns the @-reference used in prompts.
func (e Element) Ref() string {
	return "@" + e.Label
}

// Analyzer derives the element list from a story and its narration.
type Analyzer struct {
	text   genai.TextService
	model  string
	logger *slog.Logger
}

func NewAnalyzer(text genai.TextService, model string, logger *slog.Logger) *Analyzer {
	return &Analyzer{text: text, model: model, logger: logger}
}

// Analyze extracts the distinct recurring subjects that appear across the
// narration: the protagonist, companion, vehicles, and emotionally loaded
// objects. Each comes with a reference-image prompt.
func (a *Analyzer) Analyze(ctx context.Context, s *story.Story, narrationText string, notify progress.Func) ([]Element, error) {
	progress.Notify(notify, "Analyzing recurring visual elements...", progress.LevelInfo)

	prompt := fmt.Sprintf(`Identify every recurring visual subject in this survival
documentary episode: the protagonist, any companion animal, vehicles, and
notable objects that reappear across scenes.

CHARACTER: %s: %s
COMPANION: %s (%s)
LOCATION: %s
MEANINGFUL OBJECT: %s

NARRATION:
"""%s"""

For each subject return: element_id (snake_case), label (full display name),
kind (character|animal|vehicle|object), description (appearance details that
must stay identical across images), image_prompt (photorealistic reference
image prompt, neutral background, no other subjects).

Return JSON: {"elements": [...]}`,
		s.Character.Name, s.Character.Description,
		s.Character.Companion.Name, s.Character.Companion.Breed,
		s.Location.Name, s.Character.MeaningfulObject, narrationText)

	raw, err := a.text.GenerateJSON(ctx, genai.TextRequest{
		Prompt:      prompt,
		Temperature: 0.4,
		MaxTokens:   8000,
		Model:       a.model,
	})
	if err != nil {
		return nil, fmt.Errorf("element analysis failed: %w", err)
	}

	var out struct {
		Elements []Element `json:"elements"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse element analysis: %w", err)
	}

	progress.Notify(notify, fmt.Sprintf("%d elements identified", len(out.Elements)), progress.LevelSuccess)
	return out.Elements, nil
}

// GenerateImages renders one reference image per element into dir. A failed
// element is recorded on the element itself and does not stop the batch.
func GenerateImages(ctx context.Context, images genai.ImageService, els []Element, dir string, notify progress.Func) []Element {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		for i := range els {
			els[i].Error = fmt.Sprintf("element image dir: %v", err)
		}
		return els
	}
	for i := range els {
		el := &els[i]
		if el.ImagePrompt == "" {
			el.Error = "no image prompt"
			continue
		}
		el.ImageFile = el.ID + ".png"
		out := filepath.Join(dir, el.ImageFile)

		if _, err := images.GenerateImage(ctx, genai.ImageRequest{
			Prompt:     el.ImagePrompt,
			OutputPath: out,
		}); err != nil {
			el.Error = err.Error()
			el.ImageFile = ""
			progress.Notify(notify, fmt.Sprintf("Element %s image failed: %v", el.Label, err), progress.LevelError)
			continue
		}
		el.Error = ""
		progress.Notify(notify, fmt.Sprintf("Element image: %s", el.ImageFile), progress.LevelSuccess)
	}
	return els
}
