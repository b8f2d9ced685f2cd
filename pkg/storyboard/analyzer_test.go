package storyboard

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hearthfire/shelter-engine/pkg/elements"
	"github.com/hearthfire/shelter-engine/pkg/genai"
	"github.com/hearthfire/shelter-engine/pkg/story"
)

func analyzerStory() *story.Story {
	return &story.Story{
		Title: "Alone at the Treeline",
		Character: story.Character{
			Name:        "Erik Lindqvist",
			Description: "weathered carpenter",
			Companion:   story.Companion{Type: "dog", Name: "Gus"},
		},
		Location:     story.Location{Name: "Kiruna backcountry", Terrain: "boreal forest"},
		Construction: story.Construction{Type: "log cabin"},
		Timeline:     story.Timeline{TotalDays: 42},
	}
}

func TestAnalyzeNormalizesModelOutput(t *testing.T) {
	mock := genai.NewMockTextService()
	mock.GenerateJSONFunc = func(ctx context.Context, req genai.TextRequest) (json.RawMessage, error) {
		return json.RawMessage(`{
			"process_understanding": "Clearing brush from the cabin site",
			"storyboard": [
				{"scene_number": 1, "type": "narrated", "narration": "Erik chops the first sapling.",
				 "action": "Erik chops low saplings with the axe", "location_id": "clearing",
				 "time_of_day": "morning", "tools": ["axe"], "progress_delta": "null"},
				{"scene_number": 2, "type": "bridge", "narration_excerpt": "null",
				 "action": "Erik pauses and looks at the treeline", "location_id": "clearing",
				 "bridge_reason": "survey progress"}
			],
			"total_narrated": 0, "total_bridges": 0, "total_scenes": 0
		}`), nil
	}

	a := NewAnalyzer(mock, "test-model", nil)
	analysis := a.Analyze(context.Background(), analyzerStory(), "Erik chops the first sapling.", 0, nil, nil)

	if analysis.Error != "" {
		t.Fatalf("unexpected analysis error: %s", analysis.Error)
	}
	if len(analysis.Storyboard) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(analysis.Storyboard))
	}

	first := analysis.Storyboard[0]
	if first.SceneNum != 1 {
		t.Errorf("scene_number alias not normalized, got %d", first.SceneNum)
	}
	if first.NarrationExcerpt != "Erik chops the first sapling." {
		t.Errorf("narration alias not normalized, got %q", first.NarrationExcerpt)
	}
	if first.ProgressDelta != "" {
		t.Errorf("literal null string not cleared, got %q", first.ProgressDelta)
	}
	if first.Duration != "12s" {
		t.Errorf("expected complex narrated scene default of 12s, got %q", first.Duration)
	}

	second := analysis.Storyboard[1]
	if second.NarrationExcerpt != "" {
		t.Errorf("bridge narration should be empty, got %q", second.NarrationExcerpt)
	}
	if second.Duration != "5s" {
		t.Errorf("expected bridge default of 5s, got %q", second.Duration)
	}
	if second.VisualDescription != second.Action {
		t.Errorf("visual description should fall back to action, got %q", second.VisualDescription)
	}

	if analysis.TotalNarrated != 1 || analysis.TotalBridges != 1 || analysis.TotalScenes != 2 {
		t.Errorf("totals not recounted: %d narrated %d bridges %d total",
			analysis.TotalNarrated, analysis.TotalBridges, analysis.TotalScenes)
	}
}

func TestAnalyzePromptIncludesContext(t *testing.T) {
	mock := genai.NewMockTextService()
	els := []elements.Element{
		{ID: "erik", Label: "Erik Lindqvist", Kind: "character", Description: "weathered carpenter in a wool coat"},
		{ID: "gus", Label: "Gus", Kind: "animal", Description: "grey Norwegian elkhound"},
	}

	a := NewAnalyzer(mock, "test-model", nil)
	a.Analyze(context.Background(), analyzerStory(), "Erik chops the first sapling.", 2, els, nil)

	if len(mock.JSONCalls) != 1 {
		t.Fatalf("expected 1 generation call, got %d", len(mock.JSONCalls))
	}
	prompt := mock.JSONCalls[0].Prompt
	for _, want := range []string{"Erik Lindqvist", "@Gus", "log cabin", "Chapter: 3", "Erik chops the first sapling."} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestAnalyzeFailureReturnsErrorObject(t *testing.T) {
	mock := genai.NewMockTextService()
	mock.GenerateJSONFunc = func(ctx context.Context, req genai.TextRequest) (json.RawMessage, error) {
		return nil, errors.New("model overloaded")
	}

	a := NewAnalyzer(mock, "test-model", nil)
	analysis := a.Analyze(context.Background(), analyzerStory(), "some narration", 0, nil, nil)

	if analysis.Error == "" {
		t.Fatal("expected error recorded on analysis")
	}
	if !strings.Contains(analysis.Error, "model overloaded") {
		t.Errorf("expected cause in error, got %q", analysis.Error)
	}
	if analysis.Storyboard == nil || len(analysis.Storyboard) != 0 {
		t.Errorf("expected empty non-nil storyboard, got %v", analysis.Storyboard)
	}
}

func TestAnalyzeMalformedJSONReturnsErrorObject(t *testing.T) {
	mock := genai.NewMockTextService()
	mock.GenerateJSONFunc = func(ctx context.Context, req genai.TextRequest) (json.RawMessage, error) {
		return json.RawMessage(`{"storyboard": "not a list"}`), nil
	}

	a := NewAnalyzer(mock, "test-model", nil)
	analysis := a.Analyze(context.Background(), analyzerStory(), "some narration", 0, nil, nil)

	if analysis.Error == "" {
		t.Fatal("expected parse failure recorded on analysis")
	}
	if len(analysis.Storyboard) != 0 {
		t.Errorf("expected empty storyboard, got %v", analysis.Storyboard)
	}
}
