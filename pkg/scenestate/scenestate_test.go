package scenestate

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hearthfire/shelter-engine/pkg/genai"
	"github.com/hearthfire/shelter-engine/pkg/story"
	"github.com/hearthfire/shelter-engine/pkg/storyboard"
)

func testStory() *story.Story {
	return &story.Story{
		Character: story.Character{Name: "Erik Lindqvist"},
	}
}

func TestInitState(t *testing.T) {
	s := Init(testStory(), 0, "clearing")

	if s.Scene != 0 || s.Chapter != 1 {
		t.Errorf("expected scene 0 chapter 1, got %d/%d", s.Scene, s.Chapter)
	}
	if s.Environment.GroundClearedPct != 0 {
		t.Errorf("expected 0%% cleared, got %d", s.Environment.GroundClearedPct)
	}
	if got := s.Tools.Available; len(got) != 2 || got[0] != "axe" || got[1] != "canvas_bag" {
		t.Errorf("expected starting kit [axe canvas_bag], got %v", got)
	}
	if s.TimeOfDay != "morning" || s.Weather != "overcast, cold" {
		t.Errorf("unexpected initial conditions: %s / %s", s.TimeOfDay, s.Weather)
	}
	if !s.LocationChanged {
		t.Error("first scene must always generate a location image")
	}
	if _, ok := s.Characters["erik lindqvist"]; !ok {
		t.Errorf("expected character keyed by lowercase name, got %v", s.Characters)
	}
}

func TestEvaluateDiffNoChanges(t *testing.T) {
	prev := Init(testStory(), 0, "clearing")
	curr := prev.Clone()
	curr.Scene = 2
	curr.LocationChanged = false

	diff := EvaluateDiff(curr, prev)
	if diff.NeedsNewImage {
		t.Errorf("identical states must reuse the image, triggers: %v", diff.Triggers)
	}
}

func TestEvaluateDiffTriggers(t *testing.T) {
	base := func() (curr, prev *State) {
		prev = Init(testStory(), 0, "clearing")
		curr = prev.Clone()
		curr.LocationChanged = false
		return curr, prev
	}

	tests := []struct {
		name    string
		mutate  func(curr *State)
		trigger string
	}{
		{"tracker flag", func(c *State) { c.LocationChanged = true }, "state_tracker_flagged"},
		{"location id", func(c *State) { c.LocationID = "forest_edge" }, "location_changed"},
		{"progress jump", func(c *State) { c.Environment.GroundClearedPct = 10 }, "construction_progress"},
		{"new structure", func(c *State) { c.Environment.StructuresBuilt = []string{"foundation"} }, "new_structures"},
		{"new object", func(c *State) { c.Environment.ObjectsOnGround = []string{"log pile"} }, "new_objects"},
		{"time", func(c *State) { c.TimeOfDay = "dusk" }, "time_change"},
		{"weather", func(c *State) { c.Weather = "snowing" }, "weather_change"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			curr, prev := base()
			tc.mutate(curr)
			diff := EvaluateDiff(curr, prev)
			if !diff.NeedsNewImage {
				t.Fatal("expected new image needed")
			}
			found := false
			for _, tr := range diff.Triggers {
				if strings.HasPrefix(tr, tc.trigger) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected trigger %q, got %v", tc.trigger, diff.Triggers)
			}
		})
	}
}

func TestEvaluateDiffSmallProgressIsNotATrigger(t *testing.T) {
	prev := Init(testStory(), 0, "clearing")
	curr := prev.Clone()
	curr.LocationChanged = false
	curr.Environment.GroundClearedPct = 9

	diff := EvaluateDiff(curr, prev)
	if diff.NeedsNewImage {
		t.Errorf("9-point progress must not force a new image, triggers: %v", diff.Triggers)
	}
}

func TestBuildImagePlanStandalone(t *testing.T) {
	curr := Init(testStory(), 0, "clearing")
	curr.Scene = 1

	plan := BuildImagePlan(curr, nil, &DiffResult{})
	if plan.UseReference {
		t.Error("first scene plan must be standalone")
	}
	if plan.OutputFilename != "loc_001.png" {
		t.Errorf("expected loc_001.png, got %s", plan.OutputFilename)
	}
	if !strings.Contains(plan.Prompt, "morning lighting") {
		t.Errorf("expected time of day in prompt, got %q", plan.Prompt)
	}
}

func TestBuildImagePlanDreamIsStandalone(t *testing.T) {
	prev := Init(testStory(), 0, "dream_sequence")
	prev.LocationImage = "loc_004.png"
	curr := prev.Clone()
	curr.Scene = 5

	plan := BuildImagePlan(curr, prev, &DiffResult{})
	if plan.UseReference {
		t.Error("dream sequences never reference real-world images")
	}
}

func TestBuildImagePlanReferenceBased(t *testing.T) {
	prev := Init(testStory(), 0, "clearing")
	prev.Scene = 3
	prev.LocationImage = "loc_003.png"
	curr := prev.Clone()
	curr.Scene = 7
	curr.Environment.GroundClearedPct = 25
	curr.Environment.StructuresBuilt = []string{"staked footprint"}

	diff := EvaluateDiff(curr, prev)
	plan := BuildImagePlan(curr, prev, diff)

	if !plan.UseReference {
		t.Fatal("same-location update must reference the previous image")
	}
	if plan.ReferenceImage != "loc_003.png" {
		t.Errorf("expected reference loc_003.png, got %s", plan.ReferenceImage)
	}
	if plan.OutputFilename != "loc_007.png" {
		t.Errorf("expected loc_007.png, got %s", plan.OutputFilename)
	}
	if !strings.Contains(plan.Prompt, "25% exposed earth") {
		t.Errorf("expected progress modification in prompt, got %q", plan.Prompt)
	}
	if !strings.Contains(plan.Prompt, "staked footprint") {
		t.Errorf("expected new structure in prompt, got %q", plan.Prompt)
	}
}

func TestEvolveClampsRegressingProgress(t *testing.T) {
	mock := genai.NewMockTextService()
	mock.GenerateJSONFunc = func(ctx context.Context, req genai.TextRequest) (json.RawMessage, error) {
		return json.RawMessage(`{
			"scene": 4, "chapter": 1,
			"environment": {"ground_cleared_pct": 5, "ground_description": "partially cleared"},
			"tools": {"available": ["axe"]},
			"time_of_day": "midday", "weather": "overcast, cold",
			"location_id": "clearing", "location_changed": false
		}`), nil
	}

	prev := Init(testStory(), 0, "clearing")
	prev.Scene = 3
	prev.Environment.GroundClearedPct = 20

	e := NewEvolver(mock, "flash-model", nil)
	next := e.Evolve(context.Background(), prev, storyboard.Scene{SceneNum: 4, Action: "Erik rests"}, nil)

	if next.Environment.GroundClearedPct != 20 {
		t.Errorf("progress must never regress, got %d", next.Environment.GroundClearedPct)
	}
	if next.Scene != 4 {
		t.Errorf("expected scene 4, got %d", next.Scene)
	}
}

func TestEvolveFallsBackToPreviousState(t *testing.T) {
	mock := genai.NewMockTextService()
	mock.GenerateJSONFunc = func(ctx context.Context, req genai.TextRequest) (json.RawMessage, error) {
		return nil, errors.New("quota exceeded")
	}

	prev := Init(testStory(), 0, "clearing")
	prev.Scene = 3
	prev.Environment.GroundClearedPct = 15

	e := NewEvolver(mock, "flash-model", nil)
	next := e.Evolve(context.Background(), prev, storyboard.Scene{SceneNum: 4, Action: "Erik chops"}, nil)

	if next.Scene != 4 {
		t.Errorf("fallback must advance the scene number, got %d", next.Scene)
	}
	if next.Environment.GroundClearedPct != 15 {
		t.Errorf("fallback must carry state forward, got %d%%", next.Environment.GroundClearedPct)
	}
	if prev.Scene != 3 {
		t.Error("fallback must not mutate the previous state")
	}
}

func TestEvolvePromptContainsSceneFacts(t *testing.T) {
	mock := genai.NewMockTextService()
	prev := Init(testStory(), 0, "clearing")

	e := NewEvolver(mock, "flash-model", nil)
	e.Evolve(context.Background(), prev, storyboard.Scene{
		SceneNum: 2, Action: "Erik hammers the first stake",
		Tools: []string{"mallet"}, ProgressDelta: "+5% staked",
	}, nil)

	if len(mock.JSONCalls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(mock.JSONCalls))
	}
	prompt := mock.JSONCalls[0].Prompt
	for _, want := range []string{"Erik hammers the first stake", "mallet", "+5% staked", "ground_cleared_pct"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
