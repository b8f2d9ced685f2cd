package storyboard

import (
	"reflect"
	"strings"
	"testing"
)

func cleanStoryboard() []Scene {
	return []Scene{
		{
			SceneNum:         1,
			Kind:             KindNarrated,
			NarrationExcerpt: "Erik swings the heavy axe against frozen spruce saplings.",
			Action:           "Erik swings the axe at low saplings near the treeline",
			LocationID:       "clearing",
			TimeOfDay:        "morning",
			Weather:          "overcast, cold",
			Tools:            []string{"axe"},
			ProgressDelta:    "+5% ground cleared",
		},
		{
			SceneNum:     2,
			Kind:         KindBridge,
			Action:       "Erik wipes his brow and surveys the remaining brush",
			LocationID:   "clearing",
			TimeOfDay:    "morning",
			BridgeReason: "Character evaluates progress",
		},
		{
			SceneNum:         3,
			Kind:             KindNarrated,
			NarrationExcerpt: "White chips scatter across the snowy clearing floor.",
			Action:           "Chips fly as Erik keeps swinging, the pile growing",
			LocationID:       "clearing",
			TimeOfDay:        "midday",
			Tools:            []string{"axe"},
			ProgressDelta:    "+5% ground cleared",
		},
	}
}

const cleanNarration = "Erik swings the heavy axe against frozen spruce saplings. White chips scatter across the snowy clearing floor."

func TestValidateCleanStoryboard(t *testing.T) {
	report := Validate(cleanStoryboard(), cleanNarration, nil)

	if !report.Valid {
		t.Errorf("expected valid storyboard, got errors: %+v", report.Errors)
	}
	if report.Score != 100 {
		t.Errorf("expected score 100, got %d", report.Score)
	}
	if report.TotalErrors != 0 || report.TotalWarnings != 0 {
		t.Errorf("expected no issues, got %d errors %d warnings", report.TotalErrors, report.TotalWarnings)
	}
}

func TestValidateOrphanNarration(t *testing.T) {
	narration := cleanNarration + " The old cabin collapsed under the heavy snow load."
	report := Validate(cleanStoryboard(), narration, nil)

	issue := findIssue(report.Errors, "orphan_narration")
	if issue == nil {
		t.Fatalf("expected orphan_narration error, got %+v", report.Errors)
	}
	if !strings.Contains(issue.Details, "The old cabin collapsed") {
		t.Errorf("expected orphan sentence in details, got %q", issue.Details)
	}
	if report.Valid {
		t.Error("report with errors must not be valid")
	}
}

func TestValidateConstructionSequenceBacktrack(t *testing.T) {
	scenes := []Scene{
		{SceneNum: 1, Kind: KindNarrated, Action: "Erik lays stones for the foundation"},
		{SceneNum: 2, Kind: KindNarrated, Action: "Erik starts clearing the remaining brush"},
	}
	report := Validate(scenes, "", nil)

	issue := findIssue(report.Errors, "construction_sequence")
	if issue == nil {
		t.Fatalf("expected construction_sequence error, got %+v", report.Errors)
	}
	if !strings.Contains(issue.Message, "'clear'") {
		t.Errorf("expected backtracking milestone in message, got %q", issue.Message)
	}
}

func TestValidateConstructionSequenceOneStepTolerated(t *testing.T) {
	scenes := []Scene{
		{SceneNum: 1, Kind: KindNarrated, Action: "Erik frames the ridge beam"},
		{SceneNum: 2, Kind: KindNarrated, Action: "Erik chinks gaps in the walls below"},
	}
	report := Validate(scenes, "", nil)

	if issue := findIssue(report.Errors, "construction_sequence"); issue != nil {
		t.Errorf("one-step backtrack should be tolerated, got %+v", issue)
	}
}

func TestValidatePhantomPowerTool(t *testing.T) {
	scenes := cleanStoryboard()
	scenes[2].Tools = []string{"chainsaw"}
	report := Validate(scenes, cleanNarration, nil)

	issue := findIssue(report.Errors, "phantom_tool")
	if issue == nil {
		t.Fatalf("expected phantom_tool error for chainsaw, got %+v", report.Errors)
	}
	if !strings.Contains(issue.Message, "chainsaw") {
		t.Errorf("expected chainsaw named in message, got %q", issue.Message)
	}
}

func TestValidateUnknownToolWarnsOnce(t *testing.T) {
	scenes := cleanStoryboard()
	scenes[0].Tools = []string{"axe", "pickaxe"}
	scenes[2].Tools = []string{"pickaxe"}
	report := Validate(scenes, cleanNarration, nil)

	if report.TotalErrors != 0 {
		t.Fatalf("unknown hand tool must not be an error: %+v", report.Errors)
	}
	var toolWarnings int
	for _, w := range report.Warnings {
		if w.Check == "phantom_tool" {
			toolWarnings++
		}
	}
	if toolWarnings != 1 {
		t.Errorf("expected exactly 1 phantom_tool warning, got %d: %+v", toolWarnings, report.Warnings)
	}
}

func TestValidateNegativeProgress(t *testing.T) {
	scenes := cleanStoryboard()
	scenes[2].ProgressDelta = "-5% ground cleared"
	report := Validate(scenes, cleanNarration, nil)

	if findIssue(report.Errors, "progress_monotonicity") == nil {
		t.Errorf("expected progress_monotonicity error, got %+v", report.Errors)
	}
}

func TestValidateTimeRegression(t *testing.T) {
	scenes := cleanStoryboard()
	scenes[0].TimeOfDay = "afternoon"
	report := Validate(scenes, cleanNarration, nil)

	if findIssue(report.Warnings, "time_progression") == nil {
		t.Errorf("expected time_progression warning, got %+v", report.Warnings)
	}
}

func TestValidateDayBoundaryResetsClock(t *testing.T) {
	scenes := cleanStoryboard()
	scenes[0].TimeOfDay = "evening"
	scenes[1].Notes = "Day 2 card"
	report := Validate(scenes, cleanNarration, nil)

	if issue := findIssue(report.Warnings, "time_progression"); issue != nil {
		t.Errorf("day boundary should reset time tracking, got %+v", issue)
	}
}

func TestValidateMissingBridgeOnLocationChange(t *testing.T) {
	scenes := []Scene{
		{SceneNum: 1, Kind: KindNarrated, Action: "Erik loads the truck bed", LocationID: "truck_area"},
		{SceneNum: 2, Kind: KindNarrated, Action: "Erik sets the first stake", LocationID: "clearing"},
	}
	report := Validate(scenes, "", nil)

	if findIssue(report.Warnings, "missing_bridge") == nil {
		t.Errorf("expected missing_bridge warning, got %+v", report.Warnings)
	}
}

func TestValidateScoreFormula(t *testing.T) {
	scenes := cleanStoryboard()
	scenes[2].ProgressDelta = "-5% ground cleared" // 1 error
	scenes[0].Tools = []string{"axe", "peavey"}    // 1 warning
	report := Validate(scenes, cleanNarration, nil)

	want := 100 - 15*report.TotalErrors - 5*report.TotalWarnings
	if want < 0 {
		want = 0
	}
	if report.TotalErrors != 1 || report.TotalWarnings != 1 {
		t.Fatalf("expected 1 error and 1 warning, got %d/%d", report.TotalErrors, report.TotalWarnings)
	}
	if report.Score != want {
		t.Errorf("expected score %d, got %d", want, report.Score)
	}
}

func TestValidateIdempotent(t *testing.T) {
	scenes := cleanStoryboard()
	scenes[2].Tools = []string{"chainsaw"}

	first := Validate(scenes, cleanNarration, nil)
	second := Validate(scenes, cleanNarration, nil)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("validation is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func findIssue(issues []Issue, check string) *Issue {
	for i := range issues {
		if issues[i].Check == check {
			return &issues[i]
		}
	}
	return nil
}
