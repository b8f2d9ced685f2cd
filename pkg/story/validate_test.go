package story

import "testing"

// goodStory returns a story that passes all ten checks.
func goodStory() *Story {
	return &Story{
		EpisodeType: EpisodeBuild,
		Character: Character{
			Name:             "Erik Lindqvist",
			Age:              38,
			Motivation:       "finish the cabin before his father's birthday",
			Companion:        Companion{Name: "Gus", Type: "dog", Breed: "malamute"},
			MeaningfulObject: "his father's compass",
			InternalVoice:    "Not someday. Today. That's the only deadline that counts.",
		},
		Location: Location{
			Name:             "Tanana Valley, Alaska",
			Terrain:          "boreal forest",
			DistanceToTownKm: 60,
		},
		Timeline: Timeline{TotalDays: 38, Season: "late autumn", DeadlineReason: "winter hits -50C"},
		Conflicts: []Conflict{
			{Day: 5, Title: "Frozen ground halts the dig", Severity: "moderate"},
			{Day: 14, Title: "Storm destroys the tarp shelter", Severity: "high"},
			{Day: 27, Title: "Axe handle snaps mid-fell", Severity: "critical"},
		},
		PivotalMoment: PivotalMoment{Day: 27, Description: "Erik sees his father's workshop with perfect clarity"},
		NarrativeArcs: []NarrativeArc{
			{Phase: "Arrival", Percentage: 20, Tension: 30},
			{Phase: "Foundation", Percentage: 30, Tension: 55},
			{Phase: "Crisis", Percentage: 25, Tension: 90},
			{Phase: "Resolution", Percentage: 25, Tension: 40},
		},
		HumorMoment:   "Gus steals the only glove and refuses to negotiate",
		StoryStrength: 88,
	}
}

func TestValidate_AllChecksPass(t *testing.T) {
	report := Validate(goodStory())

	if !report.Passed {
		t.Fatalf("expected gate pass, failed checks: %v", report.FailedNames())
	}
	if report.PassedCount != 10 {
		t.Errorf("expected 10/10 checks, got %d", report.PassedCount)
	}
	if report.Score != 100 {
		t.Errorf("expected score 100, got %d", report.Score)
	}
}

func TestValidate_TwoConflictsFailsGate(t *testing.T) {
	// Even with strength 95 and everything else perfect, two conflicts is a
	// hard failure for a standard episode.
	s := goodStory()
	s.StoryStrength = 95
	s.Conflicts = s.Conflicts[:2]

	report := Validate(s)
	if report.Passed {
		t.Fatal("expected gate failure with only 2 conflicts")
	}
	found := false
	for _, c := range report.Failed {
		if c.ID == 3 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected check 3 in failed list, got %v", report.FailedNames())
	}
}

func TestValidate_CabinLifeRelaxations(t *testing.T) {
	s := goodStory()
	s.EpisodeType = EpisodeCabinLife
	s.Conflicts = s.Conflicts[:1]
	s.Timeline.DeadlineReason = ""

	report := Validate(s)
	if !report.Passed {
		t.Errorf("cabin_life with 1 conflict and no deadline reason should pass, failed: %v", report.FailedNames())
	}
}

func TestValidate_MissingCompanionIsBonusOnly(t *testing.T) {
	s := goodStory()
	s.Character.Companion = Companion{}

	report := Validate(s)
	if !report.Passed {
		t.Errorf("missing companion must not fail the gate, failed: %v", report.FailedNames())
	}
	if report.Score != 90 {
		t.Errorf("expected score 90 with one bonus miss, got %d", report.Score)
	}
	if len(report.Failed) != 1 {
		t.Errorf("companion should still appear in failed list, got %v", report.FailedNames())
	}
}

func TestValidate_NonEscalatingConflicts(t *testing.T) {
	s := goodStory()
	s.Conflicts[2].Day = 10 // before conflict 2's day 14

	report := Validate(s)
	if report.Passed {
		t.Fatal("expected failure for non-increasing conflict days")
	}
}

func TestValidate_GenericLocation(t *testing.T) {
	s := goodStory()
	s.Location = Location{Name: "the wilderness", Terrain: "forest"}

	report := Validate(s)
	if report.Passed {
		t.Fatal("expected failure for generic location name")
	}
}

func TestValidate_ArcPercentageBounds(t *testing.T) {
	s := goodStory()
	s.NarrativeArcs[0].Percentage = 5 // sum drops to 85

	report := Validate(s)
	if report.Passed {
		t.Fatal("expected failure for arc sum outside 95-105")
	}

	s.NarrativeArcs[0].Percentage = 24 // sum 104, inside tolerance
	if report := Validate(s); !report.Passed {
		t.Errorf("arc sum 104 should pass, failed: %v", report.FailedNames())
	}
}

func TestValidate_ScoreBounds(t *testing.T) {
	empty := &Story{}
	report := Validate(empty)
	if report.Score < 0 || report.Score > 100 {
		t.Errorf("score out of bounds: %d", report.Score)
	}
	if report.Passed {
		t.Error("empty story must not pass")
	}
}

func TestValidate_PivotalMomentStringShape(t *testing.T) {
	// Models sometimes return el_momento as a bare string.
	var m PivotalMoment
	if err := m.UnmarshalJSON([]byte(`"the night he nearly quits, he sees the finished cabin"`)); err != nil {
		t.Fatalf("string shape should unmarshal: %v", err)
	}
	if m.Description == "" {
		t.Error("description not captured from string shape")
	}
}

func TestOutcomeShapes(t *testing.T) {
	var o Outcome
	if err := o.UnmarshalJSON([]byte(`"He finishes with two days to spare."`)); err != nil {
		t.Fatalf("string shape should unmarshal: %v", err)
	}
	if o != "He finishes with two days to spare." {
		t.Errorf("unexpected outcome from string shape: %q", o)
	}

	// Older documents carry an object.
	if err := o.UnmarshalJSON([]byte(`{"visual": "Smoke rising from the finished chimney.", "one_liner": "Home."}`)); err != nil {
		t.Fatalf("object shape should unmarshal: %v", err)
	}
	if o != "Smoke rising from the finished chimney. Home." {
		t.Errorf("unexpected outcome from object shape: %q", o)
	}
}
