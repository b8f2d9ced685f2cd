package script

import (
	"strings"
	"testing"
)

const sampleScript = `# The Last Shelter: Episode 12
## Complete Script (20 Minutes)

## INTRO (0:00-1:30)

[AERIAL SHOT OF FROZEN VALLEY]

**JACK** (standing at treeline): "Behind me is forty acres of frozen wilderness. Erik Lindqvist has ninety days to build a cabin here."

## PHASE 1: ARRIVAL AND DEVASTATION (1:30-3:30 | 2 min)

[DAY 1]

Erik parks the pickup at the end of the logging road. Gus leaps from the truck bed into the snow. Gus sniffs the frozen ground while Erik unloads the gear.

---

Erik swings the axe for the first time. Erik knows the deadline. Gus barks at something in the treeline.

## JACK BREAK #1: THE STAKES (3:30-4:00 | 30 sec)

**JACK:** "What Erik doesn't know yet is that the cold front arriving next week will change everything."

## OUTRO

**JACK:** "Subscribe for the next episode."
`

func TestParseSections(t *testing.T) {
	s := Parse(sampleScript)

	if s.Title != "The Last Shelter: Episode 12" {
		t.Errorf("unexpected title: %q", s.Title)
	}
	if s.TotalDuration != "20 min" {
		t.Errorf("unexpected total duration: %q", s.TotalDuration)
	}
	if len(s.Sections) != 4 {
		t.Fatalf("expected 4 sections, got %d", len(s.Sections))
	}

	intro := s.Sections[0]
	if intro.Type != SectionIntro || intro.Speaker != SpeakerPresenter {
		t.Errorf("intro misparsed: %+v", intro)
	}
	if intro.Timestamps == nil || intro.Timestamps.Start != "0:00" || intro.Timestamps.End != "1:30" {
		t.Errorf("intro timestamps misparsed: %+v", intro.Timestamps)
	}
	if len(intro.StageDirections) != 1 || intro.StageDirections[0] != "AERIAL SHOT OF FROZEN VALLEY" {
		t.Errorf("stage directions misparsed: %v", intro.StageDirections)
	}
	if strings.Contains(intro.CleanText, "JACK") || strings.Contains(intro.CleanText, "[") {
		t.Errorf("clean text still has markup: %q", intro.CleanText)
	}
	if !strings.Contains(intro.CleanText, "forty acres of frozen wilderness") {
		t.Errorf("narration lost: %q", intro.CleanText)
	}

	phase := s.Sections[1]
	if phase.Type != SectionPhase || phase.Number != 1 {
		t.Errorf("phase misparsed: %+v", phase)
	}
	if phase.Title != "Arrival And Devastation" {
		t.Errorf("phase title not normalized: %q", phase.Title)
	}
	if phase.Duration != "2 min" {
		t.Errorf("phase duration misparsed: %q", phase.Duration)
	}
	if phase.Speaker != SpeakerNarrator {
		t.Errorf("phase speaker should be narrator, got %q", phase.Speaker)
	}
	if len(phase.DayMarkers) != 1 || phase.DayMarkers[0] != "DAY 1" {
		t.Errorf("day markers misparsed: %v", phase.DayMarkers)
	}
	if strings.Contains(phase.CleanText, "---") {
		t.Errorf("horizontal rules not removed: %q", phase.CleanText)
	}

	brk := s.Sections[2]
	if brk.Type != SectionBreak || brk.Number != 1 || brk.Speaker != SpeakerPresenter {
		t.Errorf("presenter break misparsed: %+v", brk)
	}
	if brk.Title != "The Stakes" {
		t.Errorf("break title not normalized: %q", brk.Title)
	}

	if s.Sections[3].Type != SectionOutro {
		t.Errorf("outro misparsed: %+v", s.Sections[3])
	}

	if s.WordCount == 0 {
		t.Error("word count should not be zero")
	}
}

func TestParseCharacters(t *testing.T) {
	s := Parse(sampleScript)

	byName := map[string]Character{}
	for _, c := range s.Characters {
		byName[c.Name] = c
	}

	if c, ok := byName["Erik"]; !ok || c.Type != "character" {
		t.Errorf("Erik not detected as character: %+v", byName)
	}
	if c, ok := byName["Gus"]; !ok || c.Type != "animal" {
		t.Errorf("Gus not detected as animal: %+v", byName["Gus"])
	}
	if c, ok := byName["Jack"]; !ok || c.Type != "presenter" {
		t.Errorf("presenter not detected: %+v", byName["Jack"])
	}
	if s.Characters[0].Name != "Jack" {
		t.Errorf("presenter should lead the list, got %s", s.Characters[0].Name)
	}
}

func TestParseObjects(t *testing.T) {
	s := Parse(sampleScript)

	var pickup *Object
	for i := range s.Objects {
		if s.Objects[i].ID == "pickup" {
			pickup = &s.Objects[i]
		}
	}
	if pickup == nil {
		t.Fatalf("pickup not detected among %v", s.Objects)
	}
	if pickup.Mentions < 2 {
		t.Errorf("expected 2+ pickup mentions, got %d", pickup.Mentions)
	}

	for _, o := range s.Objects {
		if o.ID == "chainsaw" {
			t.Error("chainsaw appears once and should not qualify")
		}
	}
}

func TestParseRelationshipCharacters(t *testing.T) {
	text := sampleScript + "\nHis uncle Lars taught him joinery. The uncle never saw the finished cabin.\n"
	s := Parse(text)

	found := false
	for _, c := range s.Characters {
		if c.Type == "family" && strings.Contains(c.Name, "Lars") {
			found = true
		}
	}
	if !found {
		t.Errorf("relationship character not detected: %+v", s.Characters)
	}
}
