package story

import (
	"context"
	"strings"
	"testing"
)

type staticSource []*Story

func (s staticSource) ListStories(ctx context.Context) ([]*Story, error) {
	return s, nil
}

func TestDiversityContextEmptyHistory(t *testing.T) {
	tracker := NewDiversityTracker(staticSource{})
	got, err := tracker.Context(context.Background())
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if got != "" {
		t.Errorf("no history must produce no constraints, got %q", got)
	}
}

func TestDiversityContextAvoidsUsedValues(t *testing.T) {
	tracker := NewDiversityTracker(staticSource{
		{
			Archetype:   "The Promise",
			EpisodeType: EpisodeBuild,
			Character: Character{
				Name: "Erik Lindqvist", Age: 58, Origin: "Sweden",
				Companion: Companion{Name: "Gus", Breed: "Norwegian Elkhound"},
			},
			Location: Location{Name: "Yukon backcountry"},
		},
	})

	got, err := tracker.Context(context.Background())
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	for _, want := range []string{
		"Total episodes generated so far: 1",
		"Erik Lindqvist",
		"Gus",
		"Yukon backcountry",
		"AVOID",
		"PREFER",
		"Consider a YOUNGER character",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q", want)
		}
	}
	if strings.Contains(got, "Preferred archetypes (least used): The Promise") {
		t.Error("used archetype must not lead the recommendations")
	}
}

func TestLeastUsedPrefersUnused(t *testing.T) {
	got := leastUsed([]string{"b", "b", "a"}, []string{"a", "b", "c", "d"}, 2)
	if len(got) != 2 || got[0] != "c" || got[1] != "d" {
		t.Errorf("expected unused options first, got %v", got)
	}

	got = leastUsed([]string{"b", "b", "a"}, []string{"a", "b"}, 1)
	if len(got) != 1 || got[0] != "a" {
		t.Errorf("expected least-used option, got %v", got)
	}
}

func TestRecommendations(t *testing.T) {
	tracker := NewDiversityTracker(staticSource{
		{EpisodeType: EpisodeBuild, Character: Character{Name: "Mara Okafor"}},
	})
	rec, err := tracker.Recommendations(context.Background())
	if err != nil {
		t.Fatalf("Recommendations: %v", err)
	}
	if rec.TotalEpisodes != 1 {
		t.Errorf("expected 1 episode, got %d", rec.TotalEpisodes)
	}
	if len(rec.EpisodeTypes) != 5 {
		t.Errorf("expected 5 recommended types, got %v", rec.EpisodeTypes)
	}
	for _, typ := range rec.EpisodeTypes {
		if typ == "build" {
			t.Error("the only used episode type should not be recommended")
		}
	}
}
