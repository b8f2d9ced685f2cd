package story

import (
	"encoding/json"
	"strings"
)

// EpisodeType selects the narrative template for an episode. Some types relax
// quality-gate checks (cabin_life has no hard deadline and fewer conflicts).
type EpisodeType string

const (
	EpisodeBuild          EpisodeType = "build"
	EpisodeRescue         EpisodeType = "rescue"
	EpisodeRestore        EpisodeType = "restore"
	EpisodeSurvive        EpisodeType = "survive"
	EpisodeFullBuild      EpisodeType = "full_build"
	EpisodeCriticalSystem EpisodeType = "critical_system"
	EpisodeUnderground    EpisodeType = "underground"
	EpisodeCabinLife      EpisodeType = "cabin_life"
)

// Companion is the character's animal companion, if any.
type Companion struct {
	Name        string `json:"name,omitempty"`
	Type        string `json:"type,omitempty"`
	Breed       string `json:"breed,omitempty"`
	Description string `json:"description,omitempty"`
}

// Character is the protagonist of an episode.
type Character struct {
	Name             string    `json:"name"`
	Age              int       `json:"age,omitempty"`
	Origin           string    `json:"origin,omitempty"`
	Profession       string    `json:"profession,omitempty"`
	Description      string    `json:"description,omitempty"`
	Motivation       string    `json:"motivation,omitempty"`
	Companion        Companion `json:"companion,omitempty"`
	MeaningfulObject string    `json:"meaningful_object,omitempty"`
	InternalVoice    string    `json:"internal_voice,omitempty"`
}

// Location is where the episode takes place.
type Location struct {
	Name             string `json:"name"`
	Terrain          string `json:"terrain,omitempty"`
	Climate          string `json:"climate,omitempty"`
	DistanceToTownKm int    `json:"distance_to_town_km,omitempty"`
}

// Construction is what the character is building.
type Construction struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// Timeline is the episode's time pressure.
type Timeline struct {
	TotalDays      int    `json:"total_days,omitempty"`
	Season         string `json:"season,omitempty"`
	DeadlineReason string `json:"deadline_reason,omitempty"`
}

// Conflict is a single escalating setback, pinned to a day.
type Conflict struct {
	Day      int    `json:"day"`
	Title    string `json:"title"`
	Severity string `json:"severity,omitempty"`
}

// NarrativeArc is one phase of the episode's runtime.
type NarrativeArc struct {
	Phase       string `json:"phase"`
	Percentage  int    `json:"percentage"`
	Tension     int    `json:"tension,omitempty"`
	Description string `json:"description,omitempty"`
}

// PivotalMoment is the emotional turning point of the episode. Models sometimes
// return it as a bare string instead of an object, so it unmarshals both shapes.
type PivotalMoment struct {
	Day         int    `json:"day,omitempty"`
	Description string `json:"description,omitempty"`
}

func (m *PivotalMoment) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		m.Description = strings.TrimSpace(s)
		return nil
	}
	type alias PivotalMoment
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*m = PivotalMoment(a)
	return nil
}

// Outcome is the episode's resolution. Generation asks for a plain string,
// but older story documents carry {"visual", "one_liner"} objects, so it
// unmarshals both shapes.
type Outcome string

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*o = Outcome(strings.TrimSpace(s))
		return nil
	}
	var obj struct {
		Visual   string `json:"visual"`
		OneLiner string `json:"one_liner"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	parts := make([]string, 0, 2)
	if v := strings.TrimSpace(obj.Visual); v != "" {
		parts = append(parts, v)
	}
	if l := strings.TrimSpace(obj.OneLiner); l != "" {
		parts = append(parts, l)
	}
	*o = Outcome(strings.Join(parts, " "))
	return nil
}

// Story is the top-level narrative record for one episode. It is created once
// by story generation and read-only afterward except for manual edits.
type Story struct {
	Title           string         `json:"title,omitempty"`
	EpisodeType     EpisodeType    `json:"episode_type"`
	Archetype       string         `json:"archetype,omitempty"`
	DurationMinutes int            `json:"duration_minutes,omitempty"`
	Character       Character      `json:"character"`
	Location        Location       `json:"location"`
	Construction    Construction   `json:"construction,omitempty"`
	Timeline        Timeline       `json:"timeline"`
	Conflicts       []Conflict     `json:"conflicts"`
	PivotalMoment   PivotalMoment  `json:"el_momento,omitempty"`
	NarrativeArcs   []NarrativeArc `json:"narrative_arcs"`
	HumorMoment     string         `json:"humor_moment,omitempty"`
	Outcome         Outcome        `json:"outcome,omitempty"`
	StoryStrength   int            `json:"story_strength,omitempty"`
}
