// Package storyboard turns chapter narration into an ordered, validated
// sequence of scenes: the narrated beats plus the bridge scenes that cover
// the physical transitions narration skips over.
package storyboard

import (
	"encoding/json"
	"strings"
)

// SceneKind classifies a storyboard entry.
type SceneKind string

const (
	KindNarrated  SceneKind = "narrated"  // narration plays as voiceover
	KindBridge    SceneKind = "bridge"    // ambient sound only, fills a physical gap
	KindPresenter SceneKind = "presenter" // host addresses the camera
)

// Scene is the atomic unit of video: one continuous shot.
type Scene struct {
	SceneNum          int       `json:"scene_num"`
	Kind              SceneKind `json:"type"`
	NarrationExcerpt  string    `json:"narration_excerpt,omitempty"`
	Action            string    `json:"action"`
	VisualDescription string    `json:"visual_description,omitempty"`
	LocationID        string    `json:"location_id"`
	Elements          []string  `json:"elements,omitempty"`
	TimeOfDay         string    `json:"time_of_day,omitempty"`
	Weather           string    `json:"weather,omitempty"`
	Tools             []string  `json:"tools,omitempty"`
	Duration          string    `json:"duration,omitempty"`
	ProgressDelta     string    `json:"progress_delta,omitempty"`
	BridgeReason      string    `json:"bridge_reason,omitempty"`
	Notes             string    `json:"notes,omitempty"`
}

// UnmarshalJSON is the parse/normalize boundary for raw model output. The
// model drifts between key spellings ("scene_number" vs "scene_num",
// "narration" vs "narration_excerpt") and sometimes emits the literal string
// "null"; all of that is absorbed here so the pipeline only ever sees the
// canonical shape.
func (s *Scene) UnmarshalJSON(data []byte) error {
	type alias Scene
	aux := struct {
		*alias
		SceneNumber *int   `json:"scene_number"`
		Narration   string `json:"narration"`
	}{alias: (*alias)(s)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if s.SceneNum == 0 && aux.SceneNumber != nil {
		s.SceneNum = *aux.SceneNumber
	}
	if s.NarrationExcerpt == "" && aux.Narration != "" {
		s.NarrationExcerpt = aux.Narration
	}
	for _, f := range []*string{&s.NarrationExcerpt, &s.ProgressDelta, &s.BridgeReason, &s.Notes} {
		if strings.EqualFold(strings.TrimSpace(*f), "null") {
			*f = ""
		}
	}
	if s.VisualDescription == "" {
		s.VisualDescription = s.Action
	}
	return nil
}

// IsBridge reports whether the scene is a transition bridge.
func (s *Scene) IsBridge() bool {
	return s.Kind == KindBridge
}
