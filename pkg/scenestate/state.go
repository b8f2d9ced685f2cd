// Package scenestate tracks the physical world of an episode scene by
// scene: ground cleared, structures standing, tools in hand, light and
// weather. The state drives when a location needs a freshly generated
// image and when the previous one can be reused.
package scenestate

import (
	"strings"

	"github.com/hearthfire/shelter-engine/pkg/story"
)

// Environment is the visible state of the build site.
type Environment struct {
	GroundClearedPct  int      `json:"ground_cleared_pct"`
	GroundDescription string   `json:"ground_description"`
	StructuresBuilt   []string `json:"structures_built"`
	ObjectsOnGround   []string `json:"objects_on_ground"`
}

// ToolState tracks where every tool is.
type ToolState struct {
	Available []string          `json:"available"`
	InUse     string            `json:"in_use,omitempty"`
	Visible   map[string]string `json:"visible,omitempty"`
}

// CharacterState is one character's condition and position.
type CharacterState struct {
	State    string `json:"state"`
	Location string `json:"location"`
}

// State is the full scene state. One exists per scene; each is derived
// from its predecessor.
type State struct {
	Scene           int                       `json:"scene"`
	Chapter         int                       `json:"chapter"`
	Environment     Environment               `json:"environment"`
	Tools           ToolState                 `json:"tools"`
	Characters      map[string]CharacterState `json:"characters"`
	TimeOfDay       string                    `json:"time_of_day"`
	Weather         string                    `json:"weather"`
	LocationID      string                    `json:"location_id"`
	LocationImage   string                    `json:"location_image,omitempty"`
	LocationChanged bool                      `json:"location_changed"`
}

// Init returns the state at the start of a chapter: nothing cleared,
// starting kit only, and location_changed set so the first scene always
// generates an image.
func Init(s *story.Story, chapterIndex int, firstLocationID string) *State {
	name := strings.ToLower(s.Character.Name)
	if name == "" {
		name = "protagonist"
	}
	return &State{
		Scene:   0,
		Chapter: chapterIndex + 1,
		Environment: Environment{
			GroundClearedPct:  0,
			GroundDescription: "untouched dense brush and saplings",
			StructuresBuilt:   []string{},
			ObjectsOnGround:   []string{},
		},
		Tools: ToolState{
			Available: []string{"axe", "canvas_bag"},
			Visible:   map[string]string{},
		},
		Characters: map[string]CharacterState{
			name: {State: "fresh, determined", Location: firstLocationID},
		},
		TimeOfDay:       "morning",
		Weather:         "overcast, cold",
		LocationID:      firstLocationID,
		LocationChanged: true,
	}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	out := *s
	out.Environment.StructuresBuilt = append([]string(nil), s.Environment.StructuresBuilt...)
	out.Environment.ObjectsOnGround = append([]string(nil), s.Environment.ObjectsOnGround...)
	out.Tools.Available = append([]string(nil), s.Tools.Available...)
	out.Tools.Visible = make(map[string]string, len(s.Tools.Visible))
	for k, v := range s.Tools.Visible {
		out.Tools.Visible[k] = v
	}
	out.Characters = make(map[string]CharacterState, len(s.Characters))
	for k, v := range s.Characters {
		out.Characters[k] = v
	}
	return &out
}
