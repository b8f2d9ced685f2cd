package scenestate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hearthfire/shelter-engine/pkg/genai"
	"github.com/hearthfire/shelter-engine/pkg/progress"
	"github.com/hearthfire/shelter-engine/pkg/storyboard"
)

// Evolver derives the next scene state from the previous one and the
// scene's action. It uses the fast model: state updates are small,
// structured, and happen once per scene.
type Evolver struct {
	text   genai.TextService
	model  string
	logger *slog.Logger
}

func NewEvolver(text genai.TextService, model string, logger *slog.Logger) *Evolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evolver{text: text, model: model, logger: logger}
}

// Evolve returns the state after the given scene. On generation failure
// it carries the previous state forward with only the scene number
// advanced, so a single flaky call never stops a chapter walk. Ground
// progress is clamped to never regress.
func (e *Evolver) Evolve(ctx context.Context, prev *State, scene storyboard.Scene, notify progress.Func) *State {
	raw, err := e.text.GenerateJSON(ctx, genai.TextRequest{
		Prompt:      e.prompt(prev, scene),
		Temperature: 0.2,
		MaxTokens:   2000,
		Model:       e.model,
	})
	if err == nil {
		var next State
		if uerr := json.Unmarshal(raw, &next); uerr != nil {
			err = fmt.Errorf("parse state: %w", uerr)
		} else {
			if next.Environment.GroundClearedPct < prev.Environment.GroundClearedPct {
				next.Environment.GroundClearedPct = prev.Environment.GroundClearedPct
			}
			if next.Scene == 0 {
				next.Scene = scene.SceneNum
			}
			next.Chapter = prev.Chapter
			return &next
		}
	}

	e.logger.Warn("state evolution failed, carrying previous state forward",
		"scene", scene.SceneNum, "error", err)
	progress.Notify(notify, fmt.Sprintf("State evolution failed for scene %d: %v", scene.SceneNum, err), progress.LevelError)

	fallback := prev.Clone()
	fallback.Scene = scene.SceneNum
	if fallback.Scene == 0 {
		fallback.Scene = prev.Scene + 1
	}
	return fallback
}

func (e *Evolver) prompt(prev *State, scene storyboard.Scene) string {
	prevJSON, _ := json.MarshalIndent(prev, "", "  ")
	toolsJSON, _ := json.Marshal(scene.Tools)

	return fmt.Sprintf(`You are a scene state tracker for a survival documentary.

PREVIOUS STATE:
%s

CURRENT SCENE ACTION:
- Scene %d: %s
- Type: %s
- Tools used: %s
- Progress delta: %s
- Time of day: %s
- Weather: %s
- Location: %s

UPDATE RULES:
1. Progress increments must be REALISTIC: ground_cleared_pct goes up 3-5%% per chopping scene
2. After a "Day X" card, progress can jump significantly
3. Tools: picking up a tool updates "in_use"; putting it down updates "visible"
4. If the location changes, set location_changed: true
5. If the environment changes visibly (more cleared, objects added, lighting), set location_changed: true
6. If NOTHING visually changed, set location_changed: false
7. Character state reflects physical work (sweaty, tired)

Return the UPDATED state as JSON with the same shape as PREVIOUS STATE, with
"scene" set to %d and "location_image" set to a suggested filename like loc_NNN.png.`,
		prevJSON,
		scene.SceneNum, orDefault(scene.Action, "unknown"),
		orDefault(string(scene.Kind), "narrated"),
		toolsJSON,
		orDefault(scene.ProgressDelta, "none"),
		orDefault(scene.TimeOfDay, "same"),
		orDefault(scene.Weather, "same"),
		orDefault(scene.LocationID, "same"),
		scene.SceneNum,
	)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
