package production

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hearthfire/shelter-engine/pkg/elements"
	"github.com/hearthfire/shelter-engine/pkg/genai"
	"github.com/hearthfire/shelter-engine/pkg/progress"
	"github.com/hearthfire/shelter-engine/pkg/scenestate"
	"github.com/hearthfire/shelter-engine/pkg/story"
	"github.com/hearthfire/shelter-engine/pkg/storyboard"
)

// ScenePrompt is one ready-to-paste video generation prompt plus the
// storyboard metadata an editor needs alongside it.
type ScenePrompt struct {
	SceneNum         int                  `json:"scene_num"`
	Kind             storyboard.SceneKind `json:"type"`
	VideoPrompt      string               `json:"video_prompt"`
	Action           string               `json:"action,omitempty"`
	NarrationExcerpt string               `json:"narration_excerpt,omitempty"`
	ElementsUsed     []string             `json:"elements_used,omitempty"`
	LocationImage    string               `json:"location_image,omitempty"`
	Duration         int                  `json:"duration,omitempty"`
	SoundDesign      string               `json:"sound_design,omitempty"`
	CameraShots      []string             `json:"camera_shots,omitempty"`
	BridgeReason     string               `json:"bridge_reason,omitempty"`
	Error            string               `json:"error,omitempty"`
}

// failedPrompt is the placeholder when prompt generation fails. It keeps
// the required prefix and suffix so the slot is still paste-safe.
const failedPrompt = "No music. [FAILED - regenerate this scene]. 4K."

// PromptWriter turns a scene plus its tracked state into a video prompt.
type PromptWriter struct {
	text   genai.TextService
	model  string
	logger *slog.Logger
}

func NewPromptWriter(text genai.TextService, model string, logger *slog.Logger) *PromptWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PromptWriter{text: text, model: model, logger: logger}
}

// Write generates the video prompt for one scene. On failure it returns a
// placeholder prompt with the error recorded instead of failing the chapter.
func (w *PromptWriter) Write(ctx context.Context, scene storyboard.Scene, state *scenestate.State, els []elements.Element, s *story.Story, isPresenter bool, notify progress.Func) *ScenePrompt {
	var prompt string
	if isPresenter {
		prompt = w.presenterPrompt(scene, state, els)
	} else {
		prompt = w.scenePrompt(scene, state, els)
	}

	raw, err := w.text.GenerateJSON(ctx, genai.TextRequest{
		Prompt:      prompt,
		Temperature: 0.5,
		MaxTokens:   4000,
		Model:       w.model,
	})
	if err == nil {
		var result ScenePrompt
		if uerr := json.Unmarshal(raw, &result); uerr != nil {
			err = fmt.Errorf("parse video prompt: %w", uerr)
		} else {
			result.SceneNum = scene.SceneNum
			result.Kind = scene.Kind
			result.Action = scene.Action
			result.NarrationExcerpt = scene.NarrationExcerpt
			result.LocationImage = state.LocationImage
			result.BridgeReason = scene.BridgeReason
			if result.VideoPrompt == "" {
				result.VideoPrompt = failedPrompt
			}
			return &result
		}
	}

	w.logger.Warn("video prompt generation failed", "scene", scene.SceneNum, "error", err)
	progress.Notify(notify, fmt.Sprintf("Prompt generation failed for scene %d: %v", scene.SceneNum, err), progress.LevelError)
	return &ScenePrompt{
		SceneNum:         scene.SceneNum,
		Kind:             scene.Kind,
		VideoPrompt:      failedPrompt,
		Action:           scene.Action,
		NarrationExcerpt: scene.NarrationExcerpt,
		ElementsUsed:     scene.Elements,
		LocationImage:    state.LocationImage,
		BridgeReason:     scene.BridgeReason,
		Error:            err.Error(),
	}
}

func elementContext(els []elements.Element) string {
	var b strings.Builder
	for _, el := range els {
		desc := el.Description
		if len(desc) > 80 {
			desc = desc[:80]
		}
		fmt.Fprintf(&b, "%s = %s\n", el.Ref(), desc)
	}
	return b.String()
}

func visibleToolContext(state *scenestate.State) string {
	if len(state.Tools.Visible) == 0 {
		return "none visible"
	}
	parts := make([]string, 0, len(state.Tools.Visible))
	for tool, pos := range state.Tools.Visible {
		parts = append(parts, fmt.Sprintf("%s: %s", tool, pos))
	}
	return strings.Join(parts, ", ")
}

func (w *PromptWriter) scenePrompt(scene storyboard.Scene, state *scenestate.State, els []elements.Element) string {
	kind := "BRIDGE (B-roll)"
	narrationLine := "NO NARRATION: ambient sound only (bridge scene)"
	dialogueRule := "No dialogue in this scene"
	if scene.Kind == storyboard.KindNarrated {
		kind = "NARRATED"
	}
	if scene.NarrationExcerpt != "" {
		narrationLine = fmt.Sprintf("NARRATION (voiceover during this scene): %q", scene.NarrationExcerpt)
		dialogueRule = "Sparse dialogue allowed: max 1 short phrase if this scene warrants it"
	}
	sceneElems, _ := json.Marshal(scene.Elements)
	sceneTools, _ := json.Marshal(scene.Tools)
	structures, _ := json.Marshal(state.Environment.StructuresBuilt)
	characters, _ := json.Marshal(state.Characters)

	return fmt.Sprintf(`Generate a KLING VIDEO PROMPT for a %s scene.

SCENE ACTION: %s
%s
ELEMENTS IN SCENE: %s
TOOLS: %s
TIME OF DAY: %s
WEATHER: %s

AVAILABLE ELEMENTS:
%s
CURRENT ENVIRONMENT STATE:
- Ground: %s
- Cleared: %d%%
- Structures: %s
- Visible objects: %s
- Characters: %s
- Location image will be attached separately

RULES:
1. Start with "No music." ALWAYS
2. Use @ElementName references, not character descriptions
3. Describe MOTION and ACTION: what physically moves and how
4. Camera movements: wide shot, tracking, close-up, aerial; describe each cut's camera
5. Keep each individual shot's action SIMPLE, one movement per shot
6. Sound design: ambient only. Wind, cracking wood, footsteps, breathing. NEVER music.
7. End with "4K." ALWAYS
8. Do NOT mention the reference image in the prompt text
9. Environment descriptions must match the state data EXACTLY
10. %s

Return JSON:
{"video_prompt": "No music. [the complete video prompt]. 4K.",
 "elements_used": %s, "duration": 15,
 "sound_design": "Description of ambient sounds",
 "camera_shots": ["Description of each camera angle/movement"]}`,
		kind, scene.Action, narrationLine, sceneElems, sceneTools,
		state.TimeOfDay, state.Weather,
		elementContext(els),
		state.Environment.GroundDescription, state.Environment.GroundClearedPct,
		structures, visibleToolContext(state), characters,
		dialogueRule, sceneElems,
	)
}

func (w *PromptWriter) presenterPrompt(scene storyboard.Scene, state *scenestate.State, els []elements.Element) string {
	sceneElems, _ := json.Marshal(scene.Elements)

	return fmt.Sprintf(`Generate a KLING VIDEO PROMPT for a PRESENTER scene.

SCENE ACTION: %s
NARRATION (presenter speaks this to camera): %q
ELEMENTS IN SCENE: %s
TIME OF DAY: %s
WEATHER: %s

AVAILABLE ELEMENTS:
%s
ENVIRONMENT (where the presenter is standing):
- %s
- Visible objects: %s
- Location image will be attached separately

RULES:
1. Start with "No music." ALWAYS
2. Use @ElementName references
3. Presenter speaks DIRECTLY to camera: medium shot, eye contact
4. 1-2 camera cuts maximum (medium to close-up is classic)
5. Sound: voice plus wind/ambient only. Never add music.
6. End with "4K." ALWAYS
7. Include a camera movement with each cut (track, push, pull, static)
8. Describe what the presenter DOES while speaking (walks, points, touches)

Return JSON:
{"video_prompt": "No music. [the complete video prompt]. 4K.",
 "elements_used": %s, "duration": 15,
 "sound_design": "Description of ambient sounds"}`,
		scene.Action, scene.NarrationExcerpt, sceneElems,
		state.TimeOfDay, state.Weather,
		elementContext(els),
		orUnknown(state.Environment.GroundDescription), visibleToolContext(state),
		sceneElems,
	)
}

func orUnknown(v string) string {
	if v == "" {
		return "wilderness"
	}
	return v
}
