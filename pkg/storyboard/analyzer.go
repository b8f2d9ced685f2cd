package storyboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hearthfire/shelter-engine/pkg/elements"
	"github.com/hearthfire/shelter-engine/pkg/genai"
	"github.com/hearthfire/shelter-engine/pkg/progress"
	"github.com/hearthfire/shelter-engine/pkg/story"
)

// Analysis is the outcome of breaking one chapter into scenes. A failed
// generation returns Error set and an empty Storyboard rather than an
// error value, so the caller can record the failure and move on to the
// next chapter.
type Analysis struct {
	ProcessUnderstanding string   `json:"process_understanding,omitempty"`
	LocationsNeeded      []string `json:"locations_needed,omitempty"`
	Storyboard           []Scene  `json:"storyboard"`
	TotalNarrated        int      `json:"total_narrated"`
	TotalBridges         int      `json:"total_bridges"`
	TotalScenes          int      `json:"total_scenes"`
	EstimatedSeconds     int      `json:"estimated_video_duration_seconds,omitempty"`
	DayCardSuggestions   []string `json:"day_card_suggestions,omitempty"`
	Error                string   `json:"error,omitempty"`
}

// Analyzer decomposes chapter narration into a shot-by-shot storyboard,
// inserting the bridge scenes (walking, grabbing tools, positioning) that
// narration skips but a camera cannot.
type Analyzer struct {
	text   genai.TextService
	model  string
	logger *slog.Logger
}

func NewAnalyzer(text genai.TextService, model string, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{text: text, model: model, logger: logger}
}

// Analyze produces the storyboard for one chapter. chapterIndex is
// zero-based; it only affects prompts and progress messages.
func (a *Analyzer) Analyze(ctx context.Context, s *story.Story, chapterNarration string, chapterIndex int, els []elements.Element, notify progress.Func) *Analysis {
	progress.Notify(notify, fmt.Sprintf("Analyzing chapter %d cinematically...", chapterIndex+1), progress.LevelInfo)
	progress.Notify(notify, "Running deep cinematic analysis...", progress.LevelBatch)

	raw, err := a.text.GenerateJSON(ctx, genai.TextRequest{
		Prompt:      a.prompt(s, chapterNarration, chapterIndex, els),
		Temperature: 0.4,
		MaxTokens:   15000,
		Model:       a.model,
	})
	if err == nil {
		var analysis Analysis
		if uerr := json.Unmarshal(raw, &analysis); uerr != nil {
			err = fmt.Errorf("parse storyboard: %w", uerr)
		} else {
			a.normalize(&analysis)
			progress.Notify(notify, fmt.Sprintf("Storyboard: %d scenes (%d narrated + %d bridges)",
				analysis.TotalScenes, analysis.TotalNarrated, analysis.TotalBridges), progress.LevelSuccess)
			for _, suggestion := range analysis.DayCardSuggestions {
				progress.Notify(notify, suggestion, progress.LevelInfo)
			}
			return &analysis
		}
	}

	a.logger.Error("cinematic analysis failed", "chapter", chapterIndex+1, "error", err)
	msg := err.Error()
	if len(msg) > 150 {
		msg = msg[:150]
	}
	progress.Notify(notify, fmt.Sprintf("Cinematic analysis failed: %s", msg), progress.LevelError)
	return &Analysis{Error: err.Error(), Storyboard: []Scene{}}
}

// normalize recounts scene totals and fills missing durations. The model
// is asked for durations but drops them often enough that the downstream
// video prompts need a fallback: short for bridges, long for narrated
// scenes with heavy physical work.
func (a *Analyzer) normalize(analysis *Analysis) {
	narrated, bridges := 0, 0
	for i := range analysis.Storyboard {
		scene := &analysis.Storyboard[i]
		switch scene.Kind {
		case KindNarrated:
			narrated++
		case KindBridge:
			bridges++
		}
		if scene.Duration == "" {
			scene.Duration = defaultDuration(scene)
		}
	}
	analysis.TotalNarrated = narrated
	analysis.TotalBridges = bridges
	analysis.TotalScenes = len(analysis.Storyboard)
}

var complexActionWords = []string{"build", "chop", "assembl", "stack", "notch", "dig", "hammer", "carv", "construct"}

func defaultDuration(s *Scene) string {
	if s.IsBridge() {
		return "5s"
	}
	lower := strings.ToLower(s.Action)
	for _, w := range complexActionWords {
		if strings.Contains(lower, w) {
			return "12s"
		}
	}
	return "10s"
}

func (a *Analyzer) prompt(s *story.Story, narration string, chapterIndex int, els []elements.Element) string {
	var refs strings.Builder
	for _, el := range els {
		desc := el.Description
		if len(desc) > 80 {
			desc = desc[:80]
		}
		fmt.Fprintf(&refs, "%s: %s\n", el.Ref(), desc)
	}

	return fmt.Sprintf(`You are a cinematic storyboard analyst for a survival documentary.
Transform the literary narration into a COMPLETE visual sequence, planning every shot for a real film crew.

CHAPTER NARRATION:
"""%s"""

STORY CONTEXT:
- Character: %s: %s
- Companion: %s: %s
- Location: %s: %s
- Construction: %s
- Timeline: %d days total
- Chapter: %d

AVAILABLE ELEMENTS:
%s
STEP 1: DEEP PROCESS UNDERSTANDING (mentally, first):
What REAL physical process does this chapter describe? What are the actual steps a real person
performs, with what tools, standing where, holding what?

STEP 2: SCENE STATE THINKING (track between EVERY scene):
Where is the character, what is in their hands, what did they just finish, what must they DO
before the next narrated action can begin? If the state does not match, insert bridge scenes:
truck -> exit truck -> grab tool -> walk to clearing -> position -> chop.

STEP 3: MANDATORY BRIDGES (never skip):
exit vehicle (1 bridge), change location (1-2), change tool (1), start new activity (1-2),
time jump (1 bridge + suggest a "Day X" card), evaluate/survey progress (powerful bridges).
Be GENEROUS with bridges: if bridges are under 30%% of total scenes you are too conservative.

TOOL VALIDATION: chopping -> axe; hammering stakes -> mallet (NOT axe); cutting rope -> knife;
measuring -> tape or marked stick; digging -> shovel or pickaxe; notching -> axe + chisel.

CONSTRUCTION SEQUENCE (reorder narration if it is wrong):
clear land, then stake footprint, then dig foundation, then lay first logs, then stack walls,
then roof, then chimney, then door/windows.

NO MONTAGES: never write "montage of" or "series of shots". Each physical step is its own
scene, filmable in one continuous take of at most 15 seconds. Split anything longer.

DURATION per scene: "5s" simple bridges (walking, looking), "8s" bridges with action,
"10s" narrated scenes with moderate action, "12s"-"15s" narrated scenes with complex work.

Return a JSON object:
{
  "process_understanding": "1-2 sentence summary of the physical process",
  "locations_needed": ["clearing", "forest_edge"],
  "storyboard": [
    {"scene_num": 1, "type": "narrated", "narration_excerpt": "exact narration text (null for bridges)",
     "action": "what physically happens on screen", "location_id": "clearing",
     "elements": ["@Full Element Name"], "time_of_day": "morning", "weather": "overcast, cold",
     "tools": ["axe"], "duration": "10s", "progress_delta": "+5%% ground cleared",
     "bridge_reason": null, "notes": null}
  ],
  "total_narrated": 8, "total_bridges": 7, "total_scenes": 15,
  "estimated_video_duration_seconds": 225,
  "day_card_suggestions": ["Insert 'Day 2' card between scene X and Y"]
}

Narrated scenes play the narration_excerpt as voiceover, quoted EXACTLY from the chapter text.
Bridge scenes are ambient sound only. Use full element names as listed above.`,
		narration,
		s.Character.Name, s.Character.Description,
		companionType(s), s.Character.Companion.Description,
		s.Location.Name, s.Location.Terrain,
		s.Construction.Type,
		s.Timeline.TotalDays,
		chapterIndex+1,
		refs.String(),
	)
}

func companionType(s *story.Story) string {
	if s.Character.Companion.Type == "" {
		return "none"
	}
	return s.Character.Companion.Type
}
