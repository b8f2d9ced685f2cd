package story

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hearthfire/shelter-engine/pkg/genai"
	"github.com/hearthfire/shelter-engine/pkg/progress"
	"github.com/hearthfire/shelter-engine/pkg/textfilter"
)

// wordBudgets maps episode duration in minutes to the total voiceover word
// count, presenter segments excluded.
var wordBudgets = map[int]int{20: 3250, 15: 2400, 10: 1600, 5: 800}

const defaultWordBudget = 3250

// Segment is a presenter-spoken piece of an episode.
type Segment struct {
	Text            string `json:"text"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

// PhaseNarration is the continuous voiceover for one narrative arc. One phase
// is one chapter of the production pipeline.
type PhaseNarration struct {
	PhaseName string `json:"phase_name"`
	Narration string `json:"narration"`
	WordCount int    `json:"word_count"`
	Error     string `json:"error,omitempty"`
}

// PresenterBreak is the direct-to-camera transition after a chapter.
type PresenterBreak struct {
	AfterPhase int    `json:"after_phase"`
	Text       string `json:"text"`
}

// Narration is the complete episode script: intro, one narration block per
// arc, a break at each chapter boundary, and a closing address.
type Narration struct {
	Intro  Segment          `json:"intro"`
	Phases []PhaseNarration `json:"phases"`
	Breaks []PresenterBreak `json:"breaks"`
	Close  Segment          `json:"close"`
}

// Narrator generates episode narration from a validated story.
type Narrator struct {
	text   genai.TextService
	model  string
	filter *textfilter.BroadcastFilter
	logger *slog.Logger
}

func NewNarrator(text genai.TextService, model string, logger *slog.Logger) *Narrator {
	return &Narrator{
		text:   text,
		model:  model,
		filter: textfilter.NewBroadcastFilter(),
		logger: logger,
	}
}

// Narrate produces the full narration. Individual phase failures are retried
// twice and then recorded as placeholders so a partial script still saves.
func (n *Narrator) Narrate(ctx context.Context, s *Story, notify progress.Func) (*Narration, error) {
	if len(s.NarrativeArcs) == 0 {
		return nil, fmt.Errorf("story has no narrative arcs")
	}

	totalWords, ok := wordBudgets[s.DurationMinutes]
	if !ok {
		totalWords = defaultWordBudget
	}

	progress.Notify(notify, fmt.Sprintf("Generating narration for %d phases (~%d words)", len(s.NarrativeArcs), totalWords), progress.LevelInfo)

	out := &Narration{}

	intro, err := n.generateSegment(ctx, n.introPrompt(s))
	if err != nil {
		n.logger.Warn("presenter intro failed, using fallback", "error", err)
		progress.Notify(notify, fmt.Sprintf("Intro fallback used: %v", err), progress.LevelError)
		intro = Segment{DurationSeconds: 45}
	}
	out.Intro = intro

	cumulativePct := 0
	for i, arc := range s.NarrativeArcs {
		budget := totalWords * arc.Percentage / 100
		if budget < 120 {
			budget = 120
		}
		dayStart := cumulativePct*s.Timeline.TotalDays/100 + 1
		cumulativePct += arc.Percentage
		dayEnd := cumulativePct * s.Timeline.TotalDays / 100

		progress.Notify(notify, fmt.Sprintf("Phase %d/%d: %s", i+1, len(s.NarrativeArcs), arc.Phase), progress.LevelBatch)

		phase, err := n.generatePhase(ctx, s, arc, i, budget, dayStart, dayEnd)
		if err != nil {
			progress.Notify(notify, fmt.Sprintf("Failed %s after retries: %v", arc.Phase, err), progress.LevelError)
			phase = PhaseNarration{
				PhaseName: arc.Phase,
				Narration: fmt.Sprintf("[Narration for %s failed to generate: regenerate to retry]", arc.Phase),
				Error:     err.Error(),
			}
		} else {
			progress.Notify(notify, fmt.Sprintf("%s: %d words", arc.Phase, phase.WordCount), progress.LevelSuccess)
		}
		out.Phases = append(out.Phases, phase)
	}

	// One break per chapter boundary, none after the last.
	for i := 0; i < len(s.NarrativeArcs)-1; i++ {
		seg, err := n.generateSegment(ctx, n.breakPrompt(s, i))
		if err != nil {
			n.logger.Warn("presenter break failed", "after_phase", i, "error", err)
			continue
		}
		out.Breaks = append(out.Breaks, PresenterBreak{AfterPhase: i, Text: seg.Text})
	}

	closeSeg, err := n.generateSegment(ctx, n.closePrompt(s))
	if err != nil {
		n.logger.Warn("presenter close failed", "error", err)
	}
	out.Close = closeSeg

	return out, nil
}

func (n *Narrator) generatePhase(ctx context.Context, s *Story, arc NarrativeArc, idx, budget, dayStart, dayEnd int) (PhaseNarration, error) {
	prompt := n.phasePrompt(s, arc, idx, budget, dayStart, dayEnd)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		temp := 0.7
		if attempt > 0 {
			temp = 0.6
		}
		raw, err := n.text.GenerateJSON(ctx, genai.TextRequest{
			Prompt:      prompt,
			Temperature: temp,
			MaxTokens:   4000,
			Model:       n.model,
		})
		if err != nil {
			lastErr = err
			continue
		}
		var phase PhaseNarration
		if err := json.Unmarshal(raw, &phase); err != nil {
			lastErr = err
			continue
		}
		if phase.PhaseName == "" {
			phase.PhaseName = arc.Phase
		}
		phase.Narration = n.filter.Clean(phase.Narration)
		if phase.WordCount == 0 {
			phase.WordCount = len(strings.Fields(phase.Narration))
		}
		return phase, nil
	}
	return PhaseNarration{}, lastErr
}

func (n *Narrator) generateSegment(ctx context.Context, prompt string) (Segment, error) {
	raw, err := n.text.GenerateJSON(ctx, genai.TextRequest{
		Prompt:      prompt,
		Temperature: 0.7,
		MaxTokens:   4000,
		Model:       n.model,
	})
	if err != nil {
		return Segment{}, err
	}
	var seg Segment
	if err := json.Unmarshal(raw, &seg); err != nil {
		return Segment{}, fmt.Errorf("failed to parse presenter segment: %w", err)
	}
	seg.Text = n.filter.Clean(seg.Text)
	return seg, nil
}

func (n *Narrator) styleBlock() string {
	return `NARRATION STYLE: third person, present tense for action, past tense for
reflection. Cinematic compound sentences by default; short punchy sentences
reserved for turning points. Specific sensations, no camera directions.`
}

func (n *Narrator) introPrompt(s *Story) string {
	return fmt.Sprintf(`%s

Generate the PRESENTER INTRO, spoken direct to camera on location. Introduce
%s and the challenge: build a %s in %d days at %s. Hook immediately, 60-100
words, end on the show's dramatic closer.

Return JSON: {"text": "...", "duration_seconds": 30}`,
		n.styleBlock(), s.Character.Name, s.Construction.Type, s.Timeline.TotalDays, s.Location.Name)
}

func (n *Narrator) phasePrompt(s *Story, arc NarrativeArc, idx, budget, dayStart, dayEnd int) string {
	var conflicts []string
	for _, c := range s.Conflicts {
		if c.Day >= dayStart && c.Day <= dayEnd {
			conflicts = append(conflicts, fmt.Sprintf("- Day %d: %s (%s)", c.Day, c.Title, c.Severity))
		}
	}
	conflictText := "No major conflict in this phase."
	if len(conflicts) > 0 {
		conflictText = strings.Join(conflicts, "\n")
	}

	emotional := fmt.Sprintf("Thread the character's motivation (%s) through the physical action.", s.Character.Motivation)
	switch {
	case idx <= 1:
		emotional = fmt.Sprintf("Early phase: include a concrete sensory vision of the completed goal, tied to the motivation (%s).", s.Character.Motivation)
	case arc.Tension >= 85:
		emotional = "Turning point: despair, then a vivid moment of absolute clarity that transforms it into unshakable determination. Give it 80-120 words."
	case idx == len(s.NarrativeArcs)-1:
		emotional = "Final phase: close the emotional arc with a physical act of completion and a whispered line."
	}

	return fmt.Sprintf(`%s

Generate continuous narration for phase %q of the episode.

Character: %s, %d. Companion: %s (%s). Location: %s. Construction: %s.
What happens: %s
Days %d-%d of %d. Tension %d/100.

CONFLICTS IN THIS PHASE:
%s

%s

Write ~%d words (strict: %d-%d), with paragraph breaks between beats.

Return JSON: {"phase_name": %q, "narration": "...", "word_count": %d}`,
		n.styleBlock(), arc.Phase,
		s.Character.Name, s.Character.Age, s.Character.Companion.Name, s.Character.Companion.Breed,
		s.Location.Name, s.Construction.Type,
		arc.Description, dayStart, dayEnd, s.Timeline.TotalDays, arc.Tension,
		conflictText, emotional,
		budget, budget-30, budget+30, arc.Phase, budget)
}

func (n *Narrator) breakPrompt(s *Story, afterPhase int) string {
	return fmt.Sprintf(`%s

Generate a PRESENTER BREAK spoken after phase %q: acknowledge what %s has done
so far, then confront what's coming next as a cliffhanger. 40-70 words.

Return JSON: {"text": "...", "duration_seconds": 20}`,
		n.styleBlock(), s.NarrativeArcs[afterPhase].Phase, s.Character.Name)
}

func (n *Narrator) closePrompt(s *Story) string {
	return fmt.Sprintf(`%s

Generate the PRESENTER CLOSE: reflect on %s's journey and outcome (%s), then
tease the next episode. 50-90 words.

Return JSON: {"text": "...", "duration_seconds": 30}`,
		n.styleBlock(), s.Character.Name, s.Outcome)
}
