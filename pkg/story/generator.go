package story

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hearthfire/shelter-engine/pkg/genai"
	"github.com/hearthfire/shelter-engine/pkg/progress"
)

const (
	// MaxRetries is the number of regeneration attempts after the first,
	// each with search augmentation and feedback naming the failed checks.
	MaxRetries = 2

	// MinStoryStrength is the self-reported strength a story must reach
	// for the gate to accept it, even when all checks pass.
	MinStoryStrength = 80

	// softPassChecks is the minimum passed-check count for a soft accept.
	softPassChecks = 7
)

// DiversityProvider supplies constraints derived from prior episodes so
// consecutive stories don't reuse the same characters and locations.
type DiversityProvider interface {
	Context(ctx context.Context) (string, error)
}

// GenerateRequest describes the episode to generate.
type GenerateRequest struct {
	Title           string
	DurationMinutes int
	EpisodeType     EpisodeType
}

// Generator produces quality-gated stories. Generation calls go through the
// injected text service; the accept/retry logic is deterministic and testable
// with canned outputs.
type Generator struct {
	text      genai.TextService
	dna       *DNA
	diversity DiversityProvider
	model     string
	logger    *slog.Logger
}

func NewGenerator(text genai.TextService, dna *DNA, model string, logger *slog.Logger) *Generator {
	return &Generator{
		text:   text,
		dna:    dna,
		model:  model,
		logger: logger,
	}
}

// WithDiversity sets the diversity provider. Returns the Generator for chaining.
func (g *Generator) WithDiversity(d DiversityProvider) *Generator {
	g.diversity = d
	return g
}

// Generate runs the bounded retry loop: one standard attempt plus up to
// MaxRetries search-augmented attempts, each fed the failed check names.
// The best-scoring attempt is returned even when no attempt fully passes.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest, notify progress.Func) (*Story, *QualityReport, error) {
	divContext := ""
	if g.diversity != nil {
		dc, err := g.diversity.Context(ctx)
		if err != nil {
			g.logger.Warn("diversity context unavailable", "error", err)
		} else {
			divContext = dc
		}
	}

	var best *Story
	var bestReport *QualityReport
	retryFeedback := ""

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt == 0 {
			progress.Notify(notify, "Generating story...", progress.LevelInfo)
		} else {
			progress.Notify(notify, fmt.Sprintf("Retry %d/%d with search grounding", attempt, MaxRetries), progress.LevelInfo)
		}

		prompt := g.buildPrompt(req, divContext, retryFeedback)
		genReq := genai.TextRequest{
			Prompt:      prompt,
			Temperature: 0.7,
			MaxTokens:   8000,
			Model:       g.model,
		}

		var raw json.RawMessage
		var err error
		if attempt == 0 {
			raw, err = g.text.GenerateJSON(ctx, genReq)
		} else {
			raw, err = g.text.GenerateJSONWithSearch(ctx, genReq)
		}
		if err == nil {
			var s Story
			if uerr := json.Unmarshal(raw, &s); uerr != nil {
				err = fmt.Errorf("failed to parse story: %w", uerr)
			} else {
				// Request fields pin the story; unset ones stay with
				// whatever the model chose.
				if req.Title != "" {
					s.Title = req.Title
				}
				if req.DurationMinutes != 0 {
					s.DurationMinutes = req.DurationMinutes
				}
				if req.EpisodeType != "" {
					s.EpisodeType = req.EpisodeType
				}

				report := Validate(&s)
				progress.Notify(notify, fmt.Sprintf(
					"Quality gate: %d/%d checks passed, strength %d/100",
					report.PassedCount, report.TotalChecks, s.StoryStrength,
				), progress.LevelInfo)

				strictPass := report.Passed && s.StoryStrength >= MinStoryStrength
				softPass := report.PassedCount >= softPassChecks && s.StoryStrength >= MinStoryStrength
				if strictPass || softPass {
					progress.Notify(notify, fmt.Sprintf("Story accepted on attempt %d", attempt+1), progress.LevelSuccess)
					return &s, report, nil
				}

				if bestReport == nil || report.PassedCount > bestReport.PassedCount {
					best = &s
					bestReport = report
				}

				if attempt < MaxRetries {
					retryFeedback = retryFeedbackFor(report, s.StoryStrength)
					progress.Notify(notify, fmt.Sprintf(
						"Failed checks: %s, retrying with search",
						strings.Join(report.FailedNames(), ", "),
					), progress.LevelError)
				}
				continue
			}
		}

		g.logger.Error("story generation attempt failed", "attempt", attempt+1, "error", err)
		progress.Notify(notify, fmt.Sprintf("Attempt %d failed: %v", attempt+1, err), progress.LevelError)
		if attempt < MaxRetries {
			continue
		}
		if best != nil {
			break
		}
		return nil, nil, fmt.Errorf("story generation failed after %d attempts: %w", attempt+1, err)
	}

	if bestReport != nil && !bestReport.Passed {
		progress.Notify(notify, fmt.Sprintf(
			"Best story after %d attempts still fails: %s",
			MaxRetries+1, strings.Join(bestReport.FailedNames(), ", "),
		), progress.LevelError)
	}
	return best, bestReport, nil
}

func (g *Generator) buildPrompt(req GenerateRequest, divContext, retryFeedback string) string {
	var b strings.Builder
	b.WriteString("You are the story architect for a narrated survival documentary series.\n\n")
	if g.dna != nil {
		b.WriteString(g.dna.PromptBlock())
		if notes := g.dna.EpisodeNotes(req.EpisodeType); notes != "" {
			fmt.Fprintf(&b, "\nEPISODE TYPE (%s): %s\n", req.EpisodeType, notes)
		}
	}
	fmt.Fprintf(&b, "\nEPISODE TITLE: %s\nTARGET DURATION: %d minutes\nEPISODE TYPE: %s\n",
		req.Title, req.DurationMinutes, req.EpisodeType)
	if divContext != "" {
		fmt.Fprintf(&b, "\nDIVERSITY CONSTRAINTS (avoid repeating prior episodes):\n%s\n", divContext)
	}
	b.WriteString(`
Return a JSON object with: character (name, age, description, motivation,
companion {name, type, breed, description}, meaningful_object, internal_voice),
location (name with region or distance qualifier, terrain, climate,
distance_to_town_km), construction (type, description), timeline (total_days,
season, deadline_reason), conflicts (3+ entries with day, title, severity,
escalating day numbers), el_momento (day, description), narrative_arcs (phase,
percentage summing to 100, tension 0-100, description), humor_moment, outcome,
and story_strength (your honest 0-100 self-assessment).`)
	if retryFeedback != "" {
		b.WriteString("\n\n")
		b.WriteString(retryFeedback)
	}
	return b.String()
}

func retryFeedbackFor(report *QualityReport, strength int) string {
	return fmt.Sprintf(`CRITICAL: your previous story FAILED these quality checks: %s.
Story strength was %d/100 (minimum required: %d).

You now have web search available. Use it to research real survival stories,
cabin builds, and authentic location details relevant to this episode, and fix
ALL failed checks. Do not repeat the same mistakes.`,
		strings.Join(report.FailedNames(), ", "), strength, MinStoryStrength)
}
