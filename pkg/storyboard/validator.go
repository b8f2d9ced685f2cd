package storyboard

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/hearthfire/shelter-engine/pkg/progress"
)

const (
	// coverageThreshold is the fraction of a narration sentence's content
	// words that must reappear in the storyboard for it to count as covered.
	coverageThreshold = 0.4

	errorPenalty   = 15
	warningPenalty = 5
)

// startingTools is the kit the character arrives with; any other tool must be
// introduced on screen before it is used.
var startingTools = []string{"axe", "canvas_bag", "knife", "rope"}

// powerTools are implausible in a hand-built survival context; their first
// appearance is always an error, never a warning.
var powerTools = map[string]bool{
	"chainsaw":    true,
	"power_drill": true,
	"crane":       true,
	"excavator":   true,
	"bulldozer":   true,
	"generator":   true,
}

// Issue is a single validation finding.
type Issue struct {
	Check    string `json:"check"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Details  string `json:"details,omitempty"`
}

// Report is the outcome of validating one storyboard. Errors block nothing:
// the pipeline proceeds and the report travels with the production package
// so a reviewer sees exactly what needs manual repair.
type Report struct {
	Valid         bool    `json:"valid"`
	Score         int     `json:"score"`
	Errors        []Issue `json:"errors"`
	Warnings      []Issue `json:"warnings"`
	TotalErrors   int     `json:"total_errors"`
	TotalWarnings int     `json:"total_warnings"`
	Summary       string  `json:"summary"`
}

var (
	sentenceSplit = regexp.MustCompile(`[.!?]+`)
	pctPattern    = regexp.MustCompile(`(\d+)%`)
)

// Validate runs the six storyboard checks against a scene sequence and the
// narration it was derived from:
//
//  1. orphan narration: narration text not covered by any scene
//  2. construction sequence: build steps out of real-world order
//  3. missing bridges: abrupt changes without transition scenes
//  4. progress monotonicity: cleared percentage going backward
//  5. phantom tools: tools appearing without being introduced
//  6. time progression: time of day going backward within a day
func Validate(scenes []Scene, narration string, notify progress.Func) *Report {
	progress.Notify(notify, "Validating storyboard...", progress.LevelInfo)

	var errors, warnings []Issue
	errors = append(errors, checkCoverage(scenes, narration)...)
	errors = append(errors, checkConstructionSequence(scenes)...)
	warnings = append(warnings, checkMissingBridges(scenes)...)
	errors = append(errors, checkProgressMonotonicity(scenes)...)
	toolErrors, toolWarnings := checkPhantomTools(scenes)
	errors = append(errors, toolErrors...)
	warnings = append(warnings, toolWarnings...)
	warnings = append(warnings, checkTimeProgression(scenes)...)

	score := 100 - errorPenalty*len(errors) - warningPenalty*len(warnings)
	if score < 0 {
		score = 0
	}

	var summary string
	switch {
	case len(errors) == 0 && len(warnings) == 0:
		summary = "Storyboard passed all validation checks"
	case len(errors) == 0:
		summary = fmt.Sprintf("Storyboard has %d warning(s), review recommended", len(warnings))
	default:
		summary = fmt.Sprintf("Storyboard has %d error(s) and %d warning(s), fix before generating prompts", len(errors), len(warnings))
	}
	progress.Notify(notify, summary, progress.LevelInfo)

	if errors == nil {
		errors = []Issue{}
	}
	if warnings == nil {
		warnings = []Issue{}
	}
	return &Report{
		Valid:         len(errors) == 0,
		Score:         score,
		Errors:        errors,
		Warnings:      warnings,
		TotalErrors:   len(errors),
		TotalWarnings: len(warnings),
		Summary:       summary,
	}
}

// checkCoverage requires every narration sentence to have at least 40% of its
// content words (longer than 4 characters) somewhere in the narrated scenes.
func checkCoverage(scenes []Scene, narration string) []Issue {
	if narration == "" {
		return nil
	}

	var combined strings.Builder
	for _, s := range scenes {
		if s.Kind == KindNarrated && s.NarrationExcerpt != "" {
			combined.WriteString(strings.ToLower(s.NarrationExcerpt))
			combined.WriteByte(' ')
		}
	}
	sceneText := combined.String()

	var orphans []string
	for _, raw := range sentenceSplit.Split(narration, -1) {
		sentence := strings.TrimSpace(raw)
		if len(sentence) <= 10 {
			continue
		}
		var words []string
		for _, w := range strings.Fields(strings.ToLower(sentence)) {
			if len(w) > 4 {
				words = append(words, w)
			}
		}
		if len(words) == 0 {
			continue
		}
		matched := 0
		for _, w := range words {
			if strings.Contains(sceneText, w) {
				matched++
			}
		}
		if float64(matched)/float64(len(words)) < coverageThreshold {
			if len(sentence) > 80 {
				sentence = sentence[:80]
			}
			orphans = append(orphans, sentence)
		}
	}

	if len(orphans) == 0 {
		return nil
	}
	return []Issue{{
		Check:    "orphan_narration",
		Severity: "error",
		Message:  fmt.Sprintf("%d narration segment(s) not covered by any scene", len(orphans)),
		Details:  strings.Join(orphans, "; "),
	}}
}

// checkConstructionSequence flags milestones that jump backward by more than
// one step in the canonical build order. A single step back is tolerated
// (notching while stacking is normal).
func checkConstructionSequence(scenes []Scene) []Issue {
	type hit struct {
		scene     int
		milestone string
		action    string
		order     int
	}
	var hits []hit
	for _, s := range scenes {
		m := findMilestone(s.Action)
		if m == "" {
			continue
		}
		action := s.Action
		if len(action) > 60 {
			action = action[:60]
		}
		hits = append(hits, hit{scene: s.SceneNum, milestone: m, action: action, order: milestoneOrder(m)})
	}

	var issues []Issue
	for i := 1; i < len(hits); i++ {
		curr, prev := hits[i], hits[i-1]
		if curr.order < prev.order-1 {
			issues = append(issues, Issue{
				Check:    "construction_sequence",
				Severity: "error",
				Message:  fmt.Sprintf("Scene %d: '%s' appears before '%s' was completed", curr.scene, curr.milestone, prev.milestone),
				Details:  fmt.Sprintf("Scene %d (%s) -> Scene %d (%s)", prev.scene, prev.action, curr.scene, curr.action),
			})
		}
	}
	return issues
}

// checkMissingBridges warns when consecutive non-bridge scenes change
// location, or swap to a fully disjoint tool set, with no bridge between.
func checkMissingBridges(scenes []Scene) []Issue {
	var issues []Issue
	for i := 1; i < len(scenes); i++ {
		curr, prev := scenes[i], scenes[i-1]
		if curr.IsBridge() || prev.IsBridge() {
			continue
		}

		if curr.LocationID != "" && prev.LocationID != "" && curr.LocationID != prev.LocationID {
			issues = append(issues, Issue{
				Check:    "missing_bridge",
				Severity: "warning",
				Message:  fmt.Sprintf("Scene %d: location changes from '%s' to '%s' without a bridge", curr.SceneNum, prev.LocationID, curr.LocationID),
				Details:  fmt.Sprintf("Consider a walking/transition bridge between scenes %d and %d", prev.SceneNum, curr.SceneNum),
			})
		}

		if len(curr.Tools) > 0 && len(prev.Tools) > 0 && !toolsIntersect(curr.Tools, prev.Tools) {
			issues = append(issues, Issue{
				Check:    "missing_bridge",
				Severity: "warning",
				Message:  fmt.Sprintf("Scene %d: tools change from %v to %v without preparation", curr.SceneNum, prev.Tools, curr.Tools),
				Details:  fmt.Sprintf("Consider a bridge where the character puts down %v and picks up %v", prev.Tools, curr.Tools),
			})
		}
	}
	return issues
}

func toolsIntersect(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x, y) {
				return true
			}
		}
	}
	return false
}

// checkProgressMonotonicity flags any explicitly negative progress delta.
// Construction progress never regresses.
func checkProgressMonotonicity(scenes []Scene) []Issue {
	var issues []Issue
	for _, s := range scenes {
		delta := strings.TrimSpace(s.ProgressDelta)
		if delta == "" || !pctPattern.MatchString(delta) {
			continue
		}
		if strings.HasPrefix(delta, "-") {
			issues = append(issues, Issue{
				Check:    "progress_monotonicity",
				Severity: "error",
				Message:  fmt.Sprintf("Scene %d: progress goes backward (%s)", s.SceneNum, delta),
				Details:  "Construction progress can never decrease",
			})
		}
	}
	return issues
}

// checkPhantomTools walks the storyboard keeping the set of tools seen so
// far, seeded with the starting kit. A first-time power tool is an error;
// any other first-time tool is a warning and joins the known set.
func checkPhantomTools(scenes []Scene) (errors, warnings []Issue) {
	known := make(map[string]bool, len(startingTools))
	for _, t := range startingTools {
		known[t] = true
	}

	for _, s := range scenes {
		for _, tool := range s.Tools {
			lower := strings.ToLower(strings.TrimSpace(tool))
			if known[lower] {
				continue
			}
			if powerTools[lower] {
				errors = append(errors, Issue{
					Check:    "phantom_tool",
					Severity: "error",
					Message:  fmt.Sprintf("Scene %d: uses '%s', a power tool in a hand-built survival scenario", s.SceneNum, tool),
					Details:  "This tool is not plausible in the story context",
				})
				continue
			}
			known[lower] = true
			warnings = append(warnings, Issue{
				Check:    "phantom_tool",
				Severity: "warning",
				Message:  fmt.Sprintf("Scene %d: introduces new tool '%s', verify this is available", s.SceneNum, tool),
				Details:  fmt.Sprintf("Known tools so far: %s", strings.Join(sortedKeys(known), ", ")),
			})
		}
	}
	return errors, warnings
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// checkTimeProgression warns when time of day regresses without a day
// boundary. A "Day X" marker in notes or bridge reason resets the clock.
func checkTimeProgression(scenes []Scene) []Issue {
	var issues []Issue
	lastIdx := -1
	lastLabel := ""

	for _, s := range scenes {
		if s.TimeOfDay == "" {
			continue
		}
		if strings.Contains(strings.ToLower(s.Notes), "day") ||
			strings.Contains(strings.ToLower(s.BridgeReason), "day") {
			lastIdx = -1
			continue
		}
		idx := normalizeTime(s.TimeOfDay)
		if idx == -1 {
			continue
		}
		if lastIdx > -1 && idx < lastIdx {
			issues = append(issues, Issue{
				Check:    "time_progression",
				Severity: "warning",
				Message:  fmt.Sprintf("Scene %d: time goes backward from '%s' to '%s'", s.SceneNum, lastLabel, s.TimeOfDay),
				Details:  "Time should only advance. If this is a new day, add a Day card bridge scene.",
			})
		}
		lastIdx = idx
		lastLabel = s.TimeOfDay
	}
	return issues
}
