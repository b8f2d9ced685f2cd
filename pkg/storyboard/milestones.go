package storyboard

import "strings"

// constructionMilestones is the real-world build order. Scene actions are
// mapped onto this list to detect narration that jumps backward.
var constructionMilestones = []string{
	"clear", "stake", "dig", "foundation", "lay_logs", "first_logs",
	"notch", "stack_walls", "walls", "frame", "roof", "door", "window", "chimney",
}

// milestoneKeywords maps action vocabulary to milestones when no milestone
// name appears verbatim. Order matters: earlier entries win.
var milestoneKeywords = []struct {
	keyword   string
	milestone string
}{
	{"chop", "clear"}, {"brush", "clear"}, {"fell", "clear"}, {"tree", "clear"},
	{"mark", "stake"}, {"measur", "stake"}, {"string", "stake"},
	{"hammer", "stake"}, {"mallet", "stake"},
	{"shovel", "dig"}, {"pickaxe", "dig"}, {"trench", "dig"},
	{"log", "lay_logs"}, {"timber", "lay_logs"},
	{"wall", "stack_walls"}, {"stack", "stack_walls"},
	{"roof", "roof"}, {"rafter", "roof"},
}

// timeOrder is the within-day progression of time-of-day labels.
var timeOrder = []string{
	"dawn", "early morning", "morning", "late morning", "midday", "noon",
	"early afternoon", "afternoon", "late afternoon", "golden hour",
	"sunset", "dusk", "evening", "night",
}

// findMilestone maps an action description to a construction milestone, or
// "" if the action isn't a construction step.
func findMilestone(action string) string {
	if action == "" {
		return ""
	}
	lower := strings.ToLower(action)
	for _, m := range constructionMilestones {
		if strings.Contains(lower, m) {
			return m
		}
	}
	for _, kw := range milestoneKeywords {
		if strings.Contains(lower, kw.keyword) {
			return kw.milestone
		}
	}
	return ""
}

// milestoneOrder returns the canonical position of a milestone.
func milestoneOrder(m string) int {
	for i, name := range constructionMilestones {
		if name == m {
			return i
		}
	}
	return len(constructionMilestones)
}

// normalizeTime returns the position of a time-of-day label in the daily
// progression, or -1 for unrecognized labels.
func normalizeTime(t string) int {
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "" {
		return -1
	}
	for i, label := range timeOrder {
		if strings.Contains(t, label) || strings.Contains(label, t) {
			return i
		}
	}
	return -1
}
