package story

import "strings"

// QualityCheck is one rubric check result. Bonus checks count toward the score
// but a bonus failure never fails the gate.
type QualityCheck struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Bonus  bool   `json:"bonus,omitempty"`
}

// QualityReport is the outcome of running the ten-check quality gate on a Story.
type QualityReport struct {
	Passed      bool           `json:"passed"`
	Score       int            `json:"score"`
	PassedCount int            `json:"passed_count"`
	TotalChecks int            `json:"total_checks"`
	Checks      []QualityCheck `json:"checks"`
	Failed      []QualityCheck `json:"failed"`
}

// FailedNames returns the names of all failed checks, bonus included.
func (r *QualityReport) FailedNames() []string {
	names := make([]string, 0, len(r.Failed))
	for _, c := range r.Failed {
		names = append(names, c.Name)
	}
	return names
}

// Validate runs the ten-check quality gate against a story.
// The gate passes iff every non-bonus check passes. Score is
// 100 * passed / total, with the bonus check in the denominator.
func Validate(s *Story) *QualityReport {
	checks := make([]QualityCheck, 0, 10)

	// 1. Companion animal (bonus)
	hasCompanion := s.Character.Companion.Name != "" &&
		(s.Character.Companion.Type != "" || s.Character.Companion.Breed != "")
	checks = append(checks, QualityCheck{ID: 1, Name: "Companion animal (bonus)", Passed: hasCompanion, Bonus: true})

	// 2. Deadline/timeline exists. cabin_life and full_build episodes may run
	// without a hard deadline as long as the day count is set.
	hasDeadline := s.Timeline.TotalDays > 0 && s.Timeline.DeadlineReason != ""
	if (s.EpisodeType == EpisodeCabinLife || s.EpisodeType == EpisodeFullBuild) && !hasDeadline {
		hasDeadline = s.Timeline.TotalDays > 0
	}
	checks = append(checks, QualityCheck{ID: 2, Name: "Deadline/timeline exists", Passed: hasDeadline})

	// 3. 3+ escalating conflicts (cabin_life can have fewer)
	hasConflicts := len(s.Conflicts) >= 3
	if s.EpisodeType == EpisodeCabinLife {
		hasConflicts = len(s.Conflicts) >= 1
	}
	checks = append(checks, QualityCheck{ID: 3, Name: "3+ escalating conflicts", Passed: hasConflicts})

	// 4. Conflicts escalate in time (days strictly increasing)
	escalate := true
	for i := 1; i < len(s.Conflicts); i++ {
		if s.Conflicts[i-1].Day >= s.Conflicts[i].Day {
			escalate = false
			break
		}
	}
	checks = append(checks, QualityCheck{ID: 4, Name: "Conflicts escalate in time", Passed: escalate})

	// 5. Has pivotal moment
	hasMoment := len(s.PivotalMoment.Description) > 10
	checks = append(checks, QualityCheck{ID: 5, Name: "Has pivotal moment", Passed: hasMoment})

	// 6. Has meaningful object
	hasObject := len(s.Character.MeaningfulObject) > 5
	checks = append(checks, QualityCheck{ID: 6, Name: "Has meaningful object", Passed: hasObject})

	// 7. Has internal voice
	hasVoice := len(s.Character.InternalVoice) > 10
	checks = append(checks, QualityCheck{ID: 7, Name: "Has internal voice", Passed: hasVoice})

	// 8. Location is specific, not generic: a comma-separated region, a stated
	// distance, or an explicit distance-to-town figure.
	locName := strings.ToLower(s.Location.Name)
	hasSpecificLoc := strings.Contains(s.Location.Name, ",") ||
		strings.Contains(locName, "km") ||
		strings.Contains(locName, "miles") ||
		s.Location.DistanceToTownKm > 0
	checks = append(checks, QualityCheck{ID: 8, Name: "Location is specific", Passed: hasSpecificLoc})

	// 9. Narrative arcs sum to ~100%
	arcSum := 0
	for _, a := range s.NarrativeArcs {
		arcSum += a.Percentage
	}
	arcsValid := len(s.NarrativeArcs) > 0 && arcSum >= 95 && arcSum <= 105
	checks = append(checks, QualityCheck{ID: 9, Name: "Narrative arcs sum to ~100%", Passed: arcsValid})

	// 10. Has humor moment
	hasHumor := len(s.HumorMoment) > 5
	checks = append(checks, QualityCheck{ID: 10, Name: "Has humor moment", Passed: hasHumor})

	report := &QualityReport{
		TotalChecks: len(checks),
		Checks:      checks,
		Failed:      make([]QualityCheck, 0),
	}

	requiredFailed := 0
	for _, c := range checks {
		if c.Passed {
			report.PassedCount++
			continue
		}
		report.Failed = append(report.Failed, c)
		if !c.Bonus {
			requiredFailed++
		}
	}
	report.Passed = requiredFailed == 0
	report.Score = report.PassedCount * 100 / len(checks)
	return report
}
