// Package script parses hand-written episode scripts in markdown form
// into structured sections: intro, numbered phases, presenter breaks, and
// outro, with stage directions and day markers separated from the
// narration text.
package script

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SectionType classifies a script section.
type SectionType string

const (
	SectionIntro     SectionType = "intro"
	SectionPhase     SectionType = "phase"
	SectionBreak     SectionType = "presenter_break"
	SectionOutro     SectionType = "outro"
	SectionUnknown   SectionType = "unknown"
	SpeakerPresenter             = "presenter"
	SpeakerNarrator              = "narrator"
)

// Timestamps is a section's position in the episode, like 1:30-3:30.
type Timestamps struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Section is one parsed script block.
type Section struct {
	Type            SectionType `json:"type"`
	Title           string      `json:"title"`
	Number          int         `json:"number,omitempty"`
	Timestamps      *Timestamps `json:"timestamps,omitempty"`
	Duration        string      `json:"duration,omitempty"`
	StageDirections []string    `json:"stage_directions"`
	DayMarkers      []string    `json:"day_markers"`
	CleanText       string      `json:"clean_text"`
	Speaker         string      `json:"speaker"`
}

// Character is a person or animal detected in the script.
type Character struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // character, animal, presenter, family
	Mentions int    `json:"mentions"`
}

// Object is a large recognizable object worth a visual element.
type Object struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Mentions int    `json:"mentions"`
}

// Script is the fully parsed document.
type Script struct {
	Title         string      `json:"title"`
	TotalDuration string      `json:"total_duration,omitempty"`
	WordCount     int         `json:"word_count"`
	Sections      []Section   `json:"sections"`
	Characters    []Character `json:"characters"`
	Objects       []Object    `json:"objects"`
}

var (
	headerRe     = regexp.MustCompile(`^##\s+(.+)$`)
	parenRe      = regexp.MustCompile(`\(([^)]+)\)`)
	timeRangeRe  = regexp.MustCompile(`(\d+:\d+)\s*-\s*(\d+:\d+)`)
	durationRe   = regexp.MustCompile(`\|\s*(.+)$`)
	phaseRe      = regexp.MustCompile(`(?i)^PHASE\s+(\d+)\s*:?\s*(.*)`)
	breakRe      = regexp.MustCompile(`(?i)^JACK\s+BREAK\s*#?(\d+)\s*:?\s*(.*)`)
	bracketRe    = regexp.MustCompile(`\[([^\]]+)\]`)
	bracketLine  = regexp.MustCompile(`^\[.+\]\s*$`)
	hruleRe      = regexp.MustCompile(`^---+\s*$`)
	dayMarkerRe  = regexp.MustCompile(`(?i)^DAY\s+\d`)
	speakerTagRe = regexp.MustCompile(`\*\*JACK:?\*\*\s*(\(.*?\)\s*)?:?\s*`)
	minutesRe    = regexp.MustCompile(`(\d+)\s*[Mm]inutes?`)
	properNounRe = regexp.MustCompile(`\b([A-Z][a-z]+)\b`)

	titleCaser = cases.Title(language.English)
)

// Parse converts a raw markdown script into its structured form.
func Parse(raw string) *Script {
	lines := strings.Split(raw, "\n")

	title, subtitle := "", ""
	for _, line := range lines {
		if strings.HasPrefix(line, "# ") && !strings.HasPrefix(line, "## ") {
			title = strings.TrimSpace(line[2:])
		} else if strings.HasPrefix(strings.ToLower(line), "## complete script") {
			subtitle = strings.TrimSpace(line[3:])
			break
		}
	}
	totalDuration := ""
	if m := minutesRe.FindStringSubmatch(subtitle); m != nil {
		totalDuration = m[1] + " min"
	}

	var sections []Section
	var current *Section
	var body []string
	flush := func() {
		if current != nil {
			processBody(current, strings.TrimSpace(strings.Join(body, "\n")))
			sections = append(sections, *current)
		}
	}
	for _, line := range lines {
		m := headerRe.FindStringSubmatch(line)
		if m != nil && !strings.HasPrefix(strings.ToLower(line), "## complete") {
			flush()
			s := parseHeader(strings.TrimSpace(m[1]))
			current, body = &s, nil
			continue
		}
		if current != nil {
			body = append(body, line)
		}
	}
	flush()

	wordCount := 0
	for _, s := range sections {
		wordCount += len(strings.Fields(s.CleanText))
	}

	return &Script{
		Title:         title,
		TotalDuration: totalDuration,
		WordCount:     wordCount,
		Sections:      sections,
		Characters:    extractCharacters(raw),
		Objects:       extractObjects(raw),
	}
}

func parseHeader(header string) Section {
	s := Section{Type: SectionUnknown, Title: header}

	clean := header
	if m := parenRe.FindStringSubmatchIndex(header); m != nil {
		content := header[m[2]:m[3]]
		clean = strings.TrimSpace(header[:m[0]])
		if tm := timeRangeRe.FindStringSubmatch(content); tm != nil {
			s.Timestamps = &Timestamps{Start: tm[1], End: tm[2]}
		}
		if dm := durationRe.FindStringSubmatch(content); dm != nil {
			s.Duration = strings.TrimSpace(dm[1])
		}
	}

	upper := strings.ToUpper(clean)
	switch {
	case strings.HasPrefix(upper, "INTRO"):
		s.Type, s.Title = SectionIntro, "Introduction"
	case strings.HasPrefix(upper, "OUTRO"):
		s.Type, s.Title = SectionOutro, "Outro"
	case phaseRe.MatchString(clean):
		m := phaseRe.FindStringSubmatch(clean)
		s.Type = SectionPhase
		s.Number, _ = strconv.Atoi(m[1])
		if t := strings.TrimSpace(m[2]); t != "" {
			s.Title = titleCaser.String(strings.ToLower(t))
		} else {
			s.Title = clean
		}
	case breakRe.MatchString(clean):
		m := breakRe.FindStringSubmatch(clean)
		s.Type = SectionBreak
		s.Number, _ = strconv.Atoi(m[1])
		if t := strings.TrimSpace(m[2]); t != "" {
			s.Title = titleCaser.String(strings.ToLower(t))
		} else {
			s.Title = clean
		}
	}
	return s
}

func processBody(s *Section, raw string) {
	var dayMarkers, directions []string
	for _, m := range bracketRe.FindAllStringSubmatch(raw, -1) {
		if dayMarkerRe.MatchString(m[1]) {
			dayMarkers = append(dayMarkers, m[1])
		} else {
			directions = append(directions, m[1])
		}
	}

	var cleanLines []string
	skipEmpty := false
	for _, line := range strings.Split(raw, "\n") {
		stripped := strings.TrimSpace(line)

		if bracketLine.MatchString(stripped) {
			skipEmpty = true
			continue
		}
		if hruleRe.MatchString(stripped) {
			continue
		}
		if stripped == "" && skipEmpty {
			skipEmpty = false
			continue
		}
		skipEmpty = false

		cleaned := bracketRe.ReplaceAllString(line, "")
		cleaned = speakerTagRe.ReplaceAllString(cleaned, "")
		cleaned = strings.TrimSpace(cleaned)
		cleaned = strings.Trim(cleaned, `"`)

		if cleaned != "" || (len(cleanLines) > 0 && cleanLines[len(cleanLines)-1] != "") {
			cleanLines = append(cleanLines, cleaned)
		}
	}

	cleanText := strings.TrimSpace(strings.Join(cleanLines, "\n"))
	for strings.Contains(cleanText, "\n\n\n") {
		cleanText = strings.ReplaceAll(cleanText, "\n\n\n", "\n\n")
	}

	speaker := SpeakerNarrator
	if s.Type == SectionIntro || s.Type == SectionBreak || s.Type == SectionOutro {
		speaker = SpeakerPresenter
	}

	if dayMarkers == nil {
		dayMarkers = []string{}
	}
	if directions == nil {
		directions = []string{}
	}
	s.StageDirections = directions
	s.DayMarkers = dayMarkers
	s.CleanText = cleanText
	s.Speaker = speaker
}

// excludedWords are capitalized words that are not character names:
// sentence starters, stage-direction vocabulary, and place names.
var excludedWords = map[string]bool{}

func init() {
	for _, w := range []string{
		"The", "This", "That", "But", "And", "Now", "When", "Then",
		"His", "Her", "He", "She", "It", "They", "We", "You", "In",
		"On", "At", "To", "For", "By", "Is", "Are", "Was", "Were",
		"Has", "Had", "Can", "Will", "Would", "Could", "Should",
		"Day", "Days", "Not", "No", "Yes", "If", "Or", "So",
		"Just", "Only", "Even", "Still", "Yet", "All", "Each",
		"Every", "One", "Two", "Three", "Four", "Five", "Over",
		"About", "Into", "From", "With", "After", "Before", "During",
		"Between", "Under", "Until", "Without", "Nothing", "Everything",
		"Something", "Here", "There", "Where", "How", "What", "Why",
		"Who", "Whose", "Which", "Much", "Many", "More", "Most",
		"First", "Last", "Next", "Phase", "Break", "Jack", "Complete",
		"Script", "Minutes", "Intro", "Outro", "Cut", "Zoom",
		"Aerial", "Epic", "Brutal", "Temperature", "Temperatures",
		"Wind", "Snow", "Winter", "Finally", "Suddenly",
		"Outside", "Inside", "Behind", "Beside", "Also", "Very",
		"Almost", "Already", "Enough",
		"Yukon", "Alaska", "Siberia", "Montana", "Colorado", "Maine",
		"Quebec", "Scandinavia", "Norway", "Sweden", "Finland", "Iceland",
		"Scotland", "Patagonia", "Ford", "Whitehorse", "Dawson",
		"Fairbanks", "Denali", "America", "Canada", "Russia",
	} {
		excludedWords[w] = true
	}
}

var animalVerbs = []string{"jumps", "curls", "presses", "barks", "whines", "howls", "sniffs", "wags"}

var relationshipWords = []string{"uncle", "father", "mother", "brother", "sister", "wife", "grandfather"}

// extractCharacters finds proper nouns with significant presence (3+
// mentions), classifies animals by the verbs they perform, and adds the
// presenter and any relationship-only characters.
func extractCharacters(text string) []Character {
	counts := map[string]int{}
	for _, m := range properNounRe.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if !excludedWords[name] && len(name) > 2 {
			counts[name]++
		}
	}

	type nameCount struct {
		name  string
		count int
	}
	var ranked []nameCount
	for name, count := range counts {
		if count >= 3 {
			ranked = append(ranked, nameCount{name, count})
		}
	}
	// Highest mentions first; name breaks ties for determinism.
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && (ranked[j].count > ranked[j-1].count ||
			(ranked[j].count == ranked[j-1].count && ranked[j].name < ranked[j-1].name)); j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}

	var characters []Character
	for _, nc := range ranked {
		kind := "character"
		for _, verb := range animalVerbs {
			re := regexp.MustCompile(`(?i)` + nc.name + `\s+` + verb)
			if re.MatchString(text) {
				kind = "animal"
				break
			}
		}
		characters = append(characters, Character{Name: nc.name, Type: kind, Mentions: nc.count})
	}

	if tags := speakerTagRe.FindAllString(text, -1); len(tags) > 0 {
		characters = append([]Character{{Name: "Jack", Type: "presenter", Mentions: len(tags)}}, characters...)
	}

	for _, rel := range relationshipWords {
		re := regexp.MustCompile(`(?i)\b` + rel + `\b`)
		matches := re.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		nameRe := regexp.MustCompile(rel + `\s+([A-Z][a-z]+)`)
		display := titleCaser.String(rel)
		relName := display
		if nm := nameRe.FindStringSubmatch(text); nm != nil {
			relName = nm[1]
			display = fmt.Sprintf("%s (%s)", relName, rel)
		}
		exists := false
		for _, c := range characters {
			if c.Name == relName || c.Name == display {
				exists = true
				break
			}
		}
		if !exists {
			characters = append(characters, Character{Name: display, Type: "family", Mentions: len(matches)})
		}
	}

	return characters
}

// largeObjects are things big enough to deserve a visual element; small
// hand tools are excluded on purpose.
var largeObjects = []struct {
	id      string
	pattern *regexp.Regexp
}{
	{"pickup", regexp.MustCompile(`(?i)\b(pickup|pick-up|truck)\b`)},
	{"chainsaw", regexp.MustCompile(`(?i)\bchainsaw\b`)},
	{"helicopter", regexp.MustCompile(`(?i)\bhelicopter\b`)},
	{"atv", regexp.MustCompile(`(?i)\b(atv|quad|four-wheeler)\b`)},
	{"snowmobile", regexp.MustCompile(`(?i)\bsnowmobile\b`)},
	{"boat", regexp.MustCompile(`(?i)\b(boat|canoe|kayak)\b`)},
	{"cabin", regexp.MustCompile(`(?i)\bcabin\b`)},
	{"tent", regexp.MustCompile(`(?i)\btent\b`)},
	{"generator", regexp.MustCompile(`(?i)\bgenerator\b`)},
	{"wood_stove", regexp.MustCompile(`(?i)\b(wood stove|chimney|fireplace)\b`)},
}

func extractObjects(text string) []Object {
	var objects []Object
	for _, obj := range largeObjects {
		matches := obj.pattern.FindAllString(text, -1)
		if len(matches) < 2 {
			continue
		}
		objects = append(objects, Object{
			ID:       obj.id,
			Name:     titleCaser.String(strings.ToLower(matches[0])),
			Mentions: len(matches),
		})
	}
	return objects
}
