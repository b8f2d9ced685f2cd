// Package textfilter keeps generated narration broadcast-safe: models
// occasionally leak markdown artifacts or language that has no place in a
// family documentary voiceover.
package textfilter

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// replacements maps rough language to the register a survival documentary
// narrator would actually use on air.
var replacements = map[string]string{
	"fuck":         "damn it",
	"fucking":      "blasted",
	"shit":         "hell",
	"bullshit":     "nonsense",
	"motherfucker": "bastard",
	"goddamn":      "damned",
	"asshole":      "fool",
	"piss":         "pass",
	"bitch":        "brute",
}

// markdownArtifacts strips the formatting residue models sometimes leave in
// plain-prose responses.
var markdownArtifacts = []*regexp.Regexp{
	regexp.MustCompile("```[a-z]*\n?"),
	regexp.MustCompile(`\*\*([^*]+)\*\*`),
	regexp.MustCompile(`__([^_]+)__`),
	regexp.MustCompile(`^#+\s+`),
}

var multiSpace = regexp.MustCompile(`[ \t]{2,}`)

// BroadcastFilter softens language and strips formatting residue from
// generated narration.
type BroadcastFilter struct {
	regexes map[string]*regexp.Regexp
}

// NewBroadcastFilter compiles the word patterns once; construct it per
// Narrator, not per call.
func NewBroadcastFilter() *BroadcastFilter {
	bf := &BroadcastFilter{
		regexes: make(map[string]*regexp.Regexp),
	}
	for word := range replacements {
		pattern := `\b` + regexp.QuoteMeta(word) + `\b`
		bf.regexes[word] = regexp.MustCompile(`(?i)` + pattern)
	}
	return bf
}

// Clean returns narration text ready for the episode script: markdown
// artifacts removed, rough language softened with case preserved, runs of
// whitespace collapsed.
func (bf *BroadcastFilter) Clean(text string) string {
	result := text

	for _, re := range markdownArtifacts {
		result = re.ReplaceAllString(result, "$1")
	}

	for word, replacement := range replacements {
		re := bf.regexes[word]
		result = re.ReplaceAllStringFunc(result, func(match string) string {
			return preserveCase(match, replacement)
		})
	}

	result = multiSpace.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

// NeedsCleaning reports whether text contains anything Clean would change.
func (bf *BroadcastFilter) NeedsCleaning(text string) bool {
	for _, re := range bf.regexes {
		if re.MatchString(text) {
			return true
		}
	}
	for _, re := range markdownArtifacts {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// preserveCase applies the case pattern of the original word to the replacement
func preserveCase(original, replacement string) string {
	if len(original) == 0 {
		return replacement
	}

	// All uppercase
	if strings.ToUpper(original) == original {
		return strings.ToUpper(replacement)
	}

	// All lowercase
	if strings.ToLower(original) == original {
		return strings.ToLower(replacement)
	}

	// Title case (first letter uppercase, rest lowercase)
	titleCaser := cases.Title(language.English)
	if titleCaser.String(strings.ToLower(original)) == original {
		return titleCaser.String(replacement)
	}

	// Mixed case: mirror the original character by character
	result := make([]rune, 0, len(replacement))
	originalRunes := []rune(original)

	for i, r := range []rune(replacement) {
		if i < len(originalRunes) && unicode.IsUpper(originalRunes[i]) {
			result = append(result, unicode.ToUpper(r))
		} else {
			result = append(result, unicode.ToLower(r))
		}
	}

	return string(result)
}
