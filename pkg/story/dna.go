package story

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DNA is the show bible: the invariants every generated story must satisfy
// and the stylistic register of the series. Loaded from a YAML document so
// producers can tune it without a rebuild.
type DNA struct {
	ShowName   string            `yaml:"show_name"`
	Style      string            `yaml:"style"`
	Principles []string          `yaml:"principles"`
	Archetypes []string          `yaml:"archetypes"`
	Episodes   map[string]string `yaml:"episode_types"`
}

// LoadDNA reads the story DNA document from path.
func LoadDNA(path string) (*DNA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read story DNA: %w", err)
	}
	var dna DNA
	if err := yaml.Unmarshal(data, &dna); err != nil {
		return nil, fmt.Errorf("failed to parse story DNA: %w", err)
	}
	return &dna, nil
}

// PromptBlock renders the DNA as a prompt section.
func (d *DNA) PromptBlock() string {
	var b strings.Builder
	if d.ShowName != "" {
		fmt.Fprintf(&b, "SHOW: %s\n", d.ShowName)
	}
	if d.Style != "" {
		fmt.Fprintf(&b, "STYLE:\n%s\n", d.Style)
	}
	if len(d.Principles) > 0 {
		b.WriteString("PRINCIPLES (every story must satisfy all of these):\n")
		for i, p := range d.Principles {
			fmt.Fprintf(&b, "%d. %s\n", i+1, p)
		}
	}
	return b.String()
}

// EpisodeNotes returns the DNA guidance for an episode type, if any.
func (d *DNA) EpisodeNotes(t EpisodeType) string {
	if d.Episodes == nil {
		return ""
	}
	return d.Episodes[string(t)]
}
