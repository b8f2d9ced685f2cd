package story

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Approved regions for episode settings, worldwide.
var allLocations = []string{
	"Yukon, Canada", "Alaska, USA", "Montana, USA", "British Columbia, Canada",
	"Minnesota, USA", "Maine, USA", "Colorado Rockies, USA", "Quebec, Canada",
	"Northwest Territories, Canada", "New Brunswick, Canada",
	"Northern Norway", "Sweden", "Lapland, Finland", "Iceland",
	"Scotland", "Romania", "Swiss Alps", "Southern Norway",
	"Ireland", "Pyrenees, Spain", "Carpathians, Ukraine", "Italian Alps",
	"Siberia, Russia", "Japan", "Mongolia", "Kazakhstan",
	"South Korea", "Kamchatka, Russia",
	"Patagonia, Argentina", "Patagonia, Chile", "Andes, Bolivia", "Southern Brazil",
	"New Zealand", "Tasmania, Australia",
	"Atlas Mountains, Morocco", "Highlands, Ethiopia",
}

var allArchetypes = []string{
	"The Promise", "The Last Chance", "The Aftermath", "The Inherited Burden",
	"The Wrong Season", "The Solitary Vigil", "The Community Build",
	"The Obsession", "The Silent Witness", "The Failure",
}

var allEpisodeTypes = []string{
	"build", "rescue", "restore", "survive", "full_build",
	"critical_system", "underground", "cabin_life",
}

var allCompanionBreeds = []string{
	"Husky", "German Shepherd", "Malamute", "Border Collie", "Labrador",
	"Norwegian Elkhound", "Bernese Mountain Dog", "Akita", "Australian Shepherd",
	"Karelian Bear Dog", "Samoyed", "Siberian Laika",
}

// StorySource lists previously generated stories. The storage layer
// implements it.
type StorySource interface {
	ListStories(ctx context.Context) ([]*Story, error)
}

// usage aggregates what past episodes have already consumed.
type usage struct {
	names          []string
	origins        []string
	professions    []string
	regions        []string
	locations      []string
	archetypes     []string
	episodeTypes   []string
	companionNames []string
	breeds         []string
	ages           []int
	totalEpisodes  int
}

// Recommendations is the structured least-used view for clients.
type Recommendations struct {
	TotalEpisodes int      `json:"total_episodes"`
	UsedNames     []string `json:"used_names"`
	UsedLocations []string `json:"used_locations"`
	Archetypes    []string `json:"recommended_archetypes"`
	Locations     []string `json:"recommended_locations"`
	EpisodeTypes  []string `json:"recommended_episode_types"`
	Breeds        []string `json:"recommended_companion_breeds"`
}

// DiversityTracker scans past episodes and produces the constraint block
// injected into story generation prompts, steering new episodes away from
// names, places, and archetypes already on the channel.
type DiversityTracker struct {
	source StorySource
}

func NewDiversityTracker(source StorySource) *DiversityTracker {
	return &DiversityTracker{source: source}
}

// Context returns the AVOID/PREFER prompt block, or "" when no episodes
// exist yet.
func (t *DiversityTracker) Context(ctx context.Context) (string, error) {
	u, err := t.scan(ctx)
	if err != nil {
		return "", err
	}
	if u.totalEpisodes == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("---\n## DIVERSITY CONSTRAINTS (from episode memory)\n")
	fmt.Fprintf(&b, "Total episodes generated so far: %d\n\n", u.totalEpisodes)

	b.WriteString("### AVOID (already used, DO NOT repeat)\n")
	writeListLine(&b, "Names already used", u.names)
	writeListLine(&b, "Companion names already used", u.companionNames)
	writeListLine(&b, "Specific locations already used", u.locations)
	writeListLine(&b, "Character origins already used", u.origins)

	b.WriteString("\n### PREFER (least used, prioritize these)\n")
	writeListLine(&b, "Preferred archetypes (least used)", leastUsed(u.archetypes, allArchetypes, 3))
	writeListLine(&b, "Preferred locations (least used)", leastUsed(u.regions, allLocations, 3))
	writeListLine(&b, "Preferred companion breeds (least used)", leastUsed(u.breeds, allCompanionBreeds, 3))
	writeListLine(&b, "Least-used episode types", leastUsed(u.episodeTypes, allEpisodeTypes, 3))

	if len(u.ages) > 0 {
		total := 0
		for _, a := range u.ages {
			total += a
		}
		avg := float64(total) / float64(len(u.ages))
		if avg > 45 {
			b.WriteString("- Age: Previous characters skew older. Consider a YOUNGER character (18-35).\n")
		} else if avg < 35 {
			b.WriteString("- Age: Previous characters skew younger. Consider an OLDER character (50-65).\n")
		}
	}

	b.WriteString("\nUse different names, origins, locations, breeds, and archetypes from previous episodes.\n")
	b.WriteString("Violating AVOID constraints will result in rejection.\n---")
	return b.String(), nil
}

// Recommendations returns the least-used options for UI display.
func (t *DiversityTracker) Recommendations(ctx context.Context) (*Recommendations, error) {
	u, err := t.scan(ctx)
	if err != nil {
		return nil, err
	}
	return &Recommendations{
		TotalEpisodes: u.totalEpisodes,
		UsedNames:     u.names,
		UsedLocations: u.locations,
		Archetypes:    leastUsed(u.archetypes, allArchetypes, 5),
		Locations:     leastUsed(u.regions, allLocations, 5),
		EpisodeTypes:  leastUsed(u.episodeTypes, allEpisodeTypes, 5),
		Breeds:        leastUsed(u.breeds, allCompanionBreeds, 5),
	}, nil
}

func (t *DiversityTracker) scan(ctx context.Context) (*usage, error) {
	stories, err := t.source.ListStories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}

	u := &usage{}
	for _, s := range stories {
		if s == nil {
			continue
		}
		u.totalEpisodes++

		if s.Character.Name != "" {
			u.names = append(u.names, s.Character.Name)
		}
		if s.Character.Origin != "" {
			u.origins = append(u.origins, s.Character.Origin)
		}
		if s.Character.Profession != "" {
			u.professions = append(u.professions, s.Character.Profession)
		}
		if s.Character.Age > 0 {
			u.ages = append(u.ages, s.Character.Age)
		}
		if s.Character.Companion.Name != "" {
			u.companionNames = append(u.companionNames, s.Character.Companion.Name)
		}
		if s.Character.Companion.Breed != "" {
			u.breeds = append(u.breeds, s.Character.Companion.Breed)
		}
		if s.Location.Name != "" {
			u.locations = append(u.locations, s.Location.Name)
			if region := matchRegion(s.Location.Name); region != "" {
				u.regions = append(u.regions, region)
			}
		}
		if s.Archetype != "" {
			u.archetypes = append(u.archetypes, s.Archetype)
		}
		if s.EpisodeType != "" {
			u.episodeTypes = append(u.episodeTypes, string(s.EpisodeType))
		}
	}
	return u, nil
}

// matchRegion maps a specific location name to its approved region.
func matchRegion(name string) string {
	lower := strings.ToLower(name)
	for _, region := range allLocations {
		key := strings.ToLower(strings.SplitN(region, ",", 2)[0])
		if strings.Contains(lower, key) {
			return region
		}
	}
	return ""
}

// leastUsed returns never-used options first, falling back to the least
// frequently used. The sort is stable so catalog order breaks ties.
func leastUsed(used, all []string, n int) []string {
	counts := make(map[string]int, len(used))
	for _, u := range used {
		counts[u]++
	}

	var unused []string
	for _, opt := range all {
		if counts[opt] == 0 {
			unused = append(unused, opt)
		}
	}
	if len(unused) > 0 {
		if len(unused) > n {
			unused = unused[:n]
		}
		return unused
	}

	sorted := append([]string(nil), all...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return counts[sorted[i]] < counts[sorted[j]]
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func writeListLine(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "- %s: %s\n", label, strings.Join(items, ", "))
}
