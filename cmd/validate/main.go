package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/hearthfire/shelter-engine/pkg/progress"
	"github.com/hearthfire/shelter-engine/pkg/story"
	"github.com/hearthfire/shelter-engine/pkg/storyboard"
)

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "story":
		err = validateStory(os.Args[2])
	case "storyboard":
		if len(os.Args) < 4 {
			usage()
			os.Exit(1)
		}
		err = validateStoryboard(os.Args[2], os.Args[3])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  %s story <story.json>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s storyboard <scenes.json> <narration.txt>\n", os.Args[0])
}

// validateStory runs the quality gate against a story document and prints
// the per-check results.
func validateStory(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	var s story.Story
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&s); err != nil {
		return fmt.Errorf("file %s failed strict JSON unmarshaling: %w", filename, err)
	}

	report := story.Validate(&s)
	for _, check := range report.Checks {
		mark := "PASS"
		if !check.Passed {
			mark = "FAIL"
			if check.Bonus {
				mark = "skip"
			}
		}
		fmt.Printf("  [%s] %2d. %s\n", mark, check.ID, check.Name)
	}
	fmt.Printf("Score: %d (%d/%d checks)\n", report.Score, report.PassedCount, report.TotalChecks)
	fmt.Printf("Story strength: %d\n", s.StoryStrength)

	if !report.Passed {
		return fmt.Errorf("quality gate failed: %s", strings.Join(report.FailedNames(), ", "))
	}

	fmt.Println("Story passed the quality gate!")
	return nil
}

// validateStoryboard runs the storyboard checks against a scene sequence and
// the narration it was derived from.
func validateStoryboard(scenesFile, narrationFile string) error {
	fmt.Printf("Validating %s against %s...\n", scenesFile, narrationFile)

	data, err := os.ReadFile(scenesFile)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", scenesFile, err)
	}

	// Accept either a bare scene array or a full analysis document.
	var scenes []storyboard.Scene
	if err := json.Unmarshal(data, &scenes); err != nil {
		var analysis storyboard.Analysis
		if err := json.Unmarshal(data, &analysis); err != nil {
			return fmt.Errorf("file %s is neither a scene array nor an analysis document: %w", scenesFile, err)
		}
		scenes = analysis.Storyboard
	}
	if len(scenes) == 0 {
		return fmt.Errorf("file %s contains no scenes", scenesFile)
	}

	narration, err := os.ReadFile(narrationFile)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", narrationFile, err)
	}

	report := storyboard.Validate(scenes, string(narration), func(message string, _ progress.Level) {
		fmt.Println("  " + message)
	})

	for _, issue := range report.Errors {
		fmt.Printf("  ERROR [%s] %s\n", issue.Check, issue.Message)
	}
	for _, issue := range report.Warnings {
		fmt.Printf("  warn  [%s] %s\n", issue.Check, issue.Message)
	}
	fmt.Printf("Score: %d (%d errors, %d warnings)\n", report.Score, report.TotalErrors, report.TotalWarnings)
	fmt.Println(report.Summary)

	if !report.Valid {
		return fmt.Errorf("storyboard has blocking errors")
	}

	fmt.Println("Storyboard is valid!")
	return nil
}
