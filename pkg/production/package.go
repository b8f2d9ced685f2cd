package production

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hearthfire/shelter-engine/pkg/progress"
)

// WritePackage saves a chapter production to disk as a reviewable set of
// files under projectDir/production/chapter_N:
//
//	prompts.json        all scene prompts
//	storyboard.json     the storyboard table
//	state_tracker.json  scene state per scene
//	image_prompts.json  location image prompts, kept for manual generation
//	assembly_notes.md   editor instructions
//
// It returns the chapter directory path.
func WritePackage(p *Production, projectDir string, notify progress.Func) (string, error) {
	chapterDir := filepath.Join(projectDir, "production", fmt.Sprintf("chapter_%d", p.Chapter))
	if err := os.MkdirAll(chapterDir, 0o755); err != nil {
		return "", fmt.Errorf("create chapter dir: %w", err)
	}

	files := map[string]any{
		"prompts.json":       p.Prompts,
		"storyboard.json":    p.Storyboard,
		"state_tracker.json": p.States,
		"image_prompts.json": p.ImagePrompts,
	}
	for name, data := range files {
		if err := writeJSON(filepath.Join(chapterDir, name), data); err != nil {
			return "", err
		}
	}

	if err := os.WriteFile(filepath.Join(chapterDir, "assembly_notes.md"), []byte(assemblyNotes(p)), 0o644); err != nil {
		return "", fmt.Errorf("write assembly notes: %w", err)
	}

	progress.Notify(notify, fmt.Sprintf("Production package saved to: production/chapter_%d/", p.Chapter), progress.LevelSuccess)
	return chapterDir, nil
}

func writeJSON(path string, data any) error {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func assemblyNotes(p *Production) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Chapter %d: Assembly Notes\n\n", p.Chapter)
	b.WriteString("## Overview\n")
	process := "N/A"
	if p.Analysis != nil && p.Analysis.ProcessUnderstanding != "" {
		process = p.Analysis.ProcessUnderstanding
	}
	fmt.Fprintf(&b, "- **Process:** %s\n", process)
	fmt.Fprintf(&b, "- **Total scenes:** %d\n", p.Metadata.TotalScenes)
	fmt.Fprintf(&b, "- **Narrated:** %d | **Bridges:** %d | **Presenter:** %d\n",
		p.Metadata.NarratedScenes, p.Metadata.BridgeScenes, p.Metadata.PresenterScenes)
	fmt.Fprintf(&b, "- **Estimated duration:** %s\n", p.Metadata.EstimatedDuration)

	b.WriteString("\n## Day Card Suggestions\n")
	if p.Analysis != nil {
		for _, suggestion := range p.Analysis.DayCardSuggestions {
			fmt.Fprintf(&b, "- %s\n", suggestion)
		}
	}

	b.WriteString("\n## Failed Images (need manual generation)\n")
	if len(p.FailedImages) == 0 {
		b.WriteString("- None, all images generated successfully\n")
	}
	for _, img := range p.FailedImages {
		fmt.Fprintf(&b, "- %s: see image_prompts.json for the prompt\n", img)
	}

	b.WriteString("\n## Scene Sequence\n")
	b.WriteString("| # | Type | Location Image | Action |\n")
	b.WriteString("|---|------|---------------|--------|\n")
	for _, pr := range p.Prompts {
		action := pr.Action
		if action == "" {
			action = pr.NarrationExcerpt
		}
		if len(action) > 60 {
			action = action[:60]
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", pr.SceneNum, pr.Kind, pr.LocationImage, action)
	}

	return b.String()
}
