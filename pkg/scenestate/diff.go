package scenestate

import (
	"fmt"
	"sort"
	"strings"
)

// DiffResult says whether a scene needs a freshly generated location image
// and why. No triggers means the previous image is reused as-is.
type DiffResult struct {
	NeedsNewImage bool     `json:"needs_new_image"`
	Triggers      []string `json:"triggers"`
}

// EvaluateDiff compares consecutive scene states. Any of seven conditions
// forces a new image: the tracker flagged a change, the location id moved,
// cleared ground jumped 10+ points, structures or objects appeared, or the
// light or weather shifted.
func EvaluateDiff(curr, prev *State) *DiffResult {
	var triggers []string

	if curr.LocationChanged {
		triggers = append(triggers, "state_tracker_flagged")
	}
	if curr.LocationID != prev.LocationID {
		triggers = append(triggers, fmt.Sprintf("location_changed: %s -> %s", prev.LocationID, curr.LocationID))
	}
	if curr.Environment.GroundClearedPct-prev.Environment.GroundClearedPct >= 10 {
		triggers = append(triggers, fmt.Sprintf("construction_progress: %d%% -> %d%%",
			prev.Environment.GroundClearedPct, curr.Environment.GroundClearedPct))
	}
	if added := newItems(curr.Environment.StructuresBuilt, prev.Environment.StructuresBuilt); len(added) > 0 {
		triggers = append(triggers, fmt.Sprintf("new_structures: %s", strings.Join(added, ", ")))
	}
	if added := newItems(curr.Environment.ObjectsOnGround, prev.Environment.ObjectsOnGround); len(added) > 0 {
		triggers = append(triggers, fmt.Sprintf("new_objects: %s", strings.Join(added, ", ")))
	}
	if curr.TimeOfDay != prev.TimeOfDay {
		triggers = append(triggers, fmt.Sprintf("time_change: %s -> %s", prev.TimeOfDay, curr.TimeOfDay))
	}
	if curr.Weather != prev.Weather {
		triggers = append(triggers, fmt.Sprintf("weather_change: %s -> %s", prev.Weather, curr.Weather))
	}

	return &DiffResult{NeedsNewImage: len(triggers) > 0, Triggers: triggers}
}

func newItems(curr, prev []string) []string {
	seen := make(map[string]bool, len(prev))
	for _, p := range prev {
		seen[p] = true
	}
	var added []string
	for _, c := range curr {
		if !seen[c] {
			added = append(added, c)
		}
	}
	sort.Strings(added)
	return added
}

// ImagePlan is the instruction for producing one location image.
type ImagePlan struct {
	Prompt         string `json:"prompt"`
	UseReference   bool   `json:"use_reference"`
	ReferenceImage string `json:"reference_image,omitempty"`
	OutputFilename string `json:"output_filename"`
}

// BuildImagePlan produces the image generation instruction for a scene
// that needs a new location image. New locations and dream or vision
// sequences are generated standalone; everything else modifies the
// previous image so the environment stays visually continuous.
func BuildImagePlan(curr, prev *State, diff *DiffResult) *ImagePlan {
	env := curr.Environment

	var details []string
	if env.GroundClearedPct > 0 {
		details = append(details, fmt.Sprintf("%d%% of ground cleared, exposed frozen earth", env.GroundClearedPct))
	}
	if len(env.StructuresBuilt) > 0 {
		details = append(details, "Structures visible: "+strings.Join(env.StructuresBuilt, ", "))
	}
	if len(env.ObjectsOnGround) > 0 {
		details = append(details, "Objects on ground: "+strings.Join(env.ObjectsOnGround, ", "))
	}
	envDescription := strings.Join(details, ". ")
	if envDescription == "" {
		envDescription = orDefault(env.GroundDescription, "untouched wilderness")
	}

	filename := fmt.Sprintf("loc_%03d.png", curr.Scene)
	lowerLoc := strings.ToLower(curr.LocationID)
	standalone := prev == nil ||
		curr.LocationID != prev.LocationID ||
		strings.Contains(lowerLoc, "dream") ||
		strings.Contains(lowerLoc, "vision")

	if standalone {
		return &ImagePlan{
			Prompt: fmt.Sprintf("Real photography, 16:9 landscape format. Ground level eye-height perspective, wide angle lens. %s. %s. %s lighting. %s weather. No people. Photorealistic, cinematic, wide shot, 24mm lens. NOT CGI.",
				orDefault(env.GroundDescription, "Wilderness environment"), envDescription, curr.TimeOfDay, curr.Weather),
			UseReference:   false,
			OutputFilename: filename,
		}
	}

	var changes []string
	for _, trigger := range diff.Triggers {
		switch {
		case strings.HasPrefix(trigger, "construction_progress"):
			changes = append(changes, fmt.Sprintf("More ground has been cleared, now %d%% exposed earth", env.GroundClearedPct))
		case strings.HasPrefix(trigger, "new_structures"):
			changes = append(changes, "New structures visible: "+strings.Join(env.StructuresBuilt, ", "))
		case strings.HasPrefix(trigger, "new_objects"):
			changes = append(changes, "New objects on the ground: "+strings.Join(env.ObjectsOnGround, ", "))
		case strings.HasPrefix(trigger, "time_change"):
			changes = append(changes, "Lighting changed to "+curr.TimeOfDay)
		case strings.HasPrefix(trigger, "weather_change"):
			changes = append(changes, "Weather changed to "+curr.Weather)
		}
	}
	modification := strings.Join(changes, ". ")
	if modification == "" {
		modification = "Minor environmental changes"
	}

	return &ImagePlan{
		Prompt: fmt.Sprintf("Using the provided reference image as the base environment. Modification: %s. Keep everything else identical: same trees, same clearing shape, same snow coverage. Real photography, 16:9 landscape, ground level eye-height. NOT CGI.", modification),
		UseReference:   true,
		ReferenceImage: prev.LocationImage,
		OutputFilename: filename,
	}
}
