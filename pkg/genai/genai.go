// Package genai defines the narrow contracts the pipeline has with its text
// and image generation services, plus the JSON repair used on truncated
// model output. Provider implementations live in internal/services.
package genai

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrEmptyResponse is returned when the model produced no usable text,
// typically a content filter or token-limit stop.
var ErrEmptyResponse = errors.New("model returned empty response")

// ErrNoImagePayload is returned when an image generation response carried
// no image data.
var ErrNoImagePayload = errors.New("no image generated: response contained no image parts")

// TextRequest is a single point-to-point text generation call.
type TextRequest struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
	Model       string // empty selects the provider's default model
}

// TextService generates text. GenerateJSON forces machine-parseable output
// and repairs truncation before giving up. GenerateJSONWithSearch enables
// web-search augmentation for retry attempts; providers without search
// grounding fall back to plain JSON generation.
type TextService interface {
	GenerateText(ctx context.Context, req TextRequest) (string, error)
	GenerateJSON(ctx context.Context, req TextRequest) (json.RawMessage, error)
	GenerateJSONWithSearch(ctx context.Context, req TextRequest) (json.RawMessage, error)
}

// ImageRequest is a single image generation call. When ReferencePath is set,
// the provider generates image-to-image against that file.
type ImageRequest struct {
	Prompt        string
	OutputPath    string
	ReferencePath string
	AspectRatio   string
}

// ImageService generates images to disk. Both methods return the destination
// path and must return ErrNoImagePayload when the response has no image.
type ImageService interface {
	GenerateImage(ctx context.Context, req ImageRequest) (string, error)
	GenerateImageWithReference(ctx context.Context, req ImageRequest) (string, error)
}
