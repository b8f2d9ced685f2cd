// Package services holds the generation provider clients and the Redis
// infrastructure behind the pipeline: text and image model access, the
// production job queue, and progress broadcasting.
package services

import (
	"fmt"
	"log/slog"

	"github.com/hearthfire/shelter-engine/internal/config"
	"github.com/hearthfire/shelter-engine/pkg/genai"
)

// NewTextService returns the configured text generation provider.
func NewTextService(cfg *config.Config, logger *slog.Logger) (genai.TextService, error) {
	switch cfg.LLMProvider {
	case "gemini":
		return NewGeminiService(cfg.GeminiAPIKey, cfg.ModelName, logger), nil
	case "openai":
		return NewOpenAIService(cfg.OpenAIAPIKey, cfg.ModelName, logger), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLMProvider)
	}
}

// NewImageService returns the image generation provider. Image generation
// is Gemini-only; an OpenAI text provider still uses Gemini for images.
func NewImageService(cfg *config.Config, logger *slog.Logger) (genai.ImageService, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("image generation requires GEMINI_API_KEY")
	}
	return NewGeminiImageService(cfg.GeminiAPIKey, cfg.ImageModelName, cfg.ImageAspectRatio, logger), nil
}
