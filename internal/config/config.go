package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	RedisURL string
	DataDir  string

	// Text generation
	LLMProvider    string // "gemini" or "openai"
	GeminiAPIKey   string
	OpenAIAPIKey   string
	ModelName      string // primary model for story and analysis calls
	FlashModelName string // cheaper model for state evolution and per-scene prompts

	// Image generation
	ImageModelName   string
	ImageAspectRatio string

	// Show bible / story DNA documents
	StoryDNAPath string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),

		RedisURL: getEnv("REDIS_URL", "localhost:6379"),
		DataDir:  getEnv("DATA_DIR", "./projects"),

		LLMProvider:    getEnv("LLM_PROVIDER", "gemini"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		ModelName:      getEnv("MODEL_NAME", "gemini-2.5-pro"),
		FlashModelName: getEnv("FLASH_MODEL_NAME", "gemini-2.5-flash"),

		ImageModelName:   getEnv("IMAGE_MODEL_NAME", "gemini-3-pro-image-preview"),
		ImageAspectRatio: getEnv("IMAGE_ASPECT_RATIO", "16:9"),

		StoryDNAPath: getEnv("STORY_DNA_PATH", "./data/story_dna.yaml"),
	}

	switch strings.ToLower(cfg.LLMProvider) {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER is gemini")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER is openai")
		}
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}

	return cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
