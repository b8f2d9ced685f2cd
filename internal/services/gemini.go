package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hearthfire/shelter-engine/pkg/genai"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	DefaultGeminiTemperature = 0.7
	DefaultGeminiMaxTokens   = 30000
	jsonGeminiMaxTokens      = 8000
)

// GeminiService implements genai.TextService over the Gemini REST API.
type GeminiService struct {
	apiKey     string
	modelName  string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type GeminiPart struct {
	Text string `json:"text,omitempty"`
}

type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

type GeminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type GeminiTool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

type GeminiGenerateRequest struct {
	Contents         []GeminiContent         `json:"contents"`
	GenerationConfig *GeminiGenerationConfig `json:"generationConfig,omitempty"`
	Tools            []GeminiTool            `json:"tools,omitempty"`
}

type GeminiCandidate struct {
	Content       GeminiContent `json:"content"`
	FinishReason  string        `json:"finishReason,omitempty"`
	SafetyRatings []struct {
		Category    string `json:"category"`
		Probability string `json:"probability"`
	} `json:"safetyRatings,omitempty"`
}

type GeminiGenerateResponse struct {
	Candidates     []GeminiCandidate `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func NewGeminiService(apiKey string, modelName string, logger *slog.Logger) *GeminiService {
	return &GeminiService{
		apiKey:    apiKey,
		modelName: modelName,
		baseURL:   geminiBaseURL,
		httpClient: &http.Client{
			Timeout: 180 * time.Second,
		},
		logger: logger,
	}
}

func (g *GeminiService) buildRequest(req genai.TextRequest, jsonMode, withSearch bool) *GeminiGenerateRequest {
	temperature := req.Temperature
	if temperature == 0 {
		temperature = DefaultGeminiTemperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultGeminiMaxTokens
	}

	out := &GeminiGenerateRequest{
		Contents: []GeminiContent{
			{Parts: []GeminiPart{{Text: req.Prompt}}},
		},
		GenerationConfig: &GeminiGenerationConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxTokens,
		},
	}
	// Structured output and search grounding are mutually exclusive in the
	// API; search responses get their JSON extracted manually.
	if jsonMode && !withSearch {
		out.GenerationConfig.ResponseMimeType = "application/json"
	}
	if withSearch {
		out.Tools = []GeminiTool{{GoogleSearch: &struct{}{}}}
	}
	return out
}

func (g *GeminiService) generate(ctx context.Context, model string, geminiReq *GeminiGenerateRequest) (string, error) {
	reqBody, err := json.Marshal(geminiReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("content-type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var geminiResp GeminiGenerateResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return extractGeminiText(&geminiResp)
}

// extractGeminiText pulls the text out of a response, surfacing the block
// reason when the model returned nothing.
func extractGeminiText(resp *GeminiGenerateResponse) (string, error) {
	if resp.Error != nil {
		return "", fmt.Errorf("API error: %s", resp.Error.Message)
	}

	var text string
	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			text += part.Text
		}
	}
	if text != "" {
		return text, nil
	}

	reason := "unknown"
	if len(resp.Candidates) > 0 {
		c := resp.Candidates[0]
		reason = fmt.Sprintf("finish_reason=%s", c.FinishReason)
		for _, r := range c.SafetyRatings {
			reason += fmt.Sprintf(" safety=%s:%s", r.Category, r.Probability)
		}
	} else if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		reason = fmt.Sprintf("prompt_feedback=%s", resp.PromptFeedback.BlockReason)
	}
	return "", fmt.Errorf("%w: %s", genai.ErrEmptyResponse, reason)
}

func (g *GeminiService) model(req genai.TextRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return g.modelName
}

// GenerateText generates freeform text.
func (g *GeminiService) GenerateText(ctx context.Context, req genai.TextRequest) (string, error) {
	return g.generate(ctx, g.model(req), g.buildRequest(req, false, false))
}

// GenerateJSON generates with forced JSON output. Truncated responses go
// through repair before the call is failed.
func (g *GeminiService) GenerateJSON(ctx context.Context, req genai.TextRequest) (json.RawMessage, error) {
	if req.MaxTokens == 0 {
		req.MaxTokens = jsonGeminiMaxTokens
	}
	text, err := g.generate(ctx, g.model(req), g.buildRequest(req, true, false))
	if err != nil {
		return nil, err
	}
	return parseOrRepairJSON(g.logger, text)
}

// GenerateJSONWithSearch generates JSON with search grounding enabled.
// Grounded responses often arrive wrapped in markdown fences.
func (g *GeminiService) GenerateJSONWithSearch(ctx context.Context, req genai.TextRequest) (json.RawMessage, error) {
	if req.MaxTokens == 0 {
		req.MaxTokens = jsonGeminiMaxTokens
	}
	text, err := g.generate(ctx, g.model(req), g.buildRequest(req, true, true))
	if err != nil {
		return nil, err
	}
	return parseOrRepairJSON(g.logger, genai.StripFences(text))
}

// parseOrRepairJSON validates model output as JSON, attempting truncation
// repair before giving up.
func parseOrRepairJSON(logger *slog.Logger, text string) (json.RawMessage, error) {
	raw := json.RawMessage(text)
	if json.Valid(raw) {
		return raw, nil
	}
	if logger != nil {
		logger.Warn("JSON parse failed, attempting repair", "length", len(text))
	}
	if repaired := genai.RepairTruncatedJSON(text); repaired != nil {
		if logger != nil {
			logger.Info("JSON repair successful", "salvaged_bytes", len(repaired))
		}
		return repaired, nil
	}
	return nil, fmt.Errorf("response is not valid JSON and could not be repaired")
}
