package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hearthfire/shelter-engine/pkg/genai"
)

// OpenAIService implements genai.TextService on the OpenAI chat API. It is
// the fallback provider; search grounding is not available here so grounded
// requests degrade to plain JSON generation.
type OpenAIService struct {
	client    *openai.Client
	modelName string
	logger    *slog.Logger
}

func NewOpenAIService(apiKey string, modelName string, logger *slog.Logger) *OpenAIService {
	return &OpenAIService{
		client:    openai.NewClient(apiKey),
		modelName: modelName,
		logger:    logger,
	}
}

func (o *OpenAIService) model(req genai.TextRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return o.modelName
}

func (o *OpenAIService) complete(ctx context.Context, req genai.TextRequest, jsonMode bool) (string, error) {
	temperature := req.Temperature
	if temperature == 0 {
		temperature = DefaultGeminiTemperature
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       o.model(req),
		Temperature: float32(temperature),
		MaxTokens:   req.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	if jsonMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", genai.ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAIService) GenerateText(ctx context.Context, req genai.TextRequest) (string, error) {
	return o.complete(ctx, req, false)
}

func (o *OpenAIService) GenerateJSON(ctx context.Context, req genai.TextRequest) (json.RawMessage, error) {
	text, err := o.complete(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return parseOrRepairJSON(o.logger, genai.StripFences(text))
}

// GenerateJSONWithSearch degrades to plain JSON generation; the retry loop
// still benefits from the temperature bump even without grounding.
func (o *OpenAIService) GenerateJSONWithSearch(ctx context.Context, req genai.TextRequest) (json.RawMessage, error) {
	return o.GenerateJSON(ctx, req)
}
