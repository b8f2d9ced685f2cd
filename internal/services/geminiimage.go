package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hearthfire/shelter-engine/pkg/genai"
)

const DefaultImageAspectRatio = "3:2"

// GeminiImageService implements genai.ImageService over the Gemini image
// generation endpoint. Reference-based generation passes the previous
// image inline so the model keeps the environment visually consistent.
type GeminiImageService struct {
	apiKey      string
	modelName   string
	aspectRatio string
	baseURL     string
	httpClient  *http.Client
	logger      *slog.Logger
}

type GeminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type GeminiImagePart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *GeminiInlineData `json:"inlineData,omitempty"`
}

type GeminiImageContent struct {
	Parts []GeminiImagePart `json:"parts"`
}

type GeminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type GeminiImageGenerationConfig struct {
	ResponseModalities []string           `json:"responseModalities"`
	ImageConfig        *GeminiImageConfig `json:"imageConfig,omitempty"`
}

type GeminiImageRequest struct {
	Contents         []GeminiImageContent         `json:"contents"`
	GenerationConfig *GeminiImageGenerationConfig `json:"generationConfig,omitempty"`
}

type GeminiImageResponse struct {
	Candidates []struct {
		Content struct {
			Parts []GeminiImagePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewGeminiImageService(apiKey string, modelName string, aspectRatio string, logger *slog.Logger) *GeminiImageService {
	if aspectRatio == "" {
		aspectRatio = DefaultImageAspectRatio
	}
	return &GeminiImageService{
		apiKey:      apiKey,
		modelName:   modelName,
		aspectRatio: aspectRatio,
		baseURL:     geminiBaseURL,
		httpClient: &http.Client{
			Timeout: 300 * time.Second,
		},
		logger: logger,
	}
}

// GenerateImage renders a standalone image and saves it to req.OutputPath.
func (g *GeminiImageService) GenerateImage(ctx context.Context, req genai.ImageRequest) (string, error) {
	parts := []GeminiImagePart{{Text: req.Prompt}}
	return g.generate(ctx, parts, req)
}

// GenerateImageWithReference renders an image on top of a reference image.
func (g *GeminiImageService) GenerateImageWithReference(ctx context.Context, req genai.ImageRequest) (string, error) {
	refData, err := os.ReadFile(req.ReferencePath)
	if err != nil {
		return "", fmt.Errorf("failed to read reference image: %w", err)
	}
	parts := []GeminiImagePart{
		{InlineData: &GeminiInlineData{
			MimeType: mimeTypeForImage(req.ReferencePath),
			Data:     base64.StdEncoding.EncodeToString(refData),
		}},
		{Text: req.Prompt},
	}
	return g.generate(ctx, parts, req)
}

func (g *GeminiImageService) generate(ctx context.Context, parts []GeminiImagePart, req genai.ImageRequest) (string, error) {
	aspectRatio := req.AspectRatio
	if aspectRatio == "" {
		aspectRatio = g.aspectRatio
	}

	imageReq := GeminiImageRequest{
		Contents: []GeminiImageContent{{Parts: parts}},
		GenerationConfig: &GeminiImageGenerationConfig{
			ResponseModalities: []string{"Image"},
			ImageConfig:        &GeminiImageConfig{AspectRatio: aspectRatio},
		},
	}

	reqBody, err := json.Marshal(imageReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.modelName, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
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

	var imageResp GeminiImageResponse
	if err := json.Unmarshal(body, &imageResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if imageResp.Error != nil {
		return "", fmt.Errorf("API error: %s", imageResp.Error.Message)
	}

	payload, err := extractImagePayload(&imageResp)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(req.OutputPath, payload, 0o644); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	return req.OutputPath, nil
}

// extractImagePayload decodes the first inline image in a response.
func extractImagePayload(resp *GeminiImageResponse) ([]byte, error) {
	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil {
				continue
			}
			payload, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to decode image data: %w", err)
			}
			return payload, nil
		}
	}
	return nil, genai.ErrNoImagePayload
}

func mimeTypeForImage(path string) string {
	switch filepath.Ext(path) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
