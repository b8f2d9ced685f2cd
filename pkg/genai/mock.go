package genai

import (
	"context"
	"encoding/json"
	"sync"
)

// MockTextService is a test double for TextService. Set the *Func fields to
// script behavior; calls are recorded for assertions.
type MockTextService struct {
	GenerateTextFunc           func(ctx context.Context, req TextRequest) (string, error)
	GenerateJSONFunc           func(ctx context.Context, req TextRequest) (json.RawMessage, error)
	GenerateJSONWithSearchFunc func(ctx context.Context, req TextRequest) (json.RawMessage, error)

	TextCalls   []TextRequest
	JSONCalls   []TextRequest
	SearchCalls []TextRequest

	mu sync.Mutex
}

func NewMockTextService() *MockTextService {
	return &MockTextService{}
}

func (m *MockTextService) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	m.mu.Lock()
	m.TextCalls = append(m.TextCalls, req)
	m.mu.Unlock()
	if m.GenerateTextFunc != nil {
		return m.GenerateTextFunc(ctx, req)
	}
	return "", nil
}

func (m *MockTextService) GenerateJSON(ctx context.Context, req TextRequest) (json.RawMessage, error) {
	m.mu.Lock()
	m.JSONCalls = append(m.JSONCalls, req)
	m.mu.Unlock()
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, req)
	}
	return json.RawMessage(`{}`), nil
}

func (m *MockTextService) GenerateJSONWithSearch(ctx context.Context, req TextRequest) (json.RawMessage, error) {
	m.mu.Lock()
	m.SearchCalls = append(m.SearchCalls, req)
	m.mu.Unlock()
	if m.GenerateJSONWithSearchFunc != nil {
		return m.GenerateJSONWithSearchFunc(ctx, req)
	}
	return json.RawMessage(`{}`), nil
}

// MockImageService is a test double for ImageService.
type MockImageService struct {
	GenerateImageFunc   func(ctx context.Context, req ImageRequest) (string, error)
	GenerateWithRefFunc func(ctx context.Context, req ImageRequest) (string, error)

	ImageCalls        []ImageRequest
	ImageWithRefCalls []ImageRequest

	mu sync.Mutex
}

func NewMockImageService() *MockImageService {
	return &MockImageService{}
}

func (m *MockImageService) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	m.mu.Lock()
	m.ImageCalls = append(m.ImageCalls, req)
	m.mu.Unlock()
	if m.GenerateImageFunc != nil {
		return m.GenerateImageFunc(ctx, req)
	}
	return req.OutputPath, nil
}

func (m *MockImageService) GenerateImageWithReference(ctx context.Context, req ImageRequest) (string, error) {
	m.mu.Lock()
	m.ImageWithRefCalls = append(m.ImageWithRefCalls, req)
	m.mu.Unlock()
	if m.GenerateWithRefFunc != nil {
		return m.GenerateWithRefFunc(ctx, req)
	}
	return req.OutputPath, nil
}
