package story

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/hearthfire/shelter-engine/pkg/genai"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func storyJSON(t *testing.T, s *Story) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal story: %v", err)
	}
	return data
}

func TestGenerator_AcceptsFirstAttempt(t *testing.T) {
	mock := genai.NewMockTextService()
	mock.GenerateJSONFunc = func(ctx context.Context, req genai.TextRequest) (json.RawMessage, error) {
		return storyJSON(t, goodStory()), nil
	}

	gen := NewGenerator(mock, nil, "test-model", testLogger())
	s, report, err := gen.Generate(context.Background(), GenerateRequest{
		Title:           "38 Days Before the Freeze",
		DurationMinutes: 20,
		EpisodeType:     EpisodeBuild,
	}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !report.Passed {
		t.Errorf("expected pass, failed: %v", report.FailedNames())
	}
	if s.Title != "38 Days Before the Freeze" {
		t.Errorf("title not stamped onto story: %q", s.Title)
	}
	if len(mock.SearchCalls) != 0 {
		t.Errorf("no retries expected, got %d search calls", len(mock.SearchCalls))
	}
}

func TestGenerator_RetriesWithSearchAndFeedback(t *testing.T) {
	weak := goodStory()
	weak.Conflicts = weak.Conflicts[:2] // fails check 3

	mock := genai.NewMockTextService()
	mock.GenerateJSONFunc = func(ctx context.Context, req genai.TextRequest) (json.RawMessage, error) {
		return storyJSON(t, weak), nil
	}
	mock.GenerateJSONWithSearchFunc = func(ctx context.Context, req genai.TextRequest) (json.RawMessage, error) {
		return storyJSON(t, goodStory()), nil
	}

	gen := NewGenerator(mock, nil, "test-model", testLogger())
	_, report, err := gen.Generate(context.Background(), GenerateRequest{Title: "t", DurationMinutes: 20, EpisodeType: EpisodeBuild}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !report.Passed {
		t.Errorf("retry should have produced a passing story, failed: %v", report.FailedNames())
	}
	if len(mock.SearchCalls) != 1 {
		t.Fatalf("expected exactly 1 search-augmented retry, got %d", len(mock.SearchCalls))
	}
	// The retry prompt must name the failed checks.
	if got := mock.SearchCalls[0].Prompt; !strings.Contains(got, "3+ escalating conflicts") {
		t.Errorf("retry prompt missing failed check names:\n%s", got)
	}
}

func TestGenerator_KeepsBestAttemptWhenAllFail(t *testing.T) {
	weaker := goodStory()
	weaker.Conflicts = nil
	weaker.HumorMoment = ""

	weak := goodStory()
	weak.Conflicts = weak.Conflicts[:2]

	mock := genai.NewMockTextService()
	mock.GenerateJSONFunc = func(ctx context.Context, req genai.TextRequest) (json.RawMessage, error) {
		return storyJSON(t, weaker), nil
	}
	calls := 0
	mock.GenerateJSONWithSearchFunc = func(ctx context.Context, req genai.TextRequest) (json.RawMessage, error) {
		calls++
		if calls == 1 {
			return storyJSON(t, weak), nil
		}
		return storyJSON(t, weaker), nil
	}

	gen := NewGenerator(mock, nil, "test-model", testLogger())
	s, report, err := gen.Generate(context.Background(), GenerateRequest{Title: "t", DurationMinutes: 20, EpisodeType: EpisodeBuild}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if report.Passed {
		t.Fatal("no attempt should have passed")
	}
	// The best attempt (the one missing only the conflict count) is kept.
	if len(s.Conflicts) != 2 {
		t.Errorf("expected best-scoring attempt retained, got %d conflicts", len(s.Conflicts))
	}
}

func TestGenerator_AllAttemptsError(t *testing.T) {
	mock := genai.NewMockTextService()
	mock.GenerateJSONFunc = func(ctx context.Context, req genai.TextRequest) (json.RawMessage, error) {
		return nil, genai.ErrEmptyResponse
	}
	mock.GenerateJSONWithSearchFunc = func(ctx context.Context, req genai.TextRequest) (json.RawMessage, error) {
		return nil, errors.New("blocked")
	}

	gen := NewGenerator(mock, nil, "test-model", testLogger())
	_, _, err := gen.Generate(context.Background(), GenerateRequest{Title: "t", DurationMinutes: 20, EpisodeType: EpisodeBuild}, nil)
	if err == nil {
		t.Fatal("expected error when every attempt fails")
	}
}
