package project

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestNew(t *testing.T) {
	p := New("Forty Days on the Fjord")

	if p.ID == uuid.Nil {
		t.Error("expected a generated project ID")
	}
	if p.Status != StatusDraft {
		t.Errorf("expected draft status, got %q", p.Status)
	}
	if p.Title != "Forty Days on the Fjord" {
		t.Errorf("unexpected title %q", p.Title)
	}
	if p.CreatedAt.IsZero() || !p.CreatedAt.Equal(p.UpdatedAt) {
		t.Error("created and updated timestamps should be set together")
	}
}

func TestMarkChapterProduced(t *testing.T) {
	p := New("t")

	p.MarkChapterProduced(1)
	p.MarkChapterProduced(3)
	p.MarkChapterProduced(1) // duplicate is a no-op

	if len(p.ChaptersProduced) != 2 {
		t.Fatalf("expected 2 chapters, got %v", p.ChaptersProduced)
	}
	if p.Status != StatusComplete {
		t.Errorf("expected complete status, got %q", p.Status)
	}
}

func TestProjectJSONOmitsEmpty(t *testing.T) {
	data, err := json.Marshal(New("t"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, field := range []string{"story_attempts", "chapters_produced", "presenter"} {
		if jsonHasKey(t, data, field) {
			t.Errorf("empty %s should be omitted: %s", field, data)
		}
	}
}

func jsonHasKey(t *testing.T, data []byte, key string) bool {
	t.Helper()
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	_, ok := m[key]
	return ok
}
