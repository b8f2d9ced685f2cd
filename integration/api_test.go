//go:build integration
// +build integration

// Integration tests run against a live API:
//
//	redis-server &
//	go run ./cmd/api &
//	go test -tags integration ./integration/
//
// They exercise the project and job surfaces without requiring a worker or
// model API keys; story and production jobs are only enqueued, never awaited.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

func baseURL() string {
	if url := os.Getenv("API_BASE_URL"); url != "" {
		return strings.TrimSuffix(url, "/")
	}
	return "http://localhost:8080"
}

func client() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func TestMain(m *testing.M) {
	fmt.Printf("Running Shelter Engine Integration Tests\n")
	fmt.Printf("   API Base URL: %s\n", baseURL())

	resp, err := client().Get(baseURL() + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "API is not reachable: %v\n", err)
		os.Exit(1)
	}
	_ = resp.Body.Close()

	os.Exit(m.Run())
}

func TestHealth(t *testing.T) {
	resp, err := client().Get(baseURL() + "/health")
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var health struct {
		Status     string                 `json:"status"`
		Components map[string]interface{} `json:"components"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("Expected healthy status, got %q", health.Status)
	}
	if health.Components["storage"] != "healthy" {
		t.Errorf("Expected healthy storage, got %v", health.Components["storage"])
	}
}

func TestProjectLifecycle(t *testing.T) {
	c := client()

	// Create
	body := bytes.NewBufferString(`{"title": "Integration Test Episode", "presenter": "Test Presenter"}`)
	resp, err := c.Post(baseURL()+"/v1/projects", "application/json", body)
	if err != nil {
		t.Fatalf("Create request failed: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.StatusCode, raw)
	}

	var created struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatalf("Failed to decode create response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("Expected a project ID")
	}
	if created.Status != "draft" {
		t.Errorf("Expected draft status, got %q", created.Status)
	}

	// Clean up regardless of what happens below
	defer func() {
		req, _ := http.NewRequest(http.MethodDelete, baseURL()+"/v1/projects/"+created.ID, nil)
		resp, err := c.Do(req)
		if err == nil {
			_ = resp.Body.Close()
		}
	}()

	// Read back
	resp, err = c.Get(baseURL() + "/v1/projects/" + created.ID)
	if err != nil {
		t.Fatalf("Read request failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 on read, got %d", resp.StatusCode)
	}

	// Story does not exist yet
	resp, err = c.Get(baseURL() + "/v1/projects/" + created.ID + "/story")
	if err != nil {
		t.Fatalf("Story request failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404 for missing story, got %d", resp.StatusCode)
	}

	// Upload a script
	script := "## HOOK (0:00-0:30)\n\nThe presenter tests the ice at the edge of the lake.\n"
	resp, err = c.Post(baseURL()+"/v1/projects/"+created.ID+"/script", "text/markdown", strings.NewReader(script))
	if err != nil {
		t.Fatalf("Script upload failed: %v", err)
	}
	raw, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201 on script upload, got %d: %s", resp.StatusCode, raw)
	}

	var parsed struct {
		Sections []json.RawMessage `json:"sections"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("Failed to decode parsed script: %v", err)
	}
	if len(parsed.Sections) == 0 {
		t.Error("Expected at least one parsed section")
	}
}

func TestJobValidation(t *testing.T) {
	c := client()

	cases := []struct {
		name string
		body string
		want int
	}{
		{
			name: "missing project",
			body: `{"type": "story"}`,
			want: http.StatusBadRequest,
		},
		{
			name: "production without chapter",
			body: `{"project_id": "7c9e6679-7425-40de-944b-e07fc1f90ae7", "type": "production"}`,
			want: http.StatusBadRequest,
		},
		{
			name: "unknown project",
			body: `{"project_id": "7c9e6679-7425-40de-944b-e07fc1f90ae7", "type": "story"}`,
			want: http.StatusNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := c.Post(baseURL()+"/v1/jobs", "application/json", bytes.NewBufferString(tc.body))
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			_ = resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Errorf("Expected status %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}
}

func TestUnknownJobStatus(t *testing.T) {
	resp, err := client().Get(baseURL() + "/v1/jobs/7c9e6679-7425-40de-944b-e07fc1f90ae7")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
}
