package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hearthfire/shelter-engine/pkg/project"
)

type ConsoleConfig struct {
	APIBaseURL string
	Timeout    time.Duration
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func main() {
	cfg := &ConsoleConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		Timeout:    30 * time.Second,
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
	}

	if !testConnection(client, cfg.APIBaseURL) {
		fmt.Fprintf(os.Stderr, "Could not connect to API. Please ensure the API is running.\nTry: go run ./cmd/api\n")
		os.Exit(1)
	}

	p, err := selectProject(client, cfg.APIBaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// The SSE listener needs an unbounded-lifetime client; the default one
	// would cut the stream at the 30s timeout.
	sseClient := &http.Client{}
	eventChan := make(chan SSEEvent, 16)
	sseCtx, sseCancel := context.WithCancel(context.Background())
	defer sseCancel()

	go func() {
		defer close(eventChan)
		if err := listenToSSE(sseCtx, sseClient, cfg.APIBaseURL, p.ID, eventChan); err != nil && sseCtx.Err() == nil {
			// The UI reports the closed channel; nothing more to do here
			_ = err
		}
	}()

	prog := tea.NewProgram(NewConsoleUI(cfg, client, p, eventChan),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithMouseAllMotion())
	if _, err := prog.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

// selectProject lists existing projects and lets the user pick one or start
// a new one before the UI takes over the terminal.
func selectProject(client *http.Client, baseURL string) (*project.Project, error) {
	projects, err := listProjects(client, baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	fmt.Println("Projects:")
	for i, p := range projects {
		title := p.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("  %d - %s [%s]\n", i+1, title, p.Status)
	}
	fmt.Printf("  0 - Create a new project\n")
	fmt.Print("\nSelect a project by number: ")

	var choice int
	if _, err := fmt.Scanf("%d", &choice); err != nil || choice < 0 || choice > len(projects) {
		return nil, fmt.Errorf("invalid selection")
	}

	if choice > 0 {
		return projects[choice-1], nil
	}

	reader := bufio.NewReader(os.Stdin)
	_, _ = reader.ReadString('\n') // consume the newline left by Scanf

	fmt.Print("Title (blank lets the story pick one): ")
	title := readLine(reader)
	fmt.Print("Presenter (blank for default): ")
	presenter := readLine(reader)

	p, err := createProject(client, baseURL, title, presenter)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	fmt.Printf("Created project %s\n", p.ID)
	return p, nil
}

func readLine(r *bufio.Reader) string {
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
