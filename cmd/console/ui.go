package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/hearthfire/shelter-engine/pkg/project"
	"github.com/hearthfire/shelter-engine/pkg/story"
)

const PlaceHolderText = "Type a command (/help for a list)..."

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config      *ConsoleConfig
	client      *http.Client
	project     *project.Project
	logViewport viewport.Model
	metaViewport viewport.Model
	textarea    textarea.Model
	ready       bool
	width       int
	height      int
	err         error
	loading     bool

	// Event stream state
	eventChan <-chan SSEEvent

	// Pipeline log lines, reflowed on resize
	logLines []string

	// lastDocument holds the most recently viewed story or narration so
	// /copy has something to put on the clipboard
	lastDocument string

	activeJobID string

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
}

type jobEnqueuedMsg struct {
	jobID   string
	jobType string
	err     error
}

type projectMsg struct {
	project *project.Project
	err     error
}

type storyMsg struct {
	story *story.Story
	err   error
}

type narrationMsg struct {
	narration *story.Narration
	err       error
}

type sseEventMsg struct {
	event SSEEvent
	ok    bool
}

type progressTickMsg struct{}

var (
	logPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client, p *project.Project, eventChan <-chan SSEEvent) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	logVp := viewport.New(50, 20)
	logVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:       cfg,
		client:       client,
		project:      p,
		textarea:     ta,
		logViewport:  logVp,
		metaViewport: metaVp,
		eventChan:    eventChan,
		ready:        false,
	}
}

func writeMetadata(p *project.Project) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("PROJECT") + "\n\n")

	content.WriteString("Project ID:\n")
	content.WriteString(p.ID.String()[:8] + "...\n\n")

	if p.Title != "" {
		content.WriteString("Title:\n")
		content.WriteString(p.Title + "\n\n")
	}

	content.WriteString("Status:\n")
	content.WriteString(string(p.Status) + "\n\n")

	if p.Presenter != "" {
		content.WriteString("Presenter:\n")
		content.WriteString(p.Presenter + "\n\n")
	}

	if p.StoryAttempts > 0 {
		content.WriteString("Story attempts:\n")
		content.WriteString(fmt.Sprintf("%d\n\n", p.StoryAttempts))
	}

	if len(p.ChaptersProduced) > 0 {
		content.WriteString("Chapters produced:\n")
		for _, c := range p.ChaptersProduced {
			content.WriteString(fmt.Sprintf("• chapter %d\n", c))
		}
		content.WriteString("\n")
	}

	content.WriteString("Commands:\n")
	content.WriteString("• /generate: Story job\n")
	content.WriteString("• /produce N: Chapter N\n")
	content.WriteString("• /story: Show story\n")
	content.WriteString("• /narration: Script\n")
	content.WriteString("• /copy: To clipboard\n")
	content.WriteString("• Ctrl+C: Quit\n")

	return content.String()
}

// writeLogContent rebuilds the log viewport from the accumulated lines,
// reflowed for the current width.
func (m *ConsoleUI) writeLogContent() {
	logWidth := m.logViewport.Width - 6

	var content strings.Builder
	content.WriteString(titleStyle.Render("SHELTER ENGINE") + "\n\n")
	content.WriteString("Pipeline events for this project stream below.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", max(logWidth-6, 1))) + "\n\n")

	for _, line := range m.logLines {
		content.WriteString(wordwrap.String(line, max(logWidth-2, 10)) + "\n")
	}

	if m.loading {
		content.WriteString("\n" + m.renderProgressBar())
	}

	m.logViewport.SetContent(content.String())
	m.logViewport.GotoBottom()
}

func (m *ConsoleUI) appendLog(line string) {
	m.logLines = append(m.logLines, line)
	m.writeLogContent()
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.waitForEvent())
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.logViewport, vpCmd = m.logViewport.Update(msg)
		m.textarea, tiCmd = m.textarea.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(tiCmd, vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		logWidth := int(float64(m.width)*0.75) - 4
		metaWidth := m.width - logWidth - 6

		m.logViewport.Width = logWidth - 2
		m.logViewport.Height = m.height - 7
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.textarea.SetWidth(logWidth - 4)

		m.ready = true
		m.writeLogContent()
		m.metaViewport.SetContent(writeMetadata(m.project))

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()
			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}
			m.appendLog(promptStyle.Render("Unknown input. Commands start with / (try /help)."))
			return m, nil
		}

	case jobEnqueuedMsg:
		if msg.err != nil {
			m.loading = false
			m.appendLog(errorStyle.Render("Error: " + msg.err.Error()))
		} else {
			m.activeJobID = msg.jobID
			m.appendLog(infoStyle.Render(fmt.Sprintf("Enqueued %s job %s", msg.jobType, msg.jobID)))
		}
		return m, nil

	case projectMsg:
		if msg.err == nil && msg.project != nil {
			m.project = msg.project
			m.metaViewport.SetContent(writeMetadata(m.project))
		}
		return m, nil

	case storyMsg:
		m.loading = false
		if msg.err != nil {
			m.appendLog(errorStyle.Render("Error: " + msg.err.Error()))
		} else {
			m.lastDocument = formatStory(msg.story)
			m.appendLog(m.lastDocument)
		}
		m.writeLogContent()
		return m, nil

	case narrationMsg:
		m.loading = false
		if msg.err != nil {
			m.appendLog(errorStyle.Render("Error: " + msg.err.Error()))
		} else {
			m.lastDocument = formatNarration(msg.narration)
			m.appendLog(m.lastDocument)
		}
		m.writeLogContent()
		return m, nil

	case sseEventMsg:
		if !msg.ok {
			m.appendLog(errorStyle.Render("Event stream closed"))
			return m, nil
		}
		cmd := m.handleEvent(msg.event)
		return m, tea.Batch(m.waitForEvent(), cmd)

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeLogContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.logViewport, vpCmd = m.logViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

// handleEvent folds one pipeline event into the log and decides whether the
// project metadata needs a refresh.
func (m *ConsoleUI) handleEvent(event SSEEvent) tea.Cmd {
	switch event.Type {
	case "connected":
		m.appendLog(promptStyle.Render("Connected to event stream"))
	case "job.queued":
		m.appendLog(infoStyle.Render("Job queued"))
	case "job.processing":
		m.loading = true
		m.progressTick = 0
		m.appendLog(loadingStyle.Render("Job processing..."))
		return progressTick()
	case "job.progress":
		message, _ := event.Data["message"].(string)
		level, _ := event.Data["level"].(string)
		switch level {
		case "error":
			m.appendLog(errorStyle.Render(message))
		case "success":
			m.appendLog(successStyle.Render(message))
		default:
			m.appendLog(message)
		}
	case "job.completed":
		m.loading = false
		m.appendLog(successStyle.Render("Job completed"))
		m.writeLogContent()
		return m.refreshProject()
	case "job.failed":
		m.loading = false
		errMsg, _ := event.Data["error"].(string)
		m.appendLog(errorStyle.Render("Job failed: " + errMsg))
		m.writeLogContent()
		return m.refreshProject()
	}
	return nil
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(strings.TrimSpace(input))
	cmd := strings.ToLower(fields[0])

	switch cmd {
	case "/help":
		helpText := `
Commands:
• /generate - Enqueue a story generation job
• /produce N - Enqueue production of chapter N
• /story - Show the generated story
• /narration - Show the episode narration
• /copy - Copy the last viewed document to the clipboard
• /help - Show this help
• Ctrl+C - Quit
`
		m.appendLog(titleStyle.Render("Help:") + helpText)

	case "/generate":
		return m, m.enqueue("story", 0)

	case "/produce":
		if len(fields) < 2 {
			m.appendLog(errorStyle.Render("Usage: /produce <chapter>"))
			return m, nil
		}
		var chapter int
		if _, err := fmt.Sscanf(fields[1], "%d", &chapter); err != nil || chapter < 1 {
			m.appendLog(errorStyle.Render("Chapter must be a positive number"))
			return m, nil
		}
		return m, m.enqueue("production", chapter)

	case "/story":
		m.loading = false
		return m, m.fetchStory()

	case "/narration":
		m.loading = false
		return m, m.fetchNarration()

	case "/copy":
		if m.lastDocument == "" {
			m.appendLog(promptStyle.Render("Nothing to copy yet. View a document first."))
			return m, nil
		}
		if err := clipboard.WriteAll(m.lastDocument); err != nil {
			m.appendLog(errorStyle.Render("Clipboard error: " + err.Error()))
		} else {
			m.appendLog(successStyle.Render("Copied to clipboard"))
		}

	default:
		m.appendLog(promptStyle.Render("Unknown command: " + cmd))
	}

	return m, nil
}

func (m ConsoleUI) enqueue(jobType string, chapter int) tea.Cmd {
	return func() tea.Msg {
		jobID, err := enqueueJob(m.client, m.config.APIBaseURL, m.project.ID, jobType, chapter)
		return jobEnqueuedMsg{jobID: jobID, jobType: jobType, err: err}
	}
}

func (m ConsoleUI) fetchStory() tea.Cmd {
	return func() tea.Msg {
		s, err := getStory(m.client, m.config.APIBaseURL, m.project.ID)
		return storyMsg{s, err}
	}
}

func (m ConsoleUI) fetchNarration() tea.Cmd {
	return func() tea.Msg {
		n, err := getNarration(m.client, m.config.APIBaseURL, m.project.ID)
		return narrationMsg{n, err}
	}
}

func (m ConsoleUI) refreshProject() tea.Cmd {
	return func() tea.Msg {
		p, err := getProject(m.client, m.config.APIBaseURL, m.project.ID)
		return projectMsg{p, err}
	}
}

func (m ConsoleUI) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.eventChan
		return sseEventMsg{event: event, ok: ok}
	}
}

func formatStory(s *story.Story) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(s.Title) + "\n")
	b.WriteString(fmt.Sprintf("Type: %s | Duration: %d min | Strength: %d\n",
		s.EpisodeType, s.DurationMinutes, s.StoryStrength))
	b.WriteString(fmt.Sprintf("Character: %s | Location: %s\n", s.Character.Name, s.Location.Name))
	for _, c := range s.Conflicts {
		b.WriteString(fmt.Sprintf("• Day %d: %s\n", c.Day, c.Title))
	}
	for _, arc := range s.NarrativeArcs {
		b.WriteString(fmt.Sprintf("  %s (%d%%)\n", arc.Phase, arc.Percentage))
	}
	return b.String()
}

func formatNarration(n *story.Narration) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("NARRATION") + "\n\n")
	b.WriteString("INTRO: " + n.Intro.Text + "\n\n")
	for i, phase := range n.Phases {
		b.WriteString(fmt.Sprintf("%s (%d words):\n%s\n\n", phase.PhaseName, phase.WordCount, phase.Narration))
		for _, br := range n.Breaks {
			if br.AfterPhase == i {
				b.WriteString("BREAK: " + br.Text + "\n\n")
			}
		}
	}
	b.WriteString("CLOSE: " + n.Close.Text + "\n")
	return b.String()
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Console?"))
	content.WriteString("\n\n")
	content.WriteString("Running jobs keep going on the worker.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	logWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - logWidth - 6

	logPanel := logPanelStyle.Width(logWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.logViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(logWidth-4, 1))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, logPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for running jobs
func (m ConsoleUI) renderProgressBar() string {
	usable := m.logViewport.Width - 6
	if usable <= 0 {
		usable = 30 // fallback before sizing
	}

	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓")
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
