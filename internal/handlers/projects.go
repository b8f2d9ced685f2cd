package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/hearthfire/shelter-engine/pkg/project"
	"github.com/hearthfire/shelter-engine/pkg/script"
	"github.com/hearthfire/shelter-engine/pkg/storage"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// maxScriptBytes bounds uploaded script size.
const maxScriptBytes = 2 << 20

// ProjectsHandler handles project CRUD and project documents
type ProjectsHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

func NewProjectsHandler(store storage.Storage, logger *slog.Logger) *ProjectsHandler {
	return &ProjectsHandler{
		storage: store,
		logger:  logger,
	}
}

// CreateProjectRequest defines the request body for creating a project
type CreateProjectRequest struct {
	Title     string `json:"title"`
	Presenter string `json:"presenter,omitempty"`
}

// ServeHTTP handles HTTP requests for project operations
// Routes:
// POST /v1/projects                       - Create new project
// GET /v1/projects                        - List projects
// GET /v1/projects/{id}                   - Read project metadata
// DELETE /v1/projects/{id}                - Delete project and documents
// GET /v1/projects/{id}/story             - Read generated story
// GET /v1/projects/{id}/narration         - Read generated narration
// GET /v1/projects/{id}/elements          - Read element catalog
// POST /v1/projects/{id}/script           - Upload and parse a markdown script
// GET /v1/projects/{id}/script            - Read parsed script
func (h *ProjectsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/projects"), "/")
	if path == "" {
		switch r.Method {
		case http.MethodPost:
			h.handleCreate(w, r)
		case http.MethodGet:
			h.handleList(w, r)
		default:
			h.methodNotAllowed(w, "POST, GET")
		}
		return
	}

	parts := strings.Split(path, "/")
	projectID, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid project ID", "id", parts[0], "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid project ID format")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.handleRead(w, r, projectID)
		case http.MethodDelete:
			h.handleDelete(w, r, projectID)
		default:
			h.methodNotAllowed(w, "GET, DELETE")
		}
		return
	}

	if len(parts) != 2 {
		h.writeError(w, http.StatusNotFound, "Unknown project resource")
		return
	}

	switch parts[1] {
	case "story":
		h.requireGet(w, r, func() { h.handleStory(w, r, projectID) })
	case "narration":
		h.requireGet(w, r, func() { h.handleNarration(w, r, projectID) })
	case "elements":
		h.requireGet(w, r, func() { h.handleElements(w, r, projectID) })
	case "script":
		switch r.Method {
		case http.MethodPost:
			h.handleScriptUpload(w, r, projectID)
		case http.MethodGet:
			h.handleScriptRead(w, r, projectID)
		default:
			h.methodNotAllowed(w, "POST, GET")
		}
	default:
		h.writeError(w, http.StatusNotFound, "Unknown project resource")
	}
}

func (h *ProjectsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p := project.New(req.Title)
	p.Presenter = req.Presenter

	if err := h.storage.SaveProject(r.Context(), p); err != nil {
		h.logger.Error("Failed to save project", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to create project")
		return
	}

	h.logger.Info("Project created", "project_id", p.ID, "title", p.Title)
	w.WriteHeader(http.StatusCreated)
	h.writeJSON(w, p)
}

func (h *ProjectsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	projects, err := h.storage.ListProjects(r.Context())
	if err != nil {
		h.logger.Error("Failed to list projects", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to list projects")
		return
	}
	h.writeJSON(w, map[string]interface{}{"projects": projects})
}

func (h *ProjectsHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	p, err := h.storage.LoadProject(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load project", "project_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load project")
		return
	}
	if p == nil {
		h.writeError(w, http.StatusNotFound, "Project not found")
		return
	}
	h.writeJSON(w, p)
}

func (h *ProjectsHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.storage.DeleteProject(r.Context(), id); err != nil {
		h.logger.Warn("Failed to delete project", "project_id", id, "error", err)
		h.writeError(w, http.StatusNotFound, "Project not found")
		return
	}
	h.logger.Info("Project deleted", "project_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectsHandler) handleStory(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	s, err := h.storage.LoadStory(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load story", "project_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load story")
		return
	}
	if s == nil {
		h.writeError(w, http.StatusNotFound, "Project has no story yet")
		return
	}
	h.writeJSON(w, s)
}

func (h *ProjectsHandler) handleNarration(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	n, err := h.storage.LoadNarration(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load narration", "project_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load narration")
		return
	}
	if n == nil {
		h.writeError(w, http.StatusNotFound, "Project has no narration yet")
		return
	}
	h.writeJSON(w, n)
}

func (h *ProjectsHandler) handleElements(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	els, err := h.storage.LoadElements(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load elements", "project_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load elements")
		return
	}
	if els == nil {
		h.writeError(w, http.StatusNotFound, "Project has no element catalog yet")
		return
	}
	h.writeJSON(w, map[string]interface{}{"elements": els})
}

// handleScriptUpload accepts a raw markdown script, parses it, and stores
// the structured result alongside the project.
func (h *ProjectsHandler) handleScriptUpload(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	p, err := h.storage.LoadProject(r.Context(), id)
	if err != nil || p == nil {
		h.writeError(w, http.StatusNotFound, "Project not found")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxScriptBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Failed to read script body")
		return
	}
	if len(raw) == 0 {
		h.writeError(w, http.StatusBadRequest, "Script body is empty")
		return
	}

	parsed := script.Parse(string(raw))
	if err := h.storage.SaveScript(r.Context(), id, parsed); err != nil {
		h.logger.Error("Failed to save script", "project_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to save script")
		return
	}

	h.logger.Info("Script uploaded",
		"project_id", id,
		"sections", len(parsed.Sections),
		"characters", len(parsed.Characters))
	w.WriteHeader(http.StatusCreated)
	h.writeJSON(w, parsed)
}

func (h *ProjectsHandler) handleScriptRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	sc, err := h.storage.LoadScript(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load script", "project_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load script")
		return
	}
	if sc == nil {
		h.writeError(w, http.StatusNotFound, "Project has no script yet")
		return
	}
	h.writeJSON(w, sc)
}

func (h *ProjectsHandler) requireGet(w http.ResponseWriter, r *http.Request, fn func()) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, "GET")
		return
	}
	fn()
}

func (h *ProjectsHandler) methodNotAllowed(w http.ResponseWriter, allowed string) {
	h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: "+allowed)
}

func (h *ProjectsHandler) writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}

func (h *ProjectsHandler) writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}
