package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/taskyard/taskyard/internal/log"
	"github.com/taskyard/taskyard/internal/task"
)

// TaskCreateRequest is the POST /api/tasks request body.
type TaskCreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// TaskUpdateRequest is the PUT /api/tasks/{id} request body.
// Absent fields keep their current values.
type TaskUpdateRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

// TaskHandler handles the direct task CRUD endpoints. These bypass the
// agent entirely; the Tool Registry covers the conversational path.
type TaskHandler struct {
	store  *task.Store
	logger log.Logger
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(store *task.Store, logger log.Logger) *TaskHandler {
	return &TaskHandler{store: store, logger: logger}
}

// RegisterRoutes registers task routes on the given mux.
func (h *TaskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tasks", h.list)
	mux.HandleFunc("POST /api/tasks", h.create)
	mux.HandleFunc("GET /api/tasks/{id}", h.get)
	mux.HandleFunc("PUT /api/tasks/{id}", h.update)
	mux.HandleFunc("DELETE /api/tasks/{id}", h.delete)
}

func (h *TaskHandler) list(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		unauthorized(w)
		return
	}

	filter := task.NormalizeFilter(r.URL.Query().Get("filter"))
	tasks, err := h.store.List(r.Context(), userID, filter)
	if err != nil {
		h.logger.Error("listing tasks failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) create(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		unauthorized(w)
		return
	}

	var req TaskCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "Task title cannot be empty")
		return
	}
	if utf8.RuneCountInString(title) > task.MaxTitleLength {
		writeError(w, http.StatusBadRequest, "validation_failed", "Task title must be 200 characters or fewer")
		return
	}

	created, err := h.store.Add(r.Context(), userID, req.Title, req.Description)
	if err != nil {
		h.logger.Error("creating task failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to create task")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *TaskHandler) get(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		unauthorized(w)
		return
	}

	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	t, err := h.store.Get(r.Context(), id, userID)
	if errors.Is(err, task.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "Task not found")
		return
	}
	if err != nil {
		h.logger.Error("getting task failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to get task")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TaskHandler) update(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		unauthorized(w)
		return
	}

	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	var req TaskUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			writeError(w, http.StatusBadRequest, "validation_failed", "Task title cannot be empty")
			return
		}
		if utf8.RuneCountInString(title) > task.MaxTitleLength {
			writeError(w, http.StatusBadRequest, "validation_failed", "Task title must be 200 characters or fewer")
			return
		}
	}

	updated, err := h.store.Update(r.Context(), id, userID, req.Title, req.Description, req.Completed)
	if errors.Is(err, task.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "Task not found")
		return
	}
	if err != nil {
		h.logger.Error("updating task failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *TaskHandler) delete(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		unauthorized(w)
		return
	}

	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	err := h.store.Delete(r.Context(), id, userID)
	if errors.Is(err, task.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "Task not found")
		return
	}
	if err != nil {
		h.logger.Error("deleting task failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pathUUID parses the {id} path segment, writing a 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "id must be a valid UUID")
		return uuid.UUID{}, false
	}
	return id, true
}
