package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/GophTasks/internal/middleware"
	"github.com/atinyakov/GophTasks/internal/models"
	"github.com/atinyakov/GophTasks/internal/service"
)

const (
	errMissingFields = "Missing required fields: name and due_date"
	errInvalidBody   = "invalid JSON body"
	errAuthRequired  = "authentication required"
	errInternal      = "internal error"
)

// APIHandler serves the JSON task API.
type APIHandler struct {
	TaskService TaskService
	Log         *zap.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

type createTaskRequest struct {
	Name    *string `json:"name"`
	DueDate *string `json:"due_date"`
}

type updateTaskRequest struct {
	Name     *string `json:"name"`
	DueDate  *string `json:"due_date"`
	Finished *bool   `json:"finished"`
}

// ListTasks returns the current user's tasks.
//
// Response: 200 OK with an array of task records.
func (h *APIHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	tasks, err := h.TaskService.ListForUser(r.Context(), userID)
	if err != nil {
		h.fail(w, "list tasks", err)
		return
	}

	out := make([]models.TaskRecord, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, service.Serialize(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateTask adds a task for the current user.
//
// Request body: {"name": "...", "due_date": "YYYY-MM-DD"}.
// Response: 201 Created with the task record, 400 on missing fields, an
// unparseable date or an invalid name.
func (h *APIHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	// An empty body counts as missing fields.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, errInvalidBody)
		return
	}
	if req.Name == nil || req.DueDate == nil {
		writeError(w, http.StatusBadRequest, errMissingFields)
		return
	}

	due, err := service.ParseISODate(*req.DueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := middleware.GetUserIDFromContext(r.Context())
	task, err := h.TaskService.Create(r.Context(), userID, *req.Name, due)
	if err != nil {
		h.taskError(w, "create task", err)
		return
	}
	writeJSON(w, http.StatusCreated, service.Serialize(*task))
}

// GetTask returns one task owned by the current user.
func (h *APIHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		writeError(w, http.StatusNotFound, service.ErrNotFound.Error())
		return
	}

	userID := middleware.GetUserIDFromContext(r.Context())
	task, err := h.TaskService.GetOwned(r.Context(), id, userID)
	if err != nil {
		h.taskError(w, "get task", err)
		return
	}
	writeJSON(w, http.StatusOK, service.Serialize(*task))
}

// UpdateTask changes the fields present in the body.
//
// Request body: any of {"name", "due_date", "finished"}.
func (h *APIHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		writeError(w, http.StatusNotFound, service.ErrNotFound.Error())
		return
	}

	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidBody)
		return
	}

	upd := models.TaskUpdate{Name: req.Name, Finished: req.Finished}
	if req.DueDate != nil {
		due, err := service.ParseISODate(*req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		upd.DueDate = &due
	}

	userID := middleware.GetUserIDFromContext(r.Context())
	task, err := h.TaskService.Update(r.Context(), id, userID, upd)
	if err != nil {
		h.taskError(w, "update task", err)
		return
	}
	writeJSON(w, http.StatusOK, service.Serialize(*task))
}

// DeleteTask removes a task owned by the current user.
//
// Response: 204 No Content.
func (h *APIHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		writeError(w, http.StatusNotFound, service.ErrNotFound.Error())
		return
	}

	userID := middleware.GetUserIDFromContext(r.Context())
	if err := h.TaskService.Delete(r.Context(), id, userID); err != nil {
		h.taskError(w, "delete task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unauthorized answers anonymous API requests.
func (h *APIHandler) Unauthorized(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusUnauthorized, errAuthRequired)
}

func (h *APIHandler) taskError(w http.ResponseWriter, op string, err error) {
	var verr *service.ValidationError
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, service.ErrNotFound.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, service.ErrForbidden.Error())
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	default:
		h.fail(w, op, err)
	}
}

func (h *APIHandler) fail(w http.ResponseWriter, op string, err error) {
	h.Log.Error(op, zap.Error(err))
	writeError(w, http.StatusInternalServerError, errInternal)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
