package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/atinyakov/GophTasks/internal/middleware"
	"github.com/atinyakov/GophTasks/internal/models"
	"github.com/atinyakov/GophTasks/internal/service"
)

// TaskService defines the task operations used by the page and API handlers.
// Every call names the requesting user.
type TaskService interface {
	ListForUser(ctx context.Context, userID int64) ([]models.Task, error)
	Create(ctx context.Context, userID int64, name string, dueDate time.Time) (*models.Task, error)
	GetOwned(ctx context.Context, taskID, requesterID int64) (*models.Task, error)
	Update(ctx context.Context, taskID, requesterID int64, upd models.TaskUpdate) (*models.Task, error)
	Delete(ctx context.Context, taskID, requesterID int64) error
}

// TaskHandler serves the dashboard and the task forms.
type TaskHandler struct {
	*Pages
	TaskService TaskService
	Validate    *validator.Validate
}

// Dashboard lists the current user's tasks.
func (h *TaskHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	tasks, err := h.TaskService.ListForUser(r.Context(), userID)
	if err != nil {
		h.internalError(w, "list tasks", err)
		return
	}

	data := h.data(w, r, "Dashboard")
	data.Tasks = tasks
	h.render(w, http.StatusOK, "dashboard", data)
}

// AddTaskPage renders an empty task form.
func (h *TaskHandler) AddTaskPage(w http.ResponseWriter, r *http.Request) {
	h.renderAdd(w, r, TaskForm{}, nil)
}

// AddTask creates a task from the submitted form.
func (h *TaskHandler) AddTask(w http.ResponseWriter, r *http.Request) {
	form, due, errs, ok := h.readTaskForm(w, r)
	if !ok {
		return
	}
	if len(errs) > 0 {
		h.renderAdd(w, r, form, errs)
		return
	}

	userID := middleware.GetUserIDFromContext(r.Context())
	_, err := h.TaskService.Create(r.Context(), userID, form.Name, due)
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		h.renderAdd(w, r, form, map[string]string{verr.Field: verr.Message})
		return
	case err != nil:
		h.internalError(w, "create task", err)
		return
	}

	h.flash(w, r, "success", "Task added successfully!")
	h.redirect(w, r, "/dashboard")
}

func (h *TaskHandler) renderAdd(w http.ResponseWriter, r *http.Request, form TaskForm, errs map[string]string) {
	data := h.data(w, r, "Add Task")
	data.Form = form
	data.Errors = errs
	data.Action = "/add_task"
	data.SubmitText = "Add Task"
	h.render(w, http.StatusOK, "task_form", data)
}

// UpdateTaskPage renders the form prefilled with the task.
func (h *TaskHandler) UpdateTaskPage(w http.ResponseWriter, r *http.Request) {
	task, ok := h.ownedTask(w, r, "You do not have permission to edit this task.")
	if !ok {
		return
	}
	form := TaskForm{
		Name:     task.Name,
		DueDate:  task.DueDate.Format(time.DateOnly),
		Finished: task.Finished,
	}
	h.renderUpdate(w, r, task.ID, form, nil)
}

// UpdateTask writes the submitted name, due date and finished flag.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	task, ok := h.ownedTask(w, r, "You do not have permission to edit this task.")
	if !ok {
		return
	}
	form, due, errs, ok := h.readTaskForm(w, r)
	if !ok {
		return
	}
	if len(errs) > 0 {
		h.renderUpdate(w, r, task.ID, form, errs)
		return
	}

	userID := middleware.GetUserIDFromContext(r.Context())
	_, err := h.TaskService.Update(r.Context(), task.ID, userID, models.TaskUpdate{
		Name:     &form.Name,
		DueDate:  &due,
		Finished: &form.Finished,
	})
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		h.renderUpdate(w, r, task.ID, form, map[string]string{verr.Field: verr.Message})
		return
	case !h.handleTaskError(w, r, err, "You do not have permission to edit this task."):
		return
	}

	h.flash(w, r, "success", "Task updated successfully!")
	h.redirect(w, r, "/dashboard")
}

func (h *TaskHandler) renderUpdate(w http.ResponseWriter, r *http.Request, id int64, form TaskForm, errs map[string]string) {
	data := h.data(w, r, "Update Task")
	data.Form = form
	data.Errors = errs
	data.Action = "/update_task/" + formatID(id)
	data.SubmitText = "Update Task"
	h.render(w, http.StatusOK, "task_form", data)
}

// DeleteTask removes the task.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	userID := middleware.GetUserIDFromContext(r.Context())
	err := h.TaskService.Delete(r.Context(), id, userID)
	if !h.handleTaskError(w, r, err, "You do not have permission to delete this task.") {
		return
	}

	h.flash(w, r, "success", "Task deleted successfully!")
	h.redirect(w, r, "/dashboard")
}

// ownedTask loads the {id} task on behalf of the current user. It writes the
// response and returns false when the task is missing or foreign.
func (h *TaskHandler) ownedTask(w http.ResponseWriter, r *http.Request, forbidden string) (*models.Task, bool) {
	id, ok := taskID(r)
	if !ok {
		http.NotFound(w, r)
		return nil, false
	}

	userID := middleware.GetUserIDFromContext(r.Context())
	task, err := h.TaskService.GetOwned(r.Context(), id, userID)
	if !h.handleTaskError(w, r, err, forbidden) {
		return nil, false
	}
	return task, true
}

// handleTaskError maps a guarded task error to a response. It returns true
// when err is nil and the caller should go on.
func (h *TaskHandler) handleTaskError(w http.ResponseWriter, r *http.Request, err error, forbidden string) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, service.ErrNotFound):
		http.NotFound(w, r)
	case errors.Is(err, service.ErrForbidden):
		h.flash(w, r, "danger", forbidden)
		h.redirect(w, r, "/dashboard")
	default:
		h.internalError(w, "task operation", err)
	}
	return false
}

// readTaskForm parses and validates the task form. ok is false when a
// response has already been written.
func (h *TaskHandler) readTaskForm(w http.ResponseWriter, r *http.Request) (TaskForm, time.Time, map[string]string, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return TaskForm{}, time.Time{}, nil, false
	}
	form := parseTaskForm(r)

	errs, err := fieldErrors(h.Validate.Struct(form))
	if err != nil {
		h.internalError(w, "validate task form", err)
		return form, time.Time{}, nil, false
	}
	if len(errs) > 0 {
		return form, time.Time{}, errs, true
	}

	due, err := time.ParseInLocation(time.DateOnly, form.DueDate, time.UTC)
	if err != nil {
		return form, time.Time{}, map[string]string{"due_date": "Not a valid date value."}, true
	}
	return form, due, nil, true
}
