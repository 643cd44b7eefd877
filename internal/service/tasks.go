package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/atinyakov/GophTasks/internal/models"
	"github.com/atinyakov/GophTasks/internal/repository"
)

// MaxTaskNameLength bounds the task name, in characters.
const MaxTaskNameLength = 150

// TaskRepository defines the persistence operations needed by the TaskService.
type TaskRepository interface {
	TaskGetter
	// ListByUser returns the user's tasks in creation order.
	ListByUser(ctx context.Context, userID int64) ([]models.Task, error)
	// Create inserts the task and assigns its ID.
	Create(ctx context.Context, t *models.Task) error
	// Update writes name, due date and finished for the row matching
	// both t.ID and t.UserID.
	Update(ctx context.Context, t *models.Task) error
	// Delete removes the row matching both id and userID.
	Delete(ctx context.Context, id, userID int64) error
}

// TaskService implements task management. Every call names the requesting
// user explicitly, and every mutation passes through the Guard.
type TaskService struct {
	repo  TaskRepository
	guard *Guard
	now   func() time.Time
}

// NewTaskService constructs a TaskService with the provided TaskRepository.
func NewTaskService(repo TaskRepository) *TaskService {
	return &TaskService{repo: repo, guard: NewGuard(repo), now: time.Now}
}

// ListForUser returns the tasks owned by userID, oldest first.
func (s *TaskService) ListForUser(ctx context.Context, userID int64) ([]models.Task, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Create adds a task for userID.
func (s *TaskService) Create(ctx context.Context, userID int64, name string, dueDate time.Time) (*models.Task, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if dueDate.IsZero() {
		return nil, invalid("due_date", "due date is required")
	}

	task := &models.Task{
		Name:      name,
		Timestamp: s.now().UTC(),
		DueDate:   dueDate.UTC(),
		UserID:    userID,
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// Get returns the task with the given ID, or ErrNotFound. It performs no
// ownership check; use GetOwned on behalf of a user.
func (s *TaskService) Get(ctx context.Context, taskID int64) (*models.Task, error) {
	task, err := s.repo.GetByID(ctx, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return task, err
}

// GetOwned returns the task if requesterID owns it.
func (s *TaskService) GetOwned(ctx context.Context, taskID, requesterID int64) (*models.Task, error) {
	return s.guard.Authorize(ctx, taskID, requesterID)
}

// Update applies the non-nil fields of upd. Owner, ID and creation time
// never change.
func (s *TaskService) Update(ctx context.Context, taskID, requesterID int64, upd models.TaskUpdate) (*models.Task, error) {
	task, err := s.guard.Authorize(ctx, taskID, requesterID)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		if err := validateName(*upd.Name); err != nil {
			return nil, err
		}
		task.Name = *upd.Name
	}
	if upd.DueDate != nil {
		if upd.DueDate.IsZero() {
			return nil, invalid("due_date", "due date is required")
		}
		task.DueDate = upd.DueDate.UTC()
	}
	if upd.Finished != nil {
		task.Finished = *upd.Finished
	}

	if err := s.repo.Update(ctx, task); err != nil {
		// Deleted between the check and the write.
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update task %d: %w", taskID, err)
	}
	return task, nil
}

// Delete removes the task if requesterID owns it.
func (s *TaskService) Delete(ctx context.Context, taskID, requesterID int64) error {
	task, err := s.guard.Authorize(ctx, taskID, requesterID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, task.ID, requesterID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete task %d: %w", taskID, err)
	}
	return nil
}

// Serialize converts a task into its external JSON representation.
func (s *TaskService) Serialize(t models.Task) models.TaskRecord {
	return Serialize(t)
}

// Serialize converts a task into its external JSON representation.
func Serialize(t models.Task) models.TaskRecord {
	return models.TaskRecord{
		ID:        t.ID,
		Name:      t.Name,
		Finished:  t.Finished,
		TimeStamp: FormatISO(t.Timestamp.UTC()) + "Z",
		DueDate:   FormatISO(t.DueDate.UTC()),
		UserID:    t.UserID,
	}
}

// FormatISO renders t as an offset-less ISO-8601 date-time. Microseconds
// are included only when non-zero.
func FormatISO(t time.Time) string {
	if t.Nanosecond()/1000 != 0 {
		return t.Format("2006-01-02T15:04:05.000000")
	}
	return t.Format("2006-01-02T15:04:05")
}

var isoLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
}

// ParseISODate parses an ISO-8601 date or date-time. Values without an
// offset are taken as UTC; values with one are converted to UTC.
func ParseISODate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, invalid("due_date", "Invalid date format. Use ISO 8601 (YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS)")
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("name", "name must not be empty")
	}
	if utf8.RuneCountInString(name) > MaxTaskNameLength {
		return invalid("name", fmt.Sprintf("name must be at most %d characters", MaxTaskNameLength))
	}
	return nil
}
