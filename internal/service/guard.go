package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/atinyakov/GophTasks/internal/models"
	"github.com/atinyakov/GophTasks/internal/repository"
)

// TaskGetter loads a task by ID regardless of owner.
type TaskGetter interface {
	GetByID(ctx context.Context, id int64) (*models.Task, error)
}

// Guard enforces task ownership. Existence is checked before ownership:
// a missing task is ErrNotFound, a foreign one ErrForbidden.
type Guard struct {
	tasks TaskGetter
}

// NewGuard returns a Guard backed by tasks.
func NewGuard(tasks TaskGetter) *Guard {
	return &Guard{tasks: tasks}
}

// Authorize returns the task when requesterID owns it.
func (g *Guard) Authorize(ctx context.Context, taskID, requesterID int64) (*models.Task, error) {
	task, err := g.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load task %d: %w", taskID, err)
	}
	if err := CheckOwner(task, requesterID); err != nil {
		return nil, err
	}
	return task, nil
}

// CheckOwner returns ErrForbidden unless task belongs to requesterID.
func CheckOwner(task *models.Task, requesterID int64) error {
	if task.UserID != requesterID {
		return ErrForbidden
	}
	return nil
}
