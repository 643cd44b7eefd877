package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/GophTasks/internal/models"
)

const taskColumns = `id, name, finished, timestamp, due_date, user_id`

// TaskRepository stores tasks. Every mutating query is scoped by owner as
// well as by ID.
type TaskRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewTaskRepository creates a new TaskRepository using the provided *sql.DB.
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{DB: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(s rowScanner) (models.Task, error) {
	var t models.Task
	err := s.Scan(&t.ID, &t.Name, &t.Finished, &t.Timestamp, &t.DueDate, &t.UserID)
	return t, err
}

// ListByUser returns the tasks owned by userID in creation order.
// It never returns a nil slice.
func (r *TaskRepository) ListByUser(ctx context.Context, userID int64) ([]models.Task, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM task WHERE user_id = $1 ORDER BY timestamp, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}
	defer rows.Close()

	tasks := make([]models.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}
	return tasks, nil
}

// Create inserts t and sets t.ID.
func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO task (name, finished, timestamp, due_date, user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, t.Name, t.Finished, t.Timestamp, t.DueDate, t.UserID).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetByID returns the task with the given ID regardless of owner, or
// ErrNotFound.
func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM task WHERE id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select task: %w", err)
	}
	return &t, nil
}

// Update writes the mutable fields of t (name, due date, finished). The row
// must belong to t.UserID; otherwise nothing changes and ErrNotFound is
// returned.
func (r *TaskRepository) Update(ctx context.Context, t *models.Task) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE task SET name = $1, due_date = $2, finished = $3
		WHERE id = $4 AND user_id = $5
	`, t.Name, t.DueDate, t.Finished, t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return expectOneRow(res)
}

// Delete removes the task with the given ID owned by userID, or returns
// ErrNotFound.
func (r *TaskRepository) Delete(ctx context.Context, id, userID int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM task WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
