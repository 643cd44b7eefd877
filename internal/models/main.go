// Package models defines the core data structures for users and tasks.
package models

import "time"

// User represents an application user with credentials.
type User struct {
	// ID is the unique identifier for the user.
	ID int64
	// Email is the login name chosen by the user. It is unique and compared
	// case-sensitively.
	Email string
	// PasswordHash is the bcrypt digest of the user's password.
	PasswordHash string
}

// GetID returns the user identifier. It lets *User act as a session identity.
func (u *User) GetID() int64 {
	return u.ID
}

// Task is a single to-do item owned by exactly one user.
type Task struct {
	// ID is the unique identifier for the task.
	ID int64
	// Name is the short description shown in the task list.
	Name string
	// Finished marks the task as done.
	Finished bool
	// Timestamp is the creation time in UTC. It never changes.
	Timestamp time.Time
	// DueDate is the caller-supplied deadline.
	DueDate time.Time
	// UserID is the owner of the task. It never changes.
	UserID int64
}

// TaskUpdate carries the mutable fields of a task. Nil fields are left as is.
type TaskUpdate struct {
	Name     *string
	DueDate  *time.Time
	Finished *bool
}

// TaskRecord is the external JSON representation of a task.
type TaskRecord struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Finished  bool   `json:"finished"`
	TimeStamp string `json:"time_stamp"`
	DueDate   string `json:"due_date"`
	UserID    int64  `json:"user_id"`
}
