// Package task provides user-scoped task storage backed by PostgreSQL.
//
// Every read and write is filtered by the owning user id. This is the sole
// isolation mechanism between tenants: a task fetched for one user is never
// returned or mutated on behalf of another.
package task

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates the task does not exist for the given user.
	ErrNotFound = errors.New("task not found")
)

// MaxTitleLength is the maximum allowed task title length in characters.
const MaxTitleLength = 200

// Task is a single to-do item belonging to exactly one user.
type Task struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Filter selects which tasks List returns.
type Filter string

// List filters. Unknown values are treated as FilterAll.
const (
	FilterAll        Filter = "all"
	FilterCompleted  Filter = "completed"
	FilterIncomplete Filter = "incomplete"
)

// NormalizeFilter maps arbitrary input to a known Filter.
// Unknown values fall back to FilterAll.
func NormalizeFilter(s string) Filter {
	switch Filter(s) {
	case FilterCompleted:
		return FilterCompleted
	case FilterIncomplete:
		return FilterIncomplete
	default:
		return FilterAll
	}
}
