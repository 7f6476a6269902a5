package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// taskCols is the standard SELECT column list for scanTasks.
const taskCols = `id, user_id, title, description, completed, created_at, updated_at`

// Store manages task persistence backed by PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a task Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Add inserts a new task for the user. Title and description are stored
// trimmed; validation of emptiness and length is the caller's concern.
func (s *Store) Add(ctx context.Context, userID, title, description string) (*Task, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	t := &Task{}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tasks (user_id, title, description)
		 VALUES ($1, $2, $3)
		 RETURNING `+taskCols,
		userID, title, description,
	).Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting task: %w", err)
	}

	s.logger.Debug("added task", "id", t.ID, "user_id", userID)
	return t, nil
}

// List returns the user's tasks, most recent first, optionally filtered by
// completion state.
func (s *Store) List(ctx context.Context, userID string, filter Filter) ([]*Task, error) {
	query := `SELECT ` + taskCols + ` FROM tasks WHERE user_id = $1`
	switch filter {
	case FilterCompleted:
		query += ` AND completed = true`
	case FilterIncomplete:
		query += ` AND completed = false`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// Get returns a task by id, scoped to the user.
// Returns ErrNotFound when the task is absent or owned by another user;
// the two cases are intentionally indistinguishable.
func (s *Store) Get(ctx context.Context, id uuid.UUID, userID string) (*Task, error) {
	t := &Task{}
	err := s.pool.QueryRow(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}
	return t, nil
}

// findByTitle locates a task by case-insensitive exact title match, scoped
// to the user. Duplicate titles resolve to the oldest match; callers should
// prefer id-based operations when precision matters.
func (s *Store) findByTitle(ctx context.Context, q querier, userID, title string) (*Task, error) {
	t := &Task{}
	err := q.QueryRow(ctx,
		`SELECT `+taskCols+` FROM tasks
		 WHERE user_id = $1 AND lower(title) = lower($2)
		 ORDER BY created_at ASC, id ASC
		 LIMIT 1`,
		userID, strings.TrimSpace(title),
	).Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding task by title: %w", err)
	}
	return t, nil
}

// UpdateByTitle updates the first task matching the title for the user.
// Only non-nil fields are applied. Returns ErrNotFound on a title miss.
func (s *Store) UpdateByTitle(ctx context.Context, userID, matchTitle string, newTitle, newDescription *string) (*Task, error) {
	t, err := s.findByTitle(ctx, s.pool, userID, matchTitle)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, t.ID, userID, newTitle, newDescription, nil)
}

// CompleteByTitle marks the first task matching the title as completed.
// The flag is set unconditionally to true, not toggled.
// Returns ErrNotFound on a title miss.
func (s *Store) CompleteByTitle(ctx context.Context, userID, matchTitle string) (*Task, error) {
	t, err := s.findByTitle(ctx, s.pool, userID, matchTitle)
	if err != nil {
		return nil, err
	}
	completed := true
	return s.update(ctx, t.ID, userID, nil, nil, &completed)
}

// DeleteByTitle removes the first task matching the title for the user.
// Returns the deleted task's stored title, or ErrNotFound on a miss.
func (s *Store) DeleteByTitle(ctx context.Context, userID, matchTitle string) (string, error) {
	t, err := s.findByTitle(ctx, s.pool, userID, matchTitle)
	if err != nil {
		return "", err
	}
	if err := s.Delete(ctx, t.ID, userID); err != nil {
		return "", err
	}
	return t.Title, nil
}

// Update applies the given fields to a task by id, scoped to the user.
// Returns ErrNotFound when the task is absent or owned by another user.
func (s *Store) Update(ctx context.Context, id uuid.UUID, userID string, newTitle, newDescription *string, completed *bool) (*Task, error) {
	return s.update(ctx, id, userID, newTitle, newDescription, completed)
}

func (s *Store) update(ctx context.Context, id uuid.UUID, userID string, newTitle, newDescription *string, completed *bool) (*Task, error) {
	var titleArg, descArg *string
	if newTitle != nil {
		v := strings.TrimSpace(*newTitle)
		titleArg = &v
	}
	if newDescription != nil {
		v := strings.TrimSpace(*newDescription)
		descArg = &v
	}

	t := &Task{}
	err := s.pool.QueryRow(ctx,
		`UPDATE tasks
		 SET title = COALESCE($3, title),
		     description = COALESCE($4, description),
		     completed = COALESCE($5, completed),
		     updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+taskCols,
		id, userID, titleArg, descArg, completed,
	).Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating task %s: %w", id, err)
	}

	s.logger.Debug("updated task", "id", id, "user_id", userID)
	return t, nil
}

// Delete removes a task by id, scoped to the user.
// Returns ErrNotFound when the task is absent or owned by another user.
func (s *Store) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted task", "id", id, "user_id", userID)
	return nil
}

// scanTasks reads Task structs from pgx.Rows (standard column set).
func scanTasks(rows pgx.Rows) ([]*Task, error) {
	var tasks []*Task
	for rows.Next() {
		t := &Task{}
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.Title, &t.Description,
			&t.Completed, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}
