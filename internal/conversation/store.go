package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	convCols = `id, user_id, created_at, updated_at`
	msgCols  = `id, conversation_id, user_id, role, content, created_at`
)

// Store manages conversation and message persistence.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a conversation Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Create starts a new conversation for the user.
func (s *Store) Create(ctx context.Context, userID string) (*Conversation, error) {
	c := &Conversation{}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (user_id) VALUES ($1) RETURNING `+convCols,
		userID,
	).Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", c.ID, "user_id", userID)
	return c, nil
}

// Resolve returns the conversation if it exists and belongs to the user.
// Returns (nil, nil) when it is absent or owned by another user; callers
// decide whether that is fatal.
func (s *Store) Resolve(ctx context.Context, id uuid.UUID, userID string) (*Conversation, error) {
	c := &Conversation{}
	err := s.pool.QueryRow(ctx,
		`SELECT `+convCols+` FROM conversations WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving conversation %s: %w", id, err)
	}
	return c, nil
}

// Append inserts a message and bumps the conversation's updated_at in the
// same transaction. Fails with ErrNotFound if the conversation/user pairing
// does not exist; nothing is written in that case.
func (s *Store) Append(ctx context.Context, conversationID uuid.UUID, userID, role, content string) (*Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("rollback failed", "error", rbErr)
		}
	}()

	tag, err := tx.Exec(ctx,
		`UPDATE conversations SET updated_at = now() WHERE id = $1 AND user_id = $2`,
		conversationID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("touching conversation %s: %w", conversationID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	m := &Message{}
	err = tx.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, user_id, role, content)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+msgCols,
		conversationID, userID, role, content,
	).Scan(&m.ID, &m.ConversationID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing message: %w", err)
	}

	s.logger.Debug("appended message", "conversation_id", conversationID, "role", role)
	return m, nil
}

// History returns the most recent limit messages of the conversation in
// chronological order. The conversation must belong to the user; an absent
// or foreign conversation yields an empty history.
func (s *Store) History(ctx context.Context, conversationID uuid.UUID, userID string, limit int) ([]Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+msgCols+` FROM (
		     SELECT `+msgCols+`, seq FROM messages
		     WHERE conversation_id = $1 AND user_id = $2
		     ORDER BY seq DESC
		     LIMIT $3
		 ) recent
		 ORDER BY seq ASC`,
		conversationID, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		m := Message{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return msgs, nil
}

// List returns the user's conversations, most recently active first.
func (s *Store) List(ctx context.Context, userID string, limit, offset int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+convCols+` FROM conversations
		 WHERE user_id = $1
		 ORDER BY updated_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		c := Conversation{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}
	return convs, nil
}
