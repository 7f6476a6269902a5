// Package conversation provides persistent chat history backed by PostgreSQL.
//
// A conversation belongs to exactly one user. Resolution always pairs the
// conversation id with the requesting user id; a missing conversation and a
// foreign one are indistinguishable to callers.
package conversation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the conversation/user pairing does not exist.
var ErrNotFound = errors.New("conversation not found")

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation is a container for an ordered message history.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single utterance within a conversation.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
