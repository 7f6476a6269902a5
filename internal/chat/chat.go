// Package chat orchestrates a conversational turn end to end: resolve the
// conversation, load bounded history, run the agent, persist both messages,
// and translate failures into a stable error taxonomy.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/taskyard/taskyard/internal/agent"
	"github.com/taskyard/taskyard/internal/conversation"
	"github.com/taskyard/taskyard/internal/log"
)

// Error taxonomy. The transport layer maps these to status codes; nothing
// below this package needs to know about HTTP.
var (
	// ErrEmptyMessage indicates a blank chat message.
	ErrEmptyMessage = errors.New("message must not be empty")
	// ErrAccessDenied indicates the conversation is missing or owned by
	// another user. The two cases are deliberately indistinguishable.
	ErrAccessDenied = errors.New("conversation not found or access denied")
	// ErrUpstreamUnavailable indicates the agent could not produce a turn.
	ErrUpstreamUnavailable = errors.New("upstream model unavailable")
	// ErrPersistence indicates a storage write failed after a successful
	// agent turn. Kept distinct from ErrUpstreamUnavailable so operators can
	// tell "the AI failed" from "we have a storage problem".
	ErrPersistence = errors.New("failed to persist conversation turn")
)

// ConversationStore is the persistence surface the orchestrator needs.
// *conversation.Store satisfies it.
type ConversationStore interface {
	Create(ctx context.Context, userID string) (*conversation.Conversation, error)
	Resolve(ctx context.Context, id uuid.UUID, userID string) (*conversation.Conversation, error)
	Append(ctx context.Context, conversationID uuid.UUID, userID, role, content string) (*conversation.Message, error)
	History(ctx context.Context, conversationID uuid.UUID, userID string, limit int) ([]conversation.Message, error)
}

// TurnRunner executes one agent turn. *agent.Runner satisfies it.
type TurnRunner interface {
	RunTurn(ctx context.Context, userID string, history []conversation.Message, message string) (*agent.Result, error)
}

// ToolInvocation reports one tool call made during the turn.
type ToolInvocation struct {
	Name   string `json:"name"`
	Result string `json:"result,omitempty"`
}

// Turn is the result of a completed chat turn.
type Turn struct {
	ConversationID  uuid.UUID        `json:"conversation_id"`
	Response        string           `json:"response"`
	ToolInvocations []ToolInvocation `json:"tool_calls"`
}

// Service orchestrates chat turns.
type Service struct {
	conversations ConversationStore
	runner        TurnRunner
	logger        log.Logger
	historyLimit  int
}

// NewService creates a chat Service. historyLimit bounds how many prior
// messages are loaded per turn.
func NewService(conversations ConversationStore, runner TurnRunner, logger log.Logger, historyLimit int) (*Service, error) {
	if conversations == nil {
		return nil, fmt.Errorf("conversation store is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("turn runner is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if historyLimit <= 0 {
		return nil, fmt.Errorf("history limit must be positive")
	}
	return &Service{
		conversations: conversations,
		runner:        runner,
		logger:        logger,
		historyLimit:  historyLimit,
	}, nil
}

// Send processes one user message and returns the assistant's reply.
//
// When conversationID is nil a new conversation is started. A supplied id
// must resolve to a conversation owned by userID or the turn fails with
// ErrAccessDenied. On success both the user message and the assistant
// response are persisted, in that order; if either write fails the whole
// turn fails with ErrPersistence and the generated text is not returned.
func (s *Service) Send(ctx context.Context, userID string, conversationID *uuid.UUID, message string) (*Turn, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	conv, err := s.resolveOrCreate(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	history, err := s.conversations.History(ctx, conv.ID, userID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: loading history: %v", ErrPersistence, err)
	}

	result, err := s.runner.RunTurn(ctx, userID, history, message)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	// User message first, then the assistant response. A failure on either
	// write fails the turn; the generated text is lost from storage and
	// deliberately not returned to the caller.
	if _, err := s.conversations.Append(ctx, conv.ID, userID, conversation.RoleUser, message); err != nil {
		s.logger.Error("persisting user message failed", "conversation_id", conv.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if _, err := s.conversations.Append(ctx, conv.ID, userID, conversation.RoleAssistant, result.Text); err != nil {
		s.logger.Error("persisting assistant message failed", "conversation_id", conv.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	invocations := make([]ToolInvocation, 0, len(result.Invocations))
	for _, inv := range result.Invocations {
		invocations = append(invocations, ToolInvocation{Name: inv.Name, Result: inv.Result})
	}

	s.logger.Debug("turn completed",
		"conversation_id", conv.ID,
		"user_id", userID,
		"tool_calls", len(invocations),
	)
	return &Turn{
		ConversationID:  conv.ID,
		Response:        result.Text,
		ToolInvocations: invocations,
	}, nil
}

// resolveOrCreate loads the named conversation for the user, or starts a
// fresh one when no id was supplied.
func (s *Service) resolveOrCreate(ctx context.Context, userID string, conversationID *uuid.UUID) (*conversation.Conversation, error) {
	if conversationID == nil {
		conv, err := s.conversations.Create(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("%w: creating conversation: %v", ErrPersistence, err)
		}
		return conv, nil
	}

	conv, err := s.conversations.Resolve(ctx, *conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving conversation: %v", ErrPersistence, err)
	}
	if conv == nil {
		return nil, ErrAccessDenied
	}
	return conv, nil
}
