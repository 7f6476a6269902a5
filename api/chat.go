package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/taskyard/taskyard/internal/chat"
	"github.com/taskyard/taskyard/internal/log"
)

// upstreamUnavailableMessage is returned when the model provider fails.
const upstreamUnavailableMessage = "The AI service is temporarily unavailable. Please try again in a moment."

// ChatService processes chat turns. *chat.Service satisfies it.
type ChatService interface {
	Send(ctx context.Context, userID string, conversationID *uuid.UUID, message string) (*chat.Turn, error)
}

// ChatRequest is the POST /api/chat request body.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse is the POST /api/chat response body.
type ChatResponse struct {
	ConversationID string               `json:"conversation_id"`
	Response       string               `json:"response"`
	ToolCalls      []chat.ToolInvocation `json:"tool_calls"`
}

// ChatHandler handles the chat endpoint.
type ChatHandler struct {
	svc    ChatService
	logger log.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc ChatService, logger log.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.handleChat)
}

// handleChat processes one chat turn. Status mapping:
//
//	400 - empty message or malformed body
//	401 - missing identity header
//	403 - conversation missing or owned by another user
//	502 - model provider unreachable or erroring
//	500 - storage failure after a successful turn
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		unauthorized(w)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	var conversationID *uuid.UUID
	if req.ConversationID != "" {
		id, err := uuid.Parse(req.ConversationID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "conversation_id must be a valid UUID")
			return
		}
		conversationID = &id
	}

	turn, err := h.svc.Send(r.Context(), userID, conversationID, req.Message)
	if err != nil {
		h.writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		ConversationID: turn.ConversationID.String(),
		Response:       turn.Response,
		ToolCalls:      turn.ToolInvocations,
	})
}

// writeChatError maps the orchestrator's error taxonomy onto HTTP statuses.
func (h *ChatHandler) writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "validation_failed", "Message must not be empty")
	case errors.Is(err, chat.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "access_denied", "Conversation not found or access denied")
	case errors.Is(err, chat.ErrUpstreamUnavailable):
		h.logger.Error("chat turn failed upstream", "error", err)
		writeError(w, http.StatusBadGateway, "upstream_unavailable", upstreamUnavailableMessage)
	case errors.Is(err, chat.ErrPersistence):
		h.logger.Error("chat turn failed to persist", "error", err)
		writeError(w, http.StatusInternalServerError, "persistence_error", "Failed to save the conversation. Please try again.")
	default:
		h.logger.Error("chat turn failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}
