package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/taskyard/taskyard/internal/conversation"
	"github.com/taskyard/taskyard/internal/log"
)

// detailHistoryLimit bounds the messages returned by the detail endpoint.
const detailHistoryLimit = 1000

// ConversationSummary is one entry in the conversation list.
type ConversationSummary struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageResponse is one message in a conversation detail.
type MessageResponse struct {
	ID        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationDetail is a conversation with its message history.
type ConversationDetail struct {
	ID        uuid.UUID         `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Messages  []MessageResponse `json:"messages"`
}

// ConversationHandler handles read-only conversation endpoints.
type ConversationHandler struct {
	store  *conversation.Store
	logger log.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(store *conversation.Store, logger log.Logger) *ConversationHandler {
	return &ConversationHandler{store: store, logger: logger}
}

// RegisterRoutes registers conversation routes on the given mux.
func (h *ConversationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/conversations", h.list)
	mux.HandleFunc("GET /api/conversations/{id}", h.detail)
}

func (h *ConversationHandler) list(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		unauthorized(w)
		return
	}

	convs, err := h.store.List(r.Context(), userID, 50, 0)
	if err != nil {
		h.logger.Error("listing conversations failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list conversations")
		return
	}

	summaries := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		summaries = append(summaries, ConversationSummary{
			ID:        c.ID,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *ConversationHandler) detail(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		unauthorized(w)
		return
	}

	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	conv, err := h.store.Resolve(r.Context(), id, userID)
	if err != nil {
		h.logger.Error("resolving conversation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to load conversation")
		return
	}
	if conv == nil {
		writeError(w, http.StatusNotFound, "not_found", "Conversation not found")
		return
	}

	msgs, err := h.store.History(r.Context(), id, userID, detailHistoryLimit)
	if err != nil {
		h.logger.Error("loading history failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to load conversation")
		return
	}

	detail := ConversationDetail{
		ID:        conv.ID,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
		Messages:  make([]MessageResponse, 0, len(msgs)),
	}
	for _, m := range msgs {
		detail.Messages = append(detail.Messages, MessageResponse{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, detail)
}
