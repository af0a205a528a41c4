package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/halcyon-app/halcyon/internal/auth"
	"github.com/halcyon-app/halcyon/internal/chat"
	"github.com/halcyon-app/halcyon/internal/db"
	"github.com/halcyon-app/halcyon/internal/models"
)

// ChatService is the pipeline surface the handler invokes.
type ChatService interface {
	Send(ctx context.Context, ownerID string, req chat.Request) (*chat.Response, error)
}

// ConversationReader is the read/manage surface over durable
// conversations. Satisfied by *db.Database.
type ConversationReader interface {
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context, ownerID string) ([]models.Conversation, error)
	DeleteConversation(ctx context.Context, id, ownerID string) error
	RenameConversation(ctx context.Context, id, ownerID, title string) error
}

type Handler struct {
	chat   ChatService
	convs  ConversationReader
	logger *zap.Logger
}

func NewHandler(chatService ChatService, convs ConversationReader, logger *zap.Logger) *Handler {
	return &Handler{
		chat:   chatService,
		convs:  convs,
		logger: logger,
	}
}

// Routes registers the chat API on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/chat", h.HandleChat)
	mux.HandleFunc("/api/conversations", h.HandleConversations)
	mux.HandleFunc("/api/conversation", h.HandleConversation)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeChatError maps the failure taxonomy onto HTTP statuses. The kind
// rides in the envelope so the client recovers the exact classification;
// the status is for intermediaries. A response is either a complete
// success object or this envelope; no partial success is ever returned.
func (h *Handler) writeChatError(w http.ResponseWriter, err error) {
	kind := chat.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case chat.KindValidation:
		status = http.StatusBadRequest
	case chat.KindTransient, chat.KindProvider:
		status = http.StatusBadGateway
	case chat.KindPersistence:
		if errors.Is(err, db.ErrConversationNotFound) {
			status = http.StatusNotFound
		}
	}
	h.writeJSON(w, status, errorResponse{
		Error: err.Error(),
		Code:  chat.CodeOf(err),
		Kind:  kind.String(),
	})
}

func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.From(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "no identity on request")
		return "", false
	}
	return id.UserID, true
}

func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	resp, err := h.chat.Send(r.Context(), ownerID, req)
	if err != nil {
		h.logger.Error("chat send failed",
			zap.Error(err),
			zap.String("conversation_id", req.ConversationID))
		h.writeChatError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	conversations, err := h.convs.ListConversations(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, conversations)
}

// HandleConversation serves point reads plus rename and delete for a
// single conversation, selected by the id query parameter.
func (h *Handler) HandleConversation(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "bad_request", "query parameter 'id' is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		conv, err := h.convs.GetConversation(r.Context(), id)
		if err != nil {
			h.conversationError(w, err)
			return
		}
		if conv.OwnerID != ownerID {
			h.writeError(w, http.StatusNotFound, "not_found", "conversation not found")
			return
		}
		h.writeJSON(w, http.StatusOK, conv)

	case http.MethodDelete:
		// Owner scoping makes someone else's conversation read as absent,
		// matching the GET arm.
		if err := h.convs.DeleteConversation(r.Context(), id, ownerID); err != nil {
			h.conversationError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case http.MethodPut:
		var req struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
			return
		}
		if err := h.convs.RenameConversation(r.Context(), id, ownerID, req.Title); err != nil {
			h.conversationError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)

	default:
		h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (h *Handler) conversationError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrConversationNotFound) {
		h.writeError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	h.logger.Error("conversation operation failed", zap.Error(err))
	h.writeError(w, http.StatusInternalServerError, "internal", "internal server error")
}
