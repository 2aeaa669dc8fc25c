package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bytebuddy/bytebuddy/internal/auth"
	"github.com/bytebuddy/bytebuddy/internal/chat"
	"github.com/bytebuddy/bytebuddy/internal/conversation"
	"github.com/bytebuddy/bytebuddy/internal/handler/dto"
	"github.com/bytebuddy/bytebuddy/internal/middleware"
	"github.com/bytebuddy/bytebuddy/internal/navigation"
)

// ConversationHandler handles conversation and chat endpoints. All routes
// require a session.
type ConversationHandler struct {
	registry *conversation.Registry
	chat     *chat.Manager
	logger   *slog.Logger
}

// NewConversationHandler creates a new ConversationHandler.
func NewConversationHandler(registry *conversation.Registry, manager *chat.Manager, logger *slog.Logger) *ConversationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationHandler{
		registry: registry,
		chat:     manager,
		logger:   logger.With(slog.String("component", "conversation_handler")),
	}
}

// store returns the caller's conversation store. A failed load leaves the
// store empty and loaded; it is logged and the request carries on.
func (h *ConversationHandler) store(r *http.Request) *conversation.Store {
	identityID := auth.IdentityIDFromContext(r.Context())
	s, err := h.registry.Get(r.Context(), identityID)
	if err != nil {
		h.logger.Warn("conversation history unavailable",
			slog.String("identity_id", identityID),
			slog.String("error", err.Error()),
		)
	}
	return s
}

// List handles GET /api/v1/conversations.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	snap := h.store(r).Snapshot()
	writeJSON(w, http.StatusOK, dto.ConversationListResponse{
		Conversations: snap.Conversations,
		Loaded:        snap.Loaded,
		Landing:       navigation.Landing(snap),
	})
}

// Create handles POST /api/v1/conversations.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	c, err := h.store(r).Create(r.Context())
	if err != nil {
		h.logger.Error("failed to create conversation", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Could not start a new chat. Please try again.")
		return
	}
	writeJSON(w, http.StatusCreated, dto.ConversationResponse{Conversation: c, State: chat.StateIdle})
}

// Get handles GET /api/v1/conversations/{id}.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	s := h.store(r)
	id := chi.URLParam(r, "id")

	c, ok := s.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, dto.ConversationResponse{
		Conversation: c,
		State:        h.chat.Controller(s, id).State(),
	})
}

// UpdateTitle handles PATCH /api/v1/conversations/{id}.
func (h *ConversationHandler) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateTitleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validate(w, middleware.Field{Name: "title", Value: req.Title, Max: middleware.MaxTitleLength}) {
		return
	}

	c, err := h.store(r).UpdateTitle(r.Context(), chi.URLParam(r, "id"), req.Title)
	if err != nil {
		h.writeConversationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Delete handles DELETE /api/v1/conversations/{id}. The optional
// ?selected= names the conversation the client shows; it defaults to the
// deleted one.
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	s := h.store(r)
	id := chi.URLParam(r, "id")

	after, err := s.Delete(r.Context(), id)
	if err != nil {
		h.writeConversationError(w, err)
		return
	}
	h.chat.Forget(s.IdentityID(), id)

	selected := r.URL.Query().Get("selected")
	if selected == "" {
		selected = id
	}
	writeJSON(w, http.StatusOK, dto.DeleteConversationResponse{Next: navigation.AfterDelete(after, selected)})
}

// SendMessage handles POST /api/v1/conversations/{id}/messages. It blocks
// until the assistant reply is in place.
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req dto.SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validate(w, middleware.Field{Name: "content", Value: req.Content, Max: middleware.MaxMessageLength, Multiline: true}) {
		return
	}

	s := h.store(r)
	id := chi.URLParam(r, "id")
	if _, ok := s.Get(id); !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Conversation not found")
		return
	}

	out, err := h.chat.Controller(s, id).Submit(r.Context(), req.Content)
	if err != nil {
		h.writeConversationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ConversationHandler) writeConversationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Conversation not found")
	case errors.Is(err, conversation.ErrEmptyTitle):
		writeError(w, http.StatusBadRequest, "INVALID_TITLE", "Title must not be empty.")
	case errors.Is(err, chat.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, "EMPTY_MESSAGE", "Message must not be empty.")
	case errors.Is(err, chat.ErrBusy):
		writeError(w, http.StatusConflict, "REPLY_PENDING", "Please wait for the current reply.")
	default:
		h.logger.Error("conversation operation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong. Please try again.")
	}
}
