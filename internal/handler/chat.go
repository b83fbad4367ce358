package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/mychat/internal/apperror"
	"github.com/sakif/mychat/internal/auth"
	"github.com/sakif/mychat/internal/model"
	"github.com/sakif/mychat/internal/service"
)

// ChatHandler serves the group chat: the initial feed, the polling delta,
// and sends. All three require a signed-in user.
type ChatHandler struct {
	chat   *service.ChatService
	logger *slog.Logger
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(chat *service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

// feedResponse carries the messages plus the cursor the client should poll
// with next: the highest id in the batch, or its previous cursor when the
// batch is empty.
type feedResponse struct {
	Messages      []model.ChatMessage `json:"messages"`
	LastMessageID int64               `json:"lastMessageId"`
}

// HandleFeed returns the most recent messages, oldest first.
//
// HTTP: GET /chat
func (h *ChatHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chat.Feed(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, feedResponse{
		Messages:      messages,
		LastMessageID: lastID(messages, 0),
	})
}

// HandleUpdates returns messages newer than the client's cursor.
//
// HTTP: GET /chat/update?lastMessageId=N
//
// An up-to-date client gets an empty messages array and its cursor echoed
// back — polling is cheap to no-op.
func (h *ChatHandler) HandleUpdates(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("lastMessageId")
	cursor, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, apperror.ValidationFailed("lastMessageId", "cursor must be an integer"))
		return
	}

	messages, err := h.chat.Updates(r.Context(), cursor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, feedResponse{
		Messages:      messages,
		LastMessageID: lastID(messages, cursor),
	})
}

// sendRequest is the message payload.
type sendRequest struct {
	Content string `json:"content"`
}

// HandleSend posts a message as the signed-in user.
//
// HTTP: POST /chat/send — JSON body sendRequest.
//
// Responds with the stored message so the sender can render it immediately;
// everyone else sees it on their next poll.
func (h *ChatHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("sign in required"))
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	msg, err := h.chat.Send(r.Context(), principal.UserID, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// lastID returns the highest message id in the batch, or fallback when the
// batch is empty. Batches arrive oldest-first, so that's the final element.
func lastID(messages []model.ChatMessage, fallback int64) int64 {
	if len(messages) == 0 {
		return fallback
	}
	return messages[len(messages)-1].ID
}
