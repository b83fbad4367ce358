package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/mychat/internal/apperror"
	"github.com/sakif/mychat/internal/model"
	"github.com/sakif/mychat/internal/repository"
)

// FeedWindow is how many messages the initial page load shows.
const FeedWindow = 30

// ChatService is the core of the feed: it accepts new messages and serves
// the two read views the polling client uses — "latest N" on page load and
// "everything after my cursor" on refresh.
//
// It is stateless; concurrent sends are safe because each insert is
// independent and the store assigns monotonic ids.
type ChatService struct {
	messages repository.MessageRepository
	users    repository.UserRepository
	logger   *slog.Logger
}

// NewChatService creates a ChatService.
func NewChatService(messages repository.MessageRepository, users repository.UserRepository, logger *slog.Logger) *ChatService {
	return &ChatService{
		messages: messages,
		users:    users,
		logger:   logger,
	}
}

// Send validates, stamps, and persists a message, returning it for the
// sender's immediate local echo. Other clients pick it up on their next
// poll — there is no push fan-out.
//
// Rules: rejected when empty or whitespace-only, or when longer than 150
// characters (runes, not bytes). The text is stored as sent — the emptiness
// check trims for the comparison only, it does not rewrite the content.
func (s *ChatService) Send(ctx context.Context, userID, text string) (*model.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperror.ValidationFailed("content", "message must not be empty")
	}
	if utf8.RuneCountInString(text) > model.MaxMessageLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("message must be %d characters or less", model.MaxMessageLength))
	}

	// Resolve the sender up front: fills the denormalized author fields for
	// the echo and rejects a stale session whose user no longer exists.
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	msg := &model.ChatMessage{
		UserID: user.ID,
		Text:   text,
		SentAt: time.Now().UTC(),
	}

	if err := s.messages.Insert(ctx, msg); err != nil {
		s.logger.Error("failed to persist message",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/chat: sending message: %w", err)
	}

	msg.Username = user.Username
	msg.AvatarPath = user.AvatarPath

	s.logger.Debug("message sent",
		slog.Int64("messageID", msg.ID),
		slog.String("userID", userID),
	)

	return msg, nil
}

// Feed returns the initial view: the last FeedWindow messages by recency,
// presented oldest-first. The window-then-reverse shape lives in the store
// query; see MessageStore.Latest.
func (s *ChatService) Feed(ctx context.Context) ([]model.ChatMessage, error) {
	messages, err := s.messages.Latest(ctx, FeedWindow)
	if err != nil {
		return nil, fmt.Errorf("service/chat: loading feed: %w", err)
	}
	return messages, nil
}

// Updates returns every message newer than the client's cursor (the highest
// id it has rendered), oldest-first. An up-to-date client gets an empty
// slice, not an error.
func (s *ChatService) Updates(ctx context.Context, lastMessageID int64) ([]model.ChatMessage, error) {
	if lastMessageID < 0 {
		return nil, apperror.ValidationFailed("lastMessageId", "cursor must not be negative")
	}

	messages, err := s.messages.Since(ctx, lastMessageID)
	if err != nil {
		return nil, fmt.Errorf("service/chat: loading updates after %d: %w", lastMessageID, err)
	}
	return messages, nil
}

// DeleteMessage removes a message. Admin-only; the route gate enforces
// that, the service just deletes.
func (s *ChatService) DeleteMessage(ctx context.Context, id int64) error {
	if err := s.messages.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("message deleted", slog.Int64("messageID", id))
	return nil
}
