package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/sakif/mychat/internal/apperror"
	"github.com/sakif/mychat/internal/model"
	"github.com/sakif/mychat/internal/repository"
)

// MessageStore implements repository.MessageRepository over the shared pool.
type MessageStore struct {
	conn *sql.DB
}

// compile-time interface check
var _ repository.MessageRepository = (*MessageStore)(nil)

// Insert persists a chat message and fills in the store-assigned ID.
// The AUTOINCREMENT id is what clients use as their polling cursor, so it
// must come from the database, monotonic and never reused.
func (db *MessageStore) Insert(ctx context.Context, msg *model.ChatMessage) error {
	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO chat_messages (user_id, text, sent_at) VALUES (?, ?, ?)`,
		msg.UserID,
		msg.Text,
		msg.SentAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading message id: %w", err)
	}
	msg.ID = id

	return nil
}

const messageSelect = `
	SELECT m.id, m.user_id, m.text, m.sent_at, u.username, u.avatar_path
	FROM chat_messages m
	JOIN users u ON u.id = m.user_id`

// Latest returns the most recent limit messages in chronological order.
//
// The inner query selects descending so the window is "the last N by
// recency"; the outer query flips that subset ascending for display. This
// is not the same as an ascending scan with an offset — when fewer than N
// messages exist they're all returned, and when more exist the oldest ones
// never enter the window. The id tie-break keeps equal timestamps (coarse
// clock, concurrent sends) in insertion order.
func (db *MessageStore) Latest(ctx context.Context, limit int) ([]model.ChatMessage, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, user_id, text, sent_at, username, avatar_path FROM (`+
		messageSelect+`
			ORDER BY m.sent_at DESC, m.id DESC
			LIMIT ?
		) ORDER BY sent_at ASC, id ASC`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: selecting latest messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// Since returns every message with id greater than afterID, ascending by
// (sent_at, id). Deliberately unbounded: the polling contract is that a
// stalled client catches up in one batch.
func (db *MessageStore) Since(ctx context.Context, afterID int64) ([]model.ChatMessage, error) {
	rows, err := db.conn.QueryContext(ctx,
		messageSelect+`
		WHERE m.id > ?
		ORDER BY m.sent_at ASC, m.id ASC`,
		afterID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: selecting messages after %d: %w", afterID, err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// Delete removes a single message by id.
func (db *MessageStore) Delete(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM chat_messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting message %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("message", strconv.FormatInt(id, 10))
	}

	return nil
}

func scanMessages(rows *sql.Rows) ([]model.ChatMessage, error) {
	messages := []model.ChatMessage{}
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.Text, &m.SentAt, &m.Username, &m.AvatarPath,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating messages: %w", err)
	}
	return messages, nil
}
