package repository

import (
	"context"
	"time"

	"github.com/sakif/mychat/internal/model"
)

// UserRepository is the persistence contract for accounts and their roles.
//
// Lookups by username/email are case-insensitive. GetBy* methods return the
// user with Roles populated. Create and Update surface uniqueness collisions
// as apperror.ErrConflict with the offending field set.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, user *model.User) error
	// Delete removes the user; their chat messages go with them (FK cascade).
	Delete(ctx context.Context, id string) error

	AddRole(ctx context.Context, userID, role string) error
	GetRoles(ctx context.Context, userID string) ([]string, error)

	// SetLockout overwrites lockout_end (nil clears it) and the failed
	// access counter in a single statement, so unblock can't clear one
	// without the other.
	SetLockout(ctx context.Context, userID string, lockoutEnd *time.Time, failedAccess int) error
}

// MessageRepository is the persistence contract for the chat feed.
type MessageRepository interface {
	// Insert persists a message and fills in its store-assigned ID.
	Insert(ctx context.Context, msg *model.ChatMessage) error
	// Latest returns the most recent limit messages ordered ascending by
	// (sent_at, id) — the recency window is selected descending first.
	Latest(ctx context.Context, limit int) ([]model.ChatMessage, error)
	// Since returns every message with id > afterID ascending by
	// (sent_at, id). No upper bound.
	Since(ctx context.Context, afterID int64) ([]model.ChatMessage, error)
	Delete(ctx context.Context, id int64) error
}
