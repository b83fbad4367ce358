package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/sakif/mychat/internal/apperror"
	"github.com/sakif/mychat/internal/auth"
	"github.com/sakif/mychat/internal/avatar"
	"github.com/sakif/mychat/internal/model"
	"github.com/sakif/mychat/internal/repository"
)

// Hand-written in-memory mocks, one per repository interface. They keep the
// service tests free of SQLite while exercising the same contracts the real
// store honours (case-insensitive lookups, not-found sentinels, monotonic
// message ids).

type mockUserRepo struct {
	users  map[string]*model.User
	roles  map[string][]string
	nextID int
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users: make(map[string]*model.User),
		roles: make(map[string][]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if strings.EqualFold(u.Username, user.Username) {
			return &apperror.AppError{Err: apperror.ErrConflict, Field: "username", Message: "username is already taken"}
		}
		if strings.EqualFold(u.Email, user.Email) {
			return &apperror.AppError{Err: apperror.ErrConflict, Field: "email", Message: "email is already in use"}
		}
	}
	m.nextID++
	user.ID = fmt.Sprintf("user-%d", m.nextID)
	if user.AvatarPath == "" {
		user.AvatarPath = model.DefaultAvatarPath
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return m.withRoles(u), nil
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return m.withRoles(u), nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return m.withRoles(u), nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (m *mockUserRepo) List(_ context.Context) ([]model.User, error) {
	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *m.withRoles(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return apperror.NotFound("user", user.ID)
	}
	user.UpdatedAt = time.Now().UTC()
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(m.users, id)
	delete(m.roles, id)
	return nil
}

func (m *mockUserRepo) AddRole(_ context.Context, userID, role string) error {
	for _, r := range m.roles[userID] {
		if r == role {
			return nil
		}
	}
	m.roles[userID] = append(m.roles[userID], role)
	return nil
}

func (m *mockUserRepo) GetRoles(_ context.Context, userID string) ([]string, error) {
	return append([]string(nil), m.roles[userID]...), nil
}

func (m *mockUserRepo) SetLockout(_ context.Context, userID string, lockoutEnd *time.Time, failedAccess int) error {
	u, ok := m.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	if lockoutEnd != nil {
		t := *lockoutEnd
		u.LockoutEnd = &t
	} else {
		u.LockoutEnd = nil
	}
	u.FailedAccess = failedAccess
	return nil
}

func (m *mockUserRepo) withRoles(u *model.User) *model.User {
	out := *u
	out.Roles = append([]string(nil), m.roles[u.ID]...)
	return &out
}

type mockMessageRepo struct {
	messages []model.ChatMessage
	nextID   int64
}

var _ repository.MessageRepository = (*mockMessageRepo)(nil)

func newMockMessageRepo() *mockMessageRepo {
	return &mockMessageRepo{}
}

func (m *mockMessageRepo) Insert(_ context.Context, msg *model.ChatMessage) error {
	m.nextID++
	msg.ID = m.nextID
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *mockMessageRepo) Latest(_ context.Context, limit int) ([]model.ChatMessage, error) {
	sorted := append([]model.ChatMessage(nil), m.messages...)
	// Window by recency (desc), then flip to chronological.
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].SentAt.Equal(sorted[j].SentAt) {
			return sorted[i].SentAt.After(sorted[j].SentAt)
		}
		return sorted[i].ID > sorted[j].ID
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
		sorted[i], sorted[j] = sorted[j], sorted[i]
	}
	return sorted, nil
}

func (m *mockMessageRepo) Since(_ context.Context, afterID int64) ([]model.ChatMessage, error) {
	out := []model.ChatMessage{}
	for _, msg := range m.messages {
		if msg.ID > afterID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].SentAt.Before(out[j].SentAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *mockMessageRepo) Delete(_ context.Context, id int64) error {
	for i, msg := range m.messages {
		if msg.ID == id {
			m.messages = append(m.messages[:i], m.messages[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("message", fmt.Sprint(id))
}

// =========================================================================
// SHARED HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testAvatarStore(t *testing.T) *avatar.Store {
	t.Helper()
	store, err := avatar.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("avatar.NewStore: %v", err)
	}
	return store
}

func newTestUserService(t *testing.T) (*UserService, *mockUserRepo) {
	t.Helper()
	repo := newMockUserRepo()
	svc := NewUserService(repo, testAvatarStore(t), auth.NewPasswordServiceForTest(4), testLogger())
	return svc, repo
}
