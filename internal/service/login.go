package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/mychat/internal/apperror"
	"github.com/sakif/mychat/internal/auth"
	"github.com/sakif/mychat/internal/model"
	"github.com/sakif/mychat/internal/repository"
)

// Lockout policy defaults, overridable through LoginConfig.
const (
	DefaultMaxFailedAccess = 5
	DefaultLockoutDuration = 3650 * 24 * time.Hour
)

// LoginConfig tunes the failed-attempt lockout.
type LoginConfig struct {
	MaxFailedAccess int
	LockoutDuration time.Duration
}

// LoginService authenticates credentials and manages the lockout counter.
//
// Failure messages are deliberately uniform: an unknown identifier and a
// wrong password produce the identical error, so the login form can't be
// used to enumerate accounts. Only the locked state is reported distinctly.
type LoginService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	cfg       LoginConfig
	logger    *slog.Logger
}

// NewLoginService creates a LoginService. Zero values in cfg fall back to
// the package defaults.
func NewLoginService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	cfg LoginConfig,
	logger *slog.Logger,
) *LoginService {
	if cfg.MaxFailedAccess <= 0 {
		cfg.MaxFailedAccess = DefaultMaxFailedAccess
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = DefaultLockoutDuration
	}
	return &LoginService{
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		cfg:       cfg,
		logger:    logger,
	}
}

// LoginResult bundles the authenticated user with the issued session token
// so the handler can set the cookie and respond in one step.
type LoginResult struct {
	User     *model.User
	Token    string
	Lifetime time.Duration
}

// Login authenticates by username or email.
//
// On a wrong password the failed-access counter increments; reaching the
// configured maximum locks the account for LockoutDuration and resets the
// counter (the lockout replaces it). A successful sign-in clears both.
func (s *LoginService) Login(ctx context.Context, identifier, password string, rememberMe bool) (*LoginResult, error) {
	user, err := s.findByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// Same message as a wrong password — no enumeration.
			return nil, apperror.InvalidCredentials()
		}
		return nil, err
	}

	if user.IsLockedOut(time.Now()) {
		return nil, apperror.AccountLocked()
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if lerr := s.recordFailure(ctx, user); lerr != nil {
			return nil, lerr
		}
		return nil, apperror.InvalidCredentials()
	}

	// Success: clear lockout state and the counter together.
	if user.FailedAccess != 0 || user.LockoutEnd != nil {
		if err := s.users.SetLockout(ctx, user.ID, nil, 0); err != nil {
			return nil, err
		}
	}

	lifetime := auth.SessionDuration
	if rememberMe {
		lifetime = auth.RememberDuration
	}

	token, err := s.tokens.Generate(user.ID, user.Roles, lifetime)
	if err != nil {
		return nil, fmt.Errorf("service/login: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user signed in",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
		slog.Bool("rememberMe", rememberMe),
	)

	return &LoginResult{User: user, Token: token, Lifetime: lifetime}, nil
}

// findByIdentifier tries the identifier as a username first, then as an
// email — the login form accepts either.
func (s *LoginService) findByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	user, err := s.users.GetByUsername(ctx, identifier)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}
	return s.users.GetByEmail(ctx, identifier)
}

func (s *LoginService) recordFailure(ctx context.Context, user *model.User) error {
	failed := user.FailedAccess + 1
	if failed >= s.cfg.MaxFailedAccess {
		until := time.Now().Add(s.cfg.LockoutDuration)
		s.logger.Warn("account locked after repeated failures",
			slog.String("userID", user.ID),
			slog.Int("attempts", failed),
		)
		return s.users.SetLockout(ctx, user.ID, &until, 0)
	}
	return s.users.SetLockout(ctx, user.ID, user.LockoutEnd, failed)
}
