// Package service contains the business logic layer: validation, account
// rules, and the chat feed contract. Handlers parse HTTP and delegate here;
// repositories persist. Services return domain errors (apperror), never
// HTTP status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/mychat/internal/apperror"
	"github.com/sakif/mychat/internal/avatar"
	"github.com/sakif/mychat/internal/auth"
	"github.com/sakif/mychat/internal/model"
	"github.com/sakif/mychat/internal/repository"
	"github.com/sakif/mychat/internal/validation"
)

// Upload is an optional uploaded file: nil Data means "no file supplied".
type Upload struct {
	Data []byte
	Name string
}

// UserService handles registration, profile edits, and the admin account
// operations. The same age and uniqueness rules run on every path that
// creates or mutates a user — self-service and admin alike.
type UserService struct {
	users     repository.UserRepository
	avatars   *avatar.Store
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewUserService creates a UserService with all dependencies injected.
func NewUserService(
	users repository.UserRepository,
	avatars *avatar.Store,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		avatars:   avatars,
		passwords: passwords,
		logger:    logger,
	}
}

// Register creates a self-service account. The new user always gets the
// "user" role and, absent an upload, the default avatar.
func (s *UserService) Register(ctx context.Context, in validation.RegisterInput, upload *Upload) (*model.User, error) {
	return s.create(ctx, in, upload, model.RoleUser)
}

// CreateByAdmin is the admin-driven create. Exactly the requested role is
// granted — an admin asking for "admin" gets {"admin"}, with no implicit
// "user" membership. An empty role defaults to "user".
func (s *UserService) CreateByAdmin(ctx context.Context, in validation.RegisterInput, upload *Upload, role string) (*model.User, error) {
	if role == "" {
		role = model.RoleUser
	}
	return s.create(ctx, in, upload, role)
}

func (s *UserService) create(ctx context.Context, in validation.RegisterInput, upload *Upload, role string) (*model.User, error) {
	if err := validation.CheckRegister(in, time.Now()); err != nil {
		return nil, err
	}

	// Pre-check uniqueness so the caller gets a field-scoped error. The
	// schema still enforces it, so a race lost at commit time comes back
	// from Create as a conflict — that path is a store failure, not
	// re-validated, and never retried (a retry could double side effects).
	if err := s.checkUnique(ctx, in.Username, in.Email, ""); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/user: %w", err)
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		DateOfBirth:  in.DateOfBirth,
	}

	if upload != nil && len(upload.Data) > 0 {
		path, err := s.avatars.Save(upload.Data, upload.Name)
		if err != nil {
			return nil, fmt.Errorf("service/user: storing avatar: %w", err)
		}
		user.AvatarPath = path
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if err := s.users.AddRole(ctx, user.ID, role); err != nil {
		return nil, fmt.Errorf("service/user: granting role %s: %w", role, err)
	}
	user.Roles = []string{role}

	s.logger.Info("user created",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
		slog.String("role", role),
	)

	return user, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// List returns all users for the admin screen.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

// UpdateProfile applies a profile edit to the given target. The caller
// decides whose profile: self-service passes the authenticated user's own
// ID, the admin edit passes an arbitrary one — the rules are identical.
//
// A nil upload leaves the existing avatar path untouched.
func (s *UserService) UpdateProfile(ctx context.Context, targetID string, in validation.ProfileInput, upload *Upload) (*model.User, error) {
	user, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if err := validation.CheckProfile(in, time.Now()); err != nil {
		return nil, err
	}

	// Collision with a *different* id is an error; keeping (or re-typing)
	// your own current email is fine.
	if err := s.checkUnique(ctx, in.Username, in.Email, user.ID); err != nil {
		return nil, err
	}

	if upload != nil && len(upload.Data) > 0 {
		path, err := s.avatars.Save(upload.Data, upload.Name)
		if err != nil {
			return nil, fmt.Errorf("service/user: storing avatar: %w", err)
		}
		user.AvatarPath = path
	}

	user.Username = in.Username
	user.Email = in.Email
	user.DateOfBirth = in.DateOfBirth

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("profile updated", slog.String("userID", user.ID))

	return user, nil
}

// Block locks the account with the forever sentinel. The failed-access
// counter is left as-is: blocking is an administrative act, independent of
// how many bad passwords were typed.
func (s *UserService) Block(ctx context.Context, id string) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.users.SetLockout(ctx, id, &model.LockoutForever, user.FailedAccess); err != nil {
		return err
	}

	s.logger.Info("user blocked", slog.String("userID", id))
	return nil
}

// Unblock clears the lockout AND zeroes the failed-access counter. Both
// must change together: clearing the lock alone would leave the account one
// failure away from locking again under the sign-in policy.
func (s *UserService) Unblock(ctx context.Context, id string) error {
	if err := s.users.SetLockout(ctx, id, nil, 0); err != nil {
		return err
	}

	s.logger.Info("user unblocked", slog.String("userID", id))
	return nil
}

// Delete removes an account. The store cascades the user's chat messages in
// the same transaction as the row delete.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("user deleted", slog.String("userID", id))
	return nil
}

// EnsureAdmin creates the seed administrator account if no user with the
// given email exists. Called once at startup.
func (s *UserService) EnsureAdmin(ctx context.Context, username, email, password string) error {
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil // already seeded
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("service/user: looking up admin: %w", err)
	}

	_, err = s.CreateByAdmin(ctx, validation.RegisterInput{
		Username:        username,
		Email:           email,
		DateOfBirth:     time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC),
		Password:        password,
		ConfirmPassword: password,
	}, nil, model.RoleAdmin)
	if err != nil {
		return fmt.Errorf("service/user: seeding admin: %w", err)
	}

	s.logger.Info("admin account seeded", slog.String("email", email))
	return nil
}

// checkUnique reports field errors when username or email belong to a user
// other than selfID (empty selfID means any owner is a collision).
func (s *UserService) checkUnique(ctx context.Context, username, email, selfID string) error {
	var errs apperror.Fields

	if other, err := s.users.GetByUsername(ctx, username); err == nil {
		if other.ID != selfID {
			errs.Add("username", "username is already taken")
		}
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("service/user: checking username: %w", err)
	}

	if other, err := s.users.GetByEmail(ctx, email); err == nil {
		if other.ID != selfID {
			errs.Add("email", "email is already in use")
		}
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("service/user: checking email: %w", err)
	}

	return errs.OrNil()
}
