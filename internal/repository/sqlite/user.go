package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/mychat/internal/apperror"
	"github.com/sakif/mychat/internal/model"
	"github.com/sakif/mychat/internal/repository"
)

// UserStore implements repository.UserRepository over the shared pool.
type UserStore struct {
	conn *sql.DB
}

// compile-time interface check
var _ repository.UserRepository = (*UserStore)(nil)

const userColumns = `id, username, email, password_hash, date_of_birth,
	avatar_path, lockout_end, failed_access, created_at, updated_at`

// Create inserts a new user. The ID (xid) and timestamps are assigned here.
//
// Uniqueness lives in the schema (UNIQUE COLLATE NOCASE on username and
// email), so a race between two registrations is settled by the database —
// the loser gets an ErrConflict scoped to the colliding field.
func (db *UserStore) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.AvatarPath == "" {
		user.AvatarPath = model.DefaultAvatarPath
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, date_of_birth,
		                    avatar_path, lockout_end, failed_access, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.DateOfBirth,
		user.AvatarPath,
		nullTime(user.LockoutEnd),
		user.FailedAccess,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if field, ok := uniqueViolation(err); ok {
			return &apperror.AppError{
				Err:     apperror.ErrConflict,
				Field:   field,
				Message: fmt.Sprintf("%s is already taken", field),
			}
		}
		return fmt.Errorf("sqlite: creating user: %w", err)
	}

	return nil
}

// GetByID retrieves a user (roles included) by internal ID.
func (db *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `WHERE id = ?`, id)
}

// GetByUsername retrieves a user by username, case-insensitively.
func (db *UserStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUser(ctx, `WHERE username = ?`, username)
}

// GetByEmail retrieves a user by email, case-insensitively.
func (db *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, `WHERE email = ?`, email)
}

func (db *UserStore) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var (
		u          model.User
		lockoutEnd sql.NullTime
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users `+where, arg,
	).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.DateOfBirth,
		&u.AvatarPath,
		&lockoutEnd,
		&u.FailedAccess,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprint(arg))
		}
		return nil, fmt.Errorf("sqlite: getting user: %w", err)
	}

	if lockoutEnd.Valid {
		t := lockoutEnd.Time
		u.LockoutEnd = &t
	}

	roles, err := db.GetRoles(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Roles = roles

	return &u, nil
}

// List returns all users ordered by username, roles included. The admin
// screen is the only caller; the user population is small enough that
// pagination would be ceremony.
func (db *UserStore) List(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var (
			u          model.User
			lockoutEnd sql.NullTime
		)
		if err := rows.Scan(
			&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.DateOfBirth,
			&u.AvatarPath, &lockoutEnd, &u.FailedAccess, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		if lockoutEnd.Valid {
			t := lockoutEnd.Time
			u.LockoutEnd = &t
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	// One roles query per user. Fine at admin-screen scale; a join with
	// group-concat would be the upgrade if the user table ever grows teeth.
	for i := range users {
		roles, err := db.GetRoles(ctx, users[i].ID)
		if err != nil {
			return nil, err
		}
		users[i].Roles = roles
	}

	return users, nil
}

// Update saves the mutable profile fields (username, email, date of birth,
// avatar path, password hash). Lockout state is deliberately excluded — it
// changes only through SetLockout.
func (db *UserStore) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET username = ?, email = ?, password_hash = ?, date_of_birth = ?,
		     avatar_path = ?, updated_at = ?
		 WHERE id = ?`,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.DateOfBirth,
		user.AvatarPath,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if field, ok := uniqueViolation(err); ok {
			return &apperror.AppError{
				Err:     apperror.ErrConflict,
				Field:   field,
				Message: fmt.Sprintf("%s is already taken", field),
			}
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", user.ID)
	}

	return nil
}

// Delete removes a user. Their messages and role rows go with them via the
// ON DELETE CASCADE foreign keys.
func (db *UserStore) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", id)
	}

	return nil
}

// AddRole grants a role. Granting a role the user already holds is a no-op
// (INSERT OR IGNORE against the composite primary key).
func (db *UserStore) AddRole(ctx context.Context, userID, role string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_roles (user_id, role) VALUES (?, ?)`,
		userID, role,
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding role %s to user %s: %w", role, userID, err)
	}
	return nil
}

// GetRoles returns the user's role names, sorted.
func (db *UserStore) GetRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT role FROM user_roles WHERE user_id = ? ORDER BY role`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting roles for user %s: %w", userID, err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("sqlite: scanning role row: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating roles: %w", err)
	}

	return roles, nil
}

// SetLockout writes lockout_end and failed_access together. A nil lockoutEnd
// clears the lock. Unblock must reset the counter in the same statement —
// clearing the lock alone would leave the account one bad password away from
// locking again.
func (db *UserStore) SetLockout(ctx context.Context, userID string, lockoutEnd *time.Time, failedAccess int) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET lockout_end = ?, failed_access = ?, updated_at = ? WHERE id = ?`,
		nullTime(lockoutEnd),
		failedAccess,
		time.Now().UTC(),
		userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting lockout for user %s: %w", userID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", userID)
	}

	return nil
}

// nullTime converts *time.Time to the driver-friendly sql.NullTime.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// uniqueViolation inspects a driver error for a UNIQUE constraint failure
// and names the colliding column. modernc's error strings look like:
//
//	constraint failed: UNIQUE constraint failed: users.email (2067)
func uniqueViolation(err error) (field string, ok bool) {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return "", false
	}
	switch {
	case strings.Contains(msg, "users.username"):
		return "username", true
	case strings.Contains(msg, "users.email"):
		return "email", true
	}
	return "unique", true
}
