// Package model defines the data structures used throughout the application.
package model

import "time"

// Role names known to the application. Roles are plain strings in the
// user_roles table; these constants exist so callers don't scatter literals.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// DefaultAvatarPath is used when a user registers without uploading a file.
const DefaultAvatarPath = "/avatars/default.png"

// LockoutForever is the sentinel stored in lockout_end for an account an
// administrator has blocked outright. Any lockout_end in the future means the
// account cannot sign in; this value is a future that never arrives, so a
// block survives until an explicit unblock.
var LockoutForever = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// User represents a registered account.
//
// Username and email are unique case-insensitively (enforced by the store).
// PasswordHash is a self-contained bcrypt string and is never serialized to
// clients. LockoutEnd is nil when the account is not locked; FailedAccess
// counts consecutive failed sign-ins and is zeroed on success or unblock.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	DateOfBirth  time.Time  `json:"dateOfBirth"`
	AvatarPath   string     `json:"avatarPath"`
	Roles        []string   `json:"roles"`
	LockoutEnd   *time.Time `json:"lockoutEnd,omitempty"`
	FailedAccess int        `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// IsLockedOut reports whether the account is locked at time now.
func (u *User) IsLockedOut(now time.Time) bool {
	return u.LockoutEnd != nil && u.LockoutEnd.After(now)
}

// HasRole reports whether the user holds the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
