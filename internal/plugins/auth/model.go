// Package auth handles user accounts, password hashing and bearer-token
// sessions for Nexus. Registration and login issue an opaque token that the
// client presents as "Authorization: Bearer <token>" on every metered call.
//
// This is a CORE plugin -- always enabled.
package auth

import (
	"time"
)

// User is a registered account. PasswordHash never leaves the server: it is
// excluded from JSON and persisted only through storedUser.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Credits      int       `json:"credits"`
	CreatedAt    time.Time `json:"createdAt"`
}

// storedUser is the persisted form of User, including the hash.
type storedUser struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	Credits      int       `json:"credits"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (u *User) toStored() storedUser {
	return storedUser(*u)
}

func (s storedUser) toUser() *User {
	u := User(s)
	return &u
}

// Session is the value stored under session:<token>. ExpiresAt is Unix
// milliseconds; the session is invalid from that instant on.
type Session struct {
	UserID    string `json:"userId"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return now.UnixMilli() >= s.ExpiresAt
}

// --- Request DTOs (bound from HTTP requests) ---

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest is the body of POST /api/auth/update. Absent fields
// are left unchanged.
type UpdateProfileRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

// --- Service Input DTOs (passed from handler to service) ---

// RegisterInput is the input for creating a new user.
type RegisterInput struct {
	Email    string
	Password string
	Username string
}

// LoginInput is the input for authenticating a user.
type LoginInput struct {
	Email    string
	Password string
}

// UpdateProfileInput carries the optional profile fields to change.
type UpdateProfileInput struct {
	Username *string
	Password *string
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
