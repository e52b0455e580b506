package model

import (
	"context"
	"log/slog"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleCandidate is a regular candidate practicing interviews.
	UserRoleCandidate UserRole = "candidate"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user. Resume holds the plain-text resume used
// when building technical and HR questions.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Resume       string    `json:"resume"`
	Email        string    `json:"email,omitempty"`
	Gender       string    `json:"gender,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type loggerCtxKey struct{}

// ContextWithLogger stores a request-scoped logger in ctx.
func ContextWithLogger(ctx context.Context, lg *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, lg)
}

// LoggerFrom returns the logger stored in ctx, or the default logger.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if lg, ok := ctx.Value(loggerCtxKey{}).(*slog.Logger); ok && lg != nil {
		return lg
	}
	return slog.Default()
}

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	BasePath        string   // URL prefix for the API (e.g. "/api")
	SecureCookies   bool     // Set Secure flag on cookies (disable for local dev)
	CORSOrigins     []string // Allowed browser origins
	RateLimitPerMin int      // Per-IP limit on routes that call the oracle; 0 disables
}
