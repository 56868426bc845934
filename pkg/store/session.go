package store

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable is returned when the backing key-value store cannot be reached.
var ErrStoreUnavailable = errors.New("session store unavailable")

// ErrSessionNotFound is only used by callers that need to turn an absent session into an error.
var ErrSessionNotFound = errors.New("session not found or expired")

const (
	StatusActive = "active"
	StatusClosed = "closed"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Session represents an authenticated binding between a client and a user
type Session struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Status    string     `json:"status"` // "active" | "closed"
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Message is one entry of a session's ordered history.
type Message struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	Sequence int64  `json:"seq"`
}

// SessionStore owns sessions and their histories.
//
// Resolve returns ("", false, nil) for missing and expired sessions alike; only
// backend failures produce an error, always wrapping ErrStoreUnavailable.
type SessionStore interface {
	Issue(ctx context.Context, userID string, ttl time.Duration) (string, error)
	Resolve(ctx context.Context, sessionID string) (string, bool, error)
	Touch(ctx context.Context, sessionID string, ttl time.Duration) error
	Revoke(ctx context.Context, sessionID string) error
	Close(ctx context.Context, sessionID string) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	ListSessions(ctx context.Context, userID string) ([]string, error)

	AppendMessage(ctx context.Context, sessionID, role, content string) error
	History(ctx context.Context, sessionID string) ([]Message, error)
}

// HistoryPolicy bounds the retained history window.
type HistoryPolicy struct {
	TTL         time.Duration
	MaxMessages int
}
