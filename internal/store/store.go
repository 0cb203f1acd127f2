package store

import (
	"context"
	"errors"
	"time"
)

// ErrAlreadyExists is returned by CreateUser when the username is taken,
// including when a concurrent registration wins the insert race.
var ErrAlreadyExists = errors.New("already exists")

// User represents a user in the system.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsGuest      bool
	SessionID    string // For guest user session tracking
	CreatedAt    time.Time
}

// Message represents a persisted chat message. Rooms exist implicitly, so
// messages reference them by name rather than by row id.
type Message struct {
	ID        int64
	Room      string
	User      string
	Body      string
	CreatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// CreateGuestUser creates a temporary guest user with session ID.
	CreateGuestUser(ctx context.Context, sessionID string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage durably appends a message and sets its ID.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListRecent returns up to limit most recent messages for a room,
	// oldest first.
	ListRecent(ctx context.Context, room string, limit int) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
