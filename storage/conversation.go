// Package storage provides conversation storage abstraction.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interface
// - Allows swapping between memory and SQLite without API changes
// - Each storage implementation encapsulates its own data structures

package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/richinex/sqlagent/llm"
)

// DefaultPath is where the CLI keeps chat sessions.
const DefaultPath = ".sqlagent/sessions.db"

// SessionInfo summarizes a stored session.
type SessionInfo struct {
	ID        string
	Title     string // first user message, shortened
	Messages  int
	UpdatedAt time.Time
}

// ConversationStorage defines the interface for storing conversation history.
type ConversationStorage interface {
	// Save replaces the conversation history for a session.
	Save(ctx context.Context, sessionID string, history []llm.ChatMessage) error

	// Append adds messages to the end of a session, creating it if needed.
	Append(ctx context.Context, sessionID string, messages ...llm.ChatMessage) error

	// Load loads conversation history for a session.
	// Returns empty slice (not nil) if session doesn't exist.
	// Returns error only for storage failures (I/O errors, etc.), not missing sessions.
	Load(ctx context.Context, sessionID string) ([]llm.ChatMessage, error)

	// Delete deletes conversation history for a session.
	Delete(ctx context.Context, sessionID string) error

	// ListSessions lists sessions, most recently updated first.
	ListSessions(ctx context.Context) ([]SessionInfo, error)

	// Exists checks if a session exists.
	Exists(ctx context.Context, sessionID string) (bool, error)

	Close() error
}

// NewSessionID returns a random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

const maxTitleLen = 60

func titleOf(history []llm.ChatMessage) string {
	for _, msg := range history {
		if msg.Role != llm.RoleUser {
			continue
		}
		title := []rune(msg.Content)
		if len(title) > maxTitleLen {
			return string(title[:maxTitleLen-3]) + "..."
		}
		return string(title)
	}
	return ""
}
