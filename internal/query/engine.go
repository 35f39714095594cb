package query

import (
	"context"
	"errors"
)

// ErrStoreUnavailable reports that the backing store is missing, unreadable,
// or not a WhatsApp backup. It is fatal for the session: callers surface it
// to the user and do not retry.
var ErrStoreUnavailable = errors.New("backup store unavailable")

// Engine provides read-only query operations over a backup.
// Implementations:
//   - SQLiteEngine: direct queries against a local SQLite export
//   - remote.Engine: HTTP client of a zapvault server
//
// All operations read from a fixed snapshot and are safe for concurrent use.
type Engine interface {
	// ListConversations groups messages by (contact, source file), sorted by
	// most-recent-message timestamp descending. Rows with an empty contact
	// name are excluded.
	ListConversations(ctx context.Context) ([]Conversation, error)

	// CountMessages returns the total number of messages in a conversation.
	CountMessages(ctx context.Context, contact, sourceFile string) (int64, error)

	// GetMessages returns the window [offset, offset+limit) of a
	// conversation's messages in ascending id order.
	GetMessages(ctx context.Context, contact, sourceFile string, limit, offset int) ([]Message, error)

	// SearchMessages returns ids of messages whose text contains term,
	// ascending. Matching uses SQLite LIKE semantics: case-insensitive for
	// ASCII, case-sensitive beyond it.
	SearchMessages(ctx context.Context, contact, sourceFile, term string) ([]int64, error)

	// GetMessageIndex returns the 0-based position of a message within its
	// conversation's ascending-id order, or false if the id is not part of
	// the conversation. The position feeds the pagination controller when a
	// search hit lies outside the loaded window.
	GetMessageIndex(ctx context.Context, contact, sourceFile string, id int64) (int64, bool, error)

	// GetStats returns totals for the whole backup.
	GetStats(ctx context.Context) (*Stats, error)

	// Close releases any resources held by the engine.
	Close() error
}
