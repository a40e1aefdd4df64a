// Package persistence provides optional durability for bus message history.
// The bus mirrors delivered messages into a MessageStore when one is
// configured; the core never depends on the store for correctness.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/agenthive/types"
)

var (
	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("persistence: store closed")
	// ErrNotFound is returned when a message id is unknown.
	ErrNotFound = errors.New("persistence: message not found")
	// ErrInvalidInput is returned for nil or malformed input.
	ErrInvalidInput = errors.New("persistence: invalid input")
)

// MessageStore persists delivered messages for inspection and replay.
type MessageStore interface {
	// SaveMessage persists a single message.
	SaveMessage(ctx context.Context, msg *types.Message) error

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, msgID string) (*types.Message, error)

	// RecentMessages returns up to limit most recent messages, newest first.
	RecentMessages(ctx context.Context, limit int) ([]*types.Message, error)

	// Cleanup removes messages older than the given duration and returns the
	// number removed.
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)

	// Stats returns statistics about the store.
	Stats(ctx context.Context) (*StoreStats, error)

	// Ping checks if the store is healthy.
	Ping(ctx context.Context) error

	// Close releases store resources.
	Close() error
}

// StoreStats describes the current contents of a message store.
type StoreStats struct {
	TotalMessages int       `json:"total_messages"`
	OldestMessage time.Time `json:"oldest_message,omitempty"`
	NewestMessage time.Time `json:"newest_message,omitempty"`
}
