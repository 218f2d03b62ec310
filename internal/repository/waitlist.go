package repository

import (
	"context"
)

// WaitListRepository persists the mapping of pending torrent ids to the chat awaiting them.
// Each key transitions atomically; there is no cross-key transaction.
type WaitListRepository interface {
	Init(ctx context.Context) error
	// Put registers recipientID for torrentID, replacing any previous recipient.
	Put(ctx context.Context, torrentID, recipientID int64) error
	// RemoveMany deletes the given ids; absent ids are ignored.
	RemoveMany(ctx context.Context, torrentIDs ...int64) error
	// GetAll returns a point-in-time copy of every entry keyed by torrent id.
	GetAll(ctx context.Context) (map[int64]int64, error)
}
