package memory

import (
	"context"
	"sync"

	"torrent-notify/internal/repository"
)

// WaitListRepository is a process-local wait list. Entries do not survive restarts.
type WaitListRepository struct {
	mu      sync.Mutex
	entries map[int64]int64
}

func NewWaitListRepository() *WaitListRepository {
	return &WaitListRepository{entries: make(map[int64]int64)}
}

func (r *WaitListRepository) Init(context.Context) error {
	return nil
}

func (r *WaitListRepository) Put(_ context.Context, torrentID, recipientID int64) error {
	r.mu.Lock()
	r.entries[torrentID] = recipientID
	r.mu.Unlock()
	return nil
}

func (r *WaitListRepository) RemoveMany(_ context.Context, torrentIDs ...int64) error {
	r.mu.Lock()
	for _, id := range torrentIDs {
		delete(r.entries, id)
	}
	r.mu.Unlock()
	return nil
}

func (r *WaitListRepository) GetAll(context.Context) (map[int64]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]int64, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out, nil
}

var _ repository.WaitListRepository = (*WaitListRepository)(nil)
