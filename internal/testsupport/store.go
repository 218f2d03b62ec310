package testsupport

import (
	"context"
	"sync"

	"torrent-notify/internal/repository"
)

// FlakyWaitList wraps a repository and injects errors per operation.
type FlakyWaitList struct {
	repository.WaitListRepository

	mu        sync.Mutex
	PutErr    error
	RemoveErr error
	GetAllErr error
}

func (f *FlakyWaitList) Put(ctx context.Context, torrentID, recipientID int64) error {
	f.mu.Lock()
	err := f.PutErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.WaitListRepository.Put(ctx, torrentID, recipientID)
}

func (f *FlakyWaitList) RemoveMany(ctx context.Context, torrentIDs ...int64) error {
	f.mu.Lock()
	err := f.RemoveErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.WaitListRepository.RemoveMany(ctx, torrentIDs...)
}

func (f *FlakyWaitList) GetAll(ctx context.Context) (map[int64]int64, error) {
	f.mu.Lock()
	err := f.GetAllErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.WaitListRepository.GetAll(ctx)
}

func (f *FlakyWaitList) SetGetAllErr(err error) {
	f.mu.Lock()
	f.GetAllErr = err
	f.mu.Unlock()
}

func (f *FlakyWaitList) SetRemoveErr(err error) {
	f.mu.Lock()
	f.RemoveErr = err
	f.mu.Unlock()
}
