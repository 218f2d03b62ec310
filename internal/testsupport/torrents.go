package testsupport

import (
	"context"
	"sort"
	"sync"

	"torrent-notify/internal/domain"
)

// FakeTorrents is an in-memory torrent service.
type FakeTorrents struct {
	mu       sync.Mutex
	torrents map[int64]domain.Torrent
	nextID   int64

	AddErr   error
	QueryErr error

	AddCalls   []string
	QueryCalls [][]int64
}

func NewFakeTorrents() *FakeTorrents {
	return &FakeTorrents{torrents: make(map[int64]domain.Torrent), nextID: 1}
}

// Set stores or replaces a torrent.
func (f *FakeTorrents) Set(t domain.Torrent) {
	f.mu.Lock()
	f.torrents[t.ID] = t
	if t.ID >= f.nextID {
		f.nextID = t.ID + 1
	}
	f.mu.Unlock()
}

// Remove forgets a torrent, as if it was deleted out of band.
func (f *FakeTorrents) Remove(id int64) {
	f.mu.Lock()
	delete(f.torrents, id)
	f.mu.Unlock()
}

func (f *FakeTorrents) SetQueryErr(err error) {
	f.mu.Lock()
	f.QueryErr = err
	f.mu.Unlock()
}

func (f *FakeTorrents) QueryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.QueryCalls)
}

func (f *FakeTorrents) AddByURL(_ context.Context, url string) (*domain.Torrent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AddCalls = append(f.AddCalls, url)
	if f.AddErr != nil {
		return nil, f.AddErr
	}
	t := domain.Torrent{ID: f.nextID, Name: url, Status: domain.TorrentStatusDownloadQueued}
	f.nextID++
	f.torrents[t.ID] = t
	return &t, nil
}

func (f *FakeTorrents) QueryByIDs(_ context.Context, ids []int64) ([]domain.Torrent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.QueryCalls = append(f.QueryCalls, append([]int64(nil), ids...))
	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	var out []domain.Torrent
	for _, id := range ids {
		if t, ok := f.torrents[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *FakeTorrents) List(context.Context) ([]domain.Torrent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	out := make([]domain.Torrent, 0, len(f.torrents))
	for _, t := range f.torrents {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
