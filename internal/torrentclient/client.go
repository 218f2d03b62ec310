package torrentclient

import (
	"context"

	"torrent-notify/internal/domain"
)

// Client is the torrent service the relay submits to and polls.
type Client interface {
	// AddByURL registers a torrent fetched from url and returns its assigned id and name.
	AddByURL(ctx context.Context, url string) (*domain.Torrent, error)
	// QueryByIDs returns the torrents among ids that the service still knows.
	// An id missing from the result has been removed from the service.
	QueryByIDs(ctx context.Context, ids []int64) ([]domain.Torrent, error)
	// List returns every torrent known to the service.
	List(ctx context.Context) ([]domain.Torrent, error)
}
