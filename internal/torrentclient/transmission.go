package torrentclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hekmon/transmissionrpc/v3"
	"github.com/sirupsen/logrus"

	"torrent-notify/internal/domain"
)

var torrentFields = []string{"id", "name", "status", "addedDate"}

type TransmissionConfig struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
	Logger   *logrus.Logger
}

// Transmission talks to a Transmission daemon over its RPC endpoint.
type Transmission struct {
	rpc    *transmissionrpc.Client
	logger *logrus.Logger
}

func NewTransmission(cfg TransmissionConfig) (*Transmission, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	raw := strings.TrimRight(cfg.URL, "/")
	if !strings.HasSuffix(raw, "/transmission/rpc") {
		raw += "/transmission/rpc"
	}
	endpoint, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse transmission url: %w", err)
	}
	if cfg.Username != "" {
		endpoint.User = url.UserPassword(cfg.Username, cfg.Password)
	}

	rpc, err := transmissionrpc.New(endpoint, &transmissionrpc.Config{
		CustomClient: &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("create transmission client: %w", err)
	}
	return &Transmission{rpc: rpc, logger: cfg.Logger}, nil
}

func (c *Transmission) AddByURL(ctx context.Context, sourceURL string) (*domain.Torrent, error) {
	if strings.TrimSpace(sourceURL) == "" {
		return nil, errors.New("torrent url is required")
	}

	// a duplicate submission returns the torrent already known to the daemon
	added, err := c.rpc.TorrentAdd(ctx, transmissionrpc.TorrentAddPayload{Filename: &sourceURL})
	if err != nil {
		return nil, c.fail("torrent-add", err)
	}
	if added.ID == nil {
		return nil, c.fail("torrent-add", errors.New("response carries no torrent id"))
	}

	torrent := &domain.Torrent{ID: *added.ID, AddedAt: time.Now()}
	if added.Name != nil {
		torrent.Name = *added.Name
	}
	c.logger.WithField("torrent_id", torrent.ID).Debugf("transmission accepted %s", torrent.Name)
	return torrent, nil
}

func (c *Transmission) QueryByIDs(ctx context.Context, ids []int64) ([]domain.Torrent, error) {
	if len(ids) == 0 {
		return []domain.Torrent{}, nil
	}
	return c.get(ctx, ids)
}

func (c *Transmission) List(ctx context.Context) ([]domain.Torrent, error) {
	return c.get(ctx, nil)
}

func (c *Transmission) get(ctx context.Context, ids []int64) ([]domain.Torrent, error) {
	raw, err := c.rpc.TorrentGet(ctx, torrentFields, ids)
	if err != nil {
		return nil, c.fail("torrent-get", err)
	}

	torrents := make([]domain.Torrent, 0, len(raw))
	for _, t := range raw {
		if t.ID == nil {
			continue
		}
		torrent := domain.Torrent{ID: *t.ID}
		if t.Name != nil {
			torrent.Name = *t.Name
		}
		if t.Status != nil {
			// unknown ordinals are kept as-is and never count as finished
			torrent.Status = domain.TorrentStatus(*t.Status)
		}
		if t.AddedDate != nil {
			torrent.AddedAt = *t.AddedDate
		}
		torrents = append(torrents, torrent)
	}
	return torrents, nil
}

func (c *Transmission) fail(method string, err error) error {
	c.logger.WithField("method", method).Warnf("transmission rpc failed: %v", err)
	return fmt.Errorf("transmission %s: %w", method, err)
}

var _ Client = (*Transmission)(nil)
