package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/sirupsen/logrus"

	"torrent-notify/internal/domain"
	"torrent-notify/internal/torrentclient"
)

const maxTorrentFileSize = 10 << 20

// Engine is an in-process torrent service backed by anacrolix/torrent. Torrent ids are
// assigned sequentially and do not survive restarts.
type Engine interface {
	torrentclient.Client
	Start(ctx context.Context) error
	Shutdown()
}

type Config struct {
	DownloadRoot string
	TrackerList  []string
	FetchTimeout time.Duration
	Logger       *logrus.Logger
}

type engine struct {
	cfg    Config
	client *torrent.Client
	http   *http.Client

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	nextID int64
	active map[int64]*handle
}

type handle struct {
	torrent *torrent.Torrent
	addedAt time.Time
}

func NewEngine(cfg Config) Engine {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if len(cfg.TrackerList) == 0 {
		cfg.TrackerList = defaultTrackers()
	}
	return &engine{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.FetchTimeout},
		nextID: 1,
		active: make(map[int64]*handle),
	}
}

func (e *engine) Start(ctx context.Context) error {
	if err := os.MkdirAll(e.cfg.DownloadRoot, 0o755); err != nil {
		return fmt.Errorf("create download root: %w", err)
	}

	clientConfig := torrent.NewDefaultClientConfig()
	clientConfig.DataDir = e.cfg.DownloadRoot
	clientConfig.Seed = true

	client, err := torrent.NewClient(clientConfig)
	if err != nil {
		return fmt.Errorf("create torrent client: %w", err)
	}

	e.client = client
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.cfg.Logger.Infof("embedded torrent engine started, data dir: %s", e.cfg.DownloadRoot)
	return nil
}

func (e *engine) Shutdown() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	if e.client != nil {
		e.client.Close()
	}
	e.cfg.Logger.Info("embedded torrent engine stopped")
}

func (e *engine) AddByURL(ctx context.Context, url string) (*domain.Torrent, error) {
	if e.client == nil {
		return nil, errors.New("torrent engine not started")
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("torrent url is required")
	}

	var (
		t   *torrent.Torrent
		err error
	)
	if strings.HasPrefix(url, "magnet:") {
		t, err = e.client.AddMagnet(url)
		if err != nil {
			return nil, fmt.Errorf("add magnet: %w", err)
		}
	} else {
		mi, err := e.fetchMetaInfo(ctx, url)
		if err != nil {
			return nil, err
		}
		t, err = e.client.AddTorrent(mi)
		if err != nil {
			return nil, fmt.Errorf("add torrent: %w", err)
		}
	}

	for _, tracker := range e.cfg.TrackerList {
		t.AddTrackers([][]string{{tracker}})
	}

	id := e.register(t)
	e.spawnDownload(id, t)

	e.cfg.Logger.WithField("torrent_id", id).Infof("torrent added: %s", t.Name())
	return &domain.Torrent{
		ID:      id,
		Name:    t.Name(),
		Status:  torrentStatus(t),
		AddedAt: time.Now(),
	}, nil
}

func (e *engine) fetchMetaInfo(ctx context.Context, url string) (*metainfo.MetaInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create torrent file request: %w", err)
	}
	resp, err := e.http.Do(req)
	if err != nil {
		// the url may carry a bot token in its path
		return nil, fmt.Errorf("fetch torrent file: %w", stripURL(err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch torrent file: unexpected status %d", resp.StatusCode)
	}

	mi, err := metainfo.Load(io.LimitReader(resp.Body, maxTorrentFileSize))
	if err != nil {
		return nil, fmt.Errorf("parse torrent file: %w", err)
	}
	return mi, nil
}

func stripURL(err error) error {
	var urlErr *neturl.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

func (e *engine) register(t *torrent.Torrent) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, h := range e.active {
		// the client deduplicates by infohash; keep the existing id
		if h.torrent == t {
			return id
		}
	}
	id := e.nextID
	e.nextID++
	e.active[id] = &handle{torrent: t, addedAt: time.Now()}
	return id
}

// spawnDownload starts downloading once metadata arrives.
func (e *engine) spawnDownload(id int64, t *torrent.Torrent) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		select {
		case <-e.ctx.Done():
			return
		case <-t.GotInfo():
		}
		t.DownloadAll()
		e.cfg.Logger.WithField("torrent_id", id).Debug("metadata received, downloading")
	}()
}

func (e *engine) QueryByIDs(_ context.Context, ids []int64) ([]domain.Torrent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]domain.Torrent, 0, len(ids))
	for _, id := range ids {
		h, ok := e.active[id]
		if !ok {
			continue
		}
		out = append(out, snapshot(id, h))
	}
	return out, nil
}

func (e *engine) List(context.Context) ([]domain.Torrent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]domain.Torrent, 0, len(e.active))
	for id, h := range e.active {
		out = append(out, snapshot(id, h))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func snapshot(id int64, h *handle) domain.Torrent {
	return domain.Torrent{
		ID:      id,
		Name:    h.torrent.Name(),
		Status:  torrentStatus(h.torrent),
		AddedAt: h.addedAt,
	}
}

func torrentStatus(t *torrent.Torrent) domain.TorrentStatus {
	if t.Info() == nil {
		return domain.TorrentStatusDownloadQueued
	}
	if t.BytesMissing() == 0 {
		return domain.TorrentStatusSeeding
	}
	return domain.TorrentStatusDownloading
}

func defaultTrackers() []string {
	return []string{
		"udp://tracker.opentrackr.org:1337/announce",
		"udp://open.stealth.si:80/announce",
		"udp://exodus.desync.com:6969/announce",
		"udp://tracker.torrent.eu.org:451/announce",
		"http://tracker.opentrackr.org:1337/announce",
	}
}

var _ Engine = (*engine)(nil)
