package redis

import (
	"context"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"torrent-notify/internal/repository"
)

// DefaultKey is the hash holding the wait list when no key is configured.
const DefaultKey = "torrent-notify:waitList"

// WaitListRepository keeps the wait list in a single Redis hash: field torrent id, value chat id.
type WaitListRepository struct {
	client *goredis.Client
	key    string
	logger *logrus.Logger
}

func NewWaitListRepository(client *goredis.Client, key string, logger *logrus.Logger) repository.WaitListRepository {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &WaitListRepository{
		client: client,
		key:    key,
		logger: logger,
	}
}

func (r *WaitListRepository) Init(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (r *WaitListRepository) Put(ctx context.Context, torrentID, recipientID int64) error {
	field := strconv.FormatInt(torrentID, 10)
	if err := r.client.HSet(ctx, r.key, field, recipientID).Err(); err != nil {
		return fmt.Errorf("hset wait list entry: %w", err)
	}
	return nil
}

func (r *WaitListRepository) RemoveMany(ctx context.Context, torrentIDs ...int64) error {
	if len(torrentIDs) == 0 {
		return nil
	}
	fields := make([]string, len(torrentIDs))
	for i, id := range torrentIDs {
		fields[i] = strconv.FormatInt(id, 10)
	}
	if err := r.client.HDel(ctx, r.key, fields...).Err(); err != nil {
		return fmt.Errorf("hdel wait list entries: %w", err)
	}
	return nil
}

func (r *WaitListRepository) GetAll(ctx context.Context) (map[int64]int64, error) {
	raw, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall wait list: %w", err)
	}

	entries := make(map[int64]int64, len(raw))
	var malformed []string
	for field, value := range raw {
		torrentID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			r.logger.WithField("field", field).Warn("dropping non-numeric wait list field")
			malformed = append(malformed, field)
			continue
		}
		recipientID, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			r.logger.WithField("torrent_id", torrentID).Warnf("dropping malformed recipient %q", value)
			malformed = append(malformed, field)
			continue
		}
		entries[torrentID] = recipientID
	}

	if len(malformed) > 0 {
		// a failed delete is retried on the next read
		if err := r.client.HDel(ctx, r.key, malformed...).Err(); err != nil {
			r.logger.Warnf("hdel malformed wait list fields: %v", err)
		}
	}
	return entries, nil
}

var _ repository.WaitListRepository = (*WaitListRepository)(nil)
