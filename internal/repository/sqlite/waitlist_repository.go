package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"torrent-notify/internal/repository"
)

const createWaitListTable = `
CREATE TABLE IF NOT EXISTS wait_list (
	torrent_id INTEGER PRIMARY KEY,
	recipient_id INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

type WaitListRepository struct {
	db *sql.DB
}

func NewWaitListRepository(db *sql.DB) repository.WaitListRepository {
	return &WaitListRepository{db: db}
}

func (r *WaitListRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createWaitListTable); err != nil {
		return fmt.Errorf("create wait_list table: %w", err)
	}
	return nil
}

func (r *WaitListRepository) Put(ctx context.Context, torrentID, recipientID int64) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO wait_list (torrent_id, recipient_id, created_at, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(torrent_id) DO UPDATE SET recipient_id=excluded.recipient_id, updated_at=excluded.updated_at`,
		torrentID,
		recipientID,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert wait list entry: %w", err)
	}
	return nil
}

func (r *WaitListRepository) RemoveMany(ctx context.Context, torrentIDs ...int64) error {
	if len(torrentIDs) == 0 {
		return nil
	}

	placeholders := make([]string, len(torrentIDs))
	args := make([]any, len(torrentIDs))
	for i, id := range torrentIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`DELETE FROM wait_list WHERE torrent_id IN (%s)`, strings.Join(placeholders, ","))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete wait list entries: %w", err)
	}
	return nil
}

func (r *WaitListRepository) GetAll(ctx context.Context) (map[int64]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT torrent_id, recipient_id
FROM wait_list
ORDER BY torrent_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query wait list: %w", err)
	}
	defer rows.Close()

	entries := make(map[int64]int64)
	for rows.Next() {
		var torrentID, recipientID int64
		if err := rows.Scan(&torrentID, &recipientID); err != nil {
			return nil, fmt.Errorf("scan wait list entry: %w", err)
		}
		entries[torrentID] = recipientID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wait list: %w", err)
	}
	return entries, nil
}

var _ repository.WaitListRepository = (*WaitListRepository)(nil)
