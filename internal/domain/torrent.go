package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownStatus is returned when the torrent service reports an ordinal outside the known range.
var ErrUnknownStatus = errors.New("unknown torrent status")

// TorrentStatus is the lifecycle ordinal reported by the torrent service.
type TorrentStatus int

const (
	TorrentStatusStopped TorrentStatus = iota
	TorrentStatusCheckQueued
	TorrentStatusChecking
	TorrentStatusDownloadQueued
	TorrentStatusDownloading
	TorrentStatusSeedQueued
	TorrentStatusSeeding
	TorrentStatusUnreachable
)

// CompletionThreshold is the lowest status treated as finished.
const CompletionThreshold = TorrentStatusSeeding

// ParseTorrentStatus validates a raw ordinal.
func ParseTorrentStatus(v int) (TorrentStatus, error) {
	s := TorrentStatus(v)
	if !s.Valid() {
		return s, fmt.Errorf("%w: %d", ErrUnknownStatus, v)
	}
	return s, nil
}

func (s TorrentStatus) Valid() bool {
	return s >= TorrentStatusStopped && s <= TorrentStatusUnreachable
}

// Finished reports whether the torrent reached the completion threshold.
// Unknown ordinals are never finished.
func (s TorrentStatus) Finished() bool {
	return s.Valid() && s >= CompletionThreshold
}

func (s TorrentStatus) String() string {
	switch s {
	case TorrentStatusStopped:
		return "stopped"
	case TorrentStatusCheckQueued:
		return "check_queued"
	case TorrentStatusChecking:
		return "checking"
	case TorrentStatusDownloadQueued:
		return "download_queued"
	case TorrentStatusDownloading:
		return "downloading"
	case TorrentStatusSeedQueued:
		return "seed_queued"
	case TorrentStatusSeeding:
		return "seeding"
	case TorrentStatusUnreachable:
		return "unreachable"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// Label renders the status for chat replies.
func (s TorrentStatus) Label() string {
	switch s {
	case TorrentStatusStopped:
		return "🚫 Stopped"
	case TorrentStatusCheckQueued, TorrentStatusChecking:
		return "❓ Checking"
	case TorrentStatusDownloadQueued, TorrentStatusDownloading:
		return "⬇️ Downloading"
	case TorrentStatusSeedQueued, TorrentStatusSeeding:
		return "⬆️ Seeding"
	case TorrentStatusUnreachable:
		return "😞 Cannot find peers"
	}
	return "❔ Unknown"
}

// Torrent is a torrent as reported by the torrent service.
type Torrent struct {
	ID      int64
	Name    string
	Status  TorrentStatus
	AddedAt time.Time
}
