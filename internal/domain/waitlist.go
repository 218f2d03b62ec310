package domain

// WaitListEntry links a pending torrent to the chat awaiting its finish notification.
type WaitListEntry struct {
	TorrentID   int64
	RecipientID int64
}
