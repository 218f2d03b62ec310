package reconciler

import (
	"sort"

	"torrent-notify/internal/domain"
)

// Completion is a finished torrent and the chat waiting for it.
type Completion struct {
	TorrentID   int64
	RecipientID int64
	Name        string
}

// Plan is the outcome of classifying one wait list snapshot against the torrent service.
type Plan struct {
	Vanished []int64
	Finished []Completion
	Pending  []int64
	// Unknown holds ids whose status ordinal is not recognised; they stay pending.
	Unknown []int64
}

// Classify splits the snapshot into vanished, finished and pending torrents.
// Torrents reported by the service but absent from the snapshot are ignored.
// Every slice is ordered by torrent id.
func Classify(snapshot map[int64]int64, torrents []domain.Torrent) Plan {
	var plan Plan
	seen := make(map[int64]struct{}, len(torrents))

	for _, t := range torrents {
		recipient, ok := snapshot[t.ID]
		if !ok {
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}

		switch {
		case !t.Status.Valid():
			plan.Unknown = append(plan.Unknown, t.ID)
			plan.Pending = append(plan.Pending, t.ID)
		case t.Status.Finished():
			plan.Finished = append(plan.Finished, Completion{TorrentID: t.ID, RecipientID: recipient, Name: t.Name})
		default:
			plan.Pending = append(plan.Pending, t.ID)
		}
	}

	for id := range snapshot {
		if _, ok := seen[id]; !ok {
			plan.Vanished = append(plan.Vanished, id)
		}
	}

	sortIDs(plan.Vanished)
	sortIDs(plan.Pending)
	sortIDs(plan.Unknown)
	sort.Slice(plan.Finished, func(i, j int) bool { return plan.Finished[i].TorrentID < plan.Finished[j].TorrentID })
	return plan
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
