package reconciler

import (
	"reflect"
	"testing"

	"torrent-notify/internal/domain"
)

func TestClassify(t *testing.T) {
	snapshot := map[int64]int64{17: 555, 42: 777, 50: 1, 60: 2, 70: 3}
	torrents := []domain.Torrent{
		{ID: 17, Name: "X", Status: domain.TorrentStatusSeeding},
		{ID: 50, Name: "Y", Status: domain.TorrentStatusChecking},
		{ID: 60, Name: "Z", Status: domain.TorrentStatus(11)},
		{ID: 70, Name: "W", Status: domain.TorrentStatusUnreachable},
		{ID: 99, Name: "not ours", Status: domain.TorrentStatusSeeding},
	}

	plan := Classify(snapshot, torrents)

	if !reflect.DeepEqual(plan.Vanished, []int64{42}) {
		t.Errorf("vanished = %v", plan.Vanished)
	}
	wantFinished := []Completion{
		{TorrentID: 17, RecipientID: 555, Name: "X"},
		{TorrentID: 70, RecipientID: 3, Name: "W"},
	}
	if !reflect.DeepEqual(plan.Finished, wantFinished) {
		t.Errorf("finished = %+v", plan.Finished)
	}
	if !reflect.DeepEqual(plan.Pending, []int64{50, 60}) {
		t.Errorf("pending = %v", plan.Pending)
	}
	if !reflect.DeepEqual(plan.Unknown, []int64{60}) {
		t.Errorf("unknown = %v", plan.Unknown)
	}
}

func TestClassify_SeedQueuedIsNotFinished(t *testing.T) {
	plan := Classify(map[int64]int64{1: 1}, []domain.Torrent{{ID: 1, Status: domain.TorrentStatusSeedQueued}})
	if len(plan.Finished) != 0 || len(plan.Pending) != 1 {
		t.Fatalf("unexpected plan %+v", plan)
	}
}

func TestClassify_EverythingVanished(t *testing.T) {
	plan := Classify(map[int64]int64{3: 1, 1: 1, 2: 1}, nil)
	if !reflect.DeepEqual(plan.Vanished, []int64{1, 2, 3}) {
		t.Fatalf("vanished = %v", plan.Vanished)
	}
}
