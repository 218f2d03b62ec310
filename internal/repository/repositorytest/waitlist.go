// Package repositorytest holds behaviour checks shared by every wait list backend.
package repositorytest

import (
	"context"
	"testing"

	"torrent-notify/internal/repository"
)

// RunWaitListSuite exercises a fresh, initialised repository returned by newRepo.
func RunWaitListSuite(t *testing.T, newRepo func(t *testing.T) repository.WaitListRepository) {
	t.Helper()

	t.Run("put then get", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		if err := repo.Put(ctx, 17, 555); err != nil {
			t.Fatalf("put: %v", err)
		}
		entries, err := repo.GetAll(ctx)
		if err != nil {
			t.Fatalf("get all: %v", err)
		}
		if len(entries) != 1 || entries[17] != 555 {
			t.Fatalf("expected {17:555}, got %v", entries)
		}
	})

	t.Run("last writer wins", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		if err := repo.Put(ctx, 17, 555); err != nil {
			t.Fatalf("put: %v", err)
		}
		if err := repo.Put(ctx, 17, 777); err != nil {
			t.Fatalf("put again: %v", err)
		}
		entries, err := repo.GetAll(ctx)
		if err != nil {
			t.Fatalf("get all: %v", err)
		}
		if len(entries) != 1 || entries[17] != 777 {
			t.Fatalf("expected {17:777}, got %v", entries)
		}
	})

	t.Run("remove many ignores absent ids", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		for id, chat := range map[int64]int64{1: 10, 2: 20, 3: 30} {
			if err := repo.Put(ctx, id, chat); err != nil {
				t.Fatalf("put %d: %v", id, err)
			}
		}
		if err := repo.RemoveMany(ctx, 1, 3, 99); err != nil {
			t.Fatalf("remove: %v", err)
		}
		if err := repo.RemoveMany(ctx, 1); err != nil {
			t.Fatalf("remove twice: %v", err)
		}
		if err := repo.RemoveMany(ctx); err != nil {
			t.Fatalf("remove nothing: %v", err)
		}
		entries, err := repo.GetAll(ctx)
		if err != nil {
			t.Fatalf("get all: %v", err)
		}
		if len(entries) != 1 || entries[2] != 20 {
			t.Fatalf("expected {2:20}, got %v", entries)
		}
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		if err := repo.Put(ctx, 5, 50); err != nil {
			t.Fatalf("put: %v", err)
		}
		snapshot, err := repo.GetAll(ctx)
		if err != nil {
			t.Fatalf("get all: %v", err)
		}
		delete(snapshot, 5)
		again, err := repo.GetAll(ctx)
		if err != nil {
			t.Fatalf("get all: %v", err)
		}
		if again[5] != 50 {
			t.Fatalf("mutating a snapshot changed the store: %v", again)
		}
	})

	t.Run("empty store", func(t *testing.T) {
		entries, err := newRepo(t).GetAll(context.Background())
		if err != nil {
			t.Fatalf("get all: %v", err)
		}
		if len(entries) != 0 {
			t.Fatalf("expected empty snapshot, got %v", entries)
		}
	})
}
