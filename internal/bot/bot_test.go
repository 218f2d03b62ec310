package bot_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"torrent-notify/internal/bot"
	"torrent-notify/internal/domain"
	"torrent-notify/internal/repository/memory"
	"torrent-notify/internal/service"
	"torrent-notify/internal/telegram"
	"torrent-notify/internal/testsupport"
)

type fakeAPI struct {
	mu      sync.Mutex
	replies map[int64][]string
	fileErr error
	updates [][]telegram.Update
}

func (a *fakeAPI) GetUpdates(ctx context.Context, _ int64, _ time.Duration) ([]telegram.Update, error) {
	a.mu.Lock()
	if len(a.updates) > 0 {
		next := a.updates[0]
		a.updates = a.updates[1:]
		a.mu.Unlock()
		return next, nil
	}
	a.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (a *fakeAPI) SendMessage(_ context.Context, chatID int64, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.replies == nil {
		a.replies = make(map[int64][]string)
	}
	a.replies[chatID] = append(a.replies[chatID], text)
	return nil
}

func (a *fakeAPI) FileURL(_ context.Context, fileID string) (string, error) {
	if a.fileErr != nil {
		return "", a.fileErr
	}
	return "https://api.example/file/" + fileID, nil
}

func (a *fakeAPI) repliesTo(chatID int64) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.replies[chatID]...)
}

type fixture struct {
	api      *fakeAPI
	torrents *testsupport.FakeTorrents
	waitList *memory.WaitListRepository
	bot      *bot.Bot
}

func newFixture() *fixture {
	f := &fixture{
		api:      &fakeAPI{},
		torrents: testsupport.NewFakeTorrents(),
		waitList: memory.NewWaitListRepository(),
	}
	logger := testsupport.QuietLogger()
	submissions := service.NewSubmissionService(f.torrents, f.waitList, logger)
	f.bot = bot.New(bot.Config{AllowedUsers: []string{"@alice"}, Logger: logger}, f.api, submissions, f.torrents)
	return f
}

func torrentMessage(chatID int64, username string) telegram.Message {
	return telegram.Message{
		Chat:     telegram.Chat{ID: chatID, Type: "private", Username: username},
		Document: &telegram.Document{FileID: "file-1", MimeType: "application/x-bittorrent"},
	}
}

func TestHandleMessage_RejectsUnknownUser(t *testing.T) {
	f := newFixture()
	f.bot.HandleMessage(context.Background(), torrentMessage(5, "mallory"))

	if got := f.api.repliesTo(5); len(got) != 1 || got[0] != "You are not authenticated to this bot" {
		t.Fatalf("unexpected replies %v", got)
	}
	if len(f.torrents.AddCalls) != 0 {
		t.Fatal("unauthorised user reached the torrent service")
	}
}

func TestHandleMessage_SubmitsTorrent(t *testing.T) {
	f := newFixture()
	f.bot.HandleMessage(context.Background(), torrentMessage(5, "Alice"))

	got := f.api.repliesTo(5)
	if len(got) != 1 || got[0] != `Added "https://api.example/file/file-1"` {
		t.Fatalf("unexpected replies %v", got)
	}
	entries, _ := f.waitList.GetAll(context.Background())
	if len(entries) != 1 || entries[1] != 5 {
		t.Fatalf("expected {1:5}, got %v", entries)
	}
}

func TestHandleMessage_UnresolvableFile(t *testing.T) {
	f := newFixture()
	f.api.fileErr = errors.New("file is too big")
	f.bot.HandleMessage(context.Background(), torrentMessage(5, "alice"))

	got := f.api.repliesTo(5)
	if len(got) != 1 || !strings.HasPrefix(got[0], "Error: ") {
		t.Fatalf("expected error reply, got %v", got)
	}
	if len(f.torrents.AddCalls) != 0 {
		t.Fatal("expected no add call")
	}
	if entries, _ := f.waitList.GetAll(context.Background()); len(entries) != 0 {
		t.Fatalf("expected empty store, got %v", entries)
	}
}

func TestHandleMessage_IgnoresOtherDocuments(t *testing.T) {
	f := newFixture()
	msg := torrentMessage(5, "alice")
	msg.Document.MimeType = "application/pdf"
	f.bot.HandleMessage(context.Background(), msg)

	if got := f.api.repliesTo(5); len(got) != 0 {
		t.Fatalf("expected no reply, got %v", got)
	}
}

func TestHandleMessage_Commands(t *testing.T) {
	tests := map[string]string{
		"/start":          "Welcome",
		"/help@relay_bot": "Send me a torrent",
	}
	for text, want := range tests {
		f := newFixture()
		f.bot.HandleMessage(context.Background(), telegram.Message{
			Chat: telegram.Chat{ID: 5, Username: "alice"},
			Text: text,
		})
		if got := f.api.repliesTo(5); len(got) != 1 || got[0] != want {
			t.Errorf("%s: unexpected replies %v", text, got)
		}
	}
}

func TestHandleMessage_ListShowsRecentFirst(t *testing.T) {
	f := newFixture()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 12; i++ {
		f.torrents.Set(domain.Torrent{ID: i, Name: "t" + string(rune('a'+i-1)), Status: domain.TorrentStatusDownloading, AddedAt: base.Add(time.Duration(i) * time.Hour)})
	}
	f.torrents.Set(domain.Torrent{ID: 12, Name: "newest", Status: domain.TorrentStatusSeeding, AddedAt: base.Add(24 * time.Hour)})

	f.bot.HandleMessage(context.Background(), telegram.Message{Chat: telegram.Chat{ID: 5, Username: "alice"}, Text: "/list"})

	got := f.api.repliesTo(5)
	if len(got) != 1 {
		t.Fatalf("expected one reply, got %v", got)
	}
	reply := got[0]
	if !strings.HasPrefix(reply, "Recent torrents (up to 10):\n\n1. ⬆️ Seeding\n  newest") {
		t.Fatalf("unexpected list reply %q", reply)
	}
	if strings.Count(reply, "⬇️ Downloading") != 9 {
		t.Fatalf("expected 9 downloading rows, got %q", reply)
	}
}

func TestRun_ProcessesUpdatesUntilCancelled(t *testing.T) {
	f := newFixture()
	msg := torrentMessage(5, "alice")
	f.api.updates = [][]telegram.Update{{{UpdateID: 1, Message: &msg}}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.bot.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(f.api.repliesTo(5)) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := f.api.repliesTo(5); len(got) != 1 {
		t.Fatalf("expected one reply, got %v", got)
	}
}
