package telegram_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"torrent-notify/internal/telegram"
)

const getMeResponse = `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"relay","username":"relay_bot"}}`

// newAPI serves getMe and hands every other method to handle.
func newAPI(t *testing.T, handle func(method string, w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := "/botTOKEN/"
		if !strings.HasPrefix(r.URL.Path, prefix) {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		method := strings.TrimPrefix(r.URL.Path, prefix)
		if method == "getMe" {
			w.Write([]byte(getMeResponse)) //nolint:errcheck
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		handle(method, w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, apiURL string) *telegram.Client {
	t.Helper()
	client, err := telegram.NewClient(telegram.Config{Token: "TOKEN", APIURL: apiURL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestClient_SendMessage(t *testing.T) {
	var (
		mu   sync.Mutex
		chat string
		text string
	)
	srv := newAPI(t, func(method string, w http.ResponseWriter, r *http.Request) {
		if method != "sendMessage" {
			t.Errorf("unexpected method %s", method)
		}
		mu.Lock()
		chat, text = r.FormValue("chat_id"), r.FormValue("text")
		mu.Unlock()
		w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":555,"type":"private"}}}`)) //nolint:errcheck
	})

	client := newClient(t, srv.URL)
	if err := client.SendMessage(context.Background(), 555, `✅ Torrent finished "X"`); err != nil {
		t.Fatalf("send: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if chat != "555" || text != `✅ Torrent finished "X"` {
		t.Fatalf("unexpected payload chat=%q text=%q", chat, text)
	}
}

func TestClient_SendMessage_APIError(t *testing.T) {
	srv := newAPI(t, func(_ string, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)) //nolint:errcheck
	})

	err := newClient(t, srv.URL).SendMessage(context.Background(), 1, "hi")
	var apiErr *telegram.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != 403 || apiErr.Method != "sendMessage" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestNewClient_RejectsBadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := telegram.NewClient(telegram.Config{Token: "TOKEN", APIURL: srv.URL})
	var apiErr *telegram.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 401 {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
}

func TestNewClient_ErrorHidesToken(t *testing.T) {
	_, err := telegram.NewClient(telegram.Config{Token: "123456:SECRETTOKEN", APIURL: "http://127.0.0.1:1"})
	if err == nil {
		t.Fatal("expected connection error")
	}
	if strings.Contains(err.Error(), "SECRETTOKEN") {
		t.Fatalf("error leaks the token: %v", err)
	}
}

func TestClient_FileURL(t *testing.T) {
	srv := newAPI(t, func(method string, w http.ResponseWriter, r *http.Request) {
		if method != "getFile" || r.FormValue("file_id") != "abc" {
			t.Errorf("unexpected call %s file_id=%q", method, r.FormValue("file_id"))
		}
		w.Write([]byte(`{"ok":true,"result":{"file_id":"abc","file_path":"documents/file_1.torrent"}}`)) //nolint:errcheck
	})

	url, err := newClient(t, srv.URL).FileURL(context.Background(), "abc")
	if err != nil {
		t.Fatalf("file url: %v", err)
	}
	if url != srv.URL+"/file/botTOKEN/documents/file_1.torrent" {
		t.Fatalf("unexpected url %s", url)
	}
}

func TestClient_FileURL_RejectsEmptyID(t *testing.T) {
	srv := newAPI(t, func(method string, _ http.ResponseWriter, _ *http.Request) {
		t.Errorf("unexpected call %s", method)
	})
	if _, err := newClient(t, srv.URL).FileURL(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty file id")
	}
}

func TestClient_GetUpdates(t *testing.T) {
	srv := newAPI(t, func(method string, w http.ResponseWriter, r *http.Request) {
		if method != "getUpdates" {
			t.Errorf("unexpected method %s", method)
		}
		if r.FormValue("offset") != "10" {
			t.Errorf("expected offset 10, got %q", r.FormValue("offset"))
		}
		w.Write([]byte(`{"ok":true,"result":[{"update_id":10,"message":{"message_id":1,"date":0,"chat":{"id":5,"type":"private","username":"alice"},"document":{"file_id":"f","mime_type":"application/x-bittorrent"}}}]}`)) //nolint:errcheck
	})

	updates, err := newClient(t, srv.URL).GetUpdates(context.Background(), 10, time.Second)
	if err != nil {
		t.Fatalf("get updates: %v", err)
	}
	if len(updates) != 1 || updates[0].UpdateID != 10 || updates[0].Message == nil || updates[0].Message.Document == nil {
		t.Fatalf("unexpected updates %+v", updates)
	}
	msg := updates[0].Message
	if msg.Chat.ID != 5 || msg.Chat.Username != "alice" || msg.Document.MimeType != "application/x-bittorrent" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestClient_GetUpdates_ReturnsOnCancel(t *testing.T) {
	release := make(chan struct{})
	srv := newAPI(t, func(_ string, w http.ResponseWriter, _ *http.Request) {
		<-release
		w.Write([]byte(`{"ok":true,"result":[]}`)) //nolint:errcheck
	})
	defer close(release)
	client := newClient(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if _, err := client.GetUpdates(ctx, 0, 30*time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
