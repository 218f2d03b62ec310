package notifier_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"torrent-notify/internal/notifier"
	"torrent-notify/internal/telegram"
)

type senderFunc func(ctx context.Context, chatID int64, text string) error

func (f senderFunc) SendMessage(ctx context.Context, chatID int64, text string) error {
	return f(ctx, chatID, text)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestFinishedMessage(t *testing.T) {
	if got := notifier.FinishedMessage("X"); got != `✅ Torrent finished "X"` {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestNotify_Delivers(t *testing.T) {
	var gotChat int64
	var gotText string
	n := notifier.New(senderFunc(func(_ context.Context, chatID int64, text string) error {
		gotChat, gotText = chatID, text
		return nil
	}), quietLogger())

	if err := n.Notify(context.Background(), 555, "hello"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if gotChat != 555 || gotText != "hello" {
		t.Fatalf("unexpected delivery %d %q", gotChat, gotText)
	}
}

func TestNotify_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"blocked", &telegram.APIError{Method: "sendMessage", Code: 403, Description: "Forbidden: bot was blocked by the user"}, true},
		{"chat not found", &telegram.APIError{Method: "sendMessage", Code: 400, Description: "Bad Request: chat not found"}, true},
		{"bad request", &telegram.APIError{Method: "sendMessage", Code: 400, Description: "Bad Request: message is too long"}, false},
		{"rate limited", &telegram.APIError{Method: "sendMessage", Code: 429, Description: "Too Many Requests"}, false},
		{"network", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := notifier.New(senderFunc(func(context.Context, int64, string) error { return tt.err }), quietLogger())
			err := n.Notify(context.Background(), 1, "x")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, notifier.ErrRecipientUnreachable); got != tt.permanent {
				t.Fatalf("permanent = %v, want %v (%v)", got, tt.permanent, err)
			}
		})
	}
}
