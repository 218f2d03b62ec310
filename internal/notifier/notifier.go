package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"torrent-notify/internal/telegram"
)

// ErrRecipientUnreachable marks a delivery that can never succeed, e.g. the chat blocked the bot.
var ErrRecipientUnreachable = errors.New("recipient unreachable")

// Notifier delivers a text notification to a chat.
type Notifier interface {
	Notify(ctx context.Context, recipientID int64, text string) error
}

// Sender is the outbound side of the messaging platform.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// FinishedMessage renders the completion notification for a torrent.
func FinishedMessage(name string) string {
	return fmt.Sprintf("✅ Torrent finished \"%s\"", name)
}

type telegramNotifier struct {
	sender Sender
	logger *logrus.Logger
}

// New builds a Notifier on top of the chat platform sender.
func New(sender Sender, logger *logrus.Logger) Notifier {
	if logger == nil {
		logger = logrus.New()
	}
	return &telegramNotifier{sender: sender, logger: logger}
}

func (n *telegramNotifier) Notify(ctx context.Context, recipientID int64, text string) error {
	err := n.sender.SendMessage(ctx, recipientID, text)
	if err == nil {
		return nil
	}

	logger := n.logger.WithField("chat_id", recipientID)
	if permanent(err) {
		logger.Warnf("notification dropped: %v", err)
		return fmt.Errorf("%w: %v", ErrRecipientUnreachable, err)
	}
	logger.Errorf("notification failed: %v", err)
	return fmt.Errorf("notify chat %d: %w", recipientID, err)
}

func permanent(err error) bool {
	var apiErr *telegram.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case http.StatusForbidden:
		return true
	case http.StatusBadRequest:
		return strings.Contains(strings.ToLower(apiErr.Description), "chat not found")
	}
	return false
}

var _ Notifier = (*telegramNotifier)(nil)
