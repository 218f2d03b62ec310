package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const DefaultAPIURL = "https://api.telegram.org"

// APIError is a failed Bot API call.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

type Config struct {
	Token   string
	APIURL  string
	Timeout time.Duration
	// PollTimeout is the longest getUpdates wait the client has to accommodate.
	PollTimeout time.Duration
	// RateLimit caps outbound sendMessage calls per second; zero disables limiting.
	RateLimit float64
	Logger    *logrus.Logger
}

// Client adapts the Bot API library to the relay's context-aware surface.
type Client struct {
	api     *tgbotapi.BotAPI
	token   string
	apiURL  string
	limiter *rate.Limiter
}

// NewClient connects to the Bot API and verifies the token with getMe.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.Logger != nil {
		_ = tgbotapi.SetLogger(cfg.Logger)
	}

	apiURL := strings.TrimRight(cfg.APIURL, "/")
	httpClient := &http.Client{Timeout: cfg.Timeout + cfg.PollTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, apiURL+"/bot%s/%s", httpClient)
	if err != nil {
		return nil, wrapError("getMe", err)
	}

	c := &Client{
		api:    api,
		token:  cfg.Token,
		apiURL: apiURL,
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c, nil
}

// SendMessage posts text to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}
	_, err := withContext(ctx, func() (tgbotapi.Message, error) {
		return c.api.Send(tgbotapi.NewMessage(chatID, text))
	})
	if err != nil {
		return wrapError("sendMessage", err)
	}
	return nil
}

// GetUpdates long-polls for updates newer than offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	cfg := tgbotapi.NewUpdate(int(offset))
	cfg.Timeout = int(timeout.Seconds())
	cfg.AllowedUpdates = []string{"message"}

	raw, err := withContext(ctx, func() ([]tgbotapi.Update, error) {
		return c.api.GetUpdates(cfg)
	})
	if err != nil {
		return nil, wrapError("getUpdates", err)
	}

	updates := make([]Update, len(raw))
	for i, u := range raw {
		updates[i] = fromAPIUpdate(u)
	}
	return updates, nil
}

// FileURL resolves a file id to a URL the torrent service can fetch.
func (c *Client) FileURL(ctx context.Context, fileID string) (string, error) {
	if strings.TrimSpace(fileID) == "" {
		return "", errors.New("file id is required")
	}
	file, err := withContext(ctx, func() (tgbotapi.File, error) {
		return c.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	})
	if err != nil {
		return "", wrapError("getFile", err)
	}
	if file.FilePath == "" {
		return "", fmt.Errorf("telegram getFile: no path for file %s", fileID)
	}
	return fmt.Sprintf("%s/file/bot%s/%s", c.apiURL, c.token, file.FilePath), nil
}

// withContext returns early when ctx ends; the library call itself is bounded by the http timeout.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{value: v, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-done:
		return r.value, r.err
	}
}

func wrapError(method string, err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &APIError{Method: method, Code: apiErr.Code, Description: apiErr.Message}
	}
	// url.Error would leak the token embedded in the path
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("telegram %s: %w", method, urlErr.Err)
	}
	return fmt.Errorf("telegram %s: %w", method, err)
}

func fromAPIUpdate(u tgbotapi.Update) Update {
	out := Update{UpdateID: int64(u.UpdateID)}
	m := u.Message
	if m == nil {
		return out
	}

	msg := &Message{
		MessageID: int64(m.MessageID),
		Text:      m.Text,
	}
	if m.From != nil {
		msg.From = &User{ID: m.From.ID, Username: m.From.UserName}
	}
	if m.Chat != nil {
		msg.Chat = Chat{ID: m.Chat.ID, Type: m.Chat.Type, Username: m.Chat.UserName}
	}
	if m.Document != nil {
		msg.Document = &Document{
			FileID:   m.Document.FileID,
			FileName: m.Document.FileName,
			MimeType: m.Document.MimeType,
		}
	}
	out.Message = msg
	return out
}
