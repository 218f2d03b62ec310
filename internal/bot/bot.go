package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"torrent-notify/internal/metrics"
	"torrent-notify/internal/service"
	"torrent-notify/internal/telegram"
	"torrent-notify/internal/torrentclient"
)

const (
	torrentMimeType = "application/x-bittorrent"
	listLimit       = 10
)

// API is the part of the Bot API the bot uses.
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
	FileURL(ctx context.Context, fileID string) (string, error)
}

type Config struct {
	// AllowedUsers lists the chat usernames permitted to use the bot.
	AllowedUsers []string
	PollTimeout  time.Duration
	RetryDelay   time.Duration
	Logger       *logrus.Logger
}

// Bot routes inbound chat messages to commands and torrent submissions.
type Bot struct {
	cfg         Config
	api         API
	submissions service.SubmissionService
	torrents    torrentclient.Client
	allowed     map[string]struct{}

	wg sync.WaitGroup
}

func New(cfg Config, api API, submissions service.SubmissionService, torrents torrentclient.Client) *Bot {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedUsers))
	for _, u := range cfg.AllowedUsers {
		u = strings.TrimPrefix(strings.TrimSpace(u), "@")
		if u != "" {
			allowed[strings.ToLower(u)] = struct{}{}
		}
	}
	return &Bot{
		cfg:         cfg,
		api:         api,
		submissions: submissions,
		torrents:    torrents,
		allowed:     allowed,
	}
}

// Run long-polls for updates until ctx is cancelled. Handlers run concurrently and are
// awaited before Run returns.
func (b *Bot) Run(ctx context.Context) error {
	defer b.wg.Wait()

	var offset int64
	b.cfg.Logger.Info("bot polling for updates")
	for {
		updates, err := b.api.GetUpdates(ctx, offset, b.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.cfg.Logger.Warnf("get updates failed, retrying in %s: %v", b.cfg.RetryDelay, err)
			select {
			case <-time.After(b.cfg.RetryDelay):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Message == nil {
				continue
			}
			msg := *u.Message
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.HandleMessage(context.WithoutCancel(ctx), msg)
			}()
		}
	}
}

// HandleMessage processes a single inbound message.
func (b *Bot) HandleMessage(ctx context.Context, msg telegram.Message) {
	logger := b.cfg.Logger.WithFields(logrus.Fields{"chat_id": msg.Chat.ID, "username": msg.Chat.Username})

	if !b.authorized(msg.Chat) {
		logger.Warn("access denied")
		b.reply(ctx, msg.Chat.ID, "You are not authenticated to this bot")
		return
	}

	if msg.Document != nil && msg.Document.MimeType == torrentMimeType {
		b.addTorrent(ctx, msg, logger)
		return
	}

	switch command(msg.Text) {
	case "/start":
		b.reply(ctx, msg.Chat.ID, "Welcome")
	case "/help":
		b.reply(ctx, msg.Chat.ID, "Send me a torrent")
	case "/list":
		b.listTorrents(ctx, msg.Chat.ID, logger)
	default:
		logger.Debug("ignoring message")
	}
}

func (b *Bot) authorized(chat telegram.Chat) bool {
	_, ok := b.allowed[strings.ToLower(chat.Username)]
	return ok && chat.Username != ""
}

func (b *Bot) addTorrent(ctx context.Context, msg telegram.Message, logger *logrus.Entry) {
	name, err := b.submit(ctx, msg)
	if err != nil {
		logger.Warnf("submission failed: %v", err)
		b.reply(ctx, msg.Chat.ID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(ctx, msg.Chat.ID, fmt.Sprintf("Added \"%s\"", name))
}

func (b *Bot) submit(ctx context.Context, msg telegram.Message) (string, error) {
	url, err := b.api.FileURL(ctx, msg.Document.FileID)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(service.StageResolve).Inc()
		return "", service.ResolveError(fmt.Errorf("resolve file: %w", err))
	}
	torrent, err := b.submissions.Submit(ctx, url, msg.Chat.ID)
	if err != nil {
		return "", err
	}
	return torrent.Name, nil
}

func (b *Bot) listTorrents(ctx context.Context, chatID int64, logger *logrus.Entry) {
	torrents, err := b.torrents.List(ctx)
	if err != nil {
		logger.Warnf("list torrents: %v", err)
		b.reply(ctx, chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	sort.SliceStable(torrents, func(i, j int) bool { return torrents[i].AddedAt.After(torrents[j].AddedAt) })
	if len(torrents) > listLimit {
		torrents = torrents[:listLimit]
	}

	rows := make([]string, len(torrents))
	for i, t := range torrents {
		rows[i] = fmt.Sprintf("\n%d. %s\n  %s", i+1, t.Status.Label(), t.Name)
	}
	b.reply(ctx, chatID, fmt.Sprintf("Recent torrents (up to %d):\n%s", listLimit, strings.Join(rows, "\n")))
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.api.SendMessage(ctx, chatID, text); err != nil {
		b.cfg.Logger.WithField("chat_id", chatID).Warnf("reply failed: %v", err)
	}
}

// command extracts "/cmd" from "/cmd@botname args".
func command(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	if i := strings.IndexAny(text, " \n"); i >= 0 {
		text = text[:i]
	}
	if i := strings.Index(text, "@"); i >= 0 {
		text = text[:i]
	}
	return strings.ToLower(text)
}
