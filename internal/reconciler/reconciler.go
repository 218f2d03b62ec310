package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"torrent-notify/internal/metrics"
	"torrent-notify/internal/notifier"
	"torrent-notify/internal/repository"
	"torrent-notify/internal/torrentclient"
)

const (
	DefaultInterval    = time.Second
	DefaultPassTimeout = 30 * time.Second
)

type Config struct {
	// Interval is the gap between the end of one pass and the start of the next.
	Interval time.Duration
	// PassTimeout bounds a single pass, including one still running at shutdown.
	PassTimeout time.Duration
	Logger      *logrus.Logger
	// OnPass, if set, observes every pass result.
	OnPass func(PassResult)
}

// PassResult summarises one reconciliation pass.
type PassResult struct {
	ID       string
	Snapshot int
	Vanished int
	Finished int
	Pending  int
	Skipped  bool
	Err      error
	Duration time.Duration
}

// Reconciler polls the torrent service for wait-listed torrents, prunes vanished ones and
// notifies recipients of finished ones.
type Reconciler struct {
	cfg      Config
	waitList repository.WaitListRepository
	torrents torrentclient.Client
	notifier notifier.Notifier

	passMu sync.Mutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg Config, waitList repository.WaitListRepository, torrents torrentclient.Client, n notifier.Notifier) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = DefaultPassTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Reconciler{
		cfg:      cfg,
		waitList: waitList,
		torrents: torrents,
		notifier: n,
	}
}

// Start launches the polling loop. The first pass runs immediately.
func (r *Reconciler) Start(ctx context.Context) error {
	if r.cancel != nil {
		return errors.New("reconciler already started")
	}
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.loop()

	r.cfg.Logger.Infof("reconciler started, interval %s", r.cfg.Interval)
	return nil
}

// Shutdown stops scheduling new passes and waits for the in-flight one to finish.
func (r *Reconciler) Shutdown() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.cfg.Logger.Info("reconciler stopped")
}

func (r *Reconciler) loop() {
	defer r.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-timer.C:
		}

		// detached so that shutdown lets the pass complete
		passCtx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), r.cfg.PassTimeout)
		r.RunPass(passCtx)
		cancel()

		timer.Reset(r.cfg.Interval)
	}
}

// RunPass executes one reconciliation pass. Passes are serialised; errors and panics are
// captured in the result and never escape.
func (r *Reconciler) RunPass(ctx context.Context) (result PassResult) {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	result.ID = uuid.NewString()
	logger := r.cfg.Logger.WithField("pass_id", result.ID)
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			result.Err = fmt.Errorf("pass panicked: %v", rec)
		}
		result.Duration = time.Since(start)
		r.observe(result, logger)
	}()

	result.Err = r.pass(ctx, &result, logger)
	return result
}

func (r *Reconciler) pass(ctx context.Context, result *PassResult, logger *logrus.Entry) error {
	snapshot, err := r.waitList.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("snapshot wait list: %w", err)
	}
	result.Snapshot = len(snapshot)
	if len(snapshot) == 0 {
		result.Skipped = true
		return nil
	}
	logger.Debugf("checking %d torrents", len(snapshot))

	ids := make([]int64, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	torrents, err := r.torrents.QueryByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("query torrents: %w", err)
	}

	plan := Classify(snapshot, torrents)
	result.Pending = len(plan.Pending)

	if len(plan.Vanished) > 0 {
		if err := r.waitList.RemoveMany(ctx, plan.Vanished...); err != nil {
			return fmt.Errorf("prune vanished torrents: %w", err)
		}
		result.Vanished = len(plan.Vanished)
		metrics.VanishedTotal.Add(float64(len(plan.Vanished)))
		for _, id := range plan.Vanished {
			logger.WithField("torrent_id", id).Info("torrent no longer known to torrent service, pruned")
		}
	}

	for _, id := range plan.Unknown {
		logger.WithField("torrent_id", id).Warn("torrent reported an unknown status, leaving pending")
	}

	// notify before removing: a crash in between repeats the notification instead of losing it
	for _, c := range plan.Finished {
		entry := logger.WithFields(logrus.Fields{"torrent_id": c.TorrentID, "chat_id": c.RecipientID})
		if err := r.notifier.Notify(ctx, c.RecipientID, notifier.FinishedMessage(c.Name)); err != nil {
			if !errors.Is(err, notifier.ErrRecipientUnreachable) {
				metrics.NotificationsTotal.WithLabelValues("failed").Inc()
				result.Pending += len(plan.Finished) - result.Finished
				return fmt.Errorf("notify torrent %d: %w", c.TorrentID, err)
			}
			metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
			entry.Warn("recipient unreachable, dropping notification")
		} else {
			metrics.NotificationsTotal.WithLabelValues("sent").Inc()
			entry.Infof("torrent finished: %s", c.Name)
		}

		if err := r.waitList.RemoveMany(ctx, c.TorrentID); err != nil {
			result.Pending += len(plan.Finished) - result.Finished
			return fmt.Errorf("remove finished torrent %d: %w", c.TorrentID, err)
		}
		result.Finished++
	}

	return nil
}

func (r *Reconciler) observe(result PassResult, logger *logrus.Entry) {
	metrics.PassDuration.Observe(result.Duration.Seconds())
	switch {
	case result.Err != nil:
		metrics.PassesTotal.WithLabelValues("error").Inc()
		logger.Errorf("reconcile pass failed: %v", result.Err)
	case result.Skipped:
		metrics.PassesTotal.WithLabelValues("skipped").Inc()
	default:
		metrics.PassesTotal.WithLabelValues("ok").Inc()
	}
	if result.Err == nil {
		metrics.PendingTorrents.Set(float64(result.Pending))
	}

	if r.cfg.OnPass != nil {
		r.cfg.OnPass(result)
	}
}
