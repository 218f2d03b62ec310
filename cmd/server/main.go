package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"torrent-notify/internal/bot"
	"torrent-notify/internal/config"
	"torrent-notify/internal/downloader"
	apphttp "torrent-notify/internal/http"
	"torrent-notify/internal/metrics"
	"torrent-notify/internal/notifier"
	"torrent-notify/internal/reconciler"
	"torrent-notify/internal/repository"
	"torrent-notify/internal/repository/memory"
	redisrepo "torrent-notify/internal/repository/redis"
	"torrent-notify/internal/repository/sqlite"
	"torrent-notify/internal/service"
	"torrent-notify/internal/telegram"
	"torrent-notify/internal/torrentclient"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	configureLogger(logger, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	waitList, closeStore, err := buildWaitList(cfg, logger)
	if err != nil {
		logger.Fatalf("setup wait list: %v", err)
	}
	defer closeStore.Close()

	if err := waitList.Init(ctx); err != nil {
		logger.Fatalf("init wait list: %v", err)
	}

	torrents, shutdownTorrents, err := buildTorrentClient(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup torrent service: %v", err)
	}
	defer shutdownTorrents()

	tg, err := telegram.NewClient(telegram.Config{
		Token:       cfg.Telegram.Token,
		APIURL:      cfg.Telegram.APIURL,
		PollTimeout: cfg.Telegram.PollTimeout,
		RateLimit:   cfg.Telegram.RateLimit,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatalf("connect telegram: %v", err)
	}

	submissions := service.NewSubmissionService(torrents, waitList, logger)

	rec := reconciler.New(reconciler.Config{
		Interval:    cfg.Reconcile.Interval,
		PassTimeout: cfg.Reconcile.PassTimeout,
		Logger:      logger,
	}, waitList, torrents, notifier.New(tg, logger))

	if err := rec.Start(ctx); err != nil {
		logger.Fatalf("start reconciler: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.Register(registry)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(waitList, submissions, rec, registry, cfg.HTTP.JWTSecret)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	poller := bot.New(bot.Config{
		AllowedUsers: cfg.Bot.AllowedUsers,
		PollTimeout:  cfg.Telegram.PollTimeout,
		Logger:       logger,
	}, tg, submissions, torrents)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return poller.Run(gctx)
	})
	g.Go(func() error {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("http shutdown: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Errorf("service stopped: %v", err)
	}
	rec.Shutdown()

	logger.Info("bye")
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

func buildWaitList(cfg config.Config, logger *logrus.Logger) (repository.WaitListRepository, io.Closer, error) {
	switch cfg.Store.Backend {
	case config.StoreSQLite:
		db, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		logger.Infof("using sqlite wait list at %s", cfg.Store.SQLitePath)
		return sqlite.NewWaitListRepository(db), db, nil
	case config.StoreRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		logger.Infof("using redis wait list at %s (key %s)", cfg.Store.RedisAddr, cfg.Store.RedisKey)
		return redisrepo.NewWaitListRepository(client, cfg.Store.RedisKey, logger), client, nil
	default:
		logger.Warn("using in-memory wait list, pending torrents are lost on restart")
		return memory.NewWaitListRepository(), io.NopCloser(nil), nil
	}
}

func buildTorrentClient(ctx context.Context, cfg config.Config, logger *logrus.Logger) (torrentclient.Client, func(), error) {
	if cfg.Torrent.Backend == config.TorrentEmbedded {
		engine := downloader.NewEngine(downloader.Config{
			DownloadRoot: cfg.Torrent.DataDir,
			FetchTimeout: cfg.Torrent.Timeout,
			Logger:       logger,
		})
		if err := engine.Start(ctx); err != nil {
			return nil, nil, fmt.Errorf("start torrent engine: %w", err)
		}
		return engine, engine.Shutdown, nil
	}

	transmission, err := torrentclient.NewTransmission(torrentclient.TransmissionConfig{
		URL:      cfg.Torrent.RPCURL,
		Username: cfg.Torrent.Username,
		Password: cfg.Torrent.Password,
		Timeout:  cfg.Torrent.Timeout,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Infof("using transmission at %s", cfg.Torrent.RPCURL)
	return transmission, func() {}, nil
}
