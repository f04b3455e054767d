package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/standgames/stand/internal/catalog"
	"github.com/standgames/stand/internal/config"
	"github.com/standgames/stand/internal/database"
	"github.com/standgames/stand/internal/game"
	"github.com/standgames/stand/internal/migrations"
	"github.com/standgames/stand/internal/notify"
	"github.com/standgames/stand/internal/server"
	"github.com/standgames/stand/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	// --- Redis (optional catalog cache) ---
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		logger.Info("connected to redis")
	}

	st := store.NewSQLite(db)
	cat := catalog.New(st, rdb, cfg.CacheTTL, logger)

	// --- Outbound messaging ---
	var dispatcher notify.Dispatcher
	var usernames server.UsernameResolver
	if cfg.IGPageToken != "" {
		ig := notify.NewInstagram(notify.InstagramConfig{
			PageToken:    cfg.IGPageToken,
			SenderID:     cfg.IGSenderID,
			GraphVersion: cfg.IGGraphVersion,
			Timeout:      cfg.IGTimeout,
		}, logger)
		defer ig.Close()
		dispatcher = ig
		usernames = ig.Username
		logger.Info("outbound messaging enabled", "sender_id", cfg.IGSenderID)
	} else {
		dispatcher = &notify.Log{Logger: logger}
		logger.Info("outbound messaging disabled, logging instead")
	}

	coordinator := game.NewCoordinator(st, dispatcher, cat, game.DefaultRegistry(), logger)

	// --- Seeding ---
	if err := server.SeedAdmin(ctx, logger, db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}
	if err := server.SeedCatalog(ctx, logger, cat); err != nil {
		return fmt.Errorf("seeding catalog: %w", err)
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Options{
		DB:          db,
		Store:       st,
		Games:       coordinator,
		Catalog:     cat,
		Redis:       rdb,
		VerifyToken: cfg.IGVerifyToken,
		AppSenderID: cfg.IGSenderID,
		Usernames:   usernames,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
