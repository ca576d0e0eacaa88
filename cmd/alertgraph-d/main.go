package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rmax-ai/alertgraph/pkg/api"
	"github.com/rmax-ai/alertgraph/pkg/catalog"
	"github.com/rmax-ai/alertgraph/pkg/logging"
	"github.com/rmax-ai/alertgraph/pkg/notify"
	"github.com/rmax-ai/alertgraph/pkg/registry"
	"github.com/rmax-ai/alertgraph/pkg/store"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "alertgraph-d: %v\n", err)
		os.Exit(2)
	}

	logger := logging.New(cfg.LogLevel, os.Stderr)
	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	logger.Info("system_started", "component", "alertgraph-d", "store", cfg.StoreKind)

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		loaded, err := catalog.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return err
		}
		cat = loaded
		logger.Info("catalog_loaded", "path", cfg.CatalogPath, "categories", len(cat.Categories), "regions", len(cat.Regions))
	}

	repo, err := openRepository(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("failed_to_close_store", "error", err)
		} else {
			logger.Info("store_closed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []registry.Option{registry.WithLogger(logger)}
	var redisNotifier *notify.RedisNotifier
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			// Notifications are best effort; keep serving without them.
			logger.Warn("redis_unreachable", "addr", cfg.RedisAddr, "error", err)
		}
		redisNotifier = notify.NewRedisNotifier(client, logger)
		opts = append(opts, registry.WithNotifier(redisNotifier))
		logger.Info("notifier_initialized", "addr", cfg.RedisAddr)
	}

	reg := registry.New(repo, cat, opts...)
	if err := reg.Load(ctx); err != nil {
		return err
	}

	if cfg.CatalogPath != "" {
		go func() {
			if err := watchCatalog(ctx, cfg.CatalogPath, reg, logger); err != nil {
				logger.Warn("catalog_watch_disabled", "error", err)
			}
		}()
	}

	srv := api.NewServer(reg, logger, cfg.Addr)
	if redisNotifier != nil {
		srv.SetRecentSource(redisNotifier)
	}
	if cfg.TLSCertFile != "" {
		srv.SetTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown_initiated")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("failed_to_stop_server", "error", err)
	}

	logger.Info("shutdown_complete")
	return nil
}

func openRepository(cfg Config, logger *slog.Logger) (registry.Repository, error) {
	switch cfg.StoreKind {
	case "json":
		logger.Info("store_initialized", "kind", "json", "path", cfg.DataPath)
		return store.NewFileStore(cfg.DataPath, logger), nil
	case "sqlite":
		st, err := store.NewStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to init store: %w", err)
		}
		logger.Info("store_initialized", "kind", "sqlite", "path", cfg.DBPath)
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported store: %s", cfg.StoreKind)
	}
}
