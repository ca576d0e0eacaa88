package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rmax-ai/alertgraph/pkg/catalog"
)

// reloadDebounce batches the burst of events editors emit for one save.
const reloadDebounce = 250 * time.Millisecond

// catalogReloader is the registry surface needed to apply a new catalog.
type catalogReloader interface {
	Reload(ctx context.Context, cat *catalog.Catalog) error
}

// reloadCatalog reads path and hands the result to reg. A catalog that fails
// to parse or validate is logged and the current one stays in place.
func reloadCatalog(ctx context.Context, path string, reg catalogReloader, logger *slog.Logger) error {
	cat, err := catalog.LoadCatalog(path)
	if err != nil {
		logger.Error("catalog_reload_failed", "path", path, "error", err)
		return err
	}
	if err := reg.Reload(ctx, cat); err != nil {
		logger.Error("catalog_reload_failed", "path", path, "error", err)
		return err
	}
	return nil
}

// watchCatalog reloads the catalog on SIGHUP and whenever the file changes,
// until ctx is done. The parent directory is watched so that atomic
// rename-over saves are seen.
func watchCatalog(ctx context.Context, path string, reg catalogReloader, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	logger.Info("catalog_watch_started", "path", path)

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case <-hup:
			logger.Info("reload_signal_received", "signal", "SIGHUP")
			_ = reloadCatalog(ctx, path, reg, logger)

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(reloadDebounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			logger.Info("catalog_file_changed", "path", path)
			_ = reloadCatalog(ctx, path, reg, logger)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("catalog_watch_error", "error", err)
		}
	}
}
