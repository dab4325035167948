package searcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/posindex/pkg/errors"
)

// Watch reloads the index whenever construct replaces term_info.txt in dir.
// Events are debounced so the two renames of one construct run cause a
// single reload. It blocks until ctx is done.
func (s *Service) Watch(ctx context.Context, dir string, debounce time.Duration) error {
	return watchDir(ctx, dir, debounce, s.logger, func(ctx context.Context) {
		if err := s.Reload(ctx); err != nil {
			s.logger.Warn("reload after index change failed", "error", err)
		}
	})
}

// indexChanged reports whether ev means a new term_info.txt is in place.
func indexChanged(ev fsnotify.Event) bool {
	if filepath.Base(ev.Name) != index.TermInfoFile {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write)
}

func watchDir(ctx context.Context, dir string, debounce time.Duration, logger *slog.Logger, onChange func(context.Context)) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating watched directory %s: %w: %w", dir, apperrors.ErrCorpusIO, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	logger.Info("watching index directory", "dir", dir)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if indexChanged(ev) {
				logger.Debug("index file changed", "event", ev.String())
				timer.Reset(debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("index watcher error", "error", err)
		case <-timer.C:
			onChange(ctx)
		}
	}
}
