package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrNotWatchable is returned by Watch when the store is not file backed.
var ErrNotWatchable = errors.New("session store cannot be watched")

type reloadable interface {
	Path() string
	Reload() error
}

// Watch reloads the session whenever another process rewrites the session
// file, then calls fn. It blocks until ctx is done.
//
// The parent directory is watched because writes replace the file by rename.
func (s *Session) Watch(ctx context.Context, fn func()) error {
	rs, ok := s.store.(reloadable)
	if !ok {
		return ErrNotWatchable
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating session watcher: %w", err)
	}
	defer watcher.Close()

	path := filepath.Clean(rs.Path())
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := rs.Reload(); err != nil {
				s.logger.Warn(ctx, "reloading session file", zap.Error(err))
				continue
			}
			s.load()
			if fn != nil {
				fn()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn(ctx, "session watcher error", zap.Error(err))
		}
	}
}
