package policy

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	watchDebounce = 500 * time.Millisecond
	pollInterval  = 30 * time.Second
)

// Watch reloads the snapshot when policy files change, until ctx is
// canceled. It prefers fsnotify and falls back to polling when the
// watcher cannot start (some network filesystems).
func (p *DirProvider) Watch(ctx context.Context) {
	w, err := fsnotify.NewWatcher()
	if err == nil {
		if addErr := w.Add(p.dir); addErr != nil {
			_ = w.Close()
			err = addErr
		}
	}
	if err != nil {
		zap.L().Warn("policy: watcher unavailable, polling instead", zap.Error(err))
		go p.poll(ctx)
		return
	}
	go p.watch(ctx, w)
}

func (p *DirProvider) watch(ctx context.Context, w *fsnotify.Watcher) {
	defer func() { _ = w.Close() }()

	// Editors fire several events per save, so reloads are debounced.
	var (
		timer  *time.Timer
		reload <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(filepath.Base(ev.Name), fileSuffix) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				reload = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(watchDebounce)
			}

		case <-reload:
			timer = nil
			reload = nil
			if err := p.Reload(); err != nil {
				zap.L().Warn("policy: reload failed", zap.Error(err))
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			zap.L().Warn("policy: watcher error", zap.Error(err))
		}
	}
}

func (p *DirProvider) poll(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Reload(); err != nil {
				zap.L().Warn("policy: reload failed", zap.Error(err))
			}
		}
	}
}
