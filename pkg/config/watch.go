package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of events editors emit on save.
const reloadDebounce = 25 * time.Millisecond

// Watcher reloads the configuration when its file changes. Stop must be
// called to release filesystem resources.
type Watcher struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop halts the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	w.once.Do(func() {
		w.cancel()
		<-w.done
	})
}

// Watch reloads the configuration file whenever it changes and passes every
// valid result to onChange. Invalid reloads are reported to onError and the
// previous configuration stays in effect.
func (l *Loader) Watch(ctx context.Context, onChange func(Config), onError func(error)) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("config: watch requires a change callback")
	}
	if l.file == "" {
		return nil, fmt.Errorf("config: no file configured for watching")
	}
	target, err := filepath.Abs(l.file)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", l.file, err)
	}
	target = filepath.Clean(target)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: watch: %w", err)
	}
	// watch the directory so atomic renames are seen
	if err := fsw.Add(filepath.Dir(target)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("config: watch add %s: %w", filepath.Dir(target), err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w := &Watcher{cancel: cancel, done: make(chan struct{})}

	report := func(err error) {
		if onError != nil {
			onError(err)
		}
	}

	go func() {
		defer close(w.done)
		defer func() {
			if err := fsw.Close(); err != nil {
				report(fmt.Errorf("config: watch close: %w", err))
			}
		}()

		var timer *time.Timer
		var fire <-chan time.Time
		schedule := func() {
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
			fire = timer.C
		}
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-watchCtx.Done():
				return
			case <-fire:
				fire = nil
				cfg, err := l.Load(watchCtx)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return
					}
					report(err)
					continue
				}
				onChange(cfg)
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					report(fmt.Errorf("config: file %s removed", target))
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0 {
					schedule()
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				report(fmt.Errorf("config: watch error: %w", err))
			}
		}
	}()

	return w, nil
}
