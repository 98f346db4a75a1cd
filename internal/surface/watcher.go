package surface

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	defaultDebounceDelay = 100 * time.Millisecond
	changeEventsBuffer   = 1
)

// Watcher monitors the display-layout file and emits debounced change
// notifications. Wire its Events channel to Registry.Invalidate to pick
// up monitor-configuration changes.
type Watcher struct {
	path      string
	fsWatcher *fsnotify.Watcher
	events    chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	delay time.Duration
	wg    sync.WaitGroup
}

// Watch starts watching the layout file's directory (the file itself may
// be replaced atomically by editors) with the default debounce delay.
func Watch(path string) (*Watcher, error) {
	return WatchWithDebounceDelay(path, defaultDebounceDelay)
}

// WatchWithDebounceDelay starts a watcher with a configurable debounce
// delay.
func WatchWithDebounceDelay(path string, delay time.Duration) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:      abs,
		fsWatcher: fsw,
		events:    make(chan struct{}, changeEventsBuffer),
		done:      make(chan struct{}),
		delay:     delay,
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run()
	}()

	return w, nil
}

func (w *Watcher) run() {
	defer close(w.events)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case evt, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != w.path {
				continue
			}
			if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.delay)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-fire:
					default:
					}
				}
				timer.Reset(w.delay)
			}

		case <-fire:
			timer = nil
			fire = nil
			w.emit()

		case _, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal; the registry still serves its
			// last good list.
		}
	}
}

// Events returns a channel signalling debounced layout changes.
func (w *Watcher) Events() <-chan struct{} { return w.events }

// Close stops the watcher and releases OS resources.
func (w *Watcher) Close() error {
	if w == nil {
		return nil
	}
	w.closeOnce.Do(func() {
		close(w.done)
	})
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) emit() {
	select {
	case w.events <- struct{}{}:
	default:
		// Coalesce: one pending notification is enough.
	}
}
