package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Logger is the subset of the host logger the watcher reports through.
type Logger interface {
	Infof(component string, format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, string, ...interface{}) {}

// Watcher signals when the document file changes on disk. The parent
// directory is watched because atomic saves replace the file's inode.
// If fsnotify is unavailable it polls the modification time instead.
type Watcher struct {
	path   string
	events chan struct{}
	done   chan struct{}
	fsw    *fsnotify.Watcher
	once   sync.Once
	logger Logger

	pollInterval time.Duration
}

func NewWatcher(path string, logger Logger) (*Watcher, error) {
	if logger == nil {
		logger = nopLogger{}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	w := &Watcher{
		path:         abs,
		events:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		logger:       logger,
		pollInterval: 2 * time.Second,
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Infof("config", "fsnotify unavailable, polling %s: %v", abs, err)
		go w.poll()
		return w, nil
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		logger.Infof("config", "cannot watch %s, polling: %v", filepath.Dir(abs), err)
		_ = fsw.Close()
		go w.poll()
		return w, nil
	}
	w.fsw = fsw
	go w.watch()
	return w, nil
}

// Events delivers one value per burst of changes.
func (w *Watcher) Events() <-chan struct{} { return w.events }

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		if w.fsw != nil {
			err = w.fsw.Close()
		}
	})
	return err
}

func (w *Watcher) watch() {
	const changed = fsnotify.Write | fsnotify.Create | fsnotify.Rename
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) == w.path && ev.Op&changed != 0 {
				w.notify()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Infof("config", "watch error, switching to polling: %v", err)
			go w.poll()
			return
		}
	}
}

func (w *Watcher) poll() {
	var last time.Time
	if info, err := os.Stat(w.path); err == nil {
		last = info.ModTime()
	}
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			info, err := os.Stat(w.path)
			if err != nil {
				continue
			}
			if info.ModTime().After(last) {
				last = info.ModTime()
				w.notify()
			}
		}
	}
}

func (w *Watcher) notify() {
	select {
	case w.events <- struct{}{}:
	default:
	}
}
