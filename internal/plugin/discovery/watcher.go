package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/burdettadam/marty-microservices-framework-sub004/internal/plugin"
)

// ChangeFunc receives the freshly discovered descriptor set after the
// watched paths changed.
type ChangeFunc func(ctx context.Context, descriptors []plugin.Descriptor)

// Watcher monitors plugin paths for manifest changes and re-runs discovery
// with debouncing, so a burst of filesystem events produces one rescan.
type Watcher struct {
	scanner  *Scanner
	paths    []string
	onChange ChangeFunc

	watcher      *fsnotify.Watcher
	mu           sync.Mutex
	stopChan     chan struct{}
	rescanChan   chan struct{}
	debounceTime time.Duration
	started      bool
}

// NewWatcher creates a watcher over the given plugin paths. onChange is
// invoked after each debounced rescan.
func NewWatcher(scanner *Scanner, paths []string, onChange ChangeFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		ap, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to resolve plugin path %s: %w", p, err)
		}
		abs = append(abs, ap)
	}

	return &Watcher{
		scanner:      scanner,
		paths:        abs,
		onChange:     onChange,
		watcher:      fsw,
		stopChan:     make(chan struct{}),
		rescanChan:   make(chan struct{}, 1),
		debounceTime: 2 * time.Second,
	}, nil
}

// Start begins watching. Unwatchable paths are logged and skipped.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return fmt.Errorf("watcher already started")
	}

	watched := 0
	for _, p := range w.paths {
		if err := w.watcher.Add(p); err != nil {
			slog.Warn("cannot watch plugin path", "path", p, "error", err)
			continue
		}
		watched++
	}
	if watched == 0 {
		_ = w.watcher.Close()
		return fmt.Errorf("no watchable plugin paths")
	}

	slog.Info("starting plugin discovery watcher", "paths", w.paths)
	w.started = true

	go w.watchLoop(ctx)
	go w.rescanLoop(ctx)
	return nil
}

// Stop terminates the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return nil
	}
	w.started = false
	close(w.stopChan)
	return w.watcher.Close()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			slog.Debug("plugin path changed", "file", event.Name, "op", event.Op.String())
			w.trigger()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("plugin discovery watcher error", "error", err)
		}
	}
}

// relevant filters events down to manifest creation, modification and
// removal. Directory creation also counts because a new plugin package
// arrives as a directory.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	if base == ManifestName {
		return true
	}
	// Creates may be new package directories; the rescan sorts it out.
	return event.Op&fsnotify.Create != 0
}

func (w *Watcher) rescanLoop(ctx context.Context) {
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.stopChan:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.rescanChan:
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounceTime, func() {
				w.rescan(ctx)
			})
		}
	}
}

func (w *Watcher) trigger() {
	select {
	case w.rescanChan <- struct{}{}:
	default:
		// Rescan already pending.
	}
}

func (w *Watcher) rescan(ctx context.Context) {
	descriptors, err := w.scanner.Discover(ctx, w.paths)
	if err != nil {
		slog.Error("plugin rescan failed", "error", err)
		return
	}
	slog.Info("plugin paths rescanned", "descriptors", len(descriptors))
	if w.onChange != nil {
		w.onChange(ctx, descriptors)
	}
}
