// Package watcher submits campaign files to the run queue as they appear in
// the campaigns directory.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jgueth/campaign-automation/internal/logging"
	"github.com/jgueth/campaign-automation/internal/runner"
)

// Submitter accepts jobs. *runner.Runner satisfies it.
type Submitter interface {
	Submit(job runner.Job) (*runner.Ticket, error)
}

// Options configure a Watcher.
type Options struct {
	Dir      string
	Debounce time.Duration
	Sync     bool
}

// Stats counts watcher activity.
type Stats struct {
	Created       int
	Modified      int
	Submitted     int
	Duplicates    int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// Watcher watches a campaigns directory (and its subdirectories) for created
// or modified .yaml/.yml files. Each file settles for the debounce window
// before it is submitted.
type Watcher struct {
	mu          sync.Mutex
	fsw         *fsnotify.Watcher
	sub         Submitter
	dir         string
	sync        bool
	debounceDur time.Duration
	pending     map[string]time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	stats       Stats
}

// New creates a watcher for opts.Dir.
func New(sub Submitter, opts Options) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, errors.New("watch directory is required")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = time.Second
	}
	return &Watcher{
		fsw:         fsw,
		sub:         sub,
		dir:         opts.Dir,
		sync:        opts.Sync,
		debounceDur: opts.Debounce,
		pending:     make(map[string]time.Time),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	info, err := os.Stat(w.dir)
	if err != nil || !info.IsDir() {
		w.fsw.Close()
		return fmt.Errorf("watch directory does not exist: %s", w.dir)
	}
	if err := w.addTree(w.dir); err != nil {
		w.fsw.Close()
		return err
	}
	w.running = true
	logging.Get(logging.CategoryWatcher).Info("Watching %s for .yaml/.yml files (debounce=%v, sync=%t)", w.dir, w.debounceDur, w.sync)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.fsw.Close(); err != nil {
		logging.Get(logging.CategoryWatcher).Error("Error closing file watcher: %v", err)
	}
	logging.Get(logging.CategoryWatcher).Info("Watcher stopped")
}

// Done is closed when the event loop exits.
func (w *Watcher) Done() <-chan struct{} { return w.doneCh }

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		logging.WatcherDebug("Watching directory %s", path)
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounceDur / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatcher).Error("Watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case <-ticker.C:
			w.flush()
		}
	}
}

// IsCampaignFile reports whether name has a campaign file extension.
func IsCampaignFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	var created bool
	switch {
	case event.Has(fsnotify.Create):
		created = true
	case event.Has(fsnotify.Write):
	default:
		return
	}

	if created {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				logging.Get(logging.CategoryWatcher).Warn("Could not watch new directory: %v", err)
			}
			return
		}
	}
	if !IsCampaignFile(event.Name) {
		logging.WatcherDebug("Ignoring %s", event.Name)
		return
	}

	w.mu.Lock()
	if created {
		w.stats.Created++
	} else {
		w.stats.Modified++
	}
	w.stats.LastEventPath = event.Name
	w.stats.LastEventTime = time.Now()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

// flush submits files whose last event is older than the debounce window.
func (w *Watcher) flush() {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounceDur {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	sort.Strings(ready)
	for _, path := range ready {
		w.submit(path)
	}
}

func (w *Watcher) submit(path string) {
	log := logging.Get(logging.CategoryWatcher)
	if _, err := os.Stat(path); err != nil {
		logging.WatcherDebug("File gone before it settled: %s", path)
		return
	}

	t, err := w.sub.Submit(runner.Job{
		CampaignFile: path,
		Sync:         w.sync,
		Trigger:      runner.TriggerWatcher,
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case errors.Is(err, runner.ErrDuplicate):
		w.stats.Duplicates++
		log.Info("Skipping %s: already processed", filepath.Base(path))
	case err != nil:
		w.stats.Errors++
		log.Error("Could not queue %s: %v", filepath.Base(path), err)
	default:
		w.stats.Submitted++
		log.Info("Queued %s as run %s", filepath.Base(path), t.ID)
	}
}
