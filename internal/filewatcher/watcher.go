// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package filewatcher reports changes to a single file, such as the
// config file read by 'cortensor serve'.
package filewatcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWindow is the debounce window used when none is given.
const DefaultWindow = 250 * time.Millisecond

// relevantOps are the operations that can change the file's content.
// Chmod is ignored.
const relevantOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

// Watcher watches one file. The parent directory is watched so that
// editors which save by rename-and-replace are still seen.
//
// Bursts of events within the debounce window produce a single
// notification on Changes.
type Watcher struct {
	path    string
	window  time.Duration
	watcher *fsnotify.Watcher
	changes chan struct{}
	logger  *slog.Logger

	mu    sync.Mutex
	timer *time.Timer

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher creates a watcher for path. A zero window selects
// DefaultWindow; a nil logger uses slog.Default.
func NewWatcher(path string, window time.Duration, logger *slog.Logger) (*Watcher, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch path: %w", err)
	}

	return &Watcher{
		path:    absPath,
		window:  window,
		watcher: fsw,
		changes: make(chan struct{}, 1),
		logger:  logger.With(slog.String("component", "filewatcher"), slog.String("path", absPath)),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Changes receives one value per debounced burst of changes. Pending
// notifications coalesce.
func (w *Watcher) Changes() <-chan struct{} { return w.changes }

// Start runs the event loop until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.eventLoop(ctx)
	w.logger.Debug("file watcher started")
}

// Stop stops the watcher and releases resources. It is safe to call more
// than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) eventLoop(ctx context.Context) {
	defer close(w.doneCh)
	defer w.cancelTimer()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("file watcher stopped (context cancelled)")
			return
		case <-w.stopCh:
			w.logger.Debug("file watcher stopped")
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				w.logger.Warn("file watcher event channel closed")
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.logger.Warn("file watcher error channel closed")
				return
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path || event.Op&relevantOps == 0 {
		return
	}
	w.logger.Debug("file event", "op", event.Op.String())

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.window, w.notify)
}

func (w *Watcher) notify() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

func (w *Watcher) cancelTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
