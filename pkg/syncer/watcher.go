package syncer

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher turns filesystem events under the sync root into debounced sync
// triggers. New directories are added to the watch set as they appear.
type Watcher struct {
	watcher  *fsnotify.Watcher
	queue    *TriggerQueue
	root     string
	logger   zerolog.Logger
	debounce time.Duration
	timer    *time.Timer
	stopCh   chan struct{}
}

// NewWatcher creates a watcher that enqueues syncs on the given queue
func NewWatcher(root string, debounce time.Duration, queue *TriggerQueue, logger zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	w := &Watcher{
		watcher:  fsw,
		queue:    queue,
		root:     root,
		logger:   logger.With().Str("component", "watcher").Logger(),
		debounce: debounce,
		stopCh:   make(chan struct{}),
	}

	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.run()

	return w, nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	close(w.stopCh)
	return w.watcher.Close()
}

// addTree registers every directory under path, skipping state and VCS dirs
func (w *Watcher) addTree(path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if name == ".memsync" || name == ".git" || name == ".jj" {
			return filepath.SkipDir
		}
		return w.watcher.Add(p)
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.ignored(event.Name) {
				continue
			}

			if event.Has(fsnotify.Create) {
				// A created directory needs watching for its own events.
				if err := w.addTree(event.Name); err == nil {
					w.logger.Debug().Str("dir", event.Name).Msg("Watching new directory")
				}
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.logger.Debug().
					Str("file", filepath.Base(event.Name)).
					Str("op", event.Op.String()).
					Msg("File change detected")
				w.scheduleTrigger()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("File watcher error")

		case <-w.stopCh:
			return
		}
	}
}

// ignored filters events from the state directory and VCS internals
func (w *Watcher) ignored(name string) bool {
	rel, err := filepath.Rel(w.root, name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, prefix := range []string{".memsync", ".git", ".jj"} {
		if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
			return true
		}
	}
	return false
}

// scheduleTrigger debounces the enqueue so rapid edit bursts fire once
func (w *Watcher) scheduleTrigger() {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.queue.Enqueue("filesystem", nil)
	})
}
