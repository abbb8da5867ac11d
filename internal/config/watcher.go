package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/icsd/icsd/internal/xerrors"
	"go.uber.org/zap"
)

// ReloadFunc is invoked after a debounced external edit to the config
// file. Returning an error just logs; the watcher keeps running.
type ReloadFunc func(File) error

// Watcher watches main.cf for edits made outside the running daemon
// (an operator hand-editing the file, or a config pushed by configuration
// management) and triggers ReloadFunc after they settle.
//
// A debounce timer smooths out editors that perform several writes per
// save, and an own-write flag lets Persister's own writes skip the
// reload they would otherwise trigger.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onReload ReloadFunc
	log      *zap.SugaredLogger

	debounce time.Duration
	timerMu  sync.Mutex
	timer    *time.Timer

	ownWriteMu sync.Mutex
	ownWrite   bool

	done chan struct{}
}

// NewWatcher creates a Watcher on path. Call Start to begin watching.
func NewWatcher(path string, onReload ReloadFunc, log *zap.SugaredLogger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, xerrors.Wrap(err, "create fsnotify watcher")
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, xerrors.Wrapf(err, "watch directory of %s", path)
	}
	return &Watcher{
		path:     path,
		watcher:  fw,
		onReload: onReload,
		log:      log,
		debounce: 500 * time.Millisecond,
		done:     make(chan struct{}),
	}, nil
}

// MarkOwnWrite tells the watcher to ignore the very next write event,
// called by Persister right before it writes main.cf.
func (w *Watcher) MarkOwnWrite() {
	w.ownWriteMu.Lock()
	defer w.ownWriteMu.Unlock()
	w.ownWrite = true
}

func (w *Watcher) consumeOwnWrite() bool {
	w.ownWriteMu.Lock()
	defer w.ownWriteMu.Unlock()
	if w.ownWrite {
		w.ownWrite = false
		return true
	}
	return false
}

// Start spawns the watch loop.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop closes the underlying fsnotify watcher.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if w.consumeOwnWrite() {
				w.log.Debugw("config watcher ignoring own write", "file", event.Name)
				continue
			}
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warnw("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) schedule() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	f, err := ReadFile(w.path)
	if err != nil {
		w.log.Errorw("config reload failed", "error", err)
		return
	}
	if err := w.onReload(f); err != nil {
		w.log.Errorw("config reload callback failed", "error", err)
	}
}
