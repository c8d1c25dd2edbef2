package watch

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/event"
)

// FilesystemConfig configures a FilesystemWatcher.
type FilesystemConfig struct {
	InstrumentName string
	Directory      string
	MarkerFiles    map[string]bool
}

// FilesystemWatcher watches Directory recursively for the creation of
// every file named in MarkerFiles. Each subdirectory in which all of
// them have appeared emits exactly one FlowcellReady event and
// is then dropped from tracking, so re-creating a marker afterwards
// does not re-fire.
type FilesystemWatcher struct {
	cfg FilesystemConfig

	mu       sync.Mutex
	seen     map[string]map[string]bool // subfolder -> markers observed
	fired    map[string]bool
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewFilesystemWatcher returns a FilesystemWatcher for cfg.
func NewFilesystemWatcher(cfg FilesystemConfig) *FilesystemWatcher {
	return &FilesystemWatcher{
		cfg:     cfg,
		seen:    make(map[string]map[string]bool),
		fired:   make(map[string]bool),
		stopped: make(chan struct{}),
	}
}

// Start watches cfg.Directory until ctx is cancelled or Stop is
// called. It adds every existing and newly-created subdirectory to
// the fsnotify watch set, since marker files are observed within
// per-flowcell subfolders created after the watch begins.
func (w *FilesystemWatcher) Start(ctx context.Context, emit Emit) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := w.addTree(watcher, w.cfg.Directory); err != nil {
		return err
	}

	log := logrus.WithFields(logrus.Fields{"instrument": w.cfg.InstrumentName, "directory": w.cfg.Directory})
	log.Info("watch(fs): started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stopped:
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handle(watcher, ev, emit, log)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("watch(fs): fsnotify error")
		}
	}
}

// Stop signals Start's loop to return. It does not block on
// quiescence beyond the channel close, since Start observes stopped
// on its very next select iteration.
func (w *FilesystemWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopped) })
}

func (w *FilesystemWatcher) addTree(watcher *fsnotify.Watcher, dir string) error {
	if err := watcher.Add(dir); err != nil {
		return err
	}
	entries, err := readDirNames(dir)
	if err != nil {
		return err
	}
	for _, name := range entries {
		sub := filepath.Join(dir, name)
		if isDir(sub) {
			if err := w.addTree(watcher, sub); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *FilesystemWatcher) handle(watcher *fsnotify.Watcher, ev fsnotify.Event, emit Emit, log *logrus.Entry) {
	if ev.Op&fsnotify.Create == 0 {
		return
	}

	if isDir(ev.Name) {
		// A newly-created subfolder becomes a watch target; marker
		// files are expected to land inside it afterwards.
		if err := watcher.Add(ev.Name); err != nil {
			log.WithError(err).WithField("path", ev.Name).Warn("watch(fs): failed to watch new subfolder")
		}
		return
	}

	subfolder := filepath.Dir(ev.Name)
	name := filepath.Base(ev.Name)
	if !w.cfg.MarkerFiles[name] {
		return
	}

	w.mu.Lock()
	if w.fired[subfolder] {
		w.mu.Unlock()
		return
	}
	markers, ok := w.seen[subfolder]
	if !ok {
		markers = make(map[string]bool)
		w.seen[subfolder] = markers
	}
	markers[name] = true

	complete := len(markers) == len(w.cfg.MarkerFiles)
	if complete {
		w.fired[subfolder] = true
		delete(w.seen, subfolder)
	}
	w.mu.Unlock()

	if !complete {
		return
	}

	log.WithField("subfolder", subfolder).Info("watch(fs): flowcell ready")
	emit(event.New(event.FlowcellReady, w.cfg.InstrumentName, map[string]interface{}{
		"instrument": w.cfg.InstrumentName,
		"subfolder":  subfolder,
	}))
}
