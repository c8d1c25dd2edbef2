package watch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/event"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/registry"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/store"
)

// ChangeFeedWatcher consumes the projects DB changes feed (C3) and
// resolves each document's module location via the registry (C6),
// emitting a ProjectChange event per resolved document. If the
// registry does not resolve the document's method, the event is
// suppressed: the document is not of interest to this process.
type ChangeFeedWatcher struct {
	Store        *store.ProjectStore
	Registry     *registry.Registry
	PollInterval time.Duration

	stopped  chan struct{}
	stopOnce sync.Once
}

// NewChangeFeedWatcher returns a ChangeFeedWatcher over store,
// resolving locations via reg. pollInterval defaults to 30s when
// zero; it governs the delay before reconnecting after the
// underlying stream ends or errors.
func NewChangeFeedWatcher(projectStore *store.ProjectStore, reg *registry.Registry, pollInterval time.Duration) *ChangeFeedWatcher {
	if pollInterval == 0 {
		pollInterval = 30 * time.Second
	}
	return &ChangeFeedWatcher{
		Store:        projectStore,
		Registry:     reg,
		PollInterval: pollInterval,
		stopped:      make(chan struct{}),
	}
}

// Start drains the changes feed until ctx is cancelled or Stop is
// called. Errors opening a drain are logged and swallowed; the loop
// retries after PollInterval.
func (w *ChangeFeedWatcher) Start(ctx context.Context, emit Emit) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stopped:
			return nil
		default:
		}

		changes, err := w.Store.Changes(ctx)
		if err != nil {
			logrus.WithError(err).Warn("watch(changefeed): failed to open changes stream, retrying")
			if !w.sleep(ctx) {
				return nil
			}
			continue
		}

		w.drain(changes, emit)

		select {
		case <-ctx.Done():
			return nil
		case <-w.stopped:
			return nil
		default:
		}
		if !w.sleep(ctx) {
			return nil
		}
	}
}

// Stop signals Start's loop to return at its next opportunity.
func (w *ChangeFeedWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopped) })
}

func (w *ChangeFeedWatcher) drain(changes <-chan store.Change, emit Emit) {
	for {
		var change store.Change
		select {
		case <-w.stopped:
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			change = c
		}
		location, ok := w.Registry.Resolve(change.Document.LibraryConstructionMethod())
		if !ok {
			continue
		}
		emit(event.New(event.ProjectChange, "changefeed", map[string]interface{}{
			"document":        change.Document,
			"module_location": location,
		}))
	}
}

func (w *ChangeFeedWatcher) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-w.stopped:
		return false
	case <-time.After(w.PollInterval):
		return true
	}
}
