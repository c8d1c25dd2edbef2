// Package core implements the single process-wide orchestrator
// holding the watcher set and the event_kind -> handler map, and
// driving their concurrent lifecycle: a fixed set of independently
// stoppable background loops under context cancellation and an
// errgroup, plus a run-flag guarding re-entrant Start calls.
package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/event"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/handler"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/registry"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/store"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/watch"
)

// Core is the single process-wide orchestrator. Handle looks up the
// registered handler and never blocks on its work: events carrying a
// project document run the handler's RunNow in a new goroutine under
// that project's lock, and other events go through the handler's
// asynchronous Call.
type Core struct {
	mu       sync.Mutex
	handlers map[event.Kind]handler.Handler
	watchers []watch.Watcher

	running  bool
	stop     context.CancelFunc
	stopped  chan struct{}

	projectLocks sync.Map // project id (string) -> *sync.Mutex, / property 8

	ProjectStore *store.ProjectStore
	Registry     *registry.Registry
}

// New returns an empty Core bound to projectStore and reg (used by
// RunOnce and the built-in change-feed watcher).
func New(projectStore *store.ProjectStore, reg *registry.Registry) *Core {
	return &Core{
		handlers:     make(map[event.Kind]handler.Handler),
		ProjectStore: projectStore,
		Registry:     reg,
	}
}

// RegisterHandler registers h for kind. Re-registration overwrites
// the previous handler.
func (c *Core) RegisterHandler(kind event.Kind, h handler.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[kind] = h
}

// AddWatcher registers w to be started/stopped alongside every other
// watcher.
func (c *Core) AddWatcher(w watch.Watcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, w)
}

// Handle looks up the handler registered for ev.Kind and schedules its
// work without blocking on it. Events carrying a project document are run
// under that project's own lock, serializing lifecycle passes for the
// same project id; other events use the
// handler's own fire-and-forget Call.
func (c *Core) Handle(ctx context.Context, ev event.Event) {
	c.mu.Lock()
	h, ok := c.handlers[ev.Kind]
	c.mu.Unlock()
	if !ok {
		logrus.WithField("event_kind", ev.Kind).Debug("core: no handler registered for event kind, dropping")
		return
	}

	payload := ev.Payload
	if pid := projectIDFromPayload(payload); pid != "" {
		lock := c.lockFor(pid)
		go func() {
			lock.Lock()
			defer lock.Unlock()
			h.RunNow(ctx, payload)
		}()
		return
	}
	h.Call(ctx, payload)
}

// lockFor returns the per-project mutex serializing lifecycle passes
// for projectID.
func (c *Core) lockFor(projectID string) *sync.Mutex {
	v, _ := c.projectLocks.LoadOrStore(projectID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func projectIDFromPayload(payload map[string]interface{}) string {
	doc, ok := payload["document"].(*store.ProjectDocument)
	if !ok {
		return ""
	}
	return doc.ProjectID
}

// Start launches every registered watcher concurrently and awaits
// them all. A second call while already running is a no-op (logged).
func (c *Core) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		logrus.Warn("core: start called while already running")
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.running = true
	c.stop = cancel
	c.stopped = make(chan struct{})
	watchers := append([]watch.Watcher(nil), c.watchers...)
	c.mu.Unlock()

	logrus.WithField("watcher_count", len(watchers)).Info("core: starting")

	g, gctx := errgroup.WithContext(runCtx)
	for _, w := range watchers {
		w := w
		g.Go(func() error {
			return w.Start(gctx, func(ev event.Event) { c.Handle(gctx, ev) })
		})
	}

	err := g.Wait()

	c.mu.Lock()
	c.running = false
	close(c.stopped)
	c.mu.Unlock()

	return err
}

// Stop signals every watcher and awaits Start's return. Safe to call
// when not running.
func (c *Core) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	watchers := append([]watch.Watcher(nil), c.watchers...)
	cancel := c.stop
	stopped := c.stopped
	c.mu.Unlock()

	for _, w := range watchers {
		w.Stop()
	}
	cancel()
	<-stopped
}

// RunOnce fetches the project document identified by docID, resolves
// its module via the registry, and invokes the ProjectChange handler's
// blocking entry point exactly once. It fails fast — logging
// and returning — if the document or module cannot be resolved.
func (c *Core) RunOnce(ctx context.Context, docID string) error {
	doc, err := c.ProjectStore.Fetch(ctx, docID)
	if err != nil {
		logrus.WithError(err).WithField("doc_id", docID).Error("core: run_once failed to fetch document")
		return err
	}

	location, ok := c.Registry.Resolve(doc.LibraryConstructionMethod())
	if !ok {
		logrus.WithField("doc_id", docID).Error("core: run_once could not resolve a module for this document")
		return fmt.Errorf("no module resolves method %q", doc.LibraryConstructionMethod())
	}

	c.mu.Lock()
	h, ok := c.handlers[event.ProjectChange]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("no handler registered for %s", event.ProjectChange)
	}

	lock := c.lockFor(doc.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	h.RunNow(ctx, map[string]interface{}{
		"document":        doc,
		"module_location": location,
	})
	return nil
}
