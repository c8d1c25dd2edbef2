package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/event"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/registry"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/store"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/watch"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/yerrors"
)

type blockingWatcher struct {
	started chan struct{}
	once    sync.Once
}

func (w *blockingWatcher) Start(ctx context.Context, _ watchEmit) error {
	w.once.Do(func() { close(w.started) })
	<-ctx.Done()
	return nil
}
func (w *blockingWatcher) Stop() {}

// watchEmit names watch.Emit so that blockingWatcher's Start has the
// exact signature watch.Watcher requires.
type watchEmit = watch.Emit

type fakeHandler struct {
	mu        sync.Mutex
	running   int
	maxSeen   int32
	runNowFn  func(ctx context.Context, payload map[string]interface{})
}

func (h *fakeHandler) HandleTask(context.Context, map[string]interface{}) {}
func (h *fakeHandler) Call(ctx context.Context, payload map[string]interface{}) {
	go h.RunNow(ctx, payload)
}
func (h *fakeHandler) RunNow(ctx context.Context, payload map[string]interface{}) {
	h.mu.Lock()
	h.running++
	if int32(h.running) > atomic.LoadInt32(&h.maxSeen) {
		atomic.StoreInt32(&h.maxSeen, int32(h.running))
	}
	h.mu.Unlock()

	if h.runNowFn != nil {
		h.runNowFn(ctx, payload)
	} else {
		time.Sleep(30 * time.Millisecond)
	}

	h.mu.Lock()
	h.running--
	h.mu.Unlock()
}

func TestCoreStartStop(t *testing.T) {
	c := New(nil, nil)
	w := &blockingWatcher{started: make(chan struct{})}
	c.AddWatcher(w)

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background()) }()

	<-w.started
	c.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestCoreDoubleStartIsNoop(t *testing.T) {
	c := New(nil, nil)
	w := &blockingWatcher{started: make(chan struct{})}
	c.AddWatcher(w)

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background()) }()
	<-w.started

	// A second Start while running must return immediately.
	second := make(chan error, 1)
	go func() { second <- c.Start(context.Background()) }()

	select {
	case err := <-second:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second Start did not return promptly")
	}

	c.Stop()
	require.NoError(t, <-done)
}

func TestCoreStopWhenNotRunningIsNoop(t *testing.T) {
	c := New(nil, nil)
	c.Stop() // must not panic or block
}

func TestCoreHandleSerializesPerProject(t *testing.T) {
	c := New(nil, nil)
	h := &fakeHandler{}
	c.RegisterHandler(event.ProjectChange, h)

	doc, err := store.DecodeProjectDocument([]byte(`{"_id":"P1","project_id":"P1"}`))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Handle(context.Background(), event.New(event.ProjectChange, "test", map[string]interface{}{
				"document": doc,
			}))
		}()
	}
	wg.Wait()
	time.Sleep(300 * time.Millisecond)

	require.Equal(t, int32(1), atomic.LoadInt32(&h.maxSeen))
}

func TestCoreHandleNoHandlerRegistered(t *testing.T) {
	c := New(nil, nil)
	// Should not panic.
	c.Handle(context.Background(), event.New(event.FlowcellReady, "test", nil))
}

type fakeKV struct {
	mu   sync.Mutex
	data map[string][]byte
	rev  int64
}

func newFakeKV() *fakeKV { return &fakeKV{data: make(map[string][]byte)} }

func (k *fakeKV) Get(_ context.Context, key string) ([]byte, int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.data[key]
	if !ok {
		return nil, 0, yerrors.ErrNotFound
	}
	return v, k.rev, nil
}
func (k *fakeKV) CompareAndSwap(_ context.Context, key string, value []byte, _ int64) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.rev++
	k.data[key] = value
	return k.rev, nil
}
func (k *fakeKV) Watch(ctx context.Context, _ string, _ int64) <-chan store.WatchEvent {
	ch := make(chan store.WatchEvent)
	close(ch)
	return ch
}
func (k *fakeKV) CurrentRevision(context.Context) (int64, error) { return 0, nil }

func TestCoreRunOnce(t *testing.T) {
	kv := newFakeKV()
	cursor := store.NewCursorFile(t.TempDir() + "/cursor")
	projectStore := store.NewProjectStore(kv, "/projects/", cursor)
	reg := registry.New(map[string]registry.Entry{"10X": {Module: "tenx"}})

	kv.data["/projects/P1"] = []byte(`{"_id":"P1","project_id":"P1","details":{"library_construction_method":"10X"}}`)

	c := New(projectStore, reg)
	h := &fakeHandler{}
	var seenLocation string
	h.runNowFn = func(_ context.Context, payload map[string]interface{}) {
		seenLocation, _ = payload["module_location"].(string)
	}
	c.RegisterHandler(event.ProjectChange, h)

	require.NoError(t, c.RunOnce(context.Background(), "P1"))
	require.Equal(t, "tenx", seenLocation)
}

func TestCoreRunOnceUnresolvedModule(t *testing.T) {
	kv := newFakeKV()
	cursor := store.NewCursorFile(t.TempDir() + "/cursor")
	projectStore := store.NewProjectStore(kv, "/projects/", cursor)
	reg := registry.New(map[string]registry.Entry{})

	kv.data["/projects/P5"] = []byte(`{"_id":"P5","project_id":"P5","details":{"library_construction_method":"Unknown"}}`)

	c := New(projectStore, reg)
	c.RegisterHandler(event.ProjectChange, &fakeHandler{})

	require.Error(t, c.RunOnce(context.Background(), "P5"))
}

func TestCoreRunOnceMissingDocument(t *testing.T) {
	kv := newFakeKV()
	cursor := store.NewCursorFile(t.TempDir() + "/cursor")
	projectStore := store.NewProjectStore(kv, "/projects/", cursor)
	reg := registry.New(map[string]registry.Entry{})

	c := New(projectStore, reg)
	require.Error(t, c.RunOnce(context.Background(), "missing"))
}
