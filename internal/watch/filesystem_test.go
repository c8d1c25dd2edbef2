package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/event"
)

func waitForEvent(t *testing.T, events chan event.Event, timeout time.Duration) event.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(timeout):
		t.Fatal("timed out waiting for event")
		return event.Event{}
	}
}

func requireNoEvent(t *testing.T, events chan event.Event, within time.Duration) {
	t.Helper()
	select {
	case ev := <-events:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(within):
	}
}

// TestFilesystemWatcherMarkerFanIn is the S6 scenario: two markers on
// one subfolder fire exactly one FlowcellReady event, and recreating a
// marker afterwards must not re-fire.
func TestFilesystemWatcherMarkerFanIn(t *testing.T) {
	dir := t.TempDir()
	w := NewFilesystemWatcher(FilesystemConfig{
		InstrumentName: "instrumentA",
		Directory:      dir,
		MarkerFiles:    map[string]bool{"m1": true, "m2": true},
	})

	events := make(chan event.Event, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx, func(e event.Event) { events <- e }) }()

	// Give fsnotify time to establish the initial watch.
	time.Sleep(100 * time.Millisecond)

	sub := filepath.Join(dir, "x")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "m1"), nil, 0o644))
	requireNoEvent(t, events, 200*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "m2"), nil, 0o644))
	ev := waitForEvent(t, events, 2*time.Second)

	require.Equal(t, event.FlowcellReady, ev.Kind)
	require.Equal(t, sub, ev.Payload["subfolder"])
	require.Equal(t, "instrumentA", ev.Payload["instrument"])

	// Recreating m1 must not re-fire.
	require.NoError(t, os.Remove(filepath.Join(sub, "m1")))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "m1"), nil, 0o644))
	requireNoEvent(t, events, 300*time.Millisecond)

	w.Stop()
	require.NoError(t, <-done)
}

// TestFilesystemWatcherIgnoresUnknownFiles checks that file-creation
// events for names outside MarkerFiles never contribute to fan-in.
func TestFilesystemWatcherIgnoresUnknownFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewFilesystemWatcher(FilesystemConfig{
		InstrumentName: "instrumentA",
		Directory:      dir,
		MarkerFiles:    map[string]bool{"m1": true},
	})

	events := make(chan event.Event, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx, func(e event.Event) { events <- e }) }()
	time.Sleep(100 * time.Millisecond)

	sub := filepath.Join(dir, "y")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "irrelevant.txt"), nil, 0o644))
	requireNoEvent(t, events, 300*time.Millisecond)

	w.Stop()
	require.NoError(t, <-done)
}

func TestFilesystemWatcherIndependentSubfolders(t *testing.T) {
	dir := t.TempDir()
	w := NewFilesystemWatcher(FilesystemConfig{
		InstrumentName: "instrumentA",
		Directory:      dir,
		MarkerFiles:    map[string]bool{"m1": true},
	})

	events := make(chan event.Event, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx, func(e event.Event) { events <- e }) }()
	time.Sleep(100 * time.Millisecond)

	subA := filepath.Join(dir, "a")
	subB := filepath.Join(dir, "b")
	require.NoError(t, os.Mkdir(subA, 0o755))
	require.NoError(t, os.Mkdir(subB, 0o755))
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(subA, "m1"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(subB, "m1"), nil, 0o644))

	seen := map[string]bool{}
	seen[waitForEvent(t, events, 2*time.Second).Payload["subfolder"].(string)] = true
	seen[waitForEvent(t, events, 2*time.Second).Payload["subfolder"].(string)] = true

	require.True(t, seen[subA])
	require.True(t, seen[subB])

	w.Stop()
	require.NoError(t, <-done)
}
