package store

import (
	"context"
	"strings"
	"sync"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/yerrors"
)

// memKV is an in-memory KVStore fake used to exercise the
// document/cursor store invariants without a running etcd cluster.
type memKV struct {
	mu       sync.Mutex
	rev      int64
	data     map[string][]byte
	dataRev  map[string]int64
	watchers []chan WatchEvent
}

func newMemKV() *memKV {
	return &memKV{
		data:    make(map[string][]byte),
		dataRev: make(map[string]int64),
	}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[key]
	if !ok {
		return nil, 0, yerrors.ErrNotFound
	}
	return v, m.dataRev[key], nil
}

func (m *memKV) CompareAndSwap(_ context.Context, key string, value []byte, expectedRev int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.dataRev[key]
	if _, ok := m.data[key]; !ok {
		current = 0
	}
	if current != expectedRev {
		return 0, yerrors.ErrConflict
	}

	m.rev++
	m.data[key] = value
	m.dataRev[key] = m.rev

	ev := WatchEvent{Key: key, Value: value, Rev: m.rev}
	for _, ch := range m.watchers {
		ch := ch
		go func() { ch <- ev }()
	}

	return m.rev, nil
}

func (m *memKV) Watch(ctx context.Context, prefix string, since int64) <-chan WatchEvent {
	ch := make(chan WatchEvent, 16)

	m.mu.Lock()
	// Replay any puts already at rev > since so late watchers still
	// observe them, mirroring etcd's WithRev(since+1) semantics.
	type kvRev struct {
		key string
		val []byte
		rev int64
	}
	var backlog []kvRev
	for k, v := range m.data {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if r := m.dataRev[k]; r > since {
			backlog = append(backlog, kvRev{k, v, r})
		}
	}
	m.watchers = append(m.watchers, ch)
	m.mu.Unlock()

	out := make(chan WatchEvent, 16)
	go func() {
		defer close(out)
		for _, b := range backlog {
			select {
			case out <- WatchEvent{Key: b.key, Value: b.val, Rev: b.rev}:
			case <-ctx.Done():
				return
			}
		}
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if !strings.HasPrefix(ev.Key, prefix) {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func (m *memKV) CurrentRevision(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rev, nil
}
