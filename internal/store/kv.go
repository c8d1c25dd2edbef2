// Package store implements the ProjectDoc store (C3) and YggdrasilDoc
// store (C4) on top of a small KVStore seam, backed in production by
// go.etcd.io/etcd/client/v3. etcd's per-key
// ModRevision plays the role CouchDB's _rev token plays in
// original_source: every YggdrasilDoc save compares against the
// revision it last read and fails with ErrConflict on a lost race
//; etcd's Watch API backs the projects-DB changes feed,
// with the revision number serving as the opaque, monotonic change
// cursor of .
package store

import "context"

// WatchEvent is one change notification from KVStore.Watch: a key
// under the watched prefix was put at revision Rev, or the watch
// itself failed with Err (in which case Key/Value/Rev are zero).
type WatchEvent struct {
	Key   string
	Value []byte
	Rev   int64
	Err   error
}

// KVStore is the minimal revisioned key-value seam the stores in this
// package are built on. Production code satisfies it with an etcd
// client (see etcd.go); tests satisfy it with an in-memory fake (see
// memkv_test.go) so the document/cursor invariants can be exercised
// without a running etcd cluster.
type KVStore interface {
	// Get returns the value and mod-revision currently stored at key.
	// Returns ErrNotFound if key does not exist.
	Get(ctx context.Context, key string) (value []byte, rev int64, err error)

	// CompareAndSwap writes value to key iff key's current
	// mod-revision equals expectedRev (expectedRev == 0 means "key
	// must not currently exist"). Returns the new mod-revision, or
	// ErrConflict if the comparison failed.
	CompareAndSwap(ctx context.Context, key string, value []byte, expectedRev int64) (newRev int64, err error)

	// Watch streams put events for keys under prefix, starting
	// strictly after revision since. The channel is closed when ctx
	// is cancelled.
	Watch(ctx context.Context, prefix string, since int64) <-chan WatchEvent

	// CurrentRevision returns the store's current revision, usable as
	// a starting cursor for a first-ever Watch.
	CurrentRevision(ctx context.Context) (int64, error)
}
