package store

import (
	"context"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/yerrors"
)

// EtcdKV adapts a *clientv3.Client to KVStore.
type EtcdKV struct {
	Client *clientv3.Client
}

// NewEtcdKV wraps client for use as a KVStore.
func NewEtcdKV(client *clientv3.Client) *EtcdKV {
	return &EtcdKV{Client: client}
}

func (e *EtcdKV) Get(ctx context.Context, key string) ([]byte, int64, error) {
	resp, err := e.Client.Get(ctx, key)
	if err != nil {
		return nil, 0, fmt.Errorf("etcd get %q: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, 0, yerrors.ErrNotFound
	}
	kv := resp.Kvs[0]
	return kv.Value, kv.ModRevision, nil
}

func (e *EtcdKV) CompareAndSwap(ctx context.Context, key string, value []byte, expectedRev int64) (int64, error) {
	txn := e.Client.Txn(ctx).
		If(clientv3.Compare(clientv3.ModRevision(key), "=", expectedRev)).
		Then(clientv3.OpPut(key, string(value))).
		Else(clientv3.OpGet(key))

	resp, err := txn.Commit()
	if err != nil {
		return 0, fmt.Errorf("etcd txn %q: %w", key, err)
	}
	if !resp.Succeeded {
		return 0, yerrors.ErrConflict
	}
	return resp.Header.Revision, nil
}

func (e *EtcdKV) Watch(ctx context.Context, prefix string, since int64) <-chan WatchEvent {
	out := make(chan WatchEvent)

	opts := []clientv3.OpOption{clientv3.WithPrefix()}
	if since > 0 {
		opts = append(opts, clientv3.WithRev(since+1))
	}
	wc := e.Client.Watch(ctx, prefix, opts...)

	go func() {
		defer close(out)
		for resp := range wc {
			if err := resp.Err(); err != nil {
				select {
				case out <- WatchEvent{Err: err}:
				case <-ctx.Done():
					return
				}
				continue
			}
			for _, ev := range resp.Events {
				if ev.Type != clientv3.EventTypePut {
					continue
				}
				we := WatchEvent{
					Key:   string(ev.Kv.Key),
					Value: ev.Kv.Value,
					Rev:   ev.Kv.ModRevision,
				}
				select {
				case out <- we:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func (e *EtcdKV) CurrentRevision(ctx context.Context) (int64, error) {
	resp, err := e.Client.Get(ctx, "\x00")
	if err != nil {
		return 0, fmt.Errorf("etcd current revision: %w", err)
	}
	return resp.Header.Revision, nil
}
