package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/yerrors"
)

// ProjectStore implements C3: read-only access to the upstream
// projects DB, exposing document fetch-by-id and a changes-feed
// cursor.
type ProjectStore struct {
	kv     KVStore
	prefix string
	cursor *CursorFile
}

// NewProjectStore returns a ProjectStore keyed under prefix (e.g.
// "/projects/"), persisting its change cursor to cursorFile.
func NewProjectStore(kv KVStore, prefix string, cursorFile *CursorFile) *ProjectStore {
	return &ProjectStore{kv: kv, prefix: prefix, cursor: cursorFile}
}

// Fetch reads a single project document by id.
func (s *ProjectStore) Fetch(ctx context.Context, docID string) (*ProjectDocument, error) {
	value, _, err := s.kv.Get(ctx, s.prefix+docID)
	if err != nil {
		if errors.Is(err, yerrors.ErrNotFound) {
			return nil, yerrors.ErrNotFound
		}
		return nil, fmt.Errorf("fetching project doc %q: %w", docID, err)
	}
	doc, err := DecodeProjectDocument(value)
	if err != nil {
		return nil, fmt.Errorf("decoding project doc %q: %w", docID, err)
	}
	return doc, nil
}

// Change is one (document, cursor) pair yielded by Changes.
type Change struct {
	Document *ProjectDocument
	Cursor   Cursor
}

// Changes wraps the upstream continuous changes feed. For
// every change notification it decodes the full document, advances
// and persists the cursor, and yields the pair on the returned
// channel. Decode errors for an individual document are logged and
// skipped — the cursor still advances. The stream is infinite; the
// caller stops it by cancelling ctx.
func (s *ProjectStore) Changes(ctx context.Context) (<-chan Change, error) {
	since, err := s.startingRevision(ctx)
	if err != nil {
		return nil, err
	}

	events := s.kv.Watch(ctx, s.prefix, since)
	out := make(chan Change)

	go func() {
		defer close(out)
		for ev := range events {
			if ev.Err != nil {
				logrus.WithError(ev.Err).Warn("projects changes feed: watch error, continuing")
				continue
			}

			cursor := Cursor(fmt.Sprintf("%d", ev.Rev))
			doc, err := DecodeProjectDocument(ev.Value)
			if err != nil {
				logrus.WithError(err).WithField("key", ev.Key).
					Warn("projects changes feed: failed to decode document, skipping")
				if saveErr := s.cursor.Save(cursor); saveErr != nil {
					logrus.WithError(saveErr).Error("projects changes feed: failed to persist cursor")
				}
				continue
			}

			if err := s.cursor.Save(cursor); err != nil {
				logrus.WithError(err).Error("projects changes feed: failed to persist cursor")
			}

			select {
			case out <- Change{Document: doc, Cursor: cursor}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (s *ProjectStore) startingRevision(ctx context.Context) (int64, error) {
	cursor, err := s.cursor.Load()
	if err != nil {
		return 0, fmt.Errorf("loading change cursor: %w", err)
	}
	if cursor == "" {
		return s.kv.CurrentRevision(ctx)
	}

	var rev int64
	if _, err := fmt.Sscanf(string(cursor), "%d", &rev); err != nil {
		return 0, fmt.Errorf("parsing persisted cursor %q: %w", cursor, err)
	}
	return rev, nil
}
