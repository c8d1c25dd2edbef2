package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/document"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/ops"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/yerrors"
)

// YggdrasilStore implements C4: read/write persistence of the core's
// own per-project YggdrasilDocument.
type YggdrasilStore struct {
	kv     KVStore
	prefix string
	mu     sync.Mutex
}

// NewYggdrasilStore returns a YggdrasilStore keyed under prefix (e.g.
// "/yggdrasil/").
func NewYggdrasilStore(kv KVStore, prefix string) *YggdrasilStore {
	return &YggdrasilStore{kv: kv, prefix: prefix}
}

func (s *YggdrasilStore) key(projectID string) string { return s.prefix + projectID }

// Get returns the document for projectID together with the revision
// token a subsequent Save must present, or ErrNotFound.
func (s *YggdrasilStore) Get(ctx context.Context, projectID string) (*document.YggdrasilDocument, int64, error) {
	value, rev, err := s.kv.Get(ctx, s.key(projectID))
	if err != nil {
		if errors.Is(err, yerrors.ErrNotFound) {
			return nil, 0, yerrors.ErrNotFound
		}
		return nil, 0, fmt.Errorf("getting yggdrasil doc %q: %w", projectID, err)
	}

	var doc document.YggdrasilDocument
	if err := json.Unmarshal(value, &doc); err != nil {
		return nil, 0, fmt.Errorf("decoding yggdrasil doc %q: %w", projectID, err)
	}
	return &doc, rev, nil
}

// Exists reports whether a document for projectID has been created.
func (s *YggdrasilStore) Exists(ctx context.Context, projectID string) (bool, error) {
	_, _, err := s.Get(ctx, projectID)
	if errors.Is(err, yerrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Create persists a new YggdrasilDocument for projectID and returns
// it. Calling Create twice for the same projectID is a no-op on the
// second call: the already-stored document is returned unchanged.
func (s *YggdrasilStore) Create(
	ctx context.Context,
	projectID, projectsReference, projectName, method string,
	userInfo map[string]document.UserRecord,
	sensitive bool,
) (*document.YggdrasilDocument, error) {
	if existing, _, err := s.Get(ctx, projectID); err == nil {
		return existing, nil
	} else if !errors.Is(err, yerrors.ErrNotFound) {
		return nil, err
	}

	doc := document.New(projectID, projectsReference, projectName, method, userInfo, sensitive)
	if err := s.save(ctx, doc, 0); err != nil {
		if errors.Is(err, yerrors.ErrConflict) {
			// Lost a create race; the winner's document is authoritative.
			existing, _, getErr := s.Get(ctx, projectID)
			if getErr != nil {
				return nil, getErr
			}
			return existing, nil
		}
		return nil, fmt.Errorf("creating yggdrasil doc %q: %w", projectID, err)
	}
	return doc, nil
}

// Save persists doc, presenting rev (obtained from a prior Get) as
// the optimistic-concurrency token. Returns ErrConflict if the stored
// revision has since moved; the caller is expected to reload and
// retry. The convenience mutators below do not go through Save's
// caller-side contract: they hold the store's mutex for their whole
// load-mutate-save, so concurrent mutators in one process never
// conflict with each other.
func (s *YggdrasilStore) Save(ctx context.Context, doc *document.YggdrasilDocument, rev int64) error {
	return s.save(ctx, doc, rev)
}

func (s *YggdrasilStore) save(ctx context.Context, doc *document.YggdrasilDocument, rev int64) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding yggdrasil doc %q: %w", doc.ProjectID, err)
	}
	if _, err := s.kv.CompareAndSwap(ctx, s.key(doc.ProjectID), data, rev); err != nil {
		return err
	}
	return nil
}

// mutate implements the  "decorator for load-mutate-save": it loads
// the named document, invokes fn against it, and saves the result. A
// missing project is logged and treated as a no-op, matching 
// convenience-wrapper contract. A lost optimistic-concurrency race is
// logged and dropped rather than retried. Calls are serialized by the
// store's mutex.
func (s *YggdrasilStore) mutate(ctx context.Context, projectID string, fn func(*document.YggdrasilDocument)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, rev, err := s.Get(ctx, projectID)
	if errors.Is(err, yerrors.ErrNotFound) {
		ops.ForProject(projectID).Error("yggdrasil store: mutate on unknown project, dropping")
		return nil
	}
	if err != nil {
		return err
	}

	fn(doc)

	if err := s.save(ctx, doc, rev); err != nil {
		if errors.Is(err, yerrors.ErrConflict) {
			ops.ForProject(projectID).Warn("yggdrasil store: save conflict, dropping write")
			return nil
		}
		return err
	}
	return nil
}

// AddSample loads projectID's document, registers sample via its own
// idempotent AddSample method, and saves.
func (s *YggdrasilStore) AddSample(ctx context.Context, projectID string, sample *document.Sample) error {
	return s.mutate(ctx, projectID, func(doc *document.YggdrasilDocument) {
		doc.AddSample(sample)
	})
}

// UpdateSampleStatus loads projectID's document, transitions sampleID
// to status, and saves.
func (s *YggdrasilStore) UpdateSampleStatus(ctx context.Context, projectID, sampleID string, status document.SampleStatus) error {
	return s.mutate(ctx, projectID, func(doc *document.YggdrasilDocument) {
		doc.UpdateSampleStatus(sampleID, status)
	})
}

// UpdateSampleJobID loads projectID's document and sets sampleID's
// scheduler job id.
func (s *YggdrasilStore) UpdateSampleJobID(ctx context.Context, projectID, sampleID, jobID string) error {
	return s.mutate(ctx, projectID, func(doc *document.YggdrasilDocument) {
		if sample := doc.FindSample(sampleID); sample != nil {
			sample.SetJobID(jobID)
		}
	})
}

// SetProjectStatus loads projectID's document and overrides its
// project_status directly (bypassing derivation), per  "writes
// propagate to C4 with logging".
func (s *YggdrasilStore) SetProjectStatus(ctx context.Context, projectID string, status document.ProjectStatus) error {
	return s.mutate(ctx, projectID, func(doc *document.YggdrasilDocument) {
		doc.SetProjectStatus(status)
	})
}

// AddNGIReportEntry loads projectID's document and appends entry,
// failing the whole call (without mutating the stored document) if
// entry is missing a required field.
func (s *YggdrasilStore) AddNGIReportEntry(ctx context.Context, projectID string, entry document.NGIReportEntry) error {
	var addErr error
	err := s.mutate(ctx, projectID, func(doc *document.YggdrasilDocument) {
		addErr = doc.AddNGIReportEntry(entry)
	})
	if err != nil {
		return err
	}
	return addErr
}

// AddDeliveryResultEntry loads projectID's document and appends entry
// to delivery_info.delivery_results.
func (s *YggdrasilStore) AddDeliveryResultEntry(ctx context.Context, projectID string, entry document.DeliveryResultEntry) error {
	return s.mutate(ctx, projectID, func(doc *document.YggdrasilDocument) {
		doc.AddDeliveryResultEntry(entry)
	})
}

// MarkSampleDelivered loads projectID's document and flags sampleID
// delivered.
func (s *YggdrasilStore) MarkSampleDelivered(ctx context.Context, projectID, sampleID string) error {
	return s.mutate(ctx, projectID, func(doc *document.YggdrasilDocument) {
		if sample := doc.FindSample(sampleID); sample != nil {
			sample.SetDelivered(true)
		}
	})
}

// SetDeliveryStatus loads projectID's document and sets its
// delivery_info.status.
func (s *YggdrasilStore) SetDeliveryStatus(ctx context.Context, projectID, status string) error {
	return s.mutate(ctx, projectID, func(doc *document.YggdrasilDocument) {
		doc.SetDeliveryStatus(status)
	})
}
