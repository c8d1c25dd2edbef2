// Package document implements the YggdrasilDocument entity (C5): the
// in-memory model with sample sub-entities that enforces the
// status-derivation and timestamp invariants of /. Persistence
// (C4) lives in package store; this package is pure, synchronous,
// in-memory logic so its invariants can be tested without a backing
// datastore.
package document

import (
	"sync"
	"time"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/yerrors"
)

// UserRecord is one entry of a YggdrasilDocument's user_info map: role
// -> {email, name}.
type UserRecord struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// NGIReportEntry is one append-only entry of a document's ngi_report
// list. All six fields are required.
type NGIReportEntry struct {
	FileName        string    `json:"file_name"`
	DateCreated     time.Time `json:"date_created"`
	Signee          string    `json:"signee"`
	DateSigned      time.Time `json:"date_signed"`
	Rejected        bool      `json:"rejected"`
	SamplesIncluded []string  `json:"samples_included"`
}

// valid reports whether every required field of the entry is present.
// Go structs cannot represent a "missing key" the way a dynamically
// typed document can, so "missing" is interpreted as the field's zero
// value — an empty FileName/Signee, a zero DateCreated/DateSigned, or
// an empty SamplesIncluded all count as missing. Rejected is a bool
// and is always "present".
func (e NGIReportEntry) valid() bool {
	return e.FileName != "" &&
		e.Signee != "" &&
		!e.DateCreated.IsZero() &&
		!e.DateSigned.IsZero() &&
		len(e.SamplesIncluded) > 0
}

// DeliveryResultEntry is one append-only entry of delivery_info's
// delivery_results list.
type DeliveryResultEntry struct {
	DDSProjectID    string    `json:"dds_project_id"`
	DateUploaded    time.Time `json:"date_uploaded"`
	DateReleased    time.Time `json:"date_released,omitempty"`
	SamplesIncluded []string  `json:"samples_included"`
	TotalVolume     int64     `json:"total_volume"`
}

// DeliveryInfo is a YggdrasilDocument's mutable delivery_info field.
type DeliveryInfo struct {
	Sensitive       bool                  `json:"sensitive"`
	DeliveryResults []DeliveryResultEntry `json:"delivery_results,omitempty"`
	DDSProjectID    string                `json:"dds_project_id,omitempty"`
	Status          string                `json:"status,omitempty"`
}

// YggdrasilDocument is the primary entity persisted by C4. Its
// project_status is a pure function of the multiset of sample
// statuses, recomputed by RecomputeProjectStatus after every sample
// mutation.
type YggdrasilDocument struct {
	mu sync.Mutex

	ProjectID         string                `json:"project_id"`
	ProjectsReference string                `json:"projects_reference"`
	Method            string                `json:"method"`
	ProjectName       string                `json:"project_name"`
	StartDate         time.Time             `json:"start_date"`
	ProjectStatus     ProjectStatus         `json:"project_status"`
	EndDate           *time.Time            `json:"end_date,omitempty"`
	UserInfo          map[string]UserRecord `json:"user_info,omitempty"`
	DeliveryInfo      DeliveryInfo          `json:"delivery_info"`
	NGIReport         []NGIReportEntry      `json:"ngi_report,omitempty"`
	Samples           []*Sample             `json:"samples,omitempty"`
}

// New constructs a YggdrasilDocument in its initial "pending" state,
// as created on first observation of a new project_id.
func New(projectID, projectsReference, projectName, method string, userInfo map[string]UserRecord, sensitive bool) *YggdrasilDocument {
	return &YggdrasilDocument{
		ProjectID:         projectID,
		ProjectsReference: projectsReference,
		Method:            method,
		ProjectName:       projectName,
		StartDate:         time.Now().UTC(),
		ProjectStatus:     ProjectPending,
		UserInfo:          userInfo,
		DeliveryInfo:      DeliveryInfo{Sensitive: sensitive},
	}
}

// Lock/Unlock expose the document's mutex to callers (e.g. the store
// layer) that need to hold it across a multi-step read-modify
// sequence spanning more than one of this type's own methods.
func (d *YggdrasilDocument) Lock()   { d.mu.Lock() }
func (d *YggdrasilDocument) Unlock() { d.mu.Unlock() }

// FindSample returns the sample with the given id, or nil.
func (d *YggdrasilDocument) FindSample(sampleID string) *Sample {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.findSampleLocked(sampleID)
}

func (d *YggdrasilDocument) findSampleLocked(sampleID string) *Sample {
	for _, s := range d.Samples {
		if s.ID == sampleID {
			return s
		}
	}
	return nil
}

// AddSample registers sample in the document, idempotent per sample
// id: if a sample with the same id already exists, its
// flowcell ids are merged into the existing sample rather than
// appending a duplicate entry, and project_status is left consistent
// via RecomputeProjectStatus.
func (d *YggdrasilDocument) AddSample(sample *Sample) {
	d.mu.Lock()
	if existing := d.findSampleLocked(sample.ID); existing != nil {
		for _, fc := range sample.FlowcellIDsProcessedFor {
			existing.AddFlowcellID(fc)
		}
		d.mu.Unlock()
		d.RecomputeProjectStatus()
		return
	}
	d.Samples = append(d.Samples, sample)
	d.mu.Unlock()
	d.RecomputeProjectStatus()
}

// UpdateSampleStatus transitions the named sample to status and
// recomputes project_status. A sample id not present in the document
// is a no-op (the caller is expected to have added it first).
func (d *YggdrasilDocument) UpdateSampleStatus(sampleID string, status SampleStatus) {
	d.mu.Lock()
	s := d.findSampleLocked(sampleID)
	d.mu.Unlock()
	if s == nil {
		return
	}
	s.SetStatus(status)
	d.RecomputeProjectStatus()
}

// RecomputeProjectStatus applies the derivation table over the
// current sample statuses and updates project_status, setting or
// clearing end_date per the "on entry to completed" / "on leaving
// completed" rule.
func (d *YggdrasilDocument) RecomputeProjectStatus() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setProjectStatusLocked(deriveStatus(d.Samples))
}

// deriveStatus computes project_status from the multiset of sample
// statuses: completed only when every sample has finished, processing
// if any sample is still active, pending if none has started, and
// partially_completed otherwise.
func deriveStatus(samples []*Sample) ProjectStatus {
	if len(samples) == 0 {
		return ProjectPending
	}

	var anyActive, allFinished, allNotStarted = false, true, true
	for _, s := range samples {
		st := s.GetStatus()
		if isActive(st) {
			anyActive = true
		}
		if !isFinished(st) {
			allFinished = false
		}
		if !isNotStarted(st) {
			allNotStarted = false
		}
	}

	switch {
	case anyActive:
		return ProjectProcessing
	case allFinished:
		return ProjectCompleted
	case allNotStarted:
		return ProjectPending
	default:
		return ProjectPartiallyCompleted
	}
}

// SetProjectStatus directly overrides project_status, bypassing
// derivation. This is the path realm hooks use (manual-submit branch,
// finalize_project) where the target status is not purely a function
// of sample statuses. The end_date invariant is still applied.
func (d *YggdrasilDocument) SetProjectStatus(status ProjectStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setProjectStatusLocked(status)
}

func (d *YggdrasilDocument) setProjectStatusLocked(status ProjectStatus) {
	wasCompleted := d.ProjectStatus == ProjectCompleted
	d.ProjectStatus = status

	switch {
	case status == ProjectCompleted && d.EndDate == nil:
		now := time.Now().UTC()
		d.EndDate = &now
	case status != ProjectCompleted && wasCompleted:
		d.EndDate = nil
	}
}

// GetProjectStatus returns the document's current project_status.
func (d *YggdrasilDocument) GetProjectStatus() ProjectStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ProjectStatus
}

// SampleIDs returns the ids of every sample currently in the document.
func (d *YggdrasilDocument) SampleIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.Samples))
	for _, s := range d.Samples {
		ids = append(ids, s.ID)
	}
	return ids
}

// AddNGIReportEntry appends entry to ngi_report iff all six required
// fields are present; otherwise the list is
// left unchanged and ErrInvalidReportEntry is returned.
func (d *YggdrasilDocument) AddNGIReportEntry(entry NGIReportEntry) error {
	if !entry.valid() {
		return yerrors.ErrInvalidReportEntry
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.NGIReport = append(d.NGIReport, entry)
	return nil
}

// AddDeliveryResultEntry appends entry to delivery_info.delivery_results.
func (d *YggdrasilDocument) AddDeliveryResultEntry(entry DeliveryResultEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.DeliveryInfo.DeliveryResults = append(d.DeliveryInfo.DeliveryResults, entry)
}

// SetDeliveryStatus sets delivery_info.status (e.g. "ready-for-delivery",
// "ngi_report_uploaded_for_signing", "delivered").
func (d *YggdrasilDocument) SetDeliveryStatus(status string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.DeliveryInfo.Status = status
}

// GetDeliveryInfo returns a copy of the document's delivery_info.
func (d *YggdrasilDocument) GetDeliveryInfo() DeliveryInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.DeliveryInfo
}

// GetNGIReport returns the document's ngi_report entries.
func (d *YggdrasilDocument) GetNGIReport() []NGIReportEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]NGIReportEntry(nil), d.NGIReport...)
}

// SamplesSnapshot returns a snapshot of every sample currently in the
// document, safe to read without racing a concurrent mutator.
func (d *YggdrasilDocument) SamplesSnapshot() []Sample {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Sample, 0, len(d.Samples))
	for _, s := range d.Samples {
		out = append(out, s.Snapshot())
	}
	return out
}
