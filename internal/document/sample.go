package document

import (
	"sync"
	"time"
)

// Sample is the sub-entity of a YggdrasilDocument identified by
// sample_id within that document. Its own mutex lets concurrent
// HPC submit/monitor fan-out safely mutate distinct samples
// belonging to the same document without a document-wide lock, while
// still letting the document serialize per-sample reads when deriving
// project_status.
type Sample struct {
	mu sync.Mutex

	ID                      string       `json:"sample_id"`
	Status                  SampleStatus `json:"status"`
	JobID                   string       `json:"job_id,omitempty"`
	StartTime               time.Time    `json:"start_time,omitempty"`
	EndTime                 time.Time    `json:"end_time,omitempty"`
	FlowcellIDsProcessedFor []string     `json:"flowcell_ids_processed_for,omitempty"`
	QC                      QCStatus     `json:"QC"`
	Delivered               bool         `json:"delivered"`
}

// NewSample constructs a Sample in the given initial status.
func NewSample(id string, status SampleStatus) *Sample {
	return &Sample{ID: id, Status: status}
}

// Snapshot returns a copy of the sample's fields safe to read or
// marshal without racing a concurrent mutator.
func (s *Sample) Snapshot() Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s
	cp.FlowcellIDsProcessedFor = append([]string(nil), s.FlowcellIDsProcessedFor...)
	return cp
}

// GetStatus returns the sample's current status.
func (s *Sample) GetStatus() SampleStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Status
}

// GetJobID returns the sample's current scheduler job id, or "".
func (s *Sample) GetJobID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.JobID
}

// SetJobID sets the sample's scheduler job id.
func (s *Sample) SetJobID(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.JobID = jobID
}

// SetStatus transitions the sample to status, applying the start_time
// and end_time invariants from : start_time is set (once) on first
// entry into an active status; end_time is set on entry into a
// terminal status. Neither timestamp is ever cleared by this method —
// re-running the same terminal status again is a no-op on timestamps.
func (s *Sample) SetStatus(status SampleStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Status = status
	if isActive(status) && s.StartTime.IsZero() {
		s.StartTime = time.Now().UTC()
	}
	if IsTerminal(status) && s.EndTime.IsZero() {
		s.EndTime = time.Now().UTC()
	}
}

// AddFlowcellID idempotently records that flowcellID has been
// processed for this sample. It reports
// whether the id was newly added.
func (s *Sample) AddFlowcellID(flowcellID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.FlowcellIDsProcessedFor {
		if existing == flowcellID {
			return false
		}
	}
	s.FlowcellIDsProcessedFor = append(s.FlowcellIDsProcessedFor, flowcellID)
	return true
}

// SetQC sets the sample's QC marker.
func (s *Sample) SetQC(qc QCStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.QC = qc
}

// SetDelivered marks the sample delivered or not.
func (s *Sample) SetDelivered(delivered bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Delivered = delivered
}
