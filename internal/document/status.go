package document

// SampleStatus enumerates the lifecycle markers a Sample can hold.
type SampleStatus string

const (
	SamplePending                  SampleStatus = "pending"
	SampleUnsequenced              SampleStatus = "unsequenced"
	SampleInitialized              SampleStatus = "initialized"
	SamplePreProcessing            SampleStatus = "pre_processing"
	SamplePreProcessed             SampleStatus = "pre_processed"
	SamplePreProcessingFailed      SampleStatus = "pre_processing_failed"
	SampleRequiresManualSubmission SampleStatus = "requires_manual_submission"
	SampleAutoSubmitted            SampleStatus = "auto-submitted"
	SampleManuallySubmitted        SampleStatus = "manually_submitted"
	SampleProcessing               SampleStatus = "processing"
	SampleProcessed                SampleStatus = "processed"
	SampleProcessingFailed         SampleStatus = "processing_failed"
	SamplePostProcessing           SampleStatus = "post_processing"
	SampleCompleted                SampleStatus = "completed"
	SamplePostProcessingFailed     SampleStatus = "post_processing_failed"
	SampleAborted                  SampleStatus = "aborted"
)

// ProjectStatus enumerates the lifecycle markers a YggdrasilDocument's
// project_status can hold.
type ProjectStatus string

const (
	ProjectPending                  ProjectStatus = "pending"
	ProjectProcessing               ProjectStatus = "processing"
	ProjectPartiallyCompleted       ProjectStatus = "partially_completed"
	ProjectCompleted                ProjectStatus = "completed"
	ProjectManuallySubmittedSamples ProjectStatus = "manually_submitted_samples"
	ProjectPendingQC                ProjectStatus = "pending_QC"
	ProjectFailed                   ProjectStatus = "failed"
)

// QCStatus enumerates the QC markers a Sample can hold.
type QCStatus string

const (
	QCNone    QCStatus = ""
	QCPending QCStatus = "Pending"
	QCPassed  QCStatus = "Passed"
	QCFailed  QCStatus = "Failed"
	QCAborted QCStatus = "Aborted"
)

// active, finished, and notStarted are the three disjoint sample-status
// sets  derivation table is built from.
var active = map[SampleStatus]bool{
	SampleInitialized:             true,
	SampleProcessing:              true,
	SamplePreProcessing:           true,
	SamplePostProcessing:          true,
	SampleRequiresManualSubmission: true,
}

var finished = map[SampleStatus]bool{
	SampleCompleted: true,
	SampleAborted:   true,
}

var notStarted = map[SampleStatus]bool{
	SamplePending:     true,
	SampleUnsequenced: true,
}

// terminal is the set of statuses on entry to which a Sample's
// end_time is set: completed, aborted, and every *_failed status.
var terminal = map[SampleStatus]bool{
	SampleCompleted:            true,
	SampleAborted:              true,
	SamplePreProcessingFailed:  true,
	SampleProcessingFailed:     true,
	SamplePostProcessingFailed: true,
}

func isActive(s SampleStatus) bool     { return active[s] }
func isFinished(s SampleStatus) bool   { return finished[s] }
func isNotStarted(s SampleStatus) bool { return notStarted[s] }

// IsTerminal reports whether s is one of the statuses that marks a
// Sample as done.
func IsTerminal(s SampleStatus) bool { return terminal[s] }
