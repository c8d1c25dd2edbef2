// Package realm implements the project lifecycle template and the
// Realm/Sample plug-in contract. Go has no abstract base classes, so
// the template-method pattern becomes a free function, LaunchTemplate,
// parameterized over the Realm interface, with a default
// implementation (BaseRealm/BaseSample) concrete realms embed and
// override selectively.
package realm

import (
	"context"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/document"
)

// Sample is the external contract a realm's sample entities satisfy.
// Its ID/SetStatus/PostProcess methods are a structural
// superset of hpc.Sample, so any Sample value can be passed directly
// to an hpc.Manager or hpc.MockManager monitor.
type Sample interface {
	ID() string
	JobID() string
	Status() document.SampleStatus

	// Register idempotently adds this sample to its project's
	// YggdrasilDocument.
	Register(ctx context.Context) error
	// SetJobID persists the scheduler job id assigned to this sample.
	SetJobID(ctx context.Context, jobID string) error
	// SetStatus persists a status transition, applying the
	// start_time/end_time invariants.
	SetStatus(ctx context.Context, status document.SampleStatus) error
	// Refresh reloads this sample's job_id and status from the
	// Yggdrasil store, overwriting the in-memory copy when it disagrees.
	Refresh(ctx context.Context) error
	// SubmitJob hands this sample's job script to the scheduler and
	// records the resulting job id and status.
	SubmitJob(ctx context.Context) error
	// PostProcess drives a "processed" sample to its terminal state.
	PostProcess(ctx context.Context) error
}

// Realm is the external plug-in contract. A realm is
// constructed per-project from the upstream project document and the
// YggdrasilStore; BaseRealm supplies default implementations that
// concrete realms embed and override selectively.
type Realm interface {
	// Proceed gates whether the handler invokes LaunchTemplate at all.
	Proceed() bool
	// CheckRequiredFields reports whether the upstream project document
	// carries every field this realm needs.
	CheckRequiredFields() bool
	// AutoSubmit reflects the upstream project document's submit flag,
	// default true.
	AutoSubmit() bool

	ProjectStatus(ctx context.Context) (document.ProjectStatus, error)
	SetProjectStatus(ctx context.Context, status document.ProjectStatus) error

	ExtractSamples(ctx context.Context) ([]Sample, error)
	PreProcessSamples(ctx context.Context, samples []Sample) error
	SubmitSampleJobs(ctx context.Context, samples []Sample) error
	MonitorHPCJobs(ctx context.Context, samples []Sample) error
	PostProcessSamples(ctx context.Context, samples []Sample) error
	FetchAndMergeSampleInfo(ctx context.Context, samples []Sample) error
	FinalizeProject(ctx context.Context) error
}
