package realm

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/document"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/hpc"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/ops"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/store"
)

// Submitter is the subset of hpc.Manager/hpc.MockManager a sample
// needs to submit its job script.
type Submitter interface {
	Submit(ctx context.Context, scriptPath string) (string, bool)
}

// HPCMonitor is the subset of hpc.Manager/hpc.MockManager a realm
// needs to drive a submitted sample to a terminal state.
type HPCMonitor interface {
	Monitor(ctx context.Context, jobID string, sample hpc.Sample) error
}

// BaseRealm provides default implementations of Proceed, AutoSubmit,
// SubmitSampleJobs, MonitorHPCJobs, PostProcessSamples,
// FetchAndMergeSampleInfo, and FinalizeProject, plus the
// project-status read/write path shared by every realm. Concrete
// realms embed BaseRealm and implement ExtractSamples,
// PreProcessSamples, and CheckRequiredFields themselves.
type BaseRealm struct {
	ProjectID  string
	ProjectDoc *store.ProjectDocument
	Store      *store.YggdrasilStore
	HPC        HPCMonitor
}

// Proceed defaults to true; realms that need a field-presence gate
// override it to call CheckRequiredFields.
func (r *BaseRealm) Proceed() bool { return true }

// AutoSubmit reflects the upstream project document's submit flag.
func (r *BaseRealm) AutoSubmit() bool { return r.ProjectDoc.Submit() }

// ProjectStatus reads the current status straight from the store:
// within a single lifecycle pass the project is serialized, so there
// is no concurrent writer to race against.
func (r *BaseRealm) ProjectStatus(ctx context.Context) (document.ProjectStatus, error) {
	doc, _, err := r.Store.Get(ctx, r.ProjectID)
	if err != nil {
		return "", err
	}
	return doc.GetProjectStatus(), nil
}

// SetProjectStatus overrides the persisted project_status.
func (r *BaseRealm) SetProjectStatus(ctx context.Context, status document.ProjectStatus) error {
	log := ops.ForProject(r.ProjectID).WithField("status", status)
	if err := r.Store.SetProjectStatus(ctx, r.ProjectID, status); err != nil {
		log.WithError(err).Error("realm: failed to persist project status")
		return err
	}
	log.Info("realm: project status updated")
	return nil
}

// SubmitSampleJobs fans sample.SubmitJob() out concurrently. A failure in one sample's submission never
// aborts the others.
func (r *BaseRealm) SubmitSampleJobs(ctx context.Context, samples []Sample) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range samples {
		s := s
		g.Go(func() error {
			if err := s.SubmitJob(gctx); err != nil {
				ops.ForSample(r.ProjectID, s.ID()).WithError(err).Warn("realm: submit_job failed")
			}
			return nil
		})
	}
	return g.Wait()
}

// monitorable is the set of statuses MonitorHPCJobs selects on,
// alongside a non-empty job id.
var monitorable = map[document.SampleStatus]bool{
	document.SampleAutoSubmitted:      true,
	document.SampleManuallySubmitted:  true,
	document.SampleProcessing:         true,
}

// MonitorHPCJobs awaits concurrent monitors for every sample with a
// non-empty job id in a monitorable status.
func (r *BaseRealm) MonitorHPCJobs(ctx context.Context, samples []Sample) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range samples {
		if s.JobID() == "" || !monitorable[s.Status()] {
			continue
		}
		s := s
		g.Go(func() error {
			if err := r.HPC.Monitor(gctx, s.JobID(), s); err != nil {
				ops.ForSample(r.ProjectID, s.ID()).WithError(err).Warn("realm: monitor failed")
			}
			return nil
		})
	}
	return g.Wait()
}

// PostProcessSamples invokes PostProcess on every sample currently
// "processed"; others are reported but untouched.
func (r *BaseRealm) PostProcessSamples(ctx context.Context, samples []Sample) error {
	for _, s := range samples {
		if s.Status() != document.SampleProcessed {
			ops.ForSample(r.ProjectID, s.ID()).WithField("status", s.Status()).
				Debug("realm: sample not processed, skipping post-process")
			continue
		}
		if err := s.PostProcess(ctx); err != nil {
			ops.ForSample(r.ProjectID, s.ID()).WithError(err).Warn("realm: post_process failed")
		}
	}
	return nil
}

// FetchAndMergeSampleInfo reloads every sample's job_id/status from
// the store.
func (r *BaseRealm) FetchAndMergeSampleInfo(ctx context.Context, samples []Sample) error {
	for _, s := range samples {
		if err := s.Refresh(ctx); err != nil {
			ops.ForSample(r.ProjectID, s.ID()).WithError(err).Warn("realm: refresh failed")
		}
	}
	return nil
}

// FinalizeProject's default implementation recomputes project_status
// from the samples' current statuses and persists it, landing on
// "completed" exactly when every sample finished and otherwise on
// whatever the derivation yields (processing, pending, or
// partially_completed), rather than force-overriding the derivation. SmartSeq3 overrides this hook entirely to set
// pending_QC instead.
func (r *BaseRealm) FinalizeProject(ctx context.Context) error {
	doc, _, err := r.Store.Get(ctx, r.ProjectID)
	if err != nil {
		return err
	}
	doc.RecomputeProjectStatus()
	return r.SetProjectStatus(ctx, doc.GetProjectStatus())
}

// BaseSample wraps a document.Sample with the store access it needs
// to persist its own mutations. Concrete realms embed
// BaseSample in a domain-specific sample type and override SubmitJob
// or PostProcess when their domain needs more than the default.
type BaseSample struct {
	Doc        *document.Sample
	Store      *store.YggdrasilStore
	ProjectID  string
	Submitter  Submitter
	ScriptPath string
}

func (s *BaseSample) ID() string                       { return s.Doc.ID }
func (s *BaseSample) JobID() string                    { return s.Doc.GetJobID() }
func (s *BaseSample) Status() document.SampleStatus     { return s.Doc.GetStatus() }

// Register idempotently adds the sample to its project's document.
func (s *BaseSample) Register(ctx context.Context) error {
	return s.Store.AddSample(ctx, s.ProjectID, s.Doc)
}

// SetJobID updates the local copy and persists it to the store.
func (s *BaseSample) SetJobID(ctx context.Context, jobID string) error {
	s.Doc.SetJobID(jobID)
	return s.Store.UpdateSampleJobID(ctx, s.ProjectID, s.Doc.ID, jobID)
}

// SetStatus updates the local copy and persists it to the store.
func (s *BaseSample) SetStatus(ctx context.Context, status document.SampleStatus) error {
	s.Doc.SetStatus(status)
	return s.Store.UpdateSampleStatus(ctx, s.ProjectID, s.Doc.ID, status)
}

// Refresh reloads this sample's job_id/status from the persisted
// document, discarding any local disagreement.
func (s *BaseSample) Refresh(ctx context.Context) error {
	doc, _, err := s.Store.Get(ctx, s.ProjectID)
	if err != nil {
		return err
	}
	stored := doc.FindSample(s.Doc.ID)
	if stored == nil {
		return nil
	}
	snap := stored.Snapshot()
	s.Doc.SetJobID(snap.JobID)
	s.Doc.SetStatus(snap.Status)
	return nil
}

// SubmitJob hands ScriptPath to Submitter and records the outcome: a
// job id and "auto-submitted" on success, "requires_manual_submission"
// if the scheduler rejected the script.
func (s *BaseSample) SubmitJob(ctx context.Context) error {
	jobID, ok := s.Submitter.Submit(ctx, s.ScriptPath)
	if !ok {
		return s.SetStatus(ctx, document.SampleRequiresManualSubmission)
	}
	if err := s.SetJobID(ctx, jobID); err != nil {
		return err
	}
	return s.SetStatus(ctx, document.SampleAutoSubmitted)
}

// PostProcess's default implementation marks the sample completed.
func (s *BaseSample) PostProcess(ctx context.Context) error {
	return s.SetStatus(ctx, document.SampleCompleted)
}
