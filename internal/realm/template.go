package realm

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/document"
)

// preProcessed is the status a sample must end PreProcessSamples in to
// remain eligible for the rest of this lifecycle pass.
const preProcessed = document.SamplePreProcessed

// LaunchTemplate drives r through one pass of the project lifecycle
// state machine. It is invoked once per ProjectChange event;
// failures inside a realm hook are logged and end the pass early,
// leaving the project in whatever state was last persisted so the
// next event can retry.
func LaunchTemplate(ctx context.Context, r Realm) error {
	status, err := r.ProjectStatus(ctx)
	if err != nil {
		logrus.WithError(err).Error("realm: failed to read project status")
		return err
	}
	log := logrus.WithField("project_status", status)

	switch status {
	case document.ProjectPending:
		return mainFlow(ctx, r)
	case document.ProjectManuallySubmittedSamples:
		return manualFlow(ctx, r)
	case document.ProjectCompleted:
		log.Info("realm: project already completed")
		return nil
	default:
		log.Warn("realm: unknown project status, no action taken")
		return nil
	}
}

func mainFlow(ctx context.Context, r Realm) error {
	samples, err := r.ExtractSamples(ctx)
	if err != nil {
		logrus.WithError(err).Error("realm: extract_samples failed")
		return err
	}

	for _, s := range samples {
		if err := s.Register(ctx); err != nil {
			logrus.WithError(err).WithField("sample_id", s.ID()).Warn("realm: register failed")
		}
	}

	if err := r.PreProcessSamples(ctx, samples); err != nil {
		logrus.WithError(err).Error("realm: pre_process_samples failed")
		return err
	}

	processable := filterByStatus(samples, preProcessed)

	if !r.AutoSubmit() {
		return r.SetProjectStatus(ctx, document.ProjectManuallySubmittedSamples)
	}

	if err := r.SubmitSampleJobs(ctx, processable); err != nil {
		logrus.WithError(err).Error("realm: submit_sample_jobs failed")
		return err
	}
	if err := r.MonitorHPCJobs(ctx, processable); err != nil {
		logrus.WithError(err).Error("realm: monitor_hpc_jobs failed")
		return err
	}
	if err := r.PostProcessSamples(ctx, processable); err != nil {
		logrus.WithError(err).Error("realm: post_process_samples failed")
		return err
	}
	return r.FinalizeProject(ctx)
}

func manualFlow(ctx context.Context, r Realm) error {
	samples, err := r.ExtractSamples(ctx)
	if err != nil {
		logrus.WithError(err).Error("realm: extract_samples failed")
		return err
	}

	if err := r.FetchAndMergeSampleInfo(ctx, samples); err != nil {
		logrus.WithError(err).Error("realm: fetch_and_merge_sample_info failed")
		return err
	}
	if err := r.MonitorHPCJobs(ctx, samples); err != nil {
		logrus.WithError(err).Error("realm: monitor_hpc_jobs failed")
		return err
	}
	if err := r.PostProcessSamples(ctx, samples); err != nil {
		logrus.WithError(err).Error("realm: post_process_samples failed")
		return err
	}
	return r.FinalizeProject(ctx)
}

func filterByStatus(samples []Sample, status document.SampleStatus) []Sample {
	out := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if s.Status() == status {
			out = append(out, s)
		}
	}
	return out
}
