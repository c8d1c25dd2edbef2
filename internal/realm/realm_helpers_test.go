package realm

import (
	"context"
	"encoding/json"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/document"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/store"
)

func jsonMarshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

// testRealm is a minimal concrete Realm for exercising LaunchTemplate:
// extract_samples/pre_process_samples/submit_sample_jobs are given the
// simplest viable bodies, mirroring the shape of realms/tenx without
// importing it (avoiding an import cycle with the realms/* packages,
// which import realm).
type testRealm struct {
	*BaseRealm
}

func newTestRealm(projectDoc *store.ProjectDocument, yggStore *store.YggdrasilStore, hpcMonitor HPCMonitor) *testRealm {
	return &testRealm{BaseRealm: &BaseRealm{
		ProjectID:  projectDoc.ProjectID,
		ProjectDoc: projectDoc,
		Store:      yggStore,
		HPC:        hpcMonitor,
	}}
}

func (r *testRealm) CheckRequiredFields() bool { return true }

func (r *testRealm) ExtractSamples(context.Context) ([]Sample, error) {
	return NewSamplesFromProjectDoc(r.ProjectDoc, r.Store, &fakeSubmitter{}, "/scripts", document.SamplePending), nil
}

func (r *testRealm) PreProcessSamples(ctx context.Context, samples []Sample) error {
	for _, s := range samples {
		if err := s.SetStatus(ctx, document.SamplePreProcessed); err != nil {
			return err
		}
	}
	return nil
}

type fakeSubmitter struct{}

func (f *fakeSubmitter) Submit(_ context.Context, _ string) (string, bool) {
	return "job-1", true
}
