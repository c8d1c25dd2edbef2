// Package tenx implements the 10X realm plug-in, a thin
// pass-through lifecycle grounded on original_source's
// lib/branches/_10x/gex.py: no manual-submit branch, no finalize
// override, extract_samples seeds every sample as "unsequenced" the
// way sample_old.py's constructor does when reading
// details.sequencing_platform before any flowcell has been matched to
// it.
package tenx

import (
	"context"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/document"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/realm"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/store"
)

// Realm is the 10X genomics realm. It embeds realm.BaseRealm
// unmodified: FinalizeProject, MonitorHPCJobs, PostProcessSamples,
// FetchAndMergeSampleInfo, SubmitSampleJobs, ProjectStatus and
// SetProjectStatus all come from the default implementation.
type Realm struct {
	*realm.BaseRealm
	projectDoc *store.ProjectDocument
	scriptDir  string
	submitter  realm.Submitter
}

// New constructs a 10X Realm for a single project change event.
func New(projectDoc *store.ProjectDocument, yggStore *store.YggdrasilStore, hpcMonitor realm.HPCMonitor, submitter realm.Submitter, scriptDir string) *Realm {
	return &Realm{
		BaseRealm: &realm.BaseRealm{
			ProjectID:  projectDoc.ProjectID,
			ProjectDoc: projectDoc,
			Store:      yggStore,
			HPC:        hpcMonitor,
		},
		projectDoc: projectDoc,
		scriptDir:  scriptDir,
		submitter:  submitter,
	}
}

// Proceed gates on CheckRequiredFields: a 10X document missing its
// sequencing platform has nothing for this realm to do.
func (r *Realm) Proceed() bool { return r.CheckRequiredFields() }

// CheckRequiredFields requires details.library_construction_method
// and details.sequencing_platform, the two fields gex.py reads before
// constructing any sample.
func (r *Realm) CheckRequiredFields() bool {
	details, _ := r.projectDoc.Raw["details"].(map[string]interface{})
	if details == nil {
		return false
	}
	_, hasMethod := details["library_construction_method"]
	_, hasPlatform := details["sequencing_platform"]
	return hasMethod && hasPlatform
}

// ExtractSamples builds one Sample per non-aborted upstream sample id,
// seeded "unsequenced" until a flowcell is matched to it. Pre-processing below immediately advances fresh samples past
// this status; a sample already known to C4 keeps whatever status
// fetch_and_merge/Refresh restores it to.
func (r *Realm) ExtractSamples(ctx context.Context) ([]realm.Sample, error) {
	return realm.NewSamplesFromProjectDoc(r.projectDoc, r.Store, r.submitter, r.scriptDir, document.SampleUnsequenced), nil
}

// PreProcessSamples advances every freshly extracted "unsequenced"
// sample straight to "pre_processed": 10X has no dedicated
// pre-processing stage of its own, matching gex.py's pass-through.
func (r *Realm) PreProcessSamples(ctx context.Context, samples []realm.Sample) error {
	for _, s := range samples {
		if s.Status() != document.SampleUnsequenced {
			continue
		}
		if err := s.SetStatus(ctx, document.SamplePreProcessed); err != nil {
			return err
		}
	}
	return nil
}
