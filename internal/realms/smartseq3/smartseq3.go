// Package smartseq3 implements the SmartSeq3 realm plug-in,
// grounded on original_source's lib/realms/smartseq3/ss3_project.py:
// extract_samples seeds samples "pending" (SmartSeq3 pre-processing is
// a single pass, not a platform-detection step like 10X's), and
// finalize hands the project to manual QC sign-off instead of marking
// it completed outright.
package smartseq3

import (
	"context"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/document"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/realm"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/store"
)

// Realm is the SmartSeq3 realm. It embeds realm.BaseRealm but
// overrides CheckRequiredFields, Proceed, ExtractSamples,
// PreProcessSamples, and FinalizeProject.
type Realm struct {
	*realm.BaseRealm
	projectDoc *store.ProjectDocument
	scriptDir  string
	submitter  realm.Submitter
}

// New constructs a SmartSeq3 Realm for a single project change event.
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

// Proceed gates on CheckRequiredFields, mirroring abstract_project.py's
// guard before any lifecycle work begins.
func (r *Realm) Proceed() bool { return r.CheckRequiredFields() }

// CheckRequiredFields requires details.library_construction_method and
// the per-project manual-status field, per abstract_project.py.
func (r *Realm) CheckRequiredFields() bool {
	details, _ := r.projectDoc.Raw["details"].(map[string]interface{})
	if details == nil {
		return false
	}
	_, hasMethod := details["library_construction_method"]
	_, hasManualStatus := details["status_(manual)"]
	return hasMethod && hasManualStatus
}

// ExtractSamples builds one Sample per non-aborted upstream sample id,
// seeded "pending".
func (r *Realm) ExtractSamples(ctx context.Context) ([]realm.Sample, error) {
	return realm.NewSamplesFromProjectDoc(r.projectDoc, r.Store, r.submitter, r.scriptDir, document.SamplePending), nil
}

// PreProcessSamples advances every freshly extracted "pending" sample
// to "pre_processed" directly: SmartSeq3's pre-processing step is a
// single script invocation the lifecycle template itself does not
// model as a distinct hook, so it collapses to a status bump here.
func (r *Realm) PreProcessSamples(ctx context.Context, samples []realm.Sample) error {
	for _, s := range samples {
		if s.Status() != document.SamplePending {
			continue
		}
		if err := s.SetStatus(ctx, document.SamplePreProcessed); err != nil {
			return err
		}
	}
	return nil
}

// FinalizeProject overrides the default derive-from-samples behaviour:
// SmartSeq3 projects always hand off to manual QC sign-off rather than
// being marked completed automatically, matching ss3_project.py's
// finalize.
func (r *Realm) FinalizeProject(ctx context.Context) error {
	return r.SetProjectStatus(ctx, document.ProjectPendingQC)
}
