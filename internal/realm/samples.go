package realm

import (
	"path/filepath"
	"sort"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/document"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/store"
)

// NewSamplesFromProjectDoc builds one Sample per upstream sample id
// not flagged aborted, in a deterministic (sorted) order.
// Shared by the realms/tenx and realms/smartseq3 plug-ins, whose
// extract_samples hooks differ only in initialStatus and script
// layout.
func NewSamplesFromProjectDoc(
	projectDoc *store.ProjectDocument,
	yggStore *store.YggdrasilStore,
	submitter Submitter,
	scriptDir string,
	initialStatus document.SampleStatus,
) []Sample {
	ids := projectDoc.SampleIDs()
	sort.Strings(ids)

	out := make([]Sample, 0, len(ids))
	for _, id := range ids {
		if projectDoc.SampleAborted(id) {
			continue
		}
		out = append(out, &BaseSample{
			Doc:        document.NewSample(id, initialStatus),
			Store:      yggStore,
			ProjectID:  projectDoc.ProjectID,
			Submitter:  submitter,
			ScriptPath: filepath.Join(scriptDir, id+".sh"),
		})
	}
	return out
}
