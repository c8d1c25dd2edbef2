package store

import "encoding/json"

// ProjectDocument is the core's read-only view of an upstream
// projects-DB document. The schema beyond a handful of named
// fields is realm-specific and opaque to the core, so it is carried
// as a raw decoded map rather than a fully typed struct.
type ProjectDocument struct {
	ID          string
	ProjectID   string
	ProjectName string
	Raw         map[string]interface{}
}

// DecodeProjectDocument parses a raw projects-DB document.
func DecodeProjectDocument(data []byte) (*ProjectDocument, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	doc := &ProjectDocument{Raw: raw}
	if v, ok := raw["_id"].(string); ok {
		doc.ID = v
	}
	if v, ok := raw["project_id"].(string); ok {
		doc.ProjectID = v
	} else {
		doc.ProjectID = doc.ID
	}
	if v, ok := raw["project_name"].(string); ok {
		doc.ProjectName = v
	}
	return doc, nil
}

func (p *ProjectDocument) details() map[string]interface{} {
	d, _ := p.Raw["details"].(map[string]interface{})
	return d
}

// LibraryConstructionMethod returns details.library_construction_method,
// or "" if absent.
func (p *ProjectDocument) LibraryConstructionMethod() string {
	v, _ := p.details()["library_construction_method"].(string)
	return v
}

// Submit returns the project doc's submit flag, defaulting to
// true when absent.
func (p *ProjectDocument) Submit() bool {
	v, ok := p.Raw["submit"].(bool)
	if !ok {
		return true
	}
	return v
}

// SampleAborted reports whether the upstream doc flags sampleID as
// manually aborted via details.samples[sampleID]."status_(manual)" ==
// "Aborted".
func (p *ProjectDocument) SampleAborted(sampleID string) bool {
	samples, _ := p.details()["samples"].(map[string]interface{})
	if samples == nil {
		return false
	}
	sample, _ := samples[sampleID].(map[string]interface{})
	if sample == nil {
		return false
	}
	status, _ := sample["status_(manual)"].(string)
	return status == "Aborted"
}

// SampleIDs returns the keys of details.samples, in an arbitrary but
// stable-within-a-call order.
func (p *ProjectDocument) SampleIDs() []string {
	samples, _ := p.details()["samples"].(map[string]interface{})
	ids := make([]string, 0, len(samples))
	for id := range samples {
		ids = append(ids, id)
	}
	return ids
}
