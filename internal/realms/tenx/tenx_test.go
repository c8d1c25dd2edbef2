package tenx

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/document"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/hpc"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/realm"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/store"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/yerrors"
)

type testKV struct {
	mu      sync.Mutex
	rev     int64
	data    map[string][]byte
	dataRev map[string]int64
}

func newTestKV() *testKV {
	return &testKV{data: make(map[string][]byte), dataRev: make(map[string]int64)}
}

func (k *testKV) Get(_ context.Context, key string) ([]byte, int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.data[key]
	if !ok {
		return nil, 0, yerrors.ErrNotFound
	}
	return v, k.dataRev[key], nil
}

func (k *testKV) CompareAndSwap(_ context.Context, key string, value []byte, expectedRev int64) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	current := k.dataRev[key]
	if _, ok := k.data[key]; !ok {
		current = 0
	}
	if current != expectedRev {
		return 0, yerrors.ErrConflict
	}
	k.rev++
	k.data[key] = value
	k.dataRev[key] = k.rev
	return k.rev, nil
}

func (k *testKV) Watch(context.Context, string, int64) <-chan store.WatchEvent {
	ch := make(chan store.WatchEvent)
	close(ch)
	return ch
}

func (k *testKV) CurrentRevision(context.Context) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.rev, nil
}

type fakeHPC struct{}

func (fakeHPC) Monitor(ctx context.Context, _ string, sample hpc.Sample) error {
	return sample.SetStatus(ctx, document.SampleProcessed)
}

type fakeSubmitter struct{}

func (fakeSubmitter) Submit(context.Context, string) (string, bool) { return "job-1", true }

func newProjectDoc(t *testing.T, projectID string, sampleIDs []string, complete bool) *store.ProjectDocument {
	t.Helper()
	sampleDetails := map[string]interface{}{}
	for _, id := range sampleIDs {
		sampleDetails[id] = map[string]interface{}{}
	}
	details := map[string]interface{}{
		"library_construction_method": "10X",
		"samples":                     sampleDetails,
	}
	if complete {
		details["sequencing_platform"] = "NovaSeq"
	}
	raw := map[string]interface{}{
		"_id":          projectID,
		"project_id":   projectID,
		"project_name": "10X Project",
		"submit":       true,
		"details":      details,
	}
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	doc, err := store.DecodeProjectDocument(data)
	require.NoError(t, err)
	return doc
}

func TestCheckRequiredFieldsMissingPlatform(t *testing.T) {
	kv := newTestKV()
	yggStore := store.NewYggdrasilStore(kv, "/yggdrasil/")
	doc := newProjectDoc(t, "P1", []string{"A"}, false)

	r := New(doc, yggStore, fakeHPC{}, fakeSubmitter{}, "/scripts")
	require.False(t, r.Proceed())
}

func TestExtractSamplesSeedsUnsequenced(t *testing.T) {
	kv := newTestKV()
	yggStore := store.NewYggdrasilStore(kv, "/yggdrasil/")
	doc := newProjectDoc(t, "P2", []string{"A", "B"}, true)

	r := New(doc, yggStore, fakeHPC{}, fakeSubmitter{}, "/scripts")
	require.True(t, r.Proceed())

	samples, err := r.ExtractSamples(context.Background())
	require.NoError(t, err)
	require.Len(t, samples, 2)
	for _, s := range samples {
		require.Equal(t, document.SampleUnsequenced, s.Status())
	}
}

func TestFullLifecycleReachesCompleted(t *testing.T) {
	kv := newTestKV()
	yggStore := store.NewYggdrasilStore(kv, "/yggdrasil/")
	doc := newProjectDoc(t, "P3", []string{"A", "B"}, true)

	_, err := yggStore.Create(context.Background(), "P3", "ref", "10X Project", "10X", nil, false)
	require.NoError(t, err)

	r := New(doc, yggStore, fakeHPC{}, fakeSubmitter{}, "/scripts")
	require.NoError(t, realm.LaunchTemplate(context.Background(), r))

	final, _, err := yggStore.Get(context.Background(), "P3")
	require.NoError(t, err)
	require.Equal(t, document.ProjectCompleted, final.GetProjectStatus())
	for _, s := range final.Samples {
		require.Equal(t, document.SampleCompleted, s.GetStatus())
	}
}
