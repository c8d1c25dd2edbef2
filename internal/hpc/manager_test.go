package hpc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/document"
)

type fakeSample struct {
	id              string
	status          document.SampleStatus
	postProcessCalls int
}

func (f *fakeSample) ID() string { return f.id }

func (f *fakeSample) SetStatus(_ context.Context, status document.SampleStatus) error {
	f.status = status
	return nil
}

func (f *fakeSample) PostProcess(_ context.Context) error {
	f.postProcessCalls++
	return nil
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func TestParseJobID(t *testing.T) {
	id, ok := parseJobID("Submitted batch job 12345\n")
	require.True(t, ok)
	require.Equal(t, "12345", id)

	id, ok = parseJobID("67890\n")
	require.True(t, ok)
	require.Equal(t, "67890", id)

	_, ok = parseJobID("no digits here")
	require.False(t, ok)
}

func TestFirstToken(t *testing.T) {
	require.Equal(t, "COMPLETED", firstToken("COMPLETED\n"))
	require.Equal(t, "RUNNING", firstToken("  RUNNING  extra\n"))
	require.Equal(t, "", firstToken("   \n"))
}

func TestSubmitMissingScript(t *testing.T) {
	m := New(Config{SubmitCommand: []string{"true"}})
	_, ok := m.Submit(context.Background(), filepath.Join(t.TempDir(), "nope.sh"))
	require.False(t, ok)
}

func TestSubmitParsesJobID(t *testing.T) {
	script := writeScript(t, "#!/bin/sh\nexit 0\n")
	m := New(Config{
		SubmitCommand:  []string{"sh", "-c", fmt.Sprintf("echo 'Submitted batch job 555'")},
		CommandTimeout: time.Second,
	})

	id, ok := m.Submit(context.Background(), script)
	require.True(t, ok)
	require.Equal(t, "555", id)
}

func TestSubmitCommandFailure(t *testing.T) {
	script := writeScript(t, "#!/bin/sh\nexit 0\n")
	m := New(Config{
		SubmitCommand:  []string{"sh", "-c", "exit 1"},
		CommandTimeout: time.Second,
	})

	_, ok := m.Submit(context.Background(), script)
	require.False(t, ok)
}

func TestMonitorCompleted(t *testing.T) {
	m := New(Config{
		StatusCommand:  []string{"sh", "-c", "echo COMPLETED"},
		PollInterval:   10 * time.Millisecond,
		CommandTimeout: time.Second,
	})

	sample := &fakeSample{id: "A", status: document.SampleProcessing}
	require.NoError(t, m.Monitor(context.Background(), "123", sample))

	require.Equal(t, document.SampleProcessed, sample.status)
	require.Equal(t, 1, sample.postProcessCalls)
}

func TestMonitorFailed(t *testing.T) {
	m := New(Config{
		StatusCommand:  []string{"sh", "-c", "echo FAILED"},
		PollInterval:   10 * time.Millisecond,
		CommandTimeout: time.Second,
	})

	sample := &fakeSample{id: "A", status: document.SampleProcessing}
	require.NoError(t, m.Monitor(context.Background(), "123", sample))

	require.Equal(t, document.SampleProcessingFailed, sample.status)
	require.Equal(t, 0, sample.postProcessCalls)
}

func TestMonitorContinuesOnNonTerminalThenCompletes(t *testing.T) {
	// A counter file lets the fake status command return RUNNING once,
	// then COMPLETED on every subsequent poll.
	counter := filepath.Join(t.TempDir(), "count")
	script := fmt.Sprintf(`
if [ -f %q ]; then
  echo COMPLETED
else
  touch %q
  echo RUNNING
fi
`, counter, counter)

	m := New(Config{
		StatusCommand:  []string{"sh", "-c", script},
		PollInterval:   10 * time.Millisecond,
		CommandTimeout: time.Second,
	})

	sample := &fakeSample{id: "A", status: document.SampleProcessing}
	require.NoError(t, m.Monitor(context.Background(), "123", sample))
	require.Equal(t, document.SampleProcessed, sample.status)
}

func TestMonitorCancellation(t *testing.T) {
	m := New(Config{
		StatusCommand:  []string{"sh", "-c", "echo RUNNING"},
		PollInterval:   50 * time.Millisecond,
		CommandTimeout: time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	sample := &fakeSample{id: "A"}

	done := make(chan error, 1)
	go func() { done <- m.Monitor(ctx, "123", sample) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("monitor did not honour cancellation promptly")
	}
}
