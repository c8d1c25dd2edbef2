package hpc

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/document"
)

// MockManager is the development/testing substitute for Manager,
// swapped in at session init time behind the dev-mode flag. It never
// shells out: Submit synthesizes a job id, and Monitor transitions the
// sample to "processed" after a random 15-35s delay.
type MockManager struct {
	// MinDelay/MaxDelay bound the synthetic completion delay; both
	// default to 15s/35s when zero.
	MinDelay, MaxDelay time.Duration
}

// NewMock returns a MockManager with the default delay bounds.
func NewMock() *MockManager {
	return &MockManager{MinDelay: 15 * time.Second, MaxDelay: 35 * time.Second}
}

func (m *MockManager) bounds() (time.Duration, time.Duration) {
	minD, maxD := m.MinDelay, m.MaxDelay
	if minD == 0 {
		minD = 15 * time.Second
	}
	if maxD == 0 {
		maxD = 35 * time.Second
	}
	return minD, maxD
}

// Submit synthesizes a job id without touching scriptPath or any
// external process.
func (m *MockManager) Submit(_ context.Context, scriptPath string) (string, bool) {
	jobID := uuid.NewString()
	logrus.WithFields(logrus.Fields{"script": scriptPath, "job_id": jobID}).
		Info("hpc(mock): synthesized job id")
	return jobID, true
}

// Monitor waits a random delay within [MinDelay, MaxDelay] and then
// marks the sample processed and invokes its post-process hook,
// mirroring Manager.Monitor's COMPLETED path. Cancellation aborts the
// wait promptly.
func (m *MockManager) Monitor(ctx context.Context, jobID string, sample Sample) error {
	minD, maxD := m.bounds()
	delay := minD
	if maxD > minD {
		delay += time.Duration(rand.Int63n(int64(maxD - minD)))
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
	}

	log := logrus.WithFields(logrus.Fields{"job_id": jobID, "sample_id": sample.ID()})
	if err := sample.SetStatus(ctx, document.SampleProcessed); err != nil {
		log.WithError(err).Error("hpc(mock): failed to mark sample processed")
	}
	if err := sample.PostProcess(ctx); err != nil {
		log.WithError(err).Error("hpc(mock): post-process hook failed")
	}
	return nil
}
