// Package hpc implements the HPC job manager: submitting a job script
// to the cluster and driving a sample to a terminal state based on the
// job's outcome, by shelling out to the scheduler's opaque submit and
// status commands under a command timeout and parsing their output.
package hpc

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/document"
)

// terminalStatuses is the fixed vocabulary of scheduler accounting
// tokens that end a job. "OUT_OF_ME+" is the literal truncated
// form sacct-like accounting commands return for OUT_OF_MEMORY.
var terminalStatuses = map[string]bool{
	"COMPLETED":  true,
	"FAILED":     true,
	"CANCELLED":  true,
	"TIMEOUT":    true,
	"OUT_OF_ME+": true,
}

var jobIDFromSubmit = regexp.MustCompile(`Submitted batch job (\d+)`)
var firstDigitRun = regexp.MustCompile(`\d+`)

var (
	jobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yggdrasil_hpc_jobs_submitted_total",
		Help: "Number of HPC job scripts submitted to the scheduler.",
	})
	jobsTerminal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yggdrasil_hpc_jobs_terminal_total",
		Help: "Number of HPC jobs that reached a terminal scheduler status, by status.",
	}, []string{"status"})
)

// Sample is the minimal surface Monitor needs from a sample entity:
// enough to drive it through its terminal transition.
type Sample interface {
	ID() string
	SetStatus(ctx context.Context, status document.SampleStatus) error
	PostProcess(ctx context.Context) error
}

// Config configures a Manager's scheduler commands and timing.
type Config struct {
	// SubmitCommand is the scheduler submit command, e.g. {"sbatch"}.
	// The script path is appended as its final argument.
	SubmitCommand []string
	// StatusCommand is the scheduler accounting command, e.g.
	// {"sacct", "-n", "-o", "State", "-j"}. The job id is appended as
	// its final argument.
	StatusCommand []string
	// CommandTimeout bounds each individual submit/status invocation
	//.
	CommandTimeout time.Duration
	// PollInterval is the delay between successive status polls.
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.CommandTimeout == 0 {
		c.CommandTimeout = 8 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = 30 * time.Second
	}
	return c
}

// Manager submits job scripts and polls the scheduler to drive
// samples to a terminal state, the real (non-mock) variant of C7.
type Manager struct {
	cfg Config
}

// New returns a scheduler-backed Manager.
func New(cfg Config) *Manager {
	return &Manager{cfg: cfg.withDefaults()}
}

// Submit runs the scheduler submit command against scriptPath and
// parses the job id from its stdout: either the decimal run captured
// by "Submitted batch job <id>", or the first contiguous digit run if
// present. A missing script file, a command timeout, nonzero exit, or
// unparseable output all yield ("", false).
func (m *Manager) Submit(ctx context.Context, scriptPath string) (string, bool) {
	log := logrus.WithField("script", scriptPath)

	if _, err := os.Stat(scriptPath); err != nil {
		log.WithError(err).Warn("hpc: submit script not found")
		return "", false
	}
	if len(m.cfg.SubmitCommand) == 0 {
		log.Error("hpc: no submit command configured")
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.CommandTimeout)
	defer cancel()

	args := append(append([]string(nil), m.cfg.SubmitCommand[1:]...), scriptPath)
	cmd := exec.CommandContext(ctx, m.cfg.SubmitCommand[0], args...)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		log.WithError(err).Warn("hpc: submit command failed")
		return "", false
	}

	jobID, ok := parseJobID(stdout.String())
	if !ok {
		log.WithField("stdout", stdout.String()).Warn("hpc: could not parse job id from submit output")
		return "", false
	}

	jobsSubmitted.Inc()
	log.WithField("job_id", jobID).Info("hpc: job submitted")
	return jobID, true
}

func parseJobID(stdout string) (string, bool) {
	if m := jobIDFromSubmit.FindStringSubmatch(stdout); len(m) == 2 {
		return m[1], true
	}
	if m := firstDigitRun.FindString(stdout); m != "" {
		return m, true
	}
	return "", false
}

// Monitor polls the scheduler's accounting command for jobID at the
// configured interval until a terminal status is observed or ctx is
// cancelled (honoured promptly between polls, ). On COMPLETED the
// sample is set to "processed" and its post-process hook is invoked;
// on any other terminal status it is set to "processing_failed". An
// unrecognised, non-terminal token is treated the same as a known
// non-terminal one: polling continues.
func (m *Manager) Monitor(ctx context.Context, jobID string, sample Sample) error {
	log := logrus.WithFields(logrus.Fields{"job_id": jobID, "sample_id": sample.ID()})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		status, ok := m.poll(ctx, jobID)
		if ok && terminalStatuses[status] {
			jobsTerminal.WithLabelValues(status).Inc()
			log.WithField("status", status).Info("hpc: job reached terminal status")

			if status == "COMPLETED" {
				if err := sample.SetStatus(ctx, document.SampleProcessed); err != nil {
					log.WithError(err).Error("hpc: failed to mark sample processed")
				}
				if err := sample.PostProcess(ctx); err != nil {
					log.WithError(err).Error("hpc: post-process hook failed")
				}
			} else {
				if err := sample.SetStatus(ctx, document.SampleProcessingFailed); err != nil {
					log.WithError(err).Error("hpc: failed to mark sample processing_failed")
				}
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.PollInterval):
		}
	}
}

func (m *Manager) poll(ctx context.Context, jobID string) (string, bool) {
	if len(m.cfg.StatusCommand) == 0 {
		logrus.Error("hpc: no status command configured")
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.CommandTimeout)
	defer cancel()

	args := append(append([]string(nil), m.cfg.StatusCommand[1:]...), jobID)
	cmd := exec.CommandContext(ctx, m.cfg.StatusCommand[0], args...)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		logrus.WithField("job_id", jobID).WithError(err).Warn("hpc: status command failed")
		return "", false
	}

	token := firstToken(stdout.String())
	return token, token != ""
}

func firstToken(s string) string {
	start, end := -1, -1
	for i, r := range s {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			if start != -1 {
				end = i
				break
			}
			continue
		}
		if start == -1 {
			start = i
		}
	}
	if start == -1 {
		return ""
	}
	if end == -1 {
		end = len(s)
	}
	return s[start:end]
}
