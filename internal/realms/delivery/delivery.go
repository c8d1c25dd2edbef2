// Package delivery implements the delivery realm plug-in: not
// a lifecycle realm driven by LaunchTemplate, but a DeliveryManager
// that mutates a YggdrasilDocument's delivery_info directly, grounded
// on original_source's lib/realms/delivery/deliver.py. The NGI report
// generation and TACA staging/DDS upload steps deliver.py performs are
// genuinely out of scope here — this package implements the decision
// rules that pick an action and the result-recording step
// (log_and_store_delivery_result) that both real and stubbed actions
// eventually reach.
package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/document"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/store"
)

// Action is one of the outcomes deliver.py's jsonLogic rules table
// can resolve to.
type Action string

const (
	ActionNone              Action = "none"
	ActionGenerateNGIReport Action = "generate_ngi_report"
	ActionWaitForSigning    Action = "wait_for_signing"
	ActionProceedDelivery   Action = "proceed_delivery"
	ActionFinish            Action = "finish"
)

// ReportGenerator performs the out-of-scope NGI report
// generation/upload step; a no-op stub satisfies it in tests and in
// deployments that have not wired a real implementation.
type ReportGenerator interface {
	GenerateAndUpload(ctx context.Context, projectID string, includedSamples []string) error
}

// NoopReportGenerator logs and does nothing, the default when no
// report pipeline is configured.
type NoopReportGenerator struct{}

func (NoopReportGenerator) GenerateAndUpload(_ context.Context, projectID string, samples []string) error {
	logrus.WithFields(logrus.Fields{"project_id": projectID, "samples": samples}).
		Info("delivery: report generation not configured, skipping")
	return nil
}

// DeliveryManager drives one project's delivery decision and persists
// its outcome. It is constructed fresh per invocation, unlike
// the lifecycle realms, since nothing dispatches events for it — a
// caller (e.g. a scheduled job or CLI subcommand) decides when to run
// it.
type DeliveryManager struct {
	ProjectID string
	Store     *store.YggdrasilStore
	Reports   ReportGenerator
}

// New constructs a DeliveryManager for projectID. Reports defaults to
// NoopReportGenerator if nil.
func New(projectID string, yggStore *store.YggdrasilStore, reports ReportGenerator) *DeliveryManager {
	if reports == nil {
		reports = NoopReportGenerator{}
	}
	return &DeliveryManager{ProjectID: projectID, Store: yggStore, Reports: reports}
}

// Proceed mirrors deliver.py's constructor guard: nothing to do
// without a project id.
func (m *DeliveryManager) Proceed() bool { return m.ProjectID != "" }

// Launch decides an action from the project's current delivery_info,
// ngi_report, and sample QC statuses, and executes it. A
// decision of none or wait_for_signing is a logged no-op; finish logs
// completion; generate_ngi_report defers to Reports;
// proceed_delivery appends a delivery result entry and marks the
// included samples delivered.
func (m *DeliveryManager) Launch(ctx context.Context) error {
	if !m.Proceed() {
		logrus.Info("delivery: manager not ready, aborting")
		return nil
	}

	doc, _, err := m.Store.Get(ctx, m.ProjectID)
	if err != nil {
		return fmt.Errorf("delivery: loading project %q: %w", m.ProjectID, err)
	}

	action := decide(doc)
	log := logrus.WithFields(logrus.Fields{"project_id": m.ProjectID, "action": action})

	switch action {
	case ActionGenerateNGIReport:
		included := samplesWithQC(doc, document.QCPassed)
		if len(included) == 0 {
			log.Warn("delivery: no QC=Passed samples, skipping report generation")
			return nil
		}
		return m.Reports.GenerateAndUpload(ctx, m.ProjectID, included)
	case ActionProceedDelivery:
		return m.recordDelivery(ctx, doc)
	case ActionWaitForSigning:
		log.Info("delivery: waiting for NGI report signing")
		return nil
	case ActionFinish:
		log.Info("delivery: execution completed")
		return nil
	default:
		log.Info("delivery: no action for current state")
		return nil
	}
}

// decide implements deliver.py's load_rules/jsonLogic decision table
// directly as Go control flow: any sample still pending QC means do
// nothing; otherwise the presence and disposition of the latest NGI
// report decides between generating one, waiting on a signature, or
// proceeding to delivery.
func decide(doc *document.YggdrasilDocument) Action {
	samples := doc.SamplesSnapshot()
	for _, s := range samples {
		if s.QC == document.QCPending {
			return ActionNone
		}
	}

	report := doc.GetNGIReport()
	if len(report) == 0 {
		if doc.GetDeliveryInfo().Status == "ready-for-delivery" {
			return ActionGenerateNGIReport
		}
		return ActionWaitForSigning
	}

	latest := report[len(report)-1]
	if latest.Signee != "" && !latest.Rejected {
		return ActionProceedDelivery
	}
	return ActionWaitForSigning
}

func samplesWithQC(doc *document.YggdrasilDocument, qc document.QCStatus) []string {
	var out []string
	for _, s := range doc.SamplesSnapshot() {
		if s.QC == qc {
			out = append(out, s.ID)
		}
	}
	return out
}

// recordDelivery appends one delivery_results entry covering every
// QC=Passed, not-yet-delivered sample, marks them delivered, and sets
// delivery_info.status to "delivered", mirroring
// log_and_store_delivery_result.
func (m *DeliveryManager) recordDelivery(ctx context.Context, doc *document.YggdrasilDocument) error {
	var delivered []string
	for _, s := range doc.SamplesSnapshot() {
		if s.QC == document.QCPassed && !s.Delivered {
			delivered = append(delivered, s.ID)
		}
	}
	if len(delivered) == 0 {
		logrus.WithField("project_id", m.ProjectID).Warn("delivery: no new samples to deliver")
		return nil
	}

	info := doc.GetDeliveryInfo()
	entry := document.DeliveryResultEntry{
		DDSProjectID:    info.DDSProjectID,
		DateUploaded:    time.Now().UTC(),
		SamplesIncluded: delivered,
	}
	if err := m.Store.AddDeliveryResultEntry(ctx, m.ProjectID, entry); err != nil {
		return err
	}

	for _, id := range delivered {
		if err := m.Store.MarkSampleDelivered(ctx, m.ProjectID, id); err != nil {
			return err
		}
	}

	if err := m.Store.SetDeliveryStatus(ctx, m.ProjectID, "delivered"); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{"project_id": m.ProjectID, "samples": delivered}).
		Info("delivery: new delivery entry recorded")
	return nil
}
