package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	appingest "github.com/marketsync/backend/internal/application/ingest"
)

// OrchestratorExecutor runs sync jobs through the ingest orchestrator
type OrchestratorExecutor struct {
	orchestrator *appingest.Orchestrator
	logger       *zap.Logger
}

// NewOrchestratorExecutor creates a new executor
func NewOrchestratorExecutor(orchestrator *appingest.Orchestrator, logger *zap.Logger) *OrchestratorExecutor {
	return &OrchestratorExecutor{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// Execute dispatches the job to the matching orchestrator run. Partial
// failures land in the job summary; only run-level failures return an error.
func (e *OrchestratorExecutor) Execute(ctx context.Context, job *SyncJob) error {
	var (
		summary *appingest.RunSummary
		err     error
	)
	switch job.Kind {
	case SyncJobKindProducts:
		summary, err = e.orchestrator.RunProducts(ctx, job.Provider)
	case SyncJobKindOrders:
		summary, err = e.orchestrator.RunOrders(ctx, job.Provider, job.Since, job.Until)
	case SyncJobKindOffers:
		summary, err = e.orchestrator.RunOffers(ctx, job.Provider)
	case SyncJobKindStock:
		summary, err = e.orchestrator.RunStock(ctx, job.Provider, job.Until)
	default:
		return fmt.Errorf("unknown sync job kind %q", job.Kind)
	}
	if err != nil {
		return err
	}

	job.Complete(summary)
	return nil
}

// Ensure OrchestratorExecutor implements SyncExecutor
var _ SyncExecutor = (*OrchestratorExecutor)(nil)
