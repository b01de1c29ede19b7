package workers

import (
	"context"

	"gamification-engine/logger"
	"gamification-engine/services"
)

// ReconcileWorker audits that every balance equals the sum of its ledger.
// It only reports; balances are never rewritten from here.
type ReconcileWorker struct {
	ledger *services.PointsLedger
	log    *logger.Logger
}

func NewReconcileWorker(ledger *services.PointsLedger, baseLog *logger.Logger) *ReconcileWorker {
	return &ReconcileWorker{ledger: ledger, log: baseLog.With("worker", "Reconcile")}
}

func (w *ReconcileWorker) RunOnce(ctx context.Context) ([]services.Drift, error) {
	drift, err := w.ledger.FindDrift(ctx)
	if err != nil {
		w.log.Error("Reconciliation audit failed", "error", err)
		return nil, err
	}
	for _, d := range drift {
		w.log.Error("Balance drift detected",
			"user_id", d.UserID,
			"total_points", d.TotalPoints,
			"ledger_sum", d.LedgerSum,
		)
	}
	if len(drift) == 0 {
		w.log.Debug("Ledger reconciled")
	}
	return drift, nil
}
