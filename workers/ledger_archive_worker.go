package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gamification-engine/logger"
	"gamification-engine/services"
	"gamification-engine/utils"
)

// LedgerArchiveWorker copies each UTC day's ledger lines to object storage as
// JSON lines under ledger/YYYY/MM/DD.jsonl. The database stays authoritative.
type LedgerArchiveWorker struct {
	ledger *services.PointsLedger
	store  utils.ObjectStore
	log    *logger.Logger
	now    func() time.Time
}

func NewLedgerArchiveWorker(ledger *services.PointsLedger, store utils.ObjectStore, baseLog *logger.Logger) *LedgerArchiveWorker {
	return &LedgerArchiveWorker{
		ledger: ledger,
		store:  store,
		log:    baseLog.With("worker", "LedgerArchive"),
		now:    time.Now,
	}
}

func ArchiveKey(day time.Time) string {
	return fmt.Sprintf("ledger/%s.jsonl", services.CalendarDay(day).Format("2006/01/02"))
}

// RunOnce archives yesterday.
func (w *LedgerArchiveWorker) RunOnce(ctx context.Context) error {
	_, err := w.ArchiveDay(ctx, services.CalendarDay(w.now()).AddDate(0, 0, -1))
	return err
}

// ArchiveDay uploads every ledger line created on day and returns how many
// were written. Re-running overwrites the same object.
func (w *LedgerArchiveWorker) ArchiveDay(ctx context.Context, day time.Time) (int, error) {
	from := services.CalendarDay(day)
	lines, err := w.ledger.TransactionsBetween(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		w.log.Debug("No ledger lines to archive", "day", from.Format("2006-01-02"))
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range lines {
		if err := enc.Encode(&lines[i]); err != nil {
			return 0, fmt.Errorf("encode ledger line %s: %w", lines[i].ID, err)
		}
	}

	key := ArchiveKey(from)
	if err := w.store.Put(ctx, key, buf.Bytes(), "application/x-ndjson"); err != nil {
		w.log.Error("Ledger archive upload failed", "key", key, "error", err)
		return 0, err
	}
	w.log.Info("Ledger archived", "key", key, "lines", len(lines))
	return len(lines), nil
}
