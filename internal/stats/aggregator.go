package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// Aggregator applies sales deltas to the rollup.
type Aggregator struct {
	now func() time.Time
}

// NewAggregator constructs an Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{now: time.Now}
}

// Record moves the rollup by amountDelta and txCountDelta inside the
// caller's transaction. The daily bucket only moves when invoiceDate falls
// in the current calendar month; the bucket key stays day-of-month, matching
// the document shape consumers read.
func (a *Aggregator) Record(ctx context.Context, tx Tx, amountDelta, txCountDelta int64, invoiceDate time.Time) error {
	snap, err := tx.GetStatsForUpdate(ctx)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("stats: get rollup: %w", err)
		}
		snap = Snapshot{ID: StatsID, DailySales: make(map[string]int64)}
	}
	if snap.DailySales == nil {
		snap.DailySales = make(map[string]int64)
	}

	snap.TotalSales += amountDelta
	snap.TransactionCount += txCountDelta

	now := a.now()
	if shared.SameMonth(invoiceDate, now) {
		snap.DailySales[shared.DayKey(invoiceDate)] += amountDelta
	}
	snap.UpdatedAt = now.UTC()

	if err := tx.PutStats(ctx, snap); err != nil {
		return fmt.Errorf("stats: put rollup: %w", err)
	}
	return nil
}
