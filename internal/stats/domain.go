package stats

import (
	"context"
	"time"
)

// StatsID keys the singleton rollup row.
const StatsID = "--stats--"

// Snapshot is the incrementally-maintained sales rollup. It is never
// recomputed from the invoice set; every invoice mutation moves it inside
// the same transaction.
type Snapshot struct {
	ID               string           `json:"id"`
	TotalSales       int64            `json:"total_sales"`
	TransactionCount int64            `json:"transaction_count"`
	DailySales       map[string]int64 `json:"daily_sales"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Tx exposes the rollup persistence primitives. Sales transactions implement
// it so Record commits or aborts with the triggering invoice mutation.
type Tx interface {
	GetStatsForUpdate(ctx context.Context) (Snapshot, error)
	PutStats(ctx context.Context, snap Snapshot) error
}
