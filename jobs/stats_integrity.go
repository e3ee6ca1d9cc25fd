package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StatsIntegrity scans for drift between the incremental sales rollup and
// the invoice set. Read-only: drift is reported, never repaired, since the
// rollup deliberately keeps totals for invoices that have since been voided.
type StatsIntegrity struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStatsIntegrity constructs the drift scan.
func NewStatsIntegrity(pool *pgxpool.Pool, logger *slog.Logger) *StatsIntegrity {
	return &StatsIntegrity{pool: pool, logger: logger}
}

// Handle processes TaskStatsIntegrity tasks.
func (j *StatsIntegrity) Handle(ctx context.Context, t *asynq.Task) error {
	var payload StatsIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	var invoiceTotal, invoiceCount int64
	err := j.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total_price), 0), COUNT(*) FROM invoices`).Scan(&invoiceTotal, &invoiceCount)
	if err != nil {
		return err
	}

	var rollupTotal, rollupCount int64
	err = j.pool.QueryRow(ctx, `SELECT total_sales, transaction_count FROM sales_stats WHERE id = '--stats--'`).Scan(&rollupTotal, &rollupCount)
	if err != nil {
		j.logger.Info("stats integrity: no rollup row yet")
		return nil
	}

	if rollupTotal != invoiceTotal || rollupCount != invoiceCount {
		j.logger.Warn("stats integrity: rollup drift",
			slog.Int64("rollup_total", rollupTotal),
			slog.Int64("invoice_total", invoiceTotal),
			slog.Int64("rollup_count", rollupCount),
			slog.Int64("invoice_count", invoiceCount),
		)
		return nil
	}
	j.logger.Info("stats integrity: rollup matches invoices", slog.Int64("total", rollupTotal))
	return nil
}
