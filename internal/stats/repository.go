package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// PgTx implements Tx over a pgx transaction.
type PgTx struct {
	Tx pgx.Tx
}

// NewPgTx wraps tx.
func NewPgTx(tx pgx.Tx) *PgTx {
	return &PgTx{Tx: tx}
}

func (t *PgTx) GetStatsForUpdate(ctx context.Context) (Snapshot, error) {
	const query = `SELECT id, total_sales, transaction_count, daily_sales, updated_at FROM sales_stats WHERE id = $1 FOR UPDATE`
	return scanSnapshot(t.Tx.QueryRow(ctx, query, StatsID))
}

func (t *PgTx) PutStats(ctx context.Context, snap Snapshot) error {
	daily, err := json.Marshal(snap.DailySales)
	if err != nil {
		return err
	}
	const query = `INSERT INTO sales_stats (id, total_sales, transaction_count, daily_sales, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET total_sales = EXCLUDED.total_sales, transaction_count = EXCLUDED.transaction_count, daily_sales = EXCLUDED.daily_sales, updated_at = NOW()`
	_, err = t.Tx.Exec(ctx, query, snap.ID, snap.TotalSales, snap.TransactionCount, daily)
	return err
}

// Repository serves rollup reads outside sales transactions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the current rollup; a missing row reads as a zero snapshot.
func (r *Repository) Get(ctx context.Context) (Snapshot, error) {
	const query = `SELECT id, total_sales, transaction_count, daily_sales, updated_at FROM sales_stats WHERE id = $1`
	snap, err := scanSnapshot(r.pool.QueryRow(ctx, query, StatsID))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Snapshot{ID: StatsID, DailySales: map[string]int64{}}, nil
		}
		return Snapshot{}, err
	}
	return snap, nil
}

func scanSnapshot(row pgx.Row) (Snapshot, error) {
	var snap Snapshot
	var daily []byte
	if err := row.Scan(&snap.ID, &snap.TotalSales, &snap.TransactionCount, &daily, &snap.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, fmt.Errorf("sales stats: %w", shared.ErrNotFound)
		}
		return Snapshot{}, err
	}
	if len(daily) > 0 {
		if err := json.Unmarshal(daily, &snap.DailySales); err != nil {
			return Snapshot{}, fmt.Errorf("sales stats: decode daily_sales: %w", err)
		}
	}
	if snap.DailySales == nil {
		snap.DailySales = map[string]int64{}
	}
	return snap, nil
}
