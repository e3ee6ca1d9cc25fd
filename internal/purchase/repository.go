package purchase

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumbung-erp/lumbung-erp/internal/ledger"
	"github.com/lumbung-erp/lumbung-erp/internal/platform/db"
	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// Repository persists purchase data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	*ledger.PgTx
}

// WithTx executes the callback inside a serializable transaction with
// bounded conflict retry.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{PgTx: ledger.NewPgTx(tx)})
	})
}

func (t *txRepo) SupplierExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := t.Tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM suppliers WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (t *txRepo) InsertHistory(ctx context.Context, h History) error {
	const headQuery = `INSERT INTO purchase_history (id, supplier_id, date, time, purchase_price, payment_status, warehouse_position, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := t.Tx.Exec(ctx, headQuery, h.ID, h.SupplierID, h.Date, h.Clock, h.PurchasePrice, string(h.PaymentStatus), string(h.Warehouse), h.CreatedAt); err != nil {
		return err
	}
	const itemQuery = `INSERT INTO purchase_history_items (history_id, product_id, product_name, quantity) VALUES ($1, $2, $3, $4)`
	for _, item := range h.Items {
		if _, err := t.Tx.Exec(ctx, itemQuery, h.ID, item.ProductID, item.ProductName, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) DecrementReturnedProduct(ctx context.Context, productID string, qty int64) error {
	var current int64
	err := t.Tx.QueryRow(ctx, `SELECT quantity FROM returned_products WHERE product_id = $1 FOR UPDATE`, productID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("returned product %s: %w", productID, shared.ErrNotFound)
		}
		return err
	}
	if current < qty {
		return fmt.Errorf("returned product %s has %d, requested %d: %w", productID, current, qty, shared.ErrInsufficientStock)
	}
	if current == qty {
		_, err = t.Tx.Exec(ctx, `DELETE FROM returned_products WHERE product_id = $1`, productID)
		return err
	}
	_, err = t.Tx.Exec(ctx, `UPDATE returned_products SET quantity = quantity - $2, updated_at = NOW() WHERE product_id = $1`, productID, qty)
	return err
}

// GetHistory loads one purchase record with its items.
func (r *Repository) GetHistory(ctx context.Context, id string) (History, error) {
	const query = `SELECT id, supplier_id, date, time, purchase_price, payment_status, warehouse_position, created_at FROM purchase_history WHERE id = $1`
	var h History
	err := r.pool.QueryRow(ctx, query, id).Scan(&h.ID, &h.SupplierID, &h.Date, &h.Clock, &h.PurchasePrice, &h.PaymentStatus, &h.Warehouse, &h.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return History{}, fmt.Errorf("purchase history %s: %w", id, shared.ErrNotFound)
		}
		return History{}, err
	}
	h.Items, err = r.historyItems(ctx, id)
	return h, err
}

// ListHistory returns recent purchase records, newest first.
func (r *Repository) ListHistory(ctx context.Context, limit int) ([]History, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT id, supplier_id, date, time, purchase_price, payment_status, warehouse_position, created_at FROM purchase_history ORDER BY created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var histories []History
	for rows.Next() {
		var h History
		if err := rows.Scan(&h.ID, &h.SupplierID, &h.Date, &h.Clock, &h.PurchasePrice, &h.PaymentStatus, &h.Warehouse, &h.CreatedAt); err != nil {
			return nil, err
		}
		histories = append(histories, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range histories {
		items, err := r.historyItems(ctx, histories[i].ID)
		if err != nil {
			return nil, err
		}
		histories[i].Items = items
	}
	return histories, nil
}

func (r *Repository) historyItems(ctx context.Context, historyID string) ([]HistoryItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, product_name, quantity FROM purchase_history_items WHERE history_id = $1`, historyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []HistoryItem
	for rows.Next() {
		var item HistoryItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
