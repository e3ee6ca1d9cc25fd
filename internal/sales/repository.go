package sales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumbung-erp/lumbung-erp/internal/ledger"
	"github.com/lumbung-erp/lumbung-erp/internal/platform/db"
	"github.com/lumbung-erp/lumbung-erp/internal/shared"
	"github.com/lumbung-erp/lumbung-erp/internal/stats"
)

// Repository persists invoices in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	*ledger.PgTx
	statsTx *stats.PgTx
	tx      pgx.Tx
}

// WithTx executes the callback inside a serializable transaction with
// bounded conflict retry.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{PgTx: ledger.NewPgTx(tx), statsTx: stats.NewPgTx(tx), tx: tx})
	})
}

func (t *txRepo) GetStatsForUpdate(ctx context.Context) (stats.Snapshot, error) {
	return t.statsTx.GetStatsForUpdate(ctx)
}

func (t *txRepo) PutStats(ctx context.Context, snap stats.Snapshot) error {
	return t.statsTx.PutStats(ctx, snap)
}

func (t *txRepo) InsertInvoice(ctx context.Context, inv Invoice) error {
	const headQuery = `INSERT INTO invoices (id, customer, date, time, payment_method, total_price, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := t.tx.Exec(ctx, headQuery, inv.ID, inv.Customer, inv.Date, inv.Clock, string(inv.PaymentMethod), inv.TotalPrice, inv.CreatedAt); err != nil {
		return err
	}
	const itemQuery = `INSERT INTO invoice_items (id, invoice_id, product_id, product_name, count, sell_price, is_returned) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, item := range inv.Items {
		if _, err := t.tx.Exec(ctx, itemQuery, item.ID, inv.ID, item.ProductID, item.ProductName, item.Count, item.SellPrice, item.IsReturned); err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) GetInvoiceForUpdate(ctx context.Context, id string) (Invoice, error) {
	const query = `SELECT id, customer, date, time, payment_method, total_price, created_at FROM invoices WHERE id = $1 FOR UPDATE`
	var inv Invoice
	err := t.tx.QueryRow(ctx, query, id).Scan(&inv.ID, &inv.Customer, &inv.Date, &inv.Clock, &inv.PaymentMethod, &inv.TotalPrice, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, fmt.Errorf("invoice %s: %w", id, shared.ErrNotFound)
		}
		return Invoice{}, err
	}
	inv.Items, err = scanLineItems(t.tx.Query(ctx, `SELECT id, invoice_id, product_id, product_name, count, sell_price, is_returned FROM invoice_items WHERE invoice_id = $1 ORDER BY id`, id))
	return inv, err
}

func (t *txRepo) UpdateLineItem(ctx context.Context, item LineItem) error {
	const query = `UPDATE invoice_items SET count = $2, is_returned = $3 WHERE id = $1`
	_, err := t.tx.Exec(ctx, query, item.ID, item.Count, item.IsReturned)
	return err
}

func (t *txRepo) UpdateInvoiceTotal(ctx context.Context, id string, total int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE invoices SET total_price = $2 WHERE id = $1`, id, total)
	return err
}

func (t *txRepo) DeleteInvoice(ctx context.Context, id string) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, id); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	return err
}

func (t *txRepo) InsertVoidInvoice(ctx context.Context, v VoidInvoice) error {
	items, err := json.Marshal(v.Items)
	if err != nil {
		return err
	}
	const query = `INSERT INTO void_invoices (id, invoice_id, customer, date, time, payment_method, total_price, items, voided_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = t.tx.Exec(ctx, query, v.ID, v.InvoiceID, v.Customer, v.Date, v.Clock, string(v.PaymentMethod), v.TotalPrice, items, v.VoidedAt)
	return err
}

func (t *txRepo) IncrementBroken(ctx context.Context, b ledger.BrokenProduct) error {
	const query = `INSERT INTO broken_products (product_id, product_name, warehouse_position, quantity, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (product_id, warehouse_position) DO UPDATE SET quantity = broken_products.quantity + EXCLUDED.quantity, updated_at = NOW()`
	_, err := t.tx.Exec(ctx, query, b.ProductID, b.ProductName, string(b.Warehouse), b.Quantity)
	return err
}

// GetInvoice loads one invoice with its items.
func (r *Repository) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	const query = `SELECT id, customer, date, time, payment_method, total_price, created_at FROM invoices WHERE id = $1`
	var inv Invoice
	err := r.pool.QueryRow(ctx, query, id).Scan(&inv.ID, &inv.Customer, &inv.Date, &inv.Clock, &inv.PaymentMethod, &inv.TotalPrice, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, fmt.Errorf("invoice %s: %w", id, shared.ErrNotFound)
		}
		return Invoice{}, err
	}
	inv.Items, err = scanLineItems(r.pool.Query(ctx, `SELECT id, invoice_id, product_id, product_name, count, sell_price, is_returned FROM invoice_items WHERE invoice_id = $1 ORDER BY id`, id))
	return inv, err
}

// ListInvoices returns recent invoices, newest first, with items attached.
func (r *Repository) ListInvoices(ctx context.Context, limit int) ([]Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT id, customer, date, time, payment_method, total_price, created_at FROM invoices ORDER BY created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.Customer, &inv.Date, &inv.Clock, &inv.PaymentMethod, &inv.TotalPrice, &inv.CreatedAt); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range invoices {
		items, err := scanLineItems(r.pool.Query(ctx, `SELECT id, invoice_id, product_id, product_name, count, sell_price, is_returned FROM invoice_items WHERE invoice_id = $1 ORDER BY id`, invoices[i].ID))
		if err != nil {
			return nil, err
		}
		invoices[i].Items = items
	}
	return invoices, nil
}

// ListVoidInvoices returns recent void snapshots, newest first.
func (r *Repository) ListVoidInvoices(ctx context.Context, limit int) ([]VoidInvoice, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT id, invoice_id, customer, date, time, payment_method, total_price, items, voided_at FROM void_invoices ORDER BY voided_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var voids []VoidInvoice
	for rows.Next() {
		var (
			v     VoidInvoice
			items []byte
		)
		if err := rows.Scan(&v.ID, &v.InvoiceID, &v.Customer, &v.Date, &v.Clock, &v.PaymentMethod, &v.TotalPrice, &items, &v.VoidedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(items, &v.Items); err != nil {
			return nil, fmt.Errorf("void invoice %s: %w: malformed items", v.ID, shared.ErrValidation)
		}
		voids = append(voids, v)
	}
	return voids, rows.Err()
}

func scanLineItems(rows pgx.Rows, err error) ([]LineItem, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var item LineItem
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.ProductID, &item.ProductName, &item.Count, &item.SellPrice, &item.IsReturned); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
