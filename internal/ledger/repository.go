package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// PgTx implements Tx over a pgx transaction so engine repositories can host
// ledger calls inside their own transactions.
type PgTx struct {
	Tx pgx.Tx
}

// NewPgTx wraps tx.
func NewPgTx(tx pgx.Tx) *PgTx {
	return &PgTx{Tx: tx}
}

func (t *PgTx) GetProduct(ctx context.Context, id string) (Product, error) {
	const query = `SELECT id, brand, motor_type, part, color, sell_price, purchase_price, count, warehouse_position, supplier_id, created_at, updated_at FROM products WHERE id = $1`
	var p Product
	err := t.Tx.QueryRow(ctx, query, id).Scan(&p.ID, &p.Brand, &p.MotorType, &p.Part, &p.Color, &p.SellPrice, &p.PurchasePrice, &p.Count, &p.Warehouse, &p.SupplierID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("product %s: %w", id, shared.ErrNotFound)
		}
		return Product{}, err
	}
	return p, nil
}

func (t *PgTx) UpdateProductCount(ctx context.Context, id string, count int64) error {
	const query = `UPDATE products SET count = $2, updated_at = NOW() WHERE id = $1`
	tag, err := t.Tx.Exec(ctx, query, id, count)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (t *PgTx) InsertStockHistory(ctx context.Context, entry Entry) error {
	const query = `INSERT INTO stock_history (id, product_id, product_name, old_count, new_count, difference, warehouse_position, type, date, time, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := t.Tx.Exec(ctx, query, entry.ID, entry.ProductID, entry.ProductName, entry.OldCount, entry.NewCount, entry.Difference, string(entry.Warehouse), string(entry.Type), entry.Date, entry.Clock, entry.CreatedAt)
	return err
}

// CreateProduct inserts a product row with its initial count. Products are
// only created on engine paths (purchase, transfer receipt).
func (t *PgTx) CreateProduct(ctx context.Context, p Product) error {
	const query = `INSERT INTO products (id, brand, motor_type, part, color, sell_price, purchase_price, count, warehouse_position, supplier_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())`
	_, err := t.Tx.Exec(ctx, query, p.ID, p.Brand, p.MotorType, p.Part, p.Color, p.SellPrice, p.PurchasePrice, p.Count, string(p.Warehouse), p.SupplierID)
	return err
}

// HistoryFilter scopes stock history reads.
type HistoryFilter struct {
	ProductID string
	Warehouse WarehousePosition
	Type      EntryType
	Limit     int
}

// Repository serves read-only stock history queries for reporting.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListHistory returns history entries, newest first.
func (r *Repository) ListHistory(ctx context.Context, filter HistoryFilter) ([]Entry, error) {
	query := `SELECT id, product_id, product_name, old_count, new_count, difference, warehouse_position, type, date, time, created_at FROM stock_history WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filter.ProductID != "" {
		argCount++
		query += ` AND product_id = $` + strconv.Itoa(argCount)
		args = append(args, filter.ProductID)
	}
	if filter.Warehouse != "" {
		argCount++
		query += ` AND warehouse_position = $` + strconv.Itoa(argCount)
		args = append(args, string(filter.Warehouse))
	}
	if filter.Type != "" {
		argCount++
		query += ` AND type = $` + strconv.Itoa(argCount)
		args = append(args, string(filter.Type))
	}

	query += ` ORDER BY created_at DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.ProductID, &e.ProductName, &e.OldCount, &e.NewCount, &e.Difference, &e.Warehouse, &e.Type, &e.Date, &e.Clock, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = createdAt
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
