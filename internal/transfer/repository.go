package transfer

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

// Repository persists dispatch data in PostgreSQL.
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

func (t *txRepo) FindProductMatching(ctx context.Context, item Item, warehouse ledger.WarehousePosition) (ledger.Product, error) {
	const query = `SELECT id, brand, motor_type, part, color, sell_price, purchase_price, count, warehouse_position, supplier_id, created_at, updated_at
		FROM products WHERE brand = $1 AND motor_type = $2 AND part = $3 AND color = $4 AND warehouse_position = $5 LIMIT 1`
	var p ledger.Product
	err := t.Tx.QueryRow(ctx, query, item.Brand, item.MotorType, item.Part, item.Color, string(warehouse)).
		Scan(&p.ID, &p.Brand, &p.MotorType, &p.Part, &p.Color, &p.SellPrice, &p.PurchasePrice, &p.Count, &p.Warehouse, &p.SupplierID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Product{}, fmt.Errorf("destination product: %w", shared.ErrNotFound)
		}
		return ledger.Product{}, err
	}
	return p, nil
}

func (t *txRepo) InsertNote(ctx context.Context, note Note) error {
	const query = `INSERT INTO dispatch_notes (id, destination, date, time, warehouse_position, source, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := t.Tx.Exec(ctx, query, note.ID, note.Destination, note.Date, note.Clock, string(note.Warehouse), string(note.Source), note.CreatedAt)
	return err
}

func (t *txRepo) InsertItem(ctx context.Context, item Item) error {
	const query = `INSERT INTO on_dispatch_items (id, dispatch_note_id, product_id, brand, motor_type, part, color, sell_price, purchase_price, supplier_id, amount, status, warehouse_position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := t.Tx.Exec(ctx, query, item.ID, item.NoteID, item.ProductID, item.Brand, item.MotorType, item.Part, item.Color, item.SellPrice, item.PurchasePrice, item.SupplierID, item.Amount, item.Status, string(item.Warehouse))
	return err
}

func (t *txRepo) GetNoteForUpdate(ctx context.Context, id string) (Note, error) {
	const query = `SELECT id, destination, date, time, warehouse_position, source, created_at FROM dispatch_notes WHERE id = $1 FOR UPDATE`
	var n Note
	err := t.Tx.QueryRow(ctx, query, id).Scan(&n.ID, &n.Destination, &n.Date, &n.Clock, &n.Warehouse, &n.Source, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Note{}, fmt.Errorf("dispatch note %s: %w", id, shared.ErrNotFound)
		}
		return Note{}, err
	}
	return n, nil
}

func (t *txRepo) ListNoteItems(ctx context.Context, noteID string) ([]Item, error) {
	return scanItems(t.Tx.Query(ctx, `SELECT id, dispatch_note_id, product_id, brand, motor_type, part, color, sell_price, purchase_price, supplier_id, amount, status, warehouse_position FROM on_dispatch_items WHERE dispatch_note_id = $1`, noteID))
}

func (t *txRepo) DeleteNote(ctx context.Context, id string) error {
	_, err := t.Tx.Exec(ctx, `DELETE FROM dispatch_notes WHERE id = $1`, id)
	return err
}

func (t *txRepo) DeleteNoteItems(ctx context.Context, noteID string) error {
	_, err := t.Tx.Exec(ctx, `DELETE FROM on_dispatch_items WHERE dispatch_note_id = $1`, noteID)
	return err
}

func (t *txRepo) IncrementBroken(ctx context.Context, b ledger.BrokenProduct) error {
	const query = `INSERT INTO broken_products (product_id, product_name, warehouse_position, quantity, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (product_id, warehouse_position) DO UPDATE SET quantity = broken_products.quantity + EXCLUDED.quantity, updated_at = NOW()`
	_, err := t.Tx.Exec(ctx, query, b.ProductID, b.ProductName, string(b.Warehouse), b.Quantity)
	return err
}

func (t *txRepo) DecrementBroken(ctx context.Context, productID string, warehouse ledger.WarehousePosition, qty int64) error {
	var current int64
	err := t.Tx.QueryRow(ctx, `SELECT quantity FROM broken_products WHERE product_id = $1 AND warehouse_position = $2 FOR UPDATE`, productID, string(warehouse)).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("broken product %s: %w", productID, shared.ErrNotFound)
		}
		return err
	}
	if current < qty {
		return fmt.Errorf("broken product %s has %d, requested %d: %w", productID, current, qty, shared.ErrInsufficientStock)
	}
	if current == qty {
		_, err = t.Tx.Exec(ctx, `DELETE FROM broken_products WHERE product_id = $1 AND warehouse_position = $2`, productID, string(warehouse))
		return err
	}
	_, err = t.Tx.Exec(ctx, `UPDATE broken_products SET quantity = quantity - $3, updated_at = NOW() WHERE product_id = $1 AND warehouse_position = $2`, productID, string(warehouse), qty)
	return err
}

func (t *txRepo) GetBroken(ctx context.Context, productID string, warehouse ledger.WarehousePosition) (ledger.BrokenProduct, error) {
	const query = `SELECT product_id, product_name, warehouse_position, quantity, updated_at FROM broken_products WHERE product_id = $1 AND warehouse_position = $2`
	var b ledger.BrokenProduct
	err := t.Tx.QueryRow(ctx, query, productID, string(warehouse)).Scan(&b.ProductID, &b.ProductName, &b.Warehouse, &b.Quantity, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.BrokenProduct{}, fmt.Errorf("broken product %s: %w", productID, shared.ErrNotFound)
		}
		return ledger.BrokenProduct{}, err
	}
	return b, nil
}

func (t *txRepo) IncrementReturned(ctx context.Context, r ledger.ReturnedProduct) error {
	const query = `INSERT INTO returned_products (product_id, product_name, supplier_id, quantity, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (product_id) DO UPDATE SET quantity = returned_products.quantity + EXCLUDED.quantity, updated_at = NOW()`
	_, err := t.Tx.Exec(ctx, query, r.ProductID, r.ProductName, r.SupplierID, r.Quantity)
	return err
}

// GetNote loads a note with its items for reporting.
func (r *Repository) GetNote(ctx context.Context, id string) (Note, []Item, error) {
	const query = `SELECT id, destination, date, time, warehouse_position, source, created_at FROM dispatch_notes WHERE id = $1`
	var n Note
	err := r.pool.QueryRow(ctx, query, id).Scan(&n.ID, &n.Destination, &n.Date, &n.Clock, &n.Warehouse, &n.Source, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Note{}, nil, fmt.Errorf("dispatch note %s: %w", id, shared.ErrNotFound)
		}
		return Note{}, nil, err
	}
	items, err := scanItems(r.pool.Query(ctx, `SELECT id, dispatch_note_id, product_id, brand, motor_type, part, color, sell_price, purchase_price, supplier_id, amount, status, warehouse_position FROM on_dispatch_items WHERE dispatch_note_id = $1`, id))
	return n, items, err
}

// ListNotes returns pending notes, newest first.
func (r *Repository) ListNotes(ctx context.Context, limit int) ([]Note, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, destination, date, time, warehouse_position, source, created_at FROM dispatch_notes ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.Destination, &n.Date, &n.Clock, &n.Warehouse, &n.Source, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// ListBroken returns the quarantine pool.
func (r *Repository) ListBroken(ctx context.Context, warehouse ledger.WarehousePosition) ([]ledger.BrokenProduct, error) {
	query := `SELECT product_id, product_name, warehouse_position, quantity, updated_at FROM broken_products`
	args := []interface{}{}
	if warehouse != "" {
		query += ` WHERE warehouse_position = $1`
		args = append(args, string(warehouse))
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var broken []ledger.BrokenProduct
	for rows.Next() {
		var b ledger.BrokenProduct
		if err := rows.Scan(&b.ProductID, &b.ProductName, &b.Warehouse, &b.Quantity, &b.UpdatedAt); err != nil {
			return nil, err
		}
		broken = append(broken, b)
	}
	return broken, rows.Err()
}

// ListReturned returns the supplier-return pool.
func (r *Repository) ListReturned(ctx context.Context) ([]ledger.ReturnedProduct, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, product_name, supplier_id, quantity, updated_at FROM returned_products ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var returned []ledger.ReturnedProduct
	for rows.Next() {
		var rp ledger.ReturnedProduct
		if err := rows.Scan(&rp.ProductID, &rp.ProductName, &rp.SupplierID, &rp.Quantity, &rp.UpdatedAt); err != nil {
			return nil, err
		}
		returned = append(returned, rp)
	}
	return returned, rows.Err()
}

func scanItems(rows pgx.Rows, err error) ([]Item, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.NoteID, &item.ProductID, &item.Brand, &item.MotorType, &item.Part, &item.Color, &item.SellPrice, &item.PurchasePrice, &item.SupplierID, &item.Amount, &item.Status, &item.Warehouse); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
