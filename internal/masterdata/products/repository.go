package products

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumbung-erp/lumbung-erp/internal/ledger"
	mdshared "github.com/lumbung-erp/lumbung-erp/internal/masterdata/shared"
	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// Repository serves the read-only product surface. Counts only ever change
// through the engines, so there is no write path here.
type Repository interface {
	List(ctx context.Context, filters mdshared.ListFilters) ([]ledger.Product, int, error)
	Get(ctx context.Context, id string) (ledger.Product, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, filters mdshared.ListFilters) ([]ledger.Product, int, error) {
	const base = `FROM products WHERE 1=1`
	where := ""
	args := []interface{}{}
	argCount := 0

	if filters.Warehouse != "" {
		argCount++
		where += ` AND warehouse_position = $` + strconv.Itoa(argCount)
		args = append(args, filters.Warehouse)
	}
	if filters.SupplierID != "" {
		argCount++
		where += ` AND supplier_id = $` + strconv.Itoa(argCount)
		args = append(args, filters.SupplierID)
	}
	if filters.Search != "" {
		argCount++
		where += ` AND concat_ws(' ', brand, motor_type, part, color) ILIKE $` + strconv.Itoa(argCount)
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) `+base+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, brand, motor_type, part, color, sell_price, purchase_price, count, warehouse_position, supplier_id, created_at, updated_at ` + base + where
	query += " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir)

	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, filters.Limit)

	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, filters.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []ledger.Product
	for rows.Next() {
		var p ledger.Product
		err := rows.Scan(&p.ID, &p.Brand, &p.MotorType, &p.Part, &p.Color, &p.SellPrice, &p.PurchasePrice, &p.Count, &p.Warehouse, &p.SupplierID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id string) (ledger.Product, error) {
	const query = `SELECT id, brand, motor_type, part, color, sell_price, purchase_price, count, warehouse_position, supplier_id, created_at, updated_at FROM products WHERE id = $1`
	var p ledger.Product
	err := r.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.Brand, &p.MotorType, &p.Part, &p.Color, &p.SellPrice, &p.PurchasePrice, &p.Count, &p.Warehouse, &p.SupplierID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Product{}, fmt.Errorf("product %s: %w", id, shared.ErrNotFound)
		}
		return ledger.Product{}, err
	}
	return p, nil
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "count":
		return "count " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "brand " + dir + ", part " + dir
	}
}
