package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// Tx exposes the persistence primitives the ledger needs. Engine
// transactions implement it so every Apply runs inside the caller's
// transaction and commits or aborts with it.
type Tx interface {
	GetProduct(ctx context.Context, id string) (Product, error)
	UpdateProductCount(ctx context.Context, id string, count int64) error
	InsertStockHistory(ctx context.Context, entry Entry) error
}

// ApplyInput describes one count mutation.
type ApplyInput struct {
	ProductID string
	Delta     int64
	Type      EntryType
	// Warehouse stamps the history row; when empty the product's own
	// position is used.
	Warehouse WarehousePosition
	Date      string
	Clock     string
}

// Ledger is the atomic count-mutation and audit-row primitive.
type Ledger struct {
	now func() time.Time
}

// New constructs a Ledger.
func New() *Ledger {
	return &Ledger{now: time.Now}
}

// Apply reads the current product count, writes count + delta, and appends
// exactly one stock history row for audited entry types. Callers own the
// surrounding transaction; Apply never commits.
func (l *Ledger) Apply(ctx context.Context, tx Tx, in ApplyInput) (Entry, error) {
	if in.Delta == 0 {
		return Entry{}, fmt.Errorf("ledger: %w: delta must be non-zero", shared.ErrValidation)
	}
	if !in.Type.valid() {
		return Entry{}, fmt.Errorf("ledger: %w: unknown entry type %q", shared.ErrValidation, in.Type)
	}

	product, err := tx.GetProduct(ctx, in.ProductID)
	if err != nil {
		return Entry{}, fmt.Errorf("ledger: get product %s: %w", in.ProductID, err)
	}

	newCount := product.Count + in.Delta
	if newCount < 0 {
		return Entry{}, fmt.Errorf("ledger: product %s has %d, requested %d: %w", in.ProductID, product.Count, -in.Delta, shared.ErrInsufficientStock)
	}

	if err := tx.UpdateProductCount(ctx, in.ProductID, newCount); err != nil {
		return Entry{}, fmt.Errorf("ledger: update count: %w", err)
	}

	now := l.now().UTC()
	warehouse := in.Warehouse
	if warehouse == "" {
		warehouse = product.Warehouse
	}
	date := in.Date
	if date == "" {
		date = shared.FormatDate(now)
	}
	clock := in.Clock
	if clock == "" {
		clock = shared.FormatClock(now)
	}

	entry := Entry{
		ID:          uuid.NewString(),
		ProductID:   product.ID,
		ProductName: product.Name(),
		OldCount:    product.Count,
		NewCount:    newCount,
		Difference:  in.Delta,
		Warehouse:   warehouse,
		Type:        in.Type,
		Date:        date,
		Clock:       clock,
		CreatedAt:   now,
	}
	if in.Type.audited() {
		if err := tx.InsertStockHistory(ctx, entry); err != nil {
			return Entry{}, fmt.Errorf("ledger: insert history: %w", err)
		}
	}
	return entry, nil
}
