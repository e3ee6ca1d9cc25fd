package ledger

import (
	"strings"
	"time"
)

// WarehousePosition identifies the physical warehouse a record belongs to.
// "All warehouses" is a read-scope filter, never a stored value.
type WarehousePosition string

const (
	WarehouseRawMaterial   WarehousePosition = "raw_material"
	WarehouseFinishedGoods WarehousePosition = "finished_goods"
)

// Valid reports whether w names a physical warehouse.
func (w WarehousePosition) Valid() bool {
	return w == WarehouseRawMaterial || w == WarehouseFinishedGoods
}

// EntryType enumerates audited stock mutations.
type EntryType string

const (
	EntryTypePurchase    EntryType = "purchase"
	EntryTypeTransfer    EntryType = "transfer"
	EntryTypeForceChange EntryType = "force-change"
	// EntryTypeSale mutates the count without a stock history row; the
	// sales rollup tracks these movements instead.
	EntryTypeSale EntryType = "sale"
)

func (t EntryType) valid() bool {
	switch t {
	case EntryTypePurchase, EntryTypeTransfer, EntryTypeForceChange, EntryTypeSale:
		return true
	}
	return false
}

// audited reports whether mutations of this type produce a stock history row.
func (t EntryType) audited() bool {
	return t != EntryTypeSale
}

// Product is the single source of truth for on-hand stock. Counts are
// mutated only through the ledger.
type Product struct {
	ID            string            `json:"id"`
	Brand         string            `json:"brand"`
	MotorType     string            `json:"motor_type"`
	Part          string            `json:"part"`
	Color         string            `json:"color"`
	SellPrice     int64             `json:"sell_price"`
	PurchasePrice int64             `json:"purchase_price"`
	Count         int64             `json:"count"`
	Warehouse     WarehousePosition `json:"warehouse_position"`
	SupplierID    string            `json:"supplier_id"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Name composes the display name snapshotted into history rows and invoices.
func (p Product) Name() string {
	parts := make([]string, 0, 4)
	for _, s := range []string{p.Brand, p.MotorType, p.Part, p.Color} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Entry is one append-only stock history row. For every audited mutation
// OldCount + Difference == NewCount.
type Entry struct {
	ID          string            `json:"id"`
	ProductID   string            `json:"product_id"`
	ProductName string            `json:"product_name"`
	OldCount    int64             `json:"old_count"`
	NewCount    int64             `json:"new_count"`
	Difference  int64             `json:"difference"`
	Warehouse   WarehousePosition `json:"warehouse_position"`
	Type        EntryType         `json:"type"`
	Date        string            `json:"date"`
	Clock       string            `json:"time"`
	CreatedAt   time.Time         `json:"created_at"`
}

// BrokenProduct is quarantined stock removed from the sellable count due to
// defect, customer return, or shipment shortfall. Keyed by product id and
// warehouse, accumulated via increment.
type BrokenProduct struct {
	ProductID   string            `json:"product_id"`
	ProductName string            `json:"product_name"`
	Warehouse   WarehousePosition `json:"warehouse_position"`
	Quantity    int64             `json:"quantity"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ReturnedProduct is stock earmarked for return to the original supplier.
// Keyed by product id, accumulated via increment.
type ReturnedProduct struct {
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	SupplierID  string    `json:"supplier_id"`
	Quantity    int64     `json:"quantity"`
	UpdatedAt   time.Time `json:"updated_at"`
}
