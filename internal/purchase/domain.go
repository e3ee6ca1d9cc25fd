package purchase

import (
	"time"

	"github.com/lumbung-erp/lumbung-erp/internal/ledger"
)

// PaymentStatus of a purchase. Toggled externally after creation; the
// engine only writes the initial value.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

// History records one supplier purchase linking all its items.
type History struct {
	ID            string                   `json:"id"`
	SupplierID    string                   `json:"supplier_id"`
	Date          string                   `json:"date"`
	Clock         string                   `json:"time"`
	PurchasePrice int64                    `json:"purchase_price"`
	PaymentStatus PaymentStatus            `json:"payment_status"`
	Warehouse     ledger.WarehousePosition `json:"warehouse_position"`
	Items         []HistoryItem            `json:"items"`
	CreatedAt     time.Time                `json:"created_at"`
}

// HistoryItem snapshots one purchased line.
type HistoryItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"name"`
	Quantity    int64  `json:"quantity"`
}

// NewProduct carries the details needed to create a product on first
// purchase.
type NewProduct struct {
	Brand         string
	MotorType     string
	Part          string
	Color         string
	SellPrice     int64
	PurchasePrice int64
}

// Item is one purchase line, either referencing an existing product or
// creating a new one.
type Item struct {
	ProductID string
	Quantity  int64
	Product   *NewProduct
}

// Input describes a purchase operation.
type Input struct {
	SupplierID    string
	Items         []Item
	PurchasePrice int64
	PaymentStatus PaymentStatus
	Warehouse     ledger.WarehousePosition
	Date          time.Time
	// ReturnedStock pulls stock back from the returned-to-supplier pool
	// instead of recording a fresh purchase.
	ReturnedStock bool
	// ForceChange applies owner-only manual count corrections; quantities
	// may be negative and no purchase history is written.
	ForceChange bool
}

// Result reports the committed purchase.
type Result struct {
	History *History         `json:"history,omitempty"`
	Counts  map[string]int64 `json:"counts"`
}
