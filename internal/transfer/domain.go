package transfer

import (
	"time"

	"github.com/lumbung-erp/lumbung-erp/internal/ledger"
)

// Source names the pool a dispatch draws from.
type Source string

const (
	// SourceStock dispatches sellable stock; the product count drops
	// through the ledger.
	SourceStock Source = "stock"
	// SourceBroken dispatches quarantined quality-failure stock; the
	// broken pool is consumed instead.
	SourceBroken Source = "broken"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceStock || s == SourceBroken
}

// StatusInTransit marks dispatched items awaiting reconciliation.
const StatusInTransit = "in transit"

// Note records stock sent out for external processing, pending quality-check
// reconciliation. A note is consumed exactly once.
type Note struct {
	ID          string                   `json:"id"`
	Destination string                   `json:"destination"`
	Date        string                   `json:"date"`
	Clock       string                   `json:"time"`
	Warehouse   ledger.WarehousePosition `json:"warehouse_position"`
	Source      Source                   `json:"source"`
	CreatedAt   time.Time                `json:"created_at"`
}

// Item is a product-shaped record tagged with its dispatch note, counted in
// neither warehouse while in transit. The snapshot fields let the
// destination materialize a product on receipt.
type Item struct {
	ID            string                   `json:"id"`
	NoteID        string                   `json:"dispatch_note_id"`
	ProductID     string                   `json:"product_id"`
	Brand         string                   `json:"brand"`
	MotorType     string                   `json:"motor_type"`
	Part          string                   `json:"part"`
	Color         string                   `json:"color"`
	SellPrice     int64                    `json:"sell_price"`
	PurchasePrice int64                    `json:"purchase_price"`
	SupplierID    string                   `json:"supplier_id"`
	Amount        int64                    `json:"amount"`
	Status        string                   `json:"status"`
	Warehouse     ledger.WarehousePosition `json:"warehouse_position"`
}

// DispatchItemInput is one outgoing line.
type DispatchItemInput struct {
	ProductID string
	Amount    int64
	Color     string
}

// DispatchInput describes stock leaving a warehouse for external rework.
type DispatchInput struct {
	Destination string
	Warehouse   ledger.WarehousePosition
	Date        time.Time
	Source      Source
	Items       []DispatchItemInput
}

// AcceptItem carries the inspector's accepted count for one dispatched item.
type AcceptItem struct {
	ItemID        string
	AcceptedCount int64
}

// ReconcileInput describes the receipt of a dispatch note.
type ReconcileInput struct {
	NoteID    string
	Warehouse ledger.WarehousePosition
	Items     []AcceptItem
}

// ReconcileResult reports the committed receipt.
type ReconcileResult struct {
	NoteID string                 `json:"dispatch_note_id"`
	Items  []ReconcileItemOutcome `json:"items"`
}

// ReconcileItemOutcome reports one item's receipt.
type ReconcileItemOutcome struct {
	ItemID        string `json:"item_id"`
	ProductID     string `json:"product_id"`
	AcceptedCount int64  `json:"accepted_count"`
	Shortfall     int64  `json:"shortfall"`
	NewCount      int64  `json:"new_count"`
}

// ReturnToSupplierInput moves quarantined stock into the supplier-return
// pool.
type ReturnToSupplierInput struct {
	ProductID string
	Warehouse ledger.WarehousePosition
	Quantity  int64
}
