package sales

import (
	"time"

	"github.com/lumbung-erp/lumbung-erp/internal/ledger"
)

// PaymentMethod of an invoice.
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodTempo    PaymentMethod = "tempo"
)

// Valid reports whether the payment method is known.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodTempo:
		return true
	}
	return false
}

// LineItem is one sold product on an invoice. Count tracks the units the
// customer still holds; returns decrement it and flag the line once it
// reaches zero.
type LineItem struct {
	ID          string `json:"id"`
	InvoiceID   string `json:"invoice_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Count       int64  `json:"count"`
	SellPrice   int64  `json:"sell_price"`
	IsReturned  bool   `json:"is_returned"`
}

// Invoice is one sale. Customer is a free-form reference; walk-in sales
// carry a guest label.
type Invoice struct {
	ID            string        `json:"id"`
	Customer      string        `json:"customer"`
	Date          string        `json:"date"`
	Clock         string        `json:"time"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	TotalPrice    int64         `json:"total_price"`
	Items         []LineItem    `json:"items"`
	CreatedAt     time.Time     `json:"created_at"`
}

// VoidInvoice is the immutable snapshot a void leaves behind. Every item is
// flagged returned.
type VoidInvoice struct {
	ID            string        `json:"id"`
	InvoiceID     string        `json:"invoice_id"`
	Customer      string        `json:"customer"`
	Date          string        `json:"date"`
	Clock         string        `json:"time"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	TotalPrice    int64         `json:"total_price"`
	Items         []LineItem    `json:"items"`
	VoidedAt      time.Time     `json:"voided_at"`
}

// SellItem is one line of a new sale. SellPrice may differ from the
// product's list price for customer-specific deals.
type SellItem struct {
	ProductID string
	Count     int64
	SellPrice int64
}

// SellInput describes a new invoice.
type SellInput struct {
	Customer      string
	Date          time.Time
	PaymentMethod PaymentMethod
	Items         []SellItem
}

// ReturnItem carries the returned quantity for one invoice line.
type ReturnItem struct {
	ProductID string
	Quantity  int64
}

// ReturnInput describes a partial or full customer return.
type ReturnInput struct {
	InvoiceID string
	Items     []ReturnItem
}

// ExchangeItem carries the defective quantity swapped for one invoice line.
type ExchangeItem struct {
	ProductID string
	Quantity  int64
}

// ExchangeInput describes a defective-unit swap against an invoice.
type ExchangeInput struct {
	InvoiceID string
	Items     []ExchangeItem
}

// VoidInput replaces an invoice wholesale.
type VoidInput struct {
	InvoiceID     string
	PaymentMethod PaymentMethod
	Items         []SellItem
}

func invoiceTotal(items []LineItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Count * item.SellPrice
	}
	return total
}

// brokenWarehouse picks the quarantine position for a returned unit; lines
// sold from a deleted product fall back to finished goods.
func brokenWarehouse(p ledger.Product, err error) ledger.WarehousePosition {
	if err != nil || !p.Warehouse.Valid() {
		return ledger.WarehouseFinishedGoods
	}
	return p.Warehouse
}
