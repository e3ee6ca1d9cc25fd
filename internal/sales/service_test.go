package sales

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumbung-erp/lumbung-erp/internal/ledger"
	"github.com/lumbung-erp/lumbung-erp/internal/shared"
	"github.com/lumbung-erp/lumbung-erp/internal/stats"
)

type memoryState struct {
	products map[string]ledger.Product
	history  []ledger.Entry
	invoices map[string]Invoice
	voids    map[string]VoidInvoice
	broken   map[string]ledger.BrokenProduct
	rollup   *stats.Snapshot
}

func newMemoryState() *memoryState {
	return &memoryState{
		products: make(map[string]ledger.Product),
		invoices: make(map[string]Invoice),
		voids:    make(map[string]VoidInvoice),
		broken:   make(map[string]ledger.BrokenProduct),
	}
}

func (s *memoryState) clone() *memoryState {
	cp := newMemoryState()
	for k, v := range s.products {
		cp.products[k] = v
	}
	for k, v := range s.invoices {
		v.Items = append([]LineItem(nil), v.Items...)
		cp.invoices[k] = v
	}
	for k, v := range s.voids {
		cp.voids[k] = v
	}
	for k, v := range s.broken {
		cp.broken[k] = v
	}
	cp.history = append(cp.history, s.history...)
	if s.rollup != nil {
		snap := *s.rollup
		snap.DailySales = make(map[string]int64, len(s.rollup.DailySales))
		for k, v := range s.rollup.DailySales {
			snap.DailySales[k] = v
		}
		cp.rollup = &snap
	}
	return cp
}

type memoryRepo struct {
	state *memoryState
}

type memoryTx struct {
	state *memoryState
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	staged := r.state.clone()
	if err := fn(ctx, &memoryTx{state: staged}); err != nil {
		return err
	}
	*r.state = *staged
	return nil
}

func (r *memoryRepo) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	inv, ok := r.state.invoices[id]
	if !ok {
		return Invoice{}, shared.ErrNotFound
	}
	return inv, nil
}

func (r *memoryRepo) ListInvoices(ctx context.Context, limit int) ([]Invoice, error) {
	var invoices []Invoice
	for _, inv := range r.state.invoices {
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

func (r *memoryRepo) ListVoidInvoices(ctx context.Context, limit int) ([]VoidInvoice, error) {
	var voids []VoidInvoice
	for _, v := range r.state.voids {
		voids = append(voids, v)
	}
	return voids, nil
}

func (tx *memoryTx) GetProduct(ctx context.Context, id string) (ledger.Product, error) {
	p, ok := tx.state.products[id]
	if !ok {
		return ledger.Product{}, fmt.Errorf("product %s: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

func (tx *memoryTx) UpdateProductCount(ctx context.Context, id string, count int64) error {
	p, ok := tx.state.products[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.Count = count
	tx.state.products[id] = p
	return nil
}

func (tx *memoryTx) InsertStockHistory(ctx context.Context, entry ledger.Entry) error {
	tx.state.history = append(tx.state.history, entry)
	return nil
}

func (tx *memoryTx) GetStatsForUpdate(ctx context.Context) (stats.Snapshot, error) {
	if tx.state.rollup == nil {
		return stats.Snapshot{}, shared.ErrNotFound
	}
	return *tx.state.rollup, nil
}

func (tx *memoryTx) PutStats(ctx context.Context, snap stats.Snapshot) error {
	tx.state.rollup = &snap
	return nil
}

func (tx *memoryTx) InsertInvoice(ctx context.Context, inv Invoice) error {
	tx.state.invoices[inv.ID] = inv
	return nil
}

func (tx *memoryTx) GetInvoiceForUpdate(ctx context.Context, id string) (Invoice, error) {
	inv, ok := tx.state.invoices[id]
	if !ok {
		return Invoice{}, fmt.Errorf("invoice %s: %w", id, shared.ErrNotFound)
	}
	return inv, nil
}

func (tx *memoryTx) UpdateLineItem(ctx context.Context, item LineItem) error {
	inv, ok := tx.state.invoices[item.InvoiceID]
	if !ok {
		return shared.ErrNotFound
	}
	for i := range inv.Items {
		if inv.Items[i].ID == item.ID {
			inv.Items[i] = item
			tx.state.invoices[item.InvoiceID] = inv
			return nil
		}
	}
	return shared.ErrNotFound
}

func (tx *memoryTx) UpdateInvoiceTotal(ctx context.Context, id string, total int64) error {
	inv, ok := tx.state.invoices[id]
	if !ok {
		return shared.ErrNotFound
	}
	inv.TotalPrice = total
	tx.state.invoices[id] = inv
	return nil
}

func (tx *memoryTx) DeleteInvoice(ctx context.Context, id string) error {
	delete(tx.state.invoices, id)
	return nil
}

func (tx *memoryTx) InsertVoidInvoice(ctx context.Context, v VoidInvoice) error {
	tx.state.voids[v.ID] = v
	return nil
}

func (tx *memoryTx) IncrementBroken(ctx context.Context, b ledger.BrokenProduct) error {
	key := fmt.Sprintf("%s:%s", b.ProductID, b.Warehouse)
	if existing, ok := tx.state.broken[key]; ok {
		existing.Quantity += b.Quantity
		tx.state.broken[key] = existing
		return nil
	}
	tx.state.broken[key] = b
	return nil
}

type memoryAudit struct {
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type countingCache struct {
	invalidations int
}

func (c *countingCache) Invalidate(ctx context.Context) {
	c.invalidations++
}

type fixture struct {
	state *memoryState
	svc   *Service
	audit *memoryAudit
	cache *countingCache
}

func newFixture() *fixture {
	state := newMemoryState()
	audit := &memoryAudit{}
	cache := &countingCache{}
	svc := NewService(&memoryRepo{state: state}, ledger.New(), stats.NewAggregator(), cache, audit, slog.Default())
	return &fixture{state: state, svc: svc, audit: audit, cache: cache}
}

func seedProduct(state *memoryState, id string, count int64) {
	state.products[id] = ledger.Product{ID: id, Brand: "Astra", Part: "Spakbor", Color: "Hitam", SellPrice: 1000, PurchasePrice: 600, Count: count, Warehouse: ledger.WarehouseFinishedGoods, SupplierID: "sup-1"}
}

func brokenQty(state *memoryState, productID string) int64 {
	return state.broken[fmt.Sprintf("%s:%s", productID, ledger.WarehouseFinishedGoods)].Quantity
}

// sell runs a sale dated today so the daily bucket gate is open.
func (f *fixture) sell(t *testing.T, productID string, count, price int64) Invoice {
	t.Helper()
	inv, err := f.svc.Sell(context.Background(), SellInput{
		Customer:      "Toko Maju",
		Date:          time.Now(),
		PaymentMethod: PaymentMethodCash,
		Items:         []SellItem{{ProductID: productID, Count: count, SellPrice: price}},
	})
	require.NoError(t, err)
	return inv
}

func TestSellCreatesInvoiceWithoutHistoryRows(t *testing.T) {
	f := newFixture()
	seedProduct(f.state, "p1", 10)

	inv := f.sell(t, "p1", 5, 1000)

	require.Equal(t, int64(5), f.state.products["p1"].Count)
	require.Empty(t, f.state.history)

	stored := f.state.invoices[inv.ID]
	require.Equal(t, int64(5000), stored.TotalPrice)
	require.Len(t, stored.Items, 1)
	require.Equal(t, "Astra Spakbor Hitam", stored.Items[0].ProductName)
	require.False(t, stored.Items[0].IsReturned)

	require.NotNil(t, f.state.rollup)
	require.Equal(t, int64(5000), f.state.rollup.TotalSales)
	require.Equal(t, int64(1), f.state.rollup.TransactionCount)
	require.Equal(t, int64(5000), f.state.rollup.DailySales[shared.DayKey(time.Now())])
	require.Equal(t, 1, f.cache.invalidations)
}

func TestSellInsufficientStock(t *testing.T) {
	f := newFixture()
	seedProduct(f.state, "p1", 3)

	_, err := f.svc.Sell(context.Background(), SellInput{
		Customer:      "Toko Maju",
		Date:          time.Now(),
		PaymentMethod: PaymentMethodCash,
		Items:         []SellItem{{ProductID: "p1", Count: 5, SellPrice: 1000}},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, int64(3), f.state.products["p1"].Count)
	require.Empty(t, f.state.invoices)
	require.Nil(t, f.state.rollup)
	require.Zero(t, f.cache.invalidations)
}

func TestSellValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	cases := []SellInput{
		{Date: time.Now(), PaymentMethod: PaymentMethodCash, Items: []SellItem{{ProductID: "p1", Count: 1, SellPrice: 100}}},
		{Customer: "Toko", PaymentMethod: PaymentMethodCash, Items: []SellItem{{ProductID: "p1", Count: 1, SellPrice: 100}}},
		{Customer: "Toko", Date: time.Now(), PaymentMethod: "barter", Items: []SellItem{{ProductID: "p1", Count: 1, SellPrice: 100}}},
		{Customer: "Toko", Date: time.Now(), PaymentMethod: PaymentMethodCash},
		{Customer: "Toko", Date: time.Now(), PaymentMethod: PaymentMethodCash, Items: []SellItem{{ProductID: "p1", Count: 0, SellPrice: 100}}},
		{Customer: "Toko", Date: time.Now(), PaymentMethod: PaymentMethodCash, Items: []SellItem{{ProductID: "p1", Count: 1, SellPrice: 0}}},
	}
	for _, in := range cases {
		_, err := f.svc.Sell(ctx, in)
		require.ErrorIs(t, err, shared.ErrValidation)
	}
}

func TestReturnPartial(t *testing.T) {
	f := newFixture()
	seedProduct(f.state, "p1", 10)
	inv := f.sell(t, "p1", 5, 1000)

	updated, err := f.svc.Return(context.Background(), ReturnInput{
		InvoiceID: inv.ID,
		Items:     []ReturnItem{{ProductID: "p1", Quantity: 2}},
	})
	require.NoError(t, err)

	require.Equal(t, int64(3), updated.Items[0].Count)
	require.False(t, updated.Items[0].IsReturned)
	require.Equal(t, int64(3000), updated.TotalPrice)

	// Physical stock is quarantined, not restored.
	require.Equal(t, int64(5), f.state.products["p1"].Count)
	require.Equal(t, int64(2), brokenQty(f.state, "p1"))

	require.Equal(t, int64(3000), f.state.rollup.TotalSales)
	require.Equal(t, int64(1), f.state.rollup.TransactionCount)
	require.Equal(t, int64(3000), f.state.rollup.DailySales[shared.DayKey(time.Now())])
}

func TestReturnFullLineThenRejected(t *testing.T) {
	f := newFixture()
	seedProduct(f.state, "p1", 10)
	inv := f.sell(t, "p1", 5, 1000)
	ctx := context.Background()

	updated, err := f.svc.Return(ctx, ReturnInput{InvoiceID: inv.ID, Items: []ReturnItem{{ProductID: "p1", Quantity: 5}}})
	require.NoError(t, err)
	require.Zero(t, updated.Items[0].Count)
	require.True(t, updated.Items[0].IsReturned)
	require.Zero(t, updated.TotalPrice)

	_, err = f.svc.Return(ctx, ReturnInput{InvoiceID: inv.ID, Items: []ReturnItem{{ProductID: "p1", Quantity: 1}}})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, int64(5), brokenQty(f.state, "p1"))
}

func TestReturnOverRemainingCount(t *testing.T) {
	f := newFixture()
	seedProduct(f.state, "p1", 10)
	inv := f.sell(t, "p1", 5, 1000)

	_, err := f.svc.Return(context.Background(), ReturnInput{InvoiceID: inv.ID, Items: []ReturnItem{{ProductID: "p1", Quantity: 6}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	// Nothing moved.
	require.Equal(t, int64(5), f.state.invoices[inv.ID].Items[0].Count)
	require.Equal(t, int64(5000), f.state.invoices[inv.ID].TotalPrice)
	require.Zero(t, brokenQty(f.state, "p1"))
	require.Equal(t, int64(5000), f.state.rollup.TotalSales)
}

func TestReturnUnknownInvoice(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Return(context.Background(), ReturnInput{InvoiceID: "missing", Items: []ReturnItem{{ProductID: "p1", Quantity: 1}}})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestExchangeDecrementsStockAndQuarantines(t *testing.T) {
	f := newFixture()
	seedProduct(f.state, "p1", 10)
	inv := f.sell(t, "p1", 5, 1000)

	err := f.svc.Exchange(context.Background(), ExchangeInput{InvoiceID: inv.ID, Items: []ExchangeItem{{ProductID: "p1", Quantity: 2}}})
	require.NoError(t, err)

	// The replacement comes off the shelf; the defective unit is quarantined.
	require.Equal(t, int64(3), f.state.products["p1"].Count)
	require.Equal(t, int64(2), brokenQty(f.state, "p1"))
	require.Empty(t, f.state.history)

	// Invoice and rollup untouched.
	require.Equal(t, int64(5000), f.state.invoices[inv.ID].TotalPrice)
	require.Equal(t, int64(5), f.state.invoices[inv.ID].Items[0].Count)
	require.Equal(t, int64(5000), f.state.rollup.TotalSales)
}

func TestExchangeInsufficientStock(t *testing.T) {
	f := newFixture()
	seedProduct(f.state, "p1", 10)
	inv := f.sell(t, "p1", 5, 1000)

	err := f.svc.Exchange(context.Background(), ExchangeInput{InvoiceID: inv.ID, Items: []ExchangeItem{{ProductID: "p1", Quantity: 9}}})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, int64(5), f.state.products["p1"].Count)
	require.Zero(t, brokenQty(f.state, "p1"))
}

func TestVoidReplacesInvoice(t *testing.T) {
	f := newFixture()
	seedProduct(f.state, "p1", 10)
	seedProduct(f.state, "p2", 10)
	inv := f.sell(t, "p1", 5, 1000)
	owner := shared.ActorContext{Role: shared.RoleOwner}

	replacement, err := f.svc.Void(context.Background(), owner, VoidInput{
		InvoiceID:     inv.ID,
		PaymentMethod: PaymentMethodTransfer,
		Items:         []SellItem{{ProductID: "p2", Count: 4, SellPrice: 2000}},
	})
	require.NoError(t, err)

	// Original gone, replacement in its place.
	require.NotContains(t, f.state.invoices, inv.ID)
	stored := f.state.invoices[replacement.ID]
	require.Equal(t, int64(8000), stored.TotalPrice)
	require.Equal(t, PaymentMethodTransfer, stored.PaymentMethod)
	require.Equal(t, inv.Customer, stored.Customer)
	require.Equal(t, inv.Date, stored.Date)

	// The snapshot keeps the old items, all flagged returned.
	require.Len(t, f.state.voids, 1)
	for _, snap := range f.state.voids {
		require.Equal(t, inv.ID, snap.InvoiceID)
		require.Equal(t, int64(5000), snap.TotalPrice)
		require.Len(t, snap.Items, 1)
		require.True(t, snap.Items[0].IsReturned)
	}

	// Void does not move stock.
	require.Equal(t, int64(5), f.state.products["p1"].Count)
	require.Equal(t, int64(10), f.state.products["p2"].Count)

	// Net rollup delta, and the second transaction increment the void keeps.
	require.Equal(t, int64(8000), f.state.rollup.TotalSales)
	require.Equal(t, int64(2), f.state.rollup.TransactionCount)

	require.Len(t, f.audit.logs, 1)
	require.Equal(t, "invoice:void", f.audit.logs[0].Action)
	require.Equal(t, inv.ID, f.audit.logs[0].EntityID)
}

func TestVoidRequiresElevatedRole(t *testing.T) {
	f := newFixture()
	seedProduct(f.state, "p1", 10)
	inv := f.sell(t, "p1", 5, 1000)

	_, err := f.svc.Void(context.Background(), shared.ActorContext{Role: shared.RoleStaff}, VoidInput{
		InvoiceID:     inv.ID,
		PaymentMethod: PaymentMethodCash,
		Items:         []SellItem{{ProductID: "p1", Count: 1, SellPrice: 1000}},
	})
	require.ErrorIs(t, err, shared.ErrPermission)
	require.Contains(t, f.state.invoices, inv.ID)
	require.Empty(t, f.state.voids)
}

func TestVoidUnknownReplacementProduct(t *testing.T) {
	f := newFixture()
	seedProduct(f.state, "p1", 10)
	inv := f.sell(t, "p1", 5, 1000)

	_, err := f.svc.Void(context.Background(), shared.ActorContext{Role: shared.RoleAdmin}, VoidInput{
		InvoiceID:     inv.ID,
		PaymentMethod: PaymentMethodCash,
		Items:         []SellItem{{ProductID: "ghost", Count: 1, SellPrice: 1000}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)

	// The whole void rolled back: original invoice intact, no snapshot.
	require.Contains(t, f.state.invoices, inv.ID)
	require.Empty(t, f.state.voids)
	require.Equal(t, int64(5000), f.state.rollup.TotalSales)
}
