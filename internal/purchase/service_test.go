package purchase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumbung-erp/lumbung-erp/internal/ledger"
	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

type memoryState struct {
	products  map[string]ledger.Product
	history   []ledger.Entry
	purchases []History
	returned  map[string]int64
	suppliers map[string]bool
}

func newMemoryState() *memoryState {
	return &memoryState{
		products:  make(map[string]ledger.Product),
		returned:  make(map[string]int64),
		suppliers: make(map[string]bool),
	}
}

func (s *memoryState) clone() *memoryState {
	cp := newMemoryState()
	for k, v := range s.products {
		cp.products[k] = v
	}
	for k, v := range s.returned {
		cp.returned[k] = v
	}
	for k, v := range s.suppliers {
		cp.suppliers[k] = v
	}
	cp.history = append(cp.history, s.history...)
	cp.purchases = append(cp.purchases, s.purchases...)
	return cp
}

type memoryRepo struct {
	state *memoryState
}

type memoryTx struct {
	state *memoryState
}

// WithTx stages writes on a copy and commits them only when fn succeeds,
// mirroring the all-or-nothing store contract.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	staged := r.state.clone()
	if err := fn(ctx, &memoryTx{state: staged}); err != nil {
		return err
	}
	*r.state = *staged
	return nil
}

func (r *memoryRepo) GetHistory(ctx context.Context, id string) (History, error) {
	for _, h := range r.state.purchases {
		if h.ID == id {
			return h, nil
		}
	}
	return History{}, shared.ErrNotFound
}

func (r *memoryRepo) ListHistory(ctx context.Context, limit int) ([]History, error) {
	return append([]History(nil), r.state.purchases...), nil
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

func (tx *memoryTx) CreateProduct(ctx context.Context, p ledger.Product) error {
	tx.state.products[p.ID] = p
	return nil
}

func (tx *memoryTx) SupplierExists(ctx context.Context, id string) (bool, error) {
	return tx.state.suppliers[id], nil
}

func (tx *memoryTx) InsertHistory(ctx context.Context, h History) error {
	tx.state.purchases = append(tx.state.purchases, h)
	return nil
}

func (tx *memoryTx) DecrementReturnedProduct(ctx context.Context, productID string, qty int64) error {
	current, ok := tx.state.returned[productID]
	if !ok {
		return fmt.Errorf("returned product %s: %w", productID, shared.ErrNotFound)
	}
	if current < qty {
		return fmt.Errorf("returned product %s: %w", productID, shared.ErrInsufficientStock)
	}
	if current == qty {
		delete(tx.state.returned, productID)
	} else {
		tx.state.returned[productID] = current - qty
	}
	return nil
}

func testDate() time.Time {
	return time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC)
}

func newTestService(state *memoryState) *Service {
	svc := NewService(&memoryRepo{state: state}, ledger.New(), nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC) }
	return svc
}

func baseInput(items ...Item) Input {
	return Input{
		SupplierID:    "sup-1",
		Items:         items,
		PurchasePrice: 100000,
		PaymentStatus: PaymentStatusUnpaid,
		Warehouse:     ledger.WarehouseRawMaterial,
		Date:          testDate(),
	}
}

func seedProduct(state *memoryState, id string, count int64) {
	state.products[id] = ledger.Product{ID: id, Brand: "Astra", Part: "Spakbor", Count: count, Warehouse: ledger.WarehouseRawMaterial, SupplierID: "sup-1"}
}

func TestPurchaseCreatesHistoryAndAudit(t *testing.T) {
	state := newMemoryState()
	state.suppliers["sup-1"] = true
	seedProduct(state, "p1", 4)
	svc := newTestService(state)

	result, err := svc.Purchase(context.Background(), shared.ActorContext{Role: shared.RoleStaff}, baseInput(Item{ProductID: "p1", Quantity: 10}))
	require.NoError(t, err)

	require.Equal(t, int64(14), state.products["p1"].Count)
	require.Equal(t, int64(14), result.Counts["p1"])

	require.Len(t, state.purchases, 1)
	hist := state.purchases[0]
	require.Equal(t, "sup-1", hist.SupplierID)
	require.Equal(t, int64(100000), hist.PurchasePrice)
	require.Equal(t, []HistoryItem{{ProductID: "p1", ProductName: "Astra Spakbor", Quantity: 10}}, hist.Items)
	require.NotNil(t, result.History)

	require.Len(t, state.history, 1)
	entry := state.history[0]
	require.Equal(t, ledger.EntryTypePurchase, entry.Type)
	require.Equal(t, int64(4), entry.OldCount)
	require.Equal(t, int64(14), entry.NewCount)
	require.Equal(t, int64(10), entry.Difference)
	require.Equal(t, "12-05-2024", entry.Date)
}

func TestPurchaseCreatesProductOnFirstBuy(t *testing.T) {
	state := newMemoryState()
	state.suppliers["sup-1"] = true
	svc := newTestService(state)

	result, err := svc.Purchase(context.Background(), shared.ActorContext{Role: shared.RoleStaff}, baseInput(Item{
		Quantity: 5,
		Product:  &NewProduct{Brand: "Yamaha", Part: "Knalpot", SellPrice: 250000, PurchasePrice: 180000},
	}))
	require.NoError(t, err)
	require.Len(t, state.products, 1)
	for id, p := range state.products {
		require.Equal(t, int64(5), p.Count)
		require.Equal(t, ledger.WarehouseRawMaterial, p.Warehouse)
		require.Equal(t, "sup-1", p.SupplierID)
		require.Equal(t, int64(5), result.Counts[id])
	}
	require.Len(t, state.history, 1)
}

func TestReturnedStockPurchase(t *testing.T) {
	state := newMemoryState()
	state.suppliers["sup-1"] = true
	seedProduct(state, "p1", 2)
	state.returned["p1"] = 5
	svc := newTestService(state)

	in := baseInput(Item{ProductID: "p1", Quantity: 3})
	in.ReturnedStock = true
	in.PurchasePrice = 0

	result, err := svc.Purchase(context.Background(), shared.ActorContext{Role: shared.RoleStaff}, in)
	require.NoError(t, err)
	require.Equal(t, int64(5), state.products["p1"].Count)
	require.Equal(t, int64(2), state.returned["p1"])
	require.Nil(t, result.History)
	require.Empty(t, state.purchases)
	require.Len(t, state.history, 1)
}

func TestReturnedStockPoolGuards(t *testing.T) {
	state := newMemoryState()
	state.suppliers["sup-1"] = true
	seedProduct(state, "p1", 2)
	svc := newTestService(state)

	in := baseInput(Item{ProductID: "p1", Quantity: 3})
	in.ReturnedStock = true
	_, err := svc.Purchase(context.Background(), shared.ActorContext{Role: shared.RoleStaff}, in)
	require.ErrorIs(t, err, shared.ErrNotFound)
	// The whole transaction aborted, so the ledger apply rolled back too.
	require.Equal(t, int64(2), state.products["p1"].Count)
	require.Empty(t, state.history)

	state.returned["p1"] = 1
	_, err = svc.Purchase(context.Background(), shared.ActorContext{Role: shared.RoleStaff}, in)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, int64(2), state.products["p1"].Count)
}

func TestForceChangeRequiresOwner(t *testing.T) {
	state := newMemoryState()
	seedProduct(state, "p1", 9)
	svc := newTestService(state)

	in := Input{Items: []Item{{ProductID: "p1", Quantity: -4}}, Warehouse: ledger.WarehouseRawMaterial, Date: testDate(), ForceChange: true}

	_, err := svc.Purchase(context.Background(), shared.ActorContext{Role: shared.RoleAdmin}, in)
	require.ErrorIs(t, err, shared.ErrPermission)
	require.Equal(t, int64(9), state.products["p1"].Count)

	result, err := svc.Purchase(context.Background(), shared.ActorContext{Role: shared.RoleOwner}, in)
	require.NoError(t, err)
	require.Equal(t, int64(5), state.products["p1"].Count)
	require.Nil(t, result.History)
	require.Empty(t, state.purchases)
	require.Len(t, state.history, 1)
	require.Equal(t, ledger.EntryTypeForceChange, state.history[0].Type)
}

func TestPurchaseValidation(t *testing.T) {
	state := newMemoryState()
	state.suppliers["sup-1"] = true
	seedProduct(state, "p1", 2)
	svc := newTestService(state)
	actor := shared.ActorContext{Role: shared.RoleStaff}
	ctx := context.Background()

	in := baseInput(Item{ProductID: "p1", Quantity: 0})
	_, err := svc.Purchase(ctx, actor, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = baseInput(Item{ProductID: "p1", Quantity: -2})
	_, err = svc.Purchase(ctx, actor, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = baseInput(Item{ProductID: "p1", Quantity: 2})
	in.PurchasePrice = 0
	_, err = svc.Purchase(ctx, actor, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = baseInput()
	_, err = svc.Purchase(ctx, actor, in)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPurchaseIsAtomicAcrossItems(t *testing.T) {
	state := newMemoryState()
	state.suppliers["sup-1"] = true
	seedProduct(state, "p1", 4)
	svc := newTestService(state)

	_, err := svc.Purchase(context.Background(), shared.ActorContext{Role: shared.RoleStaff}, baseInput(
		Item{ProductID: "p1", Quantity: 10},
		Item{ProductID: "ghost", Quantity: 2},
	))
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, int64(4), state.products["p1"].Count)
	require.Empty(t, state.history)
	require.Empty(t, state.purchases)
}

func TestUnknownSupplierRejected(t *testing.T) {
	state := newMemoryState()
	seedProduct(state, "p1", 4)
	svc := newTestService(state)

	_, err := svc.Purchase(context.Background(), shared.ActorContext{Role: shared.RoleStaff}, baseInput(Item{ProductID: "p1", Quantity: 1}))
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, int64(4), state.products["p1"].Count)
}
