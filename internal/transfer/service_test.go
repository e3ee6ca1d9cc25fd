package transfer

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
	products map[string]ledger.Product
	history  []ledger.Entry
	notes    map[string]Note
	items    map[string][]Item
	broken   map[string]ledger.BrokenProduct
	returned map[string]ledger.ReturnedProduct
}

func brokenKey(productID string, warehouse ledger.WarehousePosition) string {
	return fmt.Sprintf("%s:%s", productID, warehouse)
}

func newMemoryState() *memoryState {
	return &memoryState{
		products: make(map[string]ledger.Product),
		notes:    make(map[string]Note),
		items:    make(map[string][]Item),
		broken:   make(map[string]ledger.BrokenProduct),
		returned: make(map[string]ledger.ReturnedProduct),
	}
}

func (s *memoryState) clone() *memoryState {
	cp := newMemoryState()
	for k, v := range s.products {
		cp.products[k] = v
	}
	for k, v := range s.notes {
		cp.notes[k] = v
	}
	for k, v := range s.items {
		cp.items[k] = append([]Item(nil), v...)
	}
	for k, v := range s.broken {
		cp.broken[k] = v
	}
	for k, v := range s.returned {
		cp.returned[k] = v
	}
	cp.history = append(cp.history, s.history...)
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

func (r *memoryRepo) GetNote(ctx context.Context, id string) (Note, []Item, error) {
	note, ok := r.state.notes[id]
	if !ok {
		return Note{}, nil, shared.ErrNotFound
	}
	return note, r.state.items[id], nil
}

func (r *memoryRepo) ListNotes(ctx context.Context, limit int) ([]Note, error) {
	var notes []Note
	for _, n := range r.state.notes {
		notes = append(notes, n)
	}
	return notes, nil
}

func (r *memoryRepo) ListBroken(ctx context.Context, warehouse ledger.WarehousePosition) ([]ledger.BrokenProduct, error) {
	var broken []ledger.BrokenProduct
	for _, b := range r.state.broken {
		if warehouse == "" || b.Warehouse == warehouse {
			broken = append(broken, b)
		}
	}
	return broken, nil
}

func (r *memoryRepo) ListReturned(ctx context.Context) ([]ledger.ReturnedProduct, error) {
	var returned []ledger.ReturnedProduct
	for _, rp := range r.state.returned {
		returned = append(returned, rp)
	}
	return returned, nil
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

func (tx *memoryTx) FindProductMatching(ctx context.Context, item Item, warehouse ledger.WarehousePosition) (ledger.Product, error) {
	for _, p := range tx.state.products {
		if p.Brand == item.Brand && p.MotorType == item.MotorType && p.Part == item.Part && p.Color == item.Color && p.Warehouse == warehouse {
			return p, nil
		}
	}
	return ledger.Product{}, fmt.Errorf("destination product: %w", shared.ErrNotFound)
}

func (tx *memoryTx) InsertNote(ctx context.Context, note Note) error {
	tx.state.notes[note.ID] = note
	return nil
}

func (tx *memoryTx) InsertItem(ctx context.Context, item Item) error {
	tx.state.items[item.NoteID] = append(tx.state.items[item.NoteID], item)
	return nil
}

func (tx *memoryTx) GetNoteForUpdate(ctx context.Context, id string) (Note, error) {
	note, ok := tx.state.notes[id]
	if !ok {
		return Note{}, fmt.Errorf("dispatch note %s: %w", id, shared.ErrNotFound)
	}
	return note, nil
}

func (tx *memoryTx) ListNoteItems(ctx context.Context, noteID string) ([]Item, error) {
	return append([]Item(nil), tx.state.items[noteID]...), nil
}

func (tx *memoryTx) DeleteNote(ctx context.Context, id string) error {
	delete(tx.state.notes, id)
	return nil
}

func (tx *memoryTx) DeleteNoteItems(ctx context.Context, noteID string) error {
	delete(tx.state.items, noteID)
	return nil
}

func (tx *memoryTx) IncrementBroken(ctx context.Context, b ledger.BrokenProduct) error {
	key := brokenKey(b.ProductID, b.Warehouse)
	if existing, ok := tx.state.broken[key]; ok {
		existing.Quantity += b.Quantity
		tx.state.broken[key] = existing
		return nil
	}
	tx.state.broken[key] = b
	return nil
}

func (tx *memoryTx) DecrementBroken(ctx context.Context, productID string, warehouse ledger.WarehousePosition, qty int64) error {
	key := brokenKey(productID, warehouse)
	existing, ok := tx.state.broken[key]
	if !ok {
		return fmt.Errorf("broken product %s: %w", productID, shared.ErrNotFound)
	}
	if existing.Quantity < qty {
		return fmt.Errorf("broken product %s: %w", productID, shared.ErrInsufficientStock)
	}
	if existing.Quantity == qty {
		delete(tx.state.broken, key)
		return nil
	}
	existing.Quantity -= qty
	tx.state.broken[key] = existing
	return nil
}

func (tx *memoryTx) GetBroken(ctx context.Context, productID string, warehouse ledger.WarehousePosition) (ledger.BrokenProduct, error) {
	b, ok := tx.state.broken[brokenKey(productID, warehouse)]
	if !ok {
		return ledger.BrokenProduct{}, fmt.Errorf("broken product %s: %w", productID, shared.ErrNotFound)
	}
	return b, nil
}

func (tx *memoryTx) IncrementReturned(ctx context.Context, r ledger.ReturnedProduct) error {
	if existing, ok := tx.state.returned[r.ProductID]; ok {
		existing.Quantity += r.Quantity
		tx.state.returned[r.ProductID] = existing
		return nil
	}
	tx.state.returned[r.ProductID] = r
	return nil
}

func newTestService(state *memoryState) *Service {
	svc := NewService(&memoryRepo{state: state}, ledger.New())
	svc.now = func() time.Time { return time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC) }
	return svc
}

func seedProduct(state *memoryState, id string, count int64, warehouse ledger.WarehousePosition) {
	state.products[id] = ledger.Product{ID: id, Brand: "Astra", Part: "Spakbor", Color: "Hitam", SellPrice: 50000, PurchasePrice: 30000, Count: count, Warehouse: warehouse, SupplierID: "sup-1"}
}

func TestDispatchFromStock(t *testing.T) {
	state := newMemoryState()
	seedProduct(state, "p1", 8, ledger.WarehouseRawMaterial)
	svc := newTestService(state)

	note, items, err := svc.Dispatch(context.Background(), DispatchInput{
		Destination: "Painter Budi",
		Warehouse:   ledger.WarehouseRawMaterial,
		Date:        time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC),
		Source:      SourceStock,
		Items:       []DispatchItemInput{{ProductID: "p1", Amount: 5}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), state.products["p1"].Count)
	require.Len(t, items, 1)
	require.Equal(t, StatusInTransit, items[0].Status)
	require.Equal(t, int64(5), items[0].Amount)
	require.Contains(t, state.notes, note.ID)

	require.Len(t, state.history, 1)
	require.Equal(t, ledger.EntryTypeTransfer, state.history[0].Type)
	require.Equal(t, int64(-5), state.history[0].Difference)
}

func TestDispatchFromBrokenPool(t *testing.T) {
	state := newMemoryState()
	seedProduct(state, "p1", 8, ledger.WarehouseRawMaterial)
	state.broken[brokenKey("p1", ledger.WarehouseRawMaterial)] = ledger.BrokenProduct{ProductID: "p1", ProductName: "Astra Spakbor Hitam", Warehouse: ledger.WarehouseRawMaterial, Quantity: 6}
	svc := newTestService(state)

	_, _, err := svc.Dispatch(context.Background(), DispatchInput{
		Destination: "Painter Budi",
		Warehouse:   ledger.WarehouseRawMaterial,
		Source:      SourceBroken,
		Items:       []DispatchItemInput{{ProductID: "p1", Amount: 4}},
	})
	require.NoError(t, err)
	// On-hand count untouched; the quarantine pool was consumed.
	require.Equal(t, int64(8), state.products["p1"].Count)
	require.Equal(t, int64(2), state.broken[brokenKey("p1", ledger.WarehouseRawMaterial)].Quantity)
	require.Empty(t, state.history)
}

func TestDispatchValidation(t *testing.T) {
	state := newMemoryState()
	seedProduct(state, "p1", 8, ledger.WarehouseRawMaterial)
	svc := newTestService(state)
	ctx := context.Background()

	_, _, err := svc.Dispatch(ctx, DispatchInput{Warehouse: ledger.WarehouseRawMaterial, Source: SourceStock, Items: []DispatchItemInput{{ProductID: "p1", Amount: 1}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, _, err = svc.Dispatch(ctx, DispatchInput{Destination: "Budi", Warehouse: ledger.WarehouseRawMaterial, Source: SourceStock, Items: []DispatchItemInput{{ProductID: "p1", Amount: 0}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, _, err = svc.Dispatch(ctx, DispatchInput{Destination: "Budi", Warehouse: ledger.WarehouseRawMaterial, Source: SourceStock, Items: []DispatchItemInput{{ProductID: "p1", Amount: 20}}})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, int64(8), state.products["p1"].Count)
	require.Empty(t, state.notes)
}

func dispatchFixture(t *testing.T, state *memoryState, svc *Service, amount int64) (Note, Item) {
	t.Helper()
	note, items, err := svc.Dispatch(context.Background(), DispatchInput{
		Destination: "Painter Budi",
		Warehouse:   ledger.WarehouseRawMaterial,
		Source:      SourceStock,
		Items:       []DispatchItemInput{{ProductID: "p1", Amount: amount}},
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	return note, items[0]
}

func TestReconcileWithShortfall(t *testing.T) {
	state := newMemoryState()
	seedProduct(state, "p1", 8, ledger.WarehouseRawMaterial)
	svc := newTestService(state)
	ctx := context.Background()

	note, item := dispatchFixture(t, state, svc, 5)

	result, err := svc.Reconcile(ctx, ReconcileInput{
		NoteID:    note.ID,
		Warehouse: ledger.WarehouseFinishedGoods,
		Items:     []AcceptItem{{ItemID: item.ID, AcceptedCount: 3}},
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	outcome := result.Items[0]
	require.Equal(t, int64(3), outcome.AcceptedCount)
	require.Equal(t, int64(2), outcome.Shortfall)
	require.Equal(t, int64(3), outcome.NewCount)

	// Destination product materialized in finished goods with the accepted count.
	dest := state.products[outcome.ProductID]
	require.Equal(t, ledger.WarehouseFinishedGoods, dest.Warehouse)
	require.Equal(t, int64(3), dest.Count)

	// Shortfall quarantined at the destination.
	require.Equal(t, int64(2), state.broken[brokenKey(outcome.ProductID, ledger.WarehouseFinishedGoods)].Quantity)

	// Note and items consumed.
	require.NotContains(t, state.notes, note.ID)
	require.Empty(t, state.items[note.ID])

	// A second reconcile must not double-apply.
	_, err = svc.Reconcile(ctx, ReconcileInput{
		NoteID:    note.ID,
		Warehouse: ledger.WarehouseFinishedGoods,
		Items:     []AcceptItem{{ItemID: item.ID, AcceptedCount: 3}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, int64(3), state.products[outcome.ProductID].Count)
}

func TestReconcileOverAcceptance(t *testing.T) {
	state := newMemoryState()
	seedProduct(state, "p1", 8, ledger.WarehouseRawMaterial)
	svc := newTestService(state)

	note, item := dispatchFixture(t, state, svc, 5)

	_, err := svc.Reconcile(context.Background(), ReconcileInput{
		NoteID:    note.ID,
		Warehouse: ledger.WarehouseFinishedGoods,
		Items:     []AcceptItem{{ItemID: item.ID, AcceptedCount: 6}},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	// Nothing moved and the note is still pending.
	require.Contains(t, state.notes, note.ID)
	require.Len(t, state.items[note.ID], 1)
}

func TestReconcileIntoExistingDestinationProduct(t *testing.T) {
	state := newMemoryState()
	seedProduct(state, "p1", 8, ledger.WarehouseRawMaterial)
	state.products["p2"] = ledger.Product{ID: "p2", Brand: "Astra", Part: "Spakbor", Color: "Hitam", Count: 10, Warehouse: ledger.WarehouseFinishedGoods, SupplierID: "sup-1"}
	svc := newTestService(state)

	note, item := dispatchFixture(t, state, svc, 4)

	result, err := svc.Reconcile(context.Background(), ReconcileInput{
		NoteID:    note.ID,
		Warehouse: ledger.WarehouseFinishedGoods,
		Items:     []AcceptItem{{ItemID: item.ID, AcceptedCount: 4}},
	})
	require.NoError(t, err)
	require.Equal(t, "p2", result.Items[0].ProductID)
	require.Equal(t, int64(14), state.products["p2"].Count)
}

func TestReconcileRequiresAllItemsAcknowledged(t *testing.T) {
	state := newMemoryState()
	seedProduct(state, "p1", 8, ledger.WarehouseRawMaterial)
	svc := newTestService(state)

	note, _ := dispatchFixture(t, state, svc, 5)

	_, err := svc.Reconcile(context.Background(), ReconcileInput{
		NoteID:    note.ID,
		Warehouse: ledger.WarehouseFinishedGoods,
		Items:     []AcceptItem{{ItemID: "unknown-item", AcceptedCount: 1}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, state.notes, note.ID)
}

func TestReturnToSupplier(t *testing.T) {
	state := newMemoryState()
	seedProduct(state, "p1", 8, ledger.WarehouseRawMaterial)
	state.broken[brokenKey("p1", ledger.WarehouseRawMaterial)] = ledger.BrokenProduct{ProductID: "p1", ProductName: "Astra Spakbor Hitam", Warehouse: ledger.WarehouseRawMaterial, Quantity: 4}
	svc := newTestService(state)
	ctx := context.Background()

	err := svc.ReturnToSupplier(ctx, ReturnToSupplierInput{ProductID: "p1", Warehouse: ledger.WarehouseRawMaterial, Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, int64(1), state.broken[brokenKey("p1", ledger.WarehouseRawMaterial)].Quantity)
	require.Equal(t, int64(3), state.returned["p1"].Quantity)
	require.Equal(t, "sup-1", state.returned["p1"].SupplierID)

	err = svc.ReturnToSupplier(ctx, ReturnToSupplierInput{ProductID: "p1", Warehouse: ledger.WarehouseRawMaterial, Quantity: 5})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, int64(3), state.returned["p1"].Quantity)
}
