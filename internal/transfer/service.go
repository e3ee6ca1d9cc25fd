package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumbung-erp/lumbung-erp/internal/ledger"
	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	ledger.Tx
	CreateProduct(ctx context.Context, p ledger.Product) error
	// FindProductMatching locates the destination row for a received item
	// by its physical identity (brand/motor/part/color) and warehouse.
	FindProductMatching(ctx context.Context, item Item, warehouse ledger.WarehousePosition) (ledger.Product, error)
	InsertNote(ctx context.Context, note Note) error
	InsertItem(ctx context.Context, item Item) error
	GetNoteForUpdate(ctx context.Context, id string) (Note, error)
	ListNoteItems(ctx context.Context, noteID string) ([]Item, error)
	DeleteNote(ctx context.Context, id string) error
	DeleteNoteItems(ctx context.Context, noteID string) error
	IncrementBroken(ctx context.Context, b ledger.BrokenProduct) error
	DecrementBroken(ctx context.Context, productID string, warehouse ledger.WarehousePosition, qty int64) error
	GetBroken(ctx context.Context, productID string, warehouse ledger.WarehousePosition) (ledger.BrokenProduct, error)
	IncrementReturned(ctx context.Context, r ledger.ReturnedProduct) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetNote(ctx context.Context, id string) (Note, []Item, error)
	ListNotes(ctx context.Context, limit int) ([]Note, error)
	ListBroken(ctx context.Context, warehouse ledger.WarehousePosition) ([]ledger.BrokenProduct, error)
	ListReturned(ctx context.Context) ([]ledger.ReturnedProduct, error)
}

// Service coordinates inter-warehouse dispatch and receipt reconciliation.
type Service struct {
	repo   RepositoryPort
	ledger *ledger.Ledger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, led *ledger.Ledger) *Service {
	return &Service{repo: repo, ledger: led, now: time.Now}
}

// Dispatch creates one dispatch note plus its in-transit items, consuming
// either sellable stock (through the ledger) or the broken pool, as one
// transaction.
func (s *Service) Dispatch(ctx context.Context, in DispatchInput) (Note, []Item, error) {
	if in.Destination == "" {
		return Note{}, nil, fmt.Errorf("transfer: %w: destination required", shared.ErrValidation)
	}
	if !in.Warehouse.Valid() {
		return Note{}, nil, fmt.Errorf("transfer: %w: unknown warehouse position %q", shared.ErrValidation, in.Warehouse)
	}
	if !in.Source.Valid() {
		return Note{}, nil, fmt.Errorf("transfer: %w: unknown source %q", shared.ErrValidation, in.Source)
	}
	if len(in.Items) == 0 {
		return Note{}, nil, fmt.Errorf("transfer: %w: at least one item required", shared.ErrValidation)
	}
	for i, item := range in.Items {
		if item.Amount <= 0 {
			return Note{}, nil, fmt.Errorf("transfer: %w: item %d: amount must be positive", shared.ErrValidation, i+1)
		}
	}
	if in.Date.IsZero() {
		in.Date = s.now()
	}

	now := s.now()
	note := Note{
		ID:          uuid.NewString(),
		Destination: in.Destination,
		Date:        shared.FormatDate(in.Date),
		Clock:       shared.FormatClock(now),
		Warehouse:   in.Warehouse,
		Source:      in.Source,
		CreatedAt:   now.UTC(),
	}

	var items []Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		items = items[:0]
		if err := tx.InsertNote(ctx, note); err != nil {
			return fmt.Errorf("transfer: insert note: %w", err)
		}
		for _, line := range in.Items {
			product, err := tx.GetProduct(ctx, line.ProductID)
			if err != nil {
				return fmt.Errorf("transfer: %w", err)
			}

			switch in.Source {
			case SourceStock:
				if _, err := s.ledger.Apply(ctx, tx, ledger.ApplyInput{
					ProductID: line.ProductID,
					Delta:     -line.Amount,
					Type:      ledger.EntryTypeTransfer,
					Warehouse: in.Warehouse,
					Date:      note.Date,
					Clock:     note.Clock,
				}); err != nil {
					return err
				}
			case SourceBroken:
				if err := tx.DecrementBroken(ctx, line.ProductID, in.Warehouse, line.Amount); err != nil {
					return fmt.Errorf("transfer: broken pool: %w", err)
				}
			}

			color := line.Color
			if color == "" {
				color = product.Color
			}
			item := Item{
				ID:            uuid.NewString(),
				NoteID:        note.ID,
				ProductID:     product.ID,
				Brand:         product.Brand,
				MotorType:     product.MotorType,
				Part:          product.Part,
				Color:         color,
				SellPrice:     product.SellPrice,
				PurchasePrice: product.PurchasePrice,
				SupplierID:    product.SupplierID,
				Amount:        line.Amount,
				Status:        StatusInTransit,
				Warehouse:     in.Warehouse,
			}
			if err := tx.InsertItem(ctx, item); err != nil {
				return fmt.Errorf("transfer: insert item: %w", err)
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return Note{}, nil, err
	}
	return note, items, nil
}

// Reconcile consumes a dispatch note: accepted counts are credited at the
// destination warehouse, shortfalls are quarantined there, and the note with
// all its items is deleted. One transaction; re-invoking on the same note
// fails with not-found, so accepted items are never double-applied.
func (s *Service) Reconcile(ctx context.Context, in ReconcileInput) (ReconcileResult, error) {
	if !in.Warehouse.Valid() {
		return ReconcileResult{}, fmt.Errorf("transfer: %w: unknown warehouse position %q", shared.ErrValidation, in.Warehouse)
	}
	if len(in.Items) == 0 {
		return ReconcileResult{}, fmt.Errorf("transfer: %w: accepted counts required", shared.ErrValidation)
	}
	accepted := make(map[string]int64, len(in.Items))
	for i, item := range in.Items {
		if item.AcceptedCount < 0 {
			return ReconcileResult{}, fmt.Errorf("transfer: %w: item %d: accepted count must not be negative", shared.ErrValidation, i+1)
		}
		if _, dup := accepted[item.ItemID]; dup {
			return ReconcileResult{}, fmt.Errorf("transfer: %w: item %s acknowledged twice", shared.ErrValidation, item.ItemID)
		}
		accepted[item.ItemID] = item.AcceptedCount
	}

	now := s.now()
	date := shared.FormatDate(now)
	clock := shared.FormatClock(now)

	result := ReconcileResult{NoteID: in.NoteID}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		result.Items = result.Items[:0]
		if _, err := tx.GetNoteForUpdate(ctx, in.NoteID); err != nil {
			return fmt.Errorf("transfer: %w", err)
		}
		items, err := tx.ListNoteItems(ctx, in.NoteID)
		if err != nil {
			return fmt.Errorf("transfer: list items: %w", err)
		}
		if len(items) != len(accepted) {
			return fmt.Errorf("transfer: %w: note has %d items, %d acknowledged", shared.ErrValidation, len(items), len(accepted))
		}

		for _, item := range items {
			acceptedCount, ok := accepted[item.ID]
			if !ok {
				return fmt.Errorf("transfer: %w: item %s not acknowledged", shared.ErrValidation, item.ID)
			}
			if acceptedCount > item.Amount {
				return fmt.Errorf("transfer: item %s shipped %d, accepted %d: %w", item.ID, item.Amount, acceptedCount, shared.ErrInsufficientStock)
			}

			outcome := ReconcileItemOutcome{ItemID: item.ID, AcceptedCount: acceptedCount, Shortfall: item.Amount - acceptedCount}

			destination, err := tx.FindProductMatching(ctx, item, in.Warehouse)
			if err != nil {
				if !errors.Is(err, shared.ErrNotFound) {
					return fmt.Errorf("transfer: find destination product: %w", err)
				}
				destination = ledger.Product{
					ID:            uuid.NewString(),
					Brand:         item.Brand,
					MotorType:     item.MotorType,
					Part:          item.Part,
					Color:         item.Color,
					SellPrice:     item.SellPrice,
					PurchasePrice: item.PurchasePrice,
					Warehouse:     in.Warehouse,
					SupplierID:    item.SupplierID,
				}
				if err := tx.CreateProduct(ctx, destination); err != nil {
					return fmt.Errorf("transfer: create destination product: %w", err)
				}
			}
			outcome.ProductID = destination.ID

			if acceptedCount > 0 {
				entry, err := s.ledger.Apply(ctx, tx, ledger.ApplyInput{
					ProductID: destination.ID,
					Delta:     acceptedCount,
					Type:      ledger.EntryTypeTransfer,
					Warehouse: in.Warehouse,
					Date:      date,
					Clock:     clock,
				})
				if err != nil {
					return err
				}
				outcome.NewCount = entry.NewCount
			} else {
				outcome.NewCount = destination.Count
			}

			if outcome.Shortfall > 0 {
				if err := tx.IncrementBroken(ctx, ledger.BrokenProduct{
					ProductID:   destination.ID,
					ProductName: destination.Name(),
					Warehouse:   in.Warehouse,
					Quantity:    outcome.Shortfall,
				}); err != nil {
					return fmt.Errorf("transfer: quarantine shortfall: %w", err)
				}
			}
			result.Items = append(result.Items, outcome)
		}

		if err := tx.DeleteNoteItems(ctx, in.NoteID); err != nil {
			return fmt.Errorf("transfer: delete items: %w", err)
		}
		if err := tx.DeleteNote(ctx, in.NoteID); err != nil {
			return fmt.Errorf("transfer: delete note: %w", err)
		}
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}
	return result, nil
}

// ReturnToSupplier moves quarantined stock into the supplier-return pool.
func (s *Service) ReturnToSupplier(ctx context.Context, in ReturnToSupplierInput) error {
	if in.Quantity <= 0 {
		return fmt.Errorf("transfer: %w: quantity must be positive", shared.ErrValidation)
	}
	if !in.Warehouse.Valid() {
		return fmt.Errorf("transfer: %w: unknown warehouse position %q", shared.ErrValidation, in.Warehouse)
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		broken, err := tx.GetBroken(ctx, in.ProductID, in.Warehouse)
		if err != nil {
			return fmt.Errorf("transfer: %w", err)
		}
		if err := tx.DecrementBroken(ctx, in.ProductID, in.Warehouse, in.Quantity); err != nil {
			return fmt.Errorf("transfer: broken pool: %w", err)
		}
		product, err := tx.GetProduct(ctx, in.ProductID)
		supplierID := ""
		if err == nil {
			supplierID = product.SupplierID
		}
		return tx.IncrementReturned(ctx, ledger.ReturnedProduct{
			ProductID:   in.ProductID,
			ProductName: broken.ProductName,
			SupplierID:  supplierID,
			Quantity:    in.Quantity,
		})
	})
}

// GetNote loads a dispatch note with its items.
func (s *Service) GetNote(ctx context.Context, id string) (Note, []Item, error) {
	return s.repo.GetNote(ctx, id)
}

// ListNotes returns pending dispatch notes.
func (s *Service) ListNotes(ctx context.Context, limit int) ([]Note, error) {
	return s.repo.ListNotes(ctx, limit)
}

// ListBroken returns the quarantine pool, optionally scoped to a warehouse.
func (s *Service) ListBroken(ctx context.Context, warehouse ledger.WarehousePosition) ([]ledger.BrokenProduct, error) {
	if warehouse != "" && !warehouse.Valid() {
		return nil, fmt.Errorf("transfer: %w: unknown warehouse position %q", shared.ErrValidation, warehouse)
	}
	return s.repo.ListBroken(ctx, warehouse)
}

// ListReturned returns the supplier-return pool.
func (s *Service) ListReturned(ctx context.Context) ([]ledger.ReturnedProduct, error) {
	return s.repo.ListReturned(ctx)
}

