package sales

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lumbung-erp/lumbung-erp/internal/ledger"
	"github.com/lumbung-erp/lumbung-erp/internal/shared"
	"github.com/lumbung-erp/lumbung-erp/internal/stats"
)

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	ledger.Tx
	stats.Tx
	InsertInvoice(ctx context.Context, inv Invoice) error
	GetInvoiceForUpdate(ctx context.Context, id string) (Invoice, error)
	UpdateLineItem(ctx context.Context, item LineItem) error
	UpdateInvoiceTotal(ctx context.Context, id string, total int64) error
	DeleteInvoice(ctx context.Context, id string) error
	InsertVoidInvoice(ctx context.Context, v VoidInvoice) error
	IncrementBroken(ctx context.Context, b ledger.BrokenProduct) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id string) (Invoice, error)
	ListInvoices(ctx context.Context, limit int) ([]Invoice, error)
	ListVoidInvoices(ctx context.Context, limit int) ([]VoidInvoice, error)
}

// AuditPort records sensitive actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CachePort invalidates the cached stats rollup after a committed write.
type CachePort interface {
	Invalidate(ctx context.Context)
}

// Service coordinates invoice creation, returns, exchanges, and voids. Stats
// rollup deltas ride inside the same transaction as the invoice mutation.
type Service struct {
	repo   RepositoryPort
	ledger *ledger.Ledger
	stats  *stats.Aggregator
	cache  CachePort
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service. cache and audit may be nil.
func NewService(repo RepositoryPort, led *ledger.Ledger, agg *stats.Aggregator, cache CachePort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, ledger: led, stats: agg, cache: cache, audit: audit, logger: logger, now: time.Now}
}

// Sell creates one invoice. Each line decrements on-hand stock through the
// ledger as a sale, so no stock history rows are produced; the money side is
// tracked by the stats rollup instead.
func (s *Service) Sell(ctx context.Context, in SellInput) (Invoice, error) {
	if err := ValidateSellInput(in); err != nil {
		return Invoice{}, err
	}

	now := s.now()
	inv := Invoice{
		ID:            uuid.NewString(),
		Customer:      in.Customer,
		Date:          shared.FormatDate(in.Date),
		Clock:         shared.FormatClock(now),
		PaymentMethod: in.PaymentMethod,
		CreatedAt:     now.UTC(),
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv.Items = inv.Items[:0]
		for _, item := range in.Items {
			entry, err := s.ledger.Apply(ctx, tx, ledger.ApplyInput{
				ProductID: item.ProductID,
				Delta:     -item.Count,
				Type:      ledger.EntryTypeSale,
				Date:      inv.Date,
				Clock:     inv.Clock,
			})
			if err != nil {
				return err
			}
			inv.Items = append(inv.Items, LineItem{
				ID:          uuid.NewString(),
				InvoiceID:   inv.ID,
				ProductID:   item.ProductID,
				ProductName: entry.ProductName,
				Count:       item.Count,
				SellPrice:   item.SellPrice,
			})
		}
		inv.TotalPrice = invoiceTotal(inv.Items)

		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return fmt.Errorf("sales: insert invoice: %w", err)
		}
		return s.stats.Record(ctx, tx, inv.TotalPrice, 1, in.Date)
	})
	if err != nil {
		return Invoice{}, err
	}
	s.invalidateStats(ctx)
	return inv, nil
}

// Return takes back sold units. The invoice line shrinks and its value comes
// off the invoice total and the rollup; the physical units go into the broken
// pool rather than back on the shelf, so the ledger is not touched.
func (s *Service) Return(ctx context.Context, in ReturnInput) (Invoice, error) {
	if err := ValidateReturnInput(in); err != nil {
		return Invoice{}, err
	}

	var updated Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, in.InvoiceID)
		if err != nil {
			return fmt.Errorf("sales: %w", err)
		}

		var returnedValue int64
		for _, ret := range in.Items {
			idx := findLine(inv.Items, ret.ProductID)
			if idx < 0 {
				return fmt.Errorf("sales: %w: invoice has no line for product %s", shared.ErrValidation, ret.ProductID)
			}
			line := inv.Items[idx]
			if line.IsReturned {
				return fmt.Errorf("sales: %w: product %s already fully returned", shared.ErrValidation, ret.ProductID)
			}
			if ret.Quantity > line.Count {
				return fmt.Errorf("sales: %w: return of %d exceeds remaining count %d for product %s", shared.ErrValidation, ret.Quantity, line.Count, ret.ProductID)
			}

			line.Count -= ret.Quantity
			if line.Count == 0 {
				line.IsReturned = true
			}
			if err := tx.UpdateLineItem(ctx, line); err != nil {
				return fmt.Errorf("sales: update line: %w", err)
			}
			inv.Items[idx] = line

			product, perr := tx.GetProduct(ctx, ret.ProductID)
			if err := tx.IncrementBroken(ctx, ledger.BrokenProduct{
				ProductID:   ret.ProductID,
				ProductName: line.ProductName,
				Warehouse:   brokenWarehouse(product, perr),
				Quantity:    ret.Quantity,
			}); err != nil {
				return fmt.Errorf("sales: quarantine return: %w", err)
			}

			returnedValue += ret.Quantity * line.SellPrice
		}

		inv.TotalPrice -= returnedValue
		if err := tx.UpdateInvoiceTotal(ctx, inv.ID, inv.TotalPrice); err != nil {
			return fmt.Errorf("sales: update total: %w", err)
		}

		invoiceDate, err := shared.ParseDate(inv.Date)
		if err != nil {
			return fmt.Errorf("sales: %w: invoice date %q", shared.ErrValidation, inv.Date)
		}
		if err := s.stats.Record(ctx, tx, -returnedValue, 0, invoiceDate); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.invalidateStats(ctx)
	return updated, nil
}

// Exchange swaps defective units. The customer keeps a replacement, so the
// invoice and the rollup stay as they are; the defective unit comes out of
// on-hand stock and lands in the broken pool.
func (s *Service) Exchange(ctx context.Context, in ExchangeInput) error {
	if err := ValidateExchangeInput(in); err != nil {
		return err
	}

	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, in.InvoiceID)
		if err != nil {
			return fmt.Errorf("sales: %w", err)
		}

		for _, item := range in.Items {
			idx := findLine(inv.Items, item.ProductID)
			if idx < 0 {
				return fmt.Errorf("sales: %w: invoice has no line for product %s", shared.ErrValidation, item.ProductID)
			}

			entry, err := s.ledger.Apply(ctx, tx, ledger.ApplyInput{
				ProductID: item.ProductID,
				Delta:     -item.Quantity,
				Type:      ledger.EntryTypeSale,
			})
			if err != nil {
				return err
			}
			if err := tx.IncrementBroken(ctx, ledger.BrokenProduct{
				ProductID:   item.ProductID,
				ProductName: entry.ProductName,
				Warehouse:   entry.Warehouse,
				Quantity:    item.Quantity,
			}); err != nil {
				return fmt.Errorf("sales: quarantine exchange: %w", err)
			}
		}
		return nil
	})
}

// Void replaces an invoice wholesale: the original is deleted, an immutable
// snapshot with every item flagged returned is kept, and a fresh invoice
// takes its place. The rollup moves by the net of the two totals. The
// replacement invoice increments the transaction counter even though the
// voided one never decremented it, so a void counts twice; consumers of the
// rollup expect that shape.
func (s *Service) Void(ctx context.Context, actor shared.ActorContext, in VoidInput) (Invoice, error) {
	if !actor.CanVoid() {
		return Invoice{}, fmt.Errorf("sales: void: %w", shared.ErrPermission)
	}
	if err := ValidateVoidInput(in); err != nil {
		return Invoice{}, err
	}

	now := s.now()
	var replacement Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetInvoiceForUpdate(ctx, in.InvoiceID)
		if err != nil {
			return fmt.Errorf("sales: %w", err)
		}
		if err := tx.DeleteInvoice(ctx, old.ID); err != nil {
			return fmt.Errorf("sales: delete invoice: %w", err)
		}

		snapshot := VoidInvoice{
			ID:            uuid.NewString(),
			InvoiceID:     old.ID,
			Customer:      old.Customer,
			Date:          old.Date,
			Clock:         old.Clock,
			PaymentMethod: old.PaymentMethod,
			TotalPrice:    old.TotalPrice,
			Items:         append([]LineItem(nil), old.Items...),
			VoidedAt:      now.UTC(),
		}
		for i := range snapshot.Items {
			snapshot.Items[i].IsReturned = true
		}
		if err := tx.InsertVoidInvoice(ctx, snapshot); err != nil {
			return fmt.Errorf("sales: snapshot invoice: %w", err)
		}

		replacement = Invoice{
			ID:            uuid.NewString(),
			Customer:      old.Customer,
			Date:          old.Date,
			Clock:         shared.FormatClock(now),
			PaymentMethod: in.PaymentMethod,
			CreatedAt:     now.UTC(),
		}
		for _, item := range in.Items {
			product, err := tx.GetProduct(ctx, item.ProductID)
			if err != nil {
				return fmt.Errorf("sales: %w", err)
			}
			replacement.Items = append(replacement.Items, LineItem{
				ID:          uuid.NewString(),
				InvoiceID:   replacement.ID,
				ProductID:   product.ID,
				ProductName: product.Name(),
				Count:       item.Count,
				SellPrice:   item.SellPrice,
			})
		}
		replacement.TotalPrice = invoiceTotal(replacement.Items)
		if err := tx.InsertInvoice(ctx, replacement); err != nil {
			return fmt.Errorf("sales: insert replacement: %w", err)
		}

		invoiceDate, err := shared.ParseDate(old.Date)
		if err != nil {
			return fmt.Errorf("sales: %w: invoice date %q", shared.ErrValidation, old.Date)
		}
		return s.stats.Record(ctx, tx, replacement.TotalPrice-old.TotalPrice, 1, invoiceDate)
	})
	if err != nil {
		return Invoice{}, err
	}

	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorRole: actor.Role,
			Action:    "invoice:void",
			Entity:    "invoice",
			EntityID:  in.InvoiceID,
			Meta:      map[string]any{"replacement_id": replacement.ID, "new_total": replacement.TotalPrice},
		}); err != nil && s.logger != nil {
			s.logger.Warn("audit void", slog.Any("error", err))
		}
	}
	s.invalidateStats(ctx)
	return replacement, nil
}

// GetInvoice returns one invoice with its items.
func (s *Service) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// ListInvoices returns recent invoices.
func (s *Service) ListInvoices(ctx context.Context, limit int) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, limit)
}

// ListVoidInvoices returns recent void snapshots.
func (s *Service) ListVoidInvoices(ctx context.Context, limit int) ([]VoidInvoice, error) {
	return s.repo.ListVoidInvoices(ctx, limit)
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

func findLine(items []LineItem, productID string) int {
	for i, item := range items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}
