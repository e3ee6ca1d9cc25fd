package purchase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lumbung-erp/lumbung-erp/internal/ledger"
	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	ledger.Tx
	CreateProduct(ctx context.Context, p ledger.Product) error
	SupplierExists(ctx context.Context, id string) (bool, error)
	InsertHistory(ctx context.Context, h History) error
	// DecrementReturnedProduct consumes qty from the returned-to-supplier
	// pool; missing rows surface shared.ErrNotFound and short rows
	// shared.ErrInsufficientStock.
	DecrementReturnedProduct(ctx context.Context, productID string, qty int64) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetHistory(ctx context.Context, id string) (History, error)
	ListHistory(ctx context.Context, limit int) ([]History, error)
}

// AuditPort records sensitive actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates supplier purchases, returned-stock replenishment, and
// force-change corrections.
type Service struct {
	repo   RepositoryPort
	ledger *ledger.Ledger
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, led *ledger.Ledger, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, ledger: led, audit: audit, logger: logger, now: time.Now}
}

// Purchase applies all item count mutations and the optional history write as
// one atomic transaction.
func (s *Service) Purchase(ctx context.Context, actor shared.ActorContext, in Input) (Result, error) {
	if in.ForceChange && !actor.CanForceChange() {
		return Result{}, fmt.Errorf("purchase: force-change: %w", shared.ErrPermission)
	}
	if err := ValidateInput(in); err != nil {
		return Result{}, err
	}

	entryType := ledger.EntryTypePurchase
	if in.ForceChange {
		entryType = ledger.EntryTypeForceChange
	}
	now := s.now()
	date := shared.FormatDate(in.Date)
	clock := shared.FormatClock(now)

	result := Result{Counts: make(map[string]int64, len(in.Items))}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if !in.ForceChange {
			ok, err := tx.SupplierExists(ctx, in.SupplierID)
			if err != nil {
				return fmt.Errorf("purchase: check supplier: %w", err)
			}
			if !ok {
				return fmt.Errorf("purchase: supplier %s: %w", in.SupplierID, shared.ErrNotFound)
			}
		}

		hist := History{
			ID:            uuid.NewString(),
			SupplierID:    in.SupplierID,
			Date:          date,
			Clock:         clock,
			PurchasePrice: in.PurchasePrice,
			PaymentStatus: in.PaymentStatus,
			Warehouse:     in.Warehouse,
			CreatedAt:     now.UTC(),
		}

		for _, item := range in.Items {
			productID := item.ProductID
			if item.Product != nil {
				p := ledger.Product{
					ID:            uuid.NewString(),
					Brand:         item.Product.Brand,
					MotorType:     item.Product.MotorType,
					Part:          item.Product.Part,
					Color:         item.Product.Color,
					SellPrice:     item.Product.SellPrice,
					PurchasePrice: item.Product.PurchasePrice,
					Warehouse:     in.Warehouse,
					SupplierID:    in.SupplierID,
				}
				if err := tx.CreateProduct(ctx, p); err != nil {
					return fmt.Errorf("purchase: create product: %w", err)
				}
				productID = p.ID
			}

			entry, err := s.ledger.Apply(ctx, tx, ledger.ApplyInput{
				ProductID: productID,
				Delta:     item.Quantity,
				Type:      entryType,
				Warehouse: in.Warehouse,
				Date:      date,
				Clock:     clock,
			})
			if err != nil {
				return err
			}

			if in.ReturnedStock {
				if err := tx.DecrementReturnedProduct(ctx, productID, item.Quantity); err != nil {
					return fmt.Errorf("purchase: returned pool: %w", err)
				}
			}

			hist.Items = append(hist.Items, HistoryItem{ProductID: productID, ProductName: entry.ProductName, Quantity: item.Quantity})
			result.Counts[productID] = entry.NewCount
		}

		if !in.ReturnedStock && !in.ForceChange {
			if err := tx.InsertHistory(ctx, hist); err != nil {
				return fmt.Errorf("purchase: insert history: %w", err)
			}
			result.History = &hist
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if in.ForceChange && s.audit != nil {
		for productID, count := range result.Counts {
			if err := s.audit.Record(ctx, shared.AuditLog{
				ActorRole: actor.Role,
				Action:    "stock:force-change",
				Entity:    "product",
				EntityID:  productID,
				Meta:      map[string]any{"count": count, "warehouse": string(in.Warehouse)},
			}); err != nil && s.logger != nil {
				s.logger.Warn("audit force-change", slog.Any("error", err))
			}
		}
	}
	return result, nil
}

// GetHistory returns one purchase record.
func (s *Service) GetHistory(ctx context.Context, id string) (History, error) {
	return s.repo.GetHistory(ctx, id)
}

// ListHistory returns recent purchase records.
func (s *Service) ListHistory(ctx context.Context, limit int) ([]History, error) {
	return s.repo.ListHistory(ctx, limit)
}
