package purchase

import (
	"fmt"

	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// ValidateInput rejects malformed purchases before any transaction opens.
func ValidateInput(in Input) error {
	if len(in.Items) == 0 {
		return fmt.Errorf("purchase: %w: at least one item required", shared.ErrValidation)
	}
	if !in.Warehouse.Valid() {
		return fmt.Errorf("purchase: %w: unknown warehouse position %q", shared.ErrValidation, in.Warehouse)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("purchase: %w: date required", shared.ErrValidation)
	}
	for i, item := range in.Items {
		if item.ProductID == "" && item.Product == nil {
			return fmt.Errorf("purchase: %w: item %d: product reference or new product required", shared.ErrValidation, i+1)
		}
		if in.ForceChange {
			if item.Quantity == 0 {
				return fmt.Errorf("purchase: %w: item %d: quantity must be non-zero", shared.ErrValidation, i+1)
			}
			if item.Product != nil {
				return fmt.Errorf("purchase: %w: item %d: force-change cannot create products", shared.ErrValidation, i+1)
			}
			continue
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("purchase: %w: item %d: quantity must be positive", shared.ErrValidation, i+1)
		}
	}
	if in.ForceChange {
		return nil
	}
	if in.SupplierID == "" {
		return fmt.Errorf("purchase: %w: supplier required", shared.ErrValidation)
	}
	if in.PurchasePrice <= 0 && !in.ReturnedStock {
		return fmt.Errorf("purchase: %w: purchase price must be positive", shared.ErrValidation)
	}
	if in.PaymentStatus != PaymentStatusUnpaid && in.PaymentStatus != PaymentStatusPaid {
		return fmt.Errorf("purchase: %w: unknown payment status %q", shared.ErrValidation, in.PaymentStatus)
	}
	if in.ReturnedStock {
		for i, item := range in.Items {
			if item.Product != nil {
				return fmt.Errorf("purchase: %w: item %d: returned stock must reference an existing product", shared.ErrValidation, i+1)
			}
		}
	}
	return nil
}
