package sales

import (
	"fmt"

	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// ValidateSellInput rejects malformed sales before any transaction opens.
func ValidateSellInput(in SellInput) error {
	if in.Customer == "" {
		return fmt.Errorf("sales: %w: customer required", shared.ErrValidation)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("sales: %w: date required", shared.ErrValidation)
	}
	if !in.PaymentMethod.Valid() {
		return fmt.Errorf("sales: %w: unknown payment method %q", shared.ErrValidation, in.PaymentMethod)
	}
	return validateSellItems(in.Items)
}

func validateSellItems(items []SellItem) error {
	if len(items) == 0 {
		return fmt.Errorf("sales: %w: at least one item required", shared.ErrValidation)
	}
	for i, item := range items {
		if item.ProductID == "" {
			return fmt.Errorf("sales: %w: item %d: product id required", shared.ErrValidation, i+1)
		}
		if item.Count <= 0 {
			return fmt.Errorf("sales: %w: item %d: count must be positive", shared.ErrValidation, i+1)
		}
		if item.SellPrice <= 0 {
			return fmt.Errorf("sales: %w: item %d: sell price must be positive", shared.ErrValidation, i+1)
		}
	}
	return nil
}

// ValidateReturnInput rejects malformed returns.
func ValidateReturnInput(in ReturnInput) error {
	if in.InvoiceID == "" {
		return fmt.Errorf("sales: %w: invoice id required", shared.ErrValidation)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("sales: %w: at least one item required", shared.ErrValidation)
	}
	seen := make(map[string]struct{}, len(in.Items))
	for i, item := range in.Items {
		if item.ProductID == "" {
			return fmt.Errorf("sales: %w: item %d: product id required", shared.ErrValidation, i+1)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("sales: %w: item %d: quantity must be positive", shared.ErrValidation, i+1)
		}
		if _, dup := seen[item.ProductID]; dup {
			return fmt.Errorf("sales: %w: product %s listed twice", shared.ErrValidation, item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}

// ValidateExchangeInput rejects malformed exchanges.
func ValidateExchangeInput(in ExchangeInput) error {
	if in.InvoiceID == "" {
		return fmt.Errorf("sales: %w: invoice id required", shared.ErrValidation)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("sales: %w: at least one item required", shared.ErrValidation)
	}
	for i, item := range in.Items {
		if item.ProductID == "" {
			return fmt.Errorf("sales: %w: item %d: product id required", shared.ErrValidation, i+1)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("sales: %w: item %d: quantity must be positive", shared.ErrValidation, i+1)
		}
	}
	return nil
}

// ValidateVoidInput rejects malformed void requests.
func ValidateVoidInput(in VoidInput) error {
	if in.InvoiceID == "" {
		return fmt.Errorf("sales: %w: invoice id required", shared.ErrValidation)
	}
	if !in.PaymentMethod.Valid() {
		return fmt.Errorf("sales: %w: unknown payment method %q", shared.ErrValidation, in.PaymentMethod)
	}
	return validateSellItems(in.Items)
}
