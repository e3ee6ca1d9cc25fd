package products

import (
	"context"
	"fmt"

	"github.com/lumbung-erp/lumbung-erp/internal/ledger"
	mdshared "github.com/lumbung-erp/lumbung-erp/internal/masterdata/shared"
	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters mdshared.ListFilters) ([]ledger.Product, int, error) {
	if filters.Warehouse != "" && !ledger.WarehousePosition(filters.Warehouse).Valid() {
		return nil, 0, fmt.Errorf("products: %w: unknown warehouse position %q", shared.ErrValidation, filters.Warehouse)
	}
	filters.Normalize()
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id string) (ledger.Product, error) {
	if id == "" {
		return ledger.Product{}, fmt.Errorf("products: %w: id required", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}
