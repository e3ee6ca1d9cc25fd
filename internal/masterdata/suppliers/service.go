package suppliers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	mdshared "github.com/lumbung-erp/lumbung-erp/internal/masterdata/shared"
	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters mdshared.ListFilters) ([]Supplier, int, error) {
	filters.Normalize()
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id string) (Supplier, error) {
	if id == "" {
		return Supplier{}, fmt.Errorf("suppliers: %w: id required", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	if err := s.validate(supplier); err != nil {
		return Supplier{}, err
	}
	supplier.ID = uuid.NewString()
	return s.repo.Create(ctx, supplier)
}

func (s *Service) Update(ctx context.Context, id string, supplier Supplier) error {
	if id == "" {
		return fmt.Errorf("suppliers: %w: id required", shared.ErrValidation)
	}
	if err := s.validate(supplier); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, supplier)
}

// Delete refuses while products still reference the supplier.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("suppliers: %w: id required", shared.ErrValidation)
	}
	referenced, err := s.repo.HasProducts(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("suppliers: supplier %s still has products: %w", id, shared.ErrConflict)
	}
	return s.repo.Delete(ctx, id)
}
