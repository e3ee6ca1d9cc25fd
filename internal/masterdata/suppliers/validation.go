package suppliers

import (
	"fmt"
	"strings"

	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

func (s *Service) validate(sup Supplier) error {
	if strings.TrimSpace(sup.Name) == "" {
		return fmt.Errorf("suppliers: %w: name required", shared.ErrValidation)
	}
	return nil
}
