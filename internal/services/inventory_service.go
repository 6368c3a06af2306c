package services

import (
	"context"
	"errors"

	"github.com/kiosko/pos/internal/domain"
	"github.com/kiosko/pos/internal/repositories"
)

// InventoryServiceDeps bundles constructor inputs for the inventory service.
type InventoryServiceDeps struct {
	Products repositories.ProductRepository
}

type inventoryService struct {
	products repositories.ProductRepository
}

var _ InventoryService = (*inventoryService)(nil)

// NewInventoryService creates the advisory availability checker.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Products == nil {
		return nil, errors.New("inventory service: product repository is required")
	}
	return &inventoryService{products: deps.Products}, nil
}

// CheckAvailability re-reads stock for every cart line and reports whether
// each requested quantity is covered. The answer can be stale the moment it
// is produced; only the commit transaction decides.
func (s *inventoryService) CheckAvailability(ctx context.Context, cart *domain.Cart) ([]AvailabilityFinding, error) {
	if cart == nil || cart.IsEmpty() {
		return nil, nil
	}

	items := cart.Items()
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	levels, err := s.products.StockLevels(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]repositories.StockLevel, len(levels))
	for _, level := range levels {
		byID[level.ProductID] = level
	}

	findings := make([]AvailabilityFinding, 0, len(items))
	for _, item := range items {
		level, ok := byID[item.ProductID]
		if !ok {
			findings = append(findings, AvailabilityFinding{
				ProductID: item.ProductID,
				Name:      item.Name,
				Requested: item.Quantity,
				Available: 0,
				Covered:   false,
			})
			continue
		}
		refreshed := item
		refreshed.StockSnapshot = level.Stock
		findings = append(findings, AvailabilityFinding{
			ProductID: item.ProductID,
			Name:      level.Name,
			Requested: item.Quantity,
			Available: level.Stock,
			Covered:   refreshed.HasStock(),
		})
	}
	return findings, nil
}
