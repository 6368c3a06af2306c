package services

import (
	"context"
	"errors"
	"testing"

	"github.com/kiosko/pos/internal/domain"
)

func cartWith(t *testing.T, lines ...domain.LineItem) *domain.Cart {
	t.Helper()
	cart := domain.NewCart()
	for _, line := range lines {
		if err := cart.AddOrIncrement(line); err != nil {
			t.Fatalf("AddOrIncrement: %v", err)
		}
	}
	return cart
}

func TestCheckAvailabilityAllCovered(t *testing.T) {
	repo := catalogFixture()
	svc, err := NewInventoryService(InventoryServiceDeps{Products: repo})
	if err != nil {
		t.Fatalf("NewInventoryService: %v", err)
	}

	cart := cartWith(t,
		domain.LineItem{ProductID: "prod-cola", Name: "Cola 500ml", UnitPrice: domain.MustParseMoney("2.50"), Quantity: 3},
		domain.LineItem{ProductID: "prod-chips", Name: "Chips 90g", UnitPrice: domain.MustParseMoney("3.25"), Quantity: 2},
	)

	findings, err := svc.CheckAvailability(context.Background(), cart)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}
	for _, finding := range findings {
		if !finding.Covered {
			t.Fatalf("expected %s covered, got %+v", finding.ProductID, finding)
		}
	}
}

func TestCheckAvailabilityReportsShortfall(t *testing.T) {
	repo := catalogFixture()
	svc, err := NewInventoryService(InventoryServiceDeps{Products: repo})
	if err != nil {
		t.Fatalf("NewInventoryService: %v", err)
	}

	cart := cartWith(t,
		domain.LineItem{ProductID: "prod-chips", Name: "Chips 90g", UnitPrice: domain.MustParseMoney("3.25"), Quantity: 5},
	)

	findings, err := svc.CheckAvailability(context.Background(), cart)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	finding := findings[0]
	if finding.Covered {
		t.Fatal("expected shortfall to be reported")
	}
	if finding.Requested != 5 || finding.Available != 2 {
		t.Fatalf("unexpected finding %+v", finding)
	}
}

func TestCheckAvailabilityMissingProductUncovered(t *testing.T) {
	repo := catalogFixture()
	svc, err := NewInventoryService(InventoryServiceDeps{Products: repo})
	if err != nil {
		t.Fatalf("NewInventoryService: %v", err)
	}

	cart := cartWith(t,
		domain.LineItem{ProductID: "prod-ghost", Name: "Ghost", UnitPrice: domain.MustParseMoney("1.00"), Quantity: 1},
	)

	findings, err := svc.CheckAvailability(context.Background(), cart)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if len(findings) != 1 || findings[0].Covered || findings[0].Available != 0 {
		t.Fatalf("expected uncovered finding with zero stock, got %+v", findings)
	}
}

func TestCheckAvailabilityEmptyCart(t *testing.T) {
	svc, err := NewInventoryService(InventoryServiceDeps{Products: catalogFixture()})
	if err != nil {
		t.Fatalf("NewInventoryService: %v", err)
	}

	findings, err := svc.CheckAvailability(context.Background(), domain.NewCart())
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if findings != nil {
		t.Fatalf("expected nil findings for empty cart, got %+v", findings)
	}
}

func TestCheckAvailabilityPropagatesRepositoryError(t *testing.T) {
	repo := catalogFixture()
	repo.levelErr = errors.New("backend down")
	svc, err := NewInventoryService(InventoryServiceDeps{Products: repo})
	if err != nil {
		t.Fatalf("NewInventoryService: %v", err)
	}

	cart := cartWith(t,
		domain.LineItem{ProductID: "prod-cola", Name: "Cola 500ml", UnitPrice: domain.MustParseMoney("2.50"), Quantity: 1},
	)

	if _, err := svc.CheckAvailability(context.Background(), cart); err == nil {
		t.Fatal("expected repository error to propagate")
	}
}
