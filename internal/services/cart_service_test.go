package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kiosko/pos/internal/domain"
	"github.com/kiosko/pos/internal/repositories"
)

type stubProductRepo struct {
	byID      map[string]domain.Product
	byBarcode map[string]domain.Product
	levels    map[string]int
	levelErr  error
}

func (s *stubProductRepo) FindByID(_ context.Context, productID string) (domain.Product, error) {
	if product, ok := s.byID[productID]; ok {
		return product, nil
	}
	return domain.Product{}, repositories.NewProductError(repositories.ProductErrorNotFound, "missing "+productID, nil)
}

func (s *stubProductRepo) FindByBarcode(_ context.Context, barcode string) (domain.Product, error) {
	if product, ok := s.byBarcode[barcode]; ok {
		return product, nil
	}
	return domain.Product{}, repositories.NewProductError(repositories.ProductErrorNotFound, "missing barcode "+barcode, nil)
}

func (s *stubProductRepo) Search(_ context.Context, _ repositories.ProductSearchFilter) ([]domain.Product, error) {
	return nil, nil
}

func (s *stubProductRepo) List(_ context.Context, _ repositories.ProductSearchFilter) ([]domain.Product, error) {
	return nil, nil
}

func (s *stubProductRepo) StockLevels(_ context.Context, productIDs []string) ([]repositories.StockLevel, error) {
	if s.levelErr != nil {
		return nil, s.levelErr
	}
	levels := make([]repositories.StockLevel, 0, len(productIDs))
	for _, id := range productIDs {
		stock, ok := s.levels[id]
		if !ok {
			continue
		}
		levels = append(levels, repositories.StockLevel{ProductID: id, Name: s.byID[id].Name, Stock: stock})
	}
	return levels, nil
}

func (s *stubProductRepo) Upsert(_ context.Context, _ domain.Product) error {
	return nil
}

func catalogFixture() *stubProductRepo {
	cola := domain.Product{ID: "prod-cola", Barcode: "7790001", Name: "Cola 500ml", Price: domain.MustParseMoney("2.50"), Stock: 10, Active: true, UpdatedAt: time.Now()}
	chips := domain.Product{ID: "prod-chips", Barcode: "7790002", Name: "Chips 90g", Price: domain.MustParseMoney("3.25"), Stock: 2, Active: true, UpdatedAt: time.Now()}
	retired := domain.Product{ID: "prod-old", Barcode: "7790003", Name: "Retired Item", Price: domain.MustParseMoney("1.00"), Stock: 5, Active: false, UpdatedAt: time.Now()}
	return &stubProductRepo{
		byID:      map[string]domain.Product{"prod-cola": cola, "prod-chips": chips, "prod-old": retired},
		byBarcode: map[string]domain.Product{"7790001": cola, "7790002": chips, "7790003": retired},
		levels:    map[string]int{"prod-cola": 10, "prod-chips": 2, "prod-old": 5},
	}
}

func TestBuildCartMergesDuplicateProducts(t *testing.T) {
	svc, err := NewCartService(CartServiceDeps{Products: catalogFixture()})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	cart, err := svc.BuildCart(context.Background(), []CartItemInput{
		{ProductID: "prod-cola", Quantity: 2},
		{Barcode: "7790002", Quantity: 1},
		{ProductID: "prod-cola", Quantity: 3},
	})
	if err != nil {
		t.Fatalf("BuildCart: %v", err)
	}

	if cart.Len() != 2 {
		t.Fatalf("expected 2 lines, got %d", cart.Len())
	}
	line, ok := cart.Line("prod-cola")
	if !ok || line.Quantity != 5 {
		t.Fatalf("expected merged cola quantity 5, got %+v", line)
	}
	if got := cart.Total().String(); got != "15.75" {
		t.Fatalf("expected total 15.75, got %s", got)
	}
}

func TestBuildCartResolvesByBarcode(t *testing.T) {
	svc, err := NewCartService(CartServiceDeps{Products: catalogFixture()})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	cart, err := svc.BuildCart(context.Background(), []CartItemInput{
		{Barcode: "7790001", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("BuildCart: %v", err)
	}
	line, ok := cart.Line("prod-cola")
	if !ok {
		t.Fatal("expected cola line resolved from barcode")
	}
	if line.StockSnapshot != 10 {
		t.Fatalf("expected stock snapshot 10, got %d", line.StockSnapshot)
	}
}

func TestBuildCartUnknownProduct(t *testing.T) {
	svc, err := NewCartService(CartServiceDeps{Products: catalogFixture()})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	_, err = svc.BuildCart(context.Background(), []CartItemInput{
		{ProductID: "prod-missing", Quantity: 1},
	})
	if !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("expected ErrUnknownProduct, got %v", err)
	}
}

func TestBuildCartRejectsInactiveProduct(t *testing.T) {
	svc, err := NewCartService(CartServiceDeps{Products: catalogFixture()})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	_, err = svc.BuildCart(context.Background(), []CartItemInput{
		{ProductID: "prod-old", Quantity: 1},
	})
	if !errors.Is(err, ErrInactiveProduct) {
		t.Fatalf("expected ErrInactiveProduct, got %v", err)
	}
}

func TestBuildCartRejectsNonPositiveQuantity(t *testing.T) {
	svc, err := NewCartService(CartServiceDeps{Products: catalogFixture()})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	_, err = svc.BuildCart(context.Background(), []CartItemInput{
		{ProductID: "prod-cola", Quantity: 0},
	})
	if !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestBuildCartEmptyInput(t *testing.T) {
	svc, err := NewCartService(CartServiceDeps{Products: catalogFixture()})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	if _, err := svc.BuildCart(context.Background(), nil); !errors.Is(err, ErrEmptyCartInput) {
		t.Fatalf("expected ErrEmptyCartInput, got %v", err)
	}
}
