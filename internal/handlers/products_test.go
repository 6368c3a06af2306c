package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kiosko/pos/internal/domain"
	"github.com/kiosko/pos/internal/repositories"
)

type stubCatalogRepo struct {
	products  []domain.Product
	searchErr error
	listErr   error

	lastFilter repositories.ProductSearchFilter
}

func (s *stubCatalogRepo) FindByID(_ context.Context, productID string) (domain.Product, error) {
	for _, product := range s.products {
		if product.ID == productID {
			return product, nil
		}
	}
	return domain.Product{}, repositories.NewProductError(repositories.ProductErrorNotFound, "missing "+productID, nil)
}

func (s *stubCatalogRepo) FindByBarcode(_ context.Context, barcode string) (domain.Product, error) {
	for _, product := range s.products {
		if product.Barcode == barcode {
			return product, nil
		}
	}
	return domain.Product{}, repositories.NewProductError(repositories.ProductErrorNotFound, "missing barcode "+barcode, nil)
}

func (s *stubCatalogRepo) Search(_ context.Context, filter repositories.ProductSearchFilter) ([]domain.Product, error) {
	s.lastFilter = filter
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	var results []domain.Product
	for _, product := range s.products {
		if product.Barcode == filter.Term || strings.HasPrefix(product.Name, filter.Term) {
			results = append(results, product)
		}
	}
	return results, nil
}

func (s *stubCatalogRepo) List(_ context.Context, filter repositories.ProductSearchFilter) ([]domain.Product, error) {
	s.lastFilter = filter
	if s.listErr != nil {
		return nil, s.listErr
	}
	if filter.ActiveOnly {
		var active []domain.Product
		for _, product := range s.products {
			if product.Active {
				active = append(active, product)
			}
		}
		return active, nil
	}
	return s.products, nil
}

func (s *stubCatalogRepo) StockLevels(_ context.Context, _ []string) ([]repositories.StockLevel, error) {
	return nil, nil
}

func (s *stubCatalogRepo) Upsert(_ context.Context, _ domain.Product) error {
	return nil
}

func catalogRouterFixture(repo *stubCatalogRepo) (http.Handler, *ProductHandlers) {
	handlers := NewProductHandlers(repo)
	r := chi.NewRouter()
	r.Route("/api/v1/products", handlers.Routes)
	return r, handlers
}

func catalogTestProducts() []domain.Product {
	return []domain.Product{
		{ID: "prod-chips", Barcode: "7790002", Name: "Chips 90g", Price: domain.MustParseMoney("3.25"), Stock: 2, Active: true},
		{ID: "prod-cola", Barcode: "7790001", Name: "Cola 500ml", Price: domain.MustParseMoney("2.50"), Stock: 10, Active: true},
		{ID: "prod-old", Barcode: "7790003", Name: "Retired Item", Price: domain.MustParseMoney("1.00"), Stock: 5, Active: false},
	}
}

func TestListProductsFiltersInactive(t *testing.T) {
	repo := &stubCatalogRepo{products: catalogTestProducts()}
	router, _ := catalogRouterFixture(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload productListPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Products) != 2 {
		t.Fatalf("expected 2 active products, got %d", len(payload.Products))
	}
	if !repo.lastFilter.ActiveOnly {
		t.Fatal("expected ActiveOnly filter by default")
	}
}

func TestListProductsIncludeInactive(t *testing.T) {
	repo := &stubCatalogRepo{products: catalogTestProducts()}
	router, _ := catalogRouterFixture(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?includeInactive=true", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload productListPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Products) != 3 {
		t.Fatalf("expected 3 products, got %d", len(payload.Products))
	}
}

func TestSearchProductsRequiresTerm(t *testing.T) {
	router, _ := catalogRouterFixture(&stubCatalogRepo{products: catalogTestProducts()})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/search", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSearchProductsMatchesPrefix(t *testing.T) {
	router, _ := catalogRouterFixture(&stubCatalogRepo{products: catalogTestProducts()})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/search?q=Cola", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload productListPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Products) != 1 || payload.Products[0].ID != "prod-cola" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestSearchProductsRateLimitsPerRegister(t *testing.T) {
	router, handlers := catalogRouterFixture(&stubCatalogRepo{products: catalogTestProducts()})
	handlers.limiter = newSimpleRateLimiter(1, time.Minute, nil)

	first := httptest.NewRequest(http.MethodGet, "/api/v1/products/search?q=Cola", nil)
	first.Header.Set(registerHeader, "pos-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}

	second := httptest.NewRequest(http.MethodGet, "/api/v1/products/search?q=Cola", nil)
	second.Header.Set(registerHeader, "pos-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, second)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}

	other := httptest.NewRequest(http.MethodGet, "/api/v1/products/search?q=Cola", nil)
	other.Header.Set(registerHeader, "pos-2")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected another register to pass, got %d", rec.Code)
	}
}

func TestListProductsStoreUnavailable(t *testing.T) {
	repo := &stubCatalogRepo{
		products: catalogTestProducts(),
		listErr:  repositories.NewProductError(repositories.ProductErrorUnavailable, "store down", nil),
	}
	router, _ := catalogRouterFixture(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
