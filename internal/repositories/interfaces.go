package repositories

import (
	"context"
	"time"

	"github.com/kiosko/pos/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ProductSearchFilter narrows product lookups for the register UI.
type ProductSearchFilter struct {
	// Term matches the barcode exactly or the product name by prefix.
	Term string
	// ActiveOnly restricts results to sellable products.
	ActiveOnly bool
	// Limit caps the result set; zero applies the repository default.
	Limit int
}

// StockLevel reports the current stock for a product.
type StockLevel struct {
	ProductID string
	Name      string
	Stock     int
}

// ProductRepository provides catalog reads for carts and availability checks.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindByBarcode(ctx context.Context, barcode string) (domain.Product, error)
	Search(ctx context.Context, filter ProductSearchFilter) ([]domain.Product, error)
	List(ctx context.Context, filter ProductSearchFilter) ([]domain.Product, error)
	StockLevels(ctx context.Context, productIDs []string) ([]StockLevel, error)
	Upsert(ctx context.Context, product domain.Product) error
}

// SaleCommit bundles everything persisted atomically when a sale closes.
type SaleCommit struct {
	Timestamp       time.Time
	DiscountPercent float64
	Method          domain.PaymentMethod
	PointOfSaleID   string
	Total           domain.Money
	Lines           []domain.SaleLine
	// AllowShortfall lets the commit proceed when stock is insufficient,
	// clamping the resulting stock at zero. Requires operator confirmation
	// upstream.
	AllowShortfall bool
}

// CommittedSale is returned once the sale and its side effects are persisted.
type CommittedSale struct {
	Sale      domain.Sale
	Lines     []domain.SaleLine
	Movements []domain.StockMovement
}

// SaleListFilter narrows sale history queries.
type SaleListFilter struct {
	From  time.Time
	To    time.Time
	Limit int
}

// SaleRepository persists sales together with their stock side effects.
type SaleRepository interface {
	// Commit writes the sale header, its lines, the stock decrements and the
	// audit movements in one transaction. Either everything lands or nothing
	// does.
	Commit(ctx context.Context, commit SaleCommit) (CommittedSale, error)
	FindByID(ctx context.Context, saleID string) (domain.Sale, []domain.SaleLine, error)
	ListRecent(ctx context.Context, filter SaleListFilter) ([]domain.Sale, error)
}

// HealthRepository aggregates dependency health probes.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
