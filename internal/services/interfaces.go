package services

import (
	"context"
	"time"

	"github.com/kiosko/pos/internal/domain"
)

// CartItemInput identifies one requested line when building a cart. Either
// ProductID or Barcode must be set; ProductID wins when both are present.
type CartItemInput struct {
	ProductID string
	Barcode   string
	Quantity  int
}

// CartService resolves catalog products into priced cart lines.
type CartService interface {
	// BuildCart resolves every input against the catalog and assembles a
	// cart, merging duplicate products. Stock snapshots are captured at
	// resolution time for advisory display only.
	BuildCart(ctx context.Context, items []CartItemInput) (*domain.Cart, error)
	// ResolveProduct looks up a single product for incremental scanning.
	ResolveProduct(ctx context.Context, input CartItemInput) (domain.LineItem, error)
}

// PaymentService reconciles tendered amounts against amounts due.
type PaymentService interface {
	// Reconcile validates the tender for the given method and computes
	// change. Non-cash methods settle exactly and never produce change.
	Reconcile(due domain.Money, method domain.PaymentMethod, tendered domain.Money) (domain.PaymentRecord, error)
}

// AvailabilityFinding reports the advisory stock check for one cart line.
type AvailabilityFinding struct {
	ProductID string
	Name      string
	Requested int
	Available int
	Covered   bool
}

// InventoryService answers advisory stock questions with fresh reads.
type InventoryService interface {
	// CheckAvailability re-reads stock for each cart line. Findings are
	// advisory; the commit transaction is the only authority.
	CheckAvailability(ctx context.Context, cart *domain.Cart) ([]AvailabilityFinding, error)
}

// CheckoutRequest bundles everything needed to close a sale.
type CheckoutRequest struct {
	Cart            *domain.Cart
	DiscountPercent float64
	Method          domain.PaymentMethod
	Tendered        domain.Money
	PointOfSaleID   string
	// AllowShortfall carries the operator's override decision when the
	// advisory check reported insufficient stock.
	AllowShortfall bool
}

// CheckoutResult reports a committed sale with its payment outcome.
type CheckoutResult struct {
	Sale      domain.Sale
	Lines     []domain.SaleLine
	Movements []domain.StockMovement
	Payment   domain.PaymentRecord
}

// CheckoutService commits sales atomically.
type CheckoutService interface {
	Commit(ctx context.Context, req CheckoutRequest) (CheckoutResult, error)
	FindSale(ctx context.Context, saleID string) (domain.Sale, []domain.SaleLine, error)
	ListRecentSales(ctx context.Context, from, to time.Time, limit int) ([]domain.Sale, error)
}

// SaleCommittedMessage is the event payload published after a sale persists.
type SaleCommittedMessage struct {
	SaleID        string    `json:"saleId"`
	Number        int64     `json:"number"`
	Total         string    `json:"total"`
	Method        string    `json:"method"`
	PointOfSaleID string    `json:"pointOfSaleId"`
	LineCount     int       `json:"lineCount"`
	CommittedAt   time.Time `json:"committedAt"`
}

// SaleEventPublisher accepts committed sale notifications for downstream
// processing. Publish failures never affect the sale itself.
type SaleEventPublisher interface {
	PublishSaleCommitted(ctx context.Context, message SaleCommittedMessage) (string, error)
}

// BuildInfo captures runtime metadata exposed via health endpoints.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// SystemHealthReport extends the dependency report with build metadata.
type SystemHealthReport struct {
	Status      domain.HealthStatus
	Checks      map[string]domain.SystemHealthCheck
	GeneratedAt time.Time
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
}

// SystemService aggregates utility endpoints backing health checks.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}
