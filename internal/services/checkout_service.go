package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kiosko/pos/internal/domain"
	"github.com/kiosko/pos/internal/repositories"
)

var (
	// ErrEmptyCart indicates a commit was attempted with no lines.
	ErrEmptyCart = errors.New("checkout: cart is empty")
	// ErrInvalidDiscount indicates the discount percentage is out of range.
	ErrInvalidDiscount = errors.New("checkout: discount percent must be between 0 and 100")
	// ErrInsufficientStock indicates the store rejected the commit because a
	// line exceeds available stock and no override was given.
	ErrInsufficientStock = errors.New("checkout: insufficient stock")
	// ErrCommitFailed wraps store failures during the commit transaction. The
	// sale did not persist; the cart is intact and the commit can be retried.
	ErrCommitFailed = errors.New("checkout: sale commit failed")
)

// ShortfallsFromError extracts the offending lines when err is, or wraps, the
// insufficient stock rejection.
func ShortfallsFromError(err error) []domain.StockShortfall {
	var saleErr *repositories.SaleError
	if !errors.As(err, &saleErr) || saleErr.Code != repositories.SaleErrorInsufficientStock {
		return nil
	}
	shortfalls := make([]domain.StockShortfall, 0, len(saleErr.Shortfalls))
	for _, s := range saleErr.Shortfalls {
		shortfalls = append(shortfalls, domain.StockShortfall{
			ProductID: s.ProductID,
			Name:      s.Name,
			Requested: s.Requested,
			Available: s.Available,
		})
	}
	return shortfalls
}

// CheckoutServiceDeps bundles collaborators for the checkout service.
type CheckoutServiceDeps struct {
	Sales                repositories.SaleRepository
	Payments             PaymentService
	Publisher            SaleEventPublisher
	Logger               *zap.Logger
	Clock                func() time.Time
	DefaultPointOfSaleID string
}

type checkoutService struct {
	sales      repositories.SaleRepository
	payments   PaymentService
	publisher  SaleEventPublisher
	logger     *zap.Logger
	clock      func() time.Time
	defaultPOS string
}

var _ CheckoutService = (*checkoutService)(nil)

// NewCheckoutService assembles the sale committer.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Sales == nil {
		return nil, errors.New("checkout service: sale repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("checkout service: payment service is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	defaultPOS := strings.TrimSpace(deps.DefaultPointOfSaleID)
	if defaultPOS == "" {
		defaultPOS = "pos-1"
	}

	return &checkoutService{
		sales:      deps.Sales,
		payments:   deps.Payments,
		publisher:  deps.Publisher,
		logger:     logger,
		clock:      func() time.Time { return clock().UTC() },
		defaultPOS: defaultPOS,
	}, nil
}

// Commit reconciles the payment, then persists the sale atomically. On
// success the cart's lines, the stock decrements and the audit movements all
// landed; on error nothing did.
func (s *checkoutService) Commit(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	if req.Cart == nil || req.Cart.IsEmpty() {
		return CheckoutResult{}, ErrEmptyCart
	}
	if req.DiscountPercent < 0 || req.DiscountPercent > 100 {
		return CheckoutResult{}, fmt.Errorf("%w: got %.2f", ErrInvalidDiscount, req.DiscountPercent)
	}

	total := req.Cart.Total().Discount(req.DiscountPercent)

	payment, err := s.payments.Reconcile(total, req.Method, req.Tendered)
	if err != nil {
		return CheckoutResult{}, err
	}

	pointOfSale := strings.TrimSpace(req.PointOfSaleID)
	if pointOfSale == "" {
		pointOfSale = s.defaultPOS
	}

	items := req.Cart.Items()
	lines := make([]domain.SaleLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, domain.SaleLine{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal(),
		})
	}

	committed, err := s.sales.Commit(ctx, repositories.SaleCommit{
		Timestamp:       s.clock(),
		DiscountPercent: req.DiscountPercent,
		Method:          payment.Method,
		PointOfSaleID:   pointOfSale,
		Total:           total,
		Lines:           lines,
		AllowShortfall:  req.AllowShortfall,
	})
	if err != nil {
		var saleErr *repositories.SaleError
		if errors.As(err, &saleErr) && saleErr.Code == repositories.SaleErrorInsufficientStock {
			return CheckoutResult{}, fmt.Errorf("%w: %w", ErrInsufficientStock, err)
		}
		return CheckoutResult{}, fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}

	s.publishEvent(ctx, committed)

	return CheckoutResult{
		Sale:      committed.Sale,
		Lines:     committed.Lines,
		Movements: committed.Movements,
		Payment:   payment,
	}, nil
}

// FindSale loads a committed sale with its lines.
func (s *checkoutService) FindSale(ctx context.Context, saleID string) (domain.Sale, []domain.SaleLine, error) {
	return s.sales.FindByID(ctx, saleID)
}

// ListRecentSales returns sale headers newest first.
func (s *checkoutService) ListRecentSales(ctx context.Context, from, to time.Time, limit int) ([]domain.Sale, error) {
	return s.sales.ListRecent(ctx, repositories.SaleListFilter{From: from, To: to, Limit: limit})
}

// publishEvent notifies downstream consumers. The sale is already durable;
// a publish failure is logged and swallowed.
func (s *checkoutService) publishEvent(ctx context.Context, committed repositories.CommittedSale) {
	if s.publisher == nil {
		return
	}
	message := SaleCommittedMessage{
		SaleID:        committed.Sale.ID,
		Number:        committed.Sale.Number,
		Total:         committed.Sale.Total.String(),
		Method:        string(committed.Sale.Method),
		PointOfSaleID: committed.Sale.PointOfSaleID,
		LineCount:     len(committed.Lines),
		CommittedAt:   committed.Sale.Timestamp,
	}
	if _, err := s.publisher.PublishSaleCommitted(ctx, message); err != nil {
		s.logger.Warn("sale event publish failed",
			zap.String("sale_id", committed.Sale.ID),
			zap.Error(err),
		)
	}
}
