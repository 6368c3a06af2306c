package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kiosko/pos/internal/domain"
	"github.com/kiosko/pos/internal/repositories"
)

var checkoutFixedTime = time.Date(2025, time.March, 10, 14, 30, 0, 0, time.UTC)

type stubSaleRepo struct {
	lastCommit repositories.SaleCommit
	commitErr  error
	nextNumber int64
}

func (s *stubSaleRepo) Commit(_ context.Context, commit repositories.SaleCommit) (repositories.CommittedSale, error) {
	s.lastCommit = commit
	if s.commitErr != nil {
		return repositories.CommittedSale{}, s.commitErr
	}
	s.nextNumber++
	sale := domain.Sale{
		ID:              "sale-1",
		Number:          s.nextNumber,
		Timestamp:       commit.Timestamp,
		Total:           commit.Total,
		DiscountPercent: commit.DiscountPercent,
		Method:          commit.Method,
		PointOfSaleID:   commit.PointOfSaleID,
	}
	lines := make([]domain.SaleLine, len(commit.Lines))
	copy(lines, commit.Lines)
	for i := range lines {
		lines[i].SaleID = sale.ID
	}
	movements := make([]domain.StockMovement, 0, len(commit.Lines))
	for _, line := range commit.Lines {
		movements = append(movements, domain.StockMovement{
			ID:        "mv-" + line.ProductID,
			ProductID: line.ProductID,
			Type:      domain.MovementSale,
			Quantity:  line.Quantity,
			SaleID:    sale.ID,
			CreatedAt: commit.Timestamp,
		})
	}
	return repositories.CommittedSale{Sale: sale, Lines: lines, Movements: movements}, nil
}

func (s *stubSaleRepo) FindByID(_ context.Context, saleID string) (domain.Sale, []domain.SaleLine, error) {
	return domain.Sale{ID: saleID}, nil, nil
}

func (s *stubSaleRepo) ListRecent(_ context.Context, _ repositories.SaleListFilter) ([]domain.Sale, error) {
	return nil, nil
}

type stubPublisher struct {
	messages []SaleCommittedMessage
	err      error
}

func (p *stubPublisher) PublishSaleCommitted(_ context.Context, message SaleCommittedMessage) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.messages = append(p.messages, message)
	return "msg-1", nil
}

func newCheckoutFixture(t *testing.T, repo *stubSaleRepo, publisher SaleEventPublisher) CheckoutService {
	t.Helper()
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Sales:                repo,
		Payments:             NewPaymentService(),
		Publisher:            publisher,
		Clock:                func() time.Time { return checkoutFixedTime },
		DefaultPointOfSaleID: "pos-9",
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}
	return svc
}

func checkoutCart(t *testing.T) *domain.Cart {
	t.Helper()
	cart := domain.NewCart()
	lines := []domain.LineItem{
		{ProductID: "prod-cola", Name: "Cola 500ml", UnitPrice: domain.MustParseMoney("2.50"), Quantity: 2, StockSnapshot: 10},
		{ProductID: "prod-chips", Name: "Chips 90g", UnitPrice: domain.MustParseMoney("3.25"), Quantity: 1, StockSnapshot: 2},
	}
	for _, line := range lines {
		if err := cart.AddOrIncrement(line); err != nil {
			t.Fatalf("AddOrIncrement: %v", err)
		}
	}
	return cart
}

func TestCheckoutCommitCashSale(t *testing.T) {
	repo := &stubSaleRepo{}
	publisher := &stubPublisher{}
	svc := newCheckoutFixture(t, repo, publisher)

	result, err := svc.Commit(context.Background(), CheckoutRequest{
		Cart:     checkoutCart(t),
		Method:   domain.PaymentCash,
		Tendered: domain.MustParseMoney("10.00"),
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if result.Sale.Total.String() != "8.25" {
		t.Fatalf("expected total 8.25, got %s", result.Sale.Total)
	}
	if result.Payment.Change.String() != "1.75" {
		t.Fatalf("expected change 1.75, got %s", result.Payment.Change)
	}
	if repo.lastCommit.PointOfSaleID != "pos-9" {
		t.Fatalf("expected default register, got %s", repo.lastCommit.PointOfSaleID)
	}
	if !repo.lastCommit.Timestamp.Equal(checkoutFixedTime) {
		t.Fatalf("expected injected clock timestamp, got %s", repo.lastCommit.Timestamp)
	}
	if len(result.Lines) != 2 || result.Lines[0].Subtotal.String() != "5.00" {
		t.Fatalf("unexpected lines %+v", result.Lines)
	}
	if len(publisher.messages) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(publisher.messages))
	}
	if publisher.messages[0].Total != "8.25" || publisher.messages[0].LineCount != 2 {
		t.Fatalf("unexpected event payload %+v", publisher.messages[0])
	}
}

func TestCheckoutCommitAppliesDiscount(t *testing.T) {
	repo := &stubSaleRepo{}
	svc := newCheckoutFixture(t, repo, nil)

	result, err := svc.Commit(context.Background(), CheckoutRequest{
		Cart:            checkoutCart(t),
		DiscountPercent: 10,
		Method:          domain.PaymentDebitCard,
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// 8.25 minus 10 percent is 7.425, rounded half-up to 7.43.
	if result.Sale.Total.String() != "7.43" {
		t.Fatalf("expected discounted total 7.43, got %s", result.Sale.Total)
	}
	if result.Payment.Tendered.String() != "7.43" {
		t.Fatalf("card settles exactly, got tendered %s", result.Payment.Tendered)
	}
}

func TestCheckoutCommitNormalisesMethod(t *testing.T) {
	repo := &stubSaleRepo{}
	svc := newCheckoutFixture(t, repo, nil)

	result, err := svc.Commit(context.Background(), CheckoutRequest{
		Cart:     checkoutCart(t),
		Method:   domain.PaymentMethod("cash"),
		Tendered: domain.MustParseMoney("10.00"),
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if result.Payment.Method != domain.PaymentCash {
		t.Fatalf("expected normalised payment method %s, got %s", domain.PaymentCash, result.Payment.Method)
	}
	if repo.lastCommit.Method != domain.PaymentCash {
		t.Fatalf("expected normalised method persisted, got %s", repo.lastCommit.Method)
	}
}

func TestCheckoutCommitEmptyCart(t *testing.T) {
	svc := newCheckoutFixture(t, &stubSaleRepo{}, nil)

	_, err := svc.Commit(context.Background(), CheckoutRequest{
		Cart:   domain.NewCart(),
		Method: domain.PaymentCash,
	})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestCheckoutCommitInvalidDiscount(t *testing.T) {
	svc := newCheckoutFixture(t, &stubSaleRepo{}, nil)

	_, err := svc.Commit(context.Background(), CheckoutRequest{
		Cart:            checkoutCart(t),
		DiscountPercent: 120,
		Method:          domain.PaymentCash,
		Tendered:        domain.MustParseMoney("100.00"),
	})
	if !errors.Is(err, ErrInvalidDiscount) {
		t.Fatalf("expected ErrInvalidDiscount, got %v", err)
	}
}

func TestCheckoutCommitInsufficientCash(t *testing.T) {
	repo := &stubSaleRepo{}
	svc := newCheckoutFixture(t, repo, nil)

	_, err := svc.Commit(context.Background(), CheckoutRequest{
		Cart:     checkoutCart(t),
		Method:   domain.PaymentCash,
		Tendered: domain.MustParseMoney("5.00"),
	})
	if !errors.Is(err, ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}
	if repo.lastCommit.Lines != nil {
		t.Fatal("commit must not reach the repository when payment fails")
	}
}

func TestCheckoutCommitMapsInsufficientStock(t *testing.T) {
	repo := &stubSaleRepo{commitErr: &repositories.SaleError{
		Code:    repositories.SaleErrorInsufficientStock,
		Message: "insufficient stock",
		Shortfalls: []repositories.SaleShortfall{
			{ProductID: "prod-chips", Name: "Chips 90g", Requested: 5, Available: 2},
		},
	}}
	svc := newCheckoutFixture(t, repo, nil)

	_, err := svc.Commit(context.Background(), CheckoutRequest{
		Cart:     checkoutCart(t),
		Method:   domain.PaymentCash,
		Tendered: domain.MustParseMoney("50.00"),
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	shortfalls := ShortfallsFromError(err)
	if len(shortfalls) != 1 || shortfalls[0].Available != 2 {
		t.Fatalf("unexpected shortfalls %+v", shortfalls)
	}
}

func TestCheckoutCommitWrapsStoreFailure(t *testing.T) {
	repo := &stubSaleRepo{commitErr: repositories.NewSaleError(repositories.SaleErrorUnavailable, "store down", nil)}
	svc := newCheckoutFixture(t, repo, nil)

	_, err := svc.Commit(context.Background(), CheckoutRequest{
		Cart:     checkoutCart(t),
		Method:   domain.PaymentCash,
		Tendered: domain.MustParseMoney("50.00"),
	})
	if !errors.Is(err, ErrCommitFailed) {
		t.Fatalf("expected ErrCommitFailed, got %v", err)
	}
}

func TestCheckoutCommitSurvivesPublishFailure(t *testing.T) {
	repo := &stubSaleRepo{}
	publisher := &stubPublisher{err: errors.New("topic gone")}
	svc := newCheckoutFixture(t, repo, publisher)

	result, err := svc.Commit(context.Background(), CheckoutRequest{
		Cart:     checkoutCart(t),
		Method:   domain.PaymentCash,
		Tendered: domain.MustParseMoney("10.00"),
	})
	if err != nil {
		t.Fatalf("publish failure must not fail the sale: %v", err)
	}
	if result.Sale.ID == "" {
		t.Fatal("expected committed sale despite publish failure")
	}
}

func TestCheckoutCommitShortfallOverridePassedThrough(t *testing.T) {
	repo := &stubSaleRepo{}
	svc := newCheckoutFixture(t, repo, nil)

	_, err := svc.Commit(context.Background(), CheckoutRequest{
		Cart:           checkoutCart(t),
		Method:         domain.PaymentCash,
		Tendered:       domain.MustParseMoney("10.00"),
		AllowShortfall: true,
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !repo.lastCommit.AllowShortfall {
		t.Fatal("expected override flag forwarded to the repository")
	}
}
