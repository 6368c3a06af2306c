package services

import (
	"errors"
	"fmt"

	"github.com/kiosko/pos/internal/domain"
)

var (
	// ErrInsufficientPayment indicates the cash tendered does not cover the total due.
	ErrInsufficientPayment = errors.New("payment: tendered amount below total due")
	// ErrInvalidTender indicates a negative or otherwise malformed tendered amount.
	ErrInvalidTender = errors.New("payment: invalid tendered amount")
)

type paymentService struct{}

// NewPaymentService constructs the payment reconciler. It is stateless.
func NewPaymentService() PaymentService {
	return paymentService{}
}

var _ PaymentService = paymentService{}

// Reconcile validates the tender against the amount due. Cash must cover the
// total and yields change; card and transfer methods settle for the exact
// amount regardless of the tendered input.
func (paymentService) Reconcile(due domain.Money, method domain.PaymentMethod, tendered domain.Money) (domain.PaymentRecord, error) {
	// The parser normalises case; the record and the branch below must use the
	// normalised method so "cash" follows the same rules as "CASH".
	parsed, err := domain.ParsePaymentMethod(string(method))
	if err != nil {
		return domain.PaymentRecord{}, err
	}

	if !parsed.IsCash() {
		return domain.PaymentRecord{
			Method:   parsed,
			Tendered: due,
			Change:   domain.Money{},
		}, nil
	}

	if tendered.IsNegative() {
		return domain.PaymentRecord{}, fmt.Errorf("%w: %s", ErrInvalidTender, tendered)
	}
	if tendered.LessThan(due) {
		return domain.PaymentRecord{}, fmt.Errorf("%w: tendered %s, due %s", ErrInsufficientPayment, tendered, due)
	}

	return domain.PaymentRecord{
		Method:   parsed,
		Tendered: tendered,
		Change:   tendered.Sub(due),
	}, nil
}
