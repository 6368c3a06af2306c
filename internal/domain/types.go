package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// PaymentMethod enumerates the payment rails a register accepts.
type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "CASH"
	PaymentDebitCard  PaymentMethod = "DEBIT_CARD"
	PaymentCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentTransfer   PaymentMethod = "TRANSFER"
)

// ErrUnknownPaymentMethod indicates a wire value that maps to no known rail.
var ErrUnknownPaymentMethod = errors.New("payment: unknown method")

// ParsePaymentMethod normalises a wire string into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	switch PaymentMethod(strings.ToUpper(strings.TrimSpace(value))) {
	case PaymentCash:
		return PaymentCash, nil
	case PaymentDebitCard:
		return PaymentDebitCard, nil
	case PaymentCreditCard:
		return PaymentCreditCard, nil
	case PaymentTransfer:
		return PaymentTransfer, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, value)
	}
}

// IsCash reports whether the method settles with physical tender.
func (m PaymentMethod) IsCash() bool {
	return m == PaymentCash
}

// PaymentRecord is the reconciled outcome of tendering a payment against a
// cart total. Created by the reconciler, consumed once by the committer, and
// never persisted independently of the sale.
type PaymentRecord struct {
	Method   PaymentMethod
	Tendered Money
	Change   Money
}

// Product is the catalog view this engine reads. Products are owned by the
// external inventory subsystem; the engine only reads price and stock, and
// decrements stock inside the commit transaction.
type Product struct {
	ID        string
	Barcode   string
	Name      string
	Price     Money
	Stock     int
	Active    bool
	UpdatedAt time.Time
}

// Sale is the persisted, immutable record of one committed transaction. Its
// number is assigned by the store, monotonically, inside the commit
// transaction.
type Sale struct {
	ID              string
	Number          int64
	Timestamp       time.Time
	Total           Money
	DiscountPercent float64
	Method          PaymentMethod
	PointOfSaleID   string
}

// SaleLine is one persisted, immutable line of a sale. The unit price is
// captured at sale time so historical sales never change when catalog prices
// do.
type SaleLine struct {
	SaleID    string
	ProductID string
	Name      string
	Quantity  int
	UnitPrice Money
	Subtotal  Money
}

// MovementSale is the only movement type this engine writes.
const MovementSale = "SALE"

// StockMovement is an append-only audit record of a stock level change. It is
// never updated or deleted.
type StockMovement struct {
	ID          string
	ProductID   string
	Type        string
	Quantity    int
	StockBefore int
	StockAfter  int
	SaleID      string
	CreatedAt   time.Time
}

// StockShortfall is the advisory finding that a requested quantity exceeds
// the currently known stock. Shortfalls are data, not errors: the operator
// decides whether to proceed.
type StockShortfall struct {
	ProductID string
	Name      string
	Requested int
	Available int
}
