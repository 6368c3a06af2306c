package repositories

import "fmt"

// SaleErrorCode enumerates failure reasons for sale persistence.
type SaleErrorCode string

const (
	// SaleErrorUnknown represents an unspecified failure.
	SaleErrorUnknown SaleErrorCode = "sale_unknown"
	// SaleErrorInvalidInput indicates the caller supplied invalid arguments.
	SaleErrorInvalidInput SaleErrorCode = "sale_invalid_input"
	// SaleErrorNotFound indicates the sale document is missing.
	SaleErrorNotFound SaleErrorCode = "sale_not_found"
	// SaleErrorProductNotFound indicates a line references a product that no longer exists.
	SaleErrorProductNotFound SaleErrorCode = "sale_product_not_found"
	// SaleErrorInsufficientStock indicates the commit would drive stock below zero.
	SaleErrorInsufficientStock SaleErrorCode = "sale_insufficient_stock"
	// SaleErrorConflict indicates the transaction lost a write race and exhausted its retries.
	SaleErrorConflict SaleErrorCode = "sale_conflict"
	// SaleErrorUnavailable indicates a transient backend failure.
	SaleErrorUnavailable SaleErrorCode = "sale_unavailable"
)

// SaleError wraps sale persistence failures with machine readable codes.
type SaleError struct {
	Op      string
	Code    SaleErrorCode
	Message string
	Err     error

	// Shortfalls carries the offending lines when Code is SaleErrorInsufficientStock.
	Shortfalls []SaleShortfall
}

// SaleShortfall describes one line that could not be covered by stock.
type SaleShortfall struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

// Error implements the error interface.
func (e *SaleError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *SaleError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewSaleError constructs a typed sale error.
func NewSaleError(code SaleErrorCode, message string, err error) *SaleError {
	if message == "" {
		message = string(code)
	}
	return &SaleError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
