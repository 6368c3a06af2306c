package repositories

import "fmt"

// ProductErrorCode enumerates failure reasons for catalog operations.
type ProductErrorCode string

const (
	// ProductErrorUnknown represents an unspecified failure.
	ProductErrorUnknown ProductErrorCode = "product_unknown"
	// ProductErrorInvalidInput indicates the caller supplied invalid arguments.
	ProductErrorInvalidInput ProductErrorCode = "product_invalid_input"
	// ProductErrorNotFound indicates the product document is missing.
	ProductErrorNotFound ProductErrorCode = "product_not_found"
	// ProductErrorUnavailable indicates a transient backend failure.
	ProductErrorUnavailable ProductErrorCode = "product_unavailable"
)

// ProductError wraps catalog failures with machine readable codes.
type ProductError struct {
	Op      string
	Code    ProductErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ProductError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *ProductError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewProductError constructs a typed catalog error.
func NewProductError(code ProductErrorCode, message string, err error) *ProductError {
	if message == "" {
		message = string(code)
	}
	return &ProductError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
