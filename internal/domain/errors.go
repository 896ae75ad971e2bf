package domain

import "errors"

var (
	ErrClientNotFound   = errors.New("client not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrProductInUse     = errors.New("product is referenced by purchases")

	// ErrDeliveryFailed is returned by notifiers. Callers log it and move on;
	// it never aborts a ledger operation.
	ErrDeliveryFailed = errors.New("notification delivery failed")
)

// StorageError wraps a persistence failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// InvalidRequestError carries the reason a request was rejected.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Reason
}

func (e *InvalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

// Invalid builds an InvalidRequestError.
func Invalid(reason string) error {
	return &InvalidRequestError{Reason: reason}
}

// IsNotFound reports whether err means a referenced record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrPurchaseNotFound)
}
