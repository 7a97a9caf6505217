package services

import "errors"

// Sentinel errors returned by the order and payment services. Controllers
// map these to HTTP statuses; everything else is treated as a 500.
var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrNotOwner           = errors.New("order does not belong to this user")
	ErrAlreadyPaid        = errors.New("order is already paid")
	ErrOrderExpired       = errors.New("order payment window has expired")
	ErrOrderClosed        = errors.New("order is closed for payment")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidCharity     = errors.New("unknown charity trust")
	ErrInvalidQuantity    = errors.New("item quantity must be at least 1")
	ErrProductUnavailable = errors.New("product is not available")
	ErrTotalMismatch      = errors.New("order total does not match item prices")
	ErrBadTransition      = errors.New("status transition not allowed")
)
