package domain

import (
	"errors"
	"strings"
)

var (
	ErrValidation         = errors.New("validation")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrNoOp               = errors.New("no fields to update")
	ErrUpstream           = errors.New("upstream failure")
	ErrSignatureInvalid   = errors.New("signature invalid")
	ErrCheckoutFailed     = errors.New("checkout creation failed")
	ErrItemsUnavailable   = errors.New("items unavailable")
	ErrNotConfigured      = errors.New("not configured")
)

// ItemsUnavailableError lists the products that failed the checkout-time
// availability check.
type ItemsUnavailableError struct {
	Items []string
}

func (e *ItemsUnavailableError) Error() string {
	return "items unavailable: " + strings.Join(e.Items, ", ")
}

func (e *ItemsUnavailableError) Is(target error) bool {
	return target == ErrItemsUnavailable
}
