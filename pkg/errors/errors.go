package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrAlreadySold       = errors.New("listing already sold")
	ErrExpired           = errors.New("payment session expired")
	ErrDeclined          = errors.New("bank declined this transaction")
	ErrInvalidInstrument = errors.New("invalid payment instrument")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotExchangeable   = errors.New("listing not available for exchange")
	ErrInvalidSession    = errors.New("invalid payment session")
	ErrSelfPurchase      = errors.New("cannot buy your own listing")
	ErrNotAvailable      = errors.New("listing not available")
	ErrAlreadyReleased   = errors.New("funds already released")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInternal          = errors.New("internal error")

	// Ошибки слоя хранения
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrListingNotFound  = fmt.Errorf("listing %w", ErrNotFound)
	ErrOrderNotFound    = fmt.Errorf("order %w", ErrNotFound)
	ErrExchangeNotFound = fmt.Errorf("exchange request %w", ErrNotFound)
	ErrStatusConflict   = errors.New("status changed concurrently")
)

type kind struct {
	err    error
	code   string
	status int
}

// Order matters: the first match wins.
var kinds = []kind{
	{ErrUnauthorized, "unauthorized", http.StatusUnauthorized},
	{ErrForbidden, "forbidden", http.StatusForbidden},
	{ErrNotFound, "not_found", http.StatusNotFound},
	{ErrAlreadySold, "already_sold", http.StatusConflict},
	{ErrAlreadyReleased, "already_released", http.StatusConflict},
	{ErrStatusConflict, "invalid_state", http.StatusConflict},
	{ErrInvalidState, "invalid_state", http.StatusConflict},
	{ErrExpired, "expired", http.StatusGone},
	{ErrDeclined, "declined", http.StatusPaymentRequired},
	{ErrInvalidInstrument, "invalid_instrument", http.StatusBadRequest},
	{ErrInsufficientFunds, "insufficient_funds", http.StatusUnprocessableEntity},
	{ErrNotExchangeable, "not_exchangeable", http.StatusBadRequest},
	{ErrInvalidSession, "invalid_session", http.StatusNotFound},
	{ErrSelfPurchase, "self_purchase", http.StatusBadRequest},
	{ErrNotAvailable, "not_available", http.StatusConflict},
	{ErrInvalidInput, "invalid_input", http.StatusBadRequest},
}

// Code returns the stable machine-readable code for err.
func Code(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "internal"
}

// HTTPStatus maps err to a response status. Unknown errors are 500.
func HTTPStatus(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}
