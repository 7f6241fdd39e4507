package model

import "errors"

// Sentinel errors shared by the ledger packages. Callers match them with errors.Is;
// every operation returning one of them has left its state untouched.
var (
	ErrConfiguration      = errors.New("configuration error")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrUnknownPortfolio   = errors.New("unknown portfolio")
	ErrUnknownCurrency    = errors.New("unknown currency")
	ErrDuplicatePortfolio = errors.New("duplicate portfolio")
	ErrPriceUnavailable   = errors.New("price unavailable")
	ErrNonMonotonicTime   = errors.New("non-monotonic time")
)
