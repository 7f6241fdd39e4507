package broker

import "github.com/STTM-NSU/backtester/internal/model"

var (
	ErrConfiguration      = model.ErrConfiguration
	ErrInvalidAmount      = model.ErrInvalidAmount
	ErrInsufficientFunds  = model.ErrInsufficientFunds
	ErrUnknownPortfolio   = model.ErrUnknownPortfolio
	ErrUnknownCurrency    = model.ErrUnknownCurrency
	ErrDuplicatePortfolio = model.ErrDuplicatePortfolio
	ErrPriceUnavailable   = model.ErrPriceUnavailable
	ErrNonMonotonicTime   = model.ErrNonMonotonicTime
)
