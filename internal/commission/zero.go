package commission

import (
	"github.com/STTM-NSU/backtester/internal/model"
	"github.com/shopspring/decimal"
)

// Zero charges nothing. It is the broker default.
type Zero struct{}

func (Zero) Compute(model.Asset, decimal.Decimal, decimal.Decimal) decimal.Decimal {
	return decimal.Zero
}
