package commission

import (
	"github.com/STTM-NSU/backtester/internal/model"
	"github.com/shopspring/decimal"
)

// Percent charges a fixed fraction of the trade value, with the rate chosen
// by instrument type. Unknown types fall back to the share rate.
type Percent struct {
	rates map[model.InstrumentType]decimal.Decimal
}

func NewPercent(rates map[model.InstrumentType]decimal.Decimal) Percent {
	return Percent{rates: rates}
}

func (p Percent) Compute(asset model.Asset, price, quantity decimal.Decimal) decimal.Decimal {
	rate, ok := p.rates[asset.InstrumentType]
	if !ok {
		rate = p.rates[model.Share]
	}
	return price.Mul(quantity).Abs().Mul(rate).Round(2)
}
