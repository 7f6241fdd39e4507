package commission

import (
	"github.com/STTM-NSU/backtester/internal/model"
	"github.com/shopspring/decimal"
)

// TDDirect models TD Direct UK equity dealing as of 2017: a flat standard
// rate, a surcharge for large trades and 0.5% stamp duty on non-exempt shares.
type TDDirect struct {
	rate         decimal.Decimal
	midTier      decimal.Decimal
	topTier      decimal.Decimal
	midSurcharge decimal.Decimal
	topSurcharge decimal.Decimal
	stampDuty    decimal.Decimal
}

func NewTDDirect() TDDirect {
	return TDDirect{
		rate:         decimal.RequireFromString("12.50"),
		midTier:      decimal.NewFromInt(100000),
		topTier:      decimal.NewFromInt(500000),
		midSurcharge: decimal.NewFromInt(30),
		topSurcharge: decimal.NewFromInt(60),
		stampDuty:    decimal.RequireFromString("0.005"),
	}
}

func (c TDDirect) commission(consideration decimal.Decimal) decimal.Decimal {
	fee := c.rate
	switch {
	case consideration.GreaterThan(c.topTier):
		fee = fee.Add(c.topSurcharge)
	case consideration.GreaterThanOrEqual(c.midTier):
		fee = fee.Add(c.midSurcharge)
	}
	return fee.Round(2)
}

func (c TDDirect) tax(asset model.Asset, consideration decimal.Decimal) decimal.Decimal {
	if asset.TaxExempt {
		return decimal.Zero
	}
	return consideration.Mul(c.stampDuty).Round(2)
}

func (c TDDirect) Compute(asset model.Asset, price, quantity decimal.Decimal) decimal.Decimal {
	consideration := price.Mul(quantity).Abs()
	return c.commission(consideration).Add(c.tax(asset, consideration))
}
