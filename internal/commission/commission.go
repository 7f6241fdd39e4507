package commission

import (
	"fmt"

	"github.com/STTM-NSU/backtester/internal/model"
	"github.com/shopspring/decimal"
)

// Model computes the total fee (commission plus any tax) charged for filling
// quantity units of asset at price. Implementations must be pure and never
// return a negative amount.
type Model interface {
	Compute(asset model.Asset, price, quantity decimal.Decimal) decimal.Decimal
}

// Func adapts a plain function to Model.
type Func func(asset model.Asset, price, quantity decimal.Decimal) decimal.Decimal

func (f Func) Compute(asset model.Asset, price, quantity decimal.Decimal) decimal.Decimal {
	return f(asset, price, quantity)
}

var _probes = []struct {
	price    string
	quantity string
}{
	{"0", "1"},
	{"0.01", "1"},
	{"53.47", "1000"},
	{"53.45", "-1000"},
	{"250", "-4000"},
	{"1000", "1000"},
}

var _probeAssets = []model.Asset{
	{Symbol: "PROBE", InstrumentType: model.Share},
	{Symbol: "PROBE", InstrumentType: model.Bond, TaxExempt: true},
	{Symbol: "PROBE", InstrumentType: model.CashLike},
}

// Validate probes m over a fixed grid of buys and sells and fails with
// model.ErrConfiguration if it is nil, panics, or returns a negative fee.
func Validate(m Model) (err error) {
	if m == nil {
		return fmt.Errorf("%w: nil commission model", model.ErrConfiguration)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: commission model panicked: %v", model.ErrConfiguration, r)
		}
	}()

	for _, a := range _probeAssets {
		for _, p := range _probes {
			price := decimal.RequireFromString(p.price)
			qty := decimal.RequireFromString(p.quantity)
			if fee := m.Compute(a, price, qty); fee.IsNegative() {
				return fmt.Errorf("%w: commission model returned negative fee %s for %s x %s",
					model.ErrConfiguration, fee, qty, price)
			}
		}
	}
	return nil
}

// New builds a model by name, as used in the backtest config.
func New(name string, tariff string) (Model, error) {
	switch name {
	case "", "zero":
		return Zero{}, nil
	case "percent":
		rates, ok := model.TaxTables[tariff]
		if !ok {
			return nil, fmt.Errorf("%w: unknown tariff %q", model.ErrConfiguration, tariff)
		}
		return NewPercent(rates), nil
	case "td_direct":
		return NewTDDirect(), nil
	}
	return nil, fmt.Errorf("%w: unknown commission model %q", model.ErrConfiguration, name)
}
