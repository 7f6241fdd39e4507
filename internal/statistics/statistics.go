package statistics

import (
	"cmp"
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const DefaultPeriods = 252

type EquityPoint struct {
	Ts     time.Time
	Equity decimal.Decimal
}

// Sample is a [unix milliseconds, value] pair.
type Sample [2]float64

type Stats struct {
	EquityCurve         []Sample `json:"equity_curve"`
	Returns             []Sample `json:"returns"`
	CumReturns          []Sample `json:"cum_returns"`
	Drawdowns           []Sample `json:"drawdowns"`
	TotalReturn         float64  `json:"total_return"`
	MaxDrawdown         float64  `json:"max_drawdown"`
	MaxDrawdownDuration int      `json:"max_drawdown_duration"`
	CAGR                float64  `json:"cagr"`
	AnnualisedVol       float64  `json:"annualised_vol"`
	Sharpe              float64  `json:"sharpe"`
	Sortino             float64  `json:"sortino"`
}

// Report holds the statistics of a strategy and, optionally, its benchmark.
type Report struct {
	Strategy  Stats  `json:"strategy"`
	Benchmark *Stats `json:"benchmark,omitempty"`
}

func samples(ts []time.Time, values []float64) []Sample {
	return lo.Map(values, func(v float64, i int) Sample {
		return Sample{float64(ts[i].UnixMilli()), v}
	})
}

// Calculate derives performance statistics from an equity curve sampled
// periods times a year.
func Calculate(curve []EquityPoint, periods int) Stats {
	periods = cmp.Or(periods, DefaultPeriods)
	ts := lo.Map(curve, func(p EquityPoint, _ int) time.Time { return p.Ts })
	equity := lo.Map(curve, func(p EquityPoint, _ int) float64 { return p.Equity.InexactFloat64() })

	returns := Returns(equity)
	cum := CumReturns(returns)
	dd, maxDD, ddDur := Drawdowns(cum)

	s := Stats{
		EquityCurve:         samples(ts, equity),
		Returns:             samples(ts, returns),
		CumReturns:          samples(ts, cum),
		Drawdowns:           samples(ts, dd),
		MaxDrawdown:         maxDD,
		MaxDrawdownDuration: ddDur,
		CAGR:                CAGR(cum, periods),
		AnnualisedVol:       AnnualisedVol(returns, periods),
		Sharpe:              Sharpe(returns, periods),
		Sortino:             Sortino(returns, periods),
	}
	if len(cum) > 0 {
		s.TotalReturn = cum[len(cum)-1] - 1
	}
	return s
}

func NewReport(strategy, benchmark []EquityPoint, periods int) Report {
	r := Report{Strategy: Calculate(strategy, periods)}
	if len(benchmark) > 0 {
		b := Calculate(benchmark, periods)
		r.Benchmark = &b
	}
	return r
}

func (r Report) WriteJSON(path string) error {
	data, err := sonic.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: can't marshal statistics", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: can't write statistics to %s", err, path)
	}
	return nil
}

func ReadJSON(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("%w: can't read statistics from %s", err, path)
	}
	var r Report
	if err := sonic.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("%w: can't unmarshal statistics", err)
	}
	return r, nil
}
