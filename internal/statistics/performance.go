package statistics

import (
	"math"

	"github.com/samber/lo"
)

// Returns are simple period returns; the first period is 0.
func Returns(equity []float64) []float64 {
	res := make([]float64, len(equity))
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		res[i] = equity[i]/equity[i-1] - 1
	}
	return res
}

// CumReturns compounds returns starting from 1.
func CumReturns(returns []float64) []float64 {
	res := make([]float64, len(returns))
	acc := 1.0
	for i, r := range returns {
		acc *= 1 + r
		res[i] = acc
	}
	return res
}

// Drawdowns returns the drawdown series of cumulative returns relative to
// the running high water mark, the maximum drawdown and the longest
// drawdown in periods.
func Drawdowns(cum []float64) ([]float64, float64, int) {
	dd := make([]float64, len(cum))
	var (
		hwm    float64
		maxDD  float64
		dur    int
		maxDur int
	)
	for i, v := range cum {
		if i == 0 || v > hwm {
			hwm = v
		}
		if hwm > 0 {
			dd[i] = (hwm - v) / hwm
		}
		if dd[i] > 0 {
			dur++
		} else {
			dur = 0
		}
		maxDD = max(maxDD, dd[i])
		maxDur = max(maxDur, dur)
	}
	return dd, maxDD, maxDur
}

// CAGR is the compound annual growth rate of cumulative returns sampled
// periods times a year.
func CAGR(cum []float64, periods int) float64 {
	if len(cum) == 0 || periods <= 0 {
		return 0
	}
	years := float64(len(cum)) / float64(periods)
	last := cum[len(cum)-1]
	if last <= 0 {
		return -1
	}
	return math.Pow(last, 1/years) - 1
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return lo.Sum(xs) / float64(len(xs))
}

// stdDev is the sample standard deviation.
func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	ss := lo.SumBy(xs, func(x float64) float64 { return (x - m) * (x - m) })
	return math.Sqrt(ss / float64(len(xs)-1))
}

func AnnualisedVol(returns []float64, periods int) float64 {
	return stdDev(returns) * math.Sqrt(float64(periods))
}

func Sharpe(returns []float64, periods int) float64 {
	sd := stdDev(returns)
	if sd == 0 {
		return 0
	}
	return math.Sqrt(float64(periods)) * mean(returns) / sd
}

func Sortino(returns []float64, periods int) float64 {
	downside := lo.Filter(returns, func(r float64, _ int) bool { return r < 0 })
	sd := stdDev(downside)
	if sd == 0 {
		return 0
	}
	return math.Sqrt(float64(periods)) * mean(returns) / sd
}
