package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/STTM-NSU/backtester/internal/broker"
	"github.com/STTM-NSU/backtester/internal/exchange"
	"github.com/STTM-NSU/backtester/internal/logger"
	"github.com/STTM-NSU/backtester/internal/metrics"
	"github.com/STTM-NSU/backtester/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

type recordingClock struct {
	times  []time.Time
	failAt int
}

func (c *recordingClock) Update(t time.Time) error {
	c.times = append(c.times, t)
	if c.failAt > 0 && len(c.times) == c.failAt {
		return errors.New("feed exhausted")
	}
	return nil
}

func newTestEngine(t *testing.T, clock MarketClock, rule Rule) (*Engine, *broker.SimulatedBroker) {
	t.Helper()
	b := newFundedBroker(t, date(2020, 6, 1), newPriceSource())
	r, err := NewFixedWeightRebalancer(logger.NewNop(), b, "p", []Target{{_assetA, dec("1")}}, decimal.Zero)
	if err != nil {
		t.Fatal(err)
	}
	e := NewEngine(logger.NewNop(), clock, b, Params{
		From: date(2020, 6, 1),
		To:   date(2020, 6, 5),
		Rule: rule,
	}, r)
	return e, b
}

func TestEngine_Run(t *testing.T) {
	clock := &recordingClock{}
	e, b := newTestEngine(t, clock, nil)
	reg := prometheus.NewRegistry()
	e.SetMetrics(metrics.NewMetrics(reg))

	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	// The first day updates at the open twice around the rebalance.
	if len(clock.times) != 11 {
		t.Fatalf("clock updated %d times, want 11", len(clock.times))
	}
	if !clock.times[0].Equal(clock.times[1]) || !clock.times[0].Equal(exchange.DefaultHours.OpenAt(date(2020, 6, 1))) {
		t.Errorf("unexpected first updates %v", clock.times[:2])
	}
	if got := len(b.Transactions()); got != 1 {
		t.Errorf("expected one fill, got %d", got)
	}

	curves := e.Curves()
	for _, id := range []string{"p", broker.MasterAccount} {
		c := curves[id]
		if len(c) != 5 {
			t.Fatalf("curve %q has %d points, want 5", id, len(c))
		}
		for _, pt := range c {
			if !pt.Equity.Equal(dec("9900")) {
				t.Errorf("curve %q at %s = %s, want 9900", id, pt.Ts.Format(logger.SimTimeFormat), pt.Equity)
			}
		}
	}
	if ids := e.CurveIDs(); len(ids) != 2 || ids[0] != broker.MasterAccount || ids[1] != "p" {
		t.Errorf("unexpected curve ids %v", ids)
	}

	lastClose := exchange.DefaultHours.CloseAt(date(2020, 6, 5))
	if got := testutil.ToFloat64(e.metrics.SimulationTime); got != float64(lastClose.Unix()) {
		t.Errorf("simulation time gauge = %v, want %v", got, float64(lastClose.Unix()))
	}
	if got := testutil.ToFloat64(e.metrics.PortfolioEquity.WithLabelValues("p")); got != 9900 {
		t.Errorf("equity gauge = %v, want 9900", got)
	}

	report := e.Report(0)
	if len(report.Strategy.EquityCurve) != 5 || report.Strategy.TotalReturn != 0 {
		t.Errorf("unexpected report %+v", report.Strategy)
	}
	if report.Benchmark != nil {
		t.Error("benchmark should be empty")
	}
}

func TestEngine_RunDailyRebalance(t *testing.T) {
	e, b := newTestEngine(t, &recordingClock{}, DailyRule())
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Marked at 99 the target drops to 99 shares on day two and stays there.
	if got := len(b.Transactions()); got != 2 {
		t.Errorf("expected 2 fills, got %d", got)
	}
	e.View(func(b *broker.SimulatedBroker) {
		eq, _ := b.PortfolioTotalEquity("p")
		if !eq.Equal(dec("9900")) {
			t.Errorf("equity = %s, want 9900", eq)
		}
	})
}

func TestEngine_RunHourlyMarks(t *testing.T) {
	clock := &recordingClock{}
	b := newFundedBroker(t, date(2020, 6, 1), newPriceSource())
	e := NewEngine(logger.NewNop(), clock, b, Params{
		From:        date(2020, 6, 1),
		To:          date(2020, 6, 1),
		HourlyMarks: true,
	})
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	open := exchange.DefaultHours.OpenAt(date(2020, 6, 1))
	want := []time.Time{open, open}
	for h := 1; h <= 6; h++ {
		want = append(want, open.Add(time.Duration(h)*time.Hour))
	}
	want = append(want, exchange.DefaultHours.CloseAt(date(2020, 6, 1)))
	if len(clock.times) != len(want) {
		t.Fatalf("clock updated %d times, want %d: %v", len(clock.times), len(want), clock.times)
	}
	for i := range want {
		if !clock.times[i].Equal(want[i]) {
			t.Errorf("update %d at %s, want %s", i, clock.times[i].Format(logger.SimTimeFormat),
				want[i].Format(logger.SimTimeFormat))
		}
	}
	if got := len(e.Curves()["p"]); got != 1 {
		t.Errorf("expected one close-of-day point, got %d", got)
	}
}

func TestEngine_RunErrors(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		e, _ := newTestEngine(t, &recordingClock{}, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := e.Run(ctx); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if len(e.Curves()) != 0 {
			t.Error("no curve should be recorded")
		}
	})

	t.Run("clock failure", func(t *testing.T) {
		clock := &recordingClock{failAt: 4}
		e, _ := newTestEngine(t, clock, nil)
		if err := e.Run(context.Background()); err == nil {
			t.Fatal("expected clock error")
		}
		if got := len(e.Curves()["p"]); got != 1 {
			t.Errorf("expected one recorded day, got %d", got)
		}
	})

	t.Run("no business days", func(t *testing.T) {
		b := newFundedBroker(t, date(2020, 6, 6), newPriceSource())
		e := NewEngine(logger.NewNop(), &recordingClock{}, b, Params{From: date(2020, 6, 6), To: date(2020, 6, 7)})
		if err := e.Run(context.Background()); !errors.Is(err, model.ErrConfiguration) {
			t.Fatalf("expected ErrConfiguration, got %v", err)
		}
	})
}

func TestEngine_WithSimulatedExchange(t *testing.T) {
	day1, day2 := date(2020, 6, 1), date(2020, 6, 2)
	hours := exchange.DefaultHours
	src := exchange.NewTablePriceSource(_assetA, map[time.Time]model.Quote{
		hours.OpenAt(day1):  model.MidQuote(dec("100")),
		hours.CloseAt(day1): model.MidQuote(dec("110")),
		hours.OpenAt(day2):  model.MidQuote(dec("120")),
		hours.CloseAt(day2): model.MidQuote(dec("90")),
	})
	ex := exchange.NewSimulatedExchange(logger.NewNop(), day1, hours, src)

	b, err := broker.New(broker.Params{StartTime: day1, PriceSource: ex, InitialFunds: dec("1000")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.CreatePortfolio(1, ""); err != nil {
		t.Fatal(err)
	}
	if err := b.SubscribeFundsToPortfolio("1", dec("1000")); err != nil {
		t.Fatal(err)
	}
	r, err := NewFixedWeightRebalancer(logger.NewNop(), b, "1", []Target{{_assetA, dec("1")}}, decimal.Zero)
	if err != nil {
		t.Fatal(err)
	}

	e := NewEngine(logger.NewNop(), ex, b, Params{From: day1, To: day2, Hours: hours, StrategyPortfolio: "1"}, r)
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	curve := e.Curves()["1"]
	if len(curve) != 2 || !curve[0].Equity.Equal(dec("1100")) || !curve[1].Equity.Equal(dec("900")) {
		t.Fatalf("unexpected curve %+v", curve)
	}
	report := e.Report(252)
	if report.Strategy.MaxDrawdown <= 0 {
		t.Errorf("expected a drawdown, got %v", report.Strategy.MaxDrawdown)
	}
}
