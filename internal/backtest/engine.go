package backtest

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/STTM-NSU/backtester/internal/broker"
	"github.com/STTM-NSU/backtester/internal/exchange"
	"github.com/STTM-NSU/backtester/internal/logger"
	"github.com/STTM-NSU/backtester/internal/metrics"
	"github.com/STTM-NSU/backtester/internal/model"
	"github.com/STTM-NSU/backtester/internal/statistics"
)

// MarketClock is anything advanced alongside the broker, usually the
// simulated exchange.
type MarketClock interface {
	Update(t time.Time) error
}

type Params struct {
	From  time.Time
	To    time.Time
	Hours exchange.Hours
	Rule  Rule

	// HourlyMarks steps the broker every hour between the open and the
	// close, so orders queued outside the open fill intraday.
	HourlyMarks bool

	// StrategyPortfolio and BenchmarkPortfolio select the curves used by
	// Report. An empty StrategyPortfolio means the master account.
	StrategyPortfolio  string
	BenchmarkPortfolio string
}

// Engine drives the broker through every business day between From and To.
// Orders are submitted and filled at the open, equity is recorded at the close.
type Engine struct {
	logger  logger.Logger
	metrics *metrics.Metrics

	clock       MarketClock
	broker      *broker.SimulatedBroker
	rebalancers []*Rebalancer
	params      Params

	mu     sync.RWMutex
	curves map[string][]statistics.EquityPoint
}

func NewEngine(logger logger.Logger, clock MarketClock, b *broker.SimulatedBroker, params Params,
	rebalancers ...*Rebalancer) *Engine {
	if params.Hours == (exchange.Hours{}) {
		params.Hours = exchange.DefaultHours
	}
	if params.Rule == nil {
		params.Rule = OnceRule()
	}
	return &Engine{
		logger:      logger,
		clock:       clock,
		broker:      b,
		rebalancers: rebalancers,
		params:      params,
		curves:      make(map[string][]statistics.EquityPoint),
	}
}

func (e *Engine) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// View runs f with the broker locked against the simulation loop.
func (e *Engine) View(f func(b *broker.SimulatedBroker)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	f(e.broker)
}

func (e *Engine) Run(ctx context.Context) error {
	days := DailyBusinessDays(e.params.From, e.params.To)
	if len(days) == 0 {
		return fmt.Errorf("%w: no business days between %s and %s", model.ErrConfiguration,
			e.params.From.Format(time.DateOnly), e.params.To.Format(time.DateOnly))
	}
	e.logger.Infof("Backtest started - from: %s, to: %s, days: %d",
		days[0].Format(time.DateOnly), days[len(days)-1].Format(time.DateOnly), len(days))

	for _, day := range days {
		select {
		case <-ctx.Done():
			e.logger.Warnf("Backtest interrupted at %s", day.Format(time.DateOnly))
			return ctx.Err()
		default:
		}
		if err := e.runDay(day); err != nil {
			return err
		}
	}

	e.View(func(b *broker.SimulatedBroker) {
		e.logger.Infof("Backtest finished - account equity: %s",
			b.BaseCurrency().Format(b.AccountTotalEquity()[broker.MasterAccount]))
	})
	return nil
}

func (e *Engine) runDay(day time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	open := e.params.Hours.OpenAt(day)
	if err := e.step(open); err != nil {
		return err
	}
	if e.params.Rule.ShouldRebalance(day) {
		for _, r := range e.rebalancers {
			if _, err := r.Rebalance(open); err != nil {
				e.logger.Errorf("(%s) can't rebalance portfolio %q: %s",
					open.Format(logger.SimTimeFormat), r.PortfolioID(), err)
			}
		}
		if err := e.step(open); err != nil {
			return err
		}
	}

	closeAt := e.params.Hours.CloseAt(day)
	if e.params.HourlyMarks {
		for _, h := range DivideIntoHours(open, closeAt) {
			if !h.After(open) {
				continue
			}
			if err := e.step(h); err != nil {
				return err
			}
		}
	}
	if err := e.step(closeAt); err != nil {
		return err
	}
	e.record(closeAt)
	return nil
}

// step advances the clock and the broker to t. Rejected orders are logged and
// the run goes on; a clock error stops it.
func (e *Engine) step(t time.Time) error {
	if err := e.clock.Update(t); err != nil {
		return fmt.Errorf("%w: can't advance market clock", err)
	}
	err := e.broker.Update(t)
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrNonMonotonicTime) {
		return fmt.Errorf("%w: can't advance broker", err)
	}
	e.logger.Warnf("(%s) some orders were not executed: %s", t.Format(logger.SimTimeFormat), err)
	return nil
}

func (e *Engine) record(t time.Time) {
	for id, equity := range e.broker.AccountTotalEquity() {
		e.curves[id] = append(e.curves[id], statistics.EquityPoint{Ts: t, Equity: equity})
		if e.metrics != nil {
			e.metrics.PortfolioEquity.WithLabelValues(id).Set(equity.InexactFloat64())
		}
	}
	if e.metrics == nil {
		return
	}
	for _, p := range e.broker.ListAllPortfolios() {
		e.metrics.PortfolioCash.WithLabelValues(p.ID()).Set(p.TotalCash().InexactFloat64())
	}
	e.metrics.SimulationTime.Set(float64(t.Unix()))
}

// Curves returns the recorded close-of-day equity of every portfolio and of
// the master account.
func (e *Engine) Curves() map[string][]statistics.EquityPoint {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string][]statistics.EquityPoint, len(e.curves))
	for id, c := range e.curves {
		out[id] = slices.Clone(c)
	}
	return out
}

func (e *Engine) CurveIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Sorted(maps.Keys(e.curves))
}

func (e *Engine) Report(periods int) statistics.Report {
	curves := e.Curves()
	strategy := e.params.StrategyPortfolio
	if strategy == "" {
		strategy = broker.MasterAccount
	}
	var benchmark []statistics.EquityPoint
	if e.params.BenchmarkPortfolio != "" {
		benchmark = curves[e.params.BenchmarkPortfolio]
	}
	return statistics.NewReport(curves[strategy], benchmark, periods)
}
