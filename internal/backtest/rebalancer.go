package backtest

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/STTM-NSU/backtester/internal/broker"
	"github.com/STTM-NSU/backtester/internal/logger"
	"github.com/STTM-NSU/backtester/internal/model"
	"github.com/shopspring/decimal"
)

type Target struct {
	Asset  model.Asset
	Weight decimal.Decimal
}

// Rebalancer keeps one portfolio at fixed target weights of its equity.
// Assets held but not targeted are closed out.
type Rebalancer struct {
	logger logger.Logger

	broker      *broker.SimulatedBroker
	portfolioID string
	targets     []Target
	cashBuffer  decimal.Decimal
}

// NewFixedWeightRebalancer checks that weights are non-negative and sum to at
// most one. cashBuffer is the share of equity left uninvested to absorb fees.
func NewFixedWeightRebalancer(logger logger.Logger, b *broker.SimulatedBroker, portfolioID string,
	targets []Target, cashBuffer decimal.Decimal) (*Rebalancer, error) {
	if _, err := b.PortfolioCashBalance(portfolioID); err != nil {
		return nil, err
	}
	if cashBuffer.IsNegative() || cashBuffer.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: cash buffer %s must be in [0, 1)", model.ErrConfiguration, cashBuffer)
	}

	total := decimal.Zero
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if t.Weight.IsNegative() {
			return nil, fmt.Errorf("%w: negative weight %s for %s", model.ErrConfiguration, t.Weight, t.Asset.Symbol)
		}
		if _, ok := seen[t.Asset.Symbol]; ok {
			return nil, fmt.Errorf("%w: duplicate target %s", model.ErrConfiguration, t.Asset.Symbol)
		}
		seen[t.Asset.Symbol] = struct{}{}
		total = total.Add(t.Weight)
	}
	if total.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: target weights of portfolio %q sum to %s", model.ErrConfiguration, portfolioID, total)
	}

	sorted := slices.Clone(targets)
	slices.SortFunc(sorted, func(a, b Target) int { return cmp.Compare(a.Asset.Symbol, b.Asset.Symbol) })

	return &Rebalancer{
		logger:      logger,
		broker:      b,
		portfolioID: portfolioID,
		targets:     sorted,
		cashBuffer:  cashBuffer,
	}, nil
}

func (r *Rebalancer) PortfolioID() string {
	return r.portfolioID
}

// Rebalance submits the orders that move the portfolio to its targets. Sells
// are queued before buys so their proceeds fund the purchases. Targets
// without a quote keep their current holding.
func (r *Rebalancer) Rebalance(t time.Time) ([]model.Order, error) {
	p, err := r.broker.Portfolio(r.portfolioID)
	if err != nil {
		return nil, err
	}
	investable := p.TotalEquity().Mul(decimal.NewFromInt(1).Sub(r.cashBuffer))

	type change struct {
		asset model.Asset
		qty   decimal.Decimal
	}
	var sells, buys []change
	add := func(asset model.Asset, diff decimal.Decimal) {
		switch diff.Sign() {
		case -1:
			sells = append(sells, change{asset, diff})
		case 1:
			buys = append(buys, change{asset, diff})
		}
	}

	targeted := make(map[string]struct{}, len(r.targets))
	for _, target := range r.targets {
		targeted[target.Asset.Symbol] = struct{}{}

		q := r.broker.LatestAssetPrice(target.Asset)
		if !q.Valid || !q.Ask.IsPositive() {
			r.logger.Warnf("(%s) no price for %s, keeping current holding in portfolio %q",
				t.Format(logger.SimTimeFormat), target.Asset.Symbol, r.portfolioID)
			continue
		}
		want := investable.Mul(target.Weight).Div(q.Ask).Floor()
		current := decimal.Zero
		if pos, ok := p.Positions().Get(target.Asset.Symbol); ok {
			current = pos.Quantity()
		}
		add(target.Asset, want.Sub(current))
	}
	for _, pos := range p.Positions().Positions() {
		if _, ok := targeted[pos.Asset().Symbol]; !ok {
			add(pos.Asset(), pos.Quantity().Neg())
		}
	}

	orders := make([]model.Order, 0, len(sells)+len(buys))
	for _, c := range append(sells, buys...) {
		o, err := model.NewOrder("", c.asset, c.qty, t)
		if err != nil {
			return orders, fmt.Errorf("%w: can't create rebalance order for %s", err, c.asset.Symbol)
		}
		if err := r.broker.SubmitOrder(r.portfolioID, o); err != nil {
			return orders, err
		}
		orders = append(orders, o)
	}

	r.logger.Infof("(%s) Rebalance of portfolio %q requested - sells: %d, buys: %d",
		t.Format(logger.SimTimeFormat), r.portfolioID, len(sells), len(buys))
	return orders, nil
}
