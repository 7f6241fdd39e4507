package backtest

import (
	"errors"
	"testing"
	"time"

	"github.com/STTM-NSU/backtester/internal/broker"
	"github.com/STTM-NSU/backtester/internal/exchange"
	"github.com/STTM-NSU/backtester/internal/logger"
	"github.com/STTM-NSU/backtester/internal/model"
	"github.com/shopspring/decimal"
)

var (
	_t0     = time.Date(2020, 6, 1, 14, 30, 0, 0, time.UTC)
	_assetA = model.NewEquity("EQ:A")
	_assetB = model.NewEquity("EQ:B")
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newPriceSource() *exchange.FixedPriceSource {
	return exchange.NewFixedPriceSource(map[string]model.Quote{
		_assetA.Symbol: model.NewQuote(dec("99"), dec("100")),
		_assetB.Symbol: model.NewQuote(dec("49"), dec("50")),
	})
}

func newFundedBroker(t *testing.T, start time.Time, src exchange.PriceSource) *broker.SimulatedBroker {
	t.Helper()
	b, err := broker.New(broker.Params{
		StartTime:    start,
		PriceSource:  src,
		AccountID:    "test",
		InitialFunds: dec("10000"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.CreatePortfolio("p", "test"); err != nil {
		t.Fatal(err)
	}
	if err := b.SubscribeFundsToPortfolio("p", dec("10000")); err != nil {
		t.Fatal(err)
	}
	return b
}

func quantity(t *testing.T, b *broker.SimulatedBroker, symbol string) decimal.Decimal {
	t.Helper()
	p, err := b.Portfolio("p")
	if err != nil {
		t.Fatal(err)
	}
	pos, ok := p.Positions().Get(symbol)
	if !ok {
		return decimal.Zero
	}
	return pos.Quantity()
}

func TestNewFixedWeightRebalancer_Validation(t *testing.T) {
	b := newFundedBroker(t, _t0, newPriceSource())
	tests := []struct {
		name    string
		id      string
		targets []Target
		buffer  string
		wantErr error
	}{
		{"unknown portfolio", "nope", nil, "0", model.ErrUnknownPortfolio},
		{"overweight", "p", []Target{{_assetA, dec("0.6")}, {_assetB, dec("0.5")}}, "0", model.ErrConfiguration},
		{"negative weight", "p", []Target{{_assetA, dec("-0.1")}}, "0", model.ErrConfiguration},
		{"duplicate", "p", []Target{{_assetA, dec("0.1")}, {_assetA, dec("0.1")}}, "0", model.ErrConfiguration},
		{"buffer too large", "p", []Target{{_assetA, dec("0.5")}}, "1", model.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFixedWeightRebalancer(logger.NewNop(), b, tt.id, tt.targets, dec(tt.buffer))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRebalancer_Rebalance(t *testing.T) {
	b := newFundedBroker(t, _t0, newPriceSource())

	r, err := NewFixedWeightRebalancer(logger.NewNop(), b, "p",
		[]Target{{_assetB, dec("0.4")}, {_assetA, dec("0.6")}}, decimal.Zero)
	if err != nil {
		t.Fatal(err)
	}
	orders, err := r.Rebalance(_t0)
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 2 || orders[0].Asset() != _assetA || orders[1].Asset() != _assetB {
		t.Fatalf("unexpected orders %v", orders)
	}
	if err := b.Update(_t0); err != nil {
		t.Fatal(err)
	}
	if q := quantity(t, b, "EQ:A"); !q.Equal(dec("60")) {
		t.Errorf("EQ:A quantity = %s, want 60", q)
	}
	if q := quantity(t, b, "EQ:B"); !q.Equal(dec("80")) {
		t.Errorf("EQ:B quantity = %s, want 80", q)
	}
	cash, _ := b.PortfolioCashBalance("p")
	if !cash.IsZero() {
		t.Errorf("cash = %s, want 0", cash)
	}

	// Move everything into EQ:B; the EQ:A sale must be queued first.
	t1 := _t0.Add(24 * time.Hour)
	if err := b.Update(t1); err != nil {
		t.Fatal(err)
	}
	r, err = NewFixedWeightRebalancer(logger.NewNop(), b, "p", []Target{{_assetB, dec("1")}}, decimal.Zero)
	if err != nil {
		t.Fatal(err)
	}
	orders, err = r.Rebalance(t1)
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 2 || orders[0].IsBuy() || !orders[1].IsBuy() {
		t.Fatalf("expected sell then buy, got %v", orders)
	}
	if err := b.Update(t1); err != nil {
		t.Fatal(err)
	}
	if q := quantity(t, b, "EQ:A"); !q.IsZero() {
		t.Errorf("EQ:A quantity = %s, want 0", q)
	}
	if q := quantity(t, b, "EQ:B"); !q.Equal(dec("197")) {
		t.Errorf("EQ:B quantity = %s, want 197", q)
	}
	cash, _ = b.PortfolioCashBalance("p")
	if !cash.Equal(dec("90")) {
		t.Errorf("cash = %s, want 90", cash)
	}
}

func TestRebalancer_CashBufferAndMissingQuote(t *testing.T) {
	b := newFundedBroker(t, _t0, newPriceSource())
	missing := model.NewEquity("EQ:Z")

	r, err := NewFixedWeightRebalancer(logger.NewNop(), b, "p",
		[]Target{{_assetA, dec("0.5")}, {missing, dec("0.5")}}, dec("0.1"))
	if err != nil {
		t.Fatal(err)
	}
	orders, err := r.Rebalance(_t0)
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected only the EQ:A order, got %v", orders)
	}
	// 10000 * 0.9 * 0.5 / 100
	if !orders[0].Quantity().Equal(dec("45")) {
		t.Errorf("quantity = %s, want 45", orders[0].Quantity())
	}
	open, _ := b.OpenOrders("p")
	if len(open) != 1 {
		t.Errorf("expected 1 queued order, got %d", len(open))
	}
}

func TestRebalancer_FollowsMarkedEquity(t *testing.T) {
	b := newFundedBroker(t, _t0, newPriceSource())
	r, err := NewFixedWeightRebalancer(logger.NewNop(), b, "p", []Target{{_assetA, dec("0.5")}}, decimal.Zero)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Rebalance(_t0); err != nil {
		t.Fatal(err)
	}
	for range 2 {
		if err := b.Update(_t0); err != nil {
			t.Fatal(err)
		}
	}
	// Marked at the bid of 99 the equity is 9950, so the target falls to 49 shares.
	orders, err := r.Rebalance(_t0)
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 || orders[0].IsBuy() || !orders[0].Quantity().Equal(dec("-1")) {
		t.Fatalf("unexpected orders %v", orders)
	}
}
