package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/STTM-NSU/backtester/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	if m.OrdersFilledTotal == nil || m.PortfolioEquity == nil || m.SimulationTime == nil {
		t.Fatal("metrics not initialised")
	}
}

func TestOrderFilled(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	txn := model.Transaction{
		Asset:      model.NewEquity("EQ:X"),
		Quantity:   decimal.NewFromInt(-10),
		Time:       time.Now(),
		Price:      decimal.RequireFromString("2.5"),
		Commission: decimal.RequireFromString("1.25"),
	}
	m.OrderFilled("P1", txn)
	m.OrderFilled("P1", txn)

	if got := testutil.ToFloat64(m.OrdersFilledTotal.WithLabelValues("P1", "sell")); got != 2 {
		t.Errorf("filled sells = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CommissionTotal.WithLabelValues("P1")); got != 2.5 {
		t.Errorf("commission = %v, want 2.5", got)
	}
	if got := testutil.ToFloat64(m.TradedValueTotal.WithLabelValues("P1")); got != 50 {
		t.Errorf("traded value = %v, want 50", got)
	}
}

func TestOrderRejected(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.OrderRejected("P1", fmt.Errorf("%w: no price", model.ErrPriceUnavailable))
	m.OrderRejected("P1", fmt.Errorf("%w: broke", model.ErrInsufficientFunds))
	m.OrderRejected("P1", fmt.Errorf("boom"))

	for _, r := range []string{"price_unavailable", "insufficient_funds", "other"} {
		if got := testutil.ToFloat64(m.OrdersRejectedTotal.WithLabelValues("P1", r)); got != 1 {
			t.Errorf("%s = %v, want 1", r, got)
		}
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordHTTPRequest("GET", "/portfolios/{id}", "200", 15*time.Millisecond)
	m.RecordHTTPRequest("GET", "/portfolios/{id}", "404", time.Millisecond)

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/portfolios/{id}", "200")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.HTTPRequestDuration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}
