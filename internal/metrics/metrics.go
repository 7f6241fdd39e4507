package metrics

import (
	"errors"
	"time"

	"github.com/STTM-NSU/backtester/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const _namespace = "backtester"

// Metrics are the broker and engine series exposed on /metrics.
type Metrics struct {
	OrdersSubmittedTotal *prometheus.CounterVec
	OrdersFilledTotal    *prometheus.CounterVec
	OrdersRejectedTotal  *prometheus.CounterVec
	CommissionTotal      *prometheus.CounterVec
	TradedValueTotal     *prometheus.CounterVec

	PortfolioEquity *prometheus.GaugeVec
	PortfolioCash   *prometheus.GaugeVec
	SimulationTime  prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		OrdersSubmittedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: _namespace,
				Subsystem: "broker",
				Name:      "orders_submitted_total",
				Help:      "Total number of orders queued on a portfolio",
			},
			[]string{"portfolio"},
		),
		OrdersFilledTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: _namespace,
				Subsystem: "broker",
				Name:      "orders_filled_total",
				Help:      "Total number of executed orders",
			},
			[]string{"portfolio", "side"},
		),
		OrdersRejectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: _namespace,
				Subsystem: "broker",
				Name:      "orders_rejected_total",
				Help:      "Total number of orders that failed to execute",
			},
			[]string{"portfolio", "reason"},
		),
		CommissionTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: _namespace,
				Subsystem: "broker",
				Name:      "commission_total",
				Help:      "Total commission charged",
			},
			[]string{"portfolio"},
		),
		TradedValueTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: _namespace,
				Subsystem: "broker",
				Name:      "traded_value_total",
				Help:      "Total absolute consideration of executed orders",
			},
			[]string{"portfolio"},
		),
		PortfolioEquity: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: _namespace,
				Subsystem: "portfolio",
				Name:      "equity",
				Help:      "Portfolio total equity at the last recorded point",
			},
			[]string{"portfolio"},
		),
		PortfolioCash: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: _namespace,
				Subsystem: "portfolio",
				Name:      "cash",
				Help:      "Portfolio cash balance at the last recorded point",
			},
			[]string{"portfolio"},
		),
		SimulationTime: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: _namespace,
				Subsystem: "engine",
				Name:      "simulation_time_seconds",
				Help:      "Current simulated time as a unix timestamp",
			},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: _namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of report API requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: _namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Report API request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func (m *Metrics) RecordHTTPRequest(method, route, status string, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) OrderSubmitted(portfolioID string) {
	m.OrdersSubmittedTotal.WithLabelValues(portfolioID).Inc()
}

func (m *Metrics) OrderFilled(portfolioID string, txn model.Transaction) {
	side := "buy"
	if txn.Direction() < 0 {
		side = "sell"
	}
	m.OrdersFilledTotal.WithLabelValues(portfolioID, side).Inc()
	m.CommissionTotal.WithLabelValues(portfolioID).Add(txn.Commission.InexactFloat64())
	m.TradedValueTotal.WithLabelValues(portfolioID).Add(txn.Consideration().Abs().InexactFloat64())
}

func (m *Metrics) OrderRejected(portfolioID string, err error) {
	m.OrdersRejectedTotal.WithLabelValues(portfolioID, reason(err)).Inc()
}

func reason(err error) string {
	switch {
	case errors.Is(err, model.ErrPriceUnavailable):
		return "price_unavailable"
	case errors.Is(err, model.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, model.ErrInvalidAmount):
		return "invalid_amount"
	default:
		return "other"
	}
}
