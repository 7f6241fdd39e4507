package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/STTM-NSU/backtester/internal/logger"
	"github.com/STTM-NSU/backtester/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter exposes the report API. m and gatherer may be nil, which
// disables request metrics and /metrics respectively.
func NewRouter(h *Handler, logger logger.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogging(logger, m))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/portfolios", func(r chi.Router) {
		r.Get("/", h.ListPortfolios)
		r.Get("/{id}", h.GetPortfolio)
		r.Get("/{id}/history", h.GetPortfolioHistory)
	})
	r.Get("/curves/{id}", h.GetCurve)

	r.Get("/account/equity", h.GetAccountEquity)
	r.Get("/account/cash", h.GetAccountCash)
	r.Get("/transactions", h.ListTransactions)
	r.Get("/statistics", h.GetStatistics)

	return r
}

func requestLogging(logger logger.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			if m != nil {
				m.RecordHTTPRequest(r.Method, route, strconv.Itoa(status), time.Since(start))
			}
			logger.Debugf("%s %s %d %s", r.Method, r.URL.Path, status, time.Since(start))
		})
	}
}
