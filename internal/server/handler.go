package server

import (
	"errors"
	"net/http"

	"github.com/STTM-NSU/backtester/internal/broker"
	"github.com/STTM-NSU/backtester/internal/model"
	"github.com/STTM-NSU/backtester/internal/portfolio"
	"github.com/STTM-NSU/backtester/internal/statistics"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// Backtest is the read side of a running or finished simulation.
type Backtest interface {
	// View calls f while no simulation step is in progress.
	View(f func(b *broker.SimulatedBroker))
	Curves() map[string][]statistics.EquityPoint
	Report(periods int) statistics.Report
}

type Handler struct {
	bt      Backtest
	periods int
}

func NewHandler(bt Backtest, periods int) *Handler {
	return &Handler{bt: bt, periods: periods}
}

func (h *Handler) ListPortfolios(w http.ResponseWriter, r *http.Request) {
	var snapshots []portfolio.Snapshot
	h.bt.View(func(b *broker.SimulatedBroker) {
		for _, p := range b.ListAllPortfolios() {
			snapshots = append(snapshots, p.ToSnapshot())
		}
	})
	WriteJSON(w, http.StatusOK, snapshots)
}

func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	var (
		snap portfolio.Snapshot
		err  error
	)
	h.bt.View(func(b *broker.SimulatedBroker) {
		snap, err = b.PortfolioSnapshot(chi.URLParam(r, "id"))
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, snap)
}

func (h *Handler) GetPortfolioHistory(w http.ResponseWriter, r *http.Request) {
	var (
		history []portfolio.Event
		err     error
	)
	h.bt.View(func(b *broker.SimulatedBroker) {
		var p *portfolio.Portfolio
		if p, err = b.Portfolio(chi.URLParam(r, "id")); err == nil {
			history = p.History()
		}
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, history)
}

func (h *Handler) GetCurve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	curve, ok := h.bt.Curves()[id]
	if !ok {
		WriteError(w, http.StatusNotFound, "not_found", "no equity curve for "+id)
		return
	}
	WriteJSON(w, http.StatusOK, curve)
}

func (h *Handler) GetAccountEquity(w http.ResponseWriter, r *http.Request) {
	var equity map[string]decimal.Decimal
	h.bt.View(func(b *broker.SimulatedBroker) {
		equity = b.AccountTotalEquity()
	})
	WriteJSON(w, http.StatusOK, equity)
}

// GetAccountCash returns every balance, or the one named by ?currency=.
func (h *Handler) GetAccountCash(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("currency")
	if code == "" {
		var balances map[model.Currency]decimal.Decimal
		h.bt.View(func(b *broker.SimulatedBroker) {
			balances = b.AccountCashBalances()
		})
		WriteJSON(w, http.StatusOK, balances)
		return
	}

	currency, err := model.ParseCurrency(code)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	var balance decimal.Decimal
	h.bt.View(func(b *broker.SimulatedBroker) {
		balance, err = b.AccountCashBalance(currency)
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[model.Currency]decimal.Decimal{currency: balance})
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	var txns []model.Transaction
	h.bt.View(func(b *broker.SimulatedBroker) {
		txns = b.Transactions()
	})
	WriteJSON(w, http.StatusOK, txns)
}

func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.bt.Report(h.periods))
}

func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrUnknownPortfolio):
		WriteError(w, http.StatusNotFound, "unknown_portfolio", err.Error())
	case errors.Is(err, model.ErrUnknownCurrency):
		WriteError(w, http.StatusBadRequest, "unknown_currency", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
