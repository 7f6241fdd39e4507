package portfolio

import (
	"maps"
	"slices"

	"github.com/STTM-NSU/backtester/internal/model"
	"github.com/shopspring/decimal"
)

// PositionHandler keeps the open positions of a portfolio keyed by symbol.
// Flat positions are dropped as soon as a transaction closes them.
type PositionHandler struct {
	positions map[string]*Position
}

func NewPositionHandler() *PositionHandler {
	return &PositionHandler{
		positions: make(map[string]*Position),
	}
}

// Transact applies txn to the asset's position and returns the gain it realised.
func (h *PositionHandler) Transact(txn model.Transaction) (decimal.Decimal, error) {
	pos, ok := h.positions[txn.Asset.Symbol]
	if !ok {
		pos = NewPosition(txn.Asset)
	}
	before := pos.RealisedGain()
	if err := pos.Transact(txn); err != nil {
		return decimal.Zero, err
	}
	realised := pos.RealisedGain().Sub(before)
	if pos.Quantity().IsZero() {
		delete(h.positions, txn.Asset.Symbol)
		return realised, nil
	}
	h.positions[txn.Asset.Symbol] = pos
	return realised, nil
}

func (h *PositionHandler) Get(symbol string) (*Position, bool) {
	p, ok := h.positions[symbol]
	return p, ok
}

func (h *PositionHandler) Len() int {
	return len(h.positions)
}

// Symbols returns the held symbols in ascending order.
func (h *PositionHandler) Symbols() []string {
	return slices.Sorted(maps.Keys(h.positions))
}

// Positions returns the open positions ordered by symbol.
func (h *PositionHandler) Positions() []*Position {
	res := make([]*Position, 0, len(h.positions))
	for _, s := range h.Symbols() {
		res = append(res, h.positions[s])
	}
	return res
}

func (h *PositionHandler) sum(f func(*Position) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, p := range h.positions {
		total = total.Add(f(p))
	}
	return total
}

func (h *PositionHandler) TotalBookCost() decimal.Decimal {
	return h.sum((*Position).BookCost)
}

func (h *PositionHandler) TotalMarketValue() decimal.Decimal {
	return h.sum((*Position).MarketValue)
}

func (h *PositionHandler) TotalUnrealisedGain() decimal.Decimal {
	return h.sum((*Position).UnrealisedGain)
}

func (h *PositionHandler) TotalUnrealisedPercGain() decimal.Decimal {
	tbc := h.TotalBookCost()
	if tbc.IsZero() {
		return decimal.Zero
	}
	return h.TotalUnrealisedGain().Div(tbc.Abs()).Mul(_hundred)
}
