package portfolio

import (
	"github.com/shopspring/decimal"
)

type Holding struct {
	Quantity     decimal.Decimal `json:"quantity"`
	BookCost     decimal.Decimal `json:"book_cost"`
	MarketValue  decimal.Decimal `json:"market_value"`
	Gain         decimal.Decimal `json:"gain"`
	PercGain     decimal.Decimal `json:"perc_gain"`
	RealisedGain decimal.Decimal `json:"realised_gain"`
}

// Snapshot is a read-only projection of a portfolio.
type Snapshot struct {
	ID                   string             `json:"portfolio_id"`
	Name                 string             `json:"name"`
	Currency             string             `json:"currency"`
	TotalCash            decimal.Decimal    `json:"total_cash"`
	TotalSecuritiesValue decimal.Decimal    `json:"total_securities_value"`
	TotalEquity          decimal.Decimal    `json:"total_equity"`
	TotalRealisedGain    decimal.Decimal    `json:"total_realised_gain"`
	Holdings             map[string]Holding `json:"holdings"`
}

func (p *Portfolio) ToSnapshot() Snapshot {
	holdings := make(map[string]Holding, p.positions.Len())
	for _, pos := range p.positions.Positions() {
		holdings[pos.Asset().Symbol] = Holding{
			Quantity:     pos.Quantity(),
			BookCost:     pos.BookCost(),
			MarketValue:  pos.MarketValue(),
			Gain:         pos.UnrealisedGain(),
			PercGain:     pos.UnrealisedPercGain(),
			RealisedGain: pos.RealisedGain(),
		}
	}

	return Snapshot{
		ID:                   p.id,
		Name:                 p.name,
		Currency:             p.currency.String(),
		TotalCash:            p.cash,
		TotalSecuritiesValue: p.TotalMarketValue(),
		TotalEquity:          p.TotalEquity(),
		TotalRealisedGain:    p.realisedGain,
		Holdings:             holdings,
	}
}
