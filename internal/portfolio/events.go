package portfolio

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventSubscription     EventType = "subscription"
	EventWithdrawal       EventType = "withdrawal"
	EventAssetTransaction EventType = "asset_transaction"
	EventDividend         EventType = "dividend"
)

// Event is one line of the portfolio cash ledger.
type Event struct {
	Time        time.Time       `json:"date"`
	Type        EventType       `json:"type"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}
