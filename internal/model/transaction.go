package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is an executed order as applied to a portfolio.
type Transaction struct {
	Asset      Asset           `json:"asset"`
	Quantity   decimal.Decimal `json:"quantity"`
	Time       time.Time       `json:"time"`
	Price      decimal.Decimal `json:"price"`
	OrderID    string          `json:"order_id"`
	Commission decimal.Decimal `json:"commission"`
}

func (t Transaction) Direction() int {
	return t.Quantity.Sign()
}

// Consideration is price * quantity, signed like the quantity.
func (t Transaction) Consideration() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}

// CashFlow is the change applied to portfolio cash: negative for buys,
// positive for sells, always reduced by commission.
func (t Transaction) CashFlow() decimal.Decimal {
	return t.Consideration().Neg().Sub(t.Commission)
}
