package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Quote is a bid/ask pair. A Quote with Valid == false is the "no price"
// sentinel; its Bid and Ask carry no meaning.
type Quote struct {
	Bid   decimal.Decimal
	Ask   decimal.Decimal
	Valid bool
}

// NoQuote is returned wherever a price is unavailable instead of an error.
var NoQuote = Quote{}

func NewQuote(bid, ask decimal.Decimal) Quote {
	return Quote{Bid: bid, Ask: ask, Valid: true}
}

// MidQuote is used by bar data, which only has a single price.
func MidQuote(price decimal.Decimal) Quote {
	return NewQuote(price, price)
}

func (q Quote) Mid() decimal.Decimal {
	return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
}

func (q Quote) String() string {
	if !q.Valid {
		return "(NaN, NaN)"
	}
	return fmt.Sprintf("(%s, %s)", q.Bid, q.Ask)
}
