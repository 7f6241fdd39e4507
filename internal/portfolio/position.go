package portfolio

import (
	"fmt"
	"time"

	"github.com/STTM-NSU/backtester/internal/model"
	"github.com/shopspring/decimal"
)

var _hundred = decimal.NewFromInt(100)

// Position tracks a signed quantity of one asset. Book cost is kept as a
// total, signed like the quantity, so a short opened for 53,450 has a book
// cost of -53,450.
type Position struct {
	asset    model.Asset
	quantity decimal.Decimal
	bookCost decimal.Decimal

	currentPrice decimal.Decimal
	currentTime  time.Time

	realisedGain decimal.Decimal
	commission   decimal.Decimal
}

func NewPosition(asset model.Asset) *Position {
	return &Position{asset: asset}
}

func (p *Position) Asset() model.Asset               { return p.asset }
func (p *Position) Quantity() decimal.Decimal        { return p.quantity }
func (p *Position) BookCost() decimal.Decimal        { return p.bookCost }
func (p *Position) CurrentPrice() decimal.Decimal    { return p.currentPrice }
func (p *Position) CurrentTime() time.Time           { return p.currentTime }
func (p *Position) RealisedGain() decimal.Decimal    { return p.realisedGain }
func (p *Position) TotalCommission() decimal.Decimal { return p.commission }
func (p *Position) Direction() int                   { return p.quantity.Sign() }
func (p *Position) MarketValue() decimal.Decimal     { return p.currentPrice.Mul(p.quantity) }
func (p *Position) UnrealisedGain() decimal.Decimal  { return p.MarketValue().Sub(p.bookCost) }

// BookCostPerShare is zero for a flat position.
func (p *Position) BookCostPerShare() decimal.Decimal {
	if p.quantity.IsZero() {
		return decimal.Zero
	}
	return p.bookCost.Div(p.quantity)
}

// UnrealisedPercGain is the gain relative to |book cost|, in percent, and zero
// when there is no book cost.
func (p *Position) UnrealisedPercGain() decimal.Decimal {
	if p.bookCost.IsZero() {
		return decimal.Zero
	}
	return p.UnrealisedGain().Div(p.bookCost.Abs()).Mul(_hundred)
}

// Transact applies an executed transaction.
//
// Same-direction trades blend into the cash-weighted book cost. Opposite
// trades close at the current average cost and realise the difference; any
// quantity beyond flat opens a fresh position at the fill price. Commission is
// added to book cost on the opening part and charged to realised gain on the
// closing part, pro rata by quantity.
func (p *Position) Transact(txn model.Transaction) error {
	if txn.Asset.Symbol != p.asset.Symbol {
		return fmt.Errorf("can't apply %s transaction to %s position", txn.Asset.Symbol, p.asset.Symbol)
	}
	if txn.Quantity.IsZero() {
		return fmt.Errorf("%w: zero quantity transaction", model.ErrInvalidAmount)
	}

	newQty := p.quantity.Add(txn.Quantity)

	if p.quantity.IsZero() || p.quantity.Sign() == txn.Quantity.Sign() {
		p.bookCost = p.bookCost.Add(txn.Consideration()).Add(txn.Commission)
	} else {
		closing := decimal.Min(txn.Quantity.Abs(), p.quantity.Abs())
		closedSigned := closing.Mul(decimal.NewFromInt(int64(p.quantity.Sign())))
		avg := p.BookCostPerShare()
		closingCommission := txn.Commission.Mul(closing).Div(txn.Quantity.Abs())

		p.realisedGain = p.realisedGain.
			Add(closedSigned.Mul(txn.Price.Sub(avg))).
			Sub(closingCommission)

		switch {
		case newQty.IsZero():
			p.bookCost = decimal.Zero
		case newQty.Sign() == p.quantity.Sign():
			p.bookCost = avg.Mul(newQty)
		default:
			p.bookCost = txn.Price.Mul(newQty).Add(txn.Commission.Sub(closingCommission))
		}
	}

	p.quantity = newQty
	p.commission = p.commission.Add(txn.Commission)
	if p.currentTime.IsZero() || !txn.Time.Before(p.currentTime) {
		p.currentPrice = txn.Price
		p.currentTime = txn.Time
	}
	return nil
}

// Mark revalues the position at price.
func (p *Position) Mark(price decimal.Decimal, t time.Time) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: negative trade price %s for %s", model.ErrInvalidAmount, price, p.asset.Symbol)
	}
	if t.Before(p.currentTime) {
		return fmt.Errorf("%w: mark at %s is before %s for %s", model.ErrNonMonotonicTime,
			t.Format(time.RFC3339), p.currentTime.Format(time.RFC3339), p.asset.Symbol)
	}
	p.currentPrice = price
	p.currentTime = t
	return nil
}

func (p *Position) String() string {
	return fmt.Sprintf("Position(asset=%s, quantity=%s, book_cost=%s, current_price=%s)",
		p.asset.Symbol, p.quantity, p.bookCost, p.currentPrice)
}
