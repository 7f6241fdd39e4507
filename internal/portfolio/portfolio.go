package portfolio

import (
	"fmt"
	"time"

	"github.com/STTM-NSU/backtester/internal/logger"
	"github.com/STTM-NSU/backtester/internal/model"
	"github.com/shopspring/decimal"
)

// Portfolio is a sub-account holding cash and positions in one currency.
// It is not safe for concurrent use; the broker that owns it serialises access.
type Portfolio struct {
	logger logger.Logger

	id       string
	name     string
	currency model.Currency

	startTime   time.Time
	currentTime time.Time

	cash         decimal.Decimal
	realisedGain decimal.Decimal
	positions    *PositionHandler
	history      []Event
}

func NewPortfolio(l logger.Logger, start time.Time, currency model.Currency, id, name string) (*Portfolio, error) {
	if !currency.Supported() {
		return nil, fmt.Errorf("%w: portfolio %q currency %q", model.ErrUnknownCurrency, id, currency)
	}

	p := &Portfolio{
		logger:      l.With("portfolio", id),
		id:          id,
		name:        name,
		currency:    currency,
		startTime:   start,
		currentTime: start,
		positions:   NewPositionHandler(),
		history:     make([]Event, 0),
	}
	p.logger.Infof("(%s) Portfolio %q instance initialised", start.Format(logger.SimTimeFormat), id)
	return p, nil
}

func (p *Portfolio) ID() string                         { return p.id }
func (p *Portfolio) Name() string                       { return p.name }
func (p *Portfolio) Currency() model.Currency           { return p.currency }
func (p *Portfolio) StartTime() time.Time               { return p.startTime }
func (p *Portfolio) CurrentTime() time.Time             { return p.currentTime }
func (p *Portfolio) TotalCash() decimal.Decimal         { return p.cash }
func (p *Portfolio) TotalRealisedGain() decimal.Decimal { return p.realisedGain }
func (p *Portfolio) Positions() *PositionHandler        { return p.positions }

// TotalMarketValue is the value of all securities held, excluding cash.
func (p *Portfolio) TotalMarketValue() decimal.Decimal {
	return p.positions.TotalMarketValue()
}

// TotalEquity is cash plus the market value of every position.
func (p *Portfolio) TotalEquity() decimal.Decimal {
	return p.cash.Add(p.TotalMarketValue())
}

func (p *Portfolio) checkTime(t time.Time, op string) error {
	if t.Before(p.currentTime) {
		return fmt.Errorf("%w: %s at %s is earlier than portfolio time %s", model.ErrNonMonotonicTime,
			op, t.Format(logger.SimTimeFormat), p.currentTime.Format(logger.SimTimeFormat))
	}
	return nil
}

func (p *Portfolio) SubscribeFunds(t time.Time, amount decimal.Decimal) error {
	if err := p.checkTime(t, "subscription"); err != nil {
		return err
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: can't credit negative amount %s to portfolio %q", model.ErrInvalidAmount, amount, p.id)
	}

	p.cash = p.cash.Add(amount)
	p.currentTime = t
	p.record(Event{
		Time:        t,
		Type:        EventSubscription,
		Description: "SUBSCRIPTION",
		Credit:      amount,
	})
	p.logger.Infof("(%s) Funds subscribed to portfolio %q - Credit: %s, Balance: %s",
		t.Format(logger.SimTimeFormat), p.id, p.currency.Format(amount), p.currency.Format(p.cash))
	return nil
}

func (p *Portfolio) WithdrawFunds(t time.Time, amount decimal.Decimal) error {
	if err := p.checkTime(t, "withdrawal"); err != nil {
		return err
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: can't debit negative amount %s from portfolio %q", model.ErrInvalidAmount, amount, p.id)
	}
	if amount.GreaterThan(p.cash) {
		return fmt.Errorf("%w: withdrawal of %s exceeds portfolio %q cash balance of %s", model.ErrInsufficientFunds,
			p.currency.Format(amount), p.id, p.currency.Format(p.cash))
	}

	p.cash = p.cash.Sub(amount)
	p.currentTime = t
	p.record(Event{
		Time:        t,
		Type:        EventWithdrawal,
		Description: "WITHDRAWAL",
		Debit:       amount,
	})
	p.logger.Infof("(%s) Funds withdrawn from portfolio %q - Debit: %s, Balance: %s",
		t.Format(logger.SimTimeFormat), p.id, p.currency.Format(amount), p.currency.Format(p.cash))
	return nil
}

// CanAfford reports whether applying txn keeps cash non-negative.
func (p *Portfolio) CanAfford(txn model.Transaction) bool {
	return !p.cash.Add(txn.CashFlow()).IsNegative()
}

// TransactAsset applies an executed transaction to cash and the matching
// position. Nothing changes if the transaction is rejected.
func (p *Portfolio) TransactAsset(txn model.Transaction) error {
	if err := p.checkTime(txn.Time, "transaction"); err != nil {
		return err
	}
	if txn.Price.IsNegative() || txn.Commission.IsNegative() {
		return fmt.Errorf("%w: price %s commission %s", model.ErrInvalidAmount, txn.Price, txn.Commission)
	}
	if !p.CanAfford(txn) {
		return fmt.Errorf("%w: transaction cost of %s exceeds portfolio %q cash of %s", model.ErrInsufficientFunds,
			p.currency.Format(txn.CashFlow().Neg()), p.id, p.currency.Format(p.cash))
	}

	realised, err := p.positions.Transact(txn)
	if err != nil {
		return fmt.Errorf("%w: can't transact %s", err, txn.Asset.Symbol)
	}
	flow := txn.CashFlow()
	p.cash = p.cash.Add(flow)
	p.realisedGain = p.realisedGain.Add(realised)
	p.currentTime = txn.Time

	direction := "LONG"
	if txn.Direction() < 0 {
		direction = "SHORT"
	}
	e := Event{
		Time: txn.Time,
		Type: EventAssetTransaction,
		Description: fmt.Sprintf("%s %s %s %s %s", direction, txn.Quantity, txn.Asset.Symbol,
			txn.Price.StringFixed(2), txn.Time.Format("02/01/2006")),
	}
	if flow.IsNegative() {
		e.Debit = flow.Neg()
	} else {
		e.Credit = flow
	}
	p.record(e)

	p.logger.Infof("(%s) Asset %q transacted %s in portfolio %q - Debit: %s, Credit: %s, Balance: %s",
		txn.Time.Format(logger.SimTimeFormat), txn.Asset.Symbol, direction, p.id,
		p.currency.Format(e.Debit), p.currency.Format(e.Credit), p.currency.Format(p.cash))
	return nil
}

// CashDividend credits (or, for a short, debits) perShare for every unit held.
// It is the entry point for a dividend feed; nothing in the broker calls it yet.
func (p *Portfolio) CashDividend(t time.Time, asset model.Asset, perShare decimal.Decimal) error {
	if err := p.checkTime(t, "dividend"); err != nil {
		return err
	}
	if perShare.IsNegative() {
		return fmt.Errorf("%w: negative dividend %s for %s", model.ErrInvalidAmount, perShare, asset.Symbol)
	}
	pos, ok := p.positions.Get(asset.Symbol)
	if !ok {
		return nil
	}

	total := pos.Quantity().Mul(perShare)
	if p.cash.Add(total).IsNegative() {
		return fmt.Errorf("%w: dividend owed on short %s exceeds portfolio %q cash", model.ErrInsufficientFunds,
			asset.Symbol, p.id)
	}
	p.cash = p.cash.Add(total)
	p.currentTime = t

	e := Event{
		Time: t,
		Type: EventDividend,
		Description: fmt.Sprintf("DIVIDEND %s %s %s%s %s", pos.Quantity(), asset.Symbol,
			perShare.StringFixed(2), p.currency, t.Format("02/01/2006")),
	}
	if total.IsNegative() {
		e.Debit = total.Neg()
	} else {
		e.Credit = total
	}
	p.record(e)
	p.logger.Infof("(%s) Cash dividend of %s received by portfolio %q",
		t.Format(logger.SimTimeFormat), p.currency.Format(total), p.id)
	return nil
}

// UpdateMarketValue marks a held asset to the quote at the price it could be
// closed at: the bid for a long, the ask for a short. Unheld assets and
// invalid quotes are ignored.
func (p *Portfolio) UpdateMarketValue(asset model.Asset, q model.Quote, t time.Time) error {
	pos, ok := p.positions.Get(asset.Symbol)
	if !ok || !q.Valid {
		return nil
	}
	if err := p.checkTime(t, "market value update"); err != nil {
		return err
	}
	price := q.Bid
	if pos.Direction() < 0 {
		price = q.Ask
	}
	return pos.Mark(price, t)
}

// Update advances the portfolio clock.
func (p *Portfolio) Update(t time.Time) error {
	if err := p.checkTime(t, "update"); err != nil {
		return err
	}
	p.currentTime = t
	return nil
}

func (p *Portfolio) record(e Event) {
	e.Balance = p.cash
	p.history = append(p.history, e)
}

// History returns a copy of the cash ledger events.
func (p *Portfolio) History() []Event {
	h := make([]Event, len(p.history))
	copy(h, p.history)
	return h
}
