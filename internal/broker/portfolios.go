package broker

import (
	"fmt"
	"strings"

	"github.com/STTM-NSU/backtester/internal/model"
	"github.com/STTM-NSU/backtester/internal/portfolio"
	"github.com/shopspring/decimal"
)

type portfolioEntry struct {
	id        string
	portfolio *portfolio.Portfolio
	orders    []model.Order
}

func lessEntry(a, b *portfolioEntry) bool {
	return a.id < b.id
}

// PortfolioID normalises a caller-supplied id to its registry key.
func PortfolioID(id any) string {
	switch v := id.(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return fmt.Sprint(v)
	}
}

func (b *SimulatedBroker) entry(id string) (*portfolioEntry, error) {
	e, ok := b.portfolios.Get(&portfolioEntry{id: PortfolioID(id)})
	if !ok {
		return nil, fmt.Errorf("%w: portfolio %q does not exist", ErrUnknownPortfolio, id)
	}
	return e, nil
}

// CreatePortfolio registers an empty portfolio in the base currency. id may
// be a string or anything printable, it is stored as PortfolioID(id).
func (b *SimulatedBroker) CreatePortfolio(id any, name string) (*portfolio.Portfolio, error) {
	key := PortfolioID(id)
	if key == "" || key == MasterAccount {
		return nil, fmt.Errorf("%w: portfolio id %q is reserved", ErrConfiguration, key)
	}
	if b.portfolios.Has(&portfolioEntry{id: key}) {
		return nil, fmt.Errorf("%w: portfolio %q already exists", ErrDuplicatePortfolio, key)
	}

	p, err := portfolio.NewPortfolio(b.logger, b.currentTime, b.baseCurrency, key, name)
	if err != nil {
		return nil, fmt.Errorf("%w: can't create portfolio %q", err, key)
	}
	b.portfolios.ReplaceOrInsert(&portfolioEntry{
		id:        key,
		portfolio: p,
		orders:    make([]model.Order, 0),
	})
	b.logger.Infof("(%s) Portfolio %q created at broker %q", b.now(), key, b.accountID)
	return p, nil
}

// ListAllPortfolios returns every portfolio in ascending id order.
func (b *SimulatedBroker) ListAllPortfolios() []*portfolio.Portfolio {
	res := make([]*portfolio.Portfolio, 0, b.portfolios.Len())
	b.portfolios.Ascend(func(e *portfolioEntry) bool {
		res = append(res, e.portfolio)
		return true
	})
	return res
}

func (b *SimulatedBroker) Portfolio(id string) (*portfolio.Portfolio, error) {
	e, err := b.entry(id)
	if err != nil {
		return nil, err
	}
	return e.portfolio, nil
}

// SubscribeFundsToPortfolio moves amount from the account cash to portfolio id.
func (b *SimulatedBroker) SubscribeFundsToPortfolio(id string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: can't transfer negative amount %s to portfolio %q", ErrInvalidAmount, amount, id)
	}
	e, err := b.entry(id)
	if err != nil {
		return err
	}
	balance := b.cashBalances[b.baseCurrency]
	if amount.GreaterThan(balance) {
		return fmt.Errorf("%w: transfer of %s to portfolio %q exceeds account cash balance of %s", ErrInsufficientFunds,
			b.baseCurrency.Format(amount), id, b.baseCurrency.Format(balance))
	}

	if err := e.portfolio.SubscribeFunds(b.currentTime, amount); err != nil {
		return fmt.Errorf("%w: can't subscribe funds to portfolio %q", err, id)
	}
	b.cashBalances[b.baseCurrency] = balance.Sub(amount)
	b.logger.Infof("(%s) Funds subscribed to portfolio %q - Credit: %s, Account balance: %s",
		b.now(), id, b.baseCurrency.Format(amount), b.baseCurrency.Format(b.cashBalances[b.baseCurrency]))
	return nil
}

// WithdrawFundsFromPortfolio moves amount from portfolio id back to the account cash.
func (b *SimulatedBroker) WithdrawFundsFromPortfolio(id string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: can't withdraw negative amount %s from portfolio %q", ErrInvalidAmount, amount, id)
	}
	e, err := b.entry(id)
	if err != nil {
		return err
	}
	if amount.GreaterThan(e.portfolio.TotalCash()) {
		return fmt.Errorf("%w: withdrawal of %s exceeds portfolio %q cash balance of %s", ErrInsufficientFunds,
			b.baseCurrency.Format(amount), id, b.baseCurrency.Format(e.portfolio.TotalCash()))
	}

	if err := e.portfolio.WithdrawFunds(b.currentTime, amount); err != nil {
		return fmt.Errorf("%w: can't withdraw funds from portfolio %q", err, id)
	}
	b.cashBalances[b.baseCurrency] = b.cashBalances[b.baseCurrency].Add(amount)
	b.logger.Infof("(%s) Funds withdrawn from portfolio %q - Debit: %s, Account balance: %s",
		b.now(), id, b.baseCurrency.Format(amount), b.baseCurrency.Format(b.cashBalances[b.baseCurrency]))
	return nil
}

func (b *SimulatedBroker) PortfolioCashBalance(id string) (decimal.Decimal, error) {
	e, err := b.entry(id)
	if err != nil {
		return decimal.Zero, err
	}
	return e.portfolio.TotalCash(), nil
}

// PortfolioTotalMarketValue is the value of the securities held by portfolio id.
func (b *SimulatedBroker) PortfolioTotalMarketValue(id string) (decimal.Decimal, error) {
	e, err := b.entry(id)
	if err != nil {
		return decimal.Zero, err
	}
	return e.portfolio.TotalMarketValue(), nil
}

func (b *SimulatedBroker) PortfolioTotalEquity(id string) (decimal.Decimal, error) {
	e, err := b.entry(id)
	if err != nil {
		return decimal.Zero, err
	}
	return e.portfolio.TotalEquity(), nil
}

func (b *SimulatedBroker) PortfolioSnapshot(id string) (portfolio.Snapshot, error) {
	e, err := b.entry(id)
	if err != nil {
		return portfolio.Snapshot{}, err
	}
	return e.portfolio.ToSnapshot(), nil
}

// OpenOrders returns the orders queued for portfolio id, oldest first.
func (b *SimulatedBroker) OpenOrders(id string) ([]model.Order, error) {
	e, err := b.entry(id)
	if err != nil {
		return nil, err
	}
	res := make([]model.Order, len(e.orders))
	copy(res, e.orders)
	return res, nil
}
