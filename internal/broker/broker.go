package broker

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/STTM-NSU/backtester/internal/commission"
	"github.com/STTM-NSU/backtester/internal/exchange"
	"github.com/STTM-NSU/backtester/internal/logger"
	"github.com/STTM-NSU/backtester/internal/model"
	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

const (
	// MasterAccount keys the account-wide totals in AccountTotalEquity and
	// AccountTotalMarketValue.
	MasterAccount = "master"

	_btreeDegree = 8
)

// PricePolicy selects the side of the quote an order fills at.
type PricePolicy int

const (
	// PriceBidAsk fills buys at the ask and sells at the bid.
	PriceBidAsk PricePolicy = iota
	// PriceMid fills both sides at the mid price.
	PriceMid
)

func (p PricePolicy) String() string {
	switch p {
	case PriceBidAsk:
		return "bid_ask"
	case PriceMid:
		return "mid"
	default:
		return fmt.Sprintf("PricePolicy(%d)", int(p))
	}
}

// Metrics receives execution outcomes. A nil Metrics in Params disables it.
type Metrics interface {
	OrderSubmitted(portfolioID string)
	OrderFilled(portfolioID string, txn model.Transaction)
	OrderRejected(portfolioID string, err error)
}

type Params struct {
	StartTime    time.Time
	PriceSource  exchange.PriceSource
	AccountID    string
	BaseCurrency model.Currency
	InitialFunds decimal.Decimal
	Commission   commission.Model
	PricePolicy  PricePolicy

	Logger  logger.Logger
	Metrics Metrics
}

// SimulatedBroker is the account-level ledger. It owns the account cash,
// every portfolio and each portfolio's queue of pending orders.
//
// It is single-writer: callers serialise mutating calls.
type SimulatedBroker struct {
	logger  logger.Logger
	metrics Metrics

	accountID    string
	baseCurrency model.Currency
	priceSource  exchange.PriceSource
	commission   commission.Model
	pricePolicy  PricePolicy

	startTime   time.Time
	currentTime time.Time

	cashBalances map[model.Currency]decimal.Decimal
	portfolios   *btree.BTreeG[*portfolioEntry]
	transactions []model.Transaction
}

func New(p Params) (*SimulatedBroker, error) {
	if p.PriceSource == nil {
		return nil, fmt.Errorf("%w: price source is required", ErrConfiguration)
	}
	p.BaseCurrency = cmp.Or(p.BaseCurrency, model.USD)
	if !p.BaseCurrency.Supported() {
		return nil, fmt.Errorf("%w: base currency %q is not supported", ErrConfiguration, p.BaseCurrency)
	}
	if p.InitialFunds.IsNegative() {
		return nil, fmt.Errorf("%w: initial funds %s can't be negative", ErrConfiguration, p.InitialFunds)
	}
	if p.Commission == nil {
		p.Commission = commission.Zero{}
	}
	if err := commission.Validate(p.Commission); err != nil {
		return nil, err
	}
	if p.PricePolicy != PriceBidAsk && p.PricePolicy != PriceMid {
		return nil, fmt.Errorf("%w: unknown price policy %s", ErrConfiguration, p.PricePolicy)
	}
	if p.Logger == nil {
		p.Logger = logger.NewNop()
	}

	cash := make(map[model.Currency]decimal.Decimal, len(model.SupportedCurrencies))
	for _, c := range model.SupportedCurrencies {
		cash[c] = decimal.Zero
	}
	cash[p.BaseCurrency] = p.InitialFunds

	b := &SimulatedBroker{
		logger:       p.Logger.With("account", p.AccountID),
		metrics:      p.Metrics,
		accountID:    p.AccountID,
		baseCurrency: p.BaseCurrency,
		priceSource:  p.PriceSource,
		commission:   p.Commission,
		pricePolicy:  p.PricePolicy,
		startTime:    p.StartTime,
		currentTime:  p.StartTime,
		cashBalances: cash,
		portfolios:   btree.NewG(_btreeDegree, lessEntry),
		transactions: make([]model.Transaction, 0),
	}
	b.logger.Infof("(%s) Initialising simulated broker %q with %s",
		b.now(), p.AccountID, p.BaseCurrency.Format(p.InitialFunds))
	return b, nil
}

func (b *SimulatedBroker) now() string {
	return b.currentTime.Format(logger.SimTimeFormat)
}

func (b *SimulatedBroker) AccountID() string                 { return b.accountID }
func (b *SimulatedBroker) BaseCurrency() model.Currency      { return b.baseCurrency }
func (b *SimulatedBroker) StartTime() time.Time              { return b.startTime }
func (b *SimulatedBroker) CurrentTime() time.Time            { return b.currentTime }
func (b *SimulatedBroker) PricePolicy() PricePolicy          { return b.pricePolicy }
func (b *SimulatedBroker) Commission() commission.Model      { return b.commission }
func (b *SimulatedBroker) PriceSource() exchange.PriceSource { return b.priceSource }

func (b *SimulatedBroker) SubscribeFundsToAccount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: can't credit negative amount %s to the account", ErrInvalidAmount, amount)
	}
	b.cashBalances[b.baseCurrency] = b.cashBalances[b.baseCurrency].Add(amount)
	b.logger.Infof("(%s) Funds subscribed to broker account - Credit: %s, Balance: %s",
		b.now(), b.baseCurrency.Format(amount), b.baseCurrency.Format(b.cashBalances[b.baseCurrency]))
	return nil
}

func (b *SimulatedBroker) WithdrawFundsFromAccount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: can't debit negative amount %s from the account", ErrInvalidAmount, amount)
	}
	balance := b.cashBalances[b.baseCurrency]
	if amount.GreaterThan(balance) {
		return fmt.Errorf("%w: withdrawal of %s exceeds account cash balance of %s", ErrInsufficientFunds,
			b.baseCurrency.Format(amount), b.baseCurrency.Format(balance))
	}
	b.cashBalances[b.baseCurrency] = balance.Sub(amount)
	b.logger.Infof("(%s) Funds withdrawn from broker account - Debit: %s, Balance: %s",
		b.now(), b.baseCurrency.Format(amount), b.baseCurrency.Format(b.cashBalances[b.baseCurrency]))
	return nil
}

// AccountCashBalances returns a copy of the per-currency account cash.
func (b *SimulatedBroker) AccountCashBalances() map[model.Currency]decimal.Decimal {
	return maps.Clone(b.cashBalances)
}

func (b *SimulatedBroker) AccountCashBalance(currency model.Currency) (decimal.Decimal, error) {
	balance, ok := b.cashBalances[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q is not held in the broker account", ErrUnknownCurrency, currency)
	}
	return balance, nil
}

// AccountTotalMarketValue maps every portfolio to the market value of its
// securities. MasterAccount holds the sum.
func (b *SimulatedBroker) AccountTotalMarketValue() map[string]decimal.Decimal {
	res := make(map[string]decimal.Decimal, b.portfolios.Len()+1)
	master := decimal.Zero
	b.portfolios.Ascend(func(e *portfolioEntry) bool {
		mv := e.portfolio.TotalMarketValue()
		res[e.id] = mv
		master = master.Add(mv)
		return true
	})
	res[MasterAccount] = master
	return res
}

// AccountTotalEquity maps every portfolio to its total equity. MasterAccount
// holds the unallocated account cash plus the equity of every portfolio.
func (b *SimulatedBroker) AccountTotalEquity() map[string]decimal.Decimal {
	res := make(map[string]decimal.Decimal, b.portfolios.Len()+1)
	master := b.cashBalances[b.baseCurrency]
	b.portfolios.Ascend(func(e *portfolioEntry) bool {
		eq := e.portfolio.TotalEquity()
		res[e.id] = eq
		master = master.Add(eq)
		return true
	})
	res[MasterAccount] = master
	return res
}

// Transactions returns every fill so far in execution order.
func (b *SimulatedBroker) Transactions() []model.Transaction {
	return slices.Clone(b.transactions)
}
