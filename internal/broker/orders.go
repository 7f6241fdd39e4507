package broker

import (
	"errors"
	"fmt"
	"time"

	"github.com/STTM-NSU/backtester/internal/logger"
	"github.com/STTM-NSU/backtester/internal/model"
)

// LatestAssetPrice returns the current quote for asset, or model.NoQuote if
// the price source has none or quotes a crossed market. Lookup failures are
// logged, never returned.
func (b *SimulatedBroker) LatestAssetPrice(asset model.Asset) model.Quote {
	q, err := b.priceSource.LatestBidAsk(asset)
	if err != nil {
		b.logger.Debugf("(%s) %s: no latest price for %s", b.now(), err, asset.Symbol)
		return model.NoQuote
	}
	if !q.Valid || q.Bid.IsNegative() || q.Ask.IsNegative() {
		return model.NoQuote
	}
	if q.Bid.GreaterThan(q.Ask) {
		b.logger.Warnf("(%s) crossed quote for %s - Bid: %s, Ask: %s", b.now(), asset.Symbol, q.Bid, q.Ask)
		return model.NoQuote
	}
	return q
}

// SubmitOrder queues order on portfolio id. It executes on the next Update.
func (b *SimulatedBroker) SubmitOrder(id string, order model.Order) error {
	e, err := b.entry(id)
	if err != nil {
		return fmt.Errorf("%w: order %q was not submitted", err, order.ID())
	}
	e.orders = append(e.orders, order)
	if b.metrics != nil {
		b.metrics.OrderSubmitted(e.id)
	}
	b.logger.Infof("(%s) Order submitted for %s - Qty: %s", b.now(), order.Asset().Symbol, order.Quantity())
	return nil
}

func (b *SimulatedBroker) fillPrice(q model.Quote) model.Quote {
	if b.pricePolicy == PriceMid {
		mid := q.Mid()
		return model.NewQuote(mid, mid)
	}
	return q
}

// ExecuteOrder fills order against portfolio id at the current time. Nothing
// changes when it fails.
func (b *SimulatedBroker) ExecuteOrder(id string, order model.Order) error {
	e, err := b.entry(id)
	if err != nil {
		return fmt.Errorf("%w: order %q was not executed", err, order.ID())
	}
	return b.execute(e, order)
}

func (b *SimulatedBroker) execute(e *portfolioEntry, order model.Order) error {
	asset := order.Asset()
	q := b.LatestAssetPrice(asset)
	if !q.Valid {
		return fmt.Errorf("%w: no latest market price for %s, order %q was not executed",
			ErrPriceUnavailable, asset.Symbol, order.ID())
	}

	q = b.fillPrice(q)
	price := q.Bid
	if order.IsBuy() {
		price = q.Ask
	}
	total := b.commission.Compute(asset, price, order.Quantity())
	if total.IsNegative() {
		return fmt.Errorf("%w: commission model returned %s for order %q", ErrConfiguration, total, order.ID())
	}

	txn := model.Transaction{
		Asset:      asset,
		Quantity:   order.Quantity(),
		Time:       b.currentTime,
		Price:      price,
		OrderID:    order.ID(),
		Commission: total,
	}
	if err := e.portfolio.TransactAsset(txn); err != nil {
		return fmt.Errorf("%w: order %q was not executed", err, order.ID())
	}
	b.transactions = append(b.transactions, txn)

	consideration := txn.Consideration()
	b.logger.Infof("(%s) Order executed for %s - Qty: %s, Price: %s, Consideration: %s, Commission: %s, Total Cost: %s",
		b.now(), asset.Symbol, order.Quantity(), price.StringFixed(2), consideration.StringFixed(2),
		total.StringFixed(2), consideration.Add(total).StringFixed(2))
	return nil
}

// Update moves the broker clock to t, marks every position to the latest
// quote and executes every queued order. Portfolios are processed in
// ascending id order and each queue in submission order. An order that fails
// is dropped; the failures are returned joined once all queues are drained.
func (b *SimulatedBroker) Update(t time.Time) error {
	if t.Before(b.currentTime) {
		return fmt.Errorf("%w: broker update to %s is earlier than %s", ErrNonMonotonicTime,
			t.Format(logger.SimTimeFormat), b.now())
	}
	b.currentTime = t

	var errs []error
	b.portfolios.Ascend(func(e *portfolioEntry) bool {
		for _, pos := range e.portfolio.Positions().Positions() {
			asset := pos.Asset()
			if err := e.portfolio.UpdateMarketValue(asset, b.LatestAssetPrice(asset), t); err != nil {
				errs = append(errs, fmt.Errorf("%w: can't mark %s in portfolio %q", err, asset.Symbol, e.id))
			}
		}
		if err := e.portfolio.Update(t); err != nil {
			errs = append(errs, err)
		}
		return true
	})

	if !b.priceSource.IsOpenAt(t) {
		b.logger.Debugf("(%s) Exchange is closed, executing queued orders anyway", b.now())
	}

	b.portfolios.Ascend(func(e *portfolioEntry) bool {
		orders := e.orders
		e.orders = make([]model.Order, 0)
		for _, order := range orders {
			if err := b.execute(e, order); err != nil {
				b.logger.Warnf("(%s) %s", b.now(), err)
				if b.metrics != nil {
					b.metrics.OrderRejected(e.id, err)
				}
				errs = append(errs, err)
				continue
			}
			if b.metrics != nil {
				b.metrics.OrderFilled(e.id, b.transactions[len(b.transactions)-1])
			}
		}
		return true
	})

	return errors.Join(errs...)
}
