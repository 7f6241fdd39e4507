package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	_orderIdPrefix = "bt-"
)

// Order asks the broker to change a position by a signed quantity: positive
// buys, negative sells. Fields are unexported so a submitted order can't change.
type Order struct {
	id        string
	asset     Asset
	quantity  decimal.Decimal
	createdAt time.Time
}

// NewOrder builds an order. An empty id gets an engine-assigned one.
func NewOrder(id string, asset Asset, quantity decimal.Decimal, createdAt time.Time) (Order, error) {
	if quantity.IsZero() {
		return Order{}, fmt.Errorf("%w: order quantity must be non-zero", ErrInvalidAmount)
	}
	if asset.Symbol == "" {
		return Order{}, fmt.Errorf("%w: order asset has no symbol", ErrInvalidAmount)
	}
	if id == "" {
		id = _orderIdPrefix + uuid.NewString()
	}
	return Order{id: id, asset: asset, quantity: quantity, createdAt: createdAt}, nil
}

func (o Order) ID() string                { return o.id }
func (o Order) Asset() Asset              { return o.asset }
func (o Order) Quantity() decimal.Decimal { return o.quantity }
func (o Order) CreatedAt() time.Time      { return o.createdAt }

// Direction is +1 for buys and -1 for sells.
func (o Order) Direction() int {
	return o.quantity.Sign()
}

func (o Order) IsBuy() bool {
	return o.quantity.IsPositive()
}

func (o Order) String() string {
	return fmt.Sprintf("Order(id=%s, asset=%s, quantity=%s)", o.id, o.asset.Symbol, o.quantity)
}
