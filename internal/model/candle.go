package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Candle struct {
	Ts         time.Time       `db:"ts"`
	OpenPrice  decimal.Decimal `db:"open_price"`
	ClosePrice decimal.Decimal `db:"close_price"`
}
