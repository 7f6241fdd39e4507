package model

import (
	"fmt"
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

type Currency string

const (
	AUD Currency = "AUD"
	CAD Currency = "CAD"
	CHF Currency = "CHF"
	CNH Currency = "CNH"
	CZK Currency = "CZK"
	DKK Currency = "DKK"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	HKD Currency = "HKD"
	HUF Currency = "HUF"
	ILS Currency = "ILS"
	JPY Currency = "JPY"
	MXN Currency = "MXN"
	NOK Currency = "NOK"
	NZD Currency = "NZD"
	PLN Currency = "PLN"
	RUB Currency = "RUB"
	SEK Currency = "SEK"
	SGD Currency = "SGD"
	USD Currency = "USD"
	ZAR Currency = "ZAR"
)

var _maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// SupportedCurrencies is the fixed set of currencies an account can hold, in
// alphabetical order.
var SupportedCurrencies = []Currency{
	AUD, CAD, CHF, CNH, CZK, DKK, EUR, GBP, HKD, HUF, ILS,
	JPY, MXN, NOK, NZD, PLN, RUB, SEK, SGD, USD, ZAR,
}

func (c Currency) Supported() bool {
	for _, s := range SupportedCurrencies {
		if s == c {
			return true
		}
	}
	return false
}

// ParseCurrency normalises a currency code and rejects anything outside
// SupportedCurrencies.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Supported() {
		return "", fmt.Errorf("%w: %q is not supported", ErrUnknownCurrency, s)
	}
	return c, nil
}

func (c Currency) String() string {
	return string(c)
}

// Format renders amount with the currency's symbol and grouping. Codes that
// go-money doesn't know, and amounts whose minor units overflow int64, fall
// back to "<amount> <code>".
func (c Currency) Format(amount decimal.Decimal) string {
	cur := money.GetCurrency(string(c))
	if cur == nil {
		return amount.StringFixed(2) + " " + string(c)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	if minor.GreaterThan(_maxMinorUnits) || minor.LessThan(_maxMinorUnits.Neg()) {
		return amount.StringFixed(int32(cur.Fraction)) + " " + string(c)
	}
	return money.New(minor.IntPart(), cur.Code).Display()
}

func (c *Currency) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseCurrency(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
