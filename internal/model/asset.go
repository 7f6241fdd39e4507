package model

type InstrumentType string

const (
	Bond     InstrumentType = "bond"
	Share    InstrumentType = "share"
	CashLike InstrumentType = "currency"
	Etf      InstrumentType = "etf"
)

type Asset struct {
	Symbol         string         `json:"symbol" yaml:"symbol" db:"instrument_id"`
	Name           string         `json:"name" yaml:"name"`
	InstrumentType InstrumentType `json:"instrument_type" yaml:"instrument_type"`
	TaxExempt      bool           `json:"tax_exempt" yaml:"tax_exempt"`
}

func NewEquity(symbol string) Asset {
	return Asset{Symbol: symbol, Name: symbol, InstrumentType: Share}
}

func (a Asset) GetUID() string {
	return a.Symbol
}

func (a Asset) String() string {
	return a.Symbol
}
