package model

import "github.com/shopspring/decimal"

var InvestorTaxes = map[InstrumentType]decimal.Decimal{
	Bond:     decimal.RequireFromString("0.003"),
	Share:    decimal.RequireFromString("0.003"),
	Etf:      decimal.RequireFromString("0.003"),
	CashLike: decimal.RequireFromString("0.009"),
}

var TraderTaxes = map[InstrumentType]decimal.Decimal{
	Bond:     decimal.RequireFromString("0.0005"),
	Share:    decimal.RequireFromString("0.0005"),
	Etf:      decimal.RequireFromString("0.0005"),
	CashLike: decimal.RequireFromString("0.005"),
}

var PremiumTaxes = map[InstrumentType]decimal.Decimal{
	Bond:     decimal.RequireFromString("0.0004"),
	Share:    decimal.RequireFromString("0.0004"),
	Etf:      decimal.RequireFromString("0.0004"),
	CashLike: decimal.RequireFromString("0.004"),
}

// TaxTables maps a tariff name from the config to its rate table.
var TaxTables = map[string]map[InstrumentType]decimal.Decimal{
	"investor": InvestorTaxes,
	"trader":   TraderTaxes,
	"premium":  PremiumTaxes,
}
