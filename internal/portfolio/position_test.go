package portfolio

import (
	"testing"
	"time"

	"github.com/STTM-NSU/backtester/internal/model"
	"github.com/shopspring/decimal"
)

var _t0 = time.Date(2020, 6, 1, 14, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func txn(asset model.Asset, qty, price, commission string, at time.Time) model.Transaction {
	return model.Transaction{
		Asset:      asset,
		Quantity:   d(qty),
		Time:       at,
		Price:      d(price),
		OrderID:    "test",
		Commission: d(commission),
	}
}

func assertDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(d(want)) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

func TestPosition_OpenLong(t *testing.T) {
	asset := model.NewEquity("EQ:X")
	p := NewPosition(asset)
	if err := p.Transact(txn(asset, "1000", "53.47", "0", _t0)); err != nil {
		t.Fatal(err)
	}
	assertDecimal(t, "quantity", p.Quantity(), "1000")
	assertDecimal(t, "book cost", p.BookCost(), "53470")
	assertDecimal(t, "market value", p.MarketValue(), "53470")
	assertDecimal(t, "gain", p.UnrealisedGain(), "0")
	assertDecimal(t, "perc gain", p.UnrealisedPercGain(), "0")
}

func TestPosition_OpenShort(t *testing.T) {
	asset := model.NewEquity("EQ:X")
	p := NewPosition(asset)
	if err := p.Transact(txn(asset, "-1000", "53.45", "0", _t0)); err != nil {
		t.Fatal(err)
	}
	assertDecimal(t, "quantity", p.Quantity(), "-1000")
	assertDecimal(t, "book cost", p.BookCost(), "-53450")
	assertDecimal(t, "market value", p.MarketValue(), "-53450")
	assertDecimal(t, "gain", p.UnrealisedGain(), "0")
}

func TestPosition_Transact(t *testing.T) {
	asset := model.NewEquity("EQ:ABC")

	tests := []struct {
		name         string
		txns         []model.Transaction
		wantQty      string
		wantBookCost string
		wantRealised string
	}{
		{
			name: "weighted average on increase",
			txns: []model.Transaction{
				txn(asset, "100", "10", "0", _t0),
				txn(asset, "100", "20", "0", _t0.Add(time.Hour)),
			},
			wantQty:      "200",
			wantBookCost: "3000",
			wantRealised: "0",
		},
		{
			name: "commission folded into book cost",
			txns: []model.Transaction{
				txn(asset, "100", "10", "5", _t0),
			},
			wantQty:      "100",
			wantBookCost: "1005",
			wantRealised: "0",
		},
		{
			name: "partial close realises at average cost",
			txns: []model.Transaction{
				txn(asset, "100", "10", "0", _t0),
				txn(asset, "-40", "15", "0", _t0.Add(time.Hour)),
			},
			wantQty:      "60",
			wantBookCost: "600",
			wantRealised: "200",
		},
		{
			name: "full close",
			txns: []model.Transaction{
				txn(asset, "100", "10", "0", _t0),
				txn(asset, "-100", "8", "2", _t0.Add(time.Hour)),
			},
			wantQty:      "0",
			wantBookCost: "0",
			wantRealised: "-202",
		},
		{
			name: "reversal through zero",
			txns: []model.Transaction{
				txn(asset, "100", "10", "0", _t0),
				txn(asset, "-150", "12", "0", _t0.Add(time.Hour)),
			},
			wantQty:      "-50",
			wantBookCost: "-600",
			wantRealised: "200",
		},
		{
			name: "short covered at profit",
			txns: []model.Transaction{
				txn(asset, "-100", "10", "0", _t0),
				txn(asset, "50", "8", "0", _t0.Add(time.Hour)),
			},
			wantQty:      "-50",
			wantBookCost: "-500",
			wantRealised: "100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPosition(asset)
			for _, tx := range tt.txns {
				if err := p.Transact(tx); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}
			assertDecimal(t, "quantity", p.Quantity(), tt.wantQty)
			assertDecimal(t, "book cost", p.BookCost(), tt.wantBookCost)
			assertDecimal(t, "realised gain", p.RealisedGain(), tt.wantRealised)
		})
	}
}

func TestPosition_TransactWrongAsset(t *testing.T) {
	p := NewPosition(model.NewEquity("EQ:A"))
	if err := p.Transact(txn(model.NewEquity("EQ:B"), "1", "1", "0", _t0)); err == nil {
		t.Fatal("expected error for mismatched asset")
	}
	assertDecimal(t, "quantity", p.Quantity(), "0")
}

func TestPosition_Mark(t *testing.T) {
	asset := model.NewEquity("EQ:A")
	p := NewPosition(asset)
	_ = p.Transact(txn(asset, "100", "10", "0", _t0))

	if err := p.Mark(d("12.5"), _t0.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	assertDecimal(t, "market value", p.MarketValue(), "1250")
	assertDecimal(t, "gain", p.UnrealisedGain(), "250")
	assertDecimal(t, "perc gain", p.UnrealisedPercGain(), "25")

	if err := p.Mark(d("-1"), _t0.Add(2*time.Hour)); err == nil {
		t.Error("expected error for negative price")
	}
	if err := p.Mark(d("11"), _t0); err == nil {
		t.Error("expected error for earlier mark")
	}
}
