package exchange

import (
	"errors"
	"testing"
	"time"

	"github.com/STTM-NSU/backtester/internal/logger"
	"github.com/STTM-NSU/backtester/internal/model"
	"github.com/shopspring/decimal"
)

var _monday = time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSimulatedExchange_IsOpenAt(t *testing.T) {
	e := NewSimulatedExchange(logger.NewNop(), _monday, DefaultHours)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before open", _monday.Add(14*time.Hour + 29*time.Minute), false},
		{"at open", _monday.Add(14*time.Hour + 30*time.Minute), true},
		{"midday", _monday.Add(17 * time.Hour), true},
		{"at close", _monday.Add(21 * time.Hour), true},
		{"after close", _monday.Add(21*time.Hour + time.Minute), false},
		{"saturday", _monday.AddDate(0, 0, 5).Add(17 * time.Hour), false},
		{"sunday", _monday.AddDate(0, 0, 6).Add(17 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.IsOpenAt(tt.at); got != tt.want {
				t.Errorf("IsOpenAt(%s) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestSimulatedExchange_LatestBidAsk(t *testing.T) {
	asset := model.NewEquity("EQ:X")
	open := DefaultHours.OpenAt(_monday)
	table := NewTablePriceSource(asset, map[time.Time]model.Quote{
		open:                model.NewQuote(d("53.45"), d("53.47")),
		open.Add(time.Hour): model.NewQuote(d("54.00"), d("54.02")),
	})
	e := NewSimulatedExchange(logger.NewNop(), _monday, DefaultHours, table)

	if _, err := e.LatestBidAsk(asset); !errors.Is(err, ErrNoQuote) {
		t.Fatalf("expected ErrNoQuote before first quote, got %v", err)
	}

	if err := e.Update(open.Add(30 * time.Minute)); err != nil {
		t.Fatal(err)
	}
	q, err := e.LatestBidAsk(asset)
	if err != nil {
		t.Fatal(err)
	}
	if !q.Bid.Equal(d("53.45")) || !q.Ask.Equal(d("53.47")) {
		t.Errorf("unexpected quote %s", q)
	}

	if _, err := e.LatestBidAsk(model.NewEquity("EQ:UNKNOWN")); !errors.Is(err, ErrNoQuote) {
		t.Errorf("expected ErrNoQuote for unknown asset, got %v", err)
	}

	if err := e.Update(open); !errors.Is(err, model.ErrNonMonotonicTime) {
		t.Fatalf("expected ErrNonMonotonicTime, got %v", err)
	}
	if !e.CurrentTime().Equal(open.Add(30 * time.Minute)) {
		t.Errorf("rejected update moved the clock to %s", e.CurrentTime())
	}
}

func TestSimulatedExchange_SourceFallback(t *testing.T) {
	asset := model.NewEquity("EQ:Y")
	open := DefaultHours.OpenAt(_monday)
	empty := NewTablePriceSource(asset, nil)
	full := NewTablePriceSource(asset, map[time.Time]model.Quote{open: model.MidQuote(d("10"))})

	e := NewSimulatedExchange(logger.NewNop(), open, DefaultHours, empty)
	e.AddSource(full)

	q, err := e.LatestBidAsk(asset)
	if err != nil {
		t.Fatal(err)
	}
	if !q.Mid().Equal(d("10")) {
		t.Errorf("expected fallback source price 10, got %s", q)
	}
	if got := e.Assets(); len(got) != 1 || got[0].Symbol != "EQ:Y" {
		t.Errorf("unexpected assets %v", got)
	}
}

func TestFixedPriceSource(t *testing.T) {
	asset := model.NewEquity("EQ:F")
	s := NewFixedPriceSource(nil)
	if _, err := s.LatestBidAsk(asset); !errors.Is(err, ErrNoQuote) {
		t.Fatalf("expected ErrNoQuote, got %v", err)
	}
	s.Set(asset.Symbol, model.NewQuote(d("1"), d("2")))
	q, err := s.LatestBidAsk(asset)
	if err != nil || !q.Ask.Equal(d("2")) {
		t.Fatalf("unexpected %s, %v", q, err)
	}
	if !s.IsOpenAt(_monday) {
		t.Error("expected open by default")
	}
	s.SetClosed(true)
	if s.IsOpenAt(_monday) {
		t.Error("expected closed")
	}
}
