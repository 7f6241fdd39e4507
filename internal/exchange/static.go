package exchange

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/STTM-NSU/backtester/internal/model"
)

// FixedPriceSource always returns the same quote per symbol. Symbols without
// a quote report ErrNoQuote.
type FixedPriceSource struct {
	mu     sync.RWMutex
	quotes map[string]model.Quote
	closed bool
}

func NewFixedPriceSource(quotes map[string]model.Quote) *FixedPriceSource {
	q := make(map[string]model.Quote, len(quotes))
	for k, v := range quotes {
		q[k] = v
	}
	return &FixedPriceSource{quotes: q}
}

func (s *FixedPriceSource) Set(symbol string, q model.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[symbol] = q
}

// SetClosed makes IsOpenAt report false everywhere.
func (s *FixedPriceSource) SetClosed(closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = closed
}

func (s *FixedPriceSource) LatestBidAsk(asset model.Asset) (model.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[asset.Symbol]
	if !ok || !q.Valid {
		return model.NoQuote, fmt.Errorf("%w: %s", ErrNoQuote, asset.Symbol)
	}
	return q, nil
}

func (s *FixedPriceSource) IsOpenAt(time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

type timedQuote struct {
	ts    time.Time
	quote model.Quote
}

// TablePriceSource is a DataSource over an in-memory table of quotes.
type TablePriceSource struct {
	asset  model.Asset
	quotes []timedQuote
}

func NewTablePriceSource(asset model.Asset, quotes map[time.Time]model.Quote) *TablePriceSource {
	tq := make([]timedQuote, 0, len(quotes))
	for ts, q := range quotes {
		tq = append(tq, timedQuote{ts: ts, quote: q})
	}
	sort.Slice(tq, func(i, j int) bool { return tq[i].ts.Before(tq[j].ts) })
	return &TablePriceSource{asset: asset, quotes: tq}
}

func (s *TablePriceSource) Asset() model.Asset {
	return s.asset
}

func (s *TablePriceSource) PriceAt(t time.Time) (model.Quote, error) {
	i := sort.Search(len(s.quotes), func(i int) bool { return s.quotes[i].ts.After(t) })
	if i == 0 || !s.quotes[i-1].quote.Valid {
		return model.NoQuote, fmt.Errorf("%w: %s at %s", ErrNoQuote, s.asset.Symbol, t.Format(time.RFC3339))
	}
	return s.quotes[i-1].quote, nil
}
