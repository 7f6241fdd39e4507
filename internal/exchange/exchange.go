package exchange

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/STTM-NSU/backtester/internal/logger"
	"github.com/STTM-NSU/backtester/internal/model"
)

var ErrNoQuote = errors.New("no quote available")

// PriceSource is what the broker needs from a venue.
type PriceSource interface {
	// LatestBidAsk returns the quote at the source's current time, or
	// model.NoQuote together with an error when none is available.
	LatestBidAsk(asset model.Asset) (model.Quote, error)
	IsOpenAt(t time.Time) bool
}

// DataSource provides historical prices for a single asset.
type DataSource interface {
	Asset() model.Asset
	PriceAt(t time.Time) (model.Quote, error)
}

// Hours are the daily session bounds as offsets from UTC midnight.
type Hours struct {
	Open  time.Duration
	Close time.Duration
}

// DefaultHours is the NYSE session, 14:30 to 21:00 UTC.
var DefaultHours = Hours{
	Open:  14*time.Hour + 30*time.Minute,
	Close: 21 * time.Hour,
}

func (h Hours) OpenAt(day time.Time) time.Time {
	return day.UTC().Truncate(24 * time.Hour).Add(h.Open)
}

func (h Hours) CloseAt(day time.Time) time.Time {
	return day.UTC().Truncate(24 * time.Hour).Add(h.Close)
}

// SimulatedExchange answers quotes from its data sources at the simulated
// current time. Sources are asked in the order given; the first to return a
// valid quote wins.
type SimulatedExchange struct {
	logger logger.Logger

	mu          sync.RWMutex
	startTime   time.Time
	currentTime time.Time
	hours       Hours

	sources []DataSource
}

func NewSimulatedExchange(logger logger.Logger, start time.Time, hours Hours, sources ...DataSource) *SimulatedExchange {
	return &SimulatedExchange{
		logger:      logger,
		startTime:   start,
		currentTime: start,
		hours:       hours,
		sources:     sources,
	}
}

func (e *SimulatedExchange) AddSource(ds DataSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sources = append(e.sources, ds)
}

// Assets lists the assets covered by at least one source, in source order.
func (e *SimulatedExchange) Assets() []model.Asset {
	e.mu.RLock()
	defer e.mu.RUnlock()

	seen := make(map[string]struct{}, len(e.sources))
	assets := make([]model.Asset, 0, len(e.sources))
	for _, ds := range e.sources {
		a := ds.Asset()
		if _, ok := seen[a.Symbol]; ok {
			continue
		}
		seen[a.Symbol] = struct{}{}
		assets = append(assets, a)
	}
	return assets
}

func (e *SimulatedExchange) IsOpenAt(t time.Time) bool {
	t = t.UTC()
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !t.Before(e.hours.OpenAt(t)) && !t.After(e.hours.CloseAt(t))
}

func (e *SimulatedExchange) CurrentTime() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.currentTime
}

func (e *SimulatedExchange) Update(t time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t.Before(e.currentTime) {
		return fmt.Errorf("%w: exchange update to %s is earlier than %s", model.ErrNonMonotonicTime,
			t.Format(logger.SimTimeFormat), e.currentTime.Format(logger.SimTimeFormat))
	}
	e.currentTime = t
	return nil
}

func (e *SimulatedExchange) LatestBidAsk(asset model.Asset) (model.Quote, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, ds := range e.sources {
		if ds.Asset().Symbol != asset.Symbol {
			continue
		}
		q, err := ds.PriceAt(e.currentTime)
		if err != nil {
			e.logger.Debugf("%s: source has no price for %s at %s", err, asset.Symbol,
				e.currentTime.Format(logger.SimTimeFormat))
			continue
		}
		if q.Valid {
			return q, nil
		}
	}
	return model.NoQuote, fmt.Errorf("%w: %s at %s", ErrNoQuote, asset.Symbol, e.currentTime.Format(logger.SimTimeFormat))
}
