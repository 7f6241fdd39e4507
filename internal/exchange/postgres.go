package exchange

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/STTM-NSU/backtester/internal/logger"
	"github.com/STTM-NSU/backtester/internal/model"
	"github.com/jmoiron/sqlx"
)

const (
	_queryLastClose = "SELECT ts, close_price FROM stocks WHERE instrument_id = $1 AND ts <= $2::timestamp ORDER BY ts DESC LIMIT 1"
	_queryRange     = "SELECT ts, open_price, close_price FROM stocks WHERE instrument_id = $1 AND ts BETWEEN $2::timestamp AND $3::timestamp ORDER BY ts"

	_defaultQueryTimeout = 5 * time.Second
)

// PostgresDataSource reads candles from the stocks table. The last close at
// or before the requested time is the price. A preloaded range is served from
// memory, anything outside it is queried.
type PostgresDataSource struct {
	db     *sqlx.DB
	logger logger.Logger
	asset  model.Asset

	queryTimeout time.Duration

	mu        sync.Mutex
	cache     map[time.Time]model.Quote
	preloaded []model.Candle
	from, to  time.Time
}

func NewPostgresDataSource(db *sqlx.DB, logger logger.Logger, asset model.Asset, queryTimeout time.Duration) *PostgresDataSource {
	if queryTimeout <= 0 {
		queryTimeout = _defaultQueryTimeout
	}
	return &PostgresDataSource{
		db:           db,
		logger:       logger,
		asset:        asset,
		queryTimeout: queryTimeout,
		cache:        make(map[time.Time]model.Quote),
	}
}

func (s *PostgresDataSource) Asset() model.Asset {
	return s.asset
}

func (s *PostgresDataSource) PriceAt(t time.Time) (model.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if q, ok := s.cache[t]; ok {
		return q, nil
	}
	if q, ok := s.fromPreloaded(t); ok {
		return q, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)
	defer cancel()

	var candle model.Candle
	if err := s.db.GetContext(ctx, &candle, _queryLastClose, s.asset.Symbol, t.UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.NoQuote, fmt.Errorf("%w: %s has no candles before %s", ErrNoQuote, s.asset.Symbol, t.Format(time.RFC3339))
		}
		return model.NoQuote, fmt.Errorf("%w: can't get last close for %s from database", err, s.asset.Symbol)
	}

	q := model.MidQuote(candle.ClosePrice)
	s.cache[t] = q
	return q, nil
}

// Candles returns every candle in [from, to], ascending.
func (s *PostgresDataSource) Candles(ctx context.Context, from, to time.Time) ([]model.Candle, error) {
	var candles []model.Candle
	if err := s.db.SelectContext(ctx, &candles, _queryRange, s.asset.Symbol, from.UTC(), to.UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: can't get candles for %s from database", err, s.asset.Symbol)
	}
	if len(candles) == 0 {
		s.logger.Warnf("no candles for instrument %s from %s to %s", s.asset.Symbol, from, to)
	}
	return candles, nil
}

// Preload keeps the candles of [from, to] in memory.
func (s *PostgresDataSource) Preload(ctx context.Context, from, to time.Time) error {
	candles, err := s.Candles(ctx, from, to)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.preloaded = candles
	s.from, s.to = from, to
	s.logger.Infof("Preloaded %d candles for %s", len(candles), s.asset.Symbol)
	return nil
}

func (s *PostgresDataSource) fromPreloaded(t time.Time) (model.Quote, bool) {
	if len(s.preloaded) == 0 || t.Before(s.from) || t.After(s.to) {
		return model.NoQuote, false
	}
	i := sort.Search(len(s.preloaded), func(i int) bool { return s.preloaded[i].Ts.After(t) })
	if i == 0 {
		return model.NoQuote, false
	}
	return model.MidQuote(s.preloaded[i-1].ClosePrice), true
}
