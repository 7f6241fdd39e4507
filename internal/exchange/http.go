package exchange

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/STTM-NSU/backtester/internal/logger"
	"github.com/STTM-NSU/backtester/internal/model"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

const (
	_quoteURL = "/quote"

	_defaultRatePerMinute = 500
	_defaultMaxRetries    = 3
	_defaultHTTPTimeout   = 10 * time.Second

	_defaultBreakerMaxRequests = 5
	_defaultBreakerInterval    = time.Minute
	_defaultBreakerTimeout     = 30 * time.Second
)

type HTTPConfig struct {
	Address       string        `yaml:"address"`
	RatePerMinute int           `yaml:"rate_per_minute"`
	MaxRetries    int           `yaml:"max_retries"`
	Timeout       time.Duration `yaml:"timeout"`

	// Circuit breaker around the quote service. It opens once at least
	// half of five or more requests in Interval failed at transport level.
	BreakerMaxRequests uint32        `yaml:"breaker_max_requests"`
	BreakerInterval    time.Duration `yaml:"breaker_interval"`
	BreakerTimeout     time.Duration `yaml:"breaker_timeout"`
}

func (c *HTTPConfig) Setup() *HTTPConfig {
	c.RatePerMinute = cmp.Or(c.RatePerMinute, _defaultRatePerMinute)
	c.MaxRetries = cmp.Or(c.MaxRetries, _defaultMaxRetries)
	c.Timeout = cmp.Or(c.Timeout, _defaultHTTPTimeout)
	c.BreakerMaxRequests = cmp.Or(c.BreakerMaxRequests, _defaultBreakerMaxRequests)
	c.BreakerInterval = cmp.Or(c.BreakerInterval, _defaultBreakerInterval)
	c.BreakerTimeout = cmp.Or(c.BreakerTimeout, _defaultBreakerTimeout)
	return c
}

// HTTPDataSource asks a quote service for the bid/ask at a given time:
//
//	GET /quote?symbol=EQ:ABC&ts=2020-06-01T14:30:00
type HTTPDataSource struct {
	c     *resty.Client
	cfg   HTTPConfig
	asset model.Asset

	rateLimiter ratelimit.Limiter
	breaker     *gobreaker.CircuitBreaker[quoteResult]
	logger      logger.Logger

	mu    sync.Mutex
	cache map[time.Time]model.Quote
}

func NewHTTPDataSource(cfg HTTPConfig, logger logger.Logger, asset model.Asset) *HTTPDataSource {
	cfg.Setup()
	client := resty.New().
		SetLogger(logger).
		SetBaseURL(cfg.Address).
		SetTimeout(cfg.Timeout)

	breaker := gobreaker.NewCircuitBreaker[quoteResult](gobreaker.Settings{
		Name:        "quotes:" + asset.Symbol,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		// a missing quote is an answer, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoQuote)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("circuit breaker %s state change %s -> %s", name, from, to)
		},
	})

	return &HTTPDataSource{
		c:           client,
		cfg:         cfg,
		asset:       asset,
		rateLimiter: ratelimit.New(cfg.RatePerMinute, ratelimit.Per(time.Minute)),
		breaker:     breaker,
		logger:      logger,
		cache:       make(map[time.Time]model.Quote),
	}
}

type quoteResult struct {
	quote      model.Quote
	retryAfter time.Duration
}

func (s *HTTPDataSource) Asset() model.Asset {
	return s.asset
}

func (s *HTTPDataSource) Close() error {
	return s.c.Close()
}

func (s *HTTPDataSource) PriceAt(t time.Time) (model.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if q, ok := s.cache[t]; ok {
		return q, nil
	}

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		res, err := s.breaker.Execute(func() (quoteResult, error) {
			return s.getQuote(context.Background(), t)
		})
		if err == nil {
			s.cache[t] = res.quote
			return res.quote, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return model.NoQuote, fmt.Errorf("%w: quote service unavailable: %s", ErrNoQuote, err)
		}
		lastErr = err
		if res.retryAfter <= 0 {
			break
		}
		s.logger.Warnf("%s: retrying quote for %s in %s", err, s.asset.Symbol, res.retryAfter)
		time.Sleep(res.retryAfter)
	}
	return model.NoQuote, lastErr
}

func (s *HTTPDataSource) getQuote(ctx context.Context, t time.Time) (quoteResult, error) {
	s.rateLimiter.Take()

	ts := strings.TrimSuffix(t.UTC().Format(time.RFC3339), "Z")
	req := s.c.R().
		SetQueryParams(map[string]string{
			"symbol": s.asset.Symbol,
			"ts":     ts,
		}).
		SetResult(&model.QuoteResponse{}).
		SetError(&model.QuoteErrorResponse{}).
		SetContext(ctx)

	resp, err := req.Get(_quoteURL)
	if err != nil {
		return quoteResult{}, fmt.Errorf("%w: can't send request for quote", err)
	}
	defer resp.Body.Close()

	s.logger.Debugf("got response %s status: %s, %s", resp.Request.URL, resp.Status(), resp.Duration())

	if resp.IsError() {
		response := resp.Error().(*model.QuoteErrorResponse)
		return quoteResult{retryAfter: response.RetryAfter}, fmt.Errorf("%w: %s: quote request error", ErrNoQuote, response.Message)
	}
	if resp.IsSuccess() {
		r := resp.Result().(*model.QuoteResponse)
		if r.Bid < 0 || r.Ask < 0 {
			return quoteResult{}, fmt.Errorf("%w: negative quote for %s", ErrNoQuote, s.asset.Symbol)
		}
		return quoteResult{quote: model.NewQuote(decimal.NewFromFloat(r.Bid), decimal.NewFromFloat(r.Ask))}, nil
	}

	return quoteResult{}, fmt.Errorf("quote unexpected request error: %s", resp.Status())
}
