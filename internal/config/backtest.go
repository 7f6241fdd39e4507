package config

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/STTM-NSU/backtester/internal/backtest"
	"github.com/STTM-NSU/backtester/internal/broker"
	"github.com/STTM-NSU/backtester/internal/commission"
	"github.com/STTM-NSU/backtester/internal/exchange"
	"github.com/STTM-NSU/backtester/internal/logger"
	"github.com/STTM-NSU/backtester/internal/model"
	"github.com/STTM-NSU/backtester/internal/statistics"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	_defaultAccountID      = "backtest"
	_defaultStatisticsPath = "statistics.json"
	_defaultServerPort     = "8080"

	_quoteServiceAddressEnv = "QUOTE_SERVICE_ADDRESS"
	_logLevelEnv            = "LOG_LEVEL"
)

type CommissionConfig struct {
	Model  string `yaml:"model"`  // zero, percent, td_direct
	Tariff string `yaml:"tariff"` // percent only
}

type ExchangeConfig struct {
	Open        ClockTime `yaml:"open"`
	Close       ClockTime `yaml:"close"`
	HourlyMarks bool      `yaml:"hourly_marks"`
}

func (c ExchangeConfig) Hours() exchange.Hours {
	return exchange.Hours{Open: c.Open.Duration(), Close: c.Close.Duration()}
}

type PostgresSourceConfig struct {
	Enabled      bool          `yaml:"enabled"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// DataSourcesConfig lists where prices come from. Sources are asked in the
// order csv, postgres, http and the first one with a quote wins.
type DataSourcesConfig struct {
	CSVDir   string               `yaml:"csv_dir"`
	Postgres PostgresSourceConfig `yaml:"postgres"`
	HTTP     *exchange.HTTPConfig `yaml:"http"`
}

type PortfolioConfig struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	Funds      Amount            `yaml:"funds"`
	CashBuffer Amount            `yaml:"cash_buffer"`
	Weights    map[string]Amount `yaml:"weights"` // symbol -> share of equity
}

type RebalanceConfig struct {
	Frequency backtest.Frequency `yaml:"frequency"`
	Weekday   string             `yaml:"weekday"` // weekly only
}

type OutputConfig struct {
	StatisticsPath string `yaml:"statistics_path"`
	Periods        int    `yaml:"periods"`
}

type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
}

type BacktestConfig struct {
	From time.Time `yaml:"from"`
	To   time.Time `yaml:"to"`

	AccountID    string           `yaml:"account_id"`
	BaseCurrency model.Currency   `yaml:"base_currency"`
	InitialFunds Amount           `yaml:"initial_funds"`
	Commission   CommissionConfig `yaml:"commission"`
	PricePolicy  string           `yaml:"price_policy"` // bid_ask, mid

	Exchange    ExchangeConfig    `yaml:"exchange"`
	DataSources DataSourcesConfig `yaml:"data_sources"`
	Assets      []model.Asset     `yaml:"assets"`

	Portfolios []PortfolioConfig `yaml:"portfolios"`
	Rebalance  RebalanceConfig   `yaml:"rebalance"`
	Strategy   string            `yaml:"strategy"`  // portfolio id, master account when empty
	Benchmark  string            `yaml:"benchmark"` // portfolio id

	Output   OutputConfig `yaml:"output"`
	Server   ServerConfig `yaml:"server"`
	LogLevel string       `yaml:"log_level"`
}

func LoadBacktestConfig(filename string) (BacktestConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return BacktestConfig{}, fmt.Errorf("%w: can't read config", err)
	}
	cfg, err := ParseBacktestConfig(data)
	if err != nil {
		return BacktestConfig{}, fmt.Errorf("%w: can't load config %s", err, filename)
	}
	return cfg, nil
}

func ParseBacktestConfig(data []byte) (BacktestConfig, error) {
	var cfg BacktestConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return BacktestConfig{}, fmt.Errorf("%w: %w: can't parse yaml", model.ErrConfiguration, err)
	}

	if addr := os.Getenv(_quoteServiceAddressEnv); addr != "" {
		if cfg.DataSources.HTTP == nil {
			cfg.DataSources.HTTP = &exchange.HTTPConfig{}
		}
		cfg.DataSources.HTTP.Address = addr
	}
	cfg.LogLevel = cmp.Or(os.Getenv(_logLevelEnv), cfg.LogLevel)

	if err := cfg.ValidateAndSetup(); err != nil {
		return BacktestConfig{}, err
	}
	return cfg, nil
}

func (c *BacktestConfig) ValidateAndSetup() error {
	if c.From.IsZero() || c.To.IsZero() {
		return fmt.Errorf("%w: from and to are required", model.ErrConfiguration)
	}
	if c.From.After(c.To) {
		return fmt.Errorf("%w: from %s is after to %s", model.ErrConfiguration,
			c.From.Format(time.DateOnly), c.To.Format(time.DateOnly))
	}

	c.AccountID = cmp.Or(c.AccountID, _defaultAccountID)
	c.BaseCurrency = cmp.Or(c.BaseCurrency, model.USD)
	if c.InitialFunds.IsNegative() {
		return fmt.Errorf("%w: negative initial funds %s", model.ErrConfiguration, c.InitialFunds)
	}
	if _, err := c.CommissionModel(); err != nil {
		return err
	}
	if _, err := c.Policy(); err != nil {
		return err
	}

	if c.Exchange.Open == 0 && c.Exchange.Close == 0 {
		c.Exchange.Open = ClockTime(exchange.DefaultHours.Open)
		c.Exchange.Close = ClockTime(exchange.DefaultHours.Close)
	}
	if c.Exchange.Open >= c.Exchange.Close {
		return fmt.Errorf("%w: exchange opens at %s, after closing at %s", model.ErrConfiguration,
			c.Exchange.Open, c.Exchange.Close)
	}

	if err := c.setupDataSources(); err != nil {
		return err
	}
	if err := c.setupAssets(); err != nil {
		return err
	}
	if err := c.setupPortfolios(); err != nil {
		return err
	}

	c.Rebalance.Frequency = cmp.Or(c.Rebalance.Frequency, backtest.BuyAndHold)
	if _, err := backtest.NewRule(c.Rebalance.Frequency, c.Rebalance.Weekday); err != nil {
		return err
	}

	c.Output.StatisticsPath = cmp.Or(c.Output.StatisticsPath, _defaultStatisticsPath)
	c.Output.Periods = cmp.Or(c.Output.Periods, statistics.DefaultPeriods)
	if c.Output.Periods < 0 {
		return fmt.Errorf("%w: negative periods per year", model.ErrConfiguration)
	}
	c.Server.Port = cmp.Or(c.Server.Port, _defaultServerPort)

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", model.ErrConfiguration, err)
	}
	return nil
}

func (c *BacktestConfig) setupDataSources() error {
	ds := &c.DataSources
	if ds.CSVDir == "" && !ds.Postgres.Enabled && ds.HTTP == nil {
		return fmt.Errorf("%w: no data source configured", model.ErrConfiguration)
	}
	if ds.HTTP != nil {
		if ds.HTTP.Address == "" {
			return fmt.Errorf("%w: quote service address is required", model.ErrConfiguration)
		}
		ds.HTTP.Setup()
	}
	return nil
}

func (c *BacktestConfig) setupAssets() error {
	if len(c.Assets) == 0 {
		return fmt.Errorf("%w: no assets configured", model.ErrConfiguration)
	}
	seen := make(map[string]struct{}, len(c.Assets))
	for i := range c.Assets {
		a := &c.Assets[i]
		if a.Symbol == "" {
			return fmt.Errorf("%w: asset %d has no symbol", model.ErrConfiguration, i)
		}
		if _, ok := seen[a.Symbol]; ok {
			return fmt.Errorf("%w: duplicate asset %s", model.ErrConfiguration, a.Symbol)
		}
		seen[a.Symbol] = struct{}{}
		a.Name = cmp.Or(a.Name, a.Symbol)
		a.InstrumentType = cmp.Or(a.InstrumentType, model.Share)
	}
	return nil
}

func (c *BacktestConfig) setupPortfolios() error {
	if len(c.Portfolios) == 0 {
		return fmt.Errorf("%w: no portfolios configured", model.ErrConfiguration)
	}

	var errs []error
	total := decimal.Zero
	ids := make(map[string]struct{}, len(c.Portfolios))
	for _, p := range c.Portfolios {
		if p.ID == "" {
			errs = append(errs, errors.New("portfolio without id"))
			continue
		}
		if _, ok := ids[p.ID]; ok {
			errs = append(errs, fmt.Errorf("duplicate portfolio %q", p.ID))
		}
		ids[p.ID] = struct{}{}
		if p.Funds.IsNegative() {
			errs = append(errs, fmt.Errorf("portfolio %q has negative funds", p.ID))
		}
		total = total.Add(p.Funds.Decimal)
		for symbol := range p.Weights {
			if _, ok := c.Asset(symbol); !ok {
				errs = append(errs, fmt.Errorf("portfolio %q targets unknown asset %s", p.ID, symbol))
			}
		}
	}
	if total.GreaterThan(c.InitialFunds.Decimal) {
		errs = append(errs, fmt.Errorf("portfolio funds %s exceed initial funds %s", total, c.InitialFunds))
	}
	for _, id := range []string{c.Strategy, c.Benchmark} {
		if _, ok := ids[id]; id != "" && !ok {
			errs = append(errs, fmt.Errorf("unknown portfolio %q in report settings", id))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", model.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

func (c *BacktestConfig) Asset(symbol string) (model.Asset, bool) {
	i := slices.IndexFunc(c.Assets, func(a model.Asset) bool { return a.Symbol == symbol })
	if i < 0 {
		return model.Asset{}, false
	}
	return c.Assets[i], true
}

func (c *BacktestConfig) CommissionModel() (commission.Model, error) {
	return commission.New(c.Commission.Model, c.Commission.Tariff)
}

func (c *BacktestConfig) Policy() (broker.PricePolicy, error) {
	switch c.PricePolicy {
	case "", "bid_ask":
		return broker.PriceBidAsk, nil
	case "mid":
		return broker.PriceMid, nil
	}
	return 0, fmt.Errorf("%w: unknown price policy %q", model.ErrConfiguration, c.PricePolicy)
}

// Targets returns the portfolio's weights sorted by symbol.
func (c *BacktestConfig) Targets(p PortfolioConfig) []backtest.Target {
	targets := make([]backtest.Target, 0, len(p.Weights))
	for symbol, w := range p.Weights {
		asset, _ := c.Asset(symbol)
		targets = append(targets, backtest.Target{Asset: asset, Weight: w.Decimal})
	}
	slices.SortFunc(targets, func(a, b backtest.Target) int { return cmp.Compare(a.Asset.Symbol, b.Asset.Symbol) })
	return targets
}
