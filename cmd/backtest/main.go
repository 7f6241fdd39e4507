package main

import (
	"cmp"
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/STTM-NSU/backtester/internal/backtest"
	"github.com/STTM-NSU/backtester/internal/broker"
	"github.com/STTM-NSU/backtester/internal/config"
	"github.com/STTM-NSU/backtester/internal/exchange"
	"github.com/STTM-NSU/backtester/internal/logger"
	"github.com/STTM-NSU/backtester/internal/metrics"
	"github.com/STTM-NSU/backtester/internal/postgres"
	"github.com/STTM-NSU/backtester/internal/server"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	_configFilePath = "./configs/backtest.yaml"
	_configPathEnv  = "BACKTEST_CONFIG"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.LoadBacktestConfig(cmp.Or(os.Getenv(_configPathEnv), _configFilePath))
	if err != nil {
		log.Fatalf("%s: can't load backtest config", err)
	}

	level, _ := logger.ParseLevel(cfg.LogLevel)
	zapLogger, loggerSync, err := logger.NewZapLogger(level)
	if err != nil {
		log.Fatalf("%s: can't init logger", err)
	}
	defer loggerSync()

	if envErr != nil {
		zapLogger.Warnf("can't detect .env file")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	hours := cfg.Exchange.Hours()
	sources, closeSources := newDataSources(ctx, cfg, zapLogger)
	defer closeSources()
	ex := exchange.NewSimulatedExchange(zapLogger, cfg.From, hours, sources...)

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	commissionModel, _ := cfg.CommissionModel()
	policy, _ := cfg.Policy()
	b, err := broker.New(broker.Params{
		StartTime:    cfg.From,
		PriceSource:  ex,
		AccountID:    cfg.AccountID,
		BaseCurrency: cfg.BaseCurrency,
		InitialFunds: cfg.InitialFunds.Decimal,
		Commission:   commissionModel,
		PricePolicy:  policy,
		Logger:       zapLogger,
		Metrics:      m,
	})
	if err != nil {
		zapLogger.Fatalf("%s: can't create broker", err)
	}

	rebalancers := make([]*backtest.Rebalancer, 0, len(cfg.Portfolios))
	for _, pc := range cfg.Portfolios {
		if _, err := b.CreatePortfolio(pc.ID, pc.Name); err != nil {
			zapLogger.Fatalf("%s: can't create portfolio", err)
		}
		if err := b.SubscribeFundsToPortfolio(pc.ID, pc.Funds.Decimal); err != nil {
			zapLogger.Fatalf("%s: can't fund portfolio", err)
		}
		r, err := backtest.NewFixedWeightRebalancer(zapLogger, b, pc.ID, cfg.Targets(pc), pc.CashBuffer.Decimal)
		if err != nil {
			zapLogger.Fatalf("%s: can't create rebalancer", err)
		}
		rebalancers = append(rebalancers, r)
	}

	rule, _ := backtest.NewRule(cfg.Rebalance.Frequency, cfg.Rebalance.Weekday)
	engine := backtest.NewEngine(zapLogger, ex, b, backtest.Params{
		From:               cfg.From,
		To:                 cfg.To,
		Hours:              hours,
		Rule:               rule,
		HourlyMarks:        cfg.Exchange.HourlyMarks,
		StrategyPortfolio:  cfg.Strategy,
		BenchmarkPortfolio: cfg.Benchmark,
	}, rebalancers...)
	engine.SetMetrics(m)

	serverDone := make(chan struct{})
	if cfg.Server.Enabled {
		router := server.NewRouter(server.NewHandler(engine, cfg.Output.Periods), zapLogger, m, registry)
		srv := server.NewHTTPServer(ctx, zapLogger, cfg.Server.Port, router)
		go func() {
			defer close(serverDone)
			if err := srv.Run(ctx); err != nil {
				zapLogger.Errorf("%s: report server failed", err)
			}
		}()
	} else {
		close(serverDone)
	}

	if err := engine.Run(ctx); err != nil {
		zapLogger.Errorf("%s: backtest stopped", err)
	}

	report := engine.Report(cfg.Output.Periods)
	if err := os.MkdirAll(filepath.Dir(cfg.Output.StatisticsPath), 0o755); err != nil {
		zapLogger.Errorf("%s: can't create output directory", err)
	} else if err := report.WriteJSON(cfg.Output.StatisticsPath); err != nil {
		zapLogger.Errorf("%s: can't write statistics", err)
	}

	s := report.Strategy
	zapLogger.Infof("Total return: %.2f%%, CAGR: %.2f%%, Max drawdown: %.2f%% (%d days), Sharpe: %.2f, Sortino: %.2f",
		s.TotalReturn*100, s.CAGR*100, s.MaxDrawdown*100, s.MaxDrawdownDuration, s.Sharpe, s.Sortino)
	if bm := report.Benchmark; bm != nil {
		zapLogger.Infof("Benchmark total return: %.2f%%, Max drawdown: %.2f%%, Sharpe: %.2f",
			bm.TotalReturn*100, bm.MaxDrawdown*100, bm.Sharpe)
	}

	if cfg.Server.Enabled {
		zapLogger.Infof("Serving report on :%s until interrupted", cfg.Server.Port)
		<-ctx.Done()
	}
	<-serverDone
	zapLogger.Infoln("start graceful shutdown")
}

// newDataSources builds one source per asset and configured backend, in the
// order csv, postgres, http.
func newDataSources(ctx context.Context, cfg config.BacktestConfig, l logger.Logger) ([]exchange.DataSource, func()) {
	var (
		sources []exchange.DataSource
		closers []func()
	)
	hours := cfg.Exchange.Hours()

	if dir := cfg.DataSources.CSVDir; dir != "" {
		for _, asset := range cfg.Assets {
			src, err := exchange.NewCSVDataSource(asset, dir, hours)
			if err != nil {
				l.Fatalf("%s: can't load csv prices", err)
			}
			sources = append(sources, src)
		}
	}

	if cfg.DataSources.Postgres.Enabled {
		pgConfig := postgres.NewConfigFromEnv().Setup()
		l.Debugf("trying to connect to db with: %s", pgConfig)
		db, err := postgres.NewDB(ctx, pgConfig)
		if err != nil {
			l.Fatalf("%s: can't connect to db", err)
		}
		closers = append(closers, func() { _ = db.Close() })

		for _, asset := range cfg.Assets {
			src := exchange.NewPostgresDataSource(db, l, asset, cfg.DataSources.Postgres.QueryTimeout)
			if err := src.Preload(ctx, cfg.From, hours.CloseAt(cfg.To)); err != nil {
				l.Warnf("%s: can't preload candles, querying on demand", err)
			}
			sources = append(sources, src)
		}
	}

	if httpCfg := cfg.DataSources.HTTP; httpCfg != nil {
		for _, asset := range cfg.Assets {
			src := exchange.NewHTTPDataSource(*httpCfg, l, asset)
			closers = append(closers, func() { _ = src.Close() })
			sources = append(sources, src)
		}
	}

	return sources, func() {
		for _, c := range closers {
			c()
		}
	}
}
