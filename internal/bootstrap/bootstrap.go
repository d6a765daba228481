// Package bootstrap builds the component graph shared by every binary from a
// loaded configuration.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"

	"fxledger/internal/cache"
	"fxledger/internal/config"
	"fxledger/internal/db"
	"fxledger/internal/events"
	"fxledger/internal/ledger"
	"fxledger/internal/logging"
	"fxledger/internal/metrics"
	"fxledger/internal/provider"
	"fxledger/internal/rates"
	"fxledger/internal/repository"
	"fxledger/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

type kafkaWriter interface {
	events.MessageWriter
	io.Closer
}

var (
	initPostgresFunc   = db.InitPostgres
	initRedisFunc      = cache.InitRedis
	newParserLogFunc   = logging.New
	newKafkaWriterFunc = func(brokers, topic string) kafkaWriter {
		return events.NewWriter(brokers, topic)
	}
)

// Components is everything a binary may need. Close releases connections and
// log files in reverse order of creation.
type Components struct {
	Config     *config.Config
	Ledger     *ledger.Service
	Cache      *rates.Cache
	Reconciler *rates.Reconciler
	Sessions   *storage.SessionFileStore
	Metrics    *metrics.Metrics

	closers []func()
}

func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func (c *Components) onClose(fn func()) {
	c.closers = append(c.closers, fn)
}

// Options carries the process-level collaborators.
type Options struct {
	Logger     *logrus.Logger
	Registerer prometheus.Registerer
}

// Build opens the configured backends and wires the rate and ledger services.
// On error everything opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, tracer trace.Tracer, opts Options) (_ *Components, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	c := &Components{Config: cfg, Metrics: metrics.New(reg)}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	rateStore, historyStore, err := c.rateStores(ctx, cfg, tracer)
	if err != nil {
		return nil, err
	}
	users, portfolios, err := c.ledgerStores(ctx, cfg, tracer)
	if err != nil {
		return nil, err
	}

	parserLog := logrus.FieldLogger(logger)
	if cfg.ParserLogPath != "" {
		pl, closer, perr := newParserLogFunc(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Path: cfg.ParserLogPath})
		if perr != nil {
			return nil, perr
		}
		c.onClose(func() { _ = closer.Close() })
		parserLog = pl
	}

	reconcilerOpts := []rates.Option{
		rates.WithLogger(parserLog),
		rates.WithRecorder(c.Metrics),
	}
	if len(cfg.KafkaBrokers) > 0 {
		w := newKafkaWriterFunc(strings.Join(cfg.KafkaBrokers, ","), cfg.KafkaTopic)
		c.onClose(func() { _ = w.Close() })
		reconcilerOpts = append(reconcilerOpts, rates.WithPublisher(events.NewKafkaPublisher(w, tracer)))
		logger.WithField("topic", cfg.KafkaTopic).Info("publishing refresh events to kafka")
	}

	c.Reconciler = rates.NewReconciler(tracer, rateStore, historyStore, rates.ReconcilerConfig{
		Pivot:         cfg.PivotCurrency,
		Priority:      cfg.SourcePriority,
		SourceTimeout: cfg.RequestTimeout,
	}, Sources(tracer, cfg), reconcilerOpts...)
	c.Cache = rates.NewCache(tracer, rateStore, cfg.RatesTTL)
	c.Sessions = storage.NewSessionFileStore(cfg.SessionFile)

	c.Ledger = ledger.NewService(tracer, users, portfolios, c.Cache, ledger.Config{
		BaseCurrency:    cfg.BaseCurrency,
		StartingBalance: cfg.StartingBalance,
		PasswordCost:    bcrypt.DefaultCost,
	},
		ledger.WithActionLogger(logging.NewActionLog(logger, logger.IsLevelEnabled(logrus.DebugLevel))),
		ledger.WithTradeRecorder(c.Metrics),
	)
	return c, nil
}

// Sources builds the quote sources in configured priority order.
func Sources(tracer trace.Tracer, cfg *config.Config) []rates.QuoteSource {
	return []rates.QuoteSource{
		provider.NewCoinGeckoSource(tracer, provider.CoinGeckoOptions{
			BaseURL: cfg.CoinGeckoURL,
			APIKey:  cfg.CoinGeckoAPIKey,
			Pivot:   cfg.PivotCurrency,
			Codes:   cfg.CryptoCurrencies,
			Timeout: cfg.RequestTimeout,
		}),
		provider.NewExchangeRateSource(tracer, provider.ExchangeRateOptions{
			BaseURL: cfg.ExchangeRateURL,
			APIKey:  cfg.ExchangeRateAPIKey,
			Pivot:   cfg.PivotCurrency,
			Codes:   cfg.FiatCurrencies,
			Timeout: cfg.RequestTimeout,
		}),
	}
}

func (c *Components) rateStores(ctx context.Context, cfg *config.Config, tracer trace.Tracer) (rates.RateStore, rates.HistoryStore, error) {
	if cfg.RatesBackend != config.BackendRedis {
		return storage.NewRateFileStore(cfg.RatesFile), storage.NewHistoryFileStore(cfg.HistoryFile), nil
	}
	client, err := initRedisFunc(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("rates backend: %w", err)
	}
	c.onClose(func() { _ = client.Close() })
	return cache.NewRedisRateStore(client, tracer, ""), cache.NewRedisHistoryStore(client, tracer, ""), nil
}

func (c *Components) ledgerStores(ctx context.Context, cfg *config.Config, tracer trace.Tracer) (ledger.UserStore, ledger.PortfolioStore, error) {
	if cfg.StorageBackend != config.BackendPostgres {
		s := storage.NewLedgerFileStore(cfg.UsersFile, cfg.PortfoliosFile)
		return s, s, nil
	}
	pool, err := initPostgresFunc(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("storage backend: %w", err)
	}
	c.onClose(pool.Close)
	repo := repository.NewLedgerRepository(pool, tracer)
	return repo, repo, nil
}
