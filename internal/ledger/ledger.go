// Package ledger owns users and portfolios. Service is the only code that
// changes wallet balances.
package ledger

import (
	"context"
	"sync"
	"time"

	"fxledger/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

type UserStore interface {
	CreateUser(ctx context.Context, user domain.User, portfolio domain.Portfolio) error
	FindUserByUsername(ctx context.Context, username string) (*domain.User, error)
	FindUserByID(ctx context.Context, id string) (*domain.User, error)
}

type PortfolioStore interface {
	LoadPortfolio(ctx context.Context, userID string) (*domain.Portfolio, error)
	SavePortfolio(ctx context.Context, p *domain.Portfolio) error
}

// RateProvider is the read side of the rate cache.
type RateProvider interface {
	FreshTable(ctx context.Context) (domain.RateTable, error)
	GetRate(ctx context.Context, from, to domain.Code) (domain.Quote, error)
}

// ActionLogger is called before and after every usecase.
type ActionLogger interface {
	Begin(action string, fields logrus.Fields)
	End(action string, fields logrus.Fields, err error)
}

type TradeRecorder interface {
	ObserveTrade(side string, err error)
}

type Config struct {
	BaseCurrency    domain.Code
	StartingBalance decimal.Decimal
	PasswordCost    int
}

type Service struct {
	tracer     trace.Tracer
	users      UserStore
	portfolios PortfolioStore
	rates      RateProvider
	actions    ActionLogger
	recorder   TradeRecorder

	base            domain.Code
	startingBalance decimal.Decimal
	passwordCost    int
	newID           func() string
	now             func() time.Time

	locks sync.Map // user id -> *sync.Mutex
}

type Option func(*Service)

func WithActionLogger(a ActionLogger) Option {
	return func(s *Service) { s.actions = a }
}

func WithTradeRecorder(r TradeRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

func NewService(tracer trace.Tracer, users UserStore, portfolios PortfolioStore, rates RateProvider, cfg Config, opts ...Option) *Service {
	if cfg.BaseCurrency == "" {
		cfg.BaseCurrency = "USD"
	}
	if cfg.PasswordCost == 0 {
		cfg.PasswordCost = bcrypt.DefaultCost
	}
	s := &Service{
		tracer:          tracer,
		users:           users,
		portfolios:      portfolios,
		rates:           rates,
		actions:         nopActions{},
		base:            cfg.BaseCurrency,
		startingBalance: cfg.StartingBalance,
		passwordCost:    cfg.PasswordCost,
		newID:           uuid.NewString,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BaseCurrency is the currency buy and sell settle in.
func (s *Service) BaseCurrency() domain.Code { return s.base }

// lock serializes mutations of one portfolio.
func (s *Service) lock(userID string) func() {
	v, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

type nopActions struct{}

func (nopActions) Begin(string, logrus.Fields)      {}
func (nopActions) End(string, logrus.Fields, error) {}
