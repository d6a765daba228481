package ledger

import (
	"context"

	"fxledger/internal/domain"
	"fxledger/internal/rates"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Holding is one wallet line valued in the requested base.
type Holding struct {
	Code    domain.Code
	Balance decimal.Decimal
	Rate    decimal.Decimal
	Value   decimal.Decimal
}

type Valuation struct {
	UserID   string
	Base     domain.Code
	Holdings []Holding
	Total    decimal.Decimal
}

// ValuePortfolio values every non-zero wallet entry in base using the fresh
// rate table. An empty base means the configured default.
func (s *Service) ValuePortfolio(ctx context.Context, userID string, base domain.Code) (v *Valuation, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.value_portfolio")
	defer span.End()

	if base == "" {
		base = s.base
	}
	fields := logrus.Fields{"user_id": userID, "base": string(base)}
	s.actions.Begin("SHOW_PORTFOLIO", fields)
	defer func() { s.actions.End("SHOW_PORTFOLIO", fields, err) }()

	table, err := s.rates.FreshTable(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := table.Rate(base); !ok {
		return nil, &domain.UnknownCurrencyError{Code: base}
	}
	p, err := s.portfolios.LoadPortfolio(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := &Valuation{UserID: userID, Base: base, Total: decimal.Zero}
	for _, code := range p.Wallet.Codes() {
		balance := p.Wallet[code]
		if balance.IsZero() {
			continue
		}
		rate, err := rates.Convert(table, code, base)
		if err != nil {
			return nil, err
		}
		value := balance.Mul(rate)
		out.Holdings = append(out.Holdings, Holding{Code: code, Balance: balance, Rate: rate, Value: value})
		out.Total = out.Total.Add(value)
	}
	return out, nil
}

// Portfolio returns a copy of the user's stored portfolio.
func (s *Service) Portfolio(ctx context.Context, userID string) (*domain.Portfolio, error) {
	p, err := s.portfolios.LoadPortfolio(ctx, userID)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// GetRate returns the cached rate for from→to.
func (s *Service) GetRate(ctx context.Context, from, to domain.Code) (q domain.Quote, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.get_rate")
	defer span.End()

	fields := logrus.Fields{"from": string(from), "to": string(to)}
	s.actions.Begin("GET_RATE", fields)
	defer func() { s.actions.End("GET_RATE", fields, err) }()

	return s.rates.GetRate(ctx, from, to)
}
