package ledger

import (
	"context"
	"errors"
	"fmt"

	"fxledger/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// TradeReceipt describes a completed buy or sell.
type TradeReceipt struct {
	Side     string
	Currency domain.Code
	Amount   decimal.Decimal
	Base     domain.Code
	Rate     decimal.Decimal
	// Total is the base-currency cost of a buy or the proceeds of a sell.
	Total         decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	BaseBefore    decimal.Decimal
	BaseAfter     decimal.Decimal
}

// Buy spends base currency at the cached rate to acquire amount of currency.
func (s *Service) Buy(ctx context.Context, userID string, currency domain.Code, amount decimal.Decimal) (*TradeReceipt, error) {
	return s.trade(ctx, SideBuy, userID, currency, amount)
}

// Sell converts amount of currency back into the base currency.
func (s *Service) Sell(ctx context.Context, userID string, currency domain.Code, amount decimal.Decimal) (*TradeReceipt, error) {
	return s.trade(ctx, SideSell, userID, currency, amount)
}

func (s *Service) trade(ctx context.Context, side, userID string, currency domain.Code, amount decimal.Decimal) (receipt *TradeReceipt, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger."+side)
	defer span.End()

	action := "BUY"
	if side == SideSell {
		action = "SELL"
	}
	fields := logrus.Fields{
		"user_id":  userID,
		"currency": string(currency),
		"amount":   amount.String(),
		"base":     string(s.base),
	}
	s.actions.Begin(action, fields)
	defer func() {
		if receipt != nil {
			fields["rate"] = receipt.Rate.String()
			fields["balance_before"] = receipt.BalanceBefore.String()
			fields["balance_after"] = receipt.BalanceAfter.String()
		}
		if err != nil {
			span.RecordError(err)
		}
		s.actions.End(action, fields, err)
		if s.recorder != nil {
			s.recorder.ObserveTrade(side, err)
		}
	}()

	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidAmount, amount)
	}
	if currency == s.base {
		return nil, fmt.Errorf("%w: cannot trade %s against itself", domain.ErrSameCurrency, currency)
	}

	unlock := s.lock(userID)
	defer unlock()

	// Rate checks come before any read of the wallet so a stale cache never
	// gets as far as a mutation.
	quote, err := s.rates.GetRate(ctx, currency, s.base)
	if err != nil {
		return nil, err
	}
	current, err := s.portfolios.LoadPortfolio(ctx, userID)
	if err != nil {
		return nil, err
	}

	held := current.Wallet.Balance(currency)
	baseHeld := current.Wallet.Balance(s.base)
	total := amount.Mul(quote.Rate)

	next := current.Clone()
	r := &TradeReceipt{
		Side:          side,
		Currency:      currency,
		Amount:        amount,
		Base:          s.base,
		Rate:          quote.Rate,
		Total:         total,
		BalanceBefore: held,
		BaseBefore:    baseHeld,
	}
	switch side {
	case SideBuy:
		if baseHeld.LessThan(total) {
			return nil, &domain.InsufficientFundsError{Code: s.base, Available: baseHeld, Required: total}
		}
		r.BalanceAfter = held.Add(amount)
		r.BaseAfter = baseHeld.Sub(total)
	default:
		if held.LessThan(amount) {
			return nil, &domain.InsufficientHoldingsError{Code: currency, Available: held, Requested: amount}
		}
		r.BalanceAfter = held.Sub(amount)
		r.BaseAfter = baseHeld.Add(total)
	}
	next.Wallet[currency] = r.BalanceAfter
	next.Wallet[s.base] = r.BaseAfter

	if err := s.portfolios.SavePortfolio(ctx, next); err != nil {
		if !errors.Is(err, domain.ErrPersistenceWrite) {
			err = &domain.PersistenceWriteError{Target: "portfolio", Err: err}
		}
		return nil, err
	}
	return r, nil
}
