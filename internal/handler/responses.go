package handler

import (
	"time"

	"fxledger/internal/domain"

	"github.com/shopspring/decimal"
)

type errorResponse struct {
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
}

type healthResponse struct {
	Status      string     `json:"status"`
	RatesStale  bool       `json:"rates_stale"`
	LastRefresh *time.Time `json:"last_refresh,omitempty"`
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	RegisteredAt time.Time `json:"registration_date"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      userResponse `json:"user"`
}

type tradeRequest struct {
	Currency string          `json:"currency" binding:"required"`
	Amount   decimal.Decimal `json:"amount" swaggertype:"string" example:"0.01"`
}

type tradeResponse struct {
	Side          string          `json:"side"`
	Currency      domain.Code     `json:"currency"`
	Amount        decimal.Decimal `json:"amount" swaggertype:"string"`
	Base          domain.Code     `json:"base"`
	Rate          decimal.Decimal `json:"rate" swaggertype:"string"`
	Total         decimal.Decimal `json:"total" swaggertype:"string"`
	BalanceBefore decimal.Decimal `json:"balance_before" swaggertype:"string"`
	BalanceAfter  decimal.Decimal `json:"balance_after" swaggertype:"string"`
}

type holdingResponse struct {
	Currency domain.Code     `json:"currency"`
	Balance  decimal.Decimal `json:"balance" swaggertype:"string"`
	Rate     decimal.Decimal `json:"rate" swaggertype:"string"`
	Value    decimal.Decimal `json:"value" swaggertype:"string"`
}

type portfolioResponse struct {
	UserID   string            `json:"user_id"`
	Base     domain.Code       `json:"base"`
	Holdings []holdingResponse `json:"holdings"`
	Total    decimal.Decimal   `json:"total" swaggertype:"string"`
}

type rateResponse struct {
	From      domain.Code     `json:"from"`
	To        domain.Code     `json:"to"`
	Rate      decimal.Decimal `json:"rate" swaggertype:"string"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type ratesResponse struct {
	Base        domain.Code    `json:"base"`
	LastRefresh time.Time      `json:"last_refresh"`
	Rates       []rateResponse `json:"rates"`
}

type refreshRequest struct {
	Sources []string `json:"sources"`
}

type refreshResponse struct {
	Outcome     string                 `json:"outcome"`
	LastRefresh time.Time              `json:"last_refresh"`
	TotalRates  int                    `json:"total_rates"`
	Accepted    int                    `json:"accepted"`
	Succeeded   []domain.Source        `json:"succeeded"`
	Warnings    []domain.SourceFailure `json:"warnings,omitempty"`
}

func toRateResponse(q domain.Quote) rateResponse {
	return rateResponse{From: q.From, To: q.To, Rate: q.Rate, UpdatedAt: q.UpdatedAt}
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{UserID: u.ID, Username: u.Username, RegisteredAt: u.RegisteredAt}
}
