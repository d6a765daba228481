package handler

import (
	"context"

	"fxledger/internal/auth"
	"fxledger/internal/domain"
	"fxledger/internal/ledger"
	"fxledger/internal/rates"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
)

type Ledger interface {
	Register(ctx context.Context, username, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*domain.User, error)
	Buy(ctx context.Context, userID string, currency domain.Code, amount decimal.Decimal) (*ledger.TradeReceipt, error)
	Sell(ctx context.Context, userID string, currency domain.Code, amount decimal.Decimal) (*ledger.TradeReceipt, error)
	ValuePortfolio(ctx context.Context, userID string, base domain.Code) (*ledger.Valuation, error)
	GetRate(ctx context.Context, from, to domain.Code) (domain.Quote, error)
	BaseCurrency() domain.Code
}

type RateReader interface {
	Snapshot(ctx context.Context) (domain.RateTable, bool, error)
	Rates(ctx context.Context, base domain.Code) ([]domain.Quote, error)
	Top(ctx context.Context, n int, base domain.Code) ([]domain.Quote, error)
}

type RateRefresher interface {
	Refresh(ctx context.Context, opts rates.RefreshOptions) (*rates.RefreshResult, error)
}

type Handler struct {
	tracer    trace.Tracer
	ledger    Ledger
	rates     RateReader
	refresher RateRefresher
	tokens    *auth.TokenIssuer
	adminKey  string
}

func New(tracer trace.Tracer, ledger Ledger, rates RateReader, refresher RateRefresher, tokens *auth.TokenIssuer, adminKey string) *Handler {
	return &Handler{
		tracer:    tracer,
		ledger:    ledger,
		rates:     rates,
		refresher: refresher,
		tokens:    tokens,
		adminKey:  adminKey,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.POST("/register", h.Register)
	api.POST("/login", h.Login)
	api.GET("/rates", h.ListRates)
	api.GET("/rates/:from/:to", h.GetRate)
	api.POST("/rates/refresh", APIKeyAuth(h.adminKey), h.RefreshRates)

	portfolio := api.Group("/portfolio", auth.RequireUser(h.tokens))
	portfolio.GET("", h.GetPortfolio)
	portfolio.POST("/buy", h.Buy)
	portfolio.POST("/sell", h.Sell)
}
