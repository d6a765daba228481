package handler

import (
	"net/http"

	"fxledger/internal/auth"
	"fxledger/internal/domain"
	"fxledger/internal/ledger"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetPortfolio godoc
// @Summary      Show portfolio
// @Description  Values every wallet entry in the requested base currency
// @Tags         portfolio
// @Produce      json
// @Security     BearerAuth
// @Param        base  query     string  false  "Base currency (defaults to the configured one)"
// @Success      200   {object}  portfolioResponse
// @Failure      401   {object}  errorResponse
// @Failure      503   {object}  errorResponse
// @Router       /api/portfolio [get]
func (h *Handler) GetPortfolio(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-portfolio")
	defer span.End()

	userID, _ := auth.UserID(c)
	var base domain.Code
	if raw := c.Query("base"); raw != "" {
		code, err := domain.NormalizeCode(raw)
		if err != nil {
			writeError(c, err)
			return
		}
		base = code
	}

	v, err := h.ledger.ValuePortfolio(ctx, userID, base)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := portfolioResponse{UserID: v.UserID, Base: v.Base, Total: v.Total, Holdings: []holdingResponse{}}
	for _, item := range v.Holdings {
		resp.Holdings = append(resp.Holdings, holdingResponse{
			Currency: item.Code,
			Balance:  item.Balance,
			Rate:     item.Rate,
			Value:    item.Value,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// Buy godoc
// @Summary      Buy currency
// @Description  Spends base currency at the cached rate
// @Tags         portfolio
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      tradeRequest  true  "Trade"
// @Success      200   {object}  tradeResponse
// @Failure      400   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Failure      503   {object}  errorResponse
// @Router       /api/portfolio/buy [post]
func (h *Handler) Buy(c *gin.Context) {
	h.trade(c, ledger.SideBuy)
}

// Sell godoc
// @Summary      Sell currency
// @Description  Converts holdings back into the base currency at the cached rate
// @Tags         portfolio
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      tradeRequest  true  "Trade"
// @Success      200   {object}  tradeResponse
// @Failure      400   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Failure      503   {object}  errorResponse
// @Router       /api/portfolio/sell [post]
func (h *Handler) Sell(c *gin.Context) {
	h.trade(c, ledger.SideSell)
}

func (h *Handler) trade(c *gin.Context, side string) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler."+side)
	defer span.End()

	userID, _ := auth.UserID(c)
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), ErrorType: "ValidationError"})
		return
	}
	code, err := domain.NormalizeCode(req.Currency)
	if err != nil {
		writeError(c, err)
		return
	}
	span.SetAttributes(attribute.String("currency", string(code)), attribute.String("amount", req.Amount.String()))

	fn := h.ledger.Buy
	if side == ledger.SideSell {
		fn = h.ledger.Sell
	}
	receipt, err := fn(ctx, userID, code, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tradeResponse{
		Side:          receipt.Side,
		Currency:      receipt.Currency,
		Amount:        receipt.Amount,
		Base:          receipt.Base,
		Rate:          receipt.Rate,
		Total:         receipt.Total,
		BalanceBefore: receipt.BalanceBefore,
		BalanceAfter:  receipt.BalanceAfter,
	})
}
