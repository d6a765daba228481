package handler

import (
	"net/http"
	"strconv"
	"strings"

	"fxledger/internal/domain"
	"fxledger/internal/rates"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetRate godoc
// @Summary      Get a conversion rate
// @Description  Converts one unit of from into to through the pivot currency
// @Tags         rates
// @Produce      json
// @Param        from  path      string  true  "Source currency (e.g., BTC)"
// @Param        to    path      string  true  "Target currency (e.g., USD)"
// @Success      200   {object}  rateResponse
// @Failure      404   {object}  errorResponse
// @Failure      503   {object}  errorResponse
// @Router       /api/rates/{from}/{to} [get]
func (h *Handler) GetRate(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-rate")
	defer span.End()

	from, err := domain.NormalizeCode(c.Param("from"))
	if err != nil {
		writeError(c, err)
		return
	}
	to, err := domain.NormalizeCode(c.Param("to"))
	if err != nil {
		writeError(c, err)
		return
	}
	span.SetAttributes(attribute.String("from", string(from)), attribute.String("to", string(to)))

	q, err := h.ledger.GetRate(ctx, from, to)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRateResponse(q))
}

// ListRates godoc
// @Summary      List cached rates
// @Description  Returns every cached rate against base, or the top N by value
// @Tags         rates
// @Produce      json
// @Param        base      query     string  false  "Base currency"
// @Param        top       query     int     false  "Only the N highest rates"
// @Param        currency  query     string  false  "Only this currency"
// @Success      200       {object}  ratesResponse
// @Failure      503       {object}  errorResponse
// @Router       /api/rates [get]
func (h *Handler) ListRates(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-rates")
	defer span.End()

	base := h.ledger.BaseCurrency()
	if raw := c.Query("base"); raw != "" {
		code, err := domain.NormalizeCode(raw)
		if err != nil {
			writeError(c, err)
			return
		}
		base = code
	}

	var (
		quotes []domain.Quote
		err    error
	)
	switch {
	case c.Query("currency") != "":
		code, cerr := domain.NormalizeCode(c.Query("currency"))
		if cerr != nil {
			writeError(c, cerr)
			return
		}
		var q domain.Quote
		q, err = h.ledger.GetRate(ctx, code, base)
		quotes = []domain.Quote{q}
	case c.Query("top") != "":
		n, perr := strconv.Atoi(c.Query("top"))
		if perr != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "top must be a positive integer", ErrorType: "ValidationError"})
			return
		}
		quotes, err = h.rates.Top(ctx, n, base)
	default:
		quotes, err = h.rates.Rates(ctx, base)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	resp := ratesResponse{Base: base, Rates: make([]rateResponse, 0, len(quotes))}
	for _, q := range quotes {
		resp.Rates = append(resp.Rates, toRateResponse(q))
		if q.UpdatedAt.After(resp.LastRefresh) {
			resp.LastRefresh = q.UpdatedAt
		}
	}
	c.JSON(http.StatusOK, resp)
}

// RefreshRates godoc
// @Summary      Refresh rates
// @Description  Runs one reconciliation cycle against the configured sources
// @Tags         rates
// @Accept       json
// @Produce      json
// @Param        X-API-Key  header    string          false  "Admin API key"
// @Param        body       body      refreshRequest  false  "Limit to these sources"
// @Success      200        {object}  refreshResponse
// @Failure      502        {object}  errorResponse
// @Router       /api/rates/refresh [post]
func (h *Handler) RefreshRates(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.refresh-rates")
	defer span.End()

	var req refreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), ErrorType: "ValidationError"})
			return
		}
	}
	sources, err := domain.ParseSources(strings.Join(req.Sources, ","))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), ErrorType: "ValidationError"})
		return
	}

	result, err := h.refresher.Refresh(ctx, rates.RefreshOptions{Sources: sources})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, refreshResponse{
		Outcome:     string(result.Outcome),
		LastRefresh: result.LastRefresh,
		TotalRates:  result.TotalRates,
		Accepted:    len(result.Accepted),
		Succeeded:   result.Succeeded,
		Warnings:    result.Warnings,
	})
}
