package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health godoc
// @Summary      Health check
// @Description  Returns service health and the freshness of the rate cache
// @Tags         health
// @Produce      json
// @Success      200  {object}  healthResponse
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	resp := healthResponse{Status: "healthy"}
	if h.rates != nil {
		table, stale, err := h.rates.Snapshot(c.Request.Context())
		if err != nil {
			resp.Status = "degraded"
		} else {
			resp.RatesStale = stale
			if table.Refreshed() {
				resp.LastRefresh = &table.LastRefresh
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}
