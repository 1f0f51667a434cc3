package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"fanclubz/internal/auth"
	"fanclubz/internal/money"
	"fanclubz/internal/repository"
	"fanclubz/internal/service"
)

type MarketHandler struct {
	Markets *service.MarketService
}

func (h *MarketHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/markets")
	group.POST("", h.createMarket)
	group.GET("", h.listMarkets)
	group.GET("/:id", h.getMarket)
	group.GET("/:id/preview", h.previewStake)
}

type createMarketRequest struct {
	Title         string    `json:"title" binding:"required"`
	Options       []string  `json:"options" binding:"required"`
	EntryDeadline time.Time `json:"entryDeadline" binding:"required"`
}

// @Summary Create a market
// @Tags markets
// @Accept json
// @Produce json
// @Param request body createMarketRequest true "market definition"
// @Success 201 {object} map[string]any
// @Router /api/v1/markets [post]
func (h *MarketHandler) createMarket(c *gin.Context) {
	var req createMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, 400, "INVALID_REQUEST", err.Error())
		return
	}
	view, err := h.Markets.Create(c.Request.Context(), service.CreateMarketInput{
		CreatorID:     auth.UserID(c),
		Title:         req.Title,
		OptionLabels:  req.Options,
		EntryDeadline: req.EntryDeadline,
	})
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, view)
}

// @Summary List markets
// @Tags markets
// @Produce json
// @Param status query string false "filter by status"
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {object} map[string]any
// @Router /api/v1/markets [get]
func (h *MarketHandler) listMarkets(c *gin.Context) {
	params := repository.ListMarketsParams{
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		params.Status = &status
	}
	if creator := strings.TrimSpace(c.Query("creator")); creator != "" {
		params.Creator = &creator
	}
	items, total, err := h.Markets.List(c.Request.Context(), params)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, items, paginationMeta(params.Limit, params.Offset, total))
}

// @Summary Get a market with options and current multiples
// @Tags markets
// @Produce json
// @Param id path string true "market id"
// @Success 200 {object} map[string]any
// @Router /api/v1/markets/{id} [get]
func (h *MarketHandler) getMarket(c *gin.Context) {
	view, err := h.Markets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, view, nil)
}

// @Summary Quote a hypothetical stake
// @Tags markets
// @Produce json
// @Param id path string true "market id"
// @Param optionId query string true "option id"
// @Param stakeCents query int true "stake in cents"
// @Success 200 {object} map[string]any
// @Router /api/v1/markets/{id}/preview [get]
func (h *MarketHandler) previewStake(c *gin.Context) {
	optionID := strings.TrimSpace(c.Query("optionId"))
	if optionID == "" {
		Error(c, 400, "INVALID_REQUEST", "optionId is required")
		return
	}
	stake := money.Cents(int64Query(c, "stakeCents", 0))
	quote, err := h.Markets.Preview(c.Request.Context(), c.Param("id"), optionID, stake)
	if err != nil {
		ServiceError(c, err)
		return
	}
	if quote == nil {
		// Both pool and stake are zero: no information to quote.
		Ok(c, nil, nil)
		return
	}
	Ok(c, quote, nil)
}
