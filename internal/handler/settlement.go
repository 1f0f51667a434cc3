package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fanclubz/internal/auth"
	"fanclubz/internal/service"
)

type SettlementHandler struct {
	Settlement *service.SettlementService
}

func (h *SettlementHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/markets/:id/settle", h.settle)
	r.POST("/api/v1/markets/:id/cancel", h.cancel)
}

type settleRequest struct {
	WinningOptionID string `json:"winningOptionId" binding:"required"`
}

// @Summary Settle a market
// @Description Creator-only. Distributes the pooled stakes to the winning
// @Description side after fees. Safe to retry: a finished settlement replays
// @Description its audit record, a crashed one resumes.
// @Tags settlement
// @Accept json
// @Produce json
// @Param id path string true "market id"
// @Param request body settleRequest true "winning option"
// @Success 200 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/v1/markets/{id}/settle [post]
func (h *SettlementHandler) settle(c *gin.Context) {
	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	res, err := h.Settlement.Settle(c.Request.Context(), service.SettleInput{
		MarketID:        c.Param("id"),
		WinningOptionID: req.WinningOptionID,
		CallerID:        auth.UserID(c),
	})
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, res, nil)
}

// @Summary Cancel a market and refund all stakes
// @Tags settlement
// @Produce json
// @Param id path string true "market id"
// @Success 200 {object} map[string]any
// @Router /api/v1/markets/{id}/cancel [post]
func (h *SettlementHandler) cancel(c *gin.Context) {
	res, err := h.Settlement.Cancel(c.Request.Context(), c.Param("id"), auth.UserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, res, nil)
}
