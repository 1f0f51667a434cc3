package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fanclubz/internal/auth"
	"fanclubz/internal/money"
	"fanclubz/internal/service"
)

type StakeHandler struct {
	Stakes *service.StakeService
}

func (h *StakeHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/stakes", h.placeStake)
}

type placeStakeRequest struct {
	MarketID   string `json:"marketId" binding:"required"`
	OptionID   string `json:"optionId" binding:"required"`
	StakeCents int64  `json:"stakeCents" binding:"required"`
}

// @Summary Place a stake
// @Description Idempotent: retries with the same Idempotency-Key header
// @Description return the original entry instead of staking again.
// @Tags stakes
// @Accept json
// @Produce json
// @Param Idempotency-Key header string true "client idempotency key"
// @Param request body placeStakeRequest true "stake"
// @Success 201 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/v1/stakes [post]
func (h *StakeHandler) placeStake(c *gin.Context) {
	var req placeStakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))

	res, err := h.Stakes.Place(c.Request.Context(), service.PlaceStakeInput{
		UserID:         auth.UserID(c),
		MarketID:       req.MarketID,
		OptionID:       req.OptionID,
		StakeCents:     money.Cents(req.StakeCents),
		IdempotencyKey: key,
	})
	if err != nil {
		ServiceError(c, err)
		return
	}
	if res.Replayed {
		Ok(c, res, nil)
		return
	}
	Created(c, res)
}
