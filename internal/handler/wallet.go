package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fanclubz/internal/auth"
	"fanclubz/internal/money"
	"fanclubz/internal/realtime"
	"fanclubz/internal/repository"
	"fanclubz/internal/service"
)

type WalletHandler struct {
	Wallet *service.WalletService
	Hub    *realtime.Hub
}

func (h *WalletHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/wallet")
	group.POST("/deposit", h.deposit)
	group.POST("/withdraw", h.withdraw)
	group.GET("/summary", h.summary)
	group.GET("/transactions", h.transactions)
	group.GET("/stream", h.stream)
}

type ledgerPostRequest struct {
	AmountCents int64  `json:"amountCents" binding:"required"`
	Provider    string `json:"provider"`
	ExternalRef string `json:"externalRef"`
}

// @Summary Deposit funds
// @Tags wallet
// @Accept json
// @Produce json
// @Param Idempotency-Key header string true "client idempotency key"
// @Param request body ledgerPostRequest true "deposit"
// @Success 201 {object} map[string]any
// @Router /api/v1/wallet/deposit [post]
func (h *WalletHandler) deposit(c *gin.Context) {
	h.post(c, h.Wallet.Deposit)
}

// @Summary Withdraw funds
// @Tags wallet
// @Accept json
// @Produce json
// @Param Idempotency-Key header string true "client idempotency key"
// @Param request body ledgerPostRequest true "withdrawal"
// @Success 201 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/v1/wallet/withdraw [post]
func (h *WalletHandler) withdraw(c *gin.Context) {
	h.post(c, h.Wallet.Withdraw)
}

func (h *WalletHandler) post(c *gin.Context, op func(ctx context.Context, in service.LedgerPostInput) (*service.LedgerPostResult, error)) {
	var req ledgerPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	res, err := op(c.Request.Context(), service.LedgerPostInput{
		UserID:         auth.UserID(c),
		AmountCents:    money.Cents(req.AmountCents),
		IdempotencyKey: strings.TrimSpace(c.GetHeader("Idempotency-Key")),
		Provider:       strings.TrimSpace(req.Provider),
		ExternalRef:    strings.TrimSpace(req.ExternalRef),
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

// @Summary Wallet balances
// @Tags wallet
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/v1/wallet/summary [get]
func (h *WalletHandler) summary(c *gin.Context) {
	summary, err := h.Wallet.Summary(c.Request.Context(), auth.UserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, summary, nil)
}

// @Summary Transaction history
// @Tags wallet
// @Produce json
// @Param kind query string false "filter by kind"
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {object} map[string]any
// @Router /api/v1/wallet/transactions [get]
func (h *WalletHandler) transactions(c *gin.Context) {
	params := repository.ListTransactionsParams{
		UserID: auth.UserID(c),
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
	}
	if kind := strings.TrimSpace(c.Query("kind")); kind != "" {
		params.Kind = &kind
	}
	items, total, err := h.Wallet.Transactions(c.Request.Context(), params)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, items, paginationMeta(params.Limit, params.Offset, total))
}

// @Summary Realtime wallet updates
// @Description Upgrades to a websocket that pushes a wallet_update event
// @Description whenever a balance-changing operation lands.
// @Tags wallet
// @Router /api/v1/wallet/stream [get]
func (h *WalletHandler) stream(c *gin.Context) {
	if h.Hub == nil {
		Error(c, http.StatusServiceUnavailable, "STREAM_DISABLED", "realtime stream is disabled")
		return
	}
	h.Hub.Serve(c.Writer, c.Request, auth.UserID(c))
}
