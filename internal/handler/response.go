package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fanclubz/internal/repository"
	"fanclubz/internal/service"
)

type apiResponse struct {
	Code      int            `json:"code"`
	Message   string         `json:"message"`
	ErrorCode string         `json:"errorCode,omitempty"`
	Data      any            `json:"data,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, apiResponse{
		Code:    0,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, status int, errorCode, message string) {
	c.JSON(status, apiResponse{
		Code:      status,
		Message:   message,
		ErrorCode: errorCode,
	})
}

// ServiceError maps the service and repository sentinels onto the HTTP
// conflict taxonomy. Unknown errors become a bare 500 so internals never
// leak into responses.
func ServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMarketNotFound),
		errors.Is(err, service.ErrOptionNotFound),
		errors.Is(err, repository.ErrNotFound):
		Error(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, service.ErrOptionNotInMarket),
		errors.Is(err, service.ErrMissingTitle),
		errors.Is(err, service.ErrTooFewOptions),
		errors.Is(err, service.ErrDeadlineInPast),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrStakeOutOfRange):
		Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, service.ErrMissingIdempotency):
		Error(c, http.StatusBadRequest, "IDEMPOTENCY_KEY_REQUIRED", err.Error())
	case errors.Is(err, service.ErrMarketNotOpen), errors.Is(err, repository.ErrMarketNotOpen):
		Error(c, http.StatusConflict, "MARKET_NOT_OPEN", err.Error())
	case errors.Is(err, service.ErrMarketSettled):
		Error(c, http.StatusConflict, "MARKET_SETTLED", err.Error())
	case errors.Is(err, service.ErrSettlementInProgress):
		Error(c, http.StatusConflict, "SETTLEMENT_IN_PROGRESS", err.Error())
	case errors.Is(err, service.ErrNotMarketCreator):
		Error(c, http.StatusForbidden, "NOT_MARKET_CREATOR", err.Error())
	case errors.Is(err, repository.ErrInsufficientFunds):
		Error(c, http.StatusConflict, "INSUFFICIENT_FUNDS", err.Error())
	case errors.Is(err, repository.ErrDuplicateActiveLock):
		Error(c, http.StatusConflict, "DUPLICATE_ACTIVE_LOCK", err.Error())
	case errors.Is(err, repository.ErrWalletFrozen):
		Error(c, http.StatusConflict, "WALLET_FROZEN", err.Error())
	case errors.Is(err, repository.ErrLockNotActive):
		Error(c, http.StatusConflict, "LOCK_NOT_ACTIVE", err.Error())
	default:
		Error(c, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func int64Query(c *gin.Context, key string, def int64) int64 {
	if val := c.Query(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func paginationMeta(limit, offset int, total int64) map[string]any {
	if limit <= 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	hasNext := int64(offset+limit) < total
	return map[string]any{
		"limit":    limit,
		"offset":   offset,
		"total":    total,
		"has_next": hasNext,
	}
}
