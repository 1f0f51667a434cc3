package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# Fanclubz Settlement Engine

Parimutuel pooled-stake markets. Every stake joins its option's pool; at
settlement the losing pools fund the winners, minus platform and creator
fees taken from the losing side first.

## Auth

All /api/v1 routes take "Authorization: Bearer <session token>". Mutating
routes additionally take an "Idempotency-Key" header; retrying with the same
key replays the original result instead of repeating the operation.

## Endpoints

- POST /api/v1/markets               create a market (options, deadline)
- GET  /api/v1/markets               list markets
- GET  /api/v1/markets/:id           market with options + current multiples
- GET  /api/v1/markets/:id/preview   quote a hypothetical stake
- POST /api/v1/stakes                place a stake (idempotent)
- POST /api/v1/markets/:id/settle    settle (creator only)
- POST /api/v1/markets/:id/cancel    cancel and refund (creator only)
- POST /api/v1/wallet/deposit        credit funds (idempotent)
- POST /api/v1/wallet/withdraw       debit funds (idempotent)
- GET  /api/v1/wallet/summary        balances
- GET  /api/v1/wallet/transactions   ledger history
- GET  /api/v1/wallet/stream         websocket wallet updates
- GET  /healthz, /readyz             liveness / readiness
- GET  /swagger/index.html           interactive API docs

All monetary amounts are integer cents.
`)
	})
}
