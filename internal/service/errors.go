package service

import "errors"

var (
	ErrMarketNotFound       = errors.New("market not found")
	ErrOptionNotFound       = errors.New("option not found")
	ErrOptionNotInMarket    = errors.New("option does not belong to market")
	ErrMarketNotOpen        = errors.New("market is not open for entries")
	ErrMarketSettled        = errors.New("market already settled")
	ErrSettlementInProgress = errors.New("settlement already in progress")
	ErrNotMarketCreator     = errors.New("only the market creator may settle")
	ErrStakeOutOfRange      = errors.New("stake outside allowed range")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrMissingIdempotency   = errors.New("idempotency key required")
	ErrMissingTitle         = errors.New("title required")
	ErrTooFewOptions        = errors.New("market needs at least two options")
	ErrDeadlineInPast       = errors.New("entry deadline must be in the future")
)
