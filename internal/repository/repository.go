package repository

import (
	"context"
	"errors"
	"time"

	"fanclubz/internal/models"
	"fanclubz/internal/money"
)

// Sentinel errors surfaced by the store. Compound operations map
// unique-constraint conflicts either to these or to a replay of the
// existing row, never to a raw driver error.
var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrDuplicateActiveLock = errors.New("active lock already exists for user and market")
	ErrLockNotActive       = errors.New("escrow lock is not in locked state")
	ErrMarketNotOpen       = errors.New("market is not open for entries")
	ErrWalletFrozen        = errors.New("wallet is frozen pending manual reconciliation")
	// ErrReservedShortfall means a lock is being consumed against a reserved
	// balance smaller than the lock amount. The materialized wallet no longer
	// matches the escrow rows; the reconciliation sweep freezes such wallets.
	ErrReservedShortfall = errors.New("reserved balance below lock amount")
	ErrNotFound          = errors.New("not found")
)

type CreateLockParams struct {
	UserID         string
	MarketID       string
	AmountCents    money.Cents
	IdempotencyKey string
}

type PlaceEntryParams struct {
	LockID   string
	OptionID string
}

type PostTransactionParams struct {
	UserID         string
	AmountCents    money.Cents
	Direction      string
	Kind           string
	IdempotencyKey string
	Provider       *string
	ExternalRef    *string
	Metadata       map[string]any
}

type SettleEntryWonParams struct {
	EntryID     string
	PayoutCents money.Cents
	SettledAt   time.Time
}

type ListMarketsParams struct {
	Limit   int
	Offset  int
	Status  *string
	Creator *string
}

// ListEntriesParams selects entries for one market, ordered by
// (created_at, id). AfterCreatedAt/AfterID form a keyset cursor: only rows
// strictly past that pair are returned, so callers can page through markets
// larger than one Limit without missing or repeating rows.
type ListEntriesParams struct {
	MarketID       string
	OptionID       *string
	Status         *string
	Limit          int
	AfterCreatedAt time.Time
	AfterID        string
}

type ListTransactionsParams struct {
	UserID string
	Limit  int
	Offset int
	Kind   *string
}

type WalletSummary struct {
	UserID         string      `json:"userId"`
	Currency       string      `json:"currency"`
	AvailableCents money.Cents `json:"availableBalanceCents"`
	ReservedCents  money.Cents `json:"reservedBalanceCents"`
	Status         string      `json:"status"`
}

type WalletAudit struct {
	UserID            string
	MaterializedCents money.Cents
	DerivedCents      money.Cents
	Status            string
}

// Repository is the durable store for the settlement engine. Every method
// that mutates state runs as a single database transaction; callers never
// compose read-then-write sequences across calls for anything that must be
// atomic.
type Repository interface {
	// Markets.
	CreateMarket(ctx context.Context, market *models.Market, options []models.MarketOption) error
	GetMarket(ctx context.Context, id string) (*models.Market, error)
	ListMarkets(ctx context.Context, params ListMarketsParams) ([]models.Market, error)
	CountMarkets(ctx context.Context, params ListMarketsParams) (int64, error)
	GetOption(ctx context.Context, id string) (*models.MarketOption, error)
	ListOptionsByMarket(ctx context.Context, marketID string) ([]models.MarketOption, error)
	// TransitionMarketStatus performs the conditional status update that
	// serializes settlement: it succeeds for exactly one caller when several
	// race. Returns false when the market was not in any of the from states.
	TransitionMarketStatus(ctx context.Context, marketID string, from []string, to string) (bool, error)
	FinishSettlement(ctx context.Context, marketID string, status string, winningOptionID *string, record *models.Settlement) error
	GetSettlementByMarket(ctx context.Context, marketID string) (*models.Settlement, error)

	// Escrow locks.
	// CreateLock atomically replays by idempotency key, checks and
	// decrements the available balance, and enforces the single-active-lock
	// rule. The bool reports a replay of a previously created lock.
	CreateLock(ctx context.Context, params CreateLockParams) (*models.EscrowLock, bool, error)
	GetLock(ctx context.Context, id string) (*models.EscrowLock, error)
	// ReleaseLock and VoidLock transition locked -> released/voided and move
	// the reserved amount back to available. Both are no-op successes when
	// the lock is already non-locked.
	ReleaseLock(ctx context.Context, lockID string) error
	VoidLock(ctx context.Context, lockID string) error
	// ListOrphanLocks returns locks still 'locked' past the cutoff with no
	// prediction entry referencing them. Consumption has no flag of its own,
	// so this join is the only correct liveness test.
	ListOrphanLocks(ctx context.Context, cutoff time.Time, limit int) ([]models.EscrowLock, error)

	// Entries.
	// PlaceEntry consumes a lock: inserts the entry, posts the stake debit,
	// moves the lock amount out of reserved, and grows the option and market
	// pools, all in one transaction. Replays by the unique escrow_lock_id.
	PlaceEntry(ctx context.Context, params PlaceEntryParams) (*models.PredictionEntry, bool, error)
	GetEntry(ctx context.Context, id string) (*models.PredictionEntry, error)
	GetEntryByLockID(ctx context.Context, lockID string) (*models.PredictionEntry, error)
	ListEntries(ctx context.Context, params ListEntriesParams) ([]models.PredictionEntry, error)

	// Wallet ledger.
	// PostTransaction appends one ledger row and adjusts the materialized
	// balance in the same transaction. A duplicate idempotency key or
	// (provider, external_ref) pair returns the prior row with replay=true
	// and no further effect.
	PostTransaction(ctx context.Context, params PostTransactionParams) (*models.WalletTransaction, bool, error)
	ListTransactions(ctx context.Context, params ListTransactionsParams) ([]models.WalletTransaction, error)
	CountTransactions(ctx context.Context, params ListTransactionsParams) (int64, error)
	GetWalletSummary(ctx context.Context, userID string) (*WalletSummary, error)
	ListWallets(ctx context.Context, limit, offset int) ([]models.Wallet, error)
	// DerivedBalance recomputes sum(credits) - sum(debits) over the ledger.
	DerivedBalance(ctx context.Context, userID string) (money.Cents, error)
	// AuditWallet reads the materialized and derived balances in one
	// transaction so a concurrent post cannot skew the comparison.
	AuditWallet(ctx context.Context, userID string) (*WalletAudit, error)
	FreezeWallet(ctx context.Context, userID string) error

	// Settlement.
	// SettleEntryWon credits the payout and marks the entry won in one
	// transaction, keyed deterministically by entry id, so a crashed run
	// can be repeated without double-paying. Returns false when the entry
	// was already settled.
	SettleEntryWon(ctx context.Context, params SettleEntryWonParams) (bool, error)
	MarkEntriesLost(ctx context.Context, marketID, winningOptionID string, settledAt time.Time) (int64, error)
	// RefundEntry credits the stake back and marks the entry refunded.
	// Returns false when the entry was already settled.
	RefundEntry(ctx context.Context, entryID string, settledAt time.Time) (bool, error)
}
