package models

import (
	"time"

	"gorm.io/datatypes"

	"fanclubz/internal/money"
)

const (
	WalletStatusActive = "active"
	WalletStatusFrozen = "frozen"

	DirectionCredit = "credit"
	DirectionDebit  = "debit"

	TxKindDeposit     = "deposit"
	TxKindWithdrawal  = "withdrawal"
	TxKindStake       = "stake"
	TxKindPayout      = "payout"
	TxKindRefund      = "refund"
	TxKindCreatorFee  = "creator_fee"
	TxKindPlatformFee = "platform_fee"
)

// Wallet materializes the per-user balances for fast reads. The ledger
// remains the source of truth: AvailableCents must always equal
// sum(credits) - sum(debits) - reserved, and the reconciliation sweep
// recomputes that sum. A divergence freezes the wallet; frozen wallets
// refuse every mutation until manual reconciliation.
type Wallet struct {
	UserID         string      `gorm:"primaryKey;type:uuid"`
	Currency       string      `gorm:"primaryKey;type:varchar(10);default:USD"`
	AvailableCents money.Cents `gorm:"type:bigint;not null;default:0"`
	ReservedCents  money.Cents `gorm:"type:bigint;not null;default:0"`
	Status         string      `gorm:"type:varchar(20);not null;default:active"`
	UpdatedAt      time.Time   `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// WalletTransaction is one append-only ledger row. Rows are created, never
// mutated or deleted. IdempotencyKey dedups client retries; the partial
// unique index on (provider, external_ref) dedups duplicate webhook delivery
// from external payment rails.
type WalletTransaction struct {
	ID             string         `gorm:"primaryKey;type:uuid"`
	UserID         string         `gorm:"type:uuid;index;not null"`
	AmountCents    money.Cents    `gorm:"type:bigint;not null"`
	Direction      string         `gorm:"type:varchar(10);not null"`
	Kind           string         `gorm:"type:varchar(20);not null"`
	IdempotencyKey string         `gorm:"type:text;uniqueIndex;not null"`
	Provider       *string        `gorm:"type:text"`
	ExternalRef    *string        `gorm:"type:text"`
	Metadata       datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
