package models

import (
	"time"

	"fanclubz/internal/money"
)

const (
	EntryStatusActive   = "active"
	EntryStatusWon      = "won"
	EntryStatusLost     = "lost"
	EntryStatusRefunded = "refunded"
)

// PredictionEntry is a placed stake. It is created in the same transaction
// that consumes its escrow lock; the unique index on EscrowLockID is what
// makes a retried placement a replay instead of a double-spend. Immutable
// once settled.
type PredictionEntry struct {
	ID                string       `gorm:"primaryKey;type:uuid"`
	MarketID          string       `gorm:"type:uuid;index;not null"`
	OptionID          string       `gorm:"type:uuid;index;not null"`
	UserID            string       `gorm:"type:uuid;index;not null"`
	StakeCents        money.Cents  `gorm:"type:bigint;not null"`
	EscrowLockID      string       `gorm:"type:uuid;uniqueIndex;not null"`
	Status            string       `gorm:"type:varchar(20);not null;default:active;index"`
	ActualPayoutCents *money.Cents `gorm:"type:bigint"`
	CreatedAt         time.Time    `gorm:"type:timestamptz;autoCreateTime"`
	SettledAt         *time.Time   `gorm:"type:timestamptz"`
}

func (PredictionEntry) TableName() string {
	return "prediction_entries"
}
