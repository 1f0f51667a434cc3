package models

import (
	"time"

	"gorm.io/datatypes"

	"fanclubz/internal/money"
)

const (
	LockStateLocked   = "locked"
	LockStateReleased = "released"
	LockStateVoided   = "voided"
)

// EscrowLock holds user funds against a pending stake. At most one lock per
// (user, market) may be in state 'locked' at a time; that is enforced by a
// partial unique index scoped to the locked state (see db.AutoMigrate), so a
// new lock can be created once the prior one is released or voided.
//
// A lock has no consumed flag. Consumption is inferred from the existence of
// a PredictionEntry referencing it, which saves a write on the hot path;
// anything reasoning about lock liveness (the reconciliation sweep in
// particular) must join against prediction_entries rather than trust the
// lock row alone.
type EscrowLock struct {
	ID             string         `gorm:"primaryKey;type:uuid"`
	UserID         string         `gorm:"type:uuid;index;not null"`
	MarketID       string         `gorm:"type:uuid;index;not null"`
	AmountCents    money.Cents    `gorm:"type:bigint;not null"`
	State          string         `gorm:"type:varchar(20);not null;default:locked;index"`
	IdempotencyKey string         `gorm:"type:text;uniqueIndex;not null"`
	Metadata       datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"type:timestamptz;autoCreateTime"`
	ReleasedAt     *time.Time     `gorm:"type:timestamptz"`
}

func (EscrowLock) TableName() string {
	return "escrow_locks"
}
