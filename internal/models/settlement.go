package models

import (
	"time"

	"fanclubz/internal/money"
)

const (
	SettlementKindPayout = "payout"
	SettlementKindRefund = "refund"
)

// Settlement is the audit record written once per settled or cancelled
// market. The unique index on MarketID doubles as the guard against a
// second settlement run recording twice.
type Settlement struct {
	ID                 string      `gorm:"primaryKey;type:uuid"`
	MarketID           string      `gorm:"type:uuid;uniqueIndex;not null"`
	WinningOptionID    *string     `gorm:"type:uuid"`
	Kind               string      `gorm:"type:varchar(20);not null"`
	PoolCents          money.Cents `gorm:"type:bigint;not null"`
	FeesCents          money.Cents `gorm:"type:bigint;not null"`
	DistributableCents money.Cents `gorm:"type:bigint;not null"`
	WinnerCount        int         `gorm:"not null"`
	EntryCount         int         `gorm:"not null"`
	SettledAt          time.Time   `gorm:"type:timestamptz;not null"`
}

func (Settlement) TableName() string {
	return "settlements"
}
