package models

import (
	"time"

	"fanclubz/internal/money"
)

const (
	MarketStatusOpen      = "open"
	MarketStatusClosed    = "closed"
	MarketStatusSettling  = "settling"
	MarketStatusSettled   = "settled"
	MarketStatusCancelled = "cancelled"
)

// Market is one parimutuel event. Fee basis points are snapshotted at
// creation so payouts on already-placed stakes can never change
// retroactively.
type Market struct {
	ID              string      `gorm:"primaryKey;type:uuid"`
	CreatorID       string      `gorm:"type:uuid;index;not null"`
	Title           string      `gorm:"type:text;not null"`
	Status          string      `gorm:"type:varchar(20);not null;default:open;index"`
	EntryDeadline   time.Time   `gorm:"type:timestamptz;not null"`
	PlatformFeeBps  int64       `gorm:"not null"`
	CreatorFeeBps   int64       `gorm:"not null"`
	TotalPoolCents  money.Cents `gorm:"type:bigint;not null;default:0"`
	SettledOptionID *string     `gorm:"type:uuid"`
	SettledAt       *time.Time  `gorm:"type:timestamptz"`
	CreatedAt       time.Time   `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt       time.Time   `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Market) TableName() string {
	return "markets"
}

// MarketOption is one mutually-exclusive outcome. PoolCents is the sum of
// active entry stakes on this option; the market invariant
// totalPoolCents == sum(option.poolCents) is maintained transactionally.
type MarketOption struct {
	ID        string      `gorm:"primaryKey;type:uuid"`
	MarketID  string      `gorm:"type:uuid;index;not null"`
	Label     string      `gorm:"type:text;not null"`
	PoolCents money.Cents `gorm:"type:bigint;not null;default:0"`
	CreatedAt time.Time   `gorm:"type:timestamptz;autoCreateTime"`
}

func (MarketOption) TableName() string {
	return "market_options"
}
