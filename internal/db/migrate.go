package db

import (
	"fanclubz/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	if err := db.Gorm.AutoMigrate(
		&models.Market{},
		&models.MarketOption{},
		&models.PredictionEntry{},
		&models.EscrowLock{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.Settlement{},
	); err != nil {
		return err
	}

	// Partial unique indexes gorm tags cannot express: one live lock per
	// (user, market), and provider/external_ref dedup that ignores NULLs.
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_escrow_locks_active
			ON escrow_locks (user_id, market_id) WHERE state = 'locked'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_wallet_transactions_provider_ref
			ON wallet_transactions (provider, external_ref)
			WHERE provider IS NOT NULL AND external_ref IS NOT NULL`,
	}
	for _, stmt := range stmts {
		if err := db.Gorm.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
