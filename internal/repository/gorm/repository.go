package gormrepository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fanclubz/internal/models"
	"fanclubz/internal/money"
	"fanclubz/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

const (
	// Index names created in db.AutoMigrate; used to tell which unique
	// constraint a 23505 came from.
	activeLockIndex = "uq_escrow_locks_active"
)

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func metadataJSON(meta map[string]any) datatypes.JSON {
	if len(meta) == 0 {
		return nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 || limit > 1000 {
		return fallback
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

// --- Markets ----------------------------------------------------------------

func (s *Store) CreateMarket(ctx context.Context, market *models.Market, options []models.MarketOption) error {
	if s == nil || s.db == nil || market == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(market).Error; err != nil {
			return err
		}
		if len(options) == 0 {
			return nil
		}
		return tx.Create(&options).Error
	})
}

func (s *Store) GetMarket(ctx context.Context, id string) (*models.Market, error) {
	var item models.Market
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListMarkets(ctx context.Context, params repository.ListMarketsParams) ([]models.Market, error) {
	query := s.db.WithContext(ctx).Model(&models.Market{})
	query = applyMarketFilters(query, params)
	var items []models.Market
	err := query.
		Order("created_at desc").
		Limit(normalizeLimit(params.Limit, 50)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountMarkets(ctx context.Context, params repository.ListMarketsParams) (int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Market{})
	query = applyMarketFilters(query, params)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyMarketFilters(query *gorm.DB, params repository.ListMarketsParams) *gorm.DB {
	if params.Status != nil && *params.Status != "" {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Creator != nil && *params.Creator != "" {
		query = query.Where("creator_id = ?", *params.Creator)
	}
	return query
}

func (s *Store) GetOption(ctx context.Context, id string) (*models.MarketOption, error) {
	var item models.MarketOption
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListOptionsByMarket(ctx context.Context, marketID string) ([]models.MarketOption, error) {
	var items []models.MarketOption
	err := s.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		Order("created_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) TransitionMarketStatus(ctx context.Context, marketID string, from []string, to string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Market{}).
		Where("id = ? AND status IN ?", marketID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) FinishSettlement(ctx context.Context, marketID string, status string, winningOptionID *string, record *models.Settlement) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"status":            status,
			"settled_option_id": winningOptionID,
			"settled_at":        record.SettledAt,
		}
		if err := tx.Model(&models.Market{}).Where("id = ?", marketID).Updates(updates).Error; err != nil {
			return err
		}
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		// The unique index on market_id makes a repeated settlement run a
		// no-op here.
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "market_id"}},
			DoNothing: true,
		}).Create(record).Error
	})
}

func (s *Store) GetSettlementByMarket(ctx context.Context, marketID string) (*models.Settlement, error) {
	var item models.Settlement
	err := s.db.WithContext(ctx).First(&item, "market_id = ?", marketID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- Escrow locks -----------------------------------------------------------

func ensureWalletTx(tx *gorm.DB, userID string) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Wallet{UserID: userID, Currency: "USD", Status: models.WalletStatusActive}).Error
}

func lockWalletTx(tx *gorm.DB, userID string) (*models.Wallet, error) {
	if err := ensureWalletTx(tx, userID); err != nil {
		return nil, err
	}
	var wallet models.Wallet
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&wallet, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}
	if wallet.Status == models.WalletStatusFrozen {
		return nil, repository.ErrWalletFrozen
	}
	return &wallet, nil
}

func (s *Store) CreateLock(ctx context.Context, params repository.CreateLockParams) (*models.EscrowLock, bool, error) {
	var (
		lock     models.EscrowLock
		replayed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&lock, "idempotency_key = ?", params.IdempotencyKey).Error
		if err == nil {
			replayed = true
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if _, err := lockWalletTx(tx, params.UserID); err != nil {
			return err
		}
		res := tx.Model(&models.Wallet{}).
			Where("user_id = ? AND available_cents >= ?", params.UserID, int64(params.AmountCents)).
			Updates(map[string]any{
				"available_cents": gorm.Expr("available_cents - ?", int64(params.AmountCents)),
				"reserved_cents":  gorm.Expr("reserved_cents + ?", int64(params.AmountCents)),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrInsufficientFunds
		}

		lock = models.EscrowLock{
			ID:             uuid.NewString(),
			UserID:         params.UserID,
			MarketID:       params.MarketID,
			AmountCents:    params.AmountCents,
			State:          models.LockStateLocked,
			IdempotencyKey: params.IdempotencyKey,
			CreatedAt:      time.Now().UTC(),
		}
		if err := tx.Create(&lock).Error; err != nil {
			if isUniqueViolation(err, activeLockIndex) {
				return repository.ErrDuplicateActiveLock
			}
			return err
		}
		return nil
	})
	if err != nil {
		// A concurrent request with the same key can beat us to the insert;
		// the unique key means its lock is ours to return.
		if isUniqueViolation(err, "") {
			var existing models.EscrowLock
			if ferr := s.db.WithContext(ctx).First(&existing, "idempotency_key = ?", params.IdempotencyKey).Error; ferr == nil {
				return &existing, true, nil
			}
		}
		return nil, false, err
	}
	return &lock, replayed, nil
}

func (s *Store) GetLock(ctx context.Context, id string) (*models.EscrowLock, error) {
	var item models.EscrowLock
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ReleaseLock(ctx context.Context, lockID string) error {
	return s.unlockFunds(ctx, lockID, models.LockStateReleased)
}

func (s *Store) VoidLock(ctx context.Context, lockID string) error {
	return s.unlockFunds(ctx, lockID, models.LockStateVoided)
}

func (s *Store) unlockFunds(ctx context.Context, lockID, toState string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lock models.EscrowLock
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&lock, "id = ?", lockID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.ErrNotFound
		}
		if err != nil {
			return err
		}
		if lock.State != models.LockStateLocked {
			// Idempotent: releasing an already-released or voided lock is a
			// no-op success.
			return nil
		}
		now := time.Now().UTC()
		res := tx.Model(&models.EscrowLock{}).
			Where("id = ? AND state = ?", lockID, models.LockStateLocked).
			Updates(map[string]any{"state": toState, "released_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Model(&models.Wallet{}).
			Where("user_id = ? AND reserved_cents >= ?", lock.UserID, int64(lock.AmountCents)).
			Updates(map[string]any{
				"available_cents": gorm.Expr("available_cents + ?", int64(lock.AmountCents)),
				"reserved_cents":  gorm.Expr("reserved_cents - ?", int64(lock.AmountCents)),
			}).Error
	})
}

func (s *Store) ListOrphanLocks(ctx context.Context, cutoff time.Time, limit int) ([]models.EscrowLock, error) {
	var items []models.EscrowLock
	err := s.db.WithContext(ctx).
		Where("state = ?", models.LockStateLocked).
		Where("created_at < ?", cutoff).
		Where("NOT EXISTS (SELECT 1 FROM prediction_entries WHERE prediction_entries.escrow_lock_id = escrow_locks.id)").
		Order("created_at asc").
		Limit(normalizeLimit(limit, 200)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- Entries ----------------------------------------------------------------

func (s *Store) PlaceEntry(ctx context.Context, params repository.PlaceEntryParams) (*models.PredictionEntry, bool, error) {
	var (
		entry    models.PredictionEntry
		replayed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lock models.EscrowLock
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&lock, "id = ?", params.LockID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.ErrNotFound
		}
		if err != nil {
			return err
		}

		err = tx.First(&entry, "escrow_lock_id = ?", params.LockID).Error
		if err == nil {
			replayed = true
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if lock.State != models.LockStateLocked {
			return repository.ErrLockNotActive
		}

		now := time.Now().UTC()
		res := tx.Model(&models.Market{}).
			Where("id = ? AND status = ? AND entry_deadline > ?", lock.MarketID, models.MarketStatusOpen, now).
			Update("total_pool_cents", gorm.Expr("total_pool_cents + ?", int64(lock.AmountCents)))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrMarketNotOpen
		}

		res = tx.Model(&models.MarketOption{}).
			Where("id = ? AND market_id = ?", params.OptionID, lock.MarketID).
			Update("pool_cents", gorm.Expr("pool_cents + ?", int64(lock.AmountCents)))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrNotFound
		}

		entry = models.PredictionEntry{
			ID:           uuid.NewString(),
			MarketID:     lock.MarketID,
			OptionID:     params.OptionID,
			UserID:       lock.UserID,
			StakeCents:   lock.AmountCents,
			EscrowLockID: lock.ID,
			Status:       models.EntryStatusActive,
			CreatedAt:    now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		// The lock amount left 'available' at lock creation; consumption
		// moves it out of 'reserved' into the pool and posts the debit.
		res = tx.Model(&models.Wallet{}).
			Where("user_id = ? AND reserved_cents >= ?", lock.UserID, int64(lock.AmountCents)).
			Update("reserved_cents", gorm.Expr("reserved_cents - ?", int64(lock.AmountCents)))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrReservedShortfall
		}

		debit := models.WalletTransaction{
			ID:             uuid.NewString(),
			UserID:         lock.UserID,
			AmountCents:    lock.AmountCents,
			Direction:      models.DirectionDebit,
			Kind:           models.TxKindStake,
			IdempotencyKey: "stake:" + lock.ID,
			Metadata:       metadataJSON(map[string]any{"market_id": lock.MarketID, "option_id": params.OptionID, "entry_id": entry.ID}),
			CreatedAt:      now,
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&debit).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &entry, replayed, nil
}

func (s *Store) GetEntry(ctx context.Context, id string) (*models.PredictionEntry, error) {
	var item models.PredictionEntry
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetEntryByLockID(ctx context.Context, lockID string) (*models.PredictionEntry, error) {
	var item models.PredictionEntry
	err := s.db.WithContext(ctx).First(&item, "escrow_lock_id = ?", lockID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListEntries(ctx context.Context, params repository.ListEntriesParams) ([]models.PredictionEntry, error) {
	query := s.db.WithContext(ctx).Where("market_id = ?", params.MarketID)
	if params.OptionID != nil && *params.OptionID != "" {
		query = query.Where("option_id = ?", *params.OptionID)
	}
	if params.Status != nil && *params.Status != "" {
		query = query.Where("status = ?", *params.Status)
	}
	if params.AfterID != "" {
		query = query.Where("(created_at, id) > (?, ?)", params.AfterCreatedAt, params.AfterID)
	}
	var items []models.PredictionEntry
	err := query.
		Order("created_at asc, id asc").
		Limit(normalizeLimit(params.Limit, 1000)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- Wallet ledger ----------------------------------------------------------

func (s *Store) PostTransaction(ctx context.Context, params repository.PostTransactionParams) (*models.WalletTransaction, bool, error) {
	var (
		row      models.WalletTransaction
		replayed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&row, "idempotency_key = ?", params.IdempotencyKey).Error
		if err == nil {
			replayed = true
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if params.Provider != nil && params.ExternalRef != nil {
			err = tx.First(&row, "provider = ? AND external_ref = ?", *params.Provider, *params.ExternalRef).Error
			if err == nil {
				replayed = true
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		if _, err := lockWalletTx(tx, params.UserID); err != nil {
			return err
		}

		switch params.Direction {
		case models.DirectionDebit:
			res := tx.Model(&models.Wallet{}).
				Where("user_id = ? AND available_cents >= ?", params.UserID, int64(params.AmountCents)).
				Update("available_cents", gorm.Expr("available_cents - ?", int64(params.AmountCents)))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return repository.ErrInsufficientFunds
			}
		case models.DirectionCredit:
			if err := tx.Model(&models.Wallet{}).
				Where("user_id = ?", params.UserID).
				Update("available_cents", gorm.Expr("available_cents + ?", int64(params.AmountCents))).Error; err != nil {
				return err
			}
		}

		row = models.WalletTransaction{
			ID:             uuid.NewString(),
			UserID:         params.UserID,
			AmountCents:    params.AmountCents,
			Direction:      params.Direction,
			Kind:           params.Kind,
			IdempotencyKey: params.IdempotencyKey,
			Provider:       params.Provider,
			ExternalRef:    params.ExternalRef,
			Metadata:       metadataJSON(params.Metadata),
			CreatedAt:      time.Now().UTC(),
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		if isUniqueViolation(err, "") {
			var existing models.WalletTransaction
			if ferr := s.db.WithContext(ctx).First(&existing, "idempotency_key = ?", params.IdempotencyKey).Error; ferr == nil {
				return &existing, true, nil
			}
		}
		return nil, false, err
	}
	return &row, replayed, nil
}

func (s *Store) ListTransactions(ctx context.Context, params repository.ListTransactionsParams) ([]models.WalletTransaction, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", params.UserID)
	if params.Kind != nil && *params.Kind != "" {
		query = query.Where("kind = ?", *params.Kind)
	}
	var items []models.WalletTransaction
	err := query.
		Order("created_at desc").
		Limit(normalizeLimit(params.Limit, 50)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountTransactions(ctx context.Context, params repository.ListTransactionsParams) (int64, error) {
	query := s.db.WithContext(ctx).Model(&models.WalletTransaction{}).Where("user_id = ?", params.UserID)
	if params.Kind != nil && *params.Kind != "" {
		query = query.Where("kind = ?", *params.Kind)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) GetWalletSummary(ctx context.Context, userID string) (*repository.WalletSummary, error) {
	var wallet models.Wallet
	err := s.db.WithContext(ctx).First(&wallet, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &repository.WalletSummary{UserID: userID, Currency: "USD", Status: models.WalletStatusActive}, nil
	}
	if err != nil {
		return nil, err
	}
	return &repository.WalletSummary{
		UserID:         wallet.UserID,
		Currency:       wallet.Currency,
		AvailableCents: wallet.AvailableCents,
		ReservedCents:  wallet.ReservedCents,
		Status:         wallet.Status,
	}, nil
}

func (s *Store) ListWallets(ctx context.Context, limit, offset int) ([]models.Wallet, error) {
	var items []models.Wallet
	err := s.db.WithContext(ctx).
		Order("user_id asc").
		Limit(normalizeLimit(limit, 200)).
		Offset(normalizeOffset(offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) DerivedBalance(ctx context.Context, userID string) (money.Cents, error) {
	var total int64
	err := s.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Select("COALESCE(SUM(CASE WHEN direction = 'credit' THEN amount_cents ELSE -amount_cents END), 0)").
		Where("user_id = ?", userID).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return money.Cents(total), nil
}

func (s *Store) AuditWallet(ctx context.Context, userID string) (*repository.WalletAudit, error) {
	audit := &repository.WalletAudit{UserID: userID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wallet models.Wallet
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			First(&wallet, "user_id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			audit.Status = models.WalletStatusActive
			return nil
		}
		if err != nil {
			return err
		}
		audit.MaterializedCents = wallet.AvailableCents + wallet.ReservedCents
		audit.Status = wallet.Status

		var total int64
		if err := tx.Model(&models.WalletTransaction{}).
			Select("COALESCE(SUM(CASE WHEN direction = 'credit' THEN amount_cents ELSE -amount_cents END), 0)").
			Where("user_id = ?", userID).
			Scan(&total).Error; err != nil {
			return err
		}
		audit.DerivedCents = money.Cents(total)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return audit, nil
}

func (s *Store) FreezeWallet(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		Update("status", models.WalletStatusFrozen).Error
}

// --- Settlement -------------------------------------------------------------

func (s *Store) SettleEntryWon(ctx context.Context, params repository.SettleEntryWonParams) (bool, error) {
	paid := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.PredictionEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&entry, "id = ?", params.EntryID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.ErrNotFound
		}
		if err != nil {
			return err
		}
		if entry.Status != models.EntryStatusActive {
			return nil
		}

		payout := int64(params.PayoutCents)
		res := tx.Model(&models.PredictionEntry{}).
			Where("id = ? AND status = ?", params.EntryID, models.EntryStatusActive).
			Updates(map[string]any{
				"status":              models.EntryStatusWon,
				"actual_payout_cents": payout,
				"settled_at":          params.SettledAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := ensureWalletTx(tx, entry.UserID); err != nil {
			return err
		}
		credit := models.WalletTransaction{
			ID:             uuid.NewString(),
			UserID:         entry.UserID,
			AmountCents:    params.PayoutCents,
			Direction:      models.DirectionCredit,
			Kind:           models.TxKindPayout,
			IdempotencyKey: "settle:" + entry.ID,
			Metadata:       metadataJSON(map[string]any{"market_id": entry.MarketID, "option_id": entry.OptionID, "stake_cents": int64(entry.StakeCents)}),
			CreatedAt:      params.SettledAt,
		}
		ins := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&credit)
		if ins.Error != nil {
			return ins.Error
		}
		if ins.RowsAffected == 0 {
			// Credit already posted by a prior run; wallet was adjusted then.
			return nil
		}
		if err := tx.Model(&models.Wallet{}).
			Where("user_id = ?", entry.UserID).
			Update("available_cents", gorm.Expr("available_cents + ?", payout)).Error; err != nil {
			return err
		}
		paid = true
		return nil
	})
	return paid, err
}

func (s *Store) MarkEntriesLost(ctx context.Context, marketID, winningOptionID string, settledAt time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.PredictionEntry{}).
		Where("market_id = ? AND option_id <> ? AND status = ?", marketID, winningOptionID, models.EntryStatusActive).
		Updates(map[string]any{
			"status":              models.EntryStatusLost,
			"actual_payout_cents": 0,
			"settled_at":          settledAt,
		})
	return res.RowsAffected, res.Error
}

func (s *Store) RefundEntry(ctx context.Context, entryID string, settledAt time.Time) (bool, error) {
	refunded := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.PredictionEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&entry, "id = ?", entryID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.ErrNotFound
		}
		if err != nil {
			return err
		}
		if entry.Status != models.EntryStatusActive {
			return nil
		}

		stake := int64(entry.StakeCents)
		res := tx.Model(&models.PredictionEntry{}).
			Where("id = ? AND status = ?", entryID, models.EntryStatusActive).
			Updates(map[string]any{
				"status":              models.EntryStatusRefunded,
				"actual_payout_cents": stake,
				"settled_at":          settledAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := ensureWalletTx(tx, entry.UserID); err != nil {
			return err
		}
		credit := models.WalletTransaction{
			ID:             uuid.NewString(),
			UserID:         entry.UserID,
			AmountCents:    entry.StakeCents,
			Direction:      models.DirectionCredit,
			Kind:           models.TxKindRefund,
			IdempotencyKey: "refund:" + entry.ID,
			Metadata:       metadataJSON(map[string]any{"market_id": entry.MarketID, "option_id": entry.OptionID}),
			CreatedAt:      settledAt,
		}
		ins := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&credit)
		if ins.Error != nil {
			return ins.Error
		}
		if ins.RowsAffected == 0 {
			return nil
		}
		if err := tx.Model(&models.Wallet{}).
			Where("user_id = ?", entry.UserID).
			Update("available_cents", gorm.Expr("available_cents + ?", stake)).Error; err != nil {
			return err
		}

		// The consumed lock stays for the audit trail; flip it out of
		// 'locked' if the refund raced the sweep.
		if err := tx.Model(&models.EscrowLock{}).
			Where("id = ? AND state = ?", entry.EscrowLockID, models.LockStateLocked).
			Updates(map[string]any{"state": models.LockStateReleased, "released_at": settledAt}).Error; err != nil {
			return err
		}
		refunded = true
		return nil
	})
	return refunded, err
}
