package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fanclubz/internal/models"
	"fanclubz/internal/money"
	"fanclubz/internal/repository"
)

// fakeRepo mirrors the store's transactional semantics in memory: keyed
// replays, conditional balance updates, and the implicit lock-consumption
// rule. Good enough to exercise every service path without a database.
type fakeRepo struct {
	mu sync.Mutex

	markets     map[string]*models.Market
	options     map[string]*models.MarketOption
	locks       map[string]*models.EscrowLock
	entries     map[string]*models.PredictionEntry
	wallets     map[string]*models.Wallet
	ledger      []*models.WalletTransaction
	settlements map[string]*models.Settlement

	seq int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		markets:     map[string]*models.Market{},
		options:     map[string]*models.MarketOption{},
		locks:       map[string]*models.EscrowLock{},
		entries:     map[string]*models.PredictionEntry{},
		wallets:     map[string]*models.Wallet{},
		settlements: map[string]*models.Settlement{},
	}
}

func (f *fakeRepo) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeRepo) wallet(userID string) *models.Wallet {
	w, ok := f.wallets[userID]
	if !ok {
		w = &models.Wallet{UserID: userID, Currency: "USD", Status: models.WalletStatusActive}
		f.wallets[userID] = w
	}
	return w
}

func (f *fakeRepo) fund(userID string, amount money.Cents) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := f.wallet(userID)
	w.AvailableCents += amount
	f.ledger = append(f.ledger, &models.WalletTransaction{
		ID:             f.nextID("tx"),
		UserID:         userID,
		AmountCents:    amount,
		Direction:      models.DirectionCredit,
		Kind:           models.TxKindDeposit,
		IdempotencyKey: f.nextID("seed"),
		CreatedAt:      time.Now().UTC(),
	})
}

func (f *fakeRepo) CreateMarket(ctx context.Context, market *models.Market, options []models.MarketOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *market
	f.markets[market.ID] = &clone
	for i := range options {
		opt := options[i]
		f.options[opt.ID] = &opt
	}
	return nil
}

func (f *fakeRepo) GetMarket(ctx context.Context, id string) (*models.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.markets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *m
	return &clone, nil
}

func (f *fakeRepo) ListMarkets(ctx context.Context, params repository.ListMarketsParams) ([]models.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Market
	for _, m := range f.markets {
		if params.Status != nil && m.Status != *params.Status {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (f *fakeRepo) CountMarkets(ctx context.Context, params repository.ListMarketsParams) (int64, error) {
	items, _ := f.ListMarkets(ctx, params)
	return int64(len(items)), nil
}

func (f *fakeRepo) GetOption(ctx context.Context, id string) (*models.MarketOption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.options[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *o
	return &clone, nil
}

func (f *fakeRepo) ListOptionsByMarket(ctx context.Context, marketID string) ([]models.MarketOption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MarketOption
	for _, o := range f.options {
		if o.MarketID == marketID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeRepo) TransitionMarketStatus(ctx context.Context, marketID string, from []string, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.markets[marketID]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if m.Status == s {
			m.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) FinishSettlement(ctx context.Context, marketID string, status string, winningOptionID *string, record *models.Settlement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.markets[marketID]; ok {
		m.Status = status
		m.SettledOptionID = winningOptionID
		settledAt := record.SettledAt
		m.SettledAt = &settledAt
	}
	if _, ok := f.settlements[marketID]; !ok {
		if record.ID == "" {
			record.ID = f.nextID("stl")
		}
		clone := *record
		f.settlements[marketID] = &clone
	}
	return nil
}

func (f *fakeRepo) GetSettlementByMarket(ctx context.Context, marketID string) (*models.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.settlements[marketID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (f *fakeRepo) CreateLock(ctx context.Context, params repository.CreateLockParams) (*models.EscrowLock, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.locks {
		if l.IdempotencyKey == params.IdempotencyKey {
			clone := *l
			return &clone, true, nil
		}
	}
	w := f.wallet(params.UserID)
	if w.Status == models.WalletStatusFrozen {
		return nil, false, repository.ErrWalletFrozen
	}
	if w.AvailableCents < params.AmountCents {
		return nil, false, repository.ErrInsufficientFunds
	}
	for _, l := range f.locks {
		if l.UserID == params.UserID && l.MarketID == params.MarketID && l.State == models.LockStateLocked {
			return nil, false, repository.ErrDuplicateActiveLock
		}
	}
	w.AvailableCents -= params.AmountCents
	w.ReservedCents += params.AmountCents
	lock := &models.EscrowLock{
		ID:             f.nextID("lock"),
		UserID:         params.UserID,
		MarketID:       params.MarketID,
		AmountCents:    params.AmountCents,
		State:          models.LockStateLocked,
		IdempotencyKey: params.IdempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}
	f.locks[lock.ID] = lock
	clone := *lock
	return &clone, false, nil
}

func (f *fakeRepo) GetLock(ctx context.Context, id string) (*models.EscrowLock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *l
	return &clone, nil
}

func (f *fakeRepo) ReleaseLock(ctx context.Context, lockID string) error {
	return f.unlock(lockID, models.LockStateReleased)
}

func (f *fakeRepo) VoidLock(ctx context.Context, lockID string) error {
	return f.unlock(lockID, models.LockStateVoided)
}

func (f *fakeRepo) unlock(lockID, toState string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locks[lockID]
	if !ok {
		return repository.ErrNotFound
	}
	if l.State != models.LockStateLocked {
		return nil
	}
	now := time.Now().UTC()
	l.State = toState
	l.ReleasedAt = &now
	w := f.wallet(l.UserID)
	w.ReservedCents -= l.AmountCents
	w.AvailableCents += l.AmountCents
	return nil
}

func (f *fakeRepo) ListOrphanLocks(ctx context.Context, cutoff time.Time, limit int) ([]models.EscrowLock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EscrowLock
	for _, l := range f.locks {
		if l.State != models.LockStateLocked || !l.CreatedAt.Before(cutoff) {
			continue
		}
		consumed := false
		for _, e := range f.entries {
			if e.EscrowLockID == l.ID {
				consumed = true
				break
			}
		}
		if !consumed {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeRepo) PlaceEntry(ctx context.Context, params repository.PlaceEntryParams) (*models.PredictionEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locks[params.LockID]
	if !ok {
		return nil, false, repository.ErrNotFound
	}
	for _, e := range f.entries {
		if e.EscrowLockID == params.LockID {
			clone := *e
			return &clone, true, nil
		}
	}
	if l.State != models.LockStateLocked {
		return nil, false, repository.ErrLockNotActive
	}
	m, ok := f.markets[l.MarketID]
	if !ok || m.Status != models.MarketStatusOpen || !m.EntryDeadline.After(time.Now().UTC()) {
		return nil, false, repository.ErrMarketNotOpen
	}
	o, ok := f.options[params.OptionID]
	if !ok || o.MarketID != l.MarketID {
		return nil, false, repository.ErrNotFound
	}
	w := f.wallet(l.UserID)
	if w.ReservedCents < l.AmountCents {
		return nil, false, repository.ErrReservedShortfall
	}
	now := time.Now().UTC()
	m.TotalPoolCents += l.AmountCents
	o.PoolCents += l.AmountCents
	entry := &models.PredictionEntry{
		ID:           f.nextID("entry"),
		MarketID:     l.MarketID,
		OptionID:     params.OptionID,
		UserID:       l.UserID,
		StakeCents:   l.AmountCents,
		EscrowLockID: l.ID,
		Status:       models.EntryStatusActive,
		CreatedAt:    now,
	}
	f.entries[entry.ID] = entry
	w.ReservedCents -= l.AmountCents
	f.ledger = append(f.ledger, &models.WalletTransaction{
		ID:             f.nextID("tx"),
		UserID:         l.UserID,
		AmountCents:    l.AmountCents,
		Direction:      models.DirectionDebit,
		Kind:           models.TxKindStake,
		IdempotencyKey: "stake:" + l.ID,
		CreatedAt:      now,
	})
	clone := *entry
	return &clone, false, nil
}

func (f *fakeRepo) GetEntry(ctx context.Context, id string) (*models.PredictionEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (f *fakeRepo) GetEntryByLockID(ctx context.Context, lockID string) (*models.PredictionEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.EscrowLockID == lockID {
			clone := *e
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ListEntries mirrors the store's paging contract: (created_at, id) order,
// keyset cursor, and the same 1000-row fallback cap, so tests see truncation
// the way the real query would.
func (f *fakeRepo) ListEntries(ctx context.Context, params repository.ListEntriesParams) ([]models.PredictionEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PredictionEntry
	for _, e := range f.entries {
		if e.MarketID != params.MarketID {
			continue
		}
		if params.OptionID != nil && e.OptionID != *params.OptionID {
			continue
		}
		if params.Status != nil && e.Status != *params.Status {
			continue
		}
		if params.AfterID != "" && !entryAfterCursor(e, params.AfterCreatedAt, params.AfterID) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	limit := params.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func entryAfterCursor(e *models.PredictionEntry, at time.Time, id string) bool {
	if e.CreatedAt.After(at) {
		return true
	}
	return e.CreatedAt.Equal(at) && e.ID > id
}

func (f *fakeRepo) PostTransaction(ctx context.Context, params repository.PostTransactionParams) (*models.WalletTransaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.ledger {
		if tx.IdempotencyKey == params.IdempotencyKey {
			clone := *tx
			return &clone, true, nil
		}
		if params.Provider != nil && params.ExternalRef != nil &&
			tx.Provider != nil && tx.ExternalRef != nil &&
			*tx.Provider == *params.Provider && *tx.ExternalRef == *params.ExternalRef {
			clone := *tx
			return &clone, true, nil
		}
	}
	w := f.wallet(params.UserID)
	if w.Status == models.WalletStatusFrozen {
		return nil, false, repository.ErrWalletFrozen
	}
	switch params.Direction {
	case models.DirectionDebit:
		if w.AvailableCents < params.AmountCents {
			return nil, false, repository.ErrInsufficientFunds
		}
		w.AvailableCents -= params.AmountCents
	case models.DirectionCredit:
		w.AvailableCents += params.AmountCents
	}
	row := &models.WalletTransaction{
		ID:             f.nextID("tx"),
		UserID:         params.UserID,
		AmountCents:    params.AmountCents,
		Direction:      params.Direction,
		Kind:           params.Kind,
		IdempotencyKey: params.IdempotencyKey,
		Provider:       params.Provider,
		ExternalRef:    params.ExternalRef,
		CreatedAt:      time.Now().UTC(),
	}
	f.ledger = append(f.ledger, row)
	clone := *row
	return &clone, false, nil
}

func (f *fakeRepo) ListTransactions(ctx context.Context, params repository.ListTransactionsParams) ([]models.WalletTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.WalletTransaction
	for _, tx := range f.ledger {
		if tx.UserID != params.UserID {
			continue
		}
		if params.Kind != nil && tx.Kind != *params.Kind {
			continue
		}
		out = append(out, *tx)
	}
	return out, nil
}

func (f *fakeRepo) CountTransactions(ctx context.Context, params repository.ListTransactionsParams) (int64, error) {
	items, _ := f.ListTransactions(ctx, params)
	return int64(len(items)), nil
}

func (f *fakeRepo) GetWalletSummary(ctx context.Context, userID string) (*repository.WalletSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := f.wallet(userID)
	return &repository.WalletSummary{
		UserID:         w.UserID,
		Currency:       w.Currency,
		AvailableCents: w.AvailableCents,
		ReservedCents:  w.ReservedCents,
		Status:         w.Status,
	}, nil
}

func (f *fakeRepo) ListWallets(ctx context.Context, limit, offset int) ([]models.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Wallet
	for _, w := range f.wallets {
		out = append(out, *w)
	}
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:], nil
}

func (f *fakeRepo) DerivedBalance(ctx context.Context, userID string) (money.Cents, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.derived(userID), nil
}

func (f *fakeRepo) derived(userID string) money.Cents {
	var total money.Cents
	for _, tx := range f.ledger {
		if tx.UserID != userID {
			continue
		}
		if tx.Direction == models.DirectionCredit {
			total += tx.AmountCents
		} else {
			total -= tx.AmountCents
		}
	}
	return total
}

func (f *fakeRepo) AuditWallet(ctx context.Context, userID string) (*repository.WalletAudit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := f.wallet(userID)
	return &repository.WalletAudit{
		UserID:            userID,
		MaterializedCents: w.AvailableCents + w.ReservedCents,
		DerivedCents:      f.derived(userID),
		Status:            w.Status,
	}, nil
}

func (f *fakeRepo) FreezeWallet(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wallet(userID).Status = models.WalletStatusFrozen
	return nil
}

func (f *fakeRepo) SettleEntryWon(ctx context.Context, params repository.SettleEntryWonParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[params.EntryID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if e.Status != models.EntryStatusActive {
		return false, nil
	}
	payout := params.PayoutCents
	e.Status = models.EntryStatusWon
	e.ActualPayoutCents = &payout
	settledAt := params.SettledAt
	e.SettledAt = &settledAt
	w := f.wallet(e.UserID)
	w.AvailableCents += payout
	f.ledger = append(f.ledger, &models.WalletTransaction{
		ID:             f.nextID("tx"),
		UserID:         e.UserID,
		AmountCents:    payout,
		Direction:      models.DirectionCredit,
		Kind:           models.TxKindPayout,
		IdempotencyKey: "settle:" + e.ID,
		CreatedAt:      settledAt,
	})
	return true, nil
}

func (f *fakeRepo) MarkEntriesLost(ctx context.Context, marketID, winningOptionID string, settledAt time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, e := range f.entries {
		if e.MarketID != marketID || e.OptionID == winningOptionID || e.Status != models.EntryStatusActive {
			continue
		}
		zero := money.Cents(0)
		e.Status = models.EntryStatusLost
		e.ActualPayoutCents = &zero
		at := settledAt
		e.SettledAt = &at
		count++
	}
	return count, nil
}

func (f *fakeRepo) RefundEntry(ctx context.Context, entryID string, settledAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[entryID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if e.Status != models.EntryStatusActive {
		return false, nil
	}
	stake := e.StakeCents
	e.Status = models.EntryStatusRefunded
	e.ActualPayoutCents = &stake
	at := settledAt
	e.SettledAt = &at
	w := f.wallet(e.UserID)
	w.AvailableCents += stake
	f.ledger = append(f.ledger, &models.WalletTransaction{
		ID:             f.nextID("tx"),
		UserID:         e.UserID,
		AmountCents:    stake,
		Direction:      models.DirectionCredit,
		Kind:           models.TxKindRefund,
		IdempotencyKey: "refund:" + e.ID,
		CreatedAt:      at,
	})
	if l, ok := f.locks[e.EscrowLockID]; ok && l.State == models.LockStateLocked {
		l.State = models.LockStateReleased
		l.ReleasedAt = &at
	}
	return true, nil
}

var _ repository.Repository = (*fakeRepo)(nil)
