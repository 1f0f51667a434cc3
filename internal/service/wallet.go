package service

import (
	"context"

	"go.uber.org/zap"

	"fanclubz/internal/models"
	"fanclubz/internal/money"
	"fanclubz/internal/repository"
)

// WalletNotifier receives balance-changing events for the realtime stream.
type WalletNotifier interface {
	WalletChanged(userID string)
}

// WalletService fronts the append-only ledger. Deposits and withdrawals are
// keyed by the caller's idempotency key plus the payment provider's external
// reference, so webhook redelivery always replays instead of double-posting.
type WalletService struct {
	Repo     repository.Repository
	Notifier WalletNotifier
	Logger   *zap.Logger
}

type LedgerPostInput struct {
	UserID         string
	AmountCents    money.Cents
	IdempotencyKey string
	Provider       string
	ExternalRef    string
}

type LedgerPostResult struct {
	Transaction *models.WalletTransaction `json:"transaction"`
	Replayed    bool                      `json:"replayed"`
}

func (s *WalletService) Deposit(ctx context.Context, in LedgerPostInput) (*LedgerPostResult, error) {
	return s.post(ctx, in, models.DirectionCredit, models.TxKindDeposit)
}

func (s *WalletService) Withdraw(ctx context.Context, in LedgerPostInput) (*LedgerPostResult, error) {
	return s.post(ctx, in, models.DirectionDebit, models.TxKindWithdrawal)
}

func (s *WalletService) post(ctx context.Context, in LedgerPostInput, direction, kind string) (*LedgerPostResult, error) {
	if in.IdempotencyKey == "" {
		return nil, ErrMissingIdempotency
	}
	if in.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	params := repository.PostTransactionParams{
		UserID:         in.UserID,
		AmountCents:    in.AmountCents,
		Direction:      direction,
		Kind:           kind,
		IdempotencyKey: in.IdempotencyKey,
	}
	if in.Provider != "" && in.ExternalRef != "" {
		params.Provider = &in.Provider
		params.ExternalRef = &in.ExternalRef
	}
	row, replayed, err := s.Repo.PostTransaction(ctx, params)
	if err != nil {
		return nil, err
	}
	if !replayed {
		if s.Notifier != nil {
			s.Notifier.WalletChanged(in.UserID)
		}
		if s.Logger != nil {
			s.Logger.Info("ledger posted",
				zap.String("user_id", in.UserID),
				zap.String("kind", kind),
				zap.String("amount", money.Format(in.AmountCents)))
		}
	}
	return &LedgerPostResult{Transaction: row, Replayed: replayed}, nil
}

func (s *WalletService) Summary(ctx context.Context, userID string) (*repository.WalletSummary, error) {
	return s.Repo.GetWalletSummary(ctx, userID)
}

func (s *WalletService) Transactions(ctx context.Context, params repository.ListTransactionsParams) ([]models.WalletTransaction, int64, error) {
	items, err := s.Repo.ListTransactions(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.CountTransactions(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
