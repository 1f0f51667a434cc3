package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"fanclubz/internal/config"
	"fanclubz/internal/models"
	"fanclubz/internal/money"
	"fanclubz/internal/odds"
	"fanclubz/internal/repository"
)

// StakeService runs the two-phase stake flow: reserve funds behind an escrow
// lock, then consume the lock into a pool entry. Retries replay via the lock's
// idempotency key, then via the entry's unique escrow_lock_id.
type StakeService struct {
	Repo   repository.Repository
	Stakes config.StakesConfig
	Logger *zap.Logger
}

type PlaceStakeInput struct {
	UserID         string
	MarketID       string
	OptionID       string
	StakeCents     money.Cents
	IdempotencyKey string
}

type PlaceStakeResult struct {
	Entry               *models.PredictionEntry `json:"entry"`
	Lock                *models.EscrowLock      `json:"lock"`
	Multiple            *float64                `json:"multiple,omitempty"`
	ExpectedReturnCents money.Cents             `json:"expectedReturnCents"`
	Replayed            bool                    `json:"replayed"`
}

func (s *StakeService) Place(ctx context.Context, in PlaceStakeInput) (*PlaceStakeResult, error) {
	if in.IdempotencyKey == "" {
		return nil, ErrMissingIdempotency
	}
	if in.StakeCents < money.Cents(s.Stakes.MinStakeCents) ||
		(s.Stakes.MaxStakeCents > 0 && in.StakeCents > money.Cents(s.Stakes.MaxStakeCents)) {
		return nil, ErrStakeOutOfRange
	}

	market, err := s.Repo.GetMarket(ctx, in.MarketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMarketNotFound
		}
		return nil, err
	}
	if market.Status != models.MarketStatusOpen || !market.EntryDeadline.After(time.Now().UTC()) {
		return nil, ErrMarketNotOpen
	}
	option, err := s.Repo.GetOption(ctx, in.OptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOptionNotFound
		}
		return nil, err
	}
	if option.MarketID != market.ID {
		return nil, ErrOptionNotInMarket
	}

	lock, lockReplayed, err := s.Repo.CreateLock(ctx, repository.CreateLockParams{
		UserID:         in.UserID,
		MarketID:       in.MarketID,
		AmountCents:    in.StakeCents,
		IdempotencyKey: in.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}

	entry, entryReplayed, err := s.Repo.PlaceEntry(ctx, repository.PlaceEntryParams{
		LockID:   lock.ID,
		OptionID: in.OptionID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrReservedShortfall) && s.Logger != nil {
			s.Logger.Error("reserved balance below lock amount",
				zap.String("lock_id", lock.ID),
				zap.String("user_id", in.UserID),
				zap.String("amount", money.Format(lock.AmountCents)))
		}
		// A fresh lock whose consumption was rejected would otherwise sit
		// reserved until the sweep; release it now.
		if !lockReplayed && (errors.Is(err, repository.ErrMarketNotOpen) || errors.Is(err, repository.ErrNotFound)) {
			if relErr := s.Repo.ReleaseLock(ctx, lock.ID); relErr != nil && s.Logger != nil {
				s.Logger.Warn("release lock after rejected entry failed",
					zap.String("lock_id", lock.ID), zap.Error(relErr))
			}
			if errors.Is(err, repository.ErrMarketNotOpen) {
				return nil, ErrMarketNotOpen
			}
			return nil, ErrOptionNotFound
		}
		return nil, err
	}

	result := &PlaceStakeResult{
		Entry:    entry,
		Lock:     lock,
		Replayed: lockReplayed && entryReplayed,
	}
	if quote := odds.Preview(market.TotalPoolCents, option.PoolCents, in.StakeCents,
		market.PlatformFeeBps, market.CreatorFeeBps); quote != nil {
		result.Multiple = &quote.Multiple
		result.ExpectedReturnCents = quote.ExpectedReturnCents
	}
	if s.Logger != nil && !result.Replayed {
		s.Logger.Info("stake placed",
			zap.String("entry_id", entry.ID),
			zap.String("market_id", in.MarketID),
			zap.String("option_id", in.OptionID),
			zap.String("user_id", in.UserID),
			zap.String("stake", money.Format(in.StakeCents)))
	}
	return result, nil
}
