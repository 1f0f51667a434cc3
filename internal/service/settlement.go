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

// SettlementService distributes a market's pooled stakes. A conditional
// status transition open|closed→settling serializes concurrent triggers;
// every payment inside the run is keyed, so a crashed run can be re-triggered
// and only the unpaid remainder goes out.
type SettlementService struct {
	Repo     repository.Repository
	Treasury config.TreasuryConfig
	Notifier WalletNotifier
	Logger   *zap.Logger
}

type SettleInput struct {
	MarketID        string
	WinningOptionID string
	CallerID        string
}

type SettlementResult struct {
	Record   *models.Settlement `json:"record"`
	Replayed bool               `json:"replayed"`
}

func (s *SettlementService) Settle(ctx context.Context, in SettleInput) (*SettlementResult, error) {
	market, err := s.Repo.GetMarket(ctx, in.MarketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMarketNotFound
		}
		return nil, err
	}
	if in.CallerID != "" && market.CreatorID != in.CallerID {
		return nil, ErrNotMarketCreator
	}
	option, err := s.Repo.GetOption(ctx, in.WinningOptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOptionNotFound
		}
		return nil, err
	}
	if option.MarketID != market.ID {
		return nil, ErrOptionNotInMarket
	}

	moved, err := s.Repo.TransitionMarketStatus(ctx, market.ID,
		[]string{models.MarketStatusOpen, models.MarketStatusClosed}, models.MarketStatusSettling)
	if err != nil {
		return nil, err
	}
	if !moved {
		// A crashed run leaves the market in 'settling' with no audit row;
		// re-triggering finishes it. Every step below is keyed, so a
		// concurrent duplicate run pays nothing twice.
		current, err := s.Repo.GetMarket(ctx, market.ID)
		if err != nil {
			return nil, err
		}
		if current.Status != models.MarketStatusSettling {
			return s.resolveExisting(ctx, market.ID)
		}
		market = current
	}

	return s.run(ctx, market, option)
}

func (s *SettlementService) resolveExisting(ctx context.Context, marketID string) (*SettlementResult, error) {
	record, err := s.Repo.GetSettlementByMarket(ctx, marketID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSettlementInProgress
	}
	if err != nil {
		return nil, err
	}
	return &SettlementResult{Record: record, Replayed: true}, nil
}

func (s *SettlementService) run(ctx context.Context, market *models.Market, winning *models.MarketOption) (*SettlementResult, error) {
	// Pools are re-read after the status transition: a stake that slipped in
	// between the caller's read and the claim must count.
	market, err := s.Repo.GetMarket(ctx, market.ID)
	if err != nil {
		return nil, err
	}
	winning, err = s.Repo.GetOption(ctx, winning.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	selected := winning.PoolCents
	other := market.TotalPoolCents - selected

	// Nobody backed the winning outcome: there is no pool to distribute
	// into, so every stake goes back and no fee is taken.
	if selected == 0 {
		return s.refundAll(ctx, market, &winning.ID, models.MarketStatusSettled, now)
	}

	platformFee, creatorFee := odds.SettlementFees(other, market.PlatformFeeBps, market.CreatorFeeBps)
	fees := platformFee + creatorFee
	distributable := selected + other - fees

	winnerCount, err := s.forEachActiveEntry(ctx, market.ID, &winning.ID, func(entry *models.PredictionEntry) error {
		payout, ok := odds.WinnerPayout(entry.StakeCents, selected, other,
			market.PlatformFeeBps, market.CreatorFeeBps)
		if !ok {
			payout = entry.StakeCents
		}
		paid, err := s.Repo.SettleEntryWon(ctx, repository.SettleEntryWonParams{
			EntryID:     entry.ID,
			PayoutCents: payout,
			SettledAt:   now,
		})
		if err != nil {
			return err
		}
		if paid {
			s.notify(entry.UserID)
			if s.Logger != nil {
				s.Logger.Info("entry paid",
					zap.String("entry_id", entry.ID),
					zap.String("user_id", entry.UserID),
					zap.String("payout", money.Format(payout)))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	lost, err := s.Repo.MarkEntriesLost(ctx, market.ID, winning.ID, now)
	if err != nil {
		return nil, err
	}

	if creatorFee > 0 {
		if err := s.creditFee(ctx, market.CreatorID, creatorFee, models.TxKindCreatorFee,
			"settle:creator:"+market.ID, market.ID); err != nil {
			return nil, err
		}
	}
	if platformFee > 0 && s.Treasury.PlatformAccountID != "" {
		if err := s.creditFee(ctx, s.Treasury.PlatformAccountID, platformFee, models.TxKindPlatformFee,
			"settle:platform:"+market.ID, market.ID); err != nil {
			return nil, err
		}
	}

	record := &models.Settlement{
		MarketID:           market.ID,
		WinningOptionID:    &winning.ID,
		Kind:               models.SettlementKindPayout,
		PoolCents:          market.TotalPoolCents,
		FeesCents:          fees,
		DistributableCents: distributable,
		WinnerCount:        winnerCount,
		EntryCount:         winnerCount + int(lost),
		SettledAt:          now,
	}
	if err := s.Repo.FinishSettlement(ctx, market.ID, models.MarketStatusSettled, &winning.ID, record); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("market settled",
			zap.String("market_id", market.ID),
			zap.String("winning_option_id", winning.ID),
			zap.Int("winners", winnerCount),
			zap.Int64("losers", lost),
			zap.String("pool", money.Format(market.TotalPoolCents)),
			zap.String("fees", money.Format(fees)))
	}
	return &SettlementResult{Record: record}, nil
}

// Cancel voids a market and returns every active stake.
func (s *SettlementService) Cancel(ctx context.Context, marketID, callerID string) (*SettlementResult, error) {
	market, err := s.Repo.GetMarket(ctx, marketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMarketNotFound
		}
		return nil, err
	}
	if callerID != "" && market.CreatorID != callerID {
		return nil, ErrNotMarketCreator
	}
	moved, err := s.Repo.TransitionMarketStatus(ctx, market.ID,
		[]string{models.MarketStatusOpen, models.MarketStatusClosed}, models.MarketStatusSettling)
	if err != nil {
		return nil, err
	}
	if !moved {
		current, err := s.Repo.GetMarket(ctx, market.ID)
		if err != nil {
			return nil, err
		}
		if current.Status != models.MarketStatusSettling {
			return s.resolveExisting(ctx, market.ID)
		}
		market = current
	}
	return s.refundAll(ctx, market, nil, models.MarketStatusCancelled, time.Now().UTC())
}

func (s *SettlementService) refundAll(ctx context.Context, market *models.Market, winningOptionID *string, finalStatus string, now time.Time) (*SettlementResult, error) {
	market, err := s.Repo.GetMarket(ctx, market.ID)
	if err != nil {
		return nil, err
	}
	entryCount, err := s.forEachActiveEntry(ctx, market.ID, nil, func(entry *models.PredictionEntry) error {
		refunded, err := s.Repo.RefundEntry(ctx, entry.ID, now)
		if err != nil {
			return err
		}
		if refunded {
			s.notify(entry.UserID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	record := &models.Settlement{
		MarketID:        market.ID,
		WinningOptionID: winningOptionID,
		Kind:            models.SettlementKindRefund,
		PoolCents:       market.TotalPoolCents,
		EntryCount:      entryCount,
		SettledAt:       now,
	}
	if err := s.Repo.FinishSettlement(ctx, market.ID, finalStatus, winningOptionID, record); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("market refunded",
			zap.String("market_id", market.ID),
			zap.String("status", finalStatus),
			zap.Int("entries", entryCount))
	}
	return &SettlementResult{Record: record}, nil
}

// settlementPageSize bounds one ListEntries page. Markets can hold far more
// entries than a single query returns, so the settle and cancel loops walk
// the keyset cursor until exhaustion rather than trusting one page.
const settlementPageSize = 500

func (s *SettlementService) forEachActiveEntry(ctx context.Context, marketID string, optionID *string, fn func(entry *models.PredictionEntry) error) (int, error) {
	status := models.EntryStatusActive
	params := repository.ListEntriesParams{
		MarketID: marketID,
		OptionID: optionID,
		Status:   &status,
		Limit:    settlementPageSize,
	}
	total := 0
	for {
		page, err := s.Repo.ListEntries(ctx, params)
		if err != nil {
			return total, err
		}
		for i := range page {
			if err := fn(&page[i]); err != nil {
				return total, err
			}
		}
		total += len(page)
		if len(page) < settlementPageSize {
			return total, nil
		}
		last := page[len(page)-1]
		params.AfterCreatedAt = last.CreatedAt
		params.AfterID = last.ID
	}
}

func (s *SettlementService) creditFee(ctx context.Context, userID string, amount money.Cents, kind, key, marketID string) error {
	_, _, err := s.Repo.PostTransaction(ctx, repository.PostTransactionParams{
		UserID:         userID,
		AmountCents:    amount,
		Direction:      models.DirectionCredit,
		Kind:           kind,
		IdempotencyKey: key,
		Metadata:       map[string]any{"market_id": marketID},
	})
	if err != nil {
		return err
	}
	s.notify(userID)
	return nil
}

func (s *SettlementService) notify(userID string) {
	if s.Notifier != nil {
		s.Notifier.WalletChanged(userID)
	}
}
