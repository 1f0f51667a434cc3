package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"fanclubz/internal/config"
	"fanclubz/internal/models"
	"fanclubz/internal/money"
	"fanclubz/internal/repository"
)

// ReconcileService is the background sweep. It voids escrow locks that aged
// past the grace window without ever being consumed into an entry, and it
// audits materialized wallet balances against the ledger. The grace window
// must err long: a short window can void a lock whose entry insert is still
// in flight.
type ReconcileService struct {
	Repo   repository.Repository
	Config config.ReconcileConfig
	Logger *zap.Logger
}

type SweepReport struct {
	OrphansVoided  int      `json:"orphansVoided"`
	WalletsChecked int      `json:"walletsChecked"`
	WalletsFrozen  []string `json:"walletsFrozen,omitempty"`
}

func (s *ReconcileService) RunOnce(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{}

	grace := s.Config.GraceWindow
	if grace <= 0 {
		grace = 10 * time.Minute
	}
	batch := s.Config.BatchSize
	if batch <= 0 || batch > 1000 {
		batch = 200
	}
	cutoff := time.Now().UTC().Add(-grace)

	// The query already excludes locks referenced by an entry; VoidLock's
	// conditional transition covers the race where an entry lands between
	// the query and the void.
	orphans, err := s.Repo.ListOrphanLocks(ctx, cutoff, batch)
	if err != nil {
		return report, err
	}
	for i := range orphans {
		lock := &orphans[i]
		if err := s.Repo.VoidLock(ctx, lock.ID); err != nil {
			if s.Logger != nil {
				s.Logger.Warn("void orphan lock failed",
					zap.String("lock_id", lock.ID), zap.Error(err))
			}
			continue
		}
		report.OrphansVoided++
		if s.Logger != nil {
			s.Logger.Info("orphan lock voided",
				zap.String("lock_id", lock.ID),
				zap.String("user_id", lock.UserID),
				zap.String("market_id", lock.MarketID),
				zap.String("amount", money.Format(lock.AmountCents)),
				zap.Duration("age", time.Since(lock.CreatedAt)))
		}
	}

	offset := 0
	for {
		wallets, err := s.Repo.ListWallets(ctx, batch, offset)
		if err != nil {
			return report, err
		}
		for i := range wallets {
			if err := s.auditWallet(ctx, wallets[i].UserID, report); err != nil {
				return report, err
			}
		}
		if len(wallets) < batch {
			return report, nil
		}
		offset += batch
	}
}

// auditWallet compares the materialized balances against the ledger-derived
// balance. available + reserved must equal sum(credits) - sum(debits); any
// divergence means money was created or destroyed, so the wallet freezes and
// every mutating operation refuses until a human reconciles it.
func (s *ReconcileService) auditWallet(ctx context.Context, userID string, report *SweepReport) error {
	audit, err := s.Repo.AuditWallet(ctx, userID)
	if err != nil {
		return err
	}
	report.WalletsChecked++
	if audit.MaterializedCents == audit.DerivedCents {
		return nil
	}
	if audit.Status != models.WalletStatusFrozen {
		if err := s.Repo.FreezeWallet(ctx, userID); err != nil {
			return err
		}
	}
	report.WalletsFrozen = append(report.WalletsFrozen, userID)
	if s.Logger != nil {
		s.Logger.Error("wallet balance divergence, wallet frozen",
			zap.String("user_id", userID),
			zap.String("materialized", money.Format(audit.MaterializedCents)),
			zap.String("derived", money.Format(audit.DerivedCents)))
	}
	return nil
}
