package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fanclubz/internal/config"
	"fanclubz/internal/models"
	"fanclubz/internal/money"
	"fanclubz/internal/odds"
	"fanclubz/internal/repository"
)

// MarketService creates and reads parimutuel markets. Fee rates are
// snapshotted onto the market row at creation; later config changes never
// reprice an open market.
type MarketService struct {
	Repo   repository.Repository
	Fees   config.FeesConfig
	Logger *zap.Logger
}

type CreateMarketInput struct {
	CreatorID     string
	Title         string
	OptionLabels  []string
	EntryDeadline time.Time
}

type MarketView struct {
	Market  *models.Market `json:"market"`
	Options []OptionView   `json:"options"`
}

type OptionView struct {
	Option            models.MarketOption `json:"option"`
	ReferenceMultiple *float64            `json:"referenceMultiple,omitempty"`
}

func (s *MarketService) Create(ctx context.Context, in CreateMarketInput) (*MarketView, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrMissingTitle
	}
	labels := make([]string, 0, len(in.OptionLabels))
	for _, label := range in.OptionLabels {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			labels = append(labels, trimmed)
		}
	}
	if len(labels) < 2 {
		return nil, ErrTooFewOptions
	}
	now := time.Now().UTC()
	if !in.EntryDeadline.After(now) {
		return nil, ErrDeadlineInPast
	}

	market := &models.Market{
		ID:             uuid.NewString(),
		CreatorID:      in.CreatorID,
		Title:          title,
		Status:         models.MarketStatusOpen,
		EntryDeadline:  in.EntryDeadline.UTC(),
		PlatformFeeBps: s.Fees.PlatformBps,
		CreatorFeeBps:  s.Fees.CreatorBps,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	options := make([]models.MarketOption, 0, len(labels))
	for _, label := range labels {
		options = append(options, models.MarketOption{
			ID:        uuid.NewString(),
			MarketID:  market.ID,
			Label:     label,
			CreatedAt: now,
		})
	}
	if err := s.Repo.CreateMarket(ctx, market, options); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("market created",
			zap.String("market_id", market.ID),
			zap.String("creator_id", market.CreatorID),
			zap.Int("options", len(options)))
	}
	return s.view(market, options), nil
}

func (s *MarketService) Get(ctx context.Context, id string) (*MarketView, error) {
	market, err := s.Repo.GetMarket(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMarketNotFound
		}
		return nil, err
	}
	options, err := s.Repo.ListOptionsByMarket(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(market, options), nil
}

func (s *MarketService) List(ctx context.Context, params repository.ListMarketsParams) ([]models.Market, int64, error) {
	items, err := s.Repo.ListMarkets(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.CountMarkets(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Preview quotes a hypothetical stake without touching any balance.
func (s *MarketService) Preview(ctx context.Context, marketID, optionID string, stake money.Cents) (*odds.PreviewResult, error) {
	market, err := s.Repo.GetMarket(ctx, marketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMarketNotFound
		}
		return nil, err
	}
	option, err := s.Repo.GetOption(ctx, optionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOptionNotFound
		}
		return nil, err
	}
	if option.MarketID != market.ID {
		return nil, ErrOptionNotInMarket
	}
	return odds.Preview(market.TotalPoolCents, option.PoolCents, stake,
		market.PlatformFeeBps, market.CreatorFeeBps), nil
}

// A $1 reference stake makes quotes well-defined even for options nobody
// has backed yet.
const referenceStakeCents = money.Cents(100)

func (s *MarketService) view(market *models.Market, options []models.MarketOption) *MarketView {
	view := &MarketView{Market: market, Options: make([]OptionView, 0, len(options))}
	for _, option := range options {
		item := OptionView{Option: option}
		if m, ok := odds.ReferenceMultiple(option.PoolCents, market.TotalPoolCents, referenceStakeCents,
			market.PlatformFeeBps, market.CreatorFeeBps); ok {
			item.ReferenceMultiple = &m
		}
		view.Options = append(view.Options, item)
	}
	return view
}
