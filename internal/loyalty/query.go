package loyalty

import (
	"context"
	"errors"

	"voyalty/internal/model"
	"voyalty/internal/repository"
	"voyalty/internal/tier"
)

// GetLoyaltyInfo composes the read view: account state, recent transactions
// most-recent-first, active redemptions (expiry observed at read time) and
// tier progress. Read-only.
func (s *Service) GetLoyaltyInfo(ctx context.Context, userID string) (*model.LoyaltyView, error) {
	acct, err := s.ledger.GetAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	txns, err := s.ledger.ListTransactions(ctx, userID, s.params.HistoryLimit)
	if err != nil {
		return nil, err
	}

	redemptions, err := s.ledger.ListRedemptions(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	active := make([]model.Redemption, 0, len(redemptions))
	for _, r := range redemptions {
		if r.ActiveAt(now) {
			active = append(active, r)
		}
	}

	return &model.LoyaltyView{
		Account:            *acct,
		RecentTransactions: txns,
		ActiveRedemptions:  active,
		TierProgress:       tierProgress(acct.Tier, acct.LifetimeSpendCents),
	}, nil
}

// ListRewards serves the reward catalog, through the cache when one is
// wired.
func (s *Service) ListRewards(ctx context.Context) ([]model.RewardCatalogEntry, error) {
	return s.rewards.ListRewards(ctx)
}

// tierProgress reports how far the spend sits between the current tier's
// threshold and the next one, saturating at 100 for the top tier.
func tierProgress(current tier.Level, spendCents int64) model.TierProgress {
	next, ok := tier.Next(current)
	if !ok {
		return model.TierProgress{Current: current, Next: current, Percent: 100}
	}

	floor := tier.MinSpendFor(current)
	ceil := tier.MinSpendFor(next)
	percent := 0
	if ceil > floor {
		percent = int((spendCents - floor) * 100 / (ceil - floor))
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return model.TierProgress{
		Current:       current,
		Next:          next,
		Percent:       percent,
		NextThreshold: ceil,
	}
}
