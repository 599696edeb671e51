package loyalty

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"voyalty/internal/model"
	"voyalty/internal/repository"
)

// Redeem exchanges points for a catalog reward. Preconditions are checked
// in a fixed order (reward active, account exists, balance, tier, cap) and
// the execution is one atomic ledger transaction that re-evaluates the cap
// and the balance at write time, so the last unit of a capped reward can
// never be sold twice. A conflict on the account restarts the whole cycle
// with fresh state.
func (s *Service) Redeem(ctx context.Context, req model.RedeemRequest) (*model.RedemptionResult, error) {
	if req.UserID == "" || req.RewardID == "" {
		return nil, fmt.Errorf("%w: user_id and reward_id are required", ErrInvalidRequest)
	}

	var result *model.RedemptionResult
	err := s.withConflictRetry(ctx, func(ctx context.Context) error {
		now := s.now()

		reward, err := s.rewards.GetReward(ctx, req.RewardID)
		if err != nil {
			if errors.Is(err, repository.ErrRewardNotFound) {
				return ErrRewardNotFound
			}
			return err
		}
		if !reward.ActiveAt(now) {
			return ErrRewardNotActive
		}

		acct, err := s.ledger.GetAccount(ctx, req.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		if acct.Balance < reward.PointsRequired {
			return ErrInsufficientPoints
		}
		if acct.Tier < reward.MinTier {
			return ErrTierTooLow
		}
		if reward.SoldOut() {
			return ErrRedemptionLimitReached
		}

		txn := &model.Transaction{
			ID:            uuid.NewString(),
			AccountID:     acct.UserID,
			Kind:          model.KindRedeemed,
			Points:        -reward.PointsRequired,
			BalanceBefore: acct.Balance,
			BalanceAfter:  acct.Balance - reward.PointsRequired,
			Description:   fmt.Sprintf("Redeemed reward %s", reward.ID),
			CreatedAt:     now,
		}
		red := &model.Redemption{
			ID:         uuid.NewString(),
			AccountID:  acct.UserID,
			RewardID:   reward.ID,
			PointsUsed: reward.PointsRequired,
			Status:     model.RedemptionConfirmed,
			ExpiresAt:  now.Add(s.params.RedemptionTTL),
			CreatedAt:  now,
		}

		// A code probed as free can still be claimed before the insert
		// lands; such a loss regenerates rather than surfacing the raw
		// uniqueness error.
		redeemed := false
		for attempt := 0; attempt < codeAttempts && !redeemed; attempt++ {
			code, err := generateUniqueCode(ctx, redemptionCodePrefix, s.ledger.RedemptionCodeExists)
			if err != nil {
				return err
			}
			red.Code = code

			switch err := s.ledger.Redeem(ctx, acct, txn, red); {
			case err == nil:
				redeemed = true
			case errors.Is(err, repository.ErrDuplicateCode):
				continue
			case errors.Is(err, repository.ErrRedemptionCapReached):
				return ErrRedemptionLimitReached
			case errors.Is(err, repository.ErrRewardNotFound):
				return ErrRewardNotFound
			default:
				return err
			}
		}
		if !redeemed {
			return ErrCodeGenerationExhausted
		}

		if s.invalidate != nil {
			s.invalidate.Invalidate(ctx, reward.ID)
		}
		s.publish(txn, red.ID)

		result = &model.RedemptionResult{
			RedemptionCode: red.Code,
			NewBalance:     acct.Balance,
			ExpiresAt:      red.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
