package loyalty

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"voyalty/internal/model"
	"voyalty/internal/repository"
	"voyalty/internal/tier"
)

// Accrue converts a completed booking into an earned ledger entry. The
// bonus uses the multiplier of the tier held before this accrual; the tier
// is then recomputed from the updated lifetime spend, so the spend funding
// an accrual never inflates its own bonus.
func (s *Service) Accrue(ctx context.Context, req model.AccrueRequest) (*model.AccrualResult, error) {
	if req.UserID == "" || req.ReservationID == "" {
		return nil, fmt.Errorf("%w: user_id and reservation_id are required", ErrInvalidRequest)
	}
	if req.AmountCents < 0 {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrInvalidRequest)
	}

	var result *model.AccrualResult
	err := s.withConflictRetry(ctx, func(ctx context.Context) error {
		acct, err := s.getOrCreateAccount(ctx, req.UserID)
		if err != nil {
			return err
		}

		basePoints := req.AmountCents * s.params.PointsPerUnit / 100
		multiplier := tier.BenefitsFor(acct.Tier).Multiplier
		bonusPoints := int64(math.Floor(float64(basePoints) * (multiplier - 1.0)))
		points := basePoints + bonusPoints

		now := s.now()
		txn := &model.Transaction{
			ID:            uuid.NewString(),
			AccountID:     acct.UserID,
			Kind:          model.KindEarned,
			Points:        points,
			BalanceBefore: acct.Balance,
			BalanceAfter:  acct.Balance + points,
			Description:   fmt.Sprintf("Points earned for reservation %s", req.ReservationID),
			ReservationID: req.ReservationID,
			CreatedAt:     now,
		}

		updated := *acct
		updated.Balance += points
		updated.LifetimeSpendCents += req.AmountCents
		updated.Tier = tier.For(updated.LifetimeSpendCents)

		if err := s.ledger.ApplyTransaction(ctx, &updated, txn); err != nil {
			return err
		}
		s.publish(txn, "")

		result = &model.AccrualResult{
			PointsAwarded: points,
			NewBalance:    updated.Balance,
			Tier:          updated.Tier,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// getOrCreateAccount reads the account, creating an empty one on first
// accrual. A creation race collapses into a fresh read.
func (s *Service) getOrCreateAccount(ctx context.Context, userID string) (*model.Account, error) {
	acct, err := s.ledger.GetAccount(ctx, userID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, err
	}

	now := s.now()
	fresh := &model.Account{
		UserID:    userID,
		Tier:      tier.Bronze,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.ledger.CreateAccount(ctx, fresh, nil); err != nil {
		if errors.Is(err, repository.ErrAccountExists) {
			return s.ledger.GetAccount(ctx, userID)
		}
		return nil, err
	}
	return fresh, nil
}
