package loyalty

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"voyalty/internal/model"
	"voyalty/internal/repository"
	"voyalty/internal/tier"
)

// InitializeAccount creates the loyalty account for a newly registered
// user, assigns its referral code, and applies the one-time welcome bonus.
// When referrerCode resolves to an existing account the new account is
// linked to it and the referrer receives the referral bonus; an unknown
// code is ignored (best-effort referral policy). Repeated calls for the
// same user return the existing account unchanged.
func (s *Service) InitializeAccount(ctx context.Context, req model.InitializeRequest) (*model.InitializeResult, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}

	if existing, err := s.ledger.GetAccount(ctx, req.UserID); err == nil {
		return &model.InitializeResult{ReferralCode: existing.ReferralCode}, nil
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, err
	}

	var referrer *model.Account
	if req.ReferralCode != "" {
		ref, err := s.ledger.GetAccountByReferralCode(ctx, req.ReferralCode)
		switch {
		case err == nil && ref.UserID != req.UserID:
			referrer = ref
		case err != nil && !errors.Is(err, repository.ErrAccountNotFound):
			return nil, err
		}
		// Unresolvable referrer codes are silently ignored.
	}

	acct, welcome, err := s.createAccountWithCode(ctx, req.UserID, referrer)
	if err != nil {
		if errors.Is(err, repository.ErrAccountExists) {
			// Lost a concurrent initialization; the winner owns the bonus.
			existing, gerr := s.ledger.GetAccount(ctx, req.UserID)
			if gerr != nil {
				return nil, gerr
			}
			return &model.InitializeResult{ReferralCode: existing.ReferralCode}, nil
		}
		return nil, err
	}
	if welcome != nil {
		s.publish(welcome, "")
	}

	if referrer != nil && s.params.ReferralBonus > 0 {
		desc := fmt.Sprintf("Referral bonus for inviting %s", req.UserID)
		if err := s.awardBonus(ctx, referrer.UserID, s.params.ReferralBonus, desc); err != nil {
			return nil, err
		}
	}

	return &model.InitializeResult{
		ReferralCode:        acct.ReferralCode,
		WelcomeBonusApplied: welcome != nil,
	}, nil
}

// createAccountWithCode inserts the account with a freshly generated unique
// referral code, regenerating on the rare insert-time code race. The welcome
// bonus is written as the account's opening transaction in the same ledger
// operation, so no account can exist without its bonus.
func (s *Service) createAccountWithCode(ctx context.Context, userID string, referrer *model.Account) (*model.Account, *model.Transaction, error) {
	prefix := referralPrefix(userID)
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := generateUniqueCode(ctx, prefix, s.ledger.ReferralCodeExists)
		if err != nil {
			return nil, nil, err
		}

		now := s.now()
		acct := &model.Account{
			UserID:       userID,
			Tier:         tier.Bronze,
			ReferralCode: code,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if referrer != nil {
			acct.ReferredBy = referrer.UserID
		}

		var welcome *model.Transaction
		if s.params.WelcomeBonus > 0 {
			welcome = &model.Transaction{
				ID:            uuid.NewString(),
				AccountID:     userID,
				Kind:          model.KindBonus,
				Points:        s.params.WelcomeBonus,
				BalanceBefore: 0,
				BalanceAfter:  s.params.WelcomeBonus,
				Description:   "Welcome bonus",
				CreatedAt:     now,
			}
			acct.Balance = s.params.WelcomeBonus
		}

		err = s.ledger.CreateAccount(ctx, acct, welcome)
		if err == nil {
			return acct, welcome, nil
		}
		if errors.Is(err, repository.ErrDuplicateCode) {
			continue
		}
		return nil, nil, err
	}
	return nil, nil, ErrCodeGenerationExhausted
}

// awardBonus appends a one-time bonus transaction under the usual
// optimistic read-modify-write discipline.
func (s *Service) awardBonus(ctx context.Context, userID string, points int64, description string) error {
	return s.withConflictRetry(ctx, func(ctx context.Context) error {
		acct, err := s.ledger.GetAccount(ctx, userID)
		if err != nil {
			return err
		}

		txn := &model.Transaction{
			ID:            uuid.NewString(),
			AccountID:     acct.UserID,
			Kind:          model.KindBonus,
			Points:        points,
			BalanceBefore: acct.Balance,
			BalanceAfter:  acct.Balance + points,
			Description:   description,
			CreatedAt:     s.now(),
		}

		updated := *acct
		updated.Balance += points
		if err := s.ledger.ApplyTransaction(ctx, &updated, txn); err != nil {
			return err
		}
		s.publish(txn, "")
		return nil
	})
}
