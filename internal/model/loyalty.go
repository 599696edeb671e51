package model

import (
	"time"

	"voyalty/internal/tier"
)

// Account is the per-user loyalty record. Accounts are created on first
// accrual or explicit initialization and are never deleted.
type Account struct {
	UserID             string     `json:"user_id"`
	Balance            int64      `json:"balance"`
	LifetimeSpendCents int64      `json:"lifetime_spend_cents"`
	Tier               tier.Level `json:"tier"`
	ReferralCode       string     `json:"referral_code"`
	ReferredBy         string     `json:"referred_by,omitempty"`
	// Version is the optimistic concurrency counter. It is incremented by
	// the repository on every successful conditional write.
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TransactionKind classifies a ledger entry.
type TransactionKind string

const (
	KindEarned   TransactionKind = "earned"
	KindRedeemed TransactionKind = "redeemed"
	KindBonus    TransactionKind = "bonus"
)

// Transaction is a single immutable ledger entry. Points are signed:
// positive for earned/bonus, negative for redeemed. BalanceAfter must
// always equal BalanceBefore + Points.
type Transaction struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"account_id"`
	Kind          TransactionKind `json:"kind"`
	Points        int64           `json:"points"`
	BalanceBefore int64           `json:"balance_before"`
	BalanceAfter  int64           `json:"balance_after"`
	Description   string          `json:"description"`
	ReservationID string          `json:"reservation_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// RewardCatalogEntry defines what can be redeemed. The catalog is authored
// externally; only CurrentRedemptions is mutated here.
type RewardCatalogEntry struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	PointsRequired int64      `json:"points_required"`
	MinTier        tier.Level `json:"min_tier"`
	// MaxRedemptions of zero means unlimited.
	MaxRedemptions     int64      `json:"max_redemptions,omitempty"`
	CurrentRedemptions int64      `json:"current_redemptions"`
	ValidFrom          *time.Time `json:"valid_from,omitempty"`
	ValidUntil         *time.Time `json:"valid_until,omitempty"`
}

// ActiveAt reports whether the reward's validity window covers the instant.
func (r *RewardCatalogEntry) ActiveAt(now time.Time) bool {
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && now.After(*r.ValidUntil) {
		return false
	}
	return true
}

// SoldOut reports whether the redemption cap has been reached.
func (r *RewardCatalogEntry) SoldOut() bool {
	return r.MaxRedemptions > 0 && r.CurrentRedemptions >= r.MaxRedemptions
}

// RedemptionStatus is the lifecycle state of a redemption.
type RedemptionStatus string

const (
	RedemptionConfirmed RedemptionStatus = "confirmed"
	RedemptionExpired   RedemptionStatus = "expired"
	RedemptionCancelled RedemptionStatus = "cancelled"
)

// Redemption is a confirmed exchange of points for a catalog reward.
type Redemption struct {
	ID         string           `json:"id"`
	AccountID  string           `json:"account_id"`
	RewardID   string           `json:"reward_id"`
	PointsUsed int64            `json:"points_used"`
	Code       string           `json:"code"`
	Status     RedemptionStatus `json:"status"`
	ExpiresAt  time.Time        `json:"expires_at"`
	CreatedAt  time.Time        `json:"created_at"`
}

// ActiveAt reports whether the redemption is still usable at the instant.
// Expiry is observed at read time; a stored status of "confirmed" past its
// ExpiresAt counts as expired.
func (r *Redemption) ActiveAt(now time.Time) bool {
	return r.Status == RedemptionConfirmed && now.Before(r.ExpiresAt)
}

// AccrueRequest carries a booking-completed fact into the accrual engine.
type AccrueRequest struct {
	UserID        string `json:"user_id"`
	ReservationID string `json:"reservation_id"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency,omitempty"`
}

// AccrualResult reports the outcome of a single accrual.
type AccrualResult struct {
	PointsAwarded int64      `json:"points_awarded"`
	NewBalance    int64      `json:"new_balance"`
	Tier          tier.Level `json:"tier"`
}

// InitializeRequest carries an account-registered fact.
type InitializeRequest struct {
	UserID       string `json:"user_id"`
	ReferralCode string `json:"referral_code,omitempty"`
}

// InitializeResult reports the account's referral code and whether the
// welcome bonus was applied by this call.
type InitializeResult struct {
	ReferralCode        string `json:"referral_code"`
	WelcomeBonusApplied bool   `json:"welcome_bonus_applied"`
}

// RedeemRequest asks to exchange points for a reward.
type RedeemRequest struct {
	UserID   string `json:"user_id"`
	RewardID string `json:"reward_id"`
}

// RedemptionResult is returned on a successful redemption.
type RedemptionResult struct {
	RedemptionCode string    `json:"redemption_code"`
	NewBalance     int64     `json:"new_balance"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// TierProgress describes how far an account is between its current tier's
// threshold and the next one. Percent saturates at 100 for the top tier.
type TierProgress struct {
	Current       tier.Level `json:"current"`
	Next          tier.Level `json:"next,omitempty"`
	Percent       int        `json:"percent"`
	NextThreshold int64      `json:"next_threshold_cents,omitempty"`
}

// LoyaltyView is the composed read model served to callers.
type LoyaltyView struct {
	Account            Account       `json:"account"`
	RecentTransactions []Transaction `json:"recent_transactions"`
	ActiveRedemptions  []Redemption  `json:"active_redemptions"`
	TierProgress       TierProgress  `json:"tier_progress"`
}
