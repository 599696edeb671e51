package repository

import (
	"context"
	"errors"
	"time"

	"voyalty/internal/model"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountExists        = errors.New("account already exists")
	ErrRewardNotFound       = errors.New("reward not found")
	ErrVersionConflict      = errors.New("conditional update lost to a concurrent write")
	ErrRedemptionCapReached = errors.New("reward redemption cap reached")
	ErrDuplicateCode        = errors.New("code already exists")
)

// Ledger is the durable store for accounts, transactions, the reward
// catalog and redemption records. Beyond plain reads it exposes two
// conditional primitives: ApplyTransaction (version-guarded account update
// plus ledger append) and Redeem (guarded counter increment, guarded
// balance decrement, ledger append and redemption insert, all-or-nothing).
type Ledger interface {
	GetAccount(ctx context.Context, userID string) (*model.Account, error)
	GetAccountByReferralCode(ctx context.Context, code string) (*model.Account, error)
	// CreateAccount inserts a fresh account, together with the optional
	// opening transaction backing a nonzero starting balance; both land or
	// neither does. ErrAccountExists when the userID is already present.
	CreateAccount(ctx context.Context, acct *model.Account, opening *model.Transaction) error
	// ApplyTransaction persists the account's new balance, lifetime spend,
	// tier and referral fields, and appends txn, atomically. The write is
	// conditioned on acct.Version matching the stored version;
	// ErrVersionConflict otherwise. On success acct.Version is advanced.
	ApplyTransaction(ctx context.Context, acct *model.Account, txn *model.Transaction) error
	// ListTransactions returns up to limit entries, most recent first.
	ListTransactions(ctx context.Context, accountID string, limit int) ([]model.Transaction, error)

	GetReward(ctx context.Context, rewardID string) (*model.RewardCatalogEntry, error)
	ListRewards(ctx context.Context) ([]model.RewardCatalogEntry, error)
	// PutReward creates or replaces a catalog entry. The catalog is
	// authored externally; this exists for seeding and tooling.
	PutReward(ctx context.Context, reward *model.RewardCatalogEntry) error

	// Redeem executes the three redemption writes as one transaction:
	// increment the reward counter guarded by its cap, decrement the
	// account balance guarded by acct.Version and sufficiency, then append
	// txn and insert red. Returns ErrRedemptionCapReached when the guarded
	// increment finds the cap exhausted, ErrVersionConflict when the
	// account changed since it was read. Nothing is persisted on failure.
	Redeem(ctx context.Context, acct *model.Account, txn *model.Transaction, red *model.Redemption) error
	ListRedemptions(ctx context.Context, accountID string) ([]model.Redemption, error)
	// ExpireRedemptions flips confirmed redemptions past their expiry to
	// expired, returning how many were updated.
	ExpireRedemptions(ctx context.Context, now time.Time) (int64, error)

	ReferralCodeExists(ctx context.Context, code string) (bool, error)
	RedemptionCodeExists(ctx context.Context, code string) (bool, error)
}
