package loyalty

import "errors"

var (
	// ErrAccountNotFound: no loyalty account exists for the user.
	ErrAccountNotFound = errors.New("loyalty account not found")
	// ErrRewardNotFound: the reward id does not resolve to a catalog entry.
	ErrRewardNotFound = errors.New("reward not found")
	// ErrRewardNotActive: the reward exists but is outside its validity window.
	ErrRewardNotActive = errors.New("reward is not currently active")
	// ErrInsufficientPoints: the account balance does not cover the reward.
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrTierTooLow: the account's tier is below the reward's minimum tier.
	ErrTierTooLow = errors.New("membership tier too low for this reward")
	// ErrRedemptionLimitReached: the reward's redemption cap is exhausted.
	ErrRedemptionLimitReached = errors.New("reward redemption limit reached")
	// ErrConcurrencyConflict: an optimistic write kept losing to concurrent
	// updates; the operation is safe to retry.
	ErrConcurrencyConflict = errors.New("too many concurrent updates, retry")
	// ErrCodeGenerationExhausted: even the deterministic fallback code
	// collided. Terminal, and effectively unreachable.
	ErrCodeGenerationExhausted = errors.New("unable to generate a unique code")
	// ErrInvalidRequest: a required field is missing or out of range.
	ErrInvalidRequest = errors.New("invalid request")
)
