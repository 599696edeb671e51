package loyalty

import "time"

// Params are the tunable knobs of the loyalty program.
type Params struct {
	// PointsPerUnit is how many points one whole currency unit earns
	// before the tier multiplier.
	PointsPerUnit int64
	// WelcomeBonus is granted once, on account initialization.
	WelcomeBonus int64
	// ReferralBonus is granted to the referrer when a referred account
	// registers.
	ReferralBonus int64
	// RedemptionTTL is how long a redemption code stays usable.
	RedemptionTTL time.Duration
	// HistoryLimit bounds the transaction page in the loyalty view.
	HistoryLimit int
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		PointsPerUnit: 1,
		WelcomeBonus:  100,
		ReferralBonus: 250,
		RedemptionTTL: 30 * 24 * time.Hour,
		HistoryLimit:  20,
	}
}
