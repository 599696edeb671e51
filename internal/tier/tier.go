// Package tier maps lifetime spend to a membership level. The mapping is a
// pure function over a fixed ordered threshold table; because lifetime spend
// never decreases, a given account's level never regresses.
package tier

// Level is a membership tier. Levels are ordered: Bronze < Silver < Gold <
// Platinum.
type Level int

const (
	Bronze Level = iota
	Silver
	Gold
	Platinum
)

func (l Level) String() string {
	switch l {
	case Silver:
		return "silver"
	case Gold:
		return "gold"
	case Platinum:
		return "platinum"
	default:
		return "bronze"
	}
}

// Parse returns the level named by s, defaulting to Bronze for unknown input.
func Parse(s string) Level {
	switch s {
	case "silver":
		return Silver
	case "gold":
		return Gold
	case "platinum":
		return Platinum
	default:
		return Bronze
	}
}

// MarshalJSON encodes the level as its lowercase name.
func (l Level) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// UnmarshalJSON decodes a lowercase level name, defaulting to Bronze.
func (l *Level) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	*l = Parse(s)
	return nil
}

// Benefits are the perks attached to a level.
type Benefits struct {
	// Multiplier scales earned points; always >= 1.0.
	Multiplier       float64 `json:"multiplier"`
	PrioritySupport  bool    `json:"priority_support"`
	FreeUpgrades     bool    `json:"free_upgrades"`
	FlexCancellation bool    `json:"flex_cancellation"`
}

type threshold struct {
	level         Level
	minSpendCents int64
	benefits      Benefits
}

// Thresholds are ordered ascending; For picks the highest entry whose
// minimum does not exceed the given spend.
var thresholds = []threshold{
	{Bronze, 0, Benefits{Multiplier: 1.0}},
	{Silver, 200_000, Benefits{Multiplier: 1.25, PrioritySupport: true}},
	{Gold, 500_000, Benefits{Multiplier: 1.5, PrioritySupport: true, FreeUpgrades: true}},
	{Platinum, 1_000_000, Benefits{Multiplier: 2.0, PrioritySupport: true, FreeUpgrades: true, FlexCancellation: true}},
}

// For returns the level for a lifetime spend expressed in cents. Negative
// input maps to Bronze.
func For(lifetimeSpendCents int64) Level {
	level := Bronze
	for _, t := range thresholds {
		if lifetimeSpendCents >= t.minSpendCents {
			level = t.level
		}
	}
	return level
}

// BenefitsFor returns the benefits for a level. Unknown levels get the
// Bronze benefits.
func BenefitsFor(l Level) Benefits {
	for _, t := range thresholds {
		if t.level == l {
			return t.benefits
		}
	}
	return thresholds[0].benefits
}

// MinSpendFor returns the spend threshold, in cents, at which the level
// starts.
func MinSpendFor(l Level) int64 {
	for _, t := range thresholds {
		if t.level == l {
			return t.minSpendCents
		}
	}
	return 0
}

// Next returns the level above l and true, or l and false for the top level.
func Next(l Level) (Level, bool) {
	if l >= Platinum {
		return l, false
	}
	return l + 1, true
}
