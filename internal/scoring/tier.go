package scoring

import "fmt"

// Tier is a discrete relationship-health label.
type Tier string

const (
	TierRooted  Tier = "rooted"
	TierGrowing Tier = "growing"
	TierDormant Tier = "dormant"
	TierFrayed  Tier = "frayed"
)

// Tiers lists every tier from strongest to weakest.
var Tiers = []Tier{TierRooted, TierGrowing, TierDormant, TierFrayed}

// activeFrequency separates actively maintained relationships
// (two or more interactions a month) from sparse ones.
const activeFrequency = 0.5

// ClassifyTier maps a composite score and frequency signal to a tier.
// Active relationships need a higher score to be rooted; sparse ones top
// out at growing.
func ClassifyTier(composite, frequency float64) Tier {
	if frequency > activeFrequency {
		switch {
		case composite >= 0.8:
			return TierRooted
		case composite >= 0.6:
			return TierGrowing
		default:
			return TierDormant
		}
	}
	switch {
	case composite >= 0.7:
		return TierGrowing
	case composite >= 0.4:
		return TierDormant
	default:
		return TierFrayed
	}
}

// Rank orders tiers: rooted 3, growing 2, dormant 1, frayed 0, unknown -1.
func (t Tier) Rank() int {
	switch t {
	case TierRooted:
		return 3
	case TierGrowing:
		return 2
	case TierDormant:
		return 1
	case TierFrayed:
		return 0
	}
	return -1
}

// ParseTier validates a tier name.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if t.Rank() < 0 {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}
