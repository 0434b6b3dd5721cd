package types

import "fmt"

// PriceTier selects how widely the distribution's edge network is deployed.
// Exactly three tiers exist, mapping onto CloudFront price classes.
type PriceTier string

const (
	TierEconomy  PriceTier = "economy"
	TierStandard PriceTier = "standard"
	TierGlobal   PriceTier = "global"
)

func ParsePriceTier(s string) (PriceTier, error) {
	switch PriceTier(s) {
	case TierEconomy:
		return TierEconomy, nil
	case TierStandard:
		return TierStandard, nil
	case TierGlobal:
		return TierGlobal, nil
	default:
		return "", fmt.Errorf("unknown price tier %q", s)
	}
}

// PriceClass returns the CloudFront price class name for the tier.
func (pt PriceTier) PriceClass() string {
	switch pt {
	case TierEconomy:
		return "PriceClass_100"
	case TierStandard:
		return "PriceClass_200"
	case TierGlobal:
		return "PriceClass_All"
	default:
		return "PriceClass_100"
	}
}
