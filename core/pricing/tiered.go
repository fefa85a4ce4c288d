package pricing

import (
	"github.com/shopspring/decimal"

	qerrors "model-quote/internal/errors"
)

// Tier is one volume band of a tier table.
// The whole volume is priced at the rate of the highest applicable tier.
type Tier struct {
	From  decimal.Decimal  `json:"from"`
	UpTo  *decimal.Decimal `json:"up_to,omitempty"` // nil = unbounded
	Price decimal.Decimal  `json:"price"`
}

// ValidateTiers checks that a tier table is contiguous and non-overlapping.
// Tiers must be supplied in ascending order starting at zero; nothing is reordered.
func ValidateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return nil
	}
	if !tiers[0].From.IsZero() {
		return qerrors.Configuration("tier table gap: first tier starts at %s, expected 0", tiers[0].From.String()).
			WithContext("from", tiers[0].From.String())
	}

	for i, tier := range tiers {
		if !tier.Price.IsPositive() {
			return qerrors.Configuration("tier %d price %s must be positive", i, tier.Price.String()).
				WithContext("tier", i)
		}
		last := i == len(tiers)-1
		if tier.UpTo == nil {
			if !last {
				return qerrors.Configuration("tier %d is unbounded but is not the last tier", i).
					WithContext("tier", i)
			}
			continue
		}
		if !tier.UpTo.GreaterThan(tier.From) {
			return qerrors.Configuration("tier %d bound [%s, %s) is empty", i, tier.From.String(), tier.UpTo.String()).
				WithContext("tier", i)
		}
		if last {
			continue
		}

		next := tiers[i+1].From
		switch {
		case next.LessThan(*tier.UpTo):
			return qerrors.Configuration("tier table overlap: tier %d ends at %s, tier %d starts at %s",
				i, tier.UpTo.String(), i+1, next.String()).
				WithContext("upper", tier.UpTo.String()).
				WithContext("lower", next.String())
		case next.GreaterThan(*tier.UpTo):
			return qerrors.Configuration("tier table gap: tier %d ends at %s, tier %d starts at %s",
				i, tier.UpTo.String(), i+1, next.String()).
				WithContext("upper", tier.UpTo.String()).
				WithContext("lower", next.String())
		}
	}
	return nil
}

// SelectTier returns the tier whose lower bound is the greatest bound not above volume.
// The table must already be valid.
func SelectTier(tiers []Tier, volume decimal.Decimal) (int, Tier, error) {
	selected := -1
	for i, tier := range tiers {
		if tier.From.LessThanOrEqual(volume) {
			selected = i
		}
	}
	if selected < 0 {
		return -1, Tier{}, qerrors.Configuration("no tier covers volume %s", volume.String())
	}

	tier := tiers[selected]
	if tier.UpTo != nil && volume.GreaterThanOrEqual(*tier.UpTo) {
		return -1, Tier{}, qerrors.Configuration("volume %s exceeds the last tier bound %s", volume.String(), tier.UpTo.String()).
			WithContext("upper", tier.UpTo.String())
	}
	return selected, tier, nil
}
