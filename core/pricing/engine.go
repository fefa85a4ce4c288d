package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"model-quote/core/money"
	qerrors "model-quote/internal/errors"
)

// UsageContext is the engine input for one calculation
type UsageContext struct {
	// BasePrice is the catalog unit price, > 0
	BasePrice decimal.Decimal `json:"base_price"`

	// OutputPrice prices output tokens separately when set
	OutputPrice *decimal.Decimal `json:"output_price,omitempty"`

	// BillingUnit is what one unit of price represents
	BillingUnit BillingUnit `json:"billing_unit"`

	InputTokens  *int64 `json:"input_tokens,omitempty"`
	OutputTokens *int64 `json:"output_tokens,omitempty"`

	// Units is the volume for non-token units (images, seconds, calls, months); nil = 1
	Units *int64 `json:"units,omitempty"`

	// ThinkingModeRatio is the fraction of tokens billed under the reasoning multiplier
	ThinkingModeRatio decimal.Decimal `json:"thinking_mode_ratio"`

	// BatchCallRatio is the fraction of calls billed at the batch multiplier
	BatchCallRatio decimal.Decimal `json:"batch_call_ratio"`

	// Multipliers override the engine defaults when non-zero
	ThinkingMultiplier decimal.Decimal `json:"thinking_multiplier,omitempty"`
	BatchMultiplier    decimal.Decimal `json:"batch_multiplier,omitempty"`

	// Quantity and DurationMonths are applied by the item calculator; 0 = 1
	Quantity       int `json:"quantity,omitempty"`
	DurationMonths int `json:"duration_months,omitempty"`

	// Tiers selects tiered pricing when present
	Tiers []Tier `json:"tiers,omitempty"`
}

// Breakdown records which multipliers were applied
type Breakdown struct {
	Scheme              Scheme          `json:"scheme"`
	BasePrice           decimal.Decimal `json:"base_price"`
	TierIndex           int             `json:"tier_index"`
	TierPrice           decimal.Decimal `json:"tier_price"`
	ThinkingRatio       decimal.Decimal `json:"thinking_ratio"`
	ThinkingMultiplier  decimal.Decimal `json:"thinking_multiplier"`
	ThinkingFactor      decimal.Decimal `json:"thinking_factor"`
	BatchRatio          decimal.Decimal `json:"batch_ratio"`
	BatchMultiplier     decimal.Decimal `json:"batch_multiplier"`
	BatchFactor         decimal.Decimal `json:"batch_factor"`
	EffectiveMultiplier decimal.Decimal `json:"effective_multiplier"`
	Formula             string          `json:"formula"`
}

// PriceResult is the engine output
type PriceResult struct {
	// UnitCost is the cost per billing unit after mode/batch multipliers, before item discount
	UnitCost decimal.Decimal `json:"unit_cost"`

	// OutputUnitCost is set when output tokens are priced separately
	OutputUnitCost *decimal.Decimal `json:"output_unit_cost,omitempty"`

	// ExtendedCost is UnitCost times the volume
	ExtendedCost decimal.Decimal `json:"extended_cost"`

	// Volume is expressed in billing units
	Volume decimal.Decimal `json:"volume"`

	BillingUnit BillingUnit `json:"billing_unit"`
	Breakdown   Breakdown   `json:"breakdown"`
}

// Defaults holds the engine-wide multipliers
type Defaults struct {
	ThinkingMultiplier decimal.Decimal
	BatchMultiplier    decimal.Decimal
	Concurrency        int
}

// Engine computes prices. It holds immutable defaults only and is safe for concurrent use.
type Engine struct {
	defaults Defaults
}

// NewEngine creates an engine; zero values fall back to 1.5 thinking, 0.5 batch, 8 workers
func NewEngine(d Defaults) *Engine {
	if d.ThinkingMultiplier.IsZero() {
		d.ThinkingMultiplier = decimal.RequireFromString("1.5")
	}
	if d.BatchMultiplier.IsZero() {
		d.BatchMultiplier = decimal.RequireFromString("0.5")
	}
	if d.Concurrency <= 0 {
		d.Concurrency = 8
	}
	return &Engine{defaults: d}
}

// Calculate prices one usage context. It is a pure function of its input.
func (e *Engine) Calculate(usage UsageContext) (*PriceResult, error) {
	if err := validate(usage); err != nil {
		return nil, err
	}
	unit, err := ParseBillingUnit(string(usage.BillingUnit))
	if err != nil {
		return nil, err
	}

	thinkingMult, err := e.multiplier("thinking_multiplier", usage.ThinkingMultiplier, e.defaults.ThinkingMultiplier)
	if err != nil {
		return nil, err
	}
	batchMult, err := e.multiplier("batch_multiplier", usage.BatchMultiplier, e.defaults.BatchMultiplier)
	if err != nil {
		return nil, err
	}

	inVolume, outVolume := volumes(unit, usage)
	total := inVolume.Add(outVolume)

	bd := Breakdown{
		Scheme:             SchemeFlat,
		BasePrice:          usage.BasePrice,
		TierIndex:          -1,
		TierPrice:          usage.BasePrice,
		ThinkingRatio:      usage.ThinkingModeRatio,
		ThinkingMultiplier: thinkingMult,
		BatchRatio:         usage.BatchCallRatio,
		BatchMultiplier:    batchMult,
	}

	price := usage.BasePrice
	if len(usage.Tiers) > 0 {
		if err := ValidateTiers(usage.Tiers); err != nil {
			return nil, err
		}
		idx, tier, err := SelectTier(usage.Tiers, total)
		if err != nil {
			return nil, err
		}
		price = tier.Price
		bd.Scheme = SchemeTiered
		bd.TierIndex = idx
		bd.TierPrice = tier.Price
	} else if usage.ThinkingModeRatio.IsPositive() || usage.BatchCallRatio.IsPositive() {
		bd.Scheme = SchemeModeBlended
	}

	// [(1 - t) + t*m_t] * [(1 - b) + b*m_b]
	bd.ThinkingFactor = money.One.Sub(usage.ThinkingModeRatio).Add(usage.ThinkingModeRatio.Mul(thinkingMult))
	bd.BatchFactor = money.One.Sub(usage.BatchCallRatio).Add(usage.BatchCallRatio.Mul(batchMult))
	bd.EffectiveMultiplier = bd.ThinkingFactor.Mul(bd.BatchFactor)

	unitCost := price.Mul(bd.EffectiveMultiplier)
	result := &PriceResult{
		UnitCost:    money.RoundAmount(unitCost),
		BillingUnit: unit,
		Volume:      total,
	}

	extended := unitCost.Mul(inVolume)
	if usage.OutputPrice != nil {
		outUnit := usage.OutputPrice.Mul(bd.EffectiveMultiplier)
		rounded := money.RoundAmount(outUnit)
		result.OutputUnitCost = &rounded
		extended = extended.Add(outUnit.Mul(outVolume))
		bd.Formula = fmt.Sprintf("%s × %s × %s + %s × %s × %s %s",
			price.String(), bd.EffectiveMultiplier.String(), inVolume.String(),
			usage.OutputPrice.String(), bd.EffectiveMultiplier.String(), outVolume.String(), unit.Measure())
	} else {
		bd.Formula = fmt.Sprintf("%s × %s × %s %s",
			price.String(), bd.EffectiveMultiplier.String(), inVolume.String(), unit.Measure())
	}

	result.ExtendedCost = money.RoundAmount(extended)
	if err := money.CheckAmountFits("extended_cost", result.ExtendedCost); err != nil {
		return nil, err
	}
	result.Breakdown = bd
	return result, nil
}

// CalculateBatch prices many contexts in parallel. Results keep input order;
// the first failure aborts the batch.
func (e *Engine) CalculateBatch(ctx context.Context, usages []UsageContext) ([]*PriceResult, error) {
	results := make([]*PriceResult, len(usages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.defaults.Concurrency)

	for i := range usages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := e.Calculate(usages[i])
			if err != nil {
				if qe, ok := qerrors.As(err); ok {
					qe.WithContext("index", i)
				}
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// CalculateEach prices many contexts in parallel and reports failures per index
func (e *Engine) CalculateEach(ctx context.Context, usages []UsageContext) ([]*PriceResult, []error) {
	results := make([]*PriceResult, len(usages))
	errs := make([]error, len(usages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.defaults.Concurrency)

	for i := range usages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			results[i], errs[i] = e.Calculate(usages[i])
			return nil
		})
	}

	_ = g.Wait()
	return results, errs
}

func (e *Engine) multiplier(field string, override, fallback decimal.Decimal) (decimal.Decimal, error) {
	if override.IsZero() {
		return fallback, nil
	}
	if override.IsNegative() {
		return decimal.Zero, qerrors.Validation(field, "multiplier %s must be positive", override.String())
	}
	return override, nil
}

func validate(usage UsageContext) error {
	if !usage.BasePrice.IsPositive() {
		return qerrors.Validation("base_price", "must be positive, got %s", usage.BasePrice.String())
	}
	if err := money.CheckAmountFits("base_price", usage.BasePrice); err != nil {
		return err
	}
	if usage.OutputPrice != nil && !usage.OutputPrice.IsPositive() {
		return qerrors.Validation("output_price", "must be positive, got %s", usage.OutputPrice.String())
	}
	if err := money.CheckRatio("thinking_mode_ratio", usage.ThinkingModeRatio); err != nil {
		return err
	}
	if err := money.CheckRatio("batch_call_ratio", usage.BatchCallRatio); err != nil {
		return err
	}
	counts := []struct {
		field string
		value *int64
	}{
		{"input_tokens", usage.InputTokens},
		{"output_tokens", usage.OutputTokens},
		{"units", usage.Units},
	}
	for _, c := range counts {
		if c.value != nil && *c.value < 0 {
			return qerrors.Validation(c.field, "must be non-negative, got %d", *c.value)
		}
	}
	if usage.Quantity < 0 {
		return qerrors.Validation("quantity", "must be positive, got %d", usage.Quantity)
	}
	if usage.DurationMonths < 0 {
		return qerrors.Validation("duration_months", "must be positive, got %d", usage.DurationMonths)
	}
	return nil
}

// volumes returns the input and output volumes in billing units.
// Without a separate output price all volume is reported as input.
func volumes(unit BillingUnit, usage UsageContext) (decimal.Decimal, decimal.Decimal) {
	if !unit.IsTokenMetered() {
		units := int64(1)
		if usage.Units != nil {
			units = *usage.Units
		}
		return decimal.NewFromInt(units), decimal.Zero
	}

	// counts are summed as decimals; two large int64 counts would overflow
	in, out := decimal.Zero, decimal.Zero
	if usage.InputTokens != nil {
		in = decimal.NewFromInt(*usage.InputTokens)
	}
	if usage.OutputTokens != nil {
		out = decimal.NewFromInt(*usage.OutputTokens)
	}
	if usage.OutputPrice == nil {
		return unit.tokenVolume(in.Add(out)), decimal.Zero
	}
	return unit.tokenVolume(in), unit.tokenVolume(out)
}
