// Package quote holds the quote aggregate: line items, their derived pricing triple,
// and the quote-level totals under a global discount.
package quote

import (
	"github.com/shopspring/decimal"

	"model-quote/core/money"
	"model-quote/core/pricing"
	qerrors "model-quote/internal/errors"
)

// DefaultRegion is used when an item names no region
const DefaultRegion = "cn-beijing"

// ItemPricing is the derived pricing of one line.
// It is only ever produced by ApplyItem.
type ItemPricing struct {
	UnitPrice      decimal.Decimal     `json:"unit_price"`
	OriginalPrice  decimal.Decimal     `json:"original_price"`
	DiscountRate   decimal.Decimal     `json:"discount_rate"`
	FinalPrice     decimal.Decimal     `json:"final_price"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	Quantity       int                 `json:"quantity"`
	DurationMonths int                 `json:"duration_months"`
	BillingUnit    pricing.BillingUnit `json:"billing_unit"`
}

// ApplyItem turns an engine result into the item triple.
//
//	original = extended cost
//	final    = round(original × discount)
//	subtotal = round(final × quantity × duration)
//
// Zero quantity or duration means unspecified and defaults to 1.
func ApplyItem(result *pricing.PriceResult, discountRate decimal.Decimal, quantity, durationMonths int) (ItemPricing, error) {
	if result == nil {
		return ItemPricing{}, qerrors.Validation("price_result", "missing")
	}
	if err := money.CheckRate("discount_rate", discountRate); err != nil {
		return ItemPricing{}, err
	}
	if quantity == 0 {
		quantity = 1
	}
	if durationMonths == 0 {
		durationMonths = 1
	}
	if quantity < 0 {
		return ItemPricing{}, qerrors.Validation("quantity", "must be a positive integer, got %d", quantity)
	}
	if durationMonths < 0 {
		return ItemPricing{}, qerrors.Validation("duration_months", "must be a positive integer, got %d", durationMonths)
	}

	original := money.RoundAmount(result.ExtendedCost)
	final := money.RoundAmount(original.Mul(discountRate))
	subtotal := money.RoundAmount(final.Mul(decimal.NewFromInt(int64(quantity))).Mul(decimal.NewFromInt(int64(durationMonths))))
	if err := money.CheckAmountFits("subtotal", subtotal); err != nil {
		return ItemPricing{}, err
	}

	return ItemPricing{
		UnitPrice:      result.UnitCost,
		OriginalPrice:  original,
		DiscountRate:   discountRate,
		FinalPrice:     final,
		Subtotal:       subtotal,
		Quantity:       quantity,
		DurationMonths: durationMonths,
		BillingUnit:    result.BillingUnit,
	}, nil
}

// Item is one line of a quote
type Item struct {
	ID        string `json:"id"`
	QuoteID   string `json:"quote_id"`
	SortOrder int    `json:"sort_order"`

	ProductCode   string `json:"product_code"`
	ProductName   string `json:"product_name"`
	Region        string `json:"region"`
	RegionName    string `json:"region_name,omitempty"`
	Modality      string `json:"modality,omitempty"`
	Capability    string `json:"capability,omitempty"`
	ModelType     string `json:"model_type,omitempty"`
	ContextSpec   string `json:"context_spec,omitempty"`
	InferenceMode string `json:"inference_mode,omitempty"`

	InputTokens  *int64 `json:"input_tokens,omitempty"`
	OutputTokens *int64 `json:"output_tokens,omitempty"`
	Units        *int64 `json:"units,omitempty"`

	ThinkingModeRatio decimal.Decimal `json:"thinking_mode_ratio"`
	BatchCallRatio    decimal.Decimal `json:"batch_call_ratio"`

	Pricing ItemPricing `json:"pricing"`
}

// SetPricing is the only write path for the derived fields
func (it *Item) SetPricing(p ItemPricing) {
	it.Pricing = p
}

// Clone returns a deep copy
func (it *Item) Clone() *Item {
	c := *it
	c.InputTokens = cloneInt64(it.InputTokens)
	c.OutputTokens = cloneInt64(it.OutputTokens)
	c.Units = cloneInt64(it.Units)
	return &c
}

// CheckInvariants re-derives the final price and subtotal
func (it *Item) CheckInvariants() error {
	p := it.Pricing
	if p.OriginalPrice.IsNegative() {
		return qerrors.Inconsistency("item %s original price %s is negative", it.ID, p.OriginalPrice.String())
	}
	if err := money.CheckRate("discount_rate", p.DiscountRate); err != nil {
		return qerrors.Inconsistency("item %s: %v", it.ID, err)
	}
	if p.Quantity < 1 || p.DurationMonths < 1 {
		return qerrors.Inconsistency("item %s quantity %d and duration %d must be positive", it.ID, p.Quantity, p.DurationMonths)
	}
	final := money.RoundAmount(p.OriginalPrice.Mul(p.DiscountRate))
	if !final.Equal(p.FinalPrice) {
		return qerrors.Inconsistency("item %s final price %s, expected %s", it.ID, p.FinalPrice.String(), final.String())
	}
	subtotal := money.RoundAmount(final.Mul(decimal.NewFromInt(int64(p.Quantity))).Mul(decimal.NewFromInt(int64(p.DurationMonths))))
	if !subtotal.Equal(p.Subtotal) {
		return qerrors.Inconsistency("item %s subtotal %s, expected %s", it.ID, p.Subtotal.String(), subtotal.String())
	}
	return nil
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
