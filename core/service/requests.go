package service

import (
	"time"

	"github.com/shopspring/decimal"

	"model-quote/core/pricing"
	"model-quote/core/quote"
)

// UsageRequest declares the usage of one product in one region
type UsageRequest struct {
	ProductCode string `json:"product_code"`
	Region      string `json:"region,omitempty"`

	InputTokens  *int64 `json:"input_tokens,omitempty"`
	OutputTokens *int64 `json:"output_tokens,omitempty"`
	Units        *int64 `json:"units,omitempty"`

	ThinkingModeRatio decimal.Decimal `json:"thinking_mode_ratio"`
	BatchCallRatio    decimal.Decimal `json:"batch_call_ratio"`

	Quantity       int `json:"quantity,omitempty"`
	DurationMonths int `json:"duration_months,omitempty"`

	// DiscountRate is the item discount in (0,1]; nil means no discount
	DiscountRate *decimal.Decimal `json:"discount_rate,omitempty"`
}

// ItemRequest adds a new item when ItemID is empty, otherwise replaces the item's usage
type ItemRequest struct {
	ItemID        string `json:"item_id,omitempty"`
	InferenceMode string `json:"inference_mode,omitempty"`
	UsageRequest
}

// CreateRequest opens a new draft quote
type CreateRequest struct {
	CustomerName    string     `json:"customer_name"`
	ProjectName     string     `json:"project_name,omitempty"`
	SalesName       string     `json:"sales_name,omitempty"`
	CustomerContact string     `json:"customer_contact,omitempty"`
	CustomerEmail   string     `json:"customer_email,omitempty"`
	Remarks         string     `json:"remarks,omitempty"`
	Terms           string     `json:"terms,omitempty"`
	Currency        string     `json:"currency,omitempty"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"`
	CreatedBy       string     `json:"created_by,omitempty"`
}

// PriceQuote is the answer to a stateless pricing request
type PriceQuote struct {
	ProductCode string               `json:"product_code"`
	ProductName string               `json:"product_name"`
	Region      string               `json:"region"`
	Result      *pricing.PriceResult `json:"result"`
	Item        quote.ItemPricing    `json:"item"`
}

// ItemFailure reports one rejected entry of a batch
type ItemFailure struct {
	Index       int    `json:"index"`
	ProductCode string `json:"product_code"`
	Error       string `json:"error"`
	Err         error  `json:"-"`
}

// BatchResult reports a batch add
type BatchResult struct {
	Quote  *quote.Sheet  `json:"quote"`
	Added  []string      `json:"added_item_ids"`
	Failed []ItemFailure `json:"failed_items"`
}
