package quote

import (
	"time"

	"github.com/shopspring/decimal"
)

// View is a fully resolved, read-only rendering input for export collaborators.
// Every monetary field is already derived; renderers never re-price.
type View struct {
	QuoteNo         string     `json:"quote_no"`
	Status          Status     `json:"status"`
	Version         int        `json:"version"`
	CustomerName    string     `json:"customer_name"`
	ProjectName     string     `json:"project_name,omitempty"`
	SalesName       string     `json:"sales_name,omitempty"`
	CustomerContact string     `json:"customer_contact,omitempty"`
	CustomerEmail   string     `json:"customer_email,omitempty"`
	Remarks         string     `json:"remarks,omitempty"`
	Terms           string     `json:"terms,omitempty"`
	Currency        string     `json:"currency"`
	CreatedBy       string     `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"`

	GlobalDiscountRate   decimal.Decimal `json:"global_discount_rate"`
	GlobalDiscountRemark string          `json:"global_discount_remark,omitempty"`
	TotalOriginalAmount  decimal.Decimal `json:"total_original_amount"`
	TotalAmount          decimal.Decimal `json:"total_amount"`

	Lines []ViewLine `json:"lines"`
}

// ViewLine is one resolved item
type ViewLine struct {
	Position      int             `json:"position"`
	ItemID        string          `json:"item_id"`
	ProductCode   string          `json:"product_code"`
	ProductName   string          `json:"product_name"`
	Region        string          `json:"region"`
	RegionName    string          `json:"region_name,omitempty"`
	Modality      string          `json:"modality,omitempty"`
	InferenceMode string          `json:"inference_mode,omitempty"`
	InputTokens   *int64          `json:"input_tokens,omitempty"`
	OutputTokens  *int64          `json:"output_tokens,omitempty"`
	BillingUnit   string          `json:"billing_unit"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	DiscountRate  decimal.Decimal `json:"discount_rate"`
	FinalPrice    decimal.Decimal `json:"final_price"`
	Quantity      int             `json:"quantity"`
	Duration      int             `json:"duration_months"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}

// View resolves the quote into an export view ordered by sort order
func (s *Sheet) View() View {
	c := s.DeepCopy()
	v := View{
		QuoteNo:              c.QuoteNo,
		Status:               c.Status,
		Version:              c.Version,
		CustomerName:         c.CustomerName,
		ProjectName:          c.ProjectName,
		SalesName:            c.SalesName,
		CustomerContact:      c.CustomerContact,
		CustomerEmail:        c.CustomerEmail,
		Remarks:              c.Remarks,
		Terms:                c.Terms,
		Currency:             c.Currency,
		CreatedBy:            c.CreatedBy,
		CreatedAt:            c.CreatedAt,
		ValidUntil:           c.ValidUntil,
		GlobalDiscountRate:   c.GlobalDiscountRate,
		GlobalDiscountRemark: c.GlobalDiscountRemark,
		TotalOriginalAmount:  c.TotalOriginalAmount,
		TotalAmount:          c.TotalAmount,
		Lines:                make([]ViewLine, 0, len(c.Items)),
	}
	for i, item := range c.SortedItems() {
		v.Lines = append(v.Lines, ViewLine{
			Position:      i + 1,
			ItemID:        item.ID,
			ProductCode:   item.ProductCode,
			ProductName:   item.ProductName,
			Region:        item.Region,
			RegionName:    item.RegionName,
			Modality:      item.Modality,
			InferenceMode: item.InferenceMode,
			InputTokens:   item.InputTokens,
			OutputTokens:  item.OutputTokens,
			BillingUnit:   string(item.Pricing.BillingUnit),
			UnitPrice:     item.Pricing.UnitPrice,
			OriginalPrice: item.Pricing.OriginalPrice,
			DiscountRate:  item.Pricing.DiscountRate,
			FinalPrice:    item.Pricing.FinalPrice,
			Quantity:      item.Pricing.Quantity,
			Duration:      item.Pricing.DurationMonths,
			Subtotal:      item.Pricing.Subtotal,
		})
	}
	return v
}
