package output

import (
	"encoding/json"
	"io"

	"model-quote/adapters/storage"
	"model-quote/core/catalog"
	"model-quote/core/quote"
	"model-quote/core/service"
	"model-quote/core/version"
)

type jsonFormatter struct{}

func (jsonFormatter) Format() Format { return FormatJSON }

func encode(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (jsonFormatter) Quote(w io.Writer, v quote.View) error {
	return encode(w, v)
}

func (jsonFormatter) Price(w io.Writer, p *service.PriceQuote) error {
	return encode(w, p)
}

func (jsonFormatter) Totals(w io.Writer, quoteNo string, t quote.Totals) error {
	return encode(w, struct {
		QuoteNo string `json:"quote_no"`
		quote.Totals
	}{quoteNo, t})
}

func (jsonFormatter) Batch(w io.Writer, b *service.BatchResult) error {
	return encode(w, struct {
		QuoteNo string                `json:"quote_no"`
		Version int                   `json:"version"`
		Added   []string              `json:"added_item_ids"`
		Failed  []service.ItemFailure `json:"failed_items"`
		Totals  quote.Totals          `json:"totals"`
	}{b.Quote.QuoteNo, b.Quote.Version, b.Added, b.Failed, b.Quote.Totals()})
}

func (jsonFormatter) Versions(w io.Writer, quoteNo string, versions []*version.Version) error {
	return encode(w, struct {
		QuoteNo  string             `json:"quote_no"`
		Versions []*version.Version `json:"versions"`
	}{quoteNo, versions})
}

type quoteSummary struct {
	QuoteNo      string       `json:"quote_no"`
	CustomerName string       `json:"customer_name"`
	Status       quote.Status `json:"status"`
	Items        int          `json:"items"`
	Version      int          `json:"version"`
	quote.Totals
}

func (jsonFormatter) Quotes(w io.Writer, page *storage.Page) error {
	summaries := make([]quoteSummary, 0, len(page.Quotes))
	for _, q := range page.Quotes {
		summaries = append(summaries, quoteSummary{
			QuoteNo:      q.QuoteNo,
			CustomerName: q.CustomerName,
			Status:       q.Status,
			Items:        len(q.Items),
			Version:      q.Version,
			Totals:       q.Totals(),
		})
	}
	return encode(w, struct {
		Quotes   []quoteSummary `json:"quotes"`
		Total    int64          `json:"total"`
		Page     int            `json:"page"`
		PageSize int            `json:"page_size"`
	}{summaries, page.Total, page.Page, page.PageSize})
}

type productPrice struct {
	Region      string      `json:"region"`
	RegionName  string      `json:"region_name"`
	BillingUnit string      `json:"billing_unit"`
	BasePrice   string      `json:"base_price"`
	OutputPrice *string     `json:"output_price,omitempty"`
	Tiers       interface{} `json:"tiers,omitempty"`
}

type productDoc struct {
	Code        string         `json:"code"`
	Name        string         `json:"name"`
	Category    string         `json:"category,omitempty"`
	Modality    string         `json:"modality"`
	Capability  string         `json:"capability,omitempty"`
	ModelType   string         `json:"model_type,omitempty"`
	ContextSpec string         `json:"context_spec,omitempty"`
	Prices      []productPrice `json:"prices"`
}

func (jsonFormatter) Products(w io.Writer, products []*catalog.Product) error {
	docs := make([]productDoc, 0, len(products))
	for _, p := range products {
		doc := productDoc{
			Code: p.Code, Name: p.Name, Category: p.Category, Modality: string(p.Modality),
			Capability: p.Capability, ModelType: p.ModelType, ContextSpec: p.ContextSpec,
		}
		for _, region := range p.Regions() {
			price := p.Prices[region]
			pp := productPrice{
				Region:      region,
				RegionName:  catalog.RegionName(region),
				BillingUnit: string(price.BillingUnit),
				BasePrice:   price.BasePrice.String(),
			}
			if price.OutputPrice != nil {
				s := price.OutputPrice.String()
				pp.OutputPrice = &s
			}
			if len(price.Tiers) > 0 {
				pp.Tiers = price.Tiers
			}
			doc.Prices = append(doc.Prices, pp)
		}
		docs = append(docs, doc)
	}
	return encode(w, docs)
}
