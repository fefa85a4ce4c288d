package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"model-quote/adapters/storage"
	"model-quote/core/catalog"
	"model-quote/core/money"
	"model-quote/core/quote"
	"model-quote/core/service"
	"model-quote/core/ui"
	"model-quote/core/version"
)

const dateLayout = "2006-01-02"

type cliFormatter struct {
	noColor bool
}

func (f *cliFormatter) Format() Format { return FormatCLI }

func (f *cliFormatter) writer(w io.Writer) *ui.Writer {
	return ui.NewWriter(w, f.noColor)
}

func (f *cliFormatter) Quote(w io.Writer, v quote.View) error {
	out := f.writer(w)
	out.Header(fmt.Sprintf("Quote %s (v%d, %s)", v.QuoteNo, v.Version, v.Status))
	out.Field("Customer", v.CustomerName)
	out.Field("Project", v.ProjectName)
	out.Field("Sales", v.SalesName)
	out.Field("Contact", v.CustomerContact)
	out.Field("Email", v.CustomerEmail)
	out.Field("Created by", v.CreatedBy)
	out.Field("Created", v.CreatedAt.Format(time.RFC3339))
	if v.ValidUntil != nil {
		out.Field("Valid until", v.ValidUntil.Format(dateLayout))
	}
	out.Field("Remarks", v.Remarks)
	out.Field("Terms", v.Terms)
	out.Println("")

	if len(v.Lines) == 0 {
		out.Warning("no items")
	} else {
		tbl := out.NewTable("#", "Item", "Product", "Region", "Usage", "Unit price", "Original", "Rate", "Final", "Qty", "Months", "Subtotal").
			AlignRight(0, 5, 6, 7, 8, 9, 10, 11)
		for _, l := range v.Lines {
			region := l.Region
			if l.RegionName != "" && l.RegionName != l.Region {
				region = l.RegionName
			}
			tbl.AddRow(
				fmt.Sprintf("%d", l.Position),
				shortID(l.ItemID),
				l.ProductCode,
				region,
				usage(l),
				money.FormatAmount(l.UnitPrice),
				money.FormatAmount(l.OriginalPrice),
				money.FormatRate(l.DiscountRate),
				money.FormatAmount(l.FinalPrice),
				fmt.Sprintf("%d", l.Quantity),
				fmt.Sprintf("%d", l.Duration),
				money.FormatAmount(l.Subtotal),
			)
		}
		tbl.Render()
	}
	out.Println("")

	box := out.NewTotalsBox()
	box.Currency = v.Currency
	box.Original = money.FormatAmount(v.TotalOriginalAmount)
	box.Discount = money.FormatRate(v.GlobalDiscountRate)
	if v.GlobalDiscountRemark != "" {
		box.Discount += " (" + v.GlobalDiscountRemark + ")"
	}
	box.Total = money.FormatAmount(v.TotalAmount)
	box.Render()
	return out.Err()
}

func (f *cliFormatter) Price(w io.Writer, p *service.PriceQuote) error {
	out := f.writer(w)
	r := p.Result
	out.Header(fmt.Sprintf("%s (%s) in %s", p.ProductName, p.ProductCode, p.Region))
	out.Field("Scheme", string(r.Breakdown.Scheme))
	out.Field("Billing unit", string(r.BillingUnit))
	out.Field("Volume", r.Volume.String()+" "+r.BillingUnit.Measure())
	out.Field("Multiplier", r.Breakdown.EffectiveMultiplier.String())
	if r.Breakdown.TierIndex >= 0 {
		out.Field("Tier", fmt.Sprintf("#%d at %s", r.Breakdown.TierIndex+1, r.Breakdown.TierPrice.String()))
	}
	out.Field("Unit cost", money.FormatAmount(r.UnitCost))
	if r.OutputUnitCost != nil {
		out.Field("Output unit cost", money.FormatAmount(*r.OutputUnitCost))
	}
	out.Field("Formula", r.Breakdown.Formula)
	out.Field("Extended cost", money.FormatAmount(r.ExtendedCost))
	out.Field("Discount rate", money.FormatRate(p.Item.DiscountRate))
	out.Field("Final price", money.FormatAmount(p.Item.FinalPrice))
	out.Field("Subtotal", fmt.Sprintf("%s (× %d × %d months)", money.FormatAmount(p.Item.Subtotal), p.Item.Quantity, p.Item.DurationMonths))
	return out.Err()
}

func (f *cliFormatter) Totals(w io.Writer, quoteNo string, t quote.Totals) error {
	out := f.writer(w)
	out.Header("Totals " + quoteNo)
	box := out.NewTotalsBox()
	box.Currency = t.Currency
	box.Original = money.FormatAmount(t.TotalOriginalAmount)
	box.Discount = money.FormatRate(t.GlobalDiscountRate)
	box.Total = money.FormatAmount(t.TotalAmount)
	box.Render()
	return out.Err()
}

func (f *cliFormatter) Batch(w io.Writer, b *service.BatchResult) error {
	out := f.writer(w)
	if len(b.Added) > 0 {
		out.Success("%d items added to %s (v%d)", len(b.Added), b.Quote.QuoteNo, b.Quote.Version)
	}
	for _, fail := range b.Failed {
		out.Error("entry %d (%s): %s", fail.Index+1, fail.ProductCode, fail.Error)
	}
	if len(b.Added) == 0 {
		out.Warning("no items added, %s left at v%d", b.Quote.QuoteNo, b.Quote.Version)
	}
	return out.Err()
}

func (f *cliFormatter) Versions(w io.Writer, quoteNo string, versions []*version.Version) error {
	out := f.writer(w)
	out.Header("History " + quoteNo)
	tbl := out.NewTable("Version", "Change", "Summary", "Committed", "Hash").AlignRight(0)
	for _, v := range versions {
		tbl.AddRow(
			fmt.Sprintf("%d", v.Number),
			string(v.ChangeType),
			v.ChangesSummary,
			v.CreatedAt.Format(time.RFC3339),
			v.ContentHash[:min(12, len(v.ContentHash))],
		)
	}
	tbl.Render()
	return out.Err()
}

func (f *cliFormatter) Quotes(w io.Writer, page *storage.Page) error {
	out := f.writer(w)
	if len(page.Quotes) == 0 {
		out.Warning("no quotes found")
		return out.Err()
	}
	tbl := out.NewTable("Quote", "Customer", "Status", "Items", "Total", "Valid until", "Version").AlignRight(3, 4, 6)
	for _, q := range page.Quotes {
		valid := "-"
		if q.ValidUntil != nil {
			valid = q.ValidUntil.Format(dateLayout)
		}
		tbl.AddRow(
			q.QuoteNo,
			q.CustomerName,
			string(q.Status),
			fmt.Sprintf("%d", len(q.Items)),
			q.Currency+" "+money.FormatAmount(q.TotalAmount),
			valid,
			fmt.Sprintf("%d", q.Version),
		)
	}
	tbl.Render()
	size := int64(max(page.PageSize, 1))
	pages := (page.Total + size - 1) / size
	out.Println("page %d of %d, %d quotes", page.Page, pages, page.Total)
	return out.Err()
}

func (f *cliFormatter) Products(w io.Writer, products []*catalog.Product) error {
	out := f.writer(w)
	tbl := out.NewTable("Product", "Name", "Modality", "Region", "Unit", "Base", "Output", "Tiers").AlignRight(5, 6, 7)
	for _, p := range products {
		for _, region := range p.Regions() {
			price := p.Prices[region]
			output := "-"
			if price.OutputPrice != nil {
				output = price.OutputPrice.String()
			}
			tiers := "-"
			if len(price.Tiers) > 0 {
				tiers = fmt.Sprintf("%d", len(price.Tiers))
			}
			tbl.AddRow(p.Code, p.Name, string(p.Modality), region, string(price.BillingUnit), price.BasePrice.String(), output, tiers)
		}
	}
	tbl.Render()
	return out.Err()
}

func usage(l quote.ViewLine) string {
	if l.InputTokens == nil && l.OutputTokens == nil {
		return l.BillingUnit
	}
	parts := []string{"in " + optional(l.InputTokens)}
	if l.OutputTokens != nil {
		parts = append(parts, "out "+optional(l.OutputTokens))
	}
	return strings.Join(parts, " / ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
