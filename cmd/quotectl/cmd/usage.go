package cmd

import (
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"model-quote/core/money"
	"model-quote/core/service"
	qerrors "model-quote/internal/errors"
)

// usageFlags binds the flags that describe one usage line
type usageFlags struct {
	product       string
	region        string
	inputTokens   int64
	outputTokens  int64
	units         int64
	thinkingRatio string
	batchRatio    string
	quantity      int
	months        int
	discount      string
}

func (u *usageFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&u.product, "product", "p", "", "product code")
	f.StringVarP(&u.region, "region", "r", "", "region code (default from config)")
	f.Int64Var(&u.inputTokens, "input-tokens", 0, "input tokens")
	f.Int64Var(&u.outputTokens, "output-tokens", 0, "output tokens")
	f.Int64Var(&u.units, "units", 0, "units for non-token products (images, seconds, calls)")
	f.StringVar(&u.thinkingRatio, "thinking-ratio", "0", "share of tokens in thinking mode, 0..1")
	f.StringVar(&u.batchRatio, "batch-ratio", "0", "share of calls made in batch, 0..1")
	f.IntVar(&u.quantity, "quantity", 1, "quantity")
	f.IntVar(&u.months, "months", 1, "duration in months")
	f.StringVar(&u.discount, "discount", "", "item discount rate in (0,1], e.g. 0.85")
}

func (u *usageFlags) request(cmd *cobra.Command) (service.UsageRequest, error) {
	req := service.UsageRequest{
		ProductCode:    u.product,
		Region:         u.region,
		Quantity:       u.quantity,
		DurationMonths: u.months,
	}
	if u.product == "" {
		return req, qerrors.Validation("product", "--product is required")
	}

	changed := cmd.Flags().Changed
	if changed("input-tokens") {
		req.InputTokens = ptr(u.inputTokens)
	}
	if changed("output-tokens") {
		req.OutputTokens = ptr(u.outputTokens)
	}
	if changed("units") {
		req.Units = ptr(u.units)
	}

	var err error
	if req.ThinkingModeRatio, err = decimal.NewFromString(u.thinkingRatio); err != nil {
		return req, qerrors.Validation("thinking_mode_ratio", "%q is not a number", u.thinkingRatio)
	}
	if req.BatchCallRatio, err = decimal.NewFromString(u.batchRatio); err != nil {
		return req, qerrors.Validation("batch_call_ratio", "%q is not a number", u.batchRatio)
	}
	if u.discount != "" {
		rate, err := money.ParseRate("discount_rate", u.discount)
		if err != nil {
			return req, err
		}
		req.DiscountRate = &rate
	}
	return req, nil
}

func ptr[T any](v T) *T {
	return &v
}
