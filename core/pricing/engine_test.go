package pricing

import (
	"context"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "model-quote/internal/errors"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func tokens(n int64) *int64 { return &n }

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

func TestCalculateFlat(t *testing.T) {
	e := NewEngine(Defaults{})

	res, err := e.Calculate(UsageContext{
		BasePrice:   dec("0.80"),
		BillingUnit: PerMillionTokens,
		InputTokens: tokens(1_000_000),
	})
	require.NoError(t, err)
	assertDecimal(t, "0.80", res.ExtendedCost)
	assertDecimal(t, "0.80", res.UnitCost)
	assertDecimal(t, "1", res.Volume)
	assert.Equal(t, SchemeFlat, res.Breakdown.Scheme)
	assertDecimal(t, "1", res.Breakdown.EffectiveMultiplier)
	assert.Equal(t, -1, res.Breakdown.TierIndex)
}

func TestCalculateBlendedMultiplier(t *testing.T) {
	e := NewEngine(Defaults{})

	tests := []struct {
		name     string
		thinking string
		batch    string
		want     string
	}{
		{"no blending", "0", "0", "2.00"},
		{"all thinking", "1", "0", "3.00"},
		{"all batch", "0", "1", "1.00"},
		{"both", "0.2", "0.5", "1.65"},
		{"both full", "1", "1", "1.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Calculate(UsageContext{
				BasePrice:         dec("2.00"),
				BillingUnit:       PerMillionTokens,
				InputTokens:       tokens(1_000_000),
				ThinkingModeRatio: dec(tt.thinking),
				BatchCallRatio:    dec(tt.batch),
			})
			require.NoError(t, err)
			assertDecimal(t, tt.want, res.ExtendedCost)
		})
	}
}

func TestCalculateUsesOverrideMultipliers(t *testing.T) {
	e := NewEngine(Defaults{ThinkingMultiplier: dec("3")})

	res, err := e.Calculate(UsageContext{
		BasePrice:         dec("1"),
		BillingUnit:       PerThousandTokens,
		InputTokens:       tokens(1000),
		ThinkingModeRatio: dec("1"),
	})
	require.NoError(t, err)
	assertDecimal(t, "3", res.ExtendedCost)
	assert.Equal(t, SchemeModeBlended, res.Breakdown.Scheme)

	res, err = e.Calculate(UsageContext{
		BasePrice:          dec("1"),
		BillingUnit:        PerThousandTokens,
		InputTokens:        tokens(1000),
		ThinkingModeRatio:  dec("1"),
		ThinkingMultiplier: dec("2"),
	})
	require.NoError(t, err)
	assertDecimal(t, "2", res.ExtendedCost)
}

func TestCalculateSeparateOutputPrice(t *testing.T) {
	e := NewEngine(Defaults{})

	res, err := e.Calculate(UsageContext{
		BasePrice:    dec("0.02"),
		OutputPrice:  decPtr("0.06"),
		BillingUnit:  PerThousandTokens,
		InputTokens:  tokens(1000),
		OutputTokens: tokens(2000),
	})
	require.NoError(t, err)
	assertDecimal(t, "0.14", res.ExtendedCost)
	require.NotNil(t, res.OutputUnitCost)
	assertDecimal(t, "0.06", *res.OutputUnitCost)
	assertDecimal(t, "3", res.Volume)
}

func TestCalculateWithoutOutputPriceBillsAllTokens(t *testing.T) {
	res, err := NewEngine(Defaults{}).Calculate(UsageContext{
		BasePrice:    dec("0.3"),
		BillingUnit:  PerMillionTokens,
		InputTokens:  tokens(600_000),
		OutputTokens: tokens(400_000),
	})
	require.NoError(t, err)
	assertDecimal(t, "0.3", res.ExtendedCost)
}

func TestCalculateLargeTokenCounts(t *testing.T) {
	e := NewEngine(Defaults{})
	half := int64(math.MaxInt64/2 + 1)

	res, err := e.Calculate(UsageContext{
		BasePrice:    dec("0.000001"),
		BillingUnit:  PerMillionTokens,
		InputTokens:  tokens(half),
		OutputTokens: tokens(half),
	})
	require.NoError(t, err)
	assertDecimal(t, "9223372036854.775808", res.Volume)
	assertDecimal(t, "9223372.036855", res.ExtendedCost)
	assert.False(t, res.ExtendedCost.IsNegative())
}

func TestCalculateNonTokenUnits(t *testing.T) {
	e := NewEngine(Defaults{})

	res, err := e.Calculate(UsageContext{BasePrice: dec("0.16"), BillingUnit: PerImage})
	require.NoError(t, err)
	assertDecimal(t, "0.16", res.ExtendedCost)

	res, err = e.Calculate(UsageContext{BasePrice: dec("0.00008"), BillingUnit: PerSecond, Units: tokens(3600)})
	require.NoError(t, err)
	assertDecimal(t, "0.288", res.ExtendedCost)
}

func tieredTable() []Tier {
	return []Tier{
		{From: dec("0"), UpTo: decPtr("100"), Price: dec("10")},
		{From: dec("100"), Price: dec("8")},
	}
}

func TestCalculateTiered(t *testing.T) {
	e := NewEngine(Defaults{})

	tests := []struct {
		name     string
		tokens   int64
		wantTier int
		want     string
	}{
		{"first tier", 50_000_000, 0, "500"},
		{"lower bound of second tier", 100_000_000, 1, "800"},
		{"whole volume at highest tier", 150_000_000, 1, "1200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Calculate(UsageContext{
				BasePrice:   dec("10"),
				BillingUnit: PerMillionTokens,
				InputTokens: tokens(tt.tokens),
				Tiers:       tieredTable(),
			})
			require.NoError(t, err)
			assert.Equal(t, SchemeTiered, res.Breakdown.Scheme)
			assert.Equal(t, tt.wantTier, res.Breakdown.TierIndex)
			assertDecimal(t, tt.want, res.ExtendedCost)
		})
	}
}

func TestValidateTiers(t *testing.T) {
	tests := []struct {
		name  string
		tiers []Tier
		ok    bool
	}{
		{"valid", tieredTable(), true},
		{"empty", nil, true},
		{"starts above zero", []Tier{{From: dec("10"), Price: dec("1")}}, false},
		{"gap", []Tier{
			{From: dec("0"), UpTo: decPtr("100"), Price: dec("10")},
			{From: dec("120"), Price: dec("8")},
		}, false},
		{"overlap", []Tier{
			{From: dec("0"), UpTo: decPtr("100"), Price: dec("10")},
			{From: dec("90"), Price: dec("8")},
		}, false},
		{"unbounded in the middle", []Tier{
			{From: dec("0"), Price: dec("10")},
			{From: dec("100"), Price: dec("8")},
		}, false},
		{"zero price", []Tier{{From: dec("0"), Price: dec("0")}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTiers(tt.tiers)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, qerrors.IsType(err, qerrors.TypeConfig), "got %v", err)
		})
	}
}

func TestSelectTierBeyondLastBound(t *testing.T) {
	tiers := []Tier{{From: dec("0"), UpTo: decPtr("100"), Price: dec("10")}}
	_, _, err := SelectTier(tiers, dec("100"))
	assert.True(t, qerrors.IsType(err, qerrors.TypeConfig))
}

func TestCalculateRejectsBadInput(t *testing.T) {
	e := NewEngine(Defaults{})
	base := func() UsageContext {
		return UsageContext{BasePrice: dec("1"), BillingUnit: PerMillionTokens, InputTokens: tokens(10)}
	}

	tests := []struct {
		name   string
		mutate func(*UsageContext)
		want   qerrors.Type
	}{
		{"zero base price", func(u *UsageContext) { u.BasePrice = decimal.Zero }, qerrors.TypeValidation},
		{"negative output price", func(u *UsageContext) { u.OutputPrice = decPtr("-1") }, qerrors.TypeValidation},
		{"thinking ratio above one", func(u *UsageContext) { u.ThinkingModeRatio = dec("1.01") }, qerrors.TypeValidation},
		{"negative batch ratio", func(u *UsageContext) { u.BatchCallRatio = dec("-0.5") }, qerrors.TypeValidation},
		{"thinking ratio too precise", func(u *UsageContext) { u.ThinkingModeRatio = dec("0.1234567") }, qerrors.TypeValidation},
		{"negative tokens", func(u *UsageContext) { u.InputTokens = tokens(-1) }, qerrors.TypeValidation},
		{"unknown unit", func(u *UsageContext) { u.BillingUnit = "per-furlong" }, qerrors.TypeValidation},
		{"negative multiplier", func(u *UsageContext) { u.BatchMultiplier = dec("-1") }, qerrors.TypeValidation},
		{"oversized price", func(u *UsageContext) { u.BasePrice = dec("100000000000000") }, qerrors.TypeValidation},
		{"broken tiers", func(u *UsageContext) { u.Tiers = []Tier{{From: dec("5"), Price: dec("1")}} }, qerrors.TypeConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := base()
			tt.mutate(&u)
			_, err := e.Calculate(u)
			require.Error(t, err)
			assert.Equal(t, tt.want, qerrors.TypeOf(err))
		})
	}
}

func TestCalculateIsDeterministic(t *testing.T) {
	e := NewEngine(Defaults{})
	u := UsageContext{
		BasePrice:         dec("0.0123"),
		BillingUnit:       PerThousandTokens,
		InputTokens:       tokens(98_765),
		ThinkingModeRatio: dec("0.333"),
		BatchCallRatio:    dec("0.25"),
	}
	first, err := e.Calculate(u)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := e.Calculate(u)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.True(t, first.ExtendedCost.Equal(first.ExtendedCost.Round(6)))
}

func TestCalculateBatch(t *testing.T) {
	e := NewEngine(Defaults{Concurrency: 2})
	ctx := context.Background()

	usages := make([]UsageContext, 10)
	for i := range usages {
		usages[i] = UsageContext{BasePrice: dec("1"), BillingUnit: PerCall, Units: tokens(int64(i + 1))}
	}
	results, err := e.CalculateBatch(ctx, usages)
	require.NoError(t, err)
	for i, r := range results {
		assertDecimal(t, decimal.NewFromInt(int64(i+1)).String(), r.ExtendedCost)
	}

	usages[7].BasePrice = decimal.Zero
	_, err = e.CalculateBatch(ctx, usages)
	qe, ok := qerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, 7, qe.Context["index"])
}

func TestCalculateEach(t *testing.T) {
	e := NewEngine(Defaults{})
	usages := []UsageContext{
		{BasePrice: dec("1"), BillingUnit: PerImage},
		{BasePrice: dec("1"), BillingUnit: PerImage, ThinkingModeRatio: dec("2")},
		{BasePrice: dec("2"), BillingUnit: PerImage},
	}
	results, errs := e.CalculateEach(context.Background(), usages)
	require.Len(t, results, 3)
	assert.NoError(t, errs[0])
	assert.True(t, qerrors.IsType(errs[1], qerrors.TypeValidation))
	assert.Nil(t, results[1])
	assertDecimal(t, "2", results[2].ExtendedCost)
}

func TestParseBillingUnit(t *testing.T) {
	u, err := ParseBillingUnit("per-image")
	require.NoError(t, err)
	assert.False(t, u.IsTokenMetered())
	assert.True(t, PerThousandTokens.IsTokenMetered())

	_, err = ParseBillingUnit("per-day")
	assert.True(t, qerrors.IsType(err, qerrors.TypeValidation))
}
