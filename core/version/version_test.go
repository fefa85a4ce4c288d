package version

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-quote/core/pricing"
	"model-quote/core/quote"
	qerrors "model-quote/internal/errors"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newSheet(t *testing.T) *quote.Sheet {
	t.Helper()
	s := quote.NewSheet("q1", "QT202603010001", "alice", "CNY", epoch)
	units := int64(4)
	res, err := pricing.NewEngine(pricing.Defaults{}).Calculate(pricing.UsageContext{
		BasePrice:   decimal.RequireFromString("0.25"),
		BillingUnit: pricing.PerImage,
		Units:       &units,
	})
	require.NoError(t, err)
	p, err := quote.ApplyItem(res, decimal.RequireFromString("1"), 1, 1)
	require.NoError(t, err)
	item := &quote.Item{ID: "i1", ProductCode: "wanx-v1", ProductName: "Wanx", Region: "cn-beijing", Units: &units}
	item.SetPricing(p)
	require.NoError(t, s.AddItem(item))
	return s
}

func newManager() *Manager {
	n := 0
	return NewManager(
		WithClock(func() time.Time { return epoch.Add(time.Minute) }),
		WithIDs(func() string { n++; return "v" + string(rune('0'+n)) }),
	)
}

func TestCommitNumbersVersions(t *testing.T) {
	m := newManager()
	s := newSheet(t)

	v1, err := m.Commit(s, Other, "quote created")
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Number)
	assert.Equal(t, 1, s.Version)
	assert.Equal(t, "v1", v1.ID)
	assert.Equal(t, "q1", v1.QuoteID)
	assert.Equal(t, epoch.Add(time.Minute), v1.CreatedAt)
	assert.Equal(t, epoch.Add(time.Minute), s.UpdatedAt)

	v2, err := m.Commit(s, DiscountChanged, "")
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Number)
	assert.Equal(t, "global discount set to 1.0000", v2.ChangesSummary)
	assert.NotEqual(t, v1.ContentHash, v2.ContentHash)
}

func TestCommitRejectsBadInput(t *testing.T) {
	m := newManager()
	s := newSheet(t)

	_, err := m.Commit(s, "renamed", "")
	assert.True(t, qerrors.IsType(err, qerrors.TypeValidation))
	assert.Equal(t, 0, s.Version)

	s.TotalAmount = decimal.RequireFromString("7")
	_, err = m.Commit(s, Other, "")
	assert.True(t, qerrors.IsType(err, qerrors.TypeInconsistency))
	assert.Equal(t, 0, s.Version)
}

func TestSnapshotIsIndependentOfLiveSheet(t *testing.T) {
	m := newManager()
	s := newSheet(t)
	v, err := m.Commit(s, ItemAdded, "")
	require.NoError(t, err)

	s.CustomerName = "changed later"
	*s.Items[0].Units = 99
	require.NoError(t, s.SetGlobalDiscount(decimal.RequireFromString("0.5"), "late"))

	restored, err := v.Restore()
	require.NoError(t, err)
	assert.Empty(t, restored.CustomerName)
	assert.Equal(t, int64(4), *restored.Items[0].Units)
	assert.True(t, restored.TotalAmount.Equal(decimal.RequireFromString("1")))
	assert.Equal(t, 1, restored.Version)

	restored.CustomerName = "mutated copy"
	again, err := v.Restore()
	require.NoError(t, err)
	assert.Empty(t, again.CustomerName)

	raw := v.SnapshotJSON()
	raw[0] = 'X'
	assert.NoError(t, v.Verify())
}

func TestDecodeVerifiesHash(t *testing.T) {
	m := newManager()
	v, err := m.Commit(newSheet(t), Other, "")
	require.NoError(t, err)

	meta := *v
	decoded, err := Decode(meta, v.SnapshotJSON())
	require.NoError(t, err)
	assert.Equal(t, v.ContentHash, decoded.ContentHash)

	tampered := strings.Replace(string(v.SnapshotJSON()), `"alice"`, `"mallory"`, 1)
	_, err = Decode(meta, []byte(tampered))
	assert.True(t, qerrors.IsType(err, qerrors.TypeInconsistency))
}

func TestMarshalIncludesSnapshot(t *testing.T) {
	v, err := newManager().Commit(newSheet(t), Other, "quote created")
	require.NoError(t, err)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, float64(1), doc["version_number"])
	assert.Equal(t, "quote created", doc["changes_summary"])
	snapshot, ok := doc["snapshot"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "QT202603010001", snapshot["quote_no"])
}

func TestSummaryIsTruncated(t *testing.T) {
	m := NewManager(WithSummaryLength(10))
	v, err := m.Commit(newSheet(t), Other, strings.Repeat("界", 40))
	require.NoError(t, err)
	assert.Equal(t, 10, len([]rune(v.ChangesSummary)))
	assert.True(t, strings.HasSuffix(v.ChangesSummary, "…"))
}

func TestSummarize(t *testing.T) {
	s := newSheet(t)
	require.NoError(t, s.Transition(quote.StatusConfirmed))
	assert.Equal(t, "item added, 1 items in quote", Summarize(ItemAdded, s))
	assert.Equal(t, "status changed to confirmed", Summarize(StatusChanged, s))
	assert.Equal(t, "quote updated", Summarize(Other, s))
}

func TestParseChangeType(t *testing.T) {
	for _, ct := range []ChangeType{ItemAdded, ItemRemoved, ItemEdited, DiscountChanged, StatusChanged, Other} {
		got, err := ParseChangeType(string(ct))
		require.NoError(t, err)
		assert.Equal(t, ct, got)
	}
	_, err := ParseChangeType("item_added")
	assert.Error(t, err)
}
