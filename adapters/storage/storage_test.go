package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"model-quote/core/pricing"
	"model-quote/core/quote"
	"model-quote/core/version"
	"model-quote/internal/db"
	qerrors "model-quote/internal/errors"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newGormTestStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := fmt.Sprintf("file:store_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewGormStore(conn)
}

func backends(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"gorm":   newGormTestStore(t),
	}
}

func pricedItem(t *testing.T, base string, tokens int64, rate string) *quote.Item {
	t.Helper()
	in := tokens
	res, err := pricing.NewEngine(pricing.Defaults{}).Calculate(pricing.UsageContext{
		BasePrice:   decimal.RequireFromString(base),
		BillingUnit: pricing.PerMillionTokens,
		InputTokens: &in,
	})
	require.NoError(t, err)
	p, err := quote.ApplyItem(res, decimal.RequireFromString(rate), 2, 3)
	require.NoError(t, err)

	it := &quote.Item{
		ID:          uuid.NewString(),
		ProductCode: "qwen-plus",
		ProductName: "Qwen Plus",
		Region:      "cn-beijing",
		InputTokens: &in,
	}
	it.SetPricing(p)
	return it
}

func newCommitted(t *testing.T, mgr *version.Manager, quoteNo, customer string) (*quote.Sheet, *version.Version) {
	t.Helper()
	s := quote.NewSheet(uuid.NewString(), quoteNo, "alice", "CNY", epoch)
	s.CustomerName = customer
	require.NoError(t, s.AddItem(pricedItem(t, "10", 1_500_000, "0.9")))
	v, err := mgr.Commit(s, version.ItemAdded, "")
	require.NoError(t, err)
	return s, v
}

func TestStoreCreateLoadSave(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			mgr := version.NewManager(version.WithClock(func() time.Time { return epoch }))
			sheet, v1 := newCommitted(t, mgr, "QT202603010001", "Acme")
			require.NoError(t, store.CreateQuote(ctx, sheet, v1))

			loaded, err := store.LoadQuote(ctx, "QT202603010001")
			require.NoError(t, err)
			require.NoError(t, loaded.CheckInvariants())
			assert.Equal(t, 1, loaded.Version)
			require.Len(t, loaded.Items, 1)
			assert.True(t, loaded.TotalAmount.Equal(sheet.TotalAmount))
			assert.True(t, loaded.Items[0].Pricing.Subtotal.Equal(sheet.Items[0].Pricing.Subtotal))

			require.NoError(t, loaded.AddItem(pricedItem(t, "4", 250_000, "1")))
			require.NoError(t, loaded.SetGlobalDiscount(decimal.RequireFromString("0.95"), "loyalty"))
			v2, err := mgr.Commit(loaded, version.DiscountChanged, "")
			require.NoError(t, err)
			require.NoError(t, store.SaveQuote(ctx, loaded, v2))

			reloaded, err := store.LoadQuote(ctx, "QT202603010001")
			require.NoError(t, err)
			assert.Equal(t, 2, reloaded.Version)
			require.Len(t, reloaded.Items, 2)
			assert.Equal(t, []int{1, 2}, []int{reloaded.Items[0].SortOrder, reloaded.Items[1].SortOrder})
			assert.True(t, reloaded.GlobalDiscountRate.Equal(decimal.RequireFromString("0.95")))
			assert.Equal(t, "loyalty", reloaded.GlobalDiscountRemark)
			assert.True(t, reloaded.TotalAmount.Equal(loaded.TotalAmount))
		})
	}
}

func TestStoreRejectsStaleSave(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			mgr := version.NewManager()
			sheet, v1 := newCommitted(t, mgr, "QT202603010002", "Acme")
			require.NoError(t, store.CreateQuote(ctx, sheet, v1))

			a, err := store.LoadQuote(ctx, sheet.QuoteNo)
			require.NoError(t, err)
			b, err := store.LoadQuote(ctx, sheet.QuoteNo)
			require.NoError(t, err)

			require.NoError(t, a.AddItem(pricedItem(t, "1", 1_000_000, "1")))
			va, err := mgr.Commit(a, version.ItemAdded, "")
			require.NoError(t, err)
			require.NoError(t, store.SaveQuote(ctx, a, va))

			require.NoError(t, b.AddItem(pricedItem(t, "2", 1_000_000, "1")))
			vb, err := mgr.Commit(b, version.ItemAdded, "")
			require.NoError(t, err)
			err = store.SaveQuote(ctx, b, vb)
			require.Error(t, err)
			assert.True(t, qerrors.IsType(err, qerrors.TypeInconsistency))
			assert.True(t, IsStaleVersion(err))

			stored, err := store.LoadQuote(ctx, sheet.QuoteNo)
			require.NoError(t, err)
			assert.Equal(t, 2, stored.Version)
			assert.True(t, stored.TotalAmount.Equal(a.TotalAmount))

			versions, err := store.ListVersions(ctx, sheet.QuoteNo)
			require.NoError(t, err)
			assert.Len(t, versions, 2)
		})
	}
}

func TestStoreRejectsDuplicateQuoteNo(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			mgr := version.NewManager()
			first, v1 := newCommitted(t, mgr, "QT202603010003", "Acme")
			require.NoError(t, store.CreateQuote(ctx, first, v1))

			second, v2 := newCommitted(t, mgr, "QT202603010003", "Other")
			err := store.CreateQuote(ctx, second, v2)
			require.Error(t, err)
			assert.True(t, IsDuplicateQuoteNo(err))
		})
	}
}

func TestStoreRefusesBrokenAggregate(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			mgr := version.NewManager()
			sheet, v1 := newCommitted(t, mgr, "QT202603010004", "Acme")
			sheet.TotalAmount = sheet.TotalAmount.Add(decimal.NewFromInt(1))
			err := store.CreateQuote(ctx, sheet, v1)
			require.Error(t, err)
			assert.True(t, qerrors.IsType(err, qerrors.TypeInconsistency))
			assert.False(t, IsStaleVersion(err))

			_, err = store.LoadQuote(ctx, sheet.QuoteNo)
			assert.True(t, qerrors.IsType(err, qerrors.TypeNotFound))
		})
	}
}

func TestStoreVersionsAndDelete(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			mgr := version.NewManager()
			sheet, v1 := newCommitted(t, mgr, "QT202603010005", "Acme")
			require.NoError(t, store.CreateQuote(ctx, sheet, v1))

			removed := sheet.Items[0].ID
			_, err := sheet.RemoveItem(removed)
			require.NoError(t, err)
			v2, err := mgr.Commit(sheet, version.ItemRemoved, "")
			require.NoError(t, err)
			require.NoError(t, store.SaveQuote(ctx, sheet, v2))

			got, err := store.GetVersion(ctx, sheet.QuoteNo, 1)
			require.NoError(t, err)
			require.NoError(t, got.Verify())
			snap, err := got.Restore()
			require.NoError(t, err)
			require.Len(t, snap.Items, 1)
			assert.Equal(t, removed, snap.Items[0].ID)

			_, err = store.GetVersion(ctx, sheet.QuoteNo, 9)
			assert.True(t, qerrors.IsType(err, qerrors.TypeNotFound))

			require.NoError(t, store.DeleteQuote(ctx, sheet.QuoteNo))
			_, err = store.LoadQuote(ctx, sheet.QuoteNo)
			assert.True(t, qerrors.IsType(err, qerrors.TypeNotFound))
			_, err = store.ListVersions(ctx, sheet.QuoteNo)
			assert.True(t, qerrors.IsType(err, qerrors.TypeNotFound))
			assert.True(t, qerrors.IsType(store.DeleteQuote(ctx, sheet.QuoteNo), qerrors.TypeNotFound))
		})
	}
}

func TestStoreListQuotes(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			mgr := version.NewManager()
			customers := []string{"Acme Corp", "acme labs", "Globex", "Initech"}
			for i, c := range customers {
				sheet := quote.NewSheet(uuid.NewString(), fmt.Sprintf("QT2026030100%02d", 10+i), "alice", "CNY", epoch.Add(time.Duration(i)*time.Hour))
				sheet.CustomerName = c
				until := epoch.Add(time.Duration(i) * 24 * time.Hour)
				sheet.ValidUntil = &until
				require.NoError(t, sheet.AddItem(pricedItem(t, "10", 1_000_000, "1")))
				v, err := mgr.Commit(sheet, version.ItemAdded, "")
				require.NoError(t, err)
				require.NoError(t, store.CreateQuote(ctx, sheet, v))
			}

			page, err := store.ListQuotes(ctx, ListFilter{CustomerName: "ACME"})
			require.NoError(t, err)
			assert.EqualValues(t, 2, page.Total)
			require.Len(t, page.Quotes, 2)
			assert.Equal(t, "acme labs", page.Quotes[0].CustomerName)

			page, err = store.ListQuotes(ctx, ListFilter{Page: 2, PageSize: 3})
			require.NoError(t, err)
			assert.EqualValues(t, 4, page.Total)
			require.Len(t, page.Quotes, 1)
			assert.Equal(t, "Acme Corp", page.Quotes[0].CustomerName)

			cutoff := epoch.Add(36 * time.Hour)
			page, err = store.ListQuotes(ctx, ListFilter{ValidBefore: &cutoff, Status: quote.StatusDraft})
			require.NoError(t, err)
			assert.EqualValues(t, 2, page.Total)

			page, err = store.ListQuotes(ctx, ListFilter{CreatedBy: "bob"})
			require.NoError(t, err)
			assert.Empty(t, page.Quotes)
		})
	}
}

func TestGormStoreKeepsFullPrecision(t *testing.T) {
	ctx := context.Background()
	store := newGormTestStore(t)
	mgr := version.NewManager()

	s := quote.NewSheet(uuid.NewString(), "QT202603010900", "alice", "CNY", epoch)
	s.CustomerName = "Precise Ltd"
	require.NoError(t, s.AddItem(pricedItem(t, "123456789012.123457", 1_000_000, "1")))
	want := decimal.RequireFromString("740740734072.740742")
	require.True(t, want.Equal(s.Items[0].Pricing.Subtotal), s.Items[0].Pricing.Subtotal.String())

	v, err := mgr.Commit(s, version.ItemAdded, "")
	require.NoError(t, err)
	require.NoError(t, store.CreateQuote(ctx, s, v))

	var kind string
	require.NoError(t, store.conn.Raw("SELECT typeof(subtotal) FROM quote_items LIMIT 1").Scan(&kind).Error)
	assert.Equal(t, "text", kind)

	loaded, err := store.LoadQuote(ctx, s.QuoteNo)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	it := loaded.Items[0]
	assert.True(t, want.Equal(it.Pricing.Subtotal), it.Pricing.Subtotal.String())
	assert.True(t, decimal.RequireFromString("123456789012.123457").Equal(it.Pricing.OriginalPrice), it.Pricing.OriginalPrice.String())
	assert.True(t, want.Equal(loaded.TotalAmount), loaded.TotalAmount.String())
	require.NoError(t, loaded.CheckInvariants())

	require.NoError(t, loaded.SetGlobalDiscount(decimal.RequireFromString("0.95"), "volume"))
	v2, err := mgr.Commit(loaded, version.DiscountChanged, "")
	require.NoError(t, err)
	require.NoError(t, store.SaveQuote(ctx, loaded, v2))
}
