package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	qerrors "model-quote/internal/errors"
)

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("QUOTE_STORAGE_DSN", filepath.Join(t.TempDir(), "quotes.db"))
	t.Setenv("QUOTE_CATALOG_PATH", filepath.Join("..", "..", "..", "configs", "catalog.hcl"))
	t.Setenv("QUOTE_REDIS_ENABLED", "false")
	t.Setenv("QUOTE_LOG_LEVEL", "error")
}

func isType(err error, typ qerrors.Type) bool {
	return qerrors.IsType(dig.RootCause(err), typ)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func executeJSON(t *testing.T, v interface{}, args ...string) {
	t.Helper()
	out, err := execute(t, append(args, "--format", "json")...)
	require.NoError(t, err, out)
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

type viewResult struct {
	QuoteNo     string          `json:"quote_no"`
	Status      string          `json:"status"`
	Version     int             `json:"version"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Lines       []struct {
		ItemID      string          `json:"item_id"`
		ProductCode string          `json:"product_code"`
		Subtotal    decimal.Decimal `json:"subtotal"`
	} `json:"lines"`
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "quotectl version "+Version)
}

func TestPriceCommand(t *testing.T) {
	setupEnv(t)

	var res struct {
		ProductCode string `json:"product_code"`
		Region      string `json:"region"`
		Result      struct {
			ExtendedCost decimal.Decimal `json:"extended_cost"`
		} `json:"result"`
		Item struct {
			FinalPrice decimal.Decimal `json:"final_price"`
		} `json:"item"`
	}
	executeJSON(t, &res, "price", "--product", "qwen-turbo", "--input-tokens", "2000000", "--discount", "0.5")

	assert.Equal(t, "qwen-turbo", res.ProductCode)
	assert.Equal(t, "cn-beijing", res.Region)
	assert.True(t, decimal.RequireFromString("0.6").Equal(res.Result.ExtendedCost), res.Result.ExtendedCost.String())
	assert.True(t, decimal.RequireFromString("0.3").Equal(res.Item.FinalPrice), res.Item.FinalPrice.String())

	out, err := execute(t, "price", "--product", "qwen-turbo", "--input-tokens", "1000", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "qwen-turbo")
}

func TestPriceCommandErrors(t *testing.T) {
	setupEnv(t)

	tests := []struct {
		name string
		args []string
		typ  qerrors.Type
	}{
		{"missing product", []string{"price", "--input-tokens", "10"}, qerrors.TypeValidation},
		{"bad ratio", []string{"price", "--product", "qwen-turbo", "--thinking-ratio", "abc"}, qerrors.TypeValidation},
		{"discount out of range", []string{"price", "--product", "qwen-turbo", "--discount", "1.5"}, qerrors.TypeValidation},
		{"unknown product", []string{"price", "--product", "nope"}, qerrors.TypeNotFound},
		{"unknown format", []string{"price", "--product", "qwen-turbo", "--format", "xml"}, qerrors.TypeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.True(t, isType(err, tt.typ), "got %v", err)
		})
	}
}

func TestQuoteWorkflow(t *testing.T) {
	setupEnv(t)

	var created viewResult
	executeJSON(t, &created, "quote", "create", "--customer", "Acme Corp", "--created-by", "alice")
	require.NotEmpty(t, created.QuoteNo)
	assert.Equal(t, "draft", created.Status)
	assert.Equal(t, 1, created.Version)
	no := created.QuoteNo

	var added viewResult
	executeJSON(t, &added, "quote", "add-item", no, "--product", "qwen-turbo", "--input-tokens", "2000000", "--discount", "0.5")
	assert.Equal(t, 2, added.Version)
	require.Len(t, added.Lines, 1)
	assert.True(t, decimal.RequireFromString("0.3").Equal(added.TotalAmount), added.TotalAmount.String())

	items := filepath.Join(t.TempDir(), "items.yaml")
	require.NoError(t, os.WriteFile(items, []byte(`
- product_code: wanx-v1
  units: 10
- product_code: no-such-model
  input_tokens: 5
`), 0o600))

	var batch struct {
		Version int      `json:"version"`
		Added   []string `json:"added_item_ids"`
		Failed  []struct {
			Index int `json:"index"`
		} `json:"failed_items"`
	}
	executeJSON(t, &batch, "quote", "add-items", no, "--file", items)
	assert.Equal(t, 3, batch.Version)
	assert.Len(t, batch.Added, 1)
	require.Len(t, batch.Failed, 1)
	assert.Equal(t, 1, batch.Failed[0].Index)

	var totals struct {
		QuoteNo     string          `json:"quote_no"`
		TotalAmount decimal.Decimal `json:"total_amount"`
	}
	executeJSON(t, &totals, "quote", "totals", no)
	assert.Equal(t, no, totals.QuoteNo)
	assert.True(t, decimal.RequireFromString("1.9").Equal(totals.TotalAmount), totals.TotalAmount.String())

	var history struct {
		Versions []struct {
			Number     int    `json:"version_number"`
			ChangeType string `json:"change_type"`
		} `json:"versions"`
	}
	executeJSON(t, &history, "quote", "versions", no)
	require.Len(t, history.Versions, 3)

	var v2 viewResult
	executeJSON(t, &v2, "quote", "versions", no, "--number", "2")
	assert.Len(t, v2.Lines, 1)

	var reverted viewResult
	executeJSON(t, &reverted, "quote", "revert", no, "2")
	assert.Equal(t, 4, reverted.Version)
	assert.Len(t, reverted.Lines, 1)

	var confirmed viewResult
	executeJSON(t, &confirmed, "quote", "finalize", no)
	assert.Equal(t, "confirmed", confirmed.Status)

	_, err := execute(t, "quote", "add-item", no, "--product", "qwen-turbo", "--input-tokens", "1")
	require.Error(t, err)
	assert.True(t, isType(err, qerrors.TypeValidation), "got %v", err)

	var cloned viewResult
	executeJSON(t, &cloned, "quote", "clone", no)
	assert.NotEqual(t, no, cloned.QuoteNo)
	assert.Equal(t, "draft", cloned.Status)

	var page struct {
		Total int64 `json:"total"`
	}
	executeJSON(t, &page, "quote", "list", "--customer", "acme")
	assert.Equal(t, int64(2), page.Total)

	out, err := execute(t, "quote", "delete", cloned.QuoteNo)
	require.NoError(t, err)
	assert.Contains(t, out, cloned.QuoteNo)

	_, err = execute(t, "quote", "show", cloned.QuoteNo)
	require.Error(t, err)
	assert.True(t, isType(err, qerrors.TypeNotFound), "got %v", err)
}

func TestQuoteInfoAndDiscount(t *testing.T) {
	setupEnv(t)

	var created viewResult
	executeJSON(t, &created, "quote", "create", "--customer", "Beta Ltd", "--valid-until", "2099-01-31")
	no := created.QuoteNo

	executeJSON(t, &created, "quote", "add-item", no, "--product", "wanx-v1", "--units", "100")
	assert.True(t, decimal.RequireFromString("16").Equal(created.TotalAmount), created.TotalAmount.String())

	var discounted viewResult
	executeJSON(t, &discounted, "quote", "discount", no, "0.9", "--remark", "launch")
	assert.True(t, decimal.RequireFromString("14.4").Equal(discounted.TotalAmount), discounted.TotalAmount.String())

	var updated struct {
		ProjectName string `json:"project_name"`
	}
	executeJSON(t, &updated, "quote", "update", no, "--project", "Posters")
	assert.Equal(t, "Posters", updated.ProjectName)

	_, err := execute(t, "quote", "update", no)
	require.Error(t, err)

	_, err = execute(t, "quote", "create", "--customer", "Gamma", "--valid-until", "31/01/2099")
	require.Error(t, err)
	assert.True(t, isType(err, qerrors.TypeValidation))
}

func TestQuoteExpire(t *testing.T) {
	setupEnv(t)

	var created viewResult
	executeJSON(t, &created, "quote", "create", "--customer", "Delta", "--valid-until", "2026-01-31")

	var res struct {
		Expired []string `json:"expired"`
	}
	executeJSON(t, &res, "quote", "expire", "--at", "2026-01-30")
	assert.Empty(t, res.Expired)

	executeJSON(t, &res, "quote", "expire", "--at", "2026-02-01")
	assert.Equal(t, []string{created.QuoteNo}, res.Expired)
}

func TestCatalogCommands(t *testing.T) {
	setupEnv(t)

	var products []struct {
		Code string `json:"code"`
	}
	executeJSON(t, &products, "catalog", "list")
	require.NotEmpty(t, products)

	out, err := execute(t, "catalog", "validate", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "products")

	_, err = execute(t, "catalog", "validate", filepath.Join(t.TempDir(), "missing.hcl"))
	require.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	setupEnv(t)
	t.Setenv("QUOTE_STORAGE_DSN", "memory")

	var created viewResult
	executeJSON(t, &created, "quote", "create", "--customer", "Ephemeral")
	assert.NotEmpty(t, created.QuoteNo)

	_, err := execute(t, "quote", "show", created.QuoteNo)
	require.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	setupEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, "config", "init", path, "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = execute(t, "config", "init", path)
	require.Error(t, err)
	assert.True(t, isType(err, qerrors.TypeValidation))

	t.Setenv("QUOTE_NUMBER_PREFIX", "QX")
	var shown struct {
		Quote struct {
			NumberPrefix string `json:"number_prefix"`
		} `json:"quote"`
	}
	executeJSON(t, &shown, "config", "show", "--config", path)
	assert.Equal(t, "QX", shown.Quote.NumberPrefix)

	var created viewResult
	executeJSON(t, &created, "quote", "create", "--customer", "Prefix Co", "--config", path)
	assert.Regexp(t, `^QX\d{12}$`, created.QuoteNo)
}
