package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableAlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, true)
	tbl := w.NewTable("Product", "Region", "Subtotal").AlignRight(2)
	tbl.AddRow("qwen-plus", "华北2（北京）", "2.160000")
	tbl.AddRow("wanx-v1", "cn-shanghai", "10.000000", "ignored")
	tbl.Render()
	require.NoError(t, w.Err())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Product   │ Region      │  Subtotal", lines[0])
	assert.Equal(t, "qwen-plus │ 华北2（北京）     │  2.160000", lines[2])
	assert.Equal(t, "wanx-v1   │ cn-shanghai │ 10.000000", lines[3])
	assert.Equal(t, 2, tbl.Len())
}

func TestFieldSkipsEmptyValues(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, true)
	w.Field("Customer", "Acme")
	w.Field("Project", "")
	assert.Equal(t, "  Customer:          Acme\n", buf.String())
}

func TestColorCanBeDisabled(t *testing.T) {
	var plain, colored bytes.Buffer
	NewWriter(&plain, true).Success("saved %s", "QT1")
	NewWriter(&colored, false).Success("saved %s", "QT1")
	assert.Equal(t, "✓ saved QT1\n", plain.String())
	assert.Contains(t, colored.String(), Green)
}

func TestTotalsBox(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, true)
	box := w.NewTotalsBox()
	box.Currency, box.Original, box.Discount, box.Total = "CNY", "3.160000", "0.9500", "3.002000"
	box.Render()
	out := buf.String()
	assert.Contains(t, out, "Total:     CNY 3.002000")
	assert.True(t, strings.HasPrefix(out, "╭"))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestWriterKeepsFirstError(t *testing.T) {
	w := NewWriter(failingWriter{}, true)
	w.Println("one")
	w.Println("two")
	assert.EqualError(t, w.Err(), "closed")
}
