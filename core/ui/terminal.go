// Package ui - Terminal rendering helpers
// Tables, headers and status lines for the quote CLI.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

// Colors for terminal output
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
)

// Writer is the UI output destination
type Writer struct {
	out     io.Writer
	noColor bool
	err     error
}

// NewWriter creates a UI writer
func NewWriter(out io.Writer, noColor bool) *Writer {
	if out == nil {
		out = os.Stdout
	}
	return &Writer{out: out, noColor: noColor}
}

// Err returns the first write error
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) color(c, text string) string {
	if w.noColor {
		return text
	}
	return c + text + Reset
}

// Print writes formatted text
func (w *Writer) Print(format string, args ...interface{}) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.out, format, args...)
}

// Println writes formatted text and a newline
func (w *Writer) Println(format string, args ...interface{}) {
	w.Print(format+"\n", args...)
}

// Header prints a section header
func (w *Writer) Header(title string) {
	w.Println("%s", w.color(Bold+Cyan, "━━━ "+title+" ━━━"))
}

// Field prints an aligned label/value line; empty values are skipped
func (w *Writer) Field(label, value string) {
	if value == "" {
		return
	}
	w.Println("  %s %s", w.color(Dim, pad(label+":", 18)), value)
}

// Success prints a success message
func (w *Writer) Success(format string, args ...interface{}) {
	w.Println("%s%s", w.color(Green, "✓ "), fmt.Sprintf(format, args...))
}

// Warning prints a warning
func (w *Writer) Warning(format string, args ...interface{}) {
	w.Println("%s%s", w.color(Yellow, "⚠ "), fmt.Sprintf(format, args...))
}

// Error prints an error
func (w *Writer) Error(format string, args ...interface{}) {
	w.Println("%s%s", w.color(Red, "✗ "), fmt.Sprintf(format, args...))
}

// Table renders a table
type Table struct {
	w       *Writer
	headers []string
	right   map[int]bool
	rows    [][]string
	widths  []int
}

// NewTable creates a table
func (w *Writer) NewTable(headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	return &Table{w: w, headers: headers, right: map[int]bool{}, widths: widths}
}

// AlignRight right-aligns the given columns, for amounts
func (t *Table) AlignRight(cols ...int) *Table {
	for _, c := range cols {
		t.right[c] = true
	}
	return t
}

// AddRow adds a row, padding or truncating cells to the header count
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		}
		if n := utf8.RuneCountInString(row[i]); n > t.widths[i] {
			t.widths[i] = n
		}
	}
	t.rows = append(t.rows, row)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Render prints the table
func (t *Table) Render() {
	t.w.Println("%s", t.w.color(Bold, t.line(t.headers)))

	sep := make([]string, len(t.widths))
	for i, w := range t.widths {
		sep[i] = strings.Repeat("─", w)
	}
	t.w.Println("%s", strings.Join(sep, "─┼─"))

	for _, row := range t.rows {
		t.w.Println("%s", t.line(row))
	}
}

func (t *Table) line(cells []string) string {
	out := make([]string, len(cells))
	for i, c := range cells {
		if t.right[i] {
			out[i] = padLeft(c, t.widths[i])
		} else {
			out[i] = pad(c, t.widths[i])
		}
	}
	return strings.TrimRight(strings.Join(out, " │ "), " ")
}

// TotalsBox renders the quote aggregates
type TotalsBox struct {
	w        *Writer
	Currency string
	Original string
	Discount string
	Total    string
}

// NewTotalsBox creates a totals box
func (w *Writer) NewTotalsBox() *TotalsBox {
	return &TotalsBox{w: w}
}

// Render prints the box
func (b *TotalsBox) Render() {
	lines := []string{
		fmt.Sprintf("  Original:  %s %s", b.Currency, b.Original),
		fmt.Sprintf("  Discount:  %s", b.Discount),
		fmt.Sprintf("  Total:     %s %s", b.Currency, b.Total),
	}
	width := 0
	for _, l := range lines {
		if n := utf8.RuneCountInString(l); n > width {
			width = n
		}
	}
	width += 2

	b.w.Println("%s", b.w.color(Bold, "╭"+strings.Repeat("─", width)+"╮"))
	for i, l := range lines {
		c := Dim
		if i == len(lines)-1 {
			c = Green
		}
		b.w.Println("%s%s%s", b.w.color(Bold, "│"), b.w.color(c, pad(l, width)), b.w.color(Bold, "│"))
	}
	b.w.Println("%s", b.w.color(Bold, "╰"+strings.Repeat("─", width)+"╯"))
}

func pad(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func padLeft(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return strings.Repeat(" ", width-n) + s
	}
	return s
}
