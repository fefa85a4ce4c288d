// Package output renders quotes, prices and histories for people and machines.
// Renderers only read resolved views; they never price anything themselves.
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"model-quote/adapters/storage"
	"model-quote/core/catalog"
	"model-quote/core/quote"
	"model-quote/core/service"
	"model-quote/core/version"
	qerrors "model-quote/internal/errors"
)

// Format represents output format type
type Format string

const (
	// FormatCLI is a human-readable CLI table
	FormatCLI Format = "cli"

	// FormatJSON is machine-readable JSON
	FormatJSON Format = "json"
)

// Formatter produces output in a specific format
type Formatter interface {
	// Format returns the format type
	Format() Format

	Quote(w io.Writer, v quote.View) error
	Price(w io.Writer, p *service.PriceQuote) error
	Totals(w io.Writer, quoteNo string, t quote.Totals) error
	Batch(w io.Writer, b *service.BatchResult) error
	Versions(w io.Writer, quoteNo string, versions []*version.Version) error
	Quotes(w io.Writer, page *storage.Page) error
	Products(w io.Writer, products []*catalog.Product) error
}

// Options tunes formatter construction
type Options struct {
	NoColor bool
}

// New returns the formatter for a format name
func New(format string, opts Options) (Formatter, error) {
	switch Format(strings.ToLower(format)) {
	case FormatCLI, "":
		return &cliFormatter{noColor: opts.NoColor}, nil
	case FormatJSON:
		return jsonFormatter{}, nil
	}
	return nil, qerrors.Validation("format", "unknown output format %q, expected one of %s", format, strings.Join(Names(), ", "))
}

// Names lists the supported formats
func Names() []string {
	names := []string{string(FormatCLI), string(FormatJSON)}
	sort.Strings(names)
	return names
}

func optional(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
