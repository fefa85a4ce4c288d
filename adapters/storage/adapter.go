// Package storage persists quotes, their items and their version history.
// Supports an in-memory backend and GORM over SQLite or PostgreSQL.
package storage

import (
	"context"
	"strings"
	"time"

	"model-quote/core/quote"
	"model-quote/core/version"
	qerrors "model-quote/internal/errors"
)

// Backend is a storage backend type
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Pagination bounds
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Store is the storage interface
type Store interface {
	// CreateQuote inserts a new quote with its first version
	CreateQuote(ctx context.Context, sheet *quote.Sheet, v *version.Version) error

	// LoadQuote returns a detached copy of the stored quote
	LoadQuote(ctx context.Context, quoteNo string) (*quote.Sheet, error)

	// SaveQuote atomically replaces the quote and its items and appends v.
	// It fails with an InconsistencyError unless the stored version is v.Number-1.
	SaveQuote(ctx context.Context, sheet *quote.Sheet, v *version.Version) error

	// DeleteQuote removes the quote with its items and versions
	DeleteQuote(ctx context.Context, quoteNo string) error

	// ListQuotes returns one page of quotes, newest first
	ListQuotes(ctx context.Context, filter ListFilter) (*Page, error)

	// ListVersions returns the version history in ascending order
	ListVersions(ctx context.Context, quoteNo string) ([]*version.Version, error)

	// GetVersion returns one version
	GetVersion(ctx context.Context, quoteNo string, number int) (*version.Version, error)

	// Close closes the store
	Close() error
}

// ListFilter filters quote listing
type ListFilter struct {
	// CustomerName matches case-insensitively anywhere in the name
	CustomerName string
	Status       quote.Status
	CreatedBy    string

	// ValidBefore selects quotes whose valid_until is set and earlier than the instant
	ValidBefore *time.Time

	Page     int
	PageSize int
}

// Page is one page of listed quotes
type Page struct {
	Quotes   []*quote.Sheet `json:"quotes"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// normalize applies pagination defaults
func (f ListFilter) normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

func (f ListFilter) offset() int {
	return (f.Page - 1) * f.PageSize
}

// matches applies the filter to one quote
func (f ListFilter) matches(s *quote.Sheet) bool {
	if f.CustomerName != "" && !strings.Contains(strings.ToLower(s.CustomerName), strings.ToLower(f.CustomerName)) {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.CreatedBy != "" && s.CreatedBy != f.CreatedBy {
		return false
	}
	if f.ValidBefore != nil && (s.ValidUntil == nil || !s.ValidUntil.Before(*f.ValidBefore)) {
		return false
	}
	return true
}

// checkCommit verifies a sheet/version pair before anything is written
func checkCommit(sheet *quote.Sheet, v *version.Version) error {
	if sheet == nil || v == nil {
		return qerrors.Validation("quote", "quote and version are required")
	}
	if v.QuoteNo != sheet.QuoteNo || v.QuoteID != sheet.ID {
		return qerrors.Inconsistency("version %d belongs to quote %s, not %s", v.Number, v.QuoteNo, sheet.QuoteNo)
	}
	if sheet.Version != v.Number {
		return qerrors.Inconsistency("quote %s is at version %d but version %d is being saved", sheet.QuoteNo, sheet.Version, v.Number)
	}
	if err := v.Verify(); err != nil {
		return err
	}
	return sheet.CheckInvariants()
}

// StaleVersion reports a save that lost the race against another writer
func StaleVersion(quoteNo string, stored, saving int) error {
	return qerrors.Inconsistency("quote %s was modified concurrently: stored version %d, saving version %d", quoteNo, stored, saving).
		WithContext("quote_no", quoteNo).
		WithContext("stored_version", stored).
		WithContext("conflict", "version")
}

// IsStaleVersion reports whether a save failed only because the stored version moved on.
// Other inconsistency errors are deterministic and retrying them cannot succeed.
func IsStaleVersion(err error) bool {
	e, ok := qerrors.As(err)
	return ok && e.Type == qerrors.TypeInconsistency && e.Context["conflict"] == "version"
}

func duplicateQuote(quoteNo string) error {
	return qerrors.Inconsistency("quote number %s already exists", quoteNo).
		WithContext("quote_no", quoteNo).
		WithContext("conflict", "quote_no")
}

// IsDuplicateQuoteNo reports whether CreateQuote failed because the number is taken
func IsDuplicateQuoteNo(err error) bool {
	e, ok := qerrors.As(err)
	return ok && e.Type == qerrors.TypeInconsistency && e.Context["conflict"] == "quote_no"
}
