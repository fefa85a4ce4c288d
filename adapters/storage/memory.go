package storage

import (
	"context"
	"sort"
	"sync"

	"model-quote/core/quote"
	"model-quote/core/version"
	qerrors "model-quote/internal/errors"
)

type memoryEntry struct {
	sheet    *quote.Sheet
	versions []*version.Version
}

// MemoryStore is an in-memory storage backend.
// Quotes are deep-copied on the way in and out.
type MemoryStore struct {
	quotes map[string]*memoryEntry
	mu     sync.RWMutex
}

// NewMemoryStore creates a memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		quotes: make(map[string]*memoryEntry),
	}
}

func (s *MemoryStore) CreateQuote(ctx context.Context, sheet *quote.Sheet, v *version.Version) error {
	if err := checkCommit(sheet, v); err != nil {
		return err
	}
	if v.Number != 1 {
		return qerrors.Inconsistency("quote %s must be created at version 1, got %d", sheet.QuoteNo, v.Number)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.quotes[sheet.QuoteNo]; exists {
		return duplicateQuote(sheet.QuoteNo)
	}
	s.quotes[sheet.QuoteNo] = &memoryEntry{
		sheet:    sheet.DeepCopy(),
		versions: []*version.Version{v},
	}
	return nil
}

func (s *MemoryStore) LoadQuote(ctx context.Context, quoteNo string) (*quote.Sheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.quotes[quoteNo]
	if !ok {
		return nil, qerrors.NotFound("quote", quoteNo)
	}
	return entry.sheet.DeepCopy(), nil
}

func (s *MemoryStore) SaveQuote(ctx context.Context, sheet *quote.Sheet, v *version.Version) error {
	if err := checkCommit(sheet, v); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.quotes[sheet.QuoteNo]
	if !ok {
		return qerrors.NotFound("quote", sheet.QuoteNo)
	}
	if entry.sheet.Version != v.Number-1 {
		return StaleVersion(sheet.QuoteNo, entry.sheet.Version, v.Number)
	}
	entry.sheet = sheet.DeepCopy()
	entry.versions = append(entry.versions, v)
	return nil
}

func (s *MemoryStore) DeleteQuote(ctx context.Context, quoteNo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.quotes[quoteNo]; !ok {
		return qerrors.NotFound("quote", quoteNo)
	}
	delete(s.quotes, quoteNo)
	return nil
}

func (s *MemoryStore) ListQuotes(ctx context.Context, filter ListFilter) (*Page, error) {
	filter = filter.normalize()

	s.mu.RLock()
	var matched []*quote.Sheet
	for _, entry := range s.quotes {
		if filter.matches(entry.sheet) {
			matched = append(matched, entry.sheet.DeepCopy())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].QuoteNo > matched[j].QuoteNo
	})

	page := &Page{Total: int64(len(matched)), Page: filter.Page, PageSize: filter.PageSize, Quotes: []*quote.Sheet{}}
	if start := filter.offset(); start < len(matched) {
		end := start + filter.PageSize
		if end > len(matched) {
			end = len(matched)
		}
		page.Quotes = matched[start:end]
	}
	return page, nil
}

func (s *MemoryStore) ListVersions(ctx context.Context, quoteNo string) ([]*version.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.quotes[quoteNo]
	if !ok {
		return nil, qerrors.NotFound("quote", quoteNo)
	}
	out := make([]*version.Version, len(entry.versions))
	for i, v := range entry.versions {
		cp := *v
		out[i] = &cp
	}
	return out, nil
}

func (s *MemoryStore) GetVersion(ctx context.Context, quoteNo string, number int) (*version.Version, error) {
	versions, err := s.ListVersions(ctx, quoteNo)
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		if v.Number == number {
			return v, nil
		}
	}
	return nil, qerrors.NotFound("quote version", versionKey(quoteNo, number))
}

func (s *MemoryStore) Close() error {
	return nil
}
