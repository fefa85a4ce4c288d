package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"model-quote/adapters/storage"
	"model-quote/core/money"
	"model-quote/core/pricing"
	"model-quote/core/quote"
	"model-quote/core/version"
	qerrors "model-quote/internal/errors"
)

// numberAttempts bounds quote number allocation when a number is already taken
const numberAttempts = 3

// CreateQuote opens a draft quote and commits its first version
func (s *Service) CreateQuote(ctx context.Context, req CreateRequest) (sheet *quote.Sheet, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDuration("create_quote", start, err) }()

	if err := quote.ValidateCustomerName(req.CustomerName); err != nil {
		return nil, err
	}
	if err := quote.ValidateEmail(req.CustomerEmail); err != nil {
		return nil, err
	}

	now := s.now()
	currency := req.Currency
	if currency == "" {
		currency = s.opts.Currency
	}

	return s.insert(ctx, now, func(quoteNo string) *quote.Sheet {
		sh := quote.NewSheet(s.opts.NewID(), quoteNo, req.CreatedBy, currency, now)
		sh.CustomerName = strings.TrimSpace(req.CustomerName)
		sh.ProjectName = req.ProjectName
		sh.SalesName = req.SalesName
		sh.CustomerContact = req.CustomerContact
		sh.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
		sh.Remarks = req.Remarks
		sh.Terms = req.Terms
		sh.ValidUntil = s.validUntil(req.ValidUntil, now)
		return sh
	}, "quote created")
}

// insert allocates a number, builds the sheet and stores it as version 1
func (s *Service) insert(ctx context.Context, now time.Time, build func(quoteNo string) *quote.Sheet, summary string) (*quote.Sheet, error) {
	if s.numbers == nil {
		return nil, qerrors.Configuration("no quote number sequence is configured")
	}

	var lastErr error
	for attempt := 1; attempt <= numberAttempts; attempt++ {
		quoteNo, err := s.numbers.Next(ctx, now)
		if err != nil {
			return nil, err
		}
		sheet := build(quoteNo)
		v, err := s.versions.Commit(sheet, version.Other, summary)
		if err != nil {
			return nil, err
		}
		err = s.store.CreateQuote(ctx, sheet, v)
		if err == nil {
			s.committed(sheet, v)
			return sheet, nil
		}
		if !storage.IsDuplicateQuoteNo(err) {
			return nil, err
		}
		lastErr = err
		s.logger.Warn("quote number taken, allocating another", zap.String("quote_no", quoteNo), zap.Int("attempt", attempt))
	}
	return nil, lastErr
}

func (s *Service) validUntil(requested *time.Time, now time.Time) *time.Time {
	if requested != nil {
		vu := requested.UTC()
		return &vu
	}
	if s.opts.ValidDays <= 0 {
		return nil
	}
	vu := now.AddDate(0, 0, s.opts.ValidDays)
	return &vu
}

// AddOrUpdateItem adds a new line, or re-prices an existing one when ItemID is set
func (s *Service) AddOrUpdateItem(ctx context.Context, quoteNo string, req ItemRequest) (*quote.Sheet, error) {
	r, err := s.resolve(ctx, req.UsageRequest)
	if err != nil {
		return nil, err
	}
	result, err := s.calculate(r.usage)
	if err != nil {
		return nil, err
	}
	item, err := s.buildItem(r, req, result)
	if err != nil {
		return nil, err
	}

	if req.ItemID == "" {
		return s.mutate(ctx, "add_item", quoteNo, func(sheet *quote.Sheet) (change, error) {
			if err := sheet.AddItem(item.Clone()); err != nil {
				return change{}, err
			}
			return change{Type: version.ItemAdded}, nil
		})
	}

	return s.mutate(ctx, "update_item", quoteNo, func(sheet *quote.Sheet) (change, error) {
		err := sheet.UpdateItem(req.ItemID, func(it *quote.Item) error {
			*it = *item.Clone()
			return nil
		})
		if err != nil {
			return change{}, err
		}
		return change{Type: version.ItemEdited, Summary: fmt.Sprintf("item %s updated (%s)", req.ItemID, item.ProductCode)}, nil
	})
}

// AddItems prices a batch in parallel and adds every item that priced cleanly
// under one version. Failures are reported per entry.
func (s *Service) AddItems(ctx context.Context, quoteNo string, reqs []ItemRequest) (*BatchResult, error) {
	if len(reqs) == 0 {
		return nil, qerrors.Validation("items", "at least one item is required")
	}

	out := &BatchResult{Added: []string{}, Failed: []ItemFailure{}}
	fail := func(i int, err error) {
		out.Failed = append(out.Failed, ItemFailure{Index: i, ProductCode: reqs[i].ProductCode, Error: qerrors.UserMessage(err), Err: err})
	}

	bound := make([]*resolved, len(reqs))
	var usages []pricing.UsageContext
	var positions []int
	for i, req := range reqs {
		if req.ItemID != "" {
			fail(i, qerrors.Validation("item_id", "batch entries always add new items"))
			continue
		}
		r, err := s.resolve(ctx, req.UsageRequest)
		if err != nil {
			fail(i, err)
			continue
		}
		bound[i] = r
		usages = append(usages, r.usage)
		positions = append(positions, i)
	}

	results, errs := s.engine.CalculateEach(ctx, usages)
	var items []*quote.Item
	for j, i := range positions {
		scheme := ""
		if results[j] != nil {
			scheme = string(results[j].Breakdown.Scheme)
		}
		s.metrics.ObservePricing(scheme, errs[j])
		if errs[j] != nil {
			fail(i, errs[j])
			continue
		}
		item, err := s.buildItem(bound[i], reqs[i], results[j])
		if err != nil {
			fail(i, err)
			continue
		}
		items = append(items, item)
	}
	sort.SliceStable(out.Failed, func(i, j int) bool { return out.Failed[i].Index < out.Failed[j].Index })

	if len(items) == 0 {
		sheet, err := s.store.LoadQuote(ctx, quoteNo)
		if err != nil {
			return nil, err
		}
		out.Quote = sheet
		return out, nil
	}

	sheet, err := s.mutate(ctx, "add_items", quoteNo, func(sheet *quote.Sheet) (change, error) {
		for _, item := range items {
			if err := sheet.AddItem(item.Clone()); err != nil {
				return change{}, err
			}
		}
		return change{Type: version.ItemAdded, Summary: fmt.Sprintf("%d items added, %d items in quote", len(items), len(sheet.Items))}, nil
	})
	if err != nil {
		return nil, err
	}
	out.Quote = sheet
	for _, item := range items {
		out.Added = append(out.Added, item.ID)
	}
	return out, nil
}

// RemoveItem deletes a line; the remaining sort orders are kept
func (s *Service) RemoveItem(ctx context.Context, quoteNo, itemID string) (*quote.Sheet, error) {
	return s.mutate(ctx, "remove_item", quoteNo, func(sheet *quote.Sheet) (change, error) {
		removed, err := sheet.RemoveItem(itemID)
		if err != nil {
			return change{}, err
		}
		return change{Type: version.ItemRemoved, Summary: fmt.Sprintf("removed %s, %d items remain", removed.ProductCode, len(sheet.Items))}, nil
	})
}

// ReorderItems assigns sort orders 1..n following itemIDs
func (s *Service) ReorderItems(ctx context.Context, quoteNo string, itemIDs []string) (*quote.Sheet, error) {
	return s.mutate(ctx, "reorder_items", quoteNo, func(sheet *quote.Sheet) (change, error) {
		if err := sheet.Reorder(itemIDs); err != nil {
			return change{}, err
		}
		return change{Type: version.ItemEdited, Summary: "items reordered"}, nil
	})
}

// SetGlobalDiscount changes the quote-level discount
func (s *Service) SetGlobalDiscount(ctx context.Context, quoteNo string, rate string, remark string) (*quote.Sheet, error) {
	r, err := money.ParseRate("global_discount_rate", rate)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, "set_discount", quoteNo, func(sheet *quote.Sheet) (change, error) {
		if err := sheet.SetGlobalDiscount(r, remark); err != nil {
			return change{}, err
		}
		return change{Type: version.DiscountChanged}, nil
	})
}

// UpdateInfo edits descriptive fields of a draft
func (s *Service) UpdateInfo(ctx context.Context, quoteNo string, u quote.InfoUpdate) (*quote.Sheet, error) {
	if u.IsEmpty() {
		return nil, qerrors.Validation("update", "nothing to change")
	}
	return s.mutate(ctx, "update_info", quoteNo, func(sheet *quote.Sheet) (change, error) {
		if err := sheet.UpdateInfo(u); err != nil {
			return change{}, err
		}
		return change{Type: version.Other, Summary: "quote info updated"}, nil
	})
}

// FinalizeQuote confirms a draft. Empty or lapsed drafts cannot be confirmed.
func (s *Service) FinalizeQuote(ctx context.Context, quoteNo string) (*quote.Sheet, error) {
	now := s.now()
	return s.mutate(ctx, "finalize_quote", quoteNo, func(sheet *quote.Sheet) (change, error) {
		if sheet.Status == quote.StatusDraft {
			if len(sheet.Items) == 0 {
				return change{}, qerrors.Validation("items", "quote %s has no items to confirm", quoteNo)
			}
			if sheet.ValidUntil != nil && sheet.ValidUntil.Before(now) {
				return change{}, qerrors.Validation("valid_until", "quote %s lapsed at %s", quoteNo, sheet.ValidUntil.Format(time.RFC3339))
			}
		}
		if err := sheet.Transition(quote.StatusConfirmed); err != nil {
			return change{}, err
		}
		return change{Type: version.StatusChanged}, nil
	})
}

// CancelQuote cancels a draft
func (s *Service) CancelQuote(ctx context.Context, quoteNo string) (*quote.Sheet, error) {
	return s.mutate(ctx, "cancel_quote", quoteNo, func(sheet *quote.Sheet) (change, error) {
		if err := sheet.Transition(quote.StatusCancelled); err != nil {
			return change{}, err
		}
		return change{Type: version.StatusChanged}, nil
	})
}

// ExpireQuotes moves every draft whose valid_until is before now to expired
func (s *Service) ExpireQuotes(ctx context.Context, now time.Time) ([]string, error) {
	cutoff := now.UTC()
	var candidates []string
	for page := 1; ; page++ {
		p, err := s.store.ListQuotes(ctx, storage.ListFilter{
			Status:      quote.StatusDraft,
			ValidBefore: &cutoff,
			Page:        page,
			PageSize:    storage.MaxPageSize,
		})
		if err != nil {
			return nil, err
		}
		for _, q := range p.Quotes {
			candidates = append(candidates, q.QuoteNo)
		}
		if int64(page*p.PageSize) >= p.Total || len(p.Quotes) == 0 {
			break
		}
	}

	expired := []string{}
	for _, quoteNo := range candidates {
		changed := false
		_, err := s.mutate(ctx, "expire_quote", quoteNo, func(sheet *quote.Sheet) (change, error) {
			if sheet.Status != quote.StatusDraft || sheet.ValidUntil == nil || !sheet.ValidUntil.Before(cutoff) {
				return change{}, nil
			}
			if err := sheet.Transition(quote.StatusExpired); err != nil {
				return change{}, err
			}
			changed = true
			return change{Type: version.StatusChanged}, nil
		})
		if qerrors.IsType(err, qerrors.TypeNotFound) {
			continue
		}
		if err != nil {
			return expired, err
		}
		if changed {
			expired = append(expired, quoteNo)
		}
	}
	return expired, nil
}

// CloneQuote copies a quote of any status into a new draft
func (s *Service) CloneQuote(ctx context.Context, quoteNo, createdBy string) (*quote.Sheet, error) {
	source, err := s.store.LoadQuote(ctx, quoteNo)
	if err != nil {
		return nil, err
	}
	if createdBy == "" {
		createdBy = source.CreatedBy
	}

	now := s.now()
	return s.insert(ctx, now, func(newNo string) *quote.Sheet {
		c := source.Clone(s.opts.NewID(), newNo, now, s.opts.NewID)
		c.CreatedBy = createdBy
		c.ValidUntil = s.validUntil(nil, now)
		return c
	}, "cloned from "+quoteNo)
}

// RevertToVersion restores the content of an earlier version as a new version
func (s *Service) RevertToVersion(ctx context.Context, quoteNo string, number int) (*quote.Sheet, error) {
	v, err := s.store.GetVersion(ctx, quoteNo, number)
	if err != nil {
		return nil, err
	}
	snapshot, err := v.Restore()
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, "revert_quote", quoteNo, func(sheet *quote.Sheet) (change, error) {
		if err := sheet.ReplaceContent(snapshot); err != nil {
			return change{}, err
		}
		return change{Type: version.Other, Summary: fmt.Sprintf("reverted to version %d", number)}, nil
	})
}

// DeleteQuote removes a quote with its items and history
func (s *Service) DeleteQuote(ctx context.Context, quoteNo string) error {
	unlock := s.locks.Lock(quoteNo)
	defer unlock()
	if err := s.store.DeleteQuote(ctx, quoteNo); err != nil {
		return err
	}
	s.logger.Info("quote deleted", zap.String("quote_no", quoteNo))
	return nil
}

// GetQuote returns a detached copy of the quote
func (s *Service) GetQuote(ctx context.Context, quoteNo string) (*quote.Sheet, error) {
	return s.store.LoadQuote(ctx, quoteNo)
}

// GetQuoteTotals returns the current aggregates
func (s *Service) GetQuoteTotals(ctx context.Context, quoteNo string) (quote.Totals, error) {
	sheet, err := s.store.LoadQuote(ctx, quoteNo)
	if err != nil {
		return quote.Totals{}, err
	}
	return sheet.Totals(), nil
}

// ExportQuote returns the resolved read-only view renderers consume
func (s *Service) ExportQuote(ctx context.Context, quoteNo string) (quote.View, error) {
	sheet, err := s.store.LoadQuote(ctx, quoteNo)
	if err != nil {
		return quote.View{}, err
	}
	return sheet.View(), nil
}

// ListQuotes lists quotes, newest first
func (s *Service) ListQuotes(ctx context.Context, filter storage.ListFilter) (*storage.Page, error) {
	return s.store.ListQuotes(ctx, filter)
}

// ListVersions returns the version history of a quote
func (s *Service) ListVersions(ctx context.Context, quoteNo string) ([]*version.Version, error) {
	return s.store.ListVersions(ctx, quoteNo)
}

// GetVersion returns one version of a quote
func (s *Service) GetVersion(ctx context.Context, quoteNo string, number int) (*version.Version, error) {
	return s.store.GetVersion(ctx, quoteNo, number)
}
