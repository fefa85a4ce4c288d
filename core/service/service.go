// Package service orchestrates quote mutations: price, mutate, recompute,
// commit one version and save it atomically. Mutations of one quote are
// serialized; different quotes never share a lock.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"model-quote/adapters/storage"
	"model-quote/core/catalog"
	"model-quote/core/pricing"
	"model-quote/core/quote"
	"model-quote/core/version"
	"model-quote/internal/metrics"
)

// Store is the persistence the service needs
type Store interface {
	CreateQuote(ctx context.Context, sheet *quote.Sheet, v *version.Version) error
	LoadQuote(ctx context.Context, quoteNo string) (*quote.Sheet, error)
	SaveQuote(ctx context.Context, sheet *quote.Sheet, v *version.Version) error
	DeleteQuote(ctx context.Context, quoteNo string) error
	ListQuotes(ctx context.Context, filter storage.ListFilter) (*storage.Page, error)
	ListVersions(ctx context.Context, quoteNo string) ([]*version.Version, error)
	GetVersion(ctx context.Context, quoteNo string, number int) (*version.Version, error)
}

// Numberer allocates quote numbers
type Numberer interface {
	Next(ctx context.Context, day time.Time) (string, error)
}

// Options tunes the service
type Options struct {
	Currency      string
	DefaultRegion string
	ValidDays     int
	MaxRetries    int
	Now           func() time.Time
	NewID         func() string
}

// Deps are the collaborators of the service
type Deps struct {
	Engine   *pricing.Engine
	Catalog  catalog.Catalog
	Store    Store
	Numbers  Numberer
	Versions *version.Manager
	Metrics  *metrics.Recorder
	Logger   *zap.Logger
}

// Service is the quoting entry point for presentation layers
type Service struct {
	engine   *pricing.Engine
	catalog  catalog.Catalog
	store    Store
	numbers  Numberer
	versions *version.Manager
	metrics  *metrics.Recorder
	logger   *zap.Logger
	locks    *keyedLocker
	opts     Options
}

// New creates a service
func New(deps Deps, opts Options) *Service {
	if opts.Currency == "" {
		opts.Currency = "CNY"
	}
	if opts.DefaultRegion == "" {
		opts.DefaultRegion = quote.DefaultRegion
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 3
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if deps.Engine == nil {
		deps.Engine = pricing.NewEngine(pricing.Defaults{})
	}
	if deps.Versions == nil {
		deps.Versions = version.NewManager(version.WithClock(opts.Now))
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Service{
		engine:   deps.Engine,
		catalog:  deps.Catalog,
		store:    deps.Store,
		numbers:  deps.Numbers,
		versions: deps.Versions,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		locks:    newKeyedLocker(),
		opts:     opts,
	}
}

// change describes what a mutation did; an empty Type means nothing to commit
type change struct {
	Type    version.ChangeType
	Summary string
}

// mutate runs fn against a freshly loaded quote under the quote's lock and
// persists exactly one version. A concurrent writer surfaces as a stale-version
// error from the store, which reloads and retries fn.
func (s *Service) mutate(ctx context.Context, op, quoteNo string, fn func(*quote.Sheet) (change, error)) (sheet *quote.Sheet, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDuration(op, start, err) }()

	unlock := s.locks.Lock(quoteNo)
	defer unlock()

	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current, err := s.store.LoadQuote(ctx, quoteNo)
		if err != nil {
			return nil, err
		}
		ch, err := fn(current)
		if err != nil {
			return nil, err
		}
		if ch.Type == "" {
			return current, nil
		}

		v, err := s.versions.Commit(current, ch.Type, ch.Summary)
		if err != nil {
			return nil, err
		}
		err = s.store.SaveQuote(ctx, current, v)
		if err == nil {
			s.committed(current, v)
			return current, nil
		}
		if !storage.IsStaleVersion(err) {
			return nil, err
		}

		lastErr = err
		s.metrics.ObserveRetry(op)
		s.logger.Warn("quote save conflict, retrying",
			zap.String("operation", op),
			zap.String("quote_no", quoteNo),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return nil, lastErr
}

func (s *Service) committed(sheet *quote.Sheet, v *version.Version) {
	s.metrics.ObserveCommit(string(v.ChangeType))
	s.logger.Info("quote version committed",
		zap.String("quote_no", sheet.QuoteNo),
		zap.Int("version", v.Number),
		zap.String("change_type", string(v.ChangeType)),
		zap.String("total_original_amount", sheet.TotalOriginalAmount.StringFixed(6)),
		zap.String("total_amount", sheet.TotalAmount.StringFixed(6)))
}

func (s *Service) now() time.Time {
	return s.opts.Now().UTC()
}
