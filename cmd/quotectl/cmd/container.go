package cmd

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/dig"
	"go.uber.org/zap"
	"gorm.io/gorm"

	hclcatalog "model-quote/adapters/catalog"
	"model-quote/adapters/sequence"
	"model-quote/adapters/storage"
	"model-quote/core/catalog"
	"model-quote/core/output"
	"model-quote/core/pricing"
	"model-quote/core/service"
	"model-quote/core/version"
	"model-quote/internal/config"
	"model-quote/internal/db"
	"model-quote/internal/logging"
	"model-quote/internal/metrics"
)

// cleanup collects resources released when a command ends
type cleanup struct {
	fns []func() error
}

func (c *cleanup) add(fn func() error) {
	c.fns = append(c.fns, fn)
}

func (c *cleanup) run() error {
	var errs []error
	for i := len(c.fns) - 1; i >= 0; i-- {
		errs = append(errs, c.fns[i]())
	}
	return errors.Join(errs...)
}

// backend is the opened quote store; conn is nil for the memory store
type backend struct {
	store storage.Store
	conn  *gorm.DB
}

// app is what a command body works with
type app struct {
	svc       *service.Service
	catalog   catalog.Catalog
	metrics   *metrics.Recorder
	formatter output.Formatter
	logger    *zap.Logger
	out       io.Writer
}

type appParams struct {
	dig.In

	Service   *service.Service
	Catalog   catalog.Catalog
	Metrics   *metrics.Recorder `optional:"true"`
	Formatter output.Formatter
	Logger    *zap.Logger
	Cleanup   *cleanup
}

type serviceParams struct {
	dig.In

	Engine   *pricing.Engine
	Catalog  catalog.Catalog
	Store    service.Store
	Numbers  service.Numberer
	Versions *version.Manager
	Metrics  *metrics.Recorder `optional:"true"`
	Logger   *zap.Logger
	Pricing  *config.PricingConfig
	Quote    *config.QuoteConfig
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, err
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
	}
	config.Set(cfg)
	return cfg, nil
}

func (o *rootOptions) buildContainer(cmd *cobra.Command) (*dig.Container, error) {
	c := dig.New()
	providers := []interface{}{
		func() *cleanup { return &cleanup{} },
		o.loadConfig,
		config.Split,
		func(cfg *logging.Config, cl *cleanup) (*zap.Logger, error) {
			return provideLogger(cfg, cl, cmd.CommandPath())
		},
		provideBackend,
		func(b *backend) service.Store { return b.store },
		provideSequencer,
		func(q *config.QuoteConfig, seq sequence.Sequencer) service.Numberer {
			return sequence.NewNumberer(q.NumberPrefix, seq)
		},
		provideCatalog,
		func(p *config.PricingConfig) *pricing.Engine {
			return pricing.NewEngine(pricing.Defaults{
				ThinkingMultiplier: p.ThinkingMultiplier,
				BatchMultiplier:    p.BatchMultiplier,
				Concurrency:        p.BatchConcurrency,
			})
		},
		func(q *config.QuoteConfig) *version.Manager {
			return version.NewManager(version.WithSummaryLength(q.SummaryMaxLength))
		},
		provideMetrics,
		provideService,
		func() (output.Formatter, error) {
			return output.New(o.format, output.Options{NoColor: o.noColor})
		},
	}
	for _, p := range providers {
		if err := c.Provide(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func provideLogger(cfg *logging.Config, c *cleanup, command string) (*zap.Logger, error) {
	if err := logging.Initialize(*cfg); err != nil {
		return nil, err
	}
	c.add(func() error {
		logging.Sync()
		return nil
	})
	return logging.With(zap.String("command", command)), nil
}

func provideBackend(s *config.StorageConfig, c *cleanup, log *zap.Logger) (*backend, error) {
	if strings.EqualFold(strings.TrimSpace(s.DSN), string(storage.BackendMemory)) {
		log.Debug("using in-memory quote store")
		return &backend{store: storage.NewMemoryStore()}, nil
	}

	conn, err := db.Open(s.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(conn); err != nil {
		return nil, err
	}
	store := storage.NewGormStore(conn)
	c.add(store.Close)
	log.Debug("opened quote store", zap.String("backend", string(store.Backend())), zap.String("dialect", db.DialectName(conn)))
	return &backend{store: store, conn: conn}, nil
}

func provideSequencer(r *config.RedisConfig, b *backend, c *cleanup, log *zap.Logger) (sequence.Sequencer, error) {
	switch {
	case r.Enabled:
		client := redis.NewClient(&redis.Options{Addr: r.Addr, Password: r.Password, DB: r.DB})
		c.add(client.Close)
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, err
		}
		log.Debug("quote numbers from redis", zap.String("addr", r.Addr))
		return sequence.NewRedisSequencer(client), nil
	case b.conn != nil:
		return sequence.NewGormSequencer(b.conn), nil
	default:
		return sequence.NewMemorySequencer(), nil
	}
}

func provideCatalog(c *config.CatalogConfig) (catalog.Catalog, error) {
	cat, err := hclcatalog.LoadHCL(c.Path)
	if err != nil {
		return nil, err
	}
	return cat, nil
}

func provideMetrics(m *config.MetricsConfig) *metrics.Recorder {
	if !m.Enabled {
		return nil
	}
	return metrics.New(m.Namespace)
}

func provideService(p serviceParams) *service.Service {
	return service.New(service.Deps{
		Engine:   p.Engine,
		Catalog:  p.Catalog,
		Store:    p.Store,
		Numbers:  p.Numbers,
		Versions: p.Versions,
		Metrics:  p.Metrics,
		Logger:   p.Logger,
	}, service.Options{
		Currency:      p.Pricing.DefaultCurrency,
		DefaultRegion: p.Pricing.DefaultRegion,
		ValidDays:     p.Quote.ValidDays,
		MaxRetries:    p.Quote.MaxRetries,
	})
}

// run resolves the application and runs fn with it
func (o *rootOptions) run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	c, err := o.buildContainer(cmd)
	if err != nil {
		return err
	}
	return c.Invoke(func(p appParams) (err error) {
		defer func() {
			if cerr := p.Cleanup.run(); err == nil {
				err = cerr
			}
		}()
		a := &app{
			svc:       p.Service,
			catalog:   p.Catalog,
			metrics:   p.Metrics,
			formatter: p.Formatter,
			logger:    p.Logger,
			out:       cmd.OutOrStdout(),
		}
		err = fn(cmd.Context(), a)
		o.printMetrics(cmd, a)
		return err
	})
}
