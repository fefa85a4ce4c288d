// Package config provides configuration management.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/dig"
	"gopkg.in/yaml.v3"

	qerrors "model-quote/internal/errors"
	"model-quote/internal/logging"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "QUOTE_"

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version" yaml:"version"`

	// Pricing contains pricing engine defaults
	Pricing PricingConfig `json:"pricing" yaml:"pricing" envPrefix:"PRICING_"`

	// Quote contains quote lifecycle settings
	Quote QuoteConfig `json:"quote" yaml:"quote"`

	// Storage contains persistence settings
	Storage StorageConfig `json:"storage" yaml:"storage" envPrefix:"STORAGE_"`

	// Redis configures the quote number sequence
	Redis RedisConfig `json:"redis" yaml:"redis" envPrefix:"REDIS_"`

	// Catalog locates the product catalog
	Catalog CatalogConfig `json:"catalog" yaml:"catalog" envPrefix:"CATALOG_"`

	// Metrics controls the prometheus recorder
	Metrics MetricsConfig `json:"metrics" yaml:"metrics" envPrefix:"METRICS_"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging" yaml:"logging" envPrefix:"LOG_"`
}

// PricingConfig contains pricing-related settings
type PricingConfig struct {
	// DefaultCurrency is the currency of new quotes
	DefaultCurrency string `json:"default_currency" yaml:"default_currency" env:"DEFAULT_CURRENCY"`

	// DefaultRegion is used when an item names no region
	DefaultRegion string `json:"default_region" yaml:"default_region" env:"DEFAULT_REGION"`

	// ThinkingMultiplier applies to the reasoning share of tokens
	ThinkingMultiplier decimal.Decimal `json:"thinking_multiplier" yaml:"thinking_multiplier" env:"THINKING_MULTIPLIER"`

	// BatchMultiplier applies to the batch share of calls
	BatchMultiplier decimal.Decimal `json:"batch_multiplier" yaml:"batch_multiplier" env:"BATCH_MULTIPLIER"`

	// BatchConcurrency bounds parallel pricing
	BatchConcurrency int `json:"batch_concurrency" yaml:"batch_concurrency" env:"BATCH_CONCURRENCY"`
}

// QuoteConfig contains quote lifecycle settings
type QuoteConfig struct {
	// NumberPrefix starts every quote number
	NumberPrefix string `json:"number_prefix" yaml:"number_prefix" env:"NUMBER_PREFIX"`

	// ValidDays sets valid_until on new quotes; 0 leaves it open
	ValidDays int `json:"valid_days" yaml:"valid_days" env:"VALID_DAYS"`

	// MaxRetries bounds optimistic-concurrency retries of one mutation
	MaxRetries int `json:"max_retries" yaml:"max_retries" env:"MAX_RETRIES"`

	// SummaryMaxLength truncates version change summaries, in runes
	SummaryMaxLength int `json:"summary_max_length" yaml:"summary_max_length" env:"SUMMARY_MAX_LENGTH"`
}

// StorageConfig contains persistence settings
type StorageConfig struct {
	// DSN is a postgres URL/keyword DSN or a sqlite path
	DSN string `json:"dsn" yaml:"dsn" env:"DSN"`
}

// RedisConfig configures the redis connection
type RedisConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" env:"ENABLED"`
	Addr     string `json:"addr" yaml:"addr" env:"ADDR"`
	Password string `json:"password,omitempty" yaml:"password,omitempty" env:"PASSWORD"`
	DB       int    `json:"db" yaml:"db" env:"DB"`
}

// CatalogConfig locates the product catalog
type CatalogConfig struct {
	// Path is an HCL catalog file
	Path string `json:"path" yaml:"path" env:"PATH"`
}

// MetricsConfig controls the prometheus recorder
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled" env:"ENABLED"`
	Namespace string `json:"namespace" yaml:"namespace" env:"NAMESPACE"`
}

// Default returns a default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dbPath := filepath.Join(homeDir, ".model-quote", "quotes.db")

	return &Config{
		Version: "1.0",
		Pricing: PricingConfig{
			DefaultCurrency:    "CNY",
			DefaultRegion:      "cn-beijing",
			ThinkingMultiplier: decimal.RequireFromString("1.5"),
			BatchMultiplier:    decimal.RequireFromString("0.5"),
			BatchConcurrency:   8,
		},
		Quote: QuoteConfig{
			NumberPrefix:     "QT",
			ValidDays:        30,
			MaxRetries:       3,
			SummaryMaxLength: 500,
		},
		Storage: StorageConfig{
			DSN: dbPath,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Catalog: CatalogConfig{
			Path: "configs/catalog.hcl",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "model_quote",
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file, then applies .env and QUOTE_* overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := decode(path, data, config); err != nil {
				return nil, qerrors.Wrapf(qerrors.TypeConfig, err, "parse config %s", path)
			}
		case !os.IsNotExist(err):
			return nil, qerrors.Wrapf(qerrors.TypeConfig, err, "read config %s", path)
		}
	}

	_ = godotenv.Load()
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, qerrors.Wrap(qerrors.TypeConfig, "apply environment overrides", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func decode(path string, data []byte, config *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, config)
	}
	return json.Unmarshal(data, config)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Pricing.DefaultCurrency) == "" {
		return qerrors.Configuration("pricing.default_currency is required")
	}
	if !c.Pricing.ThinkingMultiplier.IsPositive() {
		return qerrors.Configuration("pricing.thinking_multiplier must be positive, got %s", c.Pricing.ThinkingMultiplier.String())
	}
	if !c.Pricing.BatchMultiplier.IsPositive() {
		return qerrors.Configuration("pricing.batch_multiplier must be positive, got %s", c.Pricing.BatchMultiplier.String())
	}
	if c.Pricing.BatchConcurrency < 1 {
		return qerrors.Configuration("pricing.batch_concurrency must be at least 1")
	}
	if c.Quote.MaxRetries < 1 {
		return qerrors.Configuration("quote.max_retries must be at least 1")
	}
	if c.Quote.ValidDays < 0 {
		return qerrors.Configuration("quote.valid_days must not be negative")
	}
	if c.Quote.SummaryMaxLength < 1 {
		return qerrors.Configuration("quote.summary_max_length must be at least 1")
	}
	return nil
}

// Save saves configuration to a file, as YAML when the extension asks for it
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Global configuration instance
var globalConfig = Default()

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Set sets the global configuration
func Set(config *Config) {
	globalConfig = config
}

// Sections exposes each config section to a dig container
type Sections struct {
	dig.Out
	*PricingConfig
	*QuoteConfig
	*StorageConfig
	*RedisConfig
	*CatalogConfig
	*MetricsConfig
	*logging.Config
}

// Split returns pointers to the sections of c
func Split(c *Config) Sections {
	return Sections{
		dig.Out{},
		&c.Pricing,
		&c.Quote,
		&c.Storage,
		&c.Redis,
		&c.Catalog,
		&c.Metrics,
		&c.Logging,
	}
}
