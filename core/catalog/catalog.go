// Package catalog - Authoritative AI-model product catalog
// Products carry per-region prices; the quote core only reads them.
package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"model-quote/core/pricing"
	qerrors "model-quote/internal/errors"
)

// Modality classifies what a model consumes or produces
type Modality string

const (
	ModalityText       Modality = "text"
	ModalityImage      Modality = "image"
	ModalityAudio      Modality = "audio"
	ModalityVideo      Modality = "video"
	ModalityMultimodal Modality = "multimodal"
	ModalityUnknown    Modality = "unknown"
)

// Price is the billing configuration of a product in one region
type Price struct {
	Region             string
	BasePrice          decimal.Decimal
	OutputPrice        *decimal.Decimal
	BillingUnit        pricing.BillingUnit
	ThinkingMultiplier decimal.Decimal
	BatchMultiplier    decimal.Decimal
	Tiers              []pricing.Tier
}

// Product is a catalog entry
type Product struct {
	Code        string
	Name        string
	Category    string
	Modality    Modality
	Capability  string
	ModelType   string
	ContextSpec string
	Prices      map[string]Price
}

// Catalog is the read contract the quote core consumes
type Catalog interface {
	// GetBasePrice returns the unit price of a product in a region
	GetBasePrice(ctx context.Context, productCode, region string) (decimal.Decimal, error)

	// GetPrice returns the full billing configuration
	GetPrice(ctx context.Context, productCode, region string) (Price, error)

	// GetProduct returns the product entry
	GetProduct(ctx context.Context, productCode string) (*Product, error)

	// List returns all products sorted by code
	List(ctx context.Context) ([]*Product, error)
}

// MemoryCatalog is an in-memory Catalog
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[string]*Product
}

// NewMemoryCatalog creates an empty catalog
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		products: make(map[string]*Product),
	}
}

// Register validates and adds a product, replacing any entry with the same code
func (c *MemoryCatalog) Register(p Product) error {
	if strings.TrimSpace(p.Code) == "" {
		return qerrors.Validation("product_code", "is required")
	}
	if err := Validate(&p, DefaultValidationRules()); err != nil {
		return err
	}
	if p.Modality == "" {
		p.Modality = ModalityForCategory(p.Category)
	}
	if p.Capability == "" {
		p.Capability = CapabilityForCategory(p.Category)
	}
	if p.ModelType == "" {
		p.ModelType = ModelTypeForCategory(p.Category)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	stored := p
	stored.Prices = make(map[string]Price, len(p.Prices))
	for region, price := range p.Prices {
		price.Region = region
		stored.Prices[region] = price
	}
	c.products[p.Code] = &stored
	return nil
}

// GetBasePrice implements Catalog
func (c *MemoryCatalog) GetBasePrice(ctx context.Context, productCode, region string) (decimal.Decimal, error) {
	price, err := c.GetPrice(ctx, productCode, region)
	if err != nil {
		return decimal.Zero, err
	}
	return price.BasePrice, nil
}

// GetPrice implements Catalog
func (c *MemoryCatalog) GetPrice(_ context.Context, productCode, region string) (Price, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[productCode]
	if !ok {
		return Price{}, qerrors.NotFound("product", productCode)
	}
	price, ok := p.Prices[region]
	if !ok {
		return Price{}, qerrors.NotFound("product price", productCode+"@"+region)
	}
	return price, nil
}

// GetProduct implements Catalog
func (c *MemoryCatalog) GetProduct(_ context.Context, productCode string) (*Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[productCode]
	if !ok {
		return nil, qerrors.NotFound("product", productCode)
	}
	cp := *p
	return &cp, nil
}

// List implements Catalog
func (c *MemoryCatalog) List(_ context.Context) ([]*Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Product, 0, len(c.products))
	for _, p := range c.products {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Regions returns the sorted region codes a product is priced in
func (p *Product) Regions() []string {
	out := make([]string, 0, len(p.Prices))
	for r := range p.Prices {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
