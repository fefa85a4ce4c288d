// Package catalog - Catalog validation
// Ensures every registered product can be priced by the engine.
package catalog

import (
	"fmt"
	"sort"

	"model-quote/core/pricing"
	qerrors "model-quote/internal/errors"
)

// ValidationRule is a catalog validation rule
type ValidationRule func(*Product) error

// DefaultValidationRules returns the standard validation rules
func DefaultValidationRules() []ValidationRule {
	return []ValidationRule{
		validateHasPrice,
		validatePositivePrices,
		validateBillingUnits,
		validateOutputPrice,
		validateTierTables,
	}
}

// Validate checks a product against rules, returning the first failure
func Validate(p *Product, rules []ValidationRule) error {
	for _, rule := range rules {
		if err := rule(p); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks every product in the catalog and reports all failures
func (c *MemoryCatalog) Validate(rules []ValidationRule) []error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs []error
	for _, code := range c.codes() {
		if err := Validate(c.products[code], rules); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", code, err))
		}
	}
	return errs
}

func (c *MemoryCatalog) codes() []string {
	out := make([]string, 0, len(c.products))
	for code := range c.products {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func validateHasPrice(p *Product) error {
	if len(p.Prices) == 0 {
		return qerrors.Validation("prices", "product %s has no regional price", p.Code)
	}
	return nil
}

func validatePositivePrices(p *Product) error {
	for _, region := range p.Regions() {
		if !p.Prices[region].BasePrice.IsPositive() {
			return qerrors.Validation("base_price", "product %s region %s: must be positive", p.Code, region)
		}
	}
	return nil
}

func validateBillingUnits(p *Product) error {
	for _, region := range p.Regions() {
		if _, err := pricing.ParseBillingUnit(string(p.Prices[region].BillingUnit)); err != nil {
			return err
		}
	}
	return nil
}

// validateOutputPrice ensures split output pricing is only used for token units
func validateOutputPrice(p *Product) error {
	for _, region := range p.Regions() {
		price := p.Prices[region]
		if price.OutputPrice == nil {
			continue
		}
		if !price.BillingUnit.IsTokenMetered() {
			return qerrors.Validation("output_price", "product %s region %s: only token units price output separately", p.Code, region)
		}
		if !price.OutputPrice.IsPositive() {
			return qerrors.Validation("output_price", "product %s region %s: must be positive", p.Code, region)
		}
	}
	return nil
}

func validateTierTables(p *Product) error {
	for _, region := range p.Regions() {
		if err := pricing.ValidateTiers(p.Prices[region].Tiers); err != nil {
			if qe, ok := qerrors.As(err); ok {
				qe.WithContext("product_code", p.Code).WithContext("region", region)
			}
			return err
		}
	}
	return nil
}
