package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"model-quote/core/catalog"
	"model-quote/core/money"
	"model-quote/core/pricing"
	"model-quote/core/quote"
	qerrors "model-quote/internal/errors"
)

// resolved is a usage request bound to its catalog entry
type resolved struct {
	product *catalog.Product
	price   catalog.Price
	usage   pricing.UsageContext
}

// Quote prices a usage declaration without touching any quote
func (s *Service) Quote(ctx context.Context, req UsageRequest) (*PriceQuote, error) {
	r, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	result, err := s.calculate(r.usage)
	if err != nil {
		return nil, err
	}
	item, err := quote.ApplyItem(result, discountOf(req), req.Quantity, req.DurationMonths)
	if err != nil {
		return nil, err
	}
	return &PriceQuote{
		ProductCode: r.product.Code,
		ProductName: r.product.Name,
		Region:      r.price.Region,
		Result:      result,
		Item:        item,
	}, nil
}

func (s *Service) resolve(ctx context.Context, req UsageRequest) (*resolved, error) {
	if strings.TrimSpace(req.ProductCode) == "" {
		return nil, qerrors.Validation("product_code", "is required")
	}
	if s.catalog == nil {
		return nil, qerrors.Configuration("no product catalog is configured")
	}
	region := req.Region
	if region == "" {
		region = s.opts.DefaultRegion
	}

	product, err := s.catalog.GetProduct(ctx, req.ProductCode)
	if err != nil {
		return nil, err
	}
	price, err := s.catalog.GetPrice(ctx, req.ProductCode, region)
	if err != nil {
		return nil, err
	}
	if req.DiscountRate != nil {
		if err := money.CheckRate("discount_rate", *req.DiscountRate); err != nil {
			return nil, err
		}
	}

	return &resolved{
		product: product,
		price:   price,
		usage: pricing.UsageContext{
			BasePrice:          price.BasePrice,
			OutputPrice:        price.OutputPrice,
			BillingUnit:        price.BillingUnit,
			InputTokens:        req.InputTokens,
			OutputTokens:       req.OutputTokens,
			Units:              req.Units,
			ThinkingModeRatio:  req.ThinkingModeRatio,
			BatchCallRatio:     req.BatchCallRatio,
			ThinkingMultiplier: price.ThinkingMultiplier,
			BatchMultiplier:    price.BatchMultiplier,
			Quantity:           req.Quantity,
			DurationMonths:     req.DurationMonths,
			Tiers:              price.Tiers,
		},
	}, nil
}

func (s *Service) calculate(usage pricing.UsageContext) (*pricing.PriceResult, error) {
	result, err := s.engine.Calculate(usage)
	scheme := ""
	if result != nil {
		scheme = string(result.Breakdown.Scheme)
	}
	s.metrics.ObservePricing(scheme, err)
	return result, err
}

// buildItem prices a request into a new, detached item
func (s *Service) buildItem(r *resolved, req ItemRequest, result *pricing.PriceResult) (*quote.Item, error) {
	p, err := quote.ApplyItem(result, discountOf(req.UsageRequest), req.Quantity, req.DurationMonths)
	if err != nil {
		return nil, err
	}
	item := &quote.Item{
		ID:                s.opts.NewID(),
		ProductCode:       r.product.Code,
		ProductName:       r.product.Name,
		Region:            r.price.Region,
		RegionName:        catalog.RegionName(r.price.Region),
		Modality:          string(r.product.Modality),
		Capability:        r.product.Capability,
		ModelType:         r.product.ModelType,
		ContextSpec:       r.product.ContextSpec,
		InferenceMode:     req.InferenceMode,
		InputTokens:       req.InputTokens,
		OutputTokens:      req.OutputTokens,
		Units:             req.Units,
		ThinkingModeRatio: req.ThinkingModeRatio,
		BatchCallRatio:    req.BatchCallRatio,
	}
	item.SetPricing(p)
	return item.Clone(), nil
}

func discountOf(req UsageRequest) decimal.Decimal {
	if req.DiscountRate == nil {
		return money.One
	}
	return *req.DiscountRate
}
