// Package catalog loads the model product catalog from HCL files.
package catalog

import (
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/shopspring/decimal"

	core "model-quote/core/catalog"
	"model-quote/core/money"
	"model-quote/core/pricing"
	qerrors "model-quote/internal/errors"
)

// File is the top-level HCL document
type File struct {
	Products []productBlock `hcl:"product,block"`
}

type productBlock struct {
	Code        string       `hcl:"code,label"`
	Name        string       `hcl:"name"`
	Category    string       `hcl:"category,optional"`
	Modality    string       `hcl:"modality,optional"`
	Capability  string       `hcl:"capability,optional"`
	ModelType   string       `hcl:"model_type,optional"`
	ContextSpec string       `hcl:"context_spec,optional"`
	Prices      []priceBlock `hcl:"price,block"`
}

type priceBlock struct {
	Region             string      `hcl:"region,label"`
	BasePrice          string      `hcl:"base_price"`
	OutputPrice        *string     `hcl:"output_price,optional"`
	BillingUnit        string      `hcl:"billing_unit"`
	ThinkingMultiplier *string     `hcl:"thinking_multiplier,optional"`
	BatchMultiplier    *string     `hcl:"batch_multiplier,optional"`
	Tiers              []tierBlock `hcl:"tier,block"`
}

type tierBlock struct {
	From  string  `hcl:"from"`
	UpTo  *string `hcl:"up_to,optional"`
	Price string  `hcl:"price"`
}

// LoadHCL reads a catalog file into a new MemoryCatalog
func LoadHCL(path string) (*core.MemoryCatalog, error) {
	var f File
	if err := hclsimple.DecodeFile(path, nil, &f); err != nil {
		return nil, qerrors.Wrapf(qerrors.TypeConfig, err, "parse catalog %s", path)
	}
	return build(f)
}

// ParseHCL decodes catalog source held in memory; filename selects the syntax (.hcl or .json)
func ParseHCL(filename string, src []byte) (*core.MemoryCatalog, error) {
	var f File
	if err := hclsimple.Decode(filename, src, nil, &f); err != nil {
		return nil, qerrors.Wrapf(qerrors.TypeConfig, err, "parse catalog %s", filename)
	}
	return build(f)
}

func build(f File) (*core.MemoryCatalog, error) {
	cat := core.NewMemoryCatalog()
	seen := make(map[string]bool, len(f.Products))
	for _, pb := range f.Products {
		if seen[pb.Code] {
			return nil, qerrors.Configuration("product %s is defined twice", pb.Code)
		}
		seen[pb.Code] = true

		p, err := pb.toProduct()
		if err != nil {
			return nil, err
		}
		if err := cat.Register(p); err != nil {
			return nil, qerrors.Wrapf(qerrors.TypeConfig, err, "product %s", pb.Code)
		}
	}
	return cat, nil
}

func (pb productBlock) toProduct() (core.Product, error) {
	p := core.Product{
		Code:        pb.Code,
		Name:        pb.Name,
		Category:    pb.Category,
		Modality:    core.Modality(pb.Modality),
		Capability:  pb.Capability,
		ModelType:   pb.ModelType,
		ContextSpec: pb.ContextSpec,
		Prices:      make(map[string]core.Price, len(pb.Prices)),
	}
	for _, prb := range pb.Prices {
		if _, dup := p.Prices[prb.Region]; dup {
			return core.Product{}, qerrors.Configuration("product %s region %s is priced twice", pb.Code, prb.Region)
		}
		price, err := prb.toPrice()
		if err != nil {
			return core.Product{}, qerrors.Wrapf(qerrors.TypeConfig, err, "product %s region %s", pb.Code, prb.Region)
		}
		p.Prices[prb.Region] = price
	}
	return p, nil
}

func (prb priceBlock) toPrice() (core.Price, error) {
	base, err := money.ParseAmount("base_price", prb.BasePrice)
	if err != nil {
		return core.Price{}, err
	}
	price := core.Price{
		Region:      prb.Region,
		BasePrice:   base,
		BillingUnit: pricing.BillingUnit(prb.BillingUnit),
	}
	if price.OutputPrice, err = optionalAmount("output_price", prb.OutputPrice); err != nil {
		return core.Price{}, err
	}
	if m, err := optionalAmount("thinking_multiplier", prb.ThinkingMultiplier); err != nil {
		return core.Price{}, err
	} else if m != nil {
		price.ThinkingMultiplier = *m
	}
	if m, err := optionalAmount("batch_multiplier", prb.BatchMultiplier); err != nil {
		return core.Price{}, err
	} else if m != nil {
		price.BatchMultiplier = *m
	}

	for _, tb := range prb.Tiers {
		tier, err := tb.toTier()
		if err != nil {
			return core.Price{}, err
		}
		price.Tiers = append(price.Tiers, tier)
	}
	return price, nil
}

func (tb tierBlock) toTier() (pricing.Tier, error) {
	from, err := decimal.NewFromString(tb.From)
	if err != nil {
		return pricing.Tier{}, qerrors.Validation("tier.from", "invalid decimal %q", tb.From)
	}
	price, err := money.ParseAmount("tier.price", tb.Price)
	if err != nil {
		return pricing.Tier{}, err
	}
	tier := pricing.Tier{From: from, Price: price}
	if tb.UpTo != nil {
		upTo, err := decimal.NewFromString(*tb.UpTo)
		if err != nil {
			return pricing.Tier{}, qerrors.Validation("tier.up_to", "invalid decimal %q", *tb.UpTo)
		}
		tier.UpTo = &upTo
	}
	return tier, nil
}

func optionalAmount(field string, s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := money.ParseAmount(field, *s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
