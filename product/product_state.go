package product

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Product is the read-only catalog view the core works against.
// Version is bumped by the store on every stock write and is the
// compare-and-swap token for stock adjustments.
type Product struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Price      decimal.Decimal  `json:"price"`
	OnSale     bool             `json:"onSale"`
	OfferPrice *decimal.Decimal `json:"offerPrice,omitempty"`
	Stock      int              `json:"stock"`
	Variants   []string         `json:"variants"`
	Version    int64            `json:"version"`
}

// EffectivePrice is the offer price when the product is on sale and has
// one, otherwise the base price.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.OnSale && p.OfferPrice != nil {
		return *p.OfferPrice
	}
	return p.Price
}

// DefaultVariant is the first listed variant, or "" for products without variants.
func (p Product) DefaultVariant() string {
	if len(p.Variants) == 0 {
		return ""
	}
	return p.Variants[0]
}

// HasVariant reports whether v is one of the product's variants. Products
// without variants accept only the empty variant.
func (p Product) HasVariant(v string) bool {
	if len(p.Variants) == 0 {
		return v == ""
	}
	for _, candidate := range p.Variants {
		if candidate == v {
			return true
		}
	}
	return false
}

// InStock reports whether any units are available.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// Clone returns a deep copy safe to hand out of the snapshot.
func (p Product) Clone() Product {
	cp := p
	if p.OfferPrice != nil {
		offer := *p.OfferPrice
		cp.OfferPrice = &offer
	}
	if p.Variants != nil {
		cp.Variants = append([]string(nil), p.Variants...)
	}
	return cp
}

// Normalize trims identifiers and drops blank variants, keeping order.
func (p Product) Normalize() Product {
	p.ID = strings.TrimSpace(p.ID)
	if len(p.Variants) > 0 {
		vs := make([]string, 0, len(p.Variants))
		for _, v := range p.Variants {
			if v = strings.TrimSpace(v); v != "" {
				vs = append(vs, v)
			}
		}
		p.Variants = vs
	}
	if p.Stock < 0 {
		p.Stock = 0
	}
	return p
}
