package product

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func offer(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestEffectivePrice(t *testing.T) {
	tests := []struct {
		name string
		p    Product
		want string
	}{
		{"base price", Product{Price: decimal.RequireFromString("40")}, "40"},
		{"on sale with offer", Product{Price: decimal.RequireFromString("40"), OnSale: true, OfferPrice: offer("30")}, "30"},
		{"on sale without offer", Product{Price: decimal.RequireFromString("40"), OnSale: true}, "40"},
		{"offer but not on sale", Product{Price: decimal.RequireFromString("40"), OfferPrice: offer("30")}, "40"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.p.EffectivePrice().Equal(decimal.RequireFromString(tt.want)))
		})
	}
}

func TestDefaultVariant_isFirstInsertion(t *testing.T) {
	p := Product{Variants: []string{"Vanilla", "Chocolate"}}
	assert.Equal(t, "Vanilla", p.DefaultVariant())
	assert.Equal(t, "", Product{}.DefaultVariant())
}

func TestHasVariant(t *testing.T) {
	p := Product{Variants: []string{"Vanilla"}}
	assert.True(t, p.HasVariant("Vanilla"))
	assert.False(t, p.HasVariant("Mango"))
	assert.True(t, Product{}.HasVariant(""))
}

func TestClone_isDeep(t *testing.T) {
	p := Product{Variants: []string{"Vanilla"}, OfferPrice: offer("10")}
	cp := p.Clone()
	cp.Variants[0] = "Mango"
	*cp.OfferPrice = decimal.RequireFromString("1")

	assert.Equal(t, "Vanilla", p.Variants[0])
	assert.True(t, p.OfferPrice.Equal(decimal.RequireFromString("10")))
}

func TestNormalize_trimsAndClamps(t *testing.T) {
	p := Product{ID: " whey ", Variants: []string{" Vanilla ", "", "Chocolate"}, Stock: -2}.Normalize()
	assert.Equal(t, "whey", p.ID)
	assert.Equal(t, []string{"Vanilla", "Chocolate"}, p.Variants)
	assert.Equal(t, 0, p.Stock)
}
