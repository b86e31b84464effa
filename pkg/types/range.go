package types

import (
	"fmt"

	"github.com/shopspring/decimal"

	"clmmstrat/internal/clmmerr"
)

// PriceRange is an immutable [Lower, Upper] bound with 0 < Lower < Upper.
// Rebalancing never mutates a range in place; it produces a new one.
type PriceRange struct {
	Lower Price
	Upper Price
}

// NewPriceRange validates 0 < lower < upper before constructing the range.
func NewPriceRange(lower, upper Price) (PriceRange, error) {
	if lower.Value.Sign() <= 0 || upper.Value.Sign() <= 0 {
		return PriceRange{}, clmmerr.New("price_range.new", clmmerr.InvalidInput, fmt.Errorf("bounds must be positive: [%s, %s]", lower, upper))
	}
	if !lower.Value.LessThan(upper.Value) {
		return PriceRange{}, clmmerr.New("price_range.new", clmmerr.InvalidInput, fmt.Errorf("lower must be < upper: [%s, %s]", lower, upper))
	}
	return PriceRange{Lower: lower, Upper: upper}, nil
}

// Contains reports whether p falls within [Lower, Upper], inclusive of
// both bounds.
func (r PriceRange) Contains(p Price) bool {
	return !p.Value.LessThan(r.Lower.Value) && !p.Value.GreaterThan(r.Upper.Value)
}

// Width returns Upper - Lower.
func (r PriceRange) Width() decimal.Decimal {
	return r.Upper.Value.Sub(r.Lower.Value)
}

// Midpoint returns the arithmetic mean of the bounds.
func (r PriceRange) Midpoint() decimal.Decimal {
	return r.Lower.Value.Add(r.Upper.Value).Div(decimal.NewFromInt(2))
}

// CenteredRange builds a new range centered on p with total width
// p*widthPct (lower = p*(1-widthPct/2), upper = p*(1+widthPct/2)), the
// construction used by the Periodic and Threshold rebalance strategies.
func CenteredRange(p Price, widthPct decimal.Decimal) (PriceRange, error) {
	half := widthPct.Div(decimal.NewFromInt(2))
	lower := p.Value.Mul(decimal.NewFromInt(1).Sub(half))
	upper := p.Value.Mul(decimal.NewFromInt(1).Add(half))
	return NewPriceRange(NewPrice(lower), NewPrice(upper))
}
