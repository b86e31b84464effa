// Package types holds the shared domain vocabulary of the CLMM strategy
// engine: prices, ranges, amounts, positions, and the records produced by
// simulation and live execution. Every monetary or price-bearing field
// uses decimal.Decimal; the only native float stored here is
// PositionClosedData.DurationHours.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"

	"clmmstrat/internal/clmmerr"
)

// Price is a positive fixed-point decimal quote of token1 per token0.
type Price struct {
	Value decimal.Decimal
}

// NewPrice wraps a decimal as a Price without validating positivity;
// use Validate or construction sites that already guarantee P>0.
func NewPrice(v decimal.Decimal) Price { return Price{Value: v} }

// PriceFromFloat builds a Price from a float64, primarily for test fixtures
// and GBM path generation where the transient computation is already float.
func PriceFromFloat(f float64) Price { return Price{Value: decimal.NewFromFloat(f)} }

// Validate reports InvalidInput if the price is not strictly positive.
func (p Price) Validate() error {
	if p.Value.Sign() <= 0 {
		return clmmerr.New("price.validate", clmmerr.InvalidInput, fmt.Errorf("price must be > 0, got %s", p.Value))
	}
	return nil
}

// Invert returns 1/P. Defined only for P>0; returns InvalidInput otherwise.
// This is stricter than returning a silent zero: an inverted non-positive
// price is a programming error, not a valid quote.
func (p Price) Invert() (Price, error) {
	if p.Value.Sign() <= 0 {
		return Price{}, clmmerr.New("price.invert", clmmerr.InvalidInput, fmt.Errorf("cannot invert non-positive price %s", p.Value))
	}
	return Price{Value: decimal.NewFromInt(1).DivRound(p.Value, 28)}, nil
}

func (p Price) String() string { return p.Value.String() }
