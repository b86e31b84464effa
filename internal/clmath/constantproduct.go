package clmath

import (
	"fmt"

	"github.com/shopspring/decimal"

	"clmmstrat/internal/clmmerr"
)

// ConstantProductOut computes the constant-product swap baseline:
// out(dx) = (y * dx * (10000 - feeBps)) / (x * 10000 + dx * (10000 - feeBps)).
// Used only as a comparison baseline against concentrated liquidity, not as
// a pricing engine in its own right.
func ConstantProductOut(x, y, dx decimal.Decimal, feeBps int) (decimal.Decimal, error) {
	if x.Sign() <= 0 || y.Sign() <= 0 {
		return decimal.Decimal{}, clmmerr.New("clmath.constant_product_out", clmmerr.InvalidInput, fmt.Errorf("reserves must be positive"))
	}
	tenK := decimal.NewFromInt(10000)
	feeFactor := tenK.Sub(decimal.NewFromInt(int64(feeBps)))
	numerator := y.Mul(dx).Mul(feeFactor)
	denominator := x.Mul(tenK).Add(dx.Mul(feeFactor))
	if denominator.IsZero() {
		return decimal.Decimal{}, clmmerr.New("clmath.constant_product_out", clmmerr.InvalidInput, fmt.Errorf("denominator is zero"))
	}
	return numerator.DivRound(denominator, 28), nil
}

// ConstantProductSpotPrice returns y/x, the spot price implied by reserves.
func ConstantProductSpotPrice(x, y decimal.Decimal) (decimal.Decimal, error) {
	if x.IsZero() {
		return decimal.Decimal{}, clmmerr.New("clmath.constant_product_spot_price", clmmerr.InvalidInput, fmt.Errorf("x reserve is zero"))
	}
	return y.DivRound(x, 28), nil
}

// ConstantProductK returns the x*y invariant.
func ConstantProductK(x, y decimal.Decimal) decimal.Decimal {
	return x.Mul(y)
}
