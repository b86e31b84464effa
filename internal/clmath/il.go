package clmath

import (
	"fmt"

	"github.com/shopspring/decimal"

	"clmmstrat/internal/clmmerr"
)

// syntheticLiquidity is the fixed L used to evaluate the three-region
// amount rule when computing concentrated IL. IL is scale-invariant: the
// ratio (V_lp - V_hodl) / V_hodl cancels L algebraically, so any positive
// constant works; 10^18 is kept as the canonical choice rather than
// re-deriving an L-free formula.
var syntheticLiquidity = decimal.New(1, 18)

// ILConstantProduct computes IL(r) = 2*sqrt(r)/(1+r) - 1 where
// r = P_curr / P_entry, the impermanent loss of a constant-product x*y=k
// pool relative to holding.
func ILConstantProduct(entry, current decimal.Decimal) (decimal.Decimal, error) {
	if entry.Sign() <= 0 || current.Sign() <= 0 {
		return decimal.Decimal{}, clmmerr.New("clmath.il_constant_product", clmmerr.InvalidInput, fmt.Errorf("prices must be positive"))
	}
	r := current.DivRound(entry, 28)
	two := decimal.NewFromInt(2)
	one := decimal.NewFromInt(1)
	return two.Mul(Sqrt(r)).DivRound(one.Add(r), 28).Sub(one), nil
}

// regionAmounts applies the three-region rule: given price p and range
// [pl, pu], returns the (x, y) token amounts a liquidity-L position of
// that range would hold at price p.
func regionAmounts(l, p, pl, pu decimal.Decimal) (x, y decimal.Decimal, err error) {
	sp := Sqrt(p)
	spl := Sqrt(pl)
	spu := Sqrt(pu)

	switch {
	case !p.GreaterThan(pl):
		// Entirely token0.
		x, err = Amount0Delta(l, spl, spu)
		if err != nil {
			return decimal.Decimal{}, decimal.Decimal{}, err
		}
		return x, decimal.Zero, nil
	case !p.LessThan(pu):
		// Entirely token1.
		y = Amount1Delta(l, spl, spu)
		return decimal.Zero, y, nil
	default:
		x, err = Amount0Delta(l, sp, spu)
		if err != nil {
			return decimal.Decimal{}, decimal.Decimal{}, err
		}
		y = Amount1Delta(l, spl, sp)
		return x, y, nil
	}
}

// ILConcentrated computes the impermanent loss of a concentrated-liquidity
// position opened at entryPrice with range [lower, upper], observed at
// currentPrice: IL = (V_lp - V_hodl) / V_hodl, where V_k = x_k*P_curr + y_k,
// (x0,y0) is the bundle held at entry (valued at the current price) and
// (x1,y1) is the bundle the position actually holds at the current price.
func ILConcentrated(entryPrice, currentPrice, lower, upper decimal.Decimal) (decimal.Decimal, error) {
	if entryPrice.Sign() <= 0 || currentPrice.Sign() <= 0 {
		return decimal.Decimal{}, clmmerr.New("clmath.il_concentrated", clmmerr.InvalidInput, fmt.Errorf("prices must be positive"))
	}
	if lower.Sign() <= 0 || upper.Sign() <= 0 || !lower.LessThan(upper) {
		return decimal.Decimal{}, clmmerr.New("clmath.il_concentrated", clmmerr.InvalidInput, fmt.Errorf("invalid range [%s, %s]", lower, upper))
	}

	x0, y0, err := regionAmounts(syntheticLiquidity, entryPrice, lower, upper)
	if err != nil {
		return decimal.Decimal{}, err
	}
	x1, y1, err := regionAmounts(syntheticLiquidity, currentPrice, lower, upper)
	if err != nil {
		return decimal.Decimal{}, err
	}

	vHodl := x0.Mul(currentPrice).Add(y0)
	vLP := x1.Mul(currentPrice).Add(y1)

	if vHodl.IsZero() {
		return decimal.Zero, nil
	}
	return vLP.Sub(vHodl).DivRound(vHodl, 28), nil
}
