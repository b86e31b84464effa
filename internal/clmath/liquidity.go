package clmath

import (
	"fmt"

	"github.com/shopspring/decimal"

	"clmmstrat/internal/clmmerr"
)

// sortSqrt returns (lo, hi) = (min(sA,sB), max(sA,sB)).
func sortSqrt(sA, sB decimal.Decimal) (lo, hi decimal.Decimal) {
	if sA.LessThan(sB) {
		return sA, sB
	}
	return sB, sA
}

// Amount0Delta computes amount0(L, sA, sB) = L * (hi - lo) / (lo * hi),
// the token0 quantity backing liquidity L spread across sqrt-price bounds
// sA and sB (order-independent). Fails with InvalidInput when lo*hi = 0.
func Amount0Delta(l decimal.Decimal, sA, sB decimal.Decimal) (decimal.Decimal, error) {
	lo, hi := sortSqrt(sA, sB)
	denom := lo.Mul(hi)
	if denom.IsZero() {
		return decimal.Decimal{}, clmmerr.New("clmath.amount0_delta", clmmerr.InvalidInput, fmt.Errorf("degenerate range: lo*hi = 0"))
	}
	return l.Mul(hi.Sub(lo)).DivRound(denom, 28), nil
}

// Amount1Delta computes amount1(L, sA, sB) = L * (hi - lo).
func Amount1Delta(l decimal.Decimal, sA, sB decimal.Decimal) decimal.Decimal {
	lo, hi := sortSqrt(sA, sB)
	return l.Mul(hi.Sub(lo))
}

// LiquidityForAmount0 computes L = x * lo * hi / (hi - lo), the inverse of
// Amount0Delta. Fails with InvalidInput when hi = lo.
func LiquidityForAmount0(x decimal.Decimal, sA, sB decimal.Decimal) (decimal.Decimal, error) {
	lo, hi := sortSqrt(sA, sB)
	denom := hi.Sub(lo)
	if denom.IsZero() {
		return decimal.Decimal{}, clmmerr.New("clmath.liquidity_for_amount0", clmmerr.InvalidInput, fmt.Errorf("degenerate range: hi = lo"))
	}
	return x.Mul(lo).Mul(hi).DivRound(denom, 28), nil
}

// LiquidityForAmount1 computes L = y / (hi - lo), the inverse of
// Amount1Delta. Fails with InvalidInput when hi = lo.
func LiquidityForAmount1(y decimal.Decimal, sA, sB decimal.Decimal) (decimal.Decimal, error) {
	lo, hi := sortSqrt(sA, sB)
	denom := hi.Sub(lo)
	if denom.IsZero() {
		return decimal.Decimal{}, clmmerr.New("clmath.liquidity_for_amount1", clmmerr.InvalidInput, fmt.Errorf("degenerate range: hi = lo"))
	}
	return y.DivRound(denom, 28), nil
}
