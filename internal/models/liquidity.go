package models

import "github.com/shopspring/decimal"

// LiquidityModel produces the global active pool liquidity at a given step
// and price, against which the simulated position's LP share of fees is
// measured.
type LiquidityModel interface {
	Liquidity(step int, price decimal.Decimal) decimal.Decimal
}

// ConstantLiquidity returns the same pool liquidity every step.
type ConstantLiquidity struct {
	PoolLiquidity decimal.Decimal
}

func (c ConstantLiquidity) Liquidity(step int, price decimal.Decimal) decimal.Decimal {
	return c.PoolLiquidity
}
