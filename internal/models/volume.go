package models

import "github.com/shopspring/decimal"

// VolumeModel produces a non-negative trading volume for a given step and
// current price. Simplest variants are constant; richer models may vary by
// step index or price.
type VolumeModel interface {
	Volume(step int, price decimal.Decimal) decimal.Decimal
}

// ConstantVolume returns the same volume every step.
type ConstantVolume struct {
	Amount decimal.Decimal
}

func (c ConstantVolume) Volume(step int, price decimal.Decimal) decimal.Decimal {
	return c.Amount
}
