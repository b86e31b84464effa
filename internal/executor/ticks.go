package executor

import (
	"clmmstrat/internal/clmath"
	"clmmstrat/pkg/types"
)

// tickFromPrice converts a Price to its nearest tick via clmath.PriceToTick.
func tickFromPrice(p types.Price) (int32, error) {
	return clmath.PriceToTick(p.Value)
}
