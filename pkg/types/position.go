package types

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// PositionStatus is the lifecycle state of an LP position.
type PositionStatus string

const (
	PositionOpen       PositionStatus = "open"
	PositionClosed     PositionStatus = "closed"
	PositionOutOfRange PositionStatus = "out_of_range"
)

// Position is an LP's claim at a specific price range in a specific pool.
// Liquidity is stored as a uint256 but is constrained to the low 128 bits
// (Go has no native uint128; the 128-bit unsigned liquidity scalar is
// represented this way throughout, matching the width used by Amount.Raw's
// 256-bit representation for consistency).
type Position struct {
	ID        string
	Owner     string
	Pool      string
	Range     PriceRange
	Liquidity *uint256.Int

	DepositedAmount0 Amount
	DepositedAmount1 Amount
	CurrentAmount0   Amount
	CurrentAmount1   Amount
	UnclaimedFees0   Amount
	UnclaimedFees1   Amount

	OpenedAt time.Time
	Status   PositionStatus
}

// PoolState is the observed state of a CLMM pool at a point in time.
type PoolState struct {
	CurrentPrice   Price
	CurrentTick    *int32
	TotalLiquidity *uint256.Int
	FeeRate        decimal.Decimal
	Volume24h      *decimal.Decimal
}
