package types

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"clmmstrat/internal/clmmerr"
)

// Amount is a raw 256-bit unsigned integer paired with a decimals scale,
// the representation used for on-chain token quantities. Conversion to a
// decimal divides Raw by 10^Decimals.
type Amount struct {
	Raw      *uint256.Int
	Decimals uint8
}

// NewAmount wraps a raw integer and scale, validating Decimals <= 18.
func NewAmount(raw *uint256.Int, decimals uint8) (Amount, error) {
	if decimals > 18 {
		return Amount{}, clmmerr.New("amount.new", clmmerr.InvalidInput, fmt.Errorf("decimals %d exceeds 18", decimals))
	}
	if raw == nil {
		raw = uint256.NewInt(0)
	}
	return Amount{Raw: raw, Decimals: decimals}, nil
}

// ToDecimal converts the raw integer to a decimal.Decimal by dividing out
// the scale. A nil Raw is treated as zero: seed positions built from config
// carry no amounts until the reconciler's first refresh fills them in.
func (a Amount) ToDecimal() decimal.Decimal {
	if a.Raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.Raw.ToBig(), -int32(a.Decimals))
}

// AmountFromDecimal builds an Amount from a decimal value at the given
// scale, truncating anything finer than the scale allows.
func AmountFromDecimal(v decimal.Decimal, decimals uint8) (Amount, error) {
	if decimals > 18 {
		return Amount{}, clmmerr.New("amount.from_decimal", clmmerr.InvalidInput, fmt.Errorf("decimals %d exceeds 18", decimals))
	}
	scaled := v.Shift(int32(decimals)).Truncate(0)
	bi := scaled.BigInt()
	if bi.Sign() < 0 {
		return Amount{}, clmmerr.New("amount.from_decimal", clmmerr.InvalidInput, fmt.Errorf("amount must be non-negative, got %s", v))
	}
	raw, overflow := uint256.FromBig(bi)
	if overflow {
		return Amount{}, clmmerr.New("amount.from_decimal", clmmerr.Overflow, fmt.Errorf("value %s overflows 256 bits", v))
	}
	return Amount{Raw: raw, Decimals: decimals}, nil
}
