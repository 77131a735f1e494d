package types

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// ValidateAmount checks that amount is strictly positive and representable
// at the given chain scale without losing precision. Rejecting excess
// precision up front keeps every later scale conversion lossless.
func ValidateAmount(amount decimal.Decimal, decimals int32) error {
	if amount.Sign() <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be strictly positive"}
	}
	if amount.Exponent() < -decimals {
		return &ValidationError{Field: "amount", Reason: "more precision than the chain scale allows"}
	}
	return nil
}

// ConvertScale re-expresses amount at the precision of the destination
// chain, truncating toward zero when the destination is coarser. With
// amounts validated against the finer scale at creation, a round trip
// through ConvertScale is lossless within the coarser side's scale.
func ConvertScale(amount decimal.Decimal, fromDecimals, toDecimals int32) decimal.Decimal {
	if toDecimals < fromDecimals {
		return amount.Truncate(toDecimals)
	}
	return amount
}

// BaseUnits is floor(amount * 10^decimals): the integer the chain itself
// carries. Proof checks compare this value exactly, with no tolerance.
func BaseUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Floor().BigInt()
}
