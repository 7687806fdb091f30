package quote

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/memeswap/internal/domain"
)

var maxUint64 = decimal.NewFromUint64(math.MaxUint64)

// ToBaseUnits переводит человеческую сумму в минимальные единицы с округлением вниз.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) (uint64, error) {
	if !amount.IsPositive() {
		return 0, domain.Invalid("amount", "must be greater than zero")
	}
	base := amount.Shift(int32(decimals)).Floor()
	if base.IsZero() {
		return 0, domain.Invalid("amount", fmt.Sprintf("below the smallest unit for %d decimals", decimals))
	}
	if base.GreaterThan(maxUint64) {
		return 0, domain.Invalid("amount", "too large")
	}
	return base.BigInt().Uint64(), nil
}

// ParseBaseUnits converts an aggregator integer string into display units.
func ParseBaseUnits(base string, decimals uint8) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(base)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse base units %q: %w", base, err)
	}
	return d.Shift(-int32(decimals)), nil
}
