package amount

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	clierr "github.com/Dvl-es/tradevault/internal/errors"
)

// DefaultDecimals matches the 18-decimal convention of most vault assets.
const DefaultDecimals = 18

// ToDecimal converts base units (wei) to a human-readable decimal.
func ToDecimal(wei *big.Int, decimals int32) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -decimals)
}

// ToWei converts a human-readable decimal to base units, truncating any
// precision beyond the token's decimals.
func ToWei(d decimal.Decimal, decimals int32) *big.Int {
	return d.Shift(decimals).Truncate(0).BigInt()
}

// Parse resolves a user-supplied amount from either base units or decimal
// form. Exactly one of the two must be set.
func Parse(baseUnits, dec string, decimals int32) (*big.Int, error) {
	baseUnits = strings.TrimSpace(baseUnits)
	dec = strings.TrimSpace(dec)
	if baseUnits != "" && dec != "" {
		return nil, clierr.New(clierr.CodeUsage, "use either --amount or --amount-decimal, not both")
	}
	if baseUnits == "" && dec == "" {
		return nil, clierr.New(clierr.CodeUsage, "amount is required")
	}
	if baseUnits != "" {
		v, ok := new(big.Int).SetString(baseUnits, 10)
		if !ok || v.Sign() < 0 {
			return nil, clierr.New(clierr.CodeUsage, "--amount must be a non-negative integer string")
		}
		return v, nil
	}
	parsed, err := decimal.NewFromString(dec)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "parse --amount-decimal", err)
	}
	if parsed.IsNegative() {
		return nil, clierr.New(clierr.CodeUsage, "--amount-decimal must be non-negative")
	}
	return ToWei(parsed, decimals), nil
}
