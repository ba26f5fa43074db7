package decrypt

import (
	"fmt"
	"math/big"
	"strings"
)

// CETHDecimals is the precision of ConfidentialETH: 1 cETH = 1_000_000.
const CETHDecimals = 6

// FormatUnits renders value with decimals fractional digits, trimming
// trailing zeros.
func FormatUnits(value *big.Int, decimals int) string {
	if value == nil {
		return "0"
	}

	sign := ""
	v := new(big.Int).Set(value)
	if v.Sign() < 0 {
		sign = "-"
		v.Neg(v)
	}

	if decimals <= 0 {
		return sign + v.String()
	}

	s := v.String()
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}

	whole, frac := s[:len(s)-decimals], strings.TrimRight(s[len(s)-decimals:], "0")
	if frac == "" {
		return sign + whole
	}
	return sign + whole + "." + frac
}

// ParseUnits converts a decimal string into base units. Fraction digits past
// decimals are truncated.
func ParseUnits(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("empty amount")
	}

	parts := strings.Split(amount, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}

	whole := parts[0]
	frac := ""
	if len(parts) > 1 {
		frac = parts[1]
	}
	if whole == "" && frac == "" {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	if whole == "" {
		whole = "0"
	}

	for _, c := range whole + frac {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("invalid amount %q", amount)
		}
	}

	if len(frac) < decimals {
		frac = frac + strings.Repeat("0", decimals-len(frac))
	} else if len(frac) > decimals {
		frac = frac[:decimals]
	}

	result, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	return result, nil
}

// ParseUint64Units is ParseUnits bounded to the euint64 range.
func ParseUint64Units(amount string, decimals int) (uint64, error) {
	if v, err := ParseUnits(amount, decimals); err != nil {
		return 0, err
	} else if !v.IsUint64() {
		return 0, fmt.Errorf("amount %q exceeds the euint64 range", amount)
	} else {
		return v.Uint64(), nil
	}
}
