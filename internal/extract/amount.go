package extract

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ReadAmount turns portal money text such as " $ -1,234.56 " into a signed
// decimal. Everything but digits and the decimal point is dropped. The sign is
// the first '-' or '+' seen before any digit, so "-$5.00" and "$ -5.00" are
// both negative while a dash after the number is ignored.
func ReadAmount(raw string) (decimal.Decimal, error) {
	var (
		digits    strings.Builder
		negative  bool
		signed    bool
		seenDigit bool
		dot       bool
		dotAhead  bool
	)

	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			if !seenDigit && dotAhead {
				digits.WriteByte('.')
				dot = true
			}
			digits.WriteRune(r)
			seenDigit = true
		case r == '.':
			if !seenDigit {
				// only a point directly in front of the first digit counts
				dotAhead = true
				continue
			}
			if dot {
				return decimal.Zero, fmt.Errorf("%w: more than one decimal point in %q", ErrUnparsableAmount, raw)
			}
			dot = true
			digits.WriteRune(r)
		case r == '-' || r == '−' || r == '+':
			if !seenDigit && !signed {
				negative = r != '+'
				signed = true
			}
		}
		if r != '.' {
			dotAhead = false
		}
	}
	if !seenDigit {
		return decimal.Zero, fmt.Errorf("%w: no digits in %q", ErrUnparsableAmount, raw)
	}

	clean := strings.TrimSuffix(digits.String(), ".")
	if strings.HasPrefix(clean, ".") {
		clean = "0" + clean
	}

	value, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrUnparsableAmount, raw, err)
	}
	if negative {
		value = value.Neg()
	}
	return value, nil
}
