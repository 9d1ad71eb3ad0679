package validation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TxHashLength is the length of a hex-encoded Bitcoin transaction id.
const TxHashLength = 64

// ValidateTxHash checks that hash is exactly 64 hexadecimal characters.
// No 0x prefix is accepted.
func ValidateTxHash(hash string) error {
	if len(hash) != TxHashLength {
		return fmt.Errorf("invalid transaction hash length: expected %d characters, got %d", TxHashLength, len(hash))
	}
	for i := 0; i < len(hash); i++ {
		if !isHexDigit(hash[i]) {
			return fmt.Errorf("invalid character %q at position %d", hash[i], i)
		}
	}
	return nil
}

// MaxDecimal bounds ParsePositiveDecimal to the numeric(16,8) amount column.
var MaxDecimal = decimal.New(1, 8)

// ParsePositiveDecimal parses a plain decimal string and rejects zero,
// negative, malformed and out-of-range values. Exponent notation is refused
// before parsing so a tiny string cannot expand into a huge coefficient.
func ParsePositiveDecimal(s string) (decimal.Decimal, error) {
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, fmt.Errorf("invalid decimal %q: exponent notation not allowed", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive, got %s", d.String())
	}
	if d.GreaterThanOrEqual(MaxDecimal) {
		return decimal.Zero, fmt.Errorf("amount must be below %s, got %s", MaxDecimal.String(), d.String())
	}
	return d, nil
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
