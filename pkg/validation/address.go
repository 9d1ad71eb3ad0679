package validation

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ValidateWalletAddress validates an EVM-style wallet address: 0x followed by
// 40 hex characters.
func ValidateWalletAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return fmt.Errorf("address must start with 0x")
	}

	normalized := addr[2:]
	if len(normalized) != 40 {
		return fmt.Errorf("invalid address length: expected 40 characters (without 0x), got %d", len(normalized))
	}
	if _, err := hex.DecodeString(normalized); err != nil {
		return fmt.Errorf("invalid hex address: %w", err)
	}

	return nil
}

// NormalizeWalletAddress lowercases an address and keeps the 0x prefix.
func NormalizeWalletAddress(addr string) string {
	addr = strings.TrimPrefix(addr, "0x")
	addr = strings.TrimPrefix(addr, "0X")
	return "0x" + strings.ToLower(addr)
}
