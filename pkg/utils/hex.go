package utils

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseBlockNumber accepts a decimal ("12345") or 0x-prefixed hex ("0x3039")
// block number. Hex input may be left-padded to any width, as synthesized
// block hashes are.
func ParseBlockNumber(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty block number")
	}

	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
	}
	if digits == "" || digits[0] == '+' || digits[0] == '-' {
		return 0, fmt.Errorf("invalid block number: %s", s)
	}

	n, ok := new(big.Int).SetString(digits, base)
	if !ok || n.Sign() < 0 {
		return 0, fmt.Errorf("invalid block number: %s", s)
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("block number out of range: %s", s)
	}
	return n.Uint64(), nil
}

// ShortAddress renders 0x1234567890abcdef as 0x1234...cdef.
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
