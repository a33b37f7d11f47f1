// Package tokens maps ERC-20 contract addresses to display symbols.
package tokens

import (
	"fmt"
	"maps"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var defaults = map[string]string{
	"0xdac17f958d2ee523a2206206994597c13d831ec7": "USDT",
	"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": "USDC",
	"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2": "WETH",
	"0x6b175474e89094c44da98b954eedeac495271d0f": "DAI",
	"0x514910771af9ca656af840dff83e8264ecf986ca": "LINK",
	"0x1f9840a85d5af5bf1d1762f925bdaddc4201f984": "UNI",
}

// Registry is read-only after construction and safe for concurrent use.
type Registry struct {
	symbols map[string]string
}

// NewRegistry returns the built-in table with overrides merged on top.
// Override keys must be 20-byte hex addresses.
func NewRegistry(overrides map[string]string) (*Registry, error) {
	symbols := maps.Clone(defaults)
	for addr, sym := range overrides {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid token address %q", addr)
		}
		sym = strings.TrimSpace(sym)
		if sym == "" {
			return nil, fmt.Errorf("empty symbol for token %s", addr)
		}
		symbols[strings.ToLower(addr)] = sym
	}
	return &Registry{symbols: symbols}, nil
}

// Default is the registry with no overrides.
func Default() *Registry {
	return &Registry{symbols: maps.Clone(defaults)}
}

// Symbol looks addr up case-insensitively.
func (r *Registry) Symbol(addr string) (string, bool) {
	sym, ok := r.symbols[strings.ToLower(addr)]
	return sym, ok
}

func (r *Registry) Len() int {
	return len(r.symbols)
}
