// Package avalanche executes token swaps on the Avalanche C-Chain through a
// YakSwap-style aggregator router. The router does the path finding; this
// plugin extracts swap parameters from natural language and drives the
// approve/quote/swap/receipt call sequence.
package avalanche

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wilhg/conduit/pkg/errmodel"
)

// Token is an ERC-20 (or the native coin) on the C-Chain.
type Token struct {
	Symbol   string         `json:"symbol"`
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
}

// Native reports whether the token is the chain's native coin (zero
// address sentinel).
func (t Token) Native() bool { return t.Address == (common.Address{}) }

// C-Chain constants.
var (
	// DefaultRPCURL is the public Avalanche C-Chain endpoint.
	DefaultRPCURL = "https://api.avax.network/ext/bc/C/rpc"

	// DefaultRouter is the YakSwap aggregator router.
	DefaultRouter = common.HexToAddress("0xC4729E56b831d74bBc18797e0e17A295fA77488c")

	// WAVAX wraps the native coin for ERC-20 pools.
	WAVAX = common.HexToAddress("0xB31f66AA3C1e785363F0875A1B74E27b85FD66c7")
)

// defaultTokens is the C-Chain address book the extraction step resolves
// symbols against. AVAX is the native sentinel.
var defaultTokens = []Token{
	{Symbol: "AVAX", Address: common.Address{}, Decimals: 18},
	{Symbol: "WAVAX", Address: WAVAX, Decimals: 18},
	{Symbol: "USDC", Address: common.HexToAddress("0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E"), Decimals: 6},
	{Symbol: "USDT", Address: common.HexToAddress("0x9702230A8Ea53601f5cD2dc00fDBc13d4dF4A8c7"), Decimals: 6},
	{Symbol: "DAI", Address: common.HexToAddress("0xd586E7F844cEa2F87f50152665BCbc2C279D8d70"), Decimals: 18},
	{Symbol: "JOE", Address: common.HexToAddress("0x6e84a6216eA6dACC71eE8E6b0a5B7322EEbC0fDd"), Decimals: 18},
	{Symbol: "PNG", Address: common.HexToAddress("0x60781C2586D68229fde47564546784ab3fACA982"), Decimals: 18},
	{Symbol: "YAK", Address: common.HexToAddress("0x59414b3089ce2AF0010e7523Dea7E2b35d776ec7"), Decimals: 18},
}

// Registry resolves token symbols and addresses.
type Registry struct {
	bySymbol  map[string]Token
	byAddress map[common.Address]Token
}

// NewRegistry builds a registry over the default address book plus extras.
// Extras override defaults on symbol collision.
func NewRegistry(extra ...Token) *Registry {
	r := &Registry{
		bySymbol:  make(map[string]Token),
		byAddress: make(map[common.Address]Token),
	}
	for _, t := range append(append([]Token(nil), defaultTokens...), extra...) {
		r.bySymbol[strings.ToUpper(t.Symbol)] = t
		r.byAddress[t.Address] = t
	}
	return r
}

// Resolve looks a token up by symbol (case-insensitive) or 0x address.
// Unknown addresses fail: swapping with guessed decimals moves real funds by
// the wrong magnitude.
func (r *Registry) Resolve(s string) (Token, error) {
	s = strings.TrimSpace(s)
	if t, ok := r.bySymbol[strings.ToUpper(s)]; ok {
		return t, nil
	}
	if common.IsHexAddress(s) {
		if t, ok := r.byAddress[common.HexToAddress(s)]; ok {
			return t, nil
		}
	}
	return Token{}, errmodel.Validation("unknown_token", "token is not in the registry",
		map[string]any{"token": s})
}

// ParseAmount converts a decimal string to base units for the given
// precision. Rejects negatives, malformed input, and excess fractional
// digits.
func ParseAmount(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return nil, errmodel.Validation("bad_amount", "amount is empty", nil)
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > int(decimals) {
		return nil, errmodel.Validation("bad_amount", "amount has too many decimal places",
			map[string]any{"amount": s, "decimals": decimals})
	}
	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok || v.Sign() < 0 {
		return nil, errmodel.Validation("bad_amount", "amount is not a positive decimal",
			map[string]any{"amount": s})
	}
	return v, nil
}

// FormatAmount renders base units as a decimal string, trimming trailing
// zeros.
func FormatAmount(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	s := v.String()
	if decimals == 0 {
		return s
	}
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	for len(s) <= int(decimals) {
		s = "0" + s
	}
	cut := len(s) - int(decimals)
	out := s[:cut] + "." + s[cut:]
	out = strings.TrimRight(out, "0")
	out = strings.TrimSuffix(out, ".")
	if neg {
		out = "-" + out
	}
	return out
}

// ApplySlippage reduces amount by bps basis points, the minimum-out bound
// for a quoted swap.
func ApplySlippage(amount *big.Int, bps int64) *big.Int {
	if amount == nil || bps <= 0 {
		return amount
	}
	keep := big.NewInt(10_000 - bps)
	out := new(big.Int).Mul(amount, keep)
	return out.Div(out, big.NewInt(10_000))
}

func shortHash(h common.Hash) string {
	s := h.Hex()
	return fmt.Sprintf("%s…%s", s[:10], s[len(s)-4:])
}
