package avalanche

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ERC-20 subset the swap path needs.
const erc20ABIJSON = `[
	{"name":"allowance","type":"function","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"name":"balanceOf","type":"function","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`

// YakRouter subset: quote plus the three swap variants.
const routerABIJSON = `[
	{"name":"findBestPathWithGas","type":"function","stateMutability":"view",
	 "inputs":[
		{"name":"_amountIn","type":"uint256"},
		{"name":"_tokenIn","type":"address"},
		{"name":"_tokenOut","type":"address"},
		{"name":"_maxSteps","type":"uint256"},
		{"name":"_gasPrice","type":"uint256"}],
	 "outputs":[{"name":"","type":"tuple","components":[
		{"name":"amounts","type":"uint256[]"},
		{"name":"adapters","type":"address[]"},
		{"name":"path","type":"address[]"},
		{"name":"gasEstimate","type":"uint256"}]}]},
	{"name":"swapNoSplit","type":"function","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"_trade","type":"tuple","components":[
			{"name":"amountIn","type":"uint256"},
			{"name":"amountOut","type":"uint256"},
			{"name":"path","type":"address[]"},
			{"name":"adapters","type":"address[]"}]},
		{"name":"_to","type":"address"},
		{"name":"_fee","type":"uint256"}],
	 "outputs":[]},
	{"name":"swapNoSplitFromAVAX","type":"function","stateMutability":"payable",
	 "inputs":[
		{"name":"_trade","type":"tuple","components":[
			{"name":"amountIn","type":"uint256"},
			{"name":"amountOut","type":"uint256"},
			{"name":"path","type":"address[]"},
			{"name":"adapters","type":"address[]"}]},
		{"name":"_to","type":"address"},
		{"name":"_fee","type":"uint256"}],
	 "outputs":[]},
	{"name":"swapNoSplitToAVAX","type":"function","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"_trade","type":"tuple","components":[
			{"name":"amountIn","type":"uint256"},
			{"name":"amountOut","type":"uint256"},
			{"name":"path","type":"address[]"},
			{"name":"adapters","type":"address[]"}]},
		{"name":"_to","type":"address"},
		{"name":"_fee","type":"uint256"}],
	 "outputs":[]}
]`

var (
	erc20ABI  abi.ABI
	routerABI abi.ABI
)

func init() {
	var err error
	if erc20ABI, err = abi.JSON(strings.NewReader(erc20ABIJSON)); err != nil {
		panic("avalanche: bad erc20 abi: " + err.Error())
	}
	if routerABI, err = abi.JSON(strings.NewReader(routerABIJSON)); err != nil {
		panic("avalanche: bad router abi: " + err.Error())
	}
}

// Offer is the router's quote: amounts per hop, the adapter and token path,
// and the router's gas estimate.
type Offer struct {
	Amounts     []*big.Int       `abi:"amounts"`
	Adapters    []common.Address `abi:"adapters"`
	Path        []common.Address `abi:"path"`
	GasEstimate *big.Int         `abi:"gasEstimate"`
}

// AmountOut is the final hop amount, nil for an empty offer.
func (o *Offer) AmountOut() *big.Int {
	if o == nil || len(o.Amounts) == 0 {
		return nil
	}
	return o.Amounts[len(o.Amounts)-1]
}

// Empty reports whether the router found no route.
func (o *Offer) Empty() bool {
	return o == nil || len(o.Path) == 0 || o.AmountOut() == nil || o.AmountOut().Sign() == 0
}

// abiConvertOffer converts the anonymous tuple struct abi.Unpack produces
// into an Offer via the abi field tags.
func abiConvertOffer(v any) *Offer {
	return abi.ConvertType(v, new(Offer)).(*Offer)
}

// trade is the router's swap argument tuple.
type trade struct {
	AmountIn  *big.Int         `abi:"amountIn"`
	AmountOut *big.Int         `abi:"amountOut"`
	Path      []common.Address `abi:"path"`
	Adapters  []common.Address `abi:"adapters"`
}
