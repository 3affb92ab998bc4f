package avalanche

import (
	"context"
	"crypto/ecdsa"
	"log/slog"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/wilhg/conduit/pkg/errmodel"
)

// DefaultReceiptTimeout bounds how long a swap waits for its receipt.
const DefaultReceiptTimeout = 2 * time.Minute

// defaultMaxSteps is the path-length bound passed to the router's quote.
var defaultMaxSteps = big.NewInt(3)

// ethBackend is the go-ethereum client surface the swapper uses. Satisfied
// by *ethclient.Client; faked in tests. The receipt methods match
// bind.DeployBackend so bind.WaitMined can poll it.
type ethBackend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// SwapResult reports one executed swap.
type SwapResult struct {
	TxHash    common.Hash
	AmountIn  *big.Int
	AmountOut *big.Int // quoted minimum-out, not the realized amount
	GasUsed   uint64
}

// Swapper drives the approve/quote/swap/receipt sequence against the
// aggregator router.
type Swapper struct {
	eth            ethBackend
	key            *ecdsa.PrivateKey
	from           common.Address
	chainID        *big.Int
	router         common.Address
	wnative        common.Address
	maxSteps       *big.Int
	gasPriceCap    *big.Int
	receiptTimeout time.Duration
	log            *slog.Logger
}

// SwapperConfig configures a Swapper.
type SwapperConfig struct {
	// RPCURL is the C-Chain RPC endpoint. Empty uses DefaultRPCURL.
	RPCURL string

	// PrivateKeyHex is the signing key, hex with or without 0x. Required.
	PrivateKeyHex string

	// Router overrides DefaultRouter.
	Router common.Address

	// WrappedNative overrides WAVAX.
	WrappedNative common.Address

	// MaxSteps bounds the quote path length. Zero uses 3.
	MaxSteps int64

	// GasPriceCapWei caps the gas price used for swap transactions. Zero
	// means no cap.
	GasPriceCapWei int64

	// ReceiptTimeout bounds receipt polling. Zero uses DefaultReceiptTimeout.
	ReceiptTimeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewSwapper validates the key, dials the RPC endpoint, and reads the chain
// id.
func NewSwapper(ctx context.Context, cfg SwapperConfig) (*Swapper, error) {
	key, err := ParsePrivateKey(cfg.PrivateKeyHex)
	if err != nil {
		return nil, err
	}
	rpcURL := cfg.RPCURL
	if rpcURL == "" {
		rpcURL = DefaultRPCURL
	}
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errmodel.Network("dial", "avalanche rpc dial failed",
			map[string]any{"url": rpcURL}, err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, errmodel.Chain("chain_id", "chain id lookup failed", nil, err)
	}
	s := &Swapper{
		eth:            eth,
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		chainID:        chainID,
		router:         cfg.Router,
		wnative:        cfg.WrappedNative,
		maxSteps:       defaultMaxSteps,
		receiptTimeout: cfg.ReceiptTimeout,
		log:            cfg.Logger,
	}
	if s.router == (common.Address{}) {
		s.router = DefaultRouter
	}
	if s.wnative == (common.Address{}) {
		s.wnative = WAVAX
	}
	if cfg.MaxSteps > 0 {
		s.maxSteps = big.NewInt(cfg.MaxSteps)
	}
	if cfg.GasPriceCapWei > 0 {
		s.gasPriceCap = big.NewInt(cfg.GasPriceCapWei)
	}
	if s.receiptTimeout <= 0 {
		s.receiptTimeout = DefaultReceiptTimeout
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s, nil
}

// ParsePrivateKey parses a hex secp256k1 key, tolerating a 0x prefix.
func ParsePrivateKey(hex string) (*ecdsa.PrivateKey, error) {
	if hex == "" {
		return nil, errmodel.Config("missing_setting", "AVALANCHE_PRIVATE_KEY is required", nil)
	}
	if len(hex) > 2 && hex[0] == '0' && (hex[1] == 'x' || hex[1] == 'X') {
		hex = hex[2:]
	}
	key, err := crypto.HexToECDSA(hex)
	if err != nil {
		return nil, errmodel.Config("bad_private_key", "AVALANCHE_PRIVATE_KEY is not a valid hex key", nil)
	}
	return key, nil
}

// Address is the signer address.
func (s *Swapper) Address() common.Address { return s.from }

// onChain maps the native sentinel to the wrapped token for router calls.
func (s *Swapper) onChain(t Token) common.Address {
	if t.Native() {
		return s.wnative
	}
	return t.Address
}

// Quote asks the router for the best path. An empty offer is returned as a
// "no_route" error.
func (s *Swapper) Quote(ctx context.Context, amountIn *big.Int, from, to Token) (*Offer, error) {
	gasPrice, err := s.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errmodel.Chain("gas_price", "gas price lookup failed", nil, err)
	}
	data, err := routerABI.Pack("findBestPathWithGas",
		amountIn, s.onChain(from), s.onChain(to), s.maxSteps, gasPrice)
	if err != nil {
		return nil, errmodel.Chain("pack", "quote encoding failed", nil, err)
	}
	out, err := s.eth.CallContract(ctx, ethereum.CallMsg{To: &s.router, Data: data}, nil)
	if err != nil {
		return nil, errmodel.Chain("quote", "router quote call failed", nil, err)
	}
	vals, err := routerABI.Unpack("findBestPathWithGas", out)
	if err != nil || len(vals) == 0 {
		return nil, errmodel.Chain("unpack", "router quote decoding failed", nil, err)
	}
	offer := abiConvertOffer(vals[0])
	if offer.Empty() {
		return nil, errmodel.Chain("no_route", "router found no route",
			map[string]any{"from": from.Symbol, "to": to.Symbol}, nil)
	}
	return offer, nil
}

// Swap runs the full sequence: ensure allowance for ERC-20 input, pick the
// swap variant by native side, send, and wait for the receipt. minOut is the
// slippage-adjusted bound on the final hop.
func (s *Swapper) Swap(ctx context.Context, offer *Offer, from, to Token, minOut *big.Int) (*SwapResult, error) {
	if offer.Empty() {
		return nil, errmodel.Chain("no_route", "cannot swap an empty offer", nil, nil)
	}
	amountIn := offer.Amounts[0]

	if !from.Native() {
		if err := s.ensureAllowance(ctx, from.Address, amountIn); err != nil {
			return nil, err
		}
	}

	tr := trade{AmountIn: amountIn, AmountOut: minOut, Path: offer.Path, Adapters: offer.Adapters}
	method := "swapNoSplit"
	value := new(big.Int)
	switch {
	case from.Native():
		method = "swapNoSplitFromAVAX"
		value = amountIn
	case to.Native():
		method = "swapNoSplitToAVAX"
	}
	data, err := routerABI.Pack(method, tr, s.from, new(big.Int))
	if err != nil {
		return nil, errmodel.Chain("pack", "swap encoding failed", map[string]any{"method": method}, err)
	}

	receipt, txHash, err := s.sendAndWait(ctx, s.router, value, data)
	if err != nil {
		return nil, err
	}
	s.log.Info("swap mined", "tx", txHash.Hex(), "method", method, "gas_used", receipt.GasUsed)
	return &SwapResult{
		TxHash:    txHash,
		AmountIn:  amountIn,
		AmountOut: minOut,
		GasUsed:   receipt.GasUsed,
	}, nil
}

// ensureAllowance checks allowance(owner, router) and sends an approve for
// the exact amount when it falls short, waiting for the approval receipt.
func (s *Swapper) ensureAllowance(ctx context.Context, token common.Address, amount *big.Int) error {
	data, err := erc20ABI.Pack("allowance", s.from, s.router)
	if err != nil {
		return errmodel.Chain("pack", "allowance encoding failed", nil, err)
	}
	out, err := s.eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return errmodel.Chain("allowance", "allowance call failed", nil, err)
	}
	vals, err := erc20ABI.Unpack("allowance", out)
	if err != nil || len(vals) == 0 {
		return errmodel.Chain("unpack", "allowance decoding failed", nil, err)
	}
	allowance, _ := vals[0].(*big.Int)
	if allowance != nil && allowance.Cmp(amount) >= 0 {
		return nil
	}

	s.log.Info("approving router", "token", token.Hex(), "amount", amount.String())
	data, err = erc20ABI.Pack("approve", s.router, amount)
	if err != nil {
		return errmodel.Chain("pack", "approve encoding failed", nil, err)
	}
	if _, _, err := s.sendAndWait(ctx, token, new(big.Int), data); err != nil {
		return err
	}
	return nil
}

// sendAndWait signs and submits one transaction and polls until it is mined
// or the receipt timeout elapses. Reverted transactions are errors.
func (s *Swapper) sendAndWait(ctx context.Context, to common.Address, value *big.Int, data []byte) (*types.Receipt, common.Hash, error) {
	nonce, err := s.eth.PendingNonceAt(ctx, s.from)
	if err != nil {
		return nil, common.Hash{}, errmodel.Chain("nonce", "nonce lookup failed", nil, err)
	}
	gasPrice, err := s.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, common.Hash{}, errmodel.Chain("gas_price", "gas price lookup failed", nil, err)
	}
	if s.gasPriceCap != nil && gasPrice.Cmp(s.gasPriceCap) > 0 {
		gasPrice = s.gasPriceCap
	}
	gas, err := s.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: s.from, To: &to, Value: value, GasPrice: gasPrice, Data: data,
	})
	if err != nil {
		return nil, common.Hash{}, errmodel.Chain("estimate_gas", "gas estimation failed", nil, err)
	}
	gas += gas / 5 // 20% headroom over the estimate

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return nil, common.Hash{}, errmodel.Chain("sign", "transaction signing failed", nil, err)
	}
	if err := s.eth.SendTransaction(ctx, signed); err != nil {
		return nil, common.Hash{}, errmodel.Chain("send_tx", "transaction send failed", nil, err)
	}

	wctx, cancel := context.WithTimeout(ctx, s.receiptTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(wctx, s.eth, signed)
	if err != nil {
		return nil, signed.Hash(), errmodel.Chain("receipt", "receipt wait failed",
			map[string]any{"tx": signed.Hash().Hex()}, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, signed.Hash(), errmodel.Chain("reverted", "transaction reverted",
			map[string]any{"tx": signed.Hash().Hex()}, nil)
	}
	return receipt, signed.Hash(), nil
}
