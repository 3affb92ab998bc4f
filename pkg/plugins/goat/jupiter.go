// Package goat is the on-chain toolkit plugin: it builds a Solana wallet
// from settings, contributes toolkit actions (balances, aggregator swaps),
// merges them with the base Solana plugin, and optionally posts trade
// reports through a Twitter notifier service.
package goat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/gagliardetto/solana-go"

	"github.com/wilhg/conduit/pkg/errmodel"
	"github.com/wilhg/conduit/pkg/httpx"
)

// DefaultJupiterURL is the Jupiter aggregator quote API.
const DefaultJupiterURL = "https://quote-api.jup.ag/v6"

// JupiterClient is a thin client for the aggregator's quote/swap endpoints.
// Routing happens server-side; this is call-through only.
type JupiterClient struct {
	base string
	hc   *httpx.Client
}

// NewJupiterClient builds a client. Empty baseURL uses DefaultJupiterURL,
// nil hc uses httpx defaults.
func NewJupiterClient(baseURL string, hc *httpx.Client) *JupiterClient {
	if baseURL == "" {
		baseURL = DefaultJupiterURL
	}
	if hc == nil {
		hc = httpx.New(nil)
	}
	return &JupiterClient{base: baseURL, hc: hc}
}

// Quote is the aggregator's route quote. Raw retains the full payload; the
// swap endpoint requires it verbatim.
type Quote struct {
	InputMint      string `json:"inputMint"`
	OutputMint     string `json:"outputMint"`
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`

	Raw json.RawMessage `json:"-"`
}

// GetQuote asks for the best route. amount is in the input mint's base
// units.
func (c *JupiterClient) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error) {
	q := url.Values{
		"inputMint":           {inputMint},
		"outputMint":          {outputMint},
		"amount":              {strconv.FormatUint(amount, 10)},
		"slippageBps":         {strconv.Itoa(slippageBps)},
		"asLegacyTransaction": {"true"},
	}
	var raw json.RawMessage
	if err := c.hc.GetJSON(ctx, c.base+"/quote?"+q.Encode(), nil, &raw); err != nil {
		return nil, err
	}
	var quote Quote
	if err := json.Unmarshal(raw, &quote); err != nil {
		return nil, errmodel.Network("bad_quote", "quote response is not valid JSON", nil, err)
	}
	if quote.OutAmount == "" {
		return nil, errmodel.Network("no_route", "aggregator returned no route",
			map[string]any{"input": inputMint, "output": outputMint}, nil)
	}
	quote.Raw = raw
	return &quote, nil
}

// BuildSwap exchanges a quote for an unsigned legacy transaction to sign
// and submit.
func (c *JupiterClient) BuildSwap(ctx context.Context, quote *Quote, user solana.PublicKey) (*solana.Transaction, error) {
	body := map[string]any{
		"quoteResponse":       quote.Raw,
		"userPublicKey":       user.String(),
		"wrapAndUnwrapSol":    true,
		"asLegacyTransaction": true,
	}
	var resp struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := c.hc.PostJSON(ctx, c.base+"/swap", nil, body, &resp); err != nil {
		return nil, err
	}
	rawTx, err := base64.StdEncoding.DecodeString(resp.SwapTransaction)
	if err != nil {
		return nil, errmodel.Network("bad_swap_tx", "swap transaction is not valid base64", nil, err)
	}
	tx, err := solana.TransactionFromBytes(rawTx)
	if err != nil {
		return nil, errmodel.Chain("bad_swap_tx", "swap transaction failed to parse", nil, err)
	}
	return tx, nil
}
