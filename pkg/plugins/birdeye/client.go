// Package birdeye provides a market-data provider plugin backed by the
// Birdeye REST API. Responses are served through a read-through cache so
// repeated context compositions do not hammer the API.
package birdeye

import (
	"context"
	"net/http"
	"net/url"

	"github.com/wilhg/conduit/pkg/errmodel"
	"github.com/wilhg/conduit/pkg/httpx"
)

// DefaultBaseURL is the public Birdeye API endpoint.
const DefaultBaseURL = "https://public-api.birdeye.so"

// DefaultChain is the chain scope sent in the x-chain header.
const DefaultChain = "solana"

// Client is a thin Birdeye REST client. All calls go through the shared
// retrying HTTP client; callers are expected to cache results.
type Client struct {
	base   string
	apiKey string
	chain  string
	hc     *httpx.Client
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// BaseURL overrides DefaultBaseURL.
	BaseURL string

	// Chain sets the x-chain header. Empty uses DefaultChain.
	Chain string

	// HTTP overrides the retrying HTTP client. Nil uses httpx defaults
	// (3 attempts, 2s fixed delay).
	HTTP *httpx.Client
}

// NewClient builds a Birdeye client. The API key is required.
func NewClient(apiKey string, opts *ClientOptions) (*Client, error) {
	if apiKey == "" {
		return nil, errmodel.Config("missing_setting", "BIRDEYE_API_KEY is required", nil)
	}
	if opts == nil {
		opts = &ClientOptions{}
	}
	c := &Client{
		base:   opts.BaseURL,
		apiKey: apiKey,
		chain:  opts.Chain,
		hc:     opts.HTTP,
	}
	if c.base == "" {
		c.base = DefaultBaseURL
	}
	if c.chain == "" {
		c.chain = DefaultChain
	}
	if c.hc == nil {
		c.hc = httpx.New(nil)
	}
	return c, nil
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("X-API-KEY", c.apiKey)
	h.Set("x-chain", c.chain)
	h.Set("Accept", "application/json")
	return h
}

// Price is one token's spot price.
type Price struct {
	Value          float64 `json:"value"`
	UpdateUnixTime int64   `json:"updateUnixTime"`
	Liquidity      float64 `json:"liquidity,omitempty"`
}

// TokenSecurity is the subset of Birdeye's token security report the agent
// surfaces.
type TokenSecurity struct {
	CreatorAddress      string  `json:"creatorAddress"`
	OwnerAddress        string  `json:"ownerAddress"`
	Top10HolderPercent  float64 `json:"top10HolderPercent"`
	MutableMetadata     bool    `json:"mutableMetadata"`
	Freezeable          bool    `json:"freezeable"`
	NonTransferable     bool    `json:"nonTransferable"`
	TransferFeeEnable   bool    `json:"transferFeeEnable"`
	TotalSupply         float64 `json:"totalSupply"`
	LockedOfTotalSupply float64 `json:"lockInfo,omitempty"`
}

// TradeData aggregates a token's recent trading activity.
type TradeData struct {
	Price                  float64 `json:"price"`
	PriceChange24hPercent  float64 `json:"price_change_24h_percent"`
	Volume24hUSD           float64 `json:"volume_24h_usd"`
	Volume24hChangePercent float64 `json:"volume_24h_change_percent"`
	Trade24h               int64   `json:"trade_24h"`
	UniqueWallet24h        int64   `json:"unique_wallet_24h"`
}

// PortfolioItem is one holding inside a wallet portfolio.
type PortfolioItem struct {
	Address  string  `json:"address"`
	Symbol   string  `json:"symbol"`
	UIAmount float64 `json:"uiAmount"`
	PriceUSD float64 `json:"priceUsd"`
	ValueUSD float64 `json:"valueUsd"`
}

// Portfolio is a wallet's token list with USD valuation.
type Portfolio struct {
	Wallet   string          `json:"wallet"`
	TotalUSD float64         `json:"totalUsd"`
	Items    []PortfolioItem `json:"items"`
}

// envelope is Birdeye's common response wrapper.
type envelope[T any] struct {
	Data    T      `json:"data"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func get[T any](ctx context.Context, c *Client, path string, q url.Values) (T, error) {
	var env envelope[T]
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	if err := c.hc.GetJSON(ctx, u, c.headers(), &env); err != nil {
		var zero T
		return zero, err
	}
	if !env.Success {
		var zero T
		return zero, errmodel.Network("birdeye_error", "birdeye reported failure",
			map[string]any{"path": path, "message": env.Message}, nil)
	}
	return env.Data, nil
}

// Price fetches the spot price for a token address.
func (c *Client) Price(ctx context.Context, address string) (Price, error) {
	return get[Price](ctx, c, "/defi/price", url.Values{"address": {address}})
}

// TokenSecurity fetches the security report for a token address.
func (c *Client) TokenSecurity(ctx context.Context, address string) (TokenSecurity, error) {
	return get[TokenSecurity](ctx, c, "/defi/token_security", url.Values{"address": {address}})
}

// TradeData fetches 24h trade aggregates for a token address.
func (c *Client) TradeData(ctx context.Context, address string) (TradeData, error) {
	return get[TradeData](ctx, c, "/defi/v3/token/trade-data/single", url.Values{"address": {address}})
}

// Portfolio fetches the token list for a wallet address.
func (c *Client) Portfolio(ctx context.Context, wallet string) (Portfolio, error) {
	return get[Portfolio](ctx, c, "/v1/wallet/token_list", url.Values{"wallet": {wallet}})
}
