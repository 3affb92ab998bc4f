package birdeye

import (
	"log/slog"
	"strings"

	"github.com/wilhg/conduit/pkg/agent"
	"github.com/wilhg/conduit/pkg/errmodel"
)

// Config is the birdeye plugin configuration.
type Config struct {
	// APIKey authenticates against the Birdeye API. Required.
	APIKey string

	// Chain scopes requests (x-chain header). Empty uses DefaultChain.
	Chain string

	// Wallet, when set, adds a portfolio line for this wallet address.
	Wallet string

	// Watch lists the tokens the provider reports on. Empty uses
	// DefaultWatchlist.
	Watch []WatchedToken

	// Client overrides the Birdeye client, for tests.
	Client *Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// FromSettings builds a Config from runtime settings: BIRDEYE_API_KEY,
// BIRDEYE_CHAIN, BIRDEYE_WALLET_ADDR, and BIRDEYE_WATCHLIST as
// comma-separated "SYMBOL:address" pairs.
func FromSettings(setting func(string) string) Config {
	cfg := Config{
		APIKey: setting("BIRDEYE_API_KEY"),
		Chain:  setting("BIRDEYE_CHAIN"),
		Wallet: setting("BIRDEYE_WALLET_ADDR"),
	}
	for _, pair := range strings.Split(setting("BIRDEYE_WATCHLIST"), ",") {
		sym, addr, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || sym == "" || addr == "" {
			continue
		}
		cfg.Watch = append(cfg.Watch, WatchedToken{Symbol: sym, Address: addr})
	}
	return cfg
}

// New validates the configuration and returns the birdeye plugin: a single
// market-data provider.
func New(cfg Config) (*agent.Plugin, error) {
	client := cfg.Client
	if client == nil {
		var err error
		client, err = NewClient(cfg.APIKey, &ClientOptions{Chain: cfg.Chain})
		if err != nil {
			return nil, err
		}
	}
	watch := cfg.Watch
	if len(watch) == 0 {
		watch = DefaultWatchlist
	}
	for _, t := range watch {
		if t.Address == "" {
			return nil, errmodel.Config("bad_watchlist", "watched token has no address",
				map[string]any{"symbol": t.Symbol})
		}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &agent.Plugin{
		Name:        "birdeye",
		Description: "Market data from the Birdeye API with a two-tier cache.",
		Providers: []agent.Provider{
			&MarketProvider{client: client, watch: watch, wallet: cfg.Wallet, log: log},
		},
	}, nil
}
