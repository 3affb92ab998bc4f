package goat

import (
	"log/slog"

	"github.com/wilhg/conduit/pkg/agent"
	"github.com/wilhg/conduit/pkg/errmodel"
	"github.com/wilhg/conduit/pkg/prompt"
	solanaplugin "github.com/wilhg/conduit/pkg/plugins/solana"
)

// Config is the GOAT toolkit plugin configuration.
type Config struct {
	// RPCURL is the Solana RPC endpoint. Empty uses the base plugin's
	// default.
	RPCURL string

	// PrivateKey is the wallet secret key in base58. Required unless Wallet
	// is set.
	PrivateKey string

	// Wallet overrides wallet construction, for tests.
	Wallet *solanaplugin.Wallet

	// JupiterURL overrides the aggregator endpoint.
	JupiterURL string

	// Jupiter overrides the aggregator client, for tests.
	Jupiter *JupiterClient

	// SlippageBps bounds accepted slippage on aggregator swaps. Zero uses
	// 50 (0.5%).
	SlippageBps int

	// TwitterNotify enables the trade-report notifier when the creds are
	// complete.
	TwitterNotify bool
	Twitter       TwitterCreds

	// TweetURL overrides the X API endpoint, for tests.
	TweetURL string

	// Prompts supplies extraction templates. Nil uses prompt.Builtin().
	Prompts *prompt.Store

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// FromSettings builds a Config from runtime settings.
func FromSettings(setting func(string) string) Config {
	return Config{
		RPCURL:        setting("SOLANA_RPC_URL"),
		PrivateKey:    setting("SOLANA_PRIVATE_KEY"),
		JupiterURL:    setting("JUPITER_API_URL"),
		TwitterNotify: setting("TWITTER_NOTIFY") == "true",
		Twitter: TwitterCreds{
			ConsumerKey:    setting("TWITTER_CONSUMER_KEY"),
			ConsumerSecret: setting("TWITTER_CONSUMER_SECRET"),
			AccessToken:    setting("TWITTER_ACCESS_TOKEN"),
			AccessSecret:   setting("TWITTER_ACCESS_SECRET"),
		},
	}
}

// New validates settings, builds the wallet, assembles the toolkit actions,
// and merges them with the base Solana plugin. Toolkit entries win name
// collisions.
func New(cfg Config) (*agent.Plugin, error) {
	wallet := cfg.Wallet
	if wallet == nil {
		var err error
		wallet, err = solanaplugin.NewWallet(cfg.RPCURL, cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
	}
	prompts := cfg.Prompts
	if prompts == nil {
		prompts = prompt.Builtin()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	jupiter := cfg.Jupiter
	if jupiter == nil {
		jupiter = NewJupiterClient(cfg.JupiterURL, nil)
	}
	slippage := cfg.SlippageBps
	if slippage <= 0 {
		slippage = 50
	}

	base, err := solanaplugin.New(solanaplugin.Config{Wallet: wallet, Prompts: prompts, Logger: log})
	if err != nil {
		return nil, err
	}

	toolkit := &agent.Plugin{
		Name:        "goat",
		Description: "On-chain toolkit: balances and aggregator swaps on Solana.",
		Actions: []agent.Action{
			&balanceAction{wallet: wallet},
			&swapAction{wallet: wallet, jupiter: jupiter, prompts: prompts, slippageBps: slippage},
		},
	}

	if cfg.TwitterNotify {
		notifier, err := NewNotifier(cfg.Twitter, cfg.TweetURL, log)
		if err != nil {
			return nil, errmodel.New(errmodel.CategoryConfig, "twitter_notify", "TWITTER_NOTIFY is set but credentials are incomplete", nil, err)
		}
		toolkit.Services = append(toolkit.Services, notifier)
		toolkit.Evaluators = append(toolkit.Evaluators, &tradeReport{notifier: notifier})
	}

	return merge(toolkit, base), nil
}

// merge folds the base plugin's capabilities into the toolkit's bundle.
// Name collisions keep the toolkit entry.
func merge(toolkit, base *agent.Plugin) *agent.Plugin {
	names := make(map[string]bool)
	for _, a := range toolkit.Actions {
		names[a.Describe().Name] = true
	}
	for _, a := range base.Actions {
		if !names[a.Describe().Name] {
			toolkit.Actions = append(toolkit.Actions, a)
		}
	}

	pnames := make(map[string]bool)
	for _, p := range toolkit.Providers {
		pnames[p.Name()] = true
	}
	for _, p := range base.Providers {
		if !pnames[p.Name()] {
			toolkit.Providers = append(toolkit.Providers, p)
		}
	}

	enames := make(map[string]bool)
	for _, e := range toolkit.Evaluators {
		enames[e.Describe().Name] = true
	}
	for _, e := range base.Evaluators {
		if !enames[e.Describe().Name] {
			toolkit.Evaluators = append(toolkit.Evaluators, e)
		}
	}

	snames := make(map[string]bool)
	for _, s := range toolkit.Services {
		snames[s.Name()] = true
	}
	for _, s := range base.Services {
		if !snames[s.Name()] {
			toolkit.Services = append(toolkit.Services, s)
		}
	}
	return toolkit
}
