package solana

import (
	"log/slog"

	"github.com/wilhg/conduit/pkg/agent"
	"github.com/wilhg/conduit/pkg/prompt"
)

// Config is the base Solana plugin configuration.
type Config struct {
	// RPCURL is the Solana RPC endpoint. Empty uses DefaultRPCURL.
	RPCURL string

	// PrivateKey is the wallet secret key in base58. Required unless Wallet
	// is set.
	PrivateKey string

	// Mints lists SPL tokens the wallet provider reports balances for.
	Mints []TrackedMint

	// Wallet overrides wallet construction, for tests and for callers that
	// already hold one (the GOAT plugin shares its wallet).
	Wallet *Wallet

	// Prompts supplies extraction templates. Nil uses prompt.Builtin().
	Prompts *prompt.Store

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// New validates the configuration and returns the base Solana plugin:
// the wallet context provider and the TRANSFER_SOL action.
func New(cfg Config) (*agent.Plugin, error) {
	wallet := cfg.Wallet
	if wallet == nil {
		var err error
		wallet, err = NewWallet(cfg.RPCURL, cfg.PrivateKey)
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
	return &agent.Plugin{
		Name:        "solana",
		Description: "Solana wallet context and SOL transfers.",
		Providers: []agent.Provider{
			&WalletProvider{wallet: wallet, mints: cfg.Mints, log: log},
		},
		Actions: []agent.Action{
			&transferAction{wallet: wallet, prompts: prompts},
		},
	}, nil
}
