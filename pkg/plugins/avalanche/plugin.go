package avalanche

import (
	"context"

	"github.com/wilhg/conduit/pkg/agent"
	"github.com/wilhg/conduit/pkg/prompt"
)

// Config is the Avalanche swap plugin configuration.
type Config struct {
	// Swapper settings; see SwapperConfig. Ignored when Engine is set.
	Swapper SwapperConfig

	// SlippageBps bounds the accepted output below the quote. Zero uses
	// DefaultSlippageBps.
	SlippageBps int64

	// Tokens extends the default C-Chain address book.
	Tokens []Token

	// Prompts supplies extraction templates. Nil uses prompt.Builtin().
	Prompts *prompt.Store
}

// New validates settings, dials the chain, and returns the swap plugin with
// its single EXECUTE_SWAP action.
func New(ctx context.Context, cfg Config) (*agent.Plugin, error) {
	engine, err := NewSwapper(ctx, cfg.Swapper)
	if err != nil {
		return nil, err
	}
	return newWithEngine(engine, cfg), nil
}

func newWithEngine(engine swapEngine, cfg Config) *agent.Plugin {
	slippage := cfg.SlippageBps
	if slippage <= 0 {
		slippage = DefaultSlippageBps
	}
	prompts := cfg.Prompts
	if prompts == nil {
		prompts = prompt.Builtin()
	}
	return &agent.Plugin{
		Name:        "avalanche",
		Description: "Token swaps on the Avalanche C-Chain through the aggregator router.",
		Actions: []agent.Action{
			&swapAction{
				engine:      engine,
				registry:    NewRegistry(cfg.Tokens...),
				prompts:     prompts,
				slippageBps: slippage,
			},
		},
	}
}
