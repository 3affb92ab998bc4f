package avalanche

import (
	"context"
	"fmt"
	"math/big"
	"regexp"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wilhg/conduit/pkg/agent"
	"github.com/wilhg/conduit/pkg/errmodel"
	"github.com/wilhg/conduit/pkg/genai"
	"github.com/wilhg/conduit/pkg/prompt"
)

// DefaultSlippageBps is the minimum-out bound applied to quotes.
const DefaultSlippageBps = 50 // 0.5%

// swapSchema validates the parameters extracted from the message.
const swapSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"fromToken": {"type": "string", "minLength": 1},
		"toToken": {"type": "string", "minLength": 1},
		"amount": {"type": "string", "pattern": "^[0-9]+(\\.[0-9]+)?$"}
	},
	"required": ["fromToken", "toToken", "amount"]
}`

var swapRe = regexp.MustCompile(`(?i)\b(swap|trade|convert|sell|buy)\b`)

type swapParams struct {
	FromToken string `json:"fromToken"`
	ToToken   string `json:"toToken"`
	Amount    string `json:"amount"`
}

// swapEngine is the chain side of the action, implemented by Swapper and
// faked in tests.
type swapEngine interface {
	Quote(ctx context.Context, amountIn *big.Int, from, to Token) (*Offer, error)
	Swap(ctx context.Context, offer *Offer, from, to Token, minOut *big.Int) (*SwapResult, error)
}

// swapAction turns "swap 5 AVAX to USDC" into a routed on-chain swap.
type swapAction struct {
	engine      swapEngine
	registry    *Registry
	prompts     *prompt.Store
	slippageBps int64
}

func (a *swapAction) Describe() agent.ActionDescriptor {
	return agent.ActionDescriptor{
		Name:        "EXECUTE_SWAP",
		Similes:     []string{"SWAP_TOKENS", "TOKEN_SWAP", "TRADE_TOKENS"},
		Description: "Swap one token for another on the Avalanche C-Chain via the aggregator router.",
		Examples: [][]agent.Example{{
			{User: "{{user1}}", Text: "swap 5 AVAX for USDC"},
			{User: "{{agent}}", Text: "Swapped 5 AVAX for USDC.", Action: "EXECUTE_SWAP"},
		}},
		InputSchema: []byte(swapSchema),
	}
}

func (a *swapAction) Validate(_ context.Context, _ agent.Runtime, msg agent.Message) (bool, error) {
	return swapRe.MatchString(msg.Text), nil
}

func (a *swapAction) Handle(ctx context.Context, rt agent.Runtime, msg agent.Message, _ *agent.State, opts map[string]any, cb agent.Callback) error {
	tr := otel.Tracer("plugins/avalanche")
	ctx, span := tr.Start(ctx, "swapAction.Handle")
	defer span.End()

	params, err := a.params(ctx, rt, msg, opts)
	if err != nil {
		return err
	}
	from, err := a.registry.Resolve(params.FromToken)
	if err != nil {
		return err
	}
	to, err := a.registry.Resolve(params.ToToken)
	if err != nil {
		return err
	}
	if from.Address == to.Address {
		return errmodel.Validation("same_token", "cannot swap a token for itself",
			map[string]any{"token": from.Symbol})
	}
	amountIn, err := ParseAmount(params.Amount, from.Decimals)
	if err != nil {
		return err
	}
	if amountIn.Sign() == 0 {
		return errmodel.Validation("bad_amount", "amount is zero", nil)
	}
	span.SetAttributes(
		attribute.String("from", from.Symbol),
		attribute.String("to", to.Symbol),
		attribute.String("amount", params.Amount),
	)

	offer, err := a.engine.Quote(ctx, amountIn, from, to)
	if err != nil {
		return err
	}
	minOut := ApplySlippage(offer.AmountOut(), a.slippageBps)

	res, err := a.engine.Swap(ctx, offer, from, to, minOut)
	if err != nil {
		return err
	}

	return cb(ctx, agent.HandlerResult{
		Text: fmt.Sprintf("Swapped %s %s for at least %s %s. Tx: %s",
			FormatAmount(res.AmountIn, from.Decimals), from.Symbol,
			FormatAmount(minOut, to.Decimals), to.Symbol,
			shortHash(res.TxHash)),
		Data: map[string]any{
			"tx_hash":    res.TxHash.Hex(),
			"from_token": from.Symbol,
			"to_token":   to.Symbol,
			"amount_in":  FormatAmount(res.AmountIn, from.Decimals),
			"min_out":    FormatAmount(minOut, to.Decimals),
			"gas_used":   res.GasUsed,
			"kind":       "swap",
		},
	})
}

func (a *swapAction) params(ctx context.Context, rt agent.Runtime, msg agent.Message, opts map[string]any) (swapParams, error) {
	if opts != nil {
		fromTok, _ := opts["fromToken"].(string)
		toTok, _ := opts["toToken"].(string)
		amount, _ := opts["amount"].(string)
		return swapParams{FromToken: fromTok, ToToken: toTok, Amount: amount}, nil
	}
	tpl, _ := a.prompts.Get(prompt.NameSwapParams, 0)
	return genai.Extract[swapParams](ctx, rt.Generator(), genai.ExtractOptions{
		Template: tpl.Body,
		Data:     map[string]any{"Message": msg.Text},
		Schema:   []byte(swapSchema),
	})
}
