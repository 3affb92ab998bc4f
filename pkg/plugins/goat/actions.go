package goat

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wilhg/conduit/pkg/agent"
	"github.com/wilhg/conduit/pkg/errmodel"
	"github.com/wilhg/conduit/pkg/genai"
	"github.com/wilhg/conduit/pkg/plugins/avalanche"
	solanaplugin "github.com/wilhg/conduit/pkg/plugins/solana"
	"github.com/wilhg/conduit/pkg/prompt"
)

// Mint is an SPL token the toolkit can quote and swap.
type Mint struct {
	Symbol   string
	Address  string
	Decimals uint8
}

// defaultMints is the symbol book for the Solana side. SOL means wrapped
// SOL at the aggregator; Jupiter unwraps on request.
var defaultMints = []Mint{
	{Symbol: "SOL", Address: "So11111111111111111111111111111111111111112", Decimals: 9},
	{Symbol: "USDC", Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
	{Symbol: "USDT", Address: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", Decimals: 6},
	{Symbol: "BONK", Address: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", Decimals: 5},
	{Symbol: "JUP", Address: "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN", Decimals: 6},
}

func resolveMint(s string) (Mint, bool) {
	s = strings.TrimSpace(s)
	for _, m := range defaultMints {
		if strings.EqualFold(m.Symbol, s) || m.Address == s {
			return m, true
		}
	}
	return Mint{}, false
}

var balanceRe = regexp.MustCompile(`(?i)\b(balance|holdings?|how much)\b`)

// balanceAction reports SOL or SPL balances for symbols named in the
// message. No extraction round-trip; a symbol scan is enough.
type balanceAction struct {
	wallet *solanaplugin.Wallet
}

func (a *balanceAction) Describe() agent.ActionDescriptor {
	return agent.ActionDescriptor{
		Name:        "GET_TOKEN_BALANCE",
		Similes:     []string{"TOKEN_BALANCE", "CHECK_BALANCE"},
		Description: "Report the agent wallet's SOL or SPL token balance.",
		Examples: [][]agent.Example{{
			{User: "{{user1}}", Text: "what's my USDC balance?"},
			{User: "{{agent}}", Text: "You hold 12.5 USDC.", Action: "GET_TOKEN_BALANCE"},
		}},
	}
}

func (a *balanceAction) Validate(_ context.Context, _ agent.Runtime, msg agent.Message) (bool, error) {
	return balanceRe.MatchString(msg.Text), nil
}

func (a *balanceAction) Handle(ctx context.Context, rt agent.Runtime, msg agent.Message, _ *agent.State, _ map[string]any, cb agent.Callback) error {
	var lines []string
	data := map[string]any{}
	for _, m := range defaultMints {
		if !containsWord(msg.Text, m.Symbol) {
			continue
		}
		if m.Symbol == "SOL" {
			bal, err := a.wallet.BalanceSOL(ctx)
			if err != nil {
				return err
			}
			lines = append(lines, fmt.Sprintf("SOL: %.4f", bal))
			data["SOL"] = bal
			continue
		}
		mint, err := solana.PublicKeyFromBase58(m.Address)
		if err != nil {
			continue
		}
		ta, err := a.wallet.TokenBalance(ctx, mint)
		if err != nil {
			return err
		}
		lines = append(lines, fmt.Sprintf("%s: %s", m.Symbol, ta.UI))
		data[m.Symbol] = ta.UI
	}
	if len(lines) == 0 {
		// No symbol named: default to SOL.
		bal, err := a.wallet.BalanceSOL(ctx)
		if err != nil {
			return err
		}
		lines = append(lines, fmt.Sprintf("SOL: %.4f", bal))
		data["SOL"] = bal
	}
	return cb(ctx, agent.HandlerResult{
		Text: "Wallet balances — " + strings.Join(lines, ", "),
		Data: data,
	})
}

func containsWord(text, word string) bool {
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	return re.MatchString(text)
}

// swapSchema matches the swap extraction template.
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

// swapAction quotes and executes a swap through the Jupiter aggregator. The
// aggregator owns routing; the wallet signs and submits.
type swapAction struct {
	wallet      *solanaplugin.Wallet
	jupiter     *JupiterClient
	prompts     *prompt.Store
	slippageBps int
}

func (a *swapAction) Describe() agent.ActionDescriptor {
	return agent.ActionDescriptor{
		Name:        "SWAP_TOKENS",
		Similes:     []string{"TOKEN_SWAP", "TRADE_TOKENS", "EXCHANGE_TOKENS"},
		Description: "Swap SPL tokens through the Jupiter aggregator.",
		Examples: [][]agent.Example{{
			{User: "{{user1}}", Text: "swap 1 SOL for USDC"},
			{User: "{{agent}}", Text: "Swapped 1 SOL for USDC.", Action: "SWAP_TOKENS"},
		}},
		InputSchema: []byte(swapSchema),
	}
}

func (a *swapAction) Validate(_ context.Context, _ agent.Runtime, msg agent.Message) (bool, error) {
	return swapRe.MatchString(msg.Text), nil
}

func (a *swapAction) Handle(ctx context.Context, rt agent.Runtime, msg agent.Message, _ *agent.State, opts map[string]any, cb agent.Callback) error {
	tr := otel.Tracer("plugins/goat")
	ctx, span := tr.Start(ctx, "swapAction.Handle")
	defer span.End()

	params, err := a.params(ctx, rt, msg, opts)
	if err != nil {
		return err
	}
	from, ok := resolveMint(params.FromToken)
	if !ok {
		return errmodel.Validation("unknown_token", "input token is not in the mint book",
			map[string]any{"token": params.FromToken})
	}
	to, ok := resolveMint(params.ToToken)
	if !ok {
		return errmodel.Validation("unknown_token", "output token is not in the mint book",
			map[string]any{"token": params.ToToken})
	}
	amount, err := toBaseUnits(params.Amount, from.Decimals)
	if err != nil {
		return err
	}
	span.SetAttributes(
		attribute.String("from", from.Symbol),
		attribute.String("to", to.Symbol),
		attribute.String("amount", params.Amount),
	)

	quote, err := a.jupiter.GetQuote(ctx, from.Address, to.Address, amount, a.slippageBps)
	if err != nil {
		return err
	}
	tx, err := a.jupiter.BuildSwap(ctx, quote, a.wallet.Address())
	if err != nil {
		return err
	}
	sig, err := a.wallet.SignAndSend(ctx, tx)
	if err != nil {
		return err
	}
	if err := a.wallet.WaitConfirmed(ctx, sig); err != nil {
		return err
	}

	outAmount := formatBaseUnits(quote.OutAmount, to.Decimals)
	return cb(ctx, agent.HandlerResult{
		Text: fmt.Sprintf("Swapped %s %s for ~%s %s. Signature: %s",
			params.Amount, from.Symbol, outAmount, to.Symbol, sig),
		Data: map[string]any{
			"kind":       "swap",
			"signature":  sig.String(),
			"from_token": from.Symbol,
			"to_token":   to.Symbol,
			"amount_in":  params.Amount,
			"amount_out": outAmount,
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

// toBaseUnits converts a decimal amount string to base units at the mint's
// precision. Decimal-string arithmetic keeps amounts beyond float64's
// integer range exact.
func toBaseUnits(amount string, decimals uint8) (uint64, error) {
	v, err := avalanche.ParseAmount(amount, decimals)
	if err != nil {
		return 0, err
	}
	if v.Sign() <= 0 || !v.IsUint64() {
		return 0, errmodel.Validation("bad_amount", "amount is not a positive decimal",
			map[string]any{"amount": amount})
	}
	return v.Uint64(), nil
}

// formatBaseUnits renders a base-unit decimal string (Jupiter amounts are
// strings) at the mint's precision.
func formatBaseUnits(s string, decimals uint8) string {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return s
	}
	return strconv.FormatFloat(float64(v)/math.Pow10(int(decimals)), 'f', -1, 64)
}
