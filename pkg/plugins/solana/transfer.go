package solana

import (
	"context"
	"fmt"
	"math"
	"regexp"

	"github.com/gagliardetto/solana-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wilhg/conduit/pkg/agent"
	"github.com/wilhg/conduit/pkg/errmodel"
	"github.com/wilhg/conduit/pkg/genai"
	"github.com/wilhg/conduit/pkg/prompt"
)

// transferSchema validates the parameters extracted from the message.
const transferSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"recipient": {"type": "string", "minLength": 32},
		"amountSol": {"type": "number", "exclusiveMinimum": 0}
	},
	"required": ["recipient", "amountSol"]
}`

var transferRe = regexp.MustCompile(`(?i)\b(send|transfer)\b.*\bsol\b`)

type transferParams struct {
	Recipient string  `json:"recipient"`
	AmountSol float64 `json:"amountSol"`
}

// transferAction moves SOL to a recipient extracted from the message.
type transferAction struct {
	wallet  *Wallet
	prompts *prompt.Store
}

func (a *transferAction) Describe() agent.ActionDescriptor {
	return agent.ActionDescriptor{
		Name:        "TRANSFER_SOL",
		Similes:     []string{"SEND_SOL", "PAY_SOL"},
		Description: "Transfer SOL from the agent wallet to a recipient address.",
		Examples: [][]agent.Example{{
			{User: "{{user1}}", Text: "send 0.5 SOL to 9aE476sH92Vz7DMPyq5WLPkrKWivxeuTKEFKd2sZZcde"},
			{User: "{{agent}}", Text: "Sent 0.5 SOL.", Action: "TRANSFER_SOL"},
		}},
		InputSchema: []byte(transferSchema),
	}
}

func (a *transferAction) Validate(_ context.Context, _ agent.Runtime, msg agent.Message) (bool, error) {
	return transferRe.MatchString(msg.Text), nil
}

func (a *transferAction) Handle(ctx context.Context, rt agent.Runtime, msg agent.Message, _ *agent.State, opts map[string]any, cb agent.Callback) error {
	tr := otel.Tracer("plugins/solana")
	ctx, span := tr.Start(ctx, "transferAction.Handle")
	defer span.End()

	params, err := a.params(ctx, rt, msg, opts)
	if err != nil {
		return err
	}
	recipient, err := solana.PublicKeyFromBase58(params.Recipient)
	if err != nil {
		return errmodel.Validation("bad_recipient", "recipient is not a valid Solana address",
			map[string]any{"recipient": params.Recipient})
	}
	lamports := uint64(math.Round(params.AmountSol * float64(solana.LAMPORTS_PER_SOL)))
	if lamports == 0 {
		return errmodel.Validation("bad_amount", "amount rounds to zero lamports",
			map[string]any{"amount_sol": params.AmountSol})
	}
	span.SetAttributes(
		attribute.String("recipient", recipient.String()),
		attribute.Float64("amount_sol", params.AmountSol),
	)

	sig, err := a.wallet.TransferSOL(ctx, recipient, lamports)
	if err != nil {
		return err
	}
	if err := a.wallet.WaitConfirmed(ctx, sig); err != nil {
		return err
	}

	return cb(ctx, agent.HandlerResult{
		Text: fmt.Sprintf("Sent %.4f SOL to %s. Signature: %s", params.AmountSol, recipient, sig),
		Data: map[string]any{
			"signature":  sig.String(),
			"recipient":  recipient.String(),
			"amount_sol": params.AmountSol,
		},
	})
}

// params uses pre-extracted opts when the dispatcher validated them, else
// extracts from the message text.
func (a *transferAction) params(ctx context.Context, rt agent.Runtime, msg agent.Message, opts map[string]any) (transferParams, error) {
	if opts != nil {
		recipient, _ := opts["recipient"].(string)
		amount, _ := opts["amountSol"].(float64)
		return transferParams{Recipient: recipient, AmountSol: amount}, nil
	}
	tpl, _ := a.prompts.Get(prompt.NameTransferParams, 0)
	return genai.Extract[transferParams](ctx, rt.Generator(), genai.ExtractOptions{
		Template: tpl.Body,
		Data:     map[string]any{"Message": msg.Text},
		Schema:   []byte(transferSchema),
	})
}
