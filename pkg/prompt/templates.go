package prompt

// Built-in template names.
const (
	NameSwapParams     = "swap-params"
	NameTransferParams = "transfer-params"
	NameChatReply      = "chat-reply"
)

// SwapParams extracts structured swap parameters from a user message.
// Rendered with {Message string}.
const SwapParams = `Extract the token swap the user is asking for.

Message: {{.Message}}

Reply with only a JSON object:
{"fromToken": "<symbol or address>", "toToken": "<symbol or address>", "amount": "<decimal amount of fromToken>"}

Use null for any value the message does not state.`

// TransferParams extracts a SOL transfer request.
// Rendered with {Message string}.
const TransferParams = `Extract the SOL transfer the user is asking for.

Message: {{.Message}}

Reply with only a JSON object:
{"recipient": "<base58 wallet address>", "amountSol": <decimal number>}

Use null for any value the message does not state.`

// ChatReply produces a short conversational reply.
// Rendered with {Agent, Context, Message string}.
const ChatReply = `You are {{.Agent}}, a concise crypto trading assistant.
{{if .Context}}
Context:
{{.Context}}
{{end}}
User: {{.Message}}

Reply in one or two sentences. Do not invent balances or prices absent from the context.`

// Builtin returns a store pre-seeded with version 1 of every built-in
// template. Panics if a built-in fails lint, which would be a bug here.
func Builtin() *Store {
	s := NewStore()
	for name, body := range map[string]string{
		NameSwapParams:     SwapParams,
		NameTransferParams: TransferParams,
		NameChatReply:      ChatReply,
	} {
		if _, issues, err := s.Save(Prompt{Name: name, Body: body}); err != nil {
			panic("prompt: builtin template " + name + " failed lint: " + issues[0].Message)
		}
	}
	return s
}
