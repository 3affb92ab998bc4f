package mcpbridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wilhg/conduit/pkg/agent"
	"github.com/wilhg/conduit/pkg/agent/agenttest"
)

type echoAction struct {
	name   string
	schema []byte
	fail   error

	gotOpts map[string]any
}

func (a *echoAction) Describe() agent.ActionDescriptor {
	return agent.ActionDescriptor{
		Name:        a.name,
		Description: "echoes its parameters",
		InputSchema: a.schema,
	}
}

func (a *echoAction) Validate(context.Context, agent.Runtime, agent.Message) (bool, error) {
	return true, nil
}

func (a *echoAction) Handle(ctx context.Context, _ agent.Runtime, _ agent.Message, _ *agent.State, opts map[string]any, cb agent.Callback) error {
	a.gotOpts = opts
	if a.fail != nil {
		return a.fail
	}
	return cb(ctx, agent.HandlerResult{
		Text: "done",
		Data: map[string]any{"echo": opts["value"]},
	})
}

func callReq(args string) *mcp.CallToolRequest {
	return &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Arguments: json.RawMessage(args)},
	}
}

func newBridge(t *testing.T, a agent.Action) *Server {
	t.Helper()
	s, err := New(Options{
		Runtime: agenttest.NewRuntime(),
		Plugins: []*agent.Plugin{{Name: "test", Actions: []agent.Action{a}}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestHandlerInvokesActionWithArguments(t *testing.T) {
	a := &echoAction{name: "EXECUTE_SWAP"}
	s := newBridge(t, a)

	res, err := s.handler(a)(context.Background(), callReq(`{"value": "hi"}`))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %+v", res)
	}
	if a.gotOpts["value"] != "hi" {
		t.Fatalf("opts = %+v", a.gotOpts)
	}
	if len(res.Content) != 2 {
		t.Fatalf("content = %+v", res.Content)
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok || text.Text != "done" {
		t.Fatalf("content[0] = %+v", res.Content[0])
	}
	data, ok := res.Content[1].(*mcp.TextContent)
	if !ok || data.Text != `{"echo":"hi"}` {
		t.Fatalf("content[1] = %+v", res.Content[1])
	}
}

func TestHandlerReportsActionErrors(t *testing.T) {
	a := &echoAction{name: "EXECUTE_SWAP", fail: errors.New("chain unreachable")}
	s := newBridge(t, a)

	res, err := s.handler(a)(context.Background(), callReq(`{}`))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected IsError")
	}
	text := res.Content[0].(*mcp.TextContent)
	if text.Text != "chain unreachable" {
		t.Fatalf("error text = %q", text.Text)
	}
}

func TestHandlerRejectsMalformedArguments(t *testing.T) {
	a := &echoAction{name: "EXECUTE_SWAP"}
	s := newBridge(t, a)

	res, err := s.handler(a)(context.Background(), callReq(`[1,2]`))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected IsError for non-object arguments")
	}
	if a.gotOpts != nil {
		t.Fatal("action ran despite bad arguments")
	}
}

func TestToolSchemaDecodesActionSchema(t *testing.T) {
	schema := []byte(`{"type": "object", "required": ["amount"]}`)
	got, err := toolSchema(agent.ActionDescriptor{Name: "X", InputSchema: schema})
	if err != nil {
		t.Fatalf("toolSchema: %v", err)
	}
	if got.Type != "object" || len(got.Required) != 1 || got.Required[0] != "amount" {
		t.Fatalf("schema = %+v", got)
	}

	// Schemaless actions accept any object.
	got, err = toolSchema(agent.ActionDescriptor{Name: "X"})
	if err != nil || got.Type != "object" {
		t.Fatalf("default schema = %+v err = %v", got, err)
	}
}

func TestToolName(t *testing.T) {
	if got := ToolName("avalanche", "EXECUTE_SWAP"); got != "avalanche.execute_swap" {
		t.Fatalf("ToolName = %q", got)
	}
}

func TestNewRequiresRuntime(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected config error")
	}
}
