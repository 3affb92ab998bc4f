package xmtp

import (
	"context"
	"testing"
	"time"

	"github.com/wilhg/conduit/pkg/agent"
	"github.com/wilhg/conduit/pkg/agent/agenttest"
	"github.com/wilhg/conduit/pkg/genai/fake"
	"github.com/wilhg/conduit/pkg/prompt"
)

type fakeDispatcher struct {
	handled bool
	reply   string
	seen    []agent.Message
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, _ agent.Runtime, msg agent.Message, _ map[string]any, cb agent.Callback) (agent.DispatchResult, error) {
	d.seen = append(d.seen, msg)
	if !d.handled {
		return agent.DispatchResult{}, nil
	}
	if err := cb(ctx, agent.HandlerResult{Text: d.reply}); err != nil {
		return agent.DispatchResult{}, err
	}
	return agent.DispatchResult{Handled: true, Action: "TEST_ACTION"}, nil
}

func startService(t *testing.T, g *gateway, d Dispatcher, rt agent.Runtime, static string) *Service {
	t.Helper()
	client, err := NewClient(g.url(), testKeyHex, nil)
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(client, static, prompt.Builtin(), nil)
	if d != nil {
		svc.Bind(d)
	}
	if err := svc.Start(context.Background(), rt); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		svc.Stop(ctx)
	})
	<-g.ready
	return svc
}

func inbound(text string) Envelope {
	return Envelope{
		ID:             "m1",
		ConversationID: "conv-1",
		SenderAddress:  "0x2222222222222222222222222222222222222222",
		Content:        text,
		SentAt:         time.Now().UTC(),
	}
}

func TestServiceRepliesThroughDispatcher(t *testing.T) {
	g := newGateway(t)
	d := &fakeDispatcher{handled: true, reply: "Swapped 1 SOL for USDC."}
	startService(t, g, d, agenttest.NewRuntime(), "")

	g.push(inbound("swap 1 SOL for USDC"))

	f, ok := g.waitFrame(5 * time.Second)
	if !ok {
		t.Fatal("no reply frame")
	}
	if f.Message == nil || f.Message.Content != "Swapped 1 SOL for USDC." {
		t.Fatalf("frame = %+v", f)
	}
	if f.Message.ConversationID != "conv-1" {
		t.Fatalf("conversation = %s", f.Message.ConversationID)
	}
	if len(d.seen) != 1 || d.seen[0].Source != "xmtp" {
		t.Fatalf("dispatched = %+v", d.seen)
	}
}

func TestServiceGeneratedFallback(t *testing.T) {
	g := newGateway(t)
	rt := agenttest.NewRuntime().WithGenerator(fake.New("Happy to help."))
	startService(t, g, &fakeDispatcher{handled: false}, rt, "")

	g.push(inbound("hello"))

	f, ok := g.waitFrame(5 * time.Second)
	if !ok {
		t.Fatal("no reply frame")
	}
	if f.Message == nil || f.Message.Content != "Happy to help." {
		t.Fatalf("frame = %+v", f)
	}
}

func TestServiceStaticFallback(t *testing.T) {
	g := newGateway(t)
	// Unscripted generator yields empty text, forcing the static reply.
	startService(t, g, &fakeDispatcher{handled: false}, agenttest.NewRuntime(), "try me later")

	g.push(inbound("hello"))

	f, ok := g.waitFrame(5 * time.Second)
	if !ok {
		t.Fatal("no reply frame")
	}
	if f.Message == nil || f.Message.Content != "try me later" {
		t.Fatalf("frame = %+v", f)
	}
}

func TestServiceIgnoresOwnMessages(t *testing.T) {
	g := newGateway(t)
	d := &fakeDispatcher{handled: true, reply: "echo"}
	svc := startService(t, g, d, agenttest.NewRuntime(), "")

	self := inbound("from myself")
	self.SenderAddress = svc.client.Address().Hex()
	g.push(self)

	if f, ok := g.waitFrame(500 * time.Millisecond); ok {
		t.Fatalf("replied to own message: %+v", f)
	}

	g.push(inbound("from someone else"))
	if _, ok := g.waitFrame(5 * time.Second); !ok {
		t.Fatal("no reply to third-party message")
	}
}

func TestNewPluginBundlesService(t *testing.T) {
	p, svc, err := New(Config{GatewayURL: "ws://gateway.invalid", PrivateKey: testKeyHex})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Name != "xmtp" || svc == nil {
		t.Fatalf("plugin = %+v svc = %v", p, svc)
	}
	if len(p.Services) != 1 || p.Services[0].Name() != "xmtp" {
		t.Fatalf("services = %+v", p.Services)
	}
	if _, _, err := New(Config{PrivateKey: testKeyHex}); err == nil {
		t.Fatal("expected error for missing gateway URL")
	}
}
