package xmtp

import (
	"context"
	"log/slog"
	"strings"
	"text/template"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wilhg/conduit/pkg/agent"
	"github.com/wilhg/conduit/pkg/genai"
	"github.com/wilhg/conduit/pkg/prompt"
)

// DefaultStaticReply answers messages no action claims when generation is
// unavailable.
const DefaultStaticReply = "delegating to agent…"

// Dispatcher routes a message to the first action that accepts it.
// *agent.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, rt agent.Runtime, msg agent.Message, opts map[string]any, cb agent.Callback) (agent.DispatchResult, error)
}

// Service consumes the gateway message stream and routes each message
// through the dispatcher. Unclaimed messages get a fallback reply:
// generated when the runtime has a generator and a chat template, static
// otherwise.
type Service struct {
	client      *Client
	dispatcher  Dispatcher
	staticReply string
	prompts     *prompt.Store
	log         *slog.Logger
	done        chan struct{}
}

// NewService wraps a client. The dispatcher may be bound later, before
// Start; without one every message takes the fallback path.
func NewService(client *Client, staticReply string, prompts *prompt.Store, log *slog.Logger) *Service {
	if staticReply == "" {
		staticReply = DefaultStaticReply
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		client:      client,
		staticReply: staticReply,
		prompts:     prompts,
		log:         log,
		done:        make(chan struct{}),
	}
}

// Bind attaches the dispatcher. Call before Start; the dispatcher is built
// after plugins, so it cannot be a constructor argument.
func (s *Service) Bind(d Dispatcher) { s.dispatcher = d }

func (s *Service) Name() string { return "xmtp" }

// Start connects the gateway session and consumes it until Stop or until
// the stream ends.
func (s *Service) Start(ctx context.Context, rt agent.Runtime) error {
	if err := s.client.Connect(ctx); err != nil {
		return err
	}
	go s.loop(ctx, rt)
	return nil
}

// Stop closes the session and waits for the consumer loop to drain.
func (s *Service) Stop(ctx context.Context) error {
	s.client.Close()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) loop(ctx context.Context, rt agent.Runtime) {
	defer close(s.done)
	self := s.client.Address().Hex()
	for env := range s.client.Messages() {
		// Own outbound messages echo back through the stream.
		if strings.EqualFold(env.SenderAddress, self) {
			continue
		}
		s.handle(ctx, rt, env)
	}
}

func (s *Service) handle(ctx context.Context, rt agent.Runtime, env Envelope) {
	tr := otel.Tracer("plugins/xmtp")
	ctx, span := tr.Start(ctx, "Service.handle")
	defer span.End()
	span.SetAttributes(attribute.String("conversation", env.ConversationID))

	msg := agent.Message{
		ID:        env.ID,
		RoomID:    env.ConversationID,
		Sender:    env.SenderAddress,
		Text:      env.Content,
		Source:    "xmtp",
		CreatedAt: env.SentAt,
	}
	cb := func(_ context.Context, res agent.HandlerResult) error {
		if res.Text == "" {
			return nil
		}
		return s.client.Send(env.ConversationID, res.Text)
	}

	if s.dispatcher != nil {
		res, err := s.dispatcher.Dispatch(ctx, rt, msg, nil, cb)
		if err != nil {
			s.log.Error("dispatch failed", "conversation", env.ConversationID, "err", err)
			s.reply(env.ConversationID, s.staticReply)
			return
		}
		if res.Handled {
			return
		}
	}
	s.reply(env.ConversationID, s.fallback(ctx, rt, msg))
}

func (s *Service) reply(conversationID, text string) {
	if err := s.client.Send(conversationID, text); err != nil {
		s.log.Error("reply failed", "conversation", conversationID, "err", err)
	}
}

// fallback generates a reply when the runtime carries a generator and the
// chat template is available; otherwise it returns the static reply.
func (s *Service) fallback(ctx context.Context, rt agent.Runtime, msg agent.Message) string {
	gen := rt.Generator()
	if gen == nil || s.prompts == nil {
		return s.staticReply
	}
	p, ok := s.prompts.Get(prompt.NameChatReply, 0)
	if !ok {
		return s.staticReply
	}
	tpl, err := template.New(prompt.NameChatReply).Parse(p.Body)
	if err != nil {
		return s.staticReply
	}
	var b strings.Builder
	err = tpl.Execute(&b, map[string]string{
		"Agent":   rt.AgentName(),
		"Message": msg.Text,
	})
	if err != nil {
		return s.staticReply
	}
	res, err := gen.Generate(ctx, []genai.Message{{Role: "user", Content: b.String()}}, nil)
	if err != nil || strings.TrimSpace(res.Text) == "" {
		if err != nil {
			s.log.Warn("fallback generation failed", "err", err)
		}
		return s.staticReply
	}
	return strings.TrimSpace(res.Text)
}
