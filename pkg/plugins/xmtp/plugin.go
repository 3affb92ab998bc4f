package xmtp

import (
	"log/slog"

	"github.com/wilhg/conduit/pkg/agent"
	"github.com/wilhg/conduit/pkg/prompt"
)

// Config is the messaging plugin configuration.
type Config struct {
	// GatewayURL is the XMTP gateway WebSocket endpoint. Required.
	GatewayURL string

	// PrivateKey is the EVM identity key in hex. Required.
	PrivateKey string

	// StaticReply answers unclaimed messages when generation is
	// unavailable. Empty uses DefaultStaticReply.
	StaticReply string

	// Prompts supplies the chat-reply template. Nil uses prompt.Builtin().
	Prompts *prompt.Store

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// FromSettings builds a Config from runtime settings.
func FromSettings(setting func(string) string) Config {
	return Config{
		GatewayURL:  setting("XMTP_GATEWAY_URL"),
		PrivateKey:  setting("EVM_PRIVATE_KEY"),
		StaticReply: setting("XMTP_STATIC_REPLY"),
	}
}

// New builds the plugin and returns the service alongside it so the host
// can Bind the dispatcher once it exists.
func New(cfg Config) (*agent.Plugin, *Service, error) {
	client, err := NewClient(cfg.GatewayURL, cfg.PrivateKey, cfg.Logger)
	if err != nil {
		return nil, nil, err
	}
	prompts := cfg.Prompts
	if prompts == nil {
		prompts = prompt.Builtin()
	}
	svc := NewService(client, cfg.StaticReply, prompts, cfg.Logger)
	p := &agent.Plugin{
		Name:        "xmtp",
		Description: "XMTP gateway messaging: streams conversations into the agent.",
		Services:    []agent.Service{svc},
	}
	return p, svc, nil
}
