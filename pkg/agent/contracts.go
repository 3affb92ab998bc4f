// Package agent defines the contracts between an agent host and its plugins.
// A plugin bundles actions (things the agent can do), providers (context the
// agent can read), evaluators (post-interaction hooks), and services
// (long-running components), all written against a narrow Runtime surface.
//
// The host composes provider context into a State, routes inbound messages
// to the first action that accepts them, and emits replies through a
// Callback. Plugins never talk to each other directly; they share state only
// through the runtime's cache and settings.
//
// Example usage:
//
//	func NewWeatherPlugin(cfg map[string]any) (*agent.Plugin, error) {
//		if cfg["WEATHER_API_KEY"] == "" {
//			return nil, errmodel.Config("missing_setting", "WEATHER_API_KEY is required", nil)
//		}
//		return &agent.Plugin{
//			Name:    "weather",
//			Actions: []agent.Action{&forecastAction{}},
//		}, nil
//	}
package agent

import (
	"context"
	"time"

	"github.com/wilhg/conduit/pkg/cache"
	"github.com/wilhg/conduit/pkg/genai"
)

// Message is one inbound unit of user or channel input.
//
// Messages are immutable once created. The ID is used for deduplication and
// for correlating replies; RoomID groups messages belonging to the same
// conversation.
type Message struct {
	// ID is a unique identifier for this message, typically a UUID.
	ID string `json:"id"`

	// RoomID identifies the conversation the message belongs to.
	RoomID string `json:"room_id"`

	// Sender is the channel-specific address of the author
	// (an EVM address for XMTP, a user ID elsewhere).
	Sender string `json:"sender"`

	// Text is the raw message content.
	Text string `json:"text"`

	// Source names the transport the message arrived on, e.g. "xmtp".
	Source string `json:"source,omitempty"`

	// CreatedAt records when the message was received.
	CreatedAt time.Time `json:"created_at"`

	// Metadata carries transport-specific extras.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// State is the context snapshot composed for one dispatch: the provider
// contributions concatenated into Context, plus per-provider values for
// structured access.
type State struct {
	// Values holds individual provider contributions keyed by provider name.
	Values map[string]any `json:"values,omitempty"`

	// Context is the composed text handed to generation.
	Context string `json:"context,omitempty"`
}

// HandlerResult is the output of an action handler, delivered through a
// Callback and to evaluators.
type HandlerResult struct {
	// Text is the reply content.
	Text string `json:"text"`

	// Data carries structured results (transaction hashes, amounts, quotes).
	Data map[string]any `json:"data,omitempty"`

	// Err reports a handler failure that still produced a user-facing reply.
	Err error `json:"-"`
}

// Callback delivers a handler result back to the originating channel.
type Callback func(ctx context.Context, res HandlerResult) error

// Example is a single conversational turn used to document an action.
type Example struct {
	// User is the speaker, "{{user1}}" style placeholders allowed.
	User string `json:"user"`

	// Text is what the speaker says.
	Text string `json:"text"`

	// Action names the action the turn triggers, if any.
	Action string `json:"action,omitempty"`
}

// ActionDescriptor declares the static interface of an action.
// InputSchema is a JSON Schema (draft 2020-12) in UTF-8 bytes describing the
// structured parameters the handler extracts from natural language.
type ActionDescriptor struct {
	Name        string      `json:"name"`
	Similes     []string    `json:"similes,omitempty"`
	Description string      `json:"description,omitempty"`
	Examples    [][]Example `json:"examples,omitempty"`
	InputSchema []byte      `json:"input_schema,omitempty"`
}

// Action is a callable capability routed by message content.
//
// Validate must be cheap and side-effect free; it decides whether this
// action wants the message. Handle performs the work and emits replies via
// the callback. Handlers own their parameter extraction; extracted
// parameters must conform to InputSchema.
type Action interface {
	// Describe returns the public descriptor (name, similes, schema).
	Describe() ActionDescriptor

	// Validate reports whether this action should handle the message.
	Validate(ctx context.Context, rt Runtime, msg Message) (bool, error)

	// Handle executes the action. opts carries pre-extracted parameters when
	// the caller has them; nil opts means the handler extracts its own.
	Handle(ctx context.Context, rt Runtime, msg Message, st *State, opts map[string]any, cb Callback) error
}

// Provider is a read-only context source. Provider failures degrade to an
// empty contribution; the host logs and moves on.
type Provider interface {
	// Name identifies the provider for deduplication and state keys.
	Name() string

	// Get returns the provider's contribution for this message.
	Get(ctx context.Context, rt Runtime, msg Message, st *State) (string, error)
}

// EvaluatorDescriptor declares the static interface of an evaluator.
type EvaluatorDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// AlwaysRun makes the evaluator fire even when no action handled the
	// message or the handler failed.
	AlwaysRun bool `json:"always_run,omitempty"`
}

// Evaluator runs after a message has been dispatched, observing the result.
// Evaluator failures are logged and never fail the interaction.
type Evaluator interface {
	Describe() EvaluatorDescriptor
	Evaluate(ctx context.Context, rt Runtime, msg Message, res HandlerResult) error
}

// Service is a long-running component owned by a plugin, started after
// registration and stopped on shutdown.
type Service interface {
	Name() string
	Start(ctx context.Context, rt Runtime) error
	Stop(ctx context.Context) error
}

// Plugin bundles the capabilities one integration contributes.
// Constructors validate their configuration and return an error instead of a
// partially working plugin.
type Plugin struct {
	Name        string
	Description string
	Actions     []Action
	Providers   []Provider
	Evaluators  []Evaluator
	Services    []Service
}

// Runtime is the slice of host capability plugins consume.
type Runtime interface {
	// AgentName returns the configured agent identity.
	AgentName() string

	// Setting looks up a configuration value or secret by key. Missing keys
	// return the empty string.
	Setting(key string) string

	// Cache returns the runtime cache shared by providers and actions.
	Cache() cache.Cache

	// Generator returns the host's generation facility.
	Generator() genai.Generator
}
