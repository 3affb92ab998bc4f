// Package genai exposes the host's generation facility to plugins: a minimal
// chat interface with a provider registry. Vendor adapters live in
// subpackages and self-register on import.
package genai

import (
	"context"
	"fmt"
	"sync"
)

// Message represents a chat message with a role and content.
type Message struct {
	Role    string
	Content string
}

// Options tunes a single generation call. A nil Options uses the
// generator's defaults.
type Options struct {
	// Model overrides the generator's default model.
	Model string
}

// Result contains the model's text output and token usage if available.
type Result struct {
	Text         string
	PromptTokens int
	OutputTokens int
	TotalTokens  int
	Model        string
}

// Generator defines a minimal chat/text generation interface.
type Generator interface {
	// Name returns provider name (e.g., "openai").
	Name() string
	// Generate creates a completion from a list of messages. Implementations
	// may ignore messages except the latest user turn if they are
	// pure-completion models.
	Generate(ctx context.Context, messages []Message, opts *Options) (Result, error)
}

// Factory constructs a Generator from provider-specific config.
type Factory func(ctx context.Context, cfg map[string]any) (Generator, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a Generator factory under a provider name.
func Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("genai: empty provider name")
	}
	if f == nil {
		return fmt.Errorf("genai: nil factory for %q", name)
	}
	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := factories[name]; exists {
		return fmt.Errorf("genai: provider %q already registered", name)
	}
	factories[name] = f
	return nil
}

// Resolve gets a registered factory by name.
func Resolve(name string) (Factory, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// Range iterates all registered factories.
func Range(fn func(name string, f Factory)) {
	regMu.RLock()
	defer regMu.RUnlock()
	for n, f := range factories {
		fn(n, f)
	}
}

// New constructs a Generator by registered provider name.
func New(ctx context.Context, name string, cfg map[string]any) (Generator, error) {
	f, ok := Resolve(name)
	if !ok {
		return nil, fmt.Errorf("genai: unknown provider %q", name)
	}
	return f(ctx, cfg)
}
