// Package fake provides a scripted Generator for tests.
package fake

import (
	"context"
	"sync"

	"github.com/wilhg/conduit/pkg/genai"
)

// Generator replays scripted responses in order. When the script runs out,
// the last response repeats. It records every call for assertions.
type Generator struct {
	mu        sync.Mutex
	responses []string
	next      int

	// Err, when set, fails every Generate call.
	Err error

	// Calls records the message lists passed to Generate.
	Calls [][]genai.Message
}

// New builds a scripted generator.
func New(responses ...string) *Generator {
	return &Generator{responses: responses}
}

func (g *Generator) Name() string { return "fake" }

func (g *Generator) Generate(_ context.Context, messages []genai.Message, opts *genai.Options) (genai.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, messages)
	if g.Err != nil {
		return genai.Result{}, g.Err
	}
	text := ""
	if len(g.responses) > 0 {
		if g.next >= len(g.responses) {
			text = g.responses[len(g.responses)-1]
		} else {
			text = g.responses[g.next]
			g.next++
		}
	}
	model := "fake"
	if opts != nil && opts.Model != "" {
		model = opts.Model
	}
	return genai.Result{Text: text, Model: model}, nil
}

// CallCount reports how many times Generate ran.
func (g *Generator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Calls)
}
