// Package agenttest provides a fake Runtime for plugin tests.
package agenttest

import (
	"context"
	"sync"
	"time"

	"github.com/wilhg/conduit/pkg/agent"
	"github.com/wilhg/conduit/pkg/cache"
	"github.com/wilhg/conduit/pkg/genai"
	"github.com/wilhg/conduit/pkg/genai/fake"
)

// Runtime is a configurable agent.Runtime backed by an in-memory cache and a
// scripted generator.
type Runtime struct {
	Name     string
	Settings map[string]string
	Store    cache.Cache
	Gen      genai.Generator
}

// NewRuntime builds a Runtime with sane test defaults: agent name
// "test-agent", empty settings, a memory cache, and a fake generator with no
// scripted replies.
func NewRuntime() *Runtime {
	return &Runtime{
		Name:     "test-agent",
		Settings: map[string]string{},
		Store:    cache.NewMemory(time.Hour),
		Gen:      fake.New(),
	}
}

// WithSetting sets a setting and returns the runtime for chaining.
func (r *Runtime) WithSetting(key, value string) *Runtime {
	r.Settings[key] = value
	return r
}

// WithGenerator replaces the generator and returns the runtime for chaining.
func (r *Runtime) WithGenerator(g genai.Generator) *Runtime {
	r.Gen = g
	return r
}

func (r *Runtime) AgentName() string { return r.Name }

func (r *Runtime) Setting(key string) string { return r.Settings[key] }

func (r *Runtime) Cache() cache.Cache { return r.Store }

func (r *Runtime) Generator() genai.Generator { return r.Gen }

// Recorder returns a Callback that appends every handler result to an
// internal slice, plus an accessor for assertions.
func Recorder() (agent.Callback, func() []agent.HandlerResult) {
	var mu sync.Mutex
	var results []agent.HandlerResult
	cb := func(_ context.Context, res agent.HandlerResult) error {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, res)
		return nil
	}
	get := func() []agent.HandlerResult {
		mu.Lock()
		defer mu.Unlock()
		out := make([]agent.HandlerResult, len(results))
		copy(out, results)
		return out
	}
	return cb, get
}

// Msg is a shorthand Message constructor for tests.
func Msg(text string) agent.Message {
	return agent.Message{
		ID:        "msg-1",
		RoomID:    "room-1",
		Sender:    "0xSender",
		Text:      text,
		Source:    "test",
		CreatedAt: time.Now().UTC(),
	}
}
