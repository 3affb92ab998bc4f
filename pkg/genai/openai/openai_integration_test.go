//go:build integration

package openai

import (
	"context"
	"os"
	"testing"

	"github.com/wilhg/conduit/pkg/genai"
)

func TestOpenAIChatGenerate(t *testing.T) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("OPENAI_API_KEY not set")
	}
	ctx := context.Background()
	g, err := Factory(ctx, map[string]any{})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	msgs := []genai.Message{{Role: "user", Content: "Say 'pong'"}}
	res, err := g.Generate(ctx, msgs, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Text == "" {
		t.Fatalf("empty response text")
	}
}

func TestFactoryRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := Factory(context.Background(), nil); err == nil {
		t.Fatal("expected missing key error")
	}
}
