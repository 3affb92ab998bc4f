package gemini

import (
	"context"
	"fmt"
	"os"

	googlegenai "google.golang.org/genai"

	"github.com/wilhg/conduit/pkg/genai"
)

const defaultModel = "gemini-2.5-flash-lite"

type clientWrapper struct {
	client *googlegenai.Client
	model  string
}

func (c *clientWrapper) Name() string { return "gemini" }

func (c *clientWrapper) Generate(ctx context.Context, messages []genai.Message, opts *genai.Options) (genai.Result, error) {
	model := c.model
	if opts != nil && opts.Model != "" {
		model = opts.Model
	}
	// Build a single turn from concatenated text for simplicity
	var text string
	for _, m := range messages {
		if m.Content != "" {
			text += m.Content + "\n"
		}
	}
	parts := []*googlegenai.Part{{Text: text}}
	res, err := c.client.Models.GenerateContent(ctx, model, []*googlegenai.Content{{Parts: parts}}, nil)
	if err != nil {
		return genai.Result{}, err
	}
	out := res.Text()
	return genai.Result{Text: out, Model: model}, nil
}

// Factory creates a Gemini generator using GOOGLE_API_KEY by default.
func Factory(ctx context.Context, cfg map[string]any) (genai.Generator, error) { // nolint: revive
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if v, ok := cfg["api_key"].(string); ok && v != "" {
		apiKey = v
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: missing API key; set GOOGLE_API_KEY or cfg.api_key")
	}
	// Prefer Gemini API backend
	client, err := googlegenai.NewClient(ctx, &googlegenai.ClientConfig{APIKey: apiKey, Backend: googlegenai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	model := defaultModel
	if v, ok := cfg["model"].(string); ok && v != "" {
		model = v
	}
	return &clientWrapper{client: client, model: model}, nil
}

func init() {
	_ = genai.Register("gemini", Factory)
}
