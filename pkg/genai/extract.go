package genai

import (
	"context"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/kaptinlin/jsonrepair"

	"github.com/wilhg/conduit/pkg/errmodel"
)

// DefaultExtractAttempts bounds how many times Extract asks the model for
// valid output: the first try plus re-asks.
const DefaultExtractAttempts = 2

// ExtractOptions configures a structured-output extraction.
type ExtractOptions struct {
	// Template is a text/template source rendered with Data to build the
	// prompt. Required.
	Template string

	// Data feeds the template.
	Data any

	// Schema is an optional JSON Schema (draft 2020-12) the parsed output
	// must satisfy.
	Schema []byte

	// Attempts is the total number of generation tries. Zero uses
	// DefaultExtractAttempts.
	Attempts int

	// Model overrides the generator's default model.
	Model string
}

// ExtractJSON renders the prompt, generates, and parses the reply as a JSON
// object. Fenced code blocks are stripped and malformed JSON is repaired
// before parsing. When parsing or schema validation fails, the model is
// re-asked with its previous output, up to the attempt bound.
func ExtractJSON(ctx context.Context, g Generator, opts ExtractOptions) (map[string]any, error) {
	var out map[string]any
	if err := extract(ctx, g, opts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Extract is ExtractJSON with a typed destination.
func Extract[T any](ctx context.Context, g Generator, opts ExtractOptions) (T, error) {
	var out T
	if err := extract(ctx, g, opts, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func extract(ctx context.Context, g Generator, opts ExtractOptions, dst any) error {
	if g == nil {
		return errmodel.Model("no_generator", "generator is nil", nil, nil)
	}
	prompt, err := renderTemplate(opts.Template, opts.Data)
	if err != nil {
		return errmodel.Validation("bad_template", err.Error(), nil)
	}
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = DefaultExtractAttempts
	}
	var genOpts *Options
	if opts.Model != "" {
		genOpts = &Options{Model: opts.Model}
	}

	msgs := []Message{{Role: "user", Content: prompt}}
	var lastErr error
	for try := 0; try < attempts; try++ {
		res, err := g.Generate(ctx, msgs, genOpts)
		if err != nil {
			return errmodel.Model("generate", "generation failed", nil, err)
		}
		raw := StripFences(res.Text)
		// Parse into a fresh value per attempt so a failed try cannot leave
		// stale fields behind in dst.
		var parsed any
		parseErr := unmarshalRepaired([]byte(raw), &parsed)
		if parseErr == nil && opts.Schema != nil {
			parseErr = ValidateJSONSchema(opts.Schema, parsed)
		}
		if parseErr == nil {
			b, _ := json.Marshal(parsed)
			parseErr = json.Unmarshal(b, dst)
		}
		if parseErr == nil {
			return nil
		}
		lastErr = parseErr
		// Re-ask with the bad output in context.
		msgs = append(msgs,
			Message{Role: "assistant", Content: res.Text},
			Message{Role: "user", Content: "The previous reply was not valid JSON for the request. Reply again with only the corrected JSON object, no prose."},
		)
	}
	return errmodel.Model("bad_output", "model output failed extraction", map[string]any{"attempts": attempts}, lastErr)
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag, and trims whitespace.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop a language tag like "json" on the opening fence line.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		first := strings.TrimSpace(s[:i])
		if first != "" && !strings.ContainsAny(first, "{}[]\"") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// unmarshalRepaired unmarshals JSON data into v, attempting to repair
// malformed JSON on syntax errors before retrying.
func unmarshalRepaired(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, rerr := jsonrepair.JSONRepair(string(data))
		if rerr != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}

func renderTemplate(src string, data any) (string, error) {
	tpl, err := template.New("prompt").Parse(src)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := tpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
