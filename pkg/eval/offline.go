// Package eval checks prompts and dispatch behavior offline, with no model
// in the loop. Fixtures render extraction templates against scripted vars
// and assert on the output; transcripts replay recorded conversations
// through a dispatcher and assert on routing and replies.
package eval

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"text/template"

	"github.com/wilhg/conduit/pkg/prompt"
)

// Report is the outcome of an evaluation run.
type Report struct {
	Total   int
	Passed  int
	Details []string
}

// Score is the pass fraction in [0,1]. An empty run scores 1.
func (r Report) Score() float64 {
	if r.Total == 0 {
		return 1
	}
	return float64(r.Passed) / float64(r.Total)
}

func (r *Report) fail(format string, args ...any) {
	r.Details = append(r.Details, fmt.Sprintf(format, args...))
}

// Fixture is one template-rendering case. Template names a stored prompt;
// Prompt carries an inline body instead. Exactly one should be set.
type Fixture struct {
	Name     string         `json:"name"`
	Template string         `json:"template,omitempty"`
	Prompt   string         `json:"prompt,omitempty"`
	Vars     map[string]any `json:"vars"`
	Expect   Expectation    `json:"expect"`
}

// Expectation asserts on rendered output or reply text.
type Expectation struct {
	Contains    []string `json:"contains,omitempty"`
	NotContains []string `json:"not_contains,omitempty"`
}

func (e Expectation) check(name, out string, r *Report) bool {
	ok := true
	for _, s := range e.Contains {
		if !strings.Contains(out, s) {
			ok = false
			r.fail("%s: missing %q", name, s)
		}
	}
	for _, s := range e.NotContains {
		if strings.Contains(out, s) {
			ok = false
			r.fail("%s: unexpected %q", name, s)
		}
	}
	return ok
}

// EvaluateFixtures loads JSON fixtures from dir and renders each against
// its vars. Named templates resolve through prompts; nil prompts restricts
// fixtures to inline bodies.
func EvaluateFixtures(fsys fs.FS, dir string, prompts *prompt.Store) (Report, error) {
	fixtures, err := loadFixtures(fsys, dir)
	if err != nil {
		return Report{}, err
	}
	r := Report{Total: len(fixtures)}
	for _, fx := range fixtures {
		body, err := fx.body(prompts)
		if err != nil {
			r.fail("%s: %v", fx.Name, err)
			continue
		}
		out, err := render(body, fx.Vars)
		if err != nil {
			r.fail("%s: render: %v", fx.Name, err)
			continue
		}
		if fx.Expect.check(fx.Name, out, &r) {
			r.Passed++
		}
	}
	return r, nil
}

func (fx Fixture) body(prompts *prompt.Store) (string, error) {
	if fx.Template == "" {
		if fx.Prompt == "" {
			return "", fmt.Errorf("fixture has neither template nor prompt")
		}
		return fx.Prompt, nil
	}
	if prompts == nil {
		return "", fmt.Errorf("fixture names template %q but no store was given", fx.Template)
	}
	p, ok := prompts.Get(fx.Template, 0)
	if !ok {
		return "", fmt.Errorf("prompt %q not found", fx.Template)
	}
	return p.Body, nil
}

func loadFixtures(fsys fs.FS, dir string) ([]Fixture, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var out []Fixture
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		raw, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		var fx Fixture
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if fx.Name == "" {
			fx.Name = strings.TrimSuffix(e.Name(), ".json")
		}
		out = append(out, fx)
	}
	return out, nil
}

func render(body string, vars map[string]any) (string, error) {
	t, err := template.New("fixture").Option("missingkey=error").Parse(body)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := t.Execute(&b, vars); err != nil {
		return "", err
	}
	return b.String(), nil
}
