package genai

import (
	"context"
	"strings"
	"testing"
)

type scripted struct {
	replies []string
	n       int
	calls   [][]Message
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) Generate(_ context.Context, messages []Message, _ *Options) (Result, error) {
	s.calls = append(s.calls, messages)
	text := s.replies[len(s.replies)-1]
	if s.n < len(s.replies) {
		text = s.replies[s.n]
		s.n++
	}
	return Result{Text: text, Model: "scripted"}, nil
}

func TestRegistry(t *testing.T) {
	f := func(ctx context.Context, cfg map[string]any) (Generator, error) {
		return &scripted{replies: []string{"ok"}}, nil
	}
	if err := Register("test-gen", f); err != nil {
		t.Fatal(err)
	}
	if err := Register("test-gen", f); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if err := Register("", f); err == nil {
		t.Fatal("expected empty name error")
	}
	if _, ok := Resolve("test-gen"); !ok {
		t.Fatal("factory not resolved")
	}
	g, err := New(context.Background(), "test-gen", nil)
	if err != nil {
		t.Fatal(err)
	}
	if g.Name() != "scripted" {
		t.Fatalf("name=%q", g.Name())
	}
	if _, err := New(context.Background(), "no-such", nil); err == nil {
		t.Fatal("expected unknown provider error")
	}
}

func TestStripFences(t *testing.T) {
	cases := []struct{ in, want string }{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  ```json\n{\n \"a\": 1\n}\n```  ", "{\n \"a\": 1\n}"},
	}
	for _, tc := range cases {
		if got := StripFences(tc.in); got != tc.want {
			t.Errorf("StripFences(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtractJSON(t *testing.T) {
	g := &scripted{replies: []string{"```json\n{\"token\":\"AVAX\",\"amount\":1.5}\n```"}}
	out, err := ExtractJSON(context.Background(), g, ExtractOptions{
		Template: "Extract swap params from: {{.Text}}",
		Data:     map[string]string{"Text": "swap 1.5 AVAX"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out["token"] != "AVAX" || out["amount"] != 1.5 {
		t.Fatalf("out=%v", out)
	}
	if len(g.calls) != 1 {
		t.Fatalf("calls=%d", len(g.calls))
	}
	if !strings.Contains(g.calls[0][0].Content, "swap 1.5 AVAX") {
		t.Fatalf("prompt=%q", g.calls[0][0].Content)
	}
}

func TestExtractRepairsMalformedJSON(t *testing.T) {
	// Trailing comma and single quotes: jsonrepair territory.
	g := &scripted{replies: []string{"{'token': 'AVAX', 'amount': 2,}"}}
	out, err := ExtractJSON(context.Background(), g, ExtractOptions{Template: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if out["token"] != "AVAX" {
		t.Fatalf("out=%v", out)
	}
}

func TestExtractReasksOnSchemaViolation(t *testing.T) {
	schema := []byte(`{"type":"object","properties":{"amount":{"type":"number"}},"required":["amount"]}`)
	g := &scripted{replies: []string{`{"amount":"not a number"}`, `{"amount":3}`}}
	out, err := ExtractJSON(context.Background(), g, ExtractOptions{Template: "x", Schema: schema})
	if err != nil {
		t.Fatal(err)
	}
	if out["amount"] != 3.0 {
		t.Fatalf("out=%v", out)
	}
	if len(g.calls) != 2 {
		t.Fatalf("calls=%d want 2 (one re-ask)", len(g.calls))
	}
	// The re-ask carries the bad output back to the model.
	if len(g.calls[1]) != 3 {
		t.Fatalf("re-ask messages=%d want 3", len(g.calls[1]))
	}
}

func TestExtractGivesUpAfterAttempts(t *testing.T) {
	g := &scripted{replies: []string{"not json at all, not even close ((("}}
	_, err := ExtractJSON(context.Background(), g, ExtractOptions{
		Template: "x",
		Schema:   []byte(`{"type":"object","required":["amount"]}`),
		Attempts: 2,
	})
	if err == nil {
		t.Fatal("expected extraction failure")
	}
	if len(g.calls) != 2 {
		t.Fatalf("calls=%d want 2", len(g.calls))
	}
}

func TestExtractTyped(t *testing.T) {
	type swap struct {
		Token  string  `json:"token"`
		Amount float64 `json:"amount"`
	}
	g := &scripted{replies: []string{`{"token":"JOE","amount":12.25}`}}
	got, err := Extract[swap](context.Background(), g, ExtractOptions{Template: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Token != "JOE" || got.Amount != 12.25 {
		t.Fatalf("got=%+v", got)
	}
}
