package eval

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/wilhg/conduit/pkg/prompt"
)

func TestEvaluateFixturesInlinePrompts(t *testing.T) {
	fsys := fstest.MapFS{
		"cases/a.json": {Data: []byte(`{"name":"a","prompt":"Hello {{.name}}","vars":{"name":"Ada"},"expect":{"contains":["Hello Ada"]}}`)},
		"cases/b.json": {Data: []byte(`{"name":"b","prompt":"API key: {{.key}}","vars":{"key":"***"},"expect":{"not_contains":["sk-"]}}`)},
	}
	r, err := EvaluateFixtures(fsys, "cases", nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Total != 2 || r.Passed != 2 || r.Score() != 1 {
		t.Fatalf("report = %+v", r)
	}
}

func TestEvaluateFixturesStoredTemplate(t *testing.T) {
	fsys := fstest.MapFS{
		"cases/swap.json": {Data: []byte(`{
			"template": "swap-params",
			"vars": {"Message": "swap 1 SOL for USDC"},
			"expect": {"contains": ["swap 1 SOL for USDC", "fromToken"]}
		}`)},
	}
	r, err := EvaluateFixtures(fsys, "cases", prompt.Builtin())
	if err != nil {
		t.Fatal(err)
	}
	if r.Passed != 1 {
		t.Fatalf("report = %+v", r)
	}

	// Named template without a store fails the fixture, not the run.
	r, err = EvaluateFixtures(fsys, "cases", nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Passed != 0 || len(r.Details) == 0 {
		t.Fatalf("report = %+v", r)
	}

	// A name the store doesn't hold fails the same way.
	missing := fstest.MapFS{
		"cases/x.json": {Data: []byte(`{"template":"no-such-prompt","expect":{"contains":["x"]}}`)},
	}
	r, err = EvaluateFixtures(missing, "cases", prompt.Builtin())
	if err != nil {
		t.Fatal(err)
	}
	if r.Passed != 0 || len(r.Details) != 1 || !strings.Contains(r.Details[0], "no-such-prompt") {
		t.Fatalf("report = %+v", r)
	}
}

func TestEvaluateFixturesMissingVarFails(t *testing.T) {
	fsys := fstest.MapFS{
		"cases/x.json": {Data: []byte(`{"name":"x","prompt":"Hello {{.name}}"}`)},
	}
	r, err := EvaluateFixtures(fsys, "cases", nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Total != 1 || r.Passed != 0 || r.Score() != 0 {
		t.Fatalf("report = %+v", r)
	}
}

func TestEvaluateFixturesDefaultsNameFromFile(t *testing.T) {
	fsys := fstest.MapFS{
		"cases/unnamed.json": {Data: []byte(`{"prompt":"x {{.missing}}"}`)},
	}
	r, err := EvaluateFixtures(fsys, "cases", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Details) != 1 || !strings.HasPrefix(r.Details[0], "unnamed") {
		t.Fatalf("details = %+v", r.Details)
	}
}

func TestEmptyReportScoresOne(t *testing.T) {
	if (Report{}).Score() != 1 {
		t.Fatal("empty report should score 1")
	}
}
