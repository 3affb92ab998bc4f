package eval

import (
	"context"
	"fmt"
	"strings"

	"github.com/wilhg/conduit/pkg/agent"
)

// Dispatcher routes one message; *agent.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, rt agent.Runtime, msg agent.Message, opts map[string]any, cb agent.Callback) (agent.DispatchResult, error)
}

// Step is one recorded turn: the inbound message, optional pre-extracted
// parameters, and what the dispatch should have done.
type Step struct {
	Message agent.Message  `json:"message"`
	Opts    map[string]any `json:"opts,omitempty"`
	Expect  StepExpect     `json:"expect"`
}

// StepExpect asserts on routing and on the concatenated reply text.
type StepExpect struct {
	// Handled asserts whether any action claimed the message.
	Handled bool `json:"handled"`

	// Action, when set, names the action that must have run.
	Action string `json:"action,omitempty"`

	// Contains and NotContains match against all reply texts joined with
	// newlines.
	Contains    []string `json:"contains,omitempty"`
	NotContains []string `json:"not_contains,omitempty"`
}

// Transcript is a recorded conversation to replay.
type Transcript struct {
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// Replay re-runs a transcript through the dispatcher and scores each step.
// A dispatch error fails the step but does not stop the replay.
func Replay(ctx context.Context, d Dispatcher, rt agent.Runtime, tr Transcript) Report {
	r := Report{Total: len(tr.Steps)}
	for i, step := range tr.Steps {
		name := stepName(tr.Name, i)
		var replies []string
		cb := func(_ context.Context, res agent.HandlerResult) error {
			replies = append(replies, res.Text)
			return nil
		}
		res, err := d.Dispatch(ctx, rt, step.Message, step.Opts, cb)
		if err != nil {
			r.fail("%s: dispatch: %v", name, err)
			continue
		}
		ok := true
		if res.Handled != step.Expect.Handled {
			ok = false
			r.fail("%s: handled = %v, want %v", name, res.Handled, step.Expect.Handled)
		}
		if step.Expect.Action != "" && res.Action != step.Expect.Action {
			ok = false
			r.fail("%s: action = %q, want %q", name, res.Action, step.Expect.Action)
		}
		joined := strings.Join(replies, "\n")
		exp := Expectation{Contains: step.Expect.Contains, NotContains: step.Expect.NotContains}
		if !exp.check(name, joined, &r) {
			ok = false
		}
		if ok {
			r.Passed++
		}
	}
	return r
}

func stepName(transcript string, i int) string {
	if transcript == "" {
		transcript = "transcript"
	}
	return fmt.Sprintf("%s[%d]", transcript, i)
}
