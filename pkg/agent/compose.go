package agent

import (
	"context"
	"strings"
)

// AssemblyLog summarizes one context composition.
type AssemblyLog struct {
	IncludedTokens int      // total tokens of included contributions
	DroppedCount   int      // contributions excluded by the budget (duplicates are not counted)
	Failed         []string // providers whose Get returned an error
}

// TokenEstimator estimates token usage of text content.
type TokenEstimator func(text string) int

// Composer deterministically assembles provider context respecting
// first-seen provider order, name dedup, and a token budget.
type Composer struct {
	estimate  TokenEstimator
	maxTokens int
}

// ComposerOption configures the Composer.
type ComposerOption func(*Composer)

// WithTokenEstimator sets the token estimator. Defaults to rune length.
func WithTokenEstimator(est TokenEstimator) ComposerOption {
	return func(c *Composer) {
		if est != nil {
			c.estimate = est
		}
	}
}

// WithMaxTokens sets the maximum token budget. Defaults to a large value (1e9).
func WithMaxTokens(n int) ComposerOption {
	return func(c *Composer) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// NewComposer creates a new Composer.
func NewComposer(opts ...ComposerOption) *Composer {
	c := &Composer{
		estimate:  func(s string) int { return len([]rune(s)) },
		maxTokens: 1_000_000_000,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose gathers contributions from providers and assembles a State.
// Behavior:
//   - Providers run in the order given; repeated names are skipped.
//   - A provider error degrades to an empty contribution and is recorded in
//     the log; composition continues.
//   - Contributions are included in order while they fit the token budget.
func (c *Composer) Compose(ctx context.Context, rt Runtime, msg Message, providers []Provider) (*State, AssemblyLog) {
	st := &State{Values: make(map[string]any)}
	var log AssemblyLog

	seen := make(map[string]bool, len(providers))
	budget := c.maxTokens
	var parts []string
	for _, p := range providers {
		if p == nil {
			continue
		}
		name := p.Name()
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		text, err := p.Get(ctx, rt, msg, st)
		if err != nil {
			log.Failed = append(log.Failed, name)
			continue
		}
		if text == "" {
			continue
		}
		cost := c.estimate(text)
		if cost > budget {
			log.DroppedCount++
			continue
		}
		budget -= cost
		log.IncludedTokens += cost
		st.Values[name] = text
		parts = append(parts, text)
	}
	st.Context = strings.Join(parts, "\n")
	return st, log
}
