// Package prompt holds the versioned prompt templates the plugins render
// through the generation facility, with lint checks that keep secrets out of
// template bodies.
package prompt

import (
	"errors"
	"regexp"
	"sort"
	"sync"
)

// Prompt represents a versioned prompt artifact.
type Prompt struct {
	Name    string
	Version int
	Body    string
	Meta    map[string]string
}

// Issue describes a lint finding.
type Issue struct {
	Rule    string
	Message string
}

// Secret-like content that must never enter a template: cloud credentials,
// PEM blocks, OpenAI-style keys, EVM private keys (64 hex bytes), and long
// base58 runs the length of a Solana secret key.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)aws_secret_access_key`),
	regexp.MustCompile(`BEGIN [A-Z ]*PRIVATE KEY`),
	regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`\b(0x)?[0-9a-fA-F]{64}\b`),
	regexp.MustCompile(`\b[1-9A-HJ-NP-Za-km-z]{80,}\b`),
}

// Lint runs basic checks on a prompt.
func Lint(p Prompt) []Issue {
	var issues []Issue
	if p.Name == "" {
		issues = append(issues, Issue{Rule: "name.required", Message: "name is required"})
	}
	if len(p.Body) == 0 {
		issues = append(issues, Issue{Rule: "body.required", Message: "body is empty"})
	}
	for _, re := range secretPatterns {
		if re.MatchString(p.Body) {
			issues = append(issues, Issue{Rule: "security.secrets", Message: "body appears to contain secrets-like content"})
			break
		}
	}
	return issues
}

// Store is an in-memory versioned prompt store.
type Store struct {
	mu   sync.RWMutex
	data map[string][]Prompt // name -> versions (ascending)
}

func NewStore() *Store { return &Store{data: make(map[string][]Prompt)} }

var ErrLintFailed = errors.New("prompt failed lint checks")

// Save adds a new version. If name exists, version increments by 1;
// otherwise starts at 1. Lint failures return ErrLintFailed with issues.
func (s *Store) Save(p Prompt) (Prompt, []Issue, error) {
	issues := Lint(p)
	if len(issues) > 0 {
		return Prompt{}, issues, ErrLintFailed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := s.data[p.Name]
	next := 1
	if len(versions) > 0 {
		next = versions[len(versions)-1].Version + 1
	}
	np := Prompt{Name: p.Name, Version: next, Body: p.Body, Meta: p.Meta}
	s.data[p.Name] = append(versions, np)
	return np, nil, nil
}

// Get retrieves a specific version; version 0 returns the latest.
func (s *Store) Get(name string, version int) (Prompt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.data[name]
	if len(versions) == 0 {
		return Prompt{}, false
	}
	if version <= 0 {
		return versions[len(versions)-1], true
	}
	// versions are ascending; binary search by Version
	i := sort.Search(len(versions), func(i int) bool { return versions[i].Version >= version })
	if i < len(versions) && versions[i].Version == version {
		return versions[i], true
	}
	return Prompt{}, false
}

// List returns all versions for a name in ascending order.
func (s *Store) List(name string) []Prompt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Prompt(nil), s.data[name]...)
}
