// Package hotword detects short spoken phrases inside a stream of phonetic tokens.
//
// A Matcher holds one pointer per registered pattern and advances it as
// tokens arrive, so a phrase is recognized as soon as its last syllable shows
// up in the recognizer's partial output, without waiting for a final
// transcript. A Listener drives a Matcher from live microphone audio.
package hotword

import (
	"errors"
	"fmt"
	"sync"
)

// Signal identifies which pattern matched. Zero means no match.
type Signal int

// None is returned when no pattern completed.
const None Signal = 0

var (
	// ErrEmptyName is returned when registering a pattern without a name.
	ErrEmptyName = errors.New("hotword: pattern name required")

	// ErrEmptySequence is returned when a pattern has no phonetic tokens.
	ErrEmptySequence = errors.New("hotword: pattern needs at least one token")

	// ErrInvalidSignal is returned for the zero signal, which means "no match".
	ErrInvalidSignal = errors.New("hotword: signal must be non-zero")

	// ErrDuplicate is returned when a name or signal is registered twice.
	ErrDuplicate = errors.New("hotword: duplicate pattern")

	// ErrMatcherStarted is returned when registering after the first Feed.
	ErrMatcherStarted = errors.New("hotword: matcher already started")
)

// Pattern is a registered phrase and its match progress.
type Pattern struct {
	Name     string
	Sequence []string
	Signal   Signal

	// pointer is the index of the next expected token.
	// Invariant: 0 <= pointer < len(Sequence) between calls.
	pointer int
}

// advance consumes one token and reports whether the pattern completed.
func (p *Pattern) advance(tok string) bool {
	if tok == p.Sequence[p.pointer] {
		p.pointer++
		if p.pointer == len(p.Sequence) {
			p.pointer = 0
			return true
		}
		return false
	}

	p.pointer = 0
	// The breaking token may itself start a new match.
	if tok == p.Sequence[0] {
		p.pointer = 1
		if len(p.Sequence) == 1 {
			p.pointer = 0
			return true
		}
	}
	return false
}

// Matcher is a streaming multi-pattern matcher over phonetic tokens.
type Matcher struct {
	mu       sync.Mutex
	patterns []*Pattern
	started  bool
}

// NewMatcher creates an empty matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Register adds a pattern. Separator tokens in seq are dropped.
// Patterns must be registered before the first Feed; earlier patterns win ties.
func (m *Matcher) Register(name string, seq []string, signal Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrMatcherStarted
	}
	if name == "" {
		return ErrEmptyName
	}
	if signal == None {
		return ErrInvalidSignal
	}

	clean := make([]string, 0, len(seq))
	for _, tok := range seq {
		if !IsSeparator(tok) {
			clean = append(clean, tok)
		}
	}
	if len(clean) == 0 {
		return fmt.Errorf("%w: %q", ErrEmptySequence, name)
	}

	for _, p := range m.patterns {
		if p.Name == name {
			return fmt.Errorf("%w: name %q", ErrDuplicate, name)
		}
		if p.Signal == signal {
			return fmt.Errorf("%w: signal %d already used by %q", ErrDuplicate, signal, p.Name)
		}
	}

	m.patterns = append(m.patterns, &Pattern{Name: name, Sequence: clean, Signal: signal})
	return nil
}

// Feed consumes newly available tokens and returns the signal of the first
// pattern to complete, or (None, false). Tokens after a completion are not
// consumed. Empty input is a no-op.
func (m *Matcher) Feed(tokens []string) (Signal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started = true

	for _, tok := range tokens {
		if IsSeparator(tok) {
			continue
		}
		for _, p := range m.patterns {
			if p.advance(tok) {
				return p.Signal, true
			}
		}
	}
	return None, false
}

// Reset returns every pointer to zero.
func (m *Matcher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patterns {
		p.pointer = 0
	}
}

// Pointer returns the current progress of the named pattern.
func (m *Matcher) Pointer(name string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patterns {
		if p.Name == name {
			return p.pointer, true
		}
	}
	return 0, false
}

// Patterns returns a copy of the registered patterns in registration order.
func (m *Matcher) Patterns() []Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Pattern, len(m.patterns))
	for i, p := range m.patterns {
		out[i] = *p
		out[i].Sequence = append([]string(nil), p.Sequence...)
	}
	return out
}

// Len returns the number of registered patterns.
func (m *Matcher) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.patterns)
}
