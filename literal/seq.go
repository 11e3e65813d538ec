// Package literal holds the sets of literal alternatives that a match must
// start with.
//
// The analyzer collects them from a leading alternation such as
// /foo|bar|baz|qux/; the prefilter then looks for all of them at once.
package literal

import (
	"bytes"
	"slices"
	"strings"
)

// Literal is one alternative of a Seq.
type Literal struct {
	Bytes []byte
}

// NewLiteral returns a literal over b. The bytes are not copied.
func NewLiteral(b []byte) Literal {
	return Literal{Bytes: b}
}

// Len returns the length of the literal in bytes.
func (l Literal) Len() int {
	return len(l.Bytes)
}

// String implements fmt.Stringer.
func (l Literal) String() string {
	return string(l.Bytes)
}

// Seq is a set of literal alternatives. A match starts with at least one of
// them.
type Seq struct {
	literals []Literal
}

// NewSeq returns a sequence of lits. A nil Seq is empty.
func NewSeq(lits ...Literal) *Seq {
	return &Seq{literals: lits}
}

// Len returns the number of literals.
func (s *Seq) Len() int {
	if s == nil {
		return 0
	}
	return len(s.literals)
}

// Get returns the i-th literal.
func (s *Seq) Get(i int) Literal {
	return s.literals[i]
}

// Shortest returns the length of the shortest literal, or 0 for an empty
// sequence.
func (s *Seq) Shortest() int {
	if s.Len() == 0 {
		return 0
	}
	n := s.literals[0].Len()
	for _, lit := range s.literals[1:] {
		n = min(n, lit.Len())
	}
	return n
}

// Bytes returns the literals as byte slices.
func (s *Seq) Bytes() [][]byte {
	out := make([][]byte, s.Len())
	for i := range out {
		out[i] = s.literals[i].Bytes
	}
	return out
}

// Minimize drops every literal that has another literal as a prefix.
// A text position where the longer one occurs also holds the shorter one,
// so the set of candidate positions does not change. Duplicates go too.
// The remaining literals are ordered by length, ties keeping their order.
//
// Example:
//
//	seq := literal.NewSeq(
//	    literal.NewLiteral([]byte("foobar")),
//	    literal.NewLiteral([]byte("foo")),
//	    literal.NewLiteral([]byte("baz")),
//	)
//	seq.Minimize() // foo, baz
func (s *Seq) Minimize() {
	if s.Len() < 2 {
		return
	}
	slices.SortStableFunc(s.literals, func(a, b Literal) int {
		return a.Len() - b.Len()
	})

	kept := s.literals[:0]
	for _, lit := range s.literals {
		covered := false
		for _, k := range kept {
			if bytes.HasPrefix(lit.Bytes, k.Bytes) {
				covered = true
				break
			}
		}
		if !covered {
			kept = append(kept, lit)
		}
	}
	clear(s.literals[len(kept):])
	s.literals = kept
}

// String implements fmt.Stringer.
func (s *Seq) String() string {
	parts := make([]string, s.Len())
	for i := range parts {
		parts[i] = s.literals[i].String()
	}
	return "[" + strings.Join(parts, " | ") + "]"
}
