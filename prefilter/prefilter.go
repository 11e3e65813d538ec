// Package prefilter implements the search algorithms that move the match
// orchestrator to the next position where a pattern's required literal or
// leading byte set occurs.
//
// A Searcher is selected from the analyzer's Optimization by Build:
//
//   - OptExact: naive scan, memmem based
//   - OptExactIC: naive scan over case-folded text
//   - OptExactBM, OptExactBMNotRev: Sunday quick search
//   - OptMap: byte set scan, memchr based for up to three bytes
//   - OptMultiLiteral: Aho-Corasick automaton over the literal set
//
// Every searcher runs in both directions so backward searches use the same
// family of algorithms.
//
// Example usage:
//
//	s, err := prefilter.Build(res.Opt, syntax.UTF8)
//	if err != nil || s == nil {
//	    // no usable hint, try every position
//	}
//	p := s.Forward(text, start, len(text), rng)
package prefilter

import (
	"fmt"

	"github.com/coregx/btregex/analysis"
	"github.com/coregx/btregex/syntax"
)

// Searcher finds candidate positions for a pattern's search hint.
//
// Searchers are immutable after Build and safe for concurrent use.
type Searcher interface {
	// Forward returns the smallest p with start <= p < rng at which the
	// hint occurs entirely within text[:end], or -1.
	Forward(text []byte, start, end, rng int) int

	// Backward returns the largest character head p with
	// rng <= p <= start at which the hint occurs entirely within
	// text[:end], or -1. Character heads are computed from adjust.
	Backward(text []byte, start, end, rng, adjust int) int

	// Len returns the length of the shortest text the hint can match.
	Len() int

	// String describes the searcher.
	String() string
}

// Build returns the searcher for opt, or nil when opt carries no search
// hint. Searchers step over characters of enc.
func Build(opt *analysis.Optimization, enc syntax.Encoding) (Searcher, error) {
	if opt == nil {
		return nil, nil
	}
	if enc == nil {
		enc = syntax.UTF8
	}
	switch opt.Kind {
	case analysis.OptNone:
		return nil, nil
	case analysis.OptExact:
		return newNaive(opt.Exact, enc), nil
	case analysis.OptExactIC:
		return newExactIC(opt.Exact, enc), nil
	case analysis.OptExactBM:
		return newBoyerMoore(opt, enc, false), nil
	case analysis.OptExactBMNotRev:
		return newBoyerMoore(opt, enc, true), nil
	case analysis.OptMap:
		return newByteMap(&opt.Map, enc), nil
	case analysis.OptMultiLiteral:
		s, err := newMultiLiteral(opt.Literals, enc)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("prefilter: unknown optimization kind %s", opt.Kind)
}

// charHead reports whether p starts a character when characters are
// counted from base.
func charHead(enc syntax.Encoding, text []byte, base, p int) bool {
	return enc.MaxLen() == 1 || enc.LeftAdjustCharHead(text, base, p) == p
}
