package prefilter

import (
	"bytes"
	"fmt"

	"github.com/coregx/ahocorasick"

	"github.com/coregx/btregex/simd"
	"github.com/coregx/btregex/syntax"
)

// MultiLiteral searches for the leftmost occurrence of any of a set of
// literals with an Aho-Corasick automaton. Backward searches scan for the
// literals' first bytes and verify in place.
type MultiLiteral struct {
	auto     *ahocorasick.Automaton
	literals [][]byte
	first    *simd.ByteSet
	shortest int
	enc      syntax.Encoding
}

func newMultiLiteral(literals [][]byte, enc syntax.Encoding) (*MultiLiteral, error) {
	if len(literals) == 0 {
		return nil, fmt.Errorf("prefilter: empty literal set")
	}
	builder := ahocorasick.NewBuilder()
	var first [256]bool
	s := &MultiLiteral{enc: enc, shortest: len(literals[0])}
	for _, lit := range literals {
		if len(lit) == 0 {
			return nil, fmt.Errorf("prefilter: empty literal in set")
		}
		builder.AddPattern(lit)
		s.literals = append(s.literals, bytes.Clone(lit))
		first[lit[0]] = true
		s.shortest = min(s.shortest, len(lit))
	}
	auto, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("prefilter: building automaton: %w", err)
	}
	s.auto = auto
	s.first = simd.NewByteSet(&first)
	return s, nil
}

// Forward implements Searcher.
func (s *MultiLiteral) Forward(text []byte, start, end, rng int) int {
	hay := text[:end]
	for from := start; from < rng && from < end; {
		m := s.auto.Find(hay, from)
		if m == nil || m.Start >= rng {
			return -1
		}
		if charHead(s.enc, text, start, m.Start) {
			return m.Start
		}
		from = m.Start + 1
	}
	return -1
}

// Backward implements Searcher.
func (s *MultiLiteral) Backward(text []byte, start, end, rng, adjust int) int {
	limit := min(end, start+1)
	for limit > rng {
		i := s.first.LastIndex(text[rng:limit])
		if i < 0 {
			return -1
		}
		p := rng + i
		if charHead(s.enc, text, adjust, p) && s.matchAt(text[:end], p) {
			return p
		}
		limit = p
	}
	return -1
}

func (s *MultiLiteral) matchAt(text []byte, p int) bool {
	for _, lit := range s.literals {
		if bytes.HasPrefix(text[p:], lit) {
			return true
		}
	}
	return false
}

// Len implements Searcher.
func (s *MultiLiteral) Len() int { return s.shortest }

func (s *MultiLiteral) String() string {
	return fmt.Sprintf("multi-literal %d literals", len(s.literals))
}
