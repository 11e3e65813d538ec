package prefilter

import (
	"fmt"

	"github.com/coregx/btregex/simd"
	"github.com/coregx/btregex/syntax"
)

// ByteMap scans for any byte a match can start with.
type ByteMap struct {
	set *simd.ByteSet
	enc syntax.Encoding
}

func newByteMap(m *[256]bool, enc syntax.Encoding) *ByteMap {
	return &ByteMap{set: simd.NewByteSet(m), enc: enc}
}

// Forward implements Searcher.
func (s *ByteMap) Forward(text []byte, start, end, rng int) int {
	limit := min(end, rng)
	for from := start; from < limit; {
		i := s.set.Index(text[from:limit])
		if i < 0 {
			return -1
		}
		p := from + i
		if charHead(s.enc, text, start, p) {
			return p
		}
		from = p + 1
	}
	return -1
}

// Backward implements Searcher.
func (s *ByteMap) Backward(text []byte, start, end, rng, adjust int) int {
	limit := min(end, start+1)
	for limit > rng {
		i := s.set.LastIndex(text[rng:limit])
		if i < 0 {
			return -1
		}
		p := rng + i
		if charHead(s.enc, text, adjust, p) {
			return p
		}
		limit = p
	}
	return -1
}

// Len implements Searcher.
func (s *ByteMap) Len() int { return 1 }

func (s *ByteMap) String() string {
	n := 0
	for c := 0; c < 256; c++ {
		if s.set.Contains(byte(c)) {
			n++
		}
	}
	return fmt.Sprintf("map %d bytes", n)
}
