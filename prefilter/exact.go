package prefilter

import (
	"bytes"
	"fmt"

	"github.com/coregx/btregex/simd"
	"github.com/coregx/btregex/syntax"
)

// Naive scans for an exact literal with simd.Memmem.
type Naive struct {
	needle []byte
	enc    syntax.Encoding
}

func newNaive(needle []byte, enc syntax.Encoding) *Naive {
	return &Naive{needle: bytes.Clone(needle), enc: enc}
}

// Forward implements Searcher.
func (s *Naive) Forward(text []byte, start, end, rng int) int {
	n := len(s.needle)
	limit := min(end, rng-1+n)
	for from := start; from < rng && from+n <= limit; {
		i := simd.Memmem(text[from:limit], s.needle)
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
func (s *Naive) Backward(text []byte, start, end, rng, adjust int) int {
	n := len(s.needle)
	limit := min(end, start+n)
	for limit-n >= rng {
		i := simd.LastMemmem(text[rng:limit], s.needle)
		if i < 0 {
			return -1
		}
		p := rng + i
		if charHead(s.enc, text, adjust, p) {
			return p
		}
		limit = p + n - 1
	}
	return -1
}

// Len implements Searcher.
func (s *Naive) Len() int { return len(s.needle) }

func (s *Naive) String() string { return fmt.Sprintf("naive %q", s.needle) }

// ExactIC scans for a case-folded literal, folding the text one character
// at a time.
type ExactIC struct {
	folded []byte
	chars  int
	enc    syntax.Encoding
}

func newExactIC(folded []byte, enc syntax.Encoding) *ExactIC {
	chars := 0
	for p := 0; p < len(folded); p += enc.CharLen(folded, p) {
		chars++
	}
	return &ExactIC{folded: bytes.Clone(folded), chars: chars, enc: enc}
}

// matchAt reports whether the folded text at p equals the literal.
func (s *ExactIC) matchAt(text []byte, p, end int) bool {
	var buf [64]byte
	got := buf[:0]
	b := text[:end]
	for p < end && len(got) < len(s.folded) {
		var n int
		got, n = syntax.AppendFold(s.enc, got, b, p)
		p += n
		if !bytes.HasPrefix(s.folded, got) && !bytes.HasPrefix(got, s.folded) {
			return false
		}
	}
	return len(got) >= len(s.folded) && bytes.Equal(got[:len(s.folded)], s.folded)
}

// Forward implements Searcher.
func (s *ExactIC) Forward(text []byte, start, end, rng int) int {
	b := text[:end]
	for p := start; p < rng && p < end; p += s.enc.CharLen(b, p) {
		if s.matchAt(text, p, end) {
			return p
		}
	}
	return -1
}

// Backward implements Searcher.
func (s *ExactIC) Backward(text []byte, start, end, rng, adjust int) int {
	p := min(start, end-1)
	if p < rng {
		return -1
	}
	p = s.enc.LeftAdjustCharHead(text, adjust, p)
	for p >= rng {
		if s.matchAt(text, p, end) {
			return p
		}
		if p = syntax.PrevCharHead(s.enc, text, adjust, p); p < 0 {
			break
		}
	}
	return -1
}

// Len implements Searcher.
func (s *ExactIC) Len() int { return s.chars }

func (s *ExactIC) String() string { return fmt.Sprintf("exact-ic %q", s.folded) }
