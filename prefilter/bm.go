package prefilter

import (
	"bytes"
	"fmt"

	"github.com/coregx/btregex/analysis"
	"github.com/coregx/btregex/syntax"
)

// BoyerMoore is the Sunday quick search over an exact literal. The shift
// after a mismatch is looked up by the byte just past the window, or just
// before it when searching backward.
//
// The NotRev variant is used when the literal may start inside a
// multibyte character; its windows always start on character heads.
type BoyerMoore struct {
	needle   []byte
	skip     *[256]int
	backSkip *[256]int
	notRev   bool
	enc      syntax.Encoding
}

func newBoyerMoore(opt *analysis.Optimization, enc syntax.Encoding, notRev bool) *BoyerMoore {
	return &BoyerMoore{
		needle:   bytes.Clone(opt.Exact),
		skip:     &opt.BMSkip,
		backSkip: &opt.BMBackSkip,
		notRev:   notRev,
		enc:      enc,
	}
}

// Forward implements Searcher.
func (s *BoyerMoore) Forward(text []byte, start, end, rng int) int {
	n := len(s.needle)
	last := min(end-n, rng-1)
	b := text[:end]
	for p := start; p <= last; {
		if bytes.Equal(text[p:p+n], s.needle) {
			return p
		}
		if p+n >= end {
			return -1
		}
		shift := s.skip[text[p+n]]
		if !s.notRev {
			p += shift
			continue
		}
		for from := p; p-from < shift && p <= last; {
			p += s.enc.CharLen(b, p)
		}
	}
	return -1
}

// Backward implements Searcher.
func (s *BoyerMoore) Backward(text []byte, start, end, rng, adjust int) int {
	n := len(s.needle)
	p := min(start, end-n)
	if p < rng {
		return -1
	}
	p = s.enc.LeftAdjustCharHead(text, adjust, p)
	for p >= rng {
		if bytes.Equal(text[p:p+n], s.needle) {
			return p
		}
		if p <= rng {
			return -1
		}
		p -= s.backSkip[text[p-1]]
		if p < rng {
			return -1
		}
		p = s.enc.LeftAdjustCharHead(text, adjust, p)
	}
	return -1
}

// Len implements Searcher.
func (s *BoyerMoore) Len() int { return len(s.needle) }

func (s *BoyerMoore) String() string {
	if s.notRev {
		return fmt.Sprintf("bm-not-rev %q", s.needle)
	}
	return fmt.Sprintf("bm %q", s.needle)
}
