package meta

import (
	"github.com/coregx/btregex/analysis"
	"github.com/coregx/btregex/prefilter"
	"github.com/coregx/btregex/syntax"
	"github.com/coregx/btregex/vm"
)

// scan is the state of one Search call.
type scan struct {
	st       *vm.State
	opt      *analysis.Optimization
	searcher prefilter.Searcher
	tracker  prefilter.Tracker
	enc      syntax.Encoding
	text     []byte
	end      int
	longest  bool

	// pos is the start of the accepted match.
	pos int

	attempts   uint64
	candidates uint64
	abandoned  bool
}

// try runs one attempt at s. It reports whether the search is decided:
// a match was found and the longest match is not wanted.
func (r *scan) try(s int) (bool, error) {
	r.attempts++
	n, err := r.st.MatchAt(s)
	if err != nil {
		r.pos = -1
		return true, err
	}
	if n >= 0 && !r.longest {
		r.pos = s
		return true, nil
	}
	return false, nil
}

func (r *scan) next(s int) int {
	if s >= r.end {
		return s + 1
	}
	return s + r.enc.CharLen(r.text, s)
}

func (r *scan) prev(s int) int {
	return syntax.PrevCharHead(r.enc, r.text, 0, s)
}

func (r *scan) newline(p int) bool {
	return p >= 0 && p < r.end && r.enc.IsNewline(r.text, p, r.end)
}

// leftAdjust returns the head of the character containing p.
func (r *scan) leftAdjust(base, p int) int {
	if p >= r.end || p <= base {
		return p
	}
	return r.enc.LeftAdjustCharHead(r.text, base, p)
}

// rightAdjust returns the first character head at or after p.
func (r *scan) rightAdjust(base, p int) int {
	q := r.leftAdjust(base, p)
	if q < p {
		q = r.next(q)
	}
	return q
}

// finish returns the result once every candidate has been tried.
func (r *scan) finish() int {
	if r.longest {
		if start, _ := r.st.Longest(); start >= 0 {
			return start
		}
	}
	return -1
}

// run searches for a match starting between start and rng. A range below
// start scans backward from start.
func (r *scan) run(start, rng int) (int, error) {
	opt := r.opt
	end := r.end

	if end == 0 {
		if opt.ThresholdLen > 0 {
			return -1, nil
		}
		if done, err := r.try(0); done {
			return r.pos, err
		}
		return r.finish(), nil
	}

	if opt.Anchor != 0 {
		var ok bool
		start, rng, ok = r.narrow(start, rng)
		if !ok {
			return -1, nil
		}
	}

	if rng > start {
		return r.forward(start, rng)
	}
	return r.backward(start, rng)
}

// narrow shrinks [start, rng] with the anchors of the pattern.
func (r *scan) narrow(start, rng int) (int, int, bool) {
	opt := r.opt
	end := r.end

	switch {
	case opt.Anchor&syntax.AnchorBeginPosition != 0:
		return beginPosition(start, rng)

	case opt.Anchor&syntax.AnchorBeginBuf != 0:
		if rng > start {
			if start != 0 {
				return 0, 0, false
			}
			return 0, 0, true
		}
		if rng <= 0 {
			return 0, 0, true
		}
		return 0, 0, false

	case opt.Anchor&syntax.AnchorEndBuf != 0:
		return r.narrowEnd(start, rng, end, end)

	case opt.Anchor&syntax.AnchorSemiEndBuf != 0:
		minSemiEnd := end
		if pre := syntax.StepBack(r.enc, r.text, 0, end, 1); r.newline(pre) {
			minSemiEnd = pre
		}
		return r.narrowEnd(start, rng, minSemiEnd, end)

	case opt.Anchor&syntax.AnchorAnycharStarML != 0 && rng > start:
		// a leading .* matching newlines that fails at start fails at
		// every later position; earlier ones stay open when scanning back
		return beginPosition(start, rng)
	}
	return start, rng, true
}

// beginPosition restricts the search to its start position.
func beginPosition(start, _ int) (int, int, bool) {
	return start, start, true
}

// narrowEnd bounds the window of a pattern anchored at the end of the
// text: a match ending in [minSemiEnd, maxSemiEnd] is between AnchorDMin
// and AnchorDMax bytes long.
func (r *scan) narrowEnd(start, rng, minSemiEnd, maxSemiEnd int) (int, int, bool) {
	opt := r.opt
	if maxSemiEnd < opt.AnchorDMin {
		return 0, 0, false
	}
	if rng > start {
		if minSemiEnd-start > opt.AnchorDMax {
			start = minSemiEnd - opt.AnchorDMax
			if start < r.end {
				start = r.rightAdjust(0, start)
			} else {
				start = r.prev(r.end)
			}
		}
		if maxSemiEnd-(rng-1) < opt.AnchorDMin {
			rng = maxSemiEnd - opt.AnchorDMin + 1
		}
		// start == rng leaves the single position, possibly an empty
		// match at the end
		return start, rng, start <= rng
	}
	if minSemiEnd-rng > opt.AnchorDMax {
		rng = minSemiEnd - opt.AnchorDMax
	}
	if maxSemiEnd-start < opt.AnchorDMin {
		start = r.leftAdjust(0, maxSemiEnd-opt.AnchorDMin)
	}
	return start, rng, rng <= start
}

func (r *scan) forward(start, rng int) (int, error) {
	opt := r.opt
	end := r.end
	s := start

	if r.searcher != nil {
		// the hint of a match starting at rng lies at rng+DMax at most
		schRange := end
		if opt.DMax != analysis.InfiniteDistance {
			schRange = min(rng+opt.DMax+1, end)
		}
		if end-start < opt.ThresholdLen {
			return r.finish(), nil
		}

		if opt.DMax != analysis.InfiniteDistance {
			for r.tracker.IsActive() {
				low, high, ok := r.forwardRange(s, schRange)
				if !ok {
					return r.finish(), nil
				}
				r.tracker.Candidate(max(low, s) - s)
				s = max(s, low)
				for s <= min(high, rng) {
					if done, err := r.try(s); done {
						return r.pos, err
					}
					if s == r.end {
						return r.finish(), nil
					}
					s = r.next(s)
				}
				if s > rng {
					return r.finish(), nil
				}
			}
			r.abandoned = true
		} else {
			if _, _, ok := r.forwardRange(s, schRange); !ok {
				return r.finish(), nil
			}
			if opt.Anchor&syntax.AnchorAnycharStar != 0 {
				return r.forwardLines(s, rng)
			}
		}
	}

	for {
		if done, err := r.try(s); done {
			return r.pos, err
		}
		s = r.next(s)
		if s >= rng {
			break
		}
	}
	if s == rng {
		if done, err := r.try(s); done {
			return r.pos, err
		}
	}
	return r.finish(), nil
}

// forwardLines tries s and then only the starts of the following lines:
// a leading .* that failed at one position fails at the rest of its line.
func (r *scan) forwardLines(s, rng int) (int, error) {
	for {
		if done, err := r.try(s); done {
			return r.pos, err
		}
		prev := s
		s = r.next(s)
		for !r.newline(prev) && s < rng {
			prev = s
			s = r.next(s)
		}
		if s > rng {
			return r.finish(), nil
		}
	}
}

// forwardRange finds the next occurrence of the search hint at or after
// s+DMin and below rng, and returns the window [low, high] of match starts
// it allows.
func (r *scan) forwardRange(s, rng int) (low, high int, ok bool) {
	opt := r.opt
	end := r.end
	p := s
	if opt.DMin > 0 {
		if r.enc.MaxLen() == 1 {
			p += opt.DMin
		} else {
			q := p + opt.DMin
			if q >= end {
				return 0, 0, false
			}
			for p < q {
				p = r.next(p)
			}
		}
	}

	for {
		if p >= rng {
			return 0, 0, false
		}
		p = r.searcher.Forward(r.text, p, end, rng)
		r.candidates++
		if p < 0 || p >= rng {
			return 0, 0, false
		}
		if p-opt.DMin >= s && r.subAnchorForward(p) {
			break
		}
		p = r.next(p)
	}

	switch {
	case opt.DMax == 0:
		low = p
	case opt.DMax != analysis.InfiniteDistance:
		low = p - opt.DMax
		if low > s {
			low = r.rightAdjust(s, low)
		}
	}
	return low, p - opt.DMin, true
}

func (r *scan) subAnchorForward(p int) bool {
	switch r.opt.SubAnchor {
	case syntax.AnchorBeginLine:
		return p == 0 || r.newline(r.prev(p))
	case syntax.AnchorEndLine:
		if p == r.end {
			return !r.newline(r.prev(p))
		}
		return r.newline(p)
	}
	return true
}

func (r *scan) backward(start, rng int) (int, error) {
	opt := r.opt
	end := r.end
	s := start

	if r.searcher != nil {
		adjrange := end
		if rng < end {
			adjrange = r.leftAdjust(0, rng)
		}

		if opt.DMax != analysis.InfiniteDistance && end-rng >= opt.ThresholdLen {
			for {
				schStart := min(s+opt.DMax, end)
				low, high, ok := r.backwardRange(schStart, rng, adjrange)
				if !ok {
					return r.finish(), nil
				}
				s = min(s, high)
				for s >= max(low, rng) {
					prev := r.prev(s)
					if done, err := r.try(s); done {
						return r.pos, err
					}
					s = prev
				}
				if s < rng {
					return r.finish(), nil
				}
			}
		}

		if end-rng < opt.ThresholdLen {
			return r.finish(), nil
		}
		schStart := s
		switch {
		case opt.DMax == analysis.InfiniteDistance:
			schStart = end
		case opt.DMax != 0:
			schStart = s + opt.DMax
			if schStart > end {
				schStart = end
			} else {
				schStart = r.leftAdjust(start, schStart)
			}
		}
		if _, _, ok := r.backwardRange(schStart, rng, adjrange); !ok {
			return r.finish(), nil
		}
	}

	for s >= rng {
		prev := r.prev(s)
		if done, err := r.try(s); done {
			return r.pos, err
		}
		s = prev
	}
	return r.finish(), nil
}

// backwardRange finds the last occurrence of the search hint at or before
// s and at or after rng+DMin, and returns the window [low, high] of match
// starts it allows. The window is only computed for a finite DMax.
func (r *scan) backwardRange(s, rng, adjrange int) (low, high int, ok bool) {
	opt := r.opt
	lo := rng + opt.DMin
	p := s
	for {
		if p < lo {
			return 0, 0, false
		}
		p = r.searcher.Backward(r.text, p, r.end, lo, adjrange)
		r.candidates++
		if p < 0 {
			return 0, 0, false
		}
		next, ok := r.subAnchorBackward(p, adjrange)
		if ok {
			break
		}
		if next < 0 {
			return 0, 0, false
		}
		p = next
	}

	if opt.DMax != analysis.InfiniteDistance {
		low = p - opt.DMax
		high = r.rightAdjust(adjrange, p-opt.DMin)
	}
	return low, high, true
}

// subAnchorBackward checks the line anchors around a hint found at p. When
// they fail it returns the position to continue the backward search from,
// or -1.
func (r *scan) subAnchorBackward(p, adjrange int) (int, bool) {
	switch r.opt.SubAnchor {
	case syntax.AnchorBeginLine:
		if p != 0 {
			if prev := r.prev(p); !r.newline(prev) {
				return prev, false
			}
		}
	case syntax.AnchorEndLine:
		if p == r.end {
			prev := syntax.PrevCharHead(r.enc, r.text, adjrange, p)
			if prev < 0 {
				return -1, false
			}
			if r.newline(prev) {
				return prev, false
			}
		} else if !r.newline(p) {
			return syntax.PrevCharHead(r.enc, r.text, adjrange, p), false
		}
	}
	return p, true
}
