package syntax

import (
	"sort"
	"unicode"
)

// MaxMultiByteRanges bounds the number of intervals held by one
// CodeRangeSet.
const MaxMultiByteRanges = 10000

// Range is an inclusive interval of code points.
type Range struct {
	Lo, Hi rune
}

// CodeRangeSet is a sorted set of disjoint, non-adjacent code point
// intervals.
//
// The zero value is an empty set ready to use.
type CodeRangeSet struct {
	ranges []Range
}

// NewCodeRangeSet builds a set from arbitrary (possibly overlapping)
// intervals.
func NewCodeRangeSet(rs ...Range) (*CodeRangeSet, error) {
	s := &CodeRangeSet{}
	for _, r := range rs {
		if err := s.Add(r.Lo, r.Hi); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Len returns the number of intervals.
func (s *CodeRangeSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ranges)
}

// IsEmpty reports whether the set holds no code point.
func (s *CodeRangeSet) IsEmpty() bool {
	return s.Len() == 0
}

// Ranges returns the intervals in ascending order. The slice must not be
// modified.
func (s *CodeRangeSet) Ranges() []Range {
	if s == nil {
		return nil
	}
	return s.ranges
}

// Clone returns a copy of s.
func (s *CodeRangeSet) Clone() *CodeRangeSet {
	if s == nil {
		return &CodeRangeSet{}
	}
	return &CodeRangeSet{ranges: append([]Range(nil), s.ranges...)}
}

// Contains reports whether r is in the set.
func (s *CodeRangeSet) Contains(r rune) bool {
	if s == nil {
		return false
	}
	rs := s.ranges
	lo, hi := 0, len(rs)
	for lo < hi {
		m := int(uint(lo+hi) >> 1)
		switch {
		case r < rs[m].Lo:
			hi = m
		case r > rs[m].Hi:
			lo = m + 1
		default:
			return true
		}
	}
	return false
}

// Add inserts the interval [lo, hi], merging it with overlapping or
// adjacent intervals.
func (s *CodeRangeSet) Add(lo, hi rune) error {
	if lo > hi {
		lo, hi = hi, lo
	}
	rs := s.ranges
	// First interval that could touch [lo, hi].
	i := sort.Search(len(rs), func(k int) bool { return rs[k].Hi+1 >= lo })
	j := i
	for j < len(rs) && rs[j].Lo <= hi+1 {
		if rs[j].Lo < lo {
			lo = rs[j].Lo
		}
		if rs[j].Hi > hi {
			hi = rs[j].Hi
		}
		j++
	}
	if i == j {
		if len(rs) >= MaxMultiByteRanges {
			return ErrTooManyMultiByteRanges
		}
		rs = append(rs, Range{})
		copy(rs[i+1:], rs[i:])
		rs[i] = Range{lo, hi}
		s.ranges = rs
		return nil
	}
	rs[i] = Range{lo, hi}
	s.ranges = append(rs[:i+1], rs[j:]...)
	return nil
}

// AddRune inserts a single code point.
func (s *CodeRangeSet) AddRune(r rune) error {
	return s.Add(r, r)
}

// AddTable inserts every code point of a unicode range table at or above
// from.
func (s *CodeRangeSet) AddTable(t *unicode.RangeTable, from rune) error {
	for _, r := range t.R16 {
		if err := s.addStrided(rune(r.Lo), rune(r.Hi), rune(r.Stride), from); err != nil {
			return err
		}
	}
	for _, r := range t.R32 {
		if err := s.addStrided(rune(r.Lo), rune(r.Hi), rune(r.Stride), from); err != nil {
			return err
		}
	}
	return nil
}

func (s *CodeRangeSet) addStrided(lo, hi, stride, from rune) error {
	if hi < from {
		return nil
	}
	if stride == 1 {
		return s.Add(max(lo, from), hi)
	}
	for c := lo; c <= hi; c += stride {
		if c < from {
			continue
		}
		if err := s.AddRune(c); err != nil {
			return err
		}
	}
	return nil
}

// Union returns s ∪ o.
func (s *CodeRangeSet) Union(o *CodeRangeSet) (*CodeRangeSet, error) {
	out := s.Clone()
	for _, r := range o.Ranges() {
		if err := out.Add(r.Lo, r.Hi); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Intersect returns s ∩ o.
func (s *CodeRangeSet) Intersect(o *CodeRangeSet) *CodeRangeSet {
	a, b := s.Ranges(), o.Ranges()
	out := &CodeRangeSet{}
	for i, j := 0, 0; i < len(a) && j < len(b); {
		lo := max(a[i].Lo, b[j].Lo)
		hi := min(a[i].Hi, b[j].Hi)
		if lo <= hi {
			out.ranges = append(out.ranges, Range{lo, hi})
		}
		if a[i].Hi < b[j].Hi {
			i++
		} else {
			j++
		}
	}
	return out
}

// Negate returns the complement of s within [from, unicode.MaxRune].
func (s *CodeRangeSet) Negate(from rune) *CodeRangeSet {
	out := &CodeRangeSet{}
	next := from
	for _, r := range s.Ranges() {
		if r.Hi < from {
			continue
		}
		if r.Lo > next {
			out.ranges = append(out.ranges, Range{next, r.Lo - 1})
		}
		next = r.Hi + 1
	}
	if next <= unicode.MaxRune {
		out.ranges = append(out.ranges, Range{next, unicode.MaxRune})
	}
	return out
}

// Disjoint reports whether s and o share no code point.
func (s *CodeRangeSet) Disjoint(o *CodeRangeSet) bool {
	a, b := s.Ranges(), o.Ranges()
	for i, j := 0, 0; i < len(a) && j < len(b); {
		if max(a[i].Lo, b[j].Lo) <= min(a[i].Hi, b[j].Hi) {
			return false
		}
		if a[i].Hi < b[j].Hi {
			i++
		} else {
			j++
		}
	}
	return true
}

// Equal reports whether s and o hold the same code points.
func (s *CodeRangeSet) Equal(o *CodeRangeSet) bool {
	a, b := s.Ranges(), o.Ranges()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
