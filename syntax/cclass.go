package syntax

import "math/bits"

// BitSet is a 256-bit set indexed by byte value.
type BitSet [8]uint32

// Set adds c.
func (b *BitSet) Set(c int) { b[c>>5] |= 1 << uint(c&31) }

// Clear removes c.
func (b *BitSet) Clear(c int) { b[c>>5] &^= 1 << uint(c&31) }

// Has reports whether c is present.
func (b *BitSet) Has(c int) bool { return b[c>>5]&(1<<uint(c&31)) != 0 }

// SetRange adds every value in [lo, hi].
func (b *BitSet) SetRange(lo, hi int) {
	for c := lo; c <= hi; c++ {
		b.Set(c)
	}
}

// Invert complements the set.
func (b *BitSet) Invert() {
	for i := range b {
		b[i] = ^b[i]
	}
}

// Or adds every member of o.
func (b *BitSet) Or(o *BitSet) {
	for i := range b {
		b[i] |= o[i]
	}
}

// And keeps only members of o.
func (b *BitSet) And(o *BitSet) {
	for i := range b {
		b[i] &= o[i]
	}
}

// Count returns the number of members.
func (b *BitSet) Count() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount32(w)
	}
	return n
}

// IsEmpty reports whether the set has no member.
func (b *BitSet) IsEmpty() bool {
	return *b == BitSet{}
}

// CClass is a character class: a bit set for code points below the
// encoding's single-byte limit, a code range set for the rest, and a
// negation flag applied on top of both.
type CClass struct {
	Bits BitSet
	MB   *CodeRangeSet
	Not  bool
}

// NewCClass returns an empty class.
func NewCClass() *CClass {
	return &CClass{MB: &CodeRangeSet{}}
}

// Clone returns a deep copy of cc.
func (cc *CClass) Clone() *CClass {
	return &CClass{Bits: cc.Bits, MB: cc.MB.Clone(), Not: cc.Not}
}

// AddRange adds [lo, hi] to the positive set.
func (cc *CClass) AddRange(enc Encoding, lo, hi rune) error {
	limit := enc.SingleByteLimit()
	if lo < limit {
		cc.Bits.SetRange(int(lo), int(min(hi, limit-1)))
		if hi < limit {
			return nil
		}
		lo = limit
	}
	if cc.MB == nil {
		cc.MB = &CodeRangeSet{}
	}
	return cc.MB.Add(lo, hi)
}

// AddRune adds r to the positive set.
func (cc *CClass) AddRune(enc Encoding, r rune) error {
	return cc.AddRange(enc, r, r)
}

// AddCType adds the members of ct, or of its complement when not is set.
func (cc *CClass) AddCType(enc Encoding, ct CType, not bool) error {
	limit := enc.SingleByteLimit()
	for c := rune(0); c < limit; c++ {
		if enc.IsCType(c, ct) != not {
			cc.Bits.Set(int(c))
		}
	}
	if enc.MaxLen() == 1 {
		return nil
	}
	mb := enc.CTypeRanges(ct)
	if not {
		mb = mb.Negate(limit)
	}
	for _, r := range mb.Ranges() {
		if err := cc.AddRange(enc, r.Lo, r.Hi); err != nil {
			return err
		}
	}
	return nil
}

// Contains reports whether r matches the class, honoring Not.
func (cc *CClass) Contains(enc Encoding, r rune) bool {
	var in bool
	if r < enc.SingleByteLimit() {
		in = cc.Bits.Has(int(r))
	} else {
		in = cc.MB.Contains(r)
	}
	return in != cc.Not
}

// positive returns the class as an equivalent class with Not cleared.
func (cc *CClass) positive(enc Encoding) *CClass {
	if !cc.Not {
		return cc.Clone()
	}
	out := &CClass{Bits: cc.Bits, MB: cc.MB.Negate(enc.SingleByteLimit())}
	out.Bits.Invert()
	if limit := enc.SingleByteLimit(); limit < 256 {
		for c := int(limit); c < 256; c++ {
			out.Bits.Clear(c)
		}
	}
	if enc.MaxLen() == 1 {
		out.MB = &CodeRangeSet{}
	}
	return out
}

// Union returns a class matching what cc or o matches.
func (cc *CClass) Union(enc Encoding, o *CClass) (*CClass, error) {
	a, b := cc.positive(enc), o.positive(enc)
	a.Bits.Or(&b.Bits)
	mb, err := a.MB.Union(b.MB)
	if err != nil {
		return nil, err
	}
	a.MB = mb
	return a, nil
}

// Intersect returns a class matching what both cc and o match.
func (cc *CClass) Intersect(enc Encoding, o *CClass) *CClass {
	a, b := cc.positive(enc), o.positive(enc)
	a.Bits.And(&b.Bits)
	a.MB = a.MB.Intersect(b.MB)
	return a
}

// IsEmpty reports whether the class can match nothing.
func (cc *CClass) IsEmpty(enc Encoding) bool {
	p := cc.positive(enc)
	return p.Bits.IsEmpty() && p.MB.IsEmpty()
}

// SingleRune returns the only code point matched by the class, if any.
func (cc *CClass) SingleRune(enc Encoding) (rune, bool) {
	if cc.Not || !cc.MB.IsEmpty() && cc.Bits.Count() > 0 {
		return 0, false
	}
	if cc.Bits.Count() == 1 {
		for c := 0; c < 256; c++ {
			if cc.Bits.Has(c) {
				return rune(c), true
			}
		}
	}
	if cc.Bits.IsEmpty() && cc.MB.Len() == 1 {
		r := cc.MB.Ranges()[0]
		if r.Lo == r.Hi {
			return r.Lo, true
		}
	}
	return 0, false
}

// FoldClosure adds every case fold variant of the class members. Negation
// is applied after folding.
func (cc *CClass) FoldClosure(enc Encoding) error {
	limit := enc.SingleByteLimit()
	var add []rune
	for c := rune(0); c < limit && c < 0x80; c++ {
		if cc.Bits.Has(int(c)) {
			add = append(add, foldOrbitFor(enc, c)...)
		}
	}
	if enc.MaxLen() > 1 && !cc.MB.IsEmpty() {
		for _, r := range AmbiguousRunes() {
			if r >= limit && cc.MB.Contains(r) {
				add = append(add, foldOrbitFor(enc, r)...)
			}
		}
	}
	for _, r := range add {
		if enc.RuneLen(r) < 0 {
			continue
		}
		if err := cc.AddRune(enc, r); err != nil {
			return err
		}
	}
	return nil
}

func foldOrbitFor(enc Encoding, r rune) []rune {
	if enc.MaxLen() > 1 {
		return FoldOrbit(r)
	}
	switch {
	case 'a' <= r && r <= 'z':
		return []rune{r - ('a' - 'A')}
	case 'A' <= r && r <= 'Z':
		return []rune{r + ('a' - 'A')}
	}
	return nil
}
