package syntax

import (
	"sync"
	"unicode"
	"unicode/utf8"
)

// multiFolds lists characters whose full case fold is several characters.
// Only these produce variable-length case-fold alternatives.
var multiFolds = []struct {
	r    rune
	fold string
}{
	{0x00df, "ss"}, // ß
	{0x1e9e, "ss"}, // ẞ
	{0xfb00, "ff"},
	{0xfb01, "fi"},
	{0xfb02, "fl"},
	{0xfb03, "ffi"},
	{0xfb04, "ffl"},
	{0xfb05, "st"},
	{0xfb06, "st"},
}

// multiFold returns the full case fold of r when it is several characters.
func multiFold(r rune) (string, bool) {
	if r < utf8.RuneSelf {
		return "", false
	}
	for _, m := range multiFolds {
		if m.r == r {
			return m.fold, true
		}
	}
	return "", false
}

// InMultiFold reports whether the ASCII letter c is part of the full fold
// of a ligature or sharp s.
func InMultiFold(c rune) bool {
	if c >= utf8.RuneSelf {
		return false
	}
	c |= 0x20
	for _, m := range multiFolds {
		for i := 0; i < len(m.fold); i++ {
			if rune(m.fold[i]) == c {
				return true
			}
		}
	}
	return false
}

// foldVariants returns every spelling of fold in which each character is
// replaced by a member of its fold orbit.
func foldVariants(fold string) [][]rune {
	out := [][]rune{nil}
	for _, c := range fold {
		members := append([]rune{c}, FoldOrbit(c)...)
		next := make([][]rune, 0, len(out)*len(members))
		for _, v := range out {
			for _, m := range members {
				next = append(next, append(v[:len(v):len(v)], m))
			}
		}
		out = next
	}
	return out
}

// foldRune returns the smallest member of r's simple fold orbit.
func foldRune(r rune) rune {
	if r < utf8.RuneSelf {
		if 'a' <= r && r <= 'z' {
			return r - ('a' - 'A')
		}
		return r
	}
	m := r
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		if f < m {
			m = f
		}
	}
	return m
}

// FoldOrbit returns the other members of r's simple fold orbit.
func FoldOrbit(r rune) []rune {
	var out []rune
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		out = append(out, f)
	}
	return out
}

var (
	ambiguousOnce  sync.Once
	ambiguousRunes []rune
)

// AmbiguousRunes returns, in ascending order, every code point whose simple
// fold orbit has more than one member.
func AmbiguousRunes() []rune {
	ambiguousOnce.Do(func() {
		for _, t := range []*unicode.RangeTable{unicode.Lu, unicode.Ll, unicode.Lt, unicode.Mn, unicode.Nl, unicode.So} {
			walkTable(t, func(r rune) {
				if isAmbiguousRune(r) {
					ambiguousRunes = append(ambiguousRunes, r)
				}
			})
		}
		sortRunes(ambiguousRunes)
		ambiguousRunes = dedupRunes(ambiguousRunes)
	})
	return ambiguousRunes
}

func walkTable(t *unicode.RangeTable, fn func(rune)) {
	for _, r := range t.R16 {
		for c := rune(r.Lo); c <= rune(r.Hi); c += rune(r.Stride) {
			fn(c)
		}
	}
	for _, r := range t.R32 {
		for c := rune(r.Lo); c <= rune(r.Hi); c += rune(r.Stride) {
			fn(c)
		}
	}
}

func sortRunes(rs []rune) {
	// insertion sort over mostly sorted input
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rs[j] < rs[j-1]; j-- {
			rs[j], rs[j-1] = rs[j-1], rs[j]
		}
	}
}

func dedupRunes(rs []rune) []rune {
	out := rs[:0]
	for i, r := range rs {
		if i == 0 || r != rs[i-1] {
			out = append(out, r)
		}
	}
	return out
}

// caseFoldItems lists the case-insensitive alternatives for the text at
// b[p]. Single-character orbit members come first, followed by
// variable-length alternatives.
func caseFoldItems(enc Encoding, b []byte, p, end int) []CaseFoldItem {
	n := enc.CharLen(b[:end], p)
	r := enc.Decode(b[:end], p)
	var items []CaseFoldItem
	for _, f := range FoldOrbit(r) {
		items = append(items, CaseFoldItem{ByteLen: n, Codes: []rune{f}})
	}
	if fold, ok := multiFold(r); ok {
		for _, v := range foldVariants(fold) {
			items = append(items, CaseFoldItem{ByteLen: n, Codes: v})
		}
	}
	// Sequences that fold to a single ligature or sharp s.
	for _, m := range multiFolds {
		if q, ok := matchFoldedASCII(b, p, end, m.fold); ok {
			items = append(items, CaseFoldItem{ByteLen: q - p, Codes: []rune{m.r}})
		}
	}
	return items
}

// matchFoldedASCII matches the lowercase ASCII string s against b[p:end]
// ignoring ASCII case, returning the end offset.
func matchFoldedASCII(b []byte, p, end int, s string) (int, bool) {
	if end-p < len(s) {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if b[p+i]|0x20 != s[i] {
			return 0, false
		}
	}
	return p + len(s), true
}
