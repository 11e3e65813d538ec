package analysis

import "github.com/coregx/btregex/syntax"

// minLen returns the minimum number of bytes the subtree can match.
// Results for capture groups are memoized in the annotation table.
func (a *analyzer) minLen(id syntax.NodeID) int {
	t := a.t
	n := t.N(id)
	switch n.Kind {
	case syntax.KindString:
		if isAmbig(n) {
			lo, _ := a.foldedLenRange(n.Bytes)
			return lo
		}
		return len(n.Bytes)

	case syntax.KindCClass, syntax.KindCType, syntax.KindAny:
		return 1

	case syntax.KindList:
		total := 0
		for _, c := range n.Children {
			total = distAdd(total, a.minLen(c))
		}
		return total

	case syntax.KindAlt:
		m := InfiniteDistance
		for _, c := range n.Children {
			m = min(m, a.minLen(c))
		}
		return m

	case syntax.KindQuant:
		if n.Lower == 0 {
			return 0
		}
		return distMul(a.minLen(n.Children[0]), n.Lower)

	case syntax.KindEnclose:
		if n.Enclose == syntax.EncloseMemory {
			return a.memMinLen(id)
		}
		return a.minLen(n.Children[0])

	case syntax.KindBackref:
		if t.Has(id, syntax.StateRecursion) {
			return 0
		}
		m, found := InfiniteDistance, false
		for _, ref := range n.Refs {
			if ref <= 0 || ref > a.env.NumMem {
				continue
			}
			m = min(m, a.memMinLen(a.env.MemNodes[ref]))
			found = true
		}
		if !found {
			return 0
		}
		return m

	case syntax.KindCall:
		if n.Target == syntax.NoNode {
			return 0
		}
		if t.Has(id, syntax.StateRecursion) {
			if t.Has(n.Target, syntax.StateMinFixed) {
				return t.Ann[n.Target].MinLen
			}
			return 0
		}
		return a.minLen(n.Target)
	}
	return 0
}

func (a *analyzer) memMinLen(id syntax.NodeID) int {
	t := a.t
	if t.Has(id, syntax.StateMinFixed) {
		return t.Ann[id].MinLen
	}
	key := uint32(id) //nolint:gosec // G115: node ids are non-negative
	if !a.minBusy.Insert(key) {
		// A backref or call into the group being measured.
		return 0
	}
	l := a.minLen(t.Body(id))
	a.minBusy.Remove(key)
	t.Ann[id].MinLen = l
	t.Set(id, syntax.StateMinFixed)
	return l
}

// maxLen returns the maximum number of bytes the subtree can match, or
// InfiniteDistance.
func (a *analyzer) maxLen(id syntax.NodeID) int {
	t := a.t
	n := t.N(id)
	switch n.Kind {
	case syntax.KindString:
		if isAmbig(n) {
			_, hi := a.foldedLenRange(n.Bytes)
			return hi
		}
		return len(n.Bytes)

	case syntax.KindCClass, syntax.KindCType, syntax.KindAny:
		return a.enc.MaxLen()

	case syntax.KindList:
		total := 0
		for _, c := range n.Children {
			total = distAdd(total, a.maxLen(c))
		}
		return total

	case syntax.KindAlt:
		m := 0
		for _, c := range n.Children {
			m = max(m, a.maxLen(c))
		}
		return m

	case syntax.KindQuant:
		if n.Upper == 0 {
			return 0
		}
		m := a.maxLen(n.Children[0])
		switch {
		case m == 0:
			return 0
		case syntax.IsInfinite(n.Upper):
			return InfiniteDistance
		}
		return distMul(m, n.Upper)

	case syntax.KindEnclose:
		if n.Enclose == syntax.EncloseMemory {
			return a.memMaxLen(id)
		}
		return a.maxLen(n.Children[0])

	case syntax.KindBackref:
		if t.Has(id, syntax.StateRecursion) {
			return InfiniteDistance
		}
		m := 0
		for _, ref := range n.Refs {
			if ref <= 0 || ref > a.env.NumMem {
				continue
			}
			m = max(m, a.memMaxLen(a.env.MemNodes[ref]))
		}
		return m

	case syntax.KindCall:
		if n.Target == syntax.NoNode || t.Has(id, syntax.StateRecursion) {
			return InfiniteDistance
		}
		return a.maxLen(n.Target)
	}
	return 0
}

func (a *analyzer) memMaxLen(id syntax.NodeID) int {
	t := a.t
	if t.Has(id, syntax.StateMaxFixed) {
		return t.Ann[id].MaxLen
	}
	key := uint32(id) //nolint:gosec // G115: node ids are non-negative
	if !a.maxBusy.Insert(key) {
		return InfiniteDistance
	}
	l := a.maxLen(t.Body(id))
	a.maxBusy.Remove(key)
	t.Ann[id].MaxLen = l
	t.Set(id, syntax.StateMaxFixed)
	return l
}

// isAmbig reports whether a string node is matched with runtime case
// folding.
func isAmbig(n *syntax.Node) bool {
	return n.StrFlags&syntax.StrAmbig != 0 && n.StrFlags&syntax.StrRaw == 0
}

// foldedLenRange bounds the subject bytes a case-insensitive string can
// consume. Matching text has the same full fold, so the bounds are summed
// over the characters of the fold: each is spelled by an orbit member of
// its own, or shares a ligature or sharp s with its neighbours at no more
// than two bytes per folded character.
func (a *analyzer) foldedLenRange(s []byte) (lo, hi int) {
	f := syntax.FoldString(a.enc, s)
	multi := a.enc.MaxLen() > 1
	for p := 0; p < len(f); {
		clen := a.enc.CharLen(f, p)
		cl, ch := clen, clen
		for _, it := range a.enc.CaseFoldItems(f, p, len(f)) {
			if it.ByteLen != clen || len(it.Codes) != 1 {
				continue
			}
			if rl := a.enc.RuneLen(it.Codes[0]); rl > 0 {
				cl, ch = min(cl, rl), max(ch, rl)
			}
		}
		if multi && clen == 1 && syntax.InMultiFold(rune(f[p])) {
			ch = max(ch, 2)
		}
		lo += cl
		hi += ch
		p += clen
	}
	return lo, hi
}

// charLenStatus classifies a look-behind body.
type charLenStatus uint8

const (
	charLenFixed charLenStatus = iota
	charLenVariable
	// charLenTopAltVariable means only the top-level alternatives differ
	// in length, so the look-behind can be split.
	charLenTopAltVariable
)

// charLen returns the fixed number of characters the subtree matches.
// level is the nesting depth of the caller; the look-behind body is
// measured with level 0.
func (a *analyzer) charLen(id syntax.NodeID, level int) (int, charLenStatus) {
	level++
	t := a.t
	n := t.N(id)
	switch n.Kind {
	case syntax.KindList:
		total := 0
		for _, c := range n.Children {
			l, st := a.charLen(c, level)
			if st != charLenFixed {
				return 0, st
			}
			total = distAdd(total, l)
		}
		return total, charLenFixed

	case syntax.KindAlt:
		first, st := a.charLen(n.Children[0], level)
		if st != charLenFixed {
			return 0, st
		}
		varlen := false
		for _, c := range n.Children[1:] {
			l, st := a.charLen(c, level)
			if st != charLenFixed {
				return 0, st
			}
			if l != first {
				varlen = true
			}
		}
		if varlen {
			if level == 1 {
				return 0, charLenTopAltVariable
			}
			return 0, charLenVariable
		}
		return first, charLenFixed

	case syntax.KindString:
		count := 0
		for p := 0; p < len(n.Bytes); p += a.enc.CharLen(n.Bytes, p) {
			count++
		}
		return count, charLenFixed

	case syntax.KindQuant:
		if n.Lower != n.Upper {
			return 0, charLenVariable
		}
		l, st := a.charLen(n.Children[0], level)
		if st != charLenFixed {
			return 0, st
		}
		return distMul(l, n.Lower), charLenFixed

	case syntax.KindCall:
		if n.Target == syntax.NoNode || t.Has(id, syntax.StateRecursion) {
			return 0, charLenVariable
		}
		return a.charLen(n.Target, level)

	case syntax.KindCType, syntax.KindCClass, syntax.KindAny:
		return 1, charLenFixed

	case syntax.KindBackref:
		return 0, charLenVariable

	case syntax.KindEnclose:
		if n.Enclose != syntax.EncloseMemory {
			return a.charLen(n.Children[0], level)
		}
		if t.Has(id, syntax.StateCLenFixed) {
			return t.Ann[id].CharLen, charLenFixed
		}
		l, st := a.charLen(n.Children[0], level)
		if st == charLenFixed {
			t.Ann[id].CharLen = l
			t.Set(id, syntax.StateCLenFixed)
		}
		return l, st
	}
	return 0, charLenFixed
}
