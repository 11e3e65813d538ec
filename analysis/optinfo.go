package analysis

import (
	"github.com/coregx/btregex/simd"
	"github.com/coregx/btregex/syntax"
)

// maxExactLen bounds the exact literal collected for a search hint.
const maxExactLen = 24

// minMax is a [min, max] byte distance. max may be InfiniteDistance.
type minMax struct {
	min, max int
}

func (m minMax) add(o minMax) minMax {
	return minMax{distAdd(m.min, o.min), distAdd(m.max, o.max)}
}

func (m minMax) altMerge(o minMax) minMax {
	return minMax{min(m.min, o.min), max(m.max, o.max)}
}

// distVals is 1000/(d+1) for the spread d = max-min of a distance.
var distVals = [100]int{
	1000, 500, 333, 250, 200, 167, 143, 125, 111, 100,
	91, 83, 77, 71, 67, 63, 59, 56, 53, 50,
	48, 45, 43, 42, 40, 38, 37, 36, 34, 33,
	32, 31, 30, 29, 29, 28, 27, 26, 26, 25,
	24, 24, 23, 23, 22, 22, 21, 21, 20, 20,
	20, 19, 19, 19, 18, 18, 18, 17, 17, 17,
	16, 16, 16, 16, 15, 15, 15, 15, 14, 14,
	14, 14, 14, 14, 13, 13, 13, 13, 13, 12,
	12, 12, 12, 12, 12, 11, 11, 11, 11, 11,
	11, 11, 11, 11, 10, 10, 10, 10, 10, 10,
}

// distanceValue scores how precisely a hint locates the match start.
func distanceValue(m minMax) int {
	if m.max == InfiniteDistance {
		return 0
	}
	if d := m.max - m.min; d < len(distVals) {
		return distVals[d]
	}
	return 1
}

// compDistanceValue returns 1 when (d2, v2) is the better hint, -1 when
// (d1, v1) is, and 0 on a tie.
func compDistanceValue(d1, d2 minMax, v1, v2 int) int {
	if v2 <= 0 {
		return -1
	}
	if v1 <= 0 {
		return 1
	}
	v1 *= distanceValue(d1)
	v2 *= distanceValue(d2)
	switch {
	case v2 > v1:
		return 1
	case v2 < v1:
		return -1
	case d2.min < d1.min:
		return 1
	case d2.min > d1.min:
		return -1
	}
	return 0
}

// mapPositionValue is the cost of a byte as a search key; common bytes
// cost more.
func mapPositionValue(c byte) int {
	if c < 0x80 {
		return 1 + int(simd.ByteRank(c))/24
	}
	return 4
}

// optAnc holds the anchors that bound a node on each side.
type optAnc struct {
	left, right syntax.AnchorType
}

const (
	rightAnchors = syntax.AnchorEndBuf | syntax.AnchorSemiEndBuf | syntax.AnchorEndLine |
		syntax.AnchorPrecRead | syntax.AnchorPrecReadNot
	anycharStarMask = syntax.AnchorAnycharStar | syntax.AnchorAnycharStarML
)

func (a *optAnc) add(t syntax.AnchorType) {
	if t&rightAnchors != 0 {
		a.right |= t
	} else {
		a.left |= t
	}
}

func (a *optAnc) remove(t syntax.AnchorType) {
	a.left &^= t
	a.right &^= t
}

func (a optAnc) has(t syntax.AnchorType) bool {
	return a.left&t != 0 || a.right&t != 0
}

func (a *optAnc) altMerge(o optAnc) {
	a.left &= o.left
	a.right &= o.right
}

// concatAnc returns the anchors of left followed by right.
func concatAnc(left, right optAnc, leftLen, rightLen int) optAnc {
	to := optAnc{left: left.left, right: right.right}
	if leftLen == 0 {
		to.left |= right.left
	}
	if rightLen == 0 {
		to.right |= left.right
	} else {
		to.right |= left.right & syntax.AnchorPrecReadNot
	}
	return to
}

// optExact is a literal every match contains at distance mm from its
// start.
type optExact struct {
	mm         minMax
	anc        optAnc
	reachEnd   bool
	ignoreCase bool
	s          []byte
}

func (e *optExact) clear() {
	*e = optExact{}
}

func (e *optExact) copyFrom(o *optExact) {
	*e = *o
	e.s = append([]byte(nil), o.s...)
}

func (e *optExact) full() bool {
	return len(e.s) >= maxExactLen
}

// concatStr appends whole characters of s while they fit.
func (e *optExact) concatStr(enc syntax.Encoding, s []byte) {
	for p := 0; p < len(s); {
		l := enc.CharLen(s, p)
		if len(e.s)+l > maxExactLen {
			break
		}
		e.s = append(e.s, s[p:p+l]...)
		p += l
	}
}

// concat appends the literal of a following node.
func (e *optExact) concat(enc syntax.Encoding, add *optExact) {
	if !e.ignoreCase && add.ignoreCase {
		if len(e.s) >= len(add.s) {
			return
		}
		e.ignoreCase = true
	}
	p := 0
	for p < len(add.s) {
		l := enc.CharLen(add.s, p)
		if len(e.s)+l > maxExactLen {
			break
		}
		e.s = append(e.s, add.s[p:p+l]...)
		p += l
	}
	e.reachEnd = p == len(add.s) && add.reachEnd
	anc := concatAnc(e.anc, add.anc, 1, 1)
	if !e.reachEnd {
		anc.right = 0
	}
	e.anc = anc
}

// altMerge keeps the common prefix of two alternatives' literals.
func (e *optExact) altMerge(enc syntax.Encoding, add *optExact) {
	if len(add.s) == 0 || len(e.s) == 0 || e.mm != add.mm {
		e.clear()
		return
	}
	i := 0
	for i < len(e.s) && i < len(add.s) {
		l := enc.CharLen(e.s, i)
		if i+l > len(add.s) || string(e.s[i:i+l]) != string(add.s[i:i+l]) {
			break
		}
		i += l
	}
	if !add.reachEnd || i < len(add.s) || i < len(e.s) {
		e.reachEnd = false
	}
	e.s = e.s[:i]
	e.ignoreCase = e.ignoreCase || add.ignoreCase
	e.anc.altMerge(add.anc)
	if !e.reachEnd {
		e.anc.right = 0
	}
}

// selectExact replaces now by alt when alt is the better literal.
func selectExact(now, alt *optExact) {
	v1, v2 := len(now.s), len(alt.s)
	switch {
	case v2 == 0:
		return
	case v1 == 0:
		now.copyFrom(alt)
		return
	case v1 <= 2 && v2 <= 2:
		v2 = mapPositionValue(now.s[0])
		v1 = mapPositionValue(alt.s[0])
		if len(now.s) > 1 {
			v1 += 5
		}
		if len(alt.s) > 1 {
			v2 += 5
		}
	}
	if !now.ignoreCase {
		v1 *= 2
	}
	if !alt.ignoreCase {
		v2 *= 2
	}
	if compDistanceValue(now.mm, alt.mm, v1, v2) > 0 {
		now.copyFrom(alt)
	}
}

// optMap is the set of bytes a match can start with at distance mm.
type optMap struct {
	mm    minMax
	anc   optAnc
	value int
	m     [256]bool
}

func (m *optMap) addChar(c byte) {
	if !m.m[c] {
		m.m[c] = true
		m.value += mapPositionValue(c)
	}
}

// addAmbigChar adds the first byte of s and of each case variant that can
// start a match of it, including the multi-char ones.
func (m *optMap) addAmbigChar(enc syntax.Encoding, s []byte) {
	m.addChar(s[0])
	var buf []byte
	for _, it := range enc.CaseFoldItems(s, 0, len(s)) {
		buf = enc.AppendRune(buf[:0], it.Codes[0])
		if len(buf) > 0 {
			m.addChar(buf[0])
		}
	}
}

func (m *optMap) altMerge(add *optMap) {
	if m.value == 0 {
		return
	}
	if add.value == 0 || m.mm.max < add.mm.min {
		*m = optMap{mm: m.mm}
		return
	}
	m.mm = m.mm.altMerge(add.mm)
	val := 0
	for i := range m.m {
		if add.m[i] {
			m.m[i] = true
		}
		if m.m[i] {
			val += mapPositionValue(byte(i))
		}
	}
	m.value = val
	m.anc.altMerge(add.anc)
}

// selectMap replaces now by alt when alt is the more selective map.
func selectMap(now, alt *optMap) {
	const z = 1 << 15
	if alt.value == 0 {
		return
	}
	if now.value == 0 {
		*now = *alt
		return
	}
	if compDistanceValue(now.mm, alt.mm, z/now.value, z/alt.value) > 0 {
		*now = *alt
	}
}

// compExactOrMap returns a positive value when the map is the better hint.
func compExactOrMap(e *optExact, m *optMap) int {
	const base = 20
	if m.value <= 0 {
		return -1
	}
	ve := base * len(e.s)
	if !e.ignoreCase {
		ve *= 2
	}
	vm := base * 5 * 2 / m.value
	return compDistanceValue(e.mm, m.mm, ve, vm)
}

// nodeOpt is the search hint information of one subtree.
//
// exb is a literal the subtree starts with, exm a literal found in its
// middle, expr a literal required by a look-ahead at its start.
type nodeOpt struct {
	len  minMax
	anc  optAnc
	exb  optExact
	exm  optExact
	expr optExact
	mp   optMap
}

// reset clears o and places its hints at distance mm from the match
// start.
func (o *nodeOpt) reset(mm minMax) {
	o.len = minMax{}
	o.anc = optAnc{}
	o.exb.clear()
	o.exm.clear()
	o.expr.clear()
	o.mp = optMap{}
	o.exb.mm = mm
	o.expr.mm = mm
	o.mp.mm = mm
}

func (o *nodeOpt) copyFrom(src *nodeOpt) {
	o.len = src.len
	o.anc = src.anc
	o.exb.copyFrom(&src.exb)
	o.exm.copyFrom(&src.exm)
	o.expr.copyFrom(&src.expr)
	o.mp = src.mp
}

// concatLeft appends the hints of add, the node following o.
func (o *nodeOpt) concatLeft(enc syntax.Encoding, add *nodeOpt) {
	o.anc = concatAnc(o.anc, add.anc, o.len.max, add.len.max)
	if len(add.exb.s) > 0 && o.len.max == 0 {
		add.exb.anc = concatAnc(o.anc, add.exb.anc, o.len.max, add.len.max)
	}
	if add.mp.value > 0 && o.len.max == 0 && add.mp.mm.max == 0 {
		add.mp.anc.left |= o.anc.left
	}

	exbReach, exmReach := o.exb.reachEnd, o.exm.reachEnd
	if add.len.max != 0 {
		o.exb.reachEnd = false
		o.exm.reachEnd = false
	}
	if len(add.exb.s) > 0 {
		switch {
		case exbReach:
			o.exb.concat(enc, &add.exb)
			add.exb.clear()
		case exmReach:
			o.exm.concat(enc, &add.exb)
			add.exb.clear()
		}
	}
	selectExact(&o.exm, &add.exb)
	selectExact(&o.exm, &add.exm)

	if len(o.expr.s) > 0 {
		if add.len.max > 0 {
			if len(o.expr.s) > add.len.max {
				o.expr.s = o.expr.s[:add.len.max]
			}
			if o.expr.mm.max == 0 {
				selectExact(&o.exb, &o.expr)
			} else {
				selectExact(&o.exm, &o.expr)
			}
		}
	} else if len(add.expr.s) > 0 {
		o.expr.copyFrom(&add.expr)
	}

	selectMap(&o.mp, &add.mp)
	o.len = o.len.add(add.len)
}

// altMerge merges the hints of another alternative into o.
func (o *nodeOpt) altMerge(enc syntax.Encoding, add *nodeOpt) {
	o.anc.altMerge(add.anc)
	o.exb.altMerge(enc, &add.exb)
	o.exm.altMerge(enc, &add.exm)
	o.expr.altMerge(enc, &add.expr)
	o.mp.altMerge(&add.mp)
	o.len = o.len.altMerge(add.len)
}
