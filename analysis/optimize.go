package analysis

import (
	"fmt"
	"strings"

	"github.com/coregx/btregex/syntax"
)

// OptKind selects the search algorithm used to find candidate starts.
type OptKind uint8

// Search hint kinds.
const (
	OptNone OptKind = iota
	OptExact
	OptExactIC
	OptExactBM
	OptExactBMNotRev
	OptMap
	OptMultiLiteral
)

var optKindNames = [...]string{
	OptNone:          "none",
	OptExact:         "exact",
	OptExactIC:       "exact-ic",
	OptExactBM:       "exact-bm",
	OptExactBMNotRev: "exact-bm-not-rev",
	OptMap:           "map",
	OptMultiLiteral:  "multi-literal",
}

func (k OptKind) String() string {
	if int(k) < len(optKindNames) {
		return optKindNames[k]
	}
	return fmt.Sprintf("OptKind(%d)", k)
}

// Optimization holds the search hints derived from a pattern.
//
// A hint is found at a distance in [DMin, DMax] from the match start.
// Anchor carries begin-buf, begin-position, anychar-star and end-buf
// style anchors that restrict the start positions; for end anchors the
// match length lies in [AnchorDMin, AnchorDMax]. SubAnchor holds line
// anchors checked around a hint. Inputs shorter than ThresholdLen cannot
// match.
type Optimization struct {
	Kind OptKind

	// Exact is the literal for the exact kinds; case folded for
	// OptExactIC.
	Exact []byte
	// Map marks the bytes a match can start with for OptMap.
	Map [256]bool
	// BMSkip is the forward quick-search shift table, indexed by the
	// byte after the window.
	BMSkip [256]int
	// BMBackSkip is the backward shift table, indexed by the byte before
	// the window.
	BMBackSkip [256]int
	// Literals are the alternatives of OptMultiLiteral.
	Literals [][]byte

	DMin, DMax   int
	ThresholdLen int

	Anchor                 syntax.AnchorType
	AnchorDMin, AnchorDMax int
	SubAnchor              syntax.AnchorType
}

func (o *Optimization) String() string {
	var sb strings.Builder
	sb.WriteString(o.Kind.String())
	switch o.Kind {
	case OptExact, OptExactIC, OptExactBM, OptExactBMNotRev:
		fmt.Fprintf(&sb, " %q", o.Exact)
	case OptMap:
		n := 0
		for _, b := range o.Map {
			if b {
				n++
			}
		}
		fmt.Fprintf(&sb, " %d bytes", n)
	case OptMultiLiteral:
		fmt.Fprintf(&sb, " %d literals", len(o.Literals))
	}
	if o.Kind != OptNone {
		fmt.Fprintf(&sb, " dist=[%d,%s]", o.DMin, distString(o.DMax))
	}
	if o.Anchor != 0 {
		fmt.Fprintf(&sb, " anchor=%s", o.Anchor)
	}
	if o.SubAnchor != 0 {
		fmt.Fprintf(&sb, " sub-anchor=%s", o.SubAnchor)
	}
	return sb.String()
}

func distString(d int) string {
	if d == InfiniteDistance {
		return "inf"
	}
	return fmt.Sprint(d)
}

// maxOptRefCount bounds how often a group reached through calls is
// analyzed again.
const maxOptRefCount = 5

// optimizeNode computes the hints of the subtree at id, which starts at
// distance mmd from the match start.
func (a *analyzer) optimizeNode(id syntax.NodeID, opt *nodeOpt, mmd minMax) {
	t := a.t
	enc := a.enc
	opt.reset(mmd)
	n := t.N(id)
	switch n.Kind {
	case syntax.KindList:
		var nopt nodeOpt
		next := mmd
		for _, c := range n.Children {
			a.optimizeNode(c, &nopt, next)
			next = next.add(nopt.len)
			opt.concatLeft(enc, &nopt)
		}

	case syntax.KindAlt:
		var nopt nodeOpt
		for i, c := range n.Children {
			a.optimizeNode(c, &nopt, mmd)
			if i == 0 {
				opt.copyFrom(&nopt)
			} else {
				opt.altMerge(enc, &nopt)
			}
		}

	case syntax.KindString:
		slen := len(n.Bytes)
		switch {
		case !isAmbig(n):
			opt.exb.concatStr(enc, n.Bytes)
			if slen > 0 {
				opt.mp.addChar(n.Bytes[0])
			}
			opt.len = minMax{slen, slen}
		case n.StrFlags&syntax.StrDontGetOptInfo != 0:
			lo, hi := a.foldedLenRange(n.Bytes)
			opt.len = minMax{lo, hi}
		default:
			opt.exb.concatStr(enc, n.Bytes)
			opt.exb.ignoreCase = true
			if slen > 0 {
				opt.mp.addAmbigChar(enc, n.Bytes)
			}
			lo, hi := a.foldedLenRange(n.Bytes)
			opt.len = minMax{lo, hi}
		}
		if len(opt.exb.s) == slen {
			opt.exb.reachEnd = true
		}

	case syntax.KindCClass:
		cc := n.Class
		if cc.Not || !cc.MB.IsEmpty() {
			opt.len = minMax{1, enc.MaxLen()}
			break
		}
		for c := 0; c < 256; c++ {
			if cc.Bits.Has(c) {
				opt.mp.addChar(byte(c))
			}
		}
		opt.len = minMax{1, 1}

	case syntax.KindCType:
		if enc.MaxLen() == 1 {
			for c := 0; c < 256; c++ {
				if enc.IsCType(rune(c), n.CType) != n.Not {
					opt.mp.addChar(byte(c))
				}
			}
		}
		opt.len = minMax{1, enc.MaxLen()}

	case syntax.KindAny:
		opt.len = minMax{1, enc.MaxLen()}

	case syntax.KindAnchor:
		switch n.Anchor {
		case syntax.AnchorBeginBuf, syntax.AnchorBeginPosition, syntax.AnchorBeginLine,
			syntax.AnchorEndBuf, syntax.AnchorSemiEndBuf, syntax.AnchorEndLine:
			opt.anc.add(n.Anchor)
		case syntax.AnchorPrecRead:
			var nopt nodeOpt
			a.optimizeNode(n.Children[0], &nopt, mmd)
			if len(nopt.exb.s) > 0 {
				opt.expr.copyFrom(&nopt.exb)
			} else if len(nopt.exm.s) > 0 {
				opt.expr.copyFrom(&nopt.exm)
			}
			opt.expr.reachEnd = false
			if nopt.mp.value > 0 {
				opt.mp = nopt.mp
			}
		}

	case syntax.KindBackref:
		if t.Has(id, syntax.StateRecursion) {
			opt.len = minMax{0, InfiniteDistance}
			break
		}
		opt.len = minMax{a.minLen(id), a.maxLen(id)}

	case syntax.KindCall:
		if n.Target == syntax.NoNode || t.Has(id, syntax.StateRecursion) {
			opt.len = minMax{0, InfiniteDistance}
			break
		}
		a.optimizeNode(n.Target, opt, mmd)

	case syntax.KindQuant:
		var nopt nodeOpt
		a.optimizeNode(n.Children[0], &nopt, mmd)
		if n.Lower > 0 {
			opt.copyFrom(&nopt)
			if len(nopt.exb.s) > 0 && nopt.exb.reachEnd {
				i := 2
				for ; i <= n.Lower && !opt.exb.full(); i++ {
					opt.exb.concat(enc, &nopt.exb)
				}
				if i < n.Lower {
					opt.exb.reachEnd = false
				}
			}
			if n.Lower != n.Upper {
				opt.exb.reachEnd = false
				opt.exm.reachEnd = false
			}
			if n.Lower > 1 {
				opt.exm.reachEnd = false
			}
		}
		if syntax.IsInfinite(n.Upper) && mmd.max == 0 && n.Greedy {
			if b := t.N(n.Children[0]); b.Kind == syntax.KindAny {
				if b.Multiline {
					opt.anc.add(syntax.AnchorAnycharStarML)
				} else {
					opt.anc.add(syntax.AnchorAnycharStar)
				}
			}
		}
		lo := distMul(nopt.len.min, n.Lower)
		var hi int
		switch {
		case !syntax.IsInfinite(n.Upper):
			hi = distMul(nopt.len.max, n.Upper)
		case nopt.len.max > 0:
			hi = InfiniteDistance
		}
		opt.len = minMax{lo, hi}

	case syntax.KindEnclose:
		if n.Enclose != syntax.EncloseMemory {
			a.optimizeNode(n.Children[0], opt, mmd)
			break
		}
		t.Ann[id].OptCount++
		if t.Ann[id].OptCount > maxOptRefCount {
			lo, hi := 0, InfiniteDistance
			if t.Has(id, syntax.StateMinFixed) {
				lo = t.Ann[id].MinLen
			}
			if t.Has(id, syntax.StateMaxFixed) {
				hi = t.Ann[id].MaxLen
			}
			opt.len = minMax{lo, hi}
			break
		}
		a.optimizeNode(n.Children[0], opt, mmd)
		if opt.anc.has(anycharStarMask) && a.env.BackrefedMem.At(n.Regnum) {
			opt.anc.remove(anycharStarMask)
		}
	}
}

// optimize reduces the hints of the whole tree to one search strategy.
func (a *analyzer) optimize() *Optimization {
	var opt nodeOpt
	a.optimizeNode(a.t.Root, &opt, minMax{})

	o := &Optimization{Kind: OptNone, DMax: InfiniteDistance}
	o.Anchor = opt.anc.left&(syntax.AnchorBeginBuf|syntax.AnchorBeginPosition|anycharStarMask) |
		opt.anc.right&(syntax.AnchorEndBuf|syntax.AnchorSemiEndBuf)
	if o.Anchor&anycharStarMask != 0 && !a.leadsWithAnycharStar(a.t.Root) {
		o.Anchor &^= anycharStarMask
	}
	if o.Anchor&(syntax.AnchorEndBuf|syntax.AnchorSemiEndBuf) != 0 {
		o.AnchorDMin = opt.len.min
		o.AnchorDMax = opt.len.max
	}

	switch {
	case len(opt.exb.s) > 0 || len(opt.exm.s) > 0:
		selectExact(&opt.exb, &opt.exm)
		if opt.mp.value > 0 && compExactOrMap(&opt.exb, &opt.mp) > 0 {
			a.setMap(o, &opt.mp)
		} else {
			a.setExact(o, &opt.exb)
			o.SubAnchor |= opt.exb.anc.left&syntax.AnchorBeginLine | opt.exb.anc.right&syntax.AnchorEndLine
		}
	case opt.mp.value > 0:
		a.setMap(o, &opt.mp)
	default:
		o.SubAnchor |= opt.anc.left & syntax.AnchorBeginLine
		if opt.len.max == 0 {
			o.SubAnchor |= opt.anc.right & syntax.AnchorEndLine
		}
	}

	if o.Kind == OptNone || o.Kind == OptMap {
		a.setMultiLiteral(o)
	}
	return o
}

// leadsWithAnycharStar reports whether every match attempt starts with a
// greedy .* preceded by nothing but line and buffer anchors. Only then may
// the search skip the rest of a line after a failed attempt.
func (a *analyzer) leadsWithAnycharStar(id syntax.NodeID) bool {
	n := a.t.N(id)
	switch n.Kind {
	case syntax.KindList:
		for _, c := range n.Children {
			cn := a.t.N(c)
			if cn.Kind == syntax.KindAnchor && cn.Anchor&(syntax.AnchorBeginBuf|
				syntax.AnchorBeginLine|syntax.AnchorBeginPosition) != 0 {
				continue
			}
			return a.leadsWithAnycharStar(c)
		}
	case syntax.KindEnclose:
		return a.leadsWithAnycharStar(n.Children[0])
	case syntax.KindQuant:
		return n.Greedy && syntax.IsInfinite(n.Upper) && a.t.N(n.Children[0]).Kind == syntax.KindAny
	}
	return false
}

func (a *analyzer) setMap(o *Optimization, m *optMap) {
	o.Kind = OptMap
	o.Map = m.m
	o.DMin, o.DMax = m.mm.min, m.mm.max
	if o.DMin != InfiniteDistance {
		o.ThresholdLen = o.DMin + 1
	}
	o.SubAnchor |= m.anc.left&syntax.AnchorBeginLine | m.anc.right&syntax.AnchorEndLine
}

func (a *analyzer) setExact(o *Optimization, e *optExact) {
	if len(e.s) == 0 {
		return
	}
	minLen := len(e.s)
	if e.ignoreCase {
		o.Kind = OptExactIC
		o.Exact = syntax.FoldString(a.enc, e.s)
		minLen = 0
		for p := 0; p < len(e.s); p += a.enc.CharLen(e.s, p) {
			minLen++
		}
	} else {
		o.Exact = append([]byte(nil), e.s...)
		allowReverse := a.enc.MaxLen() == 1 || e.s[0] < 0x80 || e.s[0] >= 0xc0
		switch {
		case len(e.s) >= 3 || len(e.s) >= 2 && allowReverse:
			if allowReverse {
				o.Kind = OptExactBM
			} else {
				o.Kind = OptExactBMNotRev
			}
			o.BuildSkipTables()
		default:
			o.Kind = OptExact
		}
	}
	o.DMin, o.DMax = e.mm.min, e.mm.max
	if o.DMin != InfiniteDistance {
		o.ThresholdLen = distAdd(o.DMin, minLen)
	}
}

// BuildSkipTables fills BMSkip and BMBackSkip from Exact for the
// Boyer-Moore kinds.
func (o *Optimization) BuildSkipTables() {
	if o.Kind == OptExactBM || o.Kind == OptExactBMNotRev {
		o.BMSkip = quickSearchSkip(o.Exact)
		o.BMBackSkip = quickSearchBackSkip(o.Exact)
	}
}

// quickSearchSkip builds the forward Sunday shift table: after a window
// mismatch the search advances by skip[text[window end]].
func quickSearchSkip(pat []byte) [256]int {
	var skip [256]int
	n := len(pat)
	for i := range skip {
		skip[i] = n + 1
	}
	for i, c := range pat {
		skip[c] = n - i
	}
	return skip
}

// quickSearchBackSkip builds the backward shift table, indexed by the byte
// before the window.
func quickSearchBackSkip(pat []byte) [256]int {
	var skip [256]int
	n := len(pat)
	for i := range skip {
		skip[i] = n + 1
	}
	for i := n - 1; i >= 0; i-- {
		skip[pat[i]] = i + 1
	}
	return skip
}
