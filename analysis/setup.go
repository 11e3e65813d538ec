package analysis

import (
	"bytes"

	"github.com/coregx/btregex/syntax"
)

// setupState describes the context a node is set up in.
type setupState uint8

const (
	inAlt setupState = 1 << iota
	inNot
	inRepeat
	inVarRepeat
	inCall
	inRecCall
	inLookBehind
)

// maxExpandedString bounds the fixed repeat of a string that is expanded
// into a single string node.
const maxExpandedString = 100

// setupTree validates the subtree at id, classifies it for the compiler
// and applies the structural rewrites.
func (a *analyzer) setupTree(id syntax.NodeID, state setupState) error {
	t := a.t
	env := a.env
restart:
	n := t.N(id)
	switch n.Kind {
	case syntax.KindList:
		prev := syntax.NoNode
		for _, c := range n.Children {
			if err := a.setupTree(c, state); err != nil {
				return err
			}
			if prev != syntax.NoNode {
				a.nextSetup(prev, c)
			}
			prev = c
		}

	case syntax.KindAlt:
		for _, c := range n.Children {
			if err := a.setupTree(c, state|inAlt); err != nil {
				return err
			}
		}

	case syntax.KindString:
		switch {
		case n.StrFlags&syntax.StrRaw != 0:
			n.StrFlags &^= syntax.StrAmbig
		case n.StrFlags&syntax.StrAmbig != 0:
			return a.expandCaseFold(id, state)
		}

	case syntax.KindCClass:
		if n.IgnoreCase {
			cc := n.Class.Clone()
			if err := cc.FoldClosure(a.enc); err != nil {
				return a.patternError(err)
			}
			n.Class = cc
			n.IgnoreCase = false
		}

	case syntax.KindBackref:
		for _, ref := range n.Refs {
			if ref <= 0 || ref > env.NumMem {
				return a.patternError(syntax.ErrInvalidBackref)
			}
			env.BackrefedMem = env.BackrefedMem.On(ref)
			env.BtMemStart = env.BtMemStart.On(ref)
			if n.HasLevel {
				env.BtMemEnd = env.BtMemEnd.On(ref)
			}
			t.Set(env.MemNodes[ref], syntax.StateMemBackrefed)
		}

	case syntax.KindQuant:
		return a.setupQuant(id, state)

	case syntax.KindEnclose:
		switch n.Enclose {
		case syntax.EncloseOption:
			return a.setupTree(n.Children[0], state)

		case syntax.EncloseMemory:
			if state&(inAlt|inNot|inVarRepeat|inCall) != 0 || t.Has(id, syntax.StateRecursion) {
				env.BtMemStart = env.BtMemStart.On(n.Regnum)
			}
			if t.Has(id, syntax.StateCalled) {
				state |= inCall
			}
			if t.Has(id, syntax.StateRecursion) {
				state |= inRecCall
			} else if state&inRecCall != 0 {
				t.Set(id, syntax.StateRecursion)
			}
			return a.setupTree(n.Children[0], state)

		case syntax.EncloseStopBacktrack:
			body := n.Children[0]
			if err := a.setupTree(body, state); err != nil {
				return err
			}
			if q := t.N(body); q.Kind == syntax.KindQuant &&
				syntax.IsInfinite(q.Upper) && q.Lower <= 1 && q.Greedy &&
				isSimple(t.N(q.Children[0]).Kind) {
				t.Set(id, syntax.StateStopBtSimpleRepeat)
			}
		}

	case syntax.KindAnchor:
		switch n.Anchor {
		case syntax.AnchorPrecRead:
			return a.setupTree(n.Children[0], state)
		case syntax.AnchorPrecReadNot:
			return a.setupTree(n.Children[0], state|inNot)
		case syntax.AnchorLookBehind, syntax.AnchorLookBehindNot:
			if !a.lookBehindAllowed(n.Children[0], n.Anchor) {
				return a.patternError(syntax.ErrInvalidLookBehind)
			}
			divided, err := a.setupLookBehind(id)
			if err != nil {
				return err
			}
			if divided {
				goto restart
			}
			st := state | inLookBehind
			if n.Anchor == syntax.AnchorLookBehindNot {
				st |= inNot
			}
			return a.setupTree(n.Children[0], st)
		}
	}
	return nil
}

// setupQuant classifies a quantifier: empty-iteration handling, fixed
// string expansion and the head literal used by the compiler.
func (a *analyzer) setupQuant(id syntax.NodeID, state setupState) error {
	t := a.t
	n := t.N(id)
	body := n.Children[0]

	if state&inRepeat != 0 {
		t.Set(id, syntax.StateInRepeat)
	}
	if (syntax.IsInfinite(n.Upper) || n.Upper >= 1) && a.minLen(body) == 0 {
		t.Ann[id].TargetEmpty = syntax.EmptyPlain
		if info := a.quantMemoryInfo(body); info > syntax.EmptyNone {
			t.Ann[id].TargetEmpty = info
		}
	}

	state |= inRepeat
	if syntax.IsInfinite(n.Upper) || n.Lower != n.Upper {
		state |= inVarRepeat
	}
	if err := a.setupTree(body, state); err != nil {
		return err
	}

	b := t.N(body)
	if b.Kind == syntax.KindString && n.Lower == n.Upper &&
		n.Lower > 1 && n.Lower <= maxExpandedString &&
		len(b.Bytes)*n.Lower <= maxExpandedString {
		t.Nodes[id] = &syntax.Node{
			Kind:     syntax.KindString,
			Bytes:    bytes.Repeat(b.Bytes, n.Lower),
			StrFlags: b.StrFlags,
		}
		t.Ann[id].TargetEmpty = syntax.EmptyNone
		t.Unset(id, syntax.StateInRepeat)
		return nil
	}

	if n.Greedy && t.Ann[id].TargetEmpty == syntax.EmptyNone {
		if b.Kind == syntax.KindQuant {
			if h := t.Ann[body].HeadExact; h != syntax.NoNode {
				t.Ann[id].HeadExact = h
				t.Ann[body].HeadExact = syntax.NoNode
			}
		} else {
			t.Ann[id].HeadExact = a.headValueNode(body, true)
		}
	}
	return nil
}

// quantMemoryInfo reports what an empty iteration of a quantifier body
// must also compare: nothing, captures, or recursive calls.
func (a *analyzer) quantMemoryInfo(id syntax.NodeID) syntax.EmptyInfo {
	t := a.t
	n := t.N(id)
	switch n.Kind {
	case syntax.KindList, syntax.KindAlt:
		r := syntax.EmptyNone
		for _, c := range n.Children {
			r = max(r, a.quantMemoryInfo(c))
		}
		return r

	case syntax.KindCall:
		if t.Has(id, syntax.StateRecursion) {
			return syntax.EmptyRec
		}
		if n.Target != syntax.NoNode {
			return a.quantMemoryInfo(n.Target)
		}

	case syntax.KindQuant:
		if n.Upper != 0 {
			return a.quantMemoryInfo(n.Children[0])
		}

	case syntax.KindEnclose:
		if n.Enclose == syntax.EncloseMemory {
			return syntax.EmptyMem
		}
		return a.quantMemoryInfo(n.Children[0])
	}
	return syntax.EmptyNone
}

// nextSetup records the literal following a greedy repeat and makes the
// repeat possessive when its body cannot start what follows.
func (a *analyzer) nextSetup(id, next syntax.NodeID) {
	t := a.t
	for {
		n := t.N(id)
		if n.Kind == syntax.KindEnclose && n.Enclose == syntax.EncloseMemory {
			id = n.Children[0]
			continue
		}
		if n.Kind != syntax.KindQuant || !n.Greedy || !syntax.IsInfinite(n.Upper) {
			return
		}
		t.Ann[id].NextHeadExact = a.headValueNode(next, true)

		if !a.cfg.EnableAutoPossessive || n.Lower > 1 || !isSimple(t.N(n.Children[0]).Kind) {
			return
		}
		x := a.headValueNode(n.Children[0], false)
		if x == syntax.NoNode {
			return
		}
		y := a.headValueNode(next, false)
		if y == syntax.NoNode || !a.disjoint(x, y) {
			return
		}
		inner := t.Relocate(id)
		t.Nodes[id] = &syntax.Node{
			Kind:     syntax.KindEnclose,
			Enclose:  syntax.EncloseStopBacktrack,
			Children: []syntax.NodeID{inner},
		}
		t.Set(id, syntax.StateStopBtSimpleRepeat)
		a.log.Log("auto-possessive: %s", t.Dump(id))
		return
	}
}

// headValueNode returns the node that decides the first character matched
// by id. With exact set only case-sensitive strings qualify.
func (a *analyzer) headValueNode(id syntax.NodeID, exact bool) syntax.NodeID {
	t := a.t
	n := t.N(id)
	switch n.Kind {
	case syntax.KindCType, syntax.KindCClass:
		if !exact {
			return id
		}

	case syntax.KindList:
		return a.headValueNode(n.Children[0], exact)

	case syntax.KindString:
		if len(n.Bytes) == 0 || exact && isAmbig(n) {
			return syntax.NoNode
		}
		return id

	case syntax.KindQuant:
		if n.Lower > 0 {
			if h := t.Ann[id].HeadExact; h != syntax.NoNode {
				return h
			}
			return a.headValueNode(n.Children[0], exact)
		}

	case syntax.KindEnclose:
		return a.headValueNode(n.Children[0], exact)

	case syntax.KindAnchor:
		if n.Anchor == syntax.AnchorPrecRead {
			return a.headValueNode(n.Children[0], exact)
		}
	}
	return syntax.NoNode
}

// disjoint reports whether no character can start both x and y.
func (a *analyzer) disjoint(x, y syntax.NodeID) bool {
	nx, ny := a.t.N(x), a.t.N(y)
	if nx.Kind == syntax.KindString && ny.Kind == syntax.KindString {
		if isAmbig(nx) || isAmbig(ny) {
			return false
		}
		l := min(len(nx.Bytes), len(ny.Bytes))
		for i := 0; i < l; i++ {
			if nx.Bytes[i] != ny.Bytes[i] {
				return true
			}
		}
		return false
	}
	cx, ok := a.headClass(nx)
	if !ok {
		return false
	}
	cy, ok := a.headClass(ny)
	if !ok {
		return false
	}
	return cx.Intersect(a.enc, cy).IsEmpty(a.enc)
}

// headClass returns the set of characters n can start with.
func (a *analyzer) headClass(n *syntax.Node) (*syntax.CClass, bool) {
	enc := a.enc
	switch n.Kind {
	case syntax.KindCClass:
		if !n.IgnoreCase {
			return n.Class, true
		}
		cc := n.Class.Clone()
		if err := cc.FoldClosure(enc); err != nil {
			return nil, false
		}
		return cc, true

	case syntax.KindCType:
		cc := syntax.NewCClass()
		if err := cc.AddCType(enc, n.CType, n.Not); err != nil {
			return nil, false
		}
		return cc, true

	case syntax.KindString:
		if len(n.Bytes) == 0 {
			return nil, false
		}
		if n.StrFlags&syntax.StrRaw != 0 && enc.MaxLen() > 1 && n.Bytes[0] >= 0x80 {
			return nil, false
		}
		cc := syntax.NewCClass()
		if err := cc.AddRune(enc, enc.Decode(n.Bytes, 0)); err != nil {
			return nil, false
		}
		if isAmbig(n) {
			if err := cc.FoldClosure(enc); err != nil {
				return nil, false
			}
			// ligatures and sharp s can spell the first characters
			for _, it := range enc.CaseFoldItems(n.Bytes, 0, len(n.Bytes)) {
				if err := cc.AddRune(enc, it.Codes[0]); err != nil {
					return nil, false
				}
			}
		}
		return cc, true
	}
	return nil, false
}
