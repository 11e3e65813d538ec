package analysis

import "github.com/coregx/btregex/syntax"

const (
	lookBehindAnchors = syntax.AnchorLookBehind | syntax.AnchorBeginLine | syntax.AnchorEndLine |
		syntax.AnchorBeginBuf | syntax.AnchorBeginPosition | syntax.AnchorWordBound |
		syntax.AnchorNotWordBound | syntax.AnchorWordBegin | syntax.AnchorWordEnd
	lookBehindNotAnchors = lookBehindAnchors | syntax.AnchorLookBehindNot
)

// lookBehindAllowed reports whether every node below id may appear in a
// look-behind of the given kind.
func (a *analyzer) lookBehindAllowed(id syntax.NodeID, kind syntax.AnchorType) bool {
	n := a.t.N(id)
	switch n.Kind {
	case syntax.KindList, syntax.KindAlt, syntax.KindQuant:
		for _, c := range n.Children {
			if !a.lookBehindAllowed(c, kind) {
				return false
			}
		}
		return true

	case syntax.KindString, syntax.KindCClass, syntax.KindCType, syntax.KindAny, syntax.KindCall:
		return true

	case syntax.KindEnclose:
		switch n.Enclose {
		case syntax.EncloseOption:
		case syntax.EncloseMemory:
			if kind == syntax.AnchorLookBehindNot {
				return false
			}
		default:
			return false
		}
		return a.lookBehindAllowed(n.Children[0], kind)

	case syntax.KindAnchor:
		allowed := lookBehindAnchors
		if kind == syntax.AnchorLookBehindNot {
			allowed = lookBehindNotAnchors
		}
		if n.Anchor&allowed == 0 {
			return false
		}
		if len(n.Children) > 0 {
			return a.lookBehindAllowed(n.Children[0], kind)
		}
		return true
	}
	return false
}

// setupLookBehind records the fixed character length of a look-behind
// body. A body whose top-level alternatives differ in length is divided
// into one look-behind per alternative, and divided is true.
func (a *analyzer) setupLookBehind(id syntax.NodeID) (divided bool, err error) {
	t := a.t
	n := t.N(id)
	l, st := a.charLen(n.Children[0], 0)
	switch {
	case st == charLenFixed:
		t.Ann[id].CharLen = l
		return false, nil
	case st == charLenTopAltVariable && a.env.Syntax.DifferentLenAltLookBehind:
		a.divideLookBehind(id)
		return true, nil
	}
	return false, a.patternError(syntax.ErrInvalidLookBehind)
}

// divideLookBehind rewrites (?<=a|bc) as (?<=a)|(?<=bc) and (?<!a|bc) as
// (?<!a)(?<!bc).
func (a *analyzer) divideLookBehind(id syntax.NodeID) {
	t := a.t
	n := t.N(id)
	kind := n.Anchor
	alts := t.N(n.Children[0]).Children
	items := make([]syntax.NodeID, len(alts))
	for i, c := range alts {
		items[i] = t.NewAnchor(kind, c)
	}
	out := syntax.KindAlt
	if kind == syntax.AnchorLookBehindNot {
		out = syntax.KindList
	}
	t.Nodes[id] = &syntax.Node{Kind: out, Children: items}
	a.log.Log("look-behind divided into %d alternatives", len(items))
}
