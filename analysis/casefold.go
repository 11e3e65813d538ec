package analysis

import "github.com/coregx/btregex/syntax"

// foldBuilder assembles the expansion of a case-insensitive string as a
// sequence of plain strings and alternations.
type foldBuilder struct {
	t    *syntax.Tree
	top  syntax.NodeID
	list syntax.NodeID
	str  syntax.NodeID
}

func (b *foldBuilder) add(id syntax.NodeID) {
	t := b.t
	switch {
	case b.top == syntax.NoNode:
		b.top = id
	case b.list == syntax.NoNode:
		b.list = t.NewList(b.top, id)
		b.top = b.list
	default:
		l := t.N(b.list)
		l.Children = append(l.Children, id)
	}
}

func (b *foldBuilder) appendBytes(p []byte) {
	if b.str == syntax.NoNode {
		b.str = b.t.NewString(nil, 0)
		b.add(b.str)
	}
	s := b.t.N(b.str)
	s.Bytes = append(s.Bytes, p...)
}

// addAlt appends an alternation. When inner is set, the rest of the
// expansion continues inside it.
func (b *foldBuilder) addAlt(alt, inner syntax.NodeID) {
	b.add(alt)
	b.str = syntax.NoNode
	if inner != syntax.NoNode {
		b.list = inner
	}
}

// expandCaseFold replaces a case-insensitive string by plain strings and
// alternations of their case variants. Once the number of alternatives
// would exceed the configured threshold the rest stays a
// case-insensitive string matched by folding at run time.
func (a *analyzer) expandCaseFold(id syntax.NodeID, state setupState) error {
	t := a.t
	s := t.N(id).Bytes
	if len(s) == 0 {
		t.N(id).StrFlags &^= syntax.StrAmbig
		return nil
	}

	b := &foldBuilder{t: t, top: syntax.NoNode, list: syntax.NoNode, str: syntax.NoNode}
	if state&inLookBehind != 0 {
		return a.expandCaseFoldFixed(id, b)
	}
	altNum := 1
	p := 0
	for p < len(s) {
		clen := a.enc.CharLen(s, p)
		items := a.enc.CaseFoldItems(s, p, len(s))
		if len(items) == 0 {
			b.appendBytes(s[p : p+clen])
			p += clen
			continue
		}
		altNum *= len(items) + 1
		if altNum > a.cfg.CaseFoldAltThreshold {
			break
		}
		b.addAlt(a.foldAlternatives(s, p, clen, items))
		p += clen
	}
	if p < len(s) {
		b.add(t.NewString(append([]byte(nil), s[p:]...), syntax.StrAmbig))
	}
	t.Replace(id, b.top)
	return nil
}

// expandCaseFoldFixed replaces a case-insensitive string inside a
// look-behind by plain strings and one-character classes, so the body keeps
// the character length it was measured with. Multi-char folds are left out.
func (a *analyzer) expandCaseFoldFixed(id syntax.NodeID, b *foldBuilder) error {
	t := a.t
	s := t.N(id).Bytes
	for p := 0; p < len(s); {
		clen := a.enc.CharLen(s, p)
		items := fixedFoldItems(a.enc.CaseFoldItems(s, p, len(s)), clen)
		if len(items) == 0 {
			b.appendBytes(s[p : p+clen])
			p += clen
			continue
		}
		cc := syntax.NewCClass()
		if err := cc.AddRune(a.enc, a.enc.Decode(s, p)); err != nil {
			return a.patternError(err)
		}
		for _, it := range items {
			if err := cc.AddRune(a.enc, it.Codes[0]); err != nil {
				return a.patternError(err)
			}
		}
		b.add(t.Add(&syntax.Node{Kind: syntax.KindCClass, Class: cc}))
		b.str = syntax.NoNode
		p += clen
	}
	t.Replace(id, b.top)
	return nil
}

// fixedFoldItems keeps the items that match exactly one character of the
// same byte length.
func fixedFoldItems(items []syntax.CaseFoldItem, clen int) []syntax.CaseFoldItem {
	out := items[:0:0]
	for _, it := range items {
		if it.ByteLen == clen && len(it.Codes) == 1 {
			out = append(out, it)
		}
	}
	return out
}

// foldAlternatives builds the alternation for the character s[p:p+clen].
// Items consuming a different number of pattern bytes carry the rest of
// the string with them; the returned inner list then receives the
// remaining expansion of the same-length branch.
func (a *analyzer) foldAlternatives(s []byte, p, clen int, items []syntax.CaseFoldItem) (alt, inner syntax.NodeID) {
	t := a.t
	same := []syntax.NodeID{t.NewString(append([]byte(nil), s[p:p+clen]...), 0)}
	var varlen []syntax.NodeID
	for _, it := range items {
		var buf []byte
		for _, c := range it.Codes {
			buf = a.enc.AppendRune(buf, c)
		}
		sn := t.NewString(buf, 0)
		if it.ByteLen == clen {
			same = append(same, sn)
			continue
		}
		if q := p + it.ByteLen; q < len(s) {
			rem := t.NewString(append([]byte(nil), s[q:]...), syntax.StrAmbig)
			sn = t.NewList(sn, rem)
		}
		varlen = append(varlen, sn)
	}
	sameAlt := t.NewAlt(same...)
	if len(varlen) == 0 {
		return sameAlt, syntax.NoNode
	}
	inner = t.NewList(sameAlt)
	return t.NewAlt(append([]syntax.NodeID{inner}, varlen...)...), inner
}
