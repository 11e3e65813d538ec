package analysis

import (
	"github.com/coregx/btregex/literal"
	"github.com/coregx/btregex/syntax"
)

// setMultiLiteral switches o to a multi-literal search when the pattern
// starts with an alternation of enough plain literals.
func (a *analyzer) setMultiLiteral(o *Optimization) {
	if a.cfg.MinMultiLiterals <= 0 {
		return
	}
	seq := a.leadingLiterals(a.t.Root)
	seq.Minimize()
	if seq.Len() < a.cfg.MinMultiLiterals {
		return
	}
	o.Kind = OptMultiLiteral
	o.Literals = seq.Bytes()
	o.DMin, o.DMax = 0, 0
	o.ThresholdLen = seq.Shortest()
	a.log.Log("multi-literal search over %s", seq)
}

// leadingLiterals returns the literal alternatives the match must start
// with, or nil.
func (a *analyzer) leadingLiterals(id syntax.NodeID) *literal.Seq {
	t := a.t
	for {
		n := t.N(id)
		switch {
		case n.Kind == syntax.KindEnclose && n.Enclose != syntax.EncloseStopBacktrack:
			id = n.Children[0]
			continue
		case n.Kind == syntax.KindList:
			id = n.Children[0]
			continue
		case n.Kind != syntax.KindAlt:
			return nil
		}
		lits := make([]literal.Literal, 0, len(n.Children))
		for _, c := range n.Children {
			s := t.N(c)
			if s.Kind != syntax.KindString || len(s.Bytes) == 0 || isAmbig(s) {
				return nil
			}
			lits = append(lits, literal.NewLiteral(s.Bytes))
		}
		return literal.NewSeq(lits...)
	}
}
