package analysis

import (
	"math"

	"github.com/coregx/btregex/syntax"
)

// Explosion-check context bits.
const (
	cecInInfiniteRepeat = 1 << iota
	cecInFiniteRepeat
	cecContBigRepeat
)

// setupCombExpCheck numbers the repeats nested inside other repeats so the
// interpreter can remember failed (check id, position) pairs. It returns
// the context bits that apply to the nodes following id.
func (a *analyzer) setupCombExpCheck(id syntax.NodeID, state int) int {
	t := a.t
	env := a.env
	n := t.N(id)
	r := state
	switch n.Kind {
	case syntax.KindList:
		for _, c := range n.Children {
			r = a.setupCombExpCheck(c, r)
		}

	case syntax.KindAlt:
		for _, c := range n.Children {
			r |= a.setupCombExpCheck(c, state)
		}

	case syntax.KindQuant:
		child := state
		add := 0
		body := n.Children[0]
		if !syntax.IsInfinite(n.Upper) && n.Upper > 1 {
			child |= cecInFiniteRepeat
			// (a*){n,m} behaves as (a*){n,n}.
			if env.BackrefedMem == 0 {
				if e := t.N(body); e.Kind == syntax.KindEnclose && e.Enclose == syntax.EncloseMemory {
					if q := t.N(e.Children[0]); q.Kind == syntax.KindQuant &&
						syntax.IsInfinite(q.Upper) && q.Greedy == n.Greedy {
						n.Upper = max(n.Lower, 1)
						if n.Upper == 1 {
							child = state
						}
					}
				}
			}
		}

		if state&cecInFiniteRepeat != 0 {
			t.Ann[id].CheckNum = -1
		} else {
			var varNum int
			if syntax.IsInfinite(n.Upper) {
				varNum = math.MaxInt32
				child |= cecInInfiniteRepeat
			} else {
				varNum = n.Upper - n.Lower
			}
			big := a.cfg.BigRepeatThreshold
			if varNum >= big {
				add |= cecContBigRepeat
			}
			if (state&cecInInfiniteRepeat != 0 && varNum != 0) ||
				(state&cecContBigRepeat != 0 && varNum >= big) {
				if t.Ann[id].CheckNum == 0 {
					env.NumCombExpCheck++
					t.Ann[id].CheckNum = env.NumCombExpCheck
					env.CombExpMaxRegNum = max(env.CombExpMaxRegNum, env.CurrMaxRegNum)
				}
			}
		}
		r = a.setupCombExpCheck(body, child) | add

	case syntax.KindEnclose:
		if n.Enclose == syntax.EncloseMemory {
			env.CurrMaxRegNum = max(env.CurrMaxRegNum, n.Regnum)
		}
		r = a.setupCombExpCheck(n.Children[0], state)

	case syntax.KindCall:
		if t.Has(id, syntax.StateRecursion) {
			env.HasRecursion = true
		} else if n.Target != syntax.NoNode {
			r = a.setupCombExpCheck(n.Target, state)
		}
	}
	return r
}
