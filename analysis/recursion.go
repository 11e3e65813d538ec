package analysis

import "github.com/coregx/btregex/syntax"

// disableNoNameGroupCapture turns unnamed groups into plain groups once
// named groups exist, renumbering the named ones from 1.
func (a *analyzer) disableNoNameGroupCapture() error {
	env := a.env
	remap := make([]int, env.NumMem+1)
	counter := 0
	a.t.Root = a.nonameDisableMap(a.t.Root, remap, &counter)
	if err := a.renumberByMap(a.t.Root, remap); err != nil {
		return err
	}

	mem := []syntax.NodeID{env.MemNodes[0]}
	for i := 1; i <= env.NumMem; i++ {
		if remap[i] > 0 {
			mem = append(mem, env.MemNodes[i])
		}
	}
	env.MemNodes = mem

	var hist syntax.MemStatus
	for i := 1; i <= env.NumMem && i < 32; i++ {
		if env.CaptureHistory.At(i) && remap[i] > 0 {
			hist = hist.On(remap[i])
		}
	}
	env.CaptureHistory = hist

	for name, groups := range env.Names {
		out := groups[:0]
		for _, g := range groups {
			if remap[g] > 0 {
				out = append(out, remap[g])
			}
		}
		env.Names[name] = out
	}
	a.log.Log("unnamed groups disabled: %d -> %d captures", env.NumMem, env.NumNamed)
	env.NumMem = env.NumNamed
	return nil
}

// nonameDisableMap drops unnamed memory groups below id and returns the
// node that takes id's place.
func (a *analyzer) nonameDisableMap(id syntax.NodeID, remap []int, counter *int) syntax.NodeID {
	t := a.t
	n := t.N(id)
	switch n.Kind {
	case syntax.KindList, syntax.KindAlt:
		for i, c := range n.Children {
			n.Children[i] = a.nonameDisableMap(c, remap, counter)
		}

	case syntax.KindQuant:
		old := n.Children[0]
		body := a.nonameDisableMap(old, remap, counter)
		n.Children[0] = body
		if body != old && t.N(body).Kind == syntax.KindQuant {
			a.reduceNestedQuantifier(id, body)
		}

	case syntax.KindEnclose:
		if n.Enclose == syntax.EncloseMemory && n.Regnum != 0 {
			if !t.Has(id, syntax.StateNamedGroup) {
				return a.nonameDisableMap(n.Children[0], remap, counter)
			}
			*counter++
			remap[n.Regnum] = *counter
			n.Regnum = *counter
		}
		n.Children[0] = a.nonameDisableMap(n.Children[0], remap, counter)

	case syntax.KindAnchor:
		if len(n.Children) > 0 {
			n.Children[0] = a.nonameDisableMap(n.Children[0], remap, counter)
		}
	}
	return id
}

// renumberByMap rewrites backref targets after renumbering. Numbered
// backrefs are rejected because their meaning changed.
func (a *analyzer) renumberByMap(root syntax.NodeID, remap []int) error {
	return a.walk(root, func(id syntax.NodeID, n *syntax.Node) error {
		if n.Kind != syntax.KindBackref {
			return nil
		}
		if !a.t.Has(id, syntax.StateNameRef) {
			return a.patternError(syntax.ErrNumberedBackrefNotAllowed)
		}
		refs := n.Refs[:0]
		for _, r := range n.Refs {
			if r < len(remap) && remap[r] > 0 {
				refs = append(refs, remap[r])
			}
		}
		n.Refs = refs
		return nil
	})
}

// numberedRefCheck rejects numbered backrefs when only named groups
// capture.
func (a *analyzer) numberedRefCheck(root syntax.NodeID) error {
	return a.walk(root, func(id syntax.NodeID, n *syntax.Node) error {
		if n.Kind == syntax.KindBackref && !a.t.Has(id, syntax.StateNameRef) {
			return a.patternError(syntax.ErrNumberedBackrefNotAllowed)
		}
		return nil
	})
}

type reduceType uint8

const (
	rqAsIs reduceType = iota // keep the nesting
	rqDel                    // the child replaces the parent
	rqA                      // {0,inf}
	rqAQ                     // {0,inf}?
	rqQQ                     // {0,1}?
	rqPQQ                    // (?:R+)??
	rqPQQG                   // (?:R+?)?
)

// reduceTable is indexed by [child][parent] popular quantifier numbers:
// ?, *, +, ??, *?, +?.
var reduceTable = [6][6]reduceType{
	{rqDel, rqA, rqA, rqQQ, rqAQ, rqAsIs},
	{rqDel, rqDel, rqDel, rqPQQ, rqPQQ, rqDel},
	{rqA, rqA, rqDel, rqAsIs, rqPQQ, rqDel},
	{rqDel, rqAQ, rqAQ, rqDel, rqAQ, rqAQ},
	{rqDel, rqDel, rqDel, rqDel, rqDel, rqDel},
	{rqAsIs, rqPQQG, rqDel, rqAQ, rqAQ, rqDel},
}

func popularQuantNum(n *syntax.Node) int {
	lazy := 0
	if !n.Greedy {
		lazy = 3
	}
	switch {
	case n.Lower == 0 && n.Upper == 1:
		return lazy
	case n.Lower == 0 && syntax.IsInfinite(n.Upper):
		return lazy + 1
	case n.Lower == 1 && syntax.IsInfinite(n.Upper):
		return lazy + 2
	}
	return -1
}

// reduceNestedQuantifier merges a quantifier whose body became another
// quantifier, such as (?:a*)? into a*.
func (a *analyzer) reduceNestedQuantifier(pid, cid syntax.NodeID) {
	t := a.t
	p, c := t.N(pid), t.N(cid)
	pnum, cnum := popularQuantNum(p), popularQuantNum(c)
	if pnum < 0 || cnum < 0 {
		return
	}
	set := func(q *syntax.Node, lo, hi int, greedy bool) {
		q.Lower, q.Upper, q.Greedy = lo, hi, greedy
	}
	switch reduceTable[cnum][pnum] {
	case rqDel:
		t.Replace(pid, cid)
	case rqA:
		p.Children[0] = c.Children[0]
		set(p, 0, syntax.Infinite, true)
	case rqAQ:
		p.Children[0] = c.Children[0]
		set(p, 0, syntax.Infinite, false)
	case rqQQ:
		p.Children[0] = c.Children[0]
		set(p, 0, 1, false)
	case rqPQQ:
		set(p, 0, 1, false)
		set(c, 1, syntax.Infinite, true)
	case rqPQQG:
		set(p, 0, 1, true)
		set(c, 1, syntax.Infinite, false)
	case rqAsIs:
	}
}

// setupSubexpCall binds every call node to its target group.
func (a *analyzer) setupSubexpCall(root syntax.NodeID) error {
	env := a.env
	return a.walk(root, func(id syntax.NodeID, n *syntax.Node) error {
		if n.Kind != syntax.KindCall {
			return nil
		}
		gnum := n.GroupNum
		if a.t.Has(id, syntax.StateByNumber) {
			if gnum != 0 {
				if env.NumNamed > 0 && env.Syntax.CaptureOnlyNamedGroup && !env.Options.Has(syntax.OptionCaptureGroup) {
					return a.patternError(syntax.ErrNumberedBackrefNotAllowed)
				}
				if gnum > env.NumMem {
					return syntax.NewError(syntax.ErrUndefinedGroupReference, env.Pattern)
				}
			}
		} else {
			refs := env.NameToGroups(n.Name)
			switch {
			case len(refs) == 0:
				return syntax.NewError(syntax.ErrUndefinedNameReference, n.Name)
			case len(refs) > 1:
				return syntax.NewError(syntax.ErrMultiplexDefinedName, n.Name)
			}
			gnum = refs[0]
			n.GroupNum = gnum
		}
		if gnum >= len(env.MemNodes) || env.MemNodes[gnum] == syntax.NoNode {
			return syntax.NewError(syntax.ErrUndefinedNameReference, env.Pattern)
		}
		n.Target = env.MemNodes[gnum]
		a.t.Set(n.Target, syntax.StateCalled)
		env.BtMemStart = env.BtMemStart.On(gnum)
		return nil
	})
}

// subexpRecursiveCheck reports whether id reaches the group held in mark1.
// Calls on such a path are marked recursive.
func (a *analyzer) subexpRecursiveCheck(id syntax.NodeID) bool {
	t := a.t
	n := t.N(id)
	switch n.Kind {
	case syntax.KindList, syntax.KindAlt:
		r := false
		for _, c := range n.Children {
			if a.subexpRecursiveCheck(c) {
				r = true
			}
		}
		return r

	case syntax.KindQuant:
		return a.subexpRecursiveCheck(n.Children[0])

	case syntax.KindAnchor:
		if len(n.Children) > 0 {
			return a.subexpRecursiveCheck(n.Children[0])
		}

	case syntax.KindCall:
		if n.Target == syntax.NoNode {
			return false
		}
		r := a.subexpRecursiveCheck(n.Target)
		if r {
			t.Set(id, syntax.StateRecursion)
		}
		return r

	case syntax.KindEnclose:
		key := uint32(id) //nolint:gosec // G115: node ids are non-negative
		switch {
		case a.mark2.Contains(key):
			return false
		case a.mark1.Contains(key):
			return true
		}
		a.mark2.Insert(key)
		r := a.subexpRecursiveCheck(n.Children[0])
		a.mark2.Remove(key)
		return r
	}
	return false
}

// subexpRecursiveCheckTrav marks called groups that can reach themselves.
// It reports whether a called group was found below id.
func (a *analyzer) subexpRecursiveCheckTrav(id syntax.NodeID) bool {
	t := a.t
	n := t.N(id)
	switch n.Kind {
	case syntax.KindList, syntax.KindAlt:
		found := false
		for _, c := range n.Children {
			if a.subexpRecursiveCheckTrav(c) {
				found = true
			}
		}
		return found

	case syntax.KindQuant:
		found := a.subexpRecursiveCheckTrav(n.Children[0])
		if n.Upper == 0 && found {
			t.Set(id, syntax.StateReferred)
		}
		return found

	case syntax.KindAnchor:
		if len(n.Children) > 0 {
			return a.subexpRecursiveCheckTrav(n.Children[0])
		}

	case syntax.KindEnclose:
		if !t.Has(id, syntax.StateRecursion) && t.Has(id, syntax.StateCalled) {
			key := uint32(id) //nolint:gosec // G115: node ids are non-negative
			a.mark1.Insert(key)
			if a.subexpRecursiveCheck(n.Children[0]) {
				t.Set(id, syntax.StateRecursion)
			}
			a.mark1.Remove(key)
		}
		found := a.subexpRecursiveCheckTrav(n.Children[0])
		return found || t.Has(id, syntax.StateCalled)
	}
	return false
}

const (
	recursionExist    = 1
	recursionInfinite = 2
)

// subexpInfRecursiveCheck classifies the paths from id back to the group
// in mark1. head is true while nothing has been consumed yet.
func (a *analyzer) subexpInfRecursiveCheck(id syntax.NodeID, head bool) int {
	t := a.t
	n := t.N(id)
	r := 0
	switch n.Kind {
	case syntax.KindList:
		for _, c := range n.Children {
			ret := a.subexpInfRecursiveCheck(c, head)
			if ret == recursionInfinite {
				return ret
			}
			r |= ret
			if head && a.minLen(c) != 0 {
				head = false
			}
		}

	case syntax.KindAlt:
		r = recursionExist
		for _, c := range n.Children {
			ret := a.subexpInfRecursiveCheck(c, head)
			if ret == recursionInfinite {
				return ret
			}
			r &= ret
		}

	case syntax.KindQuant:
		r = a.subexpInfRecursiveCheck(n.Children[0], head)
		if r == recursionExist && n.Lower == 0 {
			r = 0
		}

	case syntax.KindAnchor:
		if len(n.Children) > 0 {
			r = a.subexpInfRecursiveCheck(n.Children[0], head)
		}

	case syntax.KindCall:
		if n.Target != syntax.NoNode {
			r = a.subexpInfRecursiveCheck(n.Target, head)
		}

	case syntax.KindEnclose:
		key := uint32(id) //nolint:gosec // G115: node ids are non-negative
		switch {
		case a.mark2.Contains(key):
			return 0
		case a.mark1.Contains(key):
			if head {
				return recursionInfinite
			}
			return recursionExist
		}
		a.mark2.Insert(key)
		r = a.subexpInfRecursiveCheck(n.Children[0], head)
		a.mark2.Remove(key)
	}
	return r
}

// subexpInfRecursiveCheckTrav rejects recursive groups that can recurse
// without consuming input or that have no terminating path.
func (a *analyzer) subexpInfRecursiveCheckTrav(id syntax.NodeID) error {
	t := a.t
	n := t.N(id)
	switch n.Kind {
	case syntax.KindList, syntax.KindAlt:
		for _, c := range n.Children {
			if err := a.subexpInfRecursiveCheckTrav(c); err != nil {
				return err
			}
		}

	case syntax.KindQuant:
		return a.subexpInfRecursiveCheckTrav(n.Children[0])

	case syntax.KindAnchor:
		if len(n.Children) > 0 {
			return a.subexpInfRecursiveCheckTrav(n.Children[0])
		}

	case syntax.KindEnclose:
		if t.Has(id, syntax.StateRecursion) {
			key := uint32(id) //nolint:gosec // G115: node ids are non-negative
			a.mark1.Insert(key)
			r := a.subexpInfRecursiveCheck(n.Children[0], true)
			a.mark1.Remove(key)
			if r > 0 {
				return a.patternError(syntax.ErrNeverEndingRecursion)
			}
		}
		return a.subexpInfRecursiveCheckTrav(n.Children[0])
	}
	return nil
}

// walk calls fn for every node below root in pre-order. Call targets are
// not followed.
func (a *analyzer) walk(root syntax.NodeID, fn func(syntax.NodeID, *syntax.Node) error) error {
	n := a.t.N(root)
	if err := fn(root, n); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := a.walk(c, fn); err != nil {
			return err
		}
	}
	return nil
}
