package vm

// NotPos is the position of a group that did not participate in a match.
const NotPos = -1

// Region holds the spans of a match. Beg[0] and End[0] delimit the whole
// match; Beg[i] and End[i] delimit group i, or are NotPos.
type Region struct {
	Beg []int
	End []int

	// History is the capture history tree of (?@...) groups, or nil.
	History *CaptureTree
}

// NewRegion returns a cleared region with room for n spans.
func NewRegion(n int) *Region {
	r := &Region{}
	r.Resize(n)
	return r
}

// NumRegs returns the number of spans.
func (r *Region) NumRegs() int { return len(r.Beg) }

// Resize sets the number of spans to n and clears them.
func (r *Region) Resize(n int) {
	if cap(r.Beg) < n {
		r.Beg = make([]int, n)
		r.End = make([]int, n)
	}
	r.Beg = r.Beg[:n]
	r.End = r.End[:n]
	r.Clear()
}

// Clear resets every span to NotPos and drops the history tree.
func (r *Region) Clear() {
	for i := range r.Beg {
		r.Beg[i] = NotPos
		r.End[i] = NotPos
	}
	r.History = nil
}

// CopyFrom makes r a copy of src.
func (r *Region) CopyFrom(src *Region) {
	r.Beg = append(r.Beg[:0], src.Beg...)
	r.End = append(r.End[:0], src.End...)
	r.History = src.History
}

// CaptureTree is a node of the capture history: every recorded capture of
// a history group, nested the way the captures nested in the subject.
type CaptureTree struct {
	Group    int
	Beg, End int
	Children []*CaptureTree
}

// Walk calls fn for t and its descendants in pre-order with their depth.
// Walk stops when fn returns false.
func (t *CaptureTree) Walk(fn func(node *CaptureTree, depth int) bool) bool {
	return t.walk(fn, 0)
}

func (t *CaptureTree) walk(fn func(*CaptureTree, int) bool, depth int) bool {
	if !fn(t, depth) {
		return false
	}
	for _, c := range t.Children {
		if !c.walk(fn, depth+1) {
			return false
		}
	}
	return true
}

// maxHistoryGroup is the largest group number recorded in the history.
const maxHistoryGroup = 31

// captureHistory builds the history tree of a match from the memory
// entries left on the stack.
func (st *State) captureHistory(beg, end int) *CaptureTree {
	root := &CaptureTree{Group: 0, Beg: beg, End: end}
	k := 0
	st.historyNode(root, &k)
	root.End = end
	return root
}

func (st *State) historyNode(node *CaptureTree, kp *int) {
	for k := *kp; k < len(st.stk); k++ {
		e := &st.stk[k]
		switch e.kind {
		case kindMemStart:
			if e.num > maxHistoryGroup || !st.prog.CaptureHistory.At(e.num) {
				continue
			}
			child := &CaptureTree{Group: e.num, Beg: e.s, End: NotPos}
			node.Children = append(node.Children, child)
			*kp = k + 1
			st.historyNode(child, kp)
			k = *kp
			if k < len(st.stk) {
				child.End = st.stk[k].s
			}
		case kindMemEnd:
			if e.num == node.Group {
				node.End = e.s
				*kp = k
				return
			}
		}
	}
	*kp = len(st.stk)
}
