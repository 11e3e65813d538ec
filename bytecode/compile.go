package bytecode

import (
	"bytes"
	"math"

	"go.dw1.io/safemath"

	"github.com/coregx/btregex/analysis"
	"github.com/coregx/btregex/syntax"
)

const (
	// quantExpandLimit bounds, in slots, the code a bounded quantifier
	// may occupy when its iterations are emitted inline.
	quantExpandLimit = 50

	// maxInlineRanges is the number of multi-byte ranges above which a
	// class is kept whole and tested through CCLASS_NODE.
	maxInlineRanges = 64

	// RepeatInfinite is the upper bound stored for an unbounded repeat.
	RepeatInfinite = math.MaxInt32
)

type callFixup struct {
	pc     int
	target syntax.NodeID
}

// compiler lowers one analyzed tree. Jumps are emitted with a zero
// displacement and patched once their target is known.
type compiler struct {
	t   *syntax.Tree
	enc syntax.Encoding
	p   *Program
	cec bool

	tmplIdx   map[string]int32
	bitsetIdx map[syntax.BitSet]int32
	fixups    []callFixup
	entries   map[syntax.NodeID]int
	lens      map[syntax.NodeID]int
}

// Compile lowers the tree of an analysis result to a validated program.
func Compile(res *analysis.Result) (*Program, error) {
	t := res.Tree
	env := t.Env
	p := &Program{
		NumMem:          env.NumMem,
		NumCall:         env.NumCall,
		NumCombExpCheck: res.NumCombExpCheck,
		BtMemStart:      res.BtMemStart,
		BtMemEnd:        res.BtMemEnd,
		CaptureHistory:  res.CaptureHistory,
		Options:         env.Options,
		Enc:             env.Enc,
		Names:           env.Names,
		NameOrder:       env.NameOrder,
		Opt:             res.Opt,
		MinLen:          res.MinLen,
		MaxLen:          res.MaxLen,
		Pattern:         env.Pattern,
	}
	c := &compiler{
		t:         t,
		enc:       env.Enc,
		p:         p,
		cec:       res.NumCombExpCheck > 0,
		tmplIdx:   make(map[string]int32),
		bitsetIdx: make(map[syntax.BitSet]int32),
		entries:   make(map[syntax.NodeID]int),
		lens:      make(map[syntax.NodeID]int),
	}
	if err := c.compile(t.Root); err != nil {
		return nil, err
	}
	c.emit(OpEnd)

	for _, f := range c.fixups {
		addr, ok := c.entries[f.target]
		if !ok {
			return nil, internalf(f.pc, "call target node %d has no entry", f.target)
		}
		at, err := safemath.ConvertAny[int32](addr)
		if err != nil {
			return nil, internalf(f.pc, "call target %d: %v", addr, err)
		}
		p.Code[f.pc+1] = at
	}
	p.PopLevel = analysis.SelectPopLevel(p.NumRepeat, p.BtMemStart, p.BtMemEnd)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *compiler) here() int {
	return len(c.p.Code)
}

// emit appends an instruction and returns its address.
func (c *compiler) emit(op Opcode, args ...int32) int {
	pc := len(c.p.Code)
	c.p.Code = append(c.p.Code, int32(op))
	c.p.Code = append(c.p.Code, args...)
	return pc
}

// setRel points operand i of the instruction at pc to target.
func (c *compiler) setRel(pc, i, target int) {
	next := pc + Width(c.p.Code, pc)
	c.p.Code[pc+1+i] = int32(target - next) //nolint:gosec // G115: code size fits int32
}

// snapshot records the compiler tables so a trial emission can be undone.
type snapshot struct {
	code, tmpl, bitsets, ranges, classes int
	repeats, nullChecks, fixups          int
}

func (c *compiler) save() snapshot {
	return snapshot{
		code:       len(c.p.Code),
		tmpl:       len(c.p.Templates),
		bitsets:    len(c.p.BitSets),
		ranges:     len(c.p.Ranges),
		classes:    len(c.p.Classes),
		repeats:    c.p.NumRepeat,
		nullChecks: c.p.NumNullCheck,
		fixups:     len(c.fixups),
	}
}

func (c *compiler) restore(s snapshot) {
	for k, v := range c.tmplIdx {
		if int(v) >= s.tmpl {
			delete(c.tmplIdx, k)
		}
	}
	for k, v := range c.bitsetIdx {
		if int(v) >= s.bitsets {
			delete(c.bitsetIdx, k)
		}
	}
	for k, v := range c.entries {
		if v >= s.code {
			delete(c.entries, k)
		}
	}
	c.p.Code = c.p.Code[:s.code]
	c.p.Templates = c.p.Templates[:s.tmpl]
	c.p.BitSets = c.p.BitSets[:s.bitsets]
	c.p.Ranges = c.p.Ranges[:s.ranges]
	c.p.Classes = c.p.Classes[:s.classes]
	c.p.NumRepeat = s.repeats
	c.p.RepeatRanges = c.p.RepeatRanges[:s.repeats]
	c.p.NumNullCheck = s.nullChecks
	c.fixups = c.fixups[:s.fixups]
}

// length returns the number of slots id compiles to.
func (c *compiler) length(id syntax.NodeID) (int, error) {
	if n, ok := c.lens[id]; ok {
		return n, nil
	}
	s := c.save()
	if err := c.compile(id); err != nil {
		return 0, err
	}
	n := c.here() - s.code
	c.restore(s)
	c.lens[id] = n
	return n, nil
}

// template returns the template and offset holding s, adding s when no
// existing template contains it.
func (c *compiler) template(s []byte) (tmpl, off int32) {
	if i, ok := c.tmplIdx[string(s)]; ok {
		return i, 0
	}
	for i, t := range c.p.Templates {
		if j := bytes.Index(t, s); j >= 0 {
			return int32(i), int32(j) //nolint:gosec // G115: table sizes fit int32
		}
	}
	i := int32(len(c.p.Templates)) //nolint:gosec // G115: table sizes fit int32
	c.p.Templates = append(c.p.Templates, append([]byte(nil), s...))
	c.tmplIdx[string(s)] = i
	return i, 0
}

func (c *compiler) bitset(b syntax.BitSet) int32 {
	if i, ok := c.bitsetIdx[b]; ok {
		return i
	}
	i := int32(len(c.p.BitSets)) //nolint:gosec // G115: table sizes fit int32
	c.p.BitSets = append(c.p.BitSets, b)
	c.bitsetIdx[b] = i
	return i
}

func (c *compiler) ranges(r *syntax.CodeRangeSet) int32 {
	c.p.Ranges = append(c.p.Ranges, r)
	return int32(len(c.p.Ranges) - 1) //nolint:gosec // G115: table sizes fit int32
}

func (c *compiler) compile(id syntax.NodeID) error {
	t := c.t
	n := t.N(id)
	switch n.Kind {
	case syntax.KindList:
		for _, ch := range n.Children {
			if err := c.compile(ch); err != nil {
				return err
			}
		}

	case syntax.KindAlt:
		return c.compileAlt(n)

	case syntax.KindString:
		c.compileString(n)

	case syntax.KindCClass:
		c.compileClass(n.Class)

	case syntax.KindCType:
		if n.CType == syntax.CTypeWord {
			if n.Not {
				c.emit(OpNotWord)
			} else {
				c.emit(OpWord)
			}
			return nil
		}
		cc := syntax.NewCClass()
		if err := cc.AddCType(c.enc, n.CType, n.Not); err != nil {
			return syntax.NewError(err, t.Env.Pattern)
		}
		c.compileClass(cc)

	case syntax.KindAny:
		if n.Multiline {
			c.emit(OpAnyCharML)
		} else {
			c.emit(OpAnyChar)
		}

	case syntax.KindBackref:
		c.compileBackref(n)

	case syntax.KindCall:
		pc := c.emit(OpCall, 0)
		c.fixups = append(c.fixups, callFixup{pc: pc, target: n.Target})

	case syntax.KindQuant:
		if c.cec {
			return c.compileQuantCheck(id, n)
		}
		return c.compileQuant(id, n)

	case syntax.KindEnclose:
		return c.compileEnclose(id, n)

	case syntax.KindAnchor:
		return c.compileAnchor(id, n)

	default:
		return internalf(-1, "cannot compile node kind %s", n.Kind)
	}
	return nil
}

func (c *compiler) compileTimes(id syntax.NodeID, n int) error {
	for i := 0; i < n; i++ {
		if err := c.compile(id); err != nil {
			return err
		}
	}
	return nil
}

// compileAlt emits PUSH next; body; JUMP end for every alternative but the
// last.
func (c *compiler) compileAlt(n *syntax.Node) error {
	var jumps []int
	last := len(n.Children) - 1
	for i, ch := range n.Children {
		push := -1
		if i < last {
			push = c.emit(OpPush, 0)
		}
		if err := c.compile(ch); err != nil {
			return err
		}
		if i < last {
			jumps = append(jumps, c.emit(OpJump, 0))
			c.setRel(push, 0, c.here())
		}
	}
	for _, j := range jumps {
		c.setRel(j, 0, c.here())
	}
	return nil
}

func (c *compiler) compileString(n *syntax.Node) {
	s := n.Bytes
	if len(s) == 0 {
		return
	}
	if n.StrFlags&syntax.StrAmbig != 0 {
		f := syntax.FoldString(c.enc, s)
		tmpl, off := c.template(f)
		op := OpExactNIC
		if c.enc.CharLen(s, 0) == len(s) {
			op = OpExact1IC
		}
		c.emit(op, tmpl, off, int32(len(f))) //nolint:gosec // G115: literal size fits int32
		return
	}
	switch {
	case len(s) == 1:
		c.emit(OpExact1, int32(s[0]))
	case len(s) <= 5:
		tmpl, off := c.template(s)
		c.emit(OpExact1+Opcode(len(s)-1), tmpl, off)
	default:
		tmpl, off := c.template(s)
		c.emit(OpExactN, tmpl, off, int32(len(s))) //nolint:gosec // G115: literal size fits int32
	}
}

func (c *compiler) compileClass(cc *syntax.CClass) {
	switch {
	case cc.MB.IsEmpty():
		op := OpCClass
		if cc.Not {
			op = OpCClassNot
		}
		c.emit(op, c.bitset(cc.Bits))

	case cc.MB.Len() > maxInlineRanges:
		c.p.Classes = append(c.p.Classes, cc)
		c.emit(OpCClassNode, int32(len(c.p.Classes)-1)) //nolint:gosec // G115: table sizes fit int32

	case cc.Bits.IsEmpty():
		op := OpCClassMB
		if cc.Not {
			op = OpCClassMBNot
		}
		c.emit(op, c.ranges(cc.MB))

	default:
		op := OpCClassMix
		if cc.Not {
			op = OpCClassMixNot
		}
		c.emit(op, c.bitset(cc.Bits), c.ranges(cc.MB))
	}
}

// compileBackref emits the group numbers of multiplexed references in
// reverse order so the most recent definition is tried first.
func (c *compiler) compileBackref(n *syntax.Node) {
	refs := n.Refs
	var op Opcode
	switch {
	case n.HasLevel:
		ic := int32(0)
		if n.IgnoreCase {
			ic = 1
		}
		c.emit(OpBackrefWithLevel, ic, int32(n.NestLevel)) //nolint:gosec // G115: nest level is small
		c.emitMems(refs)
		return
	case len(refs) == 1 && n.IgnoreCase:
		c.emit(OpBackrefNIC, int32(refs[0])) //nolint:gosec // G115: group numbers fit int32
		return
	case len(refs) == 1:
		switch refs[0] {
		case 1:
			c.emit(OpBackref1)
		case 2:
			c.emit(OpBackref2)
		default:
			c.emit(OpBackrefN, int32(refs[0])) //nolint:gosec // G115: group numbers fit int32
		}
		return
	case n.IgnoreCase:
		op = OpBackrefMultiIC
	default:
		op = OpBackrefMulti
	}
	c.emit(op)
	c.emitMems(refs)
}

func (c *compiler) emitMems(refs []int) {
	c.p.Code = append(c.p.Code, int32(len(refs))) //nolint:gosec // G115: group counts fit int32
	for i := len(refs) - 1; i >= 0; i-- {
		c.p.Code = append(c.p.Code, int32(refs[i])) //nolint:gosec // G115: group numbers fit int32
	}
}

// compileEmptyCheck wraps the body of a quantifier that may match the
// empty string in a null check.
func (c *compiler) compileEmptyCheck(id syntax.NodeID, info syntax.EmptyInfo) error {
	if info == syntax.EmptyNone {
		return c.compile(id)
	}
	nid := int32(c.p.NumNullCheck) //nolint:gosec // G115: id counts fit int32
	c.p.NumNullCheck++
	c.emit(OpNullCheckStart, nid)
	if err := c.compile(id); err != nil {
		return err
	}
	op := OpNullCheckEnd
	switch info {
	case syntax.EmptyMem:
		op = OpNullCheckEndMemst
	case syntax.EmptyRec:
		op = OpNullCheckEndMemstPush
	}
	c.emit(op, nid)
	return nil
}

func (c *compiler) isAnyCharStar(n *syntax.Node) bool {
	return n.Greedy && syntax.IsInfinite(n.Upper) && c.t.N(n.Children[0]).Kind == syntax.KindAny
}

// headByte returns the first byte of the string node id, or -1.
func (c *compiler) headByte(id syntax.NodeID) int32 {
	if id == syntax.NoNode {
		return -1
	}
	return int32(c.t.N(id).Bytes[0])
}

func (c *compiler) compileQuant(id syntax.NodeID, n *syntax.Node) error {
	t := c.t
	ann := t.Ann[id]
	body := n.Children[0]
	infinite := syntax.IsInfinite(n.Upper)

	if c.isAnyCharStar(n) {
		if err := c.compileTimes(body, n.Lower); err != nil {
			return err
		}
		ml := t.N(body).Multiline
		if b := c.headByte(ann.NextHeadExact); b >= 0 {
			op := OpAnyCharStarPeekNext
			if ml {
				op = OpAnyCharMLStarPeekNext
			}
			c.emit(op, b)
			return nil
		}
		if ml {
			c.emit(OpAnyCharMLStar)
		} else {
			c.emit(OpAnyCharStar)
		}
		return nil
	}

	tlen, err := c.length(body)
	if err != nil {
		return err
	}

	switch {
	case infinite && (n.Lower <= 1 || tlen*n.Lower <= quantExpandLimit):
		enter := -1
		if n.Lower == 1 && tlen > quantExpandLimit {
			enter = c.emit(OpJump, 0)
		} else if err := c.compileTimes(body, n.Lower); err != nil {
			return err
		}
		if n.Greedy {
			var head int
			if b := c.headByte(ann.HeadExact); b >= 0 {
				head = c.emit(OpPushOrJumpExact1, 0, b)
			} else if b := c.headByte(ann.NextHeadExact); b >= 0 {
				head = c.emit(OpPushIfPeekNext, 0, b)
			} else {
				head = c.emit(OpPush, 0)
			}
			if enter >= 0 {
				c.setRel(enter, 0, c.here())
			}
			if err := c.compileEmptyCheck(body, ann.TargetEmpty); err != nil {
				return err
			}
			back := c.emit(OpJump, 0)
			c.setRel(back, 0, head)
			c.setRel(head, 0, c.here())
			return nil
		}
		skip := c.emit(OpJump, 0)
		start := c.here()
		if enter >= 0 {
			c.setRel(enter, 0, start)
		}
		if err := c.compileEmptyCheck(body, ann.TargetEmpty); err != nil {
			return err
		}
		c.setRel(skip, 0, c.here())
		back := c.emit(OpPush, 0)
		c.setRel(back, 0, start)

	case n.Upper == 0:
		return c.compileReferred(id, body)

	case !infinite && n.Greedy && (n.Upper == 1 || (tlen+2)*n.Upper <= quantExpandLimit):
		if err := c.compileTimes(body, n.Lower); err != nil {
			return err
		}
		pushes := make([]int, 0, n.Upper-n.Lower)
		for i := n.Lower; i < n.Upper; i++ {
			pushes = append(pushes, c.emit(OpPush, 0))
			if err := c.compile(body); err != nil {
				return err
			}
		}
		for _, pc := range pushes {
			c.setRel(pc, 0, c.here())
		}

	case !n.Greedy && n.Upper == 1 && n.Lower == 0:
		push := c.emit(OpPush, 0)
		skip := c.emit(OpJump, 0)
		c.setRel(push, 0, c.here())
		if err := c.compile(body); err != nil {
			return err
		}
		c.setRel(skip, 0, c.here())

	default:
		return c.compileRangeRepeat(id, n, ann.TargetEmpty)
	}
	return nil
}

// compileQuantCheck is compileQuant for programs with explosion checks:
// choice points of numbered quantifiers record their (id, position) state.
func (c *compiler) compileQuantCheck(id syntax.NodeID, n *syntax.Node) error {
	t := c.t
	ann := t.Ann[id]
	body := n.Children[0]
	ckn := int32(max(ann.CheckNum, 0)) //nolint:gosec // G115: check ids fit int32
	on := ckn > 0

	if c.isAnyCharStar(n) {
		if err := c.compileTimes(body, n.Lower); err != nil {
			return err
		}
		ml := t.N(body).Multiline
		switch b := c.headByte(ann.NextHeadExact); {
		case b >= 0 && !on:
			op := OpAnyCharStarPeekNext
			if ml {
				op = OpAnyCharMLStarPeekNext
			}
			c.emit(op, b)
		case on && ml:
			c.emit(OpStateCheckAnyCharMLStar, ckn)
		case on:
			c.emit(OpStateCheckAnyCharStar, ckn)
		case ml:
			c.emit(OpAnyCharMLStar)
		default:
			c.emit(OpAnyCharStar)
		}
		return nil
	}

	// push emits a choice point and returns its address and the operand
	// index of its displacement.
	push := func() (int, int) {
		if on {
			return c.emit(OpStateCheckPush, ckn, 0), 1
		}
		return c.emit(OpPush, 0), 0
	}

	switch {
	case syntax.IsInfinite(n.Upper) && n.Lower <= 1:
		if n.Greedy {
			enter := -1
			if n.Lower == 1 {
				enter = c.emit(OpJump, 0)
			}
			head, rel := push()
			if enter >= 0 {
				c.setRel(enter, 0, c.here())
			}
			if err := c.compileEmptyCheck(body, ann.TargetEmpty); err != nil {
				return err
			}
			back := c.emit(OpJump, 0)
			c.setRel(back, 0, head)
			c.setRel(head, rel, c.here())
			return nil
		}
		skip := -1
		if n.Lower == 0 {
			skip = c.emit(OpJump, 0)
		}
		start := c.here()
		if err := c.compileEmptyCheck(body, ann.TargetEmpty); err != nil {
			return err
		}
		if skip >= 0 {
			c.setRel(skip, 0, c.here())
		}
		if on {
			back := c.emit(OpStateCheckPushOrJump, ckn, 0)
			c.setRel(back, 1, start)
		} else {
			back := c.emit(OpPush, 0)
			c.setRel(back, 0, start)
		}

	case n.Upper == 0:
		return c.compileReferred(id, body)

	case n.Upper == 1 && n.Greedy:
		pc, rel := -1, 0
		if n.Lower == 0 {
			pc, rel = push()
		}
		if err := c.compile(body); err != nil {
			return err
		}
		if pc >= 0 {
			c.setRel(pc, rel, c.here())
		}

	case !n.Greedy && n.Upper == 1 && n.Lower == 0:
		pc, rel := push()
		skip := c.emit(OpJump, 0)
		c.setRel(pc, rel, c.here())
		if err := c.compile(body); err != nil {
			return err
		}
		c.setRel(skip, 0, c.here())

	default:
		if err := c.compileRangeRepeat(id, n, ann.TargetEmpty); err != nil {
			return err
		}
		if on {
			c.emit(OpStateCheck, ckn)
		}
	}
	return nil
}

// compileReferred emits a {0} quantifier. Its body is only reachable
// through calls, so it is jumped over; otherwise nothing is emitted.
func (c *compiler) compileReferred(id, body syntax.NodeID) error {
	if !c.t.Has(id, syntax.StateReferred) {
		return nil
	}
	skip := c.emit(OpJump, 0)
	if err := c.compile(body); err != nil {
		return err
	}
	c.setRel(skip, 0, c.here())
	return nil
}

// compileRangeRepeat emits REPEAT id; body; REPEAT_INC id with a counter
// kept on the stack.
func (c *compiler) compileRangeRepeat(id syntax.NodeID, n *syntax.Node, info syntax.EmptyInfo) error {
	rid := int32(c.p.NumRepeat) //nolint:gosec // G115: id counts fit int32
	c.p.NumRepeat++
	upper := n.Upper
	if syntax.IsInfinite(upper) {
		upper = RepeatInfinite
	}
	c.p.RepeatRanges = append(c.p.RepeatRanges, RepeatRange{Lower: n.Lower, Upper: upper})

	op, inc := OpRepeat, OpRepeatInc
	if !n.Greedy {
		op, inc = OpRepeatNG, OpRepeatIncNG
	}
	if c.p.NumCall > 0 || c.t.Has(id, syntax.StateInRepeat) {
		inc = OpRepeatIncSG
		if !n.Greedy {
			inc = OpRepeatIncNGSG
		}
	}
	pc := c.emit(op, rid, 0)
	if err := c.compileEmptyCheck(n.Children[0], info); err != nil {
		return err
	}
	c.emit(inc, rid)
	c.setRel(pc, 1, c.here())
	return nil
}

func (c *compiler) compileEnclose(id syntax.NodeID, n *syntax.Node) error {
	t := c.t
	switch n.Enclose {
	case syntax.EncloseOption:
		return c.compile(n.Children[0])

	case syntax.EncloseMemory:
		return c.compileMemory(id, n)

	case syntax.EncloseStopBacktrack:
		if t.Has(id, syntax.StateStopBtSimpleRepeat) {
			q := t.N(n.Children[0])
			body := q.Children[0]
			if err := c.compileTimes(body, q.Lower); err != nil {
				return err
			}
			push := c.emit(OpPush, 0)
			if err := c.compile(body); err != nil {
				return err
			}
			c.emit(OpPop)
			back := c.emit(OpJump, 0)
			c.setRel(back, 0, push)
			c.setRel(push, 0, c.here())
			return nil
		}
		c.emit(OpPushStopBT)
		if err := c.compile(n.Children[0]); err != nil {
			return err
		}
		c.emit(OpPopStopBT)
		return nil
	}
	return internalf(-1, "unknown group kind %d", n.Enclose)
}

// compileMemory emits a capture group. A group reached by calls is
// compiled as CALL entry; JUMP over; entry: body; RETURN.
func (c *compiler) compileMemory(id syntax.NodeID, n *syntax.Node) error {
	t := c.t
	p := c.p
	mem := int32(n.Regnum) //nolint:gosec // G115: group numbers fit int32
	called := t.Has(id, syntax.StateCalled)
	rec := t.Has(id, syntax.StateRecursion)

	skip := -1
	if called {
		call := c.emit(OpCall, 0)
		skip = c.emit(OpJump, 0)
		entry := c.here()
		c.p.Code[call+1] = int32(entry) //nolint:gosec // G115: code size fits int32
		if _, ok := c.entries[id]; !ok {
			c.entries[id] = entry
		}
	}

	if p.BtMemStart.At(n.Regnum) {
		c.emit(OpMemoryStartPush, mem)
	} else {
		c.emit(OpMemoryStart, mem)
	}
	if err := c.compile(n.Children[0]); err != nil {
		return err
	}

	var op Opcode
	switch push := p.BtMemEnd.At(n.Regnum); {
	case called && push && rec:
		op = OpMemoryEndPushRec
	case called && rec:
		op = OpMemoryEndRec
	case push:
		op = OpMemoryEndPush
	default:
		op = OpMemoryEnd
	}
	c.emit(op, mem)

	if called {
		c.emit(OpReturn)
		c.setRel(skip, 0, c.here())
	}
	return nil
}

func (c *compiler) compileAnchor(id syntax.NodeID, n *syntax.Node) error {
	switch n.Anchor {
	case syntax.AnchorBeginBuf:
		c.emit(OpBeginBuf)
	case syntax.AnchorEndBuf:
		c.emit(OpEndBuf)
	case syntax.AnchorBeginLine:
		c.emit(OpBeginLine)
	case syntax.AnchorEndLine:
		c.emit(OpEndLine)
	case syntax.AnchorSemiEndBuf:
		c.emit(OpSemiEndBuf)
	case syntax.AnchorBeginPosition:
		c.emit(OpBeginPosition)
	case syntax.AnchorWordBound:
		c.emit(OpWordBound)
	case syntax.AnchorNotWordBound:
		c.emit(OpNotWordBound)
	case syntax.AnchorWordBegin:
		c.emit(OpWordBegin)
	case syntax.AnchorWordEnd:
		c.emit(OpWordEnd)

	case syntax.AnchorPrecRead:
		c.emit(OpPushPos)
		if err := c.compile(n.Children[0]); err != nil {
			return err
		}
		c.emit(OpPopPos)

	case syntax.AnchorPrecReadNot:
		pc := c.emit(OpPushPosNot, 0)
		if err := c.compile(n.Children[0]); err != nil {
			return err
		}
		c.emit(OpFailPos)
		c.setRel(pc, 0, c.here())

	case syntax.AnchorLookBehind:
		c.emit(OpLookBehind, int32(c.t.Ann[id].CharLen)) //nolint:gosec // G115: char length fits int32
		return c.compile(n.Children[0])

	case syntax.AnchorLookBehindNot:
		pc := c.emit(OpPushLookBehindNot, 0, int32(c.t.Ann[id].CharLen)) //nolint:gosec // G115: char length fits int32
		if err := c.compile(n.Children[0]); err != nil {
			return err
		}
		c.emit(OpFailLookBehindNot)
		c.setRel(pc, 0, c.here())

	default:
		return internalf(-1, "cannot compile anchor %s", n.Anchor)
	}
	return nil
}
