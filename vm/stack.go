package vm

import "github.com/coregx/btregex/analysis"

// kind tags a backtrack stack entry. The low byte is non-zero only for
// choice points; the masks below select the groups the pop and void
// operations act on.
type kind uint16

const (
	kindAlt           kind = 0x0001
	kindLookBehindNot kind = 0x0002
	kindPosNot        kind = 0x0003

	kindMemStart       kind = 0x0100
	kindMemEnd         kind = 0x8200
	kindRepeatInc      kind = 0x0300
	kindStateCheckMark kind = 0x1000

	kindNullCheckStart kind = 0x3000
	kindNullCheckEnd   kind = 0x5000
	kindMemEndMark     kind = 0x8400
	kindPos            kind = 0x0500
	kindStopBT         kind = 0x0600
	kindRepeat         kind = 0x0700
	kindCallFrame      kind = 0x0800
	kindReturn         kind = 0x0900
	kindVoid           kind = 0x0a00

	maskPopUsed      kind = 0x00ff
	maskToVoidTarget kind = 0x10ff
	maskMemEndOrMark kind = 0x8000
)

func (k kind) String() string {
	switch k {
	case kindAlt:
		return "ALT"
	case kindLookBehindNot:
		return "LOOK_BEHIND_NOT"
	case kindPosNot:
		return "POS_NOT"
	case kindMemStart:
		return "MEM_START"
	case kindMemEnd:
		return "MEM_END"
	case kindRepeatInc:
		return "REPEAT_INC"
	case kindStateCheckMark:
		return "STATE_CHECK_MARK"
	case kindNullCheckStart:
		return "NULL_CHECK_START"
	case kindNullCheckEnd:
		return "NULL_CHECK_END"
	case kindMemEndMark:
		return "MEM_END_MARK"
	case kindPos:
		return "POS"
	case kindStopBT:
		return "STOP_BT"
	case kindRepeat:
		return "REPEAT"
	case kindCallFrame:
		return "CALL_FRAME"
	case kindReturn:
		return "RETURN"
	case kindVoid:
		return "VOID"
	}
	return "UNKNOWN"
}

// invalidIndex marks an unset memory slot.
const invalidIndex = -1

// finishPC is the resume address of the bottom entry. Reaching it ends
// the attempt with the best result recorded so far.
const finishPC = -1

// entry is one backtrack stack record.
//
// pc is the resume address of a choice point, the body start of a REPEAT
// and the return address of a CALL_FRAME. s and sprev are the subject
// position and the start of the character before it. num is the group,
// repeat, null-check or explosion-check id; an ALT with a non-zero num
// becomes a STATE_CHECK_MARK once its alternative is taken.
//
// For memory entries x and y save the group's previous start and end
// slots. A REPEAT keeps its iteration count in x and a REPEAT_INC keeps
// the index of its REPEAT in x.
type entry struct {
	kind  kind
	num   int
	pc    int
	s     int
	sprev int
	x, y  int
}

func (st *State) push(e entry) int {
	st.stk = append(st.stk, e)
	return len(st.stk) - 1
}

func (st *State) pushAlt(pc, s, sprev int) {
	st.stk = append(st.stk, entry{kind: kindAlt, pc: pc, s: s, sprev: sprev})
}

// restore undoes the side effect of a non-choice entry removed by a pop at
// the given level.
func (st *State) restore(e *entry, level analysis.PopLevel) {
	switch e.kind {
	case kindStateCheckMark:
		st.check.mark(e.s, e.num)
	case kindMemStart:
		if level >= analysis.PopMemStart {
			st.memStart[e.num] = e.x
			st.memEnd[e.num] = e.y
		}
	case kindRepeatInc:
		if level == analysis.PopAll {
			st.stk[e.x].x--
		}
	case kindMemEnd:
		if level == analysis.PopAll {
			st.memStart[e.num] = e.x
			st.memEnd[e.num] = e.y
		}
	}
}

// pop removes entries down to and including the topmost choice point and
// returns it. The bottom entry is always a choice point.
func (st *State) pop() entry {
	level := st.prog.PopLevel
	i := len(st.stk) - 1
	for ; i > 0; i-- {
		e := &st.stk[i]
		if e.kind&maskPopUsed != 0 {
			break
		}
		if level == analysis.PopFree {
			if e.kind == kindStateCheckMark {
				st.check.mark(e.s, e.num)
			}
			continue
		}
		st.restore(e, level)
	}
	top := st.stk[i]
	st.stk = st.stk[:i]
	return top
}

// popTil removes entries down to and including the topmost entry of kind
// k, restoring memory slots and repeat counts on the way. Explosion marks
// are dropped without recording a failure: the region being unwound ended
// in a success.
func (st *State) popTil(k kind) bool {
	for i := len(st.stk) - 1; i > 0; i-- {
		e := &st.stk[i]
		if e.kind == k {
			st.stk = st.stk[:i]
			return true
		}
		if e.kind != kindStateCheckMark {
			st.restore(e, analysis.PopAll)
		}
	}
	return false
}

// voidTo turns every choice point above the topmost entry of kind k into
// a VOID entry, voids that entry and returns its index, or -1.
func (st *State) voidTo(k kind) int {
	for i := len(st.stk) - 1; i >= 0; i-- {
		e := &st.stk[i]
		if e.kind&maskToVoidTarget != 0 {
			e.kind = kindVoid
		} else if e.kind == k {
			e.kind = kindVoid
			return i
		}
	}
	return -1
}

// nullCheck reports whether the loop body guarded by null-check id
// consumed nothing since its NULL_CHECK_START.
func (st *State) nullCheck(id, s int) bool {
	for i := len(st.stk) - 1; i >= 0; i-- {
		e := &st.stk[i]
		if e.kind == kindNullCheckStart && e.num == id {
			return e.s == s
		}
	}
	return false
}

// nullCheckMem is the null check for loops that capture. It returns 1 when
// the iteration is empty and left every capture where it was, -1 when it
// is empty but moved an empty capture and 0 otherwise. With rec set,
// NULL_CHECK_END entries of nested calls are skipped.
func (st *State) nullCheckMem(id, s int, rec bool) int {
	level := 0
	for k := len(st.stk) - 1; k >= 0; k-- {
		e := &st.stk[k]
		if rec && e.kind == kindNullCheckEnd && e.num == id {
			level++
			continue
		}
		if e.kind != kindNullCheckStart || e.num != id {
			continue
		}
		if level > 0 {
			level--
			continue
		}
		if e.s != s {
			return 0
		}
		isNull := 1
		for ; k < len(st.stk); k++ {
			m := &st.stk[k]
			if m.kind != kindMemStart {
				continue
			}
			if m.y == invalidIndex || m.x == invalidIndex {
				return 0
			}
			endp := m.y
			if st.prog.BtMemEnd.At(m.num) {
				endp = st.stk[m.y].s
			}
			if st.stk[m.x].s != endp {
				return 0
			}
			if endp != s {
				isNull = -1
			}
		}
		return isNull
	}
	return 0
}

// findMemStart returns the index of the MEM_START entry of group n that
// belongs to the innermost unfinished recursion level, or -1.
func (st *State) findMemStart(n int) int {
	level := 0
	for k := len(st.stk) - 1; k >= 0; k-- {
		e := &st.stk[k]
		if e.kind&maskMemEndOrMark != 0 && e.num == n {
			level++
		} else if e.kind == kindMemStart && e.num == n {
			if level == 0 {
				return k
			}
			level--
		}
	}
	return -1
}

// findRepeat returns the index of the REPEAT entry of id in the current
// call level, or -1.
func (st *State) findRepeat(id int) int {
	level := 0
	for k := len(st.stk) - 1; k >= 0; k-- {
		switch e := &st.stk[k]; e.kind {
		case kindRepeat:
			if level == 0 && e.num == id {
				return k
			}
		case kindCallFrame:
			level--
		case kindReturn:
			level++
		}
	}
	return -1
}

// returnAddr returns the return address of the innermost open call, or -1.
func (st *State) returnAddr() int {
	level := 0
	for k := len(st.stk) - 1; k >= 0; k-- {
		switch e := &st.stk[k]; e.kind {
		case kindCallFrame:
			if level == 0 {
				return e.pc
			}
			level--
		case kindReturn:
			level++
		}
	}
	return -1
}
