package vm

import (
	"bytes"

	"github.com/coregx/btregex/syntax"
)

// memSpan returns the current span of group n.
func (st *State) memSpan(n int) (beg, end int, ok bool) {
	if n <= 0 || n >= len(st.memStart) {
		return 0, 0, false
	}
	beg, end = st.memStart[n], st.memEnd[n]
	if beg == invalidIndex || end == invalidIndex {
		return 0, 0, false
	}
	if st.prog.BtMemStart.At(n) {
		beg = st.stk[beg].s
	}
	if st.prog.BtMemEnd.At(n) {
		end = st.stk[end].s
	}
	return beg, end, beg <= end
}

// backref matches the current text of group n at s and returns the
// position after it.
func (st *State) backref(n, s int, ic bool) (int, bool) {
	beg, end, ok := st.memSpan(n)
	if !ok {
		return 0, false
	}
	return st.matchSpan(beg, end, s, ic)
}

func (st *State) matchSpan(beg, end, s int, ic bool) (int, bool) {
	if ic {
		return st.foldEqual(beg, end, s)
	}
	n := end - beg
	if st.end-s < n || string(st.text[beg:end]) != string(st.text[s:s+n]) {
		return 0, false
	}
	return s + n, true
}

// backrefAtLevel matches the capture of one of mems made at the given
// call nesting level relative to the current one.
func (st *State) backrefAtLevel(ic bool, nest int, mems []int32, s int) (int, bool) {
	level := 0
	pend := -1
	for k := len(st.stk) - 1; k >= 0; k-- {
		e := &st.stk[k]
		switch {
		case e.kind == kindCallFrame:
			level--
		case e.kind == kindReturn:
			level++
		case level != nest:
		case e.kind == kindMemStart && memIn(e.num, mems):
			if pend < 0 {
				continue
			}
			if e.s > pend {
				return 0, false
			}
			return st.matchSpan(e.s, pend, s, ic)
		case e.kind == kindMemEnd && memIn(e.num, mems):
			pend = e.s
		}
	}
	return 0, false
}

func memIn(n int, mems []int32) bool {
	for _, m := range mems {
		if int(m) == n {
			return true
		}
	}
	return false
}

// foldEqual compares text[beg:end] with the text at s character by
// character after case folding and returns the position after the match.
func (st *State) foldEqual(beg, end, s int) (int, bool) {
	text := st.text[:st.end]
	for beg < end {
		if s >= st.end {
			return 0, false
		}
		var n1, n2 int
		st.foldA, n1 = syntax.AppendFold(st.enc, st.foldA[:0], text[:end], beg)
		st.foldB, n2 = syntax.AppendFold(st.enc, st.foldB[:0], text, s)
		if !bytes.Equal(st.foldA, st.foldB) {
			return 0, false
		}
		beg += n1
		s += n2
	}
	return s, true
}

// matchFolded matches the case-folded literal lit at s and returns the
// position after the match.
func (st *State) matchFolded(lit []byte, s int) (int, bool) {
	text := st.text[:st.end]
	for q := 0; q < len(lit); {
		if s >= st.end {
			return 0, false
		}
		var n int
		st.foldA, n = syntax.AppendFold(st.enc, st.foldA[:0], text, s)
		if !bytes.HasPrefix(lit[q:], st.foldA) {
			return 0, false
		}
		q += len(st.foldA)
		s += n
	}
	return s, true
}
