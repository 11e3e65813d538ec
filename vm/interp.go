package vm

import (
	"fmt"

	"github.com/coregx/btregex/bytecode"
	"github.com/coregx/btregex/syntax"
)

// ctxPollInterval is the number of steps between context checks.
const ctxPollInterval = 1024

// MatchAt runs one anchored attempt starting at position at. It returns
// the length of the match, or -1 when the pattern does not match there.
//
// On success the State's region holds the spans of the match. With
// OptionFindLongest every path is explored and the longest match over all
// attempts of the search is recorded.
func (st *State) MatchAt(at int) (int, error) {
	prog := st.prog
	code := prog.Code
	enc := st.enc
	end := st.end
	text := st.text[:end]
	maxStack := st.m.cfg.MaxStackEntries
	longest := st.opts&syntax.OptionFindLongest != 0
	notEmpty := st.opts&syntax.OptionFindNotEmpty != 0

	for i := range st.memStart {
		st.memStart[i] = invalidIndex
		st.memEnd[i] = invalidIndex
	}
	st.stk = st.stk[:0]
	st.pushAlt(finishPC, 0, 0)

	var (
		pc    int
		s     = at
		sprev = syntax.PrevCharHead(enc, text, 0, at)
		best  = -1
	)

	for {
		if st.interrupt != nil && st.interrupt.Load() {
			return -1, ErrInterrupted
		}
		st.steps++
		if st.steps%ctxPollInterval == 0 && st.ctx != nil {
			if err := st.ctx.Err(); err != nil {
				return -1, fmt.Errorf("%w: %w", ErrInterrupted, err)
			}
		}
		if maxStack > 0 && len(st.stk) > maxStack {
			return -1, ErrStackOverflow
		}
		if pc == finishPC {
			return best, nil
		}
		if pc < 0 || pc >= len(code) {
			return -1, internalError(pc, "program counter out of range")
		}

		switch op := bytecode.Opcode(code[pc]); op {
		case bytecode.OpEnd:
			n := s - at
			if notEmpty && n == 0 {
				goto fail
			}
			if n > best {
				if longest {
					if n <= st.bestLen {
						goto retry
					}
					st.bestLen = n
					st.bestStart = at
				}
				best = n
				st.fillRegion(at, s)
			}
		retry:
			if longest && s < end {
				goto fail
			}
			return best, nil

		case bytecode.OpExact1:
			if s >= end || text[s] != byte(code[pc+1]) {
				goto fail
			}
			sprev = s
			s++
			pc += 2

		case bytecode.OpExact2, bytecode.OpExact3, bytecode.OpExact4, bytecode.OpExact5:
			n := bytecode.ExactLen(op)
			lit := prog.Templates[code[pc+1]][code[pc+2]:]
			if end-s < n || string(text[s:s+n]) != string(lit[:n]) {
				goto fail
			}
			sprev = st.lastHead(s, s+n)
			s += n
			pc += 3

		case bytecode.OpExactN:
			lit := prog.Template(code[pc+1], code[pc+2], code[pc+3])
			n := len(lit)
			if end-s < n || string(text[s:s+n]) != string(lit) {
				goto fail
			}
			if n > 0 {
				sprev = st.lastHead(s, s+n)
			}
			s += n
			pc += 4

		case bytecode.OpExact1IC, bytecode.OpExactNIC:
			lit := prog.Template(code[pc+1], code[pc+2], code[pc+3])
			s2, ok := st.matchFolded(lit, s)
			if !ok {
				goto fail
			}
			if s2 > s {
				sprev = st.lastHead(s, s2)
			}
			s = s2
			pc += 4

		case bytecode.OpCClass, bytecode.OpCClassNot:
			if s >= end {
				goto fail
			}
			n := enc.CharLen(text, s)
			in := n == 1 && prog.BitSets[code[pc+1]].Has(int(text[s]))
			if in == (op == bytecode.OpCClassNot) {
				goto fail
			}
			sprev = s
			s += n
			pc += 2

		case bytecode.OpCClassMB, bytecode.OpCClassMBNot:
			if s >= end {
				goto fail
			}
			n := enc.CharLen(text, s)
			in := n > 1 && prog.Ranges[code[pc+1]].Contains(enc.Decode(text, s))
			if in == (op == bytecode.OpCClassMBNot) {
				goto fail
			}
			sprev = s
			s += n
			pc += 2

		case bytecode.OpCClassMix, bytecode.OpCClassMixNot:
			if s >= end {
				goto fail
			}
			n := enc.CharLen(text, s)
			var in bool
			if n > 1 {
				in = prog.Ranges[code[pc+2]].Contains(enc.Decode(text, s))
			} else {
				in = prog.BitSets[code[pc+1]].Has(int(text[s]))
			}
			if in == (op == bytecode.OpCClassMixNot) {
				goto fail
			}
			sprev = s
			s += n
			pc += 3

		case bytecode.OpCClassNode:
			if s >= end {
				goto fail
			}
			if !prog.Classes[code[pc+1]].Contains(enc, enc.Decode(text, s)) {
				goto fail
			}
			sprev = s
			s += enc.CharLen(text, s)
			pc += 2

		case bytecode.OpAnyChar, bytecode.OpAnyCharML:
			if s >= end {
				goto fail
			}
			if op == bytecode.OpAnyChar && enc.IsNewline(text, s, end) {
				goto fail
			}
			sprev = s
			s += enc.CharLen(text, s)
			pc++

		case bytecode.OpAnyCharStar, bytecode.OpAnyCharMLStar:
			next := pc + 1
			for s < end {
				st.pushAlt(next, s, sprev)
				if maxStack > 0 && len(st.stk) > maxStack {
					return -1, ErrStackOverflow
				}
				if op == bytecode.OpAnyCharStar && enc.IsNewline(text, s, end) {
					goto fail
				}
				sprev = s
				s += enc.CharLen(text, s)
			}
			pc = next

		case bytecode.OpAnyCharStarPeekNext, bytecode.OpAnyCharMLStarPeekNext:
			c := byte(code[pc+1])
			next := pc + 2
			for s < end {
				if text[s] == c {
					st.pushAlt(next, s, sprev)
					if maxStack > 0 && len(st.stk) > maxStack {
						return -1, ErrStackOverflow
					}
				}
				if op == bytecode.OpAnyCharStarPeekNext && enc.IsNewline(text, s, end) {
					goto fail
				}
				sprev = s
				s += enc.CharLen(text, s)
			}
			pc = next

		case bytecode.OpWord, bytecode.OpNotWord:
			if s >= end || syntax.IsWordAt(enc, text, s, end) != (op == bytecode.OpWord) {
				goto fail
			}
			sprev = s
			s += enc.CharLen(text, s)
			pc++

		case bytecode.OpWordBound, bytecode.OpNotWordBound:
			var bound bool
			switch {
			case s == 0:
				bound = syntax.IsWordAt(enc, text, s, end)
			case s == end:
				bound = syntax.IsWordAt(enc, text, sprev, end)
			default:
				bound = syntax.IsWordAt(enc, text, s, end) != syntax.IsWordAt(enc, text, sprev, end)
			}
			if bound != (op == bytecode.OpWordBound) {
				goto fail
			}
			pc++

		case bytecode.OpWordBegin:
			if !syntax.IsWordAt(enc, text, s, end) || (s > 0 && syntax.IsWordAt(enc, text, sprev, end)) {
				goto fail
			}
			pc++

		case bytecode.OpWordEnd:
			if s == 0 || !syntax.IsWordAt(enc, text, sprev, end) || syntax.IsWordAt(enc, text, s, end) {
				goto fail
			}
			pc++

		case bytecode.OpBeginBuf:
			if s != 0 {
				goto fail
			}
			pc++

		case bytecode.OpEndBuf:
			if s != end {
				goto fail
			}
			pc++

		case bytecode.OpBeginLine:
			if s == 0 {
				if st.opts&syntax.OptionNotBOL != 0 {
					goto fail
				}
			} else if s == end || !enc.IsNewline(text, sprev, end) {
				goto fail
			}
			pc++

		case bytecode.OpEndLine:
			if s == end {
				if st.opts&syntax.OptionNotEOL != 0 {
					goto fail
				}
			} else if !enc.IsNewline(text, s, end) {
				goto fail
			}
			pc++

		case bytecode.OpSemiEndBuf:
			if s == end {
				if st.opts&syntax.OptionNotEOL != 0 {
					goto fail
				}
			} else if !enc.IsNewline(text, s, end) || s+enc.CharLen(text, s) != end {
				goto fail
			}
			pc++

		case bytecode.OpBeginPosition:
			if s != st.gpos {
				goto fail
			}
			pc++

		case bytecode.OpBackref1, bytecode.OpBackref2, bytecode.OpBackrefN, bytecode.OpBackrefNIC:
			var mem int
			next := pc + 1
			switch op {
			case bytecode.OpBackref1:
				mem = 1
			case bytecode.OpBackref2:
				mem = 2
			default:
				mem = int(code[pc+1])
				next = pc + 2
			}
			s2, ok := st.backref(mem, s, op == bytecode.OpBackrefNIC)
			if !ok {
				goto fail
			}
			if s2 > s {
				sprev = st.lastHead(s, s2)
			}
			s = s2
			pc = next

		case bytecode.OpBackrefMulti, bytecode.OpBackrefMultiIC:
			n := int(code[pc+1])
			ic := op == bytecode.OpBackrefMultiIC
			matched := false
			for _, mem := range code[pc+2 : pc+2+n] {
				if s2, ok := st.backref(int(mem), s, ic); ok {
					if s2 > s {
						sprev = st.lastHead(s, s2)
					}
					s = s2
					matched = true
					break
				}
			}
			if !matched {
				goto fail
			}
			pc += 2 + n

		case bytecode.OpBackrefWithLevel:
			ic := code[pc+1] != 0
			level := int(code[pc+2])
			n := int(code[pc+3])
			s2, ok := st.backrefAtLevel(ic, level, code[pc+4:pc+4+n], s)
			if !ok {
				goto fail
			}
			if s2 > s {
				sprev = st.lastHead(s, s2)
			}
			s = s2
			pc += 4 + n

		case bytecode.OpMemoryStart:
			st.memStart[code[pc+1]] = s
			pc += 2

		case bytecode.OpMemoryStartPush:
			mem := int(code[pc+1])
			st.memStart[mem] = st.push(entry{kind: kindMemStart, num: mem, s: s,
				x: st.memStart[mem], y: st.memEnd[mem]})
			st.memEnd[mem] = invalidIndex
			pc += 2

		case bytecode.OpMemoryEndPush:
			mem := int(code[pc+1])
			st.memEnd[mem] = st.push(entry{kind: kindMemEnd, num: mem, s: s,
				x: st.memStart[mem], y: st.memEnd[mem]})
			pc += 2

		case bytecode.OpMemoryEnd:
			st.memEnd[code[pc+1]] = s
			pc += 2

		case bytecode.OpMemoryEndPushRec:
			mem := int(code[pc+1])
			k := st.findMemStart(mem)
			if k < 0 {
				return -1, internalError(pc, "recursive group end without start")
			}
			st.memEnd[mem] = st.push(entry{kind: kindMemEnd, num: mem, s: s,
				x: st.memStart[mem], y: st.memEnd[mem]})
			st.memStart[mem] = k
			pc += 2

		case bytecode.OpMemoryEndRec:
			mem := int(code[pc+1])
			st.memEnd[mem] = s
			k := st.findMemStart(mem)
			if k < 0 {
				return -1, internalError(pc, "recursive group end without start")
			}
			if prog.BtMemStart.At(mem) {
				st.memStart[mem] = k
			} else {
				st.memStart[mem] = st.stk[k].s
			}
			st.push(entry{kind: kindMemEndMark, num: mem})
			pc += 2

		case bytecode.OpFail:
			goto fail

		case bytecode.OpJump:
			pc += 2 + int(code[pc+1])

		case bytecode.OpPush:
			st.pushAlt(pc+2+int(code[pc+1]), s, sprev)
			pc += 2

		case bytecode.OpPop:
			if len(st.stk) <= 1 {
				return -1, internalError(pc, "pop of the bottom entry")
			}
			st.stk = st.stk[:len(st.stk)-1]
			pc++

		case bytecode.OpPushOrJumpExact1:
			next := pc + 3
			if s < end && text[s] == byte(code[pc+2]) {
				st.pushAlt(next+int(code[pc+1]), s, sprev)
				pc = next
			} else {
				pc = next + int(code[pc+1])
			}

		case bytecode.OpPushIfPeekNext:
			next := pc + 3
			if s < end && text[s] == byte(code[pc+2]) {
				st.pushAlt(next+int(code[pc+1]), s, sprev)
			}
			pc = next

		case bytecode.OpRepeat, bytecode.OpRepeatNG:
			id := int(code[pc+1])
			next := pc + 3
			st.repeatStk[id] = st.push(entry{kind: kindRepeat, num: id, pc: next})
			switch {
			case prog.RepeatRanges[id].Lower != 0:
				pc = next
			case op == bytecode.OpRepeat:
				st.pushAlt(next+int(code[pc+2]), s, sprev)
				pc = next
			default:
				st.pushAlt(next, s, sprev)
				pc = next + int(code[pc+2])
			}

		case bytecode.OpRepeatInc, bytecode.OpRepeatIncSG:
			id := int(code[pc+1])
			next := pc + 2
			si := st.repeatStk[id]
			if op == bytecode.OpRepeatIncSG {
				si = st.findRepeat(id)
			}
			if si < 0 || si >= len(st.stk) || st.stk[si].kind != kindRepeat {
				return -1, internalError(pc, "repeat counter not found")
			}
			st.stk[si].x++
			r := prog.RepeatRanges[id]
			switch cnt := st.stk[si].x; {
			case cnt >= r.Upper:
				pc = next
			case cnt >= r.Lower:
				st.pushAlt(next, s, sprev)
				pc = st.stk[si].pc
			default:
				pc = st.stk[si].pc
			}
			st.push(entry{kind: kindRepeatInc, x: si})

		case bytecode.OpRepeatIncNG, bytecode.OpRepeatIncNGSG:
			id := int(code[pc+1])
			next := pc + 2
			si := st.repeatStk[id]
			if op == bytecode.OpRepeatIncNGSG {
				si = st.findRepeat(id)
			}
			if si < 0 || si >= len(st.stk) || st.stk[si].kind != kindRepeat {
				return -1, internalError(pc, "repeat counter not found")
			}
			st.stk[si].x++
			r := prog.RepeatRanges[id]
			body := st.stk[si].pc
			switch cnt := st.stk[si].x; {
			case cnt < r.Upper && cnt >= r.Lower:
				st.push(entry{kind: kindRepeatInc, x: si})
				st.pushAlt(body, s, sprev)
				pc = next
			case cnt < r.Upper:
				st.push(entry{kind: kindRepeatInc, x: si})
				pc = body
			case cnt == r.Upper:
				st.push(entry{kind: kindRepeatInc, x: si})
				pc = next
			default:
				pc = next
			}

		case bytecode.OpNullCheckStart:
			st.push(entry{kind: kindNullCheckStart, num: int(code[pc+1]), s: s})
			pc += 2

		case bytecode.OpNullCheckEnd:
			next := pc + 2
			if !st.nullCheck(int(code[pc+1]), s) {
				pc = next
				break
			}
			p, err := skipLoopJump(code, next)
			if err != nil {
				return -1, err
			}
			pc = p

		case bytecode.OpNullCheckEndMemst, bytecode.OpNullCheckEndMemstPush:
			id := int(code[pc+1])
			next := pc + 2
			rec := op == bytecode.OpNullCheckEndMemstPush
			switch st.nullCheckMem(id, s, rec) {
			case -1:
				goto fail
			case 1:
				p, err := skipLoopJump(code, next)
				if err != nil {
					return -1, err
				}
				pc = p
			default:
				if rec {
					st.push(entry{kind: kindNullCheckEnd, num: id})
				}
				pc = next
			}

		case bytecode.OpPushPos:
			st.push(entry{kind: kindPos, s: s, sprev: sprev})
			pc++

		case bytecode.OpPopPos:
			k := st.voidTo(kindPos)
			if k < 0 {
				return -1, internalError(pc, "look-ahead end without start")
			}
			s, sprev = st.stk[k].s, st.stk[k].sprev
			pc++

		case bytecode.OpPushPosNot:
			st.push(entry{kind: kindPosNot, pc: pc + 2 + int(code[pc+1]), s: s, sprev: sprev})
			pc += 2

		case bytecode.OpFailPos:
			if !st.popTil(kindPosNot) {
				return -1, internalError(pc, "negative look-ahead end without start")
			}
			goto fail

		case bytecode.OpPushStopBT:
			st.push(entry{kind: kindStopBT})
			pc++

		case bytecode.OpPopStopBT:
			if st.voidTo(kindStopBT) < 0 {
				return -1, internalError(pc, "atomic group end without start")
			}
			pc++

		case bytecode.OpLookBehind:
			q := syntax.StepBack(enc, text, 0, s, int(code[pc+1]))
			if q < 0 {
				goto fail
			}
			s = q
			sprev = syntax.PrevCharHead(enc, text, 0, s)
			pc += 2

		case bytecode.OpPushLookBehindNot:
			next := pc + 3
			q := syntax.StepBack(enc, text, 0, s, int(code[pc+2]))
			if q < 0 {
				// Too little text before s: the look-behind cannot match.
				pc = next + int(code[pc+1])
				break
			}
			st.push(entry{kind: kindLookBehindNot, pc: next + int(code[pc+1]), s: s, sprev: sprev})
			s = q
			sprev = syntax.PrevCharHead(enc, text, 0, s)
			pc = next

		case bytecode.OpFailLookBehindNot:
			if !st.popTil(kindLookBehindNot) {
				return -1, internalError(pc, "negative look-behind end without start")
			}
			goto fail

		case bytecode.OpCall:
			st.push(entry{kind: kindCallFrame, pc: pc + 2})
			pc = int(code[pc+1])

		case bytecode.OpReturn:
			ret := st.returnAddr()
			if ret < 0 {
				return -1, internalError(pc, "return without call")
			}
			st.push(entry{kind: kindReturn})
			pc = ret

		case bytecode.OpStateCheckPush:
			id := int(code[pc+1])
			next := pc + 3
			if st.check.visited(s, id) {
				goto fail
			}
			st.push(entry{kind: kindAlt, num: id, pc: next + int(code[pc+2]), s: s, sprev: sprev})
			pc = next

		case bytecode.OpStateCheckPushOrJump:
			id := int(code[pc+1])
			next := pc + 3
			if st.check.visited(s, id) {
				// Both the exit and another iteration failed from here.
				goto fail
			}
			st.push(entry{kind: kindAlt, num: id, pc: next + int(code[pc+2]), s: s, sprev: sprev})
			pc = next

		case bytecode.OpStateCheck:
			id := int(code[pc+1])
			if st.check.visited(s, id) {
				goto fail
			}
			st.push(entry{kind: kindStateCheckMark, num: id, s: s})
			pc += 2

		case bytecode.OpStateCheckAnyCharStar, bytecode.OpStateCheckAnyCharMLStar:
			id := int(code[pc+1])
			next := pc + 2
			for s < end {
				if st.check.visited(s, id) {
					goto fail
				}
				st.push(entry{kind: kindAlt, num: id, pc: next, s: s, sprev: sprev})
				if maxStack > 0 && len(st.stk) > maxStack {
					return -1, ErrStackOverflow
				}
				if op == bytecode.OpStateCheckAnyCharStar && enc.IsNewline(text, s, end) {
					goto fail
				}
				sprev = s
				s += enc.CharLen(text, s)
			}
			pc = next

		default:
			return -1, internalError(pc, "unexpected opcode "+op.String())
		}
		continue

	fail:
		{
			e := st.pop()
			pc, s, sprev = e.pc, e.s, e.sprev
			if e.kind == kindAlt && e.num != 0 {
				st.push(entry{kind: kindStateCheckMark, num: e.num, s: e.s})
			}
		}
	}
}

// skipLoopJump returns the address after the loop-closing instruction at
// pc, which an empty iteration skips.
func skipLoopJump(code []int32, pc int) (int, error) {
	switch bytecode.Opcode(code[pc]) {
	case bytecode.OpJump, bytecode.OpPush,
		bytecode.OpRepeatInc, bytecode.OpRepeatIncNG,
		bytecode.OpRepeatIncSG, bytecode.OpRepeatIncNGSG,
		bytecode.OpStateCheckPushOrJump:
		return pc + bytecode.Width(code, pc), nil
	}
	return -1, internalError(pc, "null check not followed by a loop jump")
}

// lastHead returns the start of the last character of text[from:to].
func (st *State) lastHead(from, to int) int {
	if st.enc.MaxLen() == 1 {
		return to - 1
	}
	return st.enc.LeftAdjustCharHead(st.text, from, to-1)
}

// fillRegion records the spans of a match of text[beg:end].
func (st *State) fillRegion(beg, end int) {
	r := st.region
	r.Beg[0], r.End[0] = beg, end
	for i := 1; i < len(r.Beg); i++ {
		if b, e, ok := st.memSpan(i); ok {
			r.Beg[i], r.End[i] = b, e
		} else {
			r.Beg[i], r.End[i] = NotPos, NotPos
		}
	}
	r.History = nil
	if st.prog.CaptureHistory != 0 && st.opts&syntax.OptionPosixRegion == 0 {
		r.History = st.captureHistory(beg, end)
	}
}
