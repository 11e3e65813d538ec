package bytecode

import (
	"fmt"

	"github.com/coregx/btregex/analysis"
	"github.com/coregx/btregex/syntax"
)

// RepeatRange is the [Lower, Upper] count of a REPEAT id. Upper is
// RepeatInfinite for an unbounded repeat.
type RepeatRange struct {
	Lower, Upper int
}

// Program is a compiled pattern: the instruction stream, the tables its
// operands index into and the facts the interpreter needs to run it.
//
// A Program is immutable once compiled and safe for concurrent use.
type Program struct {
	Code []int32

	// Templates hold the bytes of the exact and backref-free literal
	// opcodes. Identical literals share one template.
	Templates [][]byte
	// BitSets are the single-byte parts of character classes.
	BitSets []syntax.BitSet
	// Ranges are the multi-byte parts of character classes.
	Ranges []*syntax.CodeRangeSet
	// Classes are classes evaluated as a whole by CCLASS_NODE.
	Classes []*syntax.CClass
	// RepeatRanges is indexed by repeat id.
	RepeatRanges []RepeatRange

	NumMem          int
	NumRepeat       int
	NumNullCheck    int
	NumCombExpCheck int
	NumCall         int

	// BtMemStart marks groups whose start is kept as a stack index.
	BtMemStart syntax.MemStatus
	// BtMemEnd marks groups whose end is kept as a stack index.
	BtMemEnd syntax.MemStatus
	// CaptureHistory marks groups recorded in the capture history tree.
	CaptureHistory syntax.MemStatus

	PopLevel analysis.PopLevel
	Options  syntax.Options
	Enc      syntax.Encoding

	// Names maps a group name to its group numbers; NameOrder lists the
	// names in definition order.
	Names     map[string][]int
	NameOrder []string

	Opt            *analysis.Optimization
	MinLen, MaxLen int
	Pattern        string
}

// EncodingName returns the name of the program's encoding.
func (p *Program) EncodingName() string {
	if p.Enc == nil {
		return syntax.UTF8.Name()
	}
	return p.Enc.Name()
}

// Template returns n bytes of template tmpl starting at off.
func (p *Program) Template(tmpl, off, n int32) []byte {
	return p.Templates[tmpl][off : off+n]
}

// InternalError reports a malformed program or a corrupted execution
// state. It indicates a bug, never a property of the input.
type InternalError struct {
	PC      int
	Message string
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	if e.PC >= 0 {
		return fmt.Sprintf("btregex: internal error at pc %d: %s", e.PC, e.Message)
	}
	return "btregex: internal error: " + e.Message
}

func internalf(pc int, format string, args ...any) *InternalError {
	return &InternalError{PC: pc, Message: fmt.Sprintf(format, args...)}
}

// Validate checks that every instruction is well formed: opcode and
// operand boundaries, jump targets, ids and table indexes.
func (p *Program) Validate() error {
	code := p.Code
	starts := make([]bool, len(code)+1)
	for pc := 0; pc < len(code); {
		w := Width(code, pc)
		if w < 0 {
			return internalf(pc, "malformed instruction %s", Opcode(code[pc]))
		}
		starts[pc] = true
		pc += w
	}
	starts[len(code)] = true

	for pc := 0; pc < len(code); pc += Width(code, pc) {
		op := Opcode(code[pc])
		next := pc + Width(code, pc)
		i := pc + 1
		var tmpl int32 = -1
		var off int32
		for _, a := range opTable[op].args {
			v := code[i]
			var err *InternalError
			switch a {
			case argRel:
				if t := next + int(v); t < 0 || t > len(code) || !starts[t] {
					err = internalf(pc, "%s jumps to %d", op, t)
				}
			case argAbs:
				if v < 0 || int(v) >= len(code) || !starts[v] {
					err = internalf(pc, "%s calls %d", op, v)
				}
			case argByte:
				if v < 0 || v > 0xff {
					err = internalf(pc, "%s byte %d out of range", op, v)
				}
			case argTmpl:
				if v < 0 || int(v) >= len(p.Templates) {
					err = internalf(pc, "%s template %d out of range", op, v)
				}
				tmpl = v
			case argOff:
				off = v
			case argLen:
				if tmpl < 0 || off < 0 || v < 0 || int(off+v) > len(p.Templates[tmpl]) {
					err = internalf(pc, "%s literal out of template bounds", op)
				}
			case argBitSet:
				if v < 0 || int(v) >= len(p.BitSets) {
					err = internalf(pc, "%s bit set %d out of range", op, v)
				}
			case argRange:
				if v < 0 || int(v) >= len(p.Ranges) {
					err = internalf(pc, "%s range set %d out of range", op, v)
				}
			case argClass:
				if v < 0 || int(v) >= len(p.Classes) {
					err = internalf(pc, "%s class %d out of range", op, v)
				}
			case argMem:
				if v < 0 || int(v) > p.NumMem {
					err = internalf(pc, "%s group %d out of range", op, v)
				}
			case argRepeat:
				if v < 0 || int(v) >= p.NumRepeat || int(v) >= len(p.RepeatRanges) {
					err = internalf(pc, "%s repeat id %d out of range", op, v)
				}
			case argNull:
				if v < 0 || int(v) >= p.NumNullCheck {
					err = internalf(pc, "%s null-check id %d out of range", op, v)
				}
			case argCheck:
				if v < 0 || int(v) > p.NumCombExpCheck {
					err = internalf(pc, "%s check id %d out of range", op, v)
				}
			case argCount:
				for j := 1; j <= int(v); j++ {
					if m := code[i+j]; m <= 0 || int(m) > p.NumMem {
						err = internalf(pc, "%s group %d out of range", op, m)
						break
					}
				}
				i += int(v)
			}
			if err != nil {
				return err
			}
			i++
		}
		if n := exactLen(op); n > 1 {
			if int(off)+n > len(p.Templates[tmpl]) {
				return internalf(pc, "%s literal out of template bounds", op)
			}
		}
	}
	return nil
}
