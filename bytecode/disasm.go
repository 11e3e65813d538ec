package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

// String disassembles the program, one instruction per line. Relative
// addresses are shown as absolute targets.
func (p *Program) String() string {
	var sb strings.Builder
	for pc := 0; pc < len(p.Code); {
		w := Width(p.Code, pc)
		if w < 0 {
			fmt.Fprintf(&sb, "%4d: <bad %d>\n", pc, p.Code[pc])
			break
		}
		fmt.Fprintf(&sb, "%4d: %s\n", pc, p.Inst(pc))
		pc += w
	}
	return sb.String()
}

// Inst renders the instruction at pc.
func (p *Program) Inst(pc int) string {
	code := p.Code
	w := Width(code, pc)
	if w < 0 {
		return "<bad>"
	}
	op := Opcode(code[pc])
	next := pc + w
	var sb strings.Builder
	sb.WriteString(op.String())

	i := pc + 1
	var tmpl, off int32
	for _, a := range opTable[op].args {
		v := code[i]
		i++
		switch a {
		case argRel:
			fmt.Fprintf(&sb, " ->%d", next+int(v))
		case argAbs:
			fmt.Fprintf(&sb, " @%d", v)
		case argByte:
			sb.WriteByte(' ')
			sb.WriteString(strconv.QuoteRune(rune(v)))
		case argTmpl:
			tmpl = v
		case argOff:
			off = v
			if n := exactLen(op); n > 0 && int(tmpl) < len(p.Templates) {
				fmt.Fprintf(&sb, " %q", p.Templates[tmpl][off:int(off)+n])
			}
		case argLen:
			if int(tmpl) < len(p.Templates) {
				fmt.Fprintf(&sb, " %q", p.Templates[tmpl][off:off+v])
			}
		case argMem:
			fmt.Fprintf(&sb, " mem:%d", v)
		case argRepeat:
			fmt.Fprintf(&sb, " id:%d", v)
			if int(v) < len(p.RepeatRanges) {
				r := p.RepeatRanges[v]
				if r.Upper == RepeatInfinite {
					fmt.Fprintf(&sb, "{%d,inf}", r.Lower)
				} else {
					fmt.Fprintf(&sb, "{%d,%d}", r.Lower, r.Upper)
				}
			}
		case argNull:
			fmt.Fprintf(&sb, " null:%d", v)
		case argCheck:
			fmt.Fprintf(&sb, " check:%d", v)
		case argBitSet:
			fmt.Fprintf(&sb, " bits:%d", v)
		case argRange:
			fmt.Fprintf(&sb, " ranges:%d", v)
		case argClass:
			fmt.Fprintf(&sb, " class:%d", v)
		case argCharLen:
			fmt.Fprintf(&sb, " len:%d", v)
		case argFlag:
			if v != 0 {
				sb.WriteString(" ic")
			}
		case argLevel:
			fmt.Fprintf(&sb, " level:%d", v)
		case argCount:
			sb.WriteString(" mems:")
			for j := 0; j < int(v); j++ {
				if j > 0 {
					sb.WriteByte(',')
				}
				sb.WriteString(strconv.Itoa(int(code[i+j])))
			}
			i += int(v)
		}
	}
	return sb.String()
}
