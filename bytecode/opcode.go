// Package bytecode defines the instruction set executed by the
// backtracking interpreter and the compiler that lowers an analyzed
// pattern tree to it.
//
// A program is a flat []int32. Each instruction is an opcode followed by a
// fixed list of operands; only the multiplexed backreference opcodes carry
// a count followed by that many group numbers. Relative addresses are
// counted in slots from the start of the following instruction, so a
// relative address of 0 falls through.
package bytecode

import "fmt"

// Opcode is an instruction tag.
type Opcode int32

// Instruction set.
const (
	OpEnd Opcode = iota

	// Literals. EXACT1 carries the byte inline; the others reference a
	// template and an offset into it.
	OpExact1
	OpExact2
	OpExact3
	OpExact4
	OpExact5
	OpExactN
	OpExact1IC
	OpExactNIC

	// Character classes.
	OpCClass
	OpCClassMB
	OpCClassMix
	OpCClassNot
	OpCClassMBNot
	OpCClassMixNot
	OpCClassNode

	OpAnyChar
	OpAnyCharML
	OpAnyCharStar
	OpAnyCharMLStar
	OpAnyCharStarPeekNext
	OpAnyCharMLStarPeekNext

	OpWord
	OpNotWord
	OpWordBound
	OpNotWordBound
	OpWordBegin
	OpWordEnd

	OpBeginBuf
	OpEndBuf
	OpBeginLine
	OpEndLine
	OpSemiEndBuf
	OpBeginPosition

	OpBackref1
	OpBackref2
	OpBackrefN
	OpBackrefNIC
	OpBackrefMulti
	OpBackrefMultiIC
	OpBackrefWithLevel

	OpMemoryStart
	OpMemoryStartPush
	OpMemoryEndPush
	OpMemoryEndPushRec
	OpMemoryEnd
	OpMemoryEndRec

	OpFail
	OpJump
	OpPush
	OpPop
	OpPushOrJumpExact1
	OpPushIfPeekNext

	OpRepeat
	OpRepeatNG
	OpRepeatInc
	OpRepeatIncNG
	OpRepeatIncSG
	OpRepeatIncNGSG

	OpNullCheckStart
	OpNullCheckEnd
	OpNullCheckEndMemst
	OpNullCheckEndMemstPush

	OpPushPos
	OpPopPos
	OpPushPosNot
	OpFailPos
	OpPushStopBT
	OpPopStopBT
	OpLookBehind
	OpPushLookBehindNot
	OpFailLookBehindNot

	OpCall
	OpReturn

	OpStateCheckPush
	OpStateCheckPushOrJump
	OpStateCheck
	OpStateCheckAnyCharStar
	OpStateCheckAnyCharMLStar

	numOpcodes
)

// Operand kinds.
type operand uint8

const (
	argRel     operand = iota // relative address
	argAbs                    // absolute address
	argByte                   // literal byte
	argTmpl                   // template index
	argOff                    // offset into a template
	argLen                    // byte length
	argBitSet                 // bit set table index
	argRange                  // code range table index
	argClass                  // class table index
	argMem                    // group number
	argRepeat                 // repeat id
	argNull                   // null-check id
	argCheck                  // explosion-check id
	argCharLen                // character count
	argFlag                   // 0 or 1
	argLevel                  // nest level
	argCount                  // count of the group numbers that follow
)

type opInfo struct {
	name string
	args []operand
}

var opTable = [numOpcodes]opInfo{
	OpEnd: {"end", nil},

	OpExact1:   {"exact1", []operand{argByte}},
	OpExact2:   {"exact2", []operand{argTmpl, argOff}},
	OpExact3:   {"exact3", []operand{argTmpl, argOff}},
	OpExact4:   {"exact4", []operand{argTmpl, argOff}},
	OpExact5:   {"exact5", []operand{argTmpl, argOff}},
	OpExactN:   {"exactn", []operand{argTmpl, argOff, argLen}},
	OpExact1IC: {"exact1-ic", []operand{argTmpl, argOff, argLen}},
	OpExactNIC: {"exactn-ic", []operand{argTmpl, argOff, argLen}},

	OpCClass:       {"cclass", []operand{argBitSet}},
	OpCClassMB:     {"cclass-mb", []operand{argRange}},
	OpCClassMix:    {"cclass-mix", []operand{argBitSet, argRange}},
	OpCClassNot:    {"cclass-not", []operand{argBitSet}},
	OpCClassMBNot:  {"cclass-mb-not", []operand{argRange}},
	OpCClassMixNot: {"cclass-mix-not", []operand{argBitSet, argRange}},
	OpCClassNode:   {"cclass-node", []operand{argClass}},

	OpAnyChar:               {"anychar", nil},
	OpAnyCharML:             {"anychar-ml", nil},
	OpAnyCharStar:           {"anychar*", nil},
	OpAnyCharMLStar:         {"anychar-ml*", nil},
	OpAnyCharStarPeekNext:   {"anychar*-peek-next", []operand{argByte}},
	OpAnyCharMLStarPeekNext: {"anychar-ml*-peek-next", []operand{argByte}},

	OpWord:         {"word", nil},
	OpNotWord:      {"not-word", nil},
	OpWordBound:    {"word-bound", nil},
	OpNotWordBound: {"not-word-bound", nil},
	OpWordBegin:    {"word-begin", nil},
	OpWordEnd:      {"word-end", nil},

	OpBeginBuf:      {"begin-buf", nil},
	OpEndBuf:        {"end-buf", nil},
	OpBeginLine:     {"begin-line", nil},
	OpEndLine:       {"end-line", nil},
	OpSemiEndBuf:    {"semi-end-buf", nil},
	OpBeginPosition: {"begin-position", nil},

	OpBackref1:         {"backref1", nil},
	OpBackref2:         {"backref2", nil},
	OpBackrefN:         {"backrefn", []operand{argMem}},
	OpBackrefNIC:       {"backrefn-ic", []operand{argMem}},
	OpBackrefMulti:     {"backref-multi", []operand{argCount}},
	OpBackrefMultiIC:   {"backref-multi-ic", []operand{argCount}},
	OpBackrefWithLevel: {"backref-with-level", []operand{argFlag, argLevel, argCount}},

	OpMemoryStart:      {"mem-start", []operand{argMem}},
	OpMemoryStartPush:  {"mem-start-push", []operand{argMem}},
	OpMemoryEndPush:    {"mem-end-push", []operand{argMem}},
	OpMemoryEndPushRec: {"mem-end-push-rec", []operand{argMem}},
	OpMemoryEnd:        {"mem-end", []operand{argMem}},
	OpMemoryEndRec:     {"mem-end-rec", []operand{argMem}},

	OpFail:             {"fail", nil},
	OpJump:             {"jump", []operand{argRel}},
	OpPush:             {"push", []operand{argRel}},
	OpPop:              {"pop", nil},
	OpPushOrJumpExact1: {"push-or-jump-e1", []operand{argRel, argByte}},
	OpPushIfPeekNext:   {"push-if-peek-next", []operand{argRel, argByte}},

	OpRepeat:        {"repeat", []operand{argRepeat, argRel}},
	OpRepeatNG:      {"repeat-ng", []operand{argRepeat, argRel}},
	OpRepeatInc:     {"repeat-inc", []operand{argRepeat}},
	OpRepeatIncNG:   {"repeat-inc-ng", []operand{argRepeat}},
	OpRepeatIncSG:   {"repeat-inc-sg", []operand{argRepeat}},
	OpRepeatIncNGSG: {"repeat-inc-ng-sg", []operand{argRepeat}},

	OpNullCheckStart:        {"null-check-start", []operand{argNull}},
	OpNullCheckEnd:          {"null-check-end", []operand{argNull}},
	OpNullCheckEndMemst:     {"null-check-end-memst", []operand{argNull}},
	OpNullCheckEndMemstPush: {"null-check-end-memst-push", []operand{argNull}},

	OpPushPos:           {"push-pos", nil},
	OpPopPos:            {"pop-pos", nil},
	OpPushPosNot:        {"push-pos-not", []operand{argRel}},
	OpFailPos:           {"fail-pos", nil},
	OpPushStopBT:        {"push-stop-bt", nil},
	OpPopStopBT:         {"pop-stop-bt", nil},
	OpLookBehind:        {"look-behind", []operand{argCharLen}},
	OpPushLookBehindNot: {"push-look-behind-not", []operand{argRel, argCharLen}},
	OpFailLookBehindNot: {"fail-look-behind-not", nil},

	OpCall:   {"call", []operand{argAbs}},
	OpReturn: {"return", nil},

	OpStateCheckPush:          {"state-check-push", []operand{argCheck, argRel}},
	OpStateCheckPushOrJump:    {"state-check-push-or-jump", []operand{argCheck, argRel}},
	OpStateCheck:              {"state-check", []operand{argCheck}},
	OpStateCheckAnyCharStar:   {"state-check-anychar*", []operand{argCheck}},
	OpStateCheckAnyCharMLStar: {"state-check-anychar-ml*", []operand{argCheck}},
}

func (op Opcode) String() string {
	if op >= 0 && op < numOpcodes {
		return opTable[op].name
	}
	return fmt.Sprintf("op(%d)", int32(op))
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	return op >= 0 && op < numOpcodes
}

// exactLen is the literal length of the fixed-size exact opcodes.
func exactLen(op Opcode) int {
	switch op {
	case OpExact1:
		return 1
	case OpExact2:
		return 2
	case OpExact3:
		return 3
	case OpExact4:
		return 4
	case OpExact5:
		return 5
	}
	return 0
}

// ExactLen returns the literal length of EXACT1..EXACT5, or 0.
func ExactLen(op Opcode) int {
	return exactLen(op)
}

// Width returns the number of slots of the instruction at pc, or -1 if
// the instruction is malformed or runs past the end of code.
func Width(code []int32, pc int) int {
	if pc < 0 || pc >= len(code) {
		return -1
	}
	op := Opcode(code[pc])
	if !op.Valid() {
		return -1
	}
	w := 1
	for _, a := range opTable[op].args {
		if a == argCount {
			if pc+w >= len(code) {
				return -1
			}
			n := int(code[pc+w])
			if n < 0 {
				return -1
			}
			w += n
		}
		w++
	}
	if pc+w > len(code) {
		return -1
	}
	return w
}
