package bytecode

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/coregx/btregex/analysis"
	"github.com/coregx/btregex/syntax"
)

func compileWith(t *testing.T, pattern string, opts syntax.Options, cfg analysis.Config) *Program {
	t.Helper()
	tree, err := syntax.Parse(pattern, opts, nil, nil)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", pattern, err)
	}
	res, err := analysis.Analyze(tree, cfg)
	if err != nil {
		t.Fatalf("Analyze(%q) error: %v", pattern, err)
	}
	p, err := Compile(res)
	if err != nil {
		t.Fatalf("Compile(%q) error: %v", pattern, err)
	}
	return p
}

func mustCompile(t *testing.T, pattern string) *Program {
	t.Helper()
	return compileWith(t, pattern, syntax.OptionNone, analysis.DefaultConfig())
}

// ops returns the opcode sequence of p.
func ops(p *Program) []Opcode {
	var out []Opcode
	for pc := 0; pc < len(p.Code); pc += Width(p.Code, pc) {
		out = append(out, Opcode(p.Code[pc]))
	}
	return out
}

func findOp(p *Program, op Opcode) int {
	for pc := 0; pc < len(p.Code); pc += Width(p.Code, pc) {
		if Opcode(p.Code[pc]) == op {
			return pc
		}
	}
	return -1
}

func equalOps(a, b []Opcode) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCompileOpcodes(t *testing.T) {
	tests := []struct {
		pattern string
		opts    syntax.Options
		want    []Opcode
	}{
		{"a", 0, []Opcode{OpExact1, OpEnd}},
		{"abc", 0, []Opcode{OpExact3, OpEnd}},
		{"abcdefg", 0, []Opcode{OpExactN, OpEnd}},
		{"a|b", 0, []Opcode{OpPush, OpExact1, OpJump, OpExact1, OpEnd}},
		{"a*", 0, []Opcode{OpPushOrJumpExact1, OpExact1, OpJump, OpEnd}},
		{"a*b", 0, []Opcode{OpPush, OpExact1, OpPop, OpJump, OpExact1, OpEnd}},
		{"a+?", 0, []Opcode{OpExact1, OpJump, OpExact1, OpPush, OpEnd}},
		{"a??", 0, []Opcode{OpPush, OpJump, OpExact1, OpEnd}},
		{"a{2,3}", 0, []Opcode{OpExact1, OpExact1, OpPush, OpExact1, OpEnd}},
		{"x{0}", 0, []Opcode{OpEnd}},
		{"(?:a|b){3,100}", 0, []Opcode{OpRepeat, OpPush, OpExact1, OpJump, OpExact1, OpRepeatInc, OpEnd}},
		{"(?:a|b){3,100}?", 0, []Opcode{OpRepeatNG, OpPush, OpExact1, OpJump, OpExact1, OpRepeatIncNG, OpEnd}},
		{"(a)", 0, []Opcode{OpMemoryStart, OpExact1, OpMemoryEnd, OpEnd}},
		{`(a)\1`, 0, []Opcode{OpMemoryStartPush, OpExact1, OpMemoryEnd, OpBackref1, OpEnd}},
		{"(?=a)", 0, []Opcode{OpPushPos, OpExact1, OpPopPos, OpEnd}},
		{"(?!a)", 0, []Opcode{OpPushPosNot, OpExact1, OpFailPos, OpEnd}},
		{"(?<=ab)c", 0, []Opcode{OpLookBehind, OpExact2, OpExact1, OpEnd}},
		{"(?<!a)b", 0, []Opcode{OpPushLookBehindNot, OpExact1, OpFailLookBehindNot, OpExact1, OpEnd}},
		{"(?>a|b)", 0, []Opcode{OpPushStopBT, OpPush, OpExact1, OpJump, OpExact1, OpPopStopBT, OpEnd}},
		{".*", 0, []Opcode{OpAnyCharStar, OpEnd}},
		{".*", syntax.OptionMultiline, []Opcode{OpAnyCharMLStar, OpEnd}},
		{".*a", 0, []Opcode{OpAnyCharStarPeekNext, OpExact1, OpEnd}},
		{".", syntax.OptionMultiline, []Opcode{OpAnyCharML, OpEnd}},
		{`\w`, 0, []Opcode{OpWord, OpEnd}},
		{`\W`, 0, []Opcode{OpNotWord, OpEnd}},
		{"[a-c]", 0, []Opcode{OpCClass, OpEnd}},
		{"[^a]", 0, []Opcode{OpCClassNot, OpEnd}},
		{"[あ-ん]", 0, []Opcode{OpCClassMB, OpEnd}},
		{"[aあ]", 0, []Opcode{OpCClassMix, OpEnd}},
		{`\Aa\z`, 0, []Opcode{OpBeginBuf, OpExact1, OpEndBuf, OpEnd}},
		{`^a$`, 0, []Opcode{OpBeginLine, OpExact1, OpEndLine, OpEnd}},
		{`\Ga\Z`, 0, []Opcode{OpBeginPosition, OpExact1, OpSemiEndBuf, OpEnd}},
		{`\ba\B`, 0, []Opcode{OpWordBound, OpExact1, OpNotWordBound, OpEnd}},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			p := compileWith(t, tt.pattern, tt.opts, analysis.DefaultConfig())
			if got := ops(p); !equalOps(got, tt.want) {
				t.Errorf("ops = %v, want %v\n%s", got, tt.want, p)
			}
		})
	}
}

func TestCompileDisassembly(t *testing.T) {
	p := mustCompile(t, "abc")
	want := "   0: exact3 \"abc\"\n   3: end\n"
	if got := p.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	p = mustCompile(t, "(?:a|b){3,100}")
	if s := p.String(); !strings.Contains(s, "repeat id:0{3,100} ->") {
		t.Errorf("disassembly lacks repeat range:\n%s", s)
	}
	if p.NumRepeat != 1 || p.RepeatRanges[0] != (RepeatRange{Lower: 3, Upper: 100}) {
		t.Errorf("repeat ranges = %v (NumRepeat %d)", p.RepeatRanges, p.NumRepeat)
	}
	if p.PopLevel != analysis.PopAll {
		t.Errorf("PopLevel = %s, want ALL", p.PopLevel)
	}
}

func TestCompileJumpTargets(t *testing.T) {
	// a|b: push at 0 -> second branch at 6, jump at 4 -> end at 8.
	p := mustCompile(t, "a|b")
	if got := p.Inst(0); got != "push ->6" {
		t.Errorf("Inst(0) = %q, want %q", got, "push ->6")
	}
	if got := p.Inst(4); got != "jump ->8" {
		t.Errorf("Inst(4) = %q, want %q", got, "jump ->8")
	}
}

func TestCompileTemplatesShared(t *testing.T) {
	p := mustCompile(t, "abcdef|bcd")
	if len(p.Templates) != 1 {
		t.Fatalf("templates = %q, want one shared template", p.Templates)
	}
	pc := findOp(p, OpExact3)
	if pc < 0 {
		t.Fatalf("no exact3 in\n%s", p)
	}
	if got := p.Inst(pc); got != `exact3 "bcd"` {
		t.Errorf("Inst = %q", got)
	}
}

func TestCompileBackrefs(t *testing.T) {
	tests := []struct {
		pattern string
		op      Opcode
		inst    string
	}{
		{`(a)(b)\2`, OpBackref2, "backref2"},
		{`(a)(b)(c)\3`, OpBackrefN, "backrefn mem:3"},
		{`(?i:(a)\1)`, OpBackrefNIC, "backrefn-ic mem:1"},
		{`(?<a>x)(?<a>y)\k<a>`, OpBackrefMulti, "backref-multi mems:2,1"},
		{`(?<a>x)\k<a+0>`, OpBackrefWithLevel, "backref-with-level level:0 mems:1"},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			p := mustCompile(t, tt.pattern)
			pc := findOp(p, tt.op)
			if pc < 0 {
				t.Fatalf("no %s in\n%s", tt.op, p)
			}
			if got := p.Inst(pc); got != tt.inst {
				t.Errorf("Inst = %q, want %q", got, tt.inst)
			}
		})
	}
}

func TestCompileCalls(t *testing.T) {
	t.Run("recursive group", func(t *testing.T) {
		p := mustCompile(t, `(?<p>a|\(\g<p>\))`)
		got := ops(p)
		if got[0] != OpCall || got[1] != OpJump {
			t.Fatalf("program does not start with call/jump:\n%s", p)
		}
		if p.Code[1] != 4 {
			t.Errorf("call target = %d, want 4", p.Code[1])
		}
		if findOp(p, OpMemoryEndRec) < 0 || findOp(p, OpReturn) < 0 {
			t.Errorf("missing recursive end or return:\n%s", p)
		}
	})

	t.Run("referred definition", func(t *testing.T) {
		p := mustCompile(t, `(?<n>x){0}\g<n>`)
		got := ops(p)
		if got[0] != OpJump {
			t.Fatalf("definition is not jumped over:\n%s", p)
		}
		calls := 0
		for _, op := range got {
			if op == OpCall {
				calls++
			}
		}
		if calls != 2 {
			t.Errorf("calls = %d, want 2\n%s", calls, p)
		}
	})
}

func TestCompileExplosionChecks(t *testing.T) {
	p := mustCompile(t, "(a+)+b")
	if p.NumCombExpCheck != 1 {
		t.Fatalf("NumCombExpCheck = %d, want 1", p.NumCombExpCheck)
	}
	pc := findOp(p, OpStateCheckPush)
	if pc < 0 {
		t.Fatalf("no state-check-push in\n%s", p)
	}
	if !strings.HasPrefix(p.Inst(pc), "state-check-push check:1 ->") {
		t.Errorf("Inst = %q", p.Inst(pc))
	}

	cfg := analysis.DefaultConfig()
	cfg.EnableCombExpCheck = false
	p = compileWith(t, "(a+)+b", 0, cfg)
	if findOp(p, OpStateCheckPush) >= 0 {
		t.Errorf("state checks emitted with checks disabled:\n%s", p)
	}
	if findOp(p, OpPushOrJumpExact1) < 0 {
		t.Errorf("expected push-or-jump-e1 without checks:\n%s", p)
	}
}

func TestCompileNullCheck(t *testing.T) {
	tests := []struct {
		pattern string
		end     Opcode
	}{
		{"(?:a?)*b", OpNullCheckEnd},
		{"(a?)*b", OpNullCheckEndMemst},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			p := mustCompile(t, tt.pattern)
			if findOp(p, OpNullCheckStart) < 0 || findOp(p, tt.end) < 0 {
				t.Errorf("want null-check-start and %s in\n%s", tt.end, p)
			}
			if p.NumNullCheck != 1 {
				t.Errorf("NumNullCheck = %d, want 1", p.NumNullCheck)
			}
		})
	}
}

func TestCompileIgnoreCase(t *testing.T) {
	cfg := analysis.DefaultConfig()
	cfg.CaseFoldAltThreshold = 1
	p := compileWith(t, "abcdef", syntax.OptionIgnoreCase, cfg)
	if findOp(p, OpExactNIC) < 0 && findOp(p, OpExact1IC) < 0 {
		t.Errorf("no case-insensitive literal in\n%s", p)
	}
	for _, tmpl := range p.Templates {
		if !bytes.Equal(tmpl, syntax.FoldString(syntax.UTF8, tmpl)) {
			t.Errorf("template %q is not folded", tmpl)
		}
	}
}

func TestValidate(t *testing.T) {
	base := func() *Program {
		return &Program{
			Code:      []int32{int32(OpExact2), 0, 0, int32(OpJump), 0, int32(OpEnd)},
			Templates: [][]byte{[]byte("ab")},
			NumMem:    1,
		}
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("valid program rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(p *Program)
	}{
		{"undefined opcode", func(p *Program) { p.Code[5] = 9999 }},
		{"truncated operand", func(p *Program) { p.Code = p.Code[:4] }},
		{"jump out of code", func(p *Program) { p.Code[4] = 100 }},
		{"jump into operand", func(p *Program) { p.Code[4] = -3 }},
		{"template out of range", func(p *Program) { p.Code[1] = 3 }},
		{"literal past template", func(p *Program) { p.Code[2] = 1 }},
		{"group out of range", func(p *Program) {
			p.Code = []int32{int32(OpMemoryStart), 2, int32(OpEnd)}
		}},
		{"repeat id out of range", func(p *Program) {
			p.Code = []int32{int32(OpRepeatInc), 0, int32(OpEnd)}
		}},
		{"call into operand", func(p *Program) {
			p.Code = []int32{int32(OpCall), 1, int32(OpEnd)}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base()
			tt.mutate(p)
			err := p.Validate()
			var ie *InternalError
			if !errors.As(err, &ie) {
				t.Fatalf("Validate() = %v, want *InternalError", err)
			}
		})
	}
}

func TestGenerateGo(t *testing.T) {
	p := mustCompile(t, `(?<word>[a-z]+)\s*=\s*(?<value>\d+)`)
	var buf bytes.Buffer
	if err := GenerateGo(&buf, p, "patterns", "Assignment"); err != nil {
		t.Fatalf("GenerateGo error: %v", err)
	}
	src := buf.String()
	for _, want := range []string{
		"// Code generated by btregex. DO NOT EDIT.",
		"package patterns",
		"var Assignment = bytecode.MustLoad(&bytecode.Program{",
		"Enc:",
		"syntax.UTF8",
		`"word":`,
		"analysis.Optimization{",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("generated source lacks %q:\n%s", want, src)
		}
	}
}

func TestLoadRebuildsSkipTables(t *testing.T) {
	p := mustCompile(t, "abcab")
	if p.Opt.Kind != analysis.OptExactBM {
		t.Fatalf("Opt.Kind = %s, want exact-bm", p.Opt.Kind)
	}
	opt := *p.Opt
	opt.BMSkip = [256]int{}
	opt.BMBackSkip = [256]int{}
	q := &Program{
		Code:      p.Code,
		Templates: p.Templates,
		Opt:       &opt,
	}
	q, err := Load(q)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if q.Opt.BMSkip != p.Opt.BMSkip || q.Opt.BMBackSkip != p.Opt.BMBackSkip {
		t.Error("Load did not rebuild the skip tables")
	}
	if q.Enc != syntax.UTF8 {
		t.Errorf("Load Enc = %v, want UTF8", q.Enc)
	}
}

func TestMustLoadPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustLoad did not panic on a malformed program")
		}
	}()
	MustLoad(&Program{Code: []int32{int32(OpJump), 5}})
}
