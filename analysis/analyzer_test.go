package analysis

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/coregx/btregex/syntax"
)

func mustParse(t *testing.T, pattern string, opts syntax.Options, syn *syntax.Syntax) *syntax.Tree {
	t.Helper()
	tree, err := syntax.Parse(pattern, opts, syn, nil)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", pattern, err)
	}
	return tree
}

func mustAnalyze(t *testing.T, pattern string, opts syntax.Options, syn *syntax.Syntax) *Result {
	t.Helper()
	res, err := Analyze(mustParse(t, pattern, opts, syn), DefaultConfig())
	if err != nil {
		t.Fatalf("Analyze(%q) error: %v", pattern, err)
	}
	return res
}

// TestMatchLengthBounds checks the min/max byte length of whole patterns.
func TestMatchLengthBounds(t *testing.T) {
	tests := []struct {
		pattern  string
		min, max int
	}{
		{"abc", 3, 3},
		{"a*", 0, InfiniteDistance},
		{"a+", 1, InfiniteDistance},
		{"a?", 0, 1},
		{"a{2,3}", 2, 3},
		{"(a|bc)d", 2, 3},
		{`(a)\1`, 2, 2},
		{"(ab)*x", 1, InfiniteDistance},
		{".", 1, 4},
		{"[a-z]{2}", 2, 8},
		{`\Aab\z`, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			res := mustAnalyze(t, tt.pattern, 0, nil)
			if res.MinLen != tt.min || res.MaxLen != tt.max {
				t.Errorf("bounds = [%d,%d], want [%d,%d]", res.MinLen, res.MaxLen, tt.min, tt.max)
			}
		})
	}
}

// TestRewrites checks the tree after setup.
func TestRewrites(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		opts    syntax.Options
		want    string
	}{
		{"possessive literal", "a*b", 0,
			`(list (enclose atomic (quant{0,inf} (str "a"))) (str "b"))`},
		{"possessive class", "[0-9]+x", 0,
			`(list (enclose atomic (quant{1,inf} (cclass))) (str "x"))`},
		{"overlapping head", "a*ab", 0,
			`(list (quant{0,inf} (str "a")) (str "ab"))`},
		{"lazy untouched", "a*?b", 0,
			`(list (quant{0,inf}? (str "a")) (str "b"))`},
		{"bounded untouched", "a{2,}b", 0,
			`(list (quant{2,inf} (str "a")) (str "b"))`},
		{"repeat expanded", "(?:ab){3}", 0, `(str "ababab")`},
		{"case fold", "ab", syntax.OptionIgnoreCase,
			`(list (alt (str "a") (str "A")) (alt (str "b") (str "B")))`},
		{"case fold digits", "1a", syntax.OptionIgnoreCase,
			`(list (str "1") (alt (str "a") (str "A")))`},
		{"case fold threshold", "abcd", syntax.OptionIgnoreCase,
			`(list (alt (str "a") (str "A")) (alt (str "b") (str "B")) (alt (str "c") (str "C")) (str "d" ic))`},
		{"look-behind split", "(?<=a|bc)d", 0,
			`(list (alt (anchor look-behind (str "a")) (anchor look-behind (str "bc"))) (str "d"))`},
		{"negative look-behind split", "(?<!a|bc)d", 0,
			`(list (list (anchor look-behind-not (str "a")) (anchor look-behind-not (str "bc"))) (str "d"))`},
		{"unnamed group dropped", "(?<n>x)(a*)?", 0,
			`(list (enclose mem1 (str "x")) (quant{0,inf} (str "a")))`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mustAnalyze(t, tt.pattern, tt.opts, nil)
			if got := res.Tree.Dump(res.Tree.Root); got != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

// TestAutoPossessiveDisabled checks the config switch.
func TestAutoPossessiveDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableAutoPossessive = false
	res, err := Analyze(mustParse(t, "a*b", 0, nil), cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := `(list (quant{0,inf} (str "a")) (str "b"))`
	if got := res.Tree.Dump(res.Tree.Root); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

// TestNextHeadExact checks the literal recorded after a greedy repeat.
func TestNextHeadExact(t *testing.T) {
	res := mustAnalyze(t, "(a)*xy", 0, nil)
	tree := res.Tree
	var quant syntax.NodeID = syntax.NoNode
	for id, n := range tree.Nodes {
		if n.Kind == syntax.KindQuant {
			quant = syntax.NodeID(id)
		}
	}
	if quant == syntax.NoNode {
		t.Fatal("no quantifier")
	}
	next := tree.Ann[quant].NextHeadExact
	if next == syntax.NoNode || string(tree.N(next).Bytes) != "xy" {
		t.Errorf("NextHeadExact = %v, want the \"xy\" string", next)
	}
}

// TestAnalyzeErrors checks the pattern errors raised by analysis.
func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		syn     *syntax.Syntax
		want    error
	}{
		{"variable look-behind", "(?<=a*)b", nil, syntax.ErrInvalidLookBehind},
		{"nested variable look-behind", "(?<=a(?:b|cd))e", nil, syntax.ErrInvalidLookBehind},
		{"perl alternation look-behind", "(?<=a|bc)d", syntax.SyntaxPerl, syntax.ErrInvalidLookBehind},
		{"backref in look-behind", `(a)(?<=\1)`, nil, syntax.ErrInvalidLookBehind},
		{"atomic in look-behind", "(?<=(?>a))b", nil, syntax.ErrInvalidLookBehind},
		{"capture in negative look-behind", "(?<!(a))b", nil, syntax.ErrInvalidLookBehind},
		{"backref out of range", `(a)\2`, nil, syntax.ErrInvalidBackref},
		{"numbered backref with names", `(?<a>x)\1`, nil, syntax.ErrNumberedBackrefNotAllowed},
		{"numbered call with names", `(?<a>x)\g<1>`, nil, syntax.ErrNumberedBackrefNotAllowed},
		{"left recursion", `(?<a>\g<a>)`, nil, syntax.ErrNeverEndingRecursion},
		{"recursion without base", `(?<a>a\g<a>)`, nil, syntax.ErrNeverEndingRecursion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Analyze(mustParse(t, tt.pattern, 0, tt.syn), DefaultConfig())
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var pe *syntax.PatternError
			if !errors.As(err, &pe) {
				t.Errorf("error %T is not *syntax.PatternError", err)
			}
		})
	}
}

// TestRecursionMarking checks that self-calling groups are marked.
func TestRecursionMarking(t *testing.T) {
	res := mustAnalyze(t, `(?<p>a|\(\g<p>\))`, 0, nil)
	env := res.Tree.Env
	if !env.HasRecursion {
		t.Fatal("HasRecursion = false")
	}
	if !res.Tree.Has(env.MemNodes[1], syntax.StateRecursion) {
		t.Error("group p not marked recursive")
	}
	if res.NumCombExpCheck != 0 {
		t.Errorf("NumCombExpCheck = %d, want 0 with recursion", res.NumCombExpCheck)
	}
}

// TestLookBehindCharLen checks the width recorded on a look-behind.
func TestLookBehindCharLen(t *testing.T) {
	tests := []struct {
		pattern string
		want    int
	}{
		{"(?<=abc)d", 3},
		{"(?<=a.c)d", 3},
		{"(?<=(?:ab){2})d", 4},
		{"(?<=é)d", 1},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			res := mustAnalyze(t, tt.pattern, 0, nil)
			tree := res.Tree
			for id, n := range tree.Nodes {
				if n.Kind == syntax.KindAnchor && n.Anchor == syntax.AnchorLookBehind {
					if got := tree.Ann[id].CharLen; got != tt.want {
						t.Errorf("CharLen = %d, want %d", got, tt.want)
					}
					return
				}
			}
			t.Fatal("no look-behind anchor")
		})
	}
}

// TestCombExpCheck checks explosion-check placement.
func TestCombExpCheck(t *testing.T) {
	tests := []struct {
		pattern string
		want    int
	}{
		{"(a+)+b", 1},
		{"(?:a*)*b", 1},
		{"(a|b)*c", 0},
		{"a+b", 0},
		{`(a+)+\1`, 0},
		{"(?:ab?)+c", 1},
		{"(?:a{0,600}){0,600}", 0},
		{"(?:a{0,3}){2,4}", 0},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			res := mustAnalyze(t, tt.pattern, 0, nil)
			if res.NumCombExpCheck != tt.want {
				t.Errorf("NumCombExpCheck = %d, want %d", res.NumCombExpCheck, tt.want)
			}
		})
	}

	t.Run("disabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EnableCombExpCheck = false
		res, err := Analyze(mustParse(t, "(a+)+b", 0, nil), cfg)
		if err != nil {
			t.Fatal(err)
		}
		if res.NumCombExpCheck != 0 {
			t.Errorf("NumCombExpCheck = %d, want 0", res.NumCombExpCheck)
		}
	})
}

// TestOptimization checks the search hints chosen for whole patterns.
func TestOptimization(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		opts    syntax.Options
		kind    OptKind
		exact   string
		dmin    int
		dmax    int
		anchor  syntax.AnchorType
	}{
		{"literal", "abc", 0, OptExactBM, "abc", 0, 0, 0},
		{"two bytes", "ab", 0, OptExactBM, "ab", 0, 0, 0},
		{"common byte", "a", 0, OptExact, "a", 0, 0, 0},
		{"rare byte", "z", 0, OptMap, "", 0, 0, 0},
		{"literal after class", `\d+hello`, 0, OptExactBM, "hello", 1, InfiniteDistance, 0},
		{"rare leading byte", "x+hello", 0, OptMap, "", 0, 0, 0},
		{"fixed offset", "..hello", 0, OptExactBM, "hello", 2, 8, 0},
		{"begin buf", `\Aabc`, 0, OptExactBM, "abc", 0, 0, syntax.AnchorBeginBuf},
		{"anychar star", ".*abc", 0, OptExactBM, "abc", 0, InfiniteDistance, syntax.AnchorAnycharStar},
		{"anychar star ml", ".*abc", syntax.OptionMultiline, OptExactBM, "abc", 0, InfiniteDistance, syntax.AnchorAnycharStarML},
		{"common prefix", "abcx|abcy", 0, OptExactBM, "abc", 0, 0, 0},
		{"multi literal", "foo|bar|baz|qux", 0, OptMultiLiteral, "", 0, 0, 0},
		{"repeat literal", "(?:ab){2,5}", 0, OptExactBM, "abab", 0, 0, 0},
		{"no hint", "(?:a|.)", 0, OptNone, "", 0, InfiniteDistance, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt := mustAnalyze(t, tt.pattern, tt.opts, nil).Opt
			if opt.Kind != tt.kind {
				t.Fatalf("Kind = %s, want %s (%s)", opt.Kind, tt.kind, opt)
			}
			if tt.exact != "" && string(opt.Exact) != tt.exact {
				t.Errorf("Exact = %q, want %q", opt.Exact, tt.exact)
			}
			if opt.Kind != OptNone && (opt.DMin != tt.dmin || opt.DMax != tt.dmax) {
				t.Errorf("dist = [%d,%d], want [%d,%d]", opt.DMin, opt.DMax, tt.dmin, tt.dmax)
			}
			if opt.Anchor != tt.anchor {
				t.Errorf("Anchor = %s, want %s", opt.Anchor, tt.anchor)
			}
		})
	}
}

// TestOptimizationDetails checks derived tables and thresholds.
func TestOptimizationDetails(t *testing.T) {
	t.Run("end anchor", func(t *testing.T) {
		opt := mustAnalyze(t, `ab+\z`, 0, nil).Opt
		if opt.Anchor != syntax.AnchorEndBuf {
			t.Fatalf("Anchor = %s", opt.Anchor)
		}
		if opt.AnchorDMin != 2 || opt.AnchorDMax != InfiniteDistance {
			t.Errorf("anchor dist = [%d,%d]", opt.AnchorDMin, opt.AnchorDMax)
		}
	})

	t.Run("threshold", func(t *testing.T) {
		opt := mustAnalyze(t, "..hello", 0, nil).Opt
		if opt.ThresholdLen != 7 {
			t.Errorf("ThresholdLen = %d, want 7", opt.ThresholdLen)
		}
	})

	t.Run("skip tables", func(t *testing.T) {
		opt := mustAnalyze(t, "abcab", 0, nil).Opt
		if opt.Kind != OptExactBM {
			t.Fatalf("Kind = %s", opt.Kind)
		}
		if opt.BMSkip['a'] != 2 || opt.BMSkip['b'] != 1 || opt.BMSkip['c'] != 3 || opt.BMSkip['z'] != 6 {
			t.Errorf("BMSkip a=%d b=%d c=%d z=%d", opt.BMSkip['a'], opt.BMSkip['b'], opt.BMSkip['c'], opt.BMSkip['z'])
		}
		if opt.BMBackSkip['a'] != 1 || opt.BMBackSkip['b'] != 2 || opt.BMBackSkip['c'] != 3 || opt.BMBackSkip['z'] != 6 {
			t.Errorf("BMBackSkip a=%d b=%d c=%d z=%d", opt.BMBackSkip['a'], opt.BMBackSkip['b'], opt.BMBackSkip['c'], opt.BMBackSkip['z'])
		}
	})

	t.Run("ignore case", func(t *testing.T) {
		opt := mustAnalyze(t, "abcdef", syntax.OptionIgnoreCase, nil).Opt
		if opt.Kind != OptExactIC {
			t.Fatalf("Kind = %s (%s)", opt.Kind, opt)
		}
		if want := syntax.FoldString(syntax.UTF8, []byte("def")); !bytes.Equal(opt.Exact, want) {
			t.Errorf("Exact = %q, want %q", opt.Exact, want)
		}
		if opt.DMin != 3 || opt.DMax != 3 {
			t.Errorf("dist = [%d,%d], want [3,3]", opt.DMin, opt.DMax)
		}
	})

	t.Run("map bytes", func(t *testing.T) {
		opt := mustAnalyze(t, "[xz]q", 0, nil).Opt
		if opt.Kind == OptMap && (!opt.Map['x'] || !opt.Map['z'] || opt.Map['q']) {
			t.Errorf("Map x=%v z=%v q=%v", opt.Map['x'], opt.Map['z'], opt.Map['q'])
		}
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EnableOptimization = false
		res, err := Analyze(mustParse(t, "abc", 0, nil), cfg)
		if err != nil {
			t.Fatal(err)
		}
		if res.Opt.Kind != OptNone {
			t.Errorf("Kind = %s, want none", res.Opt.Kind)
		}
	})
}

// TestCaptureRenumbering checks that unnamed groups stop capturing once
// named groups exist.
func TestCaptureRenumbering(t *testing.T) {
	res := mustAnalyze(t, `(?<a>x)(y)(?<b>z)\k<b>`, 0, nil)
	env := res.Tree.Env
	if env.NumMem != 2 {
		t.Fatalf("NumMem = %d, want 2", env.NumMem)
	}
	if len(env.MemNodes) != 3 {
		t.Fatalf("len(MemNodes) = %d, want 3", len(env.MemNodes))
	}
	if got := env.NameToGroups("b"); len(got) != 1 || got[0] != 2 {
		t.Errorf("b = %v, want [2]", got)
	}
	if n := res.Tree.N(env.MemNodes[2]); n.Regnum != 2 {
		t.Errorf("MemNodes[2].Regnum = %d, want 2", n.Regnum)
	}
	if !env.BackrefedMem.At(2) || env.BackrefedMem.At(3) {
		t.Errorf("BackrefedMem = %b", env.BackrefedMem)
	}

	perl := mustAnalyze(t, `(?<a>x)(y)\2`, 0, syntax.SyntaxPerl)
	if perl.Tree.Env.NumMem != 2 {
		t.Errorf("perl NumMem = %d, want 2", perl.Tree.Env.NumMem)
	}
}

// TestBtMem checks which groups need backtrack-safe bookkeeping.
func TestBtMem(t *testing.T) {
	tests := []struct {
		pattern    string
		start, end syntax.MemStatus
		level      PopLevel
	}{
		{"(a)b", 0, 0, PopFree},
		{"(a)|b", 1 << 1, 0, PopMemStart},
		{`(a)\1`, 1 << 1, 0, PopMemStart},
		{`(?<n>a)\k<n+0>`, 1 << 1, 1 << 1, PopAll},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			res := mustAnalyze(t, tt.pattern, 0, nil)
			if res.BtMemStart != tt.start || res.BtMemEnd != tt.end {
				t.Errorf("bt mem = (%b,%b), want (%b,%b)", res.BtMemStart, res.BtMemEnd, tt.start, tt.end)
			}
			if got := SelectPopLevel(0, res.BtMemStart, res.BtMemEnd); got != tt.level {
				t.Errorf("pop level = %s, want %s", got, tt.level)
			}
		})
	}

	t.Run("find longest", func(t *testing.T) {
		res := mustAnalyze(t, "(a)", syntax.OptionFindLongest, nil)
		if res.BtMemEnd != syntax.MemStatusAll {
			t.Errorf("BtMemEnd = %b, want all", res.BtMemEnd)
		}
	})
}

// TestSelectPopLevel checks the pop level table.
func TestSelectPopLevel(t *testing.T) {
	tests := []struct {
		repeats    int
		start, end syntax.MemStatus
		want       PopLevel
	}{
		{0, 0, 0, PopFree},
		{0, 2, 0, PopMemStart},
		{1, 0, 0, PopAll},
		{0, 0, 2, PopAll},
		{2, 2, 2, PopAll},
	}
	for _, tt := range tests {
		if got := SelectPopLevel(tt.repeats, tt.start, tt.end); got != tt.want {
			t.Errorf("SelectPopLevel(%d,%b,%b) = %s, want %s", tt.repeats, tt.start, tt.end, got, tt.want)
		}
	}
}

// TestLogger checks that decisions reach an enabled logger only.
func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(true)
	l.SetOutput(&buf)
	cfg := DefaultConfig()
	cfg.Logger = l
	if _, err := Analyze(mustParse(t, "a*b", 0, nil), cfg); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"=== analyze a*b ===", "auto-possessive", "optimization:"} {
		if !strings.Contains(out, want) {
			t.Errorf("log misses %q:\n%s", want, out)
		}
	}

	var nilLogger *Logger
	nilLogger.Log("ignored %d", 1)
	if nilLogger.Enabled() {
		t.Error("nil logger reports enabled")
	}
}
