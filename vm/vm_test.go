package vm

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/coregx/btregex/analysis"
	"github.com/coregx/btregex/bytecode"
	"github.com/coregx/btregex/syntax"
)

func compileWith(t *testing.T, pattern string, opts syntax.Options, cfg analysis.Config) *bytecode.Program {
	t.Helper()
	tree, err := syntax.Parse(pattern, opts, nil, nil)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", pattern, err)
	}
	res, err := analysis.Analyze(tree, cfg)
	if err != nil {
		t.Fatalf("Analyze(%q) error: %v", pattern, err)
	}
	prog, err := bytecode.Compile(res)
	if err != nil {
		t.Fatalf("Compile(%q) error: %v", pattern, err)
	}
	return prog
}

func mustCompile(t *testing.T, pattern string) *bytecode.Program {
	t.Helper()
	return compileWith(t, pattern, syntax.OptionNone, analysis.DefaultConfig())
}

// scan tries every character head of text in order and returns the spans
// of the first match, or nil.
func scan(t *testing.T, m *Machine, text string) []int {
	t.Helper()
	spans, _, err := scanState(m, text)
	if err != nil {
		t.Fatalf("scan(%q) error: %v", text, err)
	}
	return spans
}

func scanState(m *Machine, text string) ([]int, uint64, error) {
	st := m.Acquire(context.Background(), Input{Text: []byte(text)})
	defer m.Release(st)
	b := []byte(text)
	for at := 0; at <= len(b); {
		n, err := st.MatchAt(at)
		if err != nil {
			return nil, st.Steps(), err
		}
		if n >= 0 {
			r := st.Region()
			spans := make([]int, 0, 2*r.NumRegs())
			for i := range r.Beg {
				spans = append(spans, r.Beg[i], r.End[i])
			}
			return spans, st.Steps(), nil
		}
		if at == len(b) {
			break
		}
		at += m.enc.CharLen(b, at)
	}
	return nil, st.Steps(), nil
}

func equalSpans(got, want []int) bool {
	if want == nil || got == nil {
		return want == nil && got == nil
	}
	if len(want) == 2 && len(got) >= 2 {
		return got[0] == want[0] && got[1] == want[1]
	}
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		text    string
		want    []int // group spans; two values check only the whole match
	}{
		{"literal", "abc", "xxabcx", []int{2, 5}},
		{"group", "a(b)c", "abc", []int{0, 3, 1, 2}},
		{"leftmost first", "a|ab", "ab", []int{0, 1}},
		{"greedy star", "a*", "aaa", []int{0, 3}},
		{"lazy star", "a*?", "aaa", []int{0, 0}},
		{"lazy plus", "a+?b", "aaab", []int{0, 4}},
		{"loop capture", "(a|b)*c", "ababc", []int{0, 5, 3, 4}},
		{"bounded", "a{2,3}", "aaaa", []int{0, 3}},
		{"bounded lazy", "a{2,3}?", "aaaa", []int{0, 2}},
		{"fixed group repeat", "(?:ab){2}", "ababab", []int{0, 4}},
		{"range repeat", "(?:a|bc){3,5}d", "abcaad", []int{0, 6}},
		{"range repeat lazy", "(?:a|b){2,4}?", "abab", []int{0, 2}},
		{"no match", "abd", "abc", nil},
		{"empty pattern", "", "abc", []int{0, 0}},
		{"empty text", "x*", "", []int{0, 0}},
		{"alternative capture", "(a)|b", "b", []int{0, 1, -1, -1}},
		{"capture kept across iterations", "(?:(a)|b)+", "ab", []int{0, 2, 0, 1}},
		{"backtrack into alternation", "(?:a|ab)(?:c|bcd)(d*)", "abcd", []int{0, 4, 4, 4}},

		{"backref", `(a)\1`, "xaa", []int{1, 3, 1, 2}},
		{"backref ignore case", `(?i)(a)\1`, "aA", []int{0, 2, 0, 1}},
		{"backref unset", `(a)?\1b`, "b", nil},
		{"named backref", `(?<n>a)\k<n>`, "aa", []int{0, 2, 0, 1}},
		{"backref n", `(a)(b)(c)\3`, "abcc", []int{0, 4, 0, 1, 1, 2, 2, 3}},
		{"multiplex backref", `(?<n>a)(?<n>b)\k<n>`, "abb", []int{0, 3, 0, 1, 1, 2}},

		{"ignore case", "(?i:hello)", "say HeLLo", []int{4, 9}},
		{"ignore case class", "(?i)[a-c]+", "xxABCd", []int{2, 5}},
		{"ignore case multibyte", "(?i)σας", "ΣΑΣ", []int{0, 6}},

		{"class", "[a-c]+", "xxbcad", []int{2, 5}},
		{"negated class", "[^a-c]+", "abxyc", []int{2, 4}},
		{"multibyte class", "[α-ω]+", "abγδe", []int{2, 6}},
		{"negated class multibyte", "[^a]", "aé", []int{1, 3}},
		{"mixed class", "[aα]+", "xaαa", []int{1, 5}},
		{"word", `\w+`, "  héllo!", []int{2, 8}},
		{"not word", `\W+`, "ab, cd", []int{2, 4}},
		{"digit class", `\d+`, "ab123", []int{2, 5}},

		{"dot", ".", "\n", nil},
		{"dot multiline", "(?m).", "\n", []int{0, 1}},
		{"dot star", ".*b", "aab\nb", []int{0, 3}},
		{"dot star peek", ".*c", "abcabc", []int{0, 6}},
		{"dot star multiline", "(?m).*", "a\nb", []int{0, 3}},

		{"word boundary", `\bfoo\b`, "afoo foo", []int{5, 8}},
		{"not word boundary", `\Boo`, "oo foo", []int{4, 6}},
		{"begin line", "^b", "a\nb", []int{2, 3}},
		{"end line", "a$", "a\nb", []int{0, 1}},
		{"begin buf", `\Aa`, "ba", nil},
		{"end buf", `b\z`, "ab\n", nil},
		{"semi end buf", `b\Z`, "ab\n", []int{1, 2}},
		{"begin position", `\Ga`, "aa", []int{0, 1}},

		{"look ahead", "foo(?=bar)", "foobaz foobar", []int{7, 10}},
		{"negative look ahead", "foo(?!bar)", "foobar foobaz", []int{7, 10}},
		{"look behind", "(?<=a)b", "cbab", []int{3, 4}},
		{"negative look behind", "(?<!a)b", "abcb", []int{3, 4}},
		{"negative look behind at start", "(?<!a)b", "b", []int{0, 1}},
		{"look behind multibyte", "(?<=é)x", "éx", []int{2, 3}},
		{"look ahead capture", "(?=(a+))a", "aaa", []int{0, 1, 0, 3}},
		{"atomic", "(?>a+)b", "aaab", []int{0, 4}},
		{"atomic no backtrack", "(?>a*)a", "aaa", nil},
		{"possessive", "a++a", "aaa", nil},

		{"recursion", `(?<p>\((?:[^()]|\g<p>)*\))`, "x((a)(b))y", []int{1, 9, 1, 9}},
		{"nested call", `(?<a>a\g<a>?b)`, "aaabbb", []int{0, 6, 0, 6}},
		{"palindrome", `\A(?<a>|.|(?:(?<b>.)\g<a>\k<b+0>))\z`, "abcba", []int{0, 5}},
		{"not palindrome", `\A(?<a>|.|(?:(?<b>.)\g<a>\k<b+0>))\z`, "abca", nil},

		{"null loop", "(a*)*b", "aab", []int{0, 3}},
		{"null loop alternation", "(?:a|)*c", "aac", []int{0, 3}},
		{"lazy null loop", "(a?)*?b", "aab", []int{0, 3}},
		{"nested null loop", "((a*)*)*b", "ab", []int{0, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(mustCompile(t, tt.pattern), DefaultConfig())
			if got := scan(t, m, tt.text); !equalSpans(got, tt.want) {
				t.Errorf("%q on %q = %v, want %v", tt.pattern, tt.text, got, tt.want)
			}
		})
	}
}

func TestMatchAtAnchored(t *testing.T) {
	m := New(mustCompile(t, "b+"), DefaultConfig())
	in := Input{Text: []byte("abbc")}
	tests := []struct {
		at   int
		want int
	}{
		{0, -1},
		{1, 2},
		{2, 1},
		{3, -1},
		{4, -1},
	}
	for _, tt := range tests {
		region := NewRegion(1)
		n, err := m.MatchAt(context.Background(), in, tt.at, region)
		if err != nil {
			t.Fatal(err)
		}
		if n != tt.want {
			t.Errorf("MatchAt(%d) = %d, want %d", tt.at, n, tt.want)
		}
		if n >= 0 && (region.Beg[0] != tt.at || region.End[0] != tt.at+n) {
			t.Errorf("MatchAt(%d) region = [%d,%d]", tt.at, region.Beg[0], region.End[0])
		}
	}
}

func TestSearchOptions(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		text    string
		opts    syntax.Options
		at      int
		want    int
	}{
		{"not bol", "^a", "a", syntax.OptionNotBOL, 0, -1},
		{"bol", "^a", "a", syntax.OptionNone, 0, 1},
		{"not eol", "a$", "a", syntax.OptionNotEOL, 0, -1},
		{"eol before newline", "a$", "a\n", syntax.OptionNotEOL, 0, 1},
		{"not empty", "a*", "b", syntax.OptionFindNotEmpty, 0, -1},
		{"not empty takes shorter", "a*?", "ab", syntax.OptionFindNotEmpty, 0, 1},
		{"longest", "a|ab|abc", "abc", syntax.OptionFindLongest, 0, 3},
		{"gpos", `\Gb`, "ab", syntax.OptionNone, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(mustCompile(t, tt.pattern), DefaultConfig())
			in := Input{Text: []byte(tt.text), Options: tt.opts, GPos: tt.at}
			n, err := m.MatchAt(context.Background(), in, tt.at, nil)
			if err != nil {
				t.Fatal(err)
			}
			if n != tt.want {
				t.Errorf("MatchAt = %d, want %d", n, tt.want)
			}
		})
	}
}

func TestFindLongestAcrossAttempts(t *testing.T) {
	m := New(mustCompile(t, "a+|bcd"), DefaultConfig())
	text := []byte("abcdaaa")
	st := m.Acquire(context.Background(), Input{Text: text, Options: syntax.OptionFindLongest})
	defer m.Release(st)
	for at := 0; at <= len(text); at++ {
		if _, err := st.MatchAt(at); err != nil {
			t.Fatal(err)
		}
	}
	start, n := st.Longest()
	if start != 1 || n != 3 {
		t.Errorf("Longest() = %d, %d; want 1, 3", start, n)
	}
	if r := st.Region(); r.Beg[0] != 1 || r.End[0] != 4 {
		t.Errorf("region = [%d,%d], want [1,4]", r.Beg[0], r.End[0])
	}
}

func TestCaptureHistory(t *testing.T) {
	m := New(mustCompile(t, "(?@a)+"), DefaultConfig())
	region := NewRegion(2)
	in := Input{Text: []byte("aaa")}
	if n, err := m.MatchAt(context.Background(), in, 0, region); err != nil || n != 3 {
		t.Fatalf("MatchAt = %d, %v", n, err)
	}
	if region.History == nil {
		t.Fatal("no capture history")
	}
	var got []string
	region.History.Walk(func(node *CaptureTree, depth int) bool {
		got = append(got, strings.Repeat(" ", depth)+string(rune('0'+node.Group))+
			":"+string(rune('0'+node.Beg))+"-"+string(rune('0'+node.End)))
		return true
	})
	want := []string{"0:0-3", " 1:0-1", " 1:1-2", " 1:2-3"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("history = %q, want %q", got, want)
	}

	in.Options = syntax.OptionPosixRegion
	if _, err := m.MatchAt(context.Background(), in, 0, region); err != nil {
		t.Fatal(err)
	}
	if region.History != nil {
		t.Error("posix region carries a history")
	}
}

// TestPopLevelEquivalence checks that the cheapest sufficient pop level
// gives the same results as always restoring everything.
func TestPopLevelEquivalence(t *testing.T) {
	patterns := []string{
		"(a|b)*c", "(a)(b)?c", `(a+)+\1`, "(?:a|ab)(c|bcd)(d*)",
		"((a)|b)+", "(a{1,3}){2}", `(?<x>.)\k<x>+`, "(?=(a))a*",
	}
	texts := []string{"", "abc", "ababcd", "aaaa", "aabbcd", "xaaay"}
	for _, p := range patterns {
		prog := mustCompile(t, p)
		all := *prog
		all.PopLevel = analysis.PopAll
		m1 := New(prog, DefaultConfig())
		m2 := New(&all, DefaultConfig())
		for _, text := range texts {
			got, want := scan(t, m1, text), scan(t, m2, text)
			if !equalSpans(got, want) || len(got) != len(want) {
				t.Errorf("%q on %q: level %s gives %v, ALL gives %v", p, text, prog.PopLevel, got, want)
			}
		}
	}
}

// TestStateCheckSoundness checks that explosion checks never change a
// result, and that they bound the work of a catastrophic pattern.
func TestStateCheckSoundness(t *testing.T) {
	patterns := []string{"(a+)+b", "(?:a*)*b", "(?:ab?)+c", "(a+)+$", "(?:a+a+)+b", "(?:a+?)+?b"}
	texts := []string{"aaaaaaaab", "aaaaaaaaaa", "abababababc", "aabaabaabx", "aaaaaaaaa\n"}
	off := analysis.DefaultConfig()
	off.EnableCombExpCheck = false
	for _, p := range patterns {
		with := New(mustCompile(t, p), DefaultConfig())
		without := New(compileWith(t, p, syntax.OptionNone, off), DefaultConfig())
		for _, text := range texts {
			got, want := scan(t, with, text), scan(t, without, text)
			if !equalSpans(got, want) || len(got) != len(want) {
				t.Errorf("%q on %q: checked %v, unchecked %v", p, text, got, want)
			}
		}
	}

	prog := mustCompile(t, "(a+)+b")
	if prog.NumCombExpCheck == 0 {
		t.Fatal("no explosion checks compiled")
	}
	m := New(prog, DefaultConfig())
	spans, steps, err := scanState(m, strings.Repeat("a", 20)+"!")
	if err != nil || spans != nil {
		t.Fatalf("scan = %v, %v", spans, err)
	}
	if steps > 500000 {
		t.Errorf("explosion checks did not bound the search: %d steps", steps)
	}
}

func TestStateCheckDisabledForShortText(t *testing.T) {
	m := New(mustCompile(t, "(a+)+b"), DefaultConfig())
	st := m.Acquire(context.Background(), Input{Text: []byte("aab")})
	defer m.Release(st)
	if st.StateChecks() {
		t.Error("explosion checks enabled for a short subject")
	}

	cfg := DefaultConfig()
	cfg.StateCheckMaxBytes = 4
	m = New(mustCompile(t, "(a+)+b"), cfg)
	st2 := m.Acquire(context.Background(), Input{Text: []byte(strings.Repeat("a", 100))})
	defer m.Release(st2)
	if st2.StateChecks() {
		t.Error("explosion checks enabled past the size limit")
	}
}

func TestNullLoopTermination(t *testing.T) {
	patterns := []string{
		"(a*)*", "(a?)*?b", "(?:a|)*c", "(|a)+b", "(a*?)*a",
		"((a*)*)*b", "(?:a?b?)*c", "(a*)+$", "(?:a*|b)*c", "(a|)*?x",
	}
	texts := []string{"", "aaac", "bbbb", "ab\nab"}
	cfg := DefaultConfig()
	cfg.MaxStackEntries = 1 << 20
	for _, p := range patterns {
		m := New(mustCompile(t, p), cfg)
		for _, text := range texts {
			if _, _, err := scanState(m, text); err != nil {
				t.Errorf("%q on %q: %v", p, text, err)
			}
		}
	}
}

func TestStackOverflow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxStackEntries = 100
	m := New(mustCompile(t, "(a|b)*c"), cfg)
	_, err := m.MatchAt(context.Background(), Input{Text: []byte(strings.Repeat("a", 3000))}, 0, nil)
	if !errors.Is(err, ErrStackOverflow) {
		t.Errorf("err = %v, want ErrStackOverflow", err)
	}
}

func TestInterrupt(t *testing.T) {
	prog := mustCompile(t, "(a|b)*c")
	text := []byte(strings.Repeat("a", 3000))

	t.Run("flag", func(t *testing.T) {
		var stop atomic.Bool
		stop.Store(true)
		_, err := New(prog, DefaultConfig()).MatchAt(context.Background(), Input{Text: text, Interrupt: &stop}, 0, nil)
		if !errors.Is(err, ErrInterrupted) {
			t.Errorf("err = %v, want ErrInterrupted", err)
		}
	})

	t.Run("context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New(prog, DefaultConfig()).MatchAt(ctx, Input{Text: text}, 0, nil)
		if !errors.Is(err, ErrInterrupted) || !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want ErrInterrupted wrapping context.Canceled", err)
		}
	})
}

func TestInternalErrors(t *testing.T) {
	tests := []struct {
		name string
		code []int32
	}{
		{"fail pos without push", []int32{int32(bytecode.OpFailPos), int32(bytecode.OpEnd)}},
		{"return without call", []int32{int32(bytecode.OpReturn), int32(bytecode.OpEnd)}},
		{"pop pos without push", []int32{int32(bytecode.OpPopPos), int32(bytecode.OpEnd)}},
		{"bad opcode", []int32{999}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := &bytecode.Program{Code: tt.code}
			_, err := New(prog, DefaultConfig()).MatchAt(context.Background(), Input{Text: []byte("a")}, 0, nil)
			var ie *InternalError
			if !errors.As(err, &ie) {
				t.Errorf("err = %v, want *InternalError", err)
			}
		})
	}
}

// TestRegionBalanced checks that backtracking out of a group never leaves
// a start without its end: every group is either unset or a full span.
func TestRegionBalanced(t *testing.T) {
	patterns := []string{
		`(a(b)?)+c`, `(a)|(b)`, `(?:(a)(x))?ab`, `(a(b(c)?)?)*d`,
		`(?>(a)b)?a`, `((a)|b)+`, `(?<=(a))b`, `(a)(?=(b))`,
		`(?:(a)|(b))*c`, `(a*)+$`, `(?:(a)|b(?!x))+`, `(a)?\1?b`,
	}
	texts := []string{"", "abc", "aababc", "bbac", "abcd", "aaxab", "ba", "aab"}

	for _, pattern := range patterns {
		t.Run(pattern, func(t *testing.T) {
			m := New(mustCompile(t, pattern), DefaultConfig())
			for _, text := range texts {
				spans := scan(t, m, text)
				for i := 0; i+1 < len(spans); i += 2 {
					beg, end := spans[i], spans[i+1]
					if (beg == NotPos) != (end == NotPos) || beg > end {
						t.Errorf("%q: group %d = [%d, %d]", text, i/2, beg, end)
					}
				}
			}
		})
	}
}

func TestStateReuse(t *testing.T) {
	m := New(mustCompile(t, "(a)(b)?"), DefaultConfig())
	for i := 0; i < 3; i++ {
		if got := scan(t, m, "ab"); !equalSpans(got, []int{0, 2, 0, 1, 1, 2}) {
			t.Fatalf("run %d: %v", i, got)
		}
		if got := scan(t, m, "a"); !equalSpans(got, []int{0, 1, 0, 1, -1, -1}) {
			t.Fatalf("run %d: %v", i, got)
		}
	}
}

func TestRegion(t *testing.T) {
	r := NewRegion(3)
	if r.NumRegs() != 3 || r.Beg[2] != NotPos {
		t.Fatalf("NewRegion = %+v", r)
	}
	r.Beg[1], r.End[1] = 4, 6
	var c Region
	c.CopyFrom(r)
	if c.Beg[1] != 4 || c.End[1] != 6 {
		t.Errorf("CopyFrom = %+v", c)
	}
	r.Resize(1)
	if r.NumRegs() != 1 || r.Beg[0] != NotPos {
		t.Errorf("Resize = %+v", r)
	}
}
