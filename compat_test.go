package btregex

import (
	"reflect"
	"regexp"
	"testing"
	"unicode/utf8"

	"github.com/coregx/coregex"
	"github.com/dlclark/regexp2"
)

// TestStdlibCompat compares results with the stdlib regexp package on the
// subset of syntax where Ruby and RE2 agree. Ruby anchors ^ and $ are
// always line anchors, hence the (?m) on the stdlib side.
func TestStdlibCompat(t *testing.T) {
	patterns := []struct {
		ours, std string
		asciiOnly bool // Ruby classes are Unicode-aware, RE2 classes are not
	}{
		{`a*b`, `a*b`, false},
		{`[0-9]+`, `[0-9]+`, false},
		{`(a|ab)(c|bcd)(d*)`, `(a|ab)(c|bcd)(d*)`, false},
		{`x*`, `x*`, false},
		{`a+?`, `a+?`, false},
		{`(foo|foobar)baz`, `(foo|foobar)baz`, false},
		{`[^a]+`, `[^a]+`, false},
		{`.+`, `.+`, false},
		{`a.c`, `a.c`, false},
		{`(?i)hello`, `(?i)hello`, false},
		{`a{2,4}`, `a{2,4}`, false},
		{`(a)|b`, `(a)|b`, false},
		{`(?:ab)+`, `(?:ab)+`, false},
		{`colou?r`, `colou?r`, false},
		{`^ab`, `(?m)^ab`, false},
		{`ab$`, `(?m)ab$`, false},
		{`\Aab`, `\Aab`, false},
		{`ab\z`, `ab\z`, false},
		{`ö+`, `ö+`, false},
		{`\bfoo\b`, `\bfoo\b`, true},
		{`\d{3}-\d{4}`, `\d{3}-\d{4}`, true},
		{`(\w+)@(\w+)\.com`, `(\w+)@(\w+)\.com`, true},
		{`\s+`, `\s+`, true},
		{`[[:alpha:]]+`, `[[:alpha:]]+`, true},
	}
	texts := []string{
		"", "ab", "aaab ab", "abcd", "foo foobaz foobarbaz", "x\nab\nab",
		"call 555-1234", "user@example.com me@x.com", "colour color",
		"hello HELLO", "aaaa aa a", "héllo wörld öö",
	}

	for _, p := range patterns {
		t.Run(p.ours, func(t *testing.T) {
			ours := mustCompile(t, p.ours)
			std := regexp.MustCompile(p.std)
			for _, text := range texts {
				if p.asciiOnly && !isASCII(text) {
					continue
				}
				b := []byte(text)
				if got, want := ours.FindSubmatchIndex(b), std.FindSubmatchIndex(b); !reflect.DeepEqual(got, want) {
					t.Errorf("FindSubmatchIndex(%q) = %v, stdlib %v", text, got, want)
				}
				if got, want := ours.FindAllIndex(b, -1), std.FindAllIndex(b, -1); !reflect.DeepEqual(got, want) {
					t.Errorf("FindAllIndex(%q) = %v, stdlib %v", text, got, want)
				}
			}
		})
	}
}

// TestCoregexCompat compares successive matches with coregex, an automaton
// engine with RE2 semantics, on patterns without backtracking constructs.
func TestCoregexCompat(t *testing.T) {
	patterns := []struct{ ours, core string }{
		{`\d+`, `\d+`},
		{`[a-z]+ing`, `[a-z]+ing`},
		{`foo|bar|baz|qux`, `foo|bar|baz|qux`},
		{`(?i)error`, `(?i)error`},
		{`^\w+`, `(?m)^\w+`},
		{`\w+$`, `(?m)\w+$`},
		{`a.{2,3}b`, `a.{2,3}b`},
		{`(\w+)@(\w+)\.com`, `(\w+)@(\w+)\.com`},
	}
	text := []byte("Error: running sing foo@bar.com\nqux 42 ERROR axxb axxxxb\nbaz 7 king")

	for _, p := range patterns {
		t.Run(p.ours, func(t *testing.T) {
			ours := mustCompile(t, p.ours)
			core := coregex.MustCompile(p.core)
			if got, want := ours.FindAllIndex(text, -1), core.FindAllIndex(text, -1); !reflect.DeepEqual(got, want) {
				t.Errorf("FindAllIndex = %v, coregex %v", got, want)
			}
			if got, want := ours.FindSubmatchIndex(text), core.FindSubmatchIndex(text); !reflect.DeepEqual(got, want) {
				t.Errorf("FindSubmatchIndex = %v, coregex %v", got, want)
			}
		})
	}
}

// TestRegexp2Compat compares backtracking-only constructs with regexp2,
// whose .NET syntax shares them with Ruby. Texts are ASCII so that the
// rune offsets of regexp2 equal byte offsets.
func TestRegexp2Compat(t *testing.T) {
	patterns := []string{
		`(a)(b)\1`,
		`(?<=abc)d`,
		`(?<!x)y`,
		`(?>a+)b`,
		`(\w+)\s+\1`,
		`a(?=bc)`,
		`a(?!b)`,
		`(a|ab)(c|bcd)(d*)`,
		`(?<n>[ab])\k<n>`,
		`x{2,3}?y`,
		`(ab|a)*c`,
		`(?i)hello`,
		`[a-c]+?d`,
		`\bcat\b`,
		`(a+)+b`,
		`(?:(a)|b)+`,
		`(?<=\d{3})x`,
	}
	texts := []string{
		"abab abcd aba", "xy zy", "aaab aab ab", "hello HeLLo", "abcbcdd",
		"cat concat cat", "the the end", "xxxy xxy", "aabb abab abac",
		"123x 12x", "bab", "",
	}

	for _, pattern := range patterns {
		t.Run(pattern, func(t *testing.T) {
			ours := mustCompile(t, pattern)
			net := regexp2.MustCompile(pattern, regexp2.None)
			for _, text := range texts {
				got := ours.FindStringSubmatchIndex(text)
				want := regexp2Index(t, net, text)
				if !reflect.DeepEqual(got, want) {
					t.Errorf("%q: got %v, regexp2 %v", text, got, want)
				}
			}
		})
	}
}

// regexp2Index returns the span pairs of the first regexp2 match in the
// layout of FindSubmatchIndex.
func regexp2Index(t *testing.T, re *regexp2.Regexp, text string) []int {
	t.Helper()
	m, err := re.FindStringMatch(text)
	if err != nil {
		t.Fatalf("regexp2 error: %v", err)
	}
	if m == nil {
		return nil
	}
	out := make([]int, 0, 2*m.GroupCount())
	for i := 0; i < m.GroupCount(); i++ {
		g := m.GroupByNumber(i)
		if g == nil || len(g.Captures) == 0 {
			out = append(out, -1, -1)
			continue
		}
		out = append(out, g.Index, g.Index+g.Length)
	}
	return out
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
