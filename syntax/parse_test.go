package syntax

import (
	"errors"
	"testing"
)

// TestParseDump checks the tree shape produced for common constructs.
func TestParseDump(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		opts    Options
		want    string
	}{
		{"literal", "abc", 0, `(str "abc")`},
		{"star", "a*b", 0, `(list (quant{0,inf} (str "a")) (str "b"))`},
		{"lazy", "a+?", 0, `(quant{1,inf}? (str "a"))`},
		{"interval", "a{2,3}", 0, `(quant{2,3} (str "a"))`},
		{"open interval", "a{2,}", 0, `(quant{2,inf} (str "a"))`},
		{"upper only", "a{,3}", 0, `(quant{0,3} (str "a"))`},
		{"possessive", "a*+", 0, `(enclose atomic (quant{0,inf} (str "a")))`},
		{"alternation", "a|bc", 0, `(alt (str "a") (str "bc"))`},
		{"capture", "(a)", 0, `(enclose mem1 (str "a"))`},
		{"non capture", "(?:ab)", 0, `(str "ab")`},
		{"atomic", "(?>a)", 0, `(enclose atomic (str "a"))`},
		{"look-ahead", "(?=a)", 0, `(anchor prec-read (str "a"))`},
		{"look-behind", "(?<=ab)c", 0, `(list (anchor look-behind (str "ab")) (str "c"))`},
		{"negative look-behind", "(?<!a)", 0, `(anchor look-behind-not (str "a"))`},
		{"backref", `(a)\1`, 0, `(list (enclose mem1 (str "a")) (backref [1]))`},
		{"dot", ".", 0, `(any)`},
		{"dot multiline", ".", OptionMultiline, `(any ml)`},
		{"ignore case", "ab", OptionIgnoreCase, `(str "ab" ic)`},
		{"inline ignore case", "a(?i)b", 0, `(list (str "a") (enclose opt=IgnoreCase (str "b" ic)))`},
		{"anchors", `\Aa\z`, 0, `(list (anchor begin-buf) (str "a") (anchor end-buf))`},
		{"line anchors", "^a$", 0, `(list (anchor begin-line) (str "a") (anchor end-line))`},
		{"hex escape", `\x41B`, 0, `(str "AB")`},
		{"octal escape", `\101`, 0, `(str "A")`},
		{"literal brace", "a{", 0, `(str "a{")`},
		{"comment", "a(?#note)b", 0, `(str "ab")`},
		{"extended", "a b # c", OptionExtend, `(str "ab")`},
		{"word type", `\w`, 0, `(ctype 12)`},
		{"empty", "", 0, `(str "")`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := Parse(tt.pattern, tt.opts, nil, nil)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.pattern, err)
			}
			if got := tree.Dump(tree.Root); got != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.pattern, got, tt.want)
			}
		})
	}
}

// TestParseErrors checks that malformed patterns report the right sentinel.
func TestParseErrors(t *testing.T) {
	tests := []struct {
		pattern string
		want    error
	}{
		{"(a", ErrMissingParen},
		{"a)", ErrUnmatchedParen},
		{"[a", ErrMissingBracket},
		{"[z-a]", ErrInvalidCharRange},
		{"*a", ErrTargetOfRepeatMissing},
		{"a{3,2}", ErrInvalidRepeatRange},
		{"a{100001}", ErrRepeatRangeTooLarge},
		{"^*", ErrTargetOfRepeatInvalid},
		{`\k<x>`, ErrUndefinedNameReference},
		{`\p{NoSuchProperty}`, ErrUnknownProperty},
		{"[[:nosuch:]]", ErrInvalidPosixBracket},
		{`a\`, ErrEndPatternAtEscape},
		{`\q`, ErrInvalidEscape},
		{`\u12`, ErrInvalidCodePoint},
		{"(?z)", ErrInvalidGroupOption},
		{"(?<>a)", ErrEmptyGroupName},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			_, err := Parse(tt.pattern, 0, nil, nil)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want %v", tt.pattern, tt.want)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse(%q) error = %v, want %v", tt.pattern, err, tt.want)
			}
			var pe *PatternError
			if !errors.As(err, &pe) {
				t.Errorf("Parse(%q) error %T is not *PatternError", tt.pattern, err)
			}
		})
	}
}

// TestParseGroups checks group numbering and the name table.
func TestParseGroups(t *testing.T) {
	tree, err := Parse(`(?<year>\d+)-(?<month>\d+)(?<year>x)?`, 0, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	env := tree.Env
	if env.NumMem != 3 {
		t.Fatalf("NumMem = %d, want 3", env.NumMem)
	}
	if got := env.NameToGroups("year"); len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("year groups = %v, want [1 3]", got)
	}
	if got := env.NameToGroups("month"); len(got) != 1 || got[0] != 2 {
		t.Errorf("month groups = %v, want [2]", got)
	}
	for g := 1; g <= env.NumMem; g++ {
		n := tree.N(env.MemNodes[g])
		if n.Kind != KindEnclose || n.Enclose != EncloseMemory || n.Regnum != g {
			t.Errorf("MemNodes[%d] = %s", g, tree.Dump(env.MemNodes[g]))
		}
	}
}

// TestParseMultiplexNamePerl checks that Perl rejects duplicated names.
func TestParseMultiplexNamePerl(t *testing.T) {
	_, err := Parse(`(?<a>x)(?<a>y)`, 0, SyntaxPerl, nil)
	if !errors.Is(err, ErrMultiplexDefinedName) {
		t.Errorf("error = %v, want %v", err, ErrMultiplexDefinedName)
	}
}

// TestParseBackrefs checks backref bookkeeping in the environment.
func TestParseBackrefs(t *testing.T) {
	tests := []struct {
		pattern string
		refs    []int
		level   bool
	}{
		{`(a)\1`, []int{1}, false},
		{`(a)(b)\k<2>`, []int{2}, false},
		{`(a)(b)\k<-1>`, []int{2}, false},
		{`(?<n>a)\k<n>`, []int{1}, false},
		{`(?<n>a)\k<n+0>`, []int{1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			tree, err := Parse(tt.pattern, 0, nil, nil)
			if err != nil {
				t.Fatal(err)
			}
			var ref *Node
			for _, n := range tree.Nodes {
				if n.Kind == KindBackref {
					ref = n
				}
			}
			if ref == nil {
				t.Fatal("no backref node")
			}
			if len(ref.Refs) != len(tt.refs) || ref.Refs[0] != tt.refs[0] {
				t.Errorf("Refs = %v, want %v", ref.Refs, tt.refs)
			}
			if ref.HasLevel != tt.level {
				t.Errorf("HasLevel = %v, want %v", ref.HasLevel, tt.level)
			}
			if !tree.Env.BackrefedMem.At(tt.refs[0]) {
				t.Errorf("BackrefedMem misses group %d", tt.refs[0])
			}
		})
	}
}

// TestParseCalls checks subroutine call parsing.
func TestParseCalls(t *testing.T) {
	tree, err := Parse(`(?<p>a|\g<p>)\g<0>?`, 0, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if tree.Env.NumCall != 2 {
		t.Errorf("NumCall = %d, want 2", tree.Env.NumCall)
	}
	root := tree.N(tree.Root)
	if root.Kind != KindEnclose || root.Regnum != 0 {
		t.Errorf("root = %s, want group 0 wrapper", tree.Dump(tree.Root))
	}
	if tree.Env.MemNodes[0] != tree.Root {
		t.Error("MemNodes[0] does not point at the root")
	}
}

// TestParseSyntaxOptions checks dialect-specific anchors and flags.
func TestParseSyntaxOptions(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		syn     *Syntax
		want    string
	}{
		{"perl caret", "^a", SyntaxPerl, `(list (anchor begin-buf) (str "a"))`},
		{"perl dollar", "a$", SyntaxPerl, `(list (str "a") (anchor semi-end-buf))`},
		{"perl multiline", "(?m)^", SyntaxPerl, `(enclose opt=None (anchor begin-line))`},
		{"perl dotall", "(?s).", SyntaxPerl, `(enclose opt=Multiline|SingleLine (any ml))`},
		{"ruby dotall", "(?m).", SyntaxRuby, `(enclose opt=Multiline (any ml))`},
		{"gnu word begin", `\<a\>`, SyntaxGNU, `(list (anchor word-begin) (str "a") (anchor word-end))`},
		{"ruby literal angle", `\<`, SyntaxRuby, `(str "<")`},
		{"perl named group", `(?P<x>a)`, SyntaxPerl, `(enclose mem1 (str "a"))`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := Parse(tt.pattern, 0, tt.syn, nil)
			if err != nil {
				t.Fatal(err)
			}
			if got := tree.Dump(tree.Root); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

// TestParseClass checks bracket expression membership.
func TestParseClass(t *testing.T) {
	tests := []struct {
		pattern string
		in      string
		out     string
	}{
		{"[abc]", "abc", "dA"},
		{"[^abc]", "dAé", "abc"},
		{"[a-z&&[^aeiou]]", "bcz", "aeA"},
		{"[[:digit:]x]", "09x", "ay"},
		{`[\d\s]`, "5 \t", "a"},
		{`[\w&&\D]`, "a_", "5 "},
		{"[à-ÿ]", "éÿ", "aĀ"},
		{`[\p{Greek}]`, "αΩ", "a"},
		{"[]a]", "]a", "b"},
		{`[\x41-\x43]`, "ABC", "D"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			tree, err := Parse(tt.pattern, 0, nil, nil)
			if err != nil {
				t.Fatal(err)
			}
			n := tree.N(tree.Root)
			if n.Kind != KindCClass {
				t.Fatalf("root = %s, want cclass", tree.Dump(tree.Root))
			}
			for _, r := range tt.in {
				if !n.Class.Contains(UTF8, r) {
					t.Errorf("%s does not contain %q", tt.pattern, r)
				}
			}
			for _, r := range tt.out {
				if n.Class.Contains(UTF8, r) {
					t.Errorf("%s contains %q", tt.pattern, r)
				}
			}
		})
	}
}

// TestParseDepthLimit checks the nesting bound.
func TestParseDepthLimit(t *testing.T) {
	pattern := ""
	for i := 0; i < maxParseDepth+1; i++ {
		pattern += "(?:"
	}
	_, err := Parse(pattern, 0, nil, nil)
	if !errors.Is(err, ErrNestingTooDeep) {
		t.Errorf("error = %v, want %v", err, ErrNestingTooDeep)
	}
}
