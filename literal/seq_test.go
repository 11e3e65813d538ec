package literal

import (
	"testing"
)

func seqOf(words ...string) *Seq {
	seq := NewSeq()
	for _, w := range words {
		seq.literals = append(seq.literals, NewLiteral([]byte(w)))
	}
	return seq
}

func words(seq *Seq) []string {
	out := make([]string, seq.Len())
	for i := range out {
		out[i] = string(seq.Get(i).Bytes)
	}
	return out
}

func equalWords(a, b []string) bool {
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

func TestSeqMinimize(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"disjoint", []string{"foo", "bar", "baz", "qux"}, []string{"foo", "bar", "baz", "qux"}},
		{"prefix covers longer", []string{"foobar", "foo", "baz"}, []string{"foo", "baz"}},
		{"duplicates", []string{"ab", "cd", "ab"}, []string{"ab", "cd"}},
		{"ordered by length", []string{"xyz", "a", "bc"}, []string{"a", "bc", "xyz"}},
		{"chain", []string{"abcd", "abc", "ab"}, []string{"ab"}},
		{"single", []string{"only"}, []string{"only"}},
		{"empty", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := seqOf(tt.in...)
			seq.Minimize()
			if got := words(seq); !equalWords(got, tt.want) {
				t.Errorf("Minimize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSeqShortest(t *testing.T) {
	tests := []struct {
		in   []string
		want int
	}{
		{[]string{"hello", "hi", "hey"}, 2},
		{[]string{"x"}, 1},
		{nil, 0},
	}

	for _, tt := range tests {
		if got := seqOf(tt.in...).Shortest(); got != tt.want {
			t.Errorf("Shortest(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSeqNil(t *testing.T) {
	var seq *Seq
	if seq.Len() != 0 {
		t.Errorf("nil Len() = %d, want 0", seq.Len())
	}
	seq.Minimize()
	if got := seq.Bytes(); len(got) != 0 {
		t.Errorf("nil Bytes() = %q", got)
	}
	if seq.Shortest() != 0 {
		t.Error("nil Shortest() != 0")
	}
}

func TestSeqBytesAndString(t *testing.T) {
	seq := seqOf("foo", "bar")
	b := seq.Bytes()
	if len(b) != 2 || string(b[0]) != "foo" || string(b[1]) != "bar" {
		t.Errorf("Bytes() = %q", b)
	}
	if got := seq.String(); got != "[foo | bar]" {
		t.Errorf("String() = %q", got)
	}
	if got := NewLiteral([]byte("abc")).Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
}
