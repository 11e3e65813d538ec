// Package btregex provides a backtracking regular expression engine for Go
// with Ruby (Oniguruma) syntax.
//
// btregex compiles a pattern in four steps:
//   - Parsing into an AST (package syntax)
//   - Tree analysis: capture bookkeeping, look-behind widths, automatic
//     possessification, combinatorial-explosion checks and search hints
//   - Lowering to a compact bytecode program
//   - Building a prefilter searcher from the search hints
//
// Searches run the bytecode interpreter at the positions the searcher
// proposes. The engine supports what an automaton-based engine cannot:
// backreferences, look-behind, atomic groups, possessive quantifiers,
// subexpression calls and capture history.
//
// Basic usage:
//
//	re, err := btregex.Compile(`(?<word>\w+)\s+\k<word>`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Find the first repeated word
//	fmt.Println(re.FindString("it was the the end")) // "the the"
//
// Explicit search windows and options:
//
//	m, err := re.Search(text, len(text), 0, btregex.FindLongest)
//	if m != nil {
//	    fmt.Println(m.Start, m.End)
//	}
//
// Backtracking is exponential in the worst case. Patterns whose nested
// quantifiers could explode are compiled with explosion checks that bound
// the search to O(program * text) states; SearchContext and
// Config.MaxStackEntries bound the rest.
package btregex

import (
	"context"

	"github.com/coregx/btregex/meta"
	"github.com/coregx/btregex/syntax"
	"github.com/coregx/btregex/vm"
)

// Config controls pattern compilation. See meta.Config for the fields.
type Config = meta.Config

// Stats holds execution counters of a compiled pattern.
type Stats = meta.Stats

// Options is a set of compile-time and search-time options.
type Options = syntax.Options

// Region holds the group spans of a match.
type Region = vm.Region

// CaptureTree is a node of the capture history of (?@...) groups.
type CaptureTree = vm.CaptureTree

// Compile-time options. They may also be given to a search.
const (
	IgnoreCase  = syntax.OptionIgnoreCase
	Extend      = syntax.OptionExtend
	Multiline   = syntax.OptionMultiline
	FindLongest = syntax.OptionFindLongest
)

// Search-time options.
const (
	FindNotEmpty = syntax.OptionFindNotEmpty
	NotBOL       = syntax.OptionNotBOL
	NotEOL       = syntax.OptionNotEOL
	PosixRegion  = syntax.OptionPosixRegion
)

// Regex represents a compiled regular expression.
//
// A Regex is safe to use concurrently from multiple goroutines, except for
// ResetStats.
//
// Example:
//
//	re := btregex.MustCompile(`(a)(b)\1`)
//	if re.Match([]byte("xaba")) {
//	    println("matched!")
//	}
type Regex struct {
	engine  *meta.Engine
	pattern string
}

// Regexp is an alias for Regex, for code migrating from the stdlib.
type Regexp = Regex

// Match is the result of a successful search.
type Match struct {
	// Start and End delimit the whole match.
	Start, End int

	// Region holds the spans of the match and its groups. Group i spans
	// Region.Beg[i]..Region.End[i], or vm.NotPos when it did not take part.
	Region *Region
}

// Group returns the span of group i, or (-1, -1) when the group did not
// take part in the match or does not exist.
func (m *Match) Group(i int) (beg, end int) {
	if i < 0 || i >= len(m.Region.Beg) {
		return vm.NotPos, vm.NotPos
	}
	return m.Region.Beg[i], m.Region.End[i]
}

// History returns the capture history tree, or nil when the pattern has no
// (?@...) groups or the search asked for PosixRegion.
func (m *Match) History() *CaptureTree {
	return m.Region.History
}

// Compile parses a regular expression and returns, if successful,
// a Regex object that can be used to match against text.
//
// The pattern uses Ruby syntax over UTF-8 with every optimization enabled.
//
// Example:
//
//	re, err := btregex.Compile(`(?<=\$)\d+`)
//	if err != nil {
//	    log.Fatal(err)
//	}
func Compile(pattern string) (*Regex, error) {
	return CompileWithConfig(pattern, meta.DefaultConfig())
}

// MustCompile is like Compile but panics if the expression cannot be parsed.
//
// Example:
//
//	var wordRe = btregex.MustCompile(`\b\w+\b`)
func MustCompile(pattern string) *Regex {
	re, err := Compile(pattern)
	if err != nil {
		panic("btregex: Compile(" + quote(pattern) + "): " + err.Error())
	}
	return re
}

// CompileWithOptions compiles pattern with the default configuration and
// the given compile-time options.
//
// Example:
//
//	re, err := btregex.CompileWithOptions(`^hello`, btregex.IgnoreCase|btregex.Multiline)
func CompileWithOptions(pattern string, opts Options) (*Regex, error) {
	config := meta.DefaultConfig()
	config.Options = opts
	return CompileWithConfig(pattern, config)
}

// CompileWithConfig compiles a regular expression with custom configuration.
//
// Example:
//
//	config := btregex.DefaultConfig()
//	config.MaxStackEntries = 1 << 16 // bound backtracking memory
//	re, err := btregex.CompileWithConfig(`(a|b)*c`, config)
func CompileWithConfig(pattern string, config Config) (*Regex, error) {
	engine, err := meta.CompileWithConfig(pattern, config)
	if err != nil {
		return nil, err
	}

	return &Regex{
		engine:  engine,
		pattern: pattern,
	}, nil
}

// DefaultConfig returns the default configuration for compilation.
//
// Users can customize this and pass to CompileWithConfig.
func DefaultConfig() Config {
	return meta.DefaultConfig()
}

// QuoteMeta returns a string that escapes all regular expression metacharacters
// inside the argument text; the returned string is a regular expression matching
// the literal text.
//
// Example:
//
//	escaped := btregex.QuoteMeta("1+1=2?")
//	// escaped = `1\+1=2\?`
func QuoteMeta(s string) string {
	const special = `\.+*?()|[]{}^$#`

	n := 0
	for i := 0; i < len(s); i++ {
		if isSpecial(s[i], special) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	buf := make([]byte, 0, len(s)+n)
	for i := 0; i < len(s); i++ {
		if isSpecial(s[i], special) {
			buf = append(buf, '\\')
		}
		buf = append(buf, s[i])
	}
	return string(buf)
}

func isSpecial(c byte, special string) bool {
	for i := 0; i < len(special); i++ {
		if c == special[i] {
			return true
		}
	}
	return false
}

// quote wraps s in backquotes the way the stdlib prints patterns in panics.
func quote(s string) string {
	return "`" + s + "`"
}

// Search looks for a match of the pattern in b whose start lies between
// start and rng. With rng >= start the leftmost match is returned; with
// rng < start positions are tried from start down to rng and the rightmost
// match is returned. \G matches at start.
//
// It returns nil and a nil error when there is no match. opts may hold
// search-time options and FindLongest.
//
// Example:
//
//	re := btregex.MustCompile(`ab`)
//	m, _ := re.Search([]byte("abxab"), 5, 0, 0)
//	// m.Start == 3
func (r *Regex) Search(b []byte, start, rng int, opts Options) (*Match, error) {
	return r.SearchContext(context.Background(), b, start, rng, opts)
}

// SearchContext is like Search but stops with an error wrapping
// vm.ErrInterrupted once ctx is done.
func (r *Regex) SearchContext(ctx context.Context, b []byte, start, rng int, opts Options) (*Match, error) {
	region := r.engine.NewRegion()
	in := vm.Input{Text: b, GPos: start, Options: opts}
	pos, err := r.engine.Search(ctx, in, start, rng, region)
	if err != nil || pos < 0 {
		return nil, err
	}
	return &Match{Start: region.Beg[0], End: region.End[0], Region: region}, nil
}

// MatchAt reports the match of the pattern anchored at pos, or nil.
// \G matches at pos.
//
// Example:
//
//	re := btregex.MustCompile(`(a)(b)\1`)
//	m, _ := re.MatchAt([]byte("xaba"), 1, 0)
//	// m.Start == 1, m.End == 4
func (r *Regex) MatchAt(b []byte, pos int, opts Options) (*Match, error) {
	region := r.engine.NewRegion()
	in := vm.Input{Text: b, GPos: pos, Options: opts}
	n, err := r.engine.MatchAt(context.Background(), in, pos, region)
	if err != nil || n < 0 {
		return nil, err
	}
	return &Match{Start: pos, End: pos + n, Region: region}, nil
}

// find returns the leftmost match at or after start. Errors from the
// stack limit are reported as no match.
func (r *Regex) find(b []byte, start int) *Match {
	m, err := r.Search(b, start, len(b), 0)
	if err != nil {
		return nil
	}
	return m
}

// Match reports whether the byte slice b contains any match of the pattern.
//
// Example:
//
//	re := btregex.MustCompile(`\d+`)
//	re.Match([]byte("hello 123")) // true
func (r *Regex) Match(b []byte) bool {
	return r.find(b, 0) != nil
}

// MatchString reports whether the string s contains any match of the pattern.
func (r *Regex) MatchString(s string) bool {
	return r.Match([]byte(s))
}

// Find returns a slice holding the text of the leftmost match in b.
// A return value of nil indicates no match.
//
// Example:
//
//	re := btregex.MustCompile(`\d+`)
//	match := re.Find([]byte("age: 42"))
//	println(string(match)) // "42"
func (r *Regex) Find(b []byte) []byte {
	m := r.find(b, 0)
	if m == nil {
		return nil
	}
	return b[m.Start:m.End]
}

// FindString returns a string holding the text of the leftmost match in s.
// If there is no match, the return value is an empty string.
func (r *Regex) FindString(s string) string {
	m := r.find([]byte(s), 0)
	if m == nil {
		return ""
	}
	return s[m.Start:m.End]
}

// FindIndex returns a two-element slice of integers defining the location of
// the leftmost match in b. The match itself is at b[loc[0]:loc[1]].
// A return value of nil indicates no match.
func (r *Regex) FindIndex(b []byte) []int {
	m := r.find(b, 0)
	if m == nil {
		return nil
	}
	return []int{m.Start, m.End}
}

// FindStringIndex returns a two-element slice of integers defining the
// location of the leftmost match in s.
func (r *Regex) FindStringIndex(s string) []int {
	return r.FindIndex([]byte(s))
}

// FindSubmatchIndex returns a slice holding the index pairs identifying the
// leftmost match of the pattern in b and the matches of its groups.
// Groups that did not take part hold -1.
//
// Example:
//
//	re := btregex.MustCompile(`(\w+)@(\w+)`)
//	re.FindSubmatchIndex([]byte("user@example")) // [0 12 0 4 5 12]
func (r *Regex) FindSubmatchIndex(b []byte) []int {
	m := r.find(b, 0)
	if m == nil {
		return nil
	}
	return m.indices()
}

// FindStringSubmatchIndex is like FindSubmatchIndex for a string.
func (r *Regex) FindStringSubmatchIndex(s string) []int {
	return r.FindSubmatchIndex([]byte(s))
}

// FindStringSubmatch returns the text of the leftmost match in s and of its
// groups. Groups that did not take part hold "".
func (r *Regex) FindStringSubmatch(s string) []string {
	m := r.find([]byte(s), 0)
	if m == nil {
		return nil
	}
	out := make([]string, len(m.Region.Beg))
	for i := range out {
		if beg, end := m.Group(i); beg >= 0 {
			out[i] = s[beg:end]
		}
	}
	return out
}

func (m *Match) indices() []int {
	out := make([]int, 0, 2*len(m.Region.Beg))
	for i := range m.Region.Beg {
		out = append(out, m.Region.Beg[i], m.Region.End[i])
	}
	return out
}

// FindAllIndex returns a slice of all successive non-overlapping matches of
// the pattern in b. If n >= 0, it returns at most n matches.
// An empty match right after a previous match is skipped.
//
// Example:
//
//	re := btregex.MustCompile(`\d+`)
//	re.FindAllIndex([]byte("1 22 333"), -1) // [[0 1] [2 4] [5 8]]
func (r *Regex) FindAllIndex(b []byte, n int) [][]int {
	if n == 0 {
		return nil
	}
	enc := r.engine.Program().Enc
	var out [][]int
	pos, prevEnd := 0, -1
	for pos <= len(b) && (n < 0 || len(out) < n) {
		m := r.find(b, pos)
		if m == nil {
			break
		}
		if m.Start == m.End && m.Start == prevEnd {
			if m.Start >= len(b) {
				break
			}
			pos = m.Start + enc.CharLen(b, m.Start)
			continue
		}
		out = append(out, []int{m.Start, m.End})
		prevEnd = m.End
		switch {
		case m.End > m.Start:
			pos = m.End
		case m.End < len(b):
			pos = m.End + enc.CharLen(b, m.End)
		default:
			pos = len(b) + 1
		}
	}
	return out
}

// FindAllString returns the text of all successive non-overlapping matches
// of the pattern in s. If n >= 0, it returns at most n matches.
func (r *Regex) FindAllString(s string, n int) []string {
	locs := r.FindAllIndex([]byte(s), n)
	if locs == nil {
		return nil
	}
	out := make([]string, len(locs))
	for i, loc := range locs {
		out[i] = s[loc[0]:loc[1]]
	}
	return out
}

// String returns the source text used to compile the regular expression.
func (r *Regex) String() string {
	return r.pattern
}

// NumSubexp returns the number of capture groups in the pattern.
// In Ruby syntax plain groups do not capture once the pattern names a group.
func (r *Regex) NumSubexp() int {
	return r.engine.NumCaptures()
}

// SubexpNames returns the names of the capture groups in the pattern.
// Index 0 is the whole match and unnamed groups have the name "".
func (r *Regex) SubexpNames() []string {
	return r.engine.SubexpNames()
}

// SubexpIndex returns the index of the group with the given name, or -1.
// When several groups share the name the last one is returned.
func (r *Regex) SubexpIndex(name string) int {
	return r.engine.SubexpIndex(name)
}

// Stats returns execution statistics of the pattern.
func (r *Regex) Stats() Stats {
	return r.engine.Stats()
}

// ResetStats resets execution statistics to zero.
func (r *Regex) ResetStats() {
	r.engine.ResetStats()
}
