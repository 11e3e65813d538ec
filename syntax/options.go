// Package syntax defines the pattern representation consumed by the
// analyzer and the bytecode compiler: compile options, syntax dialects,
// the character encoding capability interface, character classes and the
// arena-allocated abstract syntax tree.
//
// A parser for the Ruby and Perl dialects is included so the rest of the
// engine can be driven from pattern text.
package syntax

import "strings"

// Options is a set of compile-time and search-time flags.
//
// Compile-time flags are fixed when a pattern is parsed. Search-time flags
// (FindLongest, FindNotEmpty, NotBOL, NotEOL, PosixRegion) may also be
// supplied per search and are ORed with the compile-time set.
type Options uint32

const (
	// OptionNone is the empty option set.
	OptionNone Options = 0

	// OptionIgnoreCase enables case-insensitive matching.
	OptionIgnoreCase Options = 1 << (iota - 1)

	// OptionExtend ignores whitespace and #-comments in the pattern.
	OptionExtend

	// OptionMultiline makes '.' match a newline (Ruby meaning of "m").
	OptionMultiline

	// OptionSingleLine makes '^' match only at the start of the input and
	// '$' only at the end or before a final newline.
	OptionSingleLine

	// OptionFindLongest reports the longest match among all candidate
	// start positions instead of the leftmost one.
	OptionFindLongest

	// OptionFindNotEmpty rejects empty matches.
	OptionFindNotEmpty

	// OptionNegateSingleLine clears OptionSingleLine for dialects that set
	// it by default.
	OptionNegateSingleLine

	// OptionDontCaptureGroup turns plain groups into non-capturing groups.
	OptionDontCaptureGroup

	// OptionCaptureGroup keeps plain groups capturing even when named
	// groups are present.
	OptionCaptureGroup

	// OptionNotBOL treats the start of the input as not being the
	// beginning of a line.
	OptionNotBOL

	// OptionNotEOL treats the end of the input as not being the end of a
	// line.
	OptionNotEOL

	// OptionPosixRegion reports a fixed-size region without capture
	// history.
	OptionPosixRegion
)

// SearchOptions is the subset of options that may be supplied at search
// time.
const SearchOptions = OptionFindLongest | OptionFindNotEmpty | OptionNotBOL |
	OptionNotEOL | OptionPosixRegion

// Has reports whether all flags in o2 are set in o.
func (o Options) Has(o2 Options) bool {
	return o&o2 == o2
}

var optionNames = []struct {
	opt  Options
	name string
}{
	{OptionIgnoreCase, "IgnoreCase"},
	{OptionExtend, "Extend"},
	{OptionMultiline, "Multiline"},
	{OptionSingleLine, "SingleLine"},
	{OptionFindLongest, "FindLongest"},
	{OptionFindNotEmpty, "FindNotEmpty"},
	{OptionNegateSingleLine, "NegateSingleLine"},
	{OptionDontCaptureGroup, "DontCaptureGroup"},
	{OptionCaptureGroup, "CaptureGroup"},
	{OptionNotBOL, "NotBOL"},
	{OptionNotEOL, "NotEOL"},
	{OptionPosixRegion, "PosixRegion"},
}

// String returns the option names joined by '|'.
func (o Options) String() string {
	if o == OptionNone {
		return "None"
	}
	var parts []string
	for _, n := range optionNames {
		if o&n.opt != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Syntax describes a pattern dialect.
type Syntax struct {
	// Name identifies the dialect in diagnostics.
	Name string

	// Options are ORed into the user options before parsing.
	Options Options

	// DifferentLenAltLookBehind allows a look-behind whose top-level
	// alternatives have different fixed lengths. Such a look-behind is
	// split into one look-behind per alternative.
	DifferentLenAltLookBehind bool

	// CaptureOnlyNamedGroup makes plain groups non-capturing once the
	// pattern defines a named group.
	CaptureOnlyNamedGroup bool

	// CaptureHistory enables the (?@...) group.
	CaptureHistory bool

	// WordBeginEnd enables \< and \>.
	WordBeginEnd bool

	// PerlOptions switches inline flags to Perl meaning: "s" is dot-all
	// and "m" clears single-line mode.
	PerlOptions bool

	// PossessiveInterval makes {n,m}+ possessive instead of a repeat of
	// a repeat.
	PossessiveInterval bool

	// MultiplexNames allows several groups to share a name.
	MultiplexNames bool
}

// SyntaxRuby is the default dialect.
var SyntaxRuby = &Syntax{
	Name:                      "Ruby",
	DifferentLenAltLookBehind: true,
	CaptureOnlyNamedGroup:     true,
	CaptureHistory:            true,
	MultiplexNames:            true,
}

// SyntaxPerl follows Perl: '^' and '$' anchor at the input boundaries unless
// (?m) is given, and plain groups always capture.
var SyntaxPerl = &Syntax{
	Name:               "Perl",
	Options:            OptionSingleLine,
	PerlOptions:        true,
	PossessiveInterval: true,
}

// SyntaxGNU is the Ruby dialect with \< and \> word anchors.
var SyntaxGNU = &Syntax{
	Name:                      "GNU",
	DifferentLenAltLookBehind: true,
	WordBeginEnd:              true,
	MultiplexNames:            true,
}
