package syntax

import (
	"unicode"
	"unicode/utf8"
)

// CaseFoldItem is one case-insensitive alternative for the text at a
// position: ByteLen bytes of the subject are equivalent to Codes.
type CaseFoldItem struct {
	ByteLen int
	Codes   []rune
}

// Encoding is the character capability interface used by the analyzer, the
// compiler and the interpreter. Positions are byte offsets into b.
type Encoding interface {
	// Name identifies the encoding.
	Name() string

	// MaxLen is the longest byte length of one character.
	MaxLen() int

	// SingleByteLimit is the first code point that is not represented
	// by a single byte. Code points below it live in class bit sets.
	SingleByteLimit() rune

	// CharLen returns the byte length of the character at b[p].
	// It never exceeds len(b)-p and is at least 1.
	CharLen(b []byte, p int) int

	// Decode returns the code point at b[p].
	Decode(b []byte, p int) rune

	// AppendRune appends the encoding of r.
	AppendRune(dst []byte, r rune) []byte

	// RuneLen returns the encoded length of r, or -1.
	RuneLen(r rune) int

	// IsNewline reports whether a newline starts at b[p].
	IsNewline(b []byte, p, end int) bool

	// IsCType reports whether r belongs to ct.
	IsCType(r rune, ct CType) bool

	// CTypeRanges returns the code points at or above SingleByteLimit
	// belonging to ct.
	CTypeRanges(ct CType) *CodeRangeSet

	// LeftAdjustCharHead returns the start of the character containing
	// b[p], never moving before start.
	LeftAdjustCharHead(b []byte, start, p int) int

	// FoldRune maps r to the canonical member of its simple case fold
	// orbit.
	FoldRune(r rune) rune

	// CaseFoldItems lists the case-insensitive alternatives for the
	// text starting at b[p]. Items whose ByteLen differs from the
	// character length or that expand to several code points are
	// variable-length folds.
	CaseFoldItems(b []byte, p, end int) []CaseFoldItem
}

// PrevCharHead returns the start of the character before p, or -1 when p
// is at start.
func PrevCharHead(enc Encoding, b []byte, start, p int) int {
	if p <= start {
		return -1
	}
	return enc.LeftAdjustCharHead(b, start, p-1)
}

// StepBack moves n characters back from p. It returns -1 when fewer than n
// characters precede p.
func StepBack(enc Encoding, b []byte, start, p, n int) int {
	for ; n > 0; n-- {
		if p <= start {
			return -1
		}
		p = enc.LeftAdjustCharHead(b, start, p-1)
	}
	return p
}

// IsWordAt reports whether a word character starts at b[p].
func IsWordAt(enc Encoding, b []byte, p, end int) bool {
	if p >= end {
		return false
	}
	return enc.IsCType(enc.Decode(b[:end], p), CTypeWord)
}

// AppendFold appends the full case fold of the character at b[p] and
// returns the number of subject bytes consumed. Characters such as ß fold
// to several characters, so "ß", "ss" and "SS" fold alike.
func AppendFold(enc Encoding, dst, b []byte, p int) ([]byte, int) {
	n := enc.CharLen(b, p)
	if n == 1 && b[p] < 0x80 {
		return append(dst, byte(enc.FoldRune(rune(b[p])))), 1
	}
	r := enc.Decode(b, p)
	if enc.MaxLen() > 1 {
		if fold, ok := multiFold(r); ok {
			for i := 0; i < len(fold); i++ {
				dst = append(dst, byte(enc.FoldRune(rune(fold[i]))))
			}
			return dst, n
		}
	}
	return enc.AppendRune(dst, enc.FoldRune(r)), n
}

// FoldString returns the case-folded form of s.
func FoldString(enc Encoding, s []byte) []byte {
	out := make([]byte, 0, len(s))
	for p := 0; p < len(s); {
		var n int
		out, n = AppendFold(enc, out, s, p)
		p += n
	}
	return out
}

// UTF8 is the UTF-8 encoding with Unicode character types and folds.
var UTF8 Encoding = utf8Encoding{}

// ASCII treats every byte as one character; only ASCII letters fold.
var ASCII Encoding = asciiEncoding{}

// EncodingByName returns a built-in encoding.
func EncodingByName(name string) (Encoding, bool) {
	switch name {
	case "UTF-8":
		return UTF8, true
	case "ASCII":
		return ASCII, true
	}
	return nil, false
}

type utf8Encoding struct{}

func (utf8Encoding) Name() string          { return "UTF-8" }
func (utf8Encoding) MaxLen() int           { return utf8.UTFMax }
func (utf8Encoding) SingleByteLimit() rune { return utf8.RuneSelf }

func (utf8Encoding) CharLen(b []byte, p int) int {
	if b[p] < utf8.RuneSelf {
		return 1
	}
	_, n := utf8.DecodeRune(b[p:])
	return n
}

func (utf8Encoding) Decode(b []byte, p int) rune {
	if b[p] < utf8.RuneSelf {
		return rune(b[p])
	}
	r, _ := utf8.DecodeRune(b[p:])
	return r
}

func (utf8Encoding) AppendRune(dst []byte, r rune) []byte {
	return utf8.AppendRune(dst, r)
}

func (utf8Encoding) RuneLen(r rune) int {
	return utf8.RuneLen(r)
}

func (utf8Encoding) IsNewline(b []byte, p, end int) bool {
	return p < end && b[p] == '\n'
}

func (utf8Encoding) IsCType(r rune, ct CType) bool {
	if r < utf8.RuneSelf {
		return asciiCType(r, ct)
	}
	switch ct {
	case CTypeNewline, CTypeXDigit, CTypeASCII:
		return false
	}
	return unicodeCTypeSet(ct).Contains(r)
}

func (utf8Encoding) CTypeRanges(ct CType) *CodeRangeSet {
	return unicodeCTypeSet(ct)
}

func (utf8Encoding) LeftAdjustCharHead(b []byte, start, p int) int {
	q := p
	for q > start && p-q < utf8.UTFMax-1 && !utf8.RuneStart(b[q]) {
		q--
	}
	if q == p {
		return p
	}
	if _, n := utf8.DecodeRune(b[q:]); q+n > p {
		return q
	}
	return p
}

func (utf8Encoding) FoldRune(r rune) rune {
	return foldRune(r)
}

func (e utf8Encoding) CaseFoldItems(b []byte, p, end int) []CaseFoldItem {
	return caseFoldItems(e, b, p, end)
}

type asciiEncoding struct{}

func (asciiEncoding) Name() string                { return "ASCII" }
func (asciiEncoding) MaxLen() int                 { return 1 }
func (asciiEncoding) SingleByteLimit() rune       { return 0x100 }
func (asciiEncoding) CharLen(b []byte, p int) int { return 1 }
func (asciiEncoding) Decode(b []byte, p int) rune { return rune(b[p]) }

func (asciiEncoding) AppendRune(dst []byte, r rune) []byte {
	return append(dst, byte(r))
}

func (asciiEncoding) RuneLen(r rune) int {
	if r < 0 || r > 0xff {
		return -1
	}
	return 1
}

func (asciiEncoding) IsNewline(b []byte, p, end int) bool {
	return p < end && b[p] == '\n'
}

func (asciiEncoding) IsCType(r rune, ct CType) bool {
	return r < utf8.RuneSelf && asciiCType(r, ct)
}

func (asciiEncoding) CTypeRanges(CType) *CodeRangeSet {
	return &CodeRangeSet{}
}

func (asciiEncoding) LeftAdjustCharHead(b []byte, start, p int) int {
	return p
}

func (asciiEncoding) FoldRune(r rune) rune {
	if 'a' <= r && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}

func (e asciiEncoding) CaseFoldItems(b []byte, p, end int) []CaseFoldItem {
	c := rune(b[p])
	switch {
	case 'a' <= c && c <= 'z':
		return []CaseFoldItem{{ByteLen: 1, Codes: []rune{c - ('a' - 'A')}}}
	case 'A' <= c && c <= 'Z':
		return []CaseFoldItem{{ByteLen: 1, Codes: []rune{c + ('a' - 'A')}}}
	}
	return nil
}

// isAmbiguousRune reports whether r has other members in its simple fold
// orbit.
func isAmbiguousRune(r rune) bool {
	return unicode.SimpleFold(r) != r
}
