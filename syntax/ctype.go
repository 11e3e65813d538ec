package syntax

import (
	"sync"
	"unicode"
)

// CType is a named character type such as word or digit.
type CType uint8

// Character types. The POSIX bracket names map onto these.
const (
	CTypeNewline CType = iota
	CTypeAlpha
	CTypeBlank
	CTypeCntrl
	CTypeDigit
	CTypeGraph
	CTypeLower
	CTypePrint
	CTypePunct
	CTypeSpace
	CTypeUpper
	CTypeXDigit
	CTypeWord
	CTypeAlnum
	CTypeASCII
	numCTypes
)

var ctypeNames = map[string]CType{
	"alpha":  CTypeAlpha,
	"blank":  CTypeBlank,
	"cntrl":  CTypeCntrl,
	"digit":  CTypeDigit,
	"graph":  CTypeGraph,
	"lower":  CTypeLower,
	"print":  CTypePrint,
	"punct":  CTypePunct,
	"space":  CTypeSpace,
	"upper":  CTypeUpper,
	"xdigit": CTypeXDigit,
	"word":   CTypeWord,
	"alnum":  CTypeAlnum,
	"ascii":  CTypeASCII,
}

// LookupCType maps a POSIX bracket or property name to a CType.
func LookupCType(name string) (CType, bool) {
	ct, ok := ctypeNames[name]
	return ct, ok
}

// asciiCType reports membership for code points below 0x80.
func asciiCType(c rune, ct CType) bool {
	switch ct {
	case CTypeNewline:
		return c == '\n'
	case CTypeAlpha:
		return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
	case CTypeBlank:
		return c == ' ' || c == '\t'
	case CTypeCntrl:
		return c < 0x20 || c == 0x7f
	case CTypeDigit:
		return '0' <= c && c <= '9'
	case CTypeGraph:
		return 0x21 <= c && c <= 0x7e
	case CTypeLower:
		return 'a' <= c && c <= 'z'
	case CTypePrint:
		return 0x20 <= c && c <= 0x7e
	case CTypePunct:
		return 0x21 <= c && c <= 0x2f || 0x3a <= c && c <= 0x40 ||
			0x5b <= c && c <= 0x60 || 0x7b <= c && c <= 0x7e
	case CTypeSpace:
		return c == ' ' || '\t' <= c && c <= '\r'
	case CTypeUpper:
		return 'A' <= c && c <= 'Z'
	case CTypeXDigit:
		return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
	case CTypeWord:
		return asciiCType(c, CTypeAlnum) || c == '_'
	case CTypeAlnum:
		return asciiCType(c, CTypeAlpha) || asciiCType(c, CTypeDigit)
	case CTypeASCII:
		return c < 0x80
	}
	return false
}

var unicodeCTypeTables = [numCTypes][]*unicode.RangeTable{
	CTypeAlpha:  {unicode.L, unicode.M, unicode.Nl},
	CTypeBlank:  {unicode.Zs},
	CTypeCntrl:  {unicode.Cc},
	CTypeDigit:  {unicode.Nd},
	CTypeGraph:  {unicode.L, unicode.M, unicode.N, unicode.P, unicode.S, unicode.Co},
	CTypeLower:  {unicode.Ll},
	CTypePrint:  {unicode.L, unicode.M, unicode.N, unicode.P, unicode.S, unicode.Zs, unicode.Co},
	CTypePunct:  {unicode.P},
	CTypeSpace:  {unicode.White_Space},
	CTypeUpper:  {unicode.Lu},
	CTypeWord:   {unicode.L, unicode.M, unicode.Nd, unicode.Pc},
	CTypeAlnum:  {unicode.L, unicode.M, unicode.Nd},
}

var (
	unicodeCTypeOnce [numCTypes]sync.Once
	unicodeCTypeSets [numCTypes]*CodeRangeSet
)

// unicodeCTypeSet returns the code points at or above 0x80 belonging to
// ct.
func unicodeCTypeSet(ct CType) *CodeRangeSet {
	unicodeCTypeOnce[ct].Do(func() {
		s := &CodeRangeSet{}
		for _, t := range unicodeCTypeTables[ct] {
			// Static tables never exceed the range limit.
			_ = s.AddTable(t, 0x80)
		}
		unicodeCTypeSets[ct] = s
	})
	return unicodeCTypeSets[ct]
}
