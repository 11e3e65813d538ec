package syntax

import (
	"errors"
	"fmt"
)

// Parse errors.
var (
	ErrMissingParen            = errors.New("missing closing )")
	ErrUnmatchedParen          = errors.New("unmatched close parenthesis")
	ErrMissingBracket          = errors.New("premature end of char-class")
	ErrEmptyCharClass          = errors.New("empty char-class")
	ErrInvalidCharRange        = errors.New("invalid character range")
	ErrInvalidPosixBracket     = errors.New("invalid POSIX bracket type")
	ErrUnknownProperty         = errors.New("invalid character property name")
	ErrEndPatternAtEscape      = errors.New("end pattern at escape")
	ErrInvalidEscape           = errors.New("invalid escape sequence")
	ErrInvalidCodePoint        = errors.New("invalid code point value")
	ErrTargetOfRepeatMissing   = errors.New("target of repeat operator is not specified")
	ErrTargetOfRepeatInvalid   = errors.New("target of repeat operator is invalid")
	ErrInvalidRepeatRange      = errors.New("upper bound must be greater than lower bound")
	ErrRepeatRangeTooLarge     = errors.New("too big number for repeat range")
	ErrInvalidGroupOption      = errors.New("undefined group option")
	ErrInvalidGroupName        = errors.New("invalid group name")
	ErrEmptyGroupName          = errors.New("group name is empty")
	ErrMultiplexDefinedName    = errors.New("multiplex defined name")
	ErrUndefinedNameReference  = errors.New("undefined name reference")
	ErrUndefinedGroupReference = errors.New("undefined group reference")
	ErrTooManyCaptures         = errors.New("too many capture groups")
	ErrNestingTooDeep          = errors.New("parse depth limit over")
)

// Pattern errors raised while analyzing a parsed tree.
var (
	ErrInvalidBackref            = errors.New("invalid backref number/name")
	ErrInvalidLookBehind         = errors.New("invalid pattern in look-behind")
	ErrNeverEndingRecursion      = errors.New("never ending recursion")
	ErrNumberedBackrefNotAllowed = errors.New("numbered backref/call is not allowed (use name)")
	ErrTooManyMultiByteRanges    = errors.New("too many multibyte code ranges are specified")
	ErrCaptureHistoryTooBig      = errors.New("group number is too big for capture history")
)

// PatternError reports a pattern that cannot be compiled. Err is one of
// the sentinel errors of this package, so callers can use errors.Is.
type PatternError struct {
	Err  error
	Expr string
}

// Error implements the error interface.
func (e *PatternError) Error() string {
	if e.Expr == "" {
		return fmt.Sprintf("error parsing regexp: %v", e.Err)
	}
	return fmt.Sprintf("error parsing regexp: %v: `%s`", e.Err, e.Expr)
}

// Unwrap returns the sentinel error.
func (e *PatternError) Unwrap() error {
	return e.Err
}

// newError builds a PatternError.
func newError(err error, expr string) *PatternError {
	return &PatternError{Err: err, Expr: expr}
}

// NewError builds a PatternError for collaborators outside this package.
func NewError(err error, expr string) error {
	return newError(err, expr)
}
