package vm

import (
	"errors"

	"github.com/coregx/btregex/bytecode"
)

// Common errors.
var (
	// ErrInterrupted is returned when a match is stopped by the caller's
	// interrupt flag or by context cancellation. No result is produced.
	ErrInterrupted = errors.New("btregex: match interrupted")

	// ErrStackOverflow is returned when the backtracking stack would grow
	// past the configured entry limit.
	ErrStackOverflow = errors.New("btregex: backtrack stack limit exceeded")
)

// InternalError reports a malformed program or a corrupted execution
// state.
type InternalError = bytecode.InternalError

func internalError(pc int, msg string) error {
	return &InternalError{PC: pc, Message: msg}
}
