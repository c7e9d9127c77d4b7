// Package merrors holds the error kinds surfaced by the grammar, vocab,
// compiler, and matcher packages. Runtime token rejection is never one of
// these; it is returned as a plain boolean from the matcher's accept
// functions.
package merrors

import "fmt"

// ParseError is returned when grammar source cannot be parsed. It carries the
// 1-indexed line and column at which the problem was detected.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

// NewParseError returns a *ParseError for the given position.
func NewParseError(line, col int, format string, a ...interface{}) error {
	return &ParseError{Line: line, Col: col, Msg: fmt.Sprintf(format, a...)}
}

// VocabError is returned when a vocabulary is internally inconsistent, such
// as a duplicate token ID or a vocab_size that disagrees with the supplied
// tokens.
type VocabError struct {
	Msg string
}

func (e *VocabError) Error() string {
	return e.Msg
}

// NewVocabError returns a *VocabError with the given message.
func NewVocabError(format string, a ...interface{}) error {
	return &VocabError{Msg: fmt.Sprintf(format, a...)}
}

// RecursionError is returned when a matcher operation would expand the
// grammar past the configured max_recursion_depth. The matcher's state is
// left exactly as it was prior to the operation that triggered it.
type RecursionError struct {
	Depth int
	Limit int
}

func (e *RecursionError) Error() string {
	return fmt.Sprintf("recursion depth %d exceeds limit %d", e.Depth, e.Limit)
}

// NewRecursionError returns a *RecursionError reporting that depth exceeded
// limit.
func NewRecursionError(depth, limit int) error {
	return &RecursionError{Depth: depth, Limit: limit}
}

// ArgError is returned for malformed arguments: a bitmask of the wrong shape
// or dtype, a rollback count out of range, or an option value out of range.
type ArgError struct {
	Msg string
}

func (e *ArgError) Error() string {
	return e.Msg
}

// NewArgError returns a *ArgError with the given message.
func NewArgError(format string, a ...interface{}) error {
	return &ArgError{Msg: fmt.Sprintf(format, a...)}
}
