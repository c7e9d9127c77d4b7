// Package input contains line readers used to get matcher REPL input from
// the CLI or other sources of input.
package input

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// Reader is a source of REPL input lines. Implementations must have Close
// called on them before disposal.
type Reader interface {
	ReadLine() (string, error)
	AllowBlank(allow bool)
	Close() error
}

// DirectReader reads lines from any generic input stream directly. It can be
// used with any io.Reader but does not sanitize the input of control and
// escape sequences.
//
// DirectReader should not be used directly; instead, create one with
// [NewDirectReader].
type DirectReader struct {
	r             *bufio.Reader
	blanksAllowed bool
}

// InteractiveReader reads lines from stdin using a Go implementation of the
// GNU Readline library. This keeps input clear of typing and editing escape
// sequences and enables the use of line history. It should in general only
// be used when directly connected to a TTY.
//
// InteractiveReader should not be used directly; instead, create one with
// [NewInteractiveReader].
type InteractiveReader struct {
	rl     *readline.Instance
	prompt string

	blanksAllowed bool
}

// NewDirectReader creates a new DirectReader and initializes a buffered
// reader on the provided stream.
func NewDirectReader(r io.Reader) *DirectReader {
	return &DirectReader{
		r: bufio.NewReader(r),
	}
}

// NewInteractiveReader creates a new InteractiveReader and initializes
// readline. The returned reader must have Close() called on it before
// disposal to properly tear down readline resources.
func NewInteractiveReader() (*InteractiveReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt: "> ",
	})
	if err != nil {
		return nil, fmt.Errorf("create readline config: %w", err)
	}

	return &InteractiveReader{
		rl:     rl,
		prompt: "> ",
	}, nil
}

// Close is here so DirectReader implements Reader. The DirectReader does not
// currently create resources, but callers should treat it as though it must
// have Close called on it.
func (dr *DirectReader) Close() error {
	return nil
}

// Close cleans up readline resources associated with the InteractiveReader.
func (ir *InteractiveReader) Close() error {
	return ir.rl.Close()
}

// ReadLine reads the next line from the stream. Unless blanks are allowed,
// this function blocks until a line containing non-space characters is read.
//
// At end of input the returned string will be empty and error will be
// io.EOF.
func (dr *DirectReader) ReadLine() (string, error) {
	var line string
	var err error

	for line == "" {
		line, err = dr.r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", err
		}

		line = strings.TrimSpace(line)

		if line == "" && dr.blanksAllowed {
			return line, nil
		}
	}

	return line, nil
}

// ReadLine reads the next line from stdin. Unless blanks are allowed, this
// function blocks until a line containing non-space characters is read.
//
// At end of input the returned string will be empty and error will be
// io.EOF.
func (ir *InteractiveReader) ReadLine() (string, error) {
	var line string
	var err error

	for line == "" {
		line, err = ir.rl.Readline()
		if err != nil && (err != io.EOF || line == "") {
			return "", err
		}

		line = strings.TrimSpace(line)

		if line == "" && ir.blanksAllowed {
			return line, nil
		}
	}

	return line, nil
}

// AllowBlank sets whether blank input is allowed. By default it is not.
func (dr *DirectReader) AllowBlank(allow bool) {
	dr.blanksAllowed = allow
}

// AllowBlank sets whether blank input is allowed. By default it is not.
func (ir *InteractiveReader) AllowBlank(allow bool) {
	ir.blanksAllowed = allow
}

// SetPrompt updates the prompt to the given text.
func (ir *InteractiveReader) SetPrompt(p string) {
	ir.prompt = p
	ir.rl.SetPrompt(p)
}

// GetPrompt gets the current prompt.
func (ir *InteractiveReader) GetPrompt() string {
	return ir.prompt
}
