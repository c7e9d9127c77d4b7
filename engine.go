// Package gramask contains a CLI-driven engine for loading a grammar and a
// tokenizer vocabulary, compiling them into a token-mask cache, and stepping
// a live matcher interactively until the user quits.
package gramask

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dekarrin/gramask/internal/bitmask"
	"github.com/dekarrin/gramask/internal/cache"
	"github.com/dekarrin/gramask/internal/config"
	"github.com/dekarrin/gramask/internal/grammar"
	"github.com/dekarrin/gramask/internal/input"
	"github.com/dekarrin/gramask/internal/matcher"
	"github.com/dekarrin/gramask/internal/vocab"
	"github.com/dekarrin/gramask/internal/vocabfile"
	"github.com/dekarrin/rosed"
)

const consoleOutputWidth = 80

// Engine contains the things needed to run a matcher session from an
// interactive shell attached to an input stream and an output stream.
type Engine struct {
	handle *cache.Handle
	m      *matcher.Matcher

	in          input.Reader
	out         *bufio.Writer
	forceDirect bool
	running     bool
}

// New creates a new engine ready to operate on the given input and output
// streams. It loads and parses the grammar file, loads the GVF vocabulary
// file, compiles the pairing, and opens a matcher over the result.
//
// If nil is given for the input stream, stdin is used. If nil is given for
// the output stream, stdout is used.
func New(inputStream io.Reader, outputStream io.Writer, grammarPath, vocabPath string, forceDirectInput bool) (*Engine, error) {
	if inputStream == nil {
		inputStream = os.Stdin
	}
	if outputStream == nil {
		outputStream = os.Stdout
	}

	grammarSrc, err := os.ReadFile(grammarPath)
	if err != nil {
		return nil, err
	}
	g, err := grammar.Parse(string(grammarSrc))
	if err != nil {
		return nil, fmt.Errorf("%s:\n%s", grammarPath, grammar.FormatParseError(string(grammarSrc), err))
	}

	v, err := vocabfile.LoadFile(vocabPath)
	if err != nil {
		return nil, err
	}

	c := cache.New(cache.WithWorkers(config.Get().MaxThreads))
	handle, err := c.Load(g, v)
	if err != nil {
		return nil, fmt.Errorf("compiling %s against %s: %w", grammarPath, vocabPath, err)
	}

	m, err := matcher.New(handle.CompiledGrammar())
	if err != nil {
		handle.Release()
		return nil, fmt.Errorf("initializing matcher: %w", err)
	}

	eng := &Engine{
		handle:      handle,
		m:           m,
		out:         bufio.NewWriter(outputStream),
		running:     false,
		forceDirect: forceDirectInput,
	}

	useReadline := !forceDirectInput && inputStream == os.Stdin && outputStream == os.Stdout

	if useReadline {
		eng.in, err = input.NewInteractiveReader()
		if err != nil {
			handle.Release()
			return nil, fmt.Errorf("initializing interactive-mode input reader: %w", err)
		}
	} else {
		eng.in = input.NewDirectReader(inputStream)
	}

	return eng, nil
}

// Close closes all resources associated with the Engine, including any
// readline-related resources created for interactive mode, and releases the
// engine's hold on the compiled grammar.
func (eng *Engine) Close() error {
	if eng.running {
		return fmt.Errorf("cannot close a running engine")
	}

	eng.handle.Release()

	err := eng.in.Close()
	if err != nil {
		return fmt.Errorf("close input reader: %w", err)
	}

	return nil
}

// RunUntilQuit begins reading commands from the streams and applying them to
// the matcher until the QUIT command is received. Any commands in
// startCommands are executed first, as though they had been typed.
func (eng *Engine) RunUntilQuit(startCommands []string) error {
	introMsg := "Welcome to the Gramask matcher shell\n"
	if eng.forceDirect {
		introMsg += "(direct input mode)\n"
	}
	introMsg += "====================================\n"
	introMsg += "\n"
	introMsg += "Type HELP for a list of commands.\n"

	if err := eng.write(introMsg); err != nil {
		return err
	}

	eng.running = true
	// so we dont have to remember to do this on every returned error
	// condition
	defer func() {
		eng.running = false
	}()

	pending := append([]string{}, startCommands...)

	for eng.running {
		var line string
		var err error

		if len(pending) > 0 {
			line = pending[0]
			pending = pending[1:]
		} else {
			line, err = eng.in.ReadLine()
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("get user command: %w", err)
			}
		}

		quit, err := eng.execute(line)
		if err != nil {
			msg := rosed.Edit(err.Error()).Wrap(consoleOutputWidth).String()
			if wErr := eng.write(msg + "\n"); wErr != nil {
				return wErr
			}
			continue
		}
		if quit {
			eng.running = false
		}
	}

	return eng.write("Goodbye\n")
}

func (eng *Engine) write(s string, a ...interface{}) error {
	s = fmt.Sprintf(s, a...)
	if _, err := eng.out.WriteString(s); err != nil {
		return fmt.Errorf("could not write output: %w", err)
	}
	if err := eng.out.Flush(); err != nil {
		return fmt.Errorf("could not flush output: %w", err)
	}
	return nil
}

// execute runs a single shell command. The returned bool is true if the
// command ends the session.
func (eng *Engine) execute(line string) (quit bool, err error) {
	parts := strings.SplitN(strings.TrimSpace(line), " ", 2)
	verb := strings.ToUpper(parts[0])
	var arg string
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}

	switch verb {
	case "QUIT", "EXIT":
		return true, nil
	case "HELP":
		return false, eng.showHelp()
	case "STATUS":
		return false, eng.showStatus()
	case "GRAMMAR":
		return false, eng.write("%s", grammar.Print(eng.m.Grammar()))
	case "ACCEPT":
		return false, eng.acceptText(arg)
	case "TOKEN":
		return false, eng.acceptTokenID(arg)
	case "MASK":
		return false, eng.showMask()
	case "JUMP":
		return false, eng.showJump()
	case "ROLLBACK":
		return false, eng.rollback(arg)
	case "RESET":
		if err := eng.m.Reset(); err != nil {
			return false, err
		}
		return false, eng.write("Matcher reset\n")
	default:
		return false, fmt.Errorf("I don't know the command %q; type HELP for a list of commands", verb)
	}
}

func (eng *Engine) showHelp() error {
	help := "" +
		"ACCEPT TEXT  - feed raw text to the matcher (one rollback step)\n" +
		"TOKEN ID     - feed one vocabulary token by numeric id\n" +
		"MASK         - show the tokens admissible from the current state\n" +
		"JUMP         - show the continuation bytes forced by the grammar\n" +
		"ROLLBACK N   - undo the last N accepted steps\n" +
		"RESET        - restore the matcher to its initial state\n" +
		"STATUS       - show matcher state\n" +
		"GRAMMAR      - print the loaded grammar in normalized form\n" +
		"QUIT         - exit the shell\n"
	return eng.write(help)
}

func (eng *Engine) showStatus() error {
	state := "running"
	if eng.m.IsTerminated() {
		state = "terminated"
	}
	return eng.write("Matcher %s: %s, vocab size %d\n", eng.m.ID(), state, eng.m.VocabSize())
}

func (eng *Engine) acceptText(arg string) error {
	if arg == "" {
		return fmt.Errorf("ACCEPT requires the text to accept")
	}
	ok, err := eng.m.AcceptString([]byte(arg))
	if err != nil {
		return err
	}
	if !ok {
		return eng.write("Rejected %q; matcher unchanged\n", arg)
	}
	if eng.m.IsTerminated() {
		return eng.write("Accepted %q; matcher terminated\n", arg)
	}
	return eng.write("Accepted %q\n", arg)
}

func (eng *Engine) acceptTokenID(arg string) error {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("TOKEN requires a numeric vocabulary id")
	}
	ok, err := eng.m.AcceptToken(id)
	if err != nil {
		return err
	}
	if !ok {
		return eng.write("Rejected token %d; matcher unchanged\n", id)
	}
	if eng.m.IsTerminated() {
		return eng.write("Accepted token %d; matcher terminated\n", id)
	}
	return eng.write("Accepted token %d\n", id)
}

func (eng *Engine) showMask() error {
	v := eng.m.Vocab()

	buf, err := bitmask.Allocate(1, v.Size())
	if err != nil {
		return err
	}
	needApply, err := eng.m.FillNextTokenBitmask(buf, 0)
	if err != nil {
		return err
	}

	var sb strings.Builder
	admitted := 0
	for id := 0; id < v.Size(); id++ {
		if !buf.Get(0, id) {
			continue
		}
		admitted++
		tok, ok := v.Token(id)
		if !ok {
			continue
		}
		label := strconv.Quote(string(tok.Decoded))
		if tok.Kind == vocab.Stop {
			label += " (stop)"
		}
		sb.WriteString(fmt.Sprintf("  %6d %s\n", id, label))
	}

	if err := eng.write("%d/%d tokens admissible (apply needed: %v)\n", admitted, v.Size(), needApply); err != nil {
		return err
	}
	return eng.write("%s", sb.String())
}

func (eng *Engine) showJump() error {
	jump, ok := eng.m.FindJumpForwardString()
	if !ok {
		return eng.write("No forced continuation from the current state\n")
	}
	return eng.write("Forced continuation: %q\n", string(jump))
}

func (eng *Engine) rollback(arg string) error {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("ROLLBACK requires a numeric step count")
	}
	if err := eng.m.Rollback(n); err != nil {
		return err
	}
	return eng.write("Rolled back %d step(s)\n", n)
}
