// Package matcher implements the pushdown recognizer that sits on top of a
// compiler.CompiledGrammar: a live, stateful stack of parse threads fed one
// accepted token (or raw byte string) at a time, capable of filling a
// per-step token bitmask and rolling back a bounded number of prior accepts.
package matcher

import (
	"github.com/dekarrin/gramask/internal/bitmask"
	"github.com/dekarrin/gramask/internal/compiler"
	"github.com/dekarrin/gramask/internal/config"
	"github.com/dekarrin/gramask/internal/grammar"
	"github.com/dekarrin/gramask/internal/merrors"
	"github.com/dekarrin/gramask/internal/vocab"
	"github.com/google/uuid"
)

// snapshot is a rollback point: the full matcher state as it was just
// before some accept_token/accept_string call committed.
type snapshot struct {
	threads    []stack
	accepting  bool
	terminated bool
}

// Matcher is a single stateful recognizer over a CompiledGrammar. It is not
// safe for concurrent use; distinct matchers over the same CompiledGrammar
// may run independently on separate goroutines.
type Matcher struct {
	id uuid.UUID
	cg *compiler.CompiledGrammar

	threads    []stack
	accepting  bool
	terminated bool

	history    []snapshot
	maxHistory int

	maxDepth             int
	terminateWithoutStop bool
	stopIDs              map[int]bool

	listeners []func(string)
}

// New constructs a Matcher over cg. The process-wide config
// (internal/config) is snapshotted once at construction rather than
// re-read on every call, so changing it never perturbs a live matcher
// mid-sequence.
func New(cg *compiler.CompiledGrammar, opts ...Option) (*Matcher, error) {
	if cg == nil {
		return nil, merrors.NewArgError("compiled grammar must not be nil")
	}

	o := matcherOptions{maxRollbackTokens: -1, maxRecursionDepth: -1}
	for _, apply := range opts {
		apply(&o)
	}

	cfg := config.Get()
	maxDepth := cfg.MaxRecursionDepth
	if o.maxRecursionDepth >= 0 {
		maxDepth = o.maxRecursionDepth
	}
	maxRollback := cfg.MaxRollbackTokens
	if o.maxRollbackTokens >= 0 {
		maxRollback = o.maxRollbackTokens
	}

	stopIDs := map[int]bool{}
	if o.overrideStopTokens != nil {
		for _, id := range o.overrideStopTokens {
			stopIDs[id] = true
		}
	} else {
		for _, id := range cg.Vocab.StopIDs() {
			stopIDs[id] = true
		}
	}

	m := &Matcher{
		id:                   uuid.New(),
		cg:                   cg,
		maxDepth:             maxDepth,
		maxHistory:           maxRollback,
		terminateWithoutStop: o.terminateWithoutStopToken,
		stopIDs:              stopIDs,
	}
	if err := m.resetState(); err != nil {
		return nil, err
	}
	return m, nil
}

// ID returns the matcher's session identifier.
func (m *Matcher) ID() uuid.UUID { return m.id }

// VocabSize returns the size of the vocabulary the matcher's compiled
// grammar was built against; bitmask buffers passed to
// FillNextTokenBitmask must be allocated for exactly this size.
func (m *Matcher) VocabSize() int { return m.cg.Vocab.Size() }

// Grammar returns the grammar the matcher recognizes.
func (m *Matcher) Grammar() *grammar.Grammar { return m.cg.Grammar }

// Vocab returns the vocabulary the matcher's compiled grammar was built
// against.
func (m *Matcher) Vocab() *vocab.Vocabulary { return m.cg.Vocab }

func (m *Matcher) resetState() error {
	g := m.cg.Grammar
	rootName := g.Root()
	root := g.Rule(rootName)

	var allThreads []stack
	accepting := false
	for altI := range root.Alternatives {
		seed := stack{{kind: kindSeq, rule: rootName, alt: altI}}
		threads, acc, err := expand(g, seed, m.maxDepth, nil)
		if err != nil {
			return err
		}
		accepting = accepting || acc
		allThreads = append(allThreads, threads...)
	}

	m.threads = allThreads
	m.accepting = accepting
	m.terminated = false
	m.history = nil
	return nil
}

// Reset restores the matcher to its freshly-constructed state: empty
// history, stack back at the root.
func (m *Matcher) Reset() error {
	return m.resetState()
}

// IsTerminated reports whether the matcher has reached a terminal state.
func (m *Matcher) IsTerminated() bool { return m.terminated }

func (m *Matcher) pushHistory() {
	if m.maxHistory <= 0 {
		return
	}
	m.history = append(m.history, snapshot{threads: m.threads, accepting: m.accepting, terminated: m.terminated})
	if len(m.history) > m.maxHistory {
		m.history = m.history[len(m.history)-m.maxHistory:]
	}
}

// Rollback pops the last n history entries and restores the stack to the
// state immediately before them. n must not exceed the current history
// length.
func (m *Matcher) Rollback(n int) error {
	if n < 0 {
		return merrors.NewArgError("rollback count must be non-negative, got %d", n)
	}
	if n > len(m.history) {
		return merrors.NewArgError("rollback count %d exceeds history length %d", n, len(m.history))
	}
	if n == 0 {
		return nil
	}
	restore := m.history[len(m.history)-n]
	m.threads = restore.threads
	m.accepting = restore.accepting
	m.terminated = restore.terminated
	m.history = m.history[:len(m.history)-n]
	return nil
}

// AcceptToken advances the matcher by the decoded bytes of vocabulary token
// id. It returns false without mutating state if id is out of range,
// special, or its bytes cannot extend the current prefix.
func (m *Matcher) AcceptToken(id int) (bool, error) {
	if m.terminated {
		return false, nil
	}

	kind := m.cg.Vocab.Kind(id)
	if kind == vocab.Special {
		return false, nil
	}

	if m.stopIDs[id] {
		return m.acceptStop()
	}

	tok, ok := m.cg.Vocab.Token(id)
	if !ok {
		return false, nil
	}
	return m.AcceptString(tok.Decoded)
}

func (m *Matcher) acceptStop() (bool, error) {
	if m.terminateWithoutStop {
		return false, nil
	}
	if !m.accepting {
		return false, nil
	}
	m.pushHistory()
	m.terminated = true
	m.notify("matcher terminated on stop token")
	return true, nil
}

// AcceptString advances the matcher by a raw byte string, counted as one
// history step regardless of its length. It returns false without mutating
// state if the bytes cannot extend the current prefix.
func (m *Matcher) AcceptString(bytes []byte) (bool, error) {
	if m.terminated {
		return false, nil
	}

	if len(bytes) == 0 {
		m.pushHistory()
		return true, nil
	}

	threads := m.threads
	accepting := m.accepting
	for i, b := range bytes {
		peek := bytes[i+1:]
		nt, acc, err := stepThreads(m.cg.Grammar, threads, b, m.maxDepth, peek)
		if err != nil {
			return false, err
		}
		if len(nt) == 0 {
			return false, nil
		}
		threads = nt
		accepting = acc
	}

	m.pushHistory()
	m.threads = threads
	m.accepting = accepting

	if m.terminateWithoutStop && m.accepting {
		m.terminated = true
		m.notify("matcher terminated automatically on reaching accepting state")
	}

	return true, nil
}

// canAccept reports whether tokBytes could be fully consumed from the
// matcher's current state, without mutating it. Used by
// FillNextTokenBitmask to resolve the "uncertain" tokens the adaptive mask
// cache couldn't classify locally.
func (m *Matcher) canAccept(tokBytes []byte) bool {
	if len(tokBytes) == 0 {
		return true
	}
	threads := m.threads
	for i, b := range tokBytes {
		peek := tokBytes[i+1:]
		nt, _, err := stepThreads(m.cg.Grammar, threads, b, m.maxDepth, peek)
		if err != nil || len(nt) == 0 {
			return false
		}
		threads = nt
	}
	return true
}

// FillNextTokenBitmask writes into buf's row the set of vocabulary tokens
// currently acceptable, without mutating matcher state. It returns false
// iff the resulting mask is all-ones (the host may skip applying it).
//
// Threads whose pending terminal frame carries a stable compiler.Position
// consult that position's precomputed always-accept/uncertain partition;
// only the uncertain subset is re-simulated live via canAccept. Threads
// inside a Quantified repetition have no stable Position (by design; see
// compiler.Position) and fall back to full live simulation for every
// regular and stop token.
func (m *Matcher) FillNextTokenBitmask(buf *bitmask.Buffer, row int) (bool, error) {
	if buf == nil {
		return false, merrors.NewArgError("bitmask buffer must not be nil")
	}
	if buf.VocabSize != m.cg.Vocab.Size() {
		return false, merrors.NewArgError("bitmask vocab size %d does not match compiled vocabulary size %d", buf.VocabSize, m.cg.Vocab.Size())
	}
	if row < 0 || row >= buf.Batch {
		return false, merrors.NewArgError("row %d out of range for batch size %d", row, buf.Batch)
	}

	for id := 0; id < buf.VocabSize; id++ {
		buf.Set(row, id, false)
	}

	if m.terminated {
		return !buf.IsAllOnes(row), nil
	}

	uncertain := map[int]bool{}
	for _, th := range m.threads {
		top := th[len(th)-1]
		if top.hasPos {
			if mask := m.cg.Mask(top.pos); mask != nil {
				orRow(buf, row, mask.Accept)
				for _, id := range mask.Uncertain {
					uncertain[id] = true
				}
				continue
			}
		}
		for _, id := range m.cg.Vocab.RegularIDs() {
			uncertain[id] = true
		}
	}

	for id := range uncertain {
		tok, ok := m.cg.Vocab.Token(id)
		if !ok || tok.Kind != vocab.Regular {
			continue
		}
		if m.canAccept(tok.Decoded) {
			buf.Set(row, id, true)
		}
	}

	stopAdmissible := m.accepting && !m.terminateWithoutStop
	for id := range m.stopIDs {
		buf.Set(row, id, stopAdmissible)
	}

	return !buf.IsAllOnes(row), nil
}

func orRow(dst *bitmask.Buffer, row int, src *bitmask.Buffer) {
	d := dst.Row(row)
	s := src.Row(0)
	for i := range d {
		if i < len(s) {
			d[i] |= s[i]
		}
	}
}

// FindJumpForwardString returns the longest byte string such that, from the
// current state, every prefix has exactly one admissible continuation byte.
// ok is false when the current state already has more than one admissible
// next byte (the returned string is then empty).
func (m *Matcher) FindJumpForwardString() ([]byte, bool) {
	if m.terminated {
		return nil, false
	}

	const capLen = 4096
	threads := m.threads
	var out []byte
	for len(out) < capLen {
		b, ok := uniqueNextByte(threads)
		if !ok {
			break
		}
		nt, acc, err := stepThreads(m.cg.Grammar, threads, b, m.maxDepth, nil)
		if err != nil {
			break
		}
		if len(nt) == 0 && !acc {
			break // byte rejected outright
		}
		out = append(out, b)
		if len(nt) == 0 {
			break // consumed, but nothing left to continue deterministically
		}
		threads = nt
	}
	return out, len(out) > 0
}

func uniqueNextByte(threads []stack) (byte, bool) {
	set := map[byte]bool{}
	for _, th := range threads {
		top := th[len(th)-1]
		if top.isLiteral {
			set[top.litBytes[top.litPos]] = true
			if len(set) > 1 {
				return 0, false
			}
			continue
		}
		for _, seq := range top.classSeqs {
			if top.bytePos >= len(seq) {
				continue
			}
			rng := seq[top.bytePos]
			for v := int(rng.Lo); v <= int(rng.Hi); v++ {
				set[byte(v)] = true
				if len(set) > 1 {
					return 0, false
				}
			}
		}
	}
	if len(set) != 1 {
		return 0, false
	}
	for b := range set {
		return b, true
	}
	return 0, false
}

// RegisterTraceListener registers fn to be called with a short description
// whenever the matcher reaches a notable transition (termination). Mirrors
// the parser's own trace-listener convention rather than pulling in a
// logging library.
func (m *Matcher) RegisterTraceListener(fn func(string)) {
	m.listeners = append(m.listeners, fn)
}

func (m *Matcher) notify(msg string) {
	for _, l := range m.listeners {
		l(msg)
	}
}
