package matcher

import (
	"fmt"
	"strings"

	"github.com/dekarrin/gramask/internal/automaton"
	"github.com/dekarrin/gramask/internal/compiler"
	"github.com/dekarrin/gramask/internal/grammar"
)

// frameKind tags which of the three roles a stack frame plays in a thread's
// call stack.
type frameKind int

const (
	// kindSeq is a partially-matched Sequence: elemIdx names the next
	// element to attempt. When elemIdx reaches len(Elements), the sequence
	// is done and this frame pops.
	kindSeq frameKind = iota

	// kindRepeat wraps one Quantified element, tracking how many times its
	// inner element has matched so far (rep). It pops only once the caller
	// decides not to attempt another repetition.
	kindRepeat

	// kindTerm is an in-progress byte-level match against a Literal or
	// CharClass. It is always the top frame of a "pending" thread — the
	// frame a thread is waiting on a byte to advance.
	kindTerm
)

// frame is one entry in a thread's stack. Which fields are meaningful
// depends on kind; unused fields are left zero.
type frame struct {
	kind frameKind

	// kindSeq
	rule      string
	alt       int
	elemIdx   int
	inlineSeq *grammar.Sequence // set instead of rule/alt for synthetic (lookahead) sequences not backed by a named grammar rule

	// kindRepeat
	quant  grammar.Quantified
	rep    int
	repKey string // identifies which grammar position this repeat wraps, for signature() stability

	// kindTerm
	isLiteral bool
	litBytes  []byte
	litPos    int
	classSeqs []automaton.ByteSequence
	bytePos   int

	// position tracks the (rule, alt, elem) this kindTerm frame was pushed
	// for, when it was pushed directly from a kindSeq's own element rather
	// than from inside a kindRepeat. Quantified-interior terminals have no
	// stable Position (see compiler.Position's doc comment) so hasPos is
	// false for those, and the adaptive mask cache can't be consulted —
	// the matcher falls back to live simulation for them.
	pos    compiler.Position
	hasPos bool
}

func (f frame) sequenceOf(g *grammar.Grammar) grammar.Sequence {
	if f.inlineSeq != nil {
		return *f.inlineSeq
	}
	return g.Rule(f.rule).Alternatives[f.alt]
}

// stack is one candidate parse path: a snapshot of nested open frames, top
// of slice is innermost.
type stack []frame

func (s stack) clone() stack {
	cp := make(stack, len(s))
	copy(cp, s)
	return cp
}

// signature returns a string uniquely identifying s's structural identity,
// used to dedup the closure worklist so that epsilon cycles (e.g. a rule
// that can match empty, repeated unboundedly) terminate naturally instead of
// looping forever.
func (s stack) signature() string {
	var sb strings.Builder
	for _, f := range s {
		switch f.kind {
		case kindSeq:
			if f.inlineSeq != nil {
				fmt.Fprintf(&sb, "L%p#%d/", f.inlineSeq, f.elemIdx)
			} else {
				fmt.Fprintf(&sb, "S%s#%d#%d/", f.rule, f.alt, f.elemIdx)
			}
		case kindRepeat:
			fmt.Fprintf(&sb, "R%s#%d/", f.repKey, f.rep)
		case kindTerm:
			if f.isLiteral {
				fmt.Fprintf(&sb, "TL%d/", f.litPos)
			} else {
				fmt.Fprintf(&sb, "TC%d#%d/", len(f.classSeqs), f.bytePos)
			}
		}
	}
	return sb.String()
}
