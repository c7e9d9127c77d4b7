// Package compiler builds the adaptive token mask cache: for every
// (rule, alt, element) position reachable in a grammar, it partitions a
// vocabulary into the tokens that are always admissible there, always
// inadmissible there, and uncertain (requiring the matcher's runtime stack
// to resolve on a given step). The partitioning itself never descends into
// referenced rules or quantifier repetition; see Position's doc comment.
package compiler

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/dekarrin/gramask/internal/bitmask"
	"github.com/dekarrin/gramask/internal/grammar"
	"github.com/dekarrin/gramask/internal/vocab"
)

// PositionMask is the compiled partition of a vocabulary for one Position.
type PositionMask struct {
	// Accept holds, in its single row, a 1 bit for every token id the
	// compiler proved always-admissible at this position.
	Accept *bitmask.Buffer

	// Uncertain lists, in ascending order, the token ids the compiler could
	// not resolve locally. The matcher must re-simulate these against its
	// live stack on every fill_next_token_bitmask call.
	Uncertain []int
}

// CompiledGrammar is the immutable, shareable-across-matchers result of
// Compile: a grammar paired with a vocabulary and the per-position masks
// computed for that pairing.
type CompiledGrammar struct {
	Grammar     *grammar.Grammar
	Vocab       *vocab.Vocabulary
	Fingerprint [16]byte

	masks map[Position]*PositionMask
}

// Mask returns the PositionMask computed for p, or nil if p does not belong
// to the compiled grammar.
func (c *CompiledGrammar) Mask(p Position) *PositionMask {
	return c.masks[p]
}

// Positions returns the set of Position keys this CompiledGrammar has masks
// for, in no particular order. Used by internal/cache to enumerate entries
// for persistence.
func (c *CompiledGrammar) Positions() []Position {
	out := make([]Position, 0, len(c.masks))
	for p := range c.masks {
		out = append(out, p)
	}
	return out
}

// FromParts reconstructs a CompiledGrammar from previously computed pieces,
// skipping the classification work Compile would otherwise redo. Used by
// internal/cache to rehydrate a persisted entry without re-running the
// worker pool; fingerprint is trusted as-is, not recomputed.
func FromParts(g *grammar.Grammar, v *vocab.Vocabulary, fingerprint [16]byte, masks map[Position]*PositionMask) *CompiledGrammar {
	return &CompiledGrammar{
		Grammar:     g,
		Vocab:       v,
		Fingerprint: fingerprint,
		masks:       masks,
	}
}

type compileOptions struct {
	workers int
	trace   func(string)
}

// Option configures a Compile call.
type Option func(*compileOptions)

// WithWorkers sets the number of goroutines Compile uses to classify
// positions concurrently. The default is runtime.NumCPU(). Values <= 0 are
// treated as 1.
func WithWorkers(n int) Option {
	return func(o *compileOptions) {
		o.workers = n
	}
}

// WithTraceListener registers fn to be called with short progress
// descriptions as the compile proceeds. Mirrors the matcher's own
// trace-listener convention rather than pulling in a logging library.
func WithTraceListener(fn func(string)) Option {
	return func(o *compileOptions) {
		o.trace = fn
	}
}

// Compile partitions vocab against every position in g and returns the
// resulting CompiledGrammar. g is validated first; a validation failure is
// returned unchanged.
func Compile(g *grammar.Grammar, v *vocab.Vocabulary, opts ...Option) (*CompiledGrammar, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	o := compileOptions{workers: runtime.NumCPU()}
	for _, apply := range opts {
		apply(&o)
	}
	if o.workers < 1 {
		o.workers = 1
	}

	positions := ListPositions(g)
	if o.trace != nil {
		o.trace(fmt.Sprintf("classifying %d positions against %d tokens on %d workers", len(positions), v.Size(), o.workers))
	}
	results := make([]*PositionMask, len(positions))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = classifyPosition(g, v, positions[idx].Element(g))
			}
		}()
	}
	for idx := range positions {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	masks := make(map[Position]*PositionMask, len(positions))
	for i, p := range positions {
		masks[p] = results[i]
	}

	cg := &CompiledGrammar{
		Grammar: g,
		Vocab:   v,
		masks:   masks,
	}
	cg.Fingerprint = fingerprintOf(g, v)
	return cg, nil
}

// classifyPosition builds the PositionMask for a single grammar element:
// the element's byte-level DFA is determinized once, then every regular and
// stop token in v is walked through it. Special tokens are never admissible
// and are left out of both sets (the matcher masks them unconditionally
// without consulting the cache).
func classifyPosition(g *grammar.Grammar, v *vocab.Vocabulary, elem grammar.Element) *PositionMask {
	accept, err := bitmask.Allocate(1, v.Size())
	if err != nil {
		// v.Size() is always non-negative; Allocate only rejects negative
		// sizes.
		panic(err)
	}
	accept.Reset()
	for id := 0; id < v.Size(); id++ {
		accept.Set(0, id, false)
	}

	var uncertain []int

	cls := newTokenClassifier(elem)
	candidates := append(append([]int{}, v.RegularIDs()...), v.StopIDs()...)
	for _, id := range candidates {
		tok, _ := v.Token(id)
		switch cls.classify(tok.Decoded) {
		case Accept:
			accept.Set(0, id, true)
		case Uncertain:
			uncertain = append(uncertain, id)
		}
	}

	return &PositionMask{Accept: accept, Uncertain: uncertain}
}
