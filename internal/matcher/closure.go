package matcher

import (
	"fmt"

	"github.com/dekarrin/gramask/internal/automaton"
	"github.com/dekarrin/gramask/internal/compiler"
	"github.com/dekarrin/gramask/internal/grammar"
	"github.com/dekarrin/gramask/internal/merrors"
)

// expand performs the epsilon-closure of seed: it repeatedly resolves
// RuleRef calls, Quantified repetition decisions, Empty elements, and
// completed sequences (including lookahead checks against peek) until every
// resulting path either terminates on a byte-level obligation (a kindTerm
// frame on top, returned in threads) or empties its stack entirely
// (signaled by setting accepting to true). Duplicate stack shapes are
// dropped via stack.signature() so that epsilon cycles (an empty-matching
// rule nested in an unbounded repetition, for instance) terminate instead of
// looping forever.
//
// peek holds whatever bytes of the current accept_token/accept_string call
// remain unconsumed at the moment expand is invoked; lookahead assertions
// are checked against it, optimistically passing when peek runs out before
// disproving the assertion (see checkLookahead).
func expand(g *grammar.Grammar, seed stack, maxDepth int, peek []byte) (threads []stack, accepting bool, err error) {
	visited := map[string]bool{}
	queue := []stack{seed}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		sig := cur.signature()
		if visited[sig] {
			continue
		}
		visited[sig] = true

		if len(cur) > maxDepth {
			return nil, false, merrors.NewRecursionError(len(cur), maxDepth)
		}

		if len(cur) == 0 {
			accepting = true
			continue
		}

		top := cur[len(cur)-1]
		switch top.kind {
		case kindTerm:
			threads = append(threads, cur)

		case kindSeq:
			seq := top.sequenceOf(g)
			if top.elemIdx >= len(seq.Elements) {
				rest := cur[:len(cur)-1]
				if seq.HasLookahead {
					ok, lerr := checkLookahead(g, seq.Lookahead, peek, maxDepth)
					if lerr != nil {
						return nil, false, lerr
					}
					if !ok {
						continue
					}
				}
				queue = append(queue, afterComplete(rest))
				continue
			}

			elem := seq.Elements[top.elemIdx]
			switch e := elem.(type) {
			case grammar.Empty:
				nxt := cur.clone()
				nxt[len(nxt)-1].elemIdx++
				queue = append(queue, nxt)

			case grammar.Literal:
				if len(e.Bytes) == 0 {
					nxt := cur.clone()
					nxt[len(nxt)-1].elemIdx++
					queue = append(queue, nxt)
					continue
				}
				nxt := append(cur.clone(), frame{
					kind: kindTerm, isLiteral: true, litBytes: e.Bytes,
					pos: termPosition(top), hasPos: top.inlineSeq == nil,
				})
				queue = append(queue, nxt)

			case grammar.CharClass:
				nxt := append(cur.clone(), frame{
					kind: kindTerm, classSeqs: classSequences(e),
					pos: termPosition(top), hasPos: top.inlineSeq == nil,
				})
				queue = append(queue, nxt)

			case grammar.RuleRef:
				target := g.Rule(e.Name)
				for altI := range target.Alternatives {
					nxt := append(cur.clone(), frame{kind: kindSeq, rule: e.Name, alt: altI})
					queue = append(queue, nxt)
				}

			case grammar.Quantified:
				key := repKeyOf(top)
				nxt := append(cur.clone(), frame{kind: kindRepeat, quant: e, repKey: key})
				queue = append(queue, nxt)
			}

		case kindRepeat:
			q := top.quant
			canStop := top.rep >= q.Lo
			canRepeat := q.Hi == grammar.Unbounded || top.rep < q.Hi

			if canStop {
				queue = append(queue, afterComplete(cur[:len(cur)-1]))
			}

			if canRepeat {
				switch e := q.Elem.(type) {
				case grammar.Empty:
					// An empty-matching repetition contributes nothing
					// observable; only attempt it up to Lo (to satisfy a
					// minimum count), never as an open-ended extra once
					// Lo is already met, or this would loop forever for
					// e.g. Hi == Unbounded.
					if top.rep < q.Lo {
						nxt := cur.clone()
						nxt[len(nxt)-1].rep++
						queue = append(queue, nxt)
					}

				case grammar.Literal:
					if len(e.Bytes) == 0 {
						if top.rep < q.Lo {
							nxt := cur.clone()
							nxt[len(nxt)-1].rep++
							queue = append(queue, nxt)
						}
						continue
					}
					nxt := append(cur.clone(), frame{kind: kindTerm, isLiteral: true, litBytes: e.Bytes})
					queue = append(queue, nxt)

				case grammar.CharClass:
					nxt := append(cur.clone(), frame{kind: kindTerm, classSeqs: classSequences(e)})
					queue = append(queue, nxt)

				case grammar.RuleRef:
					target := g.Rule(e.Name)
					for altI := range target.Alternatives {
						nxt := append(cur.clone(), frame{kind: kindSeq, rule: e.Name, alt: altI})
						queue = append(queue, nxt)
					}
				}
			}
		}
	}

	return threads, accepting, nil
}

// afterComplete returns the stack exposed once a child frame has finished
// and been popped, with the newly-exposed top frame's own progress advanced
// by that one completion: a kindSeq frame moves to its next element, a
// kindRepeat frame counts one more repetition of its inner element. rest is
// left untouched if it's empty (the whole thread finished) or its new top is
// a kindTerm (can't happen: a kindTerm is never left below another frame).
func afterComplete(rest stack) stack {
	if len(rest) == 0 {
		return rest
	}
	cp := rest.clone()
	top := &cp[len(cp)-1]
	switch top.kind {
	case kindSeq:
		top.elemIdx++
	case kindRepeat:
		top.rep++
	}
	return cp
}

func termPosition(seqFrame frame) compiler.Position {
	if seqFrame.inlineSeq != nil {
		return compiler.Position{}
	}
	return compiler.Position{Rule: seqFrame.rule, Alt: seqFrame.alt, Elem: seqFrame.elemIdx}
}

func repKeyOf(seqFrame frame) string {
	if seqFrame.inlineSeq != nil {
		return fmt.Sprintf("L%p#%d", seqFrame.inlineSeq, seqFrame.elemIdx)
	}
	return fmt.Sprintf("S%s#%d#%d", seqFrame.rule, seqFrame.alt, seqFrame.elemIdx)
}

func classSequences(cc grammar.CharClass) []automaton.ByteSequence {
	ranges := make([][2]rune, len(cc.Ranges))
	for i, r := range cc.Ranges {
		ranges[i] = [2]rune{r.Lower, r.Upper}
	}
	return automaton.RangesToByteSequences(ranges, cc.Negated)
}

// stepThreads consumes one byte across every thread in threads, forking
// threads whose live CharClass candidates span more than one UTF-8 length
// (some complete on this byte while longer candidates continue), and
// running expand on every thread whose terminal completes. peek is the
// bytes of the current call remaining after b, used for any lookahead
// assertions that resolve as part of this step.
func stepThreads(g *grammar.Grammar, threads []stack, b byte, maxDepth int, peek []byte) (next []stack, accepting bool, err error) {
	seen := map[string]bool{}
	addThread := func(s stack) {
		sig := s.signature()
		if seen[sig] {
			return
		}
		seen[sig] = true
		next = append(next, s)
	}

	for _, th := range threads {
		top := th[len(th)-1]
		if top.kind != kindTerm {
			continue // defensive; every thread in the set should already be terminal-pending
		}

		if top.isLiteral {
			if b != top.litBytes[top.litPos] {
				continue
			}
			newPos := top.litPos + 1
			if newPos == len(top.litBytes) {
				rest := afterComplete(th[:len(th)-1])
				subThreads, subAccepting, serr := expand(g, rest, maxDepth, peek)
				if serr != nil {
					return nil, false, serr
				}
				accepting = accepting || subAccepting
				for _, s := range subThreads {
					addThread(s)
				}
			} else {
				nxt := th.clone()
				nxt[len(nxt)-1].litPos = newPos
				addThread(nxt)
			}
			continue
		}

		// CharClass: partition surviving candidates into those that
		// complete on this byte and those that need more bytes.
		var completing, continuing []automaton.ByteSequence
		for _, seq := range top.classSeqs {
			if top.bytePos >= len(seq) {
				continue
			}
			rng := seq[top.bytePos]
			if b < rng.Lo || b > rng.Hi {
				continue
			}
			if top.bytePos+1 == len(seq) {
				completing = append(completing, seq)
			} else {
				continuing = append(continuing, seq)
			}
		}

		if len(continuing) > 0 {
			nxt := th.clone()
			nxt[len(nxt)-1].classSeqs = continuing
			nxt[len(nxt)-1].bytePos = top.bytePos + 1
			addThread(nxt)
		}
		if len(completing) > 0 {
			rest := afterComplete(th[:len(th)-1])
			subThreads, subAccepting, serr := expand(g, rest, maxDepth, peek)
			if serr != nil {
				return nil, false, serr
			}
			accepting = accepting || subAccepting
			for _, s := range subThreads {
				addThread(s)
			}
		}
	}

	return next, accepting, nil
}

// checkLookahead reports whether peek's bytes are consistent with the
// lookahead fragment elems, without consuming anything from the matcher's
// own state. A fragment with no bytes left to disprove it (peek exhausted
// before any thread died and before any thread reached acceptance) is
// optimistically treated as satisfied: the matcher cannot see past the end
// of the current call's buffer, and spec.md's own worked examples for
// lookahead are satisfied by this reading.
func checkLookahead(g *grammar.Grammar, elems []grammar.Element, peek []byte, maxDepth int) (bool, error) {
	seed := stack{{kind: kindSeq, inlineSeq: &grammar.Sequence{Elements: elems}}}
	threads, accepting, err := expand(g, seed, maxDepth, peek)
	if err != nil {
		return false, err
	}
	if accepting {
		return true, nil
	}

	for i, b := range peek {
		if len(threads) == 0 {
			return false, nil
		}
		rest := peek[i+1:]
		threads, accepting, err = stepThreads(g, threads, b, maxDepth, rest)
		if err != nil {
			return false, err
		}
		if accepting {
			return true, nil
		}
	}

	// peek ran out without disproving the assertion.
	return true, nil
}

