package compiler

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/dekarrin/gramask/internal/grammar"
	"github.com/dekarrin/gramask/internal/vocab"
)

// fingerprintOf combines the grammar's normalized source text with the
// vocabulary's own fingerprint into the cache key identity for a compiled
// grammar. Printing the grammar before hashing means two Grammar values that
// parsed from textually different but semantically identical source (e.g.
// differing whitespace, or an inlined vs. a named group) compile to the same
// fingerprint.
// Fingerprint computes the cache-key identity a Compile of (g, v) would
// carry, without doing any classification work. internal/cache uses this to
// look up an existing CompiledGrammar before paying for a compile.
func Fingerprint(g *grammar.Grammar, v *vocab.Vocabulary) [16]byte {
	return fingerprintOf(g, v)
}

func fingerprintOf(g *grammar.Grammar, v *vocab.Vocabulary) [16]byte {
	h := fnv.New128a()
	h.Write([]byte(grammar.Print(g)))

	vf := v.Fingerprint()
	h.Write(vf[:])

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(v.Size()))
	h.Write(lenBuf[:])

	var out [16]byte
	copy(out[:], h.Sum(nil))
	return out
}
