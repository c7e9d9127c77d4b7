// Package bitmask implements the packed 32-bit-word token bitmask described
// by the core: a (batch, ceil(vocab_size/32)) buffer of 32-bit signed
// integers where bit k of word w corresponds to vocabulary id w*32+k, 1
// meaning admissible. Bit order is little-endian within each word.
package bitmask

import (
	"math"

	"github.com/dekarrin/gramask/internal/merrors"
)

const wordBits = 32

// WordsFor returns ceil(vocabSize/32), the number of words needed per row to
// cover vocabSize token ids.
func WordsFor(vocabSize int) int {
	if vocabSize <= 0 {
		return 0
	}
	return (vocabSize + wordBits - 1) / wordBits
}

// Buffer is a (Batch, Words) grid of packed bits, stored row-major.
type Buffer struct {
	Batch     int
	VocabSize int
	Words     int
	Data      []int32
}

// Allocate returns a new Buffer of shape (batch, ceil(vocabSize/32)) with
// every bit set to 1 (no tokens masked), matching allocate+reset from the
// spec in one call.
func Allocate(batch, vocabSize int) (*Buffer, error) {
	if batch < 0 || vocabSize < 0 {
		return nil, merrors.NewArgError("batch and vocabSize must be non-negative, got (%d, %d)", batch, vocabSize)
	}
	words := WordsFor(vocabSize)
	b := &Buffer{
		Batch:     batch,
		VocabSize: vocabSize,
		Words:     words,
		Data:      make([]int32, batch*words),
	}
	b.Reset()
	return b, nil
}

// Reset sets every bit in the buffer to 1.
func (b *Buffer) Reset() {
	for i := range b.Data {
		b.Data[i] = -1 // all 32 bits set
	}
}

// Row returns the word slice backing batch row i. Mutating it mutates the
// buffer.
func (b *Buffer) Row(row int) []int32 {
	start := row * b.Words
	return b.Data[start : start+b.Words]
}

// Get returns whether tokenID is admissible in the given batch row.
func (b *Buffer) Get(row, tokenID int) bool {
	word, bit := tokenID/wordBits, uint(tokenID%wordBits)
	return b.Row(row)[word]&(1<<bit) != 0
}

// Set sets or clears the bit for tokenID in the given batch row.
func (b *Buffer) Set(row, tokenID int, admissible bool) {
	word, bit := tokenID/wordBits, uint(tokenID%wordBits)
	r := b.Row(row)
	if admissible {
		r[word] |= 1 << bit
	} else {
		r[word] &^= 1 << bit
	}
}

// IsAllOnes reports whether every bit covering [0, VocabSize) in row is set;
// the matcher uses this as the fill_next_token_bitmask "need_apply" hint —
// when true, the host may skip applying the mask entirely.
func (b *Buffer) IsAllOnes(row int) bool {
	full := b.Row(row)
	for w := 0; w < len(full); w++ {
		want := int32(-1)
		if w == len(full)-1 {
			remaining := b.VocabSize - w*wordBits
			if remaining < wordBits {
				want = int32(1<<uint(remaining)) - 1
			}
		}
		// bits beyond VocabSize in the last word are undefined and must
		// not influence the answer
		if full[w]&want != want {
			return false
		}
	}
	return true
}

// ToBool expands row into a []bool of length VocabSize.
func (b *Buffer) ToBool(row int) []bool {
	out := make([]bool, b.VocabSize)
	for id := 0; id < b.VocabSize; id++ {
		out[id] = b.Get(row, id)
	}
	return out
}

// FromBool packs a []bool (one row) into a single-row Buffer. vocabSize is
// taken from len(bits).
func FromBool(bits []bool) *Buffer {
	vocabSize := len(bits)
	b, err := Allocate(1, vocabSize)
	if err != nil {
		// Allocate only fails on negative sizes, impossible for len(bits).
		panic(err)
	}
	for id, bit := range bits {
		b.Set(0, id, bit)
	}
	return b
}

// ApplyInplace sets logits[row][i] = -Inf wherever bit i of b's row-th row
// is 0. logits must have exactly b.Batch rows, each of length >= b.VocabSize.
func ApplyInplace(logits [][]float32, b *Buffer) error {
	if len(logits) != b.Batch {
		return merrors.NewArgError("logits has %d rows, expected %d", len(logits), b.Batch)
	}
	for row := range logits {
		if len(logits[row]) < b.VocabSize {
			return merrors.NewArgError("logits row %d has length %d, expected at least %d", row, len(logits[row]), b.VocabSize)
		}
		for id := 0; id < b.VocabSize; id++ {
			if !b.Get(row, id) {
				logits[row][id] = negInf
			}
		}
	}
	return nil
}

var negInf = float32(math.Inf(-1))
