package automaton

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

// matches reports whether b is covered by any sequence in seqs.
func matches(seqs []ByteSequence, b []byte) bool {
	for _, seq := range seqs {
		if len(seq) != len(b) {
			continue
		}
		ok := true
		for i, r := range seq {
			if b[i] < r.Lo || b[i] > r.Hi {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func Test_UTF8Sequences_singleASCIIRune(t *testing.T) {
	assert := assert.New(t)

	seqs := UTF8Sequences('a', 'a')
	assert.True(matches(seqs, []byte("a")))
	assert.False(matches(seqs, []byte("b")))
}

func Test_UTF8Sequences_coversEveryRuneInSmallRange(t *testing.T) {
	assert := assert.New(t)

	lo, hi := rune(0x100), rune(0x17F)
	seqs := UTF8Sequences(lo, hi)

	for r := lo; r <= hi; r++ {
		buf := make([]byte, utf8.UTFMax)
		n := utf8.EncodeRune(buf, r)
		assert.True(matches(seqs, buf[:n]), "rune %U not covered", r)
	}

	// a rune just outside the range must not be covered.
	buf := make([]byte, utf8.UTFMax)
	n := utf8.EncodeRune(buf, hi+1)
	assert.False(matches(seqs, buf[:n]))
}

func Test_UTF8Sequences_spansLengthBoundary(t *testing.T) {
	assert := assert.New(t)

	// 0x7F is the last 1-byte rune, 0x80 the first 2-byte rune.
	seqs := UTF8Sequences(0x7E, 0x81)

	for _, r := range []rune{0x7E, 0x7F, 0x80, 0x81} {
		buf := make([]byte, utf8.UTFMax)
		n := utf8.EncodeRune(buf, r)
		assert.True(matches(seqs, buf[:n]), "rune %U not covered", r)
	}

	buf := make([]byte, utf8.UTFMax)
	n := utf8.EncodeRune(buf, 0x82)
	assert.False(matches(seqs, buf[:n]))
}

func Test_UTF8Sequences_excludesSurrogates(t *testing.T) {
	assert := assert.New(t)

	seqs := UTF8Sequences(0xD700, 0xE000)

	// surrogate code points have no valid UTF-8 encoding to test directly,
	// but the boundary runes just outside the surrogate block must still be
	// covered and nothing in between should introduce a false-positive 3-byte
	// match for e.g. 0xED 0xA0 0x80 (would-be encoding of U+D800).
	wouldBeSurrogate := []byte{0xED, 0xA0, 0x80}
	assert.False(matches(seqs, wouldBeSurrogate))

	buf := make([]byte, utf8.UTFMax)
	n := utf8.EncodeRune(buf, 0xE000)
	assert.True(matches(seqs, buf[:n]))
}

func Test_RangesToByteSequences_negated(t *testing.T) {
	assert := assert.New(t)

	seqs := RangesToByteSequences([][2]rune{{'a', 'z'}}, true)

	assert.False(matches(seqs, []byte("m")))
	assert.True(matches(seqs, []byte("M")))
}

func Test_RangesToByteSequences_mergesOverlapping(t *testing.T) {
	assert := assert.New(t)

	seqs := RangesToByteSequences([][2]rune{{'a', 'm'}, {'g', 'z'}}, false)

	for r := 'a'; r <= 'z'; r++ {
		assert.True(matches(seqs, []byte(string(r))), "rune %q not covered", r)
	}
}

func Test_mergeRanges_adjacentRangesCoalesce(t *testing.T) {
	assert := assert.New(t)

	merged := mergeRanges([][2]rune{{0, 5}, {6, 10}, {20, 30}})
	assert.Equal([][2]rune{{0, 10}, {20, 30}}, merged)
}

func Test_complementRanges_coversGapsAndEnds(t *testing.T) {
	assert := assert.New(t)

	comp := complementRanges([][2]rune{{10, 20}})
	assert.Equal([][2]rune{{0, 9}, {21, utf8.MaxRune}}, comp)
}
