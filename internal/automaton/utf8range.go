package automaton

import "unicode/utf8"

// ByteRange is an inclusive range of raw byte values, one position within a
// ByteSequence.
type ByteRange struct {
	Lo, Hi byte
}

// ByteSequence is a fixed-length chain of ByteRanges: a byte string matches
// it iff the byte string has the same length and each byte falls within the
// range at its position. A CharClass's codepoints are covered by a set of
// these (one set member per UTF-8 encoded length class that appears in the
// class), since a single Unicode range generally does not correspond to a
// single contiguous byte pattern once encoded.
type ByteSequence []ByteRange

// RangesToByteSequences converts a set of inclusive rune ranges (as carried
// by grammar.CharClass, without this package needing to import the grammar
// package) into the ByteSequences whose concatenated-byte matches are
// exactly the UTF-8 encodings of the covered code points. When negated is
// true, the covered set is the complement of ranges within the valid
// Unicode scalar space (surrogates excluded either way, since they never
// have a valid UTF-8 encoding).
func RangesToByteSequences(ranges [][2]rune, negated bool) []ByteSequence {
	var effective [][2]rune
	if negated {
		effective = complementRanges(ranges)
	} else {
		effective = mergeRanges(ranges)
	}

	var out []ByteSequence
	for _, r := range effective {
		out = append(out, UTF8Sequences(r[0], r[1])...)
	}
	return out
}

// UTF8Sequences returns the ByteSequences whose concatenated-byte matches
// are exactly the UTF-8 encodings of the runes in [lo, hi]. The surrogate
// range (U+D800-U+DFFF) is always excluded since it has no valid encoding.
func UTF8Sequences(lo, hi rune) []ByteSequence {
	if lo > hi {
		return nil
	}
	if lo < 0 {
		lo = 0
	}
	if hi > utf8.MaxRune {
		hi = utf8.MaxRune
	}

	var out []ByteSequence
	cur := lo
	// UTF-8 byte-length boundaries.
	for _, limit := range []rune{0x7F, 0x7FF, 0xFFFF, utf8.MaxRune} {
		if cur > hi {
			break
		}
		if cur > limit {
			continue
		}
		segHi := hi
		if segHi > limit {
			segHi = limit
		}
		out = append(out, surrogateAwareSplit(cur, segHi)...)
		cur = limit + 1
	}
	return out
}

const surrogateLo, surrogateHi rune = 0xD800, 0xDFFF

func surrogateAwareSplit(lo, hi rune) []ByteSequence {
	if hi < surrogateLo || lo > surrogateHi {
		return encodeSameLength(lo, hi)
	}
	var out []ByteSequence
	if lo < surrogateLo {
		out = append(out, encodeSameLength(lo, surrogateLo-1)...)
	}
	if hi > surrogateHi {
		out = append(out, encodeSameLength(surrogateHi+1, hi)...)
	}
	return out
}

// encodeSameLength handles a rune range known to encode to the same number
// of UTF-8 bytes for every member (guaranteed by the byte-length boundary
// splitting done in UTF8Sequences and the surrogate splitting above).
func encodeSameLength(lo, hi rune) []ByteSequence {
	return splitBytes(encodeUTF8(lo), encodeUTF8(hi))
}

func encodeUTF8(r rune) []byte {
	buf := make([]byte, utf8.UTFMax)
	n := utf8.EncodeRune(buf, r)
	return buf[:n]
}

// splitBytes computes the ByteSequences covering exactly the byte strings
// lexicographically between lo and hi (inclusive), where lo and hi are
// same-length UTF-8 encodings of a rune range. This is the standard
// UTF-8-range-to-byte-ranges construction: a multi-byte range that doesn't
// share a leading byte is split into (a) the low leading byte with its
// trailing bytes ranging up to all-continuation-max, (b) any interior
// leading bytes with full-width continuation bytes, and (c)
// the high leading byte with its trailing bytes ranging from
// all-continuation-min.
func splitBytes(lo, hi []byte) []ByteSequence {
	if len(lo) == 1 {
		return []ByteSequence{{{Lo: lo[0], Hi: hi[0]}}}
	}

	if lo[0] == hi[0] {
		rest := splitBytes(lo[1:], hi[1:])
		out := make([]ByteSequence, len(rest))
		for i, seq := range rest {
			out[i] = prepend(lo[0], lo[0], seq)
		}
		return out
	}

	var out []ByteSequence

	minCont := contBytes(len(lo)-1, 0x80)
	maxCont := contBytes(len(lo)-1, 0xBF)

	for _, seq := range splitBytes(lo[1:], maxCont) {
		out = append(out, prepend(lo[0], lo[0], seq))
	}

	if lo[0]+1 <= hi[0]-1 {
		out = append(out, prepend(lo[0]+1, hi[0]-1, fullContinuationSequence(len(lo)-1)))
	}

	for _, seq := range splitBytes(minCont, hi[1:]) {
		out = append(out, prepend(hi[0], hi[0], seq))
	}

	return out
}

func prepend(lo, hi byte, seq ByteSequence) ByteSequence {
	out := make(ByteSequence, 0, len(seq)+1)
	out = append(out, ByteRange{Lo: lo, Hi: hi})
	out = append(out, seq...)
	return out
}

func contBytes(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func fullContinuationSequence(n int) ByteSequence {
	seq := make(ByteSequence, n)
	for i := range seq {
		seq[i] = ByteRange{Lo: 0x80, Hi: 0xBF}
	}
	return seq
}

func mergeRanges(ranges [][2]rune) [][2]rune {
	if len(ranges) == 0 {
		return nil
	}
	cp := append([][2]rune{}, ranges...)
	// insertion sort is fine; character classes are small.
	for i := 1; i < len(cp); i++ {
		for j := i; j > 0 && cp[j-1][0] > cp[j][0]; j-- {
			cp[j-1], cp[j] = cp[j], cp[j-1]
		}
	}

	var out [][2]rune
	cur := cp[0]
	for _, r := range cp[1:] {
		if r[0] <= cur[1]+1 {
			if r[1] > cur[1] {
				cur[1] = r[1]
			}
			continue
		}
		out = append(out, cur)
		cur = r
	}
	out = append(out, cur)
	return out
}

func complementRanges(ranges [][2]rune) [][2]rune {
	merged := mergeRanges(ranges)

	var out [][2]rune
	cur := rune(0)
	for _, r := range merged {
		if r[0] > cur {
			out = append(out, [2]rune{cur, r[0] - 1})
		}
		if r[1]+1 > cur {
			cur = r[1] + 1
		}
	}
	if cur <= utf8.MaxRune {
		out = append(out, [2]rune{cur, utf8.MaxRune})
	}
	return out
}
