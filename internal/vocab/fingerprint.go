package vocab

import (
	"encoding/binary"
	"hash/fnv"
	"sort"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Fingerprint returns a stable 128-bit digest of the vocabulary's contents,
// suitable for use as part of a compiler cache key. Two Vocabulary values
// built from the same (size, tokens, postproc, prependSpace) — regardless of
// the order tokens were supplied in — produce the same fingerprint.
//
// FNV-1a is used rather than the stdlib's hash/maphash because maphash's
// seed is randomized per process, which would make cache keys unstable
// across restarts.
func (v *Vocabulary) Fingerprint() [16]byte {
	h := fnv.New128a()

	var buf [8]byte
	putUint := func(n int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(n))
		h.Write(buf[:])
	}

	putUint(v.size)
	putUint(int(v.postproc))
	if v.prependSpace {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}

	ids := make([]int, 0, len(v.tokens))
	for id := range v.tokens {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		t := v.tokens[id]
		putUint(t.ID)
		putUint(int(t.Kind))
		normalized := normalizeForFingerprint(t.Decoded)
		putUint(len(normalized))
		h.Write(normalized)
	}

	var out [16]byte
	copy(out[:], h.Sum(nil))
	return out
}

// normalizeForFingerprint canonicalizes a token's decoded bytes so that two
// vocabularies differing only in Unicode normalization form (but decoding
// to the same text) fingerprint identically. Bytes that are not valid UTF-8
// (common for byte-fallback single-byte tokens) are hashed verbatim.
func normalizeForFingerprint(b []byte) []byte {
	if !utf8.Valid(b) {
		return b
	}
	return norm.NFC.Bytes(b)
}
