// Package reading defines the phonetic syllable key used to index phrase
// dictionaries.
//
// A Syllable is treated as an opaque, fixed-width, totally ordered value:
// the real phonetic system (Bopomofo, Pinyin, or anything else) is an
// external concern of the input-method engine and carries no logic here.
// This package only needs enough of a concrete type to compare, encode and
// decode reading keys.
package reading

import (
	"bytes"
	"cmp"
	"encoding/binary"
)

// Syllable is a single phonetic unit. Its numeric value has no meaning to
// this package beyond ordering; callers assign the mapping from real
// syllables to Syllable values.
type Syllable uint16

// Reading is an ordered sequence of syllables identifying a phrase
// candidate.
type Reading []Syllable

// Compare orders two readings lexicographically by syllable, then by
// length (a prefix sorts before any of its extensions).
func (r Reading) Compare(other Reading) int {
	n := min(len(r), len(other))
	for i := 0; i < n; i++ {
		if c := cmp.Compare(r[i], other[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(r), len(other))
}

// Equal reports whether two readings contain the same syllables in the
// same order.
func (r Reading) Equal(other Reading) bool {
	return r.Compare(other) == 0
}

// Clone returns an independent copy of r.
func (r Reading) Clone() Reading {
	if r == nil {
		return nil
	}
	out := make(Reading, len(r))
	copy(out, r)
	return out
}

// Encode produces a byte-key suitable for use in a byte-ordered structure
// (a prefix trie, a sorted map, an on-disk node array). Syllables are
// written big-endian so that byte-lexicographic order agrees with
// Compare.
func (r Reading) Encode() []byte {
	buf := make([]byte, len(r)*2)
	for i, s := range r {
		binary.BigEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// Decode reconstructs a Reading from bytes produced by Encode. It returns
// false if b is not a whole number of syllables.
func Decode(b []byte) (Reading, bool) {
	if len(b)%2 != 0 {
		return nil, false
	}
	out := make(Reading, len(b)/2)
	for i := range out {
		out[i] = Syllable(binary.BigEndian.Uint16(b[i*2:]))
	}
	return out, true
}

// CompareBytes orders two Encode-d reading keys the same way Compare
// orders the readings they came from.
func CompareBytes(a, b []byte) int {
	return bytes.Compare(a, b)
}
