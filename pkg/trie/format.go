// Package trie implements the immutable, memory-mappable reading-indexed
// trie that backs system dictionaries, and the builder that produces its
// on-disk file from a stream of (reading, phrase) pairs.
//
// # Format
//
// The file is a small fixed header (magic, version, and byte offsets to
// three arrays) followed by the arrays themselves, each length-prefixed
// so the whole file is position-independent: every pointer inside it is
// a byte offset, never a pointer, so the file can be mapped at any
// address and queried without relocation (see Store).
//
//	header: magic(4) version(2) flags(2) nodeOff(8) phraseIndexOff(8) blobOff(8) infoOff(8)
//	node:   syllable(u16) childBegin(u32) childCount(u16) phraseBegin(u32) phraseCount(u16) pad(2)
//	phrase index entry: textOffset(u32) textLen(u16) freq(u32)
//
// Node children are stored contiguously, sorted by syllable ascending, so
// descent performs a binary search at each level. Phrase-index entries
// for one node are stored already sorted by freq descending then text
// ascending, so lookup needs no post-processing after descent.
package trie

import "encoding/binary"

const (
	// Magic identifies a phrasestore trie file.
	Magic uint32 = 0x50485254 // "PHRT"
	// Version1 is the only format version this package writes.
	Version1 uint16 = 1

	headerSize = 40

	offMagic          = 0
	offVersion        = 4
	offFlags          = 6
	offNodeArray      = 8
	offPhraseIndex    = 16
	offPhraseBlob     = 24
	offInfo           = 32

	// nodeSize is the on-disk size of one node record, padded to 8-byte
	// alignment.
	nodeSize = 16
	// phraseIndexEntrySize is the on-disk size of one phrase-index
	// record.
	phraseIndexEntrySize = 10
)

// node is the in-memory mirror of one on-disk node record.
type node struct {
	Syllable    uint16
	ChildBegin  uint32
	ChildCount  uint16
	PhraseBegin uint32
	PhraseCount uint16
}

func encodeNode(b []byte, n node) {
	binary.LittleEndian.PutUint16(b[0:2], n.Syllable)
	binary.LittleEndian.PutUint32(b[2:6], n.ChildBegin)
	binary.LittleEndian.PutUint16(b[6:8], n.ChildCount)
	binary.LittleEndian.PutUint32(b[8:12], n.PhraseBegin)
	binary.LittleEndian.PutUint16(b[12:14], n.PhraseCount)
	b[14] = 0
	b[15] = 0
}

func decodeNode(b []byte) node {
	return node{
		Syllable:    binary.LittleEndian.Uint16(b[0:2]),
		ChildBegin:  binary.LittleEndian.Uint32(b[2:6]),
		ChildCount:  binary.LittleEndian.Uint16(b[6:8]),
		PhraseBegin: binary.LittleEndian.Uint32(b[8:12]),
		PhraseCount: binary.LittleEndian.Uint16(b[12:14]),
	}
}

// phraseIndexEntry is the in-memory mirror of one on-disk phrase-index
// record.
type phraseIndexEntry struct {
	TextOffset uint32
	TextLen    uint16
	Freq       uint32
}

func encodePhraseIndexEntry(b []byte, e phraseIndexEntry) {
	binary.LittleEndian.PutUint32(b[0:4], e.TextOffset)
	binary.LittleEndian.PutUint16(b[4:6], e.TextLen)
	binary.LittleEndian.PutUint32(b[6:10], e.Freq)
}

func decodePhraseIndexEntry(b []byte) phraseIndexEntry {
	return phraseIndexEntry{
		TextOffset: binary.LittleEndian.Uint32(b[0:4]),
		TextLen:    binary.LittleEndian.Uint16(b[4:6]),
		Freq:       binary.LittleEndian.Uint32(b[6:10]),
	}
}
