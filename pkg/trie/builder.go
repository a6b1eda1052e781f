package trie

import (
	"encoding/binary"
	"os"
	"sort"

	"github.com/tchap/go-patricia/v2/patricia"

	"github.com/zhuyin-ime/phrasestore/internal/atomicfile"
	"github.com/zhuyin-ime/phrasestore/pkg/dictdb"
	"github.com/zhuyin-ime/phrasestore/pkg/phrase"
	"github.com/zhuyin-ime/phrasestore/pkg/reading"
)

// Builder accumulates (reading, phrase) pairs and serializes them into an
// immutable trie file. It rejects a duplicate phrase text under the same
// reading at insertion time.
//
// Pairs are grouped into a patricia.Trie keyed by the big-endian byte
// encoding of their reading (see reading.Reading.Encode), which both
// de-duplicates readings and gives a byte-lexicographic visitation order
// matching reading.Compare. That grouping is then projected into the
// per-syllable node tree the on-disk format requires.
type Builder struct {
	acc  *patricia.Trie
	info phrase.Info
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{acc: patricia.NewTrie()}
}

// NewBuilderWithInfo returns an empty Builder with info pre-set.
func NewBuilderWithInfo(info phrase.Info) *Builder {
	b := NewBuilder()
	b.SetInfo(info)
	return b
}

// SetInfo records the dictionary metadata to embed in the built file.
func (b *Builder) SetInfo(info phrase.Info) {
	b.info = info
}

// Add inserts one (reading, phrase) pair. It returns a dictdb error of
// kind KindDuplicatePhrase if text is already present under reading.
func (b *Builder) Add(r reading.Reading, p phrase.Phrase) error {
	key := patricia.Prefix(r.Encode())
	existing := b.acc.Get(key)
	var phrases []phrase.Phrase
	if existing != nil {
		phrases = existing.([]phrase.Phrase)
		for _, e := range phrases {
			if e.Text == p.Text {
				return dictdb.NewDuplicatePhraseError(p.Text)
			}
		}
	}
	phrases = append(phrases, p)
	if existing != nil {
		b.acc.Set(key, phrases)
	} else {
		b.acc.Insert(key, phrases)
	}
	return nil
}

// AddEntries inserts every entry yielded by entries, stopping at the
// first error (typically a duplicate).
func (b *Builder) AddEntries(entries dictdb.Entries) error {
	var firstErr error
	entries.ForEach(func(e dictdb.Entry) bool {
		firstErr = b.Add(e.Reading, e.Phrase)
		return firstErr == nil
	})
	return firstErr
}

// buildNode is the in-memory per-syllable trie node used while laying
// out the on-disk node array.
type buildNode struct {
	children map[reading.Syllable]*buildNode
	phrases  []phrase.Phrase
}

func newBuildNode() *buildNode {
	return &buildNode{children: make(map[reading.Syllable]*buildNode)}
}

// Build serializes the accumulated entries into path using the
// temp-file-then-rename pattern (internal/atomicfile), never leaving a
// partially written file in place of an existing one.
func (b *Builder) Build(path string) error {
	root := newBuildNode()
	var walkErr error
	b.acc.Visit(func(prefix patricia.Prefix, item patricia.Item) error {
		r, ok := reading.Decode(prefix)
		if !ok {
			walkErr = &dictdb.Error{Kind: dictdb.KindBuild, Message: "malformed reading key in accumulator"}
			return walkErr
		}
		phrases := item.([]phrase.Phrase)
		cur := root
		for _, syl := range r {
			child, ok := cur.children[syl]
			if !ok {
				child = newBuildNode()
				cur.children[syl] = child
			}
			cur = child
		}
		cur.phrases = phrases
		return nil
	})
	if walkErr != nil {
		return walkErr
	}

	nodes := []node{{}} // index 0 reserved for root, filled in below
	var phraseEntries []phraseIndexEntry
	var blob []byte

	type queued struct {
		idx uint32
		bn  *buildNode
	}
	queue := []queued{{0, root}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		phrase.SortDescending(cur.bn.phrases)
		phraseBegin := uint32(len(phraseEntries))
		for _, p := range cur.bn.phrases {
			textOffset := uint32(len(blob))
			blob = append(blob, p.Text...)
			phraseEntries = append(phraseEntries, phraseIndexEntry{
				TextOffset: textOffset,
				TextLen:    uint16(len(p.Text)),
				Freq:       p.Freq,
			})
		}

		sylKeys := make([]reading.Syllable, 0, len(cur.bn.children))
		for syl := range cur.bn.children {
			sylKeys = append(sylKeys, syl)
		}
		sort.Slice(sylKeys, func(i, j int) bool { return sylKeys[i] < sylKeys[j] })

		childBegin := uint32(len(nodes))
		for _, syl := range sylKeys {
			child := cur.bn.children[syl]
			childIdx := uint32(len(nodes))
			nodes = append(nodes, node{Syllable: uint16(syl)})
			queue = append(queue, queued{childIdx, child})
		}

		nodes[cur.idx].ChildBegin = childBegin
		nodes[cur.idx].ChildCount = uint16(len(sylKeys))
		nodes[cur.idx].PhraseBegin = phraseBegin
		nodes[cur.idx].PhraseCount = uint16(len(cur.bn.phrases))
	}

	err := atomicfile.Write(path, func(f *os.File) error {
		return writeFile(f, nodes, phraseEntries, blob, b.info)
	})
	if err != nil {
		return dictdb.NewBuildError(dictdb.NewIOError("writing trie file", err))
	}
	return nil
}

func writeFile(f *os.File, nodes []node, phraseEntries []phraseIndexEntry, blob []byte, info phrase.Info) error {
	nodeArrayOff := uint64(headerSize)
	nodeArraySize := uint64(4 + len(nodes)*nodeSize)

	phraseIndexOff := nodeArrayOff + nodeArraySize
	phraseIndexSize := uint64(4 + len(phraseEntries)*phraseIndexEntrySize)

	blobOff := phraseIndexOff + phraseIndexSize
	blobSize := uint64(8 + len(blob))

	infoOff := blobOff + blobSize

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[offMagic:], Magic)
	binary.LittleEndian.PutUint16(header[offVersion:], Version1)
	binary.LittleEndian.PutUint64(header[offNodeArray:], nodeArrayOff)
	binary.LittleEndian.PutUint64(header[offPhraseIndex:], phraseIndexOff)
	binary.LittleEndian.PutUint64(header[offPhraseBlob:], blobOff)
	binary.LittleEndian.PutUint64(header[offInfo:], infoOff)
	if _, err := f.Write(header); err != nil {
		return err
	}

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(nodes)))
	if _, err := f.Write(countBuf[:]); err != nil {
		return err
	}
	nodeBuf := make([]byte, nodeSize)
	for _, n := range nodes {
		encodeNode(nodeBuf, n)
		if _, err := f.Write(nodeBuf); err != nil {
			return err
		}
	}

	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(phraseEntries)))
	if _, err := f.Write(countBuf[:]); err != nil {
		return err
	}
	entryBuf := make([]byte, phraseIndexEntrySize)
	for _, e := range phraseEntries {
		encodePhraseIndexEntry(entryBuf, e)
		if _, err := f.Write(entryBuf); err != nil {
			return err
		}
	}

	var blobLenBuf [8]byte
	binary.LittleEndian.PutUint64(blobLenBuf[:], uint64(len(blob)))
	if _, err := f.Write(blobLenBuf[:]); err != nil {
		return err
	}
	if _, err := f.Write(blob); err != nil {
		return err
	}

	if _, err := f.Write(appendInfo(nil, info)); err != nil {
		return err
	}
	return nil
}
