package trie

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/zeebo/xxh3"
	"golang.org/x/sys/unix"

	"github.com/zhuyin-ime/phrasestore/pkg/dictdb"
	"github.com/zhuyin-ime/phrasestore/pkg/phrase"
	"github.com/zhuyin-ime/phrasestore/pkg/reading"
)

// Store is an immutable, memory-mapped reading-indexed trie. The zero
// value is not usable; construct one with Open.
//
// All read methods are safe for concurrent use. Reopen and Close mutate
// the underlying mapping and take the write lock, matching the rest of
// this package's convention that readers never block each other.
//
// Mapping is done directly through golang.org/x/sys/unix rather than a
// wrapper package: PROT_READ/MAP_SHARED over the file descriptor. Every
// reference inside the file is a byte offset, so lookups read straight
// out of the mapping with no deserialization step.
type Store struct {
	mu   sync.RWMutex
	path string
	data []byte
	hash uint64
	info phrase.Info
}

// Open memory-maps path and validates its header. The file is kept
// mapped until Close or a subsequent Reopen replaces it.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.mapFile(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) mapFile() error {
	f, err := os.Open(s.path)
	if err != nil {
		return dictdb.NewIOError("opening trie file", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return dictdb.NewIOError(fmt.Sprintf("statting %s", s.path), err)
	}
	if stat.Size() < headerSize {
		return dictdb.NewFormatError(fmt.Sprintf("file too small for header: %d bytes", stat.Size()), nil)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(stat.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return dictdb.NewIOError(fmt.Sprintf("mapping %s", s.path), err)
	}

	if err := validateFile(data); err != nil {
		unix.Munmap(data)
		return err
	}

	s.data = data
	s.hash = xxh3.Hash(s.data)
	s.info = readInfo(s.data)
	return nil
}

func validateFile(data []byte) error {
	if len(data) < headerSize {
		return dictdb.NewFormatError(fmt.Sprintf("file too small for header: %d bytes", len(data)), nil)
	}
	if magic := binary.LittleEndian.Uint32(data[offMagic:]); magic != Magic {
		return dictdb.NewFormatError(fmt.Sprintf("bad magic %#x", magic), nil)
	}
	if version := binary.LittleEndian.Uint16(data[offVersion:]); version != Version1 {
		return dictdb.NewFormatError(fmt.Sprintf("unsupported format version %d", version), nil)
	}

	size := uint64(len(data))
	nodeOff := arrayOffset(data, offNodeArray)
	phraseOff := arrayOffset(data, offPhraseIndex)
	blobOff := arrayOffset(data, offPhraseBlob)
	infoOff := arrayOffset(data, offInfo)
	for _, off := range []uint64{nodeOff, phraseOff, blobOff, infoOff} {
		if off < headerSize || off+4 > size {
			return dictdb.NewFormatError(fmt.Sprintf("array offset %d outside file of %d bytes", off, size), nil)
		}
	}
	nodeCount := uint64(binary.LittleEndian.Uint32(data[nodeOff:]))
	if nodeCount == 0 {
		return dictdb.NewFormatError("node array is empty, missing root", nil)
	}
	if nodeOff+4+nodeCount*nodeSize > size {
		return dictdb.NewFormatError("node array extends past end of file", nil)
	}
	phraseCount := uint64(binary.LittleEndian.Uint32(data[phraseOff:]))
	if phraseOff+4+phraseCount*phraseIndexEntrySize > size {
		return dictdb.NewFormatError("phrase index extends past end of file", nil)
	}
	if blobOff+8 > size {
		return dictdb.NewFormatError("phrase blob header extends past end of file", nil)
	}
	blobLen := binary.LittleEndian.Uint64(data[blobOff:])
	if blobOff+8+blobLen > size {
		return dictdb.NewFormatError("phrase blob extends past end of file", nil)
	}
	return nil
}

// Reopen re-hashes the backing file and, if it changed since the last
// Open or Reopen, remaps it. Readers in flight against the previous
// mapping are unaffected; new lookups observe the new mapping.
func (s *Store) Reopen() error {
	buf, err := os.ReadFile(s.path)
	if err != nil {
		return dictdb.NewIOError("reopening trie file", err)
	}
	newHash := xxh3.Hash(buf)

	s.mu.Lock()
	defer s.mu.Unlock()
	if newHash == s.hash {
		return nil
	}

	old := s.data
	if err := s.mapFile(); err != nil {
		return err
	}
	if old != nil {
		unix.Munmap(old)
	}
	return nil
}

// Close unmaps the backing file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil
	}
	err := unix.Munmap(s.data)
	s.data = nil
	return err
}

// About returns the dictionary metadata recorded in the file's info
// record.
func (s *Store) About() phrase.Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

func arrayOffset(data []byte, headerOff int) uint64 {
	return binary.LittleEndian.Uint64(data[headerOff:])
}

func (s *Store) nodeAt(idx uint32) node {
	base := arrayOffset(s.data, offNodeArray) + 4 // skip count prefix
	start := base + uint64(idx)*nodeSize
	return decodeNode(s.data[start : start+nodeSize])
}

func (s *Store) phraseIndexAt(idx uint32) phraseIndexEntry {
	base := arrayOffset(s.data, offPhraseIndex) + 4
	start := base + uint64(idx)*phraseIndexEntrySize
	return decodePhraseIndexEntry(s.data[start : start+phraseIndexEntrySize])
}

func (s *Store) phraseText(e phraseIndexEntry) string {
	blobBase := arrayOffset(s.data, offPhraseBlob) + 8 // skip u64 length prefix
	start := blobBase + uint64(e.TextOffset)
	return string(s.data[start : start+uint64(e.TextLen)])
}

// descend walks the trie from the root following r, returning the index
// of the matching node and true, or false if no such path exists.
func (s *Store) descend(r reading.Reading) (uint32, bool) {
	idx := uint32(0)
	for _, syl := range r {
		parent := s.nodeAt(idx)
		childIdx, ok := s.findChild(parent, syl)
		if !ok {
			return 0, false
		}
		idx = childIdx
	}
	return idx, true
}

// findChild binary-searches parent's children, which are stored
// contiguously and sorted by syllable ascending, for syl.
func (s *Store) findChild(parent node, syl reading.Syllable) (uint32, bool) {
	lo, hi := uint32(0), uint32(parent.ChildCount)
	for lo < hi {
		mid := lo + (hi-lo)/2
		n := s.nodeAt(parent.ChildBegin + mid)
		switch {
		case n.Syllable == uint16(syl):
			return parent.ChildBegin + mid, true
		case n.Syllable < uint16(syl):
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return 0, false
}

func (s *Store) phrasesAt(n node) []phrase.Phrase {
	out := make([]phrase.Phrase, 0, n.PhraseCount)
	for i := uint32(0); i < uint32(n.PhraseCount); i++ {
		e := s.phraseIndexAt(n.PhraseBegin + i)
		out = append(out, phrase.New(s.phraseText(e), e.Freq))
	}
	return out
}

// LookupFirstN returns up to n phrases for the given reading, ordered by
// rank descending (see phrase.SortDescending). n == dictdb.Unbounded
// returns every phrase.
func (s *Store) LookupFirstN(r reading.Reading, n int) []phrase.Phrase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil
	}
	idx, ok := s.descend(r)
	if !ok {
		return nil
	}
	phrases := s.phrasesAt(s.nodeAt(idx))
	if n != dictdb.Unbounded && n < len(phrases) {
		phrases = phrases[:n]
	}
	return phrases
}

// LookupFirst returns the highest-ranked phrase for r, if any.
func (s *Store) LookupFirst(r reading.Reading) (phrase.Phrase, bool) {
	ps := s.LookupFirstN(r, 1)
	if len(ps) == 0 {
		return phrase.Phrase{}, false
	}
	return ps[0], true
}

// LookupAll is equivalent to LookupFirstN(r, dictdb.Unbounded).
func (s *Store) LookupAll(r reading.Reading) []phrase.Phrase {
	return s.LookupFirstN(r, dictdb.Unbounded)
}

// Entries enumerates every (reading, phrase) pair stored in the trie, in
// depth-first node order. Nested phrases within one node are yielded in
// on-disk order (rank descending).
func (s *Store) Entries() dictdb.Entries {
	return dictdb.EntriesFunc(func(fn dictdb.EntryFunc) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.data == nil {
			return
		}
		s.walk(0, nil, fn)
	})
}

// walk visits idx and its descendants in ascending child order, calling
// fn for every stored phrase. It returns false once fn asks to stop, so
// callers up the recursion can unwind without visiting the rest of the
// tree.
func (s *Store) walk(idx uint32, prefix reading.Reading, fn dictdb.EntryFunc) bool {
	n := s.nodeAt(idx)
	r := append(reading.Reading(nil), prefix...)
	if idx != 0 {
		r = append(r, reading.Syllable(n.Syllable))
	}
	for _, p := range s.phrasesAt(n) {
		if !fn(dictdb.Entry{Reading: r, Phrase: p}) {
			return false
		}
	}
	// Children are contiguous and sorted by syllable, so visiting them
	// in index order keeps the enumeration ordered by reading key.
	for i := uint32(0); i < uint32(n.ChildCount); i++ {
		if !s.walk(n.ChildBegin+i, r, fn) {
			return false
		}
	}
	return true
}

var _ dictdb.Dictionary = (*readOnlyDictionary)(nil)

// readOnlyDictionary adapts Store to the full dictdb.Dictionary
// interface by rejecting every mutation with ErrReadOnly.
type readOnlyDictionary struct {
	*Store
}

// AsDictionary wraps s as a read-only dictdb.Dictionary, suitable for use
// as one backend of a layered composer.
func AsDictionary(s *Store) dictdb.Dictionary {
	return readOnlyDictionary{s}
}

func (readOnlyDictionary) Add(reading.Reading, phrase.Phrase) error {
	return dictdb.NewReadOnlyError("Add")
}

func (readOnlyDictionary) Update(reading.Reading, phrase.Phrase) error {
	return dictdb.NewReadOnlyError("Update")
}

func (readOnlyDictionary) Remove(reading.Reading, string) error {
	return dictdb.NewReadOnlyError("Remove")
}

func (r readOnlyDictionary) Flush() error { return nil }
