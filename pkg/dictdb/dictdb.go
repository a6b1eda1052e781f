/*
Package dictdb defines the uniform contract every phrase dictionary
backend satisfies: the immutable trie store, the write-buffered user
dictionary, and the layered composer that sits on top of both.

# Contract

A Dictionary answers reading-keyed lookups and, where supported, mutates
its contents. Lookups never block on I/O once a backend is open; mutation
methods either apply immediately to in-memory state or report
dictdb.ErrReadOnly.

	d, err := userdict.Open("user.trie", phrase.Info{Name: "user"})
	if err != nil { ... }
	d.Add(reading.Reading{zh, iao4}, phrase.New("小", 100))
	top := d.LookupFirstN(reading.Reading{zh, iao4}, 5)

# Ordering

lookup_first_n returns phrases by rank descending (see package phrase),
ties broken by text ascending, and is stable across repeated calls with
no intervening mutation — see the package-level Dictionary doc for the
precise contract each method must honor.
*/
package dictdb

import (
	"github.com/zhuyin-ime/phrasestore/pkg/phrase"
	"github.com/zhuyin-ime/phrasestore/pkg/reading"
)

// Entry pairs a reading key with one of its phrase records.
type Entry struct {
	Reading reading.Reading
	Phrase  phrase.Phrase
}

// EntryFunc is called once per entry during enumeration. Returning false
// stops the walk early.
type EntryFunc func(Entry) bool

// Entries is a lazy sequence of dictionary entries. Dictionary.Entries
// returns nil when a backend cannot enumerate its contents.
type Entries interface {
	// ForEach walks every entry in the backend's enumeration order,
	// calling fn for each until fn returns false or entries are
	// exhausted.
	ForEach(fn EntryFunc)
}

// EntriesFunc adapts a plain function to the Entries interface.
type EntriesFunc func(EntryFunc)

// ForEach implements Entries.
func (f EntriesFunc) ForEach(fn EntryFunc) { f(fn) }

// Dictionary is the contract every phrase dictionary backend satisfies.
type Dictionary interface {
	// LookupFirstN returns up to n records for exactly this reading key,
	// ordered by rank descending then text ascending. It must return the
	// same sequence across repeated calls with no intervening mutation.
	LookupFirstN(readings reading.Reading, n int) []phrase.Phrase
	// LookupFirst is a convenience for LookupFirstN(readings, 1).
	LookupFirst(readings reading.Reading) (phrase.Phrase, bool)
	// LookupAll is a convenience for LookupFirstN with no limit.
	LookupAll(readings reading.Reading) []phrase.Phrase
	// Entries enumerates every entry in the dictionary, or returns nil if
	// this backend cannot enumerate.
	Entries() Entries
	// About returns metadata describing this dictionary instance.
	About() phrase.Info
	// Reopen re-reads underlying storage if another process changed it.
	// It is a no-op for backends that are read-only or already
	// process-synced, and returns a KindFormat error if the file is now
	// malformed.
	Reopen() error
	// Flush makes durable all prior mutations. It may return before
	// durability is complete, but guarantees that a clean Flush followed
	// by Close and a subsequent Open observes every prior mutation.
	Flush() error
	// Add rejects with ErrDuplicatePhrase if phrase.Text already exists
	// for this reading, otherwise inserts it.
	Add(readings reading.Reading, p phrase.Phrase) error
	// Update upserts a phrase, overwriting Freq and LastUsed regardless
	// of whether the entry previously existed.
	Update(readings reading.Reading, p phrase.Phrase) error
	// Remove deletes the phrase with the given text from this reading.
	// It succeeds even if the phrase was already absent.
	Remove(readings reading.Reading, text string) error
}

// Unbounded requests every match from LookupFirstN.
const Unbounded = -1

