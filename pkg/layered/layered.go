// Package layered implements the N-backend composer that merges several
// dictdb.Dictionary backends behind one query surface with deterministic
// ordering. By convention earlier backends in the list are user-editable
// (mutations land there) and later ones are read-only system
// dictionaries.
package layered

import (
	"github.com/zhuyin-ime/phrasestore/internal/logger"
	"github.com/zhuyin-ime/phrasestore/pkg/dictdb"
	"github.com/zhuyin-ime/phrasestore/pkg/phrase"
	"github.com/zhuyin-ime/phrasestore/pkg/reading"
)

var log = logger.New("layered")

// Dictionary composes an ordered list of backends into a single
// dictdb.Dictionary. The zero value is not usable; construct one with
// New.
type Dictionary struct {
	backends []dictdb.Dictionary
}

// New returns a layered dictionary over backends, in priority order:
// backends[0] receives every write and wins lookup ties.
func New(backends ...dictdb.Dictionary) *Dictionary {
	return &Dictionary{backends: backends}
}

// LookupFirstN implements dictdb.Dictionary: collects results from every
// backend, concatenates in backend order, deduplicates by text keeping
// the first occurrence (earlier backends win), then stable-sorts by rank
// descending and truncates to n.
func (d *Dictionary) LookupFirstN(r reading.Reading, n int) []phrase.Phrase {
	seen := make(map[string]struct{})
	merged := make([]phrase.Phrase, 0, 16)

	for _, b := range d.backends {
		for _, p := range b.LookupAll(r) {
			if _, dup := seen[p.Text]; dup {
				continue
			}
			seen[p.Text] = struct{}{}
			merged = append(merged, p)
		}
	}

	phrase.SortDescending(merged)

	if n != dictdb.Unbounded && n < len(merged) {
		merged = merged[:n]
	}
	return merged
}

// LookupFirst implements dictdb.Dictionary.
func (d *Dictionary) LookupFirst(r reading.Reading) (phrase.Phrase, bool) {
	ps := d.LookupFirstN(r, 1)
	if len(ps) == 0 {
		return phrase.Phrase{}, false
	}
	return ps[0], true
}

// LookupAll implements dictdb.Dictionary.
func (d *Dictionary) LookupAll(r reading.Reading) []phrase.Phrase {
	return d.LookupFirstN(r, dictdb.Unbounded)
}

// Entries implements dictdb.Dictionary. Enumeration across heterogeneous
// backends is not defined, so this always returns nil.
func (d *Dictionary) Entries() dictdb.Entries {
	return nil
}

// About implements dictdb.Dictionary, aggregating metadata across
// backends: each field is the first non-empty value in backend order.
func (d *Dictionary) About() phrase.Info {
	var info phrase.Info
	for _, b := range d.backends {
		info = info.Merge(b.About())
	}
	return info
}

// Reopen fans out to every backend. The first error encountered is
// returned, but every backend is still attempted.
func (d *Dictionary) Reopen() error {
	var first error
	for _, b := range d.backends {
		if err := b.Reopen(); err != nil {
			log.Errorf("reopen backend: %v", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Flush fans out to every backend. The first error encountered is
// returned, but every backend is still attempted.
func (d *Dictionary) Flush() error {
	var first error
	for _, b := range d.backends {
		if err := b.Flush(); err != nil {
			log.Errorf("flush backend: %v", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// writableBackend returns the first backend in the list, or nil if the
// composer has none. Writes always route to backends[0], the
// user-editable layer.
func (d *Dictionary) writableBackend() dictdb.Dictionary {
	if len(d.backends) == 0 {
		return nil
	}
	return d.backends[0]
}

// Add routes to the first backend; if that backend rejects writes, its
// dictdb.ErrReadOnly error is returned and later backends are not tried.
func (d *Dictionary) Add(r reading.Reading, p phrase.Phrase) error {
	b := d.writableBackend()
	if b == nil {
		return dictdb.NewReadOnlyError("add")
	}
	return b.Add(r, p)
}

// Update routes to the first backend; if that backend rejects writes,
// its dictdb.ErrReadOnly error is returned and later backends are not
// tried.
func (d *Dictionary) Update(r reading.Reading, p phrase.Phrase) error {
	b := d.writableBackend()
	if b == nil {
		return dictdb.NewReadOnlyError("update")
	}
	return b.Update(r, p)
}

// Remove routes to the first backend; if that backend rejects writes,
// its dictdb.ErrReadOnly error is returned and later backends are not
// tried.
func (d *Dictionary) Remove(r reading.Reading, text string) error {
	b := d.writableBackend()
	if b == nil {
		return dictdb.NewReadOnlyError("remove")
	}
	return b.Remove(r, text)
}

var _ dictdb.Dictionary = (*Dictionary)(nil)
