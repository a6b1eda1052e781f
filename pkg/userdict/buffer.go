// Package userdict implements the write-buffered dictionary: an
// immutable trie snapshot overlaid by an in-memory mutation log and
// tombstone set, with an asynchronous rebuild that folds the log back
// into a fresh trie file and atomically replaces the old one.
//
// Mutations land in the log and are visible to lookups immediately.
// Flush starts a background rebuild and returns; Reopen joins a
// finished rebuild and adopts its output, unless new mutations arrived
// while it ran, in which case the output is discarded so nothing in the
// log is ever lost.
package userdict

import (
	"sort"
	"sync"

	"github.com/zhuyin-ime/phrasestore/internal/atomicfile"
	"github.com/zhuyin-ime/phrasestore/internal/logger"
	"github.com/zhuyin-ime/phrasestore/pkg/dictdb"
	"github.com/zhuyin-ime/phrasestore/pkg/phrase"
	"github.com/zhuyin-ime/phrasestore/pkg/reading"
	"github.com/zhuyin-ime/phrasestore/pkg/trie"
)

var log = logger.New("userdict")

type entryKey struct {
	reading string
	text    string
}

func keyOf(r reading.Reading, text string) entryKey {
	return entryKey{reading: string(r.Encode()), text: text}
}

// rebuildTask tracks one in-flight background rebuild. err is written
// before done is closed and never touched afterwards.
type rebuildTask struct {
	done chan struct{}
	err  error
}

func (t *rebuildTask) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Buffer is a write-buffered dictionary: a trie snapshot plus an
// in-memory log and graveyard. The zero value is not usable; construct
// one with Open, NewInMemory or NewFromEntries.
//
// A Buffer is safe for concurrent lookups and mutations from multiple
// goroutines, but at most one rebuild runs at a time.
type Buffer struct {
	mu sync.Mutex
	wg sync.WaitGroup

	path string // empty means memory-only
	trie *trie.Store
	info phrase.Info

	log       map[entryKey]phrase.Phrase
	graveyard map[entryKey]struct{}

	dirty   bool
	rebuild *rebuildTask
}

// Open opens the trie snapshot at path, creating a fresh empty one with
// info as its metadata if the file does not yet exist.
func Open(path string, info phrase.Info) (*Buffer, error) {
	b := newBuffer(path, info)
	if !atomicfile.Exists(path) {
		if err := trie.NewBuilderWithInfo(info).Build(path); err != nil {
			return nil, err
		}
	}
	store, err := trie.Open(path)
	if err != nil {
		return nil, err
	}
	b.trie = store
	b.info = store.About()
	return b, nil
}

// NewInMemory returns an empty buffer with no backing file. Flush is a
// no-op for it; everything lives in the log.
func NewInMemory(info phrase.Info) *Buffer {
	return newBuffer("", info)
}

// NewFromEntries returns a memory-only buffer pre-seeded with entries,
// useful for tests and for constructing a dictionary directly without a
// file round-trip.
func NewFromEntries(entries dictdb.Entries, info phrase.Info) *Buffer {
	b := newBuffer("", info)
	entries.ForEach(func(e dictdb.Entry) bool {
		b.log[keyOf(e.Reading, e.Phrase.Text)] = e.Phrase
		return true
	})
	if len(b.log) > 0 {
		b.dirty = true
	}
	return b
}

func newBuffer(path string, info phrase.Info) *Buffer {
	return &Buffer{
		path:      path,
		info:      info,
		log:       make(map[entryKey]phrase.Phrase),
		graveyard: make(map[entryKey]struct{}),
	}
}

// merged returns every phrase for r, applying the graveyard filter to
// both the trie and the log, then deduplicating by text. When the same
// text appears in both, whichever copy ranks higher wins.
func (b *Buffer) merged(r reading.Reading) []phrase.Phrase {
	byText := make(map[string]phrase.Phrase)

	if b.trie != nil {
		for _, p := range b.trie.LookupAll(r) {
			if _, tomb := b.graveyard[keyOf(r, p.Text)]; tomb {
				continue
			}
			byText[p.Text] = p
		}
	}

	rkey := string(r.Encode())
	for k, p := range b.log {
		if k.reading != rkey {
			continue
		}
		if _, tomb := b.graveyard[k]; tomb {
			continue
		}
		if existing, ok := byText[p.Text]; !ok || p.Compare(existing) >= 0 {
			byText[p.Text] = p
		}
	}

	out := make([]phrase.Phrase, 0, len(byText))
	for _, p := range byText {
		out = append(out, p)
	}
	phrase.SortDescending(out)
	return out
}

// LookupFirstN implements dictdb.Dictionary.
func (b *Buffer) LookupFirstN(r reading.Reading, n int) []phrase.Phrase {
	b.mu.Lock()
	defer b.mu.Unlock()
	phrases := b.merged(r)
	if n != dictdb.Unbounded && n < len(phrases) {
		phrases = phrases[:n]
	}
	return phrases
}

// LookupFirst implements dictdb.Dictionary.
func (b *Buffer) LookupFirst(r reading.Reading) (phrase.Phrase, bool) {
	ps := b.LookupFirstN(r, 1)
	if len(ps) == 0 {
		return phrase.Phrase{}, false
	}
	return ps[0], true
}

// LookupAll implements dictdb.Dictionary.
func (b *Buffer) LookupAll(r reading.Reading) []phrase.Phrase {
	return b.LookupFirstN(r, dictdb.Unbounded)
}

// About implements dictdb.Dictionary.
func (b *Buffer) About() phrase.Info {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.info
}

// Entries implements dictdb.Dictionary, enumerating the merged trie+log
// view with the same dedup rule as a single-key lookup, ordered by
// reading key then text.
func (b *Buffer) Entries() dictdb.Entries {
	return dictdb.EntriesFunc(func(fn dictdb.EntryFunc) {
		b.mu.Lock()
		snapshot := b.snapshotEntries()
		b.mu.Unlock()
		for _, e := range snapshot {
			if !fn(e) {
				return
			}
		}
	})
}

// snapshotEntries materializes the full merged view, sorted by reading
// key then text. Caller must hold b.mu.
func (b *Buffer) snapshotEntries() []dictdb.Entry {
	type keyed struct {
		key entryKey
		r   reading.Reading
		p   phrase.Phrase
	}
	byKey := make(map[entryKey]keyed)

	if b.trie != nil {
		b.trie.Entries().ForEach(func(e dictdb.Entry) bool {
			k := keyOf(e.Reading, e.Phrase.Text)
			if _, tomb := b.graveyard[k]; tomb {
				return true
			}
			byKey[k] = keyed{k, e.Reading, e.Phrase}
			return true
		})
	}
	for k, p := range b.log {
		if _, tomb := b.graveyard[k]; tomb {
			continue
		}
		if existing, ok := byKey[k]; ok && existing.p.Compare(p) > 0 {
			continue
		}
		r, _ := reading.Decode([]byte(k.reading))
		byKey[k] = keyed{k, r, p}
	}

	ordered := make([]keyed, 0, len(byKey))
	for _, kv := range byKey {
		ordered = append(ordered, kv)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].key.reading != ordered[j].key.reading {
			return ordered[i].key.reading < ordered[j].key.reading
		}
		return ordered[i].key.text < ordered[j].key.text
	})

	out := make([]dictdb.Entry, 0, len(ordered))
	for _, kv := range ordered {
		out = append(out, dictdb.Entry{Reading: kv.r, Phrase: kv.p})
	}
	return out
}

// Add implements dictdb.Dictionary. It does not clear a matching
// tombstone: a phrase re-added after Remove stays suppressed until the
// next rebuild folds both out (see DESIGN.md for the rationale).
func (b *Buffer) Add(r reading.Reading, p phrase.Phrase) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.merged(r) {
		if existing.Text == p.Text {
			return dictdb.NewDuplicatePhraseError(p.Text)
		}
	}
	b.log[keyOf(r, p.Text)] = p
	b.dirty = true
	return nil
}

// Update implements dictdb.Dictionary: unconditional upsert, no
// tombstone clearing (same rationale as Add).
func (b *Buffer) Update(r reading.Reading, p phrase.Phrase) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log[keyOf(r, p.Text)] = p
	b.dirty = true
	return nil
}

// Remove implements dictdb.Dictionary: best-effort, succeeds even if the
// phrase was already absent.
func (b *Buffer) Remove(r reading.Reading, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := keyOf(r, text)
	delete(b.log, k)
	b.graveyard[k] = struct{}{}
	b.dirty = true
	return nil
}

// Flush starts a background checkpoint if the buffer is dirty and no
// rebuild is already running, then returns without waiting for it. The
// written file lands atomically; Close joins any outstanding rebuild, so
// a clean Flush followed by Close makes every prior mutation durable.
func (b *Buffer) Flush() error {
	b.checkpoint()
	return nil
}

// checkpoint snapshots the merged view and spawns a rebuild goroutine
// that writes it to the backing file. Skipped when there is no backing
// file, nothing changed, or a rebuild is already in flight.
func (b *Buffer) checkpoint() {
	b.mu.Lock()
	if b.path == "" || !b.dirty || b.rebuild != nil {
		b.mu.Unlock()
		return
	}
	b.dirty = false
	task := &rebuildTask{done: make(chan struct{})}
	b.rebuild = task
	entries := b.snapshotEntries()
	info := b.info
	path := b.path
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		task.err = rebuildFile(path, info, entries)
		close(task.done)
	}()
}

// rebuildFile folds entries into a fresh trie file at path. The write is
// atomic: readers of path observe either the old or the new file, never
// a partial one.
func rebuildFile(path string, info phrase.Info, entries []dictdb.Entry) error {
	builder := trie.NewBuilderWithInfo(info)
	for _, e := range entries {
		if err := builder.Add(e.Reading, e.Phrase); err != nil {
			return err
		}
	}
	return builder.Build(path)
}

// Reopen joins a finished rebuild, adopting its output when it is still
// current, or re-reads the backing file to pick up external changes when
// no rebuild is pending. A rebuild still in flight is left alone.
func (b *Buffer) Reopen() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rebuild != nil {
		if !b.rebuild.finished() {
			return nil
		}
		b.join()
		return nil
	}
	if b.trie == nil {
		return nil
	}
	return b.trie.Reopen()
}

// join absorbs the completed rebuild task. On success, and only if no
// mutation arrived since the snapshot was taken, the freshly built trie
// replaces the current one and the folded-in log and graveyard are
// cleared. A rebuild that raced a mutation is discarded instead: its
// snapshot is stale, and adopting it would drop the log entries that
// arrived during the build. Failures are logged and retried on the next
// Flush. Caller must hold b.mu and have checked the task is finished.
func (b *Buffer) join() {
	task := b.rebuild
	b.rebuild = nil

	if task.err != nil {
		log.Errorf("background rebuild failed: %v", task.err)
		b.dirty = true
		return
	}
	if b.dirty {
		log.Debug("discarding rebuild output, buffer changed during rebuild")
		return
	}

	newStore, err := trie.Open(b.path)
	if err != nil {
		log.Errorf("reopening rebuilt trie: %v", err)
		b.dirty = true
		return
	}
	old := b.trie
	b.trie = newStore
	b.log = make(map[entryKey]phrase.Phrase)
	b.graveyard = make(map[entryKey]struct{})
	if old != nil {
		old.Close()
	}
}

// Close starts a final checkpoint, joins the outstanding rebuild, and
// releases the backing trie mapping. The final checkpoint is skipped when
// a rebuild is already in flight, so mutations made after that rebuild's
// snapshot are not written by Close. Rebuild errors are logged and
// swallowed; the error from unmapping the trie is returned.
func (b *Buffer) Close() error {
	b.checkpoint()
	b.wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rebuild != nil {
		b.join()
	}
	if b.trie == nil {
		return nil
	}
	err := b.trie.Close()
	b.trie = nil
	return err
}

var _ dictdb.Dictionary = (*Buffer)(nil)
