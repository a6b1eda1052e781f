package dictdb_test

import (
	"sort"
	"testing"

	"github.com/zhuyin-ime/phrasestore/pkg/dictdb"
	"github.com/zhuyin-ime/phrasestore/pkg/phrase"
	"github.com/zhuyin-ime/phrasestore/pkg/reading"
)

// mapDictionary is a minimal in-memory Dictionary. It exists only to
// exercise the Dictionary contract in this package's tests.
type mapDictionary struct {
	data map[string][]phrase.Phrase
}

func newMapDictionary() *mapDictionary {
	return &mapDictionary{data: make(map[string][]phrase.Phrase)}
}

func key(r reading.Reading) string { return string(r.Encode()) }

func (m *mapDictionary) LookupFirstN(r reading.Reading, n int) []phrase.Phrase {
	phrases := append([]phrase.Phrase(nil), m.data[key(r)]...)
	phrase.SortDescending(phrases)
	if n >= 0 && n < len(phrases) {
		phrases = phrases[:n]
	}
	return phrases
}

func (m *mapDictionary) LookupFirst(r reading.Reading) (phrase.Phrase, bool) {
	all := m.LookupFirstN(r, 1)
	if len(all) == 0 {
		return phrase.Phrase{}, false
	}
	return all[0], true
}

func (m *mapDictionary) LookupAll(r reading.Reading) []phrase.Phrase {
	return m.LookupFirstN(r, dictdb.Unbounded)
}

func (m *mapDictionary) Entries() dictdb.Entries {
	return nil
}

func (m *mapDictionary) About() phrase.Info { return phrase.Info{} }
func (m *mapDictionary) Reopen() error      { return nil }
func (m *mapDictionary) Flush() error       { return nil }

func (m *mapDictionary) Add(r reading.Reading, p phrase.Phrase) error {
	k := key(r)
	for _, existing := range m.data[k] {
		if existing.Text == p.Text {
			return dictdb.NewDuplicatePhraseError(p.Text)
		}
	}
	m.data[k] = append(m.data[k], p)
	return nil
}

func (m *mapDictionary) Update(r reading.Reading, p phrase.Phrase) error {
	k := key(r)
	for i, existing := range m.data[k] {
		if existing.Text == p.Text {
			m.data[k][i] = p
			return nil
		}
	}
	m.data[k] = append(m.data[k], p)
	return nil
}

func (m *mapDictionary) Remove(r reading.Reading, text string) error {
	k := key(r)
	kept := m.data[k][:0]
	for _, existing := range m.data[k] {
		if existing.Text != text {
			kept = append(kept, existing)
		}
	}
	m.data[k] = kept
	return nil
}

var _ dictdb.Dictionary = (*mapDictionary)(nil)

func TestLookupFirstOne(t *testing.T) {
	d := newMapDictionary()
	r := reading.Reading{1, 2}
	d.Add(r, phrase.New("測試", 1))
	d.Add(r, phrase.New("策試", 1))
	d.Add(r, phrase.New("策士", 1))

	got, ok := d.LookupFirst(r)
	if !ok || got.Text != "測試" {
		t.Errorf("LookupFirst = %q, want 測試 (ties broken by text ascending)", got.Text)
	}
}

func TestLookupAllOrder(t *testing.T) {
	d := newMapDictionary()
	r := reading.Reading{1, 2}
	d.Add(r, phrase.New("甲", 5))
	d.Add(r, phrase.New("乙", 50))
	d.Add(r, phrase.New("丙", 10))

	all := d.LookupAll(r)
	want := []string{"乙", "丙", "甲"}
	for i, w := range want {
		if all[i].Text != w {
			t.Errorf("position %d = %q, want %q", i, all[i].Text, w)
		}
	}
}

func TestAddDuplicateRejected(t *testing.T) {
	d := newMapDictionary()
	r := reading.Reading{1}
	if err := d.Add(r, phrase.New("甲", 1)); err != nil {
		t.Fatalf("first add: %v", err)
	}
	err := d.Add(r, phrase.New("甲", 5))
	var de *dictdb.Error
	if err == nil {
		t.Fatal("expected duplicate phrase error, got nil")
	}
	if !isErrorKind(err, dictdb.KindDuplicatePhrase) {
		t.Errorf("got %v (%T), want KindDuplicatePhrase", err, de)
	}
}

func isErrorKind(err error, kind dictdb.Kind) bool {
	de, ok := err.(*dictdb.Error)
	return ok && de.Kind == kind
}

func TestUniquenessAcrossKeys(t *testing.T) {
	d := newMapDictionary()
	r1 := reading.Reading{1}
	r2 := reading.Reading{2}
	if err := d.Add(r1, phrase.New("甲", 1)); err != nil {
		t.Fatal(err)
	}
	if err := d.Add(r2, phrase.New("甲", 1)); err != nil {
		t.Fatalf("same text under a different reading should be allowed: %v", err)
	}
}

func TestPropertyUniqueTextsPerKey(t *testing.T) {
	d := newMapDictionary()
	r := reading.Reading{9}
	texts := []string{"一", "二", "三", "四"}
	for _, txt := range texts {
		d.Add(r, phrase.New(txt, 1))
	}
	seen := map[string]bool{}
	for _, p := range d.LookupAll(r) {
		if seen[p.Text] {
			t.Errorf("duplicate text %q in lookup_all result", p.Text)
		}
		seen[p.Text] = true
	}
}

func TestPropertyFirstNIsPrefixOfAll(t *testing.T) {
	d := newMapDictionary()
	r := reading.Reading{3}
	freqs := []uint32{5, 80, 1, 42, 7}
	for i, f := range freqs {
		d.Add(r, phrase.New(string(rune('a'+i)), f))
	}
	all := d.LookupAll(r)
	for n := 0; n <= len(all); n++ {
		gotN := d.LookupFirstN(r, n)
		if len(gotN) != n {
			t.Fatalf("LookupFirstN(%d) returned %d results", n, len(gotN))
		}
		for i := range gotN {
			if gotN[i] != all[i] {
				t.Errorf("LookupFirstN(%d)[%d] = %v, want %v", n, i, gotN[i], all[i])
			}
		}
	}
	if !sort.SliceIsSorted(all, func(i, j int) bool { return all[i].Freq > all[j].Freq }) {
		t.Error("lookup_all is not non-increasing by freq")
	}
}
