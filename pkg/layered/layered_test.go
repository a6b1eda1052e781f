package layered

import (
	"errors"
	"testing"

	"github.com/zhuyin-ime/phrasestore/pkg/dictdb"
	"github.com/zhuyin-ime/phrasestore/pkg/phrase"
	"github.com/zhuyin-ime/phrasestore/pkg/reading"
	"github.com/zhuyin-ime/phrasestore/pkg/userdict"
)

func rd(syls ...uint16) reading.Reading {
	r := make(reading.Reading, len(syls))
	for i, s := range syls {
		r[i] = reading.Syllable(s)
	}
	return r
}

func TestLookupFirstNDedupesEarlierBackendWins(t *testing.T) {
	user := userdict.NewInMemory(phrase.Info{})
	sys := userdict.NewInMemory(phrase.Info{})

	if err := user.Add(rd(1), phrase.New("甲", 5)); err != nil {
		t.Fatal(err)
	}
	if err := sys.Add(rd(1), phrase.New("甲", 99)); err != nil {
		t.Fatal(err)
	}
	if err := sys.Add(rd(1), phrase.New("乙", 1)); err != nil {
		t.Fatal(err)
	}

	d := New(user, sys)
	got := d.LookupAll(rd(1))
	if len(got) != 2 {
		t.Fatalf("LookupAll = %v, want 2 entries", got)
	}
	if got[0].Text != "甲" || got[0].Freq != 5 {
		t.Errorf("user backend entry should win over system entry with same text: got %v", got[0])
	}
}

func TestLookupFirstNOrdersByRankDescending(t *testing.T) {
	user := userdict.NewInMemory(phrase.Info{})
	sys := userdict.NewInMemory(phrase.Info{})
	_ = user.Add(rd(1), phrase.New("低", 1))
	_ = sys.Add(rd(1), phrase.New("高", 10))

	d := New(user, sys)
	got := d.LookupFirstN(rd(1), 10)
	if len(got) != 2 || got[0].Text != "高" || got[1].Text != "低" {
		t.Errorf("LookupFirstN = %v, want [高 低]", got)
	}
}

func TestAddRoutesToFirstBackend(t *testing.T) {
	user := userdict.NewInMemory(phrase.Info{})
	sys := userdict.NewInMemory(phrase.Info{})
	d := New(user, sys)

	if err := d.Add(rd(1), phrase.New("新", 1)); err != nil {
		t.Fatal(err)
	}
	if _, ok := user.LookupFirst(rd(1)); !ok {
		t.Error("Add should have landed in the first (writable) backend")
	}
	if got := sys.LookupAll(rd(1)); len(got) != 0 {
		t.Errorf("Add should not touch later backends, got %v", got)
	}
}

func TestAddOnEmptyComposerIsReadOnly(t *testing.T) {
	d := New()
	err := d.Add(rd(1), phrase.New("x", 1))
	var derr *dictdb.Error
	if !errors.As(err, &derr) || derr.Kind != dictdb.KindReadOnly {
		t.Fatalf("got %v, want ReadOnly", err)
	}
}

func TestAboutFirstNonEmptyWins(t *testing.T) {
	user := userdict.NewInMemory(phrase.Info{Name: "", Version: "1.0"})
	sys := userdict.NewInMemory(phrase.Info{Name: "system-dict", Version: "9.9"})

	d := New(user, sys)
	info := d.About()
	if info.Name != "system-dict" {
		t.Errorf("Name = %q, want first non-empty across backends", info.Name)
	}
	if info.Version != "1.0" {
		t.Errorf("Version = %q, want first backend's non-empty value", info.Version)
	}
}

func TestEntriesUndefinedAcrossBackends(t *testing.T) {
	d := New(userdict.NewInMemory(phrase.Info{}))
	if d.Entries() != nil {
		t.Error("Entries() should be nil for a layered composer")
	}
}

func TestFlushAndReopenFanOutToEveryBackend(t *testing.T) {
	a := userdict.NewInMemory(phrase.Info{})
	b := userdict.NewInMemory(phrase.Info{})
	d := New(a, b)

	if err := d.Flush(); err != nil {
		t.Errorf("Flush = %v, want nil", err)
	}
	if err := d.Reopen(); err != nil {
		t.Errorf("Reopen = %v, want nil", err)
	}
}
