package phrase

import "testing"

func TestCompareByFreqThenText(t *testing.T) {
	low := New("冊", 1)
	high := New("測", 100)
	if !low.Less(high) {
		t.Error("expected lower freq phrase to rank below higher freq phrase")
	}

	a := New("策試", 5)
	b := New("策士", 5)
	if !b.Less(a) {
		t.Errorf("expected %q < %q when freq ties, by text order", b.Text, a.Text)
	}
}

func TestMaxFavorsHigherRank(t *testing.T) {
	a := New("甲", 5)
	b := New("甲", 20)
	if got := Max(a, b); got.Freq != 20 {
		t.Errorf("Max() = freq %d, want 20", got.Freq)
	}
	if got := Max(b, a); got.Freq != 20 {
		t.Errorf("Max() = freq %d, want 20", got.Freq)
	}
}

func TestSortDescending(t *testing.T) {
	phrases := []Phrase{
		New("乙", 10),
		New("甲", 10),
		New("丙", 50),
	}
	SortDescending(phrases)
	want := []string{"丙", "乙", "甲"}
	for i, w := range want {
		if phrases[i].Text != w {
			t.Errorf("position %d: got %q, want %q", i, phrases[i].Text, w)
		}
	}
}

func TestInfoMergeFirstNonEmptyWins(t *testing.T) {
	a := Info{Name: "", License: "MIT"}
	b := Info{Name: "fallback", License: "GPL"}
	merged := a.Merge(b)
	if merged.Name != "fallback" {
		t.Errorf("Name = %q, want fallback", merged.Name)
	}
	if merged.License != "MIT" {
		t.Errorf("License = %q, want MIT", merged.License)
	}
}

func TestWithTimeTracksPresence(t *testing.T) {
	p := New("詞", 1)
	if p.HasLastUsed() {
		t.Error("fresh Phrase should not report a last-used time")
	}
	p2 := p.WithTime(0)
	if !p2.HasLastUsed() {
		t.Error("WithTime(0) should still mark last-used as present")
	}
}
