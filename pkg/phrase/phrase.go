// Package phrase defines the phrase record and dictionary metadata shared
// by every backend in phrasestore.
package phrase

import (
	"cmp"
	"sort"
)

// Phrase is a candidate phrase and its ranking metadata.
//
// Key, the identity of a phrase within one reading, is its Text alone.
// Compare orders by Freq and Text only; LastUsed is informational and
// does not take part in ordering. The == operator compares every field,
// LastUsed included.
type Phrase struct {
	Text     string
	Freq     uint32
	LastUsed uint64
	hasTime  bool
}

// New creates a Phrase with no last-used time.
func New(text string, freq uint32) Phrase {
	return Phrase{Text: text, Freq: freq}
}

// WithTime returns a copy of p with LastUsed set.
func (p Phrase) WithTime(lastUsed uint64) Phrase {
	p.LastUsed = lastUsed
	p.hasTime = true
	return p
}

// HasLastUsed reports whether a last-used time was attached to this
// record (distinguishes "0" from "absent").
func (p Phrase) HasLastUsed() bool {
	return p.hasTime
}

// Key returns the identity of a phrase within one reading: its text.
func (p Phrase) Key() string {
	return p.Text
}

// Compare orders phrases by rank: Freq ascending, then Text
// lexicographically ascending. A "higher rank" is a larger value under
// this order.
func (p Phrase) Compare(other Phrase) int {
	if c := cmp.Compare(p.Freq, other.Freq); c != 0 {
		return c
	}
	return cmp.Compare(p.Text, other.Text)
}

// Less reports whether p ranks strictly below other.
func (p Phrase) Less(other Phrase) bool {
	return p.Compare(other) < 0
}

// Max returns whichever of a, b ranks higher; ties favor a.
func Max(a, b Phrase) Phrase {
	if b.Compare(a) > 0 {
		return b
	}
	return a
}

// SortDescending sorts phrases by rank descending (highest first), with
// ties broken by Text ascending — the order lookup_first_n must return.
func SortDescending(phrases []Phrase) {
	sort.SliceStable(phrases, func(i, j int) bool {
		if phrases[i].Freq != phrases[j].Freq {
			return phrases[i].Freq > phrases[j].Freq
		}
		return phrases[i].Text < phrases[j].Text
	})
}

// Info is optional metadata attached to a dictionary as a whole.
type Info struct {
	Name      string
	Copyright string
	License   string
	Version   string
	Software  string
}

// Merge returns an Info where each field is the first non-empty value
// between i and other, preferring i's fields. This implements the
// layered dictionary's "first non-empty wins" aggregation rule.
func (i Info) Merge(other Info) Info {
	return Info{
		Name:      firstNonEmpty(i.Name, other.Name),
		Copyright: firstNonEmpty(i.Copyright, other.Copyright),
		License:   firstNonEmpty(i.License, other.License),
		Version:   firstNonEmpty(i.Version, other.Version),
		Software:  firstNonEmpty(i.Software, other.Software),
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
