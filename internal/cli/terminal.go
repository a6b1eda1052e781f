// Package cli provides an interactive REPL for querying and editing a
// phrasestore dictionary by hand, the manual-lookup counterpart to
// pkg/ipcserver's scripted protocol.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/zhuyin-ime/phrasestore/pkg/dictdb"
	"github.com/zhuyin-ime/phrasestore/pkg/phrase"
	"github.com/zhuyin-ime/phrasestore/pkg/reading"
)

var (
	candidateStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	freqStyle   = lipgloss.NewStyle().Faint(true)
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#286983", Dark: "#9ccfd8"})
)

// Repl drives an interactive lookup/edit session against a dictionary.
type Repl struct {
	dict         dictdb.Dictionary
	suggestLimit int
}

// New creates a Repl bounding lookups to limit candidates.
func New(dict dictdb.Dictionary, limit int) *Repl {
	return &Repl{dict: dict, suggestLimit: limit}
}

// Start begins the REPL loop. It reads one line at a time from stdin
// until EOF or an unrecoverable read error.
//
// Commands:
//
//	<syl> <syl> ...              look up a reading key
//	add <syl>... / text / freq   insert a new phrase
//	upd <syl>... / text / freq   upsert a phrase
//	rm  <syl>... / text          remove a phrase
func (r *Repl) Start() error {
	log.Print("phrasestore CLI")
	reader := bufio.NewReader(os.Stdin)
	log.Print("enter a reading (space-separated syllable ids) to look it up, or 'add'/'upd'/'rm'; Ctrl+C to exit:")

	for {
		fmt.Print(promptStyle.Render("> "))
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			fmt.Println()
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.handleLine(line)
	}
}

func (r *Repl) handleLine(line string) {
	fields := strings.SplitN(line, "/", 2)
	head := strings.Fields(strings.TrimSpace(fields[0]))
	if len(head) == 0 {
		return
	}

	switch head[0] {
	case "add", "upd", "update":
		r.handleMutate(head[0], head[1:], fields)
	case "rm", "remove":
		r.handleRemove(head[1:], fields)
	default:
		r.handleLookup(head)
	}
}

func (r *Repl) parseReading(tokens []string) (reading.Reading, bool) {
	out := make(reading.Reading, 0, len(tokens))
	for _, tok := range tokens {
		n, err := strconv.ParseUint(tok, 10, 16)
		if err != nil {
			log.Errorf("invalid syllable %q: %v", tok, err)
			return nil, false
		}
		out = append(out, reading.Syllable(n))
	}
	if len(out) == 0 {
		log.Error("empty reading")
		return nil, false
	}
	return out, true
}

func (r *Repl) handleLookup(tokens []string) {
	rd, ok := r.parseReading(tokens)
	if !ok {
		return
	}

	start := time.Now()
	phrases := r.dict.LookupFirstN(rd, r.suggestLimit)
	elapsed := time.Since(start)

	if len(phrases) == 0 {
		log.Warnf("no phrases found for reading %v", tokens)
		return
	}

	log.Printf("found %d phrases for %v (%v):", len(phrases), tokens, elapsed)
	for i, p := range phrases {
		fmt.Printf("%2d. %s %s\n", i+1, candidateStyle.Render(p.Text), freqStyle.Render(fmt.Sprintf("(freq: %d)", p.Freq)))
	}
}

// rest is "<syllables> / text / freq"
func (r *Repl) handleMutate(verb string, head []string, fields []string) {
	rd, ok := r.parseReading(head)
	if !ok {
		return
	}
	if len(fields) < 2 {
		log.Error("usage: add|upd <syllables> / <text> / <freq>")
		return
	}
	rest := strings.SplitN(fields[1], "/", 2)
	text := strings.TrimSpace(rest[0])
	if text == "" {
		log.Error("phrase text cannot be empty")
		return
	}
	freq := uint64(0)
	if len(rest) > 1 {
		parsed, err := strconv.ParseUint(strings.TrimSpace(rest[1]), 10, 32)
		if err != nil {
			log.Errorf("invalid freq: %v", err)
			return
		}
		freq = parsed
	}

	p := phrase.New(text, uint32(freq))
	var err error
	if verb == "add" {
		err = r.dict.Add(rd, p)
	} else {
		err = r.dict.Update(rd, p)
	}
	if err != nil {
		log.Errorf("%s failed: %v", verb, err)
		return
	}
	log.Printf("%s ok: %s (freq %d)", verb, text, freq)
}

// rest is "<syllables> / text"
func (r *Repl) handleRemove(head []string, fields []string) {
	rd, ok := r.parseReading(head)
	if !ok {
		return
	}
	if len(fields) < 2 {
		log.Error("usage: rm <syllables> / <text>")
		return
	}
	text := strings.TrimSpace(fields[1])
	if err := r.dict.Remove(rd, text); err != nil {
		log.Errorf("remove failed: %v", err)
		return
	}
	log.Printf("removed %q (best-effort)", text)
}
