/*
Package main implements the batch trie builder command line tool: it
reads a flat reading-phrase source file and emits one trie file.

# Input Format

Each line is a tab-separated (reading, text, freq) triple, where reading
is a comma-separated list of syllable ids:

	412,733	測試	120
	88	甲	10

Blank lines and lines starting with '#' are skipped.
*/
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/zhuyin-ime/phrasestore/pkg/phrase"
	"github.com/zhuyin-ime/phrasestore/pkg/reading"
	"github.com/zhuyin-ime/phrasestore/pkg/trie"
)

const Version = "0.1.0"

func main() {
	inputPath := flag.String("in", "", "Path to the reading/phrase/freq source file")
	outputPath := flag.String("out", "dict.trie", "Path to write the built trie file")
	name := flag.String("name", "", "Dictionary info: name")
	version := flag.String("dict-version", "", "Dictionary info: version")
	debugMode := flag.Bool("v", false, "Toggle verbose mode")
	showVersion := flag.Bool("version", false, "Show current version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("phrasestore-build %s\n", Version)
		os.Exit(0)
	}

	if *debugMode {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	if *inputPath == "" {
		log.Fatal("missing -in source file")
	}

	f, err := os.Open(*inputPath)
	if err != nil {
		log.Fatalf("opening source file: %v", err)
	}
	defer f.Close()

	builder := trie.NewBuilderWithInfo(phrase.Info{
		Name:     *name,
		Version:  *version,
		Software: fmt.Sprintf("phrasestore-build %s", Version),
	})

	count, err := loadEntries(f, builder)
	if err != nil {
		log.Fatalf("loading entries: %v", err)
	}
	log.Infof("loaded %d entries", count)

	if err := builder.Build(*outputPath); err != nil {
		log.Fatalf("building trie: %v", err)
	}
	log.Infof("wrote trie to %s", *outputPath)
}

// loadEntries reads tab-separated (reading, text, freq) lines from r and
// feeds each into builder, returning the number of entries added.
func loadEntries(r *os.File, builder *trie.Builder) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	count := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			log.Warnf("line %d: expected 3 tab-separated fields, got %d", lineNo, len(fields))
			continue
		}

		rd, err := parseReading(fields[0])
		if err != nil {
			log.Warnf("line %d: %v", lineNo, err)
			continue
		}
		freq, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			log.Warnf("line %d: invalid freq %q: %v", lineNo, fields[2], err)
			continue
		}

		if err := builder.Add(rd, phrase.New(fields[1], uint32(freq))); err != nil {
			log.Warnf("line %d: %v", lineNo, err)
			continue
		}
		count++
	}
	return count, scanner.Err()
}

func parseReading(field string) (reading.Reading, error) {
	parts := strings.Split(field, ",")
	out := make(reading.Reading, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid syllable %q: %w", p, err)
		}
		out[i] = reading.Syllable(n)
	}
	return out, nil
}
