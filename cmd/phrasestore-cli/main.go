/*
Package main implements the phrasestore query/edit command line tool.

phrasestore-cli opens a user dictionary (write-buffered, see pkg/userdict)
layered over an optional system trie (see pkg/trie, pkg/layered) and
either drives an interactive REPL for manual testing (internal/cli) or
serves MessagePack requests over stdin/stdout for the enclosing
input-method engine (pkg/ipcserver).
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	json "github.com/goccy/go-json"

	"github.com/charmbracelet/log"

	"github.com/zhuyin-ime/phrasestore/internal/cli"
	"github.com/zhuyin-ime/phrasestore/pkg/config"
	"github.com/zhuyin-ime/phrasestore/pkg/dictdb"
	"github.com/zhuyin-ime/phrasestore/pkg/ipcserver"
	"github.com/zhuyin-ime/phrasestore/pkg/layered"
	"github.com/zhuyin-ime/phrasestore/pkg/phrase"
	"github.com/zhuyin-ime/phrasestore/pkg/trie"
	"github.com/zhuyin-ime/phrasestore/pkg/userdict"
)

const Version = "0.1.0-beta"

func sigHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		os.Exit(0)
	}()
}

func main() {
	sigHandler()
	defaultConfig := config.DefaultConfig()

	showVersion := flag.Bool("version", false, "Show current version")
	configFile := flag.String("config", "config.toml", "Path to config.toml file")
	userDictPath := flag.String("user", "user.trie", "Path to the user dictionary trie file")
	systemDictPath := flag.String("system", "", "Path to a read-only system trie file (optional)")
	debugMode := flag.Bool("v", false, "Toggle verbose mode")
	cliMode := flag.Bool("c", false, "Run interactive REPL instead of the IPC server")
	dumpMode := flag.Bool("dump", false, "Print DictionaryInfo and a sample of entries as JSON, then exit")
	dumpSample := flag.Int("dump-n", 20, "Max entries to include in -dump output")
	limit := flag.Int("limit", defaultConfig.CLI.DefaultLimit, "Number of candidates to return")
	flag.Parse()

	if *showVersion {
		fmt.Printf("phrasestore-cli %s\n", Version)
		os.Exit(0)
	}

	if *debugMode {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	cfg, err := config.InitConfig(*configFile)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	dict, closeDict, err := openDictionary(*userDictPath, *systemDictPath)
	if err != nil {
		log.Fatalf("opening dictionary: %v", err)
	}
	defer closeDict()

	if *dumpMode {
		if err := dumpDictionary(dict, *dumpSample); err != nil {
			log.Fatalf("dump: %v", err)
		}
		return
	}

	if *cliMode {
		log.SetReportTimestamp(false)
		repl := cli.New(dict, *limit)
		if err := repl.Start(); err != nil {
			log.Fatalf("CLI error: %v", err)
		}
		return
	}

	log.Debug("spawning IPC server")
	srv := ipcserver.NewStdio(dict, cfg)
	if err := srv.Serve(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// openDictionary builds the runtime dictionary: the user's write-buffered
// trie, optionally layered in front of a read-only system trie. The user
// dictionary goes first so writes land there. The returned close func
// flushes the user buffer and releases every mapping.
func openDictionary(userPath, systemPath string) (dictdb.Dictionary, func(), error) {
	if err := os.MkdirAll(filepath.Dir(userPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating user dict directory: %w", err)
	}

	user, err := userdict.Open(userPath, phrase.Info{
		Name:     "user dictionary",
		Version:  "0.0.0",
		Software: fmt.Sprintf("phrasestore-cli %s", Version),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening user dictionary: %w", err)
	}
	closeUser := func() {
		if err := user.Close(); err != nil {
			log.Errorf("closing user dictionary: %v", err)
		}
	}

	if systemPath == "" {
		return user, closeUser, nil
	}

	system, err := trie.Open(systemPath)
	if err != nil {
		closeUser()
		return nil, nil, fmt.Errorf("opening system dictionary: %w", err)
	}
	closeAll := func() {
		closeUser()
		if err := system.Close(); err != nil {
			log.Errorf("closing system dictionary: %v", err)
		}
	}
	return layered.New(user, trie.AsDictionary(system)), closeAll, nil
}

// dumpEntry is the JSON-friendly shape of one dictionary entry.
type dumpEntry struct {
	Reading []uint16 `json:"reading"`
	Text    string   `json:"text"`
	Freq    uint32   `json:"freq"`
}

// dumpOutput is what -dump prints: the dictionary's metadata plus a
// bounded sample of its entries, for ad hoc inspection rather than
// scripted consumption.
type dumpOutput struct {
	Info    phrase.Info `json:"info"`
	Entries []dumpEntry `json:"entries"`
	Elided  bool        `json:"elided"`
}

// dumpDictionary writes up to limit entries of dict as JSON to stdout.
// Backends that cannot enumerate (layered composers) dump metadata only.
func dumpDictionary(dict dictdb.Dictionary, limit int) error {
	out := dumpOutput{Info: dict.About()}

	if entries := dict.Entries(); entries != nil {
		n := 0
		entries.ForEach(func(e dictdb.Entry) bool {
			if n >= limit {
				out.Elided = true
				return false
			}
			syls := make([]uint16, len(e.Reading))
			for i, s := range e.Reading {
				syls[i] = uint16(s)
			}
			out.Entries = append(out.Entries, dumpEntry{
				Reading: syls,
				Text:    e.Phrase.Text,
				Freq:    e.Phrase.Freq,
			})
			n++
			return true
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

