/*
Package ipcserver implements a MessagePack request/response protocol the
enclosing input-method engine uses to query and mutate a phrasestore
dictionary over stdin/stdout: a decoder reused across requests,
msgpack-encoded responses written atomically, and a debounced background
flush amortized across requests.

# Protocol

Every request and response carries an "id" field the caller chooses so
responses can be matched to requests out of order (the server itself is
strictly request-per-response, but callers pipelining requests need the
correlation). A request without an "op" field is a lookup request:

	{"id": "q1", "r": [412, 733], "n": 10}

A mutation request:

	{"id": "a1", "op": "add", "r": [412, 733], "text": "測試", "freq": 100}

Responses carry "status": "ok" or "error"; lookup responses additionally
carry "phrases"; error responses carry "error" and the dictdb.Kind name
in "kind".
*/
package ipcserver

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/zhuyin-ime/phrasestore/internal/logger"
	"github.com/zhuyin-ime/phrasestore/pkg/config"
	"github.com/zhuyin-ime/phrasestore/pkg/dictdb"
	"github.com/zhuyin-ime/phrasestore/pkg/phrase"
	"github.com/zhuyin-ime/phrasestore/pkg/reading"
)

var log = logger.New("ipcserver")

// LookupRequest asks for up to N phrases for a reading key.
type LookupRequest struct {
	ID string  `msgpack:"id"`
	R  []int32 `msgpack:"r"`
	N  int     `msgpack:"n,omitempty"`
}

// MutateRequest adds, updates or removes one phrase for a reading key.
// Op is one of "add", "update", "remove".
type MutateRequest struct {
	ID   string  `msgpack:"id"`
	Op   string  `msgpack:"op"`
	R    []int32 `msgpack:"r"`
	Text string  `msgpack:"text"`
	Freq uint32  `msgpack:"freq,omitempty"`
	Time uint64  `msgpack:"time,omitempty"`
}

// PhraseWire is the wire shape of a phrase record.
type PhraseWire struct {
	Text string `msgpack:"text"`
	Freq uint32 `msgpack:"freq"`
}

// LookupResponse answers a LookupRequest.
type LookupResponse struct {
	ID        string       `msgpack:"id"`
	Status    string       `msgpack:"status"`
	Phrases   []PhraseWire `msgpack:"phrases,omitempty"`
	TimeTaken int64        `msgpack:"t,omitempty"`
}

// StatusResponse answers a MutateRequest, or a LookupRequest that failed.
type StatusResponse struct {
	ID     string `msgpack:"id"`
	Status string `msgpack:"status"`
	Error  string `msgpack:"error,omitempty"`
	Kind   string `msgpack:"kind,omitempty"`
}

// Server answers lookup/mutate requests against a dictdb.Dictionary over
// a MessagePack stream, with a debounced background flush.
type Server struct {
	dict   dictdb.Dictionary
	cfg    *config.Config
	reader io.Reader
	writer io.Writer

	decoder    *msgpack.Decoder
	writeMutex sync.Mutex
	lastFlush  time.Time
}

// New creates a Server that reads requests from r and writes responses to
// w, bounding lookup size and reading length per cfg.Server.
func New(dict dictdb.Dictionary, cfg *config.Config, r io.Reader, w io.Writer) *Server {
	return &Server{
		dict:      dict,
		cfg:       cfg,
		reader:    r,
		writer:    w,
		decoder:   msgpack.NewDecoder(r),
		lastFlush: time.Now(),
	}
}

// NewStdio creates a Server wired to os.Stdin/os.Stdout, the shape the
// enclosing input-method engine actually launches as a subprocess.
func NewStdio(dict dictdb.Dictionary, cfg *config.Config) *Server {
	return New(dict, cfg, os.Stdin, os.Stdout)
}

// Serve processes requests until the stream is closed (io.EOF) or a
// decode error other than EOF occurs.
func (s *Server) Serve() error {
	log.Debug("starting ipc server")
	for {
		if err := s.processOne(); err != nil {
			if err == io.EOF {
				log.Debug("client disconnected")
				return nil
			}
			log.Errorf("decode error: %v", err)
			return err
		}
	}
}

func (s *Server) processOne() error {
	s.maybeFlush()

	var raw map[string]interface{}
	if err := s.decoder.Decode(&raw); err != nil {
		return err
	}

	if op, ok := raw["op"]; ok {
		return s.handleMutate(raw, op.(string))
	}
	return s.handleLookup(raw)
}

// maybeFlush triggers a background flush at most once per
// cfg.Dict.RebuildDebounce, amortizing the cost of folding the
// write-buffer log into a fresh trie across many requests rather than
// flushing after every mutation.
func (s *Server) maybeFlush() {
	if s.cfg.Dict.RebuildDebounce <= 0 {
		return
	}
	if time.Since(s.lastFlush) < s.cfg.Dict.RebuildDebounce {
		return
	}
	s.lastFlush = time.Now()
	if err := s.dict.Flush(); err != nil {
		log.Errorf("periodic flush: %v", err)
	}
}

func (s *Server) handleLookup(raw map[string]interface{}) error {
	var req LookupRequest
	if id, ok := raw["id"].(string); ok {
		req.ID = id
	}
	if n, ok := raw["n"]; ok {
		req.N = toInt(n)
	}
	r, ok := decodeReading(raw["r"])
	if !ok {
		return s.sendStatus(req.ID, "error", "missing or malformed reading", "")
	}

	if len(r) > s.cfg.Server.MaxReadingLen {
		return s.sendStatus(req.ID, "error", "reading too long", dictdb.KindFormat.String())
	}
	if req.N <= 0 || req.N > s.cfg.Server.MaxLimit {
		req.N = s.cfg.Server.MaxLimit
	}

	start := time.Now()
	phrases := s.dict.LookupFirstN(r, req.N)
	elapsed := time.Since(start)

	wire := make([]PhraseWire, len(phrases))
	for i, p := range phrases {
		wire[i] = PhraseWire{Text: p.Text, Freq: p.Freq}
	}
	return s.send(&LookupResponse{
		ID:        req.ID,
		Status:    "ok",
		Phrases:   wire,
		TimeTaken: elapsed.Microseconds(),
	})
}

func (s *Server) handleMutate(raw map[string]interface{}, op string) error {
	var id string
	if v, ok := raw["id"].(string); ok {
		id = v
	}
	r, ok := decodeReading(raw["r"])
	if !ok {
		return s.sendStatus(id, "error", "missing or malformed reading", "")
	}
	text, _ := raw["text"].(string)
	if text == "" {
		return s.sendStatus(id, "error", "missing phrase text", "")
	}

	var err error
	switch op {
	case "add":
		err = s.dict.Add(r, phrase.New(text, uint32(toInt(raw["freq"]))))
	case "update":
		p := phrase.New(text, uint32(toInt(raw["freq"])))
		if t, ok := raw["time"]; ok {
			p = p.WithTime(uint64(toInt(t)))
		}
		err = s.dict.Update(r, p)
	case "remove":
		err = s.dict.Remove(r, text)
	default:
		return s.sendStatus(id, "error", fmt.Sprintf("unknown op %q", op), "")
	}

	if err != nil {
		kind := ""
		var derr *dictdb.Error
		if errors.As(err, &derr) {
			kind = derr.Kind.String()
		}
		return s.sendStatus(id, "error", err.Error(), kind)
	}
	return s.sendStatus(id, "ok", "", "")
}

func (s *Server) sendStatus(id, status, errMsg, kind string) error {
	return s.send(&StatusResponse{ID: id, Status: status, Error: errMsg, Kind: kind})
}

// send encodes resp to a buffer first, then writes it in one call so a
// concurrent writer never interleaves with a partial response.
func (s *Server) send(resp any) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(resp); err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	if _, err := s.writer.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	if f, ok := s.writer.(interface{ Sync() error }); ok {
		f.Sync()
	}
	return nil
}

func decodeReading(v interface{}) (reading.Reading, bool) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make(reading.Reading, len(list))
	for i, e := range list {
		out[i] = reading.Syllable(toInt(e))
	}
	return out, true
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	case int8:
		return int(n)
	case int16:
		return int(n)
	case int32:
		return int(n)
	case uint8:
		return int(n)
	case uint16:
		return int(n)
	case uint32:
		return int(n)
	default:
		return 0
	}
}
