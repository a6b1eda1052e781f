package ipcserver

import (
	"bytes"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/zhuyin-ime/phrasestore/pkg/config"
	"github.com/zhuyin-ime/phrasestore/pkg/phrase"
	"github.com/zhuyin-ime/phrasestore/pkg/reading"
	"github.com/zhuyin-ime/phrasestore/pkg/userdict"
)

func newTestServer(t *testing.T, requests ...map[string]interface{}) (*Server, *bytes.Buffer) {
	t.Helper()
	dict := userdict.NewInMemory(phrase.Info{})
	if err := dict.Add(reading.Reading{1, 2}, phrase.New("測試", 10)); err != nil {
		t.Fatal(err)
	}

	var in bytes.Buffer
	enc := msgpack.NewEncoder(&in)
	for _, r := range requests {
		if err := enc.Encode(r); err != nil {
			t.Fatal(err)
		}
	}

	var out bytes.Buffer
	cfg := config.DefaultConfig()
	cfg.Dict.RebuildDebounce = time.Hour // keep maybeFlush a no-op in tests
	return New(dict, cfg, &in, &out), &out
}

func decodeResponses(t *testing.T, buf *bytes.Buffer, n int) []map[string]interface{} {
	t.Helper()
	dec := msgpack.NewDecoder(buf)
	out := make([]map[string]interface{}, 0, n)
	for i := 0; i < n; i++ {
		var m map[string]interface{}
		if err := dec.Decode(&m); err != nil {
			t.Fatalf("decoding response %d: %v", i, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLookupReturnsExistingPhrase(t *testing.T) {
	s, out := newTestServer(t, map[string]interface{}{
		"id": "q1", "r": []interface{}{1, 2}, "n": 5,
	})
	if err := s.Serve(); err != nil {
		t.Fatal(err)
	}
	resp := decodeResponses(t, out, 1)[0]
	if resp["status"] != "ok" {
		t.Fatalf("status = %v, want ok", resp["status"])
	}
	phrases, _ := resp["phrases"].([]interface{})
	if len(phrases) != 1 {
		t.Fatalf("phrases = %v, want 1 entry", phrases)
	}
}

func TestLookupMissingReadingIsError(t *testing.T) {
	s, out := newTestServer(t, map[string]interface{}{"id": "q2"})
	if err := s.Serve(); err != nil {
		t.Fatal(err)
	}
	resp := decodeResponses(t, out, 1)[0]
	if resp["status"] != "error" {
		t.Fatalf("status = %v, want error", resp["status"])
	}
}

func TestMutateAddThenDuplicateRejected(t *testing.T) {
	s, out := newTestServer(t,
		map[string]interface{}{"id": "a1", "op": "add", "r": []interface{}{9}, "text": "新", "freq": 5},
		map[string]interface{}{"id": "a2", "op": "add", "r": []interface{}{9}, "text": "新", "freq": 9},
	)
	if err := s.Serve(); err != nil {
		t.Fatal(err)
	}
	resps := decodeResponses(t, out, 2)
	if resps[0]["status"] != "ok" {
		t.Fatalf("first add status = %v, want ok", resps[0]["status"])
	}
	if resps[1]["status"] != "error" || resps[1]["kind"] != "duplicate phrase" {
		t.Fatalf("second add = %v, want duplicate phrase error", resps[1])
	}
}

func TestMutateRemoveIsBestEffort(t *testing.T) {
	s, out := newTestServer(t, map[string]interface{}{
		"id": "r1", "op": "remove", "r": []interface{}{1, 2}, "text": "not-present",
	})
	if err := s.Serve(); err != nil {
		t.Fatal(err)
	}
	resp := decodeResponses(t, out, 1)[0]
	if resp["status"] != "ok" {
		t.Fatalf("status = %v, want ok (remove is best-effort)", resp["status"])
	}
}
