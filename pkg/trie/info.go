package trie

import (
	"encoding/binary"

	"github.com/zhuyin-ime/phrasestore/pkg/phrase"
)

// infoFields lists the phrase.Info fields in the fixed order they are
// serialized in, matching the accessor/mutator pairs below.
var infoFields = []struct {
	get func(phrase.Info) string
	set func(*phrase.Info, string)
}{
	{func(i phrase.Info) string { return i.Name }, func(i *phrase.Info, s string) { i.Name = s }},
	{func(i phrase.Info) string { return i.Copyright }, func(i *phrase.Info, s string) { i.Copyright = s }},
	{func(i phrase.Info) string { return i.License }, func(i *phrase.Info, s string) { i.License = s }},
	{func(i phrase.Info) string { return i.Version }, func(i *phrase.Info, s string) { i.Version = s }},
	{func(i phrase.Info) string { return i.Software }, func(i *phrase.Info, s string) { i.Software = s }},
}

// readInfo decodes the info record starting at the offset recorded in
// the header. Each field is a u32 length prefix followed by UTF-8 bytes.
func readInfo(data []byte) phrase.Info {
	off := arrayOffset(data, offInfo)
	var info phrase.Info
	for _, field := range infoFields {
		n := binary.LittleEndian.Uint32(data[off:])
		off += 4
		field.set(&info, string(data[off:off+uint64(n)]))
		off += uint64(n)
	}
	return info
}

// encodedInfoSize returns the number of bytes appendInfo will emit for
// info.
func encodedInfoSize(info phrase.Info) int {
	n := 0
	for _, field := range infoFields {
		n += 4 + len(field.get(info))
	}
	return n
}

// appendInfo appends the encoded form of info to buf and returns the
// result.
func appendInfo(buf []byte, info phrase.Info) []byte {
	var lenBuf [4]byte
	for _, field := range infoFields {
		s := field.get(info)
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, s...)
	}
	return buf
}
