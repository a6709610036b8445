package bloom

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Serialize writes m, k, n, count, and the bit array to a compact binary
// form suitable for storing as a cold-store index object
// (index/{tag}/bloom.bin, index/master_bloom_0.bin).
func (f *Filter) Serialize() []byte {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var buf bytes.Buffer
	header := make([]byte, 8*4)
	binary.BigEndian.PutUint64(header[0:8], f.m)
	binary.BigEndian.PutUint64(header[8:16], f.k)
	binary.BigEndian.PutUint64(header[16:24], f.n)
	binary.BigEndian.PutUint64(header[24:32], f.count)
	buf.Write(header)

	words := make([]byte, 8*len(f.bits))
	for i, w := range f.bits {
		binary.BigEndian.PutUint64(words[i*8:i*8+8], w)
	}
	buf.Write(words)

	return buf.Bytes()
}

// Deserialize reconstructs a Filter from bytes produced by Serialize.
func Deserialize(data []byte) (*Filter, error) {
	if len(data) < 32 {
		return nil, fmt.Errorf("bloom: truncated header (%d bytes)", len(data))
	}
	m := binary.BigEndian.Uint64(data[0:8])
	k := binary.BigEndian.Uint64(data[8:16])
	n := binary.BigEndian.Uint64(data[16:24])
	count := binary.BigEndian.Uint64(data[24:32])

	words := (m + 63) / 64
	body := data[32:]
	if uint64(len(body)) < words*8 {
		return nil, fmt.Errorf("bloom: truncated body, want %d words got %d bytes", words, len(body))
	}

	bits := make([]uint64, words)
	var bitsSet uint64
	for i := range bits {
		bits[i] = binary.BigEndian.Uint64(body[i*8 : i*8+8])
		bitsSet += uint64(popcount(bits[i]))
	}

	return &Filter{
		m:       m,
		k:       k,
		n:       n,
		count:   count,
		bits:    bits,
		bitsSet: bitsSet,
	}, nil
}
