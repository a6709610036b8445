package coldstore

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/sbauctions/archive/pkg/auction"
)

// Blob framing: the record array is serialized, LZ4-frame compressed,
// then gzip-wrapped. The outer gzip keeps blobs transparently readable
// by generic object-store tooling; the inner LZ4 frames make partial
// corruption detectable per frame.

func encodeBlob(records []auction.Auction) ([]byte, error) {
	payload, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	lz := lz4.NewWriter(gz)

	if _, err := lz.Write(payload); err != nil {
		return nil, err
	}
	if err := lz.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeBlob(body []byte) ([]auction.Auction, error) {
	gz, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	defer gz.Close()

	payload, err := io.ReadAll(lz4.NewReader(gz))
	if err != nil {
		return nil, fmt.Errorf("lz4: %w", err)
	}

	var records []auction.Auction
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, err
	}
	return records, nil
}
