package storage

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Payloads are JSON, optionally zstd-compressed. The encoder and decoder are
// shared; EncodeAll and DecodeAll are safe for concurrent use.
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

func encodePayload(v interface{}, compress bool) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	if !compress {
		return data, nil
	}
	return encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func decodePayload(data []byte, compressed bool, v interface{}) error {
	if compressed {
		raw, err := decoder.DecodeAll(data, nil)
		if err != nil {
			return fmt.Errorf("failed to decompress payload: %w", err)
		}
		data = raw
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}
