package raddb

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// Snapshot wire encoding. Deterministic so that identical caches always seal
// to identical plaintexts:
//
//	uint32 count
//	repeated, keys in ascending byte order:
//	  uint32 keyLen | key | uint32 valueLen | value
//
// All integers are big-endian.

// ============================================================================
// Encoding
// ============================================================================

// encodeSnapshot serializes the cache into the deterministic snapshot form.
func encodeSnapshot(cache map[string][]byte) []byte {
	keys := make([]string, 0, len(cache))
	size := 4
	for k := range cache {
		keys = append(keys, k)
		size += 8 + len(k) + len(cache[k])
	}
	sort.Strings(keys)

	out := make([]byte, 0, size)
	out = binary.BigEndian.AppendUint32(out, uint32(len(keys)))
	for _, k := range keys {
		out = binary.BigEndian.AppendUint32(out, uint32(len(k)))
		out = append(out, k...)
		v := cache[k]
		out = binary.BigEndian.AppendUint32(out, uint32(len(v)))
		out = append(out, v...)
	}
	return out
}

// ============================================================================
// Decoding
// ============================================================================

// decodeSnapshot parses the snapshot form back into a cache map.
func decodeSnapshot(data []byte) (map[string][]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("snapshot shorter than header: %d bytes", len(data))
	}

	count := binary.BigEndian.Uint32(data)
	data = data[4:]

	cache := make(map[string][]byte, count)
	for i := uint32(0); i < count; i++ {
		key, rest, err := readChunk(data)
		if err != nil {
			return nil, fmt.Errorf("entry %d key: %w", i, err)
		}
		value, rest, err := readChunk(rest)
		if err != nil {
			return nil, fmt.Errorf("entry %d value: %w", i, err)
		}
		cache[string(key)] = append([]byte(nil), value...)
		data = rest
	}

	if len(data) != 0 {
		return nil, fmt.Errorf("%d trailing bytes after %d entries", len(data), count)
	}
	return cache, nil
}

// readChunk reads one uint32-length-prefixed byte string.
func readChunk(data []byte) ([]byte, []byte, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("truncated length prefix: %d bytes", len(data))
	}
	n := binary.BigEndian.Uint32(data)
	data = data[4:]
	if uint32(len(data)) < n {
		return nil, nil, fmt.Errorf("truncated payload: want %d bytes, have %d", n, len(data))
	}
	return data[:n], data[n:], nil
}
