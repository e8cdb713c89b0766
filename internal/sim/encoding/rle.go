package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// Cell is any signed byte-sized cell value (grid colors, sentinels).
type Cell interface{ ~int8 }

// EncodeRLE encodes a sequence of cell values into base64(varint pairs).
// The pairs are (zigzag(value), run_len) repeated.
func EncodeRLE[T Cell](cells []T) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(cells) {
		v := cells[i]
		run := 1
		for j := i + 1; j < len(cells) && cells[j] == v && run < 1<<31; j++ {
			run++
		}

		n := binary.PutVarint(tmp[:], int64(v))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeRLE reverses EncodeRLE. limit caps the decoded length (0 = no cap).
func DecodeRLE[T Cell](b64 string, limit int) ([]T, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []T
	for i := 0; i < len(raw); {
		v, n := binary.Varint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if v < math.MinInt8 || v > math.MaxInt8 {
			return nil, fmt.Errorf("cell value out of range: %d", v)
		}
		if limit > 0 && uint64(len(out))+run > uint64(limit) {
			return nil, fmt.Errorf("decoded length exceeds %d", limit)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, T(v))
		}
	}
	return out, nil
}
