package compress

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// Dictionary codec: LZ78 with a bounded table. The encoder emits
// (code, literal) pairs where code references a previously built table
// entry (0 means the empty phrase). The decoder rebuilds the identical
// table while replaying, so every code resolves to an entry created by a
// strictly earlier pair. Codes are varint-encoded; the pair stream is
// base64-wrapped for storage as text.

// maxDictEntries caps the phrase table to bound memory on both sides.
const maxDictEntries = 4096

// lz78Encode encodes raw into the dictionary format.
func lz78Encode(raw []byte) string {
	dict := make(map[string]uint64, 64)
	next := uint64(1)

	var out []byte
	var scratch [binary.MaxVarintLen64]byte

	emit := func(code uint64, hasLiteral bool, literal byte) {
		n := binary.PutUvarint(scratch[:], code)
		out = append(out, scratch[:n]...)
		if hasLiteral {
			out = append(out, 1, literal)
		} else {
			out = append(out, 0)
		}
	}

	var phrase []byte
	code := uint64(0)
	for _, b := range raw {
		extended := append(phrase, b)
		if c, ok := dict[string(extended)]; ok {
			phrase = extended
			code = c
			continue
		}

		emit(code, true, b)
		if next <= maxDictEntries {
			dict[string(extended)] = next
			next++
		}
		phrase = phrase[:0]
		code = 0
	}

	// Trailing phrase with no literal to extend it.
	if len(phrase) > 0 {
		emit(code, false, 0)
	}

	return base64.StdEncoding.EncodeToString(out)
}

// lz78Decode reverses lz78Encode.
func lz78Decode(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}

	// Table index 0 is the empty phrase; real entries start at 1.
	dict := make([][]byte, 1, 64)
	dict[0] = nil

	var out []byte
	pos := 0
	for pos < len(data) {
		code, n := binary.Uvarint(data[pos:])
		if n <= 0 {
			return nil, fmt.Errorf("truncated code at offset %d", pos)
		}
		pos += n

		if code >= uint64(len(dict)) {
			return nil, fmt.Errorf("code %d references unknown table entry", code)
		}

		if pos >= len(data) {
			return nil, fmt.Errorf("truncated pair at offset %d", pos)
		}
		flag := data[pos]
		pos++

		phrase := dict[code]
		switch flag {
		case 0:
			// Final phrase: no literal, nothing added to the table.
			out = append(out, phrase...)
		case 1:
			if pos >= len(data) {
				return nil, fmt.Errorf("missing literal at offset %d", pos)
			}
			literal := data[pos]
			pos++

			entry := make([]byte, 0, len(phrase)+1)
			entry = append(entry, phrase...)
			entry = append(entry, literal)
			out = append(out, entry...)

			if len(dict)-1 < maxDictEntries {
				dict = append(dict, entry)
			}
		default:
			return nil, fmt.Errorf("invalid pair flag %d at offset %d", flag, pos-1)
		}
	}

	return out, nil
}
