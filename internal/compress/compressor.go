// Package compress encodes JSON-serializable values for persistent storage.
//
// Payloads below a minimum size are stored as raw JSON. Larger payloads are
// compressed with gzip when possible, falling back to a dictionary codec,
// and the compressed form is only kept when it is meaningfully smaller than
// the original. Every stored payload carries a scheme prefix so decoding
// needs no external metadata.
package compress

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/vendapos/pos-edge-cache/internal/domain"
	"github.com/vendapos/pos-edge-cache/internal/port"
)

// Scheme prefixes identifying how a stored payload is encoded.
const (
	gzipPrefix   = "gzip:"
	simplePrefix = "simple:"
)

const (
	// DefaultMinCompressSize is the serialized size below which compression
	// is skipped entirely: encoding overhead would exceed the benefit.
	DefaultMinCompressSize = 100

	// DefaultKeepRatio is the maximum stored/original size ratio at which a
	// compressed form is kept. Above it the raw JSON is stored instead, so
	// reads never pay decompression cost for negligible savings.
	DefaultKeepRatio = 0.9
)

// Compressor implements port.Compressor.
type Compressor struct {
	minSize   int
	keepRatio float64
	// disableGzip forces the dictionary fallback; used in tests.
	disableGzip bool
}

// Ensure Compressor implements port.Compressor
var _ port.Compressor = (*Compressor)(nil)

// New creates a Compressor with default thresholds.
func New() *Compressor {
	return &Compressor{
		minSize:   DefaultMinCompressSize,
		keepRatio: DefaultKeepRatio,
	}
}

// Compress serializes v to canonical JSON and returns the payload to store.
// The returned sizes are byte counts of the serialized original and of the
// stored form (including the scheme prefix, since that is what persists).
func (c *Compressor) Compress(v any) (string, bool, int64, int64, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", false, 0, 0, fmt.Errorf("serialize value: %w", err)
	}

	originalSize := int64(len(raw))
	if len(raw) < c.minSize {
		return string(raw), false, originalSize, originalSize, nil
	}

	encoded := c.encode(raw)

	// Keep the compressed form only when it is at least 10% smaller.
	if float64(len(encoded)) > float64(len(raw))*c.keepRatio {
		return string(raw), false, originalSize, originalSize, nil
	}

	return encoded, true, originalSize, int64(len(encoded)), nil
}

// encode produces a prefixed encoding of raw, preferring gzip.
func (c *Compressor) encode(raw []byte) string {
	if !c.disableGzip {
		if out, err := gzipEncode(raw); err == nil {
			return out
		}
	}
	return simplePrefix + lz78Encode(raw)
}

// Decompress decodes a stored payload back to the original value.
// An empty or malformed payload yields a DecompressionError.
func (c *Compressor) Decompress(payload string) (any, error) {
	if payload == "" {
		return nil, domain.NewDecompressionError("raw", fmt.Errorf("empty payload"))
	}

	var (
		raw []byte
		err error
	)
	switch {
	case strings.HasPrefix(payload, gzipPrefix):
		raw, err = gzipDecode(payload[len(gzipPrefix):])
		if err != nil {
			return nil, domain.NewDecompressionError("gzip", err)
		}
	case strings.HasPrefix(payload, simplePrefix):
		raw, err = lz78Decode(payload[len(simplePrefix):])
		if err != nil {
			return nil, domain.NewDecompressionError("simple", err)
		}
	default:
		raw = []byte(payload)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, domain.NewDecompressionError("raw", err)
	}
	return v, nil
}

// gzipEncode compresses raw and wraps it in base64 under the gzip prefix.
func gzipEncode(raw []byte) (string, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return gzipPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// gzipDecode reverses gzipEncode (without the prefix).
func gzipDecode(encoded string) ([]byte, error) {
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	r, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
