package port

import (
	"context"
)

// BackendResponse is the reduced response shape the edge cache works with.
type BackendResponse struct {
	Status      int
	ContentType string
	Body        []byte
}

// OK reports whether the response status is 2xx.
func (r *BackendResponse) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Backend is the upstream POS API. Requests are bounded by the client's
// ambient timeout; a timeout is reported as an error.
type Backend interface {
	// Do issues a request against the backend. A non-2xx status is not an
	// error; callers inspect the response.
	Do(ctx context.Context, method, endpoint string, body []byte) (*BackendResponse, error)
	// Ping probes backend reachability. Used by the connectivity monitor.
	Ping(ctx context.Context) error
}

// Compressor encodes values for persistent storage and decodes them back.
type Compressor interface {
	// Compress serializes v to canonical JSON and returns the stored
	// payload, whether it is compression-encoded, and the byte sizes of
	// the original and stored forms.
	Compress(v any) (payload string, compressed bool, originalSize, storedSize int64, err error)
	// Decompress decodes a stored payload back to the original value.
	Decompress(payload string) (any, error)
}
