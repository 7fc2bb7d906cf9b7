package services

import (
	"bytes"
	"compress/gzip"
	"io"
)

// compressBytes gzips data and reports whether compression was applied.
// The stage is best-effort: on any error, or when the output is not
// smaller than the input, the original bytes are returned unchanged and
// the upload proceeds uncompressed.
func compressBytes(data []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return data, false
	}
	if err := w.Close(); err != nil {
		return data, false
	}
	if buf.Len() >= len(data) {
		return data, false
	}
	return buf.Bytes(), true
}

// decompressBytes reverses compressBytes. Unlike compression, failure here
// is fatal: the stored record says the payload is gzipped.
func decompressBytes(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
