// Package utils holds small helpers shared by the cache and stats layers.
package utils

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"sync"
)

// gzip writers are reused across calls
var writerPool = sync.Pool{
	New: func() any {
		w, _ := gzip.NewWriterLevel(nil, gzip.BestCompression)
		return w
	},
}

// CompressString gzips input and base64-encodes the result so it can be
// stored inside a JSON cache entry.
func CompressString(input string) (string, error) {
	var buf bytes.Buffer
	zw := writerPool.Get().(*gzip.Writer)
	defer writerPool.Put(zw)
	zw.Reset(&buf)

	if _, err := io.WriteString(zw, input); err != nil {
		return "", fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("gzip close: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecompressString reverses CompressString
func DecompressString(input string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(input)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("gzip header: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("gzip read: %w", err)
	}
	return string(out), nil
}
