package pipeline

import (
	"bytes"
	"io"
)

// readAllAndClose drains and closes a blob store reader, returning its
// bytes. Buffering is necessary wherever the same media's bytes feed more
// than one model call (Phase A/B comparisons, tournament matches), since an
// io.ReadCloser can only be consumed once.
func readAllAndClose(r io.ReadCloser) ([]byte, error) {
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

// newByteReader returns a fresh reader over buffered bytes, for a model call
// that needs to consume them once more.
func newByteReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}
