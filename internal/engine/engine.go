// Package engine drives the chunked copy between a QUIC stream and the
// local filesystem: fixed-size reads/writes and periodic progress events.
// It does not remove partial destination files on failure; cmd/qcp's
// client does that. It has no protocol framing of its own — internal/session hands it a
// plain io.Reader/io.Writer pair bounded to exactly the declared size.
package engine

import (
	"fmt"
	"io"
)

// DefaultChunkSize matches the teacher's own buffer size, which this
// design also names as the session's default (tunable).
const DefaultChunkSize = 128 * 1024

// Progress is emitted periodically while a copy runs.
type Progress struct {
	BytesDone  uint64
	InstantBps float64
	EWMABps    float64
}

// Copy reads exactly size bytes from src and writes them to dst in
// chunkSize pieces, invoking onProgress (if non-nil) after each chunk
// with the cumulative byte count. It returns io.ErrUnexpectedEOF if src
// ends before size bytes have been read, matching the *unexpected-eof*
// classification the session protocol uses for a short transfer.
func Copy(dst io.Writer, src io.Reader, size uint64, chunkSize int, onProgress func(done uint64)) (uint64, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	buf := make([]byte, chunkSize)
	limited := io.LimitReader(src, int64(size))

	var done uint64
	for done < size {
		want := len(buf)
		if remaining := size - done; remaining < uint64(want) {
			want = int(remaining)
		}
		n, readErr := io.ReadFull(limited, buf[:want])
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return done, fmt.Errorf("engine: write: %w", writeErr)
			}
			done += uint64(n)
			if onProgress != nil {
				onProgress(done)
			}
		}
		if readErr != nil {
			if readErr == io.ErrUnexpectedEOF || readErr == io.EOF {
				return done, io.ErrUnexpectedEOF
			}
			return done, fmt.Errorf("engine: read: %w", readErr)
		}
	}
	return done, nil
}
