package engine

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCopyExactSize(t *testing.T) {
	src := bytes.Repeat([]byte("x"), 10000)
	var dst bytes.Buffer

	var lastDone uint64
	calls := 0
	n, err := Copy(&dst, bytes.NewReader(src), uint64(len(src)), 4096, func(done uint64) {
		calls++
		lastDone = done
	})
	require.NoError(t, err)
	require.Equal(t, uint64(len(src)), n)
	require.Equal(t, src, dst.Bytes())
	require.Greater(t, calls, 0)
	require.Equal(t, uint64(len(src)), lastDone)
}

func TestCopyZeroSize(t *testing.T) {
	var dst bytes.Buffer
	n, err := Copy(&dst, bytes.NewReader(nil), 0, 4096, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(0), n)
	require.Equal(t, 0, dst.Len())
}

func TestCopyShortSourceReturnsUnexpectedEOF(t *testing.T) {
	src := bytes.Repeat([]byte("y"), 100)
	var dst bytes.Buffer
	_, err := Copy(&dst, bytes.NewReader(src), 200, 32, nil)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestCopyUsesDefaultChunkSizeWhenZero(t *testing.T) {
	src := bytes.Repeat([]byte("z"), 10)
	var dst bytes.Buffer
	n, err := Copy(&dst, bytes.NewReader(src), uint64(len(src)), 0, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(len(src)), n)
}

type erroringWriter struct{ failAfter int }

func (w *erroringWriter) Write(p []byte) (int, error) {
	if w.failAfter <= 0 {
		return 0, io.ErrClosedPipe
	}
	w.failAfter -= len(p)
	return len(p), nil
}

func TestCopyPropagatesWriteError(t *testing.T) {
	src := bytes.Repeat([]byte("w"), 100)
	_, err := Copy(&erroringWriter{failAfter: 0}, bytes.NewReader(src), uint64(len(src)), 16, nil)
	require.Error(t, err)
	require.NotErrorIs(t, err, io.ErrUnexpectedEOF)
}
