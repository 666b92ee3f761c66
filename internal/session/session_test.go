package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/quic-go/quic-go"
	"github.com/stretchr/testify/require"

	"github.com/terrorbyte/qcp/internal/protocol"
)

// testStream adapts a net.Conn (from net.Pipe) to the Stream interface;
// quic.Stream's CancelWrite/CancelRead have no analogue on net.Conn, so
// they are recording no-ops here.
type testStream struct {
	net.Conn
	canceled *quic.StreamErrorCode
}

func (s testStream) CancelWrite(code quic.StreamErrorCode) {
	if s.canceled != nil {
		*s.canceled = code
	}
}

func (s testStream) CancelRead(code quic.StreamErrorCode) {
	if s.canceled != nil {
		*s.canceled = code
	}
}

type testDatagramSink struct {
	datagrams [][]byte
}

func (s *testDatagramSink) SendDatagram(data []byte) error {
	s.datagrams = append(s.datagrams, append([]byte(nil), data...))
	return nil
}

// testDatagramChannel implements both DatagramSender and
// DatagramReceiver over a buffered channel, standing in for the
// transport session's datagram path in tests.
type testDatagramChannel struct {
	ch chan []byte
}

func newTestDatagramChannel() *testDatagramChannel {
	return &testDatagramChannel{ch: make(chan []byte, 4)}
}

func (c *testDatagramChannel) SendDatagram(data []byte) error {
	c.ch <- append([]byte(nil), data...)
	return nil
}

func (c *testDatagramChannel) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	select {
	case d := <-c.ch:
		return d, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestGetHappyPath(t *testing.T) {
	dir := t.TempDir()
	content := bytes.Repeat([]byte("qcp-long-fat-"), 4096)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo"), content, 0o644))

	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { serverConn.Close(); clientConn.Close() })

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- ServerHandle(testStream{Conn: serverConn}, nil, dir, 4096)
	}()

	var dst bytes.Buffer
	err := ClientGet(testStream{Conn: clientConn}, "foo", bufferOpener(&dst), 4096, nil)
	require.NoError(t, err)
	require.NoError(t, <-srvErr)
	require.Equal(t, content, dst.Bytes())
}

// bufferOpener adapts a bytes.Buffer to ClientGet's open callback, for
// tests that don't care about the "no local file until confirmed" rule
// a real filesystem destination has to honor.
func bufferOpener(dst *bytes.Buffer) func(uint64) (io.Writer, error) {
	return func(uint64) (io.Writer, error) { return dst, nil }
}

func TestGetNonexistent(t *testing.T) {
	dir := t.TempDir()
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { serverConn.Close(); clientConn.Close() })

	go func() { _ = ServerHandle(testStream{Conn: serverConn}, nil, dir, 4096) }()

	var dst bytes.Buffer
	opened := false
	open := func(uint64) (io.Writer, error) { opened = true; return &dst, nil }
	err := ClientGet(testStream{Conn: clientConn}, "missing", open, 4096, nil)
	require.Error(t, err)
	status, ok := StatusOf(err)
	require.True(t, ok)
	require.Equal(t, protocol.Status_FILE_NOT_FOUND, status)
	require.False(t, opened)
	require.Equal(t, 0, dst.Len())
}

func TestGetRejectsPathSeparatorWithoutTouchingFilesystem(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "secret"), []byte("x"), 0o644))

	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { serverConn.Close(); clientConn.Close() })

	go func() { _ = ServerHandle(testStream{Conn: serverConn}, nil, dir, 4096) }()

	var dst bytes.Buffer
	err := ClientGet(testStream{Conn: clientConn}, "sub/secret", bufferOpener(&dst), 4096, nil)
	require.Error(t, err)
	status, ok := StatusOf(err)
	require.True(t, ok)
	require.Equal(t, protocol.Status_DIRECTORY_DOES_NOT_EXIST, status)
}

func TestGetEmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty"), nil, 0o644))

	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { serverConn.Close(); clientConn.Close() })

	srvErr := make(chan error, 1)
	go func() { srvErr <- ServerHandle(testStream{Conn: serverConn}, nil, dir, 4096) }()

	var dst bytes.Buffer
	err := ClientGet(testStream{Conn: clientConn}, "empty", bufferOpener(&dst), 4096, nil)
	require.NoError(t, err)
	require.NoError(t, <-srvErr)
	require.Equal(t, 0, dst.Len())
}

func TestPutHappyPath(t *testing.T) {
	dir := t.TempDir()
	content := bytes.Repeat([]byte("abc123"), 1000)

	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { serverConn.Close(); clientConn.Close() })

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- ServerHandle(testStream{Conn: serverConn}, &testDatagramSink{}, dir, 4096)
	}()

	err := ClientPut(context.Background(), testStream{Conn: clientConn}, nil, "bar", uint64(len(content)), bytes.NewReader(content), 4096, nil)
	require.NoError(t, err)
	require.NoError(t, <-srvErr)

	written, err := os.ReadFile(filepath.Join(dir, "bar"))
	require.NoError(t, err)
	require.Equal(t, content, written)
}

func TestPutIntoMissingDirectoryIsRejectedBeforeData(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { serverConn.Close(); clientConn.Close() })

	go func() { _ = ServerHandle(testStream{Conn: serverConn}, nil, filepath.Join(t.TempDir(), "no-such-dir"), 4096) }()

	err := ClientPut(context.Background(), testStream{Conn: clientConn}, nil, "bar", 10, bytes.NewReader(make([]byte, 10)), 4096, nil)
	require.Error(t, err)
	status, ok := StatusOf(err)
	require.True(t, ok)
	require.Equal(t, protocol.Status_DIRECTORY_DOES_NOT_EXIST, status)
}

func TestAbortPutTranslatesWrappedDiskFullError(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { serverConn.Close(); clientConn.Close() })

	sink := &testDatagramSink{}
	wrapped := fmt.Errorf("session: send file data: %w", fmt.Errorf("engine: write: %w", fmt.Errorf("write foo: %w", syscall.ENOSPC)))

	go abortPut(testStream{Conn: serverConn}, sink, "foo", wrapped)

	var resp protocol.Response
	require.NoError(t, protocol.ReadMessage(testStream{Conn: clientConn}, &resp))
	require.Equal(t, protocol.Status_DISK_FULL, resp.Status)

	require.Len(t, sink.datagrams, 1)
	var info protocol.TransferAbortInformation
	require.NoError(t, proto.Unmarshal(sink.datagrams[0], &info))
	require.Equal(t, protocol.Status_DISK_FULL, info.Status)
	require.Equal(t, "foo", info.Filename)
}

func TestListenForAbortRecoversStatusFromDatagram(t *testing.T) {
	ch := newTestDatagramChannel()
	payload, err := proto.Marshal(&protocol.TransferAbortInformation{
		Filename: "foo",
		Status:   protocol.Status_DISK_FULL,
		Message:  "no space left",
	})
	require.NoError(t, err)

	abortCh := listenForAbort(context.Background(), ch)
	require.NoError(t, ch.SendDatagram(payload))

	st, ok := awaitAbort(abortCh)
	require.True(t, ok)
	require.Equal(t, protocol.Status_DISK_FULL, st.status)
	require.Equal(t, "no space left", st.message)
}

func TestAwaitAbortTimesOutWithoutDatagram(t *testing.T) {
	_, ok := awaitAbort(make(chan errStatus))
	require.False(t, ok)
}
