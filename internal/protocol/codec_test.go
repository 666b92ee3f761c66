package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadMessageRoundTrip(t *testing.T) {
	cases := []proto2Message{
		&ClientMessage{ClientCert: []byte{1, 2, 3}, ConnType: ConnectionType_IPV6},
		&ServerMessage{Port: 4433, ServerCert: []byte{9}, Warning: "clock skew detected"},
		&ClosedownReport{SentBytes: 1 << 20, LostPackets: 3},
		&Command{Kind: CommandKind_GET, Filename: "foo"},
		&Response{Status: Status_FILE_NOT_FOUND, Message: "no such file"},
		&FileHeader{Size: 0, Filename: "empty"},
		&FileTrailer{},
		&TransferAbortInformation{Filename: "foo", Status: Status_DISK_FULL, Message: "disk full"},
	}

	for _, original := range cases {
		var buf bytes.Buffer
		require.NoError(t, WriteMessage(&buf, original))

		decoded := newZeroValue(original)
		require.NoError(t, ReadMessage(&buf, decoded))
		require.Equal(t, original, decoded)
	}
}

func TestReadMessageRejectsZeroLength(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 0})
	var msg Command
	err := ReadMessage(buf, &msg)
	require.ErrorIs(t, err, ErrMalformedFrame)
}

func TestReadMessageRejectsOverCapLength(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	var msg Command
	err := ReadMessage(buf, &msg)
	require.ErrorIs(t, err, ErrMalformedFrame)
}

func TestReadMessageRejectsTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, &FileHeader{Size: 42, Filename: "x"}))
	truncated := buf.Bytes()[:buf.Len()-2]

	var msg FileHeader
	err := ReadMessage(bytes.NewReader(truncated), &msg)
	require.ErrorIs(t, err, ErrUnexpectedEOF)
}

func TestWriteMessageEnforcesCap(t *testing.T) {
	big := &Response{Message: string(make([]byte, maxFrameSize+1))}
	var buf bytes.Buffer
	err := WriteMessage(&buf, big)
	require.ErrorIs(t, err, ErrMalformedFrame)
}

// proto2Message narrows the interface surface the test table needs.
type proto2Message interface {
	Reset()
	String() string
	ProtoMessage()
}

func newZeroValue(m proto2Message) proto2Message {
	switch m.(type) {
	case *ClientMessage:
		return &ClientMessage{}
	case *ServerMessage:
		return &ServerMessage{}
	case *ClosedownReport:
		return &ClosedownReport{}
	case *Command:
		return &Command{}
	case *Response:
		return &Response{}
	case *FileHeader:
		return &FileHeader{}
	case *FileTrailer:
		return &FileTrailer{}
	case *TransferAbortInformation:
		return &TransferAbortInformation{}
	default:
		panic("unhandled case in test table")
	}
}
