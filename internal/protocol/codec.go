// Package protocol defines the length-prefixed wire schemas shared by the
// control channel (over SSH stdio) and the session channel (over QUIC
// streams).
package protocol

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/golang/protobuf/proto"
)

// maxFrameSize bounds a single frame's payload. Core messages are small;
// this cap exists to stop a malformed length field from driving an
// unbounded allocation.
const maxFrameSize = 1 * 1024 * 1024

// ErrMalformedFrame is returned when a frame's length is zero, exceeds
// maxFrameSize, or its payload fails to decode into the target message.
var ErrMalformedFrame = errors.New("protocol: malformed frame")

// ErrUnexpectedEOF is returned when the underlying stream ends before a
// frame that was announced by its length prefix is fully read.
var ErrUnexpectedEOF = errors.New("protocol: unexpected eof mid-frame")

// A proto3 message with every field at its zero value marshals to zero
// bytes, but a frame length of 0 is reserved to mean malformed input (see
// ReadMessage). Every frame therefore carries a one-byte reserved header
// ahead of the actual payload so the length on the wire is never zero,
// even for an empty message such as FileTrailer.
const reservedHeaderByte = 0x00

// WriteMessage writes msg as one length-prefixed frame, in a single Write
// call (so an empty payload never turns into a zero-length Write).
func WriteMessage(w io.Writer, msg proto.Message) error {
	payload, err := proto.Marshal(msg)
	if err != nil {
		return err
	}
	if len(payload)+1 > maxFrameSize {
		return ErrMalformedFrame
	}
	frame := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)+1))
	frame[4] = reservedHeaderByte
	copy(frame[5:], payload)
	_, err = w.Write(frame)
	return err
}

// ReadMessage reads one length-prefixed frame into msg.
func ReadMessage(r io.Reader, msg proto.Message) error {
	head := make([]byte, 4)
	if _, err := io.ReadFull(r, head); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return ErrUnexpectedEOF
		}
		return err
	}
	length := binary.BigEndian.Uint32(head)
	if length == 0 || length > maxFrameSize {
		return ErrMalformedFrame
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return ErrUnexpectedEOF
		}
		return err
	}
	if body[0] != reservedHeaderByte {
		return ErrMalformedFrame
	}
	if err := proto.Unmarshal(body[1:], msg); err != nil {
		return ErrMalformedFrame
	}
	return nil
}
