// Package session implements the GET/PUT state machines that run on a
// session protocol's one bidirectional QUIC stream per file operation.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/quic-go/quic-go"

	"github.com/terrorbyte/qcp/internal/protocol"
)

// Stream is the subset of quic.Stream the state machines need; kept
// narrow so tests can drive them over a fake implementing the same
// quic.StreamErrorCode-typed cancellation methods quic.Stream does.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
	CancelWrite(errorCode quic.StreamErrorCode)
	CancelRead(errorCode quic.StreamErrorCode)
}

// DatagramSender is the subset of the transport session needed to emit
// TransferAbortInformation out-of-band during a PUT abort.
type DatagramSender interface {
	SendDatagram(data []byte) error
}

// DatagramReceiver is the subset of the transport session needed to
// recover a PUT's abort reason out-of-band, in case the stream reset
// that would otherwise carry it races the final Response.
type DatagramReceiver interface {
	ReceiveDatagram(ctx context.Context) ([]byte, error)
}

// rejectLeafOnly enforces invariant 5: a Command naming anything but a
// bare leaf filename is rejected before the filesystem is touched.
func rejectLeafOnly(filename string) error {
	if filename == "" || filename != filepath.Base(filename) || strings.ContainsAny(filename, `/\`) {
		return errStatus{protocol.Status_DIRECTORY_DOES_NOT_EXIST, fmt.Sprintf("%q is not a leaf filename", filename)}
	}
	return nil
}

// errStatus pairs a protocol.Status with a message, letting both sides
// translate local failures into a Response without string matching.
type errStatus struct {
	status  protocol.Status
	message string
}

func (e errStatus) Error() string { return e.message }

// StatusOf extracts the protocol.Status carried by an error returned
// from this package, if any.
func StatusOf(err error) (protocol.Status, bool) {
	var st errStatus
	if errors.As(err, &st) {
		return st.status, true
	}
	return protocol.Status_OK, false
}

// statusFromOSError translates an OS-level failure into a Status,
// unwrapping through any number of fmt.Errorf("...: %w", ...) layers
// (errors.Is walks the whole chain, unlike the older os.IsNotExist/
// os.IsPermission helpers) so a mid-transfer error from deep inside
// engine.Copy still maps to the right Status instead of a catch-all
// IO_ERROR.
func statusFromOSError(err error) errStatus {
	switch {
	case errors.Is(err, syscall.ENOSPC):
		return errStatus{protocol.Status_DISK_FULL, err.Error()}
	case errors.Is(err, fs.ErrNotExist):
		return errStatus{protocol.Status_FILE_NOT_FOUND, err.Error()}
	case errors.Is(err, fs.ErrPermission):
		return errStatus{protocol.Status_INCORRECT_PERMISSIONS, err.Error()}
	default:
		return errStatus{protocol.Status_IO_ERROR, err.Error()}
	}
}
