package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/quic-go/quic-go"

	"github.com/terrorbyte/qcp/internal/engine"
	"github.com/terrorbyte/qcp/internal/protocol"
)

// abortGracePeriod bounds how long ClientPut waits for a
// TransferAbortInformation datagram once the stream itself has already
// failed, so a lost or never-sent datagram doesn't hang the caller.
const abortGracePeriod = 500 * time.Millisecond

// ClientPut drives the client side of a PUT: send Command, wait for
// readiness, stream the header/data/trailer, then read the server's
// final disposition Response. While the stream is live it also listens
// for a TransferAbortInformation datagram, so a final Response lost to
// the server's stream reset still surfaces the real abort Status
// instead of a bare stream-reset error.
func ClientPut(ctx context.Context, stream Stream, dgram DatagramReceiver, filename string, size uint64, src io.Reader, chunkSize int, onProgress func(done uint64)) error {
	listenCtx, cancelListen := context.WithCancel(ctx)
	defer cancelListen()
	abortCh := listenForAbort(listenCtx, dgram)

	if err := protocol.WriteMessage(stream, &protocol.Command{Kind: protocol.CommandKind_PUT, Filename: filename}); err != nil {
		return fmt.Errorf("session: send Put command: %w", err)
	}

	var ready protocol.Response
	if err := protocol.ReadMessage(stream, &ready); err != nil {
		return fmt.Errorf("session: read readiness Response: %w", err)
	}
	if ready.Status != protocol.Status_OK {
		return errStatus{ready.Status, ready.Message}
	}

	if err := protocol.WriteMessage(stream, &protocol.FileHeader{Size: size, Filename: filename}); err != nil {
		return fmt.Errorf("session: send FileHeader: %w", err)
	}
	if _, err := engine.Copy(stream, src, size, chunkSize, onProgress); err != nil {
		if st, ok := awaitAbort(abortCh); ok {
			return st
		}
		return fmt.Errorf("session: send file data: %w", err)
	}
	if err := protocol.WriteMessage(stream, &protocol.FileTrailer{}); err != nil {
		if st, ok := awaitAbort(abortCh); ok {
			return st
		}
		return fmt.Errorf("session: send FileTrailer: %w", err)
	}

	var final protocol.Response
	if err := protocol.ReadMessage(stream, &final); err != nil {
		if st, ok := awaitAbort(abortCh); ok {
			return st
		}
		return fmt.Errorf("session: read final Response: %w", err)
	}
	if final.Status != protocol.Status_OK {
		return errStatus{final.Status, final.Message}
	}
	return nil
}

// listenForAbort drains datagrams in the background for the lifetime of
// ctx, decoding the first TransferAbortInformation it sees onto the
// returned channel. dgram may be nil (e.g. in tests exercising the
// stream-only path), in which case the channel simply never fires.
func listenForAbort(ctx context.Context, dgram DatagramReceiver) <-chan errStatus {
	ch := make(chan errStatus, 1)
	if dgram == nil {
		return ch
	}
	go func() {
		for {
			payload, err := dgram.ReceiveDatagram(ctx)
			if err != nil {
				return
			}
			var info protocol.TransferAbortInformation
			if err := proto.Unmarshal(payload, &info); err != nil {
				continue
			}
			select {
			case ch <- errStatus{info.Status, info.Message}:
			default:
			}
			return
		}
	}()
	return ch
}

// awaitAbort gives a TransferAbortInformation datagram a brief window
// to arrive once the stream has already reported a failure, since UDP
// delivery and the stream reset race each other.
func awaitAbort(ch <-chan errStatus) (errStatus, bool) {
	select {
	case st := <-ch:
		return st, true
	case <-time.After(abortGracePeriod):
		return errStatus{}, false
	}
}

// servePut implements the server-side PUT state table: Recv ->
// Validating -> ReadingHeader -> ReadingData -> ReadingTrailer ->
// Reporting, with an Aborting branch on any write failure that emits a
// TransferAbortInformation datagram before closing. Validating opens the
// destination file immediately (rejecting a bad path/permission before
// any readiness Response is sent), matching the teacher's upload-handler
// shape of "open destination, then signal readiness."
func servePut(stream Stream, dgram DatagramSender, cmd *protocol.Command, root *rootedDir, chunkSize int) error {
	f, err := root.createForWrite(cmd.Filename, 0)
	if err != nil {
		return sendErrorResponse(stream, err)
	}
	defer f.Close()

	if err := protocol.WriteMessage(stream, &protocol.Response{Status: protocol.Status_OK}); err != nil {
		return fmt.Errorf("session: send readiness Response: %w", err)
	}

	// ReadingHeader
	var header protocol.FileHeader
	if err := protocol.ReadMessage(stream, &header); err != nil {
		return fmt.Errorf("session: read FileHeader: %w", err)
	}

	// ReadingData
	if _, err := engine.Copy(f, stream, header.Size, chunkSize, nil); err != nil {
		abortPut(stream, dgram, cmd.Filename, err)
		return err
	}

	// ReadingTrailer
	var trailer protocol.FileTrailer
	if err := protocol.ReadMessage(stream, &trailer); err != nil {
		abortPut(stream, dgram, cmd.Filename, err)
		return err
	}

	if err := f.Sync(); err != nil {
		abortPut(stream, dgram, cmd.Filename, err)
		return err
	}

	// Reporting
	if err := protocol.WriteMessage(stream, &protocol.Response{Status: protocol.Status_OK, Message: "put complete"}); err != nil {
		return fmt.Errorf("session: send final Response: %w", err)
	}
	return nil
}

// abortPut sends a TransferAbortInformation datagram so the client
// learns the failure reason even if the stream reset race is lost, then
// best-effort reports the same status over the stream and resets it.
func abortPut(stream Stream, dgram DatagramSender, filename string, err error) {
	var st errStatus
	if !errors.As(err, &st) {
		st = statusFromOSError(err)
	}
	if dgram != nil {
		abort := &protocol.TransferAbortInformation{Filename: filename, Status: st.status, Message: st.message}
		if payload, encErr := proto.Marshal(abort); encErr == nil {
			_ = dgram.SendDatagram(payload)
		}
	}
	_ = protocol.WriteMessage(stream, &protocol.Response{Status: st.status, Message: st.message})
	stream.CancelWrite(quic.StreamErrorCode(st.status))
}
