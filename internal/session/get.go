package session

import (
	"errors"
	"fmt"
	"io"

	"github.com/terrorbyte/qcp/internal/engine"
	"github.com/terrorbyte/qcp/internal/protocol"
)

// ClientGet drives the client side of a GET: send Command, read the
// Response, and on success read the FileHeader and stream exactly
// header.Size bytes before consuming the FileTrailer. open is only
// called once the Response and FileHeader confirm the transfer is
// actually going to happen, so a caller backing it with a local file
// never creates or truncates anything on a failed or nonexistent GET.
func ClientGet(stream Stream, filename string, open func(size uint64) (io.Writer, error), chunkSize int, onProgress func(done uint64)) error {
	if err := protocol.WriteMessage(stream, &protocol.Command{Kind: protocol.CommandKind_GET, Filename: filename}); err != nil {
		return fmt.Errorf("session: send Get command: %w", err)
	}

	var resp protocol.Response
	if err := protocol.ReadMessage(stream, &resp); err != nil {
		return fmt.Errorf("session: read Response: %w", err)
	}
	if resp.Status != protocol.Status_OK {
		return errStatus{resp.Status, resp.Message}
	}

	var header protocol.FileHeader
	if err := protocol.ReadMessage(stream, &header); err != nil {
		return fmt.Errorf("session: read FileHeader: %w", err)
	}

	dst, err := open(header.Size)
	if err != nil {
		return err
	}

	if _, err := engine.Copy(dst, stream, header.Size, chunkSize, onProgress); err != nil {
		return fmt.Errorf("session: receive file data: %w", err)
	}

	var trailer protocol.FileTrailer
	if err := protocol.ReadMessage(stream, &trailer); err != nil {
		return fmt.Errorf("session: read FileTrailer: %w", err)
	}
	return nil
}

// serveGet implements the server side of GET: validate, send a Response,
// and on success stream the file's exact size followed by a trailer.
func serveGet(stream Stream, cmd *protocol.Command, root *rootedDir, chunkSize int) error {
	f, size, err := root.openForRead(cmd.Filename)
	if err != nil {
		return sendErrorResponse(stream, err)
	}
	defer f.Close()

	if err := protocol.WriteMessage(stream, &protocol.Response{Status: protocol.Status_OK}); err != nil {
		return fmt.Errorf("session: send Response: %w", err)
	}
	if err := protocol.WriteMessage(stream, &protocol.FileHeader{Size: size, Filename: cmd.Filename}); err != nil {
		return fmt.Errorf("session: send FileHeader: %w", err)
	}
	if _, err := engine.Copy(stream, f, size, chunkSize, nil); err != nil {
		return fmt.Errorf("session: send file data: %w", err)
	}
	if err := protocol.WriteMessage(stream, &protocol.FileTrailer{}); err != nil {
		return fmt.Errorf("session: send FileTrailer: %w", err)
	}
	return nil
}

// sendErrorResponse reports a local failure to the peer as a Response
// before returning it to the caller.
func sendErrorResponse(stream Stream, err error) error {
	var st errStatus
	if !errors.As(err, &st) {
		st = errStatus{protocol.Status_IO_ERROR, err.Error()}
	}
	_ = protocol.WriteMessage(stream, &protocol.Response{Status: st.status, Message: st.message})
	return st
}
