package session

import (
	"fmt"

	"github.com/terrorbyte/qcp/internal/protocol"
)

// ServerHandle reads the single Command that opens a session stream and
// dispatches to the matching state machine. baseDir is the server's
// fixed working directory (typically the SSH login directory) every
// Command's leaf filename resolves against.
func ServerHandle(stream Stream, dgram DatagramSender, baseDir string, chunkSize int) error {
	var cmd protocol.Command
	if err := protocol.ReadMessage(stream, &cmd); err != nil {
		return fmt.Errorf("session: read Command: %w", err)
	}

	root := newRootedDir(baseDir)
	switch cmd.Kind {
	case protocol.CommandKind_GET:
		return serveGet(stream, &cmd, root, chunkSize)
	case protocol.CommandKind_PUT:
		return servePut(stream, dgram, &cmd, root, chunkSize)
	default:
		return sendErrorResponse(stream, errStatus{protocol.Status_NOT_YET_IMPLEMENTED, fmt.Sprintf("unsupported command kind %v", cmd.Kind)})
	}
}
