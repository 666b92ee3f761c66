package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/terrorbyte/qcp/internal/bwconfig"
	"github.com/terrorbyte/qcp/internal/cert"
	"github.com/terrorbyte/qcp/internal/closedown"
	"github.com/terrorbyte/qcp/internal/protocol"
	"github.com/terrorbyte/qcp/internal/qcplog"
	"github.com/terrorbyte/qcp/internal/session"
	"github.com/terrorbyte/qcp/internal/transport"
)

// stdioControl adapts the process's own stdin/stdout into the control
// channel the spawning client spoke to; there is no separate dial here,
// ssh itself is the transport between the two processes.
type stdioControl struct {
	io.Reader
	io.Writer
}

func (stdioControl) Close() error { return nil }

// runServer implements the server-side control/session lifecycle: read
// the one ClientMessage, mint its own identity, bind the QUIC endpoint
// with it, send the one ServerMessage, accept exactly one connection and stream,
// run the session state machine to completion, then report closedown
// counters back over the same control channel.
func runServer(ctx context.Context, opts bwconfig.Options) error {
	log := qcplog.For(qcplog.RoleServer, "")
	control := stdioControl{Reader: os.Stdin, Writer: os.Stdout}

	var clientMsg protocol.ClientMessage
	if err := protocol.ReadMessage(control, &clientMsg); err != nil {
		return fmt.Errorf("server: read ClientMessage: %w", err)
	}

	family := transport.FamilyIPv4
	if clientMsg.ConnType == protocol.ConnectionType_IPV6 {
		family = transport.FamilyIPv6
	}

	selfID, err := cert.Mint()
	if err != nil {
		return fmt.Errorf("server: mint identity: %w", err)
	}

	ln, err := transport.Listen(selfID.Certificate, clientMsg.ClientCert, opts, family)
	if err != nil {
		return fmt.Errorf("server: bind QUIC listener: %w", err)
	}
	defer ln.Close()

	log.WithField("port", ln.Port).Info("bound QUIC listener")

	serverMsg := &protocol.ServerMessage{
		Port:          uint32(ln.Port),
		ServerCert:    selfID.DER,
		ServerCertCn:  selfID.Name,
		BandwidthInfo: fmt.Sprintf("rx=%d tx=%d rtt=%dms congestion=%s", opts.Rx, opts.Tx, opts.RTTMillis, opts.Congestion),
	}
	if err := protocol.WriteMessage(control, serverMsg); err != nil {
		return fmt.Errorf("server: send ServerMessage: %w", err)
	}

	sess, err := ln.Accept(ctx)
	if err != nil {
		return fmt.Errorf("server: accept QUIC connection: %w", err)
	}

	stream, err := sess.AcceptStream(ctx)
	if err != nil {
		sess.CloseWithStats()
		return fmt.Errorf("server: accept stream: %w", err)
	}

	handleErr := session.ServerHandle(stream, sess, ".", opts.ChunkSize)
	if handleErr != nil {
		log.WithError(handleErr).Warn("session ended with an error")
	}
	stream.Close()

	stats := sess.CloseWithStats()
	report := closedown.FromStats(stats)
	if err := protocol.WriteMessage(control, report); err != nil {
		return fmt.Errorf("server: send ClosedownReport: %w", err)
	}

	return handleErr
}
