// Package transport adapts quic-go into the one-connection,
// one-stream-per-operation shape the session protocol needs: a client
// dials exactly one QUIC connection, a server accepts exactly one, and
// either side opens/accepts exactly one bidirectional stream per file
// operation plus an unreliable datagram channel for abort notices.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/quic-go/quic-go"

	"github.com/terrorbyte/qcp/internal/bwconfig"
	"github.com/terrorbyte/qcp/internal/cert"
)

// ALPN is the fixed, versioned protocol identifier negotiated during the
// QUIC/TLS handshake. It must be bumped on any breaking session-protocol
// change; a mismatch fails the handshake outright.
const ALPN = "qcp/1"

// Session wraps one QUIC connection with the subset of operations the
// session protocol and closedown telemetry need.
type Session struct {
	conn  quic.Connection
	stats *statsCollector
}

// Stats mirrors the ClosedownReport fields, accumulated by the connection
// tracer in stats.go and snapshotted at session end.
type Stats struct {
	FinalCongestionWindow uint64
	SentPackets           uint64
	LostPackets           uint64
	LostBytes             uint64
	CongestionEvents      uint64
	BlackHoleDetections   uint64
	SentBytes             uint64
}

func quicConfig(opts bwconfig.Options, collector *statsCollector) *quic.Config {
	window := bwconfig.WindowSize(opts.Rx, opts.RTTMillis)
	if bwconfig.WindowSize(opts.Tx, opts.RTTMillis) > window {
		window = bwconfig.WindowSize(opts.Tx, opts.RTTMillis)
	}
	return &quic.Config{
		HandshakeIdleTimeout:           bwconfig.HandshakeTimeout,
		MaxIdleTimeout:                 bwconfig.IdleTimeout,
		EnableDatagrams:                true,
		InitialStreamReceiveWindow:     window,
		InitialConnectionReceiveWindow: window * 2,
		MaxStreamReceiveWindow:         window * 8,
		MaxConnectionReceiveWindow:     window * 16,
		Tracer:                         collector.tracerFor(),
	}
}

// Dial opens the client side of the QUIC connection, trusting only the
// single certificate exchanged over the control channel.
func Dial(ctx context.Context, addr string, selfCert tls.Certificate, wantPeerDER []byte, opts bwconfig.Options) (*Session, error) {
	tlsCfg := &tls.Config{
		Certificates:          []tls.Certificate{selfCert},
		NextProtos:            []string{ALPN},
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: cert.VerifyPeerDER(wantPeerDER),
	}
	collector := &statsCollector{}
	conn, err := quic.DialAddr(ctx, addr, tlsCfg, quicConfig(opts, collector))
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return &Session{conn: conn, stats: collector}, nil
}

// Listener is the server side: bound to exactly one UDP socket, it
// accepts exactly one connection per session's lifetime.
type Listener struct {
	ql    *quic.Listener
	Port  uint16
	stats *statsCollector
}

// Family selects which IP address family a Listener binds its UDP
// socket on, matching the family the client resolved the remote host
// to so the ssh hop and the QUIC hop traverse the same network path.
type Family int

const (
	FamilyIPv4 Family = iota
	FamilyIPv6
)

func (f Family) bindHost() string {
	if f == FamilyIPv6 {
		return "[::]"
	}
	return "0.0.0.0"
}

// Listen binds a UDP socket (an OS-assigned port, or the first free port
// in the configured range) and starts a QUIC listener on it.
func Listen(selfCert tls.Certificate, wantPeerDER []byte, opts bwconfig.Options, family Family) (*Listener, error) {
	tlsCfg := &tls.Config{
		Certificates:          []tls.Certificate{selfCert},
		NextProtos:            []string{ALPN},
		InsecureSkipVerify:    true,
		ClientAuth:            tls.RequireAnyClientCert,
		VerifyPeerCertificate: cert.VerifyPeerDER(wantPeerDER),
	}
	collector := &statsCollector{}
	cfg := quicConfig(opts, collector)
	host := family.bindHost()

	if opts.Port.IsZero() {
		ql, err := quic.ListenAddr(fmt.Sprintf("%s:0", host), tlsCfg, cfg)
		if err != nil {
			return nil, fmt.Errorf("transport: listen: %w", err)
		}
		return &Listener{ql: ql, Port: uint16(ql.Addr().(*net.UDPAddr).Port), stats: collector}, nil
	}

	var lastErr error
	for p := opts.Port.Low; p <= opts.Port.High; p++ {
		ql, err := quic.ListenAddr(fmt.Sprintf("%s:%d", host, p), tlsCfg, cfg)
		if err == nil {
			return &Listener{ql: ql, Port: p, stats: collector}, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("transport: no free port in configured range: %w", lastErr)
}

// Accept blocks for the single incoming connection this session expects.
func (l *Listener) Accept(ctx context.Context) (*Session, error) {
	conn, err := l.ql.Accept(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: accept: %w", err)
	}
	return &Session{conn: conn, stats: l.stats}, nil
}

func (l *Listener) Close() error {
	return l.ql.Close()
}

// OpenStream opens the session's one bidirectional stream (client side).
func (s *Session) OpenStream(ctx context.Context) (quic.Stream, error) {
	return s.conn.OpenStreamSync(ctx)
}

// AcceptStream accepts the session's one bidirectional stream (server side).
func (s *Session) AcceptStream(ctx context.Context) (quic.Stream, error) {
	return s.conn.AcceptStream(ctx)
}

// SendDatagram sends an unreliable out-of-band datagram (used for
// TransferAbortInformation).
func (s *Session) SendDatagram(data []byte) error {
	return s.conn.SendDatagram(data)
}

// ReceiveDatagram blocks for the next incoming datagram.
func (s *Session) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	return s.conn.ReceiveDatagram(ctx)
}

// CloseWithStats quiesces the connection and harvests its final counters
// from the tracer that has been observing it since Dial/Accept.
func (s *Session) CloseWithStats() Stats {
	snap := s.stats.snapshot()
	_ = s.conn.CloseWithError(0, "session complete")
	return snap
}

// RemoteAddr returns the peer's network address.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// Close closes the connection without collecting stats (error paths).
func (s *Session) Close(code quic.ApplicationErrorCode, reason string) error {
	return s.conn.CloseWithError(code, reason)
}
