package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/terrorbyte/qcp/internal/bwconfig"
	"github.com/terrorbyte/qcp/internal/cert"
	"github.com/terrorbyte/qcp/internal/closedown"
	"github.com/terrorbyte/qcp/internal/engine"
	"github.com/terrorbyte/qcp/internal/protocol"
	"github.com/terrorbyte/qcp/internal/qcplog"
	"github.com/terrorbyte/qcp/internal/session"
	"github.com/terrorbyte/qcp/internal/sshconfig"
	"github.com/terrorbyte/qcp/internal/sshlauncher"
	"github.com/terrorbyte/qcp/internal/target"
	"github.com/terrorbyte/qcp/internal/transport"
)

// runClient resolves SOURCE/DESTINATION into exactly one remote endpoint
// and a GET or PUT direction, bootstraps trust over an ssh child, dials
// QUIC, and drives the session state machine to completion.
func runClient(ctx context.Context, srcArg, dstArg string, opts bwconfig.Options, store *closedown.Store) error {
	log := qcplog.For(qcplog.RoleClient, "")

	srcRemote, isSrcRemote, err := target.Parse(srcArg)
	if err != nil {
		return err
	}
	dstRemote, isDstRemote, err := target.Parse(dstArg)
	if err != nil {
		return err
	}
	if isSrcRemote == isDstRemote {
		return fmt.Errorf("qcp: exactly one of SOURCE, DESTINATION must be remote")
	}

	var remote target.Remote
	var isGet bool
	var localPath string
	if isSrcRemote {
		remote, isGet, localPath = srcRemote, true, dstArg
	} else {
		remote, isGet, localPath = dstRemote, false, srcArg
	}
	if isGet && isLocalDir(localPath) {
		localPath = filepath.Join(localPath, filepath.Base(remote.Path))
	}

	resolved, err := sshconfig.Resolve(opts.SSHConfigPath, remote.Host)
	if err != nil {
		return err
	}
	user := remote.User
	if user == "" {
		user = resolved.User
	}
	port := resolved.Port

	family, dialHost := resolveFamily(resolved.Hostname)

	child, err := sshlauncher.Launch(ctx, user, resolved.Hostname, sshlauncher.Options{
		SSHCommand: opts.SSHCommand,
		Identity:   opts.SSHIdentity,
		Port:       port,
		ExtraOpts:  opts.SSHOptions,
		ServerArgs: serverArgsFor(opts),
	})
	if err != nil {
		return fmt.Errorf("qcp: launch ssh: %w", err)
	}

	handshakeDone := make(chan struct{})
	childExit := child.WatchUnexpectedExit(handshakeDone, log)

	selfID, err := cert.Mint()
	if err != nil {
		return fmt.Errorf("qcp: mint identity: %w", err)
	}

	connType := protocol.ConnectionType_IPV4
	if family == transport.FamilyIPv6 {
		connType = protocol.ConnectionType_IPV6
	}
	if err := protocol.WriteMessage(child.Control, &protocol.ClientMessage{
		ClientCert: selfID.DER,
		ConnType:   connType,
	}); err != nil {
		return fmt.Errorf("qcp: send ClientMessage: %w", err)
	}

	var serverMsg protocol.ServerMessage
	if err := protocol.ReadMessage(child.Control, &serverMsg); err != nil {
		return fmt.Errorf("qcp: read ServerMessage: %w", err)
	}
	if serverMsg.Warning != "" {
		log.Warn(serverMsg.Warning)
	}
	if serverMsg.BandwidthInfo != "" {
		log.WithField("server_bandwidth", serverMsg.BandwidthInfo).Info("server bandwidth parameters")
	}

	addr := net.JoinHostPort(dialHost, strconv.Itoa(int(serverMsg.Port)))
	rttStart := time.Now()
	sess, err := transport.Dial(ctx, addr, selfID.Certificate, serverMsg.ServerCert, opts)
	if err != nil {
		return fmt.Errorf("qcp: dial QUIC %s: %w", addr, err)
	}
	measuredRTT := uint32(time.Since(rttStart).Milliseconds())

	stream, err := sess.OpenStream(ctx)
	if err != nil {
		return fmt.Errorf("qcp: open stream: %w", err)
	}

	transferErr := driveTransfer(ctx, stream, sess, isGet, remote.Path, localPath, opts.ChunkSize)
	stream.Close()
	if transferErr != nil && isGet {
		os.Remove(localPath)
	}

	localStats := sess.CloseWithStats()
	store.Publish(&closedown.Report{Local: localStats})

	var remoteReport protocol.ClosedownReport
	_ = protocol.ReadMessage(child.Control, &remoteReport)
	close(handshakeDone)

	select {
	case err := <-childExit:
		if err != nil && transferErr == nil {
			transferErr = err
		}
	default:
	}

	report := closedown.Merge(localStats, remoteReport, opts.RTTMillis, measuredRTT)
	store.Publish(report)
	for _, w := range report.Warnings {
		log.Warn(w)
	}
	log.WithField("sent_bytes", localStats.SentBytes).
		WithField("lost_packets", localStats.LostPackets).
		Info("session closed")

	_ = child.Signal()
	return transferErr
}

func driveTransfer(ctx context.Context, stream session.Stream, dgram session.DatagramReceiver, isGet bool, remotePath, localPath string, chunkSize int) error {
	onProgress := progressReporter()

	// SIGINT (ctx cancellation) only unblocks Dial/OpenStream/Accept on
	// its own; the bulk copy below reads/writes the stream with no
	// context awareness, so without this goroutine a ^C mid-transfer
	// would sit until the multi-minute QUIC idle timeout elapsed.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			stream.CancelRead(0)
			stream.CancelWrite(0)
			stream.Close()
		case <-stop:
		}
	}()

	if isGet {
		var f *os.File
		defer func() {
			if f != nil {
				f.Close()
			}
		}()
		open := func(size uint64) (io.Writer, error) {
			created, err := os.Create(localPath)
			if err != nil {
				return nil, fmt.Errorf("qcp: create %s: %w", localPath, err)
			}
			f = created
			return f, nil
		}
		if err := session.ClientGet(stream, filepath.Base(remotePath), open, chunkSize, onProgress); err != nil {
			return err
		}
		return nil
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("qcp: open %s: %w", localPath, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("qcp: stat %s: %w", localPath, err)
	}
	return session.ClientPut(ctx, stream, dgram, filepath.Base(remotePath), uint64(info.Size()), f, chunkSize, onProgress)
}

// progressReporter renders a periodic transfer-rate line to stderr when
// it is a terminal; under a non-interactive stderr (CI, ssh -T) it stays
// silent rather than spamming plain-text lines on every tick.
func progressReporter() func(done uint64) {
	if !engine.IsInteractive() {
		return nil
	}
	ticker := engine.NewTicker(func(p engine.Progress) {
		fmt.Fprintf(os.Stderr, "\r%d bytes, %.1f MB/s (avg %.1f MB/s)   ", p.BytesDone, p.InstantBps/1e6, p.EWMABps/1e6)
	})
	return ticker.Sample
}

func isLocalDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func resolveFamily(host string) (transport.Family, string) {
	ip := net.ParseIP(host)
	if ip == nil {
		if addrs, err := net.LookupIP(host); err == nil && len(addrs) > 0 {
			ip = addrs[0]
		}
	}
	if ip != nil && ip.To4() == nil {
		return transport.FamilyIPv6, host
	}
	return transport.FamilyIPv4, host
}

func serverArgsFor(opts bwconfig.Options) []string {
	args := []string{
		"--rx", strconv.FormatUint(opts.Rx, 10),
		"--tx", strconv.FormatUint(opts.Tx, 10),
		"--rtt", strconv.FormatUint(uint64(opts.RTTMillis), 10),
		"--congestion", string(opts.Congestion),
	}
	if !opts.Port.IsZero() {
		args = append(args, "--port", fmt.Sprintf("%d-%d", opts.Port.Low, opts.Port.High))
	}
	return args
}

