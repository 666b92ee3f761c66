// Package sshlauncher spawns the remote qcp --server process over ssh
// and exposes its stdio as the control channel.
package sshlauncher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

// stderrTailSize bounds how much of the child's stderr is kept for the
// "forward the ssh child's stderr tail" fatal-error path.
const stderrTailSize = 4096

// controlPipe composes the child's stdin/stdout into one
// io.ReadWriteCloser for the control protocol.
type controlPipe struct {
	io.Reader
	io.Writer
	stdin io.Closer
}

func (p *controlPipe) Close() error { return p.stdin.Close() }

// Child is a running `ssh ... qcp --server` process.
type Child struct {
	cmd     *exec.Cmd
	Control io.ReadWriteCloser

	mu   sync.Mutex
	tail bytes.Buffer
}

// Options configure the ssh invocation.
type Options struct {
	SSHCommand string // defaults to "ssh"
	Identity   string
	Port       uint16
	ExtraOpts  []string // passthrough -o k=v entries
	ServerArgs []string // extra flags forwarded to the remote qcp --server
}

// Launch spawns `ssh [opts] user@host qcp --server [serverArgs]`, wiring
// the child's stdin/stdout as the control pipe and teeing its stderr
// both to the local terminal and to a ring buffer for the stderr-tail
// error path.
func Launch(ctx context.Context, user, host string, opts Options) (*Child, error) {
	sshCmd := opts.SSHCommand
	if sshCmd == "" {
		sshCmd = "ssh"
	}

	args := []string{}
	if opts.Identity != "" {
		args = append(args, "-i", opts.Identity)
	}
	if opts.Port != 0 {
		args = append(args, "-p", strconv.Itoa(int(opts.Port)))
	}
	for _, kv := range opts.ExtraOpts {
		args = append(args, "-o", kv)
	}
	dest := host
	if user != "" {
		dest = user + "@" + host
	}
	args = append(args, dest, "qcp", "--server")
	args = append(args, opts.ServerArgs...)

	cmd := exec.CommandContext(ctx, sshCmd, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("sshlauncher: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("sshlauncher: stdout pipe: %w", err)
	}

	child := &Child{cmd: cmd}
	cmd.Stderr = io.MultiWriter(os.Stderr, tailWriter{child})
	child.Control = &controlPipe{Reader: stdout, Writer: stdin, stdin: stdin}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("sshlauncher: start %s: %w", sshCmd, err)
	}
	return child, nil
}

type tailWriter struct{ c *Child }

func (t tailWriter) Write(p []byte) (int, error) {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	t.c.tail.Write(p)
	if t.c.tail.Len() > stderrTailSize {
		excess := t.c.tail.Len() - stderrTailSize
		t.c.tail.Next(excess)
	}
	return len(p), nil
}

// StderrTail returns the most recent bytes of the child's stderr.
func (c *Child) StderrTail() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tail.String()
}

// Wait blocks until the child exits.
func (c *Child) Wait() error {
	return c.cmd.Wait()
}

// WatchUnexpectedExit runs cmd.Wait in the background and, if the child
// exits before done is closed, reports a fatal error carrying the
// child's stderr tail.
func (c *Child) WatchUnexpectedExit(done <-chan struct{}, log *logrus.Entry) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		werr := c.Wait()
		select {
		case <-done:
			// Expected exit after the control handshake completed; ignore.
		default:
			tail := c.StderrTail()
			if log != nil {
				log.WithField("stderr_tail", tail).Warn("ssh child exited before the session completed")
			}
			errCh <- fmt.Errorf("sshlauncher: ssh child exited unexpectedly: %w\n%s", werr, tail)
		}
		close(errCh)
	}()
	return errCh
}

// Signal delivers a termination request to the child, used on client
// cancellation (SIGINT).
func (c *Child) Signal() error {
	if c.cmd.Process == nil {
		return nil
	}
	return c.cmd.Process.Kill()
}
