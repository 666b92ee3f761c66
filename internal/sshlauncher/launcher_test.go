package sshlauncher

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeSSH is a tiny shell script standing in for the real ssh binary: it
// echoes its own argv to stderr (so the test can assert on invocation
// shape) and then echoes stdin back on stdout, simulating a well-behaved
// remote control channel.
const fakeSSHScript = `#!/bin/sh
echo "argv: $@" >&2
cat
`

func writeFakeSSH(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-ssh")
	require.NoError(t, os.WriteFile(path, []byte(fakeSSHScript), 0o755))
	return path
}

func TestLaunchBuildsExpectedArgsAndWiresControlChannel(t *testing.T) {
	fakeSSH := writeFakeSSH(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	child, err := Launch(ctx, "alice", "example.com", Options{
		SSHCommand: fakeSSH,
		Identity:   "/home/alice/.ssh/id_ed25519",
		Port:       2222,
		ExtraOpts:  []string{"StrictHostKeyChecking=no"},
	})
	require.NoError(t, err)

	_, err = child.Control.Write([]byte("ping\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(child.Control)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "ping\n", line)

	require.NoError(t, child.Control.Close())
	_ = child.Wait()
	require.Contains(t, child.StderrTail(), "argv: -i /home/alice/.ssh/id_ed25519 -p 2222 -o StrictHostKeyChecking=no alice@example.com qcp --server")
}

func TestWatchUnexpectedExitReportsEarlyExit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dying-ssh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 7\n"), 0o755))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	child, err := Launch(ctx, "", "example.com", Options{SSHCommand: path})
	require.NoError(t, err)

	done := make(chan struct{})
	errCh := child.WatchUnexpectedExit(done, nil)

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for unexpected exit report")
	}
}
