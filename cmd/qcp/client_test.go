package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/terrorbyte/qcp/internal/bwconfig"
	"github.com/terrorbyte/qcp/internal/transport"
)

func TestIsLocalDir(t *testing.T) {
	dir := t.TempDir()
	require.True(t, isLocalDir(dir))

	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	require.False(t, isLocalDir(file))

	require.False(t, isLocalDir(filepath.Join(dir, "missing")))
}

func TestResolveFamilyIPLiterals(t *testing.T) {
	family, host := resolveFamily("192.0.2.1")
	require.Equal(t, transport.FamilyIPv4, family)
	require.Equal(t, "192.0.2.1", host)

	family, host = resolveFamily("2001:db8::1")
	require.Equal(t, transport.FamilyIPv6, family)
	require.Equal(t, "2001:db8::1", host)
}

func TestServerArgsForIncludesPortOnlyWhenConfigured(t *testing.T) {
	opts := bwconfig.DefaultOptions()
	args := serverArgsFor(opts)
	require.NotContains(t, args, "--port")

	opts.Port = bwconfig.PortRange{Low: 30000, High: 30100}
	args = serverArgsFor(opts)
	require.Contains(t, args, "--port")
	require.Contains(t, args, "30000-30100")
}
