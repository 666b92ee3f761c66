package sshconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestResolveExactHost(t *testing.T) {
	path := writeConfig(t, "Host box\n  Hostname 10.0.0.5\n  User alice\n  Port 2222\n")
	r, err := Resolve(path, "box")
	require.NoError(t, err)
	require.Equal(t, ResolvedHost{Hostname: "10.0.0.5", User: "alice", Port: 2222}, r)
}

func TestResolveWildcardFallback(t *testing.T) {
	path := writeConfig(t, "Host *.internal\n  User bob\n\nHost *\n  Port 22\n")
	r, err := Resolve(path, "db1.internal")
	require.NoError(t, err)
	require.Equal(t, "bob", r.User)
	require.Equal(t, uint16(22), r.Port)
	require.Equal(t, "db1.internal", r.Hostname)
}

func TestResolveFirstMatchWins(t *testing.T) {
	path := writeConfig(t, "Host box\n  User first\n\nHost box\n  User second\n")
	r, err := Resolve(path, "box")
	require.NoError(t, err)
	require.Equal(t, "first", r.User)
}

func TestResolveMissingFileFallsBackToAlias(t *testing.T) {
	r, err := Resolve(filepath.Join(t.TempDir(), "does-not-exist"), "box")
	require.NoError(t, err)
	require.Equal(t, ResolvedHost{Hostname: "box"}, r)
}

func TestResolveRejectsMatchDirective(t *testing.T) {
	path := writeConfig(t, "Match host box\n  User alice\n")
	_, err := Resolve(path, "box")
	require.Error(t, err)
}
