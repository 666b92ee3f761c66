// Package sshconfig resolves a Host alias from an OpenSSH-style config
// file to its Hostname/User/Port, the way the ssh client itself would,
// minus Match directives (explicitly unsupported).
package sshconfig

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ResolvedHost is what a Host alias resolves to.
type ResolvedHost struct {
	Hostname string
	User     string
	Port     uint16
}

type hostBlock struct {
	patterns []string
	hostname string
	user     string
	port     uint16
}

func matches(pattern, alias string) bool {
	if pattern == "*" {
		return true
	}
	if !strings.ContainsAny(pattern, "*?") {
		return pattern == alias
	}
	return globMatch(pattern, alias)
}

func globMatch(pattern, s string) bool {
	if pattern == "" {
		return s == ""
	}
	switch pattern[0] {
	case '*':
		for i := 0; i <= len(s); i++ {
			if globMatch(pattern[1:], s[i:]) {
				return true
			}
		}
		return false
	case '?':
		if len(s) == 0 {
			return false
		}
		return globMatch(pattern[1:], s[1:])
	default:
		if len(s) == 0 || s[0] != pattern[0] {
			return false
		}
		return globMatch(pattern[1:], s[1:])
	}
}

// Resolve reads path (defaulting to ~/.ssh/config) and folds every Host
// block whose pattern matches alias, first match per key wins, which is
// OpenSSH's own rule for non-Match config resolution.
func Resolve(path, alias string) (ResolvedHost, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ResolvedHost{}, fmt.Errorf("sshconfig: resolve default path: %w", err)
		}
		path = filepath.Join(home, ".ssh", "config")
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ResolvedHost{Hostname: alias}, nil
		}
		return ResolvedHost{}, fmt.Errorf("sshconfig: open %s: %w", path, err)
	}
	defer f.Close()

	blocks, err := parseBlocks(f)
	if err != nil {
		return ResolvedHost{}, fmt.Errorf("sshconfig: parse %s: %w", path, err)
	}

	resolved := ResolvedHost{Hostname: alias}
	haveHostname, haveUser, havePort := false, false, false
	for _, b := range blocks {
		matched := false
		for _, p := range b.patterns {
			if matches(p, alias) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if !haveHostname && b.hostname != "" {
			resolved.Hostname = b.hostname
			haveHostname = true
		}
		if !haveUser && b.user != "" {
			resolved.User = b.user
			haveUser = true
		}
		if !havePort && b.port != 0 {
			resolved.Port = b.port
			havePort = true
		}
	}
	return resolved, nil
}

func parseBlocks(r io.Reader) ([]hostBlock, error) {
	var blocks []hostBlock
	var current *hostBlock

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, err := splitDirective(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		switch strings.ToLower(key) {
		case "host":
			if current != nil {
				blocks = append(blocks, *current)
			}
			current = &hostBlock{patterns: strings.Fields(value)}
		case "match":
			return nil, fmt.Errorf("line %d: Match directives are not supported", lineNo)
		case "hostname":
			if current != nil && current.hostname == "" {
				current.hostname = value
			}
		case "user":
			if current != nil && current.user == "" {
				current.user = value
			}
		case "port":
			if current != nil && current.port == 0 {
				p, err := strconv.ParseUint(value, 10, 16)
				if err != nil {
					return nil, fmt.Errorf("line %d: invalid Port %q", lineNo, value)
				}
				current.port = uint16(p)
			}
		}
	}
	if current != nil {
		blocks = append(blocks, *current)
	}
	return blocks, scanner.Err()
}

func splitDirective(line string) (key, value string, err error) {
	i := strings.IndexAny(line, " \t=")
	if i == -1 {
		return "", "", fmt.Errorf("malformed directive %q", line)
	}
	key = line[:i]
	value = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line[i:]), "="))
	if value == "" {
		return "", "", fmt.Errorf("directive %q has no value", key)
	}
	return key, value, nil
}
