// Package target parses the `[user@]host:path` and `[user@][ipv6]:path`
// forms qcp accepts for its SOURCE and DESTINATION arguments.
package target

import (
	"fmt"
	"strings"
)

// Remote is a parsed remote endpoint: an optional user, a host (bare
// name, IPv4 literal, or unbracketed IPv6 literal), and a remote path.
type Remote struct {
	User string
	Host string
	Path string
}

// Parse splits arg into a Remote and reports whether arg was a remote
// specification at all (a bare local path is not). It recognizes
// bracketed IPv6 literals (`[::1]:path`) so a literal's own colons are
// not mistaken for the host:path separator.
func Parse(arg string) (Remote, bool, error) {
	trimmed := strings.TrimSpace(arg)
	if trimmed == "" {
		return Remote{}, false, nil
	}

	rest := trimmed
	var user string
	if at := indexUnbracketed(trimmed, '@'); at != -1 {
		user = trimmed[:at]
		rest = trimmed[at+1:]
	}

	if strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end == -1 {
			return Remote{}, false, fmt.Errorf("target: %q has an unterminated IPv6 literal", arg)
		}
		host := rest[1:end]
		remainder := rest[end+1:]
		if !strings.HasPrefix(remainder, ":") {
			return Remote{}, false, fmt.Errorf("target: %q is missing ':' after its IPv6 literal", arg)
		}
		path := remainder[1:]
		if path == "" {
			return Remote{}, false, fmt.Errorf("target: %q is missing a path", arg)
		}
		return Remote{User: user, Host: host, Path: path}, true, nil
	}

	colon := strings.IndexByte(rest, ':')
	if colon == -1 {
		// No ':' at all: this is a local path, not a remote spec.
		if user != "" {
			return Remote{}, false, fmt.Errorf("target: %q has a user but no ':' separator", arg)
		}
		return Remote{}, false, nil
	}
	host := rest[:colon]
	path := rest[colon+1:]
	if host == "" {
		return Remote{}, false, fmt.Errorf("target: %q is missing a host", arg)
	}
	if path == "" {
		return Remote{}, false, fmt.Errorf("target: %q is missing a path", arg)
	}
	return Remote{User: user, Host: host, Path: path}, true, nil
}

func indexUnbracketed(s string, b byte) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
		case b:
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
