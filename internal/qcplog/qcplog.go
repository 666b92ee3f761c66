// Package qcplog configures the one shared logrus logger and attaches
// the per-session fields (role, session id) every log line should
// carry, following the same WithField-entry pattern the rest of the
// corpus uses for per-connection loggers.
package qcplog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Role distinguishes which side of a session is logging.
type Role string

const (
	RoleClient Role = "client"
	RoleServer Role = "server"
)

// Configure sets the package-wide logrus output, level, and formatter.
// It is called once from cmd/qcp's entrypoint before any session work
// starts.
func Configure(out io.Writer, debug bool) {
	if out == nil {
		out = os.Stderr
	}
	logrus.SetOutput(out)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:          true,
		DisableLevelTruncation: true,
	})
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// For returns a logrus.Entry scoped to one session, tagging every line
// with the role and a short session id so interleaved client/server
// logs (e.g. the SSH child's stderr tee) stay distinguishable.
func For(role Role, sessionID string) *logrus.Entry {
	e := logrus.WithField("role", role)
	if sessionID != "" {
		e = e.WithField("session", sessionID)
	}
	return e
}
