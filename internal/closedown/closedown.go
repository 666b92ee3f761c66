// Package closedown turns the raw counters harvested from a finished QUIC
// session into the client-visible summary: the server's report merged
// with the client's own view, plus any warnings worth surfacing (RTT
// divergence, packet loss only the server saw, black-hole detections).
package closedown

import (
	"fmt"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"

	"github.com/terrorbyte/qcp/internal/protocol"
	"github.com/terrorbyte/qcp/internal/transport"
)

// rttDivergenceThreshold is the fraction by which the measured RTT must
// differ from the configured one (above or below it) before it is worth
// warning about.
const rttDivergenceThreshold = 0.10

// Report is what a closed session has to say for itself, once both
// sides' counters are in hand.
type Report struct {
	Local    transport.Stats
	Remote   protocol.ClosedownReport
	Warnings []string
}

// FromStats converts the transport layer's local counters into the wire
// message sent to the peer at the end of a session.
func FromStats(s transport.Stats) *protocol.ClosedownReport {
	return &protocol.ClosedownReport{
		FinalCongestionWindow: s.FinalCongestionWindow,
		SentPackets:           s.SentPackets,
		LostPackets:           s.LostPackets,
		LostBytes:             s.LostBytes,
		CongestionEvents:      s.CongestionEvents,
		BlackHoleDetections:   s.BlackHoleDetections,
		SentBytes:             s.SentBytes,
	}
}

// Merge folds the server's ClosedownReport and the client's own local
// transport.Stats into a Report, accumulating any warnings worth
// surfacing to the user via a multierror so none are dropped silently.
func Merge(local transport.Stats, remote protocol.ClosedownReport, configuredRTTMillis uint32, measuredRTTMillis uint32) *Report {
	var warn *multierror.Error

	if configuredRTTMillis > 0 && measuredRTTMillis > 0 {
		delta := diffRatio(configuredRTTMillis, measuredRTTMillis)
		if delta > rttDivergenceThreshold {
			warn = multierror.Append(warn, fmt.Errorf(
				"measured RTT %dms diverges from configured %dms by %.0f%%",
				measuredRTTMillis, configuredRTTMillis, delta*100))
		}
	}
	if remote.LostPackets > 0 && local.LostPackets == 0 {
		warn = multierror.Append(warn, fmt.Errorf(
			"server reports %d lost packets the client side did not observe", remote.LostPackets))
	}
	if remote.BlackHoleDetections > 0 {
		warn = multierror.Append(warn, fmt.Errorf(
			"server observed %d possible network black-hole event(s) during the transfer", remote.BlackHoleDetections))
	}

	report := &Report{Local: local, Remote: remote}
	if warn != nil {
		for _, e := range warn.Errors {
			report.Warnings = append(report.Warnings, e.Error())
		}
	}
	return report
}

func diffRatio(configured, measured uint32) float64 {
	c, m := float64(configured), float64(measured)
	if c > m {
		return (c - m) / c
	}
	return (m - c) / c
}

// Store provides atomic access to the most recently published Report, so
// a SIGINT handler racing the closedown exchange can print whatever
// report has been published so far instead of nothing. Each Publish
// replaces the previous value. It mirrors the teacher's atomic.Value
// registry store, used here for publishes during session close rather
// than a long-lived, reloadable value.
type Store struct {
	value atomic.Value
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Publish(r *Report) {
	s.value.Store(r)
}

func (s *Store) Get() (*Report, bool) {
	r, ok := s.value.Load().(*Report)
	return r, ok
}
