package engine

import (
	"os"
	"time"

	"golang.org/x/term"
)

// TickRate is the progress-event cadence named in the transfer engine's
// design (4 Hz).
const TickRate = 250 * time.Millisecond

// ewmaAlpha weights the exponentially weighted moving average rate;
// smaller values smooth more aggressively.
const ewmaAlpha = 0.3

// Ticker turns the cumulative byte counts passed to Sample into Progress
// events carrying both the instantaneous and EWMA-smoothed rate. It has
// no timer of its own: events are only emitted from Sample calls.
type Ticker struct {
	onProgress func(Progress)
	interval   time.Duration

	lastSample time.Time
	lastBytes  uint64
	ewma       float64
}

// NewTicker builds a Ticker that calls onProgress at most once per
// TickRate.
func NewTicker(onProgress func(Progress)) *Ticker {
	return &Ticker{onProgress: onProgress, interval: TickRate, lastSample: time.Now()}
}

// Sample records a new cumulative byte count; call this from onProgress
// callbacks passed to Copy. It rate-limits emission to the tick interval
// so a fast local copy does not flood the UI collaborator.
func (t *Ticker) Sample(done uint64) {
	now := time.Now()
	elapsed := now.Sub(t.lastSample)
	if elapsed < t.interval {
		return
	}
	instant := float64(done-t.lastBytes) / elapsed.Seconds()
	if t.ewma == 0 {
		t.ewma = instant
	} else {
		t.ewma = ewmaAlpha*instant + (1-ewmaAlpha)*t.ewma
	}
	t.lastSample = now
	t.lastBytes = done
	if t.onProgress != nil {
		t.onProgress(Progress{BytesDone: done, InstantBps: instant, EWMABps: t.ewma})
	}
}

// IsInteractive reports whether stderr is a terminal, the same check the
// teacher's tty.go performs before querying a window size, used here to
// decide whether the default progress renderer draws a live meter at all;
// under a non-interactive stderr (e.g. CI / ssh -T) it draws nothing.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
