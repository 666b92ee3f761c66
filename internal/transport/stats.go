package transport

import (
	"context"
	"sync"

	"github.com/quic-go/quic-go/logging"
)

// statsCollector accumulates the counters a ClosedownReport needs by
// hooking quic-go's qlog-style connection tracer, which is the only
// public surface quic-go exposes for congestion/loss telemetry; there is
// no separate "stats" accessor on quic.Connection itself.
type statsCollector struct {
	mu sync.Mutex

	sentPackets         uint64
	sentBytes           uint64
	lostPackets         uint64
	lastCongestionWin   uint64
	congestionEvents    uint64
	lastPTOCount        uint32
	blackHoleDetections uint64
}

func (c *statsCollector) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		FinalCongestionWindow: c.lastCongestionWin,
		SentPackets:           c.sentPackets,
		LostPackets:           c.lostPackets,
		LostBytes:             c.lostPackets * avgPacketSizeEstimate(c.sentBytes, c.sentPackets),
		CongestionEvents:      c.congestionEvents,
		BlackHoleDetections:   c.blackHoleDetections,
		SentBytes:             c.sentBytes,
	}
}

func avgPacketSizeEstimate(sentBytes, sentPackets uint64) uint64 {
	if sentPackets == 0 {
		return 0
	}
	return sentBytes / sentPackets
}

// tracerFor builds the quic.Config.Tracer callback that feeds c.
func (c *statsCollector) tracerFor() func(context.Context, logging.Perspective, logging.ConnectionID) *logging.ConnectionTracer {
	return func(context.Context, logging.Perspective, logging.ConnectionID) *logging.ConnectionTracer {
		return &logging.ConnectionTracer{
			SentLongHeaderPacket: func(_ *logging.ExtendedHeader, size logging.ByteCount, _ logging.ECN, _ *logging.AckFrame, _ []logging.Frame) {
				c.mu.Lock()
				c.sentPackets++
				c.sentBytes += uint64(size)
				c.mu.Unlock()
			},
			SentShortHeaderPacket: func(_ *logging.ShortHeader, size logging.ByteCount, _ logging.ECN, _ *logging.AckFrame, _ []logging.Frame) {
				c.mu.Lock()
				c.sentPackets++
				c.sentBytes += uint64(size)
				c.mu.Unlock()
			},
			LostPacket: func(logging.EncryptionLevel, logging.PacketNumber, logging.PacketLossReason) {
				c.mu.Lock()
				c.lostPackets++
				c.mu.Unlock()
			},
			UpdatedMetrics: func(_ *logging.RTTStats, cwnd logging.ByteCount, _ logging.ByteCount, _ int) {
				c.mu.Lock()
				c.lastCongestionWin = uint64(cwnd)
				c.mu.Unlock()
			},
			UpdatedCongestionState: func(logging.CongestionState) {
				c.mu.Lock()
				c.congestionEvents++
				c.mu.Unlock()
			},
			UpdatedPTOCount: func(value uint32) {
				c.mu.Lock()
				if value > c.lastPTOCount {
					c.blackHoleDetections++
				}
				c.lastPTOCount = value
				c.mu.Unlock()
			},
		}
	}
}
