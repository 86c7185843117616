package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/amqpgo/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"handshake_attempts", snap.HandshakeAttempts,
					"handshake_successes", snap.HandshakeSuccesses,
					"rpc_round_trips", snap.RPCRoundTrips,
					"rpc_timeouts", snap.RPCTimeouts,
					"frames_queued", snap.FramesQueued,
					"queue_depth", snap.QueueDepth,
					"bytes_in", snap.BytesIn,
					"bytes_out", snap.BytesOut,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
