// Package metrics exposes Prometheus counters/gauges for the connection
// core, grounded on the teacher's internal/metrics package: promauto
// constructors, a label-bounded error CounterVec, a /metrics + /ready HTTP
// server, and local atomic-mirrored counters for cheap periodic logging
// without scraping Prometheus in-process.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kstaniek/amqpgo/internal/logging"
)

var (
	HandshakeAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amqp_handshake_attempts_total",
		Help: "Total connection handshakes started.",
	})
	HandshakeSuccesses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amqp_handshake_successes_total",
		Help: "Total connection handshakes that reached the OPEN state.",
	})
	RPCRoundTrips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amqp_rpc_round_trips_total",
		Help: "Total SimpleRPC calls that received a matching reply.",
	})
	RPCTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amqp_rpc_timeouts_total",
		Help: "Total SimpleRPC waits that ended in a timeout.",
	})
	FramesQueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amqp_frames_queued_total",
		Help: "Total frames deferred into the connection-wide frame queue during an RPC wait.",
	})
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "amqp_frame_queue_depth",
		Help: "Current number of deferred frames awaiting a future WaitFrame call.",
	})
	BytesIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amqp_bytes_in_total",
		Help: "Total bytes read from the transport.",
	})
	BytesOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amqp_bytes_out_total",
		Help: "Total bytes written to the transport.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "malformed_frames_total",
		Help: "Total frames rejected for protocol violations (bad terminator, truncated, oversized length).",
	})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrorTransport  = "transport"
	ErrorHandshake  = "handshake"
	ErrorRPC        = "rpc"
	ErrorWireDecode = "wire_decode"
)

// StartHTTP serves Prometheus metrics at /metrics and readiness at /ready.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters, for startMetricsLogger's periodic summary
// logging without hitting the Prometheus registry.
var (
	localHandshakeAttempts  uint64
	localHandshakeSuccesses uint64
	localRPCRoundTrips      uint64
	localRPCTimeouts        uint64
	localFramesQueued       uint64
	localBytesIn            uint64
	localBytesOut           uint64
	localErrors             uint64
	localMalformed          uint64
	localQueueDepth         uint64
)

// Snapshot is a cheap copy of the local counters.
type Snapshot struct {
	HandshakeAttempts  uint64
	HandshakeSuccesses uint64
	RPCRoundTrips      uint64
	RPCTimeouts        uint64
	FramesQueued       uint64
	BytesIn            uint64
	BytesOut           uint64
	Errors             uint64
	Malformed          uint64
	QueueDepth         uint64
}

func Snap() Snapshot {
	return Snapshot{
		HandshakeAttempts:  atomic.LoadUint64(&localHandshakeAttempts),
		HandshakeSuccesses: atomic.LoadUint64(&localHandshakeSuccesses),
		RPCRoundTrips:      atomic.LoadUint64(&localRPCRoundTrips),
		RPCTimeouts:        atomic.LoadUint64(&localRPCTimeouts),
		FramesQueued:       atomic.LoadUint64(&localFramesQueued),
		BytesIn:            atomic.LoadUint64(&localBytesIn),
		BytesOut:           atomic.LoadUint64(&localBytesOut),
		Errors:             atomic.LoadUint64(&localErrors),
		Malformed:          atomic.LoadUint64(&localMalformed),
		QueueDepth:         atomic.LoadUint64(&localQueueDepth),
	}
}

func IncHandshakeAttempt() {
	HandshakeAttempts.Inc()
	atomic.AddUint64(&localHandshakeAttempts, 1)
}

func IncHandshakeSuccess() {
	HandshakeSuccesses.Inc()
	atomic.AddUint64(&localHandshakeSuccesses, 1)
}

func IncFramesQueued() {
	FramesQueued.Inc()
	atomic.AddUint64(&localFramesQueued, 1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

func IncMalformed() {
	MalformedFrames.Inc()
	atomic.AddUint64(&localMalformed, 1)
}

func IncRPCTimeout() {
	RPCTimeouts.Inc()
	atomic.AddUint64(&localRPCTimeouts, 1)
}

func IncRPCRoundTrip() {
	RPCRoundTrips.Inc()
	atomic.AddUint64(&localRPCRoundTrips, 1)
}

func AddBytesIn(n int) {
	BytesIn.Add(float64(n))
	atomic.AddUint64(&localBytesIn, uint64(n))
}

func AddBytesOut(n int) {
	BytesOut.Add(float64(n))
	atomic.AddUint64(&localBytesOut, uint64(n))
}

func SetQueueDepth(n int) {
	QueueDepth.Set(float64(n))
	atomic.StoreUint64(&localQueueDepth, uint64(n))
}

// InitBuildInfo sets the build info gauge and pre-registers error label
// series so the first error of each kind does not pay registration latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{ErrorTransport, ErrorHandshake, ErrorRPC, ErrorWireDecode} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
