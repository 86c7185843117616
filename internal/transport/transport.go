// Package transport provides the pluggable byte-stream abstraction (C1) and
// the TCP opener (C2) the connection core is built on. It is the
// generalization of the teacher's internal/transport package: where the
// teacher's FrameDecoder/FrameBatchEncoder interfaces let *cnl.Codec plug
// into the CAN gateway, here a single Transport interface lets *TCPTransport
// (and, eventually, a TLS variant) plug into the AMQP connection core. The
// core depends only on this interface, never on net.Conn directly.
package transport

import "time"

// Transport is a polymorphic, blocking byte stream, matching
// amqp_socket_t's vtable in the original C client (spec.md §4.1): Open,
// Send, Recv, Writev, Close, Error, Fd. All operations may block; a short
// write is a protocol-level error unless the implementation retries
// internally (Send below always retries internally, like amqp_socket_send
// wrapping a loop in most real transports).
type Transport interface {
	// Open connects to host:port. Implementations that are constructed
	// already-connected (e.g. via Dial helpers) may treat this as a no-op.
	Open(host string, port int) error

	// Send writes buf in full or returns an error; no short writes escape
	// to the caller.
	Send(buf []byte) error

	// Recv reads into buf and returns the number of bytes read. Zero bytes
	// with a nil error indicates the peer closed the connection in an
	// orderly fashion (the connection-oriented "EOF" case from spec.md §4.5).
	Recv(buf []byte) (int, error)

	// Writev writes multiple buffers as a single logical write.
	Writev(bufs [][]byte) (int, error)

	// Close releases the underlying resource. Idempotent.
	Close() error

	// LastError returns the most recent OS-level error observed, if any.
	LastError() error

	// Fd returns an opaque descriptor for readiness waiting, or -1 if the
	// transport has no such descriptor (already closed, or never opened).
	Fd() int

	// SetDeadline arms (or, with a zero time.Time, disarms) a combined
	// read/write deadline, used by the wait-for-frame engine (C5) to turn
	// the blocking Recv above into a timed wait without a raw select(2)
	// loop — see internal/connio/state.go and DESIGN.md's Open Question
	// resolution on select(2) vs net.Conn deadlines.
	SetDeadline(t time.Time) error
}
