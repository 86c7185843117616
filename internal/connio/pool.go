// Package connio implements the inbound buffer and frame demultiplexer (C3),
// the FIFO deferred-frame queue (C4), and the timed wait-for-frame engine
// (C5). It is grounded on the teacher's internal/cnl codec's buffering style
// (io.ReadFull against a reusable buffer) and on wait_frame_inner /
// amqp_simple_wait_frame_noblock in original_source/librabbitmq/amqp_socket.c
// for the blocking/queueing semantics.
package connio

// Pool is a per-channel bump arena that owns the backing storage for
// frames on that channel deferred during a SimpleRPC call. It is the Go
// re-expression of amqp_pool_t: rather than destroying and recreating a
// pool, Reset simply drops every allocation it made for reuse, and the
// channel-pool map entry is the unit of ownership spec.md §3's invariant I2
// describes ("destroying a channel's pool frees every frame still queued
// for it"). The FIFO ordering of deferred frames itself is connection-wide
// and lives in FrameQueue (queue.go); Pool only owns the byte copies.
type Pool struct {
	owned [][]byte
}

// QueuedFrame is a deferred frame with its method payload bytes copied out
// of the shared inbound buffer, satisfying invariant I1 (no queued frame may
// alias the reusable inbound buffer).
type QueuedFrame struct {
	Channel uint16
	ID      uint32
	Decoded any
	Payload []byte
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

// CopyBytes returns a copy of b owned by the pool, never aliasing the
// caller's slice.
func (p *Pool) CopyBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	p.owned = append(p.owned, out)
	return out
}

// Reset drops every allocation the pool made, releasing it for garbage
// collection — the re-expression of amqp_pool's recycle-on-release
// behavior (spec.md §9, "release_buffers" calls between handshake steps).
func (p *Pool) Reset() {
	p.owned = nil
}
