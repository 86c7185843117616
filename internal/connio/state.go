package connio

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/kstaniek/amqpgo/internal/amqperr"
	"github.com/kstaniek/amqpgo/internal/metrics"
	"github.com/kstaniek/amqpgo/internal/transport"
	"github.com/kstaniek/amqpgo/internal/wire"
)

// State owns the inbound buffer and frame demultiplexer (C3), the deferred
// frame queue (C4), and the per-channel pools frames are copied into before
// being queued. One State exists per connection and is never touched from
// more than one goroutine at a time, matching spec.md §5's single-threaded
// cooperative concurrency model.
type State struct {
	tr    transport.Transport
	br    *bufio.Reader
	dec   *wire.FrameDecoder
	queue FrameQueue
	pools map[uint16]*Pool
}

// NewState wraps tr with the buffered demultiplexer. The bufio.Reader here
// plays the role of amqp_connection_state_t's inbound amqp_bytes_t buffer
// with its offset/limit fields (spec.md §3, C3): bufio already maintains
// that offset/limit invariant internally, and io.ReadFull (used throughout
// internal/wire) already guarantees the "each decode step consumes at least
// one byte" progress assertion spec.md §9 calls out, so neither is
// reimplemented by hand here — see DESIGN.md.
func NewState(tr transport.Transport) *State {
	return &State{
		tr:    tr,
		br:    bufio.NewReaderSize(&transportReader{tr: tr}, 64*1024),
		dec:   wire.NewFrameDecoder(),
		pools: make(map[uint16]*Pool),
	}
}

type transportReader struct {
	tr transport.Transport
}

func (r *transportReader) Read(p []byte) (int, error) {
	n, err := r.tr.Recv(p)
	if n == 0 && err == nil {
		return 0, net.ErrClosed
	}
	return n, err
}

// PoolFor returns the bump arena for channel, creating it on first use.
func (s *State) PoolFor(channel uint16) *Pool {
	p, ok := s.pools[channel]
	if !ok {
		p = NewPool()
		s.pools[channel] = p
	}
	return p
}

// ReleasePool destroys channel's pool and every frame it still owns,
// satisfying invariant I2 (spec.md §3).
func (s *State) ReleasePool(channel uint16) {
	delete(s.pools, channel)
	kept := s.queue.frames[:0]
	for _, f := range s.queue.frames {
		if f.Channel != channel {
			kept = append(kept, f)
		}
	}
	s.queue.frames = kept
	metrics.SetQueueDepth(s.queue.Len())
}

// ReleaseAll resets every channel pool without destroying the map entries —
// the re-expression of amqp_release_buffers, called between handshake
// steps (spec.md §9).
func (s *State) ReleaseAll() {
	for _, p := range s.pools {
		p.Reset()
	}
}

// QueueLen reports the number of deferred frames currently queued —
// amqp_frames_enqueued (spec.md §6.4).
func (s *State) QueueLen() int {
	return s.queue.Len()
}

// DataInBuffer reports whether the demux buffer already holds unconsumed
// bytes — amqp_data_in_buffer (spec.md §6.4). Used by callers deciding
// whether a subsequent wait is guaranteed to be non-blocking.
func (s *State) DataInBuffer() bool {
	return s.br.Buffered() > 0
}

// Enqueue copies f's payload into channel's pool and appends it to the
// connection-wide FIFO. Used by SimpleRPC (internal/rpc) to defer a frame
// that did not match the outstanding request.
func (s *State) Enqueue(f wire.Frame) {
	pool := s.PoolFor(f.Channel)
	var id uint32
	var decoded any
	if f.Method != nil {
		id = f.Method.ID
		decoded = f.Method.Decoded
	}
	s.queue.Enqueue(QueuedFrame{
		Channel: f.Channel,
		ID:      id,
		Decoded: decoded,
		Payload: pool.CopyBytes(f.Payload),
	})
}

// WaitFrame blocks until the next frame is available, with no timeout —
// amqp_simple_wait_frame's always-blocking form (spec.md §4.5). It checks
// the deferred queue first, exactly like WaitFrameTimeout.
func (s *State) WaitFrame() (wire.Frame, error) {
	return s.WaitFrameTimeout(nil)
}

// WaitFrameTimeout implements the exact blocking/timed semantics of
// wait_frame_inner in original_source/librabbitmq/amqp_socket.c: first it
// checks for an already-queued deferred frame (spec.md §4.5's fast path);
// failing that, it computes a monotonic deadline once (if timeout != nil)
// and decodes frames off the wire, arming tr.SetDeadline exactly once
// before the read rather than recomputing a deadline per retry — this is
// the Go net.Conn-deadline replacement for the original's
// select(fd+1,...)+EINTR-retry loop (see DESIGN.md's Open Question
// resolution). A nil timeout blocks forever.
//
// Decoding goes through s.dec, a *wire.FrameDecoder, rather than a one-shot
// wire.Decode(s.br) call: a single frame spans multiple io.ReadFull calls
// (header, payload, terminator), and a deadline can fire between any two of
// them — e.g. a 7-byte header split across two TCP segments, where the
// second segment arrives after the deadline. A one-shot decode would
// discard the bytes it already consumed along with the timeout error, and
// the next call would resume mid-frame against a decoder expecting a fresh
// header, permanently desynchronizing the stream. s.dec instead carries
// that partial progress across calls, so a timed-out Decode can simply be
// retried once more data is available and it picks up exactly where it
// stopped (spec.md §5: "partial bytes stay in the inbound buffer for the
// next call").
func (s *State) WaitFrameTimeout(timeout *time.Duration) (wire.Frame, error) {
	if q, ok := s.queue.Dequeue(); ok {
		metrics.SetQueueDepth(s.queue.Len())
		return queuedFrameToFrame(q), nil
	}

	if timeout != nil {
		if *timeout < 0 {
			return wire.Frame{}, fmt.Errorf("%w: negative timeout", amqperr.ErrInvalidParameter)
		}
		deadline := time.Now().Add(*timeout)
		if err := s.tr.SetDeadline(deadline); err != nil {
			return wire.Frame{}, fmt.Errorf("%w: %v", amqperr.ErrTimerFailure, err)
		}
		defer s.tr.SetDeadline(time.Time{})
	}

	f, err := s.dec.Decode(s.br)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return wire.Frame{}, amqperr.ErrTimeout
		}
		return wire.Frame{}, fmt.Errorf("%w: %v", amqperr.ErrConnectionClosed, err)
	}
	return f, nil
}

func queuedFrameToFrame(q QueuedFrame) wire.Frame {
	f := wire.Frame{Channel: q.Channel, Payload: q.Payload}
	if q.ID != 0 || q.Decoded != nil {
		f.Type = wire.FrameMethod
		f.Method = &wire.DecodedMethod{ID: q.ID, Decoded: q.Decoded}
	}
	return f
}
