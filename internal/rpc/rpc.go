// Package rpc implements the synchronous RPC primitive (C6): send one
// method, block until a matching reply (or a close notification) arrives,
// deferring everything else. Grounded on amqp_simple_rpc,
// amqp_simple_wait_method and amqp_get_rpc_reply in
// original_source/librabbitmq/amqp_socket.c.
package rpc

import (
	"errors"
	"fmt"

	"github.com/kstaniek/amqpgo/internal/amqperr"
	"github.com/kstaniek/amqpgo/internal/connio"
	"github.com/kstaniek/amqpgo/internal/metrics"
	"github.com/kstaniek/amqpgo/internal/transport"
	"github.com/kstaniek/amqpgo/internal/wire"
)

// ReplyKind classifies an RPC outcome, matching amqp_rpc_reply_t's
// three-way discriminated union (spec.md §3, §7).
type ReplyKind int

const (
	// Normal means the expected reply method arrived.
	Normal ReplyKind = iota
	// ServerException means the peer closed the channel or connection.
	ServerException
	// LibraryException means a local/transport failure prevented completion.
	LibraryException
)

// Reply is the outcome of a SimpleRPC call.
type Reply struct {
	Kind  ReplyKind
	Frame wire.Frame
	Err   error
}

// SimpleRPC sends one method frame on channel and blocks until a frame
// whose (channel, method id) matches the expected set arrives, deferring
// every other frame received meanwhile into the connection's frame queue.
// The matching rule is exactly amqp_simple_rpc's (spec.md §4.6):
//
//   - channel == requested channel AND method id is one of expectedReplyIDs,
//     OR method id == wire.ChannelClose (a channel-level close always
//     terminates the wait on its own channel); OR
//   - channel == 0 AND method id == wire.ConnectionClose (a connection-level
//     close always terminates any outstanding RPC, on any channel).
//
// Unlike the C original (which calls wait_frame_inner directly, bypassing
// its own queue), this calls connio.State.WaitFrame, which checks the
// deferred queue first — spec.md §4.5 describes wait_frame(None) as always
// consulting the queue, and spec.md is treated as authoritative over the C
// source where the two differ (see DESIGN.md).
func SimpleRPC(st *connio.State, tr transport.Transport, channel uint16, requestID uint32, request any, expectedReplyIDs []uint32) Reply {
	frame, err := wire.EncodeMethodFrame(channel, requestID, request)
	if err != nil {
		return Reply{Kind: LibraryException, Err: fmt.Errorf("%w: %v", amqperr.ErrInvalidParameter, err)}
	}
	if err := tr.Send(frame); err != nil {
		return Reply{Kind: LibraryException, Err: err}
	}

	for {
		f, err := st.WaitFrame()
		if err != nil {
			if errors.Is(err, amqperr.ErrTimeout) {
				metrics.IncRPCTimeout()
			}
			return Reply{Kind: LibraryException, Err: err}
		}
		if f.Method == nil {
			// Method-less frames (header/body/heartbeat) can never satisfy
			// an RPC wait; defer and keep looking.
			st.Enqueue(f)
			metrics.IncFramesQueued()
			metrics.SetQueueDepth(st.QueueLen())
			continue
		}

		if f.Channel == channel && idInList(f.Method.ID, expectedReplyIDs) {
			metrics.IncRPCRoundTrip()
			return Reply{Kind: Normal, Frame: f}
		}
		if f.Channel == channel && f.Method.ID == wire.ChannelClose {
			return Reply{Kind: ServerException, Frame: f}
		}
		if f.Channel == 0 && f.Method.ID == wire.ConnectionClose {
			return Reply{Kind: ServerException, Frame: f}
		}

		st.Enqueue(f)
		metrics.IncFramesQueued()
		metrics.SetQueueDepth(st.QueueLen())
	}
}

// WaitMethod waits for the next frame and requires it to be exactly the
// given method id on the given channel. A mismatch is fatal: the transport
// is closed and amqperr.ErrWrongMethod is returned, exactly as
// amqp_simple_wait_method behaves in the C original (it closes the socket
// and nulls the connection reference rather than letting the caller retry).
func WaitMethod(st *connio.State, tr transport.Transport, channel uint16, expectedID uint32) (wire.Frame, error) {
	f, err := st.WaitFrame()
	if err != nil {
		return wire.Frame{}, err
	}
	if f.Method == nil || f.Channel != channel || f.Method.ID != expectedID {
		_ = tr.Close()
		return wire.Frame{}, fmt.Errorf("%w: channel=%d id=%d", amqperr.ErrWrongMethod, f.Channel, methodID(f))
	}
	return f, nil
}

func methodID(f wire.Frame) uint32 {
	if f.Method == nil {
		return 0
	}
	return f.Method.ID
}

func idInList(id uint32, list []uint32) bool {
	for _, x := range list {
		if x == id {
			return true
		}
	}
	return false
}

// AsError converts a ServerException Reply's Close method into a plain Go
// error, for callers that only want pass/fail semantics.
func (r Reply) AsError() error {
	switch r.Kind {
	case Normal:
		return nil
	case LibraryException:
		return r.Err
	case ServerException:
		if r.Frame.Method == nil {
			return amqperr.ErrConnectionClosed
		}
		if closeMethod, ok := r.Frame.Method.Decoded.(wire.CloseMethod); ok {
			return fmt.Errorf("%w: %s", amqperr.ErrConnectionClosed, closeMethod.AsError().Reason)
		}
		return amqperr.ErrConnectionClosed
	default:
		return errors.New("rpc: unknown reply kind")
	}
}
