// Package amqpgo implements the client-side connection core of AMQP 0-9-1:
// TCP transport, frame demultiplexing, synchronous RPC, and the connection
// handshake. Channel-level RPC beyond channel 0, publisher confirms,
// consumer dispatch, heartbeat emission and TLS are out of scope — see
// SPEC_FULL.md.
package amqpgo

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kstaniek/amqpgo/internal/amqperr"
	"github.com/kstaniek/amqpgo/internal/connio"
	"github.com/kstaniek/amqpgo/internal/handshake"
	"github.com/kstaniek/amqpgo/internal/rpc"
	"github.com/kstaniek/amqpgo/internal/transport"
	"github.com/kstaniek/amqpgo/internal/wire"
)

// Credentials is re-exported so callers never need to import an internal
// package to authenticate.
type Credentials = wire.Credentials

// PlainCredentials is the SASL PLAIN mechanism (username/password).
type PlainCredentials = wire.PlainCredentials

// Tuning holds the negotiated connection parameters after Login.
type Tuning = handshake.Tuning

// ReplyKind classifies a SimpleRPC outcome.
type ReplyKind = rpc.ReplyKind

const (
	Normal           = rpc.Normal
	ServerException  = rpc.ServerException
	LibraryException = rpc.LibraryException
)

// RPCReply is the outcome of a SimpleRPC call.
type RPCReply = rpc.Reply

// Connection is a single, non-thread-safe AMQP 0-9-1 connection: one TCP
// socket, one inbound demultiplexer, one set of per-channel pools. Every
// method must be called from a single goroutine at a time — spec.md §5's
// concurrency model, carried over unchanged.
type Connection struct {
	tr      transport.Transport
	state   *connio.State
	tuning  *Tuning
	lastRPC RPCReply
}

// OpenTCP dials host:port over plain TCP and prepares the connection for a
// handshake. It does not send the protocol header; call Login for that.
func OpenTCP(host string, port int) (*Connection, error) {
	tr := transport.NewTCPTransport()
	if err := tr.Open(host, port); err != nil {
		return nil, err
	}
	return &Connection{
		tr:    tr,
		state: connio.NewState(tr),
	}, nil
}

// SendHeader writes the fixed 8-byte AMQP protocol header.
func (c *Connection) SendHeader() error {
	return c.tr.Send(wire.ProtocolHeader[:])
}

// WaitFrame blocks until the next frame arrives, with no timeout.
func (c *Connection) WaitFrame() (wire.Frame, error) {
	return c.state.WaitFrame()
}

// WaitFrameTimeout blocks until the next frame arrives or timeout elapses.
// A nil timeout blocks forever, matching WaitFrame.
func (c *Connection) WaitFrameTimeout(timeout *time.Duration) (wire.Frame, error) {
	return c.state.WaitFrameTimeout(timeout)
}

// WaitMethod blocks for the next frame and requires it to be exactly the
// given method id on the given channel; a mismatch closes the connection.
func (c *Connection) WaitMethod(channel uint16, expectedID uint32) (wire.Frame, error) {
	return rpc.WaitMethod(c.state, c.tr, channel, expectedID)
}

// SendMethod encodes and sends a single method frame on channel.
func (c *Connection) SendMethod(channel uint16, id uint32, decoded any) error {
	frame, err := wire.EncodeMethodFrame(channel, id, decoded)
	if err != nil {
		return err
	}
	return c.tr.Send(frame)
}

// SimpleRPC sends a method and blocks until a matching reply (or a close
// notification) arrives, deferring every other frame received meanwhile.
// The result is also retained for LastRPCReply.
func (c *Connection) SimpleRPC(channel uint16, requestID uint32, request any, expectedReplyIDs []uint32) RPCReply {
	reply := rpc.SimpleRPC(c.state, c.tr, channel, requestID, request, expectedReplyIDs)
	c.lastRPC = reply
	return reply
}

// SimpleRPCDecoded behaves like SimpleRPC but returns only the decoded
// method value (or an error), for callers uninterested in the raw frame.
func (c *Connection) SimpleRPCDecoded(channel uint16, requestID uint32, request any, expectedReplyIDs []uint32) (any, error) {
	reply := c.SimpleRPC(channel, requestID, request, expectedReplyIDs)
	if err := reply.AsError(); err != nil {
		return nil, err
	}
	if reply.Frame.Method == nil {
		return nil, nil
	}
	return reply.Frame.Method.Decoded, nil
}

// LastRPCReply returns the outcome of the most recently completed
// SimpleRPC/SimpleRPCDecoded call — amqp_get_rpc_reply's equivalent.
func (c *Connection) LastRPCReply() RPCReply {
	return c.lastRPC
}

// Login performs the full connection handshake (header, Start/StartOk,
// Tune/TuneOk negotiation, Open/OpenOk) with no custom client properties.
func (c *Connection) Login(vhost string, creds Credentials) (*Tuning, error) {
	t, err := handshake.Login(c.tr, c.state, vhost, creds)
	if err != nil {
		return nil, err
	}
	c.tuning = t
	return t, nil
}

// LoginWithProperties performs the handshake with caller-chosen tuning
// preferences and client properties.
func (c *Connection) LoginWithProperties(p handshake.Params) (*Tuning, error) {
	t, err := handshake.LoginWithProperties(c.tr, c.state, p)
	if err != nil {
		return nil, err
	}
	c.tuning = t
	return t, nil
}

// Tuning returns the negotiated connection parameters, or nil if Login has
// not completed successfully yet.
func (c *Connection) Tuning() *Tuning {
	return c.tuning
}

// Close releases the underlying transport.
func (c *Connection) Close() error {
	return c.tr.Close()
}

// Re-exported sentinel errors (internal/amqperr's canonical set), so
// callers never need to import an internal package to classify failures
// with errors.Is.
var (
	ErrSocketLibInit           = amqperr.ErrSocketLibInit
	ErrHostnameResolution      = amqperr.ErrHostnameResolution
	ErrSocket                  = amqperr.ErrSocket
	ErrConnectionClosed        = amqperr.ErrConnectionClosed
	ErrTimeout                 = amqperr.ErrTimeout
	ErrInvalidParameter        = amqperr.ErrInvalidParameter
	ErrTimerFailure            = amqperr.ErrTimerFailure
	ErrWrongMethod             = amqperr.ErrWrongMethod
	ErrIncompatibleAMQPVersion = amqperr.ErrIncompatibleAMQPVersion
	ErrNoMemory                = amqperr.ErrNoMemory
)

// Table is this module's field-table value type, re-exported from
// amqp091-go so callers building client properties don't need a second
// import (see SPEC_FULL.md §6.3).
type Table = amqp.Table
