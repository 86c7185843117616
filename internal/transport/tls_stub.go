package transport

import (
	"fmt"
	"time"
)

// TLSTransport is a documented stub. TLS is an explicit Non-goal of this
// client (spec.md §1); the type exists only so a future implementation has
// a place to land without changing the Transport interface, matching
// spec.md §9's "polymorphic transport via vtable" note that a second
// transport variant should be expected but is not this project's concern.
type TLSTransport struct{}

var errTLSNotImplemented = fmt.Errorf("transport: TLS is a documented Non-goal, not implemented")

func (TLSTransport) Open(host string, port int) error  { return errTLSNotImplemented }
func (TLSTransport) Send(buf []byte) error              { return errTLSNotImplemented }
func (TLSTransport) Recv(buf []byte) (int, error)       { return 0, errTLSNotImplemented }
func (TLSTransport) Writev(bufs [][]byte) (int, error)  { return 0, errTLSNotImplemented }
func (TLSTransport) Close() error                       { return nil }
func (TLSTransport) LastError() error                   { return errTLSNotImplemented }
func (TLSTransport) Fd() int                            { return -1 }
func (TLSTransport) SetDeadline(t time.Time) error      { return errTLSNotImplemented }

var _ Transport = TLSTransport{}
