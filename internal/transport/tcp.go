package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/kstaniek/amqpgo/internal/amqperr"
	"github.com/kstaniek/amqpgo/internal/metrics"
)

// TCPTransport is the plain-TCP Transport implementation (C1/C2). Modeled
// on amqp_open_socket in original_source/librabbitmq/amqp_socket.c: resolve
// with AF_UNSPEC/SOCK_STREAM, iterate candidates in order, first successful
// connect wins, every socket opened along the way is either returned or
// closed.
type TCPTransport struct {
	mu      sync.Mutex
	conn    net.Conn
	lastErr error
	dialer  net.Dialer
}

var _ Transport = (*TCPTransport)(nil)

// NewTCPTransport returns an unconnected transport; call Open to dial.
func NewTCPTransport() *TCPTransport {
	return &TCPTransport{dialer: net.Dialer{Timeout: 10 * time.Second}}
}

// socketLibInitOnce models the one-shot, idempotent platform socket-library
// startup of spec.md §4.2 step 1 / §9 ("Global platform init"). Go's
// runtime never requires this, but the hook is kept so the opener's shape
// matches the original state machine and so a future platform-specific
// transport has somewhere to hang its init.
var socketLibInitOnce sync.Once
var socketLibInitErr error

func socketLibInit() error {
	socketLibInitOnce.Do(func() {
		socketLibInitErr = nil
	})
	return socketLibInitErr
}

// Open resolves host and connects to the first address family candidate
// that accepts a connection, per spec.md §4.2.
func (t *TCPTransport) Open(host string, port int) error {
	if err := socketLibInit(); err != nil {
		return fmt.Errorf("%w: %v", amqperr.ErrSocketLibInit, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.dialer.Timeout)
	defer cancel()

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("%w: %v", amqperr.ErrHostnameResolution, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("%w: no addresses for %q", amqperr.ErrHostnameResolution, host)
	}

	portStr := strconv.Itoa(port)
	var lastErr error
	for _, addr := range addrs {
		c, err := t.dialer.DialContext(ctx, "tcp", net.JoinHostPort(addr.IP.String(), portStr))
		if err != nil {
			lastErr = err
			continue
		}
		if tcpConn, ok := c.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
			if err := setNoSigPipe(tcpConn); err != nil {
				// Best effort only: an error here is ignored. On platforms
				// where SO_NOSIGPIPE is not set (e.g. Linux) setNoSigPipe is
				// a no-op that returns nil.
				_ = err
			}
		}
		t.mu.Lock()
		t.conn = c
		t.mu.Unlock()
		return nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no candidate address connected")
	}
	return fmt.Errorf("%w: %v", amqperr.ErrSocket, lastErr)
}

// Adopt wraps an already-established net.Conn (used by tests and by any
// caller that dials out of band, e.g. behind a SOCKS proxy).
func Adopt(c net.Conn) *TCPTransport {
	return &TCPTransport{conn: c}
}

func (t *TCPTransport) Send(buf []byte) error {
	c := t.currentConn()
	if c == nil {
		return amqperr.ErrConnectionClosed
	}
	total := 0
	for total < len(buf) {
		n, err := c.Write(buf[total:])
		if err != nil {
			t.setErr(err)
			metrics.IncError(metrics.ErrorTransport)
			return fmt.Errorf("%w: %v", amqperr.ErrSocket, err)
		}
		total += n
	}
	metrics.AddBytesOut(total)
	return nil
}

func (t *TCPTransport) Recv(buf []byte) (int, error) {
	c := t.currentConn()
	if c == nil {
		return 0, amqperr.ErrConnectionClosed
	}
	n, err := c.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, err // surfaced verbatim; connio distinguishes timeouts
		}
		t.setErr(err)
		metrics.IncError(metrics.ErrorTransport)
		return n, err
	}
	metrics.AddBytesIn(n)
	return n, nil
}

func (t *TCPTransport) Writev(bufs [][]byte) (int, error) {
	total := 0
	for _, b := range bufs {
		if err := t.Send(b); err != nil {
			return total, err
		}
		total += len(b)
	}
	return total, nil
}

func (t *TCPTransport) Close() error {
	t.mu.Lock()
	c := t.conn
	t.conn = nil
	t.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Close()
}

func (t *TCPTransport) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

func (t *TCPTransport) Fd() int {
	c := t.currentConn()
	if c == nil {
		return -1
	}
	sc, ok := c.(syscallConner)
	if !ok {
		return -1
	}
	return fdOf(sc)
}

func (t *TCPTransport) SetDeadline(tm time.Time) error {
	c := t.currentConn()
	if c == nil {
		return amqperr.ErrConnectionClosed
	}
	return c.SetDeadline(tm)
}

func (t *TCPTransport) currentConn() net.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

func (t *TCPTransport) setErr(err error) {
	t.mu.Lock()
	t.lastErr = err
	t.mu.Unlock()
}

type syscallConner interface {
	SyscallConn() (syscallRawConn, error)
}
