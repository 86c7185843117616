//go:build unix

package transport

import (
	"net"
	"syscall"
)

// syscallRawConn is the subset of syscall.RawConn this package needs; kept
// as an alias so non-unix builds can stub it without importing syscall.
type syscallRawConn = syscall.RawConn

// setNoSigPipe mirrors amqp_open_socket's SO_NOSIGPIPE setsockopt call in
// original_source/librabbitmq/amqp_socket.c. Linux has no such socket
// option (it relies on MSG_NOSIGNAL at send time, which net.TCPConn already
// avoids needing by never raising SIGPIPE on a Go write), so this is a
// genuine no-op there and only takes effect on Darwin (every other unix,
// the BSDs included, gets the no-op in tcp_nosigpipe_other.go) — matching the
// teacher's internal/socketcan/device.go style of reaching for
// golang.org/x/sys/unix for raw socket option control.
func setNoSigPipe(c *net.TCPConn) error {
	raw, err := c.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = setNoSigPipeFd(int(fd))
	})
	if err != nil {
		return err
	}
	return sockErr
}

func fdOf(sc syscallConner) int {
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1
	}
	fd := -1
	_ = raw.Control(func(f uintptr) {
		fd = int(f)
	})
	return fd
}
